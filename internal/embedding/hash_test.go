package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/hyperjump/gamescout/internal/vector"
)

func TestHashEmbedder_Deterministic(t *testing.T) {
	e := NewHashEmbedder(64)
	ctx := context.Background()
	a, err := e.Embed(ctx, "open world fantasy RPG")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := e.Embed(ctx, "open world fantasy RPG")
	if len(a) != 64 {
		t.Fatalf("len=%d, want 64", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("embedding should be deterministic")
		}
	}
	if n := vector.L2Norm(a); math.Abs(n-1) > 1e-5 {
		t.Errorf("norm=%f, want 1", n)
	}
}

func TestHashEmbedder_SharedWordsAreCloser(t *testing.T) {
	e := NewHashEmbedder(256)
	ctx := context.Background()
	q, _ := e.Embed(ctx, "western cowboy horses")
	near, _ := e.Embed(ctx, "a western about cowboy outlaws and horses")
	far, _ := e.Embed(ctx, "puzzle platformer with portals")
	if vector.SquaredL2(q, near) >= vector.SquaredL2(q, far) {
		t.Error("text sharing words should be nearer")
	}
}

func TestHashEmbedder_EmptyText(t *testing.T) {
	e := NewHashEmbedder(0)
	emb, err := e.Embed(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(emb) != 384 || e.Dimensions() != 384 {
		t.Errorf("default dimension should be 384, got %d", len(emb))
	}
}

func TestNew_Providers(t *testing.T) {
	e, err := New(Options{Provider: "hash", Dimensions: 8})
	if err != nil {
		t.Fatal(err)
	}
	if e.Dimensions() != 8 {
		t.Errorf("Dimensions=%d", e.Dimensions())
	}
	if _, err := New(Options{Provider: "word2vec"}); err == nil {
		t.Error("expected error for unknown provider")
	}
	o, err := New(Options{Provider: "ollama", OllamaURL: "http://localhost:11434", OllamaModel: "all-minilm", Dimensions: 384})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := o.(*OllamaEmbedder); !ok {
		t.Errorf("expected *OllamaEmbedder, got %T", o)
	}
}
