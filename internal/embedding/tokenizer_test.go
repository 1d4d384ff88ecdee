package embedding

import (
	"testing"
)

func TestSimpleTokenizer_Tokenize(t *testing.T) {
	tok := &SimpleTokenizer{}
	ids, attn, types := tok.Tokenize("Hello, world", 10)
	if len(ids) != 10 || len(attn) != 10 || len(types) != 10 {
		t.Fatalf("unexpected lengths %d %d %d", len(ids), len(attn), len(types))
	}
	if ids[0] != 101 {
		t.Errorf("expected CLS 101, got %d", ids[0])
	}
	if ids[3] != 102 {
		t.Errorf("expected SEP at position 3, got %d", ids[3])
	}
	for i, want := range []int64{1, 1, 1, 1, 0} {
		if attn[i] != want {
			t.Errorf("attention[%d]=%d, want %d", i, attn[i], want)
		}
	}
	a, _, _ := tok.Tokenize("hello", 10)
	if a[1] != ids[1] {
		t.Error("token ids should be case-insensitive and deterministic")
	}
}

func TestSimpleTokenizer_Truncates(t *testing.T) {
	tok := &SimpleTokenizer{}
	ids, attn, _ := tok.Tokenize("one two three four five six", 4)
	if ids[3] != 102 {
		t.Errorf("last slot should be SEP, got %d", ids[3])
	}
	for i := range attn {
		if attn[i] != 1 {
			t.Errorf("attention[%d] should be 1 when full", i)
		}
	}
}

func TestSplitWords(t *testing.T) {
	words := SplitWords("  The Witcher-3: Wild  ")
	want := []string{"the", "witcher", "3", "wild"}
	if len(words) != len(want) {
		t.Fatalf("got %v, want %v", words, want)
	}
	for i := range want {
		if words[i] != want[i] {
			t.Errorf("word %d = %q, want %q", i, words[i], want[i])
		}
	}
	if len(SplitWords("")) != 0 {
		t.Error("empty string should produce no words")
	}
}
