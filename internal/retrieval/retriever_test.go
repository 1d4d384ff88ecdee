package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/gamescout/internal/catalog"
)

type fakeEmbedder struct {
	calls int
	err   error
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []float32{float32(len(text))}, nil
}

type fakeStore struct {
	calls int
	n     int
	docs  []string
	err   error
}

func (f *fakeStore) Query(_ context.Context, _ []float32, n int) ([]string, error) {
	f.calls++
	f.n = n
	if f.err != nil {
		return nil, f.err
	}
	if len(f.docs) > n {
		return f.docs[:n], nil
	}
	return f.docs, nil
}

func newTestRetriever(t *testing.T, emb *fakeEmbedder, store *fakeStore) *Retriever {
	t.Helper()
	cat, err := catalog.New([]catalog.Item{
		{DisplayName: "Hollow Knight", Embedding: []float32{1}, ReferenceText: "A metroidvania set in Hallownest."},
		{DisplayName: "Untold Game", Embedding: []float32{2}},
	})
	require.NoError(t, err)
	r, err := NewRetriever(cat, emb, store)
	require.NoError(t, err)
	return r
}

func TestBracketedTitle(t *testing.T) {
	tests := []struct {
		query string
		want  string
		ok    bool
	}{
		{"tell me about [Hollow Knight] please", "Hollow Knight", true},
		{"[A] and [B]", "A", true},
		{"[]", "", true},
		{"no brackets", "", false},
		{"unclosed [bracket", "", false},
	}
	for _, tt := range tests {
		got, ok := BracketedTitle(tt.query)
		assert.Equal(t, tt.ok, ok, tt.query)
		assert.Equal(t, tt.want, got, tt.query)
	}
}

func TestRetrieve_ExactHit(t *testing.T) {
	emb, store := &fakeEmbedder{}, &fakeStore{docs: []string{"x"}}
	r := newTestRetriever(t, emb, store)

	b, err := r.Retrieve(context.Background(), "What is [  hollow   KNIGHT ] about?", 5)
	require.NoError(t, err)
	assert.Equal(t, RouteExact, b.Route)
	assert.Equal(t, []string{"A metroidvania set in Hallownest."}, b.Contexts)
	assert.Zero(t, emb.calls)
	assert.Zero(t, store.calls)
}

func TestRetrieve_ExactMissNeverFallsBack(t *testing.T) {
	emb, store := &fakeEmbedder{}, &fakeStore{docs: []string{"x"}}
	r := newTestRetriever(t, emb, store)

	for _, q := range []string{"[Nonexistent Game]", "[Untold Game] plot?", "[]"} {
		b, err := r.Retrieve(context.Background(), q, 5)
		require.NoError(t, err)
		assert.True(t, b.Empty(), q)
		assert.NotNil(t, b.Contexts)
	}
	assert.Zero(t, emb.calls)
	assert.Zero(t, store.calls)
}

func TestRetrieve_Semantic(t *testing.T) {
	emb, store := &fakeEmbedder{}, &fakeStore{docs: []string{"d1", "d2", "d3"}}
	r := newTestRetriever(t, emb, store)

	b, err := r.Retrieve(context.Background(), "games like a spooky castle", 2)
	require.NoError(t, err)
	assert.Equal(t, RouteSemantic, b.Route)
	assert.Equal(t, []string{"d1", "d2"}, b.Contexts)
	assert.Equal(t, 1, emb.calls)
	assert.Equal(t, 2, store.n)
}

func TestRetrieve_SemanticDefaultN(t *testing.T) {
	emb, store := &fakeEmbedder{}, &fakeStore{}
	r := newTestRetriever(t, emb, store)

	b, err := r.Retrieve(context.Background(), "anything", 0)
	require.NoError(t, err)
	assert.Equal(t, 5, store.n)
	assert.True(t, b.Empty())
	assert.NotNil(t, b.Contexts)
}

func TestRetrieve_CollaboratorErrors(t *testing.T) {
	r := newTestRetriever(t, &fakeEmbedder{err: errors.New("model down")}, &fakeStore{})
	_, err := r.Retrieve(context.Background(), "q", 5)
	assert.Error(t, err)

	r = newTestRetriever(t, &fakeEmbedder{}, &fakeStore{err: errors.New("db down")})
	_, err = r.Retrieve(context.Background(), "q", 5)
	assert.Error(t, err)
}

func TestNewRetriever_RequiresCollaborators(t *testing.T) {
	cat, _ := catalog.New(nil)
	_, err := NewRetriever(nil, &fakeEmbedder{}, &fakeStore{})
	assert.Error(t, err)
	_, err = NewRetriever(cat, nil, &fakeStore{})
	assert.Error(t, err)
	_, err = NewRetriever(cat, &fakeEmbedder{}, nil)
	assert.Error(t, err)
}
