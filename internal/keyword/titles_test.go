package keyword

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/gamescout/internal/catalog"
)

func newTestTitleIndex(t *testing.T) *TitleIndex {
	t.Helper()
	cat, err := catalog.New([]catalog.Item{
		{ID: 1, DisplayName: "The Witcher 3: Wild Hunt", Embedding: []float32{1}},
		{ID: 2, DisplayName: "Red Dead Redemption 2", Embedding: []float32{2}},
		{ID: 3, DisplayName: "Red Dead Redemption", Embedding: []float32{3}},
		{ID: 4, DisplayName: "Hollow Knight", Embedding: []float32{4}},
		{ID: 5, DisplayName: "Hades", Embedding: []float32{5}},
	})
	require.NoError(t, err)
	idx, err := NewTitleIndex(cat)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestTitleIndex_SuggestCorrectsTypos(t *testing.T) {
	idx := newTestTitleIndex(t)
	ctx := context.Background()
	assert.Equal(t, 5, idx.Size())

	got, err := idx.Suggest(ctx, "Holow Knight", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"Hollow Knight"}, got)

	got, err = idx.Suggest(ctx, "red ded redemtion 2", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"Red Dead Redemption 2", "Red Dead Redemption"}, got)
}

func TestTitleIndex_SuggestPartialName(t *testing.T) {
	idx := newTestTitleIndex(t)

	got, err := idx.Suggest(context.Background(), "witcher", 3)
	require.NoError(t, err)
	assert.Contains(t, got, "The Witcher 3: Wild Hunt")
	assert.LessOrEqual(t, len(got), 3)
}

func TestTitleIndex_SuggestNoMatch(t *testing.T) {
	idx := newTestTitleIndex(t)
	ctx := context.Background()

	got, err := idx.Suggest(ctx, "zzzzzzzz", 3)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	got, err = idx.Suggest(ctx, "   ", 3)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = idx.Suggest(ctx, "hades", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFuzzinessFor(t *testing.T) {
	assert.Equal(t, 0, fuzzinessFor("2"))
	assert.Equal(t, 1, fuzzinessFor("hades"))
	assert.Equal(t, 2, fuzzinessFor("redemption"))
}
