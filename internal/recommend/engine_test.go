package recommend

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/gamescout/internal/catalog"
	"github.com/hyperjump/gamescout/internal/vector"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New([]catalog.Item{
		{ID: 0, DisplayName: "Red Dead Redemption 2", Embedding: []float32{0, 0}},
		{ID: 1, DisplayName: "The Witcher 3: Wild Hunt", Embedding: []float32{10, 0}},
		{ID: 2, DisplayName: "Red Dead Redemption", Embedding: []float32{1, 0}},
		{ID: 3, DisplayName: "Cyberpunk 2077", Embedding: []float32{9, 0}},
		{ID: 4, DisplayName: "Skyrim", Embedding: []float32{5, 1}},
		{ID: 5, DisplayName: "Tetris", Embedding: []float32{50, 50}},
		{ID: 6, DisplayName: "Hades", Embedding: []float32{5, -1}},
		{ID: 7, DisplayName: "Celeste", Embedding: []float32{30, 30}},
	})
	require.NoError(t, err)
	return c
}

func testEngine(t *testing.T, opts ...Option) (*Engine, *catalog.Catalog) {
	t.Helper()
	c := testCatalog(t)
	idx, err := vector.Build(context.Background(), "memory", c.Embeddings())
	require.NoError(t, err)
	return NewEngine(c, idx, opts...), c
}

func TestRecommend_LengthMismatch(t *testing.T) {
	e, _ := testEngine(t)
	_, err := e.Recommend(context.Background(), []string{"Skyrim"}, []int{1, 2}, 5)
	assert.True(t, errors.Is(err, ErrLengthMismatch))
}

func TestRecommend_UnknownTitlesGiveEmpty(t *testing.T) {
	e, _ := testEngine(t)
	got, err := e.Recommend(context.Background(), []string{"Totally Unknown Game"}, []int{5}, 5)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	got, err = e.Recommend(context.Background(), nil, nil, 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRecommend_ExcludesInputs(t *testing.T) {
	e, c := testEngine(t)
	inputs := []string{"  red dead REDEMPTION 2", "The Witcher 3:  Wild Hunt"}
	got, err := e.Recommend(context.Background(), inputs, []int{10, 10}, 5)
	require.NoError(t, err)
	require.Len(t, got, 5)

	excluded := map[string]bool{}
	for _, in := range inputs {
		excluded[catalog.Normalize(in)] = true
	}
	for _, name := range got {
		assert.False(t, excluded[catalog.Normalize(name)], "input %q returned", name)
		_, ok := c.Lookup(name)
		assert.True(t, ok)
	}
	// query is (5,0): Skyrim and Hades at 1, then Cyberpunk and Red Dead Redemption at 16
	assert.ElementsMatch(t, []string{"Skyrim", "Hades"}, got[:2])
	assert.ElementsMatch(t, []string{"Cyberpunk 2077", "Red Dead Redemption"}, got[2:4])
	assert.Equal(t, "Celeste", got[4])
}

func TestRecommend_WeightsShiftQuery(t *testing.T) {
	e, _ := testEngine(t)
	got, err := e.Recommend(context.Background(), []string{"Red Dead Redemption 2", "The Witcher 3: Wild Hunt"}, []int{1, 9}, 1)
	require.NoError(t, err)
	// query is (9,0)
	assert.Equal(t, []string{"Cyberpunk 2077"}, got)

	got, err = e.Recommend(context.Background(), []string{"Red Dead Redemption 2", "The Witcher 3: Wild Hunt"}, []int{9, 1}, 1)
	require.NoError(t, err)
	// query is (1,0)
	assert.Equal(t, []string{"Red Dead Redemption"}, got)
}

func TestRecommend_UnresolvedTitlesIgnored(t *testing.T) {
	e, _ := testEngine(t)
	got, err := e.Recommend(context.Background(), []string{"Nope", "Tetris"}, []int{100, 1}, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"Celeste"}, got)
}

func TestRecommend_DefaultK(t *testing.T) {
	e, _ := testEngine(t, WithDefaultK(3))
	got, err := e.Recommend(context.Background(), []string{"Skyrim"}, []int{1}, 0)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestRecommend_FewerCandidatesThanK(t *testing.T) {
	e, c := testEngine(t)
	got, err := e.Recommend(context.Background(), []string{"Skyrim"}, []int{1}, 100)
	require.NoError(t, err)
	assert.Len(t, got, c.Len()-1)
}

func TestBuildQuery_WeightedMean(t *testing.T) {
	e, _ := testEngine(t)
	q, ok := e.BuildQuery([]string{"Skyrim", "Tetris", "missing"}, []int{3, 1, 7})
	require.True(t, ok)
	assert.Equal(t, 2, q.Resolved)
	// (3*(5,1) + 1*(50,50)) / 4
	assert.InDelta(t, 16.25, q.Vector[0], 1e-5)
	assert.InDelta(t, 13.25, q.Vector[1], 1e-5)
	assert.Contains(t, q.Excluded, "skyrim")
	assert.Contains(t, q.Excluded, "tetris")
	assert.Len(t, q.Excluded, 2)
}

func TestBuildQuery_NonPositiveWeightSumUsesPlainMean(t *testing.T) {
	e, _ := testEngine(t)
	for _, ratings := range [][]int{{0, 0}, {-1, -3}, {2, -2}} {
		q, ok := e.BuildQuery([]string{"Skyrim", "Hades"}, ratings)
		require.True(t, ok)
		assert.InDelta(t, 5, q.Vector[0], 1e-5, "ratings %v", ratings)
		assert.InDelta(t, 0, q.Vector[1], 1e-5, "ratings %v", ratings)
	}
}

func TestBuildQuery_DoesNotMutateCatalog(t *testing.T) {
	e, c := testEngine(t)
	_, _ = e.BuildQuery([]string{"Skyrim"}, []int{4})
	it, _ := c.Lookup("Skyrim")
	assert.Equal(t, []float32{5, 1}, it.Embedding)
}

type recordingIndex struct {
	vector.Index
	nprobe int
	k      int
	hits   []vector.Neighbor
	err    error
}

func (r *recordingIndex) SetNProbe(n int) error {
	r.nprobe = n
	return nil
}

func (r *recordingIndex) Search(_ context.Context, _ []float32, k int) ([]vector.Neighbor, error) {
	r.k = k
	return r.hits, r.err
}

func TestRecommend_OverFetchAndNProbe(t *testing.T) {
	c := testCatalog(t)
	idx := &recordingIndex{hits: []vector.Neighbor{
		{ID: 4, Distance: 0},
		{ID: -1, Distance: 0},
		{ID: 99, Distance: 1},
		{ID: 6, Distance: 2},
		{ID: 3, Distance: 3},
	}}
	e := NewEngine(c, idx, WithNProbe(10))
	got, err := e.Recommend(context.Background(), []string{"Skyrim", "Skyrim", "unknown"}, []int{1, 1, 1}, 2)
	require.NoError(t, err)
	assert.Equal(t, 10, idx.nprobe)
	assert.Equal(t, 4, idx.k, "k plus resolved pairs")
	assert.Equal(t, []string{"Hades", "Cyberpunk 2077"}, got)
}

func TestRecommend_SearchErrorPropagates(t *testing.T) {
	c := testCatalog(t)
	e := NewEngine(c, &recordingIndex{err: errors.New("boom")})
	_, err := e.Recommend(context.Background(), []string{"Skyrim"}, []int{1}, 2)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrLengthMismatch))
}
