package server

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/hyperjump/gamescout/internal/answer"
	"github.com/hyperjump/gamescout/internal/auth"
	"github.com/hyperjump/gamescout/internal/catalog"
	"github.com/hyperjump/gamescout/internal/config"
	"github.com/hyperjump/gamescout/internal/keyword"
	"github.com/hyperjump/gamescout/internal/models"
	"github.com/hyperjump/gamescout/internal/recommend"
	"github.com/hyperjump/gamescout/internal/vector"
)

type fakeAnswerer struct {
	queries []string
}

func (f *fakeAnswerer) Ask(_ context.Context, query string) answer.Result {
	f.queries = append(f.queries, query)
	return answer.Result{Text: "It is a farming game.", Outcome: answer.OutcomeAnswered}
}

type fakeCounter struct{}

func (fakeCounter) CountDocuments(context.Context) (int, error) { return 3, nil }
func (fakeCounter) CountChunks(context.Context) (int, error)    { return 7, nil }

type testEnv struct {
	handler  http.Handler
	answerer *fakeAnswerer
}

func newTestEnv(t *testing.T, withAuth, authRequired bool) *testEnv {
	t.Helper()
	ctx := context.Background()
	cat, err := catalog.New([]catalog.Item{
		{ID: 1, DisplayName: "Stardew Valley", Embedding: []float32{0, 0}},
		{ID: 2, DisplayName: "Harvest Moon", Embedding: []float32{0.1, 0}},
		{ID: 3, DisplayName: "Doom", Embedding: []float32{5, 5}},
		{ID: 4, DisplayName: "Quake", Embedding: []float32{5.2, 5}},
		{ID: 5, DisplayName: "Rune Factory", Embedding: []float32{0.2, 0.1}},
	})
	require.NoError(t, err)
	idx, err := vector.Build(ctx, "memory", cat.Embeddings())
	require.NoError(t, err)
	titles, err := keyword.NewTitleIndex(cat)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = titles.Close()
		_ = idx.Close()
	})

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Server.ChatRateLimitPerMinute = 2
	cfg.Catalog.Path = ""
	cfg.Catalog.VectorsPath = ""
	cfg.DocumentStore.DatabasePath = filepath.Join(t.TempDir(), "docs.db")
	cfg.Auth.Required = authRequired

	ans := &fakeAnswerer{}
	deps := Deps{
		Catalog:     cat,
		Index:       idx,
		Recommender: recommend.NewEngine(cat, idx),
		Answerer:    ans,
		Titles:      titles,
		Documents:   fakeCounter{},
	}
	if withAuth {
		users, err := auth.OpenUserStore(ctx, filepath.Join(t.TempDir(), "users.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = users.Close() })
		tokens, err := auth.NewTokenManager("test-secret", 30*time.Minute)
		require.NoError(t, err)
		deps.Auth = auth.NewService(users, tokens, auth.WithBcryptCost(bcrypt.MinCost))
		cfg.Auth.Enabled = true
	}
	return &testEnv{handler: NewServer(deps, cfg, nil).Handler(), answerer: ans}
}

func (e *testEnv) do(t *testing.T, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

func TestHandleRecommend(t *testing.T) {
	env := newTestEnv(t, false, false)

	rec := env.do(t, http.MethodPost, "/recommend",
		`{"game_titles":["stardew  VALLEY","Doomm"],"ratings":[5,1],"k":2}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[models.RecommendResponse](t, rec)
	assert.Equal(t, []string{"Harvest Moon", "Rune Factory"}, resp.Recommendations)
	assert.Equal(t, []string{"Doomm"}, resp.UnresolvedTitles)
	assert.Contains(t, resp.Suggestions["Doomm"], "Doom")
}

func TestHandleRecommend_LengthMismatch(t *testing.T) {
	env := newTestEnv(t, false, false)
	rec := env.do(t, http.MethodPost, "/recommend", `{"game_titles":["Doom"],"ratings":[5,4]}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Number of games and ratings must match.", decode[models.ErrorResponse](t, rec).Detail)
}

func TestHandleRecommend_InvalidBody(t *testing.T) {
	env := newTestEnv(t, false, false)
	for _, body := range []string{`not json`, `{"ratings":[1]}`, `{"game_titles":["Doom"],"ratings":[1],"k":-1}`} {
		rec := env.do(t, http.MethodPost, "/recommend", body, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestHandleRecommend_NothingResolves(t *testing.T) {
	env := newTestEnv(t, false, false)
	rec := env.do(t, http.MethodPost, "/recommend", `{"game_titles":[],"ratings":[]}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[models.RecommendResponse](t, rec)
	assert.Empty(t, resp.Recommendations)
	assert.NotNil(t, resp.Recommendations)
}

func TestHandleChat(t *testing.T) {
	env := newTestEnv(t, false, false)
	rec := env.do(t, http.MethodPost, "/chat", `{"query":"What is [Stardew Valley]?"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "It is a farming game.", decode[models.ChatResponse](t, rec).Answer)
	assert.Equal(t, []string{"What is [Stardew Valley]?"}, env.answerer.queries)

	rec = env.do(t, http.MethodPost, "/chat", `{"query":""}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleChat_RateLimited(t *testing.T) {
	env := newTestEnv(t, false, false)
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, env.do(t, http.MethodPost, "/chat", `{"query":"hi"}`, nil).Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestHandleSearch(t *testing.T) {
	env := newTestEnv(t, false, false)

	rec := env.do(t, http.MethodGet, "/search?q=moon", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[models.SearchResponse](t, rec)
	assert.Equal(t, []string{"Harvest Moon"}, resp.Results)
	assert.Empty(t, resp.Suggestions)

	rec = env.do(t, http.MethodGet, "/search?q=quak", "", nil)
	resp = decode[models.SearchResponse](t, rec)
	assert.Equal(t, []string{"Quake"}, resp.Results)

	rec = env.do(t, http.MethodGet, "/search?q=qaake", "", nil)
	resp = decode[models.SearchResponse](t, rec)
	assert.Empty(t, resp.Results)
	assert.Contains(t, resp.Suggestions, "Quake")

	rec = env.do(t, http.MethodGet, "/search?q=", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[models.SearchResponse](t, rec).Results)

	rec = env.do(t, http.MethodGet, "/search?q=doom&limit=zero", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleHealthAndStatus(t *testing.T) {
	env := newTestEnv(t, false, false)

	rec := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/status", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode[models.StatusResponse](t, rec)
	assert.Equal(t, 5, st.CatalogSize)
	assert.Equal(t, 5, st.IndexSize)
	assert.Equal(t, "memory", st.IndexType)
	assert.Equal(t, 2, st.Dimensions)
	assert.Equal(t, 3, st.Documents)
	assert.Equal(t, 7, st.Chunks)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, false, false)
	env.do(t, http.MethodGet, "/health", "", nil)
	rec := env.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "gamescout_http_requests_total")
}

func TestAccountsDisabled(t *testing.T) {
	env := newTestEnv(t, false, false)
	rec := env.do(t, http.MethodPost, "/register", `{"username":"ciri","password":"swallow-123"}`, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegisterLoginMe(t *testing.T) {
	env := newTestEnv(t, true, false)

	rec := env.do(t, http.MethodPost, "/register", `{"username":"ciri","password":"swallow-123"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "ciri", decode[models.UserResponse](t, rec).Username)

	rec = env.do(t, http.MethodPost, "/register", `{"username":"ciri","password":"swallow-123"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Username already registered", decode[models.ErrorResponse](t, rec).Detail)

	rec = env.do(t, http.MethodPost, "/register", `{"username":"ge","password":"short"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	form := url.Values{"username": {"ciri"}, "password": {"swallow-123"}}
	req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewBufferString(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	tok := decode[models.TokenResponse](t, rec)
	assert.Equal(t, "bearer", tok.TokenType)
	require.NotEmpty(t, tok.AccessToken)

	rec = env.do(t, http.MethodPost, "/login", `{"username":"ciri","password":"wrong-password"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/me", "", http.Header{"Authorization": {"Bearer " + tok.AccessToken}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ciri", decode[models.UserResponse](t, rec).Username)

	rec = env.do(t, http.MethodGet, "/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t, true, true)
	body := `{"game_titles":["Doom"],"ratings":[5]}`

	rec := env.do(t, http.MethodPost, "/recommend", body, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Could not validate credentials", decode[models.ErrorResponse](t, rec).Detail)

	rec = env.do(t, http.MethodPost, "/register", `{"username":"eskel","password":"kaer-morhen"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = env.do(t, http.MethodPost, "/login", `{"username":"eskel","password":"kaer-morhen"}`, nil)
	tok := decode[models.TokenResponse](t, rec)

	rec = env.do(t, http.MethodPost, "/recommend", body, http.Header{"Authorization": {"Bearer " + tok.AccessToken}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"Quake", "Rune Factory"}, decode[models.RecommendResponse](t, rec).Recommendations[:2])
}
