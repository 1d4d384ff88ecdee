package server

import (
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/hyperjump/gamescout/internal/auth"
	"github.com/hyperjump/gamescout/internal/docstore"
	"github.com/hyperjump/gamescout/internal/metrics"
	"github.com/hyperjump/gamescout/internal/models"
	"github.com/hyperjump/gamescout/internal/recommend"
)

const (
	lengthMismatchDetail = "Number of games and ratings must match."
	suggestionsPerTitle  = 3
	defaultSearchLimit   = 10
	maxSearchLimit       = 100
	maxBodyBytes         = 1 << 20
)

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var req models.RecommendRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if err := models.Validate(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.GameTitles) != len(req.Ratings) {
		s.respondError(w, http.StatusBadRequest, lengthMismatchDetail)
		return
	}
	k := req.K
	if maxK := s.config.Recommend.MaxK; maxK > 0 && k > maxK {
		k = maxK
	}
	s.logger.Debug("recommend request", zap.Int("titles", len(req.GameTitles)), zap.Int("k", k))

	metrics.RecommendRequests.Inc()
	recs, err := s.deps.Recommender.Recommend(r.Context(), req.GameTitles, req.Ratings, k)
	if errors.Is(err, recommend.ErrLengthMismatch) {
		s.respondError(w, http.StatusBadRequest, lengthMismatchDetail)
		return
	}
	if err != nil {
		s.logger.Error("recommendation failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "recommendation failed")
		return
	}
	metrics.RecommendResults.Observe(float64(len(recs)))

	resp := models.RecommendResponse{Recommendations: recs}
	for _, title := range req.GameTitles {
		if _, ok := s.deps.Catalog.Lookup(title); ok {
			continue
		}
		resp.UnresolvedTitles = append(resp.UnresolvedTitles, title)
		if s.deps.Titles == nil {
			continue
		}
		sugg, err := s.deps.Titles.Suggest(r.Context(), title, suggestionsPerTitle)
		if err != nil {
			s.logger.Warn("title suggestion failed", zap.String("title", title), zap.Error(err))
			continue
		}
		if len(sugg) > 0 {
			if resp.Suggestions == nil {
				resp.Suggestions = make(map[string][]string)
			}
			resp.Suggestions[title] = sugg
		}
	}
	metrics.RecommendUnresolvedTitles.Add(float64(len(resp.UnresolvedTitles)))
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if err := models.Validate(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	res := s.deps.Answerer.Ask(r.Context(), req.Query)
	s.respondJSON(w, http.StatusOK, models.ChatResponse{Answer: res.Text})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	limit := defaultSearchLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxSearchLimit)
	}
	resp := models.SearchResponse{Query: q, Results: s.deps.Catalog.Search(q, limit)}
	if len(resp.Results) == 0 && q != "" && s.deps.Titles != nil {
		sugg, err := s.deps.Titles.Suggest(r.Context(), q, min(limit, suggestionsPerTitle*2))
		if err != nil {
			s.logger.Warn("title suggestion failed", zap.String("query", q), zap.Error(err))
		} else if len(sugg) > 0 {
			resp.Suggestions = sugg
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	creds, ok := s.decodeCredentials(w, r)
	if !ok {
		return
	}
	if err := models.Validate(&creds); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	u, err := s.deps.Auth.Register(r.Context(), creds.Username, creds.Password)
	if errors.Is(err, auth.ErrUserExists) {
		s.respondError(w, http.StatusBadRequest, "Username already registered")
		return
	}
	if err != nil {
		s.logger.Error("registration failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "registration failed")
		return
	}
	s.respondJSON(w, http.StatusCreated, models.UserResponse{ID: u.ID, Username: u.Username})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	creds, ok := s.decodeCredentials(w, r)
	if !ok {
		return
	}
	if creds.Username == "" || creds.Password == "" {
		s.respondError(w, http.StatusBadRequest, "username and password are required")
		return
	}
	token, err := s.deps.Auth.Login(r.Context(), creds.Username, creds.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		w.Header().Set("WWW-Authenticate", "Bearer")
		s.respondError(w, http.StatusUnauthorized, "Incorrect username or password")
		return
	}
	if err != nil {
		s.logger.Error("login failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "login failed")
		return
	}
	s.respondJSON(w, http.StatusOK, models.TokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.UserFromContext(r.Context())
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}
	s.respondJSON(w, http.StatusOK, models.UserResponse{ID: u.ID, Username: u.Username})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := models.StatusResponse{
		CatalogSize:   s.deps.Catalog.Len(),
		Dimensions:    s.deps.Catalog.Dimensions(),
		DocumentStore: s.config.DocumentStore.Backend,
		Generator:     s.config.Generator.Provider,
	}
	if s.deps.Index != nil {
		resp.IndexType = s.deps.Index.Type()
		resp.IndexSize = s.deps.Index.Size()
	}
	if s.deps.Documents != nil {
		var err error
		if resp.Documents, err = s.deps.Documents.CountDocuments(ctx); err != nil {
			s.logger.Error("status: count documents failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if resp.Chunks, err = s.deps.Documents.CountChunks(ctx); err != nil {
			s.logger.Error("status: count chunks failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	if st, ok := s.deps.Generator.(interface{ State() string }); ok {
		resp.GeneratorCircuit = st.State()
	}
	if s.deps.WatchDirectories != nil {
		resp.WatchDirectories = s.deps.WatchDirectories()
	}

	paths := []string{s.config.Catalog.Path, s.config.Catalog.VectorsPath, s.config.Catalog.IndexPath}
	if s.config.DocumentStore.Backend == docstore.BackendSQLite {
		paths = append(paths, s.config.DocumentStore.DatabasePath)
	}
	if s.deps.Auth != nil {
		paths = append(paths, s.config.Auth.DatabasePath)
	}
	if n, err := docstore.DiskUsageBytes(paths...); err == nil {
		resp.DiskUsageBytes = n
	} else {
		s.logger.Warn("status: disk usage failed", zap.Error(err))
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// decodeJSON reads a JSON body into v, answering 400 itself when the body is invalid.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// decodeCredentials accepts a JSON body or an OAuth2-style form post.
func (s *Server) decodeCredentials(w http.ResponseWriter, r *http.Request) (models.Credentials, bool) {
	var creds models.Credentials
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		parse := r.ParseForm
		if mediaType == "multipart/form-data" {
			parse = func() error { return r.ParseMultipartForm(maxBodyBytes) }
		}
		if err := parse(); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid form body")
			return creds, false
		}
		creds.Username = r.PostFormValue("username")
		creds.Password = r.PostFormValue("password")
		return creds, true
	default:
		return creds, s.decodeJSON(w, r, &creds)
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Debug("failed to write response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, models.ErrorResponse{Detail: message})
}
