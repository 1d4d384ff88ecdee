package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the validate tags on v and flattens failures into one error.
func Validate(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "gte", "lte":
		return fmt.Sprintf("%s is out of range", fe.Field())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

// RecommendRequest asks for recommendations from rated titles. Ratings pair with titles by
// position. K is optional; zero selects the configured default.
type RecommendRequest struct {
	GameTitles []string `json:"game_titles" validate:"required"`
	Ratings    []int    `json:"ratings" validate:"required"`
	K          int      `json:"k,omitempty" validate:"gte=0"`
}

// RecommendResponse lists recommended display names, best first.
type RecommendResponse struct {
	Recommendations  []string            `json:"recommendations"`
	UnresolvedTitles []string            `json:"unresolved_titles,omitempty"`
	Suggestions      map[string][]string `json:"suggestions,omitempty"`
}

// ChatRequest is a free-text question. A bracketed [Title] targets one catalog item.
type ChatRequest struct {
	Query string `json:"query" validate:"required"`
}

type ChatResponse struct {
	Answer string `json:"answer"`
}

// SearchResponse carries catalog titles containing a search string. Suggestions are fuzzy
// matches, filled only when Results is empty.
type SearchResponse struct {
	Query       string   `json:"query"`
	Results     []string `json:"results"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// Credentials are the username and password for /register and /login.
type Credentials struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type UserResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// TokenResponse is returned by /login.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// StatusResponse summarizes the loaded catalog, indexes and document store.
type StatusResponse struct {
	CatalogSize      int      `json:"catalog_size"`
	IndexType        string   `json:"index_type"`
	IndexSize        int      `json:"index_size"`
	Dimensions       int      `json:"dimensions"`
	DocumentStore    string   `json:"document_store"`
	Documents        int      `json:"documents"`
	Chunks           int      `json:"chunks"`
	DiskUsageBytes   int64    `json:"disk_usage_bytes,omitempty"`
	Generator        string   `json:"generator"`
	GeneratorCircuit string   `json:"generator_circuit,omitempty"`
	WatchDirectories []string `json:"watch_directories,omitempty"`
}
