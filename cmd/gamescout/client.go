package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/hyperjump/gamescout/internal/models"
)

// apiClient calls a running gamescout server.
type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func newAPIClient(baseURL, token string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 2 * time.Minute},
	}
}

func (c *apiClient) Recommend(ctx context.Context, req *models.RecommendRequest) (*models.RecommendResponse, error) {
	var out models.RecommendResponse
	return &out, c.do(ctx, http.MethodPost, "/recommend", req, &out)
}

func (c *apiClient) Chat(ctx context.Context, query string) (*models.ChatResponse, error) {
	var out models.ChatResponse
	return &out, c.do(ctx, http.MethodPost, "/chat", models.ChatRequest{Query: query}, &out)
}

func (c *apiClient) Search(ctx context.Context, q string, limit int) (*models.SearchResponse, error) {
	v := url.Values{"q": {q}, "limit": {strconv.Itoa(limit)}}
	var out models.SearchResponse
	return &out, c.do(ctx, http.MethodGet, "/search?"+v.Encode(), nil, &out)
}

func (c *apiClient) Status(ctx context.Context) (*models.StatusResponse, error) {
	var out models.StatusResponse
	return &out, c.do(ctx, http.MethodGet, "/status", nil, &out)
}

func (c *apiClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var e models.ErrorResponse
		if json.Unmarshal(b, &e) == nil && e.Detail != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, e.Detail)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
