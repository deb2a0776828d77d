package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPRetriever queries a remote similarity-search service:
// POST {base}/search {"query": ..., "k": ...} -> {"passages": [...]}.
// Used when the vector index lives behind its own service instead of on
// local disk.
type HTTPRetriever struct {
	baseURL    string
	secret     string
	httpClient *http.Client
}

// NewHTTPRetriever creates a retriever for the service at baseURL.
func NewHTTPRetriever(baseURL, secret string) *HTTPRetriever {
	return &HTTPRetriever{
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  secret,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type searchRequest struct {
	Query string `json:"query"`
	K     int    `json:"k"`
}

type searchResponse struct {
	Passages []string `json:"passages"`
}

func (r *HTTPRetriever) Search(ctx context.Context, query string, k int) ([]string, error) {
	body, err := json.Marshal(searchRequest{Query: query, K: k})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.secret != "" {
		req.Header.Set("X-SECRET-KEY", r.secret)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("search endpoint returned %d: %s", resp.StatusCode, string(msg))
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	return out.Passages, nil
}
