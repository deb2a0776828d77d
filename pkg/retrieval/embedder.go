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

// SpaceEmbedder calls a hosted embedding endpoint: POST {base}/embed with a
// JSON body {"user_input": text}, authenticated by the shared secret header,
// answering {"output": [floats]}.
type SpaceEmbedder struct {
	baseURL    string
	secret     string
	httpClient *http.Client
}

// NewSpaceEmbedder creates an embedder for the endpoint at baseURL.
// secret may be empty when the endpoint is unauthenticated.
func NewSpaceEmbedder(baseURL, secret string) *SpaceEmbedder {
	return &SpaceEmbedder{
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  secret,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type embedRequest struct {
	UserInput string `json:"user_input"`
}

type embedResponse struct {
	Output []float32 `json:"output"`
}

func (e *SpaceEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{UserInput: text})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.secret != "" {
		req.Header.Set("X-SECRET-KEY", e.secret)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embed endpoint returned %d: %s", resp.StatusCode, string(msg))
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}
	if len(out.Output) == 0 {
		return nil, fmt.Errorf("embed endpoint returned an empty vector")
	}

	return out.Output, nil
}
