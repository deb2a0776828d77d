// Package client reads the chat server's byte stream and re-assembles it
// into whole-rune chunks for incremental rendering.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jaaabir/tim-ai/pkg/chat"
)

// Client streams chat turns from a tim server.
type Client struct {
	baseURL    string
	secret     string
	httpClient *http.Client

	// ChunkSize is the read window in bytes. Server chunking is
	// independent; windows may end mid-character and the client buffers
	// the partial sequence until the rest arrives.
	chunkSize int

	// Delay between rendered chunks. Zero renders as fast as the
	// server sends.
	delay time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithChunkSize sets the read window size in bytes.
func WithChunkSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.chunkSize = n
		}
	}
}

// WithDelay sets the inter-chunk render delay.
func WithDelay(d time.Duration) Option {
	return func(c *Client) { c.delay = d }
}

// WithHTTPClient swaps the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a client for the server at baseURL.
func New(baseURL, secret string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  secret,
		httpClient: &http.Client{
			// Model calls can be slow; no overall deadline beyond ctx.
			Timeout: 0,
		},
		chunkSize: 5,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Stream submits one turn and delivers the answer incrementally through
// onChunk (which may be nil). Every chunk contains only complete runes,
// and the concatenation of all chunks equals the returned full text.
func (c *Client) Stream(ctx context.Context, threadID, userInput string, onChunk func(string)) (string, error) {
	body, err := json.Marshal(chat.TurnRequest{UserInput: userInput, ThreadID: threadID})
	if err != nil {
		return "", fmt.Errorf("marshal turn request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/stream", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-SECRET-KEY", c.secret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var full strings.Builder
	var pending []byte
	buf := make([]byte, c.chunkSize)

	emit := func(b []byte) {
		if len(b) == 0 {
			return
		}
		text := string(b)
		full.WriteString(text)
		if onChunk != nil {
			onChunk(text)
		}
	}

	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			complete := completeRunes(pending)
			emit(pending[:complete])
			pending = append(pending[:0], pending[complete:]...)

			if c.delay > 0 {
				time.Sleep(c.delay)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return full.String(), fmt.Errorf("read stream: %w", readErr)
		}
	}

	// Whatever is left at EOF is flushed as-is; a truncated sequence
	// decodes to the replacement character rather than being dropped.
	emit(pending)

	return full.String(), nil
}

// completeRunes returns the length of the longest prefix of b that ends on
// a rune boundary. At most utf8.UTFMax-1 trailing bytes are ever held
// back.
func completeRunes(b []byte) int {
	for i := len(b) - 1; i >= 0 && len(b)-i < utf8.UTFMax; i-- {
		if !utf8.RuneStart(b[i]) {
			continue
		}
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size == 1 && !utf8.FullRune(b[i:]) {
			// Incomplete trailing sequence; hold it back.
			return i
		}
		break
	}
	return len(b)
}
