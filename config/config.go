// Package config loads tim's configuration from a TOML file with
// environment overrides for the secrets and addresses that differ
// between deployments.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the full tim configuration tree.
type Config struct {
	Debug bool `toml:"debug"`

	Server    Server    `toml:"server"`
	LLM       LLM       `toml:"llm"`
	Prompt    Prompt    `toml:"prompt"`
	Retrieval Retrieval `toml:"retrieval"`
	History   History   `toml:"history"`
}

// Server configures the HTTP listener and the streaming shape.
type Server struct {
	// Host part of the listen address. Empty binds all interfaces.
	URI  string `toml:"uri"`
	Port int    `toml:"port"`

	// SecretKey gates POST /chat/stream. Required.
	SecretKey string `toml:"secret_key"`

	// ChunkBytes is the size of each streamed slice of the answer.
	ChunkBytes int `toml:"stream_chunk_bytes"`
	// ChunkDelayMS is the pause between slices, in milliseconds.
	ChunkDelayMS int `toml:"stream_chunk_delay_ms"`
}

// ListenAddr renders the fiber listen address, e.g. ":8000".
func (s Server) ListenAddr() string {
	return fmt.Sprintf("%s:%d", s.URI, s.Port)
}

// ChunkDelay returns the inter-chunk pause as a duration.
func (s Server) ChunkDelay() time.Duration {
	return time.Duration(s.ChunkDelayMS) * time.Millisecond
}

// LLM configures the OpenAI-compatible chat completion backend.
type LLM struct {
	BaseURL     string  `toml:"base_url"`
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	Temperature float32 `toml:"temperature"`
	MaxTokens   int     `toml:"max_tokens"`
}

// Prompt configures the persona template.
type Prompt struct {
	// Path to a template file. Empty uses the built-in template.
	Path string `toml:"path"`
	// Name is the persona the assistant speaks as.
	Name string `toml:"name"`
	// TopK is the number of passages retrieved per turn.
	TopK int `toml:"top_k"`
}

// Retrieval selects the passage source. Exactly one of IndexPath or
// SearchURL must be set: IndexPath opens a local sqlite-vec index,
// SearchURL delegates to a remote search service.
type Retrieval struct {
	IndexPath string `toml:"index_path"`
	SearchURL string `toml:"search_url"`

	// EmbedURL is the embedding service used by the local index.
	EmbedURL string `toml:"embed_url"`
	// Dimensions is the embedding width of the local index.
	Dimensions int `toml:"dimensions"`
}

// History configures conversation storage.
type History struct {
	// DBPath persists threads to SQLite. Empty keeps them in memory.
	DBPath string `toml:"db_path"`
	// TTLMinutes evicts idle in-memory threads. Zero disables eviction.
	TTLMinutes int `toml:"ttl_minutes"`
	// MaxTurns caps the replayed window sent to the model.
	MaxTurns int `toml:"max_turns"`
}

// TTL returns the idle-thread eviction window.
func (h History) TTL() time.Duration {
	return time.Duration(h.TTLMinutes) * time.Minute
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server: Server{
			Port:         8000,
			ChunkBytes:   32,
			ChunkDelayMS: 30,
		},
		LLM: LLM{
			BaseURL:     "https://api.groq.com/openai/v1",
			Model:       "llama-3.3-70b-versatile",
			Temperature: 0.6,
		},
		Prompt: Prompt{
			Name: "Muhammed Jaabir",
			TopK: 3,
		},
		History: History{
			TTLMinutes: 60,
			MaxTurns:   20,
		},
	}
}

// Load builds the configuration: defaults, then the TOML file at path
// (if non-empty), then environment overrides, then validation.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv layers deployment secrets over the file values.
func applyEnv(cfg *Config) {
	if v, ok := os.LookupEnv("SECRET_KEY"); ok {
		cfg.Server.SecretKey = v
	}
	if v, ok := os.LookupEnv("SERVER_URI"); ok {
		cfg.Server.URI = v
	}
	if v, ok := os.LookupEnv("SERVER_PORT"); ok {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v, ok := os.LookupEnv("LLM_API_KEY"); ok {
		cfg.LLM.APIKey = v
	}
}

// Validate rejects configurations that cannot serve a single turn.
func (c Config) Validate() error {
	if c.Server.SecretKey == "" {
		return errors.New("server.secret_key is required (or set SECRET_KEY)")
	}
	if c.LLM.APIKey == "" {
		return errors.New("llm.api_key is required (or set LLM_API_KEY)")
	}
	if c.Retrieval.IndexPath == "" && c.Retrieval.SearchURL == "" {
		return errors.New("retrieval needs index_path or search_url")
	}
	if c.Retrieval.IndexPath != "" && c.Retrieval.SearchURL != "" {
		return errors.New("retrieval.index_path and search_url are mutually exclusive")
	}
	if c.Retrieval.IndexPath != "" {
		if c.Retrieval.EmbedURL == "" {
			return errors.New("retrieval.embed_url is required with index_path")
		}
		if c.Retrieval.Dimensions <= 0 {
			return errors.New("retrieval.dimensions must be positive with index_path")
		}
	}
	if c.Server.ChunkBytes <= 0 {
		return errors.New("server.stream_chunk_bytes must be positive")
	}
	return nil
}
