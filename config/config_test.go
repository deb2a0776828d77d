package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tim.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
[server]
secret_key = "s3cret"

[llm]
api_key = "gsk_test"

[retrieval]
search_url = "http://localhost:9000"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.Server.ListenAddr())
	assert.Equal(t, 32, cfg.Server.ChunkBytes)
	assert.Equal(t, 30*time.Millisecond, cfg.Server.ChunkDelay())
	assert.Equal(t, "https://api.groq.com/openai/v1", cfg.LLM.BaseURL)
	assert.Equal(t, "llama-3.3-70b-versatile", cfg.LLM.Model)
	assert.Equal(t, "Muhammed Jaabir", cfg.Prompt.Name)
	assert.Equal(t, 3, cfg.Prompt.TopK)
	assert.Equal(t, time.Hour, cfg.History.TTL())
	assert.Equal(t, 20, cfg.History.MaxTurns)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
debug = true

[server]
uri = "127.0.0.1"
port = 9090
secret_key = "s3cret"
stream_chunk_bytes = 8
stream_chunk_delay_ms = 5

[llm]
base_url = "http://localhost:11434/v1"
api_key = "local"
model = "qwen3:8b"
temperature = 0.2
max_tokens = 512

[prompt]
name = "Tester"
top_k = 5

[retrieval]
index_path = "index.db"
embed_url = "http://localhost:7860"
dimensions = 384

[history]
db_path = "threads.db"
max_turns = 4
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Debug)
	assert.Equal(t, "127.0.0.1:9090", cfg.Server.ListenAddr())
	assert.Equal(t, 8, cfg.Server.ChunkBytes)
	assert.Equal(t, 5*time.Millisecond, cfg.Server.ChunkDelay())
	assert.Equal(t, "qwen3:8b", cfg.LLM.Model)
	assert.Equal(t, float32(0.2), cfg.LLM.Temperature)
	assert.Equal(t, "Tester", cfg.Prompt.Name)
	assert.Equal(t, 5, cfg.Prompt.TopK)
	assert.Equal(t, "index.db", cfg.Retrieval.IndexPath)
	assert.Equal(t, 384, cfg.Retrieval.Dimensions)
	assert.Equal(t, "threads.db", cfg.History.DBPath)
	assert.Equal(t, 4, cfg.History.MaxTurns)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
[server]
secret_key = "from-file"
port = 8000

[llm]
api_key = "from-file"

[retrieval]
search_url = "http://localhost:9000"
`)

	t.Setenv("SECRET_KEY", "from-env")
	t.Setenv("SERVER_URI", "0.0.0.0")
	t.Setenv("SERVER_PORT", "8443")
	t.Setenv("LLM_API_KEY", "gsk_env")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Server.SecretKey)
	assert.Equal(t, "0.0.0.0:8443", cfg.Server.ListenAddr())
	assert.Equal(t, "gsk_env", cfg.LLM.APIKey)
}

func TestLoadWithoutFileUsesEnv(t *testing.T) {
	t.Setenv("SECRET_KEY", "s3cret")
	t.Setenv("LLM_API_KEY", "gsk_test")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retrieval")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		cfg := Default()
		cfg.Server.SecretKey = "s"
		cfg.LLM.APIKey = "k"
		cfg.Retrieval.SearchURL = "http://localhost:9000"
		return cfg
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, base().Validate())
	})

	t.Run("missing secret", func(t *testing.T) {
		cfg := base()
		cfg.Server.SecretKey = ""
		assert.ErrorContains(t, cfg.Validate(), "secret_key")
	})

	t.Run("missing api key", func(t *testing.T) {
		cfg := base()
		cfg.LLM.APIKey = ""
		assert.ErrorContains(t, cfg.Validate(), "api_key")
	})

	t.Run("no retrieval source", func(t *testing.T) {
		cfg := base()
		cfg.Retrieval.SearchURL = ""
		assert.ErrorContains(t, cfg.Validate(), "index_path or search_url")
	})

	t.Run("both retrieval sources", func(t *testing.T) {
		cfg := base()
		cfg.Retrieval.IndexPath = "index.db"
		assert.ErrorContains(t, cfg.Validate(), "mutually exclusive")
	})

	t.Run("index without embedder", func(t *testing.T) {
		cfg := base()
		cfg.Retrieval.SearchURL = ""
		cfg.Retrieval.IndexPath = "index.db"
		cfg.Retrieval.Dimensions = 384
		assert.ErrorContains(t, cfg.Validate(), "embed_url")
	})

	t.Run("index without dimensions", func(t *testing.T) {
		cfg := base()
		cfg.Retrieval.SearchURL = ""
		cfg.Retrieval.IndexPath = "index.db"
		cfg.Retrieval.EmbedURL = "http://localhost:7860"
		assert.ErrorContains(t, cfg.Validate(), "dimensions")
	})

	t.Run("zero chunk bytes", func(t *testing.T) {
		cfg := base()
		cfg.Server.ChunkBytes = 0
		assert.ErrorContains(t, cfg.Validate(), "stream_chunk_bytes")
	})
}
