package servecmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jaaabir/tim-ai/agent"
	"github.com/jaaabir/tim-ai/config"
	"github.com/jaaabir/tim-ai/pkg/history"
	"github.com/jaaabir/tim-ai/pkg/logger"
	"github.com/jaaabir/tim-ai/pkg/model"
	"github.com/jaaabir/tim-ai/pkg/retrieval"
	"github.com/jaaabir/tim-ai/server"
)

const serveLongDesc = `Run the tim chat server.

Serves the embedded web client on / and the streaming chat endpoint
on POST /chat/stream. Every POST must carry the shared secret in the
X-SECRET-KEY header.

Examples:
  tim serve --config tim.toml
  SECRET_KEY=s3cret LLM_API_KEY=gsk_... tim serve --config tim.toml`

type serveCommander struct {
	configPath string
	debug      bool
}

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the tim chat server",
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&cmder.configPath, "config", "c", "", "Path to TOML config file")
	cmd.Flags().BoolVar(&cmder.debug, "debug", false, "Enable debug logging")

	return cmd
}

func (c *serveCommander) run(ctx context.Context) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}

	log := logger.NewLogger(cfg.Debug || c.debug)
	defer log.Sync()

	store, err := newStore(cfg.History)
	if err != nil {
		return fmt.Errorf("could not open history store: %w", err)
	}
	defer store.Close()

	prompt, err := agent.LoadPrompt(cfg.Prompt.Path, cfg.Prompt.Name, cfg.Prompt.TopK, log)
	if err != nil {
		return fmt.Errorf("could not load prompt: %w", err)
	}
	defer prompt.Close()

	if cfg.Prompt.Path != "" {
		if err := prompt.Watch(); err != nil {
			log.Warn("prompt reload disabled", zap.Error(err))
		}
	}

	retriever, cleanup, err := newRetriever(cfg)
	if err != nil {
		return fmt.Errorf("could not open retriever: %w", err)
	}
	defer cleanup()

	mc := model.New(model.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	})

	ag := agent.New(store, retriever, mc, prompt, log,
		agent.WithMaxTurns(cfg.History.MaxTurns),
	)

	srv := server.New(server.Config{
		ListenAddr: cfg.Server.ListenAddr(),
		SecretKey:  cfg.Server.SecretKey,
		ChunkBytes: cfg.Server.ChunkBytes,
		ChunkDelay: cfg.Server.ChunkDelay(),
	}, ag, store, log)

	log.Info("tim chat server starting",
		zap.String("listen", cfg.Server.ListenAddr()),
		zap.String("model", cfg.LLM.Model),
		zap.Int("top_k", cfg.Prompt.TopK),
	)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run() }()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		return srv.Shutdown()
	case err := <-errCh:
		return err
	}
}

// newStore picks SQLite when a path is configured, otherwise an
// in-memory store with idle-thread eviction.
func newStore(cfg config.History) (history.Store, error) {
	if cfg.DBPath != "" {
		return history.NewSQLiteStore(cfg.DBPath)
	}
	return history.NewMemoryStore(history.WithTTL(cfg.TTL())), nil
}

// newRetriever opens the local sqlite-vec index when configured,
// otherwise delegates search to the remote service.
func newRetriever(cfg config.Config) (retrieval.Retriever, func(), error) {
	if cfg.Retrieval.IndexPath != "" {
		embedder := retrieval.NewSpaceEmbedder(cfg.Retrieval.EmbedURL, cfg.Server.SecretKey)
		idx, err := retrieval.NewVecIndex(cfg.Retrieval.IndexPath, embedder, cfg.Retrieval.Dimensions)
		if err != nil {
			return nil, nil, err
		}
		return idx, func() { idx.Close() }, nil
	}
	return retrieval.NewHTTPRetriever(cfg.Retrieval.SearchURL, cfg.Server.SecretKey), func() {}, nil
}
