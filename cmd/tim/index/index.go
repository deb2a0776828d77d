package indexcmder

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jaaabir/tim-ai/config"
	"github.com/jaaabir/tim-ai/pkg/retrieval"
)

const indexLongDesc = `Ingest portfolio passages into the local vector index.

Reads a plain-text file, splits it into passages on blank lines,
embeds each passage through the configured embedding service, and
stores the vectors in the sqlite-vec index the serve command
searches. Re-running appends; it does not deduplicate.

Examples:
  tim index --config tim.toml portfolio.txt`

type indexCommander struct {
	configPath string
}

func NewIndexCmd() *cobra.Command {
	cmder := &indexCommander{}

	cmd := &cobra.Command{
		Use:   "index <passages-file>",
		Short: "Ingest passages into the vector index",
		Long:  indexLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd, args[0])
		},
	}

	cmd.Flags().StringVarP(&cmder.configPath, "config", "c", "", "Path to TOML config file")

	return cmd
}

func (c *indexCommander) run(ctx context.Context, cmd *cobra.Command, path string) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if cfg.Retrieval.IndexPath == "" {
		return fmt.Errorf("indexing requires retrieval.index_path in the config")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("could not read passages file: %w", err)
	}

	passages := splitPassages(string(raw))
	if len(passages) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No passages to index.")
		return nil
	}

	embedder := retrieval.NewSpaceEmbedder(cfg.Retrieval.EmbedURL, cfg.Server.SecretKey)
	idx, err := retrieval.NewVecIndex(cfg.Retrieval.IndexPath, embedder, cfg.Retrieval.Dimensions)
	if err != nil {
		return fmt.Errorf("could not open index %s: %w", cfg.Retrieval.IndexPath, err)
	}
	defer idx.Close()

	for i, passage := range passages {
		if err := idx.Add(ctx, passage); err != nil {
			return fmt.Errorf("could not index passage %d: %w", i+1, err)
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d passages into %s\n", len(passages), cfg.Retrieval.IndexPath)
	return nil
}

// splitPassages splits text into blank-line separated passages.
func splitPassages(text string) []string {
	var passages []string
	for _, block := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		block = strings.TrimSpace(block)
		if block != "" {
			passages = append(passages, block)
		}
	}
	return passages
}
