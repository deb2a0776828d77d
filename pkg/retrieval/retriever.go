// Package retrieval provides the similarity-search collaborators the agent
// pipeline pulls context passages from.
package retrieval

import "context"

// Retriever returns the k passages most similar to query, best match first.
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]string, error)
}

// Embedder turns text into an embedding vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
