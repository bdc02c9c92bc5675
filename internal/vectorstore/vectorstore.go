// Package vectorstore provides similarity search over ingested content
// chunks. The production implementation is PostgreSQL with the pgvector
// extension, using cosine distance.
package vectorstore

import (
	"context"

	"coachly/internal/core"
)

// ChunkIndex finds chunks similar to a query embedding. Chunks are written
// by the external ingestion pipeline; this interface is read-only.
type ChunkIndex interface {
	// Search returns chunks for the user whose cosine similarity to the
	// query embedding clears the threshold, ordered by similarity
	// descending. An empty result is not an error.
	Search(ctx context.Context, query SearchQuery) ([]core.Chunk, error)
}

// SearchQuery configures a chunk similarity search.
type SearchQuery struct {
	// Embedding is the query vector (1536-dim).
	Embedding []float64

	// UserID filters chunks to sources owned by this user.
	UserID string

	// Limit is the maximum number of results (default: 10).
	Limit int

	// SimilarityThreshold is the minimum cosine similarity (default: 0.7).
	SimilarityThreshold float64
}
