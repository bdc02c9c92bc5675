package vectorstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"coachly/internal/core"

	_ "github.com/lib/pq" // Postgres driver
)

// PgVectorIndex implements ChunkIndex using PostgreSQL with the pgvector
// extension. Similarity is cosine (1 - the <=> distance operator).
type PgVectorIndex struct {
	db *sql.DB
}

// NewPgVectorIndex creates a pgvector-backed chunk index on an existing
// connection pool.
func NewPgVectorIndex(db *sql.DB) *PgVectorIndex {
	return &PgVectorIndex{db: db}
}

// Search returns the user's chunks above the similarity threshold, joined
// with their source configuration for priority scoring.
func (p *PgVectorIndex) Search(ctx context.Context, query SearchQuery) ([]core.Chunk, error) {
	if query.Limit == 0 {
		query.Limit = 10
	}
	if query.SimilarityThreshold == 0 {
		query.SimilarityThreshold = 0.7
	}

	vectorStr := formatVector(query.Embedding)

	sqlQuery := `
		SELECT
			c.id,
			c.source_id,
			c.content_title,
			c.content_author,
			c.content_url,
			c.published_at,
			c.chunk_text,
			s.priority,
			1 - (c.embedding <=> $1::vector) AS similarity
		FROM content_chunks c
		INNER JOIN sources s ON c.source_id = s.id
		WHERE s.user_id = $2
		  AND c.embedding IS NOT NULL
		  AND 1 - (c.embedding <=> $1::vector) >= $3
		ORDER BY c.embedding <=> $1::vector
		LIMIT $4
	`

	rows, err := p.db.QueryContext(ctx, sqlQuery,
		vectorStr, query.UserID, query.SimilarityThreshold, query.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	defer rows.Close()

	var chunks []core.Chunk
	for rows.Next() {
		var chunk core.Chunk
		if err := rows.Scan(
			&chunk.ID,
			&chunk.SourceID,
			&chunk.ContentTitle,
			&chunk.ContentAuthor,
			&chunk.ContentURL,
			&chunk.PublishedAt,
			&chunk.ChunkText,
			&chunk.SourcePriority,
			&chunk.Similarity,
		); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		chunks = append(chunks, chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return chunks, nil
}

// CreateIndex creates an HNSW index on the chunk embeddings. Call after bulk
// ingestion; a no-op when the index already exists.
func (p *PgVectorIndex) CreateIndex(ctx context.Context) error {
	var exists bool
	checkQuery := `
		SELECT EXISTS (
			SELECT 1 FROM pg_indexes
			WHERE tablename = 'content_chunks'
			AND indexname = 'idx_content_chunks_embedding_hnsw'
		)
	`
	if err := p.db.QueryRowContext(ctx, checkQuery).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check index existence: %w", err)
	}

	if exists {
		return nil
	}

	indexQuery := `
		CREATE INDEX idx_content_chunks_embedding_hnsw
		ON content_chunks
		USING hnsw (embedding vector_cosine_ops)
		WITH (m = 16, ef_construction = 64)
	`
	if _, err := p.db.ExecContext(ctx, indexQuery); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

// formatVector converts []float64 to the pgvector text format.
// Example: [0.1, 0.2, 0.3] -> "[0.1,0.2,0.3]"
func formatVector(embedding []float64) string {
	if len(embedding) == 0 {
		return "[]"
	}

	var b strings.Builder
	b.WriteByte('[')
	for i, val := range embedding {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%f", val)
	}
	b.WriteByte(']')
	return b.String()
}
