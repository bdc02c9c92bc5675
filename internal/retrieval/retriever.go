package retrieval

import (
	"context"
	"fmt"
	"sort"
	"time"

	"coachly/internal/config"
	"coachly/internal/core"
	"coachly/internal/logger"
	"coachly/internal/vectorstore"
)

// Embedder generates embeddings for query text. Satisfied by llm.Client.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float64, error)
}

// Result is the outcome of a context-aware retrieval: the chunks plus
// metadata describing how they were found.
type Result struct {
	Chunks          []core.RankedChunk    `json:"chunks"`
	Query           string                `json:"query"`
	LearningContext *core.LearningContext `json:"learning_context,omitempty"`
	RetrievedAt     time.Time             `json:"retrieved_at"`
	TotalChunks     int                   `json:"total_chunks"`
	Sources         []string              `json:"sources"`
	AvgSimilarity   float64               `json:"avg_similarity"`
}

// Retriever finds relevant chunks for a query using vector similarity,
// then re-ranks with recency and source priority and diversifies sources.
type Retriever struct {
	embedder Embedder
	index    vectorstore.ChunkIndex
	cfg      config.Retrieval
	now      func() time.Time
}

// NewRetriever creates a retriever over the given embedder and chunk index.
func NewRetriever(embedder Embedder, index vectorstore.ChunkIndex, cfg config.Retrieval) *Retriever {
	return &Retriever{
		embedder: embedder,
		index:    index,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Retrieve returns up to cfg.TopK chunks for the query, ranked by the hybrid
// score and diversified across sources. An empty result is not an error:
// it means nothing cleared the similarity threshold.
func (r *Retriever) Retrieve(ctx context.Context, queryText, userID string) ([]core.RankedChunk, error) {
	logger.Info("Retrieving chunks", "user_id", userID, "query_len", len(queryText))

	embedding, err := r.embedder.GenerateEmbedding(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	// Over-fetch so re-ranking and diversification have room to work.
	candidates, err := r.index.Search(ctx, vectorstore.SearchQuery{
		Embedding:           embedding,
		UserID:              userID,
		Limit:               r.cfg.TopK * 2,
		SimilarityThreshold: r.cfg.SimilarityThreshold,
	})
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	if len(candidates) == 0 {
		logger.Warn("No chunks found above similarity threshold", "user_id", userID)
		return nil, nil
	}

	ranked := r.rank(candidates)
	diverse := diversify(ranked, r.cfg.MinSources, r.cfg.TopK)

	logger.Info("Retrieved chunks",
		"count", len(diverse),
		"sources", len(distinctSources(diverse)))

	return diverse, nil
}

// RetrieveWithContext wraps Retrieve and reports the query, source set, and
// average similarity alongside the chunks.
func (r *Retriever) RetrieveWithContext(ctx context.Context, queryText, userID string, learningCtx *core.LearningContext) (*Result, error) {
	chunks, err := r.Retrieve(ctx, queryText, userID)
	if err != nil {
		return nil, err
	}

	var avgSim float64
	for _, c := range chunks {
		avgSim += c.Similarity
	}
	if len(chunks) > 0 {
		avgSim /= float64(len(chunks))
	}

	return &Result{
		Chunks:          chunks,
		Query:           queryText,
		LearningContext: learningCtx,
		RetrievedAt:     r.now().UTC(),
		TotalChunks:     len(chunks),
		Sources:         distinctSources(chunks),
		AvgSimilarity:   avgSim,
	}, nil
}

// rank scores each chunk with the weighted combination of similarity,
// recency, and source priority, then sorts descending. The weights are not
// renormalized; they are expected to sum to 1 in configuration.
func (r *Retriever) rank(chunks []core.Chunk) []core.RankedChunk {
	now := r.now()

	ranked := make([]core.RankedChunk, 0, len(chunks))
	for _, chunk := range chunks {
		daysOld := int(now.Sub(chunk.PublishedAt).Hours() / 24)
		recency := 1 - float64(daysOld)/30 // linear decay over 30 days, whole days only
		if recency < 0 {
			recency = 0
		}

		priority := float64(chunk.SourcePriority) / 5.0

		hybrid := r.cfg.SimilarityWeight*chunk.Similarity +
			r.cfg.RecencyWeight*recency +
			r.cfg.PriorityWeight*priority

		ranked = append(ranked, core.RankedChunk{
			Chunk: chunk,
			Scores: core.RankScores{
				Similarity: chunk.Similarity,
				Recency:    recency,
				Priority:   priority,
				Hybrid:     hybrid,
			},
			FinalScore: hybrid,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].FinalScore > ranked[j].FinalScore
	})

	return ranked
}

// diversify walks the ranked list taking the first chunk from each new
// source, then backfills remaining slots with the highest-scoring chunks
// that were skipped.
func diversify(chunks []core.RankedChunk, minSources, topK int) []core.RankedChunk {
	if len(chunks) == 0 {
		return nil
	}

	seen := make(map[string]bool)
	diverse := make([]core.RankedChunk, 0, topK)
	var remaining []core.RankedChunk

	for _, chunk := range chunks {
		if !seen[chunk.SourceID] {
			diverse = append(diverse, chunk)
			seen[chunk.SourceID] = true
			if len(seen) >= minSources && len(diverse) >= topK {
				break
			}
		} else {
			remaining = append(remaining, chunk)
		}
	}

	if len(diverse) < topK {
		needed := topK - len(diverse)
		if needed > len(remaining) {
			needed = len(remaining)
		}
		diverse = append(diverse, remaining[:needed]...)
	}

	if len(diverse) > topK {
		diverse = diverse[:topK]
	}
	return diverse
}

func distinctSources(chunks []core.RankedChunk) []string {
	seen := make(map[string]bool)
	var sources []string
	for _, c := range chunks {
		if !seen[c.SourceID] {
			seen[c.SourceID] = true
			sources = append(sources, c.SourceID)
		}
	}
	return sources
}
