// Package insights provides semantic search over previously generated
// digests and feedback recording for individual insights.
package insights

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"coachly/internal/core"
	"coachly/internal/llm"
	"coachly/internal/logger"
	"coachly/internal/store"
)

// Embedder generates embeddings for search text. Satisfied by llm.Client.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float64, error)
}

// SearchRequest filters an insight search. Zero values mean no filter;
// MinFeedbackScore below zero disables the feedback filter, zero and above
// requires at least that many "helpful" feedback records per insight.
type SearchRequest struct {
	UserID           string
	Query            string
	StartDate        string // inclusive, YYYY-MM-DD
	EndDate          string // inclusive, YYYY-MM-DD
	MinFeedbackScore int
	FilterByFeedback bool
	Limit            int
}

// Search finds past insights semantically: every stored insight in range is
// embedded and compared to the query by cosine similarity.
type Search struct {
	embedder Embedder
	digests  store.DigestRepository
	feedback store.FeedbackRepository
}

// NewSearch creates an insight search over the digest and feedback stores.
func NewSearch(embedder Embedder, digests store.DigestRepository, feedback store.FeedbackRepository) *Search {
	return &Search{embedder: embedder, digests: digests, feedback: feedback}
}

// Search returns the best-matching past insights, sorted by similarity
// descending. A user with no digests gets an empty result, not an error.
func (s *Search) Search(ctx context.Context, req SearchRequest) ([]core.ScoredInsight, error) {
	if req.Limit <= 0 {
		req.Limit = 10
	}

	logger.Info("Searching past insights", "user_id", req.UserID, "query", req.Query)

	digests, err := s.digests.List(ctx, req.UserID, req.StartDate, req.EndDate)
	if err != nil {
		return nil, fmt.Errorf("failed to list digests: %w", err)
	}
	if len(digests) == 0 {
		logger.Info("No digests found for user", "user_id", req.UserID)
		return nil, nil
	}

	var candidates []core.ScoredInsight
	for _, digest := range digests {
		for _, insight := range digest.Insights {
			candidates = append(candidates, core.ScoredInsight{
				Insight:    insight,
				DigestDate: digest.Date,
			})
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	queryEmbedding, err := s.embedder.GenerateEmbedding(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	for i := range candidates {
		text := candidates[i].Title + " " + candidates[i].Explanation + " " + candidates[i].PracticalTakeaway
		embedding, err := s.embedder.GenerateEmbedding(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed insight %s: %w", candidates[i].ID, err)
		}
		candidates[i].SearchScore = llm.CosineSimilarity(queryEmbedding, embedding)
	}

	if req.FilterByFeedback {
		filtered := candidates[:0]
		for _, candidate := range candidates {
			helpful, err := s.feedback.CountHelpful(ctx, candidate.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to count feedback for insight %s: %w", candidate.ID, err)
			}
			if helpful >= req.MinFeedbackScore {
				filtered = append(filtered, candidate)
			}
		}
		candidates = filtered
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].SearchScore > candidates[j].SearchScore
	})

	if len(candidates) > req.Limit {
		candidates = candidates[:req.Limit]
	}

	logger.Info("Insight search complete", "results", len(candidates))
	return candidates, nil
}

// RecordFeedback appends a feedback record for an insight, assigning an ID
// and timestamp if missing.
func (s *Search) RecordFeedback(ctx context.Context, feedback *core.Feedback) error {
	if feedback.InsightID == "" {
		return fmt.Errorf("insight_id is required")
	}
	if feedback.ID == "" {
		feedback.ID = uuid.New().String()
	}
	if feedback.CreatedAt.IsZero() {
		feedback.CreatedAt = time.Now().UTC()
	}
	if err := s.feedback.Record(ctx, feedback); err != nil {
		return fmt.Errorf("failed to record feedback: %w", err)
	}
	return nil
}
