// Package digest orchestrates the full generation pipeline: query building,
// retrieval, synthesis, quality gating, and caching.
package digest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"coachly/internal/core"
	"coachly/internal/logger"
	"coachly/internal/query"
	"coachly/internal/quality"
	"coachly/internal/store"
	"coachly/internal/synthesis"
)

// Empty-digest reasons reported in DigestMetadata.Error.
const (
	ReasonNoContent     = "No relevant content found"
	ReasonNoSynthesizer = "Synthesis backend not configured. Set GEMINI_API_KEY to enable digest generation."
	ReasonNoInsights    = "Failed to generate insights"
)

const (
	maxInsightsCap     = 10
	defaultMaxInsights = 7
	defaultCacheTTL    = 6 * time.Hour
)

// Request holds the parameters for one digest generation.
type Request struct {
	UserID        string
	Date          string // YYYY-MM-DD
	MaxInsights   int
	ForceRefresh  bool
	ExplicitQuery string
}

// Retriever is the retrieval stage. Satisfied by retrieval.Retriever.
type Retriever interface {
	Retrieve(ctx context.Context, queryText, userID string) ([]core.RankedChunk, error)
}

// Synthesizer is the synthesis stage. Satisfied by synthesis.Synthesizer.
// A nil Synthesizer on the Generator means the backend is unconfigured and
// generation degrades to an empty digest with a configuration reason.
type Synthesizer interface {
	Synthesize(ctx context.Context, req synthesis.Request) (*synthesis.Output, error)
}

// Generator produces personalized daily digests. Every stage failure after
// retrieval degrades to an empty digest rather than an error: the only hard
// errors are query construction and retrieval infrastructure failures.
type Generator struct {
	queries     *query.Builder
	retriever   Retriever
	synthesizer Synthesizer
	gate        *quality.Gate
	digests     store.DigestRepository
	clock       store.Clock
	maxInsights int
	cacheTTL    time.Duration
}

// Options tunes a Generator. Zero values fall back to defaults.
type Options struct {
	MaxInsights int
	CacheTTL    time.Duration
	Clock       store.Clock
}

// NewGenerator wires the pipeline stages together. Pass a nil synthesizer
// when no generation backend is configured.
func NewGenerator(
	queries *query.Builder,
	retriever Retriever,
	synthesizer Synthesizer,
	gate *quality.Gate,
	digests store.DigestRepository,
	opts Options,
) *Generator {
	if opts.MaxInsights <= 0 {
		opts.MaxInsights = defaultMaxInsights
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = defaultCacheTTL
	}
	if opts.Clock == nil {
		opts.Clock = store.SystemClock{}
	}
	return &Generator{
		queries:     queries,
		retriever:   retriever,
		synthesizer: synthesizer,
		gate:        gate,
		digests:     digests,
		maxInsights: opts.MaxInsights,
		cacheTTL:    opts.CacheTTL,
		clock:       opts.Clock,
	}
}

// Generate produces the digest for a user and date. A cached digest inside
// its expiry window is returned as-is unless ForceRefresh is set.
func (g *Generator) Generate(ctx context.Context, req Request) (*core.Digest, error) {
	if req.Date == "" {
		req.Date = g.clock.Now().Format("2006-01-02")
	}
	if req.MaxInsights <= 0 {
		req.MaxInsights = g.maxInsights
	}
	if req.MaxInsights > maxInsightsCap {
		req.MaxInsights = maxInsightsCap
	}

	logger.Info("Generating digest", "user_id", req.UserID, "date", req.Date)

	if !req.ForceRefresh {
		if cached := g.cachedDigest(ctx, req.UserID, req.Date); cached != nil {
			logger.Info("Returning cached digest", "user_id", req.UserID, "date", req.Date)
			return cached, nil
		}
	}

	built, err := g.queries.BuildFromContext(ctx, req.UserID, req.ExplicitQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	learningCtx := core.DefaultLearningContext()
	if built.LearningContext != nil {
		learningCtx = *built.LearningContext
	} else {
		logger.Warn("No learning context, using defaults", "user_id", req.UserID)
	}

	chunks, err := g.retriever.Retrieve(ctx, built.Text, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}
	if len(chunks) == 0 {
		logger.Warn("No chunks retrieved, returning empty digest", "user_id", req.UserID)
		empty := g.emptyDigest(req.UserID, req.Date, ReasonNoContent)
		// Persisted so repeat calls inside the cache window skip retrieval.
		empty.ID = uuid.NewString()
		empty.CacheExpiresAt = empty.GeneratedAt.Add(g.cacheTTL)
		if err := g.digests.Upsert(ctx, empty); err != nil {
			logger.Error("Failed to store empty digest", err, "user_id", req.UserID, "date", req.Date)
		}
		return empty, nil
	}

	if g.synthesizer == nil {
		logger.Error("Synthesis backend not configured", errors.New(ReasonNoSynthesizer))
		return g.emptyDigest(req.UserID, req.Date, ReasonNoSynthesizer), nil
	}

	out, err := g.synthesizer.Synthesize(ctx, synthesis.Request{
		Chunks:          chunks,
		LearningContext: learningCtx,
		Query:           built.Text,
		NumInsights:     req.MaxInsights,
	})
	if err != nil {
		return nil, fmt.Errorf("synthesis failed: %w", err)
	}
	if len(out.Insights) == 0 {
		logger.Warn("No insights generated, returning empty digest",
			"user_id", req.UserID, "reason", out.Metadata.Error)
		return g.emptyDigest(req.UserID, req.Date, ReasonNoInsights), nil
	}

	gated, err := g.gate.Apply(ctx, built.Text, out.Insights, chunks, g.synthesizer, learningCtx)
	if err != nil {
		return nil, fmt.Errorf("quality gate failed: %w", err)
	}

	now := g.clock.Now()
	digest := &core.Digest{
		ID:             uuid.NewString(),
		UserID:         req.UserID,
		Date:           req.Date,
		Insights:       gated.Insights,
		QualityScores:  gated.Scores,
		QualityBadge:   quality.BadgeFor(gated.Scores.Average),
		QualityPassed:  gated.Passed,
		GeneratedAt:    now,
		CacheExpiresAt: now.Add(g.cacheTTL),
		Metadata: core.DigestMetadata{
			Query:           built.Text,
			LearningContext: &learningCtx,
			NumChunksUsed:   len(chunks),
			NumInsights:     len(gated.Insights),
			Sources:         sourceIDs(chunks),
			AvgSimilarity:   avgSimilarity(chunks),
		},
	}

	// Persistence failures are non-critical: the digest is still delivered.
	if err := g.digests.Upsert(ctx, digest); err != nil {
		logger.Error("Failed to store digest", err, "user_id", req.UserID, "date", req.Date)
	}

	logger.Info("Digest generated",
		"user_id", req.UserID,
		"num_insights", len(digest.Insights),
		"quality_badge", digest.QualityBadge)

	return digest, nil
}

// cachedDigest returns the stored digest when it exists and its cache window
// has not expired. Lookup errors are treated as a cache miss.
func (g *Generator) cachedDigest(ctx context.Context, userID, date string) *core.Digest {
	stored, err := g.digests.Get(ctx, userID, date)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logger.Debug("Cache lookup failed", "error", err)
		}
		return nil
	}
	if !stored.CacheExpiresAt.IsZero() && g.clock.Now().After(stored.CacheExpiresAt) {
		logger.Debug("Cached digest expired", "user_id", userID, "date", date)
		return nil
	}

	stored.Cached = true
	stored.QualityBadge = quality.BadgeFor(stored.QualityScores.Average)
	return stored
}

// emptyDigest builds the degraded digest delivered when a stage produced
// nothing. The no-content variant is persisted by its caller with a cache
// window; configuration and synthesis failures are not, so the next request
// retries generation.
func (g *Generator) emptyDigest(userID, date, reason string) *core.Digest {
	return &core.Digest{
		UserID:       userID,
		Date:         date,
		Insights:     []core.Insight{},
		QualityBadge: core.BadgeWarning,
		GeneratedAt:  g.clock.Now(),
		Metadata: core.DigestMetadata{
			Error:       reason,
			NumInsights: 0,
		},
	}
}

func sourceIDs(chunks []core.RankedChunk) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, c := range chunks {
		if !seen[c.SourceID] {
			seen[c.SourceID] = true
			ids = append(ids, c.SourceID)
		}
	}
	return ids
}

func avgSimilarity(chunks []core.RankedChunk) float64 {
	if len(chunks) == 0 {
		return 0
	}
	var sum float64
	for _, c := range chunks {
		sum += c.Similarity
	}
	return sum / float64(len(chunks))
}
