package quality

import (
	"context"
	"errors"
	"strings"
	"sync"

	"coachly/internal/core"
	"coachly/internal/logger"
)

// Evaluator scores a synthesis attempt on faithfulness, context precision,
// and context recall. The three metrics run concurrently; a metric that
// cannot be computed falls back to FallbackScore so one failure never sinks
// the evaluation.
type Evaluator struct {
	minScore float64
}

// NewEvaluator creates an evaluator with the given per-metric gate
// threshold. A zero threshold uses DefaultMinScore.
func NewEvaluator(minScore float64) *Evaluator {
	if minScore == 0 {
		minScore = DefaultMinScore
	}
	return &Evaluator{minScore: minScore}
}

// MinScore returns the per-metric gate threshold.
func (e *Evaluator) MinScore() float64 { return e.minScore }

// Evaluate scores the insights against the query and retrieved chunks.
// Average is always the unweighted mean of the three metrics.
func (e *Evaluator) Evaluate(ctx context.Context, query string, insights []core.Insight, chunks []core.RankedChunk) core.QualityScores {
	logger.Info("Evaluating digest quality",
		"num_insights", len(insights),
		"num_chunks", len(chunks))

	response := formatInsights(insights)
	contexts := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		contexts = append(contexts, chunk.ChunkText)
	}

	var (
		faithfulness, precision, recall float64
		wg                              sync.WaitGroup
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		faithfulness = evaluateMetric("faithfulness", func() (float64, error) {
			if response == "" || len(contexts) == 0 {
				return 0, errors.New("empty response or contexts")
			}
			return Faithfulness(response, contexts), nil
		})
	}()
	go func() {
		defer wg.Done()
		precision = evaluateMetric("context_precision", func() (float64, error) {
			if response == "" || len(contexts) == 0 {
				return 0, errors.New("empty response or contexts")
			}
			return ContextPrecision(response, contexts), nil
		})
	}()
	go func() {
		defer wg.Done()
		recall = evaluateMetric("context_recall", func() (float64, error) {
			if query == "" || response == "" {
				return 0, errors.New("empty query or response")
			}
			return ContextRecall(query, response), nil
		})
	}()
	wg.Wait()

	scores := core.QualityScores{
		Faithfulness:     faithfulness,
		ContextPrecision: precision,
		ContextRecall:    recall,
		Average:          (faithfulness + precision + recall) / 3,
	}

	logger.Info("Quality evaluation complete",
		"faithfulness", scores.Faithfulness,
		"precision", scores.ContextPrecision,
		"recall", scores.ContextRecall,
		"average", scores.Average)

	return scores
}

// Passes reports whether every metric clears the threshold. The comparison
// is inclusive: a score exactly at the threshold passes.
func (e *Evaluator) Passes(scores core.QualityScores) bool {
	for _, m := range []struct {
		name  string
		score float64
	}{
		{"faithfulness", scores.Faithfulness},
		{"context_precision", scores.ContextPrecision},
		{"context_recall", scores.ContextRecall},
	} {
		if m.score < e.minScore {
			logger.Info("Failed quality gate", "metric", m.name, "score", m.score, "min_score", e.minScore)
			return false
		}
	}
	return true
}

// PlaceholderScores is used when evaluation is unavailable entirely.
func PlaceholderScores() core.QualityScores {
	return core.QualityScores{
		Faithfulness:     FallbackScore,
		ContextPrecision: FallbackScore,
		ContextRecall:    FallbackScore,
		Average:          FallbackScore,
	}
}

// BadgeFor maps an average score to its display badge.
func BadgeFor(average float64) string {
	switch {
	case average >= 0.85:
		return core.BadgeHigh
	case average >= 0.70:
		return core.BadgeGood
	default:
		return core.BadgeWarning
	}
}

func evaluateMetric(name string, fn func() (float64, error)) (score float64) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("Metric evaluation panicked, using fallback", "metric", name, "panic", r)
			score = FallbackScore
		}
	}()
	score, err := fn()
	if err != nil {
		logger.Warn("Metric evaluation failed, using fallback", "metric", name, "error", err)
		return FallbackScore
	}
	return score
}

// formatInsights concatenates insight titles and explanations into the
// single response text the metrics run against.
func formatInsights(insights []core.Insight) string {
	parts := make([]string, 0, len(insights))
	for _, insight := range insights {
		parts = append(parts, insight.Title+"\n\n"+insight.Explanation)
	}
	return strings.Join(parts, "\n\n---\n\n")
}
