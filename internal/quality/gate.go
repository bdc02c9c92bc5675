package quality

import (
	"context"
	"fmt"

	"coachly/internal/core"
	"coachly/internal/logger"
	"coachly/internal/synthesis"
)

// Resynthesizer regenerates insights for a retry attempt. Satisfied by
// synthesis.Synthesizer.
type Resynthesizer interface {
	Synthesize(ctx context.Context, req synthesis.Request) (*synthesis.Output, error)
}

// GateResult is the outcome of applying the quality gate: the insights to
// deliver, their scores, and whether they cleared the gate. Passed false
// still delivers; the caller marks the digest with a warning badge.
type GateResult struct {
	Insights []core.Insight
	Scores   core.QualityScores
	Passed   bool
	Attempts int
}

// Gate evaluates synthesized insights and retries synthesis in strict mode
// a bounded number of times when they fail the quality bar.
type Gate struct {
	evaluator  *Evaluator
	maxRetries int
}

// NewGate creates a quality gate allowing maxRetries regeneration attempts
// after the initial one.
func NewGate(evaluator *Evaluator, maxRetries int) *Gate {
	return &Gate{evaluator: evaluator, maxRetries: maxRetries}
}

// Apply evaluates the insights and, on failure, asks the synthesizer for a
// stricter regeneration, up to maxRetries times. The last attempt's insights
// and scores are returned even when the gate never passes.
func (g *Gate) Apply(
	ctx context.Context,
	query string,
	insights []core.Insight,
	chunks []core.RankedChunk,
	resynth Resynthesizer,
	learningCtx core.LearningContext,
) (*GateResult, error) {
	for attempt := 0; ; attempt++ {
		scores := g.evaluator.Evaluate(ctx, query, insights, chunks)

		if g.evaluator.Passes(scores) {
			logger.Info("Quality gate passed", "attempt", attempt+1)
			return &GateResult{Insights: insights, Scores: scores, Passed: true, Attempts: attempt + 1}, nil
		}

		if attempt >= g.maxRetries {
			logger.Warn("Quality gate failed after all attempts, delivering with warning",
				"attempts", attempt+1)
			return &GateResult{Insights: insights, Scores: scores, Passed: false, Attempts: attempt + 1}, nil
		}

		logger.Warn("Quality gate failed, retrying with stricter synthesis",
			"attempt", attempt+1, "max_attempts", g.maxRetries+1)

		out, err := resynth.Synthesize(ctx, synthesis.Request{
			Chunks:          chunks,
			LearningContext: learningCtx,
			Query:           query,
			NumInsights:     len(insights),
			Stricter:        true,
		})
		if err != nil {
			return nil, fmt.Errorf("strict resynthesis failed: %w", err)
		}
		insights = out.Insights
	}
}
