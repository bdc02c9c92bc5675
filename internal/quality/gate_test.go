package quality

import (
	"context"
	"errors"
	"testing"

	"coachly/internal/core"
	"coachly/internal/synthesis"
)

type fakeResynth struct {
	outputs []*synthesis.Output
	err     error
	calls   int
	strict  []bool
}

func (f *fakeResynth) Synthesize(_ context.Context, req synthesis.Request) (*synthesis.Output, error) {
	f.strict = append(f.strict, req.Stricter)
	if f.err != nil {
		return nil, f.err
	}
	out := f.outputs[f.calls]
	f.calls++
	return out, nil
}

func badInsight() core.Insight {
	return core.Insight{
		Title:       "Unrelated speculation",
		Explanation: "Zebras paint bicycles underwater every Tuesday regardless of weather.",
	}
}

func TestGatePassesFirstAttempt(t *testing.T) {
	gate := NewGate(NewEvaluator(0.70), 2)
	resynth := &fakeResynth{}

	result, err := gate.Apply(context.Background(),
		"attention mechanisms in transformers",
		[]core.Insight{groundedInsight()}, groundedChunks(),
		resynth, core.DefaultLearningContext())
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if !result.Passed {
		t.Error("expected gate to pass")
	}
	if result.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", result.Attempts)
	}
	if resynth.calls != 0 {
		t.Errorf("synthesizer should not be called when gate passes, got %d calls", resynth.calls)
	}
}

func TestGateRetriesStrictThenPasses(t *testing.T) {
	gate := NewGate(NewEvaluator(0.70), 2)
	resynth := &fakeResynth{outputs: []*synthesis.Output{
		{Insights: []core.Insight{groundedInsight()}},
	}}

	result, err := gate.Apply(context.Background(),
		"attention mechanisms in transformers",
		[]core.Insight{badInsight()}, groundedChunks(),
		resynth, core.DefaultLearningContext())
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if !result.Passed {
		t.Error("expected gate to pass after retry")
	}
	if result.Attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", result.Attempts)
	}
	if resynth.calls != 1 {
		t.Errorf("expected 1 resynthesis, got %d", resynth.calls)
	}
	if len(resynth.strict) != 1 || !resynth.strict[0] {
		t.Error("retry should use strict synthesis")
	}
	if result.Insights[0].Title != groundedInsight().Title {
		t.Error("retry insights should replace the failing ones")
	}
}

func TestGateSoftFailsAfterMaxRetries(t *testing.T) {
	gate := NewGate(NewEvaluator(0.70), 2)
	resynth := &fakeResynth{outputs: []*synthesis.Output{
		{Insights: []core.Insight{badInsight()}},
		{Insights: []core.Insight{badInsight()}},
	}}

	result, err := gate.Apply(context.Background(),
		"attention mechanisms in transformers",
		[]core.Insight{badInsight()}, groundedChunks(),
		resynth, core.DefaultLearningContext())
	if err != nil {
		t.Fatalf("gate exhaustion should not be an error: %v", err)
	}

	if result.Passed {
		t.Error("expected gate to fail")
	}
	if result.Attempts != 3 {
		t.Errorf("expected 3 attempts (1 + 2 retries), got %d", result.Attempts)
	}
	if resynth.calls != 2 {
		t.Errorf("expected 2 resyntheses, got %d", resynth.calls)
	}
	if len(result.Insights) != 1 {
		t.Error("failing insights should still be delivered")
	}
}

func TestGateResynthesisError(t *testing.T) {
	gate := NewGate(NewEvaluator(0.70), 2)
	resynth := &fakeResynth{err: errors.New("model down")}

	_, err := gate.Apply(context.Background(),
		"attention mechanisms in transformers",
		[]core.Insight{badInsight()}, groundedChunks(),
		resynth, core.DefaultLearningContext())
	if err == nil {
		t.Fatal("expected resynthesis error to surface")
	}
}
