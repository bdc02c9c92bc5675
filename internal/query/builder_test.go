package query

import (
	"context"
	"strings"
	"testing"

	"coachly/internal/core"
	"coachly/internal/store"
)

type fakeProfiles struct {
	ctx *core.LearningContext
	err error
}

func (f *fakeProfiles) GetLearningContext(_ context.Context, _ string) (*core.LearningContext, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.ctx, nil
}

func testContext() *core.LearningContext {
	return &core.LearningContext{
		CurrentWeek:     3,
		CurrentTopics:   []string{"Transformers", "Attention", "Fine-tuning"},
		DifficultyLevel: core.DifficultyIntermediate,
		LearningGoals:   "Build an LLM application",
	}
}

func TestBuildFromContext(t *testing.T) {
	b := NewBuilder(&fakeProfiles{ctx: testContext()})

	result, err := b.BuildFromContext(context.Background(), "user-1", "")
	if err != nil {
		t.Fatalf("BuildFromContext failed: %v", err)
	}

	for _, want := range []string{
		"I am in Week 3 of an AI bootcamp.",
		"I am learning about Transformers, Attention, and Fine-tuning.",
		"I have intermediate knowledge, so I need practical implementation details.",
		"My goal is to: Build an LLM application.",
		"Prefer technical depth over high-level overviews.",
	} {
		if !strings.Contains(result.Text, want) {
			t.Errorf("query missing %q, got: %s", want, result.Text)
		}
	}
	if result.HasExplicitQuery {
		t.Error("expected HasExplicitQuery=false")
	}
	if result.LearningContext == nil {
		t.Error("expected learning context to be attached")
	}
}

func TestBuildFromContextExplicitQuery(t *testing.T) {
	b := NewBuilder(&fakeProfiles{ctx: testContext()})

	result, err := b.BuildFromContext(context.Background(), "user-1", "Explain multi-head attention")
	if err != nil {
		t.Fatalf("BuildFromContext failed: %v", err)
	}

	if !strings.HasPrefix(result.Text, "Explain multi-head attention") {
		t.Errorf("explicit query should lead, got: %s", result.Text)
	}
	if !strings.Contains(result.Text, "Related to my current learning topics: Transformers, Attention, Fine-tuning.") {
		t.Errorf("expected topic hints, got: %s", result.Text)
	}
	if !strings.Contains(result.Text, "I'm at intermediate level") {
		t.Errorf("expected difficulty hint, got: %s", result.Text)
	}
	if !result.HasExplicitQuery {
		t.Error("expected HasExplicitQuery=true")
	}
}

func TestBuildFromContextNoProfile(t *testing.T) {
	b := NewBuilder(&fakeProfiles{err: store.ErrNotFound})

	result, err := b.BuildFromContext(context.Background(), "user-1", "")
	if err != nil {
		t.Fatalf("BuildFromContext failed: %v", err)
	}
	if result.Text != FallbackQuery {
		t.Errorf("expected fallback query, got: %s", result.Text)
	}
	if result.LearningContext != nil {
		t.Error("expected nil learning context")
	}

	result, err = b.BuildFromContext(context.Background(), "user-1", "What is RAG?")
	if err != nil {
		t.Fatalf("BuildFromContext failed: %v", err)
	}
	if result.Text != "What is RAG?" {
		t.Errorf("expected explicit query unchanged, got: %s", result.Text)
	}
}

func TestBuildFromContextSingleTopic(t *testing.T) {
	ctx := testContext()
	ctx.CurrentTopics = []string{"Embeddings"}
	b := NewBuilder(&fakeProfiles{ctx: ctx})

	result, err := b.BuildFromContext(context.Background(), "user-1", "")
	if err != nil {
		t.Fatalf("BuildFromContext failed: %v", err)
	}
	if !strings.Contains(result.Text, "I am learning about Embeddings.") {
		t.Errorf("single topic should not use a list join, got: %s", result.Text)
	}
}

func TestBuildWeeklySummaryQuery(t *testing.T) {
	b := NewBuilder(&fakeProfiles{ctx: testContext()})

	result, err := b.BuildWeeklySummaryQuery(context.Background(), "user-1", 0)
	if err != nil {
		t.Fatalf("BuildWeeklySummaryQuery failed: %v", err)
	}
	if result.WeekNumber != 3 {
		t.Errorf("expected current week 3, got %d", result.WeekNumber)
	}
	if !strings.Contains(result.Text, "Week 3") {
		t.Errorf("query should mention target week, got: %s", result.Text)
	}
	if result.QueryType != "weekly_summary" {
		t.Errorf("unexpected query type %q", result.QueryType)
	}

	result, err = b.BuildWeeklySummaryQuery(context.Background(), "user-1", 5)
	if err != nil {
		t.Fatalf("BuildWeeklySummaryQuery failed: %v", err)
	}
	if result.WeekNumber != 5 || !strings.Contains(result.Text, "Week 5") {
		t.Errorf("explicit week number not honored: %+v", result)
	}
}

func TestBuildWeeklySummaryQueryNoProfile(t *testing.T) {
	b := NewBuilder(&fakeProfiles{err: store.ErrNotFound})

	if _, err := b.BuildWeeklySummaryQuery(context.Background(), "user-1", 0); err == nil {
		t.Fatal("expected error when no learning context exists")
	}
}

func TestBuildTopicDeepDiveQuery(t *testing.T) {
	b := NewBuilder(&fakeProfiles{ctx: testContext()})

	result, err := b.BuildTopicDeepDiveQuery(context.Background(), "user-1", "RAG pipelines")
	if err != nil {
		t.Fatalf("BuildTopicDeepDiveQuery failed: %v", err)
	}
	if !strings.Contains(result.Text, "intermediate-level explanation of RAG pipelines") {
		t.Errorf("unexpected deep dive query: %s", result.Text)
	}
	if result.QueryType != "deep_dive" || result.Topic != "RAG pipelines" {
		t.Errorf("unexpected query metadata: %+v", result)
	}

	// Missing profile defaults to intermediate rather than failing.
	b = NewBuilder(&fakeProfiles{err: store.ErrNotFound})
	result, err = b.BuildTopicDeepDiveQuery(context.Background(), "user-1", "Quantization")
	if err != nil {
		t.Fatalf("BuildTopicDeepDiveQuery failed: %v", err)
	}
	if !strings.Contains(result.Text, "intermediate-level explanation of Quantization") {
		t.Errorf("expected intermediate default, got: %s", result.Text)
	}
}

func TestSuggestions(t *testing.T) {
	ctx := *testContext()
	ctx.CurrentTopics = []string{"A", "B", "C", "D"}

	got := Suggestions(ctx)
	if len(got) != 11 {
		t.Fatalf("expected 9 topic + 2 goal suggestions, got %d: %v", len(got), got)
	}
	if got[0] != "How does A work?" {
		t.Errorf("unexpected first suggestion: %s", got[0])
	}
	for _, s := range got {
		if strings.Contains(s, "D") {
			t.Errorf("fourth topic should be dropped, got suggestion %q", s)
		}
	}
	if got[9] != "Resources for: Build an LLM application" {
		t.Errorf("unexpected goal suggestion: %s", got[9])
	}
}

func TestSuggestionsNoGoal(t *testing.T) {
	ctx := *testContext()
	ctx.LearningGoals = ""
	if got := Suggestions(ctx); len(got) != 9 {
		t.Fatalf("expected 9 suggestions without a goal, got %d", len(got))
	}
}
