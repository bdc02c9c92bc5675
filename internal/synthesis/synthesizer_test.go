package synthesis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"coachly/internal/core"
	"coachly/internal/llm"
)

type fakeGenerator struct {
	response   string
	err        error
	lastPrompt string
	lastOpts   llm.GenerateOptions
}

func (f *fakeGenerator) GenerateText(_ context.Context, prompt string, opts llm.GenerateOptions) (string, error) {
	f.lastPrompt = prompt
	f.lastOpts = opts
	return f.response, f.err
}

func (f *fakeGenerator) ModelName() string { return "test-model" }

const validResponse = `{
  "insights": [
    {
      "title": "Attention weights are learned similarity",
      "relevance_reason": "You are studying transformers this week.",
      "explanation": "Attention computes a weighted average over values.",
      "practical_takeaway": "Implement scaled dot-product attention from scratch.",
      "source": {
        "title": "Attention Is All You Need",
        "author": "Vaswani et al.",
        "url": "https://arxiv.org/abs/1706.03762",
        "published_date": "2017-06-12"
      },
      "metadata": {
        "confidence": 0.9,
        "estimated_read_time": 4,
        "difficulty_level": "intermediate",
        "tags": ["attention", "transformers"]
      }
    }
  ]
}`

func sampleChunks() []core.RankedChunk {
	mk := func(id string) core.RankedChunk {
		return core.RankedChunk{Chunk: core.Chunk{
			ID:           id,
			SourceID:     "src-" + id,
			ContentTitle: "Title " + id,
			ChunkText:    "text " + id,
			PublishedAt:  time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
			Similarity:   0.9,
		}}
	}
	return []core.RankedChunk{mk("c1"), mk("c2"), mk("c3"), mk("c4")}
}

func TestSynthesize(t *testing.T) {
	gen := &fakeGenerator{response: validResponse}
	s := NewSynthesizer(gen)

	out, err := s.Synthesize(context.Background(), Request{
		Chunks:          sampleChunks(),
		LearningContext: core.DefaultLearningContext(),
		Query:           "explain attention",
		NumInsights:     3,
	})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	if len(out.Insights) != 1 {
		t.Fatalf("expected 1 insight, got %d", len(out.Insights))
	}
	insight := out.Insights[0]
	if insight.ID == "" {
		t.Error("insight should be assigned an ID")
	}
	if insight.GeneratedAt.IsZero() {
		t.Error("insight should carry a generation timestamp")
	}
	if len(insight.Metadata.SourceChunks) != 3 {
		t.Errorf("expected top-3 chunk references, got %v", insight.Metadata.SourceChunks)
	}
	if insight.Metadata.SourceChunks[0] != "c1" {
		t.Errorf("expected highest-ranked chunk first, got %v", insight.Metadata.SourceChunks)
	}

	if out.Metadata.NumChunksUsed != 4 {
		t.Errorf("expected 4 chunks used, got %d", out.Metadata.NumChunksUsed)
	}
	if out.Metadata.Model != "test-model" {
		t.Errorf("unexpected model %q", out.Metadata.Model)
	}
	if out.Metadata.Error != "" {
		t.Errorf("unexpected error %q", out.Metadata.Error)
	}
}

func TestSynthesizePromptContents(t *testing.T) {
	gen := &fakeGenerator{response: validResponse}
	s := NewSynthesizer(gen)

	learningCtx := core.LearningContext{
		CurrentWeek:     7,
		CurrentTopics:   []string{"Attention Mechanisms", "Transformers"},
		DifficultyLevel: core.DifficultyIntermediate,
		LearningGoals:   "Build chatbot with RAG",
	}

	if _, err := s.Synthesize(context.Background(), Request{
		Chunks:          sampleChunks(),
		LearningContext: learningCtx,
		Query:           "explain attention",
		NumInsights:     3,
	}); err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	for _, want := range []string{
		"**Current Week**: 7",
		"**Topics**: Attention Mechanisms, Transformers",
		"Generate **3** personalized learning insights",
		"## Source 1: Title c1",
		"explain attention",
		`Make practical takeaways specific to my goal: "Build chatbot with RAG"`,
	} {
		if !strings.Contains(gen.lastPrompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}

	if gen.lastOpts.Temperature != 0.3 {
		t.Errorf("expected temperature 0.3, got %f", gen.lastOpts.Temperature)
	}
	if strings.Contains(gen.lastOpts.SystemInstruction, "STRICT MODE") {
		t.Error("strict mode should be off by default")
	}
}

func TestSynthesizeStricterPrompt(t *testing.T) {
	gen := &fakeGenerator{response: validResponse}
	s := NewSynthesizer(gen)

	if _, err := s.Synthesize(context.Background(), Request{
		Chunks:          sampleChunks(),
		LearningContext: core.DefaultLearningContext(),
		Query:           "q",
		Stricter:        true,
	}); err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if !strings.Contains(gen.lastOpts.SystemInstruction, "STRICT MODE ACTIVATED") {
		t.Error("expected strict system prompt on retry attempts")
	}
}

func TestSynthesizeNoChunks(t *testing.T) {
	gen := &fakeGenerator{response: validResponse}
	s := NewSynthesizer(gen)

	out, err := s.Synthesize(context.Background(), Request{Query: "q"})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if len(out.Insights) != 0 {
		t.Errorf("expected no insights, got %d", len(out.Insights))
	}
	if out.Metadata.Error != "No content to synthesize" {
		t.Errorf("unexpected error reason %q", out.Metadata.Error)
	}
	if gen.lastPrompt != "" {
		t.Error("model should not be called with no chunks")
	}
}

func TestSynthesizeModelErrorIsSoft(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("rate limited")}
	s := NewSynthesizer(gen)

	out, err := s.Synthesize(context.Background(), Request{
		Chunks:          sampleChunks(),
		LearningContext: core.DefaultLearningContext(),
		Query:           "q",
	})
	if err != nil {
		t.Fatalf("model errors should be reported in metadata, got: %v", err)
	}
	if len(out.Insights) != 0 {
		t.Errorf("expected no insights, got %d", len(out.Insights))
	}
	if out.Metadata.Error != "rate limited" {
		t.Errorf("unexpected error reason %q", out.Metadata.Error)
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		response string
		wantErr  bool
	}{
		{"direct", validResponse, false},
		{"fenced", "Here you go:\n```json\n" + validResponse + "\n```\nDone.", false},
		{"fenced no language", "```\n" + validResponse + "\n```", false},
		{"surrounded", "Sure! " + validResponse + " Hope that helps.", false},
		{"no json", "I cannot produce insights for this content.", true},
		{"broken json", "{\"insights\": [", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			envelope, err := extractJSON(tt.response)
			if tt.wantErr {
				if !errors.Is(err, ErrParse) {
					t.Fatalf("expected ErrParse, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("extractJSON failed: %v", err)
			}
			if len(envelope.Insights) != 1 {
				t.Errorf("expected 1 insight, got %d", len(envelope.Insights))
			}
		})
	}
}

func TestValidateAndEnrichDropsIncomplete(t *testing.T) {
	s := NewSynthesizer(&fakeGenerator{})

	insights := []core.Insight{
		{Title: "ok", Explanation: "e", PracticalTakeaway: "p", Source: core.InsightSource{Title: "s"}},
		{Title: "", Explanation: "e", PracticalTakeaway: "p", Source: core.InsightSource{Title: "s"}},
		{Title: "no source", Explanation: "e", PracticalTakeaway: "p"},
	}

	got := s.validateAndEnrich(insights, sampleChunks())
	if len(got) != 1 {
		t.Fatalf("expected 1 valid insight, got %d", len(got))
	}
	if got[0].Title != "ok" {
		t.Errorf("wrong insight kept: %s", got[0].Title)
	}
}
