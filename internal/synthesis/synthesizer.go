package synthesis

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"coachly/internal/core"
	"coachly/internal/llm"
	"coachly/internal/logger"
)

// ErrParse indicates the model's response contained no parseable JSON object.
var ErrParse = errors.New("synthesis: failed to parse JSON from model response")

// TextGenerator generates text from a prompt. Satisfied by llm.Client.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string, options llm.GenerateOptions) (string, error)
	ModelName() string
}

// Metadata describes one synthesis attempt.
type Metadata struct {
	NumChunksUsed int       `json:"num_chunks_used"`
	Model         string    `json:"model,omitempty"`
	Temperature   float32   `json:"temperature,omitempty"`
	GeneratedAt   time.Time `json:"generated_at"`
	Query         string    `json:"query,omitempty"`
	Error         string    `json:"error,omitempty"`
}

// Output is the result of one synthesis attempt. The insights slice is empty
// when there was nothing to synthesize or the attempt failed; Metadata.Error
// carries the reason.
type Output struct {
	Insights []core.Insight `json:"insights"`
	Metadata Metadata       `json:"metadata"`
}

// Request carries everything one synthesis attempt needs.
type Request struct {
	Chunks          []core.RankedChunk
	LearningContext core.LearningContext
	Query           string
	NumInsights     int
	Stricter        bool
}

// Synthesizer turns retrieved chunks into personalized learning insights via
// an LLM, requesting structured JSON and parsing it defensively.
type Synthesizer struct {
	generator   TextGenerator
	temperature float32
	maxTokens   int32
	now         func() time.Time
}

// NewSynthesizer creates a synthesizer over a text generator. Temperature is
// kept low for consistency across retries.
func NewSynthesizer(generator TextGenerator) *Synthesizer {
	return &Synthesizer{
		generator:   generator,
		temperature: 0.3,
		maxTokens:   8192,
		now:         time.Now,
	}
}

// Synthesize generates insights from the retrieved chunks. Model and parse
// failures are reported in the output metadata rather than as errors, so the
// caller can deliver a degraded digest.
func (s *Synthesizer) Synthesize(ctx context.Context, req Request) (*Output, error) {
	if req.NumInsights <= 0 {
		req.NumInsights = 7
	}

	logger.Info("Synthesizing insights",
		"num_insights", req.NumInsights,
		"num_chunks", len(req.Chunks),
		"stricter", req.Stricter)

	if len(req.Chunks) == 0 {
		logger.Warn("No chunks provided for synthesis")
		return &Output{
			Insights: nil,
			Metadata: Metadata{Error: "No content to synthesize", GeneratedAt: s.now().UTC()},
		}, nil
	}

	prompt := buildUserPrompt(buildContextText(req.Chunks), req.LearningContext, req.Query, req.NumInsights)

	response, err := s.generator.GenerateText(ctx, prompt, llm.GenerateOptions{
		SystemInstruction: buildSystemPrompt(req.Stricter),
		Temperature:       s.temperature,
		MaxTokens:         s.maxTokens,
	})
	if err != nil {
		logger.Error("Model call failed during synthesis", err)
		return &Output{
			Metadata: Metadata{Error: err.Error(), GeneratedAt: s.now().UTC()},
		}, nil
	}

	parsed, err := extractJSON(response)
	if err != nil {
		logger.Error("Failed to parse synthesis response", err, "response_prefix", truncate(response, 500))
		return &Output{
			Metadata: Metadata{Error: err.Error(), GeneratedAt: s.now().UTC()},
		}, nil
	}

	insights := s.validateAndEnrich(parsed.Insights, req.Chunks)

	logger.Info("Synthesized insights", "count", len(insights))

	return &Output{
		Insights: insights,
		Metadata: Metadata{
			NumChunksUsed: len(req.Chunks),
			Model:         s.generator.ModelName(),
			Temperature:   s.temperature,
			GeneratedAt:   s.now().UTC(),
			Query:         req.Query,
		},
	}, nil
}

type insightEnvelope struct {
	Insights []core.Insight `json:"insights"`
}

var (
	fencedJSONRe = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
)

// extractJSON tries three strategies in order: the whole response as JSON, a
// fenced code block, and finally the outermost brace span.
func extractJSON(response string) (*insightEnvelope, error) {
	var envelope insightEnvelope

	if err := json.Unmarshal([]byte(response), &envelope); err == nil {
		return &envelope, nil
	}

	if m := fencedJSONRe.FindStringSubmatch(response); m != nil {
		if err := json.Unmarshal([]byte(m[1]), &envelope); err == nil {
			return &envelope, nil
		}
	}

	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(response[start:end+1]), &envelope); err == nil {
			return &envelope, nil
		}
	}

	return nil, ErrParse
}

// validateAndEnrich drops insights missing required fields and fills in the
// pipeline-assigned metadata: ID, generation time, and the top source chunks.
func (s *Synthesizer) validateAndEnrich(insights []core.Insight, chunks []core.RankedChunk) []core.Insight {
	sourceChunks := make([]string, 0, 3)
	for _, chunk := range chunks {
		sourceChunks = append(sourceChunks, chunk.ID)
		if len(sourceChunks) == 3 {
			break
		}
	}

	var enriched []core.Insight
	for i, insight := range insights {
		if insight.Title == "" || insight.Explanation == "" ||
			insight.PracticalTakeaway == "" || insight.Source.Title == "" {
			logger.Warn("Insight missing required fields, skipping", "index", i)
			continue
		}

		insight.ID = uuid.New().String()
		insight.GeneratedAt = s.now().UTC()
		insight.Metadata.SourceChunks = sourceChunks

		enriched = append(enriched, insight)
	}
	return enriched
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
