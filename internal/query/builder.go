package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"coachly/internal/core"
	"coachly/internal/logger"
	"coachly/internal/store"
)

// FallbackQuery is used when a learner has no stored profile and gave no
// explicit query.
const FallbackQuery = "Recent articles about AI and machine learning"

// BuiltQuery is the result of query construction: the text to embed plus the
// context it was derived from.
type BuiltQuery struct {
	Text             string                `json:"query_text"`
	LearningContext  *core.LearningContext `json:"learning_context,omitempty"`
	HasExplicitQuery bool                  `json:"has_explicit_query"`
	QueryType        string                `json:"query_type,omitempty"`
	WeekNumber       int                   `json:"week_number,omitempty"`
	Topic            string                `json:"topic,omitempty"`
	GeneratedAt      time.Time             `json:"generated_at"`
}

// Builder constructs semantic search queries from a learner's stored context.
type Builder struct {
	profiles store.ProfileRepository
}

// NewBuilder creates a query builder backed by the given profile store.
func NewBuilder(profiles store.ProfileRepository) *Builder {
	return &Builder{profiles: profiles}
}

// BuildFromContext builds the retrieval query for a learner. An explicit
// query is enhanced with context hints; otherwise the query is assembled
// entirely from the stored learning context. A missing profile never fails:
// it falls back to the explicit query or a generic one.
func (b *Builder) BuildFromContext(ctx context.Context, userID, explicitQuery string) (*BuiltQuery, error) {
	logger.Debug("Building query", "user_id", userID, "has_explicit", explicitQuery != "")

	learningCtx, err := b.profiles.GetLearningContext(ctx, userID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logger.Warn("Failed to load learning context, using fallback", "user_id", userID, "error", err)
		}
		text := explicitQuery
		if text == "" {
			text = FallbackQuery
		}
		return &BuiltQuery{
			Text:             text,
			HasExplicitQuery: explicitQuery != "",
			GeneratedAt:      time.Now().UTC(),
		}, nil
	}

	return &BuiltQuery{
		Text:             constructQueryText(learningCtx, explicitQuery),
		LearningContext:  learningCtx,
		HasExplicitQuery: explicitQuery != "",
		GeneratedAt:      time.Now().UTC(),
	}, nil
}

// BuildWeeklySummaryQuery builds the query for a weekly summary digest.
// weekNumber 0 means the learner's current week. Unlike BuildFromContext this
// requires a stored profile.
func (b *Builder) BuildWeeklySummaryQuery(ctx context.Context, userID string, weekNumber int) (*BuiltQuery, error) {
	learningCtx, err := b.profiles.GetLearningContext(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("no learning context found for user %s", userID)
		}
		return nil, fmt.Errorf("failed to load learning context: %w", err)
	}

	targetWeek := weekNumber
	if targetWeek == 0 {
		targetWeek = learningCtx.CurrentWeek
	}

	text := fmt.Sprintf(
		"Summarize the most important concepts and insights from Week %d. "+
			"Topics covered: %s. "+
			"Provide a comprehensive overview with key takeaways and learning progress.",
		targetWeek, strings.Join(learningCtx.CurrentTopics, ", "))

	return &BuiltQuery{
		Text:            text,
		LearningContext: learningCtx,
		QueryType:       "weekly_summary",
		WeekNumber:      targetWeek,
		GeneratedAt:     time.Now().UTC(),
	}, nil
}

// BuildTopicDeepDiveQuery builds the query for a deep dive into one topic.
// The difficulty level comes from the learner's profile, defaulting to
// intermediate when none is stored.
func (b *Builder) BuildTopicDeepDiveQuery(ctx context.Context, userID, topic string) (*BuiltQuery, error) {
	difficulty := core.DifficultyIntermediate

	learningCtx, err := b.profiles.GetLearningContext(ctx, userID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to load learning context: %w", err)
	}
	if learningCtx != nil && learningCtx.DifficultyLevel != "" {
		difficulty = learningCtx.DifficultyLevel
	}

	text := fmt.Sprintf(
		"Provide a comprehensive, %s-level explanation of %s. "+
			"Include: fundamental concepts, how it works, practical examples, "+
			"implementation details, common pitfalls, and real-world applications. "+
			"Focus on technical depth and actionable insights.",
		difficulty, topic)

	return &BuiltQuery{
		Text:            text,
		LearningContext: learningCtx,
		QueryType:       "deep_dive",
		Topic:           topic,
		GeneratedAt:     time.Now().UTC(),
	}, nil
}

// Suggestions generates suggested queries from a learning context: three per
// topic for the first three topics, plus two goal-based suggestions.
func Suggestions(learningCtx core.LearningContext) []string {
	var suggestions []string

	topics := learningCtx.CurrentTopics
	if len(topics) > 3 {
		topics = topics[:3]
	}
	for _, topic := range topics {
		suggestions = append(suggestions,
			fmt.Sprintf("How does %s work?", topic),
			fmt.Sprintf("Practical examples of %s", topic),
			fmt.Sprintf("Common mistakes with %s", topic),
		)
	}

	if goal := learningCtx.LearningGoals; goal != "" {
		suggestions = append(suggestions,
			fmt.Sprintf("Resources for: %s", goal),
			fmt.Sprintf("Step-by-step guide to: %s", goal),
		)
	}

	return suggestions
}

// constructQueryText assembles the query sentence by sentence. With an
// explicit query the context only adds hints; without one the entire query
// comes from the context.
func constructQueryText(learningCtx *core.LearningContext, explicitQuery string) string {
	if explicitQuery != "" {
		parts := []string{explicitQuery}

		if len(learningCtx.CurrentTopics) > 0 {
			topics := learningCtx.CurrentTopics
			if len(topics) > 3 {
				topics = topics[:3]
			}
			parts = append(parts, fmt.Sprintf(
				"Related to my current learning topics: %s.", strings.Join(topics, ", ")))
		}

		if level := learningCtx.DifficultyLevel; level != "" {
			parts = append(parts, fmt.Sprintf(
				"I'm at %s level, so provide %s-appropriate depth.", level, level))
		}

		return strings.Join(parts, " ")
	}

	var parts []string

	if learningCtx.CurrentWeek > 0 {
		parts = append(parts, fmt.Sprintf(
			"I am in Week %d of an AI bootcamp.", learningCtx.CurrentWeek))
	}

	if topics := learningCtx.CurrentTopics; len(topics) > 0 {
		if len(topics) == 1 {
			parts = append(parts, fmt.Sprintf("I am learning about %s.", topics[0]))
		} else {
			joined := strings.Join(topics[:len(topics)-1], ", ") + ", and " + topics[len(topics)-1]
			parts = append(parts, fmt.Sprintf("I am learning about %s.", joined))
		}
	}

	switch learningCtx.DifficultyLevel {
	case core.DifficultyBeginner:
		parts = append(parts, "I am a beginner, so I need foundational explanations with examples.")
	case core.DifficultyAdvanced:
		parts = append(parts, "I have advanced knowledge, so I need deep technical insights and edge cases.")
	case core.DifficultyIntermediate, "":
		parts = append(parts, "I have intermediate knowledge, so I need practical implementation details.")
	}

	if goal := learningCtx.LearningGoals; goal != "" {
		parts = append(parts, fmt.Sprintf("My goal is to: %s.", goal))
	}

	parts = append(parts,
		"Find recent articles that explain these topics with practical examples, "+
			"implementation details, and real-world applications. "+
			"Prefer technical depth over high-level overviews.")

	return strings.Join(parts, " ")
}
