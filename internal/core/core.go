package core

import "time"

// DifficultyLevel is the learner's self-reported skill level.
type DifficultyLevel string

const (
	DifficultyBeginner     DifficultyLevel = "beginner"
	DifficultyIntermediate DifficultyLevel = "intermediate"
	DifficultyAdvanced     DifficultyLevel = "advanced"
)

// LearningContext captures where a learner is in their program. It is owned
// by the profile store and read-only to the digest pipeline.
type LearningContext struct {
	CurrentWeek     int             `json:"current_week"`     // Week number in the program
	CurrentTopics   []string        `json:"current_topics"`   // Topics currently being studied, in order
	DifficultyLevel DifficultyLevel `json:"difficulty_level"` // beginner, intermediate, or advanced
	LearningGoals   string          `json:"learning_goals"`   // Free-text goal statement
	CompletedWeeks  []int           `json:"completed_weeks"`  // Weeks already finished
}

// DefaultLearningContext is used when a learner has no stored profile.
// Generation must degrade to this, never fail.
func DefaultLearningContext() LearningContext {
	return LearningContext{
		CurrentWeek:     1,
		CurrentTopics:   []string{"AI", "Machine Learning"},
		DifficultyLevel: DifficultyIntermediate,
		LearningGoals:   "Learn AI fundamentals",
	}
}

// Chunk is a slice of ingested content with its stored embedding. Chunks are
// produced by the external ingestion pipeline and immutable once stored.
type Chunk struct {
	ID             string    `json:"id"`              // Unique identifier for the chunk
	SourceID       string    `json:"source_id"`       // Identifier of the content source
	ContentTitle   string    `json:"content_title"`   // Title of the parent article
	ContentAuthor  string    `json:"content_author"`  // Author of the parent article
	ContentURL     string    `json:"content_url"`     // Canonical URL of the parent article
	PublishedAt    time.Time `json:"published_at"`    // Publication timestamp
	ChunkText      string    `json:"chunk_text"`      // The chunk's text content
	SourcePriority int       `json:"source_priority"` // Source priority 1-5 from source configuration
	Similarity     float64   `json:"similarity"`      // Query-time cosine similarity, not persisted
}

// RankScores breaks a chunk's hybrid score into its components.
type RankScores struct {
	Similarity float64 `json:"similarity"` // Cosine similarity to the query
	Recency    float64 `json:"recency"`    // Linear 30-day decay factor
	Priority   float64 `json:"priority"`   // Source priority normalized to 0-1
	Hybrid     float64 `json:"hybrid"`     // Weighted combination
}

// RankedChunk is a chunk with its hybrid ranking scores. It exists only
// within a single retrieval call.
type RankedChunk struct {
	Chunk
	Scores     RankScores `json:"scores"`
	FinalScore float64    `json:"final_score"`
}

// InsightSource attributes an insight to the content it was drawn from.
type InsightSource struct {
	Title         string `json:"title"`
	Author        string `json:"author"`
	URL           string `json:"url"`
	PublishedDate string `json:"published_date"`
}

// InsightMetadata carries model-reported and pipeline-assigned metadata.
type InsightMetadata struct {
	Confidence        float64  `json:"confidence"`          // Model confidence 0-1
	EstimatedReadTime int      `json:"estimated_read_time"` // Minutes
	DifficultyLevel   string   `json:"difficulty_level"`    // Difficulty the insight targets
	Tags              []string `json:"tags"`                // Topic tags
	SourceChunks      []string `json:"source_chunks"`       // IDs of chunks the insight is grounded on
}

// Insight is one synthesized educational unit. It is mutated only by ID
// assignment and enrichment immediately after parsing, immutable thereafter.
type Insight struct {
	ID                string          `json:"id"`
	Title             string          `json:"title"`
	RelevanceReason   string          `json:"relevance_reason"`
	Explanation       string          `json:"explanation"`
	PracticalTakeaway string          `json:"practical_takeaway"`
	Source            InsightSource   `json:"source"`
	Metadata          InsightMetadata `json:"metadata"`
	GeneratedAt       time.Time       `json:"generated_at"`
}

// ScoredInsight is an insight annotated with a semantic search score and the
// digest it came from. Returned by insight search only.
type ScoredInsight struct {
	Insight
	DigestDate  string  `json:"digest_date"`  // Date of the parent digest
	SearchScore float64 `json:"search_score"` // Cosine similarity to the search query
}

// QualityScores holds the three evaluation metrics for a synthesis attempt.
// Average is always the unweighted mean of the three.
type QualityScores struct {
	Faithfulness     float64 `json:"faithfulness"`
	ContextPrecision float64 `json:"context_precision"`
	ContextRecall    float64 `json:"context_recall"`
	Average          float64 `json:"average"`
}

// Quality badge values derived from the average score. The badge is display
// information only and independent of the boolean gate result.
const (
	BadgeHigh    = "high"    // average >= 0.85
	BadgeGood    = "good"    // average >= 0.70
	BadgeWarning = "warning" // below threshold or empty digest
)

// DigestMetadata summarizes how a digest was produced.
type DigestMetadata struct {
	Query           string           `json:"query,omitempty"`            // Query text used for retrieval
	LearningContext *LearningContext `json:"learning_context,omitempty"` // Context the digest was built for
	NumChunksUsed   int              `json:"num_chunks_used"`            // Chunks fed into synthesis
	NumInsights     int              `json:"num_insights"`               // Insights in the digest
	Sources         []string         `json:"sources,omitempty"`          // Distinct source IDs used
	AvgSimilarity   float64          `json:"avg_similarity"`             // Mean chunk similarity
	Error           string           `json:"error,omitempty"`            // Reason string for empty digests
}

// Digest is one generated daily digest. Exactly one digest exists per
// (user_id, date); a fresh generation replaces the stored row entirely.
type Digest struct {
	ID             string         `json:"id,omitempty"`
	UserID         string         `json:"user_id"`
	Date           string         `json:"date"` // Calendar date, YYYY-MM-DD
	Insights       []Insight      `json:"insights"`
	QualityScores  QualityScores  `json:"ragas_scores"`
	QualityBadge   string         `json:"quality_badge"`
	QualityPassed  bool           `json:"quality_passed"`
	GeneratedAt    time.Time      `json:"generated_at"`
	CacheExpiresAt time.Time      `json:"cache_expires_at"`
	Cached         bool           `json:"cached,omitempty"` // True when served from the cache window
	Metadata       DigestMetadata `json:"metadata"`
}

// Feedback is one append-only feedback record for an insight.
type Feedback struct {
	ID        string    `json:"id"`
	InsightID string    `json:"insight_id"`
	Type      string    `json:"type"` // e.g. "helpful", "not_helpful"
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
