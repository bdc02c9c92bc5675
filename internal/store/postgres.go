package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"coachly/internal/core"

	"github.com/lib/pq"
)

// PostgresStore implements the repositories on PostgreSQL. It shares the
// connection pool with the pgvector chunk index.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a PostgreSQL connection pool and verifies it.
func NewPostgresStore(connectionString string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreWithDB wraps an existing connection pool. Used when the
// chunk index and the store share one pool.
func NewPostgresStoreWithDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// DB exposes the underlying pool for the pgvector chunk index.
func (s *PostgresStore) DB() *sql.DB { return s.db }

// Close closes the connection pool.
func (s *PostgresStore) Close() error { return s.db.Close() }

// Ping reports database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// GetLearningContext reads the learner's profile row.
func (s *PostgresStore) GetLearningContext(ctx context.Context, userID string) (*core.LearningContext, error) {
	query := `
		SELECT current_week, current_topics, difficulty_level, learning_goals, completed_weeks
		FROM learning_progress
		WHERE user_id = $1
	`
	row := s.db.QueryRowContext(ctx, query, userID)

	var lc core.LearningContext
	var difficulty string
	var topics pq.StringArray
	var completed pq.Int64Array

	err := row.Scan(&lc.CurrentWeek, &topics, &difficulty, &lc.LearningGoals, &completed)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan learning context: %w", err)
	}

	lc.CurrentTopics = []string(topics)
	lc.DifficultyLevel = core.DifficultyLevel(difficulty)
	lc.CompletedWeeks = make([]int, len(completed))
	for i, week := range completed {
		lc.CompletedWeeks[i] = int(week)
	}

	return &lc, nil
}

// Upsert stores a digest, replacing any existing row for (user_id, date).
func (s *PostgresStore) Upsert(ctx context.Context, digest *core.Digest) error {
	insightsJSON, err := json.Marshal(digest.Insights)
	if err != nil {
		return fmt.Errorf("failed to marshal insights: %w", err)
	}
	scoresJSON, err := json.Marshal(digest.QualityScores)
	if err != nil {
		return fmt.Errorf("failed to marshal quality scores: %w", err)
	}
	metadataJSON, err := json.Marshal(digest.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO generated_digests (
			id, user_id, digest_date, insights, ragas_scores, quality_badge,
			quality_passed, generated_at, cache_expires_at, metadata
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id, digest_date)
		DO UPDATE SET
			id = EXCLUDED.id,
			insights = EXCLUDED.insights,
			ragas_scores = EXCLUDED.ragas_scores,
			quality_badge = EXCLUDED.quality_badge,
			quality_passed = EXCLUDED.quality_passed,
			generated_at = EXCLUDED.generated_at,
			cache_expires_at = EXCLUDED.cache_expires_at,
			metadata = EXCLUDED.metadata
	`
	_, err = s.db.ExecContext(ctx, query,
		digest.ID,
		digest.UserID,
		digest.Date,
		insightsJSON,
		scoresJSON,
		digest.QualityBadge,
		digest.QualityPassed,
		digest.GeneratedAt,
		digest.CacheExpiresAt,
		metadataJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert digest: %w", err)
	}

	return nil
}

// Get returns the digest for a user and date.
func (s *PostgresStore) Get(ctx context.Context, userID, date string) (*core.Digest, error) {
	query := `
		SELECT id, user_id, digest_date, insights, ragas_scores, quality_badge,
		       quality_passed, generated_at, cache_expires_at, metadata
		FROM generated_digests
		WHERE user_id = $1 AND digest_date = $2
	`
	return s.scanDigest(s.db.QueryRowContext(ctx, query, userID, date))
}

// GetByID returns the digest with the given ID.
func (s *PostgresStore) GetByID(ctx context.Context, id string) (*core.Digest, error) {
	query := `
		SELECT id, user_id, digest_date, insights, ragas_scores, quality_badge,
		       quality_passed, generated_at, cache_expires_at, metadata
		FROM generated_digests
		WHERE id = $1
	`
	return s.scanDigest(s.db.QueryRowContext(ctx, query, id))
}

// List returns the user's digests inside the inclusive date range, most
// recent first.
func (s *PostgresStore) List(ctx context.Context, userID, startDate, endDate string) ([]core.Digest, error) {
	query := `
		SELECT id, user_id, digest_date, insights, ragas_scores, quality_badge,
		       quality_passed, generated_at, cache_expires_at, metadata
		FROM generated_digests
		WHERE user_id = $1
		  AND ($2 = '' OR digest_date >= $2)
		  AND ($3 = '' OR digest_date <= $3)
		ORDER BY digest_date DESC
	`
	rows, err := s.db.QueryContext(ctx, query, userID, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("failed to list digests: %w", err)
	}
	defer rows.Close()

	var digests []core.Digest
	for rows.Next() {
		digest, err := s.scanDigest(rows)
		if err != nil {
			return nil, err
		}
		digests = append(digests, *digest)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return digests, nil
}

// Delete removes the digest for a user and date.
func (s *PostgresStore) Delete(ctx context.Context, userID, date string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM generated_digests WHERE user_id = $1 AND digest_date = $2`,
		userID, date)
	if err != nil {
		return fmt.Errorf("failed to delete digest: %w", err)
	}
	return nil
}

// Record appends a feedback row.
func (s *PostgresStore) Record(ctx context.Context, feedback *core.Feedback) error {
	query := `
		INSERT INTO feedback (id, insight_id, type, comment, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.ExecContext(ctx, query,
		feedback.ID, feedback.InsightID, feedback.Type, feedback.Comment, feedback.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record feedback: %w", err)
	}
	return nil
}

// CountHelpful counts "helpful" feedback rows for an insight.
func (s *PostgresStore) CountHelpful(ctx context.Context, insightID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM feedback WHERE insight_id = $1 AND type = 'helpful'`,
		insightID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count feedback: %w", err)
	}
	return count, nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *PostgresStore) scanDigest(row rowScanner) (*core.Digest, error) {
	var digest core.Digest
	var insightsJSON, scoresJSON, metadataJSON []byte

	err := row.Scan(
		&digest.ID,
		&digest.UserID,
		&digest.Date,
		&insightsJSON,
		&scoresJSON,
		&digest.QualityBadge,
		&digest.QualityPassed,
		&digest.GeneratedAt,
		&digest.CacheExpiresAt,
		&metadataJSON,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan digest: %w", err)
	}

	if err := json.Unmarshal(insightsJSON, &digest.Insights); err != nil {
		return nil, fmt.Errorf("failed to unmarshal insights: %w", err)
	}
	if err := json.Unmarshal(scoresJSON, &digest.QualityScores); err != nil {
		return nil, fmt.Errorf("failed to unmarshal quality scores: %w", err)
	}
	if err := json.Unmarshal(metadataJSON, &digest.Metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	return &digest, nil
}
