package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"coachly/internal/core"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements the repositories on a local SQLite database. It is
// the local-development backend; production deployments use Postgres.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (creating if needed) a SQLite database under dataDir.
func NewSQLiteStore(dataDir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "coachly.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &SQLiteStore{db: db, path: dbPath}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) initialize() error {
	progressTable := `
	CREATE TABLE IF NOT EXISTS learning_progress (
		user_id TEXT PRIMARY KEY,
		current_week INTEGER,
		current_topics TEXT,
		difficulty_level TEXT,
		learning_goals TEXT,
		completed_weeks TEXT
	);`

	digestsTable := `
	CREATE TABLE IF NOT EXISTS generated_digests (
		id TEXT,
		user_id TEXT NOT NULL,
		digest_date TEXT NOT NULL,
		insights TEXT,
		ragas_scores TEXT,
		quality_badge TEXT,
		quality_passed INTEGER,
		generated_at DATETIME,
		cache_expires_at DATETIME,
		metadata TEXT,
		PRIMARY KEY (user_id, digest_date)
	);`

	feedbackTable := `
	CREATE TABLE IF NOT EXISTS feedback (
		id TEXT PRIMARY KEY,
		insight_id TEXT NOT NULL,
		type TEXT NOT NULL,
		comment TEXT,
		created_at DATETIME
	);`

	tables := []string{progressTable, digestsTable, feedbackTable}
	for _, table := range tables {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Ping reports database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// GetLearningContext reads the learner's profile row.
func (s *SQLiteStore) GetLearningContext(ctx context.Context, userID string) (*core.LearningContext, error) {
	query := `
	SELECT current_week, current_topics, difficulty_level, learning_goals, completed_weeks
	FROM learning_progress
	WHERE user_id = ?`

	var lc core.LearningContext
	var difficulty, topicsJSON, completedJSON string

	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&lc.CurrentWeek, &topicsJSON, &difficulty, &lc.LearningGoals, &completedJSON)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan learning context: %w", err)
	}

	lc.DifficultyLevel = core.DifficultyLevel(difficulty)
	if err := json.Unmarshal([]byte(topicsJSON), &lc.CurrentTopics); err != nil {
		return nil, fmt.Errorf("failed to unmarshal topics: %w", err)
	}
	if completedJSON != "" {
		if err := json.Unmarshal([]byte(completedJSON), &lc.CompletedWeeks); err != nil {
			return nil, fmt.Errorf("failed to unmarshal completed weeks: %w", err)
		}
	}

	return &lc, nil
}

// Upsert stores a digest, replacing any existing row for (user_id, date).
func (s *SQLiteStore) Upsert(ctx context.Context, digest *core.Digest) error {
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
	INSERT OR REPLACE INTO generated_digests
	(id, user_id, digest_date, insights, ragas_scores, quality_badge,
	 quality_passed, generated_at, cache_expires_at, metadata)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query,
		digest.ID,
		digest.UserID,
		digest.Date,
		string(insightsJSON),
		string(scoresJSON),
		digest.QualityBadge,
		digest.QualityPassed,
		digest.GeneratedAt,
		digest.CacheExpiresAt,
		string(metadataJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert digest: %w", err)
	}

	return nil
}

// Get returns the digest for a user and date.
func (s *SQLiteStore) Get(ctx context.Context, userID, date string) (*core.Digest, error) {
	query := `
	SELECT id, user_id, digest_date, insights, ragas_scores, quality_badge,
	       quality_passed, generated_at, cache_expires_at, metadata
	FROM generated_digests
	WHERE user_id = ? AND digest_date = ?`

	return scanSQLiteDigest(s.db.QueryRowContext(ctx, query, userID, date))
}

// GetByID returns the digest with the given ID.
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (*core.Digest, error) {
	query := `
	SELECT id, user_id, digest_date, insights, ragas_scores, quality_badge,
	       quality_passed, generated_at, cache_expires_at, metadata
	FROM generated_digests
	WHERE id = ?`

	return scanSQLiteDigest(s.db.QueryRowContext(ctx, query, id))
}

// List returns the user's digests inside the inclusive date range, most
// recent first.
func (s *SQLiteStore) List(ctx context.Context, userID, startDate, endDate string) ([]core.Digest, error) {
	query := `
	SELECT id, user_id, digest_date, insights, ragas_scores, quality_badge,
	       quality_passed, generated_at, cache_expires_at, metadata
	FROM generated_digests
	WHERE user_id = ?
	  AND (? = '' OR digest_date >= ?)
	  AND (? = '' OR digest_date <= ?)
	ORDER BY digest_date DESC`

	rows, err := s.db.QueryContext(ctx, query, userID, startDate, startDate, endDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("failed to list digests: %w", err)
	}
	defer rows.Close()

	var digests []core.Digest
	for rows.Next() {
		digest, err := scanSQLiteDigest(rows)
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
func (s *SQLiteStore) Delete(ctx context.Context, userID, date string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM generated_digests WHERE user_id = ? AND digest_date = ?`,
		userID, date)
	if err != nil {
		return fmt.Errorf("failed to delete digest: %w", err)
	}
	return nil
}

// Record appends a feedback row.
func (s *SQLiteStore) Record(ctx context.Context, feedback *core.Feedback) error {
	query := `
	INSERT INTO feedback (id, insight_id, type, comment, created_at)
	VALUES (?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		feedback.ID, feedback.InsightID, feedback.Type, feedback.Comment, feedback.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record feedback: %w", err)
	}
	return nil
}

// CountHelpful counts "helpful" feedback rows for an insight.
func (s *SQLiteStore) CountHelpful(ctx context.Context, insightID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM feedback WHERE insight_id = ? AND type = 'helpful'`,
		insightID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count feedback: %w", err)
	}
	return count, nil
}

func scanSQLiteDigest(row rowScanner) (*core.Digest, error) {
	var digest core.Digest
	var insightsJSON, scoresJSON, metadataJSON string
	var passed int

	err := row.Scan(
		&digest.ID,
		&digest.UserID,
		&digest.Date,
		&insightsJSON,
		&scoresJSON,
		&digest.QualityBadge,
		&passed,
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

	digest.QualityPassed = passed != 0
	if err := json.Unmarshal([]byte(insightsJSON), &digest.Insights); err != nil {
		return nil, fmt.Errorf("failed to unmarshal insights: %w", err)
	}
	if err := json.Unmarshal([]byte(scoresJSON), &digest.QualityScores); err != nil {
		return nil, fmt.Errorf("failed to unmarshal quality scores: %w", err)
	}
	if err := json.Unmarshal([]byte(metadataJSON), &digest.Metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	return &digest, nil
}
