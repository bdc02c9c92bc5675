package handlers

import (
	"context"
	"fmt"

	"coachly/internal/config"
	"coachly/internal/core"
	"coachly/internal/digest"
	"coachly/internal/insights"
	"coachly/internal/llm"
	"coachly/internal/query"
	"coachly/internal/quality"
	"coachly/internal/retrieval"
	"coachly/internal/store"
	"coachly/internal/synthesis"
	"coachly/internal/vectorstore"
)

// embedder is the embedding backend shared by retrieval and insight search.
type embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float64, error)
}

// appStore is the combined persistence surface the commands wire up. Both
// the Postgres and SQLite stores satisfy it.
type appStore interface {
	store.ProfileRepository
	store.DigestRepository
	store.FeedbackRepository
	Ping(ctx context.Context) error
	Close() error
}

// app holds the fully wired pipeline for one command invocation.
type app struct {
	cfg       *config.Config
	store     appStore
	queries   *query.Builder
	generator *digest.Generator
	search    *insights.Search
}

// newApp builds the pipeline from configuration. The LLM client is optional:
// without an API key, digest generation degrades to its unconfigured path
// and embedding-backed operations return an explanatory error.
func newApp(cfg *config.Config) (*app, error) {
	var (
		st    appStore
		index vectorstore.ChunkIndex
	)

	switch cfg.Storage.Driver {
	case "postgres":
		pg, err := store.NewPostgresStore(cfg.Storage.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		st = pg
		index = vectorstore.NewPgVectorIndex(pg.DB())
	case "sqlite", "":
		sq, err := store.NewSQLiteStore(cfg.Storage.DataDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		st = sq
		index = unavailableIndex{}
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	var (
		emb         embedder = unavailableEmbedder{}
		synthesizer digest.Synthesizer
	)
	if cfg.AI.Gemini.APIKey != "" {
		client, err := llm.NewClient(cfg.AI.Gemini)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("failed to create llm client: %w", err)
		}
		emb = client
		synthesizer = synthesis.NewSynthesizer(client)
	}

	queries := query.NewBuilder(st)
	retriever := retrieval.NewRetriever(emb, index, cfg.Retrieval)
	evaluator := quality.NewEvaluator(cfg.Quality.MinScore)
	gate := quality.NewGate(evaluator, cfg.Quality.MaxRetries)

	generator := digest.NewGenerator(queries, retriever, synthesizer, gate, st, digest.Options{
		MaxInsights: cfg.Digest.MaxInsights,
		CacheTTL:    cfg.Digest.CacheTTL,
	})

	search := insights.NewSearch(emb, st, st)

	return &app{
		cfg:       cfg,
		store:     st,
		queries:   queries,
		generator: generator,
		search:    search,
	}, nil
}

// Close releases the app's resources.
func (a *app) Close() error {
	return a.store.Close()
}

// defaultUserID resolves the user for a command: an explicit flag wins,
// then the configured default.
func (a *app) defaultUserID(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return a.cfg.App.DefaultUserID
}

// unavailableIndex stands in for the chunk index when the storage driver
// has no vector search backend.
type unavailableIndex struct{}

func (unavailableIndex) Search(ctx context.Context, q vectorstore.SearchQuery) ([]core.Chunk, error) {
	return nil, fmt.Errorf("vector search requires the postgres storage driver")
}

// unavailableEmbedder stands in for the embedding backend when no API key
// is configured.
type unavailableEmbedder struct{}

func (unavailableEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float64, error) {
	return nil, fmt.Errorf("embedding requires GEMINI_API_KEY to be set")
}
