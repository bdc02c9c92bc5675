package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"coachly/internal/config"
	"coachly/internal/core"
	"coachly/internal/digest"
	"coachly/internal/insights"
	"coachly/internal/query"
	"coachly/internal/quality"
	"coachly/internal/store"
	"coachly/internal/synthesis"
)

type fakePinger struct{ err error }

func (f *fakePinger) Ping(_ context.Context) error { return f.err }

type fakeProfiles struct {
	ctx *core.LearningContext
}

func (f *fakeProfiles) GetLearningContext(_ context.Context, _ string) (*core.LearningContext, error) {
	if f.ctx == nil {
		return nil, store.ErrNotFound
	}
	return f.ctx, nil
}

type fakeDigests struct {
	digests []core.Digest
	get     *core.Digest
	deleted []string
}

func (f *fakeDigests) Upsert(_ context.Context, _ *core.Digest) error { return nil }

func (f *fakeDigests) Get(_ context.Context, _, date string) (*core.Digest, error) {
	if f.get == nil {
		return nil, store.ErrNotFound
	}
	return f.get, nil
}

func (f *fakeDigests) GetByID(_ context.Context, id string) (*core.Digest, error) {
	if f.get != nil && f.get.ID == id {
		return f.get, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeDigests) List(_ context.Context, _, _, _ string) ([]core.Digest, error) {
	return f.digests, nil
}

func (f *fakeDigests) Delete(_ context.Context, _, date string) error {
	f.deleted = append(f.deleted, date)
	return nil
}

type fakeFeedback struct{ records []*core.Feedback }

func (f *fakeFeedback) Record(_ context.Context, fb *core.Feedback) error {
	f.records = append(f.records, fb)
	return nil
}

func (f *fakeFeedback) CountHelpful(_ context.Context, _ string) (int, error) { return 0, nil }

type fakeEmbedder struct{}

func (fakeEmbedder) GenerateEmbedding(_ context.Context, _ string) ([]float64, error) {
	return []float64{1, 0}, nil
}

type fakeRetriever struct{ chunks []core.RankedChunk }

func (f *fakeRetriever) Retrieve(_ context.Context, _, _ string) ([]core.RankedChunk, error) {
	return f.chunks, nil
}

type fakeSynthesizer struct{ out *synthesis.Output }

func (f *fakeSynthesizer) Synthesize(_ context.Context, _ synthesis.Request) (*synthesis.Output, error) {
	return f.out, nil
}

func newTestServer(t *testing.T, digests *fakeDigests, feedback *fakeFeedback, pinger *fakePinger) *Server {
	t.Helper()

	learningCtx := core.DefaultLearningContext()
	profiles := &fakeProfiles{ctx: &learningCtx}

	chunks := []core.RankedChunk{{Chunk: core.Chunk{
		ID:         "c1",
		SourceID:   "src-a",
		ChunkText:  "Learning AI and machine learning fundamentals with practical implementation details and examples.",
		Similarity: 0.9,
	}}}

	synth := &fakeSynthesizer{out: &synthesis.Output{Insights: []core.Insight{{
		ID:                "i1",
		Title:             "Learning AI fundamentals",
		Explanation:       "Learning AI and machine learning fundamentals needs practical implementation details and examples.",
		PracticalTakeaway: "Practice daily.",
		Source:            core.InsightSource{Title: "Guide"},
	}}}}

	generator := digest.NewGenerator(
		query.NewBuilder(profiles),
		&fakeRetriever{chunks: chunks},
		synth,
		quality.NewGate(quality.NewEvaluator(0.10), 2),
		digests,
		digest.Options{},
	)
	search := insights.NewSearch(fakeEmbedder{}, digests, feedback)

	cfg := config.Config{}
	cfg.App.DefaultUserID = "default-user"
	cfg.Server.Addr = ":0"

	return New(Deps{
		Generator: generator,
		Search:    search,
		Queries:   query.NewBuilder(profiles),
		Profiles:  profiles,
		Digests:   digests,
		Pinger:    pinger,
	}, cfg)
}

func doRequest(s *Server, method, target, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t, &fakeDigests{}, &fakeFeedback{}, &fakePinger{})

	rec := doRequest(s, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "ok" || resp.Checks["database"] != "ok" {
		t.Errorf("unexpected health response: %+v", resp)
	}
}

func TestHandleHealthUnhealthy(t *testing.T) {
	s := newTestServer(t, &fakeDigests{}, &fakeFeedback{}, &fakePinger{err: errors.New("down")})

	rec := doRequest(s, http.MethodGet, "/health", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestHandleGenerateDigest(t *testing.T) {
	s := newTestServer(t, &fakeDigests{}, &fakeFeedback{}, &fakePinger{})

	rec := doRequest(s, http.MethodPost, "/api/digests/generate",
		`{"user_id": "user-1", "date": "2025-06-15"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result core.Digest
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode digest: %v", err)
	}
	if result.Date != "2025-06-15" {
		t.Errorf("unexpected date %q", result.Date)
	}
	if len(result.Insights) != 1 {
		t.Errorf("expected 1 insight, got %d", len(result.Insights))
	}
}

func TestHandleGenerateDigestDefaultUser(t *testing.T) {
	s := newTestServer(t, &fakeDigests{}, &fakeFeedback{}, &fakePinger{})

	rec := doRequest(s, http.MethodPost, "/api/digests/generate", `{}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected default user fallback, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleGenerateDigestBadBody(t *testing.T) {
	s := newTestServer(t, &fakeDigests{}, &fakeFeedback{}, &fakePinger{})

	rec := doRequest(s, http.MethodPost, "/api/digests/generate", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleListDigests(t *testing.T) {
	digests := &fakeDigests{digests: []core.Digest{
		{UserID: "user-1", Date: "2025-06-15"},
		{UserID: "user-1", Date: "2025-06-14"},
	}}
	s := newTestServer(t, digests, &fakeFeedback{}, &fakePinger{})

	rec := doRequest(s, http.MethodGet, "/api/digests/?user_id=user-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Total int `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Total != 2 {
		t.Errorf("expected 2 digests, got %d", resp.Total)
	}
}

func TestHandleGetDigestNotFound(t *testing.T) {
	s := newTestServer(t, &fakeDigests{}, &fakeFeedback{}, &fakePinger{})

	rec := doRequest(s, http.MethodGet, "/api/digests/2025-06-15", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleGetDigestByID(t *testing.T) {
	stored := &core.Digest{ID: "digest-1", UserID: "u1", Date: "2025-06-15"}
	s := newTestServer(t, &fakeDigests{get: stored}, &fakeFeedback{}, &fakePinger{})

	rec := doRequest(s, http.MethodGet, "/api/digests/id/digest-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var got core.Digest
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.ID != "digest-1" || got.Date != "2025-06-15" {
		t.Errorf("unexpected digest: %+v", got)
	}

	rec = doRequest(s, http.MethodGet, "/api/digests/id/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleDeleteDigest(t *testing.T) {
	digests := &fakeDigests{}
	s := newTestServer(t, digests, &fakeFeedback{}, &fakePinger{})

	rec := doRequest(s, http.MethodDelete, "/api/digests/2025-06-15", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if len(digests.deleted) != 1 || digests.deleted[0] != "2025-06-15" {
		t.Errorf("unexpected deletes: %v", digests.deleted)
	}
}

func TestHandleSearchInsights(t *testing.T) {
	digests := &fakeDigests{digests: []core.Digest{{
		Date: "2025-06-14",
		Insights: []core.Insight{{
			ID:    "i1",
			Title: "Attention",
		}},
	}}}
	s := newTestServer(t, digests, &fakeFeedback{}, &fakePinger{})

	rec := doRequest(s, http.MethodGet, "/api/insights/search?q=attention&limit=5", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Total int `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Total != 1 {
		t.Errorf("expected 1 result, got %d", resp.Total)
	}
}

func TestHandleSearchInsightsMissingQuery(t *testing.T) {
	s := newTestServer(t, &fakeDigests{}, &fakeFeedback{}, &fakePinger{})

	rec := doRequest(s, http.MethodGet, "/api/insights/search", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleQuerySuggestions(t *testing.T) {
	s := newTestServer(t, &fakeDigests{}, &fakeFeedback{}, &fakePinger{})

	rec := doRequest(s, http.MethodGet, "/api/queries/suggestions", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Suggestions []string `json:"suggestions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	// Default context: 2 topics x 3 + 2 goal-based.
	if len(resp.Suggestions) != 8 {
		t.Errorf("expected 8 suggestions, got %d", len(resp.Suggestions))
	}
}

func TestHandleRecordFeedback(t *testing.T) {
	feedback := &fakeFeedback{}
	s := newTestServer(t, &fakeDigests{}, feedback, &fakePinger{})

	rec := doRequest(s, http.MethodPost, "/api/feedback",
		`{"insight_id": "i1", "type": "helpful", "comment": "great"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(feedback.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(feedback.records))
	}
	if feedback.records[0].CreatedAt.After(time.Now().Add(time.Minute)) {
		t.Error("feedback timestamp should be set to now")
	}

	rec = doRequest(s, http.MethodPost, "/api/feedback", `{"type": "helpful"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing insight_id should 400, got %d", rec.Code)
	}
}
