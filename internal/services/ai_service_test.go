package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/yungbote/ncertlens-backend/internal/data/repos"
	"github.com/yungbote/ncertlens-backend/internal/data/repos/testutil"
	types "github.com/yungbote/ncertlens-backend/internal/domain"
	"github.com/yungbote/ncertlens-backend/internal/modules/concepts"
	"github.com/yungbote/ncertlens-backend/internal/modules/similarity"
	"github.com/yungbote/ncertlens-backend/internal/pkg/dbctx"
	"github.com/yungbote/ncertlens-backend/internal/platform/qdrant"
)

type fakeLLM struct {
	err   error
	calls int
}

func (f *fakeLLM) GenerateText(context.Context, string, string) (string, error) { return "", f.err }
func (f *fakeLLM) Embed(_ context.Context, in []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(in))
	for i := range in {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}
func (f *fakeLLM) Provider() string { return "fake" }

type fakeAnalysis struct {
	gotOpts concepts.ExtractOptions
	summary string
}

func (f *fakeAnalysis) Extract(_ context.Context, _ string, opts concepts.ExtractOptions) (concepts.Extraction, error) {
	f.gotOpts = opts
	return concepts.Extraction{Kind: concepts.Parsed, Concepts: []concepts.Candidate{{Concept: "Ohm's Law", Confidence: 0.9}}}, nil
}
func (f *fakeAnalysis) Summarize(context.Context, string, int, string) (string, error) {
	return f.summary, nil
}
func (f *fakeAnalysis) Keywords(_ context.Context, _ string, max int) ([]string, error) {
	return []string{"current", "voltage", "resistance"}[:min(max, 3)], nil
}

type fakeSearch struct {
	videoHits   []similarity.Hit
	conceptHits []similarity.Hit
	lastQuery   similarity.Query
}

func (f *fakeSearch) SearchVideos(_ context.Context, q similarity.Query) ([]similarity.Hit, error) {
	f.lastQuery = q
	return f.videoHits, nil
}
func (f *fakeSearch) SearchConcepts(_ context.Context, q similarity.Query) ([]similarity.Hit, error) {
	f.lastQuery = q
	return f.conceptHits, nil
}
func (f *fakeSearch) Info(context.Context) (map[string]qdrant.CollectionInfo, error) {
	return map[string]qdrant.CollectionInfo{"video_embeddings": {Status: "green"}}, nil
}

func TestFindConceptsValidatesAndPassesOptions(t *testing.T) {
	an := &fakeAnalysis{}
	svc := NewAIService(testutil.Logger(t), AIDeps{Analysis: an})
	ctx := context.Background()

	_, err := svc.FindConcepts(ctx, FindConceptsRequest{Transcript: "too short"})
	wantAPIErr(t, err, http.StatusBadRequest, "invalid_transcript")
	_, err = svc.FindConcepts(ctx, FindConceptsRequest{Transcript: strings.Repeat("a", 20), MaxConcepts: 21})
	wantAPIErr(t, err, http.StatusBadRequest, "invalid_max_concepts")

	out, err := svc.FindConcepts(ctx, FindConceptsRequest{
		Transcript:  "current flows through a resistor",
		Subject:     "Physics",
		Class:       10,
		MaxConcepts: 3,
	})
	if err != nil {
		t.Fatalf("FindConcepts: %v", err)
	}
	if len(out.Concepts) != 1 || out.Kind != concepts.Parsed {
		t.Fatalf("extraction: got=%+v", out)
	}
	if an.gotOpts.MaxConcepts != 3 || an.gotOpts.Subject != "Physics" || an.gotOpts.Class != 10 {
		t.Fatalf("options: got=%+v", an.gotOpts)
	}
}

func TestFindConceptsWithoutModel(t *testing.T) {
	svc := NewAIService(testutil.Logger(t), AIDeps{})
	_, err := svc.FindConcepts(context.Background(), FindConceptsRequest{Transcript: "current flows through a resistor"})
	wantAPIErr(t, err, http.StatusServiceUnavailable, "ai_unavailable")
}

func TestSearchSimilarVideosEnrichesAndSorts(t *testing.T) {
	rs := newRepos(t)
	a, b, pending := testutil.VideoID(t), testutil.VideoID(t), testutil.VideoID(t)
	completeVideo(t, rs.Videos, a, repos.Completion{Transcript: "long transcript a"})
	completeVideo(t, rs.Videos, b, repos.Completion{Transcript: "long transcript b"})
	dbc := dbctx.New(context.Background())
	if _, err := rs.Videos.CreatePending(dbc, []*types.Video{{VideoID: pending}}); err != nil {
		t.Fatalf("CreatePending: %v", err)
	}

	search := &fakeSearch{videoHits: []similarity.Hit{
		{ID: a, Score: 0.75}, {ID: pending, Score: 0.99}, {ID: b, Score: 0.91},
	}}
	svc := NewAIService(testutil.Logger(t), AIDeps{LLM: &fakeLLM{}, Index: search, Videos: rs.Videos})

	out, err := svc.SearchSimilarVideos(dbc, SimilarVideosRequest{Query: "ohm's law", Subject: "Physics", Class: 10})
	if err != nil {
		t.Fatalf("SearchSimilarVideos: %v", err)
	}
	if len(out) != 2 || out[0].VideoID != b || out[1].VideoID != a {
		t.Fatalf("order: got=%+v", out)
	}
	if out[0].SimilarityScore != 0.91 || out[0].Transcript != "" {
		t.Fatalf("enrichment: got score=%v transcript=%q", out[0].SimilarityScore, out[0].Transcript)
	}
	if search.lastQuery.Limit != 10 || search.lastQuery.ScoreThreshold != 0.7 || search.lastQuery.Grade != 10 {
		t.Fatalf("query defaults: got=%+v", search.lastQuery)
	}

	bad := 1.5
	_, err = svc.SearchSimilarVideos(dbc, SimilarVideosRequest{Query: "x", ScoreThreshold: &bad})
	wantAPIErr(t, err, http.StatusBadRequest, "invalid_score_threshold")
	_, err = svc.SearchSimilarVideos(dbc, SimilarVideosRequest{Query: "x", Limit: 51})
	wantAPIErr(t, err, http.StatusBadRequest, "invalid_limit")
	_, err = svc.SearchSimilarVideos(dbc, SimilarVideosRequest{Query: strings.Repeat("q", 1001)})
	wantAPIErr(t, err, http.StatusBadRequest, "invalid_query")
}

func TestVideoConceptsRequiresCompletedVideoWithEmbedding(t *testing.T) {
	rs := newRepos(t)
	dbc := dbctx.New(context.Background())
	if err := rs.Concepts.Upsert(dbc, []*types.Concept{
		{ConceptID: "PHY-10-12-1", Title: "Ohm's Law", Subject: "Physics", Class: 10},
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	withVec, noVec := testutil.VideoID(t), testutil.VideoID(t)
	completeVideo(t, rs.Videos, withVec, repos.Completion{Embedding: []float32{0.1, 0.2}})
	completeVideo(t, rs.Videos, noVec, repos.Completion{})

	search := &fakeSearch{conceptHits: []similarity.Hit{{ID: "PHY-10-12-1", Score: 0.8}, {ID: "GONE-1", Score: 0.7}}}
	svc := NewAIService(testutil.Logger(t), AIDeps{Index: search, Videos: rs.Videos, Concepts: rs.Concepts})

	out, err := svc.VideoConcepts(dbc, withVec, VideoConceptsRequest{})
	if err != nil {
		t.Fatalf("VideoConcepts: %v", err)
	}
	if len(out) != 1 || out[0].ConceptID != "PHY-10-12-1" || out[0].SimilarityScore != 0.8 {
		t.Fatalf("matches: got=%+v", out)
	}
	if search.lastQuery.Limit != 5 || search.lastQuery.ScoreThreshold != 0.6 {
		t.Fatalf("query defaults: got=%+v", search.lastQuery)
	}

	_, err = svc.VideoConcepts(dbc, noVec, VideoConceptsRequest{})
	wantAPIErr(t, err, http.StatusConflict, "embedding_missing")
	_, err = svc.VideoConcepts(dbc, testutil.VideoID(t), VideoConceptsRequest{})
	wantAPIErr(t, err, http.StatusNotFound, "video_not_found")
}

func TestSummaryAndKeywords(t *testing.T) {
	rs := newRepos(t)
	id := testutil.VideoID(t)
	completeVideo(t, rs.Videos, id, repos.Completion{Transcript: "one two three four five six"})
	an := &fakeAnalysis{summary: "three word summary"}
	svc := NewAIService(testutil.Logger(t), AIDeps{Analysis: an, Videos: rs.Videos})
	dbc := dbctx.New(context.Background())

	sum, err := svc.Summary(dbc, id, 0, "")
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.OriginalLength != 6 || sum.SummaryLength != 3 {
		t.Fatalf("lengths: got=%+v", sum)
	}

	kws, err := svc.Keywords(context.Background(), "some text", 2)
	if err != nil {
		t.Fatalf("Keywords: %v", err)
	}
	if len(kws) != 2 {
		t.Fatalf("keywords: want=2 got=%v", kws)
	}
	_, err = svc.Keywords(context.Background(), "", 2)
	wantAPIErr(t, err, http.StatusBadRequest, "invalid_text")
}

func TestGenerateEmbeddingUpstreamError(t *testing.T) {
	svc := NewAIService(testutil.Logger(t), AIDeps{LLM: &fakeLLM{err: errors.New("quota")}})
	_, err := svc.GenerateEmbedding(context.Background(), "hello")
	wantAPIErr(t, err, http.StatusBadGateway, "embedding_failed")
}

func TestHealthReportsDegradedDependencies(t *testing.T) {
	ok := HealthProbe{Name: "database", Required: true, Check: func(context.Context) error { return nil }}
	down := HealthProbe{Name: "vectorDb", Required: true, Check: func(context.Context) error { return errors.New("connection refused") }}
	optional := HealthProbe{Name: "redis"}

	svc := NewAIService(testutil.Logger(t), AIDeps{Probes: []HealthProbe{ok, LLMProbe(&fakeLLM{}), optional}})
	rep := svc.Health(context.Background())
	if !rep.Healthy() {
		t.Fatalf("health: want healthy got=%+v", rep)
	}
	if rep.Services["redis"].Status != "disabled" || rep.Services["fake"].Status != "healthy" {
		t.Fatalf("services: got=%+v", rep.Services)
	}

	svc = NewAIService(testutil.Logger(t), AIDeps{Probes: []HealthProbe{ok, down}})
	rep = svc.Health(context.Background())
	if rep.Healthy() {
		t.Fatalf("health: want degraded got=%+v", rep)
	}
	if rep.Services["vectorDb"].Error != "connection refused" || rep.Services["database"].Status != "healthy" {
		t.Fatalf("services: got=%+v", rep.Services)
	}

	svc = NewAIService(testutil.Logger(t), AIDeps{Probes: []HealthProbe{LLMProbe(nil)}})
	if svc.Health(context.Background()).Healthy() {
		t.Fatalf("health: missing model should degrade")
	}
}
