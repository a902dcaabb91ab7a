package services

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/ncertlens-backend/internal/data/repos"
	types "github.com/yungbote/ncertlens-backend/internal/domain"
	"github.com/yungbote/ncertlens-backend/internal/modules/concepts"
	"github.com/yungbote/ncertlens-backend/internal/modules/similarity"
	"github.com/yungbote/ncertlens-backend/internal/pkg/dbctx"
	"github.com/yungbote/ncertlens-backend/internal/platform/apierr"
	"github.com/yungbote/ncertlens-backend/internal/platform/llm"
	"github.com/yungbote/ncertlens-backend/internal/platform/logger"
	"github.com/yungbote/ncertlens-backend/internal/platform/qdrant"
)

const (
	minTranscriptChars = 10
	maxTranscriptChars = 100000
	maxQueryChars      = 1000
	maxTextChars       = 100000

	defaultSimilarLimit     = 10
	maxSimilarLimit         = 50
	defaultSimilarThreshold = 0.7

	defaultVideoConceptLimit     = 5
	defaultVideoConceptThreshold = 0.6

	defaultSummaryLength = 200
	defaultKeywordLimit  = 10
	maxKeywordLimit      = 50

	healthProbeTimeout = 5 * time.Second
)

// ConceptAI is the model-backed text analysis the AI endpoints expose.
type ConceptAI interface {
	Extract(ctx context.Context, text string, opts concepts.ExtractOptions) (concepts.Extraction, error)
	Summarize(ctx context.Context, text string, maxWords int, focusArea string) (string, error)
	Keywords(ctx context.Context, text string, max int) ([]string, error)
}

type SimilaritySearch interface {
	SearchVideos(ctx context.Context, q similarity.Query) ([]similarity.Hit, error)
	SearchConcepts(ctx context.Context, q similarity.Query) ([]similarity.Hit, error)
	Info(ctx context.Context) (map[string]qdrant.CollectionInfo, error)
}

type FindConceptsRequest struct {
	Transcript  string
	Subject     string
	Class       int
	MaxConcepts int
}

type SimilarVideosRequest struct {
	Query string
	// Limit <= 0 means 10.
	Limit int
	// ScoreThreshold nil means 0.7.
	ScoreThreshold *float64
	Subject        string
	Class          int
}

type VideoConceptsRequest struct {
	Limit     int
	Threshold *float64
	Subject   string
	Class     int
}

// SimilarVideo is a stored video plus its similarity to the query.
type SimilarVideo struct {
	types.Video
	SimilarityScore float64 `json:"similarityScore"`
}

// ConceptMatch is a catalog concept similar to a video.
type ConceptMatch struct {
	types.Concept
	SimilarityScore float64 `json:"similarityScore"`
}

type VideoSummary struct {
	VideoID        string `json:"videoId"`
	Summary        string `json:"summary"`
	OriginalLength int    `json:"originalLength"`
	SummaryLength  int    `json:"summaryLength"`
}

type AIService interface {
	FindConcepts(ctx context.Context, req FindConceptsRequest) (concepts.Extraction, error)
	SearchSimilarVideos(dbc dbctx.Context, req SimilarVideosRequest) ([]SimilarVideo, error)
	VideoConcepts(dbc dbctx.Context, videoID string, req VideoConceptsRequest) ([]ConceptMatch, error)
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	Summary(dbc dbctx.Context, videoID string, maxLength int, focusArea string) (*VideoSummary, error)
	Keywords(ctx context.Context, text string, max int) ([]string, error)
	VectorInfo(ctx context.Context) (map[string]qdrant.CollectionInfo, error)
	Health(ctx context.Context) HealthReport
}

type aiService struct {
	log      *logger.Logger
	llm      llm.Client
	analysis ConceptAI
	index    SimilaritySearch
	videos   repos.VideoRepo
	concepts repos.ConceptRepo
	probes   []HealthProbe
}

// AIDeps leaves optional capabilities nil when they are not configured.
type AIDeps struct {
	LLM      llm.Client
	Analysis ConceptAI
	Index    SimilaritySearch
	Videos   repos.VideoRepo
	Concepts repos.ConceptRepo
	Probes   []HealthProbe
}

func NewAIService(baseLog *logger.Logger, deps AIDeps) AIService {
	return &aiService{
		log:      baseLog.With("service", "AIService"),
		llm:      deps.LLM,
		analysis: deps.Analysis,
		index:    deps.Index,
		videos:   deps.Videos,
		concepts: deps.Concepts,
		probes:   deps.Probes,
	}
}

func unavailable(code, what string) error {
	return apierr.New(http.StatusServiceUnavailable, code, fmt.Errorf("%s not configured", what))
}

func (s *aiService) FindConcepts(ctx context.Context, req FindConceptsRequest) (concepts.Extraction, error) {
	n := utf8.RuneCountInString(strings.TrimSpace(req.Transcript))
	if n < minTranscriptChars || n > maxTranscriptChars {
		return concepts.Extraction{}, apierr.BadRequest("invalid_transcript",
			fmt.Errorf("transcript must be between %d and %d characters", minTranscriptChars, maxTranscriptChars))
	}
	if err := validateSubjectClass(req.Subject, req.Class); err != nil {
		return concepts.Extraction{}, err
	}
	if req.MaxConcepts != 0 && (req.MaxConcepts < 1 || req.MaxConcepts > 20) {
		return concepts.Extraction{}, apierr.BadRequest("invalid_max_concepts", fmt.Errorf("maxConcepts must be between 1 and 20"))
	}
	if s.analysis == nil {
		return concepts.Extraction{}, unavailable("ai_unavailable", "language model")
	}
	out, err := s.analysis.Extract(ctx, req.Transcript, concepts.ExtractOptions{
		MaxConcepts: req.MaxConcepts,
		Subject:     req.Subject,
		Class:       req.Class,
	})
	if err != nil {
		return concepts.Extraction{}, apierr.New(http.StatusBadGateway, "ai_request_failed", err)
	}
	if out.Concepts == nil {
		out.Concepts = []concepts.Candidate{}
	}
	return out, nil
}

func (s *aiService) embedQuery(ctx context.Context, text string) ([]float32, error) {
	if s.llm == nil {
		return nil, unavailable("ai_unavailable", "embedding provider")
	}
	vec, err := llm.EmbedOne(ctx, s.llm, text)
	if err != nil {
		return nil, apierr.New(http.StatusBadGateway, "embedding_failed", err)
	}
	return vec, nil
}

func (s *aiService) SearchSimilarVideos(dbc dbctx.Context, req SimilarVideosRequest) ([]SimilarVideo, error) {
	req.Query = strings.TrimSpace(req.Query)
	if n := utf8.RuneCountInString(req.Query); n < 1 || n > maxQueryChars {
		return nil, apierr.BadRequest("invalid_query", fmt.Errorf("query must be between 1 and %d characters", maxQueryChars))
	}
	limit := req.Limit
	if limit == 0 {
		limit = defaultSimilarLimit
	}
	if limit < 1 || limit > maxSimilarLimit {
		return nil, apierr.BadRequest("invalid_limit", fmt.Errorf("limit must be between 1 and %d", maxSimilarLimit))
	}
	threshold := defaultSimilarThreshold
	if req.ScoreThreshold != nil {
		threshold = *req.ScoreThreshold
	}
	if threshold < 0 || threshold > 1 {
		return nil, apierr.BadRequest("invalid_score_threshold", fmt.Errorf("scoreThreshold must be between 0 and 1"))
	}
	if err := validateSubjectClass(req.Subject, req.Class); err != nil {
		return nil, err
	}
	if s.index == nil {
		return nil, unavailable("vector_db_unavailable", "vector index")
	}

	vec, err := s.embedQuery(dbc.Ctx, req.Query)
	if err != nil {
		return nil, err
	}
	hits, err := s.index.SearchVideos(dbc.Ctx, similarity.Query{
		Vector:         vec,
		Limit:          limit,
		ScoreThreshold: threshold,
		Subject:        req.Subject,
		Grade:          req.Class,
	})
	if err != nil {
		return nil, apierr.New(http.StatusBadGateway, "vector_search_failed", err)
	}
	if len(hits) == 0 {
		return []SimilarVideo{}, nil
	}

	scores := make(map[string]float64, len(hits))
	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		scores[h.ID] = h.Score
		ids = append(ids, h.ID)
	}
	videos, err := s.videos.GetByIDs(dbc, ids)
	if err != nil {
		return nil, fmt.Errorf("load similar videos: %w", err)
	}
	out := make([]SimilarVideo, 0, len(videos))
	for _, v := range videos {
		if v == nil || v.ProcessingStatus != types.VideoStatusCompleted {
			continue
		}
		v.Transcript = ""
		v.TranscriptSegments = nil
		out = append(out, SimilarVideo{Video: *v, SimilarityScore: scores[v.VideoID]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SimilarityScore != out[j].SimilarityScore {
			return out[i].SimilarityScore > out[j].SimilarityScore
		}
		return out[i].VideoID < out[j].VideoID
	})
	return out, nil
}

func (s *aiService) completedVideo(dbc dbctx.Context, videoID string) (*types.Video, error) {
	if err := validateVideoID(videoID); err != nil {
		return nil, err
	}
	v, err := s.videos.Get(dbc, videoID)
	if err != nil {
		return nil, fmt.Errorf("load video %s: %w", videoID, err)
	}
	if v == nil || v.ProcessingStatus != types.VideoStatusCompleted {
		return nil, apierr.NotFound("video_not_found", fmt.Errorf("video %s not found or not processed", videoID))
	}
	return v, nil
}

func (s *aiService) VideoConcepts(dbc dbctx.Context, videoID string, req VideoConceptsRequest) ([]ConceptMatch, error) {
	limit := req.Limit
	if limit == 0 {
		limit = defaultVideoConceptLimit
	}
	if limit < 1 || limit > maxSimilarLimit {
		return nil, apierr.BadRequest("invalid_limit", fmt.Errorf("limit must be between 1 and %d", maxSimilarLimit))
	}
	threshold := defaultVideoConceptThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	if threshold < 0 || threshold > 1 {
		return nil, apierr.BadRequest("invalid_threshold", fmt.Errorf("threshold must be between 0 and 1"))
	}
	if err := validateSubjectClass(req.Subject, req.Class); err != nil {
		return nil, err
	}

	v, err := s.completedVideo(dbc, videoID)
	if err != nil {
		return nil, err
	}
	vec, err := v.EmbeddingVector()
	if err != nil {
		return nil, fmt.Errorf("decode embedding for %s: %w", videoID, err)
	}
	if len(vec) == 0 {
		return nil, apierr.New(http.StatusConflict, "embedding_missing", fmt.Errorf("video %s has no embedding", videoID))
	}
	if s.index == nil {
		return nil, unavailable("vector_db_unavailable", "vector index")
	}

	hits, err := s.index.SearchConcepts(dbc.Ctx, similarity.Query{
		Vector:         vec,
		Limit:          limit,
		ScoreThreshold: threshold,
		Subject:        req.Subject,
		Grade:          req.Class,
	})
	if err != nil {
		return nil, apierr.New(http.StatusBadGateway, "vector_search_failed", err)
	}
	if len(hits) == 0 {
		return []ConceptMatch{}, nil
	}
	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.ID)
	}
	rows, err := s.concepts.GetByIDs(dbc, ids)
	if err != nil {
		return nil, fmt.Errorf("load matched concepts: %w", err)
	}
	byID := make(map[string]*types.Concept, len(rows))
	for _, c := range rows {
		byID[c.ConceptID] = c
	}

	// hits are already ordered by score
	out := make([]ConceptMatch, 0, len(hits))
	for _, h := range hits {
		c, ok := byID[h.ID]
		if !ok {
			s.log.Warn("Indexed concept missing from catalog", "concept_id", h.ID)
			continue
		}
		out = append(out, ConceptMatch{Concept: *c, SimilarityScore: h.Score})
	}
	return out, nil
}

func (s *aiService) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if n := utf8.RuneCountInString(text); n < 1 || n > maxTextChars {
		return nil, apierr.BadRequest("invalid_text", fmt.Errorf("text must be between 1 and %d characters", maxTextChars))
	}
	return s.embedQuery(ctx, text)
}

func (s *aiService) Summary(dbc dbctx.Context, videoID string, maxLength int, focusArea string) (*VideoSummary, error) {
	if maxLength == 0 {
		maxLength = defaultSummaryLength
	}
	if maxLength < 1 || maxLength > 2000 {
		return nil, apierr.BadRequest("invalid_max_length", fmt.Errorf("maxLength must be between 1 and 2000"))
	}
	v, err := s.completedVideo(dbc, videoID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(v.Transcript) == "" {
		return nil, apierr.BadRequest("transcript_missing", fmt.Errorf("video %s has no transcript", videoID))
	}
	if s.analysis == nil {
		return nil, unavailable("ai_unavailable", "language model")
	}
	summary, err := s.analysis.Summarize(dbc.Ctx, v.Transcript, maxLength, focusArea)
	if err != nil {
		return nil, apierr.New(http.StatusBadGateway, "ai_request_failed", err)
	}
	return &VideoSummary{
		VideoID:        videoID,
		Summary:        summary,
		OriginalLength: len(strings.Fields(v.Transcript)),
		SummaryLength:  len(strings.Fields(summary)),
	}, nil
}

func (s *aiService) Keywords(ctx context.Context, text string, max int) ([]string, error) {
	text = strings.TrimSpace(text)
	if n := utf8.RuneCountInString(text); n < 1 || n > maxTextChars {
		return nil, apierr.BadRequest("invalid_text", fmt.Errorf("text must be between 1 and %d characters", maxTextChars))
	}
	if max == 0 {
		max = defaultKeywordLimit
	}
	if max < 1 || max > maxKeywordLimit {
		return nil, apierr.BadRequest("invalid_max_keywords", fmt.Errorf("maxKeywords must be between 1 and %d", maxKeywordLimit))
	}
	if s.analysis == nil {
		return nil, unavailable("ai_unavailable", "language model")
	}
	kws, err := s.analysis.Keywords(ctx, text, max)
	if err != nil {
		return nil, apierr.New(http.StatusBadGateway, "ai_request_failed", err)
	}
	if kws == nil {
		kws = []string{}
	}
	return kws, nil
}

func (s *aiService) VectorInfo(ctx context.Context) (map[string]qdrant.CollectionInfo, error) {
	if s.index == nil {
		return nil, unavailable("vector_db_unavailable", "vector index")
	}
	info, err := s.index.Info(ctx)
	if err != nil {
		return nil, apierr.New(http.StatusBadGateway, "vector_db_error", err)
	}
	return info, nil
}

// HealthProbe checks one dependency. A nil Check reports the dependency as disabled.
type HealthProbe struct {
	Name string
	// Required probes degrade the overall status on failure.
	Required bool
	Check    func(ctx context.Context) error
}

type DependencyHealth struct {
	Status    string `json:"status"`
	LatencyMs int64  `json:"latencyMs"`
	Error     string `json:"error,omitempty"`
}

type HealthReport struct {
	Status    string                      `json:"status"`
	Services  map[string]DependencyHealth `json:"services"`
	Timestamp time.Time                   `json:"timestamp"`
}

func (r HealthReport) Healthy() bool { return r.Status == "healthy" }

// LLMProbe embeds a fixed string, the same call the pipeline depends on.
func LLMProbe(c llm.Client) HealthProbe {
	p := HealthProbe{Name: "ai", Required: true}
	if c != nil {
		p.Name = c.Provider()
		p.Check = func(ctx context.Context) error {
			_, err := llm.EmbedOne(ctx, c, "test")
			return err
		}
	}
	return p
}

func (s *aiService) Health(ctx context.Context) HealthReport {
	report := HealthReport{
		Status:    "healthy",
		Services:  make(map[string]DependencyHealth, len(s.probes)),
		Timestamp: time.Now().UTC(),
	}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range s.probes {
		p := p
		if p.Check == nil {
			mu.Lock()
			report.Services[p.Name] = DependencyHealth{Status: "disabled"}
			if p.Required {
				report.Status = "degraded"
			}
			mu.Unlock()
			continue
		}
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(gctx, healthProbeTimeout)
			defer cancel()
			start := time.Now()
			err := p.Check(pctx)
			dh := DependencyHealth{Status: "healthy", LatencyMs: time.Since(start).Milliseconds()}
			if err != nil {
				dh.Status = "unhealthy"
				dh.Error = err.Error()
			}
			mu.Lock()
			report.Services[p.Name] = dh
			if err != nil && p.Required {
				report.Status = "degraded"
			}
			mu.Unlock()
			// a failing probe must not cancel the others
			return nil
		})
	}
	_ = g.Wait()
	if !report.Healthy() {
		s.log.Warn("Health check degraded", "services", report.Services)
	}
	return report
}
