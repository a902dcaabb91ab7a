package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/ncertlens-backend/internal/data/repos"
	types "github.com/yungbote/ncertlens-backend/internal/domain"
	"github.com/yungbote/ncertlens-backend/internal/jobs/queue"
	"github.com/yungbote/ncertlens-backend/internal/modules/transcript"
	"github.com/yungbote/ncertlens-backend/internal/pkg/dbctx"
	"github.com/yungbote/ncertlens-backend/internal/platform/apierr"
	"github.com/yungbote/ncertlens-backend/internal/platform/ctxutil"
	"github.com/yungbote/ncertlens-backend/internal/platform/logger"
)

type ProcessRequest struct {
	VideoID string
	Force   bool
	Subject string
	Class   int
}

type ProcessResult struct {
	VideoID string `json:"videoId"`
	Status  string `json:"status"`
	// Accepted is true when a new run was queued.
	Accepted bool `json:"accepted"`
	// Video is set when the stored completed record is returned as-is.
	Video *types.Video `json:"video,omitempty"`
}

type VideoStatus struct {
	VideoID       string     `json:"videoId"`
	Status        string     `json:"status"`
	LastProcessed *time.Time `json:"lastProcessed"`
	Error         string     `json:"error,omitempty"`
}

type VideoService interface {
	Process(dbc dbctx.Context, req ProcessRequest) (*ProcessResult, error)
	Status(dbc dbctx.Context, videoID string) (*VideoStatus, error)
	MappingsAt(dbc dbctx.Context, videoID string, t float64) ([]types.ConceptMapping, error)
	Details(dbc dbctx.Context, videoID string) (*types.Video, error)
	TranscriptSearch(dbc dbctx.Context, videoID, query string) ([]transcript.SearchMatch, error)
}

type videoService struct {
	log    *logger.Logger
	videos repos.VideoRepo
	queue  queue.Queue
}

func NewVideoService(baseLog *logger.Logger, videos repos.VideoRepo, q queue.Queue) VideoService {
	return &videoService{
		log:    baseLog.With("service", "VideoService"),
		videos: videos,
		queue:  q,
	}
}

func validateVideoID(id string) error {
	if !types.IsVideoID(id) {
		return apierr.BadRequest("invalid_video_id", fmt.Errorf("videoId must be an 11 character YouTube id"))
	}
	return nil
}

func validateSubjectClass(subject string, class int) error {
	if subject != "" && !types.IsSubject(subject) {
		return apierr.BadRequest("invalid_subject", fmt.Errorf("subject must be one of: %s", strings.Join(types.Subjects, ", ")))
	}
	if class != 0 && (class < 1 || class > 12) {
		return apierr.BadRequest("invalid_class", fmt.Errorf("class must be between 1 and 12"))
	}
	return nil
}

func (s *videoService) Process(dbc dbctx.Context, req ProcessRequest) (*ProcessResult, error) {
	req.VideoID = strings.TrimSpace(req.VideoID)
	req.Subject = strings.TrimSpace(req.Subject)
	if err := validateVideoID(req.VideoID); err != nil {
		return nil, err
	}
	if err := validateSubjectClass(req.Subject, req.Class); err != nil {
		return nil, err
	}
	if s.queue == nil {
		return nil, apierr.New(http.StatusServiceUnavailable, "queue_unavailable", fmt.Errorf("job queue not configured"))
	}

	runID := uuid.New().String()
	claim, err := s.videos.Claim(dbc, req.VideoID, req.Force, runID)
	if err != nil {
		return nil, fmt.Errorf("claim video %s: %w", req.VideoID, err)
	}

	switch claim.Outcome {
	case repos.ClaimAlreadyCompleted:
		return &ProcessResult{VideoID: req.VideoID, Status: types.VideoStatusCompleted, Video: claim.Video}, nil
	case repos.ClaimAlreadyRunning:
		return &ProcessResult{VideoID: req.VideoID, Status: types.VideoStatusProcessing}, nil
	}

	job := queue.Job{
		VideoID:    req.VideoID,
		RunID:      runID,
		Subject:    req.Subject,
		Class:      req.Class,
		Force:      req.Force,
		EnqueuedAt: time.Now().UTC(),
	}
	if td := ctxutil.GetTraceData(dbc.Ctx); td != nil {
		job.TraceID = td.TraceID
		job.RequestID = td.RequestID
	}
	if err := s.queue.Enqueue(dbc.Ctx, job); err != nil {
		// nobody will pick the run up, so resolve it now
		failCtx, cancel := context.WithTimeout(context.WithoutCancel(ctxutil.Default(dbc.Ctx)), 10*time.Second)
		_, fErr := s.videos.Fail(dbctx.New(failCtx), req.VideoID, runID, "queue: "+err.Error())
		cancel()
		if fErr != nil {
			s.log.Error("Failed to release unqueued run", "video_id", req.VideoID, "run_id", runID, "error", fErr)
		}
		status := http.StatusServiceUnavailable
		if !errors.Is(err, queue.ErrFull) && !errors.Is(err, queue.ErrClosed) {
			status = http.StatusInternalServerError
		}
		return nil, apierr.New(status, "queue_unavailable", fmt.Errorf("enqueue video %s: %w", req.VideoID, err))
	}

	s.log.Info("Video queued for processing",
		"video_id", req.VideoID,
		"run_id", runID,
		"claim", string(claim.Outcome),
		"queue", s.queue.Kind(),
	)
	return &ProcessResult{VideoID: req.VideoID, Status: types.VideoStatusProcessing, Accepted: true}, nil
}

func (s *videoService) get(dbc dbctx.Context, videoID string) (*types.Video, error) {
	if err := validateVideoID(videoID); err != nil {
		return nil, err
	}
	v, err := s.videos.Get(dbc, videoID)
	if err != nil {
		return nil, fmt.Errorf("load video %s: %w", videoID, err)
	}
	if v == nil {
		return nil, apierr.NotFound("video_not_found", fmt.Errorf("video %s not found", videoID))
	}
	return v, nil
}

func (s *videoService) Status(dbc dbctx.Context, videoID string) (*VideoStatus, error) {
	v, err := s.get(dbc, videoID)
	if err != nil {
		return nil, err
	}
	return &VideoStatus{
		VideoID:       v.VideoID,
		Status:        v.ProcessingStatus,
		LastProcessed: v.LastProcessed,
		Error:         v.ProcessingError,
	}, nil
}

// MappingsAt returns every mapping with a range covering t. Order follows the stored list.
func (s *videoService) MappingsAt(dbc dbctx.Context, videoID string, t float64) ([]types.ConceptMapping, error) {
	if math.IsNaN(t) || math.IsInf(t, 0) || t < 0 {
		return nil, apierr.BadRequest("invalid_timestamp", fmt.Errorf("timestamp must be a non-negative number of seconds"))
	}
	v, err := s.get(dbc, videoID)
	if err != nil {
		return nil, err
	}
	mappings, err := v.Mappings()
	if err != nil {
		return nil, fmt.Errorf("decode mappings for %s: %w", videoID, err)
	}
	out := make([]types.ConceptMapping, 0)
	for _, m := range mappings {
		for _, r := range m.RelevantTimestamps {
			if r.Covers(t) {
				out = append(out, m)
				break
			}
		}
	}
	return out, nil
}

// Details returns the stored record without the bulky transcript fields.
func (s *videoService) Details(dbc dbctx.Context, videoID string) (*types.Video, error) {
	v, err := s.get(dbc, videoID)
	if err != nil {
		return nil, err
	}
	v.Transcript = ""
	v.TranscriptSegments = nil
	return v, nil
}

func (s *videoService) TranscriptSearch(dbc dbctx.Context, videoID, query string) ([]transcript.SearchMatch, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apierr.BadRequest("missing_query", fmt.Errorf("search query is required"))
	}
	v, err := s.get(dbc, videoID)
	if err != nil {
		return nil, err
	}
	segments, err := v.Segments()
	if err != nil {
		return nil, fmt.Errorf("decode segments for %s: %w", videoID, err)
	}
	if len(segments) == 0 {
		return nil, apierr.NotFound("transcript_not_found", fmt.Errorf("no transcript stored for %s", videoID))
	}
	matches := transcript.Search(segments, query)
	if matches == nil {
		matches = []transcript.SearchMatch{}
	}
	return matches, nil
}
