package services

import (
	"context"
	"fmt"
	"time"

	"github.com/yungbote/ncertlens-backend/internal/data/repos"
	"github.com/yungbote/ncertlens-backend/internal/modules/similarity"
	"github.com/yungbote/ncertlens-backend/internal/observability"
	"github.com/yungbote/ncertlens-backend/internal/pkg/dbctx"
	"github.com/yungbote/ncertlens-backend/internal/platform/llm"
	"github.com/yungbote/ncertlens-backend/internal/platform/logger"
)

const reindexBatch = 50

type VideoIndexer interface {
	UpsertVideo(ctx context.Context, doc similarity.VideoDoc) error
	VideoCollection() string
}

type ConceptIndexer interface {
	IndexPending(ctx context.Context) (int, error)
}

type ReindexResult struct {
	Videos   int `json:"videos"`
	Failed   int `json:"failed"`
	Concepts int `json:"concepts"`
}

// ReindexService repairs index entries for completed videos and catalog
// concepts that never made it into the vector store.
type ReindexService interface {
	Run(ctx context.Context, videos, concepts bool) (ReindexResult, error)
}

type reindexService struct {
	log      *logger.Logger
	videos   repos.VideoRepo
	index    VideoIndexer
	concepts ConceptIndexer
	embedder llm.Client
	metrics  *observability.Metrics
	maxChars int
}

func NewReindexService(
	baseLog *logger.Logger,
	videos repos.VideoRepo,
	index VideoIndexer,
	concepts ConceptIndexer,
	embedder llm.Client,
	metrics *observability.Metrics,
	maxChars int,
) ReindexService {
	if maxChars <= 0 {
		maxChars = 8000
	}
	return &reindexService{
		log:      baseLog.With("service", "ReindexService"),
		videos:   videos,
		index:    index,
		concepts: concepts,
		embedder: embedder,
		metrics:  metrics,
		maxChars: maxChars,
	}
}

func (s *reindexService) Run(ctx context.Context, videos, concepts bool) (ReindexResult, error) {
	var res ReindexResult
	if videos {
		if s.index == nil {
			return res, unavailable("vector_db_unavailable", "vector index")
		}
		n, failed, err := s.reindexVideos(ctx)
		res.Videos, res.Failed = n, failed
		if err != nil {
			return res, err
		}
	}
	if concepts && s.concepts != nil {
		n, err := s.concepts.IndexPending(ctx)
		res.Concepts = n
		if err != nil {
			return res, fmt.Errorf("index concepts: %w", err)
		}
	}
	s.log.Info("Reindex finished", "videos", res.Videos, "failed", res.Failed, "concepts", res.Concepts)
	return res, nil
}

// reindexVideos walks completed unindexed videos in batches. A video that
// fails stays unindexed, so the walk stops once a batch makes no progress.
func (s *reindexService) reindexVideos(ctx context.Context) (int, int, error) {
	dbc := dbctx.New(ctx)
	done, failed := 0, 0
	skip := map[string]bool{}
	for {
		if err := ctx.Err(); err != nil {
			return done, failed, err
		}
		batch, err := s.videos.ListCompletedUnindexed(dbc, reindexBatch+len(skip))
		if err != nil {
			return done, failed, fmt.Errorf("list unindexed videos: %w", err)
		}
		progressed := false
		for _, v := range batch {
			if skip[v.VideoID] {
				continue
			}
			progressed = true
			if err := s.reindexOne(ctx, dbc, v.VideoID); err != nil {
				s.log.Warn("Video reindex failed", "video_id", v.VideoID, "error", err)
				skip[v.VideoID] = true
				failed++
				continue
			}
			done++
		}
		if !progressed {
			return done, failed, nil
		}
	}
}

func (s *reindexService) reindexOne(ctx context.Context, dbc dbctx.Context, videoID string) error {
	v, err := s.videos.Get(dbc, videoID)
	if err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	if v == nil {
		return fmt.Errorf("video vanished")
	}
	vec, err := v.EmbeddingVector()
	if err != nil {
		return fmt.Errorf("decode embedding: %w", err)
	}
	if len(vec) == 0 {
		if s.embedder == nil {
			return fmt.Errorf("no stored embedding and no embedding provider")
		}
		if vec, err = llm.EmbedOne(ctx, s.embedder, llm.Truncate(v.Transcript, s.maxChars)); err != nil {
			return fmt.Errorf("embed transcript: %w", err)
		}
	}
	mappings, err := v.Mappings()
	if err != nil {
		return fmt.Errorf("decode mappings: %w", err)
	}
	err = s.index.UpsertVideo(ctx, similarity.VideoDocFor(v, vec, mappings, "", 0))
	s.metrics.ObserveIndexWrite(s.index.VideoCollection(), err)
	if err != nil {
		return err
	}
	return s.videos.MarkIndexed(dbc, videoID, time.Now().UTC())
}
