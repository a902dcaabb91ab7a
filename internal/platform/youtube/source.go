package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/yungbote/ncertlens-backend/internal/platform/logger"
	"github.com/yungbote/ncertlens-backend/internal/platform/retry"
)

// ByteCache is a keyed blob cache with a TTL.
type ByteCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

// TranscriptSource acquires the captions of a video, with whatever fallbacks it implements.
type TranscriptSource interface {
	Transcript(ctx context.Context, videoID string) ([]Caption, error)
}

// RetryingTranscriptSource asks for the preferred language first and then for any track,
// retrying the pair with a linear delay.
type RetryingTranscriptSource struct {
	log      *logger.Logger
	fetcher  TranscriptFetcher
	retry    retry.Config
	lang     string
	cache    ByteCache
	cacheTTL time.Duration
}

type SourceOption func(*RetryingTranscriptSource)

func WithCache(c ByteCache, ttl time.Duration) SourceOption {
	return func(s *RetryingTranscriptSource) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

func WithRetry(cfg retry.Config) SourceOption {
	return func(s *RetryingTranscriptSource) { s.retry = cfg }
}

func WithLanguage(lang string) SourceOption {
	return func(s *RetryingTranscriptSource) { s.lang = lang }
}

func NewRetryingTranscriptSource(log *logger.Logger, fetcher TranscriptFetcher, opts ...SourceOption) *RetryingTranscriptSource {
	if log == nil {
		log = logger.Nop()
	}
	s := &RetryingTranscriptSource{
		log:     log.With("service", "TranscriptSource"),
		fetcher: fetcher,
		retry:   retry.DefaultConfig(),
		lang:    "en",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func cacheKey(videoID string) string { return "transcript:" + videoID }

func (s *RetryingTranscriptSource) Transcript(ctx context.Context, videoID string) ([]Caption, error) {
	if caps, ok := s.cached(ctx, videoID); ok {
		return caps, nil
	}

	var out []Caption
	err := retry.Do(ctx, s.retry, retry.AlwaysRetry, func(ctx context.Context, attempt int) error {
		caps, err := s.fetcher.FetchCaptions(ctx, videoID, s.lang)
		if err != nil && errors.Is(err, ErrNoTranscript) && s.lang != "" {
			caps, err = s.fetcher.FetchCaptions(ctx, videoID, "")
		}
		if err != nil {
			s.log.Warn("Transcript fetch attempt failed", "video_id", videoID, "attempt", attempt, "error", err)
			return err
		}
		out = caps
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.store(ctx, videoID, out)
	return out, nil
}

func (s *RetryingTranscriptSource) cached(ctx context.Context, videoID string) ([]Caption, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, ok, err := s.cache.Get(ctx, cacheKey(videoID))
	if err != nil {
		s.log.Warn("Transcript cache read failed", "video_id", videoID, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var caps []Caption
	if err := json.Unmarshal(raw, &caps); err != nil || len(caps) == 0 {
		return nil, false
	}
	return caps, true
}

func (s *RetryingTranscriptSource) store(ctx context.Context, videoID string, caps []Caption) {
	if s.cache == nil || len(caps) == 0 {
		return
	}
	raw, err := json.Marshal(caps)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKey(videoID), raw, s.cacheTTL); err != nil {
		s.log.Warn("Transcript cache write failed", "video_id", videoID, "error", err)
	}
}
