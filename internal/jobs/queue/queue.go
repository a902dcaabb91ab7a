// Package queue hands process requests from the API to the worker pool.
package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/ncertlens-backend/internal/platform/envutil"
	"github.com/yungbote/ncertlens-backend/internal/platform/logger"
	"github.com/yungbote/ncertlens-backend/internal/platform/redisx"
)

const (
	KindMemory = "memory"
	KindRedis  = "redis"

	DefaultSize = 256
)

var (
	ErrClosed = errors.New("job queue closed")
	ErrFull   = errors.New("job queue full")
)

// Job is one claimed processing run. RunID is the token the claim wrote; the
// pipeline must present it on every status write.
type Job struct {
	VideoID    string    `json:"videoId"`
	RunID      string    `json:"runId"`
	Subject    string    `json:"subject,omitempty"`
	Class      int       `json:"class,omitempty"`
	Force      bool      `json:"force,omitempty"`
	EnqueuedAt time.Time `json:"enqueuedAt"`

	// carried so worker logs and spans join the originating request
	RequestID string `json:"requestId,omitempty"`
	TraceID   string `json:"traceId,omitempty"`
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	// Dequeue blocks until a job arrives, ctx is done, or the queue is closed.
	Dequeue(ctx context.Context) (Job, error)
	Len(ctx context.Context) (int, error)
	Kind() string
	Close() error
}

// FromEnv selects the queue named by JOBS_QUEUE (memory by default).
func FromEnv(log *logger.Logger, rc *redisx.Client) (Queue, error) {
	if log == nil {
		log = logger.Nop()
	}
	kind := strings.ToLower(envutil.String("JOBS_QUEUE", KindMemory))
	switch kind {
	case KindMemory:
		return NewMemory(envutil.Int("JOBS_QUEUE_SIZE", DefaultSize)), nil
	case KindRedis:
		if rc == nil {
			return nil, fmt.Errorf("JOBS_QUEUE=redis requires REDIS_ADDR")
		}
		key := envutil.String("JOBS_QUEUE_KEY", "ncertlens:jobs:video_process")
		log.Info("Using redis job queue", "key", key)
		return NewRedis(log, rc, key), nil
	default:
		return nil, fmt.Errorf("unknown JOBS_QUEUE %q", kind)
	}
}
