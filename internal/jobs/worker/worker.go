package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/yungbote/ncertlens-backend/internal/data/repos"
	"github.com/yungbote/ncertlens-backend/internal/jobs/queue"
	"github.com/yungbote/ncertlens-backend/internal/jobs/runtime"
	"github.com/yungbote/ncertlens-backend/internal/observability"
	"github.com/yungbote/ncertlens-backend/internal/pkg/dbctx"
	"github.com/yungbote/ncertlens-backend/internal/platform/envutil"
	"github.com/yungbote/ncertlens-backend/internal/platform/logger"
)

const (
	DefaultConcurrency   = 4
	DefaultStaleAfter    = 30 * time.Minute
	DefaultSweepInterval = 5 * time.Minute
)

type Config struct {
	Concurrency   int
	StaleAfter    time.Duration
	SweepInterval time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		Concurrency:   envutil.Int("WORKER_CONCURRENCY", DefaultConcurrency),
		StaleAfter:    envutil.Duration("STALE_PROCESSING_AFTER", DefaultStaleAfter),
		SweepInterval: envutil.Duration("STALE_SWEEP_INTERVAL", DefaultSweepInterval),
	}
}

type Worker struct {
	log     *logger.Logger
	cfg     Config
	queue   queue.Queue
	handler runtime.Handler
	videos  repos.VideoRepo
	metrics *observability.Metrics

	mu       sync.Mutex
	inflight map[string]string // video id -> run id
	wg       sync.WaitGroup
}

func NewWorker(baseLog *logger.Logger, cfg Config, q queue.Queue, handler runtime.Handler, videos repos.VideoRepo, metrics *observability.Metrics) *Worker {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = DefaultStaleAfter
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	return &Worker{
		log:      baseLog.With("component", "VideoWorker"),
		cfg:      cfg,
		queue:    q,
		handler:  handler,
		videos:   videos,
		metrics:  metrics,
		inflight: map[string]string{},
	}
}

// Start launches the pool and the stale sweeper. They stop when ctx is done or
// the queue is closed; Wait blocks until they have.
func (w *Worker) Start(ctx context.Context) {
	w.log.Info("Starting video worker pool",
		"concurrency", w.cfg.Concurrency,
		"queue", w.queue.Kind(),
		"stale_after", w.cfg.StaleAfter.String(),
	)
	for i := 0; i < w.cfg.Concurrency; i++ {
		workerID := i + 1
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.runLoop(ctx, workerID)
		}()
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.sweepLoop(ctx)
	}()
}

func (w *Worker) Wait() { w.wg.Wait() }

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	for {
		job, err := w.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrClosed) || ctx.Err() != nil {
				w.log.Info("Worker loop stopped", "worker_id", workerID)
				return
			}
			w.log.Warn("Dequeue failed", "worker_id", workerID, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		w.process(ctx, workerID, job)
	}
}

func (w *Worker) acquire(job queue.Job) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, busy := w.inflight[job.VideoID]; busy {
		return false
	}
	w.inflight[job.VideoID] = job.RunID
	return true
}

func (w *Worker) release(videoID string) {
	w.mu.Lock()
	delete(w.inflight, videoID)
	w.mu.Unlock()
}

// Inflight reports the video ids currently being processed by this process.
func (w *Worker) Inflight() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.inflight))
	for id := range w.inflight {
		out = append(out, id)
	}
	return out
}

func (w *Worker) process(ctx context.Context, workerID int, job queue.Job) {
	if !w.acquire(job) {
		// the claim guarantees one live run; a second job for the id is stale
		w.log.Warn("Dropping duplicate job", "worker_id", workerID, "video_id", job.VideoID, "run_id", job.RunID)
		return
	}
	defer w.release(job.VideoID)
	w.metrics.WorkerInflight(1)
	defer w.metrics.WorkerInflight(-1)

	jc := runtime.NewContext(ctx, w.log, job, w.videos)
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("Video job panic",
				"worker_id", workerID,
				"video_id", job.VideoID,
				"run_id", job.RunID,
				"stage", jc.Stage(),
				"panic", r,
			)
			jc.Fail("panic", &panicError{Val: r})
		}
	}()

	if err := w.handler.Run(jc); err != nil {
		// pipelines fail the record themselves; this is the safety net
		jc.Fail("", err)
	}
}

func (w *Worker) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.SweepInterval)
	defer ticker.Stop()
	w.sample(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.Sweep(ctx); err != nil {
				w.log.Warn("Stale sweep failed", "error", err)
			}
			w.sample(ctx)
		}
	}
}

func (w *Worker) sample(ctx context.Context) {
	if n, err := w.queue.Len(ctx); err == nil {
		w.metrics.SetQueueDepth(w.queue.Kind(), n)
	}
}

// Sweep fails processing records whose heartbeat is older than StaleAfter.
func (w *Worker) Sweep(ctx context.Context) (int64, error) {
	return SweepStale(ctx, w.log, w.videos, w.cfg.StaleAfter, w.metrics)
}

// SweepStale is the sweep without a pool, for one-shot commands.
func SweepStale(ctx context.Context, log *logger.Logger, videos repos.VideoRepo, olderThan time.Duration, metrics *observability.Metrics) (int64, error) {
	n, err := videos.ResetStale(dbctx.New(ctx), olderThan)
	if err != nil {
		return 0, fmt.Errorf("reset stale: %w", err)
	}
	if n > 0 {
		log.Warn("Reset stale processing records", "count", n, "older_than", olderThan.String())
	}
	metrics.StaleReset(n)
	return n, nil
}

type panicError struct{ Val any }

func (e *panicError) Error() string { return fmt.Sprint(e.Val) }
