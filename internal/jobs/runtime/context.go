package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/yungbote/ncertlens-backend/internal/data/repos"
	"github.com/yungbote/ncertlens-backend/internal/jobs/queue"
	"github.com/yungbote/ncertlens-backend/internal/pkg/dbctx"
	"github.com/yungbote/ncertlens-backend/internal/platform/ctxutil"
	"github.com/yungbote/ncertlens-backend/internal/platform/logger"
)

// ErrLostOwnership means another run (or the stale sweeper) took the record.
var ErrLostOwnership = errors.New("run no longer owns the video record")

const terminalWriteTimeout = 10 * time.Second

/*
Context is the handle a pipeline gets for one claimed run.
Every status write goes through it and is scoped to (video id, run id), so a
run that lost its claim can never overwrite the winner:
  - Progress heartbeats and records the current stage
  - Fail writes failed with "<stage>: <error>"
  - Succeed writes completed with the full result
Fail and Succeed are terminal; after either, further writes are no-ops.
*/
type Context struct {
	Ctx    context.Context
	Job    queue.Job
	Videos repos.VideoRepo
	Log    *logger.Logger

	mu       sync.Mutex
	stage    string
	terminal bool
}

type Handler interface {
	Run(jc *Context) error
}

type HandlerFunc func(jc *Context) error

func (f HandlerFunc) Run(jc *Context) error { return f(jc) }

func NewContext(ctx context.Context, log *logger.Logger, job queue.Job, videos repos.VideoRepo) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if log == nil {
		log = logger.Nop()
	}
	if job.TraceID != "" || job.RequestID != "" {
		ctx = ctxutil.WithTraceData(ctx, &ctxutil.TraceData{TraceID: job.TraceID, RequestID: job.RequestID})
	}
	return &Context{
		Ctx:    ctx,
		Job:    job,
		Videos: videos,
		Log: log.With(
			"video_id", job.VideoID,
			"run_id", job.RunID,
			"request_id", job.RequestID,
		),
	}
}

func (c *Context) Stage() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stage
}

func (c *Context) Terminal() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.terminal
}

// Progress records the stage and refreshes the heartbeat. It returns
// ErrLostOwnership when the record is no longer this run's.
func (c *Context) Progress(stage string) error {
	c.mu.Lock()
	c.stage = stage
	done := c.terminal
	c.mu.Unlock()
	if done {
		return nil
	}
	ok, err := c.Videos.Heartbeat(dbctx.New(c.Ctx), c.Job.VideoID, c.Job.RunID)
	if err != nil {
		if c.Ctx.Err() != nil {
			return c.Ctx.Err()
		}
		// a missed heartbeat is not fatal; the sweeper window is much longer
		c.Log.Warn("Heartbeat failed", "stage", stage, "error", err)
		return nil
	}
	if !ok {
		c.markTerminal()
		return ErrLostOwnership
	}
	return nil
}

func (c *Context) markTerminal() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.terminal {
		return false
	}
	c.terminal = true
	return true
}

/*
Fail moves the record to failed. It runs on a detached context so a canceled
run still resolves its record, and it leaves any previous mappings intact.
Returns whether this call performed the write.
*/
func (c *Context) Fail(stage string, cause error) bool {
	if !c.markTerminal() {
		return false
	}
	if stage == "" {
		stage = c.Stage()
	}
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	if stage != "" {
		msg = fmt.Sprintf("%s: %s", stage, msg)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Ctx), terminalWriteTimeout)
	defer cancel()
	ok, err := c.Videos.Fail(dbctx.New(ctx), c.Job.VideoID, c.Job.RunID, msg)
	if err != nil {
		c.Log.Error("Marking video failed", "stage", stage, "error", err)
		return false
	}
	if ok {
		c.Log.Warn("Video processing failed", "stage", stage, "error", msg)
	}
	return ok
}

// Succeed writes the completed result. A false return with nil error means
// the run had lost ownership and nothing was written.
func (c *Context) Succeed(result repos.Completion) (bool, error) {
	if !c.markTerminal() {
		return false, nil
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Ctx), terminalWriteTimeout)
	defer cancel()
	ok, err := c.Videos.Complete(dbctx.New(ctx), c.Job.VideoID, c.Job.RunID, result)
	if err != nil {
		// nothing was written; leave Fail able to resolve the record
		c.mu.Lock()
		c.terminal = false
		c.mu.Unlock()
		return false, err
	}
	return ok, nil
}
