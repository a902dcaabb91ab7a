package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/ncertlens-backend/internal/platform/logger"
	"github.com/yungbote/ncertlens-backend/internal/platform/redisx"
)

const popTimeout = time.Second

// Redis is a list-backed queue shared by every process pointed at the same key.
// LPUSH on enqueue, BRPOP on dequeue, so jobs are delivered oldest first.
type Redis struct {
	log    *logger.Logger
	rdb    *goredis.Client
	key    string
	closed atomic.Bool
}

func NewRedis(log *logger.Logger, rc *redisx.Client, key string) *Redis {
	if log == nil {
		log = logger.Nop()
	}
	return &Redis{log: log.With("component", "RedisJobQueue"), rdb: rc.RDB, key: key}
}

func (r *Redis) Kind() string { return KindRedis }

func (r *Redis) Enqueue(ctx context.Context, job Job) error {
	if r.closed.Load() {
		return ErrClosed
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := r.rdb.LPush(ctx, r.key, raw).Err(); err != nil {
		return fmt.Errorf("enqueue %s: %w", job.VideoID, err)
	}
	return nil
}

// Dequeue polls with a short BRPOP timeout so ctx and Close are observed.
func (r *Redis) Dequeue(ctx context.Context) (Job, error) {
	for {
		if r.closed.Load() {
			return Job{}, ErrClosed
		}
		if err := ctx.Err(); err != nil {
			return Job{}, err
		}
		res, err := r.rdb.BRPop(ctx, popTimeout, r.key).Result()
		if errors.Is(err, goredis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return Job{}, ctx.Err()
			}
			return Job{}, fmt.Errorf("dequeue: %w", err)
		}
		// res is [key, value]
		if len(res) != 2 {
			continue
		}
		var job Job
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			r.log.Warn("Dropping malformed job payload", "error", err)
			continue
		}
		return job, nil
	}
}

func (r *Redis) Len(ctx context.Context) (int, error) {
	n, err := r.rdb.LLen(ctx, r.key).Result()
	if err != nil {
		return 0, fmt.Errorf("queue length: %w", err)
	}
	return int(n), nil
}

// Close stops local consumers. The list is left in Redis for other processes.
func (r *Redis) Close() error {
	r.closed.Store(true)
	return nil
}
