package queue

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/ncertlens-backend/internal/platform/logger"
	"github.com/yungbote/ncertlens-backend/internal/platform/redisx"
)

func TestMemoryFIFOAndFull(t *testing.T) {
	q := NewMemory(2)
	ctx := context.Background()
	if err := q.Enqueue(ctx, Job{VideoID: "aaaaaaaaaaa"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := q.Enqueue(ctx, Job{VideoID: "bbbbbbbbbbb"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := q.Enqueue(ctx, Job{VideoID: "ccccccccccc"}); !errors.Is(err, ErrFull) {
		t.Fatalf("Enqueue full: want=ErrFull got=%v", err)
	}
	if n, _ := q.Len(ctx); n != 2 {
		t.Fatalf("Len: want=2 got=%d", n)
	}
	for _, want := range []string{"aaaaaaaaaaa", "bbbbbbbbbbb"} {
		job, err := q.Dequeue(ctx)
		if err != nil {
			t.Fatalf("Dequeue: %v", err)
		}
		if job.VideoID != want {
			t.Fatalf("Dequeue order: want=%s got=%s", want, job.VideoID)
		}
	}
}

func TestMemoryDequeueHonorsContext(t *testing.T) {
	q := NewMemory(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := q.Dequeue(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Dequeue: want=DeadlineExceeded got=%v", err)
	}
}

func TestMemoryClose(t *testing.T) {
	q := NewMemory(1)
	errc := make(chan error, 1)
	go func() {
		_, err := q.Dequeue(context.Background())
		errc <- err
	}()
	time.Sleep(10 * time.Millisecond)
	_ = q.Close()
	select {
	case err := <-errc:
		if !errors.Is(err, ErrClosed) {
			t.Fatalf("Dequeue after close: want=ErrClosed got=%v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Dequeue did not return after Close")
	}
	if err := q.Enqueue(context.Background(), Job{}); !errors.Is(err, ErrClosed) {
		t.Fatalf("Enqueue after close: want=ErrClosed got=%v", err)
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("JOBS_QUEUE", "")
	q, err := FromEnv(logger.Nop(), nil)
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if q.Kind() != KindMemory {
		t.Fatalf("Kind: want=%s got=%s", KindMemory, q.Kind())
	}

	t.Setenv("JOBS_QUEUE", "redis")
	if _, err := FromEnv(logger.Nop(), nil); err == nil {
		t.Fatalf("FromEnv redis without client: expected error")
	}
	t.Setenv("JOBS_QUEUE", "kafka")
	if _, err := FromEnv(logger.Nop(), nil); err == nil {
		t.Fatalf("FromEnv unknown kind: expected error")
	}
}

func TestRedisRoundTrip(t *testing.T) {
	if os.Getenv("REDIS_ADDR") == "" {
		t.Skip("set REDIS_ADDR to run redis tests")
	}
	rc, err := redisx.NewFromEnv(logger.Nop())
	if err != nil {
		t.Fatalf("redisx: %v", err)
	}
	defer rc.Close()

	ctx := context.Background()
	key := "ncertlens:test:jobs:" + uuid.NewString()
	defer rc.RDB.Del(ctx, key)

	q := NewRedis(logger.Nop(), rc, key)
	for _, id := range []string{"aaaaaaaaaaa", "bbbbbbbbbbb"} {
		if err := q.Enqueue(ctx, Job{VideoID: id, RunID: "r-" + id}); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	if n, err := q.Len(ctx); err != nil || n != 2 {
		t.Fatalf("Len: want=2 got=%d err=%v", n, err)
	}
	job, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if job.VideoID != "aaaaaaaaaaa" || job.RunID != "r-aaaaaaaaaaa" {
		t.Fatalf("Dequeue: got=%+v", job)
	}
}
