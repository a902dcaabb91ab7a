package queue

import (
	"context"
	"sync"
)

// Memory is a bounded in-process queue. Jobs are lost on restart; the stale
// sweeper moves their records to failed.
type Memory struct {
	mu     sync.RWMutex
	ch     chan Job
	closed bool
	done   chan struct{}
}

func NewMemory(size int) *Memory {
	if size <= 0 {
		size = DefaultSize
	}
	return &Memory{ch: make(chan Job, size), done: make(chan struct{})}
}

func (m *Memory) Kind() string { return KindMemory }

// Enqueue never blocks; a full buffer returns ErrFull.
func (m *Memory) Enqueue(ctx context.Context, job Job) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case m.ch <- job:
		return nil
	default:
		return ErrFull
	}
}

func (m *Memory) Dequeue(ctx context.Context) (Job, error) {
	select {
	case job := <-m.ch:
		return job, nil
	default:
	}
	select {
	case job := <-m.ch:
		return job, nil
	case <-m.done:
		return Job{}, ErrClosed
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}
}

func (m *Memory) Len(context.Context) (int, error) { return len(m.ch), nil }

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.done)
	}
	return nil
}
