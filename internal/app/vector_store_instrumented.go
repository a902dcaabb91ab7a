package app

import (
	"context"
	"time"

	"github.com/yungbote/ncertlens-backend/internal/modules/similarity"
	"github.com/yungbote/ncertlens-backend/internal/observability"
	"github.com/yungbote/ncertlens-backend/internal/platform/qdrant"
)

type instrumentedVectorStore struct {
	inner   similarity.Store
	metrics *observability.Metrics
}

// instrumentVectorStore returns inner unchanged when metrics are disabled.
func instrumentVectorStore(inner similarity.Store, metrics *observability.Metrics) similarity.Store {
	if inner == nil || metrics == nil {
		return inner
	}
	return &instrumentedVectorStore{inner: inner, metrics: metrics}
}

func (s *instrumentedVectorStore) Ping(ctx context.Context) error {
	start := time.Now()
	err := s.inner.Ping(ctx)
	s.metrics.ObserveVectorOp("ping", err, time.Since(start))
	return err
}

func (s *instrumentedVectorStore) EnsureCollection(ctx context.Context, name string) error {
	start := time.Now()
	err := s.inner.EnsureCollection(ctx, name)
	s.metrics.ObserveVectorOp("ensure_collection", err, time.Since(start))
	return err
}

func (s *instrumentedVectorStore) CollectionInfo(ctx context.Context, name string) (qdrant.CollectionInfo, error) {
	start := time.Now()
	out, err := s.inner.CollectionInfo(ctx, name)
	s.metrics.ObserveVectorOp("collection_info", err, time.Since(start))
	return out, err
}

func (s *instrumentedVectorStore) Upsert(ctx context.Context, collection string, points []qdrant.Point) error {
	start := time.Now()
	err := s.inner.Upsert(ctx, collection, points)
	s.metrics.ObserveVectorOp("upsert", err, time.Since(start))
	return err
}

func (s *instrumentedVectorStore) Search(ctx context.Context, collection string, vector []float32, opts qdrant.SearchOptions) ([]qdrant.Match, error) {
	start := time.Now()
	out, err := s.inner.Search(ctx, collection, vector, opts)
	s.metrics.ObserveVectorOp("search", err, time.Since(start))
	return out, err
}

func (s *instrumentedVectorStore) Delete(ctx context.Context, collection string, ids []uint64) error {
	start := time.Now()
	err := s.inner.Delete(ctx, collection, ids)
	s.metrics.ObserveVectorOp("delete", err, time.Since(start))
	return err
}
