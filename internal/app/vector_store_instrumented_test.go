package app

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/yungbote/ncertlens-backend/internal/observability"
	"github.com/yungbote/ncertlens-backend/internal/platform/qdrant"
)

func TestInstrumentVectorStorePassThrough(t *testing.T) {
	inner := &fakeStore{}
	m := observability.NewMetrics()
	vs := instrumentVectorStore(inner, m)
	ctx := context.Background()

	if err := vs.Upsert(ctx, "video_embeddings", []qdrant.Point{{ID: 1, Vector: []float32{1, 2, 3}}}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	matches, err := vs.Search(ctx, "video_embeddings", []float32{1, 2, 3}, qdrant.SearchOptions{Limit: 3})
	if err != nil || len(matches) != 1 {
		t.Fatalf("Search: matches=%v err=%v", matches, err)
	}
	if err := vs.Delete(ctx, "video_embeddings", []uint64{1}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if inner.upserts != 1 || inner.searches != 1 || inner.deletes != 1 {
		t.Fatalf("unexpected call counts: upsert=%d search=%d delete=%d", inner.upserts, inner.searches, inner.deletes)
	}

	var buf bytes.Buffer
	if err := m.WritePrometheus(&buf); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	for _, want := range []string{
		`ncl_vector_ops_total{op="upsert",status="ok"} 1`,
		`ncl_vector_ops_total{op="search",status="ok"} 1`,
	} {
		if !strings.Contains(buf.String(), want) {
			t.Fatalf("metrics: missing %q", want)
		}
	}
}

func TestInstrumentVectorStoreErrorPassThrough(t *testing.T) {
	want := errors.New("delete failed")
	m := observability.NewMetrics()
	vs := instrumentVectorStore(&fakeStore{deleteErr: want}, m)

	err := vs.Delete(context.Background(), "video_embeddings", []uint64{1})
	if !errors.Is(err, want) {
		t.Fatalf("Delete: expected wrapped error %v, got=%v", want, err)
	}
	var buf bytes.Buffer
	_ = m.WritePrometheus(&buf)
	if !strings.Contains(buf.String(), `ncl_vector_ops_total{op="delete",status="error"} 1`) {
		t.Fatalf("metrics: error not recorded")
	}
}

func TestInstrumentVectorStoreWithoutMetrics(t *testing.T) {
	inner := &fakeStore{}
	if got := instrumentVectorStore(inner, nil); got != inner {
		t.Fatalf("nil metrics: want inner store back got=%T", got)
	}
	if got := instrumentVectorStore(nil, observability.NewMetrics()); got != nil {
		t.Fatalf("nil store: want nil got=%T", got)
	}
}
