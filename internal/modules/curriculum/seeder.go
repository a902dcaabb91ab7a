package curriculum

import (
	"context"
	"fmt"
	"time"

	repos "github.com/yungbote/ncertlens-backend/internal/data/repos"
	types "github.com/yungbote/ncertlens-backend/internal/domain"
	"github.com/yungbote/ncertlens-backend/internal/modules/similarity"
	"github.com/yungbote/ncertlens-backend/internal/pkg/dbctx"
	"github.com/yungbote/ncertlens-backend/internal/platform/llm"
	"github.com/yungbote/ncertlens-backend/internal/platform/logger"
)

const defaultSeedBatch = 32

type ConceptIndex interface {
	UpsertConcepts(ctx context.Context, docs []similarity.ConceptDoc) error
}

// ConceptGraph receives concepts and their prerequisite edges.
type ConceptGraph interface {
	UpsertConcepts(ctx context.Context, concepts []*types.Concept) error
}

type SeedResult struct {
	Upserted int `json:"upserted"`
	Indexed  int `json:"indexed"`
}

type Seeder struct {
	log      *logger.Logger
	concepts repos.ConceptRepo
	embedder llm.Client
	index    ConceptIndex
	graph    ConceptGraph
	batch    int
}

// NewSeeder wires the seeder; embedder, index and graph may be nil.
func NewSeeder(log *logger.Logger, concepts repos.ConceptRepo, embedder llm.Client, index ConceptIndex, graph ConceptGraph) *Seeder {
	if log == nil {
		log = logger.Nop()
	}
	return &Seeder{
		log:      log.With("component", "CurriculumSeeder"),
		concepts: concepts,
		embedder: embedder,
		index:    index,
		graph:    graph,
		batch:    defaultSeedBatch,
	}
}

// Seed stores the catalog, projects it into the graph and embeds every unindexed concept.
func (s *Seeder) Seed(ctx context.Context, catalog []*types.Concept) (SeedResult, error) {
	res := SeedResult{}
	if err := s.concepts.Upsert(dbctx.New(ctx), catalog); err != nil {
		return res, fmt.Errorf("store catalog: %w", err)
	}
	res.Upserted = len(catalog)
	s.log.Info("Catalog stored", "concepts", res.Upserted)

	if s.graph != nil {
		if err := s.graph.UpsertConcepts(ctx, catalog); err != nil {
			s.log.Warn("Concept graph projection failed", "error", err)
		}
	}

	n, err := s.IndexPending(ctx)
	res.Indexed = n
	return res, err
}

// IndexPending embeds concepts without indexed_at in batches until none are left.
func (s *Seeder) IndexPending(ctx context.Context) (int, error) {
	if s.embedder == nil || s.index == nil {
		s.log.Warn("Concept indexing skipped: embedder or vector index not configured")
		return 0, nil
	}
	dbc := dbctx.New(ctx)
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		batch, err := s.concepts.ListUnindexed(dbc, s.batch)
		if err != nil {
			return total, err
		}
		if len(batch) == 0 {
			return total, nil
		}

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = EmbeddingText(c)
		}
		vecs, err := s.embedder.Embed(ctx, texts)
		if err != nil {
			return total, fmt.Errorf("embed concepts: %w", err)
		}
		if len(vecs) != len(batch) {
			return total, fmt.Errorf("embed concepts: want %d vectors, got %d", len(batch), len(vecs))
		}

		docs := make([]similarity.ConceptDoc, len(batch))
		ids := make([]string, len(batch))
		for i, c := range batch {
			docs[i] = similarity.ConceptDoc{
				ConceptID: c.ConceptID,
				Title:     c.Title,
				Subject:   c.Subject,
				Grade:     c.Class,
				Chapter:   c.ChapterTitle,
				Vector:    vecs[i],
			}
			ids[i] = c.ConceptID
		}
		if err := s.index.UpsertConcepts(ctx, docs); err != nil {
			return total, fmt.Errorf("index concepts: %w", err)
		}
		if err := s.concepts.MarkIndexed(dbc, ids, time.Now().UTC()); err != nil {
			return total, err
		}
		total += len(batch)
		s.log.Debug("Concept batch indexed", "count", len(batch), "total", total)
	}
}
