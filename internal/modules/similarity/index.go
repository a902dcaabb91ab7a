// Package similarity keeps the video and concept embeddings searchable by cosine similarity.
package similarity

import (
	"context"
	"fmt"
	"strings"

	repos "github.com/yungbote/ncertlens-backend/internal/data/repos"
	"github.com/yungbote/ncertlens-backend/internal/pkg/dbctx"
	"github.com/yungbote/ncertlens-backend/internal/platform/logger"
	"github.com/yungbote/ncertlens-backend/internal/platform/qdrant"
)

const (
	TypeVideo   = "video"
	TypeConcept = "concept"

	DefaultLimit = 10
)

// Store is the vector database surface the index needs. *qdrant.Client implements it.
type Store interface {
	Ping(ctx context.Context) error
	EnsureCollection(ctx context.Context, name string) error
	CollectionInfo(ctx context.Context, name string) (qdrant.CollectionInfo, error)
	Upsert(ctx context.Context, collection string, points []qdrant.Point) error
	Search(ctx context.Context, collection string, vector []float32, opts qdrant.SearchOptions) ([]qdrant.Match, error)
	Delete(ctx context.Context, collection string, ids []uint64) error
}

type VideoDoc struct {
	VideoID      string
	Title        string
	ChannelID    string
	ChannelTitle string
	Subject      string
	Grade        int
	Vector       []float32
}

type ConceptDoc struct {
	ConceptID string
	Title     string
	Subject   string
	Grade     int
	Chapter   string
	Vector    []float32
}

type Query struct {
	Vector []float32
	// Limit <= 0 means DefaultLimit.
	Limit          int
	ScoreThreshold float64
	Subject        string
	Grade          int
}

type Hit struct {
	ID      string         `json:"id"`
	Type    string         `json:"type"`
	Score   float64        `json:"score"`
	Title   string         `json:"title,omitempty"`
	Payload map[string]any `json:"metadata,omitempty"`
}

type Index struct {
	log               *logger.Logger
	store             Store
	points            repos.PointRepo
	videoCollection   string
	conceptCollection string
}

func New(log *logger.Logger, store Store, points repos.PointRepo, videoCollection, conceptCollection string) *Index {
	if log == nil {
		log = logger.Nop()
	}
	if videoCollection == "" {
		videoCollection = qdrant.DefaultVideoCollection
	}
	if conceptCollection == "" {
		conceptCollection = qdrant.DefaultConceptCollection
	}
	return &Index{
		log:               log.With("component", "SimilarityIndex"),
		store:             store,
		points:            points,
		videoCollection:   videoCollection,
		conceptCollection: conceptCollection,
	}
}

func (ix *Index) VideoCollection() string   { return ix.videoCollection }
func (ix *Index) ConceptCollection() string { return ix.conceptCollection }

func (ix *Index) Ping(ctx context.Context) error { return ix.store.Ping(ctx) }

// EnsureCollections creates both collections when missing.
func (ix *Index) EnsureCollections(ctx context.Context) error {
	for _, name := range []string{ix.videoCollection, ix.conceptCollection} {
		if err := ix.store.EnsureCollection(ctx, name); err != nil {
			return fmt.Errorf("ensure collection %s: %w", name, err)
		}
	}
	return nil
}

// UpsertVideo overwrites the single point for the video.
func (ix *Index) UpsertVideo(ctx context.Context, doc VideoDoc) error {
	if strings.TrimSpace(doc.VideoID) == "" || len(doc.Vector) == 0 {
		return fmt.Errorf("upsert video: id and vector required")
	}
	ids, err := ix.points.Resolve(dbctx.New(ctx), ix.videoCollection, []string{doc.VideoID})
	if err != nil {
		return fmt.Errorf("resolve point id: %w", err)
	}
	payload := map[string]any{
		"domain_id":     doc.VideoID,
		"type":          TypeVideo,
		"title":         doc.Title,
		"channel_id":    doc.ChannelID,
		"channel_title": doc.ChannelTitle,
	}
	if doc.Subject != "" {
		payload["subject"] = doc.Subject
	}
	if doc.Grade > 0 {
		payload["grade"] = doc.Grade
	}
	return ix.store.Upsert(ctx, ix.videoCollection, []qdrant.Point{{ID: ids[doc.VideoID], Vector: doc.Vector, Payload: payload}})
}

func (ix *Index) UpsertConcepts(ctx context.Context, docs []ConceptDoc) error {
	if len(docs) == 0 {
		return nil
	}
	domainIDs := make([]string, 0, len(docs))
	for _, d := range docs {
		if strings.TrimSpace(d.ConceptID) == "" || len(d.Vector) == 0 {
			return fmt.Errorf("upsert concept: id and vector required")
		}
		domainIDs = append(domainIDs, d.ConceptID)
	}
	ids, err := ix.points.Resolve(dbctx.New(ctx), ix.conceptCollection, domainIDs)
	if err != nil {
		return fmt.Errorf("resolve point ids: %w", err)
	}
	points := make([]qdrant.Point, 0, len(docs))
	for _, d := range docs {
		points = append(points, qdrant.Point{
			ID:     ids[d.ConceptID],
			Vector: d.Vector,
			Payload: map[string]any{
				"domain_id": d.ConceptID,
				"type":      TypeConcept,
				"title":     d.Title,
				"subject":   d.Subject,
				"grade":     d.Grade,
				"chapter":   d.Chapter,
			},
		})
	}
	return ix.store.Upsert(ctx, ix.conceptCollection, points)
}

func (ix *Index) SearchVideos(ctx context.Context, q Query) ([]Hit, error) {
	return ix.search(ctx, ix.videoCollection, TypeVideo, q)
}

func (ix *Index) SearchConcepts(ctx context.Context, q Query) ([]Hit, error) {
	return ix.search(ctx, ix.conceptCollection, TypeConcept, q)
}

func (ix *Index) search(ctx context.Context, collection, kind string, q Query) ([]Hit, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	filter := map[string]any{}
	if q.Subject != "" {
		filter["subject"] = q.Subject
	}
	if q.Grade > 0 {
		filter["grade"] = q.Grade
	}

	matches, err := ix.store.Search(ctx, collection, q.Vector, qdrant.SearchOptions{
		Limit:          limit,
		ScoreThreshold: q.ScoreThreshold,
		Filter:         filter,
	})
	if err != nil {
		return nil, err
	}

	out := make([]Hit, 0, len(matches))
	pointIDs := make([]uint64, 0, len(matches))
	var orphans []uint64
	for _, m := range matches {
		// the store may ignore score_threshold
		if m.Score < q.ScoreThreshold {
			continue
		}
		id, _ := m.Payload["domain_id"].(string)
		if id == "" {
			orphans = append(orphans, m.ID)
		}
		title, _ := m.Payload["title"].(string)
		out = append(out, Hit{ID: id, Type: kind, Score: m.Score, Title: title, Payload: m.Payload})
		pointIDs = append(pointIDs, m.ID)
	}

	if len(orphans) > 0 {
		// points written without a domain_id payload
		names, err := ix.points.DomainIDs(dbctx.New(ctx), collection, orphans)
		if err != nil {
			return nil, fmt.Errorf("lookup domain ids: %w", err)
		}
		kept := out[:0]
		for i, h := range out {
			if h.ID == "" {
				h.ID = names[pointIDs[i]]
			}
			if h.ID == "" {
				ix.log.Warn("Search hit without domain id", "collection", collection, "point_id", pointIDs[i])
				continue
			}
			kept = append(kept, h)
		}
		out = kept
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DeleteVideo removes the video's point and its id mapping.
func (ix *Index) DeleteVideo(ctx context.Context, videoID string) error {
	dbc := dbctx.New(ctx)
	ids, err := ix.points.Lookup(dbc, ix.videoCollection, []string{videoID})
	if err != nil {
		return err
	}
	pid, ok := ids[videoID]
	if !ok {
		return nil
	}
	if err := ix.store.Delete(ctx, ix.videoCollection, []uint64{pid}); err != nil {
		return err
	}
	return ix.points.Delete(dbc, ix.videoCollection, []string{videoID})
}

// Info reports both collections keyed by name.
func (ix *Index) Info(ctx context.Context) (map[string]qdrant.CollectionInfo, error) {
	out := make(map[string]qdrant.CollectionInfo, 2)
	for _, name := range []string{ix.videoCollection, ix.conceptCollection} {
		info, err := ix.store.CollectionInfo(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("collection info %s: %w", name, err)
		}
		out[name] = info
	}
	return out, nil
}
