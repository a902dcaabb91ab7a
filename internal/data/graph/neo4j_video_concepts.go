package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	types "github.com/yungbote/ncertlens-backend/internal/domain"
	"github.com/yungbote/ncertlens-backend/internal/platform/logger"
	"github.com/yungbote/ncertlens-backend/internal/platform/neo4jdb"
)

// VideoGraph projects completed videos and the NCERT catalog into Neo4j:
//
//	(:Video)-[:COVERS]->(:MappedConcept)-[:SAME_AS]->(:NCERTConcept)-[:PREREQUISITE_OF]->(:NCERTConcept)
//
// A nil *VideoGraph is a valid no-op.
type VideoGraph struct {
	client *neo4jdb.Client
	log    *logger.Logger
}

// VideoRef is one video covering a concept.
type VideoRef struct {
	VideoID    string  `json:"videoId"`
	Title      string  `json:"title"`
	Concept    string  `json:"concept"`
	Confidence float64 `json:"confidence"`
	FirstStart float64 `json:"firstStart"`
}

func NewVideoGraph(client *neo4jdb.Client, log *logger.Logger) *VideoGraph {
	if client == nil || client.Driver == nil {
		return nil
	}
	if log == nil {
		log = logger.Nop()
	}
	return &VideoGraph{client: client, log: log.With("component", "VideoGraph")}
}

func (g *VideoGraph) Enabled() bool { return g != nil && g.client != nil && g.client.Driver != nil }

// EnsureSchema is best-effort; restricted users may not create constraints.
func (g *VideoGraph) EnsureSchema(ctx context.Context) {
	if !g.Enabled() {
		return
	}
	session := g.client.Session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)
	for _, stmt := range []string{
		`CREATE CONSTRAINT video_id_unique IF NOT EXISTS FOR (v:Video) REQUIRE v.id IS UNIQUE`,
		`CREATE CONSTRAINT ncert_concept_id_unique IF NOT EXISTS FOR (c:NCERTConcept) REQUIRE c.id IS UNIQUE`,
		`CREATE CONSTRAINT mapped_concept_key_unique IF NOT EXISTS FOR (m:MappedConcept) REQUIRE m.key IS UNIQUE`,
	} {
		res, err := session.Run(ctx, stmt, nil)
		if err != nil {
			g.log.Warn("neo4j schema init failed (continuing)", "error", err)
			continue
		}
		_, _ = res.Consume(ctx)
	}
}

// UpsertConcepts writes catalog nodes and prerequisite edges.
func (g *VideoGraph) UpsertConcepts(ctx context.Context, concepts []*types.Concept) error {
	if !g.Enabled() || len(concepts) == 0 {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	nodes := make([]map[string]any, 0, len(concepts))
	edges := make([]map[string]any, 0)
	for _, c := range concepts {
		if c == nil || c.ConceptID == "" {
			continue
		}
		nodes = append(nodes, map[string]any{
			"id":         c.ConceptID,
			"title":      c.Title,
			"title_key":  conceptKey(c.Title),
			"subject":    c.Subject,
			"class":      int64(c.Class),
			"chapter":    c.ChapterTitle,
			"difficulty": c.Difficulty,
			"synced_at":  now,
		})
		var prereqs []string
		if len(c.Prerequisites) > 0 {
			_ = json.Unmarshal(c.Prerequisites, &prereqs)
		}
		for _, p := range prereqs {
			edges = append(edges, map[string]any{"from_id": p, "to_id": c.ConceptID})
		}
	}

	session := g.client.Session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)
	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if err := run(ctx, tx, `
UNWIND $nodes AS n
MERGE (c:NCERTConcept {id: n.id})
SET c += n
`, map[string]any{"nodes": nodes}); err != nil {
			return nil, err
		}
		if len(edges) == 0 {
			return nil, nil
		}
		return nil, run(ctx, tx, `
UNWIND $edges AS e
MATCH (a:NCERTConcept {id: e.from_id})
MATCH (b:NCERTConcept {id: e.to_id})
MERGE (a)-[:PREREQUISITE_OF]->(b)
`, map[string]any{"edges": edges})
	})
	if err != nil {
		return fmt.Errorf("neo4j concept sync: %w", err)
	}
	return nil
}

// ProjectVideo replaces the video's COVERS edges with its current mappings.
func (g *VideoGraph) ProjectVideo(ctx context.Context, v *types.Video, mappings []types.ConceptMapping) error {
	if !g.Enabled() || v == nil || v.VideoID == "" {
		return nil
	}
	video := map[string]any{
		"id":            v.VideoID,
		"title":         v.Title,
		"channel_id":    v.ChannelID,
		"channel_title": v.ChannelTitle,
		"synced_at":     time.Now().UTC().Format(time.RFC3339Nano),
	}
	covers := coverRows(mappings)

	session := g.client.Session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)
	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if err := run(ctx, tx, `
MERGE (v:Video {id: $video.id})
SET v += $video
WITH v
OPTIONAL MATCH (v)-[old:COVERS]->()
DELETE old
`, map[string]any{"video": video}); err != nil {
			return nil, err
		}
		if len(covers) == 0 {
			return nil, nil
		}
		return nil, run(ctx, tx, `
MATCH (v:Video {id: $video_id})
UNWIND $covers AS c
MERGE (m:MappedConcept {key: c.key})
SET m.name = c.concept, m.subject = c.subject, m.class = c.class
MERGE (v)-[e:COVERS]->(m)
SET e.confidence = c.confidence,
    e.first_start = c.first_start,
    e.ranges_json = c.ranges_json
WITH m
OPTIONAL MATCH (n:NCERTConcept {title_key: m.key})
FOREACH (_ IN CASE WHEN n IS NULL THEN [] ELSE [1] END | MERGE (m)-[:SAME_AS]->(n))
`, map[string]any{"video_id": v.VideoID, "covers": covers})
	})
	if err != nil {
		return fmt.Errorf("neo4j video projection: %w", err)
	}
	return nil
}

// VideosForConcept matches a catalog concept id or a mapped concept name.
func (g *VideoGraph) VideosForConcept(ctx context.Context, concept string, limit int) ([]VideoRef, error) {
	if !g.Enabled() {
		return nil, fmt.Errorf("concept graph not configured")
	}
	if limit <= 0 {
		limit = 20
	}
	session := g.client.Session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (v:Video)-[c:COVERS]->(m:MappedConcept)
WHERE m.key = $key OR EXISTS { MATCH (m)-[:SAME_AS]->(:NCERTConcept {id: $id}) }
RETURN v.id AS video_id, v.title AS title, m.name AS concept, c.confidence AS confidence, c.first_start AS first_start
ORDER BY confidence DESC, video_id ASC
LIMIT $limit
`, map[string]any{"key": conceptKey(concept), "id": concept, "limit": int64(limit)})
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		refs := make([]VideoRef, 0, len(records))
		for _, rec := range records {
			refs = append(refs, VideoRef{
				VideoID:    recordString(rec, "video_id"),
				Title:      recordString(rec, "title"),
				Concept:    recordString(rec, "concept"),
				Confidence: recordFloat(rec, "confidence"),
				FirstStart: recordFloat(rec, "first_start"),
			})
		}
		return refs, nil
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j videos for concept: %w", err)
	}
	return out.([]VideoRef), nil
}

func coverRows(mappings []types.ConceptMapping) []map[string]any {
	rows := make([]map[string]any, 0, len(mappings))
	for _, m := range mappings {
		key := conceptKey(m.Concept)
		if key == "" {
			continue
		}
		first := -1.0
		for _, r := range m.RelevantTimestamps {
			if first < 0 || r.Start < first {
				first = r.Start
			}
		}
		ranges, _ := json.Marshal(m.RelevantTimestamps)
		rows = append(rows, map[string]any{
			"key":         key,
			"concept":     m.Concept,
			"subject":     m.Subject,
			"class":       int64(m.Class),
			"confidence":  m.Confidence,
			"first_start": first,
			"ranges_json": string(ranges),
		})
	}
	return rows
}

func conceptKey(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

func run(ctx context.Context, tx neo4j.ManagedTransaction, cypher string, params map[string]any) error {
	res, err := tx.Run(ctx, cypher, params)
	if err != nil {
		return err
	}
	_, err = res.Consume(ctx)
	return err
}

func recordString(rec *neo4j.Record, key string) string {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

func recordFloat(rec *neo4j.Record, key string) float64 {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	}
	return 0
}
