package graph

import (
	"context"
	"testing"

	types "github.com/yungbote/ncertlens-backend/internal/domain"
)

func TestNilGraphIsNoop(t *testing.T) {
	var g *VideoGraph
	if g.Enabled() {
		t.Fatalf("nil graph should be disabled")
	}
	if NewVideoGraph(nil, nil) != nil {
		t.Fatalf("NewVideoGraph(nil) should return nil")
	}
	ctx := context.Background()
	g.EnsureSchema(ctx)
	if err := g.UpsertConcepts(ctx, []*types.Concept{{ConceptID: "a"}}); err != nil {
		t.Fatalf("UpsertConcepts: %v", err)
	}
	if err := g.ProjectVideo(ctx, &types.Video{VideoID: "abcdefghijk"}, nil); err != nil {
		t.Fatalf("ProjectVideo: %v", err)
	}
	if _, err := g.VideosForConcept(ctx, "a", 5); err == nil {
		t.Fatalf("VideosForConcept should report the graph is not configured")
	}
}

func TestCoverRows(t *testing.T) {
	rows := coverRows([]types.ConceptMapping{
		{Concept: "  Newton's   First Law ", Confidence: 0.9, Class: 9, RelevantTimestamps: []types.TimestampRange{{Start: 90, End: 120}, {Start: 30, End: 60}}},
		{Concept: "   "},
		{Concept: "Friction", Confidence: 0.7},
	})
	if len(rows) != 2 {
		t.Fatalf("rows: want=2 got=%d", len(rows))
	}
	if rows[0]["key"] != "newton's first law" || rows[0]["first_start"] != 30.0 || rows[0]["class"] != int64(9) {
		t.Fatalf("row 0: %v", rows[0])
	}
	if rows[1]["first_start"] != -1.0 || rows[1]["ranges_json"] != "null" {
		t.Fatalf("row 1: %v", rows[1])
	}
}
