package similarity

import (
	"testing"

	types "github.com/yungbote/ncertlens-backend/internal/domain"
)

func TestVideoDocForPicksDominantMapping(t *testing.T) {
	v := &types.Video{VideoID: "aaaaaaaaaaa", Title: "Light", ChannelID: "UC1", ChannelTitle: "Physics Wallah"}
	mappings := []types.ConceptMapping{
		{Concept: "Refraction", Subject: "Physics", Class: 10, Confidence: 0.8},
		{Concept: "Lens formula", Subject: "Mathematics", Class: 11, Confidence: 0.9},
	}
	doc := VideoDocFor(v, []float32{1}, mappings, "", 0)
	if doc.Subject != "Mathematics" || doc.Grade != 11 {
		t.Fatalf("dominant: want=Mathematics/11 got=%s/%d", doc.Subject, doc.Grade)
	}
	doc = VideoDocFor(v, []float32{1}, mappings, "Physics", 0)
	if doc.Subject != "Physics" || doc.Grade != 11 {
		t.Fatalf("override: want=Physics/11 got=%s/%d", doc.Subject, doc.Grade)
	}
	doc = VideoDocFor(v, []float32{1}, nil, "", 0)
	if doc.Subject != "" || doc.Grade != 0 || doc.ChannelTitle != "Physics Wallah" {
		t.Fatalf("no mappings: got=%+v", doc)
	}
}
