package curriculum

import (
	"context"
	"testing"
	"time"

	"gorm.io/datatypes"

	"github.com/yungbote/ncertlens-backend/internal/data/repos/testutil"
	types "github.com/yungbote/ncertlens-backend/internal/domain"
	"github.com/yungbote/ncertlens-backend/internal/pkg/dbctx"
)

func TestConceptRepoUpsertAndList(t *testing.T) {
	db := testutil.DB(t)
	repo := NewConceptRepo(db, testutil.Logger(t))
	dbc := dbctx.New(context.Background())

	concepts := []*types.Concept{
		{ConceptID: "phy-9-force-1", Title: "Balanced forces", Subject: "Physics", Class: 9, ChapterNumber: 9, Content: "forces", Keywords: datatypes.JSON(`["force"]`)},
		{ConceptID: "bio-10-life-1", Title: "Nutrition", Subject: "Biology", Class: 10, ChapterNumber: 6, Content: "nutrition"},
	}
	if err := repo.Upsert(dbc, concepts); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := repo.MarkIndexed(dbc, []string{"phy-9-force-1", "bio-10-life-1"}, time.Now().UTC()); err != nil {
		t.Fatalf("MarkIndexed: %v", err)
	}
	if pending, _ := repo.ListUnindexed(dbc, 10); len(pending) != 0 {
		t.Fatalf("ListUnindexed: want none, got=%d", len(pending))
	}

	if err := repo.Upsert(dbc, []*types.Concept{{ConceptID: "phy-9-force-1", Title: "Balanced and unbalanced forces", Subject: "Physics", Class: 9, Content: "forces"}}); err != nil {
		t.Fatalf("Upsert update: %v", err)
	}
	c, err := repo.Get(dbc, "phy-9-force-1")
	if err != nil || c == nil {
		t.Fatalf("Get: c=%v err=%v", c, err)
	}
	if c.Title != "Balanced and unbalanced forces" || c.IndexedAt != nil {
		t.Fatalf("updated concept: %+v", c)
	}
	pending, err := repo.ListUnindexed(dbc, 10)
	if err != nil || len(pending) != 1 || pending[0].ConceptID != "phy-9-force-1" {
		t.Fatalf("ListUnindexed after change: %v err=%v", pending, err)
	}

	physics, err := repo.List(dbc, ConceptFilter{Subject: "Physics"})
	if err != nil || len(physics) != 1 {
		t.Fatalf("List subject: %v err=%v", physics, err)
	}
	class10, err := repo.List(dbc, ConceptFilter{Class: 10})
	if err != nil || len(class10) != 1 || class10[0].Subject != "Biology" {
		t.Fatalf("List class: %v err=%v", class10, err)
	}
	if c, err := repo.Get(dbc, "missing"); err != nil || c != nil {
		t.Fatalf("Get missing: c=%v err=%v", c, err)
	}
}
