package services

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/yungbote/ncertlens-backend/internal/data/graph"
	"github.com/yungbote/ncertlens-backend/internal/data/repos"
	"github.com/yungbote/ncertlens-backend/internal/data/repos/testutil"
	types "github.com/yungbote/ncertlens-backend/internal/domain"
	"github.com/yungbote/ncertlens-backend/internal/modules/similarity"
	"github.com/yungbote/ncertlens-backend/internal/pkg/dbctx"
	"github.com/yungbote/ncertlens-backend/internal/platform/youtube"
)

type fakeChannels struct {
	items []youtube.UploadItem
	err   error
}

func (f *fakeChannels) ChannelUploads(_ context.Context, _ string, max int) ([]youtube.UploadItem, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.items) > max {
		return f.items[:max], nil
	}
	return f.items, nil
}

func TestDiscoverCreatesPendingOnlyForNewVideos(t *testing.T) {
	rs := newRepos(t)
	done := testutil.VideoID(t)
	completeVideo(t, rs.Videos, done, repos.Completion{})
	fresh := testutil.VideoID(t)
	now := time.Now().UTC()
	ch := &fakeChannels{items: []youtube.UploadItem{
		{VideoID: fresh, Title: "Fresh", ChannelID: "UC1", PublishedAt: &now},
		{VideoID: done, Title: "Renamed", ChannelID: "UC1"},
		{VideoID: "bad", Title: "Malformed"},
	}}
	svc := NewDiscoveryService(testutil.Logger(t), ch, rs.Videos)
	dbc := dbctx.New(context.Background())

	res, err := svc.Discover(dbc, "UC1", 0)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if res.Found != 2 || res.Created != 1 {
		t.Fatalf("result: want found=2 created=1 got=%+v", res)
	}
	v, _ := rs.Videos.Get(dbc, fresh)
	if v == nil || v.ProcessingStatus != types.VideoStatusPending || v.Title != "Fresh" {
		t.Fatalf("fresh: got=%+v", v)
	}
	v, _ = rs.Videos.Get(dbc, done)
	if v.ProcessingStatus != types.VideoStatusCompleted || v.Title == "Renamed" {
		t.Fatalf("completed record must be left alone: got status=%s title=%s", v.ProcessingStatus, v.Title)
	}
}

func TestDiscoverErrors(t *testing.T) {
	rs := newRepos(t)
	dbc := dbctx.New(context.Background())

	_, err := NewDiscoveryService(testutil.Logger(t), nil, rs.Videos).Discover(dbc, "UC1", 0)
	wantAPIErr(t, err, http.StatusServiceUnavailable, "youtube_unavailable")

	missing := &fakeChannels{err: fmt.Errorf("lookup: %w", youtube.ErrChannelNotFound)}
	_, err = NewDiscoveryService(testutil.Logger(t), missing, rs.Videos).Discover(dbc, "UC404", 0)
	wantAPIErr(t, err, http.StatusNotFound, "channel_not_found")

	_, err = NewDiscoveryService(testutil.Logger(t), &fakeChannels{}, rs.Videos).Discover(dbc, " ", 0)
	wantAPIErr(t, err, http.StatusBadRequest, "invalid_channel_id")
}

type fakeGraph struct{ refs []graph.VideoRef }

func (f *fakeGraph) VideosForConcept(context.Context, string, int) ([]graph.VideoRef, error) {
	return f.refs, nil
}

func TestConceptServiceListGetVideos(t *testing.T) {
	rs := newRepos(t)
	dbc := dbctx.New(context.Background())
	if err := rs.Concepts.Upsert(dbc, []*types.Concept{
		{ConceptID: "PHY-10-12-1", Title: "Ohm's Law", Subject: "Physics", Class: 10},
		{ConceptID: "BIO-9-5-1", Title: "Cell", Subject: "Biology", Class: 9},
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	svc := NewConceptService(testutil.Logger(t), rs.Concepts, nil)

	list, err := svc.List(dbc, "Physics", 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].ConceptID != "PHY-10-12-1" {
		t.Fatalf("list: got=%+v", list)
	}
	if _, err := svc.Get(dbc, "NOPE"); err == nil {
		t.Fatalf("Get missing: want error")
	}
	_, err = svc.Get(dbc, "NOPE")
	wantAPIErr(t, err, http.StatusNotFound, "concept_not_found")

	_, err = svc.Videos(context.Background(), "PHY-10-12-1", 0)
	wantAPIErr(t, err, http.StatusServiceUnavailable, "graph_unavailable")

	g := &fakeGraph{refs: []graph.VideoRef{{VideoID: "abcdefghijk", Concept: "Ohm's Law", Confidence: 0.9}}}
	refs, err := NewConceptService(testutil.Logger(t), rs.Concepts, g).Videos(context.Background(), "PHY-10-12-1", 0)
	if err != nil || len(refs) != 1 {
		t.Fatalf("Videos: refs=%v err=%v", refs, err)
	}
}

type recordingIndexer struct {
	docs []similarity.VideoDoc
	fail map[string]bool
}

func (r *recordingIndexer) UpsertVideo(_ context.Context, doc similarity.VideoDoc) error {
	if r.fail[doc.VideoID] {
		return fmt.Errorf("qdrant down")
	}
	r.docs = append(r.docs, doc)
	return nil
}
func (r *recordingIndexer) VideoCollection() string { return "video_embeddings" }

type countingConcepts struct{ n int }

func (c *countingConcepts) IndexPending(context.Context) (int, error) { return c.n, nil }

func TestReindexRepairsUnindexedVideos(t *testing.T) {
	rs := newRepos(t)
	stored, missing, broken := testutil.VideoID(t), testutil.VideoID(t), testutil.VideoID(t)
	completeVideo(t, rs.Videos, stored, repos.Completion{
		Embedding: []float32{0.5, 0.5},
		Mappings:  []types.ConceptMapping{{Concept: "Cell", Subject: "Biology", Class: 9, Confidence: 0.9, RelevantTimestamps: []types.TimestampRange{}}},
	})
	completeVideo(t, rs.Videos, missing, repos.Completion{Transcript: "re-embed me"})
	completeVideo(t, rs.Videos, broken, repos.Completion{Embedding: []float32{1}})

	ix := &recordingIndexer{fail: map[string]bool{broken: true}}
	emb := &fakeLLM{}
	svc := NewReindexService(testutil.Logger(t), rs.Videos, ix, &countingConcepts{n: 3}, emb, nil, 0)

	res, err := svc.Run(context.Background(), true, true)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Videos != 2 || res.Failed != 1 || res.Concepts != 3 {
		t.Fatalf("result: got=%+v", res)
	}
	if emb.calls != 1 {
		t.Fatalf("embed calls: want=1 got=%d", emb.calls)
	}
	for _, d := range ix.docs {
		if d.VideoID == stored && (d.Subject != "Biology" || d.Grade != 9) {
			t.Fatalf("doc payload: got=%+v", d)
		}
	}

	dbc := dbctx.New(context.Background())
	left, err := rs.Videos.ListCompletedUnindexed(dbc, 10)
	if err != nil {
		t.Fatalf("ListCompletedUnindexed: %v", err)
	}
	if len(left) != 1 || left[0].VideoID != broken {
		t.Fatalf("unindexed: want only %s got=%d", broken, len(left))
	}
}
