package video_process

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yungbote/ncertlens-backend/internal/data/repos"
	"github.com/yungbote/ncertlens-backend/internal/data/repos/testutil"
	types "github.com/yungbote/ncertlens-backend/internal/domain"
	"github.com/yungbote/ncertlens-backend/internal/jobs/queue"
	"github.com/yungbote/ncertlens-backend/internal/jobs/runtime"
	"github.com/yungbote/ncertlens-backend/internal/modules/concepts"
	"github.com/yungbote/ncertlens-backend/internal/modules/similarity"
	"github.com/yungbote/ncertlens-backend/internal/modules/transcript"
	"github.com/yungbote/ncertlens-backend/internal/pkg/dbctx"
	"github.com/yungbote/ncertlens-backend/internal/platform/llm"
	"github.com/yungbote/ncertlens-backend/internal/platform/logger"
	"github.com/yungbote/ncertlens-backend/internal/platform/retry"
	"github.com/yungbote/ncertlens-backend/internal/platform/youtube"
)

type fakeMetadata struct{ err error }

func (f fakeMetadata) VideoDetails(ctx context.Context, id string) (*youtube.VideoMetadata, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &youtube.VideoMetadata{
		VideoID:      id,
		Title:        "Refraction of Light",
		ChannelID:    "UCphys",
		ChannelTitle: "Physics Class",
		Duration:     "PT1M30S",
		Tags:         []string{"light"},
	}, nil
}

type fakeTranscripts struct {
	caps []youtube.Caption
	err  error
}

func (f fakeTranscripts) Transcript(ctx context.Context, id string) ([]youtube.Caption, error) {
	return f.caps, f.err
}

type fakeEmbedder struct{}

func (fakeEmbedder) GenerateText(context.Context, string, string) (string, error) { return "", nil }
func (fakeEmbedder) Embed(_ context.Context, in []string) ([][]float32, error) {
	out := make([][]float32, len(in))
	for i := range in {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}
func (fakeEmbedder) Provider() string { return "fake" }

type fakeExtractor struct {
	got  concepts.ExtractOptions
	hook func()
	err  error
}

func (f *fakeExtractor) Extract(ctx context.Context, text string, opts concepts.ExtractOptions) (concepts.Extraction, error) {
	f.got = opts
	if f.hook != nil {
		f.hook()
	}
	if f.err != nil {
		return concepts.Extraction{}, f.err
	}
	return concepts.Extraction{Kind: concepts.Parsed, Concepts: []concepts.Candidate{
		{Concept: "Refraction", Subject: "Physics", Class: 10, Confidence: 0.9},
		{Concept: "Snell's law", Subject: "Physics", Class: 10, Confidence: 0.8},
	}}, nil
}

type fakeResolver struct {
	block bool
}

func (f fakeResolver) ResolveAll(ctx context.Context, chunks []transcript.Chunk, names []string, th float64, n int) ([][]types.TimestampRange, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	out := make([][]types.TimestampRange, len(names))
	out[0] = []types.TimestampRange{{Start: 0, End: 30, Confidence: 0.9}, {Start: 60, End: 90, Confidence: 0.7}}
	return out, nil
}

type recordingIndex struct {
	mu   sync.Mutex
	docs []similarity.VideoDoc
	err  error
}

func (r *recordingIndex) UpsertVideo(ctx context.Context, doc similarity.VideoDoc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.docs = append(r.docs, doc)
	return nil
}

type recordingGraph struct{ projected []string }

func (g *recordingGraph) ProjectVideo(ctx context.Context, v *types.Video, m []types.ConceptMapping) error {
	g.projected = append(g.projected, v.VideoID)
	return nil
}

func captions() []youtube.Caption {
	return []youtube.Caption{
		{OffsetMs: 0, DurationMs: 4000, Text: "Light bends when it [Music] enters glass."},
		{OffsetMs: 65000, DurationMs: 5000, Text: "This is Snell's law."},
	}
}

type harness struct {
	videos repos.VideoRepo
	index  *recordingIndex
	graph  *recordingGraph
	ext    *fakeExtractor
	deps   Deps
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.DB(t)
	h := &harness{
		videos: repos.NewVideoRepo(db, testutil.Logger(t)),
		index:  &recordingIndex{},
		graph:  &recordingGraph{},
		ext:    &fakeExtractor{},
	}
	h.deps = Deps{
		Metadata:    fakeMetadata{},
		Transcripts: fakeTranscripts{caps: captions()},
		Embedder:    fakeEmbedder{},
		Extractor:   h.ext,
		Resolver:    fakeResolver{},
		Index:       h.index,
		Graph:       h.graph,
		MarkIndexed: func(ctx context.Context, id string, at time.Time) error {
			return h.videos.MarkIndexed(dbctx.New(ctx), id, at)
		},
	}
	return h
}

func (h *harness) claim(t *testing.T, ctx context.Context, job queue.Job) *runtime.Context {
	t.Helper()
	res, err := h.videos.Claim(dbctx.New(ctx), job.VideoID, job.Force, job.RunID)
	if err != nil || !res.Outcome.Claimed() {
		t.Fatalf("Claim: outcome=%s err=%v", res.Outcome, err)
	}
	return runtime.NewContext(ctx, testutil.Logger(t), job, h.videos)
}

func (h *harness) get(t *testing.T, id string) *types.Video {
	t.Helper()
	v, err := h.videos.Get(dbctx.New(context.Background()), id)
	if err != nil || v == nil {
		t.Fatalf("Get: v=%v err=%v", v, err)
	}
	return v
}

func TestRunCompletesAndIndexes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := testutil.VideoID(t)
	jc := h.claim(t, ctx, queue.Job{VideoID: id, RunID: "run-1", Subject: "Physics", Class: 10})

	out, err := New(testutil.Logger(t), Config{TimestampConcurrency: 2}, h.deps).Execute(jc)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.Concepts != 2 || !out.Indexed || out.Extraction != concepts.Parsed {
		t.Fatalf("Outcome: got=%+v", out)
	}
	if h.ext.got.Subject != "Physics" || h.ext.got.Class != 10 {
		t.Fatalf("extract options: got=%+v", h.ext.got)
	}

	v := h.get(t, id)
	if v.ProcessingStatus != types.VideoStatusCompleted {
		t.Fatalf("status: want=completed got=%s (%s)", v.ProcessingStatus, v.ProcessingError)
	}
	if v.Title != "Refraction of Light" || v.ChannelTitle != "Physics Class" {
		t.Fatalf("metadata not persisted: %+v", v)
	}
	if v.Transcript != "Light bends when it enters glass. This is Snell's law." {
		t.Fatalf("transcript: got=%q", v.Transcript)
	}
	if v.IndexedAt == nil || v.LastProcessed == nil {
		t.Fatalf("timestamps: indexed=%v last=%v", v.IndexedAt, v.LastProcessed)
	}
	mappings, err := v.Mappings()
	if err != nil {
		t.Fatalf("Mappings: %v", err)
	}
	if len(mappings) != 2 || mappings[0].Concept != "Refraction" || len(mappings[0].RelevantTimestamps) != 2 {
		t.Fatalf("mappings: got=%+v", mappings)
	}
	if mappings[1].RelevantTimestamps == nil || len(mappings[1].RelevantTimestamps) != 0 {
		t.Fatalf("uncovered concept: want empty ranges got=%v", mappings[1].RelevantTimestamps)
	}
	if len(h.index.docs) != 1 || h.index.docs[0].Subject != "Physics" || h.index.docs[0].Title != "Refraction of Light" {
		t.Fatalf("index docs: got=%+v", h.index.docs)
	}
	if len(h.graph.projected) != 1 || h.graph.projected[0] != id {
		t.Fatalf("graph: got=%v", h.graph.projected)
	}
}

func TestRunFailureKeepsPreviousMappings(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := testutil.VideoID(t)

	jc := h.claim(t, ctx, queue.Job{VideoID: id, RunID: "run-1"})
	if _, err := New(testutil.Logger(t), Config{}, h.deps).Execute(jc); err != nil {
		t.Fatalf("first run: %v", err)
	}

	h.deps.Transcripts = fakeTranscripts{err: youtube.ErrNoTranscript}
	jc = h.claim(t, ctx, queue.Job{VideoID: id, RunID: "run-2", Force: true})
	if _, err := New(testutil.Logger(t), Config{}, h.deps).Execute(jc); !errors.Is(err, youtube.ErrNoTranscript) {
		t.Fatalf("second run: want=ErrNoTranscript got=%v", err)
	}

	v := h.get(t, id)
	if v.ProcessingStatus != types.VideoStatusFailed {
		t.Fatalf("status: want=failed got=%s", v.ProcessingStatus)
	}
	if v.ProcessingError != "transcript: no transcript available" {
		t.Fatalf("error: got=%q", v.ProcessingError)
	}
	mappings, _ := v.Mappings()
	if len(mappings) != 2 {
		t.Fatalf("previous mappings: want=2 got=%d", len(mappings))
	}
}

func TestRunEmptyTranscriptFails(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := testutil.VideoID(t)
	h.deps.Transcripts = fakeTranscripts{caps: []youtube.Caption{{Text: "[Music]"}}}

	jc := h.claim(t, ctx, queue.Job{VideoID: id, RunID: "run-1"})
	_, err := New(testutil.Logger(t), Config{}, h.deps).Execute(jc)
	if !errors.Is(err, transcript.ErrEmptyTranscript) {
		t.Fatalf("Execute: want=ErrEmptyTranscript got=%v", err)
	}
	if got := h.get(t, id).ProcessingStatus; got != types.VideoStatusFailed {
		t.Fatalf("status: want=failed got=%s", got)
	}
}

func TestRunIndexFailureLeavesUnindexed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := testutil.VideoID(t)
	h.index.err = errors.New("qdrant down")

	jc := h.claim(t, ctx, queue.Job{VideoID: id, RunID: "run-1"})
	out, err := New(testutil.Logger(t), Config{}, h.deps).Execute(jc)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.Indexed {
		t.Fatalf("Indexed: want=false")
	}
	v := h.get(t, id)
	if v.ProcessingStatus != types.VideoStatusCompleted || v.IndexedAt != nil {
		t.Fatalf("want completed+unindexed got status=%s indexed=%v", v.ProcessingStatus, v.IndexedAt)
	}
}

func TestRunCancellationFails(t *testing.T) {
	h := newHarness(t)
	h.deps.Resolver = fakeResolver{block: true}
	id := testutil.VideoID(t)

	ctx, cancel := context.WithCancel(context.Background())
	jc := h.claim(t, ctx, queue.Job{VideoID: id, RunID: "run-1"})
	h.ext.hook = cancel

	_, err := New(testutil.Logger(t), Config{}, h.deps).Execute(jc)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Execute: want=Canceled got=%v", err)
	}
	if got := h.get(t, id).ProcessingStatus; got != types.VideoStatusFailed {
		t.Fatalf("status: want=failed got=%s", got)
	}
}

func TestRunLostOwnershipDropsResult(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := testutil.VideoID(t)
	jc := h.claim(t, ctx, queue.Job{VideoID: id, RunID: "run-1"})

	// the sweeper fails the record mid-run
	h.ext.hook = func() {
		if _, err := h.videos.Fail(dbctx.New(ctx), id, "run-1", "processing abandoned"); err != nil {
			t.Errorf("Fail: %v", err)
		}
	}
	_, err := New(testutil.Logger(t), Config{}, h.deps).Execute(jc)
	if !errors.Is(err, runtime.ErrLostOwnership) {
		t.Fatalf("Execute: want=ErrLostOwnership got=%v", err)
	}
	v := h.get(t, id)
	if v.ProcessingError != "processing abandoned" {
		t.Fatalf("sweeper write overwritten: got=%q", v.ProcessingError)
	}
	if len(h.index.docs) != 0 {
		t.Fatalf("index: want no upsert got=%d", len(h.index.docs))
	}
}

func TestRunRejectsInvalidVideoID(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	jc := h.claim(t, ctx, queue.Job{VideoID: "short", RunID: "run-1"})
	if _, err := New(testutil.Logger(t), Config{}, h.deps).Execute(jc); err == nil {
		t.Fatalf("Execute: expected error")
	}
	if got := h.get(t, "short").ProcessingStatus; got != types.VideoStatusFailed {
		t.Fatalf("status: want=failed got=%s", got)
	}
}

func TestRunWithoutOptionalDeps(t *testing.T) {
	h := newHarness(t)
	h.deps.Metadata = nil
	h.deps.Index = nil
	h.deps.Graph = nil
	ctx := context.Background()
	id := testutil.VideoID(t)
	jc := h.claim(t, ctx, queue.Job{VideoID: id, RunID: "run-1"})

	out, err := New(testutil.Logger(t), Config{}, h.deps).Execute(jc)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.Indexed {
		t.Fatalf("Indexed: want=false without an index")
	}
	if got := h.get(t, id).ProcessingStatus; got != types.VideoStatusCompleted {
		t.Fatalf("status: want=completed got=%s", got)
	}
}

// scriptedLLM answers concept prompts with concepts and timestamp prompts per concept.
type scriptedLLM struct {
	fakeEmbedder
	concepts   func() (string, error)
	timestamps func(concept string) (string, error)
}

func (s scriptedLLM) GenerateText(_ context.Context, _ string, user string) (string, error) {
	if i := strings.Index(user, `NCERT concept "`); i >= 0 {
		rest := user[i+len(`NCERT concept "`):]
		return s.timestamps(rest[:strings.IndexByte(rest, '"')])
	}
	return s.concepts()
}

func emptyReply() (string, error) {
	return "", fmt.Errorf("gemini: %w", llm.ErrEmptyResponse)
}

func (h *harness) useModel(m llm.Client) {
	h.deps.Extractor = concepts.NewExtractor(logger.Nop(), m)
	h.deps.Resolver = concepts.NewTimestampResolver(logger.Nop(), m)
}

func TestRunEmptyTimestampReplyCompletes(t *testing.T) {
	h := newHarness(t)
	h.useModel(scriptedLLM{
		concepts: func() (string, error) {
			return `[{"concept":"Refraction","subject":"Physics","confidence":0.9},{"concept":"Snell's law","subject":"Physics","confidence":0.8}]`, nil
		},
		timestamps: func(concept string) (string, error) {
			if concept == "Snell's law" {
				return emptyReply()
			}
			return `[{"startTime":0,"endTime":30,"confidence":0.9}]`, nil
		},
	})
	ctx := context.Background()
	id := testutil.VideoID(t)
	jc := h.claim(t, ctx, queue.Job{VideoID: id, RunID: "run-1"})

	out, err := New(testutil.Logger(t), Config{TimestampConcurrency: 2}, h.deps).Execute(jc)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.Concepts != 2 {
		t.Fatalf("Outcome: got=%+v", out)
	}
	v := h.get(t, id)
	if v.ProcessingStatus != types.VideoStatusCompleted {
		t.Fatalf("status: want=completed got=%s (%s)", v.ProcessingStatus, v.ProcessingError)
	}
	mappings, err := v.Mappings()
	if err != nil {
		t.Fatalf("Mappings: %v", err)
	}
	if len(mappings) != 2 || len(mappings[0].RelevantTimestamps) != 1 {
		t.Fatalf("mappings: got=%+v", mappings)
	}
	if mappings[1].Concept != "Snell's law" || mappings[1].RelevantTimestamps == nil || len(mappings[1].RelevantTimestamps) != 0 {
		t.Fatalf("empty reply: want concept with no ranges got=%+v", mappings[1])
	}
}

func TestRunEmptyConceptReplyCompletes(t *testing.T) {
	h := newHarness(t)
	h.useModel(scriptedLLM{
		concepts: emptyReply,
		timestamps: func(string) (string, error) {
			t.Errorf("no timestamp calls expected without concepts")
			return "", nil
		},
	})
	ctx := context.Background()
	id := testutil.VideoID(t)
	jc := h.claim(t, ctx, queue.Job{VideoID: id, RunID: "run-1"})

	out, err := New(testutil.Logger(t), Config{}, h.deps).Execute(jc)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.Extraction != concepts.Empty || out.Concepts != 0 {
		t.Fatalf("Outcome: got=%+v", out)
	}
	if got := h.get(t, id).ProcessingStatus; got != types.VideoStatusCompleted {
		t.Fatalf("status: want=completed got=%s", got)
	}
}

type failingFetcher struct {
	mu    sync.Mutex
	calls int
}

func (f *failingFetcher) FetchCaptions(ctx context.Context, videoID, lang string) ([]youtube.Caption, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return nil, errors.New("timedtext status 503")
}

func TestRunTranscriptRetriesExhausted(t *testing.T) {
	h := newHarness(t)
	fetcher := &failingFetcher{}
	h.deps.Transcripts = youtube.NewRetryingTranscriptSource(testutil.Logger(t), fetcher,
		youtube.WithRetry(retry.Config{Attempts: 3}))
	ctx := context.Background()
	id := testutil.VideoID(t)
	jc := h.claim(t, ctx, queue.Job{VideoID: id, RunID: "run-1"})

	_, err := New(testutil.Logger(t), Config{}, h.deps).Execute(jc)
	var exhausted *retry.ExhaustedError
	if !errors.As(err, &exhausted) || exhausted.Attempts != 3 {
		t.Fatalf("Execute: want ExhaustedError after 3 attempts got=%v", err)
	}
	if fetcher.calls != 3 {
		t.Fatalf("fetch calls: want=3 got=%d", fetcher.calls)
	}

	v := h.get(t, id)
	if v.ProcessingStatus != types.VideoStatusFailed {
		t.Fatalf("status: want=failed got=%s", v.ProcessingStatus)
	}
	if v.ProcessingError != "transcript: failed after 3 attempts: timedtext status 503" {
		t.Fatalf("error: got=%q", v.ProcessingError)
	}
	mappings, err := v.Mappings()
	if err != nil {
		t.Fatalf("Mappings: %v", err)
	}
	if len(mappings) != 0 {
		t.Fatalf("mappings: want empty got=%+v", mappings)
	}
}
