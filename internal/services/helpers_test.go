package services

import (
	"context"
	"errors"
	"testing"

	"github.com/yungbote/ncertlens-backend/internal/data/repos"
	"github.com/yungbote/ncertlens-backend/internal/data/repos/testutil"
	types "github.com/yungbote/ncertlens-backend/internal/domain"
	"github.com/yungbote/ncertlens-backend/internal/pkg/dbctx"
	"github.com/yungbote/ncertlens-backend/internal/platform/apierr"
)

func newRepos(t *testing.T) repos.Set {
	t.Helper()
	return repos.NewSet(testutil.DB(t), testutil.Logger(t))
}

// completeVideo runs a claim/complete cycle so the record looks like a finished pipeline run.
func completeVideo(t *testing.T, videos repos.VideoRepo, id string, c repos.Completion) {
	t.Helper()
	dbc := dbctx.New(context.Background())
	claim, err := videos.Claim(dbc, id, true, "seed-"+id)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if !claim.Outcome.Claimed() {
		t.Fatalf("Claim: want claimed got=%s", claim.Outcome)
	}
	if c.Metadata == nil {
		c.Metadata = &types.Video{VideoID: id, Title: "Video " + id}
	}
	ok, err := videos.Complete(dbc, id, "seed-"+id, c)
	if err != nil || !ok {
		t.Fatalf("Complete: ok=%v err=%v", ok, err)
	}
}

func wantAPIErr(t *testing.T, err error, status int, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("want api error %d/%s, got nil", status, code)
	}
	var ae *apierr.Error
	if !errors.As(err, &ae) {
		t.Fatalf("want *apierr.Error got=%T (%v)", err, err)
	}
	if ae.Status != status || (code != "" && ae.Code != code) {
		t.Fatalf("api error: want=%d/%s got=%d/%s (%v)", status, code, ae.Status, ae.Code, ae.Err)
	}
}
