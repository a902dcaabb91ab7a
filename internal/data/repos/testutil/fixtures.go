package testutil

import (
	"context"
	"crypto/rand"
	"testing"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/yungbote/ncertlens-backend/internal/domain"
)

const idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

// VideoID returns a random well-formed 11 character id.
func VideoID(tb testing.TB) string {
	tb.Helper()
	b := make([]byte, 11)
	if _, err := rand.Read(b); err != nil {
		tb.Fatalf("rand: %v", err)
	}
	for i := range b {
		b[i] = idAlphabet[int(b[i])%len(idAlphabet)]
	}
	return string(b)
}

func SeedVideo(tb testing.TB, ctx context.Context, tx *gorm.DB, videoID, status string) *types.Video {
	tb.Helper()
	now := time.Now().UTC()
	v := &types.Video{
		VideoID:          videoID,
		Title:            "Seeded " + videoID,
		ProcessingStatus: status,
		NCERTMappings:    datatypes.JSON([]byte("[]")),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := tx.WithContext(ctx).Create(v).Error; err != nil {
		tb.Fatalf("seed video: %v", err)
	}
	return v
}
