package media

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/ncertlens-backend/internal/domain"
	"github.com/yungbote/ncertlens-backend/internal/pkg/dbctx"
	"github.com/yungbote/ncertlens-backend/internal/platform/logger"
)

type ClaimOutcome string

const (
	// ClaimCreated inserted a new record in processing.
	ClaimCreated ClaimOutcome = "created"
	// ClaimRestarted moved an existing pending/failed (or forced completed) record to processing.
	ClaimRestarted        ClaimOutcome = "restarted"
	ClaimAlreadyRunning   ClaimOutcome = "already_running"
	ClaimAlreadyCompleted ClaimOutcome = "already_completed"
)

// Claimed reports whether the caller now owns the run.
func (o ClaimOutcome) Claimed() bool {
	return o == ClaimCreated || o == ClaimRestarted
}

type ClaimResult struct {
	Outcome ClaimOutcome
	// Video is the stored record after the claim.
	Video *types.Video
}

// Completion carries everything a successful run writes.
type Completion struct {
	Metadata   *types.Video
	Transcript string
	Segments   []types.TranscriptSegment
	Embedding  []float32
	Mappings   []types.ConceptMapping
}

type VideoRepo interface {
	Claim(dbc dbctx.Context, videoID string, force bool, runID string) (ClaimResult, error)
	Heartbeat(dbc dbctx.Context, videoID, runID string) (bool, error)
	Complete(dbc dbctx.Context, videoID, runID string, c Completion) (bool, error)
	Fail(dbc dbctx.Context, videoID, runID, reason string) (bool, error)
	ResetStale(dbc dbctx.Context, olderThan time.Duration) (int64, error)

	Get(dbc dbctx.Context, videoID string) (*types.Video, error)
	GetByIDs(dbc dbctx.Context, ids []string) ([]*types.Video, error)
	CreatePending(dbc dbctx.Context, videos []*types.Video) (int, error)
	ListCompletedUnindexed(dbc dbctx.Context, limit int) ([]*types.Video, error)
	MarkIndexed(dbc dbctx.Context, videoID string, at time.Time) error
}

type videoRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewVideoRepo(db *gorm.DB, baseLog *logger.Logger) VideoRepo {
	return &videoRepo{
		db:  db,
		log: baseLog.With("repo", "VideoRepo"),
	}
}

// restartable lists the statuses a claim may move to processing.
func restartable(force bool) []string {
	if force {
		return []string{types.VideoStatusPending, types.VideoStatusFailed, types.VideoStatusCompleted}
	}
	return []string{types.VideoStatusPending, types.VideoStatusFailed}
}

// Claim moves the record to processing under runID. Each step is a single statement, so two
// concurrent claims for the same id can never both win.
func (r *videoRepo) Claim(dbc dbctx.Context, videoID string, force bool, runID string) (ClaimResult, error) {
	if strings.TrimSpace(videoID) == "" || strings.TrimSpace(runID) == "" {
		return ClaimResult{}, fmt.Errorf("claim: video id and run id required")
	}
	db := dbc.DB(r.db)

	// a row can change status between the update and the read; loop a few times
	for i := 0; i < 3; i++ {
		now := time.Now().UTC()
		fresh := &types.Video{
			VideoID:          videoID,
			ProcessingStatus: types.VideoStatusProcessing,
			RunID:            runID,
			HeartbeatAt:      &now,
			NCERTMappings:    datatypes.JSON([]byte("[]")),
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		ins := db.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "video_id"}}, DoNothing: true}).Create(fresh)
		if ins.Error != nil {
			return ClaimResult{}, ins.Error
		}
		if ins.RowsAffected == 1 {
			return ClaimResult{Outcome: ClaimCreated, Video: fresh}, nil
		}

		upd := db.Model(&types.Video{}).
			Where("video_id = ? AND processing_status IN ?", videoID, restartable(force)).
			Updates(map[string]interface{}{
				"processing_status": types.VideoStatusProcessing,
				"processing_error":  "",
				"run_id":            runID,
				"heartbeat_at":      now,
				"updated_at":        now,
			})
		if upd.Error != nil {
			return ClaimResult{}, upd.Error
		}

		v, err := r.Get(dbc, videoID)
		if err != nil {
			return ClaimResult{}, err
		}
		if v == nil {
			continue
		}
		if upd.RowsAffected == 1 {
			return ClaimResult{Outcome: ClaimRestarted, Video: v}, nil
		}
		switch v.ProcessingStatus {
		case types.VideoStatusCompleted:
			return ClaimResult{Outcome: ClaimAlreadyCompleted, Video: v}, nil
		case types.VideoStatusProcessing:
			return ClaimResult{Outcome: ClaimAlreadyRunning, Video: v}, nil
		}
	}
	return ClaimResult{}, fmt.Errorf("claim %s: status kept changing", videoID)
}

// runScope restricts an update to the live run; RowsAffected == 0 means the run lost ownership.
func (r *videoRepo) runScope(dbc dbctx.Context, videoID, runID string) *gorm.DB {
	return dbc.DB(r.db).Model(&types.Video{}).
		Where("video_id = ? AND processing_status = ? AND run_id = ?", videoID, types.VideoStatusProcessing, runID)
}

func (r *videoRepo) Heartbeat(dbc dbctx.Context, videoID, runID string) (bool, error) {
	now := time.Now().UTC()
	res := r.runScope(dbc, videoID, runID).Updates(map[string]interface{}{
		"heartbeat_at": now,
		"updated_at":   now,
	})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *videoRepo) Complete(dbc dbctx.Context, videoID, runID string, c Completion) (bool, error) {
	segments, err := marshalJSON(c.Segments, "[]")
	if err != nil {
		return false, fmt.Errorf("encode transcript segments: %w", err)
	}
	mappings, err := marshalJSON(c.Mappings, "[]")
	if err != nil {
		return false, fmt.Errorf("encode mappings: %w", err)
	}
	embedding, err := marshalJSON(c.Embedding, "null")
	if err != nil {
		return false, fmt.Errorf("encode embedding: %w", err)
	}

	now := time.Now().UTC()
	updates := map[string]interface{}{
		"processing_status":   types.VideoStatusCompleted,
		"processing_error":    "",
		"transcript":          c.Transcript,
		"transcript_segments": segments,
		"embedding":           embedding,
		"ncert_mappings":      mappings,
		"last_processed":      now,
		"heartbeat_at":        nil,
		"indexed_at":          nil,
		"updated_at":          now,
	}
	if m := c.Metadata; m != nil {
		for k, v := range metadataColumns(m) {
			updates[k] = v
		}
	}

	res := r.runScope(dbc, videoID, runID).Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		r.log.Warn("Complete lost ownership", "video_id", videoID, "run_id", runID)
	}
	return res.RowsAffected > 0, nil
}

// Fail never touches the mapping fields so a previous successful result stays readable.
func (r *videoRepo) Fail(dbc dbctx.Context, videoID, runID, reason string) (bool, error) {
	now := time.Now().UTC()
	res := r.runScope(dbc, videoID, runID).Updates(map[string]interface{}{
		"processing_status": types.VideoStatusFailed,
		"processing_error":  truncate(reason, 2000),
		"last_processed":    now,
		"heartbeat_at":      nil,
		"updated_at":        now,
	})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		r.log.Warn("Fail lost ownership", "video_id", videoID, "run_id", runID)
	}
	return res.RowsAffected > 0, nil
}

// ResetStale fails processing rows whose heartbeat is older than olderThan.
func (r *videoRepo) ResetStale(dbc dbctx.Context, olderThan time.Duration) (int64, error) {
	now := time.Now().UTC()
	cutoff := now.Add(-olderThan)
	res := dbc.DB(r.db).Model(&types.Video{}).
		Where("processing_status = ?", types.VideoStatusProcessing).
		Where("(heartbeat_at IS NOT NULL AND heartbeat_at < ?) OR (heartbeat_at IS NULL AND updated_at < ?)", cutoff, cutoff).
		Updates(map[string]interface{}{
			"processing_status": types.VideoStatusFailed,
			"processing_error":  fmt.Sprintf("processing abandoned: no heartbeat for %s", olderThan),
			"last_processed":    now,
			"heartbeat_at":      nil,
			"updated_at":        now,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *videoRepo) Get(dbc dbctx.Context, videoID string) (*types.Video, error) {
	var v types.Video
	err := dbc.DB(r.db).Where("video_id = ?", videoID).First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *videoRepo) GetByIDs(dbc dbctx.Context, ids []string) ([]*types.Video, error) {
	var out []*types.Video
	if len(ids) == 0 {
		return out, nil
	}
	if err := dbc.DB(r.db).Where("video_id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// CreatePending inserts unseen videos as pending and refreshes metadata of records still pending.
// It returns the number of new records.
func (r *videoRepo) CreatePending(dbc dbctx.Context, videos []*types.Video) (int, error) {
	created := 0
	err := dbc.DB(r.db).Transaction(func(tx *gorm.DB) error {
		for _, v := range videos {
			if v == nil || v.VideoID == "" {
				continue
			}
			now := time.Now().UTC()
			v.ProcessingStatus = types.VideoStatusPending
			v.RunID = ""
			if len(v.NCERTMappings) == 0 {
				v.NCERTMappings = datatypes.JSON([]byte("[]"))
			}
			v.CreatedAt, v.UpdatedAt = now, now

			res := tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "video_id"}}, DoNothing: true}).Create(v)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 1 {
				created++
				continue
			}
			updates := metadataColumns(v)
			updates["updated_at"] = now
			if err := tx.Model(&types.Video{}).
				Where("video_id = ? AND processing_status = ?", v.VideoID, types.VideoStatusPending).
				Updates(updates).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

func (r *videoRepo) ListCompletedUnindexed(dbc dbctx.Context, limit int) ([]*types.Video, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []*types.Video
	err := dbc.DB(r.db).
		Where("processing_status = ? AND indexed_at IS NULL", types.VideoStatusCompleted).
		Order("last_processed ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *videoRepo) MarkIndexed(dbc dbctx.Context, videoID string, at time.Time) error {
	return dbc.DB(r.db).Model(&types.Video{}).
		Where("video_id = ?", videoID).
		Updates(map[string]interface{}{"indexed_at": at, "updated_at": time.Now().UTC()}).Error
}

func metadataColumns(m *types.Video) map[string]interface{} {
	out := map[string]interface{}{
		"title":            m.Title,
		"description":      m.Description,
		"channel_id":       m.ChannelID,
		"channel_title":    m.ChannelTitle,
		"duration":         m.Duration,
		"duration_seconds": m.DurationSeconds,
		"category_id":      m.CategoryID,
		"default_language": m.DefaultLanguage,
		"view_count":       m.ViewCount,
		"like_count":       m.LikeCount,
	}
	if m.PublishedAt != nil {
		out["published_at"] = m.PublishedAt
	}
	if len(m.Thumbnails) > 0 {
		out["thumbnails"] = m.Thumbnails
	}
	if len(m.Tags) > 0 {
		out["tags"] = m.Tags
	}
	return out
}

func marshalJSON(v any, empty string) (datatypes.JSON, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(b) == "null" {
		b = []byte(empty)
	}
	return datatypes.JSON(b), nil
}

// truncate caps s at n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
