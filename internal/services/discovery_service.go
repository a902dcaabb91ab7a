package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/datatypes"

	"github.com/yungbote/ncertlens-backend/internal/data/repos"
	types "github.com/yungbote/ncertlens-backend/internal/domain"
	"github.com/yungbote/ncertlens-backend/internal/pkg/dbctx"
	"github.com/yungbote/ncertlens-backend/internal/platform/apierr"
	"github.com/yungbote/ncertlens-backend/internal/platform/logger"
	"github.com/yungbote/ncertlens-backend/internal/platform/youtube"
)

const (
	defaultDiscoverMax = 50
	maxDiscoverMax     = 500
)

type ChannelLister interface {
	ChannelUploads(ctx context.Context, channelID string, max int) ([]youtube.UploadItem, error)
}

type DiscoveryResult struct {
	ChannelID string   `json:"channelId"`
	Found     int      `json:"found"`
	Created   int      `json:"created"`
	VideoIDs  []string `json:"videoIds"`
}

type DiscoveryService interface {
	Discover(dbc dbctx.Context, channelID string, max int) (*DiscoveryResult, error)
}

type discoveryService struct {
	log      *logger.Logger
	channels ChannelLister
	videos   repos.VideoRepo
}

func NewDiscoveryService(baseLog *logger.Logger, channels ChannelLister, videos repos.VideoRepo) DiscoveryService {
	return &discoveryService{
		log:      baseLog.With("service", "DiscoveryService"),
		channels: channels,
		videos:   videos,
	}
}

// Discover records a channel's uploads as pending videos. Records already
// past pending keep their state.
func (s *discoveryService) Discover(dbc dbctx.Context, channelID string, max int) (*DiscoveryResult, error) {
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return nil, apierr.BadRequest("invalid_channel_id", fmt.Errorf("channelId is required"))
	}
	if max == 0 {
		max = defaultDiscoverMax
	}
	if max < 1 || max > maxDiscoverMax {
		return nil, apierr.BadRequest("invalid_max", fmt.Errorf("max must be between 1 and %d", maxDiscoverMax))
	}
	if s.channels == nil {
		return nil, unavailable("youtube_unavailable", "YouTube API")
	}

	items, err := s.channels.ChannelUploads(dbc.Ctx, channelID, max)
	if errors.Is(err, youtube.ErrChannelNotFound) {
		return nil, apierr.NotFound("channel_not_found", err)
	}
	if err != nil {
		return nil, apierr.New(http.StatusBadGateway, "youtube_request_failed", err)
	}

	res := &DiscoveryResult{ChannelID: channelID, VideoIDs: []string{}}
	batch := make([]*types.Video, 0, len(items))
	for _, it := range items {
		if !types.IsVideoID(it.VideoID) {
			s.log.Warn("Skipping upload with malformed id", "channel_id", channelID, "video_id", it.VideoID)
			continue
		}
		batch = append(batch, &types.Video{
			VideoID:      it.VideoID,
			Title:        it.Title,
			Description:  it.Description,
			ChannelID:    it.ChannelID,
			ChannelTitle: it.ChannelTitle,
			PublishedAt:  it.PublishedAt,
			Thumbnails:   datatypes.JSON([]byte("{}")),
			Tags:         emptyJSONList(),
		})
		res.VideoIDs = append(res.VideoIDs, it.VideoID)
	}
	res.Found = len(batch)

	created, err := s.videos.CreatePending(dbc, batch)
	if err != nil {
		return nil, fmt.Errorf("store discovered videos: %w", err)
	}
	res.Created = created
	s.log.Info("Channel discovered", "channel_id", channelID, "found", res.Found, "created", created)
	return res, nil
}

func emptyJSONList() datatypes.JSON {
	b, _ := json.Marshal([]string{})
	return datatypes.JSON(b)
}
