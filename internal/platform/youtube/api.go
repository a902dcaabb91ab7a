package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"github.com/yungbote/ncertlens-backend/internal/platform/logger"
)

// VideoMetadata is the subset of Videos.List that the pipeline persists.
type VideoMetadata struct {
	VideoID         string
	Title           string
	Description     string
	ChannelID       string
	ChannelTitle    string
	Duration        string
	DurationSeconds int
	PublishedAt     *time.Time
	Thumbnails      map[string]Thumbnail
	Tags            []string
	CategoryID      string
	DefaultLanguage string
	ViewCount       uint64
	LikeCount       uint64
}

type Thumbnail struct {
	URL    string `json:"url"`
	Width  int64  `json:"width,omitempty"`
	Height int64  `json:"height,omitempty"`
}

// UploadItem is one entry of a channel's uploads playlist.
type UploadItem struct {
	VideoID      string
	Title        string
	Description  string
	ChannelID    string
	ChannelTitle string
	PublishedAt  *time.Time
}

// Client wraps the YouTube Data API v3.
type Client struct {
	log *logger.Logger
	svc *yt.Service
}

// NewFromEnv returns nil, nil when YOUTUBE_API_KEY is unset.
func NewFromEnv(ctx context.Context, log *logger.Logger) (*Client, error) {
	apiKey := strings.TrimSpace(os.Getenv("YOUTUBE_API_KEY"))
	if apiKey == "" {
		return nil, nil
	}
	return New(ctx, log, option.WithAPIKey(apiKey))
}

func New(ctx context.Context, log *logger.Logger, opts ...option.ClientOption) (*Client, error) {
	if log == nil {
		log = logger.Nop()
	}
	svc, err := yt.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}
	return &Client{log: log.With("service", "YouTubeClient"), svc: svc}, nil
}

func (c *Client) VideoDetails(ctx context.Context, videoID string) (*VideoMetadata, error) {
	resp, err := c.svc.Videos.List([]string{"snippet", "contentDetails", "statistics"}).
		Id(videoID).
		Context(ctx).
		Do()
	if err != nil {
		return nil, classifyAPIError(err)
	}
	if len(resp.Items) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrVideoNotFound, videoID)
	}
	item := resp.Items[0]

	out := &VideoMetadata{VideoID: item.Id}
	if s := item.Snippet; s != nil {
		out.Title = s.Title
		out.Description = s.Description
		out.ChannelID = s.ChannelId
		out.ChannelTitle = s.ChannelTitle
		out.Tags = s.Tags
		out.CategoryID = s.CategoryId
		out.DefaultLanguage = s.DefaultLanguage
		out.PublishedAt = parseTime(s.PublishedAt)
		out.Thumbnails = thumbnails(s.Thumbnails)
	}
	if cd := item.ContentDetails; cd != nil {
		out.Duration = cd.Duration
		out.DurationSeconds = ParseDuration(cd.Duration)
	}
	if st := item.Statistics; st != nil {
		out.ViewCount = st.ViewCount
		out.LikeCount = st.LikeCount
	}
	return out, nil
}

// ChannelUploads lists up to max uploads (newest first) via the channel's uploads playlist.
func (c *Client) ChannelUploads(ctx context.Context, channelID string, max int) ([]UploadItem, error) {
	if max <= 0 {
		max = 50
	}
	chResp, err := c.svc.Channels.List([]string{"contentDetails", "snippet"}).
		Id(channelID).
		Context(ctx).
		Do()
	if err != nil {
		return nil, classifyAPIError(err)
	}
	if len(chResp.Items) == 0 || chResp.Items[0].ContentDetails == nil || chResp.Items[0].ContentDetails.RelatedPlaylists == nil {
		return nil, fmt.Errorf("%w: %s", ErrChannelNotFound, channelID)
	}
	channel := chResp.Items[0]
	uploads := channel.ContentDetails.RelatedPlaylists.Uploads
	channelTitle := ""
	if channel.Snippet != nil {
		channelTitle = channel.Snippet.Title
	}

	var out []UploadItem
	pageToken := ""
	for len(out) < max {
		pageSize := int64(max - len(out))
		if pageSize > 50 {
			pageSize = 50
		}
		call := c.svc.PlaylistItems.List([]string{"snippet", "contentDetails"}).
			PlaylistId(uploads).
			MaxResults(pageSize).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			return nil, classifyAPIError(err)
		}
		for _, item := range resp.Items {
			if item.ContentDetails == nil || item.ContentDetails.VideoId == "" {
				continue
			}
			u := UploadItem{
				VideoID:      item.ContentDetails.VideoId,
				ChannelID:    channelID,
				ChannelTitle: channelTitle,
			}
			if item.Snippet != nil {
				u.Title = item.Snippet.Title
				u.Description = item.Snippet.Description
				u.PublishedAt = parseTime(item.Snippet.PublishedAt)
			}
			out = append(out, u)
			if len(out) >= max {
				break
			}
		}
		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}

	c.log.Debug("Listed channel uploads", "channel_id", channelID, "count", len(out))
	return out, nil
}

var isoDuration = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// ParseDuration converts an ISO-8601 duration such as PT1H2M3S to seconds; unparseable input yields 0.
func ParseDuration(iso string) int {
	m := isoDuration.FindStringSubmatch(strings.TrimSpace(iso))
	if m == nil {
		return 0
	}
	n := func(s string) int {
		v, _ := strconv.Atoi(s)
		return v
	}
	return n(m[1])*86400 + n(m[2])*3600 + n(m[3])*60 + n(m[4])
}

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}

func thumbnails(t *yt.ThumbnailDetails) map[string]Thumbnail {
	if t == nil {
		return nil
	}
	out := map[string]Thumbnail{}
	add := func(name string, th *yt.Thumbnail) {
		if th != nil && th.Url != "" {
			out[name] = Thumbnail{URL: th.Url, Width: th.Width, Height: th.Height}
		}
	}
	add("default", t.Default)
	add("medium", t.Medium)
	add("high", t.High)
	add("standard", t.Standard)
	add("maxres", t.Maxres)
	return out
}

// APIError carries the googleapi status so httpx can classify it.
type APIError struct {
	StatusCode int
	Reason     string
	Err        error
}

func (e *APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("youtube api http %d (%s): %v", e.StatusCode, e.Reason, e.Err)
	}
	return fmt.Sprintf("youtube api http %d: %v", e.StatusCode, e.Err)
}

func (e *APIError) Unwrap() error       { return e.Err }
func (e *APIError) HTTPStatusCode() int { return e.StatusCode }

func classifyAPIError(err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return err
	}
	reason := ""
	if len(gerr.Errors) > 0 {
		reason = gerr.Errors[0].Reason
	}
	if gerr.Code == http.StatusNotFound {
		return fmt.Errorf("%w: %v", ErrVideoNotFound, err)
	}
	return &APIError{StatusCode: gerr.Code, Reason: reason, Err: err}
}
