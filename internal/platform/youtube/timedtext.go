package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yungbote/ncertlens-backend/internal/platform/httpx"
	"github.com/yungbote/ncertlens-backend/internal/platform/logger"
)

const defaultTimedtextURL = "https://www.youtube.com/api/timedtext"

// Caption is one timed caption event in milliseconds.
type Caption struct {
	OffsetMs   float64 `json:"offsetMs"`
	DurationMs float64 `json:"durationMs"`
	Text       string  `json:"text"`
}

// TranscriptFetcher fetches the captions of one video. An empty lang lets the platform choose.
type TranscriptFetcher interface {
	FetchCaptions(ctx context.Context, videoID, lang string) ([]Caption, error)
}

// TimedtextClient reads captions from the public timedtext endpoint (json3 format).
type TimedtextClient struct {
	log     *logger.Logger
	http    *http.Client
	baseURL string
}

func NewTimedtextClient(log *logger.Logger, baseURL string, timeout time.Duration) *TimedtextClient {
	if log == nil {
		log = logger.Nop()
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultTimedtextURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &TimedtextClient{
		log:     log.With("service", "TimedtextClient"),
		http:    &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

type timedtextResponse struct {
	Events []timedtextEvent `json:"events"`
}

type timedtextEvent struct {
	TStartMs    int64 `json:"tStartMs"`
	DDurationMs int64 `json:"dDurationMs"`
	Segs        []struct {
		UTF8 string `json:"utf8"`
	} `json:"segs,omitempty"`
}

func (tc *TimedtextClient) FetchCaptions(ctx context.Context, videoID, lang string) ([]Caption, error) {
	if videoID == "" {
		return nil, fmt.Errorf("video ID is required")
	}
	params := url.Values{}
	params.Set("v", videoID)
	params.Set("fmt", "json3")
	if lang != "" {
		params.Set("lang", lang)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tc.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := tc.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("timedtext request failed: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("read timedtext response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: video=%s lang=%q", ErrNoTranscript, videoID, lang)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &httpx.StatusError{Service: "timedtext", StatusCode: resp.StatusCode, Body: string(raw[:min(len(raw), 256)])}
	}

	// The endpoint answers 200 with an empty body when the track does not exist.
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, fmt.Errorf("%w: video=%s lang=%q", ErrNoTranscript, videoID, lang)
	}
	caps, err := parseTimedtext(raw)
	if err != nil {
		return nil, fmt.Errorf("parse timedtext response: %w", err)
	}
	if len(caps) == 0 {
		return nil, fmt.Errorf("%w: video=%s lang=%q", ErrNoTranscript, videoID, lang)
	}
	return caps, nil
}

func parseTimedtext(data []byte) ([]Caption, error) {
	var resp timedtextResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, err
	}
	out := make([]Caption, 0, len(resp.Events))
	for _, ev := range resp.Events {
		if len(ev.Segs) == 0 {
			continue
		}
		var text strings.Builder
		for _, seg := range ev.Segs {
			text.WriteString(seg.UTF8)
		}
		t := strings.TrimSpace(text.String())
		if t == "" {
			continue
		}
		out = append(out, Caption{
			OffsetMs:   float64(ev.TStartMs),
			DurationMs: float64(ev.DDurationMs),
			Text:       t,
		})
	}
	return out, nil
}
