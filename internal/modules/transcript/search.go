package transcript

import (
	"fmt"
	"math"
	"strings"

	types "github.com/yungbote/ncertlens-backend/internal/domain"
)

type SearchMatch struct {
	Timestamp     float64 `json:"timestamp"`
	Text          string  `json:"text"`
	ContextBefore string  `json:"contextBefore"`
	ContextAfter  string  `json:"contextAfter"`
}

// Search returns every segment containing query (case-insensitive) with its neighbours.
func Search(segments []types.TranscriptSegment, query string) []SearchMatch {
	q := strings.ToLower(strings.TrimSpace(query))
	out := []SearchMatch{}
	if q == "" {
		return out
	}
	for i, seg := range segments {
		if !strings.Contains(strings.ToLower(seg.Text), q) {
			continue
		}
		m := SearchMatch{Timestamp: seg.Start, Text: seg.Text}
		if i > 0 {
			m.ContextBefore = segments[i-1].Text
		}
		if i < len(segments)-1 {
			m.ContextAfter = segments[i+1].Text
		}
		out = append(out, m)
	}
	return out
}

// FormatTime renders seconds as m:ss.
func FormatTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	minutes := int(math.Floor(seconds / 60))
	rem := int(math.Floor(math.Mod(seconds, 60)))
	return fmt.Sprintf("%d:%02d", minutes, rem)
}
