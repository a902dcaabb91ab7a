package media

import (
	"encoding/json"
	"regexp"
	"time"

	"gorm.io/datatypes"
)

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Video is the per-video mapping document. It is keyed by the platform id and
// mutated only by the processing pipeline and channel discovery.
type Video struct {
	VideoID         string     `gorm:"column:video_id;type:varchar(11);primaryKey" json:"videoId"`
	Title           string     `gorm:"column:title" json:"title"`
	Description     string     `gorm:"column:description;type:text" json:"description"`
	ChannelID       string     `gorm:"column:channel_id;index" json:"channelId"`
	ChannelTitle    string     `gorm:"column:channel_title" json:"channelTitle"`
	Duration        string     `gorm:"column:duration" json:"duration"`
	DurationSeconds int        `gorm:"column:duration_seconds;not null;default:0" json:"durationSeconds"`
	PublishedAt     *time.Time `gorm:"column:published_at" json:"publishedAt,omitempty"`
	CategoryID      string     `gorm:"column:category_id" json:"categoryId,omitempty"`
	DefaultLanguage string     `gorm:"column:default_language" json:"defaultLanguage,omitempty"`
	ViewCount       int64      `gorm:"column:view_count;not null;default:0" json:"viewCount"`
	LikeCount       int64      `gorm:"column:like_count;not null;default:0" json:"likeCount"`

	Thumbnails datatypes.JSON `gorm:"column:thumbnails" json:"thumbnails,omitempty"`
	Tags       datatypes.JSON `gorm:"column:tags" json:"tags,omitempty"`

	Transcript         string         `gorm:"column:transcript;type:text" json:"transcript,omitempty"`
	TranscriptSegments datatypes.JSON `gorm:"column:transcript_segments" json:"transcriptTimestamps,omitempty"`
	Embedding          datatypes.JSON `gorm:"column:embedding" json:"-"`
	NCERTMappings      datatypes.JSON `gorm:"column:ncert_mappings" json:"ncertMappings"`

	ProcessingStatus string     `gorm:"column:processing_status;not null;index" json:"processingStatus"`
	ProcessingError  string     `gorm:"column:processing_error;type:text" json:"processingError,omitempty"`
	RunID            string     `gorm:"column:run_id;index" json:"-"`
	HeartbeatAt      *time.Time `gorm:"column:heartbeat_at;index" json:"-"`
	LastProcessed    *time.Time `gorm:"column:last_processed" json:"lastProcessed,omitempty"`
	IndexedAt        *time.Time `gorm:"column:indexed_at" json:"indexedAt,omitempty"`

	CreatedAt time.Time `gorm:"not null;index" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null;index" json:"updatedAt"`
}

func (Video) TableName() string { return "video" }

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// IsVideoID reports whether id has the platform's 11 character shape.
func IsVideoID(id string) bool { return videoIDPattern.MatchString(id) }

// TimestampRange is a span of the video, in seconds, relevant to one concept.
type TimestampRange struct {
	Start        float64 `json:"start"`
	End          float64 `json:"end"`
	Confidence   float64 `json:"confidence,omitempty"`
	RelevantText string  `json:"relevantText,omitempty"`
	Explanation  string  `json:"explanation,omitempty"`
}

// Covers reports whether t falls inside the closed range.
func (r TimestampRange) Covers(t float64) bool {
	return r.Start <= t && t <= r.End
}

type ConceptMapping struct {
	Concept            string           `json:"concept"`
	Subject            string           `json:"subject,omitempty"`
	Class              int              `json:"class,omitempty"`
	Chapter            string           `json:"chapter,omitempty"`
	Section            string           `json:"section,omitempty"`
	Confidence         float64          `json:"confidence"`
	Explanation        string           `json:"explanation,omitempty"`
	Keywords           []string         `json:"keywords,omitempty"`
	RelevantTimestamps []TimestampRange `json:"relevantTimestamps"`
}

// TranscriptSegment is a cleaned caption line in seconds.
type TranscriptSegment struct {
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	Text     string  `json:"text"`
}

func (v *Video) Mappings() ([]ConceptMapping, error) {
	out := []ConceptMapping{}
	if v == nil || len(v.NCERTMappings) == 0 || string(v.NCERTMappings) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(v.NCERTMappings, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (v *Video) Segments() ([]TranscriptSegment, error) {
	out := []TranscriptSegment{}
	if v == nil || len(v.TranscriptSegments) == 0 || string(v.TranscriptSegments) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(v.TranscriptSegments, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (v *Video) EmbeddingVector() ([]float32, error) {
	if v == nil || len(v.Embedding) == 0 || string(v.Embedding) == "null" {
		return nil, nil
	}
	var out []float32
	if err := json.Unmarshal(v.Embedding, &out); err != nil {
		return nil, err
	}
	return out, nil
}
