package domain

import (
	"github.com/yungbote/ncertlens-backend/internal/domain/curriculum"
	"github.com/yungbote/ncertlens-backend/internal/domain/index"
	"github.com/yungbote/ncertlens-backend/internal/domain/media"
)

const (
	VideoStatusPending    = media.StatusPending
	VideoStatusProcessing = media.StatusProcessing
	VideoStatusCompleted  = media.StatusCompleted
	VideoStatusFailed     = media.StatusFailed
)

type (
	Video             = media.Video
	ConceptMapping    = media.ConceptMapping
	TimestampRange    = media.TimestampRange
	TranscriptSegment = media.TranscriptSegment

	Concept = curriculum.Concept

	EmbeddingPoint = index.EmbeddingPoint
)

var (
	Subjects  = curriculum.Subjects
	IsSubject = curriculum.IsSubject
	IsVideoID = media.IsVideoID
)
