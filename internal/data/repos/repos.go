package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/ncertlens-backend/internal/data/repos/curriculum"
	"github.com/yungbote/ncertlens-backend/internal/data/repos/index"
	"github.com/yungbote/ncertlens-backend/internal/data/repos/media"
	"github.com/yungbote/ncertlens-backend/internal/platform/logger"
)

type VideoRepo = media.VideoRepo
type ConceptRepo = curriculum.ConceptRepo
type PointRepo = index.PointRepo

type ClaimOutcome = media.ClaimOutcome
type ClaimResult = media.ClaimResult
type Completion = media.Completion
type ConceptFilter = curriculum.ConceptFilter

const (
	ClaimCreated          = media.ClaimCreated
	ClaimRestarted        = media.ClaimRestarted
	ClaimAlreadyRunning   = media.ClaimAlreadyRunning
	ClaimAlreadyCompleted = media.ClaimAlreadyCompleted
)

func NewVideoRepo(db *gorm.DB, baseLog *logger.Logger) VideoRepo { return media.NewVideoRepo(db, baseLog) }
func NewConceptRepo(db *gorm.DB, baseLog *logger.Logger) ConceptRepo {
	return curriculum.NewConceptRepo(db, baseLog)
}
func NewPointRepo(db *gorm.DB, baseLog *logger.Logger) PointRepo { return index.NewPointRepo(db, baseLog) }

// Set bundles every repo the app wires.
type Set struct {
	Videos   VideoRepo
	Concepts ConceptRepo
	Points   PointRepo
}

func NewSet(db *gorm.DB, baseLog *logger.Logger) Set {
	return Set{
		Videos:   NewVideoRepo(db, baseLog),
		Concepts: NewConceptRepo(db, baseLog),
		Points:   NewPointRepo(db, baseLog),
	}
}
