package curriculum

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/ncertlens-backend/internal/domain"
	"github.com/yungbote/ncertlens-backend/internal/pkg/dbctx"
	"github.com/yungbote/ncertlens-backend/internal/platform/logger"
)

type ConceptFilter struct {
	Subject string
	Class   int
}

type ConceptRepo interface {
	Upsert(dbc dbctx.Context, concepts []*types.Concept) error
	Get(dbc dbctx.Context, conceptID string) (*types.Concept, error)
	GetByIDs(dbc dbctx.Context, ids []string) ([]*types.Concept, error)
	List(dbc dbctx.Context, f ConceptFilter) ([]*types.Concept, error)
	ListUnindexed(dbc dbctx.Context, limit int) ([]*types.Concept, error)
	MarkIndexed(dbc dbctx.Context, ids []string, at time.Time) error
}

type conceptRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConceptRepo(db *gorm.DB, baseLog *logger.Logger) ConceptRepo {
	return &conceptRepo{
		db:  db,
		log: baseLog.With("repo", "ConceptRepo"),
	}
}

// Upsert overwrites catalog fields by concept id and clears indexed_at so the
// entry is embedded again.
func (r *conceptRepo) Upsert(dbc dbctx.Context, concepts []*types.Concept) error {
	if len(concepts) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for _, c := range concepts {
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		c.UpdatedAt = now
		c.IndexedAt = nil
	}
	return dbc.DB(r.db).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "concept_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "description", "subject", "class",
			"chapter_number", "chapter_title", "section_number", "section_title",
			"content", "keywords", "learning_objectives", "difficulty", "prerequisites",
			"indexed_at", "updated_at",
		}),
	}).Create(&concepts).Error
}

func (r *conceptRepo) Get(dbc dbctx.Context, conceptID string) (*types.Concept, error) {
	var c types.Concept
	err := dbc.DB(r.db).Where("concept_id = ?", conceptID).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *conceptRepo) GetByIDs(dbc dbctx.Context, ids []string) ([]*types.Concept, error) {
	var out []*types.Concept
	if len(ids) == 0 {
		return out, nil
	}
	if err := dbc.DB(r.db).Where("concept_id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *conceptRepo) List(dbc dbctx.Context, f ConceptFilter) ([]*types.Concept, error) {
	q := dbc.DB(r.db).Model(&types.Concept{})
	if f.Subject != "" {
		q = q.Where("subject = ?", f.Subject)
	}
	if f.Class > 0 {
		q = q.Where("class = ?", f.Class)
	}
	var out []*types.Concept
	if err := q.Order("subject ASC, class ASC, chapter_number ASC, concept_id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *conceptRepo) ListUnindexed(dbc dbctx.Context, limit int) ([]*types.Concept, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []*types.Concept
	if err := dbc.DB(r.db).
		Where("indexed_at IS NULL").
		Order("concept_id ASC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *conceptRepo) MarkIndexed(dbc dbctx.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return dbc.DB(r.db).Model(&types.Concept{}).
		Where("concept_id IN ?", ids).
		Update("indexed_at", at).Error
}
