package index

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/ncertlens-backend/internal/data/repos/dberr"
	types "github.com/yungbote/ncertlens-backend/internal/domain"
	"github.com/yungbote/ncertlens-backend/internal/pkg/dbctx"
	"github.com/yungbote/ncertlens-backend/internal/platform/logger"
)

// PointRepo maps domain ids to the numeric point ids the vector index requires.
type PointRepo interface {
	// Resolve returns a point id for each domain id, allocating missing ones.
	Resolve(dbc dbctx.Context, collection string, domainIDs []string) (map[string]uint64, error)
	// Lookup returns point ids only for domain ids that already have one.
	Lookup(dbc dbctx.Context, collection string, domainIDs []string) (map[string]uint64, error)
	DomainIDs(dbc dbctx.Context, collection string, pointIDs []uint64) (map[uint64]string, error)
	Delete(dbc dbctx.Context, collection string, domainIDs []string) error
}

type pointRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPointRepo(db *gorm.DB, baseLog *logger.Logger) PointRepo {
	return &pointRepo{
		db:  db,
		log: baseLog.With("repo", "PointRepo"),
	}
}

func (r *pointRepo) Lookup(dbc dbctx.Context, collection string, domainIDs []string) (map[string]uint64, error) {
	out := make(map[string]uint64, len(domainIDs))
	if len(domainIDs) == 0 {
		return out, nil
	}
	var rows []types.EmbeddingPoint
	if err := dbc.DB(r.db).
		Where("collection = ? AND domain_id IN ?", collection, domainIDs).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.DomainID] = row.PointID
	}
	return out, nil
}

func (r *pointRepo) Resolve(dbc dbctx.Context, collection string, domainIDs []string) (map[string]uint64, error) {
	if collection == "" {
		return nil, fmt.Errorf("collection required")
	}
	out, err := r.Lookup(dbc, collection, domainIDs)
	if err != nil {
		return nil, err
	}
	for _, id := range domainIDs {
		if id == "" {
			continue
		}
		if _, ok := out[id]; ok {
			continue
		}
		row := types.EmbeddingPoint{Collection: collection, DomainID: id, CreatedAt: time.Now().UTC()}
		cErr := dbc.DB(r.db).Create(&row).Error
		if cErr == nil {
			out[id] = row.PointID
			continue
		}
		if !dberr.IsUniqueViolation(cErr) {
			return nil, cErr
		}
		// lost the race to a concurrent writer
		again, err := r.Lookup(dbc, collection, []string{id})
		if err != nil {
			return nil, err
		}
		pid, ok := again[id]
		if !ok {
			return nil, fmt.Errorf("point id for %s/%s vanished after conflict", collection, id)
		}
		r.log.Debug("Point id allocated concurrently", "collection", collection, "domain_id", id)
		out[id] = pid
	}
	return out, nil
}

func (r *pointRepo) DomainIDs(dbc dbctx.Context, collection string, pointIDs []uint64) (map[uint64]string, error) {
	out := make(map[uint64]string, len(pointIDs))
	if len(pointIDs) == 0 {
		return out, nil
	}
	var rows []types.EmbeddingPoint
	if err := dbc.DB(r.db).
		Where("collection = ? AND point_id IN ?", collection, pointIDs).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.PointID] = row.DomainID
	}
	return out, nil
}

func (r *pointRepo) Delete(dbc dbctx.Context, collection string, domainIDs []string) error {
	if len(domainIDs) == 0 {
		return nil
	}
	return dbc.DB(r.db).
		Where("collection = ? AND domain_id IN ?", collection, domainIDs).
		Delete(&types.EmbeddingPoint{}).Error
}
