package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/yungbote/ncertlens-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(
		// Videos
		&types.Video{},

		// Curriculum catalog
		&types.Concept{},

		// Similarity index id mapping
		&types.EmbeddingPoint{},
	); err != nil {
		return err
	}
	return EnsureIndexes(db)
}

func EnsureIndexes(db *gorm.DB) error {
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_video_status_heartbeat ON video(processing_status, heartbeat_at);`).Error; err != nil {
		return fmt.Errorf("create idx_video_status_heartbeat: %w", err)
	}
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_ncert_concept_subject_class ON ncert_concept(subject, class);`).Error; err != nil {
		return fmt.Errorf("create idx_ncert_concept_subject_class: %w", err)
	}
	return nil
}
