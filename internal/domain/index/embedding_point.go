package index

import "time"

// EmbeddingPoint assigns a stable numeric id to a domain id within one collection.
type EmbeddingPoint struct {
	PointID    uint64    `gorm:"column:point_id;primaryKey;autoIncrement" json:"pointId"`
	Collection string    `gorm:"column:collection;not null;uniqueIndex:idx_embedding_point_domain" json:"collection"`
	DomainID   string    `gorm:"column:domain_id;not null;uniqueIndex:idx_embedding_point_domain" json:"domainId"`
	CreatedAt  time.Time `gorm:"not null" json:"createdAt"`
}

func (EmbeddingPoint) TableName() string { return "embedding_point" }
