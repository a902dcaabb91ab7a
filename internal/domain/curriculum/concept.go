package curriculum

import (
	"time"

	"gorm.io/datatypes"
)

var Subjects = []string{
	"Mathematics",
	"Physics",
	"Chemistry",
	"Biology",
	"History",
	"Geography",
	"Political Science",
	"Economics",
	"English",
	"Hindi",
}

func IsSubject(s string) bool {
	for _, v := range Subjects {
		if v == s {
			return true
		}
	}
	return false
}

// Concept is one NCERT textbook concept from the curriculum catalog.
type Concept struct {
	ConceptID          string         `gorm:"column:concept_id;primaryKey" json:"conceptId"`
	Title              string         `gorm:"column:title;not null" json:"title"`
	Description        string         `gorm:"column:description;type:text" json:"description,omitempty"`
	Subject            string         `gorm:"column:subject;not null;index" json:"subject"`
	Class              int            `gorm:"column:class;not null;index" json:"class"`
	ChapterNumber      int            `gorm:"column:chapter_number" json:"chapterNumber,omitempty"`
	ChapterTitle       string         `gorm:"column:chapter_title" json:"chapterTitle,omitempty"`
	SectionNumber      string         `gorm:"column:section_number" json:"sectionNumber,omitempty"`
	SectionTitle       string         `gorm:"column:section_title" json:"sectionTitle,omitempty"`
	Content            string         `gorm:"column:content;type:text" json:"content"`
	Keywords           datatypes.JSON `gorm:"column:keywords" json:"keywords,omitempty"`
	LearningObjectives datatypes.JSON `gorm:"column:learning_objectives" json:"learningObjectives,omitempty"`
	Difficulty         string         `gorm:"column:difficulty" json:"difficulty,omitempty"`
	Prerequisites      datatypes.JSON `gorm:"column:prerequisites" json:"prerequisites,omitempty"`
	IndexedAt          *time.Time     `gorm:"column:indexed_at" json:"indexedAt,omitempty"`
	CreatedAt          time.Time      `gorm:"not null" json:"createdAt"`
	UpdatedAt          time.Time      `gorm:"not null" json:"updatedAt"`
}

func (Concept) TableName() string { return "ncert_concept" }
