// internal/domain/models/section.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Section is a reusable content block. (SectionID, Language) is unique.
type Section struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	SectionID  string             `bson:"section_id" json:"sectionId"`
	Title      string             `bson:"title" json:"title"`
	TitleCI    string             `bson:"title_ci" json:"-"`
	BodyText   string             `bson:"body_text" json:"bodyText"`
	Images     []string           `bson:"images" json:"images"`
	Language   string             `bson:"language" json:"language"`
	PageNumber int                `bson:"page_number" json:"pageNumber"`

	Translations map[string]SectionTranslation `bson:"translations,omitempty" json:"translations,omitempty"`

	IsActive  bool      `bson:"is_active" json:"isActive"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// SectionTranslation overrides section fields for one language.
type SectionTranslation struct {
	Title    string `bson:"title,omitempty" json:"title,omitempty"`
	BodyText string `bson:"body_text,omitempty" json:"bodyText,omitempty"`
}
