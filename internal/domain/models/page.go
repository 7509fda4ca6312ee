// internal/domain/models/page.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultLanguage is the authoring language assumed when none is given.
const DefaultLanguage = "en"

// Page is a navigable page. Its Sections list holds weak references to
// Section documents in display order.
type Page struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty" json:"id,omitempty"`
	Slug        string               `bson:"slug" json:"slug"`
	Title       string               `bson:"title" json:"title"`
	TitleCI     string               `bson:"title_ci" json:"-"`
	Description string               `bson:"description" json:"description"`
	Language    string               `bson:"language" json:"language"`
	Category    string               `bson:"category" json:"category"`
	CategoryCI  string               `bson:"category_ci" json:"-"`
	PageNumber  int                  `bson:"page_number" json:"pageNumber"`
	Tags        []string             `bson:"tags,omitempty" json:"tags,omitempty"`
	Sections    []primitive.ObjectID `bson:"sections" json:"sections"`

	Translations map[string]PageTranslation `bson:"translations,omitempty" json:"translations,omitempty"`

	IsActive  bool      `bson:"is_active" json:"isActive"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// PageTranslation overrides page fields for one language. Empty fields
// fall back to the base value.
type PageTranslation struct {
	Title       string `bson:"title,omitempty" json:"title,omitempty"`
	Description string `bson:"description,omitempty" json:"description,omitempty"`
}

// HasSection reports whether id is already referenced by the page.
func (p Page) HasSection(id primitive.ObjectID) bool {
	for _, s := range p.Sections {
		if s == id {
			return true
		}
	}
	return false
}

// Default page slugs created on an empty database.
const (
	PageSlugHome    = "home"
	PageSlugAbout   = "about"
	PageSlugContact = "contact"
)

// DefaultPageSlugs returns the slugs seeded on first start.
func DefaultPageSlugs() []string {
	return []string{
		PageSlugHome,
		PageSlugAbout,
		PageSlugContact,
	}
}
