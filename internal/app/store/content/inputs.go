package contentstore

import (
	"errors"
	"net/url"
	"strings"

	"github.com/dalemusser/stratacms/internal/domain/models"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PageInput describes a new page.
type PageInput struct {
	Slug        string               `json:"slug"`
	Title       string               `json:"title"`
	Description string               `json:"description"`
	Language    string               `json:"language"`
	Category    string               `json:"category"`
	PageNumber  int                  `json:"pageNumber"`
	Tags        []string             `json:"tags"`
	Sections    []primitive.ObjectID `json:"sections"`
	IsActive    *bool                `json:"isActive"`
}

func (in *PageInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)
	in.Slug = strings.TrimSpace(in.Slug)
	if in.Slug == "" {
		in.Slug = models.Slugify(in.Title)
	}
	in.Language = models.NormalizeLanguage(in.Language)
	if in.Language == "" {
		in.Language = models.DefaultLanguage
	}
	in.Tags = normalizeTags(in.Tags)
}

// Validate checks the input after normalization.
func (in PageInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Slug, validation.Required, validation.By(slugRule)),
		validation.Field(&in.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.Description, validation.Length(0, 2000)),
		validation.Field(&in.Language, validation.Required, validation.By(languageRule)),
		validation.Field(&in.Category, validation.Length(0, 100)),
		validation.Field(&in.PageNumber, validation.Min(0)),
		validation.Field(&in.Tags, validation.Each(validation.Length(1, 50))),
	)
}

// PageUpdate carries the page fields to change. Nil fields are untouched.
type PageUpdate struct {
	Slug        *string               `json:"slug"`
	Title       *string               `json:"title"`
	Description *string               `json:"description"`
	Language    *string               `json:"language"`
	Category    *string               `json:"category"`
	PageNumber  *int                  `json:"pageNumber"`
	Tags        *[]string             `json:"tags"`
	Sections    *[]primitive.ObjectID `json:"sections"`
}

func (u *PageUpdate) normalize() {
	trimPtr(u.Slug)
	trimPtr(u.Title)
	trimPtr(u.Description)
	trimPtr(u.Category)
	if u.Language != nil {
		*u.Language = models.NormalizeLanguage(*u.Language)
	}
	if u.Tags != nil {
		t := normalizeTags(*u.Tags)
		u.Tags = &t
	}
}

// Validate checks the provided fields.
func (u PageUpdate) Validate() error {
	return validation.ValidateStruct(&u,
		validation.Field(&u.Slug, validation.NilOrNotEmpty, validation.By(slugRule)),
		validation.Field(&u.Title, validation.NilOrNotEmpty, validation.Length(1, 200)),
		validation.Field(&u.Description, validation.Length(0, 2000)),
		validation.Field(&u.Language, validation.NilOrNotEmpty, validation.By(languageRule)),
		validation.Field(&u.Category, validation.Length(0, 100)),
		validation.Field(&u.PageNumber, validation.Min(0)),
	)
}

func (u PageUpdate) empty() bool {
	return u.Slug == nil && u.Title == nil && u.Description == nil && u.Language == nil &&
		u.Category == nil && u.PageNumber == nil && u.Tags == nil && u.Sections == nil
}

// SectionInput describes a new section. An empty SectionID is derived from
// the title.
type SectionInput struct {
	SectionID  string   `json:"sectionId"`
	Title      string   `json:"title"`
	BodyText   string   `json:"bodyText"`
	Images     []string `json:"images"`
	Language   string   `json:"language"`
	PageNumber int      `json:"pageNumber"`
	IsActive   *bool    `json:"isActive"`
}

func (in *SectionInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.SectionID = strings.TrimSpace(in.SectionID)
	if in.SectionID == "" {
		in.SectionID = models.DeriveSectionID(in.Title)
	}
	in.Language = models.NormalizeLanguage(in.Language)
	if in.Language == "" {
		in.Language = models.DefaultLanguage
	}
	if in.Images == nil {
		in.Images = []string{}
	}
}

// Validate checks the input after normalization.
func (in SectionInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.SectionID,
			validation.Required.Error("cannot be derived from the title"),
			validation.By(slugRule)),
		validation.Field(&in.BodyText, validation.Length(0, 100000)),
		validation.Field(&in.Images, validation.Each(validation.By(imageRule))),
		validation.Field(&in.Language, validation.Required, validation.By(languageRule)),
		validation.Field(&in.PageNumber, validation.Min(0)),
	)
}

// SectionUpdate carries the section fields to change.
type SectionUpdate struct {
	SectionID  *string   `json:"sectionId"`
	Title      *string   `json:"title"`
	BodyText   *string   `json:"bodyText"`
	Images     *[]string `json:"images"`
	Language   *string   `json:"language"`
	PageNumber *int      `json:"pageNumber"`
}

func (u *SectionUpdate) normalize() {
	trimPtr(u.SectionID)
	trimPtr(u.Title)
	if u.Language != nil {
		*u.Language = models.NormalizeLanguage(*u.Language)
	}
}

// Validate checks the provided fields.
func (u SectionUpdate) Validate() error {
	return validation.ValidateStruct(&u,
		validation.Field(&u.SectionID, validation.NilOrNotEmpty, validation.By(slugRule)),
		validation.Field(&u.Title, validation.NilOrNotEmpty, validation.Length(1, 200)),
		validation.Field(&u.BodyText, validation.Length(0, 100000)),
		validation.Field(&u.Images, validation.By(imageListRule)),
		validation.Field(&u.Language, validation.NilOrNotEmpty, validation.By(languageRule)),
		validation.Field(&u.PageNumber, validation.Min(0)),
	)
}

func (u SectionUpdate) empty() bool {
	return u.SectionID == nil && u.Title == nil && u.BodyText == nil &&
		u.Images == nil && u.Language == nil && u.PageNumber == nil
}

// TranslationFields is a partial translation. Nil fields are untouched by a
// merge and empty after a replace.
type TranslationFields struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	BodyText    *string `json:"bodyText"`
}

func (f TranslationFields) empty() bool {
	return f.Title == nil && f.Description == nil && f.BodyText == nil
}

func slugRule(value any) error {
	s, _ := derefString(value)
	if s == "" {
		return nil
	}
	if !models.IsValidSlug(s) {
		return errors.New("must be lowercase letters, digits and single hyphens")
	}
	return nil
}

func languageRule(value any) error {
	s, _ := derefString(value)
	if s == "" {
		return nil
	}
	if !models.IsValidLanguage(s) {
		return errors.New("must be a language code such as en or pt-br")
	}
	return nil
}

// imageRule accepts absolute http(s) URLs and root-relative paths served by
// the local file store.
func imageRule(value any) error {
	s, _ := value.(string)
	if strings.HasPrefix(s, "/") && !strings.HasPrefix(s, "//") {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("must be an http(s) URL or a root-relative path")
	}
	return nil
}

func imageListRule(value any) error {
	list, ok := value.(*[]string)
	if !ok || list == nil {
		return nil
	}
	return validation.Validate(*list, validation.Each(validation.By(imageRule)))
}

func derefString(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case *string:
		if v == nil {
			return "", false
		}
		return *v, true
	}
	return "", false
}

func trimPtr(s *string) {
	if s != nil {
		*s = strings.TrimSpace(*s)
	}
}

func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
