// internal/domain/models/view.go
package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// PageView is a page with translations applied and its sections resolved.
type PageView struct {
	ID           string        `json:"id"`
	Slug         string        `json:"slug"`
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	Language     string        `json:"language"`
	BaseLanguage string        `json:"baseLanguage"`
	Category     string        `json:"category"`
	PageNumber   int           `json:"pageNumber"`
	Tags         []string      `json:"tags,omitempty"`
	Translated   bool          `json:"translated"`
	Sections     []SectionView `json:"sections"`
}

// SectionView is a section with translations applied.
type SectionView struct {
	ID         string   `json:"id"`
	SectionID  string   `json:"sectionId"`
	Title      string   `json:"title"`
	BodyText   string   `json:"bodyText"`
	BodyHTML   string   `json:"bodyHtml,omitempty"`
	Images     []string `json:"images"`
	Language   string   `json:"language"`
	PageNumber int      `json:"pageNumber"`
	Translated bool     `json:"translated"`
}

// ResolvePage applies lang to p and resolves its section references against
// byID. References are visited in list order. Missing and inactive sections
// are skipped; pageNumber never reorders the result.
func ResolvePage(p Page, byID map[primitive.ObjectID]Section, lang string) PageView {
	lang = NormalizeLanguage(lang)
	v := PageView{
		ID:           p.ID.Hex(),
		Slug:         p.Slug,
		Title:        p.Title,
		Description:  p.Description,
		Language:     p.Language,
		BaseLanguage: p.Language,
		Category:     p.Category,
		PageNumber:   p.PageNumber,
		Tags:         p.Tags,
		Sections:     make([]SectionView, 0, len(p.Sections)),
	}
	if lang != "" {
		v.Language = lang
		if tr, ok := p.Translations[lang]; ok {
			v.Title = pick(tr.Title, p.Title)
			v.Description = pick(tr.Description, p.Description)
			v.Translated = tr.Title != "" || tr.Description != ""
		}
	}

	for _, id := range p.Sections {
		s, ok := byID[id]
		if !ok || !s.IsActive {
			continue
		}
		v.Sections = append(v.Sections, ResolveSection(s, lang))
	}
	return v
}

// ResolveSection applies per-field language fallback to s.
func ResolveSection(s Section, lang string) SectionView {
	lang = NormalizeLanguage(lang)
	images := s.Images
	if images == nil {
		images = []string{}
	}
	v := SectionView{
		ID:         s.ID.Hex(),
		SectionID:  s.SectionID,
		Title:      s.Title,
		BodyText:   s.BodyText,
		Images:     images,
		Language:   s.Language,
		PageNumber: s.PageNumber,
	}
	if lang == "" {
		return v
	}
	v.Language = lang
	if tr, ok := s.Translations[lang]; ok {
		v.Title = pick(tr.Title, s.Title)
		v.BodyText = pick(tr.BodyText, s.BodyText)
		v.Translated = tr.Title != "" || tr.BodyText != ""
	}
	return v
}

func pick(override, base string) string {
	if override != "" {
		return override
	}
	return base
}
