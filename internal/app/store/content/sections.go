package contentstore

import (
	"context"
	"errors"
	"strings"
	"time"

	sectionstore "github.com/dalemusser/stratacms/internal/app/store/sections"
	"github.com/dalemusser/stratacms/internal/app/system/apperr"
	"github.com/dalemusser/stratacms/internal/app/system/txn"
	"github.com/dalemusser/stratacms/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// SectionRef names a section either by ObjectID or by its (SectionID,
// Language) key. An empty Language means the language of the page the
// reference is used on, or the default language.
type SectionRef struct {
	ID        primitive.ObjectID `json:"id"`
	SectionID string             `json:"sectionId"`
	Language  string             `json:"language"`
}

// ParseSectionRef reads a path segment as an ObjectID hex or a sectionId.
func ParseSectionRef(s, lang string) SectionRef {
	if id, err := primitive.ObjectIDFromHex(s); err == nil {
		return SectionRef{ID: id}
	}
	return SectionRef{SectionID: s, Language: lang}
}

// SectionFilter narrows ListSections.
type SectionFilter struct {
	Language        string
	Query           string
	PageSlug        string
	IncludeInactive bool
	Page            int64
	Limit           int64
}

// CreateSection stores a new section. An empty SectionID is derived from the
// title; a second section with the same (SectionID, Language) is a conflict.
func (s *Store) CreateSection(ctx context.Context, in SectionInput) (models.Section, error) {
	const op = "CreateSection"
	in.normalize()
	if err := in.Validate(); err != nil {
		return models.Section{}, apperr.Validation(op, err)
	}

	now := time.Now().UTC()
	sec := models.Section{
		ID:         primitive.NewObjectID(),
		SectionID:  in.SectionID,
		Title:      in.Title,
		TitleCI:    text.Fold(in.Title),
		BodyText:   in.BodyText,
		Images:     in.Images,
		Language:   in.Language,
		PageNumber: in.PageNumber,
		IsActive:   in.IsActive == nil || *in.IsActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err := s.call(ctx, op, func(ctx context.Context) error {
		return s.sections.Insert(ctx, sec)
	})
	if errors.Is(err, apperr.ErrConflict) {
		return models.Section{}, apperr.Conflict(op, "section %q already exists in language %q", sec.SectionID, sec.Language)
	}
	if err != nil {
		return models.Section{}, err
	}

	s.log.Info("section created",
		zap.String("section_id", sec.SectionID),
		zap.String("language", sec.Language),
		zap.String("id", sec.ID.Hex()))
	s.changed(ctx)
	return sec, nil
}

// UpsertSection updates the section keyed by (SectionID, Language) or
// creates it. The bool reports whether a new section was created.
func (s *Store) UpsertSection(ctx context.Context, in SectionInput) (models.Section, bool, error) {
	const op = "UpsertSection"
	in.normalize()
	if err := in.Validate(); err != nil {
		return models.Section{}, false, apperr.Validation(op, err)
	}

	existing, err := s.FindSection(ctx, in.SectionID, in.Language)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		sec, err := s.CreateSection(ctx, in)
		return sec, err == nil, err
	case err != nil:
		return models.Section{}, false, err
	}

	u := SectionUpdate{
		Title:      &in.Title,
		BodyText:   &in.BodyText,
		PageNumber: &in.PageNumber,
	}
	if len(in.Images) > 0 {
		u.Images = &in.Images
	}
	sec, err := s.UpdateSection(ctx, existing.ID, u)
	return sec, false, err
}

// GetSection returns a section by id, active or not.
func (s *Store) GetSection(ctx context.Context, id primitive.ObjectID) (models.Section, error) {
	const op = "GetSection"
	var sec models.Section
	err := s.retry(ctx, op, func(ctx context.Context) error {
		var err error
		sec, err = s.sections.GetByID(ctx, id)
		return err
	})
	if errors.Is(err, apperr.ErrNotFound) {
		return models.Section{}, apperr.NotFound(op, "section %s", id.Hex())
	}
	return sec, err
}

// FindSection returns the section with the given key.
func (s *Store) FindSection(ctx context.Context, sectionID, language string) (models.Section, error) {
	const op = "FindSection"
	language = models.NormalizeLanguage(language)
	if language == "" {
		language = models.DefaultLanguage
	}
	var sec models.Section
	err := s.retry(ctx, op, func(ctx context.Context) error {
		var err error
		sec, err = s.sections.GetByKey(ctx, sectionID, language)
		return err
	})
	if errors.Is(err, apperr.ErrNotFound) {
		return models.Section{}, apperr.NotFound(op, "section %q in language %q", sectionID, language)
	}
	return sec, err
}

// ResolveSectionRef loads the section ref names.
func (s *Store) ResolveSectionRef(ctx context.Context, ref SectionRef) (models.Section, error) {
	return s.resolveSectionRef(ctx, ref, "")
}

func (s *Store) resolveSectionRef(ctx context.Context, ref SectionRef, pageLang string) (models.Section, error) {
	if !ref.ID.IsZero() {
		return s.GetSection(ctx, ref.ID)
	}
	key := strings.TrimSpace(ref.SectionID)
	if key == "" {
		return models.Section{}, apperr.Invalid("ResolveSectionRef", "section", "id or sectionId is required")
	}
	lang := ref.Language
	if lang == "" {
		lang = pageLang
	}
	return s.FindSection(ctx, key, lang)
}

// FindSectionOnPage returns the active section on page whose sectionId or
// title matches name. Several matches are a conflict.
func (s *Store) FindSectionOnPage(ctx context.Context, page models.Page, name string) (models.Section, error) {
	const op = "FindSectionOnPage"
	var found []models.Section
	err := s.retry(ctx, op, func(ctx context.Context) error {
		var err error
		found, err = s.sections.FindByName(ctx, page.Sections, name)
		return err
	})
	if err != nil {
		return models.Section{}, err
	}
	switch len(found) {
	case 0:
		return models.Section{}, apperr.NotFound(op, "section %q on page %q", name, page.Slug)
	case 1:
		return found[0], nil
	}
	for _, sec := range found {
		if sec.Language == page.Language {
			return sec, nil
		}
	}
	return models.Section{}, apperr.Conflict(op, "%d sections named %q on page %q", len(found), name, page.Slug)
}

// UpdateSection applies u to the section with id.
func (s *Store) UpdateSection(ctx context.Context, id primitive.ObjectID, u SectionUpdate) (models.Section, error) {
	const op = "UpdateSection"
	u.normalize()
	if err := u.Validate(); err != nil {
		return models.Section{}, apperr.Validation(op, err)
	}
	if u.empty() {
		return s.GetSection(ctx, id)
	}

	set := bson.M{}
	if u.SectionID != nil {
		set["section_id"] = *u.SectionID
	}
	if u.Title != nil {
		set["title"] = *u.Title
		set["title_ci"] = text.Fold(*u.Title)
	}
	if u.BodyText != nil {
		set["body_text"] = *u.BodyText
	}
	if u.Images != nil {
		images := *u.Images
		if images == nil {
			images = []string{}
		}
		set["images"] = images
	}
	if u.Language != nil {
		set["language"] = *u.Language
	}
	if u.PageNumber != nil {
		set["page_number"] = *u.PageNumber
	}

	var sec models.Section
	err := s.retry(ctx, op, func(ctx context.Context) error {
		var err error
		sec, err = s.sections.Update(ctx, id, set)
		return err
	})
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return models.Section{}, apperr.NotFound(op, "section %s", id.Hex())
	case errors.Is(err, apperr.ErrConflict):
		return models.Section{}, apperr.Conflict(op, "another section already uses that sectionId and language")
	case err != nil:
		return models.Section{}, err
	}
	s.changed(ctx)
	return sec, nil
}

// ListSections returns sections matching f plus the total match count.
// PageSlug restricts the listing to one active page's sections.
func (s *Store) ListSections(ctx context.Context, f SectionFilter) ([]models.Section, int64, error) {
	opts := sectionstore.ListOptions{
		Language:        models.NormalizeLanguage(f.Language),
		Query:           strings.TrimSpace(f.Query),
		IncludeInactive: f.IncludeInactive,
		Page:            f.Page,
		Limit:           f.Limit,
	}
	if f.PageSlug != "" {
		page, err := s.GetPageBySlug(ctx, f.PageSlug, GetOptions{})
		if err != nil {
			return nil, 0, err
		}
		opts.IDs = append([]primitive.ObjectID{}, page.Sections...)
	}

	var (
		out   []models.Section
		total int64
	)
	err := s.retry(ctx, "ListSections", func(ctx context.Context) error {
		var err error
		out, total, err = s.sections.List(ctx, opts)
		return err
	})
	return out, total, err
}

// DeleteSection removes a section document and detaches it from every page
// in one transaction when the deployment supports them. It returns the
// number of pages that referenced it.
func (s *Store) DeleteSection(ctx context.Context, id primitive.ObjectID) (int64, error) {
	const op = "DeleteSection"
	var detached int64
	err := s.retry(ctx, op, func(ctx context.Context) error {
		return txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
			n, err := s.sections.Delete(ctx, id)
			if err != nil {
				return err
			}
			if n == 0 {
				return apperr.NotFound(op, "section %s", id.Hex())
			}
			detached, err = s.pages.PullSectionEverywhere(ctx, id)
			return err
		})
	})
	if err != nil {
		return 0, err
	}

	s.log.Info("section deleted",
		zap.String("id", id.Hex()),
		zap.Int64("pages_detached", detached))
	s.changed(ctx)
	return detached, nil
}

// AddSectionImage appends url to the section's image list.
func (s *Store) AddSectionImage(ctx context.Context, id primitive.ObjectID, url string) (models.Section, error) {
	const op = "AddSectionImage"
	if err := imageRule(url); err != nil {
		return models.Section{}, apperr.Invalid(op, "url", err.Error())
	}
	var sec models.Section
	err := s.retry(ctx, op, func(ctx context.Context) error {
		var err error
		sec, err = s.sections.AddImage(ctx, id, url)
		return err
	})
	if errors.Is(err, apperr.ErrNotFound) {
		return models.Section{}, apperr.NotFound(op, "section %s", id.Hex())
	}
	if err != nil {
		return models.Section{}, err
	}
	s.changed(ctx)
	return sec, nil
}

// RemoveSectionImage drops url from the section's image list.
func (s *Store) RemoveSectionImage(ctx context.Context, id primitive.ObjectID, url string) (models.Section, error) {
	const op = "RemoveSectionImage"
	var sec models.Section
	err := s.retry(ctx, op, func(ctx context.Context) error {
		var err error
		sec, err = s.sections.RemoveImage(ctx, id, url)
		return err
	})
	if errors.Is(err, apperr.ErrNotFound) {
		return models.Section{}, apperr.NotFound(op, "section %s", id.Hex())
	}
	if err != nil {
		return models.Section{}, err
	}
	s.changed(ctx)
	return sec, nil
}
