package contentstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	pagestore "github.com/dalemusser/stratacms/internal/app/store/pages"
	"github.com/dalemusser/stratacms/internal/app/system/apperr"
	"github.com/dalemusser/stratacms/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// GetOptions controls page lookups.
type GetOptions struct {
	IncludeInactive bool
}

// CreatePage stores a new page. An empty slug is derived from the title.
func (s *Store) CreatePage(ctx context.Context, in PageInput) (models.Page, error) {
	const op = "CreatePage"
	in.normalize()
	if err := in.Validate(); err != nil {
		return models.Page{}, apperr.Validation(op, err)
	}
	if err := s.checkSectionsExist(ctx, op, in.Sections); err != nil {
		return models.Page{}, err
	}

	now := time.Now().UTC()
	p := models.Page{
		ID:          primitive.NewObjectID(),
		Slug:        in.Slug,
		Title:       in.Title,
		TitleCI:     text.Fold(in.Title),
		Description: in.Description,
		Language:    in.Language,
		Category:    in.Category,
		CategoryCI:  text.Fold(in.Category),
		PageNumber:  in.PageNumber,
		Tags:        in.Tags,
		Sections:    dedupeIDs(in.Sections),
		IsActive:    in.IsActive == nil || *in.IsActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.call(ctx, op, func(ctx context.Context) error {
		return s.pages.Insert(ctx, p)
	})
	if errors.Is(err, apperr.ErrConflict) {
		return models.Page{}, apperr.Conflict(op, "an active page with slug %q already exists", p.Slug)
	}
	if err != nil {
		return models.Page{}, err
	}

	s.log.Info("page created",
		zap.String("slug", p.Slug),
		zap.String("id", p.ID.Hex()),
		zap.Int("sections", len(p.Sections)))
	s.changed(ctx)
	return p, nil
}

// UpsertPage updates the active page with in.Slug or creates it. The
// section list of an existing page is left alone.
func (s *Store) UpsertPage(ctx context.Context, in PageInput) (models.Page, bool, error) {
	const op = "UpsertPage"
	in.normalize()
	if err := in.Validate(); err != nil {
		return models.Page{}, false, apperr.Validation(op, err)
	}

	existing, err := s.GetPageBySlug(ctx, in.Slug, GetOptions{})
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		p, err := s.CreatePage(ctx, in)
		return p, err == nil, err
	case err != nil:
		return models.Page{}, false, err
	}

	p, err := s.UpdatePage(ctx, existing.ID, PageUpdate{
		Title:       &in.Title,
		Description: &in.Description,
		Language:    &in.Language,
		Category:    &in.Category,
		PageNumber:  &in.PageNumber,
		Tags:        &in.Tags,
	})
	return p, false, err
}

// GetPageByID returns a page by id, active or not.
func (s *Store) GetPageByID(ctx context.Context, id primitive.ObjectID) (models.Page, error) {
	const op = "GetPageByID"
	var p models.Page
	err := s.retry(ctx, op, func(ctx context.Context) error {
		var err error
		p, err = s.pages.GetByID(ctx, id)
		return err
	})
	if errors.Is(err, apperr.ErrNotFound) {
		return models.Page{}, apperr.NotFound(op, "page %s", id.Hex())
	}
	return p, err
}

// GetPageBySlug returns the active page with slug.
func (s *Store) GetPageBySlug(ctx context.Context, slug string, opts GetOptions) (models.Page, error) {
	const op = "GetPageBySlug"
	var p models.Page
	err := s.retry(ctx, op, func(ctx context.Context) error {
		var err error
		p, err = s.pages.GetBySlug(ctx, slug, opts.IncludeInactive)
		return err
	})
	if errors.Is(err, apperr.ErrNotFound) {
		return models.Page{}, apperr.NotFound(op, "page %q", slug)
	}
	return p, err
}

// ResolvePageRef looks a page up by ObjectID hex, falling back to the
// active page with that slug.
func (s *Store) ResolvePageRef(ctx context.Context, ref string) (models.Page, error) {
	if id, err := primitive.ObjectIDFromHex(ref); err == nil {
		return s.GetPageByID(ctx, id)
	}
	return s.GetPageBySlug(ctx, ref, GetOptions{})
}

// FindPageByName matches an active page by slug, then by title ignoring case
// and diacritics.
func (s *Store) FindPageByName(ctx context.Context, name string) (models.Page, error) {
	const op = "FindPageByName"
	if slug := models.Slugify(name); slug != "" {
		p, err := s.GetPageBySlug(ctx, slug, GetOptions{})
		if err == nil || !errors.Is(err, apperr.ErrNotFound) {
			return p, err
		}
	}

	var p models.Page
	err := s.retry(ctx, op, func(ctx context.Context) error {
		var err error
		p, err = s.pages.FindByTitle(ctx, text.Fold(name))
		return err
	})
	if errors.Is(err, apperr.ErrNotFound) {
		return models.Page{}, apperr.NotFound(op, "page named %q", name)
	}
	return p, err
}

// UpdatePage applies u to the page with id.
func (s *Store) UpdatePage(ctx context.Context, id primitive.ObjectID, u PageUpdate) (models.Page, error) {
	const op = "UpdatePage"
	u.normalize()
	if err := u.Validate(); err != nil {
		return models.Page{}, apperr.Validation(op, err)
	}
	if u.empty() {
		return s.GetPageByID(ctx, id)
	}

	set := bson.M{}
	if u.Slug != nil {
		set["slug"] = *u.Slug
	}
	if u.Title != nil {
		set["title"] = *u.Title
		set["title_ci"] = text.Fold(*u.Title)
	}
	if u.Description != nil {
		set["description"] = *u.Description
	}
	if u.Language != nil {
		set["language"] = *u.Language
	}
	if u.Category != nil {
		set["category"] = *u.Category
		set["category_ci"] = text.Fold(*u.Category)
	}
	if u.PageNumber != nil {
		set["page_number"] = *u.PageNumber
	}
	if u.Tags != nil {
		set["tags"] = *u.Tags
	}
	if u.Sections != nil {
		if err := s.checkSectionsExist(ctx, op, *u.Sections); err != nil {
			return models.Page{}, err
		}
		set["sections"] = dedupeIDs(*u.Sections)
	}

	var p models.Page
	err := s.retry(ctx, op, func(ctx context.Context) error {
		var err error
		p, err = s.pages.Update(ctx, id, set)
		return err
	})
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return models.Page{}, apperr.NotFound(op, "page %s", id.Hex())
	case errors.Is(err, apperr.ErrConflict):
		return models.Page{}, apperr.Conflict(op, "an active page with slug %q already exists", deref(u.Slug))
	case err != nil:
		return models.Page{}, err
	}
	s.changed(ctx)
	return p, nil
}

// ListPages returns pages matching opts plus the total match count.
func (s *Store) ListPages(ctx context.Context, opts pagestore.ListOptions) ([]models.Page, int64, error) {
	var (
		pages []models.Page
		total int64
	)
	err := s.retry(ctx, "ListPages", func(ctx context.Context) error {
		var err error
		pages, total, err = s.pages.List(ctx, opts)
		return err
	})
	return pages, total, err
}

// PagesReferencing computes the reverse index for a section: the pages whose
// section list contains id.
func (s *Store) PagesReferencing(ctx context.Context, id primitive.ObjectID) ([]models.Page, error) {
	var pages []models.Page
	err := s.retry(ctx, "PagesReferencing", func(ctx context.Context) error {
		var err error
		pages, err = s.pages.ReferencingSection(ctx, id)
		return err
	})
	return pages, err
}

// AttachSection appends a section to the active page with slug. Attaching an
// already-listed section changes nothing. A non-negative position inserts
// at that index.
func (s *Store) AttachSection(ctx context.Context, slug string, ref SectionRef, position int) (models.Page, error) {
	page, err := s.GetPageBySlug(ctx, slug, GetOptions{})
	if err != nil {
		return models.Page{}, err
	}
	return s.attach(ctx, page, ref, position)
}

// AttachSectionByID is AttachSection for the page document with id, in any
// state. A soft-deleted page may share its slug with an active one, so
// callers that resolved a page by id must write through its id.
func (s *Store) AttachSectionByID(ctx context.Context, pageID primitive.ObjectID, ref SectionRef, position int) (models.Page, error) {
	page, err := s.GetPageByID(ctx, pageID)
	if err != nil {
		return models.Page{}, err
	}
	return s.attach(ctx, page, ref, position)
}

func (s *Store) attach(ctx context.Context, page models.Page, ref SectionRef, position int) (models.Page, error) {
	const op = "AttachSection"
	sec, err := s.resolveSectionRef(ctx, ref, page.Language)
	if err != nil {
		return models.Page{}, err
	}
	if page.HasSection(sec.ID) {
		return page, nil
	}

	var p models.Page
	err = s.retry(ctx, op, func(ctx context.Context) error {
		var err error
		p, err = s.pages.AddSection(ctx, page.ID, sec.ID, position)
		return err
	})
	if errors.Is(err, apperr.ErrNotFound) {
		return models.Page{}, apperr.NotFound(op, "page %s", page.ID.Hex())
	}
	if err != nil {
		return models.Page{}, err
	}

	s.log.Info("section attached",
		zap.String("page", page.Slug),
		zap.String("page_id", page.ID.Hex()),
		zap.String("section_id", sec.SectionID),
		zap.String("section", sec.ID.Hex()))
	s.changed(ctx)
	return p, nil
}

// DetachSection removes a section from the active page with slug. Removing
// a section that is not listed, or that no longer exists, is a no-op.
func (s *Store) DetachSection(ctx context.Context, slug string, ref SectionRef) (models.Page, error) {
	page, err := s.GetPageBySlug(ctx, slug, GetOptions{})
	if err != nil {
		return models.Page{}, err
	}
	return s.detach(ctx, page, ref)
}

// DetachSectionByID is DetachSection for the page document with id, in any
// state.
func (s *Store) DetachSectionByID(ctx context.Context, pageID primitive.ObjectID, ref SectionRef) (models.Page, error) {
	page, err := s.GetPageByID(ctx, pageID)
	if err != nil {
		return models.Page{}, err
	}
	return s.detach(ctx, page, ref)
}

func (s *Store) detach(ctx context.Context, page models.Page, ref SectionRef) (models.Page, error) {
	const op = "DetachSection"
	id := ref.ID
	if id.IsZero() {
		sec, err := s.resolveSectionRef(ctx, ref, page.Language)
		if errors.Is(err, apperr.ErrNotFound) {
			return page, nil
		}
		if err != nil {
			return models.Page{}, err
		}
		id = sec.ID
	}
	if !page.HasSection(id) {
		return page, nil
	}

	var p models.Page
	err := s.retry(ctx, op, func(ctx context.Context) error {
		var err error
		p, err = s.pages.RemoveSection(ctx, page.ID, id)
		return err
	})
	if errors.Is(err, apperr.ErrNotFound) {
		return models.Page{}, apperr.NotFound(op, "page %s", page.ID.Hex())
	}
	if err != nil {
		return models.Page{}, err
	}
	s.changed(ctx)
	return p, nil
}

// GetPageWithSections resolves the active page with slug into a view in
// lang. An empty lang returns base fields.
func (s *Store) GetPageWithSections(ctx context.Context, slug, lang string) (models.PageView, error) {
	const op = "GetPageWithSections"
	lang = models.NormalizeLanguage(lang)
	if lang != "" && !models.IsValidLanguage(lang) {
		return models.PageView{}, apperr.Invalid(op, "lang", "must be a language code such as en or pt-br")
	}

	page, err := s.GetPageBySlug(ctx, slug, GetOptions{})
	if err != nil {
		return models.PageView{}, err
	}
	byID, err := s.sectionsByID(ctx, op, page.Sections)
	if err != nil {
		return models.PageView{}, err
	}
	return models.ResolvePage(page, byID, lang), nil
}

// PageSections returns the page's existing sections in list order.
func (s *Store) PageSections(ctx context.Context, page models.Page) ([]models.Section, error) {
	byID, err := s.sectionsByID(ctx, "PageSections", page.Sections)
	if err != nil {
		return nil, err
	}
	out := make([]models.Section, 0, len(byID))
	for _, id := range page.Sections {
		if sec, ok := byID[id]; ok {
			out = append(out, sec)
		}
	}
	return out, nil
}

func (s *Store) sectionsByID(ctx context.Context, op string, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Section, error) {
	var byID map[primitive.ObjectID]models.Section
	err := s.retry(ctx, op, func(ctx context.Context) error {
		var err error
		byID, err = s.sections.FindByIDs(ctx, ids)
		return err
	})
	return byID, err
}

func (s *Store) checkSectionsExist(ctx context.Context, op string, ids []primitive.ObjectID) error {
	if len(ids) == 0 {
		return nil
	}
	byID, err := s.sectionsByID(ctx, op, ids)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			return apperr.Invalid(op, "sections", fmt.Sprintf("unknown section %s", id.Hex()))
		}
	}
	return nil
}

func dedupeIDs(ids []primitive.ObjectID) []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(ids))
	seen := make(map[primitive.ObjectID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
