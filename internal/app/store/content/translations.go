package contentstore

import (
	"context"
	"errors"
	"strings"

	"github.com/dalemusser/stratacms/internal/app/system/apperr"
	"github.com/dalemusser/stratacms/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// EntityKind tells pages and sections apart in an EntityRef.
type EntityKind string

const (
	KindPage    EntityKind = "page"
	KindSection EntityKind = "section"
)

// EntityRef points at one page or section document.
type EntityRef struct {
	Kind EntityKind
	ID   primitive.ObjectID
}

// PageRef is shorthand for EntityRef{KindPage, id}.
func PageRef(id primitive.ObjectID) EntityRef { return EntityRef{Kind: KindPage, ID: id} }

// SectionDoc is shorthand for EntityRef{KindSection, id}.
func SectionDoc(id primitive.ObjectID) EntityRef { return EntityRef{Kind: KindSection, ID: id} }

// UpsertTranslation merges the non-nil fields into translations[lang].
// Fields not given keep their previous translated value. Pages take title
// and description; sections take title and bodyText.
func (s *Store) UpsertTranslation(ctx context.Context, ref EntityRef, lang string, f TranslationFields) error {
	const op = "UpsertTranslation"
	lang, err := s.checkTranslation(op, ref, lang, f)
	if err != nil {
		return err
	}
	if f.empty() {
		return apperr.Invalid(op, "fields", "at least one translated field is required")
	}

	fields := map[string]string{}
	if f.Title != nil {
		fields["title"] = strings.TrimSpace(*f.Title)
	}
	if f.Description != nil {
		fields["description"] = strings.TrimSpace(*f.Description)
	}
	if f.BodyText != nil {
		fields["body_text"] = *f.BodyText
	}

	err = s.retry(ctx, op, func(ctx context.Context) error {
		if ref.Kind == KindPage {
			_, err := s.pages.SetTranslationFields(ctx, ref.ID, lang, fields)
			return err
		}
		_, err := s.sections.SetTranslationFields(ctx, ref.ID, lang, fields)
		return err
	})
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.NotFound(op, "%s %s", ref.Kind, ref.ID.Hex())
	}
	if err != nil {
		return err
	}

	s.log.Debug("translation merged",
		zap.String("kind", string(ref.Kind)),
		zap.String("id", ref.ID.Hex()),
		zap.String("lang", lang),
		zap.Int("fields", len(fields)))
	s.changed(ctx)
	return nil
}

// ReplaceTranslation overwrites translations[lang] as a whole. Nil fields
// end up empty, which resolves to the base value. Repeating the call with
// the same input leaves the document unchanged.
func (s *Store) ReplaceTranslation(ctx context.Context, ref EntityRef, lang string, f TranslationFields) error {
	const op = "ReplaceTranslation"
	lang, err := s.checkTranslation(op, ref, lang, f)
	if err != nil {
		return err
	}

	err = s.retry(ctx, op, func(ctx context.Context) error {
		if ref.Kind == KindPage {
			_, err := s.pages.ReplaceTranslation(ctx, ref.ID, lang, models.PageTranslation{
				Title:       deref(f.Title),
				Description: deref(f.Description),
			})
			return err
		}
		_, err := s.sections.ReplaceTranslation(ctx, ref.ID, lang, models.SectionTranslation{
			Title:    deref(f.Title),
			BodyText: deref(f.BodyText),
		})
		return err
	})
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.NotFound(op, "%s %s", ref.Kind, ref.ID.Hex())
	}
	if err != nil {
		return err
	}
	s.changed(ctx)
	return nil
}

// SetActive soft-deletes or restores a page or section. Restoring a page
// whose slug has since been taken by another active page is a conflict.
func (s *Store) SetActive(ctx context.Context, ref EntityRef, active bool) error {
	const op = "SetActive"
	var err error
	switch ref.Kind {
	case KindPage:
		err = s.retry(ctx, op, func(ctx context.Context) error {
			_, err := s.pages.SetActive(ctx, ref.ID, active)
			return err
		})
		if errors.Is(err, apperr.ErrConflict) {
			return apperr.Conflict(op, "another active page already uses this page's slug")
		}
	case KindSection:
		err = s.retry(ctx, op, func(ctx context.Context) error {
			_, err := s.sections.SetActive(ctx, ref.ID, active)
			return err
		})
	default:
		return apperr.Invalid(op, "kind", "must be page or section")
	}
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.NotFound(op, "%s %s", ref.Kind, ref.ID.Hex())
	}
	if err != nil {
		return err
	}

	s.log.Info("active flag changed",
		zap.String("kind", string(ref.Kind)),
		zap.String("id", ref.ID.Hex()),
		zap.Bool("active", active))
	s.changed(ctx)
	return nil
}

// checkTranslation validates lang and the field set for ref's kind and
// returns the normalized language code.
func (s *Store) checkTranslation(op string, ref EntityRef, lang string, f TranslationFields) (string, error) {
	lang = models.NormalizeLanguage(lang)
	if !models.IsValidLanguage(lang) {
		return "", apperr.Invalid(op, "lang", "must be a language code such as en or pt-br")
	}
	switch ref.Kind {
	case KindPage:
		if f.BodyText != nil {
			return "", apperr.Invalid(op, "bodyText", "pages have no body text")
		}
	case KindSection:
		if f.Description != nil {
			return "", apperr.Invalid(op, "description", "sections have no description")
		}
	default:
		return "", apperr.Invalid(op, "kind", "must be page or section")
	}
	if ref.ID.IsZero() {
		return "", apperr.Invalid(op, "id", "is required")
	}
	return lang, nil
}
