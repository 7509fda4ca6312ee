// Package translation fills page and section translations from a machine
// translation provider.
//
// Machine output is written with ReplaceTranslation, so re-running a batch
// overwrites the previous entry instead of merging into it.
package translation

import (
	"context"
	"errors"
	"fmt"

	contentstore "github.com/dalemusser/stratacms/internal/app/store/content"
	pagestore "github.com/dalemusser/stratacms/internal/app/store/pages"
	"github.com/dalemusser/stratacms/internal/app/system/apperr"
	"github.com/dalemusser/stratacms/internal/app/system/translator"
	"github.com/dalemusser/stratacms/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Service translates stored content.
type Service struct {
	store *contentstore.Store
	tr    translator.Translator
	log   *zap.Logger
}

// New builds a service. A nil translator disables machine translation.
func New(store *contentstore.Store, tr translator.Translator, logger *zap.Logger) *Service {
	if tr == nil {
		tr = translator.Noop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, tr: tr, log: logger}
}

// SectionResult is a section resolved in the requested language.
type SectionResult struct {
	Section models.SectionView `json:"section"`
	// Machine is true when this call produced the translation.
	Machine bool `json:"machine"`
}

// TranslateSection returns the section resolved in lang. When no stored
// translation exists, or refresh is set, the provider is called and its
// output stored first. A section already authored in lang is returned as is.
func (s *Service) TranslateSection(ctx context.Context, id primitive.ObjectID, lang string, refresh bool) (SectionResult, error) {
	const op = "TranslateSection"
	lang = models.NormalizeLanguage(lang)
	if !models.IsValidLanguage(lang) {
		return SectionResult{}, apperr.Invalid(op, "lang", "must be a language code such as en or pt-br")
	}

	sec, err := s.store.GetSection(ctx, id)
	if err != nil {
		return SectionResult{}, err
	}
	if sec.Language == lang {
		return SectionResult{Section: models.ResolveSection(sec, lang)}, nil
	}
	if tr, ok := sec.Translations[lang]; ok && !refresh && (tr.Title != "" || tr.BodyText != "") {
		return SectionResult{Section: models.ResolveSection(sec, lang)}, nil
	}

	if err := s.translateSection(ctx, sec, lang); err != nil {
		return SectionResult{}, providerErr(op, lang, err)
	}
	sec, err = s.store.GetSection(ctx, id)
	if err != nil {
		return SectionResult{}, err
	}
	return SectionResult{Section: models.ResolveSection(sec, lang), Machine: true}, nil
}

// Report summarizes a batch translation run.
type Report struct {
	Pages      int      `json:"pages"`
	Languages  []string `json:"languages"`
	Translated int      `json:"translated"`
	Skipped    int      `json:"skipped"`
	Failed     int      `json:"failed"`
	Errors     []string `json:"errors,omitempty"`
}

func (r *Report) fail(format string, args ...any) {
	r.Failed++
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// TranslatePage machine-translates the active page with slug and each of
// its sections into every language in langs. Documents already authored in
// a target language are skipped. Per-document failures are recorded in the
// report and the run continues; a disabled provider stops it.
func (s *Service) TranslatePage(ctx context.Context, slug string, langs []string) (Report, error) {
	rep := Report{Languages: langs}
	if err := checkLanguages("TranslatePage", langs); err != nil {
		return rep, err
	}
	if err := s.translatePage(ctx, slug, langs, &rep); err != nil {
		return rep, err
	}
	return rep, nil
}

// TranslateAll runs TranslatePage over every active page. A page that
// cannot be loaded is recorded in the report and skipped; only a disabled
// provider, a failed listing or cancellation end the run early.
func (s *Service) TranslateAll(ctx context.Context, langs []string) (Report, error) {
	rep := Report{Languages: langs}
	if err := checkLanguages("TranslateAll", langs); err != nil {
		return rep, err
	}
	for page := int64(1); ; page++ {
		pages, total, err := s.store.ListPages(ctx, pagestore.ListOptions{Page: page, Limit: 100})
		if err != nil {
			return rep, err
		}
		for _, p := range pages {
			err := s.translatePage(ctx, p.Slug, langs, &rep)
			switch {
			case err == nil:
			case errors.Is(err, translator.ErrProviderDisabled), ctx.Err() != nil:
				return rep, err
			default:
				rep.fail("page %s: %v", p.Slug, err)
				s.log.Warn("page skipped", zap.String("slug", p.Slug), zap.Error(err))
			}
		}
		if len(pages) == 0 || page*100 >= total {
			return rep, nil
		}
	}
}

func checkLanguages(op string, langs []string) error {
	for _, l := range langs {
		if !models.IsValidLanguage(models.NormalizeLanguage(l)) {
			return apperr.Invalid(op, "langs", fmt.Sprintf("%q is not a language code", l))
		}
	}
	return nil
}

func (s *Service) translatePage(ctx context.Context, slug string, langs []string, rep *Report) error {
	const op = "TranslatePage"
	page, err := s.store.GetPageBySlug(ctx, slug, contentstore.GetOptions{})
	if err != nil {
		return err
	}
	sections, err := s.store.PageSections(ctx, page)
	if err != nil {
		return err
	}
	rep.Pages++

	for _, l := range langs {
		lang := models.NormalizeLanguage(l)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if page.Language == lang {
			rep.Skipped++
		} else if err := s.translatePageFields(ctx, page, lang); err != nil {
			if errors.Is(err, translator.ErrProviderDisabled) {
				return providerErr(op, lang, err)
			}
			rep.fail("page %s (%s): %v", page.Slug, lang, err)
			s.log.Warn("page translation failed",
				zap.String("slug", page.Slug), zap.String("lang", lang), zap.Error(err))
		} else {
			rep.Translated++
		}

		for _, sec := range sections {
			if sec.Language == lang {
				rep.Skipped++
				continue
			}
			if err := s.translateSection(ctx, sec, lang); err != nil {
				if errors.Is(err, translator.ErrProviderDisabled) {
					return providerErr(op, lang, err)
				}
				rep.fail("section %s/%s (%s): %v", sec.SectionID, sec.Language, lang, err)
				s.log.Warn("section translation failed",
					zap.String("section_id", sec.SectionID), zap.String("lang", lang), zap.Error(err))
				continue
			}
			rep.Translated++
		}
	}

	s.log.Info("page translated",
		zap.String("slug", page.Slug),
		zap.Strings("langs", langs),
		zap.Int("translated", rep.Translated),
		zap.Int("failed", rep.Failed))
	return nil
}

func (s *Service) translatePageFields(ctx context.Context, p models.Page, lang string) error {
	out, err := s.tr.Translate(ctx, []string{p.Title, p.Description}, p.Language, lang)
	if err != nil {
		return err
	}
	return s.store.ReplaceTranslation(ctx, contentstore.PageRef(p.ID), lang, contentstore.TranslationFields{
		Title:       &out[0],
		Description: &out[1],
	})
}

func (s *Service) translateSection(ctx context.Context, sec models.Section, lang string) error {
	out, err := s.tr.Translate(ctx, []string{sec.Title, sec.BodyText}, sec.Language, lang)
	if err != nil {
		return err
	}
	return s.store.ReplaceTranslation(ctx, contentstore.SectionDoc(sec.ID), lang, contentstore.TranslationFields{
		Title:    &out[0],
		BodyText: &out[1],
	})
}

// providerErr maps translator failures to apperr kinds.
func providerErr(op, lang string, err error) error {
	var ae *apperr.Error
	switch {
	case errors.As(err, &ae):
		return err
	case errors.Is(err, translator.ErrProviderDisabled):
		return &apperr.Error{Kind: apperr.ErrNotFound, Op: op,
			Msg: fmt.Sprintf("no %s translation stored and machine translation is disabled", lang), Err: err}
	case errors.Is(err, translator.ErrBadRequest):
		return &apperr.Error{Kind: apperr.ErrValidation, Op: op,
			Fields: map[string]string{"lang": "not supported by the translation provider"}, Err: err}
	case errors.Is(err, context.Canceled):
		return err
	default:
		return apperr.Unavailable(op, err)
	}
}
