// Package resolver serves resolved page views: the content store's
// resolution, the optional Redis view cache and optional HTML rendering of
// section bodies.
package resolver

import (
	"context"

	contentstore "github.com/dalemusser/stratacms/internal/app/store/content"
	"github.com/dalemusser/stratacms/internal/app/system/markdown"
	"github.com/dalemusser/stratacms/internal/app/system/pagecache"
	"github.com/dalemusser/stratacms/internal/domain/models"
	"go.uber.org/zap"
)

// Format selects the body representation of a resolved view.
type Format string

const (
	FormatJSON Format = "json" // bodyText only
	FormatHTML Format = "html" // bodyText plus rendered bodyHtml
)

// ParseFormat maps a query value to a Format; anything but "html" is JSON.
func ParseFormat(s string) Format {
	if s == string(FormatHTML) {
		return FormatHTML
	}
	return FormatJSON
}

// Resolver resolves pages through the cache.
type Resolver struct {
	store *contentstore.Store
	cache *pagecache.Cache
	log   *zap.Logger
}

// New wires a resolver. cache may be nil. Invalidation is the store's job:
// build it with contentstore.WithOnChange(cache.Invalidate).
func New(store *contentstore.Store, cache *pagecache.Cache, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{store: store, cache: cache, log: logger}
}

// Page returns the active page with slug resolved in lang. An empty lang
// yields base fields.
func (r *Resolver) Page(ctx context.Context, slug, lang string, format Format) (models.PageView, error) {
	lang = models.NormalizeLanguage(lang)
	key := pagecache.Key{Slug: slug, Lang: lang, Format: string(format)}
	return r.cache.Fetch(ctx, key, func(ctx context.Context) (models.PageView, error) {
		v, err := r.store.GetPageWithSections(ctx, slug, lang)
		if err != nil {
			return models.PageView{}, err
		}
		if format == FormatHTML {
			r.renderPage(&v)
		}
		return v, nil
	})
}

// Section resolves a single section in lang.
func (r *Resolver) Section(s models.Section, lang string, format Format) models.SectionView {
	v := models.ResolveSection(s, lang)
	if format == FormatHTML {
		r.renderSection(&v)
	}
	return v
}

func (r *Resolver) renderPage(v *models.PageView) {
	for i := range v.Sections {
		r.renderSection(&v.Sections[i])
	}
}

// renderSection leaves BodyHTML empty when rendering fails; bodyText is
// still served.
func (r *Resolver) renderSection(v *models.SectionView) {
	html, err := markdown.Render(v.BodyText)
	if err != nil {
		r.log.Warn("markdown render failed",
			zap.String("section_id", v.SectionID),
			zap.Error(err))
		return
	}
	v.BodyHTML = html
}
