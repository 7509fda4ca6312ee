// Package importer loads legacy content into the content store.
//
// Every import is an upsert keyed the same way the store keys documents
// (active page slug, section (sectionId, language)), so re-running an
// import converges instead of duplicating. Per-item failures are recorded
// and the import carries on.
package importer

import (
	"fmt"

	contentstore "github.com/dalemusser/stratacms/internal/app/store/content"
	"github.com/dalemusser/stratacms/internal/app/system/reconcile"
	"go.uber.org/zap"
)

const maxReportedErrors = 100

// Importer writes imported content through the content store.
type Importer struct {
	store   *contentstore.Store
	log     *zap.Logger
	maxDist int
}

// Option configures an Importer.
type Option func(*Importer)

// WithMaxDistance sets the largest edit distance reported as a suggestion
// for an unmatched image key.
func WithMaxDistance(d int) Option {
	return func(im *Importer) { im.maxDist = d }
}

// New returns an Importer.
func New(store *contentstore.Store, logger *zap.Logger, opts ...Option) *Importer {
	im := &Importer{store: store, log: logger, maxDist: reconcile.DefaultMaxDistance}
	for _, o := range opts {
		o(im)
	}
	return im
}

// failures collects per-item errors for a summary.
type failures struct {
	Failed int      `json:"failed"`
	Errors []string `json:"errors,omitempty"`
}

func (f *failures) add(format string, args ...any) {
	f.Failed++
	if len(f.Errors) < maxReportedErrors {
		f.Errors = append(f.Errors, fmt.Sprintf(format, args...))
	}
}
