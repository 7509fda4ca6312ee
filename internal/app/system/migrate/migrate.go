// Package migrate runs one-off document migrations over the content
// collections.
//
// A Migration is a pure function over a raw document. Run streams the
// matching documents, applies the function and replaces the ones it
// changed. Failures are counted per document and never stop a run.
// Migrations are written so a second run changes nothing.
package migrate

import (
	"context"
	"fmt"
	"sort"

	"github.com/dalemusser/stratacms/internal/app/system/metrics"
	"github.com/dalemusser/stratacms/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// maxErrors caps the error messages kept in a Report.
const maxErrors = 100

// Migration rewrites documents in one or more collections.
type Migration struct {
	Name        string
	Description string
	Collections []string
	// Filter selects candidate documents; nil means all.
	Filter bson.M
	// Apply returns the replacement document and whether it differs from
	// doc. It must not touch _id.
	Apply func(doc bson.M) (next bson.M, changed bool, err error)
}

// Options tunes a run.
type Options struct {
	// DryRun applies migrations in memory and counts changes without writing.
	DryRun bool
	// Limit stops after this many scanned documents per collection; 0 is unlimited.
	Limit int
}

// Report summarizes a run.
type Report struct {
	Migration string   `json:"migration"`
	DryRun    bool     `json:"dryRun"`
	Scanned   int      `json:"scanned"`
	Changed   int      `json:"changed"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

func (r *Report) fail(msg string) {
	r.Failed++
	if len(r.Errors) < maxErrors {
		r.Errors = append(r.Errors, msg)
	}
}

// Run applies m to every matching document. The returned error is non-nil
// only when a collection cannot be read at all.
func Run(ctx context.Context, db *mongo.Database, m Migration, opts Options, logger *zap.Logger) (Report, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	rep := Report{Migration: m.Name, DryRun: opts.DryRun}
	filter := m.Filter
	if filter == nil {
		filter = bson.M{}
	}

	for _, coll := range m.Collections {
		if err := runCollection(ctx, db.Collection(coll), m, filter, opts, &rep, logger); err != nil {
			return rep, fmt.Errorf("migration %s on %s: %w", m.Name, coll, err)
		}
	}

	logger.Info("migration finished",
		zap.String("migration", m.Name),
		zap.Bool("dry_run", opts.DryRun),
		zap.Int("scanned", rep.Scanned),
		zap.Int("changed", rep.Changed),
		zap.Int("failed", rep.Failed))
	return rep, nil
}

func runCollection(ctx context.Context, c *mongo.Collection, m Migration, filter bson.M, opts Options, rep *Report, logger *zap.Logger) error {
	cur, err := c.Find(ctx, filter)
	if err != nil {
		return err
	}
	defer cur.Close(ctx)

	scanned := 0
	for cur.Next(ctx) {
		if opts.Limit > 0 && scanned >= opts.Limit {
			break
		}
		scanned++
		rep.Scanned++

		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			rep.fail(fmt.Sprintf("%s: decode: %v", c.Name(), err))
			metrics.ObserveMigration(m.Name, "failed")
			continue
		}
		id := doc["_id"]

		next, changed, err := m.Apply(doc)
		if err != nil {
			rep.fail(fmt.Sprintf("%s %v: %v", c.Name(), id, err))
			metrics.ObserveMigration(m.Name, "failed")
			logger.Warn("migration skipped document",
				zap.String("migration", m.Name),
				zap.String("collection", c.Name()),
				zap.Any("id", id),
				zap.Error(err))
			continue
		}
		if !changed {
			metrics.ObserveMigration(m.Name, "unchanged")
			continue
		}
		if !opts.DryRun {
			next["_id"] = id
			if err := replace(ctx, c, id, next); err != nil {
				rep.fail(fmt.Sprintf("%s %v: replace: %v", c.Name(), id, err))
				metrics.ObserveMigration(m.Name, "failed")
				logger.Warn("migration write failed",
					zap.String("migration", m.Name),
					zap.String("collection", c.Name()),
					zap.Any("id", id),
					zap.Error(err))
				continue
			}
		}
		rep.Changed++
		metrics.ObserveMigration(m.Name, "changed")
	}
	return cur.Err()
}

func replace(ctx context.Context, c *mongo.Collection, id any, doc bson.M) error {
	cctx, cancel := context.WithTimeout(ctx, timeouts.Storage())
	defer cancel()
	_, err := c.ReplaceOne(cctx, bson.M{"_id": id}, doc)
	return err
}

var registry = map[string]Migration{}

func register(m Migration) {
	if _, dup := registry[m.Name]; dup {
		panic("migrate: duplicate migration " + m.Name)
	}
	registry[m.Name] = m
}

// Lookup returns the registered migration with name.
func Lookup(name string) (Migration, bool) {
	m, ok := registry[name]
	return m, ok
}

// All returns the registered migrations sorted by name.
func All() []Migration {
	out := make([]Migration, 0, len(registry))
	for _, m := range registry {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
