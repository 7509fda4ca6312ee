// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// index is one desired index. partial is nil for a full index.
type index struct {
	name    string
	keys    bson.D
	unique  bool
	partial bson.M
}

func (ix index) model() mongo.IndexModel {
	opts := options.Index().SetName(ix.name)
	if ix.unique {
		opts.SetUnique(true)
	}
	if ix.partial != nil {
		opts.SetPartialFilterExpression(ix.partial)
	}
	return mongo.IndexModel{Keys: ix.keys, Options: opts}
}

var pageIndexes = []index{
	// One active page per slug; soft-deleted pages free their slug.
	{name: "uniq_pages_active_slug", keys: bson.D{{Key: "slug", Value: 1}}, unique: true, partial: bson.M{"is_active": true}},
	{name: "idx_pages_active_category_order", keys: bson.D{
		{Key: "is_active", Value: 1},
		{Key: "category_ci", Value: 1},
		{Key: "page_number", Value: 1},
		{Key: "title_ci", Value: 1},
	}},
	{name: "idx_pages_tags", keys: bson.D{{Key: "tags", Value: 1}}},
	// Reverse index: pages referencing a section.
	{name: "idx_pages_sections", keys: bson.D{{Key: "sections", Value: 1}}},
	{name: "idx_pages_titleci", keys: bson.D{{Key: "title_ci", Value: 1}}},
}

var sectionIndexes = []index{
	{name: "uniq_sections_sectionid_language", keys: bson.D{{Key: "section_id", Value: 1}, {Key: "language", Value: 1}}, unique: true},
	{name: "idx_sections_active_language_order", keys: bson.D{
		{Key: "is_active", Value: 1},
		{Key: "language", Value: 1},
		{Key: "page_number", Value: 1},
		{Key: "title_ci", Value: 1},
	}},
}

// EnsureAll is called at startup and by contentctl before imports. It is
// idempotent and reports every problem at once. A unique index that cannot
// be built because legacy duplicates exist is reported here;
// `contentctl dedupe-sections` repairs the data.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	return errors.Join(
		ensure(ctx, db.Collection("pages"), pageIndexes),
		ensure(ctx, db.Collection("sections"), sectionIndexes),
	)
}

// installed is an index as listIndexes reports it.
type installed struct {
	Name    string `bson:"name"`
	Key     bson.D `bson:"key"`
	Unique  bool   `bson:"unique,omitempty"`
	Partial bson.M `bson:"partialFilterExpression,omitempty"`
}

func signature(keys bson.D) string {
	parts := make([]string, len(keys))
	for i, kv := range keys {
		parts[i] = fmt.Sprintf("%s:%v", kv.Key, kv.Value)
	}
	return strings.Join(parts, ",")
}

// filterString renders a partial filter as canonical extended JSON so that
// installed and desired filters compare equal regardless of number types.
func filterString(filter bson.M) string {
	if len(filter) == 0 {
		return ""
	}
	b, err := bson.MarshalExtJSON(filter, true, false)
	if err != nil {
		return fmt.Sprint(filter)
	}
	return string(b)
}

func installedIndexes(ctx context.Context, coll *mongo.Collection) (map[string]installed, error) {
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return nil, err
	}
	var all []installed
	if err := cur.All(ctx, &all); err != nil {
		return nil, err
	}
	bySig := make(map[string]installed, len(all))
	for _, ix := range all {
		bySig[signature(ix.Key)] = ix
	}
	return bySig, nil
}

// ensure creates missing indexes and recreates ones whose unique flag or
// partial filter changed. An index on the same keys under another name is
// kept when its options match.
func ensure(ctx context.Context, coll *mongo.Collection, want []index) error {
	have, err := installedIndexes(ctx, coll)
	if err != nil {
		// A missing collection has no indexes yet; creation below handles it.
		zap.L().Debug("listing indexes failed", zap.String("collection", coll.Name()), zap.Error(err))
		have = map[string]installed{}
	}

	var errs []error
	for _, ix := range want {
		start := time.Now()
		log := zap.L().With(
			zap.String("collection", coll.Name()),
			zap.String("name", ix.name),
			zap.String("keys", signature(ix.keys)))

		if cur, ok := have[signature(ix.keys)]; ok {
			if cur.Unique == ix.unique && filterString(cur.Partial) == filterString(ix.partial) {
				log.Debug("index present", zap.String("installed_as", cur.Name))
				continue
			}
			if _, err := coll.Indexes().DropOne(ctx, cur.Name); err != nil {
				errs = append(errs, fmt.Errorf("%s(%s): drop outdated index: %w", coll.Name(), ix.name, err))
				continue
			}
			log.Info("dropped index with outdated options", zap.String("installed_as", cur.Name))
		}

		if _, err := coll.Indexes().CreateOne(ctx, ix.model()); err != nil {
			if ix.unique && mongo.IsDuplicateKeyError(err) {
				err = errors.New("cannot create unique index (duplicates present)")
			}
			log.Warn("index create failed", zap.Error(err))
			errs = append(errs, fmt.Errorf("%s(%s): %w", coll.Name(), ix.name, err))
			continue
		}
		log.Info("index created", zap.Duration("took", time.Since(start)))
	}
	return errors.Join(errs...)
}
