// internal/app/store/pages/pagestore.go
package pagestore

import (
	"context"
	"regexp"
	"time"

	"github.com/dalemusser/stratacms/internal/app/store/storeutil"
	"github.com/dalemusser/stratacms/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionName is the MongoDB collection holding pages.
const CollectionName = "pages"

// Store provides access to the pages collection.
type Store struct {
	c *mongo.Collection
}

// New creates a new page store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(CollectionName)}
}

// Insert stores a new page. The slug index rejects a second active page
// with the same slug.
func (s *Store) Insert(ctx context.Context, p models.Page) error {
	_, err := s.c.InsertOne(ctx, p)
	return err
}

// GetByID returns a page by its ObjectID, active or not.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Page, error) {
	var p models.Page
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return models.Page{}, err
	}
	return p, nil
}

// GetBySlug returns the active page with slug. With includeInactive, an
// inactive page is returned when no active one exists (newest first).
func (s *Store) GetBySlug(ctx context.Context, slug string, includeInactive bool) (models.Page, error) {
	filter := bson.M{"slug": slug}
	if !includeInactive {
		filter["is_active"] = true
	}
	opts := options.FindOne().SetSort(bson.D{
		{Key: "is_active", Value: -1},
		{Key: "updated_at", Value: -1},
	})
	var p models.Page
	if err := s.c.FindOne(ctx, filter, opts).Decode(&p); err != nil {
		return models.Page{}, err
	}
	return p, nil
}

// FindByTitle returns the active page whose folded title equals titleCI.
func (s *Store) FindByTitle(ctx context.Context, titleCI string) (models.Page, error) {
	var p models.Page
	err := s.c.FindOne(ctx, bson.M{"title_ci": titleCI, "is_active": true}).Decode(&p)
	if err != nil {
		return models.Page{}, err
	}
	return p, nil
}

// Exists checks if an active page with the given slug exists.
func (s *Store) Exists(ctx context.Context, slug string) (bool, error) {
	count, err := s.c.CountDocuments(ctx, bson.M{"slug": slug, "is_active": true})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Update applies set to the page and returns the updated document.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, set bson.M) (models.Page, error) {
	set["updated_at"] = time.Now().UTC()
	return s.findOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set})
}

// SetActive flips the soft-delete flag.
func (s *Store) SetActive(ctx context.Context, id primitive.ObjectID, active bool) (models.Page, error) {
	return s.Update(ctx, id, bson.M{"is_active": active})
}

// AddSection appends sectionID to the page's list unless already present.
// A non-negative position inserts at that index instead of appending.
func (s *Store) AddSection(ctx context.Context, pageID, sectionID primitive.ObjectID, position int) (models.Page, error) {
	now := time.Now().UTC()
	if position < 0 {
		return s.findOneAndUpdate(ctx, bson.M{"_id": pageID}, bson.M{
			"$addToSet": bson.M{"sections": sectionID},
			"$set":      bson.M{"updated_at": now},
		})
	}

	p, err := s.findOneAndUpdate(ctx,
		bson.M{"_id": pageID, "sections": bson.M{"$ne": sectionID}},
		bson.M{
			"$push": bson.M{"sections": bson.M{"$each": bson.A{sectionID}, "$position": position}},
			"$set":  bson.M{"updated_at": now},
		})
	if err == mongo.ErrNoDocuments {
		// Either the page is gone or the section is already attached.
		return s.GetByID(ctx, pageID)
	}
	return p, err
}

// RemoveSection pulls sectionID from the page's list. Absent ids are a no-op.
func (s *Store) RemoveSection(ctx context.Context, pageID, sectionID primitive.ObjectID) (models.Page, error) {
	return s.findOneAndUpdate(ctx, bson.M{"_id": pageID}, bson.M{
		"$pull": bson.M{"sections": sectionID},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	})
}

// ReplaceSections overwrites the ordered section list.
func (s *Store) ReplaceSections(ctx context.Context, pageID primitive.ObjectID, ids []primitive.ObjectID) (models.Page, error) {
	if ids == nil {
		ids = []primitive.ObjectID{}
	}
	return s.Update(ctx, pageID, bson.M{"sections": ids})
}

// PullSectionEverywhere removes sectionID from every page that lists it.
func (s *Store) PullSectionEverywhere(ctx context.Context, sectionID primitive.ObjectID) (int64, error) {
	res, err := s.c.UpdateMany(ctx, bson.M{"sections": sectionID}, bson.M{
		"$pull": bson.M{"sections": sectionID},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// RepointSection moves references from one section to another, keeping
// list position. Pages already listing both just drop from.
func (s *Store) RepointSection(ctx context.Context, from, to primitive.ObjectID) (int64, error) {
	now := time.Now().UTC()
	both, err := s.c.UpdateMany(ctx,
		bson.M{"sections": bson.M{"$all": bson.A{from, to}}},
		bson.M{"$pull": bson.M{"sections": from}, "$set": bson.M{"updated_at": now}})
	if err != nil {
		return 0, err
	}
	moved, err := s.c.UpdateMany(ctx,
		bson.M{"sections": from},
		bson.M{"$set": bson.M{"sections.$": to, "updated_at": now}})
	if err != nil {
		return both.ModifiedCount, err
	}
	return both.ModifiedCount + moved.ModifiedCount, nil
}

// ReferencingSection returns the pages that list sectionID.
func (s *Store) ReferencingSection(ctx context.Context, sectionID primitive.ObjectID) ([]models.Page, error) {
	opts := options.Find().SetSort(bson.D{{Key: "page_number", Value: 1}, {Key: "slug", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"sections": sectionID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var pages []models.Page
	if err := cur.All(ctx, &pages); err != nil {
		return nil, err
	}
	return pages, nil
}

// SetTranslationFields merges fields into translations.<lang>. The caller
// validates lang; it becomes part of a field path.
func (s *Store) SetTranslationFields(ctx context.Context, id primitive.ObjectID, lang string, fields map[string]string) (models.Page, error) {
	set := bson.M{}
	for k, v := range fields {
		set["translations."+lang+"."+k] = v
	}
	return s.Update(ctx, id, set)
}

// ReplaceTranslation overwrites translations.<lang> as a whole.
func (s *Store) ReplaceTranslation(ctx context.Context, id primitive.ObjectID, lang string, tr models.PageTranslation) (models.Page, error) {
	return s.Update(ctx, id, bson.M{"translations." + lang: tr})
}

// ListOptions filters and pages the page listing.
type ListOptions struct {
	Category        string
	Tag             string
	Query           string
	IncludeInactive bool
	Page            int64
	Limit           int64
}

// List returns the pages matching opts and the total match count.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]models.Page, int64, error) {
	filter := bson.M{}
	if !opts.IncludeInactive {
		filter["is_active"] = true
	}
	if opts.Category != "" {
		filter["category_ci"] = text.Fold(opts.Category)
	}
	if opts.Tag != "" {
		filter["tags"] = opts.Tag
	}
	if opts.Query != "" {
		filter["title_ci"] = bson.M{"$regex": regexp.QuoteMeta(text.Fold(opts.Query))}
	}

	total, err := s.c.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	findOpts := storeutil.Paginate(opts.Limit, opts.Page).
		SetSort(bson.D{{Key: "page_number", Value: 1}, {Key: "title_ci", Value: 1}})
	cur, err := s.c.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	pages := []models.Page{}
	if err := cur.All(ctx, &pages); err != nil {
		return nil, 0, err
	}
	return pages, total, nil
}

func (s *Store) findOneAndUpdate(ctx context.Context, filter, update bson.M) (models.Page, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var p models.Page
	if err := s.c.FindOneAndUpdate(ctx, filter, update, opts).Decode(&p); err != nil {
		return models.Page{}, err
	}
	return p, nil
}
