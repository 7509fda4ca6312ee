// internal/app/store/sections/sectionstore.go
package sectionstore

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

// CollectionName is the MongoDB collection holding sections.
const CollectionName = "sections"

// Store provides access to the sections collection.
type Store struct {
	c *mongo.Collection
}

// New creates a new section store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(CollectionName)}
}

// Insert stores a new section. The (section_id, language) index rejects
// duplicates.
func (s *Store) Insert(ctx context.Context, sec models.Section) error {
	_, err := s.c.InsertOne(ctx, sec)
	return err
}

// GetByID returns a section by its ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Section, error) {
	var sec models.Section
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&sec); err != nil {
		return models.Section{}, err
	}
	return sec, nil
}

// GetByKey returns the section identified by (sectionID, language).
func (s *Store) GetByKey(ctx context.Context, sectionID, language string) (models.Section, error) {
	var sec models.Section
	err := s.c.FindOne(ctx, bson.M{"section_id": sectionID, "language": language}).Decode(&sec)
	if err != nil {
		return models.Section{}, err
	}
	return sec, nil
}

// FindByIDs returns the sections with the given ids keyed by id. Missing ids
// are simply absent from the map.
func (s *Store) FindByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Section, error) {
	out := make(map[primitive.ObjectID]models.Section, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var sec models.Section
		if err := cur.Decode(&sec); err != nil {
			return nil, err
		}
		out[sec.ID] = sec
	}
	return out, cur.Err()
}

// Update applies set to the section and returns the updated document.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, set bson.M) (models.Section, error) {
	set["updated_at"] = time.Now().UTC()
	return s.findOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set})
}

// SetActive flips the soft-delete flag.
func (s *Store) SetActive(ctx context.Context, id primitive.ObjectID, active bool) (models.Section, error) {
	return s.Update(ctx, id, bson.M{"is_active": active})
}

// Delete removes the section document.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// AddImage appends url to the image list.
func (s *Store) AddImage(ctx context.Context, id primitive.ObjectID, url string) (models.Section, error) {
	return s.findOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{
		"$push": bson.M{"images": url},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	})
}

// RemoveImage pulls every occurrence of url from the image list.
func (s *Store) RemoveImage(ctx context.Context, id primitive.ObjectID, url string) (models.Section, error) {
	return s.findOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{
		"$pull": bson.M{"images": url},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	})
}

// SetTranslationFields merges fields into translations.<lang>.
func (s *Store) SetTranslationFields(ctx context.Context, id primitive.ObjectID, lang string, fields map[string]string) (models.Section, error) {
	set := bson.M{}
	for k, v := range fields {
		set["translations."+lang+"."+k] = v
	}
	return s.Update(ctx, id, set)
}

// ReplaceTranslation overwrites translations.<lang> as a whole.
func (s *Store) ReplaceTranslation(ctx context.Context, id primitive.ObjectID, lang string, tr models.SectionTranslation) (models.Section, error) {
	return s.Update(ctx, id, bson.M{"translations." + lang: tr})
}

// ListOptions filters and pages the section listing.
type ListOptions struct {
	Language        string
	Query           string
	IDs             []primitive.ObjectID // restrict to these ids (e.g. one page's sections)
	IncludeInactive bool
	Page            int64
	Limit           int64
}

// List returns the sections matching opts and the total match count.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]models.Section, int64, error) {
	filter := bson.M{}
	if !opts.IncludeInactive {
		filter["is_active"] = true
	}
	if opts.Language != "" {
		filter["language"] = opts.Language
	}
	if opts.Query != "" {
		filter["title_ci"] = bson.M{"$regex": regexp.QuoteMeta(text.Fold(opts.Query))}
	}
	if opts.IDs != nil {
		filter["_id"] = bson.M{"$in": opts.IDs}
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

	out := []models.Section{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// FindByName returns active sections among ids whose folded title or
// section_id equals name.
func (s *Store) FindByName(ctx context.Context, ids []primitive.ObjectID, name string) ([]models.Section, error) {
	filter := bson.M{
		"_id":       bson.M{"$in": ids},
		"is_active": true,
		"$or": bson.A{
			bson.M{"section_id": models.DeriveSectionID(name)},
			bson.M{"title_ci": text.Fold(name)},
		},
	}
	cur, err := s.c.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Section
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) findOneAndUpdate(ctx context.Context, filter, update bson.M) (models.Section, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var sec models.Section
	if err := s.c.FindOneAndUpdate(ctx, filter, update, opts).Decode(&sec); err != nil {
		return models.Section{}, err
	}
	return sec, nil
}
