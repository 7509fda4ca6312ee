// internal/app/system/tasks/jobs.go
package tasks

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Job names.
const (
	JobDanglingReferences = "dangling-references"
	JobOrphanSections     = "orphan-sections"
)

// DanglingRef is an active page whose section list holds ids that no longer
// resolve.
type DanglingRef struct {
	PageID  primitive.ObjectID   `bson:"_id" json:"pageId"`
	Slug    string               `bson:"slug" json:"slug"`
	Missing []primitive.ObjectID `bson:"missing" json:"missing"`
}

// OrphanSection is an active section that no page references.
type OrphanSection struct {
	ID        primitive.ObjectID `bson:"_id" json:"id"`
	SectionID string             `bson:"section_id" json:"sectionId"`
	Language  string             `bson:"language" json:"language"`
}

// FindDanglingReferences lists active pages with unresolvable section ids.
func FindDanglingReferences(ctx context.Context, db *mongo.Database) ([]DanglingRef, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"is_active": true}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         "sections",
			"localField":   "sections",
			"foreignField": "_id",
			"as":           "found",
		}}},
		{{Key: "$project", Value: bson.M{
			"slug":    1,
			"missing": bson.M{"$setDifference": bson.A{"$sections", "$found._id"}},
		}}},
		{{Key: "$match", Value: bson.M{"missing.0": bson.M{"$exists": true}}}},
		{{Key: "$sort", Value: bson.M{"slug": 1}}},
	}
	cur, err := db.Collection("pages").Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []DanglingRef
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FindOrphanSections lists active sections that no page lists. Orphans are
// an accepted outcome of the two-step create-then-attach lifecycle.
func FindOrphanSections(ctx context.Context, db *mongo.Database) ([]OrphanSection, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"is_active": true}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         "pages",
			"localField":   "_id",
			"foreignField": "sections",
			"as":           "refs",
		}}},
		{{Key: "$match", Value: bson.M{"refs": bson.M{"$size": 0}}}},
		{{Key: "$project", Value: bson.M{"section_id": 1, "language": 1}}},
		{{Key: "$sort", Value: bson.D{{Key: "section_id", Value: 1}, {Key: "language", Value: 1}}}},
	}
	cur, err := db.Collection("sections").Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []OrphanSection
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DanglingReferenceJob reports pages whose section lists point at deleted
// sections. It only logs; resolution already skips such ids.
func DanglingReferenceJob(db *mongo.Database, logger *zap.Logger) Job {
	return Job{
		Name:     JobDanglingReferences,
		Interval: 6 * time.Hour,
		Run: func(ctx context.Context) error {
			refs, err := FindDanglingReferences(ctx, db)
			if err != nil {
				return err
			}
			total := 0
			for _, r := range refs {
				total += len(r.Missing)
				logger.Warn("page references missing sections",
					zap.String("slug", r.Slug),
					zap.Int("missing", len(r.Missing)))
			}
			logger.Info("dangling reference report",
				zap.Int("pages", len(refs)),
				zap.Int("references", total))
			return nil
		},
	}
}

// OrphanSectionJob reports active sections attached to no page.
func OrphanSectionJob(db *mongo.Database, logger *zap.Logger) Job {
	return Job{
		Name:     JobOrphanSections,
		Interval: 24 * time.Hour,
		Run: func(ctx context.Context) error {
			orphans, err := FindOrphanSections(ctx, db)
			if err != nil {
				return err
			}
			for _, o := range orphans {
				logger.Debug("orphan section",
					zap.String("section_id", o.SectionID),
					zap.String("language", o.Language))
			}
			logger.Info("orphan section report", zap.Int("sections", len(orphans)))
			return nil
		},
	}
}
