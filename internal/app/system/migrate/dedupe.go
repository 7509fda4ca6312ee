package migrate

import (
	"context"
	"fmt"

	pagestore "github.com/dalemusser/stratacms/internal/app/store/pages"
	"github.com/dalemusser/stratacms/internal/app/system/txn"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// DuplicateGroup is one (section_id, language) pair held by several
// section documents.
type DuplicateGroup struct {
	SectionID string               `json:"sectionId"`
	Language  string               `json:"language"`
	Keep      primitive.ObjectID   `json:"keep"`
	Remove    []primitive.ObjectID `json:"remove"`
}

// DedupeReport summarizes a DedupeSections run.
type DedupeReport struct {
	DryRun          bool             `json:"dryRun"`
	Groups          []DuplicateGroup `json:"groups"`
	SectionsRemoved int              `json:"sectionsRemoved"`
	PagesRepointed  int64            `json:"pagesRepointed"`
	Failed          int              `json:"failed"`
	Errors          []string         `json:"errors,omitempty"`
}

// FindDuplicateSections groups sections sharing (section_id, language).
// The oldest document of each group is the one kept.
func FindDuplicateSections(ctx context.Context, db *mongo.Database) ([]DuplicateGroup, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "section_id", Value: "$section_id"}, {Key: "language", Value: "$language"}}},
			{Key: "ids", Value: bson.D{{Key: "$push", Value: "$_id"}}},
			{Key: "n", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$match", Value: bson.D{{Key: "n", Value: bson.D{{Key: "$gt", Value: 1}}}}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id.section_id", Value: 1}, {Key: "_id.language", Value: 1}}}},
	}
	cur, err := db.Collection("sections").Aggregate(ctx, pipeline, options.Aggregate().SetAllowDiskUse(true))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rows []struct {
		Key struct {
			SectionID string `bson:"section_id"`
			Language  string `bson:"language"`
		} `bson:"_id"`
		IDs []primitive.ObjectID `bson:"ids"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}

	groups := make([]DuplicateGroup, 0, len(rows))
	for _, r := range rows {
		groups = append(groups, DuplicateGroup{
			SectionID: r.Key.SectionID,
			Language:  r.Key.Language,
			Keep:      r.IDs[0],
			Remove:    r.IDs[1:],
		})
	}
	return groups, nil
}

// DedupeSections repairs legacy duplicate (section_id, language) groups:
// page references to the newer copies are repointed at the oldest one and
// the newer copies are deleted. Each group runs in its own transaction when
// the deployment supports them. Run it before the unique index is built.
func DedupeSections(ctx context.Context, db *mongo.Database, opts Options, logger *zap.Logger) (DedupeReport, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	rep := DedupeReport{DryRun: opts.DryRun}

	groups, err := FindDuplicateSections(ctx, db)
	if err != nil {
		return rep, fmt.Errorf("find duplicate sections: %w", err)
	}
	rep.Groups = groups
	if opts.DryRun {
		for _, g := range groups {
			rep.SectionsRemoved += len(g.Remove)
		}
		return rep, nil
	}

	pages := pagestore.New(db)
	sections := db.Collection("sections")
	for _, g := range groups {
		var repointed int64
		err := txn.Run(ctx, db, logger, func(ctx context.Context) error {
			repointed = 0
			for _, dup := range g.Remove {
				n, err := pages.RepointSection(ctx, dup, g.Keep)
				if err != nil {
					return err
				}
				repointed += n
			}
			_, err := sections.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": g.Remove}})
			return err
		})
		if err != nil {
			rep.Failed++
			rep.Errors = append(rep.Errors, fmt.Sprintf("%s/%s: %v", g.SectionID, g.Language, err))
			logger.Warn("dedupe group failed",
				zap.String("section_id", g.SectionID),
				zap.String("language", g.Language),
				zap.Error(err))
			continue
		}
		rep.SectionsRemoved += len(g.Remove)
		rep.PagesRepointed += repointed
		logger.Info("duplicate sections merged",
			zap.String("section_id", g.SectionID),
			zap.String("language", g.Language),
			zap.String("kept", g.Keep.Hex()),
			zap.Int("removed", len(g.Remove)),
			zap.Int64("pages_repointed", repointed))
	}
	return rep, nil
}
