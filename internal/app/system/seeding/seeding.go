// internal/app/system/seeding/seeding.go
package seeding

import (
	"context"
	"errors"

	contentstore "github.com/dalemusser/stratacms/internal/app/store/content"
	"github.com/dalemusser/stratacms/internal/app/system/apperr"
	"github.com/dalemusser/stratacms/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// SeedAll seeds default data if not already present.
func SeedAll(ctx context.Context, db *mongo.Database, logger *zap.Logger) error {
	return seedPages(ctx, contentstore.New(db, logger), logger)
}

// seedPages creates the default pages, with empty section lists, when no
// active page holds their slug.
func seedPages(ctx context.Context, store *contentstore.Store, logger *zap.Logger) error {
	defaults := []contentstore.PageInput{
		{
			Slug:        models.PageSlugHome,
			Title:       "Home",
			Description: "Industrial inspection methods, equipment and industries.",
		},
		{
			Slug:        models.PageSlugAbout,
			Title:       "About",
			Description: "Who we are and how we work.",
			PageNumber:  90,
		},
		{
			Slug:        models.PageSlugContact,
			Title:       "Contact",
			Description: "How to reach us.",
			PageNumber:  99,
		},
	}

	for _, in := range defaults {
		_, err := store.GetPageBySlug(ctx, in.Slug, contentstore.GetOptions{})
		if err == nil {
			continue
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			logger.Error("failed to check if page exists",
				zap.String("slug", in.Slug),
				zap.Error(err))
			return err
		}

		_, err = store.CreatePage(ctx, in)
		switch {
		case errors.Is(err, apperr.ErrConflict):
			// Another instance seeded it first.
			continue
		case err != nil:
			logger.Error("failed to seed page",
				zap.String("slug", in.Slug),
				zap.Error(err))
			return err
		}
		logger.Info("seeded default page", zap.String("slug", in.Slug))
	}

	return nil
}
