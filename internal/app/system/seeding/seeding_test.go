package seeding

import (
	"testing"

	pagestore "github.com/dalemusser/stratacms/internal/app/store/pages"
	"github.com/dalemusser/stratacms/internal/domain/models"
	"github.com/dalemusser/stratacms/internal/testutil"
	"go.uber.org/zap"
)

func TestSeedAll_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	for i := 0; i < 2; i++ {
		if err := SeedAll(ctx, db, zap.NewNop()); err != nil {
			t.Fatalf("SeedAll() #%d error = %v", i, err)
		}
	}

	store := pagestore.New(db)
	for _, slug := range models.DefaultPageSlugs() {
		ok, err := store.Exists(ctx, slug)
		if err != nil {
			t.Fatalf("Exists(%s) error = %v", slug, err)
		}
		if !ok {
			t.Errorf("page %s was not seeded", slug)
		}
	}

	_, total, err := store.List(ctx, pagestore.ListOptions{IncludeInactive: true})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if total != int64(len(models.DefaultPageSlugs())) {
		t.Errorf("total pages = %d, want %d", total, len(models.DefaultPageSlugs()))
	}
}
