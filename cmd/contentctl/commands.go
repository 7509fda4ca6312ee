package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"text/tabwriter"

	"github.com/dalemusser/stratacms/internal/app/system/auth"
	"github.com/dalemusser/stratacms/internal/app/system/importer"
	"github.com/dalemusser/stratacms/internal/app/system/migrate"
	"github.com/dalemusser/stratacms/internal/app/system/reconcile"
	"github.com/dalemusser/stratacms/internal/app/system/tasks"
	"github.com/dalemusser/stratacms/internal/app/system/translation"
	"go.uber.org/zap"
)

// errFailures is returned after a run that finished but skipped records.
var errFailures = errors.New("finished with failures")

func newFlagSet(name string) *flag.FlagSet {
	return flag.NewFlagSet(name, flag.ContinueOnError)
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	return nil
}

func failed(n int) error {
	if n > 0 {
		return fmt.Errorf("%w: %d", errFailures, n)
	}
	return nil
}

func runImportMarkdown(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("import-markdown")
	dir := fs.String("dir", "", "Content root: one directory per page")
	maxDist := fs.Int("max-distance", reconcile.DefaultMaxDistance, "Largest edit distance reported as a suggestion")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *dir == "" {
		return fmt.Errorf("%w: import-markdown requires -dir", errUsage)
	}
	if err := e.ensureIndexes(ctx); err != nil {
		return err
	}

	im := importer.New(e.store, e.log, importer.WithMaxDistance(*maxDist))
	sum, err := im.ImportMarkdown(ctx, *dir)
	if err != nil {
		return err
	}
	if err := e.writeJSON(sum); err != nil {
		return err
	}
	return failed(sum.Failed)
}

func runImportImages(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("import-images")
	file := fs.String("file", "", "Image mapping JSON file")
	maxDist := fs.Int("max-distance", reconcile.DefaultMaxDistance, "Largest edit distance reported as a suggestion")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *file == "" {
		return fmt.Errorf("%w: import-images requires -file", errUsage)
	}

	im := importer.New(e.store, e.log, importer.WithMaxDistance(*maxDist))
	rep, err := im.ImportImages(ctx, *file)
	if err != nil {
		return err
	}
	if err := e.writeJSON(rep); err != nil {
		return err
	}
	return failed(rep.Failed)
}

func runReconcile(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("reconcile")
	file := fs.String("file", "", "Image mapping JSON file")
	maxDist := fs.Int("max-distance", reconcile.DefaultMaxDistance, "Largest edit distance reported as a suggestion")
	unresolvedOnly := fs.Bool("unresolved", false, "Only list keys that need a decision")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *file == "" {
		return fmt.Errorf("%w: reconcile requires -file", errUsage)
	}

	im := importer.New(e.store, e.log, importer.WithMaxDistance(*maxDist))
	rep, err := im.ReconcileImages(ctx, *file)
	if err != nil {
		return err
	}
	if *unresolvedOnly {
		rep.Matches = reconcile.Unresolved(rep.Matches)
	}
	return e.writeJSON(rep)
}

func runMigrations(_ context.Context, e *env, _ []string) error {
	tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tCOLLECTIONS\tDESCRIPTION")
	for _, m := range migrate.All() {
		fmt.Fprintf(tw, "%s\t%v\t%s\n", m.Name, m.Collections, m.Description)
	}
	return tw.Flush()
}

func runMigrate(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("migrate")
	dryRun := fs.Bool("dry-run", false, "Count changes without writing")
	limit := fs.Int("limit", 0, "Stop after this many documents per collection (0 is unlimited)")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("%w: migrate requires migration names or \"all\"", errUsage)
	}

	var todo []migrate.Migration
	if fs.NArg() == 1 && fs.Arg(0) == "all" {
		todo = migrate.All()
	} else {
		for _, name := range fs.Args() {
			m, ok := migrate.Lookup(name)
			if !ok {
				return fmt.Errorf("%w: unknown migration %q (see contentctl migrations)", errUsage, name)
			}
			todo = append(todo, m)
		}
	}

	opts := migrate.Options{DryRun: *dryRun, Limit: *limit}
	reports := make([]migrate.Report, 0, len(todo))
	failures := 0
	for _, m := range todo {
		rep, err := migrate.Run(ctx, e.db, m, opts, e.log)
		reports = append(reports, rep)
		if err != nil {
			_ = e.writeJSON(reports)
			return err
		}
		failures += rep.Failed
	}
	if !*dryRun {
		e.invalidate(ctx)
	}
	if err := e.writeJSON(reports); err != nil {
		return err
	}
	return failed(failures)
}

func runDedupe(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("dedupe-sections")
	dryRun := fs.Bool("dry-run", false, "List duplicate groups without changing anything")
	if err := parse(fs, args); err != nil {
		return err
	}

	rep, err := migrate.DedupeSections(ctx, e.db, migrate.Options{DryRun: *dryRun}, e.log)
	if err != nil {
		return err
	}
	if !*dryRun && rep.SectionsRemoved > 0 {
		e.invalidate(ctx)
	}
	if err := e.writeJSON(rep); err != nil {
		return err
	}
	return failed(rep.Failed)
}

func runTranslate(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("translate")
	langsFlag := fs.String("langs", e.opts.languages, "Comma-separated target languages")
	page := fs.String("page", "", "Slug of the page to translate")
	all := fs.Bool("all", false, "Translate every active page")
	if err := parse(fs, args); err != nil {
		return err
	}
	if (*page == "") == !*all {
		return fmt.Errorf("%w: translate requires exactly one of -page or -all", errUsage)
	}
	langs, err := parseLanguages(*langsFlag)
	if err != nil {
		return err
	}

	tr, err := e.newTranslator(ctx)
	if err != nil {
		return err
	}
	svc := translation.New(e.store, tr, e.log)

	var rep translation.Report
	if *all {
		rep, err = svc.TranslateAll(ctx, langs)
	} else {
		rep, err = svc.TranslatePage(ctx, *page, langs)
	}
	if werr := e.writeJSON(rep); werr != nil && err == nil {
		err = werr
	}
	if err != nil {
		return err
	}
	return failed(rep.Failed)
}

// integrityReport is printed by the report command.
type integrityReport struct {
	DanglingReferences []tasks.DanglingRef   `json:"danglingReferences"`
	OrphanSections     []tasks.OrphanSection `json:"orphanSections"`
}

func runReport(ctx context.Context, e *env, _ []string) error {
	var rep integrityReport
	var err error
	if rep.DanglingReferences, err = tasks.FindDanglingReferences(ctx, e.db); err != nil {
		return fmt.Errorf("dangling references: %w", err)
	}
	if rep.OrphanSections, err = tasks.FindOrphanSections(ctx, e.db); err != nil {
		return fmt.Errorf("orphan sections: %w", err)
	}
	e.log.Info("integrity report",
		zap.Int("dangling_pages", len(rep.DanglingReferences)),
		zap.Int("orphan_sections", len(rep.OrphanSections)))
	return e.writeJSON(rep)
}

type hashedKey struct {
	Key  string `json:"key,omitempty"`
	Hash string `json:"hash"`
}

func runHashKey(_ context.Context, e *env, args []string) error {
	fs := newFlagSet("hash-key")
	key := fs.String("key", "", "Existing key to hash")
	if err := parse(fs, args); err != nil {
		return err
	}

	out := hashedKey{}
	if *key == "" {
		generated, err := auth.GenerateKey()
		if err != nil {
			return fmt.Errorf("generate key: %w", err)
		}
		*key = generated
		// Only a generated key is echoed; it is shown once.
		out.Key = generated
	}
	hash, err := auth.HashKey(*key)
	if err != nil {
		return fmt.Errorf("hash key: %w", err)
	}
	out.Hash = hash
	return e.writeJSON(out)
}
