package importer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/adrg/frontmatter"
	contentstore "github.com/dalemusser/stratacms/internal/app/store/content"
	"github.com/dalemusser/stratacms/internal/domain/models"
	"go.uber.org/zap"
)

// PageFile names the file in a page directory that carries page metadata.
const PageFile = "_page.md"

// MarkdownSummary reports what ImportMarkdown did.
type MarkdownSummary struct {
	Pages           int `json:"pages"`
	PagesCreated    int `json:"pagesCreated"`
	Sections        int `json:"sections"`
	SectionsCreated int `json:"sectionsCreated"`
	Attached        int `json:"attached"`
	failures
}

type pageMeta struct {
	Slug        string   `yaml:"slug"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Language    string   `yaml:"language"`
	Category    string   `yaml:"category"`
	PageNumber  int      `yaml:"pageNumber"`
	Tags        []string `yaml:"tags"`
}

type sectionMeta struct {
	Title      string   `yaml:"title"`
	SectionID  string   `yaml:"sectionId"`
	Language   string   `yaml:"language"`
	PageNumber int      `yaml:"pageNumber"`
	Images     []string `yaml:"images"`
}

// ImportMarkdown imports a content tree from dir. See ImportMarkdownFS.
func (im *Importer) ImportMarkdown(ctx context.Context, dir string) (MarkdownSummary, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return MarkdownSummary{}, fmt.Errorf("import markdown: %w", err)
	}
	if !info.IsDir() {
		return MarkdownSummary{}, fmt.Errorf("import markdown: %s is not a directory", dir)
	}
	return im.ImportMarkdownFS(ctx, os.DirFS(dir))
}

// ImportMarkdownFS imports one page per directory. The directory's _page.md
// frontmatter describes the page; every other .md file is a section whose
// frontmatter carries title, sectionId, language, pageNumber and images and
// whose body is the section text. Sections are attached in file-name order.
// A root that itself holds _page.md is imported as a single page.
func (im *Importer) ImportMarkdownFS(ctx context.Context, fsys fs.FS) (MarkdownSummary, error) {
	var sum MarkdownSummary

	if _, err := fs.Stat(fsys, PageFile); err == nil {
		im.importPageDir(ctx, fsys, ".", &sum)
		return sum, ctx.Err()
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return sum, fmt.Errorf("import markdown: %w", err)
	}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		im.importPageDir(ctx, fsys, e.Name(), &sum)
	}

	im.log.Info("markdown import finished",
		zap.Int("pages", sum.Pages),
		zap.Int("pages_created", sum.PagesCreated),
		zap.Int("sections", sum.Sections),
		zap.Int("sections_created", sum.SectionsCreated),
		zap.Int("attached", sum.Attached),
		zap.Int("failed", sum.Failed))
	return sum, nil
}

func (im *Importer) importPageDir(ctx context.Context, fsys fs.FS, dir string, sum *MarkdownSummary) {
	src, err := fs.ReadFile(fsys, path.Join(dir, PageFile))
	if errors.Is(err, fs.ErrNotExist) {
		im.log.Debug("skipping directory without page file", zap.String("dir", dir))
		return
	}
	if err != nil {
		sum.add("%s: %v", dir, err)
		return
	}

	var meta pageMeta
	body, err := frontmatter.Parse(bytes.NewReader(src), &meta)
	if err != nil {
		sum.add("%s: %v", path.Join(dir, PageFile), err)
		return
	}
	if meta.Slug == "" && dir != "." {
		meta.Slug = models.Slugify(path.Base(dir))
	}
	if meta.Description == "" {
		meta.Description = strings.TrimSpace(string(body))
	}

	page, created, err := im.store.UpsertPage(ctx, contentstore.PageInput{
		Slug:        meta.Slug,
		Title:       meta.Title,
		Description: meta.Description,
		Language:    meta.Language,
		Category:    meta.Category,
		PageNumber:  meta.PageNumber,
		Tags:        meta.Tags,
	})
	if err != nil {
		sum.add("page %s: %v", dir, err)
		im.log.Warn("page import failed", zap.String("dir", dir), zap.Error(err))
		return
	}
	sum.Pages++
	if created {
		sum.PagesCreated++
	}

	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		sum.add("%s: %v", dir, err)
		return
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == PageFile || path.Ext(name) != ".md" {
			continue
		}
		if ctx.Err() != nil {
			return
		}
		file := path.Join(dir, name)
		if err := im.importSection(ctx, fsys, file, &page, sum); err != nil {
			sum.add("%s: %v", file, err)
			im.log.Warn("section import failed", zap.String("file", file), zap.Error(err))
		}
	}
}

func (im *Importer) importSection(ctx context.Context, fsys fs.FS, file string, page *models.Page, sum *MarkdownSummary) error {
	src, err := fs.ReadFile(fsys, file)
	if err != nil {
		return err
	}
	var meta sectionMeta
	body, err := frontmatter.Parse(bytes.NewReader(src), &meta)
	if err != nil {
		return err
	}
	if meta.Language == "" {
		meta.Language = page.Language
	}

	sec, created, err := im.store.UpsertSection(ctx, contentstore.SectionInput{
		SectionID:  meta.SectionID,
		Title:      meta.Title,
		BodyText:   strings.TrimSpace(string(body)),
		Images:     meta.Images,
		Language:   meta.Language,
		PageNumber: meta.PageNumber,
	})
	if err != nil {
		return err
	}
	sum.Sections++
	if created {
		sum.SectionsCreated++
	}

	if page.HasSection(sec.ID) {
		return nil
	}
	p, err := im.store.AttachSection(ctx, page.Slug, contentstore.SectionRef{ID: sec.ID}, -1)
	if err != nil {
		return fmt.Errorf("attach to %s: %w", page.Slug, err)
	}
	*page = p
	sum.Attached++
	return nil
}
