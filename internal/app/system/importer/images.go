package importer

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"
	"sync"

	contentstore "github.com/dalemusser/stratacms/internal/app/store/content"
	"github.com/dalemusser/stratacms/internal/app/store/storeutil"
	"github.com/dalemusser/stratacms/internal/app/system/apperr"
	"github.com/dalemusser/stratacms/internal/app/system/reconcile"
	"github.com/dalemusser/stratacms/internal/domain/models"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"
)

//go:embed schema/image-mapping.json
var imageMappingSchema []byte

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func mappingSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		if err := compiler.AddResource("image-mapping.json", bytes.NewReader(imageMappingSchema)); err != nil {
			schemaErr = err
			return
		}
		compiledSchema, schemaErr = compiler.Compile("image-mapping.json")
	})
	return compiledSchema, schemaErr
}

// ImageMapping is the image import file: image URLs per legacy key plus
// optional manual aliases from a legacy key to a sectionId.
type ImageMapping struct {
	Language string              `json:"language"`
	Images   map[string][]string `json:"images"`
	Aliases  map[string]string   `json:"aliases"`
}

// ImagesReport reports what ImportImages did. Unresolved keys were not
// touched and need an alias or a manual fix.
type ImagesReport struct {
	Language    string            `json:"language"`
	Keys        int               `json:"keys"`
	Resolved    int               `json:"resolved"`
	ImagesAdded int               `json:"imagesAdded"`
	Unresolved  []reconcile.Match `json:"unresolved,omitempty"`
	failures
}

// ImportImages reads an image mapping file. See ImportImagesData.
func (im *Importer) ImportImages(ctx context.Context, file string) (ImagesReport, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return ImagesReport{}, fmt.Errorf("import images: %w", err)
	}
	return im.ImportImagesData(ctx, data)
}

// ImportImagesData validates data against the image mapping schema and
// appends each key's URLs to the section the key names. A key names a
// section only through the alias table or an exact sectionId match; near
// misses are reported, never applied. URLs a section already lists are
// skipped.
func (im *Importer) ImportImagesData(ctx context.Context, data []byte) (ImagesReport, error) {
	const op = "ImportImages"
	m, err := parseImageMapping(op, data)
	if err != nil {
		return ImagesReport{}, err
	}

	rep := ImagesReport{Language: models.NormalizeLanguage(m.Language), Keys: len(m.Images)}
	if rep.Language == "" {
		rep.Language = "en"
	}

	candidates, err := im.sectionIDs(ctx, rep.Language)
	if err != nil {
		return rep, err
	}
	keys := make([]string, 0, len(m.Images))
	for k := range m.Images {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, match := range reconcile.Report(keys, candidates, m.Aliases, im.maxDist) {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if !match.Resolved() {
			rep.Unresolved = append(rep.Unresolved, match)
			continue
		}
		added, err := im.applyImages(ctx, match.SectionID, rep.Language, m.Images[match.Key])
		rep.ImagesAdded += added
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			rep.Unresolved = append(rep.Unresolved, reconcile.Match{Key: match.Key, Source: reconcile.SourceNone})
		case err != nil:
			rep.add("%s: %v", match.Key, err)
			im.log.Warn("image import failed", zap.String("key", match.Key), zap.Error(err))
		default:
			rep.Resolved++
		}
	}

	im.log.Info("image import finished",
		zap.String("language", rep.Language),
		zap.Int("keys", rep.Keys),
		zap.Int("resolved", rep.Resolved),
		zap.Int("images_added", rep.ImagesAdded),
		zap.Int("unresolved", len(rep.Unresolved)),
		zap.Int("failed", rep.Failed))
	return rep, nil
}

// ReconcileReport lists the match for every key of an image mapping without
// changing any section.
type ReconcileReport struct {
	Language   string            `json:"language"`
	Candidates int               `json:"candidates"`
	Matches    []reconcile.Match `json:"matches"`
}

// ReconcileImages reads an image mapping file. See ReconcileImagesData.
func (im *Importer) ReconcileImages(ctx context.Context, file string) (ReconcileReport, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return ReconcileReport{}, fmt.Errorf("reconcile images: %w", err)
	}
	return im.ReconcileImagesData(ctx, data)
}

// ReconcileImagesData matches the mapping's keys against the sectionIds of
// its language and returns every match, suggestions included. An alias
// naming a sectionId that does not exist is reported with source none.
func (im *Importer) ReconcileImagesData(ctx context.Context, data []byte) (ReconcileReport, error) {
	m, err := parseImageMapping("ReconcileImages", data)
	if err != nil {
		return ReconcileReport{}, err
	}
	rep := ReconcileReport{Language: models.NormalizeLanguage(m.Language)}
	if rep.Language == "" {
		rep.Language = "en"
	}

	candidates, err := im.sectionIDs(ctx, rep.Language)
	if err != nil {
		return rep, err
	}
	rep.Candidates = len(candidates)
	known := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		known[c] = true
	}

	keys := make([]string, 0, len(m.Images))
	for k := range m.Images {
		keys = append(keys, k)
	}
	rep.Matches = reconcile.Report(keys, candidates, m.Aliases, im.maxDist)
	for i, match := range rep.Matches {
		if match.Source == reconcile.SourceManual && !known[match.SectionID] {
			rep.Matches[i] = reconcile.Match{Key: match.Key, Source: reconcile.SourceNone}
		}
	}
	return rep, nil
}

func parseImageMapping(op string, data []byte) (ImageMapping, error) {
	schema, err := mappingSchema()
	if err != nil {
		return ImageMapping{}, fmt.Errorf("compile image mapping schema: %w", err)
	}
	var doc any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return ImageMapping{}, apperr.Invalid(op, "file", "not valid JSON: "+err.Error())
	}
	if err := schema.Validate(doc); err != nil {
		return ImageMapping{}, &apperr.Error{
			Kind:   apperr.ErrValidation,
			Op:     op,
			Msg:    "image mapping does not match schema",
			Fields: schemaIssues(err),
			Err:    err,
		}
	}

	var m ImageMapping
	if err := json.Unmarshal(data, &m); err != nil {
		return ImageMapping{}, apperr.Invalid(op, "file", err.Error())
	}
	return m, nil
}

// schemaIssues flattens a schema validation error to location → message.
func schemaIssues(err error) map[string]string {
	out := map[string]string{}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		out["#"] = err.Error()
		return out
	}
	var walk func(*jsonschema.ValidationError)
	walk = func(node *jsonschema.ValidationError) {
		if len(node.Causes) == 0 {
			loc := strings.TrimSpace(node.InstanceLocation)
			if loc == "" {
				loc = "#"
			}
			out[loc] = strings.TrimSpace(node.Message)
			return
		}
		for _, c := range node.Causes {
			walk(c)
		}
	}
	walk(verr)
	return out
}

func (im *Importer) sectionIDs(ctx context.Context, lang string) ([]string, error) {
	var ids []string
	for page := int64(1); ; page++ {
		secs, total, err := im.store.ListSections(ctx, contentstore.SectionFilter{
			Language:        lang,
			IncludeInactive: true,
			Page:            page,
			Limit:           storeutil.MaxLimit,
		})
		if err != nil {
			return nil, err
		}
		for _, s := range secs {
			ids = append(ids, s.SectionID)
		}
		if len(secs) == 0 || int64(len(ids)) >= total {
			return ids, nil
		}
	}
}

func (im *Importer) applyImages(ctx context.Context, sectionID, lang string, urls []string) (int, error) {
	sec, err := im.store.FindSection(ctx, sectionID, lang)
	if err != nil {
		return 0, err
	}
	added := 0
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" || slices.Contains(sec.Images, u) {
			continue
		}
		next, err := im.store.AddSectionImage(ctx, sec.ID, u)
		if err != nil {
			return added, err
		}
		sec = next
		added++
	}
	return added, nil
}
