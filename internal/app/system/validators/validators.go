// internal/app/system/validators/validators.go
package validators

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// EnsureAll creates the content collections when missing and attaches their
// $jsonSchema validators. Deployments without collMod (some DocumentDB
// versions) keep the collections and skip the validator.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var errs []error
	for _, c := range []struct {
		name   string
		schema bson.M
	}{
		{"pages", pagesSchema()},
		{"sections", sectionsSchema()},
	} {
		if err := ensureCollection(ctx, db, c.name); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
			continue
		}
		err := setValidator(ctx, db, c.name, c.schema)
		switch {
		case err == nil:
			zap.L().Info("validator ensured", zap.String("collection", c.name))
		case unsupported(err):
			zap.L().Info("validator skipped (unsupported)", zap.String("collection", c.name))
		default:
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
		}
	}
	return errors.Join(errs...)
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string) error {
	names, err := db.ListCollectionNames(ctx, bson.M{"name": name})
	if err == nil && len(names) > 0 {
		return nil
	}
	// Listing can fail on restricted roles; creating is still worth a try.
	err = db.CreateCollection(ctx, name)
	if err != nil && !serverErrorMatches(err, []int{codeNamespaceExists}, "already exists", "namespace exists") {
		zap.L().Warn("createCollection failed", zap.String("collection", name), zap.Error(err))
		return err
	}
	if err == nil {
		zap.L().Info("created collection", zap.String("collection", name))
	}
	return nil
}

// Moderate validation leaves documents that predate the schema updatable
// until the migrations have run.
func setValidator(ctx context.Context, db *mongo.Database, name string, schema bson.M) error {
	return db.RunCommand(ctx, bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: schema},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}).Err()
}

const (
	codeNamespaceExists     = 48
	codeCommandNotFound     = 59
	codeCommandNotSupported = 115
)

func unsupported(err error) bool {
	return serverErrorMatches(err, []int{codeCommandNotFound, codeCommandNotSupported},
		"no such command", "not implemented", "not supported")
}

// serverErrorMatches checks a server error code first and falls back to the
// message, which is all some proxies return.
func serverErrorMatches(err error, codes []int, phrases ...string) bool {
	if err == nil {
		return false
	}
	var se mongo.ServerError
	if errors.As(err, &se) {
		for _, c := range codes {
			if se.HasErrorCode(c) {
				return true
			}
		}
	}
	msg := strings.ToLower(err.Error())
	for _, p := range phrases {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

/* ------------------------- JSON-Schema docs ---------------------- */

func pagesSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"slug", "title", "language", "sections", "is_active"},
			"properties": bson.M{
				"slug":        bson.M{"bsonType": "string", "pattern": "^[a-z0-9]+(-[a-z0-9]+)*$"},
				"title":       bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"},
				"title_ci":    bson.M{"bsonType": "string"},
				"description": bson.M{"bsonType": "string"},
				"language":    bson.M{"bsonType": "string", "minLength": 2},
				"category":    bson.M{"bsonType": "string"},
				"page_number": bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 0},
				"tags":        bson.M{"bsonType": "array", "items": bson.M{"bsonType": "string"}},
				"sections":    bson.M{"bsonType": "array", "items": bson.M{"bsonType": "objectId"}},
				"translations": bson.M{
					"bsonType": "object",
					"additionalProperties": bson.M{
						"bsonType": "object",
						"properties": bson.M{
							"title":       bson.M{"bsonType": "string"},
							"description": bson.M{"bsonType": "string"},
						},
					},
				},
				"is_active": bson.M{"bsonType": "bool"},
			},
		},
	}
}

func sectionsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"section_id", "title", "language", "is_active"},
			"properties": bson.M{
				"section_id":  bson.M{"bsonType": "string", "pattern": "^[a-z0-9]+(-[a-z0-9]+)*$"},
				"title":       bson.M{"bsonType": "string", "minLength": 1},
				"body_text":   bson.M{"bsonType": "string"},
				"images":      bson.M{"bsonType": "array", "items": bson.M{"bsonType": "string"}},
				"language":    bson.M{"bsonType": "string", "minLength": 2},
				"page_number": bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 0},
				"translations": bson.M{
					"bsonType": "object",
					"additionalProperties": bson.M{
						"bsonType": "object",
						"properties": bson.M{
							"title":     bson.M{"bsonType": "string"},
							"body_text": bson.M{"bsonType": "string"},
						},
					},
				},
				"is_active": bson.M{"bsonType": "bool"},
			},
		},
	}
}
