package txn

import (
	"context"
	"errors"
	"testing"

	"github.com/dalemusser/stratacms/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestIsNotSupported(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"illegal operation", mongo.CommandError{Code: 20, Message: "Transaction numbers are only allowed on a replica set member or mongos"}, true},
		{"no replication", mongo.CommandError{Code: 76, Message: "not running with --replSet"}, true},
		{"wrapped", errors.Join(errors.New("delete section"), mongo.CommandError{Code: 263}), true},
		{"documentdb text", errors.New("Transactions are not supported on this cluster"), true},
		{"duplicate key", mongo.CommandError{Code: 11000, Message: "E11000 duplicate key"}, false},
		{"body error", errors.New("section not found"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNotSupported(tt.err); got != tt.want {
				t.Errorf("IsNotSupported(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestRun(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	coll := db.Collection("pages")
	err := Run(ctx, db, nil, func(ctx context.Context) error {
		if _, err := coll.InsertOne(ctx, bson.M{"slug": "testing"}); err != nil {
			return err
		}
		_, err := coll.UpdateOne(ctx, bson.M{"slug": "testing"}, bson.M{"$set": bson.M{"title": "Testing"}})
		return err
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	n, err := coll.CountDocuments(ctx, bson.M{"slug": "testing", "title": "Testing"})
	if err != nil || n != 1 {
		t.Fatalf("count = %d, err = %v", n, err)
	}

	bodyErr := errors.New("boom")
	if err := Run(ctx, db, nil, func(context.Context) error { return bodyErr }); !errors.Is(err, bodyErr) {
		t.Errorf("Run() error = %v, want the body error", err)
	}
}
