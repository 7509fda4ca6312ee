// Package txn runs multi-document content writes in a MongoDB transaction,
// falling back to plain execution on deployments without transactions
// (a standalone mongod used in development and tests).
//
// Callers are section hard delete, which pulls the section from every page
// and then removes it, and duplicate-section repair, which repoints page
// references before deleting copies:
//
//	err := txn.Run(ctx, db, log, func(ctx context.Context) error {
//	    if _, err := pages.UpdateMany(ctx, refFilter, pull); err != nil {
//	        return err
//	    }
//	    _, err := sections.DeleteOne(ctx, bson.M{"_id": id})
//	    return err
//	})
//
// fn must be safe to run twice: the driver retries it on transient
// transaction errors, and the fallback runs it again after an unsupported
// attempt was aborted.
package txn

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Func is the body of a transaction. ctx is a mongo.SessionContext inside a
// transaction and the caller's context in fallback mode.
type Func func(ctx context.Context) error

// Server error codes meaning the deployment cannot run transactions.
const (
	codeIllegalOperation                   = 20
	codeNoReplicationEnabled               = 76
	codeOperationNotSupportedInTransaction = 263
)

// Run executes fn in a transaction when the deployment supports one, and
// directly otherwise. The fallback is logged at warn level when log is
// non-nil.
func Run(ctx context.Context, db *mongo.Database, log *zap.Logger, fn Func) error {
	session, err := db.Client().StartSession()
	if err != nil {
		warn(log, "could not start session; running without transaction", err)
		return fn(ctx)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	if err != nil && IsNotSupported(err) {
		warn(log, "transactions not supported; running without transaction", err)
		return fn(ctx)
	}
	return err
}

func warn(log *zap.Logger, msg string, err error) {
	if log != nil {
		log.Warn(msg, zap.Error(err))
	}
}

// IsNotSupported reports whether err says the deployment cannot run
// multi-document transactions, as opposed to the transaction body failing.
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}

	var se mongo.ServerError
	if errors.As(err, &se) {
		for _, code := range []int{codeIllegalOperation, codeNoReplicationEnabled, codeOperationNotSupportedInTransaction} {
			if se.HasErrorCode(code) {
				return true
			}
		}
	}

	// DocumentDB and some proxies only describe the failure in text.
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "transaction numbers are only allowed on a replica set") ||
		(strings.Contains(msg, "transaction") && strings.Contains(msg, "not supported"))
}
