// Package contentstore implements the page/section content operations on
// top of the pages and sections collections.
//
// Every storage call runs under the storage timeout and surfaces one of the
// apperr kinds. Idempotent calls are retried once on ErrStorageUnavailable;
// inserts are not, so a timed-out insert that actually landed is never
// reported as a conflict.
package contentstore

import (
	"context"
	"time"

	pagestore "github.com/dalemusser/stratacms/internal/app/store/pages"
	sectionstore "github.com/dalemusser/stratacms/internal/app/store/sections"
	"github.com/dalemusser/stratacms/internal/app/system/apperr"
	"github.com/dalemusser/stratacms/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Store is the content store.
type Store struct {
	db       *mongo.Database
	pages    *pagestore.Store
	sections *sectionstore.Store
	log      *zap.Logger

	timeout  time.Duration
	onChange []func(context.Context)
}

// Option configures a Store.
type Option func(*Store)

// WithStorageTimeout overrides the per-call storage timeout
// (default timeouts.Storage()).
func WithStorageTimeout(d time.Duration) Option {
	return func(s *Store) { s.timeout = d }
}

// WithOnChange registers a hook run after every successful write.
func WithOnChange(fn func(context.Context)) Option {
	return func(s *Store) { s.onChange = append(s.onChange, fn) }
}

// New creates a content store.
func New(db *mongo.Database, logger *zap.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		db:       db,
		pages:    pagestore.New(db),
		sections: sectionstore.New(db),
		log:      logger,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// OnChange registers a write hook after construction.
func (s *Store) OnChange(fn func(context.Context)) {
	s.onChange = append(s.onChange, fn)
}

func (s *Store) storageTimeout() time.Duration {
	if s.timeout > 0 {
		return s.timeout
	}
	return timeouts.Storage()
}

// call runs fn under the storage timeout and maps its error.
func (s *Store) call(ctx context.Context, op string, fn func(context.Context) error) error {
	cctx, cancel := timeouts.WithTimeout(ctx, s.storageTimeout(), s.log, op)
	defer cancel()
	return apperr.FromMongo(op, fn(cctx))
}

// retry is call with a single retry on ErrStorageUnavailable.
func (s *Store) retry(ctx context.Context, op string, fn func(context.Context) error) error {
	err := s.call(ctx, op, fn)
	if apperr.IsRetryable(err) && ctx.Err() == nil {
		s.log.Warn("storage call failed, retrying once",
			zap.String("op", op),
			zap.Error(err))
		err = s.call(ctx, op, fn)
	}
	return err
}

func (s *Store) changed(ctx context.Context) {
	for _, fn := range s.onChange {
		fn(ctx)
	}
}
