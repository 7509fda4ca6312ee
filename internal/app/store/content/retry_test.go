package contentstore

import (
	"context"
	"errors"
	"testing"

	"github.com/dalemusser/stratacms/internal/app/system/apperr"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// counting returns fn that fails with errs in turn, then succeeds, and a
// pointer to the number of calls.
func counting(errs ...error) (func(context.Context) error, *int) {
	n := 0
	return func(context.Context) error {
		n++
		if n <= len(errs) {
			return errs[n-1]
		}
		return nil
	}, &n
}

func TestRetry_AtMostOnceOnUnavailable(t *testing.T) {
	s := &Store{log: zap.NewNop()}
	ctx := context.Background()
	transient := errors.New("connection reset by peer")

	tests := []struct {
		name      string
		errs      []error
		wantCalls int
		wantKind  error
	}{
		{"success", nil, 1, nil},
		{"transient then success", []error{transient}, 2, nil},
		{"persistent failure", []error{transient, transient, transient}, 2, apperr.ErrStorageUnavailable},
		{"not found is not retried", []error{mongo.ErrNoDocuments}, 1, apperr.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn, calls := counting(tt.errs...)
			err := s.retry(ctx, "Test", fn)
			if *calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", *calls, tt.wantCalls)
			}
			if tt.wantKind == nil && err != nil {
				t.Errorf("err = %v, want nil", err)
			}
			if tt.wantKind != nil && !errors.Is(err, tt.wantKind) {
				t.Errorf("err = %v, want %v", err, tt.wantKind)
			}
		})
	}
}

func TestCall_InsertsAreNotRetried(t *testing.T) {
	s := &Store{log: zap.NewNop()}
	fn, calls := counting(errors.New("connection reset by peer"))

	err := s.call(context.Background(), "CreatePage", fn)
	if !errors.Is(err, apperr.ErrStorageUnavailable) {
		t.Errorf("err = %v, want StorageUnavailable", err)
	}
	if *calls != 1 {
		t.Errorf("calls = %d, want 1", *calls)
	}
}

func TestRetry_NotAfterCancellation(t *testing.T) {
	s := &Store{log: zap.NewNop()}
	ctx, cancel := context.WithCancel(context.Background())
	fn, calls := counting(errors.New("connection reset by peer"))
	wrapped := func(c context.Context) error {
		cancel()
		return fn(c)
	}

	if err := s.retry(ctx, "Test", wrapped); err == nil {
		t.Fatal("expected an error")
	}
	if *calls != 1 {
		t.Errorf("calls = %d, want 1 once the caller has gone", *calls)
	}
}
