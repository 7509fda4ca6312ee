package storeutil

import (
	"strconv"

	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	// DefaultLimit is the page size used when none is requested.
	DefaultLimit int64 = 20
	// MaxLimit caps client-requested page sizes.
	MaxLimit int64 = 200
)

// Paginate returns *options.FindOptions with skip/limit given a 1-based page.
func Paginate(limit, page int64) *options.FindOptions {
	limit = ClampLimit(limit)
	if page <= 0 {
		page = 1
	}
	sk := (page - 1) * limit
	return options.Find().SetLimit(limit).SetSkip(sk)
}

// ClampLimit applies the default and maximum page size.
func ClampLimit(limit int64) int64 {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// ParseInt64 parses a query value, returning def when empty or malformed.
func ParseInt64(s string, def int64) int64 {
	if s == "" {
		return def
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return def
	}
	return n
}
