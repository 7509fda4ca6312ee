// Package translator talks to machine translation providers.
package translator

import (
	"context"
	"errors"
)

// Provider names accepted by the translate_provider setting.
const (
	ProviderNone   = "none"
	ProviderGoogle = "google"
)

var (
	// ErrProviderDisabled is returned when no provider is configured.
	ErrProviderDisabled = errors.New("translator: provider disabled")
	// ErrUnauthorized is returned when the provider rejects the credentials.
	ErrUnauthorized = errors.New("translator: unauthorized")
	// ErrBadRequest is returned for requests the provider will never accept,
	// such as an unsupported language pair.
	ErrBadRequest = errors.New("translator: bad request")
)

// Translator translates a batch of texts from source to target. The result
// has one entry per input, in order. An empty source asks the provider to
// detect it.
type Translator interface {
	Translate(ctx context.Context, texts []string, source, target string) ([]string, error)
}

// Noop is the translator used when translation is disabled.
type Noop struct{}

// Translate always fails with ErrProviderDisabled.
func (Noop) Translate(context.Context, []string, string, string) ([]string, error) {
	return nil, ErrProviderDisabled
}

// ValidProvider reports whether name is a known provider.
func ValidProvider(name string) bool {
	switch name {
	case "", ProviderNone, ProviderGoogle:
		return true
	}
	return false
}
