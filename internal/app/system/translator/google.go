package translator

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dalemusser/stratacms/internal/app/system/metrics"
	"go.uber.org/zap"
	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
)

// DefaultEndpoint is the Cloud Translation v2 REST endpoint.
const DefaultEndpoint = "https://translation.googleapis.com/language/translate/v2"

// cloudTranslationScope is requested when authenticating with Application
// Default Credentials.
const cloudTranslationScope = "https://www.googleapis.com/auth/cloud-translation"

// maxBatch is the provider's limit on segments per request.
const maxBatch = 128

const maxAttempts = 4

// apiKeyHeader carries the API key; Google accepts it in place of ?key=.
const apiKeyHeader = "X-Goog-Api-Key"

// GoogleConfig configures the Google client.
type GoogleConfig struct {
	// APIKey authenticates with a key. When empty, Application Default
	// Credentials are used.
	APIKey   string
	Endpoint string
	// RPS limits requests per second; <= 0 means 5.
	RPS int
	// HTTPClient overrides the transport (tests).
	HTTPClient *http.Client
}

// Google calls the Cloud Translation v2 API.
type Google struct {
	endpoint string
	key      string
	hc       *http.Client
	rl       *rate.Limiter
	log      *zap.Logger
}

// NewGoogle builds a client. Without an API key or HTTPClient it resolves
// Application Default Credentials, which may fail when none are present.
func NewGoogle(ctx context.Context, cfg GoogleConfig, logger *zap.Logger) (*Google, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 5
	}

	hc := cfg.HTTPClient
	switch {
	case hc != nil:
	case cfg.APIKey != "":
		hc = &http.Client{Timeout: 20 * time.Second}
	default:
		c, err := google.DefaultClient(ctx, cloudTranslationScope)
		if err != nil {
			return nil, fmt.Errorf("google translate credentials: %w", err)
		}
		c.Timeout = 20 * time.Second
		hc = c
	}

	return &Google{
		endpoint: cfg.Endpoint,
		key:      cfg.APIKey,
		hc:       hc,
		rl:       rate.NewLimiter(rate.Limit(cfg.RPS), cfg.RPS),
		log:      logger,
	}, nil
}

type translateRequest struct {
	Q      []string `json:"q"`
	Source string   `json:"source,omitempty"`
	Target string   `json:"target"`
	Format string   `json:"format"`
}

type translateResponse struct {
	Data struct {
		Translations []struct {
			TranslatedText string `json:"translatedText"`
		} `json:"translations"`
	} `json:"data"`
}

// Translate sends texts in batches of up to 128 segments. Empty strings
// are passed through without a provider call.
func (g *Google) Translate(ctx context.Context, texts []string, source, target string) ([]string, error) {
	out := make([]string, len(texts))

	// Only non-empty segments go to the provider.
	var idx []int
	var q []string
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			out[i] = t
			continue
		}
		idx = append(idx, i)
		q = append(q, t)
	}

	for start := 0; start < len(q); start += maxBatch {
		end := min(start+maxBatch, len(q))
		res, err := g.call(ctx, translateRequest{
			Q:      q[start:end],
			Source: source,
			Target: target,
			Format: "text",
		})
		if err != nil {
			metrics.ObserveTranslation("error")
			return nil, err
		}
		if len(res) != end-start {
			metrics.ObserveTranslation("error")
			return nil, fmt.Errorf("translator: got %d translations for %d segments", len(res), end-start)
		}
		for j, t := range res {
			out[idx[start+j]] = t
		}
		metrics.ObserveTranslation("ok")
	}
	return out, nil
}

// call POSTs one batch, retrying on 429 and transient 5xx and honoring
// Retry-After when provided. Every attempt, retries included, waits on the
// client-side limiter. The API key travels in a header so that transport
// errors, which quote the URL, never carry it.
func (g *Google) call(ctx context.Context, body translateRequest) ([]string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		if err := g.rl.Wait(ctx); err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		if g.key != "" {
			req.Header.Set(apiKeyHeader, g.key)
		}

		resp, err := g.hc.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			if i < maxAttempts-1 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			return nil, g.giveUp(ctx, lastErr)
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			var tr translateResponse
			err := json.NewDecoder(resp.Body).Decode(&tr)
			resp.Body.Close()
			if err != nil {
				return nil, fmt.Errorf("translator: decode response: %w", err)
			}
			out := make([]string, len(tr.Data.Translations))
			for j, t := range tr.Data.Translations {
				// format=text still escapes a few entities.
				out[j] = html.UnescapeString(t.TranslatedText)
			}
			return out, nil

		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			resp.Body.Close()
			return nil, ErrUnauthorized

		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("translator: remote %d", resp.StatusCode)
			g.log.Warn("translation provider busy, retrying",
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", i+1),
				zap.Duration("wait", wait))
			if i < maxAttempts-1 && sleepCtx(ctx, wait) {
				continue
			}
			return nil, g.giveUp(ctx, lastErr)

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return nil, fmt.Errorf("%w: status %d: %s", ErrBadRequest, resp.StatusCode, strings.TrimSpace(string(b)))
		}
	}
	return nil, lastErr
}

func (g *Google) giveUp(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// sleepCtx waits for d or returns false early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses a Retry-After header in seconds or HTTP-date form.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff doubles from 200ms per attempt with up to +50% jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	return base + time.Duration(0.5*f*float64(base))
}
