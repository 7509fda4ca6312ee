package translator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

// fakeProvider uppercases each segment and prefixes the target language.
func fakeProvider(t *testing.T, hits *int32, failFirst int32, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(hits, 1)
		if n <= failFirst {
			w.WriteHeader(status)
			return
		}
		assert.Equal(t, "test-key", r.Header.Get("X-Goog-Api-Key"))
		assert.Empty(t, r.URL.RawQuery, "the key must not travel in the URL")

		var req translateRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text", req.Format)

		var resp translateResponse
		for _, q := range req.Q {
			resp.Data.Translations = append(resp.Data.Translations, struct {
				TranslatedText string `json:"translatedText"`
			}{TranslatedText: req.Target + ":" + strings.ToUpper(q)})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func newClient(t *testing.T, url string) *Google {
	t.Helper()
	g, err := NewGoogle(context.Background(), GoogleConfig{APIKey: "test-key", Endpoint: url, RPS: 100}, nil)
	require.NoError(t, err)
	return g
}

func TestGoogle_Translate(t *testing.T) {
	var hits int32
	ts := fakeProvider(t, &hits, 0, 0)
	defer ts.Close()

	out, err := newClient(t, ts.URL).Translate(context.Background(), []string{"sensor", "", "coil"}, "en", "es")
	require.NoError(t, err)
	assert.Equal(t, []string{"es:SENSOR", "", "es:COIL"}, out)
	assert.EqualValues(t, 1, hits)
}

func TestGoogle_RetriesThenSuccess(t *testing.T) {
	var hits int32
	ts := fakeProvider(t, &hits, 2, http.StatusServiceUnavailable)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out, err := newClient(t, ts.URL).Translate(ctx, []string{"sensor"}, "en", "fr")
	require.NoError(t, err)
	assert.Equal(t, []string{"fr:SENSOR"}, out)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&hits), int32(3))
}

func TestGoogle_Unauthorized(t *testing.T) {
	var hits int32
	ts := fakeProvider(t, &hits, 10, http.StatusForbidden)
	defer ts.Close()

	_, err := newClient(t, ts.URL).Translate(context.Background(), []string{"sensor"}, "en", "fr")
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.EqualValues(t, 1, hits, "auth failures are not retried")
}

func TestGoogle_BadRequest(t *testing.T) {
	var hits int32
	ts := fakeProvider(t, &hits, 10, http.StatusBadRequest)
	defer ts.Close()

	_, err := newClient(t, ts.URL).Translate(context.Background(), []string{"sensor"}, "en", "xx")
	assert.True(t, errors.Is(err, ErrBadRequest))
}

func TestGoogle_Batches(t *testing.T) {
	var hits int32
	ts := fakeProvider(t, &hits, 0, 0)
	defer ts.Close()

	texts := make([]string, maxBatch+5)
	for i := range texts {
		texts[i] = "x"
	}
	out, err := newClient(t, ts.URL).Translate(context.Background(), texts, "en", "de")
	require.NoError(t, err)
	assert.Len(t, out, len(texts))
	assert.EqualValues(t, 2, hits)
}

func TestGoogle_AllEmptySkipsProvider(t *testing.T) {
	var hits int32
	ts := fakeProvider(t, &hits, 0, 0)
	defer ts.Close()

	out, err := newClient(t, ts.URL).Translate(context.Background(), []string{"", " "}, "en", "de")
	require.NoError(t, err)
	assert.Equal(t, []string{"", " "}, out)
	assert.EqualValues(t, 0, hits)
}

func TestNoop(t *testing.T) {
	_, err := Noop{}.Translate(context.Background(), []string{"x"}, "en", "es")
	assert.ErrorIs(t, err, ErrProviderDisabled)
}

func TestValidProvider(t *testing.T) {
	assert.True(t, ValidProvider(""))
	assert.True(t, ValidProvider("none"))
	assert.True(t, ValidProvider("google"))
	assert.False(t, ValidProvider("deepl"))
}

func TestRetryAfter(t *testing.T) {
	resp := &http.Response{Header: http.Header{}}
	assert.Zero(t, retryAfter(resp))
	resp.Header.Set("Retry-After", "2")
	assert.Equal(t, 2*time.Second, retryAfter(resp))
	resp.Header.Set("Retry-After", "soon")
	assert.Zero(t, retryAfter(resp))
}

func TestGoogle_TransportErrorDoesNotLeakKey(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	endpoint := ts.URL
	ts.Close()

	g, err := NewGoogle(context.Background(), GoogleConfig{APIKey: "secret-key-123", Endpoint: endpoint, RPS: 100}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err = g.Translate(ctx, []string{"coil"}, "en", "es")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "secret-key-123")
}

func TestGoogle_RetriesWaitOnLimiter(t *testing.T) {
	var hits int32
	ts := fakeProvider(t, &hits, 100, http.StatusTooManyRequests)
	defer ts.Close()

	g := newClient(t, ts.URL)
	// One token, then none for an hour: a retry cannot be admitted.
	g.rl = rate.NewLimiter(rate.Every(time.Hour), 1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := g.Translate(ctx, []string{"coil"}, "en", "es")
	require.Error(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits), "retries must go through the limiter")
}
