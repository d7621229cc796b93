package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/amen-live/internal/config"
)

type memoryCache struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string]string)}
}

func (m *memoryCache) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", ErrCacheMiss
	}
	return v, nil
}

func (m *memoryCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memoryCache) Close() error { return nil }

func (m *memoryCache) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

func newTranslateServer(t *testing.T, hits *int32, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		assert.Equal(t, "/translate", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req translateRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text", req.Format)
		assert.Equal(t, "secret", req.APIKey)

		if status != http.StatusOK {
			w.WriteHeader(status)
			w.Write([]byte("unavailable"))
			return
		}
		translations := map[string]string{"Hello": "Olá", "Peace": "Paz"}
		json.NewEncoder(w).Encode(translateResponse{TranslatedText: translations[req.Q]})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestTranslate_Success(t *testing.T) {
	var hits int32
	srv := newTranslateServer(t, &hits, http.StatusOK)
	c := NewTranslationClient(config.TranslationConfig{URL: srv.URL + "/", APIKey: "secret"}, nil, 0)

	out, err := c.Translate(context.Background(), "Hello", "en", "pt")

	require.NoError(t, err)
	assert.Equal(t, "Olá", out)
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
}

func TestTranslate_Disabled(t *testing.T) {
	c := NewTranslationClient(config.TranslationConfig{}, nil, 0)

	_, err := c.Translate(context.Background(), "Hello", "en", "pt")

	assert.ErrorIs(t, err, ErrTranslationDisabled)
	assert.False(t, c.Enabled())
}

func TestTranslate_EmptyResultIsError(t *testing.T) {
	var hits int32
	srv := newTranslateServer(t, &hits, http.StatusOK)
	c := NewTranslationClient(config.TranslationConfig{URL: srv.URL, APIKey: "secret"}, nil, 0)

	_, err := c.Translate(context.Background(), "unknown words", "en", "pt")

	assert.ErrorIs(t, err, ErrEmptyTranslation)
}

func TestTranslate_BreakerOpensAfterFailures(t *testing.T) {
	var hits int32
	srv := newTranslateServer(t, &hits, http.StatusServiceUnavailable)
	c := NewTranslationClient(config.TranslationConfig{
		URL:              srv.URL,
		APIKey:           "secret",
		BreakerFailures:  2,
		BreakerOpenAfter: time.Minute,
	}, nil, 0)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := c.Translate(ctx, "Hello", "en", "pt")
		require.Error(t, err)
	}
	_, err := c.Translate(ctx, "Hello", "en", "pt")

	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.EqualValues(t, 2, atomic.LoadInt32(&hits))
}

func TestTranslate_CachesResults(t *testing.T) {
	var hits int32
	srv := newTranslateServer(t, &hits, http.StatusOK)
	cache := newMemoryCache()
	c := NewTranslationClient(config.TranslationConfig{URL: srv.URL, APIKey: "secret"}, cache, time.Hour)
	ctx := context.Background()

	out, err := c.Translate(ctx, "Peace", "en", "pt")
	require.NoError(t, err)
	assert.Equal(t, "Paz", out)
	require.Eventually(t, func() bool { return cache.size() == 1 }, time.Second, 5*time.Millisecond)

	out, err = c.Translate(ctx, "Peace", "EN", "PT")
	require.NoError(t, err)
	assert.Equal(t, "Paz", out)
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
}

func TestCacheKey_DependsOnLanguagesAndText(t *testing.T) {
	assert.Equal(t, cacheKey("Hello", "en", "pt"), cacheKey("Hello", "EN", "pt"))
	assert.NotEqual(t, cacheKey("Hello", "en", "pt"), cacheKey("Hello", "pt", "en"))
	assert.NotEqual(t, cacheKey("Hello", "en", "pt"), cacheKey("Hello!", "en", "pt"))
}
