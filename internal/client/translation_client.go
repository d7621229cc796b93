package client

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"

	"github.com/weiawesome/amen-live/internal/config"
	"github.com/weiawesome/amen-live/pkg/log"
)

var (
	// ErrTranslationDisabled is returned when no translation endpoint is configured.
	ErrTranslationDisabled = errors.New("translation service not configured")
	// ErrEmptyTranslation is returned when the service answers without text.
	ErrEmptyTranslation = errors.New("translation service returned empty text")
)

// Translator translates text between two languages.
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

type translateRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
	APIKey string `json:"api_key,omitempty"`
}

type translateResponse struct {
	TranslatedText string `json:"translatedText"`
	Error          string `json:"error,omitempty"`
}

// TranslationClient calls a LibreTranslate-compatible HTTP endpoint
// (POST {url}/translate). Calls go through a circuit breaker, identical
// concurrent requests are collapsed and results are cached when a cache is
// set.
type TranslationClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	sf         singleflight.Group
	cache      TranslationCache
	cacheTTL   time.Duration
}

// NewTranslationClient creates a new translation client. cache may be nil.
func NewTranslationClient(cfg config.TranslationConfig, cache TranslationCache, cacheTTL time.Duration) *TranslationClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	openFor := cfg.BreakerOpenAfter
	if openFor <= 0 {
		openFor = 30 * time.Second
	}

	return &TranslationClient{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "translation",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     openFor,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= failures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				l := log.L()
				l.Warn().
					Str("component", name).
					Str("from", from.String()).
					Str("to", to.String()).
					Msg("circuit breaker state changed")
			},
		}),
		cache:    cache,
		cacheTTL: cacheTTL,
	}
}

// Enabled reports whether an endpoint is configured.
func (c *TranslationClient) Enabled() bool {
	return c.baseURL != ""
}

// Translate returns text translated from sourceLang to targetLang.
func (c *TranslationClient) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if !c.Enabled() {
		return "", ErrTranslationDisabled
	}

	key := cacheKey(text, sourceLang, targetLang)

	v, err, _ := c.sf.Do(key, func() (interface{}, error) {
		return c.translateWithCache(ctx, key, text, sourceLang, targetLang)
	})
	if err != nil {
		return "", err
	}

	translated, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("unexpected result type from singleflight")
	}
	return translated, nil
}

func (c *TranslationClient) translateWithCache(ctx context.Context, key, text, sourceLang, targetLang string) (string, error) {
	l := log.Ctx(ctx)

	if c.cache != nil {
		cached, err := c.cache.Get(ctx, key)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			l.Warn().Err(err).Msg("translation cache get error")
		}
	}

	v, err := c.breaker.Execute(func() (interface{}, error) {
		return c.call(ctx, text, sourceLang, targetLang)
	})
	if err != nil {
		return "", err
	}
	translated := v.(string)

	if c.cache != nil {
		go func() {
			cacheCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := c.cache.Set(cacheCtx, key, translated, c.cacheTTL); err != nil {
				l := log.L()
				l.Warn().Err(err).Msg("translation cache set error")
			}
		}()
	}

	return translated, nil
}

func (c *TranslationClient) call(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	body, err := json.Marshal(translateRequest{
		Q:      text,
		Source: sourceLang,
		Target: targetLang,
		Format: "text",
		APIKey: c.apiKey,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/translate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call translation service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("translation service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out translateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("translation service error: %s", out.Error)
	}
	if out.TranslatedText == "" {
		return "", ErrEmptyTranslation
	}
	return out.TranslatedText, nil
}

func cacheKey(text, sourceLang, targetLang string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%s:%s:%s", strings.ToLower(sourceLang), strings.ToLower(targetLang), hex.EncodeToString(sum[:16]))
}
