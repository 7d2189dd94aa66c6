package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coocood/freecache"
	"github.com/go-resty/resty/v2"
	"github.com/gofiber/fiber/v2/log"
)

const (
	DefaultBaseURL = "https://translate.googleapis.com"
	DefaultSource  = "auto"

	defaultTimeout    = 5 * time.Second
	defaultCacheSize  = 4 * 1024 * 1024 // 4MB
	translationExpiry = 24 * 60 * 60    // 1 day
)

var (
	ErrEmptyText     = errors.New("translate: empty text")
	ErrEmptyResponse = errors.New("translate: no translation in response")
)

// Google translates through the public gtx endpoint of Google Translate.
// Translations are cached in memory.
type Google struct {
	client *resty.Client
	source string
	cache  *freecache.Cache
}

type Option func(*Google)

func WithBaseURL(baseURL string) Option {
	return func(g *Google) {
		if baseURL != "" {
			g.client.SetBaseURL(baseURL)
		}
	}
}

func WithSource(source string) Option {
	return func(g *Google) {
		if source != "" {
			g.source = source
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(g *Google) {
		if timeout > 0 {
			g.client.SetTimeout(timeout)
		}
	}
}

func WithCache(cache *freecache.Cache) Option {
	return func(g *Google) {
		if cache != nil {
			g.cache = cache
		}
	}
}

func New(opts ...Option) *Google {
	g := &Google{
		client: resty.New().
			SetBaseURL(DefaultBaseURL).
			SetTimeout(defaultTimeout),
		source: DefaultSource,
		cache:  freecache.NewCache(defaultCacheSize),
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

func (g *Google) Translate(ctx context.Context, text, target string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyText
	}

	key := []byte(g.source + ":" + target + ":" + text)
	if cached, err := g.cache.Get(key); err == nil {
		return string(cached), nil
	}

	resp, err := g.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"client": "gtx",
			"sl":     g.source,
			"tl":     target,
			"dt":     "t",
			"q":      text,
		}).
		Get("/translate_a/single")
	if err != nil {
		return "", err
	}

	if resp.IsError() {
		return "", fmt.Errorf("translate: unexpected status %s", resp.Status())
	}

	translated, err := parseResponse(resp.Body())
	if err != nil {
		return "", err
	}

	if err := g.cache.Set(key, []byte(translated), translationExpiry); err != nil {
		log.Warnf("Failed to cache translation of %q: %v", text, err)
	}

	return translated, nil
}

// parseResponse joins the translated sentence chunks of a gtx response:
// [[["chunk","source",...],...],null,"en",...]
func parseResponse(body []byte) (string, error) {
	var payload []json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("translate: malformed response: %w", err)
	}
	if len(payload) == 0 {
		return "", ErrEmptyResponse
	}

	var sentences [][]any
	if err := json.Unmarshal(payload[0], &sentences); err != nil {
		return "", fmt.Errorf("translate: malformed sentences: %w", err)
	}

	var b strings.Builder
	for _, sentence := range sentences {
		if len(sentence) == 0 {
			continue
		}
		if chunk, ok := sentence[0].(string); ok {
			b.WriteString(chunk)
		}
	}

	if b.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return b.String(), nil
}

// Nop leaves scoring to the original titles.
type Nop struct{}

func (Nop) Translate(context.Context, string, string) (string, error) {
	return "", nil
}
