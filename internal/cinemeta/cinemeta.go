package cinemeta

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/dbytex91/scstream/internal/model"
)

const (
	DefaultBaseURL = "https://v3-cinemeta.strem.io"
	defaultTimeout = 5 * time.Second
)

var ErrNotFound = errors.New("cinemeta: meta not found")

// CineMeta resolves canonical titles from the Stremio Cinemeta addon. It has
// no localized or alternative titles, so it only backs deployments without a
// TMDB key.
type CineMeta struct {
	client *resty.Client
}

type MetaResponse struct {
	Meta *MetaInfo `json:"meta"`
}

type MetaInfo struct {
	Name        string `json:"name"`
	Year        string `json:"year"`
	ReleaseInfo string `json:"releaseInfo"`
	IMDBID      string `json:"imdb_id"`
}

type Option func(*CineMeta)

func WithBaseURL(baseURL string) Option {
	return func(c *CineMeta) {
		if baseURL != "" {
			c.client.SetBaseURL(baseURL)
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *CineMeta) {
		if timeout > 0 {
			c.client.SetTimeout(timeout)
		}
	}
}

func New(opts ...Option) *CineMeta {
	c := &CineMeta{
		client: resty.New().
			SetBaseURL(DefaultBaseURL).
			SetTimeout(defaultTimeout),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// CanonicalTitle looks the id up as a series first and as a movie second.
func (c *CineMeta) CanonicalTitle(ctx context.Context, imdbID string) (*model.CanonicalTitle, error) {
	meta, err := c.getMeta(ctx, "series", imdbID)
	if err == nil {
		return toCanonical(meta, imdbID, model.ContentTypeTV), nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	meta, err = c.getMeta(ctx, "movie", imdbID)
	if err != nil {
		return nil, err
	}

	return toCanonical(meta, imdbID, model.ContentTypeMovie), nil
}

func (c *CineMeta) getMeta(ctx context.Context, kind, id string) (*MetaInfo, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&MetaResponse{}).
		Get("/meta/" + kind + "/" + id + ".json")
	if err != nil {
		return nil, err
	}

	if resp.IsError() {
		return nil, fmt.Errorf("cinemeta: unexpected status %s", resp.Status())
	}

	result := resp.Result().(*MetaResponse)
	if result.Meta == nil || result.Meta.Name == "" {
		return nil, ErrNotFound
	}

	return result.Meta, nil
}

func toCanonical(meta *MetaInfo, imdbID string, kind model.ContentType) *model.CanonicalTitle {
	name := strings.ToLower(meta.Name)

	return &model.CanonicalTitle{
		Title:         name,
		OriginalTitle: name,
		Year:          firstYear(meta),
		Type:          kind,
		ExternalID:    imdbID,
	}
}

// firstYear returns the start of a year range such as "2008–2013" or "2019-".
func firstYear(meta *MetaInfo) string {
	raw := meta.ReleaseInfo
	if raw == "" {
		raw = meta.Year
	}

	tokens := strings.FieldsFunc(raw, func(r rune) bool {
		return r == '–' || r == '-'
	})
	if len(tokens) == 0 {
		return ""
	}

	return strings.TrimSpace(tokens[0])
}
