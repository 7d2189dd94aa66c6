package tmdb

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/dbytex91/scstream/internal/model"
)

const (
	DefaultBaseURL  = "https://api.themoviedb.org/3"
	DefaultLanguage = "it-IT"
	defaultTimeout  = 5 * time.Second
)

var ErrNotFound = errors.New("tmdb: no title found for external id")

type TMDB struct {
	client   *resty.Client
	language string
}

type Option func(*TMDB)

func WithBaseURL(baseURL string) Option {
	return func(t *TMDB) {
		if baseURL != "" {
			t.client.SetBaseURL(baseURL)
		}
	}
}

// WithLanguage sets the language of the localized title.
func WithLanguage(language string) Option {
	return func(t *TMDB) {
		if language != "" {
			t.language = language
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(t *TMDB) {
		if timeout > 0 {
			t.client.SetTimeout(timeout)
		}
	}
}

func New(apiKey string, opts ...Option) *TMDB {
	client := resty.New().
		SetBaseURL(DefaultBaseURL).
		SetHeader("Accept", "application/json").
		SetQueryParam("api_key", apiKey).
		SetTimeout(defaultTimeout).
		SetError(ErrorResponse{})

	t := &TMDB{
		client:   client,
		language: DefaultLanguage,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

type findResponse struct {
	TVResults    []findResult `json:"tv_results"`
	MovieResults []findResult `json:"movie_results"`
}

type findResult struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	OriginalName  string `json:"original_name"`
	FirstAirDate  string `json:"first_air_date"`
	Title         string `json:"title"`
	OriginalTitle string `json:"original_title"`
	ReleaseDate   string `json:"release_date"`
}

type detailsResponse struct {
	Name string `json:"name"`
}

type alternativeTitlesResponse struct {
	Results []struct {
		Title string `json:"title"`
	} `json:"results"`
}

// CanonicalTitle resolves an IMDb id to the canonical metadata of the work.
// Series are preferred over movies when both are found.
func (t *TMDB) CanonicalTitle(ctx context.Context, imdbID string) (*model.CanonicalTitle, error) {
	result := &findResponse{}
	resp, err := t.client.R().
		SetContext(ctx).
		SetQueryParam("external_source", "imdb_id").
		SetResult(result).
		Get("/find/" + imdbID)
	if err != nil {
		log.Errorf("Failed to find %s on TMDB: %v", imdbID, err)
		return nil, err
	}

	if resp.IsError() {
		err = responseError(resp)
		log.Errorf("Failed to find %s on TMDB: %v", imdbID, err)
		return nil, err
	}

	log.Debugf("TMDB find response for %s: %d tv, %d movie results", imdbID, len(result.TVResults), len(result.MovieResults))

	switch {
	case len(result.TVResults) > 0:
		return t.seriesTitle(ctx, imdbID, result.TVResults[0]), nil
	case len(result.MovieResults) > 0:
		movie := result.MovieResults[0]
		return &model.CanonicalTitle{
			Title:         strings.ToLower(movie.Title),
			OriginalTitle: strings.ToLower(movie.OriginalTitle),
			Year:          leadingYear(movie.ReleaseDate),
			Type:          model.ContentTypeMovie,
			ExternalID:    imdbID,
			ProviderID:    movie.ID,
		}, nil
	default:
		return nil, ErrNotFound
	}
}

func (t *TMDB) seriesTitle(ctx context.Context, imdbID string, tv findResult) *model.CanonicalTitle {
	log.Debugf("Selected TMDB id %d for %s", tv.ID, imdbID)

	title, err := t.localizedName(ctx, tv.ID)
	if err != nil || title == "" {
		log.Warnf("Unable to get localized details for TMDB id %d, using %q: %v", tv.ID, tv.Name, err)
		title = tv.Name
	}

	alternatives, err := t.alternativeTitles(ctx, tv.ID)
	if err != nil {
		log.Warnf("Unable to get alternative titles for TMDB id %d: %v", tv.ID, err)
	}

	return &model.CanonicalTitle{
		Title:             strings.ToLower(title),
		OriginalTitle:     strings.ToLower(tv.OriginalName),
		AlternativeTitles: alternatives,
		Year:              leadingYear(tv.FirstAirDate),
		Type:              model.ContentTypeTV,
		ExternalID:        imdbID,
		ProviderID:        tv.ID,
	}
}

func (t *TMDB) localizedName(ctx context.Context, id int64) (string, error) {
	result := &detailsResponse{}
	resp, err := t.client.R().
		SetContext(ctx).
		SetQueryParam("language", t.language).
		SetResult(result).
		Get("/tv/" + strconv.FormatInt(id, 10))
	if err != nil {
		return "", err
	}

	if resp.IsError() {
		return "", responseError(resp)
	}

	return result.Name, nil
}

func (t *TMDB) alternativeTitles(ctx context.Context, id int64) ([]string, error) {
	result := &alternativeTitlesResponse{}
	resp, err := t.client.R().
		SetContext(ctx).
		SetResult(result).
		Get(fmt.Sprintf("/tv/%d/alternative_titles", id))
	if err != nil {
		return nil, err
	}

	if resp.IsError() {
		return nil, responseError(resp)
	}

	titles := make([]string, 0, len(result.Results))
	for _, r := range result.Results {
		title := strings.ToLower(strings.TrimSpace(r.Title))
		if title != "" {
			titles = append(titles, title)
		}
	}

	return titles, nil
}

func leadingYear(date string) string {
	year, _, _ := strings.Cut(date, "-")
	return year
}

// responseError returns the decoded TMDB error body, or a generic status
// error when the body was not JSON.
func responseError(resp *resty.Response) error {
	if err, ok := resp.Error().(error); ok && err != nil {
		return err
	}
	return fmt.Errorf("tmdb: unexpected status %s", resp.Status())
}

type ErrorResponse struct {
	StatusCode    int    `json:"status_code"`
	StatusMessage string `json:"status_message"`
}

func (er ErrorResponse) Error() string {
	return fmt.Sprintf("tmdb: [%d] %s", er.StatusCode, er.StatusMessage)
}
