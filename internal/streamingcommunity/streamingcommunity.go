// Package streamingcommunity is a client for the StreamingCommunity catalog:
// title search, detail pages with their episode lists and the player links
// of a single episode.
package streamingcommunity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/dbytex91/scstream/internal/model"
)

const (
	DefaultDomain  = "streamingcommunity.prof"
	defaultTimeout = 10 * time.Second
	userAgent      = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"
)

var (
	ErrNotFound    = errors.New("streamingcommunity: title not found")
	ErrInvalidPage = errors.New("streamingcommunity: page payload missing")
	ErrNoIframe    = errors.New("streamingcommunity: player iframe not found")
	ErrNoPlaylist  = errors.New("streamingcommunity: m3u8 playlist not found")

	ErrMissingEpisodeParam = errors.New("streamingcommunity: episode url has no e parameter")
	ErrMissingFilmCode     = errors.New("streamingcommunity: episode url has no film code")
)

type StreamingCommunity struct {
	client  *resty.Client
	baseURL string
}

type Option func(*StreamingCommunity)

// WithBaseURL replaces the https://<domain> origin.
func WithBaseURL(baseURL string) Option {
	return func(s *StreamingCommunity) {
		if baseURL != "" {
			s.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(s *StreamingCommunity) {
		if timeout > 0 {
			s.client.SetTimeout(timeout)
		}
	}
}

func New(domain string, opts ...Option) *StreamingCommunity {
	if domain == "" {
		domain = DefaultDomain
	}

	s := &StreamingCommunity{
		client: resty.New().
			SetHeader("User-Agent", userAgent).
			SetTimeout(defaultTimeout),
		baseURL: "https://" + strings.ToLower(domain),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.client.SetBaseURL(s.baseURL)
	return s
}

type searchResponse struct {
	Data []searchResult `json:"data"`
}

type searchResult struct {
	ID           int64  `json:"id"`
	Slug         string `json:"slug"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	LastAirDate  string `json:"last_air_date"`
	FirstAirDate string `json:"first_air_date"`
}

// Search returns the catalog entries for a free-text query in ranking order.
func (s *StreamingCommunity) Search(ctx context.Context, query string) ([]model.Candidate, error) {
	result := &searchResponse{}
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetQueryParam("q", query).
		SetResult(result).
		Get("/api/search")
	if err != nil {
		log.Errorf("Failed to search for %q: %v", query, err)
		return nil, err
	}

	if resp.IsError() {
		log.Errorf("Failed to search for %q: %s", query, resp.Status())
		return nil, fmt.Errorf("streamingcommunity: search returned %s", resp.Status())
	}

	candidates := make([]model.Candidate, 0, len(result.Data))
	for _, r := range result.Data {
		candidates = append(candidates, model.Candidate{
			ID:           r.ID,
			Slug:         r.Slug,
			Name:         r.Name,
			URL:          fmt.Sprintf("%s/titles/%d-%s", s.baseURL, r.ID, r.Slug),
			Type:         r.Type,
			LastAirDate:  r.LastAirDate,
			FirstAirDate: r.FirstAirDate,
		})
	}

	return candidates, nil
}

type inertiaPage struct {
	Version string `json:"version"`
	Props   struct {
		Title        *pageTitle  `json:"title"`
		LoadedSeason *pageSeason `json:"loadedSeason"`
	} `json:"props"`
}

type pageTitle struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Slug    string `json:"slug"`
	Type    string `json:"type"`
	IMDBID  string `json:"imdb_id"`
	TMDBID  int64  `json:"tmdb_id"`
	Seasons []struct {
		Number int `json:"number"`
	} `json:"seasons"`
}

type pageSeason struct {
	Number   int           `json:"number"`
	Episodes []pageEpisode `json:"episodes"`
}

type pageEpisode struct {
	ID     int64  `json:"id"`
	Number int    `json:"number"`
	Name   string `json:"name"`
}

// Load fetches the detail record of the title at /titles/{slug}. Series come
// with every episode of every season.
func (s *StreamingCommunity) Load(ctx context.Context, slug string) (*model.Title, error) {
	page, err := s.titlePage(ctx, slug)
	if err != nil {
		return nil, err
	}

	t := page.Props.Title
	title := &model.Title{
		ID:          t.ID,
		Name:        t.Name,
		Slug:        t.Slug,
		Type:        t.Type,
		IMDBID:      t.IMDBID,
		TMDBID:      t.TMDBID,
		EpisodeList: []model.Episode{},
	}

	if !title.IsTV() {
		return title, nil
	}

	for _, season := range t.Seasons {
		loaded := page.Props.LoadedSeason
		if loaded == nil || loaded.Number != season.Number {
			loaded, err = s.season(ctx, t, season.Number, page.Version)
			if err != nil {
				log.Warnf("Failed to load season %d of %s: %v", season.Number, t.Name, err)
				continue
			}
		}

		for _, ep := range loaded.Episodes {
			title.EpisodeList = append(title.EpisodeList, model.Episode{
				ID:      ep.ID,
				Season:  season.Number,
				Episode: ep.Number,
				Name:    ep.Name,
				URL:     fmt.Sprintf("%s/watch/%d?e=%d", s.baseURL, t.ID, ep.ID),
			})
		}
	}

	return title, nil
}

// ExternalID returns the lower-cased IMDb id of the title at slug.
func (s *StreamingCommunity) ExternalID(ctx context.Context, slug string) (string, error) {
	page, err := s.titlePage(ctx, slug)
	if err != nil {
		return "", err
	}

	return strings.ToLower(page.Props.Title.IMDBID), nil
}

func (s *StreamingCommunity) titlePage(ctx context.Context, slug string) (*inertiaPage, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		Get("/titles/" + slug)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode() == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, slug)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("streamingcommunity: loading %s returned %s", slug, resp.Status())
	}

	page, err := parsePage(resp.Body())
	if err != nil {
		return nil, err
	}
	if page.Props.Title == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, slug)
	}

	return page, nil
}

func (s *StreamingCommunity) season(ctx context.Context, t *pageTitle, number int, version string) (*pageSeason, error) {
	page := &inertiaPage{}
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("X-Inertia", "true").
		SetHeader("X-Inertia-Version", version).
		SetHeader("Accept", "application/json").
		SetResult(page).
		Get(fmt.Sprintf("/titles/%d-%s/stagione-%d", t.ID, t.Slug, number))
	if err != nil {
		return nil, err
	}

	if resp.IsError() {
		return nil, fmt.Errorf("streamingcommunity: season %d returned %s", number, resp.Status())
	}

	if page.Props.LoadedSeason == nil {
		return nil, ErrInvalidPage
	}

	return page.Props.LoadedSeason, nil
}

// parsePage decodes the Inertia payload stored in the data-page attribute of
// the #app element.
func parsePage(html []byte) (*inertiaPage, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, err
	}

	raw, ok := doc.Find("#app").First().Attr("data-page")
	if !ok || raw == "" {
		return nil, ErrInvalidPage
	}

	page := &inertiaPage{}
	if err := json.Unmarshal([]byte(raw), page); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPage, err)
	}

	return page, nil
}

// PlaybackCode turns an episode URL of the form /watch/{film}?e={episode}
// into the "{film}?e={episode}" code accepted by Links.
func PlaybackCode(episodeURL string) (string, error) {
	u, err := url.Parse(episodeURL)
	if err != nil {
		return "", err
	}

	episodeID := u.Query().Get("e")
	if episodeID == "" {
		return "", ErrMissingEpisodeParam
	}

	parts := strings.Split(u.Path, "/")
	if len(parts) < 3 || parts[2] == "" {
		return "", ErrMissingFilmCode
	}

	return parts[2] + "?e=" + episodeID, nil
}

// splitCode parses a playback code into the film id and the optional
// episode id.
func splitCode(code string) (string, string, error) {
	film, query, _ := strings.Cut(code, "?")
	if film == "" {
		return "", "", ErrMissingFilmCode
	}
	if _, err := strconv.ParseInt(film, 10, 64); err != nil {
		return "", "", fmt.Errorf("%w: %q", ErrMissingFilmCode, film)
	}

	values, err := url.ParseQuery(query)
	if err != nil {
		return "", "", err
	}

	return film, values.Get("e"), nil
}
