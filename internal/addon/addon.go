package addon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/coocood/freecache"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/dbytex91/scstream/internal/cinemeta"
	"github.com/dbytex91/scstream/internal/matcher"
	"github.com/dbytex91/scstream/internal/model"
	"github.com/dbytex91/scstream/internal/streamingcommunity"
)

const (
	cacheSize            = 32 * 1024 * 1024 // 32MB
	canonicalTitleExpiry = 6 * 60 * 60      // 6 hours
	canonicalKeyPrefix   = "canonical:"
)

var (
	errTitleNotFound   = fiber.NewError(fiber.StatusNotFound, "Title not found or not a TV series")
	errTitleUnknown    = fiber.NewError(fiber.StatusNotFound, "Title not found")
	errSearchFailed    = fiber.NewError(fiber.StatusInternalServerError, "Error while searching the catalog")
	errNoMatch         = fiber.NewError(fiber.StatusNotFound, "No match found")
	errDetailsNotFound = fiber.NewError(fiber.StatusNotFound, "TV series details not found")
	errPlaylistMissing = fiber.NewError(fiber.StatusNotFound, "M3U8 playlist not found")
)

// MetadataProvider resolves an IMDb id to the canonical title of the work.
type MetadataProvider interface {
	CanonicalTitle(ctx context.Context, imdbID string) (*model.CanonicalTitle, error)
}

// Catalog is the streaming catalog the canonical titles are matched against.
type Catalog interface {
	matcher.IDLookup
	Search(ctx context.Context, query string) ([]model.Candidate, error)
	Load(ctx context.Context, slug string) (*model.Title, error)
	Links(ctx context.Context, code string) (iframe string, playlist string, err error)
}

// CatalogFactory builds a catalog client for a user supplied domain.
type CatalogFactory func(domain string) Catalog

// Addon implements a Stremio addon and the JSON lookup endpoints on top of
// the title matcher.
type Addon struct {
	id          string
	name        string
	version     string
	description string

	metadata   MetadataProvider
	catalog    Catalog
	newCatalog CatalogFactory
	translator matcher.Translator

	targetLanguage    string
	lookupConcurrency int

	cache *freecache.Cache
}

func New(opts ...Option) *Addon {
	addon := &Addon{
		description: "Streams TV series from StreamingCommunity, matched by IMDb id",
	}

	for _, opt := range opts {
		opt(addon)
	}

	if addon.metadata == nil {
		log.Warn("No metadata provider configured, falling back to Cinemeta")
		addon.metadata = cinemeta.New()
	}
	if addon.newCatalog == nil {
		addon.newCatalog = func(domain string) Catalog {
			return streamingcommunity.New(domain)
		}
	}
	if addon.catalog == nil {
		addon.catalog = addon.newCatalog(streamingcommunity.DefaultDomain)
	}
	if addon.cache == nil {
		addon.cache = freecache.NewCache(cacheSize)
	}

	return addon
}

func (add *Addon) HandleGetManifest(c *fiber.Ctx) error {
	if _, err := add.catalogFor(c); err != nil {
		log.WithContext(c.Context()).Warnf("Serving manifest with invalid user data: %v", err)
	}

	manifest := &Manifest{
		ID:          add.id,
		Name:        add.name,
		Description: add.description,
		Version:     add.version,
		ResourceItems: []ResourceItem{
			{
				Name:       ResourceStream,
				Types:      []ContentType{ContentTypeSeries},
				IDPrefixes: []string{"tt"},
			},
		},
		Types:      []ContentType{ContentTypeSeries},
		Catalogs:   []CatalogItem{},
		IDPrefixes: []string{"tt"},
		BehaviorHints: &BehaviorHints{
			Configurable: true,
		},
	}

	return c.JSON(manifest)
}

// HandleGetStreams answers Stremio stream requests for series episodes. A
// failed resolution is an empty stream list, not an error.
func (add *Addon) HandleGetStreams(c *fiber.Ctx) error {
	logger := log.WithContext(c.Context())
	empty := GetStreamsResponse{Streams: []StreamItem{}}

	catalog, err := add.catalogFor(c)
	if err != nil {
		logger.Errorf("Failed to parse user data: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid configuration data.",
		})
	}

	if ContentType(c.Params("type")) != ContentTypeSeries {
		return c.JSON(empty)
	}

	rawID, err := url.PathUnescape(c.Params("id"))
	if err != nil {
		logger.Errorf("Invalid stremio id %s: %v", c.Params("id"), err)
		return c.JSON(empty)
	}

	imdbID, season, episode, err := parseEpisodeID(rawID)
	if err != nil {
		logger.Errorf("Invalid stremio id %s: %v", rawID, err)
		return c.JSON(empty)
	}

	ep, title, err := add.resolveEpisode(c.UserContext(), catalog, imdbID, season, episode)
	if err != nil {
		logger.Warnf("No stream for %s: %v", rawID, err)
		return c.JSON(empty)
	}

	c.Response().Header.Add("Cache-control", "max-age=1800, public, stale-while-revalidate=604800, stale-if-error=604800")
	return c.JSON(GetStreamsResponse{
		Streams: []StreamItem{{
			Name:  add.name,
			Title: formatStreamTitle(title, ep),
			URL:   ep.M3U8Playlist,
			BehaviorHints: &StreamBehaviorHints{
				BingeGroup:  fmt.Sprintf("%s-%d", add.id, title.ID),
				NotWebReady: true,
			},
		}},
	})
}

// HandleEpisodeInfo resolves imdb_season_episode=tt1234567:S:E to the
// episode record including its m3u8 playlist.
func (add *Addon) HandleEpisodeInfo(c *fiber.Ctx) error {
	catalog, err := add.catalogFor(c)
	if err != nil {
		return errorJSON(c, fiber.NewError(fiber.StatusBadRequest, "Invalid configuration data."))
	}

	raw := c.Query("imdb_season_episode")
	if raw == "" {
		log.WithContext(c.Context()).Warn("Missing imdb_season_episode parameter")
		return errorJSON(c, fiber.NewError(fiber.StatusBadRequest, "IMDb id, season or episode not provided"))
	}

	imdbID, season, episode, err := parseEpisodeID(raw)
	if err != nil {
		log.WithContext(c.Context()).Errorf("Malformed imdb_season_episode %s: %v", raw, err)
		return errorJSON(c, fiber.NewError(fiber.StatusBadRequest, "Malformed imdb_season_episode. Expected tt1234567:1:1"))
	}

	ep, _, err := add.resolveEpisode(c.UserContext(), catalog, imdbID, season, episode)
	if err != nil {
		return errorJSON(c, err)
	}

	return c.JSON(ep)
}

func (add *Addon) HandleLoad(c *fiber.Ctx) error {
	catalog, err := add.catalogFor(c)
	if err != nil {
		return errorJSON(c, fiber.NewError(fiber.StatusBadRequest, "Invalid configuration data."))
	}

	slug := c.Query("url")
	if slug == "" {
		return errorJSON(c, fiber.NewError(fiber.StatusBadRequest, "URL not provided"))
	}

	log.WithContext(c.Context()).Infof("Loading details for slug: %s", slug)
	title, err := catalog.Load(c.UserContext(), slug)
	if err != nil {
		log.WithContext(c.Context()).Errorf("Failed to load details for slug %s: %v", slug, err)
		return errorJSON(c, fiber.NewError(fiber.StatusInternalServerError, err.Error()))
	}

	if !title.IsTV() {
		log.WithContext(c.Context()).Errorf("Loaded content is not a TV series: %s", title.Type)
		return errorJSON(c, fiber.NewError(fiber.StatusBadRequest, "Loaded content is not a TV series"))
	}

	return c.JSON(title)
}

func (add *Addon) HandleGetLinks(c *fiber.Ctx) error {
	catalog, err := add.catalogFor(c)
	if err != nil {
		return errorJSON(c, fiber.NewError(fiber.StatusBadRequest, "Invalid configuration data."))
	}

	code := c.Query("code")
	if code == "" {
		return errorJSON(c, fiber.NewError(fiber.StatusBadRequest, "Playback code not provided"))
	}

	iframe, playlist, err := catalog.Links(c.UserContext(), code)
	if errors.Is(err, streamingcommunity.ErrNoPlaylist) || (err == nil && playlist == "") {
		log.WithContext(c.Context()).Errorf("No m3u8 playlist for code %s", code)
		return errorJSON(c, errPlaylistMissing)
	}
	if err != nil {
		log.WithContext(c.Context()).Errorf("Failed to get links for code %s: %v", code, err)
		return errorJSON(c, fiber.NewError(fiber.StatusInternalServerError, err.Error()))
	}

	return c.JSON(fiber.Map{
		"iframe":        iframe,
		"m3u8_playlist": playlist,
	})
}

func (add *Addon) HandleGetSeasons(c *fiber.Ctx) error {
	catalog, err := add.catalogFor(c)
	if err != nil {
		return errorJSON(c, fiber.NewError(fiber.StatusBadRequest, "Invalid configuration data."))
	}

	imdbID := c.Query("imdb_id")
	if imdbID == "" {
		return errorJSON(c, fiber.NewError(fiber.StatusBadRequest, "IMDb id not provided"))
	}

	title, err := add.resolve(c.UserContext(), catalog, imdbID, false)
	if err != nil {
		return errorJSON(c, err)
	}

	return c.JSON(SeasonsResponse{
		Name:    title.Name,
		Seasons: title.Seasons(),
	})
}

type SeasonsResponse struct {
	Name    string        `json:"name"`
	Seasons map[int][]int `json:"seasons"`
}

// resolve maps an IMDb id to the loaded catalog title. Errors are
// *fiber.Error values carrying the response status.
func (add *Addon) resolve(ctx context.Context, catalog Catalog, imdbID string, requireTV bool) (*model.Title, error) {
	canonical, err := add.canonicalTitle(ctx, imdbID)
	if err != nil {
		log.Errorf("Failed to get metadata for %s: %v", imdbID, err)
		if requireTV {
			return nil, errTitleNotFound
		}
		return nil, errTitleUnknown
	}

	if requireTV && !canonical.IsTV() {
		log.Errorf("Title %s is not a TV series", imdbID)
		return nil, errTitleNotFound
	}
	log.Debugf("Canonical title for %s: %+v", imdbID, canonical)

	query := canonical.SearchQuery()
	candidates, err := catalog.Search(ctx, query)
	if err != nil {
		log.Errorf("Failed to search the catalog for %q: %v", query, err)
		return nil, errSearchFailed
	}

	result := add.selector(catalog).SelectBestMatch(ctx, candidates, canonical)
	if !result.Matched() {
		log.Errorf("No catalog match for %s (%s %s): %v", imdbID, canonical.Title, canonical.Year, result.Reason)
		return nil, errNoMatch
	}
	log.Debugf("Best match for %s: %s (%s phase, score %.2f)", imdbID, result.Candidate.Name, result.Phase, result.Score)

	loadKey := result.Candidate.LoadKey()
	title, err := catalog.Load(ctx, loadKey)
	if err != nil {
		log.Errorf("Failed to load details for %s: %v", loadKey, err)
		return nil, errDetailsNotFound
	}

	return title, nil
}

func (add *Addon) resolveEpisode(ctx context.Context, catalog Catalog, imdbID string, season, episode int) (*model.Episode, *model.Title, error) {
	title, err := add.resolve(ctx, catalog, imdbID, true)
	if err != nil {
		return nil, nil, err
	}

	ep, ok := title.FindEpisode(season, episode)
	if !ok {
		log.Errorf("Episode %d of season %d not found for %s", episode, season, imdbID)
		return nil, nil, fiber.NewError(fiber.StatusNotFound, fmt.Sprintf("Episode %d of season %d not found", episode, season))
	}

	if ep.URL == "" {
		return nil, nil, fiber.NewError(fiber.StatusNotFound, "Episode URL not found")
	}

	code, err := streamingcommunity.PlaybackCode(ep.URL)
	switch {
	case errors.Is(err, streamingcommunity.ErrMissingEpisodeParam):
		return nil, nil, fiber.NewError(fiber.StatusNotFound, "Parameter 'e' not found in the episode URL")
	case errors.Is(err, streamingcommunity.ErrMissingFilmCode):
		return nil, nil, fiber.NewError(fiber.StatusNotFound, "Film code not found in the episode URL")
	case err != nil:
		log.Errorf("Failed to extract the playback code from %s: %v", ep.URL, err)
		return nil, nil, fiber.NewError(fiber.StatusInternalServerError, "Error while extracting the playback code from the episode URL")
	}

	_, playlist, err := catalog.Links(ctx, code)
	if err != nil || playlist == "" {
		log.Errorf("No m3u8 playlist for code %s: %v", code, err)
		return nil, nil, errPlaylistMissing
	}

	found := *ep
	found.M3U8Playlist = playlist
	return &found, title, nil
}

func (add *Addon) selector(catalog Catalog) *matcher.Selector {
	opts := []matcher.Option{
		matcher.WithLookupConcurrency(add.lookupConcurrency),
		matcher.WithTargetLanguage(add.targetLanguage),
	}
	if add.translator != nil {
		opts = append(opts, matcher.WithTranslator(add.translator))
	}

	return matcher.NewSelector(catalog, opts...)
}

// canonicalTitle caches metadata lookups, which are repeated for every
// episode of a series.
func (add *Addon) canonicalTitle(ctx context.Context, imdbID string) (*model.CanonicalTitle, error) {
	key := []byte(canonicalKeyPrefix + strings.ToLower(imdbID))
	if raw, err := add.cache.Get(key); err == nil {
		canonical := &model.CanonicalTitle{}
		if err := json.Unmarshal(raw, canonical); err == nil {
			return canonical, nil
		}
	}

	canonical, err := add.metadata.CanonicalTitle(ctx, imdbID)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(canonical); err == nil {
		if err := add.cache.Set(key, raw, canonicalTitleExpiry); err != nil {
			log.Warnf("Failed to cache metadata of %s: %v", imdbID, err)
		}
	}

	return canonical, nil
}

// catalogFor returns the catalog of the request, honouring a domain override
// in the user data segment.
func (add *Addon) catalogFor(c *fiber.Ctx) (Catalog, error) {
	if c.Params("userData") == "" {
		return add.catalog, nil
	}

	userData, err := parseUserData(c)
	if err != nil {
		return nil, err
	}

	if userData.Domain == "" {
		return add.catalog, nil
	}

	return add.newCatalog(userData.Domain), nil
}

// parseEpisodeID splits "tt1234567:S:E".
func parseEpisodeID(raw string) (string, int, int, error) {
	tokens := strings.Split(raw, ":")
	if len(tokens) != 3 || tokens[0] == "" {
		return "", 0, 0, fmt.Errorf("expected imdb:season:episode, got %q", raw)
	}

	season, err := strconv.Atoi(tokens[1])
	if err != nil {
		return "", 0, 0, fmt.Errorf("invalid season: %w", err)
	}

	episode, err := strconv.Atoi(tokens[2])
	if err != nil {
		return "", 0, 0, fmt.Errorf("invalid episode: %w", err)
	}

	return tokens[0], season, episode, nil
}

func errorJSON(c *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if !errors.As(err, &fiberErr) {
		fiberErr = fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	return c.Status(fiberErr.Code).JSON(fiber.Map{
		"error": fiberErr.Message,
	})
}

func formatStreamTitle(title *model.Title, ep *model.Episode) string {
	label := fmt.Sprintf("%s S%02dE%02d", title.Name, ep.Season, ep.Episode)
	if ep.Name != "" {
		label += "\n" + ep.Name
	}
	return label
}
