package addon

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbytex91/scstream/internal/model"
	"github.com/dbytex91/scstream/internal/streamingcommunity"
)

type fakeMetadata struct {
	mu     sync.Mutex
	titles map[string]*model.CanonicalTitle
	calls  int
}

func (f *fakeMetadata) CanonicalTitle(_ context.Context, imdbID string) (*model.CanonicalTitle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	title, ok := f.titles[imdbID]
	if !ok {
		return nil, errors.New("not found")
	}
	copied := *title
	return &copied, nil
}

type fakeCatalog struct {
	candidates []model.Candidate
	searchErr  error
	titles     map[string]*model.Title
	ids        map[string]string
	playlists  map[string]string
	linksErr   error
}

func (f *fakeCatalog) ExternalID(_ context.Context, slug string) (string, error) {
	return f.ids[slug], nil
}

func (f *fakeCatalog) Search(context.Context, string) ([]model.Candidate, error) {
	return f.candidates, f.searchErr
}

func (f *fakeCatalog) Load(_ context.Context, slug string) (*model.Title, error) {
	title, ok := f.titles[slug]
	if !ok {
		return nil, streamingcommunity.ErrNotFound
	}
	return title, nil
}

func (f *fakeCatalog) Links(_ context.Context, code string) (string, string, error) {
	if f.linksErr != nil {
		return "", "", f.linksErr
	}
	playlist, ok := f.playlists[code]
	if !ok {
		return "https://player.example/embed/0", "", nil
	}
	return "https://player.example/embed/1", playlist, nil
}

func breakingBadTitle() *model.Title {
	return &model.Title{
		ID:     1396,
		Name:   "Breaking Bad",
		Slug:   "breaking-bad",
		Type:   "tv",
		IMDBID: "tt0903747",
		EpisodeList: []model.Episode{
			{ID: 101, Season: 1, Episode: 1, Name: "Pilot", URL: "https://sc.example/watch/1396?e=101"},
			{ID: 102, Season: 1, Episode: 2, Name: "Cat's in the Bag...", URL: "https://sc.example/watch/1396?e=102"},
			{ID: 103, Season: 1, Episode: 3, Name: "Broken", URL: "https://sc.example/watch/1396"},
		},
	}
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		candidates: []model.Candidate{{
			ID:          1396,
			Slug:        "breaking-bad",
			Name:        "Breaking Bad",
			URL:         "https://sc.example/titles/1396-breaking-bad",
			Type:        "tv",
			LastAirDate: "2008-01-20",
		}},
		titles: map[string]*model.Title{
			"1396-breaking-bad": breakingBadTitle(),
			"77-heat":           {ID: 77, Name: "Heat", Type: "movie"},
		},
		ids:       map[string]string{"1396-breaking-bad": "tt0903747"},
		playlists: map[string]string{"1396?e=101": "https://vix.example/playlist/1396?token=abc"},
	}
}

func newMetadata() *fakeMetadata {
	return &fakeMetadata{titles: map[string]*model.CanonicalTitle{
		"tt0903747": {Title: "breaking bad", OriginalTitle: "breaking bad", Year: "2008", Type: model.ContentTypeTV, ExternalID: "tt0903747"},
		"tt0113277": {Title: "heat", OriginalTitle: "heat", Year: "1995", Type: model.ContentTypeMovie, ExternalID: "tt0113277"},
	}}
}

func newTestApp(t *testing.T, opts ...Option) *fiber.App {
	t.Helper()
	add := New(append([]Option{
		WithID("org.scstream.test"),
		WithName("SCStream"),
		WithVersion("0.0.1"),
	}, opts...)...)

	app := fiber.New()
	add.Register(app)
	return app
}

func get(t *testing.T, app *fiber.App, target string) (int, map[string]any) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, target, nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	decoded := map[string]any{}
	require.NoError(t, json.Unmarshal(body, &decoded), string(body))
	return resp.StatusCode, decoded
}

func TestHandleEpisodeInfo(t *testing.T) {
	app := newTestApp(t, WithMetadata(newMetadata()), WithCatalog(newFakeCatalog()))

	status, body := get(t, app, "/get_episode_info?imdb_season_episode=tt0903747:1:1")

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Pilot", body["name"])
	assert.Equal(t, float64(1), body["season"])
	assert.Equal(t, "https://vix.example/playlist/1396?token=abc", body["m3u8_playlist"])
}

func TestHandleEpisodeInfoErrors(t *testing.T) {
	failingSearch := newFakeCatalog()
	failingSearch.searchErr = errors.New("connection refused")

	noResults := newFakeCatalog()
	noResults.candidates = nil

	tests := []struct {
		name    string
		catalog *fakeCatalog
		query   string
		status  int
		message string
	}{
		{"missing parameter", newFakeCatalog(), "", http.StatusBadRequest, "IMDb id, season or episode not provided"},
		{"malformed parameter", newFakeCatalog(), "tt0903747:1", http.StatusBadRequest, "Malformed imdb_season_episode. Expected tt1234567:1:1"},
		{"non numeric episode", newFakeCatalog(), "tt0903747:1:x", http.StatusBadRequest, "Malformed imdb_season_episode. Expected tt1234567:1:1"},
		{"unknown title", newFakeCatalog(), "tt0000000:1:1", http.StatusNotFound, "Title not found or not a TV series"},
		{"movie", newFakeCatalog(), "tt0113277:1:1", http.StatusNotFound, "Title not found or not a TV series"},
		{"search failure", failingSearch, "tt0903747:1:1", http.StatusInternalServerError, "Error while searching the catalog"},
		{"no match", noResults, "tt0903747:1:1", http.StatusNotFound, "No match found"},
		{"missing episode", newFakeCatalog(), "tt0903747:2:9", http.StatusNotFound, "Episode 9 of season 2 not found"},
		{"missing e parameter", newFakeCatalog(), "tt0903747:1:3", http.StatusNotFound, "Parameter 'e' not found in the episode URL"},
		{"missing playlist", newFakeCatalog(), "tt0903747:1:2", http.StatusNotFound, "M3U8 playlist not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t, WithMetadata(newMetadata()), WithCatalog(tt.catalog))

			target := "/get_episode_info"
			if tt.query != "" {
				target += "?imdb_season_episode=" + tt.query
			}
			status, body := get(t, app, target)

			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.message, body["error"])
		})
	}
}

func TestHandleEpisodeInfoFuzzyMatch(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.ids = nil
	catalog.candidates = append([]model.Candidate{{
		ID: 5, Slug: "breaking-point", Name: "Breaking Point", Type: "tv", LastAirDate: "2008-03-01",
		URL: "https://sc.example/titles/5-breaking-point",
	}}, catalog.candidates...)
	app := newTestApp(t, WithMetadata(newMetadata()), WithCatalog(catalog))

	status, body := get(t, app, "/get_episode_info?imdb_season_episode=tt0903747:1:1")

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(101), body["id"])
}

func TestHandleLoad(t *testing.T) {
	app := newTestApp(t, WithMetadata(newMetadata()), WithCatalog(newFakeCatalog()))

	status, body := get(t, app, "/load?url=1396-breaking-bad")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Breaking Bad", body["name"])
	assert.Len(t, body["episodeList"], 3)

	status, body = get(t, app, "/load?url=77-heat")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Loaded content is not a TV series", body["error"])

	status, _ = get(t, app, "/load")
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = get(t, app, "/load?url=missing")
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Contains(t, body["error"], "title not found")
}

func TestHandleGetLinks(t *testing.T) {
	catalog := newFakeCatalog()
	app := newTestApp(t, WithMetadata(newMetadata()), WithCatalog(catalog))

	status, body := get(t, app, "/get_links?code=1396%3Fe%3D101")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "https://player.example/embed/1", body["iframe"])
	assert.Equal(t, "https://vix.example/playlist/1396?token=abc", body["m3u8_playlist"])

	status, _ = get(t, app, "/get_links")
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = get(t, app, "/get_links?code=1396%3Fe%3D999")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "M3U8 playlist not found", body["error"])

	catalog.linksErr = errors.New("upstream timeout")
	status, body = get(t, app, "/get_links?code=1396%3Fe%3D101")
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "upstream timeout", body["error"])

	catalog.linksErr = streamingcommunity.ErrNoPlaylist
	status, _ = get(t, app, "/get_links?code=1396%3Fe%3D101")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestHandleGetSeasons(t *testing.T) {
	app := newTestApp(t, WithMetadata(newMetadata()), WithCatalog(newFakeCatalog()))

	status, body := get(t, app, "/get_seasons?imdb_id=tt0903747")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Breaking Bad", body["name"])
	assert.Equal(t, map[string]any{"1": []any{float64(1), float64(2), float64(3)}}, body["seasons"])

	status, _ = get(t, app, "/get_seasons")
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = get(t, app, "/get_seasons?imdb_id=tt0000000")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Title not found", body["error"])
}

func TestHandleGetManifest(t *testing.T) {
	app := newTestApp(t, WithMetadata(newMetadata()), WithCatalog(newFakeCatalog()))

	status, body := get(t, app, "/manifest.json")

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "org.scstream.test", body["id"])
	assert.Equal(t, []any{"series"}, body["types"])
	assert.Equal(t, []any{"tt"}, body["idPrefixes"])
	assert.Equal(t, []any{}, body["catalogs"])
}

func TestHandleGetStreams(t *testing.T) {
	app := newTestApp(t, WithMetadata(newMetadata()), WithCatalog(newFakeCatalog()))

	status, body := get(t, app, "/stream/series/tt0903747%3A1%3A1.json")
	assert.Equal(t, http.StatusOK, status)
	require.Len(t, body["streams"], 1)
	stream := body["streams"].([]any)[0].(map[string]any)
	assert.Equal(t, "https://vix.example/playlist/1396?token=abc", stream["url"])
	assert.Equal(t, "SCStream", stream["name"])
	assert.Equal(t, "Breaking Bad S01E01\nPilot", stream["title"])

	for _, target := range []string{
		"/stream/series/tt0903747%3A1%3A2.json",
		"/stream/series/tt0113277%3A1%3A1.json",
		"/stream/series/tt0903747.json",
		"/stream/movie/tt0113277.json",
	} {
		status, body = get(t, app, target)
		assert.Equal(t, http.StatusOK, status, target)
		assert.Equal(t, []any{}, body["streams"], target)
	}
}

func TestUserDataDomainOverride(t *testing.T) {
	var domains []string
	factory := func(domain string) Catalog {
		domains = append(domains, domain)
		return newFakeCatalog()
	}
	app := newTestApp(t, WithMetadata(newMetadata()), WithCatalog(newFakeCatalog()), WithCatalogFactory(factory))

	status, _ := get(t, app, "/%7B%22domain%22%3A%22https%3A%2F%2FMirror.example%2F%22%7D/get_seasons?imdb_id=tt0903747")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{"mirror.example"}, domains)

	status, _ = get(t, app, "/%7B%7D/get_seasons?imdb_id=tt0903747")
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, domains, 1)

	status, body := get(t, app, "/not-json/get_seasons?imdb_id=tt0903747")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid configuration data.", body["error"])
}

func TestCanonicalTitleIsCached(t *testing.T) {
	metadata := newMetadata()
	app := newTestApp(t, WithMetadata(metadata), WithCatalog(newFakeCatalog()))

	for i := 0; i < 3; i++ {
		status, _ := get(t, app, "/get_seasons?imdb_id=tt0903747")
		require.Equal(t, http.StatusOK, status)
	}

	assert.Equal(t, 1, metadata.calls)
}

func TestParseEpisodeID(t *testing.T) {
	id, season, episode, err := parseEpisodeID("tt0903747:5:14")
	require.NoError(t, err)
	assert.Equal(t, "tt0903747", id)
	assert.Equal(t, 5, season)
	assert.Equal(t, 14, episode)

	for _, raw := range []string{"", "tt0903747", ":1:1", "tt0903747:a:1", "tt0903747:1:1:1"} {
		_, _, _, err := parseEpisodeID(raw)
		assert.Error(t, err, raw)
	}
}
