package tmdb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbytex91/scstream/internal/model"
)

func newServer(t *testing.T, routes map[string]string, statuses map[string]int, onRequest ...func(*http.Request)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.URL.Query().Get("api_key"))
		for _, fn := range onRequest {
			fn(r)
		}

		body, ok := routes[r.URL.Path]
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"status_code":34,"status_message":"The resource you requested could not be found."}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if status, ok := statuses[r.URL.Path]; ok {
			w.WriteHeader(status)
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestCanonicalTitleSeries(t *testing.T) {
	server := newServer(t, map[string]string{
		"/find/tt0903747":             `{"movie_results":[],"tv_results":[{"id":1396,"name":"Breaking Bad","original_name":"Breaking Bad","first_air_date":"2008-01-20"}]}`,
		"/tv/1396":                    `{"id":1396,"name":"Breaking Bad - Reazioni collaterali"}`,
		"/tv/1396/alternative_titles": `{"id":1396,"results":[{"iso_3166_1":"IT","title":" Breaking Bad - Reazioni collaterali "},{"iso_3166_1":"US","title":"  "}]}`,
	}, nil, func(r *http.Request) {
		if r.URL.Path == "/tv/1396" {
			assert.Equal(t, "it-IT", r.URL.Query().Get("language"))
		}
	})

	client := New("secret", WithBaseURL(server.URL))
	title, err := client.CanonicalTitle(context.Background(), "tt0903747")

	require.NoError(t, err)
	assert.Equal(t, &model.CanonicalTitle{
		Title:             "breaking bad - reazioni collaterali",
		OriginalTitle:     "breaking bad",
		AlternativeTitles: []string{"breaking bad - reazioni collaterali"},
		Year:              "2008",
		Type:              model.ContentTypeTV,
		ExternalID:        "tt0903747",
		ProviderID:        1396,
	}, title)
}

func TestCanonicalTitleFallsBackToFindName(t *testing.T) {
	server := newServer(t, map[string]string{
		"/find/tt2861424": `{"tv_results":[{"id":60625,"name":"Rick and Morty","original_name":"Rick and Morty","first_air_date":""}]}`,
	}, nil)

	client := New("secret", WithBaseURL(server.URL), WithLanguage("de-DE"))
	title, err := client.CanonicalTitle(context.Background(), "tt2861424")

	require.NoError(t, err)
	assert.Equal(t, "rick and morty", title.Title)
	assert.Empty(t, title.AlternativeTitles)
	assert.Empty(t, title.Year)
	assert.True(t, title.IsTV())
}

func TestCanonicalTitleMovie(t *testing.T) {
	server := newServer(t, map[string]string{
		"/find/tt0113277": `{"tv_results":[],"movie_results":[{"id":949,"title":"Heat","original_title":"Heat","release_date":"1995-12-15"}]}`,
	}, nil)

	title, err := New("secret", WithBaseURL(server.URL)).CanonicalTitle(context.Background(), "tt0113277")

	require.NoError(t, err)
	assert.Equal(t, model.ContentTypeMovie, title.Type)
	assert.Equal(t, "1995", title.Year)
	assert.Equal(t, "heat", title.Title)
}

func TestCanonicalTitleNotFound(t *testing.T) {
	server := newServer(t, map[string]string{
		"/find/tt0000000": `{"tv_results":[],"movie_results":[]}`,
	}, nil)

	_, err := New("secret", WithBaseURL(server.URL)).CanonicalTitle(context.Background(), "tt0000000")

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCanonicalTitleErrorResponse(t *testing.T) {
	server := newServer(t, map[string]string{
		"/find/tt0903747": `{"status_code":7,"status_message":"Invalid API key: You must be granted a valid key."}`,
	}, map[string]int{"/find/tt0903747": http.StatusUnauthorized})

	_, err := New("secret", WithBaseURL(server.URL)).CanonicalTitle(context.Background(), "tt0903747")

	var errResp *ErrorResponse
	require.ErrorAs(t, err, &errResp)
	assert.Equal(t, 7, errResp.StatusCode)
}
