package model

import (
	"slices"
	"strconv"
	"strings"
)

// ContentType is the kind of work a canonical title describes.
type ContentType string

const (
	ContentTypeTV    ContentType = "tv"
	ContentTypeMovie ContentType = "movie"
)

// CanonicalTitle is the trusted metadata record for one work, keyed by an
// external cross-catalog identifier (an IMDb id).
type CanonicalTitle struct {
	Title             string      `json:"title"`
	OriginalTitle     string      `json:"original_title"`
	AlternativeTitles []string    `json:"alternative_titles"`
	Year              string      `json:"year"`
	Type              ContentType `json:"type"`
	ExternalID        string      `json:"imdb_id"`
	ProviderID        int64       `json:"code,omitempty"`
}

func (c *CanonicalTitle) IsTV() bool {
	return c != nil && c.Type == ContentTypeTV
}

// SearchQuery is the free-text query sent to the catalog for this title.
func (c *CanonicalTitle) SearchQuery() string {
	return strings.TrimSpace(c.Title + " " + c.Year)
}

// Candidate is one entry of a catalog search result.
type Candidate struct {
	ID           int64  `json:"id"`
	Slug         string `json:"slug"`
	Name         string `json:"name"`
	URL          string `json:"url"`
	Type         string `json:"type"`
	LastAirDate  string `json:"last_air_date,omitempty"`
	FirstAirDate string `json:"first_air_date,omitempty"`
}

// Year prefers the last known air date and falls back to the first air date.
// Only the leading component of the date is returned.
func (c *Candidate) Year() string {
	date := c.LastAirDate
	if date == "" {
		date = c.FirstAirDate
	}
	if date == "" {
		return ""
	}

	year, _, _ := strings.Cut(date, "-")
	return year
}

// URLSlug is the last path segment of the candidate URL.
func (c *Candidate) URLSlug() string {
	u := strings.TrimRight(c.URL, "/")
	if i := strings.LastIndex(u, "/"); i >= 0 {
		return u[i+1:]
	}
	return u
}

// LoadKey is the key used to load the full detail record of the candidate.
func (c *Candidate) LoadKey() string {
	if c.Slug == "" {
		return strconv.FormatInt(c.ID, 10)
	}
	return strconv.FormatInt(c.ID, 10) + "-" + c.Slug
}

// Title is the full detail record of a catalog entry.
type Title struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Type        string    `json:"type"`
	IMDBID      string    `json:"imdb_id"`
	TMDBID      int64     `json:"tmdb_id,omitempty"`
	EpisodeList []Episode `json:"episodeList"`
}

func (t *Title) IsTV() bool {
	return t != nil && strings.EqualFold(t.Type, string(ContentTypeTV))
}

// FindEpisode returns the episode with the given season and episode number.
func (t *Title) FindEpisode(season, episode int) (*Episode, bool) {
	for i := range t.EpisodeList {
		ep := &t.EpisodeList[i]
		if ep.Season == season && ep.Episode == episode {
			return ep, true
		}
	}
	return nil, false
}

// Seasons groups episode numbers by season, each list sorted ascending.
func (t *Title) Seasons() map[int][]int {
	seasons := map[int][]int{}
	for _, ep := range t.EpisodeList {
		if ep.Season == 0 || ep.Episode == 0 {
			continue
		}
		seasons[ep.Season] = append(seasons[ep.Season], ep.Episode)
	}
	for season := range seasons {
		slices.Sort(seasons[season])
	}
	return seasons
}

type Episode struct {
	ID           int64  `json:"id"`
	Season       int    `json:"season"`
	Episode      int    `json:"episode"`
	Name         string `json:"name"`
	URL          string `json:"url"`
	M3U8Playlist string `json:"m3u8_playlist,omitempty"`
}
