package streamingcommunity

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gofiber/fiber/v2/log"
)

var (
	masterPlaylistPattern = regexp.MustCompile(`(?s)window\.masterPlaylist\s*=\s*\{(.*?)\}\s*\}?\s*(?:;|window\.|$)`)
	tokenPattern          = regexp.MustCompile(`['"]token['"]\s*:\s*['"]([^'"]*)['"]`)
	expiresPattern        = regexp.MustCompile(`['"]expires['"]\s*:\s*['"]([^'"]*)['"]`)
	playlistURLPattern    = regexp.MustCompile(`\burl\s*:\s*['"]([^'"]+)['"]`)
	canPlayFHDPattern     = regexp.MustCompile(`window\.canPlayFHD\s*=\s*(true|false)`)
)

// Links resolves a playback code to the embedded player URL and the master
// m3u8 playlist.
func (s *StreamingCommunity) Links(ctx context.Context, code string) (string, string, error) {
	film, episode, err := splitCode(code)
	if err != nil {
		return "", "", err
	}

	req := s.client.R().SetContext(ctx)
	if episode != "" {
		req.SetQueryParam("episode_id", episode).SetQueryParam("next_episode", "1")
	}

	resp, err := req.Get("/iframe/" + film)
	if err != nil {
		return "", "", err
	}

	if resp.IsError() {
		return "", "", fmt.Errorf("streamingcommunity: iframe %s returned %s", code, resp.Status())
	}

	iframe, err := iframeSource(resp.Body())
	if err != nil {
		return "", "", err
	}
	log.Debugf("Player iframe for %s: %s", code, iframe)

	embed, err := s.client.R().
		SetContext(ctx).
		SetHeader("Referer", s.baseURL+"/").
		Get(iframe)
	if err != nil {
		return iframe, "", err
	}

	if embed.IsError() {
		return iframe, "", fmt.Errorf("streamingcommunity: embed page returned %s", embed.Status())
	}

	playlist, err := masterPlaylist(embed.String())
	if err != nil {
		return iframe, "", err
	}

	return iframe, playlist, nil
}

func iframeSource(html []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return "", err
	}

	src, ok := doc.Find("iframe").First().Attr("src")
	src = strings.TrimSpace(src)
	if !ok || src == "" {
		return "", ErrNoIframe
	}

	return src, nil
}

// masterPlaylist builds the signed playlist URL from the window.masterPlaylist
// object of the embed page. FHD capable players get the h=1 variant.
func masterPlaylist(page string) (string, error) {
	block := masterPlaylistPattern.FindStringSubmatch(page)
	if block == nil {
		return "", ErrNoPlaylist
	}

	rawURL := firstGroup(playlistURLPattern, block[1])
	if rawURL == "" {
		return "", ErrNoPlaylist
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoPlaylist, err)
	}

	query := u.Query()
	if token := firstGroup(tokenPattern, block[1]); token != "" {
		query.Set("token", token)
	}
	if expires := firstGroup(expiresPattern, block[1]); expires != "" {
		query.Set("expires", expires)
	}
	if firstGroup(canPlayFHDPattern, page) == "true" {
		query.Set("h", "1")
	}
	u.RawQuery = query.Encode()

	return u.String(), nil
}

func firstGroup(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}
