package addon

import (
	"encoding/json"
	"errors"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

// UserData is the per-user configuration carried as URL encoded JSON in the
// first path segment.
type UserData struct {
	Domain string `json:"domain"`
}

func parseUserData(c *fiber.Ctx) (*UserData, error) {
	userDataRaw := c.Params("userData")
	if userDataRaw == "" {
		return nil, errors.New("configuration is required")
	}

	userDataJson, err := url.PathUnescape(userDataRaw)
	if err != nil {
		log.Errorf("Failed URL decode userdata %s: %v", userDataRaw, err)
		return nil, errors.New("invalid userData")
	}

	userData := &UserData{}
	err = json.Unmarshal([]byte(userDataJson), userData)
	if err != nil {
		log.Errorf("Failed JSON unmarshal userdata %s: %v", userDataJson, err)
		return nil, errors.New("invalid userData")
	}

	userData.Domain = normalizeDomain(userData.Domain)
	if strings.ContainsAny(userData.Domain, "/?#@ ") {
		return nil, errors.New("invalid domain in userData")
	}

	log.Debugf("Parsed user data: domain=%s", userData.Domain)
	return userData, nil
}

// normalizeDomain accepts "example.org", "https://example.org/" and similar.
func normalizeDomain(domain string) string {
	domain = strings.ToLower(strings.TrimSpace(domain))
	domain = strings.TrimPrefix(domain, "https://")
	domain = strings.TrimPrefix(domain, "http://")
	return strings.TrimRight(domain, "/")
}
