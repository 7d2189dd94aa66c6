package matcher

import (
	"strings"

	"github.com/dbytex91/scstream/internal/model"
	"github.com/gofiber/fiber/v2/log"
)

const (
	// only the head of the catalog ranking is ever consulted
	maxCandidates = 5
	tvTypeMarker  = "tv"
)

// TopCandidates returns the leading candidates the selector considers.
func TopCandidates(candidates []model.Candidate) []model.Candidate {
	if len(candidates) > maxCandidates {
		return candidates[:maxCandidates]
	}
	return candidates
}

// Filter keeps the candidates released in the canonical year whose type
// contains "tv". Input order is preserved and duplicates are kept. A
// canonical title without a year matches nothing.
func Filter(candidates []model.Candidate, canonical *model.CanonicalTitle) []model.Candidate {
	if canonical == nil || canonical.Year == "" {
		return nil
	}

	filtered := make([]model.Candidate, 0, len(candidates))
	for _, c := range candidates {
		year := c.Year()
		candidateType := strings.ToLower(c.Type)
		log.Debugf("Candidate: %s, Type: %s, Year: %s", c.Name, candidateType, year)

		if year == canonical.Year && strings.Contains(candidateType, tvTypeMarker) {
			filtered = append(filtered, c)
		}
	}

	return filtered
}
