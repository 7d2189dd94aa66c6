package matcher

import "errors"

var (
	// ErrLookupFailure wraps a failed external id lookup. The candidate is
	// skipped.
	ErrLookupFailure = errors.New("matcher: external id lookup failed")
	// ErrTranslationFailure wraps a failed translation. Scoring continues
	// without the translated variant.
	ErrTranslationFailure = errors.New("matcher: translation failed")

	ErrMissingYear             = errors.New("matcher: canonical title has no year")
	ErrNoCandidatesAfterFilter = errors.New("matcher: no candidate matches year and type")
	ErrNoMatch                 = errors.New("matcher: no candidate matched")
)
