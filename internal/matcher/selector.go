// Package matcher resolves a canonical title to the best matching entry of a
// catalog search result.
//
// Resolution runs in two phases. The exact phase looks up the external id of
// each of the top candidates and returns the first one agreeing with the
// canonical id. When none does, the fuzzy phase filters the candidates by
// year and type and scores their names against the original, alternative and
// translated titles.
package matcher

import (
	"context"
	"fmt"
	"strings"

	"github.com/dbytex91/scstream/internal/model"
	"github.com/dbytex91/scstream/internal/pipe"
	"github.com/gofiber/fiber/v2/log"
)

const (
	defaultTargetLanguage = "it"

	translatedWeight = 1.5
	bonusThreshold   = 0.8
	confidenceBonus  = 1.0
)

// IDLookup resolves the external id of a catalog entry from its slug.
type IDLookup interface {
	ExternalID(ctx context.Context, slug string) (string, error)
}

// Translator translates text into the target language. It is best-effort:
// errors only remove the translated variant from scoring.
type Translator interface {
	Translate(ctx context.Context, text, target string) (string, error)
}

type Phase string

const (
	PhaseNone  Phase = "none"
	PhaseExact Phase = "exact"
	PhaseFuzzy Phase = "fuzzy"
)

// Result is the outcome of a resolution: a single candidate, or no match
// with the reason in Reason.
type Result struct {
	Candidate *model.Candidate
	Phase     Phase
	Score     float64
	Reason    error
}

func (r Result) Matched() bool {
	return r.Candidate != nil
}

type Selector struct {
	lookup         IDLookup
	translator     Translator
	targetLanguage string
	similarity     SimilarityFunc
	concurrency    int
}

type Option func(*Selector)

func WithTranslator(translator Translator) Option {
	return func(s *Selector) {
		s.translator = translator
	}
}

func WithTargetLanguage(language string) Option {
	return func(s *Selector) {
		if language != "" {
			s.targetLanguage = language
		}
	}
}

func WithSimilarity(fn SimilarityFunc) Option {
	return func(s *Selector) {
		if fn != nil {
			s.similarity = fn
		}
	}
}

// WithLookupConcurrency issues up to n exact-phase lookups at once. With
// n <= 1 candidates are looked up one by one and the scan stops at the
// first exact match.
func WithLookupConcurrency(n int) Option {
	return func(s *Selector) {
		s.concurrency = n
	}
}

func NewSelector(lookup IDLookup, opts ...Option) *Selector {
	s := &Selector{
		lookup:         lookup,
		targetLanguage: defaultTargetLanguage,
		similarity:     Similarity,
		concurrency:    1,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// SelectBestMatch returns the candidate matching canonical, or a result
// without a candidate. Collaborator failures never surface as errors.
func (s *Selector) SelectBestMatch(ctx context.Context, candidates []model.Candidate, canonical *model.CanonicalTitle) Result {
	if canonical == nil {
		return Result{Phase: PhaseNone, Reason: ErrNoMatch}
	}

	top := TopCandidates(candidates)
	names := make([]string, 0, len(top))
	for _, c := range top {
		names = append(names, c.Name)
	}
	log.Debugf("Top %d search result titles: %q", len(top), names)

	if c, ok := s.exactMatch(ctx, top, canonical); ok {
		log.Debugf("Found candidate with matching external id %s: %s", canonical.ExternalID, c.Name)
		return Result{Candidate: c, Phase: PhaseExact}
	}

	return s.fuzzyMatch(ctx, top, canonical)
}

func (s *Selector) exactMatch(ctx context.Context, top []model.Candidate, canonical *model.CanonicalTitle) (*model.Candidate, bool) {
	if s.lookup == nil || canonical.ExternalID == "" || len(top) == 0 {
		return nil, false
	}

	if s.concurrency <= 1 {
		for i := range top {
			externalID, err := s.lookupID(ctx, &top[i])
			if err != nil {
				log.Errorf("Skipping candidate %s: %v", top[i].Name, err)
				continue
			}

			if strings.EqualFold(externalID, canonical.ExternalID) {
				c := top[i]
				return &c, true
			}
		}
		return nil, false
	}

	results := s.lookupAll(ctx, top)
	for i, r := range results {
		if r == nil {
			continue
		}
		if r.err != nil {
			log.Errorf("Skipping candidate %s: %v", top[i].Name, r.err)
			continue
		}

		if strings.EqualFold(r.externalID, canonical.ExternalID) {
			c := top[i]
			return &c, true
		}
	}

	return nil, false
}

type lookupRecord struct {
	index      int
	candidate  *model.Candidate
	externalID string
	err        error
}

// lookupAll resolves every candidate concurrently. Results are indexed by
// candidate position so callers can scan them in ranking order.
func (s *Selector) lookupAll(ctx context.Context, top []model.Candidate) []*lookupRecord {
	p := pipe.New[lookupRecord](func(context.Context) ([]*lookupRecord, error) {
		records := make([]*lookupRecord, 0, len(top))
		for i := range top {
			records = append(records, &lookupRecord{index: i, candidate: &top[i]})
		}
		return records, nil
	})

	p.Map(func(ctx context.Context, r *lookupRecord) (*lookupRecord, error) {
		r.externalID, r.err = s.lookupID(ctx, r.candidate)
		return r, nil
	}, pipe.Concurrency[lookupRecord](s.concurrency))

	results := make([]*lookupRecord, len(top))
	err := p.Run(ctx, func(r *lookupRecord) error {
		results[r.index] = r
		return nil
	})
	if err != nil {
		log.Warnf("External id lookups interrupted: %v", err)
	}

	return results
}

func (s *Selector) lookupID(ctx context.Context, c *model.Candidate) (string, error) {
	slug := c.URLSlug()
	externalID, err := s.lookup.ExternalID(ctx, slug)
	if err != nil {
		return "", fmt.Errorf("%w for slug %q: %w", ErrLookupFailure, slug, err)
	}

	externalID = strings.ToLower(externalID)
	log.Debugf("Fetched external id for candidate %s: %s", c.Name, externalID)
	return externalID, nil
}

func (s *Selector) fuzzyMatch(ctx context.Context, top []model.Candidate, canonical *model.CanonicalTitle) Result {
	if canonical.Year == "" {
		log.Warnf("Canonical title %q has no year, fuzzy matching is not possible", canonical.Title)
		return Result{Phase: PhaseFuzzy, Reason: ErrMissingYear}
	}

	filtered := Filter(top, canonical)
	filteredNames := make([]string, 0, len(filtered))
	for _, c := range filtered {
		filteredNames = append(filteredNames, c.Name)
	}
	log.Debugf("Candidates filtered by year (%s) and type %q: %q", canonical.Year, tvTypeMarker, filteredNames)

	if len(filtered) == 0 {
		log.Warnf("No candidate found for year %s", canonical.Year)
		return Result{Phase: PhaseFuzzy, Reason: ErrNoCandidatesAfterFilter}
	}

	originals := originalVariants(canonical)
	translated := s.translatedVariants(ctx, canonical)
	log.Debugf("Normalized original titles: %q", originals)
	log.Debugf("Normalized translated titles: %q", translated)

	var best *model.Candidate
	bestScore := 0.0
	for i := range filtered {
		name := Normalize(strings.ToLower(filtered[i].Name))

		simOriginal := s.bestSimilarity(name, originals)
		simTranslated := s.bestSimilarity(name, translated)

		score := simOriginal + translatedWeight*simTranslated
		if simOriginal > bonusThreshold || simTranslated > bonusThreshold {
			score += confidenceBonus
			log.Debugf("High similarity bonus applied to %s", filtered[i].Name)
		}

		log.Debugf("Evaluating candidate: %s, similarity original: %.2f, similarity translated: %.2f, score: %.2f",
			name, simOriginal, simTranslated, score)

		// strict comparison: on ties the higher ranked candidate stays
		if score > bestScore {
			bestScore = score
			c := filtered[i]
			best = &c
		}
	}

	if best == nil {
		log.Debugf("No best match found")
		return Result{Phase: PhaseFuzzy, Reason: ErrNoMatch}
	}

	log.Debugf("Best match selected: %s with score %.2f", best.Name, bestScore)
	return Result{Candidate: best, Phase: PhaseFuzzy, Score: bestScore}
}

func (s *Selector) bestSimilarity(name string, variants []string) float64 {
	best := 0.0
	for _, v := range variants {
		sim := s.similarity(name, v)
		log.Debugf("Calculated similarity between %q and %q: %.2f", name, v, sim)
		best = max(best, sim)
	}
	return best
}

// originalVariants collects the original and alternative titles, each
// lower-cased and normalized. Blank entries are dropped.
func originalVariants(canonical *model.CanonicalTitle) []string {
	titles := make([]string, 0, len(canonical.AlternativeTitles)+1)
	titles = append(titles, canonical.OriginalTitle)
	titles = append(titles, canonical.AlternativeTitles...)

	return normalizeVariants(titles)
}

func (s *Selector) translatedVariants(ctx context.Context, canonical *model.CanonicalTitle) []string {
	if s.translator == nil || strings.TrimSpace(canonical.Title) == "" {
		return nil
	}

	translated, err := s.translator.Translate(ctx, canonical.Title, s.targetLanguage)
	if err != nil {
		log.Errorf("%v: %q: %v", ErrTranslationFailure, canonical.Title, err)
		return nil
	}
	log.Debugf("Translated title from %q to %q", canonical.Title, translated)

	return normalizeVariants([]string{translated})
}

func normalizeVariants(titles []string) []string {
	variants := make([]string, 0, len(titles))
	for _, t := range titles {
		if strings.TrimSpace(t) == "" {
			continue
		}

		if n := Normalize(strings.ToLower(t)); n != "" {
			variants = append(variants, n)
		}
	}
	return variants
}
