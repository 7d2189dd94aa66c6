package addon

import (
	"github.com/coocood/freecache"

	"github.com/dbytex91/scstream/internal/matcher"
)

type Option func(*Addon)

func WithID(id string) Option {
	return func(a *Addon) {
		a.id = id
	}
}

func WithName(name string) Option {
	return func(a *Addon) {
		a.name = name
	}
}

func WithVersion(version string) Option {
	return func(a *Addon) {
		a.version = version
	}
}

func WithMetadata(provider MetadataProvider) Option {
	return func(a *Addon) {
		a.metadata = provider
	}
}

// WithCatalog sets the catalog used when a request carries no domain
// override.
func WithCatalog(catalog Catalog) Option {
	return func(a *Addon) {
		a.catalog = catalog
	}
}

func WithCatalogFactory(factory CatalogFactory) Option {
	return func(a *Addon) {
		a.newCatalog = factory
	}
}

func WithTranslator(translator matcher.Translator) Option {
	return func(a *Addon) {
		a.translator = translator
	}
}

func WithTargetLanguage(language string) Option {
	return func(a *Addon) {
		a.targetLanguage = language
	}
}

func WithLookupConcurrency(n int) Option {
	return func(a *Addon) {
		a.lookupConcurrency = n
	}
}

func WithCache(cache *freecache.Cache) Option {
	return func(a *Addon) {
		a.cache = cache
	}
}
