package main

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

type config struct {
	Port     int    `env:"PORT" envDefault:"7000"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	TMDBAPIKey   string `env:"TMDB_API_KEY"`
	TMDBBaseURL  string `env:"TMDB_BASE_URL" envDefault:"https://api.themoviedb.org/3"`
	TMDBLanguage string `env:"TMDB_LANGUAGE" envDefault:"it-IT"`

	CatalogDomain string `env:"CATALOG_DOMAIN" envDefault:"streamingcommunity.prof"`

	TranslateTarget string `env:"TRANSLATE_TARGET" envDefault:"it"`
	TranslateSource string `env:"TRANSLATE_SOURCE" envDefault:"auto"`
	TranslateURL    string `env:"TRANSLATE_URL" envDefault:"https://translate.googleapis.com"`

	HTTPTimeout       time.Duration `env:"HTTP_TIMEOUT" envDefault:"10s"`
	LookupConcurrency int           `env:"LOOKUP_CONCURRENCY" envDefault:"5"`
	CacheSizeMB       int           `env:"CACHE_SIZE_MB" envDefault:"32"`
}

func (c config) level() log.Level {
	switch strings.ToLower(c.LogLevel) {
	case "trace":
		return log.LevelTrace
	case "debug":
		return log.LevelDebug
	case "warn", "warning":
		return log.LevelWarn
	case "error":
		return log.LevelError
	default:
		return log.LevelInfo
	}
}
