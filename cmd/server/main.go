package main

import (
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/coocood/freecache"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	_ "github.com/joho/godotenv/autoload"
	"github.com/mattn/go-isatty"

	"github.com/dbytex91/scstream/internal/addon"
	"github.com/dbytex91/scstream/internal/cinemeta"
	"github.com/dbytex91/scstream/internal/static"
	"github.com/dbytex91/scstream/internal/streamingcommunity"
	"github.com/dbytex91/scstream/internal/tmdb"
	"github.com/dbytex91/scstream/internal/translate"
)

var (
	maskedPathPattern = regexp.MustCompile(`^/([\w%.-]+)/(?:configure|stream|manifest|get_|load)`)
	version           = "1.0.0"
)

func main() {
	cfg, err := env.ParseAs[config]()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	log.SetLevel(cfg.level())

	app := fiber.New(fiber.Config{
		AppName: "SCStream " + version,
	})
	app.Use(requestid.New(requestid.Config{
		Generator: uuid.NewString,
	}))
	app.Use(cors.New())
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	app.Use(logger.New(logger.Config{
		CustomTags: map[string]logger.LogFunc{
			"maskedPath": func(output logger.Buffer, c *fiber.Ctx, data *logger.Data, extraParam string) (int, error) {
				urlPath := c.Path()
				loc := maskedPathPattern.FindStringSubmatchIndex(urlPath)
				if len(loc) > 3 {
					return output.WriteString(urlPath[:loc[2]] + "***" + urlPath[loc[3]:])
				} else {
					return output.WriteString(urlPath)
				}
			},
		},
		Format:        "${time} | ${locals:requestid} | ${status} | ${latency} | ${ip} | ${method} | ${maskedPath} | ${error}\n",
		TimeFormat:    "15:04:05",
		TimeZone:      "Local",
		TimeInterval:  500 * time.Millisecond,
		Output:        os.Stdout,
		DisableColors: !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()),
	}))

	cache := freecache.NewCache(cfg.CacheSizeMB * 1024 * 1024)

	opts := []addon.Option{
		addon.WithID("org.scstream.addon"),
		addon.WithName("SCStream"),
		addon.WithVersion(version),
		addon.WithCache(cache),
		addon.WithCatalogFactory(func(domain string) addon.Catalog {
			return streamingcommunity.New(domain, streamingcommunity.WithTimeout(cfg.HTTPTimeout))
		}),
		addon.WithCatalog(streamingcommunity.New(cfg.CatalogDomain, streamingcommunity.WithTimeout(cfg.HTTPTimeout))),
		addon.WithTranslator(translate.New(
			translate.WithBaseURL(cfg.TranslateURL),
			translate.WithSource(cfg.TranslateSource),
			translate.WithTimeout(cfg.HTTPTimeout),
			translate.WithCache(cache),
		)),
		addon.WithTargetLanguage(cfg.TranslateTarget),
		addon.WithLookupConcurrency(cfg.LookupConcurrency),
	}

	// Cinemeta has no localized titles, so TMDB is preferred whenever a key is set
	if cfg.TMDBAPIKey != "" {
		opts = append(opts, addon.WithMetadata(tmdb.New(cfg.TMDBAPIKey,
			tmdb.WithBaseURL(cfg.TMDBBaseURL),
			tmdb.WithLanguage(cfg.TMDBLanguage),
			tmdb.WithTimeout(cfg.HTTPTimeout),
		)))
	} else {
		log.Warn("TMDB_API_KEY is not set, using Cinemeta for metadata")
		opts = append(opts, addon.WithMetadata(cinemeta.New(cinemeta.WithTimeout(cfg.HTTPTimeout))))
	}

	add := addon.New(opts...)
	add.Register(app)

	configure, err := static.ConfigureHandler("SCStream", version, cfg.CatalogDomain)
	if err != nil {
		log.Fatalf("Failed to render the configure page: %v", err)
	}
	app.Get("/configure", configure)
	app.Get("/:userData/configure", configure)

	addr := ":" + strconv.Itoa(cfg.Port)
	log.Infof("Starting HTTP server on %s", addr)
	log.Fatal(app.Listen(addr))
}
