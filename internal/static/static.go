package static

import (
	"bytes"
	_ "embed"
	"html/template"

	"github.com/gofiber/fiber/v2"
)

//go:embed configure.html
var configure string

var configureTemplate = template.Must(template.New("configure").Parse(configure))

type configurePage struct {
	Name          string
	Version       string
	DefaultDomain string
}

// ConfigureHandler serves the page that builds a manifest URL carrying a
// catalog domain override.
func ConfigureHandler(name, version, defaultDomain string) (fiber.Handler, error) {
	var page bytes.Buffer
	err := configureTemplate.Execute(&page, configurePage{
		Name:          name,
		Version:       version,
		DefaultDomain: defaultDomain,
	})
	if err != nil {
		return nil, err
	}

	rendered := page.Bytes()
	return func(c *fiber.Ctx) error {
		c.Response().Header.Add("Cache-control", "max-age=86400, public")
		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		return c.Send(rendered)
	}, nil
}
