package addon

import "github.com/gofiber/fiber/v2"

// Register mounts every endpoint twice: at the root and below a user data
// segment carrying per-user configuration.
func (add *Addon) Register(router fiber.Router) {
	for _, prefix := range []string{"", "/:userData"} {
		router.Get(prefix+"/manifest.json", add.HandleGetManifest)
		router.Get(prefix+"/stream/:type/:id.json", add.HandleGetStreams)
		router.Get(prefix+"/get_episode_info", add.HandleEpisodeInfo)
		router.Get(prefix+"/load", add.HandleLoad)
		router.Get(prefix+"/get_links", add.HandleGetLinks)
		router.Get(prefix+"/get_seasons", add.HandleGetSeasons)
	}
}
