package httpapi

import (
	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes registers panel routes
func RegisterRoutes(app *fiber.App, handler *Handler) {
	api := app.Group("/api")

	api.Get("/panel", handler.GetPanel)
	api.Post("/panel/mode", handler.SetMode)
	api.Post("/panel/layout", handler.SetLayout)
	api.Get("/languages", handler.GetLanguages)
	api.Post("/translate", handler.SetTranslation)
	api.Post("/romanization", handler.SetRomanization)
	api.Post("/locate", handler.Locate)

	lyricsAPI := api.Group("/lyrics")
	lyricsAPI.Post("/refetch", handler.Refetch)
	lyricsAPI.Post("/edit", handler.Edit)
	lyricsAPI.Get("/search", handler.Search)
	lyricsAPI.Post("/pick", handler.Pick)
}
