package engine

import "github.com/gofiber/fiber/v2"

func RegisterRoutes(app *fiber.App, h *Handler) {
	api := app.Group("/api")

	api.Get("/resources", h.SearchResources)
	api.Get("/resources/:id", h.ShowResource)
	api.Put("/resources/:id/restriction", h.UpdateRestriction)
	api.Get("/check_access", h.CheckAccess)
}
