package handlers

import (
	"wellness-platform/middleware"
	"wellness-platform/services"

	"github.com/gofiber/fiber/v2"
)

func SetupChallengeRoutes(app *fiber.App, api *services.ChallengeAPI, toolkitService *services.ToolkitService, broker *services.EventBroker) {
	// 🔓 Public reads — still behind Gateway auth
	app.Get("/toolkits", toolkitService.GetAllToolkits)
	app.Get("/toolkits/:id", toolkitService.GetToolkitByID)

	// 🔐 Authenticated routes
	secured := app.Group("/", middleware.UserContextMiddleware())

	// Challenge lifecycle (Admin/Manager only)
	secured.Post("/toolkits", toolkitService.CreateToolkit)
	secured.Post("/challenges", api.CreateChallenge)
	secured.Put("/challenges/:id", api.UpdateChallenge)
	secured.Get("/challenges/:id", api.GetChallenge)
	secured.Post("/challenges/:id/end", api.EndChallenge)
	secured.Post("/challenges/:id/cover", api.UploadCoverPhoto)

	// Participant views
	secured.Get("/challenges/:id/ranking", api.GetRanking)
	secured.Get("/challenges/:id/result", api.GetChallengeResult)
	secured.Get("/challenges/:id/claimed", api.IsPointsClaimed)

	// Lifecycle event stream for achievement/gamification consumers
	secured.Get("/events/stream", broker.StreamLifecycleEventsSSE)
}
