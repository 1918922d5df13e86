package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/storefront/internal/handlers"
	"github.com/example/storefront/internal/middleware"
)

// Handlers groups everything Register mounts.
type Handlers struct {
	Health *handlers.HealthHandler
	Auth   *handlers.AuthHandler
	Orders *handlers.OrderHandler
	Admin  *handlers.AdminHandler
}

// Register wires up all HTTP routes.
func Register(app *fiber.App, h Handlers, gate middleware.Gate, cookieName string) {
	requireSession := middleware.AuthMiddleware(gate, cookieName)
	requireAdmin := middleware.AdminMiddleware(gate, cookieName)

	app.Get("/healthz", h.Health.Health)

	api := app.Group("/api")

	// Auth routes
	auth := api.Group("/auth")
	auth.Get("/google", h.Auth.GoogleRedirect)
	auth.Get("/google/callback", h.Auth.GoogleCallback)
	auth.Post("/google", h.Auth.GoogleLogin)
	auth.Get("/me", requireSession, h.Auth.Me)
	auth.Put("/theme", requireSession, h.Auth.UpdateTheme)
	auth.Post("/logout", requireSession, h.Auth.Logout)

	// Orders
	orders := api.Group("/orders")
	orders.Get("/track/:orderNumber", h.Orders.TrackOrder)
	orders.Post("/", middleware.OptionalAuth(gate, cookieName), h.Orders.CreateOrder)
	orders.Get("/my", requireSession, h.Orders.ListMyOrders)
	orders.Get("/my/:id", requireSession, h.Orders.GetMyOrder)

	// Admin
	admin := api.Group("/admin", requireAdmin)
	admin.Get("/orders", h.Admin.ListAllOrders)
	admin.Get("/orders/stats", h.Admin.GetOrderStats)
	admin.Get("/orders/:id", h.Admin.GetOrder)
	admin.Patch("/orders/:id/status", h.Admin.UpdateOrderStatus)
	admin.Patch("/orders/:id/payment", h.Admin.UpdatePaymentStatus)
	admin.Patch("/orders/:id/tracking", h.Admin.UpdateTracking)
	admin.Patch("/orders/:id/notes", h.Admin.UpdateNotes)
	admin.Delete("/orders/:id", h.Admin.DeleteOrder)
	admin.Get("/users", h.Admin.ListAllUsers)
}
