package routes

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/tandir/internal/config"
	"github.com/example/tandir/internal/handlers"
	"github.com/example/tandir/internal/middleware"
	"github.com/example/tandir/internal/realtime"
	"github.com/example/tandir/internal/services"
)

// Deps carries the shared components the routes wire together.
type Deps struct {
	DB      *gorm.DB
	Cfg     *config.Config
	Hub     *realtime.Hub
	Orders  *services.OrderService
	Alloc   *services.Allocator
	Reports *services.ReportService
	Live    *services.LiveStats
}

// Register wires up all HTTP routes.
func Register(app *fiber.App, deps Deps) {
	authHandler := handlers.NewAuthHandler(deps.DB, deps.Cfg)
	menuHandler := handlers.NewMenuHandler(deps.DB)
	orderHandler := handlers.NewOrderHandler(deps.DB, deps.Orders, deps.Alloc)
	reportsHandler := handlers.NewReportsHandler(deps.Reports, deps.Live)
	liveHandler := handlers.NewLiveHandler(deps.DB, deps.Orders, deps.Hub, deps.Cfg.SnapshotLimit)

	api := app.Group("/api")

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)

	// Public order intake for the online channel; everything else requires a
	// staff token.
	api.Post("/orders", optionalAuth(deps.Cfg), orderHandler.CreateOrder)

	// Protected routes
	protected := api.Group("", middleware.AuthMiddleware(deps.Cfg))

	menu := protected.Group("/menu")
	menu.Get("/", menuHandler.ListMenuItems)
	menu.Post("/", menuHandler.CreateMenuItem)
	menu.Put("/:id", menuHandler.UpdateMenuItem)
	menu.Delete("/:id", menuHandler.DeleteMenuItem)

	protected.Get("/orders", orderHandler.ListOrders)
	protected.Get("/orders/:id", orderHandler.GetOrder)
	protected.Patch("/orders/:id/status", orderHandler.UpdateStatus)
	protected.Patch("/orders/:id/payment", orderHandler.UpdatePayment)
	protected.Post("/orders/reconcile-numbers", orderHandler.ReconcileNumbers)

	reports := protected.Group("/reports")
	reports.Get("/daily", reportsHandler.Daily)
	reports.Get("/monthly", reportsHandler.Monthly)
	reports.Get("/top-items", reportsHandler.TopItems)

	// Live order stream
	app.Use("/ws/orders", liveHandler.Upgrade())
	app.Get("/ws/orders", liveHandler.Serve())
}

// optionalAuth attaches the staff identity when a token is present but lets
// anonymous requests through; the handler decides whether the channel allows
// them.
func optionalAuth(cfg *config.Config) fiber.Handler {
	authed := middleware.AuthMiddleware(cfg)
	return func(c *fiber.Ctx) error {
		if c.Get("Authorization") == "" {
			return c.Next()
		}
		return authed(c)
	}
}
