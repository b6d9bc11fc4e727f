package server

import (
	"context"
	"log"

	"pdf-chat-be/internal/bootstrap"
	"pdf-chat-be/internal/config"
	"pdf-chat-be/internal/pkg/serverutils"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

type Server struct {
	app       *fiber.App
	cfg       *config.Config
	container *bootstrap.Container
}

func New(cfg *config.Config, container *bootstrap.Container) *Server {
	app := fiber.New(fiber.Config{
		// Multipart overhead on top of the file itself.
		BodyLimit:    (cfg.App.MaxUploadMB + 1) * 1024 * 1024,
		ErrorHandler: serverutils.ErrorHandler,
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.App.CorsAllowedOrigins,
		AllowHeaders:  "Origin, Content-Type, Accept, " + cfg.Auth.APIKeyHeader,
		AllowMethods:  "GET, POST, DELETE, OPTIONS",
		ExposeHeaders: "Content-Length, Content-Type",
	}))

	app.Use(otelfiber.Middleware())

	app.Use(serverutils.ErrorHandlerMiddleware())

	registerRoutes(app, cfg, container)

	return &Server{
		app:       app,
		cfg:       cfg,
		container: container,
	}
}

func (s *Server) GetApp() *fiber.App {
	return s.app
}

func (s *Server) Run() error {
	log.Printf("✅ Server is running on http://localhost:%s", s.cfg.App.Port)
	return s.app.Listen(":" + s.cfg.App.Port)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func registerRoutes(app *fiber.App, cfg *config.Config, c *bootstrap.Container) {
	api := app.Group("/api")

	// Open routes first; the secured group's middleware does not apply to them.
	c.HealthController.RegisterRoutes(app, api)

	secured := api.Group("", protectedHandlers(cfg, c.RateLimitStorage)...)

	c.DocumentController.RegisterRoutes(secured)
	c.ChatController.RegisterRoutes(secured)
}

// protectedHandlers runs the limiter before the key check so rejected keys
// still spend the caller's budget.
func protectedHandlers(cfg *config.Config, storage fiber.Storage) []fiber.Handler {
	return []fiber.Handler{
		serverutils.RateLimitMiddleware(cfg.RateLimit.Max, cfg.RateLimit.Window, cfg.Auth.APIKeyHeader, storage),
		serverutils.APIKeyMiddleware(cfg.Auth.APIKeyHeader, cfg.Auth.APIKey),
	}
}
