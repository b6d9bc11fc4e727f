package controller

import (
	"pdf-chat-be/internal/dto"
	"pdf-chat-be/internal/pkg/serverutils"
	"pdf-chat-be/internal/repository/contract"

	"github.com/gofiber/fiber/v2"
)

type IHealthController interface {
	RegisterRoutes(app *fiber.App, api fiber.Router)
	Root(ctx *fiber.Ctx) error
	Health(ctx *fiber.Ctx) error
}

type healthController struct {
	vectorIndex contract.VectorIndex
}

func NewHealthController(vectorIndex contract.VectorIndex) IHealthController {
	return &healthController{vectorIndex: vectorIndex}
}

func (c *healthController) RegisterRoutes(app *fiber.App, api fiber.Router) {
	app.Get("/", c.Root)
	api.Get("/health", c.Health)
}

// Root keeps the plain body uptime checks already look for.
func (c *healthController) Root(ctx *fiber.Ctx) error {
	return ctx.JSON(fiber.Map{"status": "working fine"})
}

func (c *healthController) Health(ctx *fiber.Ctx) error {
	count, err := c.vectorIndex.Count(ctx.UserContext())
	if err != nil {
		return ctx.Status(fiber.StatusServiceUnavailable).JSON(
			serverutils.ErrorResponse(fiber.StatusServiceUnavailable, "Vector store unavailable"),
		)
	}

	return ctx.JSON(serverutils.SuccessResponse("OK", dto.HealthResponse{
		Status:      "ok",
		VectorCount: count,
	}))
}
