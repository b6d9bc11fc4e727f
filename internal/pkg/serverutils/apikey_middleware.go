package serverutils

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
)

const LocalsAPIKey = "api_key"

// APIKeyMiddleware guards routes with a static key sent in header.
func APIKeyMiddleware(header, expectedKey string) fiber.Handler {
	expected := []byte(expectedKey)

	return func(ctx *fiber.Ctx) error {
		if len(expected) == 0 {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "MISSING API KEY"))
		}

		provided := ctx.Get(header)
		if provided == "" {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "API key missing."))
		}
		if subtle.ConstantTimeCompare([]byte(provided), expected) != 1 {
			return ctx.Status(fiber.StatusForbidden).JSON(ErrorResponse(fiber.StatusForbidden, "Invalid API key."))
		}

		ctx.Locals(LocalsAPIKey, provided)
		return ctx.Next()
	}
}
