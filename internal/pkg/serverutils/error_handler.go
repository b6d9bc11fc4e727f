package serverutils

import (
	"errors"

	"pdf-chat-be/internal/pkg/apperror"

	"github.com/gofiber/fiber/v2"
)

var kindStatus = map[apperror.Kind]int{
	apperror.KindValidation:   fiber.StatusBadRequest,
	apperror.KindUnauthorized: fiber.StatusUnauthorized,
	apperror.KindForbidden:    fiber.StatusForbidden,
	apperror.KindIngestion:    fiber.StatusInternalServerError,
	apperror.KindRetrieval:    fiber.StatusBadGateway,
	apperror.KindCompletion:   fiber.StatusBadGateway,
	apperror.KindRateLimited:  fiber.StatusTooManyRequests,
}

// StatusFor maps an error to its HTTP status and client-facing message.
func StatusFor(err error) (int, string) {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		code, ok := kindStatus[appErr.Kind]
		if !ok {
			code = fiber.StatusInternalServerError
		}
		if appErr.Kind == apperror.KindValidation {
			return code, appErr.Message
		}
		return code, appErr.Error()
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code, fiberErr.Message
	}

	return fiber.StatusInternalServerError, "Internal server error"
}

// ErrorHandler is installed as fiber.Config.ErrorHandler.
func ErrorHandler(ctx *fiber.Ctx, err error) error {
	code, message := StatusFor(err)
	return ctx.Status(code).JSON(ErrorResponse(code, message))
}

// ErrorHandlerMiddleware renders errors returned further down the chain.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		if err := ctx.Next(); err != nil {
			return ErrorHandler(ctx, err)
		}
		return nil
	}
}
