package controller

import (
	"fmt"
	"io"

	"pdf-chat-be/internal/pkg/apperror"
	"pdf-chat-be/internal/pkg/serverutils"
	"pdf-chat-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IDocumentController interface {
	RegisterRoutes(r fiber.Router)
	Ingest(ctx *fiber.Ctx) error
	Status(ctx *fiber.Ctx) error
}

type documentController struct {
	ingestionService   service.IIngestionService
	indexStatusService service.IIndexStatusService
}

func NewDocumentController(ingestionService service.IIngestionService, indexStatusService service.IIndexStatusService) IDocumentController {
	return &documentController{
		ingestionService:   ingestionService,
		indexStatusService: indexStatusService,
	}
}

func (c *documentController) RegisterRoutes(r fiber.Router) {
	r.Post("/ingest", c.Ingest)
	r.Get("/document/status", c.Status)
}

func (c *documentController) Ingest(ctx *fiber.Ctx) error {
	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		return apperror.Validation("file is required")
	}

	f, err := fileHeader.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("read upload: %w", err)
	}

	res, err := c.ingestionService.Ingest(ctx.UserContext(), fileHeader.Filename, data)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success ingest document", res))
}

func (c *documentController) Status(ctx *fiber.Ctx) error {
	res, err := c.indexStatusService.GetStatus(ctx.UserContext())
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get document status", res))
}
