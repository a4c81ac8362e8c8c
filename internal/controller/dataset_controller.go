package controller

import (
	"smart-support-bot/internal/dto"
	"smart-support-bot/internal/pkg/serverutils"
	"smart-support-bot/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IDatasetController interface {
	RegisterRoutes(r fiber.Router)
	Info(ctx *fiber.Ctx) error
	Sample(ctx *fiber.Ctx) error
	Reload(ctx *fiber.Ctx) error
}

type datasetController struct {
	service service.IDatasetService
}

func NewDatasetController(service service.IDatasetService) IDatasetController {
	return &datasetController{service: service}
}

func (c *datasetController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/dataset/v1")
	h.Get("info", c.Info)
	h.Get("sample", c.Sample)
	h.Post("reload", c.Reload)
}

func (c *datasetController) Info(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("Success get dataset info", c.service.Info(ctx.UserContext())))
}

func (c *datasetController) Sample(ctx *fiber.Ctx) error {
	n := ctx.QueryInt("n", 5)
	if n < 0 {
		return fiber.NewError(fiber.StatusBadRequest, "n must not be negative")
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get dataset sample", c.service.Sample(ctx.UserContext(), n)))
}

func (c *datasetController) Reload(ctx *fiber.Ctx) error {
	var req dto.DatasetReloadRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}
	if req.RequestedBy == "" {
		req.RequestedBy = "api"
	}

	if err := c.service.RequestReload(ctx.UserContext(), req.RequestedBy); err != nil {
		return err
	}

	ctx.Status(fiber.StatusAccepted)
	return ctx.JSON(serverutils.SuccessResponse("Dataset reload queued", dto.DatasetReloadResponse{Queued: true}))
}
