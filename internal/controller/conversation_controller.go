package controller

import (
	"strconv"

	"smart-support-bot/internal/dto"
	"smart-support-bot/internal/pkg/serverutils"
	"smart-support-bot/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IConversationController interface {
	RegisterRoutes(r fiber.Router)
	PostEvent(ctx *fiber.Ctx) error
	GetMessages(ctx *fiber.Ctx) error
}

type conversationController struct {
	service service.IConversationService
}

func NewConversationController(service service.IConversationService) IConversationController {
	return &conversationController{service: service}
}

func (c *conversationController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/conversation/v1")
	h.Post("events", c.PostEvent)
	h.Get("chats/:chatId/messages", c.GetMessages)
}

func (c *conversationController) PostEvent(ctx *fiber.Ctx) error {
	var req dto.InboundEventRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.HandleEvent(ctx.UserContext(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Event handled", res))
}

func (c *conversationController) GetMessages(ctx *fiber.Ctx) error {
	chatID, err := strconv.ParseInt(ctx.Params("chatId"), 10, 64)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid chat id")
	}

	res := c.service.ChatMessages(ctx.UserContext(), chatID)
	return ctx.JSON(serverutils.SuccessResponse("Success get chat messages", res))
}
