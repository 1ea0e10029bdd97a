package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/judicature/backend/internal/http/dto"
	"github.com/judicature/backend/internal/middleware"
	"github.com/judicature/backend/internal/services"
)

type UserHandler struct {
	userService *services.UserService
	log         *zap.Logger
}

func NewUserHandler(userService *services.UserService, log *zap.Logger) *UserHandler {
	return &UserHandler{userService: userService, log: log}
}

func (h *UserHandler) GetMe(c *fiber.Ctx) error {
	user, err := h.userService.GetProfile(c.Context(), middleware.GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: user})
}

func (h *UserHandler) GetPayoutAccount(c *fiber.Ctx) error {
	ref, err := h.userService.GetPayoutAccount(c.Context(), middleware.GetActor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.PayoutAccountResponse{
		Connected:  ref != nil,
		AccountRef: ref,
	}})
}

func (h *UserHandler) SetPayoutAccount(c *fiber.Ctx) error {
	var req dto.SetPayoutAccountRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}

	user, err := h.userService.SetPayoutAccount(c.Context(), middleware.GetActor(c), req.AccountRef)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: user})
}

func (h *UserHandler) ClearPayoutAccount(c *fiber.Ctx) error {
	user, err := h.userService.ClearPayoutAccount(c.Context(), middleware.GetActor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: user})
}
