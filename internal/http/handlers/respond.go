package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/judicature/backend/internal/apperr"
	"github.com/judicature/backend/internal/http/dto"
	"github.com/judicature/backend/internal/middleware"
)

// respondError translates a service error into the JSON error envelope.
// Internal errors are masked; everything else surfaces its message,
// validation fields and gateway code as-is.
func respondError(c *fiber.Ctx, err error) error {
	reqID, _ := c.Locals(middleware.CtxRequestID).(string)
	resp := dto.ErrorResponse{Error: "internal error", RequestID: reqID}

	if ae, ok := apperr.As(err); ok && ae.Kind != apperr.Internal {
		resp.Error = ae.Msg
		resp.Fields = ae.Fields
		resp.GatewayCode = ae.GatewayCode
	}
	return c.Status(apperr.HTTPStatus(err)).JSON(resp)
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: msg})
}
