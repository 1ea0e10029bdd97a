package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/judicature/backend/internal/apperr"
	"github.com/judicature/backend/internal/http/dto"
	"github.com/judicature/backend/internal/services"
)

// WebhookHandler receives gateway deliveries. It is unauthenticated by
// design: trust comes from the signature over the raw body, which is why
// the body must reach verification byte-for-byte as sent.
type WebhookHandler struct {
	webhookService *services.WebhookService
	log            *zap.Logger
}

func NewWebhookHandler(webhookService *services.WebhookService, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{webhookService: webhookService, log: log}
}

func (h *WebhookHandler) HandleGatewayWebhook(c *fiber.Ctx) error {
	rawBody := c.Body()
	sigHeader := c.Get("Gateway-Signature")

	err := h.webhookService.HandleDelivery(c.Context(), rawBody, sigHeader)
	if err != nil {
		if apperr.IsKind(err, apperr.Unauthorized) {
			h.log.Warn("webhook rejected", zap.Error(err))
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid signature"})
		}
		// 5xx makes the gateway redeliver; the dedup claim absorbs the retry.
		h.log.Error("webhook processing failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "processing failed"})
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}
