package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/judicature/backend/internal/http/dto"
	"github.com/judicature/backend/internal/middleware"
	"github.com/judicature/backend/internal/repositories"
	"github.com/judicature/backend/internal/services"
)

type OrderHandler struct {
	orderService *services.OrderService
	audit        *repositories.AuditRepo
	log          *zap.Logger
}

func NewOrderHandler(orderService *services.OrderService, audit *repositories.AuditRepo, log *zap.Logger) *OrderHandler {
	return &OrderHandler{orderService: orderService, audit: audit, log: log}
}

func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid order id")
	}

	order, err := h.orderService.GetOrder(c.Context(), id, middleware.GetActor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: order})
}

func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	filter := repositories.OrderFilter{Limit: 20}

	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}
	if v := c.Query("status"); v != "" {
		filter.Status = &v
	}

	orders, err := h.orderService.ListOrders(c.Context(), middleware.GetActor(c), filter)
	if err != nil {
		h.log.Error("list orders failed", zap.Error(err))
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: orders})
}

// CapturePayment charges the payer for a pending order. Used to retry a
// capture whose first attempt failed or never got a response.
func (h *OrderHandler) CapturePayment(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid order id")
	}
	var req dto.ProceedPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}

	order, err := h.orderService.CapturePayment(c.Context(), id, middleware.GetActor(c), req.PaymentMethodRef)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: order})
}

func (h *OrderHandler) SubmitDeliverable(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid order id")
	}
	var req dto.SubmitDeliverableRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}

	d, err := h.orderService.SubmitDeliverable(c.Context(), id, middleware.GetActor(c), req.FileRef)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: d})
}

func (h *OrderHandler) ListDeliverables(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid order id")
	}

	ds, err := h.orderService.ListDeliverables(c.Context(), id, middleware.GetActor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: ds})
}

func (h *OrderHandler) WithdrawDeliverable(c *fiber.Ctx) error {
	deliverableID, err := uuid.Parse(c.Params("deliverableId"))
	if err != nil {
		return badRequest(c, "invalid deliverable id")
	}

	if err := h.orderService.WithdrawDeliverable(c.Context(), deliverableID, middleware.GetActor(c)); err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *OrderHandler) ReviewDeliverable(c *fiber.Ctx) error {
	deliverableID, err := uuid.Parse(c.Params("deliverableId"))
	if err != nil {
		return badRequest(c, "invalid deliverable id")
	}
	var req dto.ReviewDeliverableRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	if req.Decision != "accept" && req.Decision != "reject" {
		return badRequest(c, "decision must be accept or reject")
	}

	order, err := h.orderService.ReviewDeliverable(c.Context(), deliverableID, middleware.GetActor(c), req.Decision == "accept", req.Notes)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: order})
}

func (h *OrderHandler) ReleaseFunds(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid order id")
	}

	order, err := h.orderService.ReleaseFunds(c.Context(), id, middleware.GetActor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: order})
}

func (h *OrderHandler) RaiseDispute(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid order id")
	}
	var req dto.DisputeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}

	order, err := h.orderService.RaiseDispute(c.Context(), id, middleware.GetActor(c), req.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: order})
}

func (h *OrderHandler) ResolveDispute(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid order id")
	}
	var req dto.ResolveDisputeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}

	order, err := h.orderService.ResolveDispute(c.Context(), id, middleware.GetActor(c), req.Favor)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: order})
}

func (h *OrderHandler) RefundOrder(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid order id")
	}
	var req dto.RefundRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}

	order, err := h.orderService.RefundOrder(c.Context(), id, middleware.GetActor(c), req.ReasonCode)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: order})
}

func (h *OrderHandler) CancelOrder(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid order id")
	}

	order, err := h.orderService.CancelOrder(c.Context(), id, middleware.GetActor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: order})
}

// GetOrderEvents returns the audit trail for an order.
func (h *OrderHandler) GetOrderEvents(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid order id")
	}
	if _, err := h.orderService.GetOrder(c.Context(), id, middleware.GetActor(c)); err != nil {
		return respondError(c, err)
	}

	entries, err := h.audit.GetByEntity(c.Context(), "order", id, 100, 0)
	if err != nil {
		h.log.Error("audit fetch failed", zap.Error(err))
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: entries})
}
