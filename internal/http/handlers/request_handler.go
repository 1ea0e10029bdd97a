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

type RequestHandler struct {
	requestService *services.RequestService
	log            *zap.Logger
}

func NewRequestHandler(requestService *services.RequestService, log *zap.Logger) *RequestHandler {
	return &RequestHandler{requestService: requestService, log: log}
}

func (h *RequestHandler) CreateRequest(c *fiber.Ctx) error {
	var req dto.CreatePaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	counterpartyID, err := uuid.Parse(req.CounterpartyID)
	if err != nil {
		return badRequest(c, "invalid counterparty_id")
	}

	pr, err := h.requestService.CreateRequest(c.Context(), middleware.GetActor(c), services.CreateRequestInput{
		CounterpartyID: counterpartyID,
		Amount:         req.Amount,
		Currency:       req.Currency,
		ServiceType:    req.ServiceType,
		Description:    req.Description,
		Urgency:        req.Urgency,
		EtaDays:        req.EtaDays,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: pr})
}

func (h *RequestHandler) GetRequest(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid request id")
	}

	pr, err := h.requestService.GetRequest(c.Context(), id, middleware.GetActor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: pr})
}

func (h *RequestHandler) ListRequests(c *fiber.Ctx) error {
	filter := repositories.RequestFilter{Limit: 20}

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

	prs, err := h.requestService.ListRequests(c.Context(), middleware.GetActor(c), filter)
	if err != nil {
		h.log.Error("list requests failed", zap.Error(err))
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: prs})
}

func (h *RequestHandler) Respond(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid request id")
	}
	var req dto.RespondRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	if req.Action != "accept" && req.Action != "reject" {
		return badRequest(c, "action must be accept or reject")
	}

	pr, err := h.requestService.Respond(c.Context(), id, middleware.GetActor(c), req.Action == "accept")
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: pr})
}

func (h *RequestHandler) ProceedWithPayment(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid request id")
	}
	var req dto.ProceedPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	if req.PaymentMethodRef == "" {
		return badRequest(c, "payment_method_ref is required")
	}

	pr, order, err := h.requestService.ProceedWithPayment(c.Context(), id, middleware.GetActor(c), req.PaymentMethodRef)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.ProceedPaymentResponse{Request: pr, Order: order}})
}

func (h *RequestHandler) CancelRequest(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid request id")
	}

	pr, err := h.requestService.CancelRequest(c.Context(), id, middleware.GetActor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: pr})
}
