package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"payables/internal/core/apperror"
	"payables/internal/core/id"
	"payables/internal/domain"
	"payables/internal/domain/liability"
	"payables/internal/infrastructure/http/v1/dto"
	"payables/internal/infrastructure/storage/postgres"
	"payables/pkg/logger"
)

const liabilityEntity = "accrued_liability"

// LiabilityHandler handles accrued liability endpoints.
type LiabilityHandler struct {
	*BaseHandler
	service *liability.Service
	audit   *postgres.AuditService
}

// NewLiabilityHandler creates a new liability handler.
func NewLiabilityHandler(base *BaseHandler, service *liability.Service, audit *postgres.AuditService) *LiabilityHandler {
	return &LiabilityHandler{BaseHandler: base, service: service, audit: audit}
}

// logAudit records the mutation best-effort; a failed audit write never fails
// the request.
func (h *LiabilityHandler) logAudit(ctx context.Context, entityID id.ID, action postgres.AuditAction, changes map[string]any) {
	if h.audit == nil {
		return
	}
	if err := h.audit.LogChange(ctx, liabilityEntity, entityID, action, changes); err != nil {
		logger.Warn(ctx, "audit write failed", "entity", liabilityEntity, "error", err)
	}
}

// Create handles POST /liabilities.
func (h *LiabilityHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateLiabilityRequest
	if !h.BindJSON(c, &req) {
		return
	}

	supplierID, err := id.Parse(req.SupplierID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid supplier id").WithDetail("field", "supplierId"))
		return
	}

	l, err := h.service.Create(ctx, liability.CreateInput{
		SupplierID:  supplierID,
		Type:        liability.LiabilityType(req.LiabilityType),
		Amount:      req.Amount,
		AccrualDate: req.AccrualDate,
		DueDate:     req.DueDate,
		Description: req.Description,
		Number:      req.Number,
		CreatedBy:   h.GetUserID(c),
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	h.logAudit(ctx, l.ID, postgres.AuditActionCreate, map[string]any{
		"number": l.Number,
		"amount": l.Amount,
	})
	h.Created(c, l)
}

// Get handles GET /liabilities/:id.
func (h *LiabilityHandler) Get(c *gin.Context) {
	liabilityID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	l, err := h.service.GetByID(c.Request.Context(), liabilityID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, l)
}

// List handles GET /liabilities.
func (h *LiabilityHandler) List(c *gin.Context) {
	var q dto.LiabilityListQuery
	if !h.BindQuery(c, &q) {
		return
	}

	filter := liability.ListFilter{ListFilter: domain.DefaultListFilter()}
	filter.Search = q.Search
	if q.OrderBy != "" {
		filter.OrderBy = q.OrderBy
	}
	if q.Limit > 0 {
		filter.Limit = q.Limit
	}
	filter.Offset = q.Offset

	if q.SupplierID != "" {
		supplierID, err := id.Parse(q.SupplierID)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid supplier id").WithDetail("field", "supplierId"))
			return
		}
		filter.SupplierID = &supplierID
	}
	if q.Status != "" {
		st := liability.Status(q.Status)
		filter.Status = &st
	}
	if q.LiabilityType != "" {
		lt := liability.LiabilityType(q.LiabilityType)
		filter.Type = &lt
	}
	filter.DueFrom = q.DueFrom
	filter.DueTo = q.DueTo

	result, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

// Update handles PUT /liabilities/:id.
func (h *LiabilityHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()
	liabilityID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateLiabilityRequest
	if !h.BindJSON(c, &req) {
		return
	}

	in := liability.UpdateInput{
		Amount:      req.Amount,
		AccrualDate: req.AccrualDate,
		DueDate:     req.DueDate,
		Description: req.Description,
	}
	if req.LiabilityType != nil {
		lt := liability.LiabilityType(*req.LiabilityType)
		in.Type = &lt
	}

	l, err := h.service.Update(ctx, liabilityID, in)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.logAudit(ctx, l.ID, postgres.AuditActionUpdate, map[string]any{
		"amount": l.Amount,
		"status": l.Status,
	})
	h.OK(c, l)
}

// Cancel handles POST /liabilities/:id/cancel.
func (h *LiabilityHandler) Cancel(c *gin.Context) {
	ctx := c.Request.Context()
	liabilityID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.service.Cancel(ctx, liabilityID); err != nil {
		h.Error(c, err)
		return
	}

	h.logAudit(ctx, liabilityID, postgres.AuditActionCancel, nil)
	h.Success(c, "liability cancelled")
}

// Delete handles DELETE /liabilities/:id.
func (h *LiabilityHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()
	liabilityID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(ctx, liabilityID); err != nil {
		h.Error(c, err)
		return
	}

	h.logAudit(ctx, liabilityID, postgres.AuditActionDelete, nil)
	h.NoContent(c)
}

// LinkPayment handles POST /liabilities/:id/payments.
func (h *LiabilityHandler) LinkPayment(c *gin.Context) {
	ctx := c.Request.Context()
	liabilityID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.LinkPaymentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	paymentID, err := id.Parse(req.PaymentID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid payment id").WithDetail("field", "paymentId"))
		return
	}

	link, err := h.service.LinkPayment(ctx, liabilityID, paymentID, req.Amount)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.logAudit(ctx, liabilityID, postgres.AuditActionLink, map[string]any{
		"paymentId": paymentID.String(),
		"amount":    req.Amount,
	})
	h.Created(c, link)
}

// UnlinkPayment handles DELETE /liabilities/:id/payments/:paymentId.
func (h *LiabilityHandler) UnlinkPayment(c *gin.Context) {
	ctx := c.Request.Context()
	liabilityID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}
	paymentID, ok := h.ParseIDParam(c, "paymentId")
	if !ok {
		return
	}

	if err := h.service.UnlinkPayment(ctx, liabilityID, paymentID); err != nil {
		h.Error(c, err)
		return
	}

	h.logAudit(ctx, liabilityID, postgres.AuditActionUnlink, map[string]any{
		"paymentId": paymentID.String(),
	})
	h.NoContent(c)
}

// ListPayments handles GET /liabilities/:id/payments.
func (h *LiabilityHandler) ListPayments(c *gin.Context) {
	liabilityID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	links, err := h.service.ListPayments(c.Request.Context(), liabilityID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, links)
}

// RegisterRoutes wires liability endpoints.
func (h *LiabilityHandler) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group("/liabilities")
	{
		group.GET("", h.List)
		group.POST("", h.Create)
		group.GET("/:id", h.Get)
		group.PUT("/:id", h.Update)
		group.DELETE("/:id", h.Delete)
		group.POST("/:id/cancel", h.Cancel)
		group.GET("/:id/payments", h.ListPayments)
		group.POST("/:id/payments", h.LinkPayment)
		group.DELETE("/:id/payments/:paymentId", h.UnlinkPayment)
	}
}
