package handlers

import (
	"github.com/gin-gonic/gin"

	"payables/internal/core/apperror"
	"payables/internal/core/id"
	"payables/internal/domain"
	"payables/internal/domain/ledger"
	"payables/internal/infrastructure/http/v1/dto"
)

// AccountHandler handles supplier account and journal endpoints.
type AccountHandler struct {
	*BaseHandler
	service *ledger.Service
}

// NewAccountHandler creates a new account handler.
func NewAccountHandler(base *BaseHandler, service *ledger.Service) *AccountHandler {
	return &AccountHandler{BaseHandler: base, service: service}
}

// GetSummary handles GET /suppliers/:supplierId/account.
func (h *AccountHandler) GetSummary(c *gin.Context) {
	supplierID, ok := h.ParseIDParam(c, "supplierId")
	if !ok {
		return
	}

	summary, err := h.service.GetSummary(c.Request.Context(), supplierID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, summary)
}

// Recompute handles POST /suppliers/:supplierId/account/recompute.
// Rebuilds the balances from live source documents.
func (h *AccountHandler) Recompute(c *gin.Context) {
	supplierID, ok := h.ParseIDParam(c, "supplierId")
	if !ok {
		return
	}

	account, err := h.service.Recompute(c.Request.Context(), supplierID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, account)
}

// SetCreditLimit handles PUT /suppliers/:supplierId/account/credit-limit.
func (h *AccountHandler) SetCreditLimit(c *gin.Context) {
	supplierID, ok := h.ParseIDParam(c, "supplierId")
	if !ok {
		return
	}

	var req dto.SetCreditLimitRequest
	if !h.BindJSON(c, &req) {
		return
	}

	account, err := h.service.SetCreditLimit(c.Request.Context(), supplierID, req.CreditLimit)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, account)
}

// ListMovements handles GET /suppliers/:supplierId/movements.
func (h *AccountHandler) ListMovements(c *gin.Context) {
	supplierID, ok := h.ParseIDParam(c, "supplierId")
	if !ok {
		return
	}

	var q dto.MovementListQuery
	if !h.BindQuery(c, &q) {
		return
	}

	filter := ledger.MovementFilter{ListFilter: domain.DefaultListFilter()}
	filter.Search = q.Search
	if q.Limit > 0 {
		filter.Limit = q.Limit
	}
	filter.Offset = q.Offset
	if q.MovementType != "" {
		mt := ledger.MovementType(q.MovementType)
		filter.Type = &mt
	}
	if q.Direction != "" {
		d := ledger.Direction(q.Direction)
		filter.Direction = &d
	}
	if q.Status != "" {
		st := ledger.MovementStatus(q.Status)
		filter.Status = &st
	}
	if q.ReferenceType != "" {
		rk := ledger.RefKind(q.ReferenceType)
		filter.RefKind = &rk
	}
	filter.DateFrom = q.DateFrom
	filter.DateTo = q.DateTo

	result, err := h.service.ListMovements(c.Request.Context(), supplierID, filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

// RecordMovement handles POST /suppliers/:supplierId/movements.
func (h *AccountHandler) RecordMovement(c *gin.Context) {
	supplierID, ok := h.ParseIDParam(c, "supplierId")
	if !ok {
		return
	}

	var req dto.RecordMovementRequest
	if !h.BindJSON(c, &req) {
		return
	}
	if req.SupplierID != supplierID.String() {
		h.Error(c, apperror.NewValidation("supplier in body does not match path").
			WithDetail("field", "supplierId"))
		return
	}

	in := ledger.RecordInput{
		SupplierID:  supplierID,
		Type:        ledger.MovementType(req.MovementType),
		Direction:   ledger.Direction(req.Direction),
		Amount:      req.Amount,
		Status:      ledger.MovementStatus(req.Status),
		Description: req.Description,
		DueDate:     req.DueDate,
		PaymentDate: req.PaymentDate,
		CreatedBy:   h.GetUserID(c),
	}
	if req.ReferenceID != "" {
		refID, err := id.Parse(req.ReferenceID)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid reference id").WithDetail("field", "referenceId"))
			return
		}
		in.Reference = ledger.NewReference(ledger.RefKind(req.ReferenceType), refID)
	}

	movement, err := h.service.Record(c.Request.Context(), in)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, movement)
}

// UpdateMovement handles PUT /movements/:id.
func (h *AccountHandler) UpdateMovement(c *gin.Context) {
	movementID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateMovementRequest
	if !h.BindJSON(c, &req) {
		return
	}

	in := ledger.UpdateMovementInput{
		PaymentDate: req.PaymentDate,
		Description: req.Description,
	}
	if req.Status != nil {
		st := ledger.MovementStatus(*req.Status)
		in.Status = &st
	}

	movement, err := h.service.UpdateMovement(c.Request.Context(), movementID, in)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, movement)
}

// DeleteMovement handles DELETE /movements/:id.
func (h *AccountHandler) DeleteMovement(c *gin.Context) {
	movementID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteMovement(c.Request.Context(), movementID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// RegisterRoutes wires account and movement endpoints.
func (h *AccountHandler) RegisterRoutes(rg *gin.RouterGroup) {
	suppliers := rg.Group("/suppliers/:supplierId")
	{
		suppliers.GET("/account", h.GetSummary)
		suppliers.POST("/account/recompute", h.Recompute)
		suppliers.PUT("/account/credit-limit", h.SetCreditLimit)
		suppliers.GET("/movements", h.ListMovements)
		suppliers.POST("/movements", h.RecordMovement)
	}

	movements := rg.Group("/movements")
	{
		movements.PUT("/:id", h.UpdateMovement)
		movements.DELETE("/:id", h.DeleteMovement)
	}
}
