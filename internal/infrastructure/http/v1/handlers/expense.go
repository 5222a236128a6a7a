package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"payables/internal/core/apperror"
	"payables/internal/core/id"
	"payables/internal/domain"
	"payables/internal/domain/expense"
	"payables/internal/infrastructure/http/v1/dto"
	"payables/internal/infrastructure/storage/postgres"
	"payables/pkg/logger"
)

const expenseEntity = "supplier_expense"

// ExpenseHandler handles supplier expense endpoints.
type ExpenseHandler struct {
	*BaseHandler
	service *expense.Service
	audit   *postgres.AuditService
}

// NewExpenseHandler creates a new expense handler.
func NewExpenseHandler(base *BaseHandler, service *expense.Service, audit *postgres.AuditService) *ExpenseHandler {
	return &ExpenseHandler{BaseHandler: base, service: service, audit: audit}
}

func (h *ExpenseHandler) logAudit(ctx context.Context, entityID id.ID, action postgres.AuditAction, changes map[string]any) {
	if h.audit == nil {
		return
	}
	if err := h.audit.LogChange(ctx, expenseEntity, entityID, action, changes); err != nil {
		logger.Warn(ctx, "audit write failed", "entity", expenseEntity, "error", err)
	}
}

// Create handles POST /expenses.
func (h *ExpenseHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateExpenseRequest
	if !h.BindJSON(c, &req) {
		return
	}

	in := expense.CreateInput{
		Number:      req.Number,
		Category:    req.Category,
		Description: req.Description,
		Amount:      req.Amount,
		ExpenseDate: req.ExpenseDate,
		CreatedBy:   h.GetUserID(c),
	}
	if req.SupplierID != "" {
		supplierID, err := id.Parse(req.SupplierID)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid supplier id").WithDetail("field", "supplierId"))
			return
		}
		in.SupplierID = &supplierID
	}

	exp, err := h.service.Create(ctx, in)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.logAudit(ctx, exp.ID, postgres.AuditActionCreate, map[string]any{
		"number": exp.Number,
		"amount": exp.Amount,
	})
	h.Created(c, exp)
}

// Get handles GET /expenses/:id.
func (h *ExpenseHandler) Get(c *gin.Context) {
	expenseID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	exp, err := h.service.GetByID(c.Request.Context(), expenseID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, exp)
}

// List handles GET /expenses.
func (h *ExpenseHandler) List(c *gin.Context) {
	var q dto.ExpenseListQuery
	if !h.BindQuery(c, &q) {
		return
	}

	filter := expense.ListFilter{ListFilter: domain.DefaultListFilter()}
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
	if q.InvoiceID != "" {
		invoiceID, err := id.Parse(q.InvoiceID)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid invoice id").WithDetail("field", "invoiceId"))
			return
		}
		filter.InvoiceID = &invoiceID
	}
	if q.Category != "" {
		filter.Category = &q.Category
	}
	filter.DateFrom = q.DateFrom
	filter.DateTo = q.DateTo

	result, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

// Update handles PUT /expenses/:id.
func (h *ExpenseHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()
	expenseID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateExpenseRequest
	if !h.BindJSON(c, &req) {
		return
	}

	exp, err := h.service.Update(ctx, expenseID, expense.UpdateInput{
		Category:    req.Category,
		Description: req.Description,
		Amount:      req.Amount,
		ExpenseDate: req.ExpenseDate,
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	h.logAudit(ctx, exp.ID, postgres.AuditActionUpdate, map[string]any{
		"amount": exp.Amount,
	})
	h.OK(c, exp)
}

// LinkInvoice handles POST /expenses/:id/invoice.
func (h *ExpenseHandler) LinkInvoice(c *gin.Context) {
	ctx := c.Request.Context()
	expenseID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.LinkInvoiceRequest
	if !h.BindJSON(c, &req) {
		return
	}
	invoiceID, err := id.Parse(req.InvoiceID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid invoice id").WithDetail("field", "invoiceId"))
		return
	}

	exp, err := h.service.LinkInvoice(ctx, expenseID, invoiceID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.logAudit(ctx, expenseID, postgres.AuditActionLink, map[string]any{
		"invoiceId": invoiceID.String(),
	})
	h.OK(c, exp)
}

// UnlinkInvoice handles DELETE /expenses/:id/invoice.
func (h *ExpenseHandler) UnlinkInvoice(c *gin.Context) {
	ctx := c.Request.Context()
	expenseID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	exp, err := h.service.UnlinkInvoice(ctx, expenseID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.logAudit(ctx, expenseID, postgres.AuditActionUnlink, nil)
	h.OK(c, exp)
}

// Delete handles DELETE /expenses/:id.
func (h *ExpenseHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()
	expenseID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(ctx, expenseID); err != nil {
		h.Error(c, err)
		return
	}

	h.logAudit(ctx, expenseID, postgres.AuditActionDelete, nil)
	h.NoContent(c)
}

// RegisterRoutes wires expense endpoints.
func (h *ExpenseHandler) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group("/expenses")
	{
		group.GET("", h.List)
		group.POST("", h.Create)
		group.GET("/:id", h.Get)
		group.PUT("/:id", h.Update)
		group.DELETE("/:id", h.Delete)
		group.POST("/:id/invoice", h.LinkInvoice)
		group.DELETE("/:id/invoice", h.UnlinkInvoice)
	}
}
