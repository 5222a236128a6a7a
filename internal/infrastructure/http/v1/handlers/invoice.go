package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"payables/internal/core/apperror"
	"payables/internal/core/id"
	"payables/internal/domain"
	"payables/internal/domain/invoice"
	"payables/internal/infrastructure/http/v1/dto"
	"payables/internal/infrastructure/storage/postgres"
	"payables/pkg/logger"
)

const invoiceEntity = "supplier_invoice"

// InvoiceHandler handles supplier invoice endpoints.
type InvoiceHandler struct {
	*BaseHandler
	service *invoice.Service
	audit   *postgres.AuditService
}

// NewInvoiceHandler creates a new invoice handler.
func NewInvoiceHandler(base *BaseHandler, service *invoice.Service, audit *postgres.AuditService) *InvoiceHandler {
	return &InvoiceHandler{BaseHandler: base, service: service, audit: audit}
}

func (h *InvoiceHandler) logAudit(ctx context.Context, entityID id.ID, action postgres.AuditAction, changes map[string]any) {
	if h.audit == nil {
		return
	}
	if err := h.audit.LogChange(ctx, invoiceEntity, entityID, action, changes); err != nil {
		logger.Warn(ctx, "audit write failed", "entity", invoiceEntity, "error", err)
	}
}

func (h *InvoiceHandler) mapItem(c *gin.Context, req dto.InvoiceItemRequest) (invoice.ItemInput, bool) {
	in := invoice.ItemInput{
		MaterialCode: req.MaterialCode,
		Description:  req.Description,
		Quantity:     req.Quantity,
		UnitPrice:    req.UnitPrice,
		UnitCost:     req.UnitCost,
	}
	if req.ProductID != "" {
		productID, err := id.Parse(req.ProductID)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid product id").WithDetail("field", "productId"))
			return in, false
		}
		in.ProductID = &productID
	}
	return in, true
}

// Create handles POST /invoices.
func (h *InvoiceHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateInvoiceRequest
	if !h.BindJSON(c, &req) {
		return
	}

	supplierID, err := id.Parse(req.SupplierID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid supplier id").WithDetail("field", "supplierId"))
		return
	}

	in := invoice.CreateInput{
		Number:      req.Number,
		SupplierID:  supplierID,
		InvoiceDate: req.InvoiceDate,
		DueDate:     req.DueDate,
		TaxAmount:   req.TaxAmount,
		Notes:       req.Notes,
		Received:    req.Received,
		CreatedBy:   h.GetUserID(c),
	}
	if req.PurchaseID != "" {
		purchaseID, err := id.Parse(req.PurchaseID)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid purchase id").WithDetail("field", "purchaseId"))
			return
		}
		in.PurchaseID = &purchaseID
	}
	for _, item := range req.Items {
		mapped, ok := h.mapItem(c, item)
		if !ok {
			return
		}
		in.Items = append(in.Items, mapped)
	}

	inv, err := h.service.Create(ctx, in)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.logAudit(ctx, inv.ID, postgres.AuditActionCreate, map[string]any{
		"number": inv.Number,
		"total":  inv.TotalAmount,
	})
	h.Created(c, inv)
}

// Get handles GET /invoices/:id.
func (h *InvoiceHandler) Get(c *gin.Context) {
	invoiceID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	inv, err := h.service.GetByID(c.Request.Context(), invoiceID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, inv)
}

// List handles GET /invoices.
func (h *InvoiceHandler) List(c *gin.Context) {
	var q dto.InvoiceListQuery
	if !h.BindQuery(c, &q) {
		return
	}

	filter := invoice.ListFilter{ListFilter: domain.DefaultListFilter()}
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
	if q.PurchaseID != "" {
		purchaseID, err := id.Parse(q.PurchaseID)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid purchase id").WithDetail("field", "purchaseId"))
			return
		}
		filter.PurchaseID = &purchaseID
	}
	if q.Status != "" {
		st := invoice.Status(q.Status)
		filter.Status = &st
	}
	if q.PaymentStatus != "" {
		ps := invoice.PaymentStatus(q.PaymentStatus)
		filter.PaymentStatus = &ps
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

// Update handles PUT /invoices/:id.
func (h *InvoiceHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()
	invoiceID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateInvoiceRequest
	if !h.BindJSON(c, &req) {
		return
	}

	inv, err := h.service.Update(ctx, invoiceID, invoice.UpdateInput{
		InvoiceDate: req.InvoiceDate,
		DueDate:     req.DueDate,
		TaxAmount:   req.TaxAmount,
		Notes:       req.Notes,
		Received:    req.Received,
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	h.logAudit(ctx, inv.ID, postgres.AuditActionUpdate, map[string]any{
		"total":  inv.TotalAmount,
		"status": inv.Status,
	})
	h.OK(c, inv)
}

// AddItem handles POST /invoices/:id/items.
func (h *InvoiceHandler) AddItem(c *gin.Context) {
	ctx := c.Request.Context()
	invoiceID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.InvoiceItemRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, ok := h.mapItem(c, req)
	if !ok {
		return
	}

	inv, err := h.service.AddItem(ctx, invoiceID, in)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.logAudit(ctx, inv.ID, postgres.AuditActionUpdate, map[string]any{
		"itemAdded": req.Description,
		"total":     inv.TotalAmount,
	})
	h.OK(c, inv)
}

// UpdateItem handles PUT /invoices/:id/items/:itemId.
func (h *InvoiceHandler) UpdateItem(c *gin.Context) {
	ctx := c.Request.Context()
	invoiceID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}
	itemID, ok := h.ParseIDParam(c, "itemId")
	if !ok {
		return
	}

	var req dto.InvoiceItemRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, ok := h.mapItem(c, req)
	if !ok {
		return
	}

	inv, err := h.service.UpdateItem(ctx, invoiceID, itemID, in)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.logAudit(ctx, inv.ID, postgres.AuditActionUpdate, map[string]any{
		"itemUpdated": itemID.String(),
		"total":       inv.TotalAmount,
	})
	h.OK(c, inv)
}

// DeleteItem handles DELETE /invoices/:id/items/:itemId.
func (h *InvoiceHandler) DeleteItem(c *gin.Context) {
	ctx := c.Request.Context()
	invoiceID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}
	itemID, ok := h.ParseIDParam(c, "itemId")
	if !ok {
		return
	}

	inv, err := h.service.DeleteItem(ctx, invoiceID, itemID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.logAudit(ctx, inv.ID, postgres.AuditActionUpdate, map[string]any{
		"itemDeleted": itemID.String(),
		"total":       inv.TotalAmount,
	})
	h.OK(c, inv)
}

// LinkPayment handles POST /invoices/:id/payments.
func (h *InvoiceHandler) LinkPayment(c *gin.Context) {
	ctx := c.Request.Context()
	invoiceID, ok := h.ParseIDParam(c, "id")
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

	inv, err := h.service.LinkPayment(ctx, invoiceID, paymentID, req.Amount, h.GetUserID(c))
	if err != nil {
		h.Error(c, err)
		return
	}

	h.logAudit(ctx, invoiceID, postgres.AuditActionLink, map[string]any{
		"paymentId": paymentID.String(),
		"amount":    req.Amount,
	})
	h.OK(c, inv)
}

// UnlinkPayment handles DELETE /invoices/:id/payments/:paymentId.
func (h *InvoiceHandler) UnlinkPayment(c *gin.Context) {
	ctx := c.Request.Context()
	invoiceID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}
	paymentID, ok := h.ParseIDParam(c, "paymentId")
	if !ok {
		return
	}

	inv, err := h.service.UnlinkPayment(ctx, invoiceID, paymentID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.logAudit(ctx, invoiceID, postgres.AuditActionUnlink, map[string]any{
		"paymentId": paymentID.String(),
	})
	h.OK(c, inv)
}

// ListPayments handles GET /invoices/:id/payments.
func (h *InvoiceHandler) ListPayments(c *gin.Context) {
	invoiceID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	links, err := h.service.ListPayments(c.Request.Context(), invoiceID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, links)
}

// Cancel handles POST /invoices/:id/cancel.
func (h *InvoiceHandler) Cancel(c *gin.Context) {
	ctx := c.Request.Context()
	invoiceID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.service.Cancel(ctx, invoiceID); err != nil {
		h.Error(c, err)
		return
	}

	h.logAudit(ctx, invoiceID, postgres.AuditActionCancel, nil)
	h.Success(c, "invoice cancelled")
}

// Delete handles DELETE /invoices/:id.
func (h *InvoiceHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()
	invoiceID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(ctx, invoiceID); err != nil {
		h.Error(c, err)
		return
	}

	h.logAudit(ctx, invoiceID, postgres.AuditActionDelete, nil)
	h.NoContent(c)
}

// RegisterRoutes wires invoice endpoints.
func (h *InvoiceHandler) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group("/invoices")
	{
		group.GET("", h.List)
		group.POST("", h.Create)
		group.GET("/:id", h.Get)
		group.PUT("/:id", h.Update)
		group.DELETE("/:id", h.Delete)
		group.POST("/:id/cancel", h.Cancel)
		group.POST("/:id/items", h.AddItem)
		group.PUT("/:id/items/:itemId", h.UpdateItem)
		group.DELETE("/:id/items/:itemId", h.DeleteItem)
		group.GET("/:id/payments", h.ListPayments)
		group.POST("/:id/payments", h.LinkPayment)
		group.DELETE("/:id/payments/:paymentId", h.UnlinkPayment)
	}
}
