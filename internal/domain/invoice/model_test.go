package invoice

import (
	"testing"
	"time"

	"payables/internal/core/id"
	"payables/internal/core/types"
)

func TestRecalculateTotalsDefaultTax(t *testing.T) {
	inv := NewSupplierInvoice(id.New(), time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))

	inv.AddItem(Item{Description: "steel sheet", Quantity: types.MustMoney("2"), UnitPrice: types.MustMoney("50")})
	inv.AddItem(Item{Description: "bolts", Quantity: types.MustMoney("1"), UnitPrice: types.MustMoney("25")})

	if !inv.Subtotal.Equal(types.MustMoney("125")) {
		t.Errorf("subtotal = %s, want 125", inv.Subtotal)
	}
	if !inv.TaxAmount.Equal(types.MustMoney("26.25")) {
		t.Errorf("tax = %s, want 26.25", inv.TaxAmount)
	}
	if !inv.TotalAmount.Equal(types.MustMoney("151.25")) {
		t.Errorf("total = %s, want 151.25", inv.TotalAmount)
	}
}

func TestRecalculateTotalsExplicitTax(t *testing.T) {
	inv := NewSupplierInvoice(id.New(), time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	inv.AddItem(Item{Description: "consulting", Quantity: types.MustMoney("10"), UnitPrice: types.MustMoney("100")})
	inv.SetTax(types.MustMoney("0"))

	if !inv.TotalAmount.Equal(types.MustMoney("1000")) {
		t.Errorf("total = %s, want 1000 with explicit zero tax", inv.TotalAmount)
	}

	// Further item mutations keep the explicit tax instead of the default.
	inv.AddItem(Item{Description: "travel", Quantity: types.MustMoney("1"), UnitPrice: types.MustMoney("200")})
	if !inv.TaxAmount.IsZero() {
		t.Errorf("tax = %s, want 0 after item change", inv.TaxAmount)
	}
	if !inv.TotalAmount.Equal(types.MustMoney("1200")) {
		t.Errorf("total = %s, want 1200", inv.TotalAmount)
	}
}

func TestAddItemNumbersLines(t *testing.T) {
	inv := NewSupplierInvoice(id.New(), time.Now())
	inv.AddItem(Item{Description: "a", Quantity: types.MustMoney("1"), UnitPrice: types.MustMoney("1")})
	inv.AddItem(Item{Description: "b", Quantity: types.MustMoney("1"), UnitPrice: types.MustMoney("1")})

	if inv.Items[0].LineNo != 1 || inv.Items[1].LineNo != 2 {
		t.Errorf("line numbers = %d, %d, want 1, 2", inv.Items[0].LineNo, inv.Items[1].LineNo)
	}
	if inv.Items[1].InvoiceID != inv.ID {
		t.Error("item not bound to invoice")
	}
}
