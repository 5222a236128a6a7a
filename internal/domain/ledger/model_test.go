package ledger

import (
	"context"
	"testing"

	"payables/internal/core/id"
	"payables/internal/core/types"
)

func TestBalanceAfterFrom(t *testing.T) {
	tests := []struct {
		name      string
		current   string
		amount    string
		direction Direction
		want      string
	}{
		{"debit increases owed", "1000", "250", DirectionDebit, "1250"},
		{"credit decreases owed", "1000", "250", DirectionCredit, "750"},
		{"credit below zero allowed", "100", "250", DirectionCredit, "-150"},
		{"debit from zero", "0", "99.95", DirectionDebit, "99.95"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BalanceAfterFrom(types.MustMoney(tt.current), types.MustMoney(tt.amount), tt.direction)
			if !got.Equal(types.MustMoney(tt.want)) {
				t.Errorf("BalanceAfterFrom() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSetBalancesKeepsTotalInvariant(t *testing.T) {
	account := NewSupplierAccount(id.New())
	account.SetBalances(types.MustMoney("300"), types.MustMoney("450.50"))

	if !account.TotalBalance.Equal(account.CommitmentBalance.Add(account.DebtBalance)) {
		t.Errorf("total = %s, want commitment+debt = %s",
			account.TotalBalance, account.CommitmentBalance.Add(account.DebtBalance))
	}
	if !account.TotalBalance.Equal(types.MustMoney("750.50")) {
		t.Errorf("total = %s, want 750.50", account.TotalBalance)
	}
}

func TestAvailableCredit(t *testing.T) {
	account := NewSupplierAccount(id.New())
	account.CreditLimit = types.MustMoney("5000")
	account.SetBalances(types.MustMoney("1000"), types.MustMoney("2500"))

	if !account.AvailableCredit().Equal(types.MustMoney("1500")) {
		t.Errorf("available = %s, want 1500", account.AvailableCredit())
	}
}

func TestMovementValidate(t *testing.T) {
	valid := func() *Movement {
		return &Movement{
			ID:        id.New(),
			AccountID: id.New(),
			Type:      MovementDebt,
			Direction: DirectionDebit,
			Amount:    types.MustMoney("100"),
			Status:    MovementCompleted,
		}
	}

	tests := []struct {
		name    string
		mutate  func(m *Movement)
		wantErr bool
	}{
		{"valid", func(m *Movement) {}, false},
		{"valid with reference", func(m *Movement) { m.Reference = NewReference(RefInvoice, id.New()) }, false},
		{"missing account", func(m *Movement) { m.AccountID = id.Nil() }, true},
		{"unknown type", func(m *Movement) { m.Type = "transfer" }, true},
		{"unknown direction", func(m *Movement) { m.Direction = "sideways" }, true},
		{"zero amount", func(m *Movement) { m.Amount = types.Zero() }, true},
		{"negative amount", func(m *Movement) { m.Amount = types.MustMoney("-5") }, true},
		{"reference type without id", func(m *Movement) { m.Reference = Reference{Kind: RefPurchase} }, true},
		{"unknown reference type", func(m *Movement) { m.Reference = NewReference("voucher", id.New()) }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := valid()
			tt.mutate(m)
			err := m.Validate(context.Background())
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSignedAmount(t *testing.T) {
	m := &Movement{Amount: types.MustMoney("100"), Direction: DirectionCredit}
	if !m.SignedAmount().Equal(types.MustMoney("-100")) {
		t.Errorf("SignedAmount() = %s, want -100", m.SignedAmount())
	}
	m.Direction = DirectionDebit
	if !m.SignedAmount().Equal(types.MustMoney("100")) {
		t.Errorf("SignedAmount() = %s, want 100", m.SignedAmount())
	}
}
