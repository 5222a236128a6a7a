package ledger

import (
	"context"
	"testing"
	"time"

	"payables/internal/core/apperror"
	"payables/internal/core/id"
	"payables/internal/core/types"
	"payables/internal/domain"
	"payables/internal/domain/refdata"
)

type passthroughTx struct{}

func (passthroughTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// memoryRepo is an in-memory ledger Repository. Aggregation inputs
// (invoice debt, invoice existence) come from settable fields.
type memoryRepo struct {
	accounts  map[id.ID]*SupplierAccount // keyed by supplier id
	movements map[id.ID]*Movement

	invoiceDebt types.Money
	invoices    map[id.ID]bool

	// winnerAccount, when set, is stored just before CreateAccount reports
	// Conflict, simulating a concurrent creator winning the insert race.
	winnerAccount *SupplierAccount
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		accounts:    make(map[id.ID]*SupplierAccount),
		movements:   make(map[id.ID]*Movement),
		invoiceDebt: types.Zero(),
		invoices:    make(map[id.ID]bool),
	}
}

func (r *memoryRepo) GetAccountBySupplier(_ context.Context, supplierID id.ID) (*SupplierAccount, error) {
	account, ok := r.accounts[supplierID]
	if !ok {
		return nil, apperror.NewNotFound("account", supplierID.String())
	}
	cp := *account
	return &cp, nil
}

func (r *memoryRepo) GetAccountByID(_ context.Context, accountID id.ID) (*SupplierAccount, error) {
	for _, account := range r.accounts {
		if account.ID == accountID {
			cp := *account
			return &cp, nil
		}
	}
	return nil, apperror.NewNotFound("account", accountID.String())
}

func (r *memoryRepo) GetAccountBySupplierForUpdate(ctx context.Context, supplierID id.ID) (*SupplierAccount, error) {
	return r.GetAccountBySupplier(ctx, supplierID)
}

func (r *memoryRepo) CreateAccount(_ context.Context, account *SupplierAccount) error {
	if r.winnerAccount != nil {
		if _, exists := r.accounts[r.winnerAccount.SupplierID]; !exists {
			cp := *r.winnerAccount
			r.accounts[cp.SupplierID] = &cp
		}
	}
	if _, exists := r.accounts[account.SupplierID]; exists {
		return apperror.NewConflict("supplier account already exists")
	}
	cp := *account
	r.accounts[account.SupplierID] = &cp
	return nil
}

func (r *memoryRepo) UpdateAccountBalances(_ context.Context, account *SupplierAccount) error {
	stored, ok := r.accounts[account.SupplierID]
	if !ok {
		return apperror.NewNotFound("account", account.SupplierID.String())
	}
	stored.CommitmentBalance = account.CommitmentBalance
	stored.DebtBalance = account.DebtBalance
	stored.TotalBalance = account.TotalBalance
	return nil
}

func (r *memoryRepo) UpdateCreditLimit(_ context.Context, accountID id.ID, limit types.Money) error {
	for _, account := range r.accounts {
		if account.ID == accountID {
			account.CreditLimit = limit
			return nil
		}
	}
	return apperror.NewNotFound("account", accountID.String())
}

func (r *memoryRepo) CreateMovement(_ context.Context, movement *Movement) error {
	cp := *movement
	r.movements[movement.ID] = &cp
	return nil
}

func (r *memoryRepo) GetMovementByID(_ context.Context, movementID id.ID) (*Movement, error) {
	m, ok := r.movements[movementID]
	if !ok {
		return nil, apperror.NewNotFound("movement", movementID.String())
	}
	cp := *m
	return &cp, nil
}

func (r *memoryRepo) UpdateMovement(_ context.Context, movement *Movement) error {
	m, ok := r.movements[movement.ID]
	if !ok {
		return apperror.NewNotFound("movement", movement.ID.String())
	}
	m.Status = movement.Status
	m.PaymentDate = movement.PaymentDate
	m.Description = movement.Description
	m.UpdatedAt = movement.UpdatedAt
	return nil
}

func (r *memoryRepo) DeleteMovement(_ context.Context, movementID id.ID) error {
	delete(r.movements, movementID)
	return nil
}

func (r *memoryRepo) DeleteMovementsByReference(_ context.Context, kind RefKind, refID id.ID) error {
	for mid, m := range r.movements {
		if m.Kind == kind && m.RefID != nil && *m.RefID == refID {
			delete(r.movements, mid)
		}
	}
	return nil
}

func (r *memoryRepo) ListMovements(_ context.Context, accountID id.ID, filter MovementFilter) (domain.ListResult[*Movement], error) {
	items := make([]*Movement, 0)
	for _, m := range r.movements {
		if m.AccountID == accountID {
			cp := *m
			items = append(items, &cp)
		}
	}
	return domain.ListResult[*Movement]{Items: items, TotalCount: int64(len(items)), Limit: filter.Limit}, nil
}

func (r *memoryRepo) SumInvoiceDebt(_ context.Context, _ id.ID) (types.Money, error) {
	return r.invoiceDebt, nil
}

func (r *memoryRepo) InvoiceExists(_ context.Context, invoiceID id.ID) (bool, error) {
	return r.invoices[invoiceID], nil
}

// stubReader serves supplier lookups and the commitment aggregation input.
type stubReader struct {
	suppliers   map[id.ID]*refdata.Supplier
	purchases   map[id.ID]*refdata.Purchase
	payments    map[id.ID]*refdata.Payment
	commitments types.Money
}

func newStubReader() *stubReader {
	return &stubReader{
		suppliers:   make(map[id.ID]*refdata.Supplier),
		purchases:   make(map[id.ID]*refdata.Purchase),
		payments:    make(map[id.ID]*refdata.Payment),
		commitments: types.Zero(),
	}
}

func (s *stubReader) FindSupplierByID(_ context.Context, supplierID id.ID) (*refdata.Supplier, error) {
	sup, ok := s.suppliers[supplierID]
	if !ok {
		return nil, apperror.NewNotFound("supplier", supplierID.String())
	}
	return sup, nil
}

func (s *stubReader) FindPurchaseByID(_ context.Context, purchaseID id.ID) (*refdata.Purchase, error) {
	p, ok := s.purchases[purchaseID]
	if !ok {
		return nil, apperror.NewNotFound("purchase", purchaseID.String())
	}
	return p, nil
}

func (s *stubReader) FindPaymentByID(_ context.Context, paymentID id.ID) (*refdata.Payment, error) {
	p, ok := s.payments[paymentID]
	if !ok {
		return nil, apperror.NewNotFound("payment", paymentID.String())
	}
	return p, nil
}

func (s *stubReader) FindProductByID(_ context.Context, productID id.ID) (*refdata.Product, error) {
	return nil, apperror.NewNotFound("product", productID.String())
}

func (s *stubReader) FindDeliveryNoteByID(_ context.Context, noteID id.ID) (*refdata.DeliveryNote, error) {
	return nil, apperror.NewNotFound("delivery note", noteID.String())
}

func (s *stubReader) SumOpenCommitments(_ context.Context, _ id.ID) (types.Money, error) {
	return s.commitments, nil
}

func newTestService(t *testing.T) (*Service, *memoryRepo, *stubReader, id.ID) {
	t.Helper()
	repo := newMemoryRepo()
	reader := newStubReader()
	supplierID := id.New()
	reader.suppliers[supplierID] = &refdata.Supplier{ID: supplierID, Name: "Nordic Timber", Code: "NT"}
	return NewService(repo, reader, passthroughTx{}), repo, reader, supplierID
}

func TestRecordCreatesAccountLazily(t *testing.T) {
	svc, repo, reader, supplierID := newTestService(t)
	ctx := context.Background()
	reader.commitments = types.MustMoney("500")

	m, err := svc.Record(ctx, RecordInput{
		SupplierID: supplierID,
		Type:       MovementCommitment,
		Direction:  DirectionDebit,
		Amount:     types.MustMoney("500"),
	})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	if !m.BalanceAfter.Equal(types.MustMoney("500")) {
		t.Errorf("balance_after = %s, want 500", m.BalanceAfter)
	}
	if m.Status != MovementCompleted {
		t.Errorf("status = %s, want %s (default)", m.Status, MovementCompleted)
	}

	account, err := repo.GetAccountBySupplier(ctx, supplierID)
	if err != nil {
		t.Fatalf("account not created: %v", err)
	}
	if !account.CommitmentBalance.Equal(types.MustMoney("500")) {
		t.Errorf("commitment = %s, want 500", account.CommitmentBalance)
	}
	if !account.TotalBalance.Equal(types.MustMoney("500")) {
		t.Errorf("total = %s, want 500", account.TotalBalance)
	}
}

func TestRecordRecoversLostCreateRace(t *testing.T) {
	svc, repo, reader, supplierID := newTestService(t)
	ctx := context.Background()
	reader.commitments = types.MustMoney("250")

	// A concurrent writer lands the account row first; the insert reports
	// Conflict and the flow must continue on the winner's row.
	winner := NewSupplierAccount(supplierID)
	repo.winnerAccount = winner

	m, err := svc.Record(ctx, RecordInput{
		SupplierID: supplierID,
		Type:       MovementCommitment,
		Direction:  DirectionDebit,
		Amount:     types.MustMoney("250"),
	})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if m.AccountID != winner.ID {
		t.Errorf("movement account = %s, want the winner's %s", m.AccountID, winner.ID)
	}

	account, err := repo.GetAccountBySupplier(ctx, supplierID)
	if err != nil {
		t.Fatalf("account lookup error = %v", err)
	}
	if account.ID != winner.ID {
		t.Errorf("account id = %s, want the winner's %s", account.ID, winner.ID)
	}
	if !account.CommitmentBalance.Equal(types.MustMoney("250")) {
		t.Errorf("commitment = %s, want 250", account.CommitmentBalance)
	}
}

func TestRecordBalanceAfterSnapshot(t *testing.T) {
	svc, _, reader, supplierID := newTestService(t)
	ctx := context.Background()

	// First debit lands on an empty account.
	reader.commitments = types.MustMoney("300")
	first, err := svc.Record(ctx, RecordInput{
		SupplierID: supplierID,
		Type:       MovementCommitment,
		Direction:  DirectionDebit,
		Amount:     types.MustMoney("300"),
	})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if !first.BalanceAfter.Equal(types.MustMoney("300")) {
		t.Errorf("first balance_after = %s, want 300", first.BalanceAfter)
	}

	// A credit movement snapshots against the recomputed total.
	credit, err := svc.Record(ctx, RecordInput{
		SupplierID: supplierID,
		Type:       MovementPayment,
		Direction:  DirectionCredit,
		Amount:     types.MustMoney("120"),
	})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if !credit.BalanceAfter.Equal(types.MustMoney("180")) {
		t.Errorf("credit balance_after = %s, want 180", credit.BalanceAfter)
	}
}

func TestRecordValidatesReference(t *testing.T) {
	svc, repo, _, supplierID := newTestService(t)
	ctx := context.Background()

	_, err := svc.Record(ctx, RecordInput{
		SupplierID: supplierID,
		Type:       MovementDebt,
		Direction:  DirectionDebit,
		Amount:     types.MustMoney("100"),
		Reference:  NewReference(RefInvoice, id.New()),
	})
	if !apperror.IsNotFound(err) {
		t.Fatalf("Record() with dangling invoice ref error = %v, want not found", err)
	}

	invoiceID := id.New()
	repo.invoices[invoiceID] = true
	if _, err := svc.Record(ctx, RecordInput{
		SupplierID: supplierID,
		Type:       MovementDebt,
		Direction:  DirectionDebit,
		Amount:     types.MustMoney("100"),
		Reference:  NewReference(RefInvoice, invoiceID),
	}); err != nil {
		t.Fatalf("Record() with valid invoice ref error = %v", err)
	}
}

func TestRecordUnknownSupplier(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, err := svc.Record(context.Background(), RecordInput{
		SupplierID: id.New(),
		Type:       MovementDebt,
		Direction:  DirectionDebit,
		Amount:     types.MustMoney("100"),
	})
	if !apperror.IsNotFound(err) {
		t.Fatalf("Record() error = %v, want not found", err)
	}
}

func TestGetSummaryZeroWithoutAccount(t *testing.T) {
	svc, _, _, supplierID := newTestService(t)

	summary, err := svc.GetSummary(context.Background(), supplierID)
	if err != nil {
		t.Fatalf("GetSummary() error = %v", err)
	}
	if !summary.TotalBalance.IsZero() || !summary.CreditLimit.IsZero() {
		t.Errorf("summary = %+v, want all zero", summary)
	}
}

func TestRecomputeDerivesFromSources(t *testing.T) {
	svc, repo, reader, supplierID := newTestService(t)
	ctx := context.Background()

	reader.commitments = types.MustMoney("1000")
	repo.invoiceDebt = types.MustMoney("350.25")

	account, err := svc.Recompute(ctx, supplierID)
	if err != nil {
		t.Fatalf("Recompute() error = %v", err)
	}
	if !account.CommitmentBalance.Equal(types.MustMoney("1000")) {
		t.Errorf("commitment = %s, want 1000", account.CommitmentBalance)
	}
	if !account.DebtBalance.Equal(types.MustMoney("350.25")) {
		t.Errorf("debt = %s, want 350.25", account.DebtBalance)
	}
	if !account.TotalBalance.Equal(types.MustMoney("1350.25")) {
		t.Errorf("total = %s, want 1350.25", account.TotalBalance)
	}

	// Idempotent: a second run changes nothing.
	again, err := svc.Recompute(ctx, supplierID)
	if err != nil {
		t.Fatalf("second Recompute() error = %v", err)
	}
	if !again.TotalBalance.Equal(account.TotalBalance) {
		t.Errorf("second total = %s, want %s", again.TotalBalance, account.TotalBalance)
	}
}

func TestDeleteMovementRecomputes(t *testing.T) {
	svc, repo, reader, supplierID := newTestService(t)
	ctx := context.Background()

	reader.commitments = types.MustMoney("200")
	m, err := svc.Record(ctx, RecordInput{
		SupplierID: supplierID,
		Type:       MovementCommitment,
		Direction:  DirectionDebit,
		Amount:     types.MustMoney("200"),
	})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	// The source document is gone; the recompute must see zero.
	reader.commitments = types.Zero()
	if err := svc.DeleteMovement(ctx, m.ID); err != nil {
		t.Fatalf("DeleteMovement() error = %v", err)
	}

	account, _ := repo.GetAccountBySupplier(ctx, supplierID)
	if !account.TotalBalance.IsZero() {
		t.Errorf("total = %s, want 0 after delete", account.TotalBalance)
	}
	if _, err := repo.GetMovementByID(ctx, m.ID); !apperror.IsNotFound(err) {
		t.Errorf("movement still present after delete")
	}
}

func TestRemoveReference(t *testing.T) {
	svc, repo, reader, supplierID := newTestService(t)
	ctx := context.Background()

	invoiceID := id.New()
	repo.invoices[invoiceID] = true
	repo.invoiceDebt = types.MustMoney("400")

	if _, err := svc.Record(ctx, RecordInput{
		SupplierID: supplierID,
		Type:       MovementDebt,
		Direction:  DirectionDebit,
		Amount:     types.MustMoney("400"),
		Reference:  NewReference(RefInvoice, invoiceID),
	}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	repo.invoiceDebt = types.Zero()
	reader.commitments = types.Zero()
	if err := svc.RemoveReference(ctx, supplierID, RefInvoice, invoiceID); err != nil {
		t.Fatalf("RemoveReference() error = %v", err)
	}

	if len(repo.movements) != 0 {
		t.Errorf("movements remaining = %d, want 0", len(repo.movements))
	}
	account, _ := repo.GetAccountBySupplier(ctx, supplierID)
	if !account.TotalBalance.IsZero() {
		t.Errorf("total = %s, want 0", account.TotalBalance)
	}
}

func TestSetCreditLimit(t *testing.T) {
	svc, _, _, supplierID := newTestService(t)
	ctx := context.Background()

	if _, err := svc.SetCreditLimit(ctx, supplierID, types.MustMoney("-1")); err == nil {
		t.Error("SetCreditLimit(-1) succeeded, want validation error")
	}

	account, err := svc.SetCreditLimit(ctx, supplierID, types.MustMoney("10000"))
	if err != nil {
		t.Fatalf("SetCreditLimit() error = %v", err)
	}
	if !account.CreditLimit.Equal(types.MustMoney("10000")) {
		t.Errorf("limit = %s, want 10000", account.CreditLimit)
	}

	summary, err := svc.GetSummary(ctx, supplierID)
	if err != nil {
		t.Fatalf("GetSummary() error = %v", err)
	}
	if !summary.AvailableCredit.Equal(types.MustMoney("10000")) {
		t.Errorf("available = %s, want 10000", summary.AvailableCredit)
	}
}

func TestUpdateMovementEditableFieldsOnly(t *testing.T) {
	svc, _, reader, supplierID := newTestService(t)
	ctx := context.Background()
	reader.commitments = types.MustMoney("100")

	m, err := svc.Record(ctx, RecordInput{
		SupplierID: supplierID,
		Type:       MovementCommitment,
		Direction:  DirectionDebit,
		Amount:     types.MustMoney("100"),
		Status:     MovementPending,
	})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	completed := MovementCompleted
	when := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	desc := "settled by wire"
	updated, err := svc.UpdateMovement(ctx, m.ID, UpdateMovementInput{
		Status:      &completed,
		PaymentDate: &when,
		Description: &desc,
	})
	if err != nil {
		t.Fatalf("UpdateMovement() error = %v", err)
	}
	if updated.Status != MovementCompleted || updated.Description != desc {
		t.Errorf("updated = %+v", updated)
	}

	bad := MovementStatus("archived")
	if _, err := svc.UpdateMovement(ctx, m.ID, UpdateMovementInput{Status: &bad}); err == nil {
		t.Error("UpdateMovement() with unknown status succeeded, want error")
	}
}
