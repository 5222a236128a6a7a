package invoice

import (
	"context"
	"testing"
	"time"

	"payables/internal/core/apperror"
	"payables/internal/core/id"
	"payables/internal/core/numerator"
	"payables/internal/core/types"
	"payables/internal/domain"
	"payables/internal/domain/ledger"
	"payables/internal/domain/refdata"
)

type passthroughTx struct{}

func (passthroughTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// memoryRepo is an in-memory invoice Repository.
type memoryRepo struct {
	invoices     map[id.ID]*SupplierInvoice
	items        map[id.ID][]Item
	links        map[id.ID][]PaymentLink
	expenseLinks map[id.ID]bool
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		invoices:     make(map[id.ID]*SupplierInvoice),
		items:        make(map[id.ID][]Item),
		links:        make(map[id.ID][]PaymentLink),
		expenseLinks: make(map[id.ID]bool),
	}
}

func (r *memoryRepo) Create(_ context.Context, inv *SupplierInvoice) error {
	cp := *inv
	cp.Items = nil
	r.invoices[inv.ID] = &cp
	r.items[inv.ID] = append([]Item(nil), inv.Items...)
	return nil
}

func (r *memoryRepo) GetByID(_ context.Context, invoiceID id.ID) (*SupplierInvoice, error) {
	inv, ok := r.invoices[invoiceID]
	if !ok {
		return nil, apperror.NewNotFound("invoice", invoiceID.String())
	}
	cp := *inv
	return &cp, nil
}

func (r *memoryRepo) GetByIDForUpdate(ctx context.Context, invoiceID id.ID) (*SupplierInvoice, error) {
	return r.GetByID(ctx, invoiceID)
}

func (r *memoryRepo) GetByNumber(_ context.Context, number string) (*SupplierInvoice, error) {
	for _, inv := range r.invoices {
		if inv.Number == number {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, apperror.NewNotFound("invoice", number)
}

func (r *memoryRepo) Update(_ context.Context, inv *SupplierInvoice) error {
	stored, ok := r.invoices[inv.ID]
	if !ok {
		return apperror.NewNotFound("invoice", inv.ID.String())
	}
	// Mirrors the optimistic lock: match the loaded version, bump the stored one.
	if inv.Version != stored.Version {
		return apperror.NewConcurrentModification("supplier_invoices", inv.ID.String())
	}
	cp := *inv
	cp.Items = nil
	cp.Version++
	r.invoices[inv.ID] = &cp
	return nil
}

func (r *memoryRepo) UpdateStatus(_ context.Context, invoiceID id.ID, status Status, paymentStatus PaymentStatus) error {
	inv, ok := r.invoices[invoiceID]
	if !ok {
		return apperror.NewNotFound("invoice", invoiceID.String())
	}
	inv.Status = status
	inv.PaymentStatus = paymentStatus
	return nil
}

func (r *memoryRepo) Delete(_ context.Context, invoiceID id.ID) error {
	delete(r.invoices, invoiceID)
	delete(r.items, invoiceID)
	return nil
}

func (r *memoryRepo) List(_ context.Context, _ ListFilter) (*domain.ListResult[SupplierInvoice], error) {
	items := make([]SupplierInvoice, 0, len(r.invoices))
	for _, inv := range r.invoices {
		items = append(items, *inv)
	}
	return &domain.ListResult[SupplierInvoice]{Items: items, TotalCount: int64(len(items))}, nil
}

func (r *memoryRepo) SaveItems(_ context.Context, invoiceID id.ID, items []Item) error {
	r.items[invoiceID] = append([]Item(nil), items...)
	return nil
}

func (r *memoryRepo) GetItems(_ context.Context, invoiceID id.ID) ([]Item, error) {
	return append([]Item(nil), r.items[invoiceID]...), nil
}

func (r *memoryRepo) HasExpenseLink(_ context.Context, invoiceID id.ID) (bool, error) {
	return r.expenseLinks[invoiceID], nil
}

func (r *memoryRepo) CreateLink(_ context.Context, link *PaymentLink) error {
	r.links[link.InvoiceID] = append(r.links[link.InvoiceID], *link)
	return nil
}

func (r *memoryRepo) DeleteLink(_ context.Context, invoiceID, paymentID id.ID) error {
	links := r.links[invoiceID]
	for i, link := range links {
		if link.PaymentID == paymentID {
			r.links[invoiceID] = append(links[:i], links[i+1:]...)
			return nil
		}
	}
	return apperror.NewNotFound("allocation", paymentID.String())
}

func (r *memoryRepo) GetLink(_ context.Context, invoiceID, paymentID id.ID) (*PaymentLink, error) {
	for _, link := range r.links[invoiceID] {
		if link.PaymentID == paymentID {
			cp := link
			return &cp, nil
		}
	}
	return nil, apperror.NewNotFound("allocation", paymentID.String())
}

func (r *memoryRepo) ListLinks(_ context.Context, invoiceID id.ID) ([]PaymentLink, error) {
	return append([]PaymentLink(nil), r.links[invoiceID]...), nil
}

func (r *memoryRepo) SumLinks(_ context.Context, invoiceID id.ID) (types.Money, error) {
	sum := types.Zero()
	for _, link := range r.links[invoiceID] {
		sum = sum.Add(link.Amount)
	}
	return sum, nil
}

// fakeLedger records the calls the invoice flows make to the journal.
type fakeLedger struct {
	recorded   []ledger.RecordInput
	recomputes int
	removed    []id.ID
}

func (f *fakeLedger) Record(_ context.Context, in ledger.RecordInput) (*ledger.Movement, error) {
	f.recorded = append(f.recorded, in)
	return &ledger.Movement{ID: id.New()}, nil
}

func (f *fakeLedger) Recompute(_ context.Context, _ id.ID) (*ledger.SupplierAccount, error) {
	f.recomputes++
	return &ledger.SupplierAccount{}, nil
}

func (f *fakeLedger) RemoveReference(_ context.Context, _ id.ID, _ ledger.RefKind, refID id.ID) error {
	f.removed = append(f.removed, refID)
	return nil
}

// stubReader holds the external records invoice flows resolve.
type stubReader struct {
	suppliers map[id.ID]*refdata.Supplier
	purchases map[id.ID]*refdata.Purchase
	payments  map[id.ID]*refdata.Payment
	products  map[id.ID]*refdata.Product
}

func newStubReader() *stubReader {
	return &stubReader{
		suppliers: make(map[id.ID]*refdata.Supplier),
		purchases: make(map[id.ID]*refdata.Purchase),
		payments:  make(map[id.ID]*refdata.Payment),
		products:  make(map[id.ID]*refdata.Product),
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
	p, ok := s.products[productID]
	if !ok {
		return nil, apperror.NewNotFound("product", productID.String())
	}
	return p, nil
}

func (s *stubReader) FindDeliveryNoteByID(_ context.Context, noteID id.ID) (*refdata.DeliveryNote, error) {
	return nil, apperror.NewNotFound("delivery note", noteID.String())
}

func (s *stubReader) SumOpenCommitments(_ context.Context, _ id.ID) (types.Money, error) {
	return types.Zero(), nil
}

type fixture struct {
	svc        *Service
	repo       *memoryRepo
	reader     *stubReader
	journal    *fakeLedger
	supplierID id.ID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := newMemoryRepo()
	reader := newStubReader()
	journal := &fakeLedger{}
	supplierID := id.New()
	reader.suppliers[supplierID] = &refdata.Supplier{ID: supplierID, Name: "Baltic Paper", Code: "BP"}
	svc := NewService(repo, reader, journal, &numerator.MockGenerator{}, passthroughTx{})
	return &fixture{svc: svc, repo: repo, reader: reader, journal: journal, supplierID: supplierID}
}

func (f *fixture) createInvoice(t *testing.T, items ...ItemInput) *SupplierInvoice {
	t.Helper()
	inv, err := f.svc.Create(context.Background(), CreateInput{
		SupplierID:  f.supplierID,
		InvoiceDate: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Items:       items,
		Received:    true,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return inv
}

func (f *fixture) addPayment(amount string) id.ID {
	paymentID := id.New()
	f.reader.payments[paymentID] = &refdata.Payment{
		ID:          paymentID,
		SupplierID:  &f.supplierID,
		Amount:      types.MustMoney(amount),
		Type:        refdata.PaymentOutflow,
		Status:      refdata.PaymentPosted,
		PaymentDate: time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC),
	}
	return paymentID
}

func TestCreateRecordsDebtMovement(t *testing.T) {
	f := newFixture(t)

	inv := f.createInvoice(t,
		ItemInput{Description: "paper rolls", Quantity: types.MustMoney("2"), UnitPrice: types.MustMoney("50")},
		ItemInput{Description: "ink", Quantity: types.MustMoney("1"), UnitPrice: types.MustMoney("25")},
	)

	if inv.Number != "SINV-202500001" {
		t.Errorf("number = %s, want SINV-202500001", inv.Number)
	}
	if !inv.TotalAmount.Equal(types.MustMoney("151.25")) {
		t.Errorf("total = %s, want 151.25", inv.TotalAmount)
	}

	if len(f.journal.recorded) != 1 {
		t.Fatalf("journal entries = %d, want 1", len(f.journal.recorded))
	}
	entry := f.journal.recorded[0]
	if entry.Type != ledger.MovementDebt || entry.Direction != ledger.DirectionDebit {
		t.Errorf("entry = %s/%s, want debt/debit", entry.Type, entry.Direction)
	}
	if !entry.Amount.Equal(inv.TotalAmount) {
		t.Errorf("entry amount = %s, want %s", entry.Amount, inv.TotalAmount)
	}
	if entry.Reference.Kind != ledger.RefInvoice || *entry.Reference.RefID != inv.ID {
		t.Errorf("entry reference = %+v, want invoice %s", entry.Reference, inv.ID)
	}
}

func TestCreateRejectsPurchaseSupplierMismatch(t *testing.T) {
	f := newFixture(t)

	otherSupplier := id.New()
	f.reader.suppliers[otherSupplier] = &refdata.Supplier{ID: otherSupplier, Name: "Someone Else"}
	purchaseID := id.New()
	f.reader.purchases[purchaseID] = &refdata.Purchase{ID: purchaseID, SupplierID: otherSupplier}

	_, err := f.svc.Create(context.Background(), CreateInput{
		SupplierID:  f.supplierID,
		PurchaseID:  &purchaseID,
		InvoiceDate: time.Now(),
	})
	appErr, ok := apperror.AsAppError(err)
	if !ok || appErr.Code != apperror.CodeReferentialMismatch {
		t.Fatalf("Create() error = %v, want %s", err, apperror.CodeReferentialMismatch)
	}
}

func TestItemMutationsRecomputeEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv := f.createInvoice(t,
		ItemInput{Description: "boxes", Quantity: types.MustMoney("10"), UnitPrice: types.MustMoney("10")},
	)
	recomputesBefore := f.journal.recomputes

	inv, err := f.svc.AddItem(ctx, inv.ID, ItemInput{
		Description: "tape", Quantity: types.MustMoney("5"), UnitPrice: types.MustMoney("2"),
	})
	if err != nil {
		t.Fatalf("AddItem() error = %v", err)
	}
	if !inv.Subtotal.Equal(types.MustMoney("110")) {
		t.Errorf("subtotal = %s, want 110", inv.Subtotal)
	}
	if f.journal.recomputes != recomputesBefore+1 {
		t.Errorf("recomputes = %d, want %d", f.journal.recomputes, recomputesBefore+1)
	}

	itemID := inv.Items[1].ID
	inv, err = f.svc.UpdateItem(ctx, inv.ID, itemID, ItemInput{
		Description: "tape", Quantity: types.MustMoney("5"), UnitPrice: types.MustMoney("4"),
	})
	if err != nil {
		t.Fatalf("UpdateItem() error = %v", err)
	}
	if !inv.Subtotal.Equal(types.MustMoney("120")) {
		t.Errorf("subtotal = %s, want 120", inv.Subtotal)
	}

	inv, err = f.svc.DeleteItem(ctx, inv.ID, itemID)
	if err != nil {
		t.Fatalf("DeleteItem() error = %v", err)
	}
	if !inv.Subtotal.Equal(types.MustMoney("100")) {
		t.Errorf("subtotal = %s, want 100", inv.Subtotal)
	}
	if len(inv.Items) != 1 || inv.Items[0].LineNo != 1 {
		t.Errorf("items = %+v, want single line renumbered to 1", inv.Items)
	}
}

func TestSequentialEditsAdvanceVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv := f.createInvoice(t,
		ItemInput{Description: "boxes", Quantity: types.MustMoney("1"), UnitPrice: types.MustMoney("10")},
	)

	// Each edit reloads the row, so the version it carries must line up
	// with the stored one every time.
	notes := "first pass"
	inv, err := f.svc.Update(ctx, inv.ID, UpdateInput{Notes: &notes})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if inv.Version != 2 {
		t.Errorf("version after first edit = %d, want 2", inv.Version)
	}

	inv, err = f.svc.AddItem(ctx, inv.ID, ItemInput{
		Description: "tape", Quantity: types.MustMoney("1"), UnitPrice: types.MustMoney("2"),
	})
	if err != nil {
		t.Fatalf("AddItem() error = %v", err)
	}
	if inv.Version != 3 {
		t.Errorf("version after second edit = %d, want 3", inv.Version)
	}
}

func TestCreateWithoutItemsSkipsJournal(t *testing.T) {
	f := newFixture(t)

	inv, err := f.svc.Create(context.Background(), CreateInput{
		SupplierID:  f.supplierID,
		InvoiceDate: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !inv.TotalAmount.IsZero() {
		t.Errorf("total = %s, want 0", inv.TotalAmount)
	}
	if len(f.journal.recorded) != 0 {
		t.Errorf("journal entries = %d, want none for an empty draft", len(f.journal.recorded))
	}

	// The first line establishes the debt via recompute.
	if _, err := f.svc.AddItem(context.Background(), inv.ID, ItemInput{
		Description: "boxes", Quantity: types.MustMoney("1"), UnitPrice: types.MustMoney("10"),
	}); err != nil {
		t.Fatalf("AddItem() error = %v", err)
	}
	if f.journal.recomputes == 0 {
		t.Error("recomputes = 0, want at least one after the first item")
	}
}

func TestDeleteItemBelowPaidRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv := f.createInvoice(t,
		ItemInput{Description: "a", Quantity: types.MustMoney("1"), UnitPrice: types.MustMoney("100")},
		ItemInput{Description: "b", Quantity: types.MustMoney("1"), UnitPrice: types.MustMoney("100")},
	)

	// total 242 (with 21% tax); allocate 200.
	paymentID := f.addPayment("200")
	if _, err := f.svc.LinkPayment(ctx, inv.ID, paymentID, types.MustMoney("200"), ""); err != nil {
		t.Fatalf("LinkPayment() error = %v", err)
	}

	// Dropping a 100 line would put the total (121) under the paid 200.
	_, err := f.svc.DeleteItem(ctx, inv.ID, inv.Items[0].ID)
	appErr, ok := apperror.AsAppError(err)
	if !ok || appErr.Code != apperror.CodeAmountBelowPaid {
		t.Fatalf("DeleteItem() error = %v, want %s", err, apperror.CodeAmountBelowPaid)
	}
}

func TestLinkPaymentDrivesStatuses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv := f.createInvoice(t,
		ItemInput{Description: "pallets", Quantity: types.MustMoney("1"), UnitPrice: types.MustMoney("1000")},
	)
	// total = 1210 with default tax

	paymentID := f.addPayment("500")
	inv, err := f.svc.LinkPayment(ctx, inv.ID, paymentID, types.MustMoney("500"), "")
	if err != nil {
		t.Fatalf("LinkPayment() error = %v", err)
	}
	if inv.Status != StatusPartialPaid {
		t.Errorf("status = %s, want %s", inv.Status, StatusPartialPaid)
	}
	if inv.PaymentStatus != PaymentPartial {
		t.Errorf("payment status = %s, want %s", inv.PaymentStatus, PaymentPartial)
	}

	// The allocation writes a credit leg into the journal.
	last := f.journal.recorded[len(f.journal.recorded)-1]
	if last.Type != ledger.MovementPayment || last.Direction != ledger.DirectionCredit {
		t.Errorf("journal entry = %s/%s, want payment/credit", last.Type, last.Direction)
	}

	rest := f.addPayment("710")
	inv, err = f.svc.LinkPayment(ctx, inv.ID, rest, types.MustMoney("710"), "")
	if err != nil {
		t.Fatalf("LinkPayment() error = %v", err)
	}
	if inv.Status != StatusPaid || inv.PaymentStatus != PaymentPaid {
		t.Errorf("status = %s/%s, want paid/paid", inv.Status, inv.PaymentStatus)
	}

	inv, err = f.svc.UnlinkPayment(ctx, inv.ID, rest)
	if err != nil {
		t.Fatalf("UnlinkPayment() error = %v", err)
	}
	if inv.Status != StatusPartialPaid {
		t.Errorf("status after unlink = %s, want %s", inv.Status, StatusPartialPaid)
	}
	if !inv.RemainingAmount.Equal(types.MustMoney("710")) {
		t.Errorf("remaining = %s, want 710", inv.RemainingAmount)
	}
}

func TestDeleteGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv := f.createInvoice(t,
		ItemInput{Description: "x", Quantity: types.MustMoney("1"), UnitPrice: types.MustMoney("100")},
	)

	paymentID := f.addPayment("50")
	if _, err := f.svc.LinkPayment(ctx, inv.ID, paymentID, types.MustMoney("50"), ""); err != nil {
		t.Fatalf("LinkPayment() error = %v", err)
	}

	err := f.svc.Delete(ctx, inv.ID)
	appErr, ok := apperror.AsAppError(err)
	if !ok || appErr.Code != apperror.CodeDocumentHasPayments {
		t.Fatalf("Delete() with payments error = %v, want %s", err, apperror.CodeDocumentHasPayments)
	}

	if _, err := f.svc.UnlinkPayment(ctx, inv.ID, paymentID); err != nil {
		t.Fatalf("UnlinkPayment() error = %v", err)
	}

	f.repo.expenseLinks[inv.ID] = true
	if err := f.svc.Delete(ctx, inv.ID); err == nil {
		t.Fatal("Delete() with expense link succeeded, want error")
	}

	f.repo.expenseLinks[inv.ID] = false
	if err := f.svc.Delete(ctx, inv.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if len(f.journal.removed) != 1 || f.journal.removed[0] != inv.ID {
		t.Errorf("journal removals = %v, want [%s]", f.journal.removed, inv.ID)
	}
}

func TestCancelRequiresNoPayments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv := f.createInvoice(t,
		ItemInput{Description: "x", Quantity: types.MustMoney("1"), UnitPrice: types.MustMoney("100")},
	)

	paymentID := f.addPayment("50")
	if _, err := f.svc.LinkPayment(ctx, inv.ID, paymentID, types.MustMoney("50"), ""); err != nil {
		t.Fatalf("LinkPayment() error = %v", err)
	}

	if err := f.svc.Cancel(ctx, inv.ID); err == nil {
		t.Fatal("Cancel() with payments succeeded, want error")
	}

	if _, err := f.svc.UnlinkPayment(ctx, inv.ID, paymentID); err != nil {
		t.Fatalf("UnlinkPayment() error = %v", err)
	}
	if err := f.svc.Cancel(ctx, inv.ID); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}

	got, _ := f.svc.GetByID(ctx, inv.ID)
	if got.Status != StatusCancelled {
		t.Errorf("status = %s, want %s", got.Status, StatusCancelled)
	}

	// A cancelled invoice accepts no further edits or allocations.
	if _, err := f.svc.AddItem(ctx, inv.ID, ItemInput{
		Description: "y", Quantity: types.MustMoney("1"), UnitPrice: types.MustMoney("1"),
	}); err == nil {
		t.Error("AddItem() on cancelled invoice succeeded, want error")
	}
	other := f.addPayment("10")
	if _, err := f.svc.LinkPayment(ctx, inv.ID, other, types.MustMoney("10"), ""); err == nil {
		t.Error("LinkPayment() on cancelled invoice succeeded, want error")
	}
}
