// Package lifecycle computes sale state transitions and their cascades over an
// in-memory snapshot. It never persists anything; the service decides what to
// commit.
package lifecycle

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"salonpos/backend/internal/domain"
	"salonpos/backend/internal/inventory"
	"salonpos/backend/internal/xid"
)

// Snapshot is the slice of state a lifecycle transition reads. The manager
// treats it as immutable and returns fresh slices for anything it changes.
type Snapshot struct {
	Sales    []domain.Sale
	Products []domain.Product
	Staff    []domain.Staff
	Clients  []domain.Client
}

type Options struct {
	// AllowDeleteActive permits deleting a sale that was never cancelled.
	AllowDeleteActive bool
	Now               func() time.Time
	NewID             func() string
}

type Manager struct {
	adjuster          *inventory.Adjuster
	allowDeleteActive bool
	now               func() time.Time
	newID             func() string
}

func NewManager(adjuster *inventory.Adjuster, opts Options) *Manager {
	if adjuster == nil {
		adjuster = inventory.NewAdjuster(inventory.PolicyReject)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	newID := opts.NewID
	if newID == nil {
		newID = func() string { return xid.New("sale") }
	}
	return &Manager{
		adjuster:          adjuster,
		allowDeleteActive: opts.AllowDeleteActive,
		now:               now,
		newID:             newID,
	}
}

// Creation is the full next state after CreateSale. Staff and Clients are nil
// when the sale did not touch them.
type Creation struct {
	Sale       domain.Sale
	Sales      []domain.Sale
	Products   []domain.Product
	Staff      []domain.Staff
	Clients    []domain.Client
	Shortfalls []domain.Shortfall
	Skipped    []string
}

type Cancellation struct {
	Sale     domain.Sale
	Sales    []domain.Sale
	Products []domain.Product
	Staff    []domain.Staff
}

func (m *Manager) Create(draft domain.SaleDraft, snap Snapshot) (Creation, error) {
	if err := validateDraft(draft); err != nil {
		return Creation{}, err
	}

	subtotal := decimal.Zero
	items := make([]domain.LineItem, len(draft.Products))
	copy(items, draft.Products)
	for _, item := range items {
		subtotal = subtotal.Add(item.Amount())
	}
	if draft.Discount.GreaterThan(subtotal) {
		return Creation{}, fmt.Errorf("%w: discount %s exceeds subtotal %s", domain.ErrValidation, draft.Discount, subtotal)
	}

	adjustment, err := m.adjuster.ApplyDeltas(snap.Products, inventory.SaleDeltas(items, -1))
	if err != nil {
		return Creation{}, err
	}
	for i := range items {
		items[i].Unstocked = items[i].Quantity + adjustment.Applied[i]
	}

	sale := domain.Sale{
		ID:              m.newID(),
		InvoiceNumber:   NextInvoiceNumber(snap.Sales),
		Date:            domain.FormatTimestamp(m.now()),
		Status:          domain.StatusActive,
		ClientName:      strings.TrimSpace(draft.ClientName),
		ClientCode:      strings.TrimSpace(draft.ClientCode),
		StaffID:         strings.TrimSpace(draft.StaffID),
		StaffCommission: draft.StaffCommission,
		Products:        items,
		Subtotal:        subtotal,
		Discount:        draft.Discount,
		Total:           subtotal.Sub(draft.Discount),
		PaymentMethod:   draft.PaymentMethod,
		Reference:       strings.TrimSpace(draft.Reference),
	}
	if draft.StaffDiscount != nil {
		discount := *draft.StaffDiscount
		discount.Status = domain.StatusActive
		discount.CancellationReason = ""
		sale.StaffDiscount = &discount
	}

	sales := make([]domain.Sale, 0, len(snap.Sales)+1)
	sales = append(sales, snap.Sales...)
	sales = append(sales, sale)

	result := Creation{
		Sale:       sale,
		Sales:      sales,
		Products:   adjustment.Products,
		Shortfalls: adjustment.Shortfalls,
		Skipped:    adjustment.Skipped,
	}
	if sale.ClientCode != "" {
		result.Clients = appendPurchase(snap.Clients, sale)
	}
	if sale.StaffID != "" {
		result.Staff = appendCommission(snap.Staff, sale)
	}
	return result, nil
}

// Cancel marks the sale cancelled and returns the stock the sale took. The staff ledger
// entry is removed rather than marked, and client history is left alone.
func (m *Manager) Cancel(saleID string, reason string, snap Snapshot) (Cancellation, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Cancellation{}, fmt.Errorf("%w: cancellation reason is required", domain.ErrValidation)
	}

	idx := indexOf(snap.Sales, saleID)
	if idx < 0 {
		return Cancellation{}, fmt.Errorf("%w: sale %s does not exist", domain.ErrInvalidState, saleID)
	}
	current := snap.Sales[idx]
	if current.Status != domain.StatusActive {
		return Cancellation{}, fmt.Errorf("%w: sale %s is %s", domain.ErrInvalidState, saleID, current.Status)
	}

	restock, err := inventory.NewAdjuster(inventory.PolicyAllowNegative).ApplyDeltas(snap.Products, inventory.RestockDeltas(current.Products))
	if err != nil {
		return Cancellation{}, err
	}

	cancelled := markCancelled(current, reason)
	sales := make([]domain.Sale, len(snap.Sales))
	copy(sales, snap.Sales)
	sales[idx] = cancelled

	result := Cancellation{
		Sale:     cancelled,
		Sales:    sales,
		Products: restock.Products,
	}
	if current.StaffID != "" {
		result.Staff = removeCommission(snap.Staff, current.StaffID, current.ID)
	}
	return result, nil
}

// Delete removes one sale without any cascade. Whether an active sale may be
// deleted depends on Options.AllowDeleteActive.
func (m *Manager) Delete(saleID string, sales []domain.Sale) ([]domain.Sale, domain.Sale, error) {
	idx := indexOf(sales, saleID)
	if idx < 0 {
		return nil, domain.Sale{}, fmt.Errorf("%w: sale %s", domain.ErrNotFound, saleID)
	}
	removed := sales[idx]
	if removed.Status == domain.StatusActive && !m.allowDeleteActive {
		return nil, domain.Sale{}, fmt.Errorf("%w: sale %s must be cancelled before it is deleted", domain.ErrInvalidState, saleID)
	}

	next := make([]domain.Sale, 0, len(sales)-1)
	next = append(next, sales[:idx]...)
	next = append(next, sales[idx+1:]...)
	return next, removed, nil
}

// DeleteAll always yields an empty, non-nil list.
func (m *Manager) DeleteAll([]domain.Sale) []domain.Sale {
	return []domain.Sale{}
}

func NextInvoiceNumber(sales []domain.Sale) int64 {
	var max int64
	for _, s := range sales {
		if s.InvoiceNumber > max {
			max = s.InvoiceNumber
		}
	}
	return max + 1
}

func validateDraft(draft domain.SaleDraft) error {
	if len(draft.Products) == 0 {
		return fmt.Errorf("%w: sale requires at least one product", domain.ErrValidation)
	}
	if !draft.PaymentMethod.Valid() {
		return fmt.Errorf("%w: unsupported payment method %q", domain.ErrValidation, draft.PaymentMethod)
	}
	if draft.Discount.IsNegative() {
		return fmt.Errorf("%w: discount cannot be negative", domain.ErrValidation)
	}
	if draft.StaffCommission.IsNegative() {
		return fmt.Errorf("%w: staff commission cannot be negative", domain.ErrValidation)
	}
	if draft.StaffDiscount != nil && draft.StaffDiscount.Amount.IsNegative() {
		return fmt.Errorf("%w: staff discount cannot be negative", domain.ErrValidation)
	}
	for i, item := range draft.Products {
		if strings.TrimSpace(item.ID) == "" {
			return fmt.Errorf("%w: products[%d] is missing an id", domain.ErrValidation, i)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: products[%d] quantity must be positive", domain.ErrValidation, i)
		}
		if item.FinalPrice.IsNegative() || item.OriginalPrice.IsNegative() {
			return fmt.Errorf("%w: products[%d] prices cannot be negative", domain.ErrValidation, i)
		}
	}
	return nil
}

func markCancelled(sale domain.Sale, reason string) domain.Sale {
	sale.Status = domain.StatusCancelled
	sale.CancellationReason = reason
	if sale.StaffDiscount != nil && sale.StaffDiscount.Status != domain.StatusCancelled {
		discount := *sale.StaffDiscount
		discount.Status = domain.StatusCancelled
		discount.CancellationReason = reason
		sale.StaffDiscount = &discount
	}
	return sale
}

func snapshotItems(items []domain.LineItem) []domain.ItemSnapshot {
	out := make([]domain.ItemSnapshot, 0, len(items))
	for _, item := range items {
		out = append(out, domain.ItemSnapshot{
			ID:       item.ID,
			Name:     item.Name,
			Quantity: item.Quantity,
			Price:    item.FinalPrice,
		})
	}
	return out
}

func appendPurchase(clients []domain.Client, sale domain.Sale) []domain.Client {
	out := make([]domain.Client, len(clients))
	copy(out, clients)
	matched := false
	for i := range out {
		if !strings.EqualFold(out[i].Code, sale.ClientCode) {
			continue
		}
		matched = true
		purchases := make([]domain.Purchase, 0, len(out[i].Purchases)+1)
		purchases = append(purchases, out[i].Purchases...)
		out[i].Purchases = append(purchases, domain.Purchase{
			SaleID:   sale.ID,
			Date:     sale.Date,
			Total:    sale.Total,
			Products: snapshotItems(sale.Products),
		})
	}
	if !matched {
		log.Printf("[lifecycle] WARN: no client with code=%s for sale=%s", sale.ClientCode, sale.ID)
	}
	return out
}

func appendCommission(staff []domain.Staff, sale domain.Sale) []domain.Staff {
	out := make([]domain.Staff, len(staff))
	copy(out, staff)
	matched := false
	for i := range out {
		if out[i].ID != sale.StaffID {
			continue
		}
		matched = true
		ledger := make([]domain.StaffSale, 0, len(out[i].Sales)+1)
		ledger = append(ledger, out[i].Sales...)
		out[i].Sales = append(ledger, domain.StaffSale{
			SaleID:         sale.ID,
			Date:           sale.Date,
			Total:          sale.Total,
			Commission:     sale.StaffCommission,
			CommissionPaid: false,
			Products:       snapshotItems(sale.Products),
		})
	}
	if !matched {
		log.Printf("[lifecycle] WARN: no staff member id=%s for sale=%s", sale.StaffID, sale.ID)
	}
	return out
}

func removeCommission(staff []domain.Staff, staffID string, saleID string) []domain.Staff {
	out := make([]domain.Staff, len(staff))
	copy(out, staff)
	for i := range out {
		if out[i].ID != staffID {
			continue
		}
		ledger := make([]domain.StaffSale, 0, len(out[i].Sales))
		for _, entry := range out[i].Sales {
			if entry.SaleID != saleID {
				ledger = append(ledger, entry)
			}
		}
		out[i].Sales = ledger
	}
	return out
}

func indexOf(sales []domain.Sale, id string) int {
	for i, s := range sales {
		if s.ID == id {
			return i
		}
	}
	return -1
}
