package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TimestampLayout is the wire format of every record timestamp. Records keep
// the string form so that legacy documents with malformed dates can still be
// loaded and are skipped by the date filter instead of failing the whole load.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "cash"
	PaymentCard     PaymentMethod = "card"
	PaymentTransfer PaymentMethod = "transfer"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentTransfer:
		return true
	default:
		return false
	}
}

type Status string

const (
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
	// StatusCompleted only applies to credits that have been paid off.
	StatusCompleted Status = "completed"
)

type LineItem struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Code          string          `json:"code"`
	Category      string          `json:"category"`
	Quantity      int             `json:"quantity"`
	OriginalPrice decimal.Decimal `json:"original_price"`
	FinalPrice    decimal.Decimal `json:"final_price"`
	// Unstocked is the part of Quantity that was sold without being taken
	// from stock. It is set when the sale is created; drafts cannot set it.
	Unstocked int `json:"unstocked,omitempty"`
}

// Amount is finalPrice × quantity.
func (l LineItem) Amount() decimal.Decimal {
	return l.FinalPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cost is originalPrice × quantity, the cost basis used by the metrics.
func (l LineItem) Cost() decimal.Decimal {
	return l.OriginalPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type StaffDiscount struct {
	Amount             decimal.Decimal `json:"amount"`
	Reason             string          `json:"reason"`
	Status             Status          `json:"status"`
	CancellationReason string          `json:"cancellation_reason,omitempty"`
}

type Sale struct {
	ID                 string          `json:"id"`
	InvoiceNumber      int64           `json:"invoice_number"`
	Date               string          `json:"date"`
	Status             Status          `json:"status"`
	ClientName         string          `json:"client_name"`
	ClientCode         string          `json:"client_code,omitempty"`
	StaffID            string          `json:"staff_id,omitempty"`
	StaffCommission    decimal.Decimal `json:"staff_commission"`
	StaffDiscount      *StaffDiscount  `json:"staff_discount,omitempty"`
	Products           []LineItem      `json:"products"`
	Subtotal           decimal.Decimal `json:"subtotal"`
	Discount           decimal.Decimal `json:"discount"`
	Total              decimal.Decimal `json:"total"`
	PaymentMethod      PaymentMethod   `json:"payment_method"`
	Reference          string          `json:"reference,omitempty"`
	CancellationReason string          `json:"cancellation_reason,omitempty"`
}

func (s Sale) DocumentID() string { return s.ID }

// SaleDraft is what the register submits. Subtotal and total are always
// derived from the line items, never taken from the caller.
type SaleDraft struct {
	ClientName      string          `json:"client_name"`
	ClientCode      string          `json:"client_code,omitempty"`
	StaffID         string          `json:"staff_id,omitempty"`
	StaffCommission decimal.Decimal `json:"staff_commission"`
	StaffDiscount   *StaffDiscount  `json:"staff_discount,omitempty"`
	Products        []LineItem      `json:"products"`
	Discount        decimal.Decimal `json:"discount"`
	PaymentMethod   PaymentMethod   `json:"payment_method"`
	Reference       string          `json:"reference,omitempty"`
}

type Product struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Code      string          `json:"code"`
	Category  string          `json:"category"`
	Quantity  int             `json:"quantity"`
	CostPrice decimal.Decimal `json:"cost_price"`
	BasePrice decimal.Decimal `json:"base_price"`
}

func (p Product) DocumentID() string { return p.ID }

// ItemSnapshot is the copy of a line item kept in staff and client histories.
type ItemSnapshot struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

type StaffSale struct {
	SaleID         string          `json:"sale_id"`
	Date           string          `json:"date"`
	Total          decimal.Decimal `json:"total"`
	Commission     decimal.Decimal `json:"commission"`
	CommissionPaid bool            `json:"commission_paid"`
	Products       []ItemSnapshot  `json:"products"`
}

type Staff struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Sales []StaffSale `json:"sales"`
}

func (s Staff) DocumentID() string { return s.ID }

type Purchase struct {
	SaleID   string          `json:"sale_id"`
	Date     string          `json:"date"`
	Total    decimal.Decimal `json:"total"`
	Products []ItemSnapshot  `json:"products"`
}

type Client struct {
	ID        string     `json:"id"`
	Code      string     `json:"code"`
	Name      string     `json:"name"`
	Phone     string     `json:"phone,omitempty"`
	Purchases []Purchase `json:"purchases"`
}

func (c Client) DocumentID() string { return c.ID }

type CreditPayment struct {
	ID     string          `json:"id"`
	Amount decimal.Decimal `json:"amount"`
	Date   string          `json:"date"`
	Note   string          `json:"note,omitempty"`
}

type Credit struct {
	ID                 string          `json:"id"`
	CreatedAt          string          `json:"created_at"`
	ClientName         string          `json:"client_name"`
	Description        string          `json:"description,omitempty"`
	Status             Status          `json:"status"`
	OriginalPrice      decimal.Decimal `json:"original_price"`
	FinalPrice         decimal.Decimal `json:"final_price"`
	Payments           []CreditPayment `json:"payments"`
	CancellationReason string          `json:"cancellation_reason,omitempty"`
}

func (c Credit) DocumentID() string { return c.ID }

func (c Credit) TotalPaid() decimal.Decimal {
	paid := decimal.Zero
	for _, p := range c.Payments {
		paid = paid.Add(p.Amount)
	}
	return paid
}

type Expense struct {
	ID                 string          `json:"id"`
	Date               string          `json:"date"`
	Description        string          `json:"description"`
	Category           string          `json:"category,omitempty"`
	Amount             decimal.Decimal `json:"amount"`
	Status             Status          `json:"status"`
	CancellationReason string          `json:"cancellation_reason,omitempty"`
}

func (e Expense) DocumentID() string { return e.ID }

const CashRegisterID = "current"

type CashRegister struct {
	ID           string          `json:"id"`
	Amount       decimal.Decimal `json:"amount"`
	LastModified string          `json:"last_modified"`
}

func (c CashRegister) DocumentID() string { return c.ID }

type AuditLog struct {
	ID            string `json:"id"`
	ActorUsername string `json:"actor_username"`
	ActorRole     string `json:"actor_role"`
	Action        string `json:"action"`
	EntityType    string `json:"entity_type"`
	EntityID      string `json:"entity_id"`
	Detail        string `json:"detail"`
	CreatedAt     string `json:"created_at"`
}

func (a AuditLog) DocumentID() string { return a.ID }

// FinancialMetrics is derived on demand and never persisted.
type FinancialMetrics struct {
	InventoryCost    decimal.Decimal `json:"inventory_cost"`
	TotalSales       decimal.Decimal `json:"total_sales"`
	TotalExpenses    decimal.Decimal `json:"total_expenses"`
	CostOfSales      decimal.Decimal `json:"cost_of_sales"`
	NetProfit        decimal.Decimal `json:"net_profit"`
	CashBalance      decimal.Decimal `json:"cash_balance"`
	TotalProfit      decimal.Decimal `json:"total_profit"`
	CashPayments     decimal.Decimal `json:"cash_payments"`
	CardPayments     decimal.Decimal `json:"card_payments"`
	TransferPayments decimal.Decimal `json:"transfer_payments"`
	CreditTotal      decimal.Decimal `json:"credit_total"`
	CreditPaid       decimal.Decimal `json:"credit_paid"`
	CreditPending    decimal.Decimal `json:"credit_pending"`
	CreditProfit     decimal.Decimal `json:"credit_profit"`
}

// CascadeFailure describes a secondary write that did not land even though
// the sale itself was committed.
type CascadeFailure struct {
	Cascade string `json:"cascade"`
	Detail  string `json:"detail"`
}

const (
	CascadeStaff  = "staff"
	CascadeClient = "client"
)

type SaleOutcome struct {
	Sale            Sale             `json:"sale"`
	CascadeFailures []CascadeFailure `json:"cascade_failures,omitempty"`
	// StockWarnings lists oversold products under the clamp and
	// allow-negative stock policies.
	StockWarnings []Shortfall `json:"stock_warnings,omitempty"`
	// SkippedProducts lists line item ids that matched no catalog product,
	// so no stock moved for them.
	SkippedProducts []string `json:"skipped_products,omitempty"`
}

// CoreSucceeded reports whether every cascade landed as well.
func (o SaleOutcome) CoreSucceeded() bool {
	return len(o.CascadeFailures) == 0
}

type Actor struct {
	Username string
	Role     string
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type CancelRequest struct {
	Reason string `json:"reason"`
}

type PasswordRequest struct {
	Password string `json:"password"`
}

type SaleListResponse struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Sales []Sale `json:"sales"`
}

type MetricsResponse struct {
	Start   string           `json:"start"`
	End     string           `json:"end"`
	Metrics FinancialMetrics `json:"metrics"`
}

type ProductCreateRequest struct {
	Name         string          `json:"name"`
	Code         string          `json:"code"`
	Category     string          `json:"category"`
	CostPrice    decimal.Decimal `json:"cost_price"`
	BasePrice    decimal.Decimal `json:"base_price"`
	InitialStock int             `json:"initial_stock"`
}

type ProductUpdateRequest struct {
	Name      *string          `json:"name,omitempty"`
	Category  *string          `json:"category,omitempty"`
	CostPrice *decimal.Decimal `json:"cost_price,omitempty"`
	BasePrice *decimal.Decimal `json:"base_price,omitempty"`
}

type RestockRequest struct {
	Quantity int `json:"quantity"`
}

type StaffCreateRequest struct {
	Name string `json:"name"`
}

type ClientCreateRequest struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type ExpenseCreateRequest struct {
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Amount      decimal.Decimal `json:"amount"`
	// Date defaults to now when empty.
	Date string `json:"date,omitempty"`
}

type CreditCreateRequest struct {
	ClientName    string          `json:"client_name"`
	Description   string          `json:"description"`
	OriginalPrice decimal.Decimal `json:"original_price"`
	FinalPrice    decimal.Decimal `json:"final_price"`
}

type CreditPaymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Note   string          `json:"note"`
}

type CashRegisterUpdateRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// UserAccount is a login identity. Password holds a bcrypt hash once stored.
type UserAccount struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	Role      string `json:"role"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at"`
}

func (u UserAccount) DocumentID() string { return u.Username }

type CashierCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// CashierUser is the public view of a cashier account, without the hash.
type CashierUser struct {
	Username  string `json:"username"`
	Role      string `json:"role"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at"`
}

const (
	RoleAdmin   = "admin"
	RoleCashier = "cashier"
)
