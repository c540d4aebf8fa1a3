package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"salonpos/backend/internal/daterange"
	"salonpos/backend/internal/domain"
	"salonpos/backend/internal/xid"
)

// ListExpenses returns expenses of any status. Empty bounds mean no filter.
func (s *Service) ListExpenses(startDate string, endDate string) ([]domain.Expense, error) {
	s.mu.RLock()
	expenses := s.state.expenses
	s.mu.RUnlock()

	if startDate == "" && endDate == "" {
		return append([]domain.Expense(nil), expenses...), nil
	}
	r, err := daterange.Parse(startDate, endDate, s.loc)
	if err != nil {
		return nil, err
	}
	return daterange.Select(expenses, r, func(e domain.Expense) string { return e.Date }, nil), nil
}

func (s *Service) CreateExpense(ctx context.Context, req domain.ExpenseCreateRequest) (domain.Expense, error) {
	expense := domain.Expense{
		ID:          xid.New("exp"),
		Date:        s.stamp(),
		Description: strings.TrimSpace(req.Description),
		Category:    strings.TrimSpace(req.Category),
		Amount:      req.Amount,
		Status:      domain.StatusActive,
	}
	if expense.Description == "" {
		return domain.Expense{}, fmt.Errorf("%w: expense description is required", domain.ErrValidation)
	}
	if !expense.Amount.IsPositive() {
		return domain.Expense{}, fmt.Errorf("%w: expense amount must be positive", domain.ErrValidation)
	}
	if strings.TrimSpace(req.Date) != "" {
		at, err := daterange.ParseTimestamp(req.Date, s.loc)
		if err != nil {
			return domain.Expense{}, fmt.Errorf("%w: invalid expense date %q", domain.ErrValidation, req.Date)
		}
		expense.Date = domain.FormatTimestamp(at)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.expenses.Put(ctx, expense); err != nil {
		return domain.Expense{}, persistenceError("save expense", err)
	}
	s.state.expenses = append(append([]domain.Expense(nil), s.state.expenses...), expense)
	s.touch()

	s.logAudit(ctx, "expense_create", "expense", expense.ID, fmt.Sprintf("amount=%s", expense.Amount))
	return expense, nil
}

func (s *Service) CancelExpense(ctx context.Context, expenseID string, reason string) (domain.Expense, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domain.Expense{}, fmt.Errorf("%w: cancellation reason is required", domain.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, e := range s.state.expenses {
		if e.ID == expenseID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.Expense{}, fmt.Errorf("%w: expense %s", domain.ErrNotFound, expenseID)
	}
	expense := s.state.expenses[idx]
	if expense.Status != domain.StatusActive {
		return domain.Expense{}, fmt.Errorf("%w: expense %s is %s", domain.ErrInvalidState, expenseID, expense.Status)
	}
	expense.Status = domain.StatusCancelled
	expense.CancellationReason = reason

	if err := s.expenses.Put(ctx, expense); err != nil {
		return domain.Expense{}, persistenceError("save expense", err)
	}
	next := append([]domain.Expense(nil), s.state.expenses...)
	next[idx] = expense
	s.state.expenses = next
	s.touch()

	s.logAudit(ctx, "expense_cancel", "expense", expenseID, reason)
	return expense, nil
}

// ListCredits returns credits of any status. Empty bounds mean no filter.
func (s *Service) ListCredits(startDate string, endDate string) ([]domain.Credit, error) {
	s.mu.RLock()
	credits := s.state.credits
	s.mu.RUnlock()

	if startDate == "" && endDate == "" {
		return append([]domain.Credit(nil), credits...), nil
	}
	r, err := daterange.Parse(startDate, endDate, s.loc)
	if err != nil {
		return nil, err
	}
	return daterange.Select(credits, r, func(c domain.Credit) string { return c.CreatedAt }, nil), nil
}

// CreateCredit opens an installment account. A non-positive final price is
// rejected because amortization divides by it.
func (s *Service) CreateCredit(ctx context.Context, req domain.CreditCreateRequest) (domain.Credit, error) {
	credit := domain.Credit{
		ID:            xid.New("crd"),
		CreatedAt:     s.stamp(),
		ClientName:    strings.TrimSpace(req.ClientName),
		Description:   strings.TrimSpace(req.Description),
		Status:        domain.StatusActive,
		OriginalPrice: req.OriginalPrice,
		FinalPrice:    req.FinalPrice,
		Payments:      []domain.CreditPayment{},
	}
	if credit.ClientName == "" {
		return domain.Credit{}, fmt.Errorf("%w: client name is required", domain.ErrValidation)
	}
	if !credit.FinalPrice.IsPositive() {
		return domain.Credit{}, fmt.Errorf("%w: final price must be positive", domain.ErrValidation)
	}
	if credit.OriginalPrice.IsNegative() {
		return domain.Credit{}, fmt.Errorf("%w: original price cannot be negative", domain.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.credits.Put(ctx, credit); err != nil {
		return domain.Credit{}, persistenceError("save credit", err)
	}
	s.state.credits = append(append([]domain.Credit(nil), s.state.credits...), credit)
	s.touch()

	s.logAudit(ctx, "credit_create", "credit", credit.ID, fmt.Sprintf("client=%s,final=%s", credit.ClientName, credit.FinalPrice))
	return credit, nil
}

// AddCreditPayment records an installment. Payments beyond the pending amount
// are rejected, and the credit completes once fully paid.
func (s *Service) AddCreditPayment(ctx context.Context, creditID string, req domain.CreditPaymentRequest) (domain.Credit, error) {
	if !req.Amount.IsPositive() {
		return domain.Credit{}, fmt.Errorf("%w: payment amount must be positive", domain.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx, credit, err := s.findCredit(creditID)
	if err != nil {
		return domain.Credit{}, err
	}
	if credit.Status != domain.StatusActive {
		return domain.Credit{}, fmt.Errorf("%w: credit %s is %s", domain.ErrInvalidState, creditID, credit.Status)
	}
	pending := credit.FinalPrice.Sub(credit.TotalPaid())
	if req.Amount.GreaterThan(pending) {
		return domain.Credit{}, fmt.Errorf("%w: payment %s exceeds pending %s", domain.ErrValidation, req.Amount, pending)
	}

	payments := make([]domain.CreditPayment, 0, len(credit.Payments)+1)
	payments = append(payments, credit.Payments...)
	credit.Payments = append(payments, domain.CreditPayment{
		ID:     xid.New("pay"),
		Amount: req.Amount,
		Date:   s.stamp(),
		Note:   strings.TrimSpace(req.Note),
	})
	if credit.TotalPaid().GreaterThanOrEqual(credit.FinalPrice) {
		credit.Status = domain.StatusCompleted
	}

	if err := s.credits.Put(ctx, credit); err != nil {
		return domain.Credit{}, persistenceError("save credit", err)
	}
	next := append([]domain.Credit(nil), s.state.credits...)
	next[idx] = credit
	s.state.credits = next
	s.touch()

	s.logAudit(ctx, "credit_payment", "credit", creditID, fmt.Sprintf("amount=%s,status=%s", req.Amount, credit.Status))
	return credit, nil
}

func (s *Service) CancelCredit(ctx context.Context, creditID string, reason string) (domain.Credit, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domain.Credit{}, fmt.Errorf("%w: cancellation reason is required", domain.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx, credit, err := s.findCredit(creditID)
	if err != nil {
		return domain.Credit{}, err
	}
	if credit.Status == domain.StatusCancelled {
		return domain.Credit{}, fmt.Errorf("%w: credit %s is already cancelled", domain.ErrInvalidState, creditID)
	}
	credit.Status = domain.StatusCancelled
	credit.CancellationReason = reason

	if err := s.credits.Put(ctx, credit); err != nil {
		return domain.Credit{}, persistenceError("save credit", err)
	}
	next := append([]domain.Credit(nil), s.state.credits...)
	next[idx] = credit
	s.state.credits = next
	s.touch()

	s.logAudit(ctx, "credit_cancel", "credit", creditID, reason)
	return credit, nil
}

func (s *Service) findCredit(id string) (int, domain.Credit, error) {
	for i, c := range s.state.credits {
		if c.ID == id {
			return i, c, nil
		}
	}
	return -1, domain.Credit{}, fmt.Errorf("%w: credit %s", domain.ErrNotFound, id)
}

func (s *Service) CashRegister(ctx context.Context) domain.CashRegister {
	return s.register.Get(ctx)
}

func (s *Service) SetCashRegister(ctx context.Context, req domain.CashRegisterUpdateRequest) (domain.CashRegister, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.CashRegister{}, err
	}
	if req.Amount.IsNegative() {
		return domain.CashRegister{}, fmt.Errorf("%w: cash register amount cannot be negative", domain.ErrValidation)
	}
	return s.writeRegister(ctx, "cash_register_set", req.Amount)
}

func (s *Service) ResetCashRegister(ctx context.Context) (domain.CashRegister, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.CashRegister{}, err
	}
	return s.writeRegister(ctx, "cash_register_reset", decimal.Zero)
}

func (s *Service) writeRegister(ctx context.Context, action string, amount decimal.Decimal) (domain.CashRegister, error) {
	register := domain.CashRegister{
		ID:           domain.CashRegisterID,
		Amount:       amount,
		LastModified: s.stamp(),
	}
	if err := s.register.Set(ctx, register); err != nil {
		return domain.CashRegister{}, persistenceError("save cash register", err)
	}
	s.logAudit(ctx, action, "cash_register", register.ID, fmt.Sprintf("amount=%s", amount))
	return register, nil
}

// ListAuditLogs returns entries inside the range, newest first. limit <= 0
// means 100.
func (s *Service) ListAuditLogs(ctx context.Context, startDate string, endDate string, limit int) ([]domain.AuditLog, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	r, err := daterange.Parse(startDate, endDate, s.loc)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	logs := daterange.Select(s.audit.Load(ctx), r, func(a domain.AuditLog) string { return a.CreatedAt }, nil)
	sort.SliceStable(logs, func(i, j int) bool {
		return logs[i].CreatedAt > logs[j].CreatedAt
	})
	if len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}
