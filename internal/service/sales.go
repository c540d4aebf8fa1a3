package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"salonpos/backend/internal/cache"
	"salonpos/backend/internal/daterange"
	"salonpos/backend/internal/domain"
	"salonpos/backend/internal/metrics"
)

// CreateSale validates the draft and persists the stock change and then the
// new sale list. Either write failing leaves memory untouched and returns
// ErrPersistence; if the sales save fails after stock landed, the previous
// stock is written back. Staff and client saves are best-effort cascades:
// their failures are reported in the outcome and the in-memory state keeps the
// cascaded values so the next successful save of that collection carries them.
func (s *Service) CreateSale(ctx context.Context, draft domain.SaleDraft) (domain.SaleOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	created, err := s.manager.Create(draft, s.snapshot())
	if err != nil {
		return domain.SaleOutcome{}, err
	}

	if err := s.products.Save(ctx, created.Products); err != nil {
		log.Printf("[service] ERROR: stock for sale %s not saved, nothing committed: %v", created.Sale.ID, err)
		return domain.SaleOutcome{}, persistenceError("save products", err)
	}
	if err := s.sales.Save(ctx, created.Sales); err != nil {
		log.Printf("[service] ERROR: sale %s not saved, rolling back: %v", created.Sale.ID, err)
		s.restoreStock(ctx)
		return domain.SaleOutcome{}, persistenceError("save sales", err)
	}

	outcome := domain.SaleOutcome{
		Sale:            created.Sale,
		StockWarnings:   created.Shortfalls,
		SkippedProducts: created.Skipped,
	}
	if created.Staff != nil {
		if err := s.staff.Save(ctx, created.Staff); err != nil {
			outcome.CascadeFailures = append(outcome.CascadeFailures, cascadeFailure(domain.CascadeStaff, err))
		}
		s.state.staff = created.Staff
	}
	if created.Clients != nil {
		if err := s.clients.Save(ctx, created.Clients); err != nil {
			outcome.CascadeFailures = append(outcome.CascadeFailures, cascadeFailure(domain.CascadeClient, err))
		}
		s.state.clients = created.Clients
	}
	s.state.sales = created.Sales
	s.state.products = created.Products
	s.touch()

	s.logAudit(ctx, "sale_create", "sale", created.Sale.ID, fmt.Sprintf("invoice=%d,total=%s,method=%s", created.Sale.InvoiceNumber, created.Sale.Total, created.Sale.PaymentMethod))
	return outcome, nil
}

// CancelSale moves an active sale to cancelled, returns the stock it took and
// drops its commission entry from the staff ledger. Stock and the sales list
// are written the same way as in CreateSale.
func (s *Service) CancelSale(ctx context.Context, saleID string, reason string) (domain.SaleOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cancelled, err := s.manager.Cancel(saleID, reason, s.snapshot())
	if err != nil {
		return domain.SaleOutcome{}, err
	}

	if err := s.products.Save(ctx, cancelled.Products); err != nil {
		log.Printf("[service] ERROR: restock for sale %s not saved, nothing committed: %v", saleID, err)
		return domain.SaleOutcome{}, persistenceError("save products", err)
	}
	if err := s.sales.Save(ctx, cancelled.Sales); err != nil {
		log.Printf("[service] ERROR: cancellation of sale %s not saved, rolling back: %v", saleID, err)
		s.restoreStock(ctx)
		return domain.SaleOutcome{}, persistenceError("save sales", err)
	}

	outcome := domain.SaleOutcome{Sale: cancelled.Sale}
	if cancelled.Staff != nil {
		if err := s.staff.Save(ctx, cancelled.Staff); err != nil {
			outcome.CascadeFailures = append(outcome.CascadeFailures, cascadeFailure(domain.CascadeStaff, err))
		}
		s.state.staff = cancelled.Staff
	}
	s.state.sales = cancelled.Sales
	s.state.products = cancelled.Products
	s.touch()

	s.logAudit(ctx, "sale_cancel", "sale", saleID, cancelled.Sale.CancellationReason)
	return outcome, nil
}

// restoreStock writes the committed product list back after a sale write
// failed behind an already saved stock change. Callers hold s.mu.
func (s *Service) restoreStock(ctx context.Context) {
	if err := s.products.Save(ctx, s.state.products); err != nil {
		log.Printf("[service] ERROR: stored stock is ahead of committed sales until the next product save: %v", err)
	}
}

// DeleteSale removes one sale after the admin password check. No cascade runs.
func (s *Service) DeleteSale(ctx context.Context, saleID string, password string) error {
	if !s.auth.ValidateAdminPassword(password) {
		return fmt.Errorf("%w: invalid admin password", domain.ErrUnauthorized)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next, removed, err := s.manager.Delete(saleID, s.state.sales)
	if err != nil {
		return err
	}
	if err := s.sales.Save(ctx, next); err != nil {
		return persistenceError("save sales", err)
	}
	s.state.sales = next
	s.touch()

	s.logAudit(ctx, "sale_delete", "sale", saleID, fmt.Sprintf("invoice=%d,status=%s", removed.InvoiceNumber, removed.Status))
	return nil
}

// DeleteAllSales clears the sales collection. It returns how many sales were
// removed.
func (s *Service) DeleteAllSales(ctx context.Context, password string) (int, error) {
	if !s.auth.ValidateAdminPassword(password) {
		return 0, fmt.Errorf("%w: invalid admin password", domain.ErrUnauthorized)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := len(s.state.sales)
	next := s.manager.DeleteAll(s.state.sales)
	if err := s.sales.Save(ctx, next); err != nil {
		return 0, persistenceError("save sales", err)
	}
	s.state.sales = next
	s.touch()

	s.logAudit(ctx, "sale_delete_all", "sale", "*", fmt.Sprintf("removed=%d", removed))
	return removed, nil
}

// ListSales returns every sale dated inside the range, cancelled ones included.
func (s *Service) ListSales(startDate string, endDate string) (domain.SaleListResponse, error) {
	r, err := daterange.Parse(startDate, endDate, s.loc)
	if err != nil {
		return domain.SaleListResponse{}, err
	}

	s.mu.RLock()
	sales := daterange.Select(s.state.sales, r, func(sale domain.Sale) string { return sale.Date }, nil)
	s.mu.RUnlock()

	return domain.SaleListResponse{Start: startDate, End: endDate, Sales: sales}, nil
}

func (s *Service) GetSale(saleID string) (domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sale := range s.state.sales {
		if sale.ID == saleID {
			return sale, nil
		}
	}
	return domain.Sale{}, fmt.Errorf("%w: sale %s", domain.ErrNotFound, saleID)
}

// Metrics computes the financial snapshot for active sales in the range. The
// result is cached per snapshot version, so any committed mutation misses.
func (s *Service) Metrics(ctx context.Context, startDate string, endDate string) (domain.MetricsResponse, error) {
	r, err := daterange.Parse(startDate, endDate, s.loc)
	if err != nil {
		return domain.MetricsResponse{}, err
	}

	s.mu.RLock()
	key := cache.MetricsKey(s.generation, s.version, startDate, endDate)
	current := s.state
	s.mu.RUnlock()

	if cached, ok, err := s.cache.Get(ctx, key); err != nil {
		log.Printf("[service] WARN: metrics cache get failed key=%s: %v", key, err)
	} else if ok && cached != nil {
		return domain.MetricsResponse{Start: startDate, End: endDate, Metrics: *cached}, nil
	}

	computed := metrics.Compute(daterange.Sales(current.sales, r), current.products, current.expenses, current.credits, r)
	if err := s.cache.Set(ctx, key, &computed, s.cacheTTL); err != nil {
		log.Printf("[service] WARN: metrics cache set failed key=%s: %v", key, err)
	}

	return domain.MetricsResponse{Start: startDate, End: endDate, Metrics: computed}, nil
}

func cascadeFailure(cascade string, err error) domain.CascadeFailure {
	log.Printf("[service] WARN: %s cascade not saved: %v", cascade, err)
	detail := err.Error()
	if errors.Is(err, context.DeadlineExceeded) {
		detail = "storage timed out"
	}
	return domain.CascadeFailure{Cascade: cascade, Detail: detail}
}
