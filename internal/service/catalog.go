package service

import (
	"context"
	"fmt"
	"strings"

	"salonpos/backend/internal/domain"
	"salonpos/backend/internal/inventory"
	"salonpos/backend/internal/xid"
)

func (s *Service) ListProducts() []domain.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Product(nil), s.state.products...)
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}

	product := domain.Product{
		ID:        xid.New("prd"),
		Name:      strings.TrimSpace(req.Name),
		Code:      strings.ToUpper(strings.TrimSpace(req.Code)),
		Category:  defaultString(req.Category, "general"),
		Quantity:  req.InitialStock,
		CostPrice: req.CostPrice,
		BasePrice: req.BasePrice,
	}
	if product.Name == "" || product.Code == "" {
		return domain.Product{}, fmt.Errorf("%w: product name and code are required", domain.ErrValidation)
	}
	if product.CostPrice.IsNegative() || product.BasePrice.IsNegative() || product.Quantity < 0 {
		return domain.Product{}, fmt.Errorf("%w: prices and initial stock cannot be negative", domain.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.state.products {
		if strings.EqualFold(existing.Code, product.Code) {
			return domain.Product{}, fmt.Errorf("%w: product code %s already exists", domain.ErrValidation, product.Code)
		}
	}

	if err := s.products.Put(ctx, product); err != nil {
		return domain.Product{}, persistenceError("save product", err)
	}
	s.state.products = append(append([]domain.Product(nil), s.state.products...), product)
	s.touch()

	s.logAudit(ctx, "product_create", "product", product.ID, fmt.Sprintf("code=%s,stock=%d", product.Code, product.Quantity))
	return product, nil
}

// UpdateProduct edits descriptive fields and prices. Stock only changes
// through sales and RestockProduct.
func (s *Service) UpdateProduct(ctx context.Context, productID string, req domain.ProductUpdateRequest) (domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := productIndex(s.state.products, productID)
	if idx < 0 {
		return domain.Product{}, fmt.Errorf("%w: product %s", domain.ErrNotFound, productID)
	}

	updated := s.state.products[idx]
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, fmt.Errorf("%w: product name cannot be empty", domain.ErrValidation)
		}
		updated.Name = name
	}
	if req.Category != nil {
		updated.Category = defaultString(*req.Category, "general")
	}
	if req.CostPrice != nil {
		if req.CostPrice.IsNegative() {
			return domain.Product{}, fmt.Errorf("%w: cost price cannot be negative", domain.ErrValidation)
		}
		updated.CostPrice = *req.CostPrice
	}
	if req.BasePrice != nil {
		if req.BasePrice.IsNegative() {
			return domain.Product{}, fmt.Errorf("%w: base price cannot be negative", domain.ErrValidation)
		}
		updated.BasePrice = *req.BasePrice
	}

	if err := s.products.Put(ctx, updated); err != nil {
		return domain.Product{}, persistenceError("save product", err)
	}
	next := append([]domain.Product(nil), s.state.products...)
	next[idx] = updated
	s.state.products = next
	s.touch()

	s.logAudit(ctx, "product_update", "product", updated.ID, fmt.Sprintf("cost=%s,base=%s", updated.CostPrice, updated.BasePrice))
	return updated, nil
}

func (s *Service) RestockProduct(ctx context.Context, productID string, req domain.RestockRequest) (domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}
	if req.Quantity <= 0 {
		return domain.Product{}, fmt.Errorf("%w: restock quantity must be positive", domain.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := productIndex(s.state.products, productID)
	if idx < 0 {
		return domain.Product{}, fmt.Errorf("%w: product %s", domain.ErrNotFound, productID)
	}

	adjustment, err := s.adjuster.ApplyDeltas(s.state.products, []inventory.Delta{{ProductID: productID, Delta: req.Quantity}})
	if err != nil {
		return domain.Product{}, err
	}
	updated := adjustment.Products[idx]
	if err := s.products.Put(ctx, updated); err != nil {
		return domain.Product{}, persistenceError("save product", err)
	}
	s.state.products = adjustment.Products
	s.touch()

	s.logAudit(ctx, "product_restock", "product", productID, fmt.Sprintf("added=%d,stock=%d", req.Quantity, updated.Quantity))
	return updated, nil
}

func (s *Service) ListStaff() []domain.Staff {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Staff(nil), s.state.staff...)
}

func (s *Service) CreateStaff(ctx context.Context, req domain.StaffCreateRequest) (domain.Staff, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Staff{}, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Staff{}, fmt.Errorf("%w: staff name is required", domain.ErrValidation)
	}

	member := domain.Staff{ID: xid.New("stf"), Name: name, Sales: []domain.StaffSale{}}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.staff.Put(ctx, member); err != nil {
		return domain.Staff{}, persistenceError("save staff", err)
	}
	s.state.staff = append(append([]domain.Staff(nil), s.state.staff...), member)

	s.logAudit(ctx, "staff_create", "staff", member.ID, name)
	return member, nil
}

// MarkCommissionPaid flags one ledger entry as paid out. Cancelled sales have
// no ledger entry, so they surface as not found.
func (s *Service) MarkCommissionPaid(ctx context.Context, staffID string, saleID string) (domain.Staff, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Staff{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, member := range s.state.staff {
		if member.ID == staffID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.Staff{}, fmt.Errorf("%w: staff %s", domain.ErrNotFound, staffID)
	}

	member := s.state.staff[idx]
	ledger := append([]domain.StaffSale(nil), member.Sales...)
	found := false
	for i := range ledger {
		if ledger[i].SaleID != saleID {
			continue
		}
		if ledger[i].CommissionPaid {
			return domain.Staff{}, fmt.Errorf("%w: commission for sale %s already paid", domain.ErrInvalidState, saleID)
		}
		ledger[i].CommissionPaid = true
		found = true
	}
	if !found {
		return domain.Staff{}, fmt.Errorf("%w: no commission for sale %s", domain.ErrNotFound, saleID)
	}
	member.Sales = ledger

	if err := s.staff.Put(ctx, member); err != nil {
		return domain.Staff{}, persistenceError("save staff", err)
	}
	next := append([]domain.Staff(nil), s.state.staff...)
	next[idx] = member
	s.state.staff = next

	s.logAudit(ctx, "commission_paid", "staff", staffID, "sale="+saleID)
	return member, nil
}

func (s *Service) ListClients() []domain.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Client(nil), s.state.clients...)
}

func (s *Service) CreateClient(ctx context.Context, req domain.ClientCreateRequest) (domain.Client, error) {
	client := domain.Client{
		ID:        xid.New("cli"),
		Code:      strings.ToUpper(strings.TrimSpace(req.Code)),
		Name:      strings.TrimSpace(req.Name),
		Phone:     strings.TrimSpace(req.Phone),
		Purchases: []domain.Purchase{},
	}
	if client.Code == "" || client.Name == "" {
		return domain.Client{}, fmt.Errorf("%w: client code and name are required", domain.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.state.clients {
		if strings.EqualFold(existing.Code, client.Code) {
			return domain.Client{}, fmt.Errorf("%w: client code %s already exists", domain.ErrValidation, client.Code)
		}
	}

	if err := s.clients.Put(ctx, client); err != nil {
		return domain.Client{}, persistenceError("save client", err)
	}
	s.state.clients = append(append([]domain.Client(nil), s.state.clients...), client)

	s.logAudit(ctx, "client_create", "client", client.ID, client.Code)
	return client, nil
}

func productIndex(products []domain.Product, id string) int {
	for i, p := range products {
		if p.ID == id {
			return i
		}
	}
	return -1
}
