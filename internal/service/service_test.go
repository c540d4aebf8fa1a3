package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"salonpos/backend/internal/domain"
	"salonpos/backend/internal/inventory"
	"salonpos/backend/internal/store"
	"salonpos/backend/internal/store/memory"
)

var errDiskFull = errors.New("disk full")

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

// faultyBackend fails ReplaceAll and Put for the listed collections.
type faultyBackend struct {
	store.Backend
	mu   sync.Mutex
	fail map[string]bool
}

func (f *faultyBackend) failing(collection string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fail[collection]
}

func (f *faultyBackend) setFailing(collection string, on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[collection] = on
}

func (f *faultyBackend) ReplaceAll(ctx context.Context, collection string, docs []store.Document) error {
	if f.failing(collection) {
		return errDiskFull
	}
	return f.Backend.ReplaceAll(ctx, collection, docs)
}

func (f *faultyBackend) Put(ctx context.Context, collection string, doc store.Document) error {
	if f.failing(collection) {
		return errDiskFull
	}
	return f.Backend.Put(ctx, collection, doc)
}

// countingCache is an in-process MetricsCache for asserting hits.
type countingCache struct {
	mu   sync.Mutex
	data map[string]domain.FinancialMetrics
	hits int
}

func (c *countingCache) Get(_ context.Context, key string) (*domain.FinancialMetrics, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.data[key]
	if ok {
		c.hits++
		return &m, true, nil
	}
	return nil, false, nil
}

func (c *countingCache) Set(_ context.Context, key string, value *domain.FinancialMetrics, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = *value
	return nil
}

type fixture struct {
	svc     *Service
	backend *faultyBackend
	auth    *MockAuthorizer
	cache   *countingCache
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	backend := &faultyBackend{Backend: memory.New(), fail: map[string]bool{}}

	require.NoError(t, store.NewCollection[domain.Product](backend, store.CollectionProducts).Save(ctx, []domain.Product{
		{ID: "shampoo", Name: "Shampoo", Code: "SH", Quantity: 5, CostPrice: d("3"), BasePrice: d("8")},
		{ID: "dye", Name: "Tinte", Code: "TN", Quantity: 2, CostPrice: d("6"), BasePrice: d("15")},
	}))
	require.NoError(t, store.NewCollection[domain.Staff](backend, store.CollectionStaff).Save(ctx, []domain.Staff{
		{ID: "ana", Name: "Ana"},
	}))
	require.NoError(t, store.NewCollection[domain.Client](backend, store.CollectionClients).Save(ctx, []domain.Client{
		{ID: "c1", Code: "C-001", Name: "Marta"},
	}))

	ctrl := gomock.NewController(t)
	auth := NewMockAuthorizer(ctrl)
	metricsCache := &countingCache{data: map[string]domain.FinancialMetrics{}}

	svc := New(backend, auth, Options{
		Location:          time.UTC,
		StockPolicy:       inventory.PolicyReject,
		AllowDeleteActive: true,
		MetricsCache:      metricsCache,
		Now:               func() time.Time { return time.Date(2024, 5, 10, 14, 0, 0, 0, time.UTC) },
	})
	svc.Load(ctx)

	return fixture{svc: svc, backend: backend, auth: auth, cache: metricsCache}
}

func adminCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "admin", Role: "admin"})
}

func saleDraft() domain.SaleDraft {
	return domain.SaleDraft{
		ClientName:      "Marta",
		ClientCode:      "C-001",
		StaffID:         "ana",
		StaffCommission: d("2"),
		StaffDiscount:   &domain.StaffDiscount{Amount: d("1"), Reason: "empleada"},
		Products: []domain.LineItem{
			{ID: "shampoo", Name: "Shampoo", Quantity: 2, OriginalPrice: d("3"), FinalPrice: d("8")},
		},
		PaymentMethod: domain.PaymentCash,
	}
}

func stock(t *testing.T, svc *Service, id string) int {
	t.Helper()
	for _, p := range svc.ListProducts() {
		if p.ID == id {
			return p.Quantity
		}
	}
	t.Fatalf("product %s not found", id)
	return 0
}

func TestCreateSaleCommitsEveryCascade(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	outcome, err := f.svc.CreateSale(ctx, saleDraft())
	require.NoError(t, err)
	assert.True(t, outcome.CoreSucceeded())
	assert.Equal(t, int64(1), outcome.Sale.InvoiceNumber)
	assert.True(t, d("16").Equal(outcome.Sale.Total))

	assert.Equal(t, 3, stock(t, f.svc, "shampoo"))
	require.Len(t, f.svc.ListStaff()[0].Sales, 1)
	require.Len(t, f.svc.ListClients()[0].Purchases, 1)

	// a fresh service over the same backend sees the persisted state
	reloaded := New(f.backend, f.auth, Options{})
	reloaded.Load(ctx)
	got, err := reloaded.GetSale(outcome.Sale.ID)
	require.NoError(t, err)
	assert.Equal(t, outcome.Sale.InvoiceNumber, got.InvoiceNumber)
	assert.Equal(t, 3, stock(t, reloaded, "shampoo"))
}

func TestCreateSaleRollsBackWhenSalesSaveFails(t *testing.T) {
	f := newFixture(t)
	f.backend.setFailing(store.CollectionSales, true)

	_, err := f.svc.CreateSale(context.Background(), saleDraft())
	require.ErrorIs(t, err, domain.ErrPersistence)

	assert.Equal(t, 5, stock(t, f.svc, "shampoo"))
	assert.Empty(t, f.svc.ListStaff()[0].Sales)
	assert.Empty(t, f.svc.ListClients()[0].Purchases)
	list, err := f.svc.ListSales("2024-05-01", "2024-05-31")
	require.NoError(t, err)
	assert.Empty(t, list.Sales)

	stored := store.NewCollection[domain.Product](f.backend, store.CollectionProducts).Load(context.Background())
	assert.Equal(t, 5, stored[0].Quantity)
}

func TestCreateSaleFailsWhenStockSaveFails(t *testing.T) {
	f := newFixture(t)
	f.backend.setFailing(store.CollectionProducts, true)

	_, err := f.svc.CreateSale(context.Background(), saleDraft())
	require.ErrorIs(t, err, domain.ErrPersistence)

	assert.Equal(t, 5, stock(t, f.svc, "shampoo"))
	assert.Empty(t, f.svc.ListStaff()[0].Sales)
	stored := store.NewCollection[domain.Sale](f.backend, store.CollectionSales).Load(context.Background())
	assert.Empty(t, stored)
}

func TestCreateSaleReportsSkippedProducts(t *testing.T) {
	f := newFixture(t)
	draft := saleDraft()
	draft.Products = append(draft.Products, domain.LineItem{ID: "retired", Name: "Laca", Quantity: 1, FinalPrice: d("4")})

	outcome, err := f.svc.CreateSale(context.Background(), draft)
	require.NoError(t, err)
	assert.Equal(t, []string{"retired"}, outcome.SkippedProducts)
	assert.True(t, outcome.CoreSucceeded())
	assert.Equal(t, 3, stock(t, f.svc, "shampoo"))
}

func TestCreateSaleReportsCascadeFailure(t *testing.T) {
	f := newFixture(t)
	f.backend.setFailing(store.CollectionClients, true)

	outcome, err := f.svc.CreateSale(context.Background(), saleDraft())
	require.NoError(t, err)
	assert.False(t, outcome.CoreSucceeded())
	require.Len(t, outcome.CascadeFailures, 1)
	assert.Equal(t, domain.CascadeClient, outcome.CascadeFailures[0].Cascade)

	_, err = f.svc.GetSale(outcome.Sale.ID)
	assert.NoError(t, err)
	assert.Len(t, f.svc.ListClients()[0].Purchases, 1)
}

func TestCreateSaleRejectsOversell(t *testing.T) {
	f := newFixture(t)
	draft := saleDraft()
	draft.Products[0].Quantity = 6

	_, err := f.svc.CreateSale(context.Background(), draft)
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, 5, stock(t, f.svc, "shampoo"))
}

func TestCancelSaleCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.svc.CreateSale(ctx, saleDraft())
	require.NoError(t, err)

	outcome, err := f.svc.CancelSale(ctx, created.Sale.ID, "error de cobro")
	require.NoError(t, err)
	assert.True(t, outcome.CoreSucceeded())
	assert.Equal(t, domain.StatusCancelled, outcome.Sale.Status)
	assert.Equal(t, domain.StatusCancelled, outcome.Sale.StaffDiscount.Status)
	assert.Equal(t, "error de cobro", outcome.Sale.StaffDiscount.CancellationReason)

	assert.Equal(t, 5, stock(t, f.svc, "shampoo"))
	assert.Empty(t, f.svc.ListStaff()[0].Sales)
	assert.Len(t, f.svc.ListClients()[0].Purchases, 1, "client history is kept")

	_, err = f.svc.CancelSale(ctx, created.Sale.ID, "otra vez")
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestCancelSaleRollsBackWhenSalesSaveFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.svc.CreateSale(ctx, saleDraft())
	require.NoError(t, err)

	f.backend.setFailing(store.CollectionSales, true)
	_, err = f.svc.CancelSale(ctx, created.Sale.ID, "x")
	require.ErrorIs(t, err, domain.ErrPersistence)

	sale, err := f.svc.GetSale(created.Sale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, sale.Status)
	assert.Equal(t, 3, stock(t, f.svc, "shampoo"))
	assert.Len(t, f.svc.ListStaff()[0].Sales, 1)
}

func TestCancelSaleFailsWhenRestockSaveFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.svc.CreateSale(ctx, saleDraft())
	require.NoError(t, err)

	f.backend.setFailing(store.CollectionProducts, true)
	_, err = f.svc.CancelSale(ctx, created.Sale.ID, "x")
	require.ErrorIs(t, err, domain.ErrPersistence)

	sale, err := f.svc.GetSale(created.Sale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, sale.Status)
	assert.Equal(t, 3, stock(t, f.svc, "shampoo"))

	stored := store.NewCollection[domain.Sale](f.backend, store.CollectionSales).Load(ctx)
	require.Len(t, stored, 1)
	assert.Equal(t, domain.StatusActive, stored[0].Status)
}

func TestCancelSaleRestoresStoredStockWhenSalesSaveFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.svc.CreateSale(ctx, saleDraft())
	require.NoError(t, err)

	f.backend.setFailing(store.CollectionSales, true)
	_, err = f.svc.CancelSale(ctx, created.Sale.ID, "x")
	require.ErrorIs(t, err, domain.ErrPersistence)

	stored := store.NewCollection[domain.Product](f.backend, store.CollectionProducts).Load(ctx)
	assert.Equal(t, 3, stored[0].Quantity)
}

func TestDeleteAllSalesWithWrongPasswordChangesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.CreateSale(ctx, saleDraft())
	require.NoError(t, err)

	before, err := f.backend.LoadAll(ctx, store.CollectionSales)
	require.NoError(t, err)

	f.auth.EXPECT().ValidateAdminPassword("nope").Return(false)
	_, err = f.svc.DeleteAllSales(ctx, "nope")
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	after, err := f.backend.LoadAll(ctx, store.CollectionSales)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	list, _ := f.svc.ListSales("2024-05-01", "2024-05-31")
	assert.Len(t, list.Sales, 1)
}

func TestDeleteAllSales(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := f.svc.CreateSale(ctx, saleDraft())
		require.NoError(t, err)
	}

	f.auth.EXPECT().ValidateAdminPassword("secreto-largo").Return(true)
	removed, err := f.svc.DeleteAllSales(ctx, "secreto-largo")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	list, _ := f.svc.ListSales("2024-05-01", "2024-05-31")
	assert.Empty(t, list.Sales)
	assert.Equal(t, 1, stock(t, f.svc, "shampoo"), "no inventory reversal")
}

func TestDeleteSaleDistinguishesStorageFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.svc.CreateSale(ctx, saleDraft())
	require.NoError(t, err)

	f.auth.EXPECT().ValidateAdminPassword("secreto-largo").Return(true).Times(2)
	f.backend.setFailing(store.CollectionSales, true)
	err = f.svc.DeleteSale(ctx, created.Sale.ID, "secreto-largo")
	require.ErrorIs(t, err, domain.ErrPersistence)
	_, err = f.svc.GetSale(created.Sale.ID)
	require.NoError(t, err)

	f.backend.setFailing(store.CollectionSales, false)
	require.NoError(t, f.svc.DeleteSale(ctx, created.Sale.ID, "secreto-largo"))
	_, err = f.svc.GetSale(created.Sale.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMetricsCachedUntilMutation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.CreateSale(ctx, saleDraft())
	require.NoError(t, err)

	first, err := f.svc.Metrics(ctx, "2024-05-01", "2024-05-31")
	require.NoError(t, err)
	assert.True(t, d("16").Equal(first.Metrics.TotalSales))
	assert.True(t, d("6").Equal(first.Metrics.CostOfSales))

	_, err = f.svc.Metrics(ctx, "2024-05-01", "2024-05-31")
	require.NoError(t, err)
	assert.Equal(t, 1, f.cache.hits)

	_, err = f.svc.CreateExpense(ctx, domain.ExpenseCreateRequest{Description: "luz", Amount: d("4")})
	require.NoError(t, err)

	after, err := f.svc.Metrics(ctx, "2024-05-01", "2024-05-31")
	require.NoError(t, err)
	assert.Equal(t, 1, f.cache.hits)
	assert.True(t, d("4").Equal(after.Metrics.TotalExpenses))
	assert.True(t, d("6").Equal(after.Metrics.NetProfit))

	_, err = f.svc.Metrics(ctx, "bogus", "2024-05-31")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCreditLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateCredit(ctx, domain.CreditCreateRequest{ClientName: "Rosa", FinalPrice: d("0"), OriginalPrice: d("1")})
	require.ErrorIs(t, err, domain.ErrValidation)

	credit, err := f.svc.CreateCredit(ctx, domain.CreditCreateRequest{ClientName: "Rosa", FinalPrice: d("50"), OriginalPrice: d("30")})
	require.NoError(t, err)

	credit, err = f.svc.AddCreditPayment(ctx, credit.ID, domain.CreditPaymentRequest{Amount: d("25")})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, credit.Status)

	m, err := f.svc.Metrics(ctx, "2024-05-01", "2024-05-31")
	require.NoError(t, err)
	// no sales in range, so only inventory cost is reported
	assert.True(t, m.Metrics.CreditProfit.IsZero())
	assert.True(t, d("27").Equal(m.Metrics.InventoryCost))

	_, err = f.svc.AddCreditPayment(ctx, credit.ID, domain.CreditPaymentRequest{Amount: d("30")})
	require.ErrorIs(t, err, domain.ErrValidation)

	credit, err = f.svc.AddCreditPayment(ctx, credit.ID, domain.CreditPaymentRequest{Amount: d("25")})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, credit.Status)

	_, err = f.svc.AddCreditPayment(ctx, credit.ID, domain.CreditPaymentRequest{Amount: d("1")})
	require.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = f.svc.CancelCredit(ctx, credit.ID, "")
	require.ErrorIs(t, err, domain.ErrValidation)
	credit, err = f.svc.CancelCredit(ctx, credit.ID, "acuerdo")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, credit.Status)

	_, err = f.svc.AddCreditPayment(ctx, "missing", domain.CreditPaymentRequest{Amount: d("1")})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestExpenseCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateExpense(ctx, domain.ExpenseCreateRequest{Description: "alquiler", Amount: d("-1")})
	require.ErrorIs(t, err, domain.ErrValidation)

	expense, err := f.svc.CreateExpense(ctx, domain.ExpenseCreateRequest{Description: "alquiler", Amount: d("300"), Date: "2024-05-02"})
	require.NoError(t, err)
	assert.Equal(t, "2024-05-02T00:00:00.000Z", expense.Date)

	expense, err = f.svc.CancelExpense(ctx, expense.ID, "duplicado")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, expense.Status)

	_, err = f.svc.CancelExpense(ctx, expense.ID, "duplicado")
	require.ErrorIs(t, err, domain.ErrInvalidState)

	listed, err := f.svc.ListExpenses("2024-05-01", "2024-05-03")
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}

func TestCatalogRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	cashier := WithActor(context.Background(), domain.Actor{Username: "caja", Role: "cashier"})

	_, err := f.svc.CreateProduct(cashier, domain.ProductCreateRequest{Name: "Laca", Code: "LC"})
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	product, err := f.svc.CreateProduct(adminCtx(), domain.ProductCreateRequest{Name: "Laca", Code: "lc", CostPrice: d("2"), BasePrice: d("5"), InitialStock: 3})
	require.NoError(t, err)
	assert.Equal(t, "LC", product.Code)

	_, err = f.svc.CreateProduct(adminCtx(), domain.ProductCreateRequest{Name: "Otra", Code: "LC"})
	require.ErrorIs(t, err, domain.ErrValidation)

	product, err = f.svc.RestockProduct(adminCtx(), product.ID, domain.RestockRequest{Quantity: 7})
	require.NoError(t, err)
	assert.Equal(t, 10, product.Quantity)

	price := d("6.5")
	product, err = f.svc.UpdateProduct(adminCtx(), product.ID, domain.ProductUpdateRequest{BasePrice: &price})
	require.NoError(t, err)
	assert.True(t, price.Equal(product.BasePrice))
	assert.Equal(t, 10, product.Quantity)

	_, err = f.svc.UpdateProduct(adminCtx(), "missing", domain.ProductUpdateRequest{})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRestockOfOversoldProductSucceeds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, store.NewCollection[domain.Product](f.backend, store.CollectionProducts).Save(ctx, []domain.Product{
		{ID: "dye", Name: "Tinte", Code: "TN", Quantity: -3, CostPrice: d("6"), BasePrice: d("15")},
	}))
	f.svc.Load(ctx)

	product, err := f.svc.RestockProduct(adminCtx(), "dye", domain.RestockRequest{Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, -2, product.Quantity)
}

func TestMarkCommissionPaid(t *testing.T) {
	f := newFixture(t)
	created, err := f.svc.CreateSale(context.Background(), saleDraft())
	require.NoError(t, err)

	member, err := f.svc.MarkCommissionPaid(adminCtx(), "ana", created.Sale.ID)
	require.NoError(t, err)
	assert.True(t, member.Sales[0].CommissionPaid)

	_, err = f.svc.MarkCommissionPaid(adminCtx(), "ana", created.Sale.ID)
	require.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = f.svc.MarkCommissionPaid(adminCtx(), "ana", "other")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestClientCodesAreUnique(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateClient(context.Background(), domain.ClientCreateRequest{Code: "c-001", Name: "Otra"})
	require.ErrorIs(t, err, domain.ErrValidation)

	client, err := f.svc.CreateClient(context.Background(), domain.ClientCreateRequest{Code: "c-002", Name: "Lola"})
	require.NoError(t, err)
	assert.Equal(t, "C-002", client.Code)
}

func TestCashRegister(t *testing.T) {
	f := newFixture(t)

	register := f.svc.CashRegister(context.Background())
	assert.Equal(t, domain.CashRegisterID, register.ID)
	assert.True(t, register.Amount.IsZero())

	_, err := f.svc.SetCashRegister(adminCtx(), domain.CashRegisterUpdateRequest{Amount: d("-5")})
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.SetCashRegister(adminCtx(), domain.CashRegisterUpdateRequest{Amount: d("150.50")})
	require.NoError(t, err)
	assert.True(t, d("150.50").Equal(f.svc.CashRegister(context.Background()).Amount))

	f.backend.setFailing(store.CollectionCashRegister, true)
	_, err = f.svc.ResetCashRegister(adminCtx())
	require.ErrorIs(t, err, domain.ErrPersistence)

	f.backend.setFailing(store.CollectionCashRegister, false)
	_, err = f.svc.ResetCashRegister(adminCtx())
	require.NoError(t, err)
	assert.True(t, f.svc.CashRegister(context.Background()).Amount.IsZero())
}

func TestAuditLogRecordsMutations(t *testing.T) {
	f := newFixture(t)
	ctx := adminCtx()
	created, err := f.svc.CreateSale(ctx, saleDraft())
	require.NoError(t, err)
	_, err = f.svc.CancelSale(ctx, created.Sale.ID, "x")
	require.NoError(t, err)

	logs, err := f.svc.ListAuditLogs(ctx, "2024-05-10", "2024-05-10", 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	actions := []string{logs[0].Action, logs[1].Action}
	assert.ElementsMatch(t, []string{"sale_create", "sale_cancel"}, actions)
	assert.Equal(t, "admin", logs[0].ActorUsername)
}
