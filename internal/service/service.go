package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"salonpos/backend/internal/cache"
	"salonpos/backend/internal/domain"
	"salonpos/backend/internal/inventory"
	"salonpos/backend/internal/lifecycle"
	"salonpos/backend/internal/store"
	"salonpos/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Options struct {
	Location          *time.Location
	StockPolicy       inventory.Policy
	AllowDeleteActive bool
	MetricsCache      cache.MetricsCache
	MetricsCacheTTL   time.Duration
	Now               func() time.Time
}

// state is the in-memory snapshot every operation reads from. Slices are
// replaced, never mutated in place, so handing them out as copies of the
// header is enough.
type state struct {
	sales    []domain.Sale
	products []domain.Product
	staff    []domain.Staff
	clients  []domain.Client
	expenses []domain.Expense
	credits  []domain.Credit
}

// Service owns the snapshot. Writers hold mu for the whole compute, persist
// and commit sequence, so invoice numbers and stock are always derived from
// one consistent view.
type Service struct {
	mu    sync.RWMutex
	state state

	sales    *store.Collection[domain.Sale]
	products *store.Collection[domain.Product]
	staff    *store.Collection[domain.Staff]
	clients  *store.Collection[domain.Client]
	expenses *store.Collection[domain.Expense]
	credits  *store.Collection[domain.Credit]
	audit    *store.Collection[domain.AuditLog]
	register *store.Singleton[domain.CashRegister]

	manager  *lifecycle.Manager
	adjuster *inventory.Adjuster
	auth     Authorizer

	cache      cache.MetricsCache
	cacheTTL   time.Duration
	generation string
	version    uint64

	loc *time.Location
	now func() time.Time
}

func New(backend store.Backend, auth Authorizer, opts Options) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.MetricsCache == nil {
		opts.MetricsCache = cache.NoopMetricsCache{}
	}
	if opts.MetricsCacheTTL <= 0 {
		opts.MetricsCacheTTL = time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	adjuster := inventory.NewAdjuster(opts.StockPolicy)
	return &Service{
		sales:    store.NewCollection[domain.Sale](backend, store.CollectionSales),
		products: store.NewCollection[domain.Product](backend, store.CollectionProducts),
		staff:    store.NewCollection[domain.Staff](backend, store.CollectionStaff),
		clients:  store.NewCollection[domain.Client](backend, store.CollectionClients),
		expenses: store.NewCollection[domain.Expense](backend, store.CollectionExpenses),
		credits:  store.NewCollection[domain.Credit](backend, store.CollectionCredits),
		audit:    store.NewCollection[domain.AuditLog](backend, store.CollectionAuditLogs),
		register: store.NewSingleton[domain.CashRegister](backend, store.CollectionCashRegister, domain.CashRegisterID, func() domain.CashRegister {
			return domain.CashRegister{ID: domain.CashRegisterID, LastModified: domain.FormatTimestamp(opts.Now())}
		}),
		manager: lifecycle.NewManager(adjuster, lifecycle.Options{
			AllowDeleteActive: opts.AllowDeleteActive,
			Now:               opts.Now,
		}),
		adjuster:   adjuster,
		auth:       auth,
		cache:      opts.MetricsCache,
		cacheTTL:   opts.MetricsCacheTTL,
		generation: xid.New("gen"),
		loc:        opts.Location,
		now:        opts.Now,
	}
}

// Load replaces the snapshot with the stored collections. A collection that
// cannot be read comes back empty (and is logged by the store).
func (s *Service) Load(ctx context.Context) {
	next := state{
		sales:    s.sales.Load(ctx),
		products: s.products.Load(ctx),
		staff:    s.staff.Load(ctx),
		clients:  s.clients.Load(ctx),
		expenses: s.expenses.Load(ctx),
		credits:  s.credits.Load(ctx),
	}

	s.mu.Lock()
	s.state = next
	s.version++
	s.mu.Unlock()

	log.Printf("[service] loaded sales=%d products=%d staff=%d clients=%d expenses=%d credits=%d",
		len(next.sales), len(next.products), len(next.staff), len(next.clients), len(next.expenses), len(next.credits))
}

func (s *Service) Location() *time.Location {
	return s.loc
}

// snapshot must be called with mu held.
func (s *Service) snapshot() lifecycle.Snapshot {
	return lifecycle.Snapshot{
		Sales:    s.state.sales,
		Products: s.state.products,
		Staff:    s.state.staff,
		Clients:  s.state.clients,
	}
}

// touch invalidates cached metrics. Callers hold mu.
func (s *Service) touch() {
	s.version++
}

func (s *Service) stamp() string {
	return domain.FormatTimestamp(s.now())
}

func requireAdmin(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return fmt.Errorf("%w: admin role required", domain.ErrUnauthorized)
	}
	return nil
}

func persistenceError(what string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrPersistence, what, err)
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.audit.Put(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     s.stamp(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}

func defaultString(value string, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	return value
}
