package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"

	"salonpos/backend/internal/cache"
	"salonpos/backend/internal/config"
	"salonpos/backend/internal/domain"
	"salonpos/backend/internal/httpapi"
	"salonpos/backend/internal/inventory"
	"salonpos/backend/internal/service"
	"salonpos/backend/internal/store"
	"salonpos/backend/internal/store/memory"
	mongostore "salonpos/backend/internal/store/mongo"
	pgstore "salonpos/backend/internal/store/postgres"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	policy, err := inventory.ParsePolicy(cfg.StockPolicy)
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	backend, closers, err := openBackend(ctx, cfg)
	if err != nil {
		log.Fatalf("storage unavailable: %v", err)
	}
	backend = store.Retrying(backend, cfg.StoreRetryAttempts, cfg.StoreRetryBaseDelay)

	metricsCache := cache.MetricsCache(cache.NoopMetricsCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisMetricsCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), using noop cache", err)
		} else {
			metricsCache = redisCache
			closers = append(closers, redisCache.Close)
			log.Println("cache: redis")
		}
	} else {
		log.Println("cache: noop")
	}

	auth := httpapi.NewAuthManager(cfg.AuthSecret, cfg.AccessTokenTTL(), cfg.AdminPassword, httpapi.NewCollectionUserStore(backend))
	if err := auth.EnsureUser(ctx, "admin", cfg.AdminPassword, domain.RoleAdmin); err != nil {
		log.Fatalf("seed admin account: %v", err)
	}
	if err := auth.EnsureUser(ctx, "caja", cfg.CashierPassword, domain.RoleCashier); err != nil {
		log.Printf("seed cashier account failed: %v", err)
	}

	svc := service.New(backend, auth, service.Options{
		Location:          loc,
		StockPolicy:       policy,
		AllowDeleteActive: cfg.AllowDeleteActiveSales,
		MetricsCache:      metricsCache,
		MetricsCacheTTL:   cfg.MetricsCacheTTL(),
	})
	svc.Load(ctx)

	api := httpapi.New(svc, auth, httpapi.Options{
		AllowedOrigin: cfg.AllowedOrigin,
		ReportLocale:  cfg.ReportLocale,
	})

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("salon POS backend listening on %s (storage=%s, stock policy=%s, tz=%s)", cfg.Address(), cfg.StorageBackend, policy, loc)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("server stopped")
}

// openBackend refuses to fall back to memory when a database was asked for,
// so a misconfigured deployment never silently loses its data.
func openBackend(ctx context.Context, cfg config.Config) (store.Backend, []func() error, error) {
	switch cfg.StorageBackend {
	case config.BackendPostgres:
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		log.Println("storage: postgres")
		return pg, []func() error{pg.Close}, nil
	case config.BackendMongo:
		mg, err := mongostore.New(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, nil, fmt.Errorf("mongo: %w", err)
		}
		log.Println("storage: mongo")
		return mg, []func() error{mg.Close}, nil
	case config.BackendMemory:
		log.Println("storage: in-memory")
		return memory.NewSeeded(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if len(cfg.AdminPassword) < 8 {
		return fmt.Errorf("ADMIN_PASSWORD must be set and at least 8 characters")
	}
	if err := validatePasswordStrength(cfg.AdminPassword); err != nil {
		return fmt.Errorf("ADMIN_PASSWORD is too weak: %w", err)
	}
	return nil
}

// validatePasswordStrength rejects passwords that repeat one character, run
// sequentially (ascending or descending), or appear on a known-weak list.
func validatePasswordStrength(password string) error {
	known := map[string]bool{
		"password": true, "12345678": true, "87654321": true, "admin123": true,
		"qwertyui": true, "contraseña": true, "salon123": true, "11111111": true,
	}
	if known[strings.ToLower(password)] {
		return fmt.Errorf("common password not allowed")
	}

	allSame := true
	for i := 1; i < len(password); i++ {
		if password[i] != password[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return fmt.Errorf("single repeated character not allowed")
	}

	ascending, descending := true, true
	for i := 1; i < len(password); i++ {
		diff := int(password[i]) - int(password[i-1])
		if diff != 1 {
			ascending = false
		}
		if diff != -1 {
			descending = false
		}
	}
	if ascending || descending {
		return fmt.Errorf("sequential password not allowed")
	}

	return nil
}
