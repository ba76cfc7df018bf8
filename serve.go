package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
	"k8s.io/utils/clock"

	"guestcharge/config"
	"guestcharge/handlers"
	"guestcharge/services"
	"guestcharge/utils"
)

const (
	cleanupInterval    = time.Minute
	operatorSessionTTL = 8 * time.Hour
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			defer func() { _ = utils.L().Sync() }()

			if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {
				utils.Debug("main", fmt.Sprintf(format, args...))
			})); err != nil {
				utils.Warn("main", "Failed to set GOMAXPROCS", "error", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.AppConfig) error {
	clk := clock.RealClock{}

	backend := services.NewBackendClient(cfg.Backend.BaseURL, services.NewDefaultHTTPClient(cfg.BackendTimeout()), cfg.Payment.Mode)

	cache, cacheCleanup, err := openAuthorizationCache(cfg, clk)
	if err != nil {
		return err
	}
	var provider services.PaymentProvider
	if cfg.Stripe.SecretKey != "" {
		provider = services.NewCachedProvider(services.NewStripeProvider(cfg.Stripe.SecretKey), cache)
	}

	ledger, err := services.OpenLedger(cfg.Ledger)
	if err != nil {
		return err
	}
	defer func() {
		if err := ledger.Close(); err != nil {
			utils.Error("main", "Error closing ledger", "error", err)
		}
	}()

	views := services.NewViewRegistry(services.ViewDeps{
		Fetcher:       backend,
		Stopper:       backend,
		Clock:         clk,
		PollInterval:  cfg.PollInterval(),
		FinalizeDwell: cfg.FinalizeDwell(),
	})
	defer views.CloseAll()
	forms := services.NewPaymentFormRegistry(cfg.FormTTL(), clk)

	var operator *services.OperatorAuth
	if cfg.OperatorEnabled() {
		operator = services.NewOperatorAuth(cfg.Operator.PasswordHash, cfg.Operator.JWTSecret, operatorSessionTTL)
	}

	h := handlers.New(handlers.Deps{
		Config:    cfg,
		Initiator: backend,
		Invoices:  backend,
		Provider:  provider,
		Cache:     cache,
		Ledger:    ledger,
		Views:     views,
		Forms:     forms,
		Operator:  operator,
	})

	cleanups := []func() int{forms.CleanupExpired}
	if cacheCleanup != nil {
		cleanups = append(cleanups, cacheCleanup)
	}
	go services.RunCleanup(ctx, clk, cleanupInterval, cleanups...)

	server, err := handlers.NewServer(cfg.HTTPAddress(), h.Router(), cfg.HTTP.SelfSignedTLS)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	utils.Info("main", "Guest charging front end starting",
		"addr", cfg.HTTPAddress(),
		"payment_mode", cfg.Payment.Mode,
		"backend", cfg.Backend.BaseURL,
		"ledger", cfg.Ledger.Driver,
		"operator_pages", operator != nil,
	)
	return server.Run(ctx)
}

// openAuthorizationCache returns the shared Redis cache when configured and
// the in-process one otherwise. The cleanup func is nil for Redis since keys expire there.
func openAuthorizationCache(cfg *config.AppConfig, clk clock.PassiveClock) (services.AuthorizationCache, func() int, error) {
	if cfg.Redis.Addr != "" {
		client, err := services.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		utils.Info("main", "Using Redis authorization cache", "addr", cfg.Redis.Addr)
		return services.NewRedisAuthorizationCache(client, cfg.AuthorizationCacheTTL()), nil, nil
	}
	mem := services.NewMemoryAuthorizationCache(cfg.AuthorizationCacheTTL(), clk)
	return mem, mem.CleanupExpired, nil
}
