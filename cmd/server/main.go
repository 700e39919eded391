// Command server runs the service desk: webhook ingress for user updates and
// channel posts, the operator API, and the background session sweeper.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"gorm.io/gorm"

	"github.com/tbourn/go-service-desk/internal/catalog"
	"github.com/tbourn/go-service-desk/internal/config"
	"github.com/tbourn/go-service-desk/internal/gateway"
	httpapi "github.com/tbourn/go-service-desk/internal/http"
	"github.com/tbourn/go-service-desk/internal/http/handlers"
	"github.com/tbourn/go-service-desk/internal/observability"
	"github.com/tbourn/go-service-desk/internal/repo"
	"github.com/tbourn/go-service-desk/internal/services"
	"github.com/tbourn/go-service-desk/internal/session"
	"github.com/tbourn/go-service-desk/internal/sysutil"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	envFile := pflag.String("env-file", "", "dotenv file to load before reading the environment (default .env when present)")
	catalogPath := pflag.String("catalog", "", "YAML catalog to seed at startup (overrides CATALOG_PATH)")
	pflag.Parse()

	if err := loadEnv(*envFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	cfg.CatalogPath = sysutil.FirstNonEmpty(*catalogPath, cfg.CatalogPath)

	sysutil.SetupLogger(cfg.LogLevel, cfg.LogPretty, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

// loadEnv reads an explicit dotenv file, or .env when it exists.
func loadEnv(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		return nil
	}
	if _, err := os.Stat(".env"); err == nil {
		return godotenv.Load()
	}
	return nil
}

func run(ctx context.Context, cfg config.Config) error {
	shutdownTracing, err := observability.SetupTracing(ctx, cfg.OTEL, version)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn().Err(err).Msg("tracing shutdown")
		}
	}()

	db, err := repo.Open(repo.Options{
		Driver:       cfg.DBDriver,
		Path:         cfg.DBPath,
		DSN:          cfg.DatabaseURL,
		MaxOpenConns: cfg.DBMaxOpenConns,
		Tracing:      cfg.OTEL.Enabled,
	})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := seedCatalog(ctx, db, cfg.CatalogPath); err != nil {
		return err
	}

	gw, err := newGateway(cfg.Gateway)
	if err != nil {
		return err
	}

	store := session.New(cfg.Workflow.SessionTTL, nil)
	go store.Run(ctx, cfg.Workflow.SessionSweepInterval, func(removed int) {
		observability.ObserveSessions(store.Len(), removed)
	})
	go purgeUpdates(ctx, db, cfg.UpdateDedupTTL)

	d := services.NewDispatcher(db, store, gw, services.Options{
		Operators:        cfg.OperatorIDs,
		Sink:             observability.DeliveryMetrics{},
		CodeAttempts:     cfg.Workflow.TrackingCodeAttempts,
		DedupTTL:         cfg.UpdateDedupTTL,
		Retention:        cfg.Content.Retention,
		TitleMaxRunes:    cfg.Content.TitleMaxRunes,
		PreviewMaxRunes:  cfg.Content.PreviewMaxRunes,
		DefaultPostLimit: cfg.Content.DefaultPostLimit,
		MaxPostLimit:     cfg.Content.MaxPostLimit,
	})
	h := handlers.New(handlers.Deps{
		Dispatcher:   d,
		Orders:       d.Orders,
		Completer:    d.Relay,
		Posts:        d.Posts,
		Users:        d.Users,
		MaxPostLimit: cfg.Content.MaxPostLimit,
	})

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, h, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("version", version).
			Str("gateway", cfg.Gateway.Mode).
			Int("operators", len(cfg.OperatorIDs)).
			Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(sctx)
}

func seedCatalog(ctx context.Context, db *gorm.DB, path string) error {
	if path == "" {
		return nil
	}
	f, err := catalog.Load(path)
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	res, err := catalog.Seed(ctx, db, f)
	if err != nil {
		return fmt.Errorf("catalog seed: %w", err)
	}
	log.Info().Str("path", path).Int("categories", res.Categories).Int("services", res.Services).Msg("catalog seeded")
	return nil
}

func newGateway(c config.GatewayConfig) (gateway.Gateway, error) {
	switch c.Mode {
	case "http":
		return gateway.NewHTTPGateway(c.URL, c.Timeout), nil
	case "log":
		return gateway.NewLogGateway(log.Logger.With().Str("component", "gateway").Logger()), nil
	}
	return nil, fmt.Errorf("unknown gateway mode %q", c.Mode)
}

// purgeUpdates drops expired de-duplication rows once per ttl/4, at most hourly.
func purgeUpdates(ctx context.Context, db *gorm.DB, ttl time.Duration) {
	every := ttl / 4
	if every <= 0 || every > time.Hour {
		every = time.Hour
	}
	t := time.NewTicker(every)
	defer t.Stop()
	l := zerolog.Ctx(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := repo.PurgeExpiredUpdates(ctx, db, now)
			if err != nil {
				l.Warn().Err(err).Msg("purge processed updates")
				continue
			}
			if n > 0 {
				l.Debug().Int64("removed", n).Msg("purged processed updates")
			}
		}
	}
}
