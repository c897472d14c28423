package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/abgdnv/pos/internal/ledger/app"
	"github.com/abgdnv/pos/internal/ledger/config"
	"github.com/abgdnv/pos/internal/ledger/receipt"
	"github.com/abgdnv/pos/internal/ledger/store"
	"github.com/abgdnv/pos/pkg/bootstrap"
	pkgconfig "github.com/abgdnv/pos/pkg/config"
	"github.com/abgdnv/pos/pkg/config/configloader"
	"github.com/abgdnv/pos/pkg/messaging"
	"github.com/abgdnv/pos/pkg/nats"
	"github.com/abgdnv/pos/pkg/telemetry"
	"golang.org/x/sync/errgroup"
)

const serviceName = "pos_svc"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Printf("application run failed: %v", err)
		os.Exit(1)
	}
	log.Println("application stopped gracefully")
}

// run loads the configuration, wires the ledger and starts the HTTP, pprof and receipt workers.
func run(ctx context.Context) error {
	cfg, cfgErr := configloader.Load[*config.Config](serviceName)
	if cfgErr != nil {
		return fmt.Errorf("failed to load configuration: %w", cfgErr)
	}
	log.Printf("Configuration loaded: %v", cfg)

	logger := bootstrap.NewLogger(cfg.Log.Level)
	slog.SetDefault(logger)

	if cfg.Telemetry.Traces.Enabled {
		tp, err := telemetry.NewTracerProvider(ctx, "pos-service", cfg.Telemetry)
		if err != nil {
			return fmt.Errorf("failed to create tracer provider: %w", err)
		}
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				logger.Error("Failed to shutdown tracer provider", slog.String("error", err.Error()))
			}
		}()
	}

	var metricsHandler http.Handler
	if cfg.Telemetry.Metrics.Enabled {
		mp, handler, err := telemetry.NewMeterProvider("pos-service")
		if err != nil {
			return fmt.Errorf("failed to create meter provider: %w", err)
		}
		defer func() {
			if err := mp.Shutdown(context.Background()); err != nil {
				logger.Error("Failed to shutdown meter provider", slog.String("error", err.Error()))
			}
		}()
		metricsHandler = handler
	}

	ledgerStore, closeStore, err := newLedgerStore(ctx, cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	g, gCtx := errgroup.WithContext(ctx)

	var publisher messaging.Publisher = messaging.NoopPublisher{}
	if cfg.Nats.Enabled {
		natsConn, err := nats.NewClient(cfg.Nats.Url, cfg.Nats.Timeout)
		if err != nil {
			return fmt.Errorf("failed to create NATS connection: %w", err)
		}
		defer natsConn.Close()
		js, err := nats.NewJetStreamContext(natsConn)
		if err != nil {
			return fmt.Errorf("failed to get JetStream context: %w", err)
		}
		if _, err := nats.EnsureStream(ctx, js, cfg.Nats.Stream, messaging.SalesCompletedSubject); err != nil {
			return fmt.Errorf("failed to ensure stream %s: %w", cfg.Nats.Stream, err)
		}
		publisher = nats.NewNatsPublisher(js)
		logger.Info("Sale events are published", slog.String("stream", cfg.Nats.Stream))

		if cfg.Receipts.Enabled {
			printer := receipt.NewPrinter(os.Stdout, logger)
			g.Go(func() error {
				logger.Info("Receipt printer started")
				err := printer.Start(gCtx, js, cfg.Nats.Stream, cfg.Receipts.Subscriber)
				if err != nil && !errors.Is(err, context.Canceled) {
					return fmt.Errorf("receipt printer failed: %w", err)
				}
				logger.Info("Receipt printer stopped gracefully")
				return nil
			})
		}
	}

	deps := app.SetupDependencies(ledgerStore, publisher, logger)
	deps.MetricsHandler = metricsHandler
	deps.MetricsPath = cfg.Telemetry.Metrics.Path
	httpServer := app.SetupHttpServer(deps, cfg.HTTPServer)

	// Start the HTTP server
	g.Go(func() error {
		logger.Info("HTTP server listening", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	// gracefully shutdown HTTP server on context cancellation
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	// Start the pprof server if enabled
	if cfg.PProf.Enabled {
		pprofServer := &http.Server{
			Addr: cfg.PProf.Addr,
		}
		g.Go(func() error {
			logger.Info("Pprof server listening", slog.String("addr", pprofServer.Addr))
			if err := pprofServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("pprof server failed: %w", err)
			}
			return nil
		})
		// gracefully shutdown pprof server on context cancellation
		g.Go(func() error {
			<-gCtx.Done()
			logger.Info("Shutting down pprof server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
			defer cancel()
			return pprofServer.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("errgroup encountered an error: %w", err)
	}
	return nil
}

// newLedgerStore creates the store selected by the storage driver.
// The returned func releases the resources held by the store.
func newLedgerStore(ctx context.Context, cfg pkgconfig.StorageConfig, logger *slog.Logger) (store.LedgerStore, func(), error) {
	if cfg.Driver != pkgconfig.StoragePostgres {
		logger.Info("Using in-memory ledger storage")
		return store.NewInMemoryStore(), func() {}, nil
	}

	if cfg.Database.Migrations != "" {
		if err := bootstrap.MigrateUp(cfg.Database.URL, cfg.Database.Migrations); err != nil {
			return nil, nil, fmt.Errorf("failed to apply migrations: %w", err)
		}
		logger.Info("Database migrations applied", slog.String("dir", cfg.Database.Migrations))
	}

	dbPool, err := bootstrap.NewDbPool(ctx, cfg.Database.URL, cfg.Database.Timeout)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create database connection pool: %w", err)
	}
	logger.Info("Successfully connected to the database!")
	return store.NewPgStore(dbPool), dbPool.Close, nil
}
