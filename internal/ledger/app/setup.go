// Package app contains the application setup for the POS ledger service.
package app

import (
	"log/slog"
	"net/http"

	"github.com/abgdnv/pos/internal/ledger/service"
	"github.com/abgdnv/pos/internal/ledger/store"
	"github.com/abgdnv/pos/internal/ledger/transport/rest"
	"github.com/abgdnv/pos/pkg/config"
	"github.com/abgdnv/pos/pkg/messaging"
	"github.com/abgdnv/pos/pkg/server"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Dependencies struct {
	LedgerService  service.LedgerService
	MetricsHandler http.Handler
	MetricsPath    string
	Logger         *slog.Logger
}

// SetupDependencies wires the ledger service on top of the given store.
// A nil publisher disables sale events.
func SetupDependencies(ledgerStore store.LedgerStore, publisher messaging.Publisher, logger *slog.Logger) *Dependencies {
	return &Dependencies{
		LedgerService: service.NewService(ledgerStore, publisher),
		Logger:        logger,
	}
}

// SetupHttpHandler initializes the routes and middleware of the ledger API.
// Used by tests to drive the full HTTP stack without a listener.
func SetupHttpHandler(deps *Dependencies) http.Handler {
	mux := server.NewChiRouter(deps.Logger)
	wireRoutes(mux, deps)
	return otelhttp.NewHandler(mux, "pos-service")
}

// wireRoutes sets up the HTTP routes of the ledger.
func wireRoutes(mux *chi.Mux, deps *Dependencies) {
	rest.NewHandler(deps.LedgerService, deps.Logger).RegisterRoutes(mux)
	if deps.MetricsHandler != nil {
		path := deps.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		mux.Method(http.MethodGet, path, deps.MetricsHandler)
	}
}

// SetupHttpServer creates and configures the HTTP server of the ledger.
func SetupHttpServer(deps *Dependencies, cfg config.HTTPConfig) *http.Server {
	return server.NewHTTPServer(cfg, SetupHttpHandler(deps))
}
