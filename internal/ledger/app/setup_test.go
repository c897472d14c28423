package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/abgdnv/pos/internal/ledger/store"
	"github.com/abgdnv/pos/pkg/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupHttpHandler_ServesLedgerAndMetrics(t *testing.T) {
	// given
	mp, metricsHandler, err := telemetry.NewMeterProvider("pos-service-test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = mp.Shutdown(t.Context()) })

	deps := SetupDependencies(store.NewInMemoryStore(), nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	deps.MetricsHandler = metricsHandler
	h := SetupHttpHandler(deps)

	do := func(method, target, body string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(method, target, strings.NewReader(body)))
		return rr
	}

	// when
	add := do(http.MethodPost, "/add_product", `{"id":"A","name":"Widget","price":10,"quantity":1}`)
	sale := do(http.MethodPost, "/add_to_sale", `{"id":"A"}`)
	pay := do(http.MethodPost, "/process_payment", `{"amount":10}`)
	metrics := do(http.MethodGet, "/metrics", "")

	// then
	assert.Equal(t, http.StatusCreated, add.Code)
	assert.Equal(t, http.StatusOK, sale.Code)
	assert.Equal(t, http.StatusOK, pay.Code)
	assert.Equal(t, http.StatusOK, metrics.Code)
	assert.Contains(t, metrics.Body.String(), "sales_completed")
}

func TestSetupHttpHandler_UnknownRoute(t *testing.T) {
	deps := SetupDependencies(store.NewInMemoryStore(), nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	rr := httptest.NewRecorder()
	SetupHttpHandler(deps).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
