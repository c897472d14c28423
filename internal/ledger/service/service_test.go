package service

import (
	"context"
	"errors"
	"testing"
	"time"

	lerrors "github.com/abgdnv/pos/internal/ledger/errors"
	"github.com/abgdnv/pos/internal/ledger/store"
	"github.com/abgdnv/pos/pkg/api"
	"github.com/abgdnv/pos/pkg/messaging"
	"github.com/abgdnv/pos/pkg/messaging/events"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockPublisher records published events and optionally fails.
type mockPublisher struct {
	events []messaging.Event
	error  error
}

func (m *mockPublisher) Publish(_ context.Context, event messaging.Event) error {
	m.events = append(m.events, event)
	return m.error
}

// failingStore fails every call with err.
type failingStore struct {
	store.LedgerStore
	err error
}

func (f failingStore) FindAllProducts(context.Context) ([]store.Product, error) { return nil, f.err }
func (f failingStore) CurrentSale(context.Context) ([]store.SaleLine, error)   { return nil, f.err }
func (f failingStore) CloseSale(context.Context, store.SaleBuilder) (*store.Sale, error) {
	return nil, f.err
}

var fixedTime = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
var fixedID = uuid.MustParse("6f1c6b1e-2f7c-4d7e-9b55-0f4b2a4c9e11")

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func amount(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(dec(s))
}

func newTestService(t *testing.T, publisher messaging.Publisher, products ...api.ProductDto) *Service {
	t.Helper()
	svc := NewService(store.NewInMemoryStore(), publisher)
	svc.now = func() time.Time { return fixedTime }
	svc.newID = func() uuid.UUID { return fixedID }
	for _, p := range products {
		require.NoError(t, svc.AddProduct(context.Background(), p))
	}
	return svc
}

var widget = api.ProductDto{ID: "A", Name: "Widget", Price: dec("10.00"), Quantity: 5}
var gadget = api.ProductDto{ID: "B", Name: "Gadget", Price: dec("5.50"), Quantity: 5}

func TestService_ProcessPayment(t *testing.T) {
	testCases := []struct {
		name           string
		adds           map[string]int
		amount         decimal.NullDecimal
		expectedChange string
		expectedError  error
	}{
		{
			name:           "pays and returns change",
			adds:           map[string]int{"A": 2, "B": 1},
			amount:         amount("30.00"),
			expectedChange: "4.50",
		},
		{
			name:           "exact amount",
			adds:           map[string]int{"B": 2},
			amount:         amount("11.00"),
			expectedChange: "0.00",
		},
		{
			name:          "missing amount",
			adds:          map[string]int{"A": 1},
			amount:        decimal.NullDecimal{},
			expectedError: lerrors.ErrInvalidPaymentAmount,
		},
		{
			name:          "negative amount",
			adds:          map[string]int{"A": 1},
			amount:        amount("-1"),
			expectedError: lerrors.ErrInvalidPaymentAmount,
		},
		{
			name:          "insufficient payment",
			adds:          map[string]int{"A": 1},
			amount:        amount("9.99"),
			expectedError: lerrors.ErrInsufficientPayment,
		},
		{
			name:          "empty sale",
			amount:        amount("5"),
			expectedError: lerrors.ErrEmptySale,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			ctx := context.Background()
			publisher := &mockPublisher{}
			svc := newTestService(t, publisher, widget, gadget)
			for id, q := range tc.adds {
				require.NoError(t, svc.AddToSale(ctx, id, q))
			}

			// when
			sale, err := svc.ProcessPayment(ctx, tc.amount)

			// then
			if tc.expectedError != nil {
				assert.ErrorIs(t, err, tc.expectedError)
				assert.Nil(t, sale)
				assert.Empty(t, publisher.events)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expectedChange, sale.Change.StringFixed(2))
			assert.Equal(t, fixedID, sale.SaleID)
			assert.Equal(t, fixedTime.Unix(), sale.Timestamp)
			require.Len(t, publisher.events, 1)
			event := publisher.events[0].(events.SaleCompletedEvent)
			assert.Equal(t, fixedID, event.SaleID)
			assert.Equal(t, messaging.SalesCompletedSubject, event.Subject())

			total, err := svc.Total(ctx)
			require.NoError(t, err)
			assert.True(t, total.IsZero())
		})
	}
}

func TestService_EndToEndTotals(t *testing.T) {
	// given
	ctx := context.Background()
	svc := newTestService(t, nil, widget, gadget)

	// when
	require.NoError(t, svc.AddToSale(ctx, "A", 2))
	require.NoError(t, svc.AddToSale(ctx, "B", 1))
	total, err := svc.Total(ctx)

	// then
	require.NoError(t, err)
	assert.Equal(t, "25.50", total.StringFixed(2))
	inventory, err := svc.Inventory(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, inventory[0].Quantity)
	assert.Equal(t, 4, inventory[1].Quantity)
}

func TestService_PublishFailureDoesNotFailPayment(t *testing.T) {
	// given
	ctx := context.Background()
	svc := newTestService(t, &mockPublisher{error: errors.New("broker down")}, widget)
	require.NoError(t, svc.AddToSale(ctx, "A", 1))

	// when
	sale, err := svc.ProcessPayment(ctx, amount("10"))

	// then
	require.NoError(t, err)
	history, err := svc.SalesHistory(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, sale.SaleID, history[0].SaleID)
}

func TestService_AddToSale(t *testing.T) {
	testCases := []struct {
		name          string
		id            string
		quantity      int
		expectedError error
	}{
		{name: "available", id: "A", quantity: 5},
		{name: "short stock", id: "A", quantity: 6, expectedError: lerrors.ErrProductUnavailable},
		{name: "unknown product", id: "Z", quantity: 1, expectedError: lerrors.ErrProductUnavailable},
		{name: "zero quantity", id: "A", quantity: 0, expectedError: lerrors.ErrProductUnavailable},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			svc := newTestService(t, nil, widget)

			// when
			err := svc.AddToSale(context.Background(), tc.id, tc.quantity)

			// then
			if tc.expectedError != nil {
				assert.ErrorIs(t, err, tc.expectedError)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestService_UpdateQuantityAndDelete(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil, widget)

	require.NoError(t, svc.UpdateQuantity(ctx, "A", 3))
	assert.ErrorIs(t, svc.UpdateQuantity(ctx, "A", -9), lerrors.ErrInsufficientStock)
	assert.ErrorIs(t, svc.UpdateQuantity(ctx, "Z", 1), lerrors.ErrProductNotFound)

	inventory, _ := svc.Inventory(ctx)
	assert.Equal(t, 8, inventory[0].Quantity)

	require.NoError(t, svc.DeleteProduct(ctx, "A"))
	assert.ErrorIs(t, svc.DeleteProduct(ctx, "A"), lerrors.ErrProductNotFound)
}

func TestService_Reports(t *testing.T) {
	// given
	ctx := context.Background()
	svc := newTestService(t, nil, widget, gadget)
	require.NoError(t, svc.AddToSale(ctx, "A", 1))
	_, err := svc.ProcessPayment(ctx, amount("10"))
	require.NoError(t, err)

	// when
	daily, err := svc.DailyReport(ctx)
	require.NoError(t, err)
	inv, err := svc.InventoryReport(ctx)
	require.NoError(t, err)

	// then
	assert.Equal(t, "10.00", daily["2026-03-14"].StringFixed(2))
	assert.Equal(t, 9, inv.TotalUnits)
	assert.Equal(t, "67.50", inv.TotalValue.StringFixed(2))
}

func TestService_ClearSale(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil, widget)
	require.NoError(t, svc.AddToSale(ctx, "A", 2))

	require.NoError(t, svc.ClearSale(ctx))

	total, _ := svc.Total(ctx)
	assert.True(t, total.IsZero())
	inventory, _ := svc.Inventory(ctx)
	assert.Equal(t, 3, inventory[0].Quantity)
}

func TestService_StoreErrorsAreWrapped(t *testing.T) {
	// given
	errDB := errors.New("db down")
	svc := NewService(failingStore{err: errDB}, nil)
	ctx := context.Background()

	// when
	_, invErr := svc.Inventory(ctx)
	_, totalErr := svc.Total(ctx)
	_, payErr := svc.ProcessPayment(ctx, amount("1"))
	_, reportErr := svc.InventoryReport(ctx)

	// then
	for _, err := range []error{invErr, totalErr, payErr, reportErr} {
		assert.ErrorIs(t, err, errDB)
	}
}
