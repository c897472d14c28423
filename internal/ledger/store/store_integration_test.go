package store

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	lerrors "github.com/abgdnv/pos/internal/ledger/errors"
	"github.com/abgdnv/pos/pkg/bootstrap"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const skipIntegrationTests = "POS_SVC_SKIP_INTEGRATION_TESTS"

// PgStoreSuite runs the PgStore against a real PostgreSQL.
type PgStoreSuite struct {
	suite.Suite
	pgContainer *postgres.PostgresContainer
	dbPool      *pgxpool.Pool
	store       LedgerStore
	logger      *slog.Logger
	ctx         context.Context
}

func (s *PgStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	var err error
	s.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	s.pgContainer, err = postgres.Run(s.ctx,
		"postgres:17.5-alpine",
		postgres.WithDatabase("pos"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Minute),
		),
	)
	require.NoError(s.T(), err, "Failed to run PostgreSQL container")

	connStr, err := s.pgContainer.ConnectionString(s.ctx, "sslmode=disable")
	require.NoError(s.T(), err, "Failed to get connection string from container")

	s.dbPool, err = bootstrap.NewDbPool(s.ctx, connStr, 30*time.Second)
	require.NoError(s.T(), err, "Failed to create pgxpool")

	wd, _ := os.Getwd()
	err = bootstrap.MigrateUp(connStr, filepath.Join(wd, "..", "migrations"))
	require.NoError(s.T(), err, "Failed to apply migrations")

	s.store = NewPgStore(s.dbPool)
	s.logger.Info("Initialization complete for PgStoreSuite")
}

func (s *PgStoreSuite) TearDownSuite() {
	if s.dbPool != nil {
		s.dbPool.Close()
	}
	if s.pgContainer != nil {
		if err := s.pgContainer.Terminate(s.ctx); err != nil {
			s.logger.Warn("failed to terminate PostgreSQL container", "error", err)
		}
	}
}

// SetupTest empties every table before each test.
func (s *PgStoreSuite) SetupTest() {
	_, err := s.dbPool.Exec(s.ctx, "TRUNCATE TABLE sale_lines, sales, current_sale_lines, products RESTART IDENTITY CASCADE")
	require.NoError(s.T(), err, "Failed to truncate tables")
}

func TestPgStoreIntegration(t *testing.T) {
	if os.Getenv(skipIntegrationTests) == "1" {
		t.Skip("Skipping integration tests based on " + skipIntegrationTests + " env var")
	}
	suite.Run(t, new(PgStoreSuite))
}

func (s *PgStoreSuite) seed(products ...Product) {
	for _, p := range products {
		require.NoError(s.T(), s.store.UpsertProduct(s.ctx, p))
	}
}

func (s *PgStoreSuite) TestUpsertAndFindAll() {
	// given
	s.seed(
		Product{ID: "b", Name: "Bread", Price: dec("2.50"), Quantity: 4},
		Product{ID: "a", Name: "Apple", Price: dec("0.40"), Quantity: 10},
		Product{ID: "b", Name: "Rye bread", Price: dec("3.10"), Quantity: 2},
	)

	// when
	products, err := s.store.FindAllProducts(s.ctx)

	// then
	require.NoError(s.T(), err)
	require.Len(s.T(), products, 2)
	s.Equal("a", products[0].ID)
	s.True(dec("0.40").Equal(products[0].Price))
	s.Equal("Rye bread", products[1].Name)
	s.Equal(2, products[1].Quantity)
}

func (s *PgStoreSuite) TestAdjustStock() {
	s.seed(Product{ID: "a", Name: "Apple", Price: dec("0.40"), Quantity: 10})

	p, err := s.store.AdjustStock(s.ctx, "a", -4)
	require.NoError(s.T(), err)
	s.Equal(6, p.Quantity)

	_, err = s.store.AdjustStock(s.ctx, "a", -7)
	s.ErrorIs(err, lerrors.ErrInsufficientStock)

	_, err = s.store.AdjustStock(s.ctx, "missing", 1)
	s.ErrorIs(err, lerrors.ErrProductNotFound)
}

func (s *PgStoreSuite) TestDeleteProduct() {
	s.seed(Product{ID: "a", Name: "Apple", Price: dec("0.40"), Quantity: 10})

	s.NoError(s.store.DeleteProduct(s.ctx, "a"))
	s.ErrorIs(s.store.DeleteProduct(s.ctx, "a"), lerrors.ErrProductNotFound)
}

func (s *PgStoreSuite) TestSaleLifecycle() {
	// given
	at := time.Date(2026, 3, 14, 23, 30, 0, 0, time.UTC)
	s.seed(
		Product{ID: "A", Name: "Widget", Price: dec("10.00"), Quantity: 5},
		Product{ID: "B", Name: "Gadget", Price: dec("5.50"), Quantity: 1},
	)

	// when
	_, err := s.store.AddToSale(s.ctx, "A", 1)
	require.NoError(s.T(), err)
	line, err := s.store.AddToSale(s.ctx, "A", 1)
	require.NoError(s.T(), err)
	_, err = s.store.AddToSale(s.ctx, "B", 1)
	require.NoError(s.T(), err)
	_, shortErr := s.store.AddToSale(s.ctx, "B", 1)
	sale, err := s.store.CloseSale(s.ctx, paidSale(dec("30.00"), at))

	// then
	require.NoError(s.T(), err)
	s.ErrorIs(shortErr, lerrors.ErrProductUnavailable)
	s.Equal(2, line.Quantity)
	s.True(dec("25.50").Equal(sale.Total))
	s.True(dec("4.50").Equal(sale.Change))

	current, err := s.store.CurrentSale(s.ctx)
	require.NoError(s.T(), err)
	s.Empty(current)

	sales, err := s.store.FindSales(s.ctx, 0, 0)
	require.NoError(s.T(), err)
	require.Len(s.T(), sales, 1)
	assert.Equal(s.T(), sale.ID, sales[0].ID)
	require.Len(s.T(), sales[0].Lines, 2)
	s.Equal("A", sales[0].Lines[0].ProductID)
	s.Equal(2, sales[0].Lines[0].Quantity)

	totals, err := s.store.DailyTotals(s.ctx)
	require.NoError(s.T(), err)
	s.True(dec("25.50").Equal(totals["2026-03-14"]))

	products, _ := s.store.FindAllProducts(s.ctx)
	s.Equal(3, products[0].Quantity)
	s.Equal(0, products[1].Quantity)
}

func (s *PgStoreSuite) TestCloseSale_BuilderErrorRollsBack() {
	s.seed(Product{ID: "A", Name: "Widget", Price: dec("10.00"), Quantity: 5})
	_, err := s.store.AddToSale(s.ctx, "A", 1)
	require.NoError(s.T(), err)

	_, err = s.store.CloseSale(s.ctx, func([]SaleLine) (*Sale, error) { return nil, lerrors.ErrInsufficientPayment })

	s.ErrorIs(err, lerrors.ErrInsufficientPayment)
	current, _ := s.store.CurrentSale(s.ctx)
	s.Len(current, 1)
	sales, _ := s.store.FindSales(s.ctx, 0, 0)
	s.Empty(sales)
}

func (s *PgStoreSuite) TestCloseSale_Empty() {
	_, err := s.store.CloseSale(s.ctx, paidSale(dec("1.00"), time.Now()))
	s.ErrorIs(err, lerrors.ErrEmptySale)
}

func (s *PgStoreSuite) TestClearSale() {
	s.seed(Product{ID: "A", Name: "Widget", Price: dec("10.00"), Quantity: 5})
	_, err := s.store.AddToSale(s.ctx, "A", 2)
	require.NoError(s.T(), err)

	s.NoError(s.store.ClearSale(s.ctx))

	current, _ := s.store.CurrentSale(s.ctx)
	s.Empty(current)
	products, _ := s.store.FindAllProducts(s.ctx)
	s.Equal(3, products[0].Quantity)
}

func (s *PgStoreSuite) TestFindSalesPaging() {
	s.seed(Product{ID: "A", Name: "Widget", Price: dec("1.00"), Quantity: 10})
	for range 3 {
		_, err := s.store.AddToSale(s.ctx, "A", 1)
		require.NoError(s.T(), err)
		_, err = s.store.CloseSale(s.ctx, paidSale(dec("1.00"), time.Now()))
		require.NoError(s.T(), err)
	}

	page, err := s.store.FindSales(s.ctx, 2, 1)
	require.NoError(s.T(), err)
	s.Len(page, 2)
	for _, sale := range page {
		s.Len(sale.Lines, 1)
	}
}
