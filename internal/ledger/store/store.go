// Package store provides the persistence contract of the sale ledger.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is an inventory row. Quantity is the stock left on the shelf.
type Product struct {
	ID       string
	Name     string
	Price    decimal.Decimal
	Quantity int
}

// SaleLine is a product reserved for the current sale, priced at the time it was added.
type SaleLine struct {
	ProductID string
	Name      string
	Price     decimal.Decimal
	Quantity  int
}

// Subtotal returns price × quantity.
func (l SaleLine) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Sale is a paid, immutable sale.
type Sale struct {
	ID         uuid.UUID
	Lines      []SaleLine
	Total      decimal.Decimal
	AmountPaid decimal.Decimal
	Change     decimal.Decimal
	CreatedAt  time.Time
}

// SaleBuilder turns the lines of the open sale into a paid Sale.
// Returning an error aborts the payment and leaves the open sale untouched.
type SaleBuilder func(lines []SaleLine) (*Sale, error)

// LedgerStore is the system of record for inventory, the open sale and sale history.
// Implementations must be safe for concurrent use.
type LedgerStore interface {
	// UpsertProduct creates the product or replaces its name, price and quantity.
	UpsertProduct(ctx context.Context, p Product) error

	// AdjustStock adds delta (which may be negative) to the product quantity.
	// Returns ErrProductNotFound for an unknown id and ErrInsufficientStock
	// when the result would be negative.
	AdjustStock(ctx context.Context, id string, delta int) (*Product, error)

	// FindAllProducts returns every product ordered by id.
	FindAllProducts(ctx context.Context) ([]Product, error)

	// DeleteProduct removes a product.
	// Returns ErrProductNotFound if no product exists with the given id.
	DeleteProduct(ctx context.Context, id string) error

	// AddToSale moves quantity units from stock into the open sale, merging
	// with an existing line for the same product.
	// Returns ErrProductUnavailable if the product is unknown or stock is short.
	AddToSale(ctx context.Context, id string, quantity int) (*SaleLine, error)

	// CurrentSale returns the lines of the open sale in insertion order.
	CurrentSale(ctx context.Context) ([]SaleLine, error)

	// ClearSale drops the open sale. Reserved stock is not returned.
	ClearSale(ctx context.Context) error

	// CloseSale atomically reads the open sale, builds the paid sale,
	// appends it to history and empties the open sale.
	CloseSale(ctx context.Context, build SaleBuilder) (*Sale, error)

	// FindSales returns paid sales oldest first. A zero limit means no limit.
	FindSales(ctx context.Context, limit, offset int) ([]Sale, error)

	// DailyTotals sums sale totals per UTC day, keyed YYYY-MM-DD.
	DailyTotals(ctx context.Context) (map[string]decimal.Decimal, error)
}

// Total sums the subtotals of lines.
func Total(lines []SaleLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// DayKey formats t as the YYYY-MM-DD UTC day used by DailyTotals.
func DayKey(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}
