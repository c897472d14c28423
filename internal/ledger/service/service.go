// Package service provides the business rules of the sale ledger.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	lerrors "github.com/abgdnv/pos/internal/ledger/errors"
	"github.com/abgdnv/pos/internal/ledger/store"
	"github.com/abgdnv/pos/pkg/api"
	"github.com/abgdnv/pos/pkg/messaging"
	"github.com/abgdnv/pos/pkg/messaging/events"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// LedgerService defines the operations of the sale ledger.
type LedgerService interface {
	// AddProduct creates the product or overwrites an existing one with the same id.
	AddProduct(ctx context.Context, product api.ProductDto) error

	// UpdateQuantity adds delta to the stock of an existing product.
	// Returns ErrProductNotFound or ErrInsufficientStock.
	UpdateQuantity(ctx context.Context, id string, delta int) error

	// Inventory returns every product ordered by id.
	Inventory(ctx context.Context) ([]api.ProductDto, error)

	// DeleteProduct removes a product.
	// Returns ErrProductNotFound if no product exists with the given id.
	DeleteProduct(ctx context.Context, id string) error

	// AddToSale reserves quantity units of a product for the open sale.
	// Returns ErrProductUnavailable when the product is unknown or stock is short.
	AddToSale(ctx context.Context, id string, quantity int) error

	// Total returns the running total of the open sale.
	Total(ctx context.Context) (decimal.Decimal, error)

	// ProcessPayment pays for the open sale and records it in history.
	// Returns ErrInvalidPaymentAmount, ErrEmptySale or ErrInsufficientPayment.
	ProcessPayment(ctx context.Context, amount decimal.NullDecimal) (*api.SaleDto, error)

	// ClearSale drops the open sale without returning reserved stock.
	ClearSale(ctx context.Context) error

	// SalesHistory returns paid sales oldest first. A zero limit means no limit.
	SalesHistory(ctx context.Context, limit, offset int) ([]api.SaleDto, error)

	// DailyReport sums sale totals per UTC day.
	DailyReport(ctx context.Context) (api.DailySalesReport, error)

	// InventoryReport returns the inventory with unit and value totals.
	InventoryReport(ctx context.Context) (*api.InventoryReport, error)
}

// Service implements LedgerService.
type Service struct {
	store        store.LedgerStore
	publisher    messaging.Publisher
	tracer       trace.Tracer
	salesCounter metric.Int64Counter
	revenue      metric.Float64Counter
	now          func() time.Time
	newID        func() uuid.UUID
}

// NewService creates a new instance of LedgerService backed by the given store.
func NewService(ledgerStore store.LedgerStore, publisher messaging.Publisher) *Service {
	meter := otel.Meter("pos-service")
	salesCounter, err := meter.Int64Counter("sales_completed", metric.WithDescription("Total number of paid sales"))
	if err != nil {
		panic(fmt.Sprintf("failed to create sales_completed counter: %v", err))
	}
	revenue, err := meter.Float64Counter("sales_revenue", metric.WithDescription("Sum of paid sale totals"))
	if err != nil {
		panic(fmt.Sprintf("failed to create sales_revenue counter: %v", err))
	}
	if publisher == nil {
		publisher = messaging.NoopPublisher{}
	}
	return &Service{
		store:        ledgerStore,
		publisher:    publisher,
		tracer:       otel.Tracer("pos-service"),
		salesCounter: salesCounter,
		revenue:      revenue,
		now:          time.Now,
		newID:        uuid.New,
	}
}

func (s *Service) AddProduct(ctx context.Context, product api.ProductDto) error {
	err := s.store.UpsertProduct(ctx, store.Product{
		ID:       product.ID,
		Name:     product.Name,
		Price:    product.Price,
		Quantity: product.Quantity,
	})
	if err != nil {
		return fmt.Errorf("failed to add product %s: %w", product.ID, err)
	}
	return nil
}

func (s *Service) UpdateQuantity(ctx context.Context, id string, delta int) error {
	if _, err := s.store.AdjustStock(ctx, id, delta); err != nil {
		return fmt.Errorf("failed to update quantity of product %s: %w", id, err)
	}
	return nil
}

func (s *Service) Inventory(ctx context.Context) ([]api.ProductDto, error) {
	products, err := s.store.FindAllProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch inventory: %w", err)
	}
	return toProductDtos(products), nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if err := s.store.DeleteProduct(ctx, id); err != nil {
		return fmt.Errorf("failed to delete product %s: %w", id, err)
	}
	return nil
}

func (s *Service) AddToSale(ctx context.Context, id string, quantity int) error {
	ctx, span := s.tracer.Start(ctx, "AddToSale", trace.WithAttributes(
		attribute.String("product.id", id),
		attribute.Int("quantity", quantity),
	))
	defer span.End()

	if quantity <= 0 {
		return lerrors.ErrProductUnavailable
	}
	if _, err := s.store.AddToSale(ctx, id, quantity); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to add product %s to sale: %w", id, err)
	}
	return nil
}

func (s *Service) Total(ctx context.Context) (decimal.Decimal, error) {
	lines, err := s.store.CurrentSale(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to fetch current sale: %w", err)
	}
	return store.Total(lines), nil
}

func (s *Service) ProcessPayment(ctx context.Context, amount decimal.NullDecimal) (*api.SaleDto, error) {
	ctx, span := s.tracer.Start(ctx, "ProcessPayment")
	defer span.End()

	if !amount.Valid || amount.Decimal.IsNegative() {
		return nil, lerrors.ErrInvalidPaymentAmount
	}
	paid := amount.Decimal

	sale, err := s.store.CloseSale(ctx, func(lines []store.SaleLine) (*store.Sale, error) {
		if len(lines) == 0 {
			return nil, lerrors.ErrEmptySale
		}
		total := store.Total(lines)
		if paid.LessThan(total) {
			return nil, lerrors.ErrInsufficientPayment
		}
		return &store.Sale{
			ID:         s.newID(),
			Lines:      lines,
			Total:      total,
			AmountPaid: paid,
			Change:     paid.Sub(total),
			CreatedAt:  s.now().UTC(),
		}, nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to process payment: %w", err)
	}
	span.SetAttributes(attribute.String("sale.id", sale.ID.String()))

	s.publish(ctx, sale)
	s.salesCounter.Add(ctx, 1)
	revenue, _ := sale.Total.Float64()
	s.revenue.Add(ctx, revenue)

	dto := toSaleDto(*sale)
	return &dto, nil
}

func (s *Service) publish(ctx context.Context, sale *store.Sale) {
	carrier := make(propagation.MapCarrier)
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	items := make([]events.SaleLine, len(sale.Lines))
	for i, l := range sale.Lines {
		items[i] = events.SaleLine{ProductID: l.ProductID, Name: l.Name, Price: l.Price, Quantity: l.Quantity}
	}
	event := events.SaleCompletedEvent{
		Carrier:   carrier,
		SaleID:    sale.ID,
		Items:     items,
		Total:     sale.Total,
		Paid:      sale.AmountPaid,
		Change:    sale.Change,
		Timestamp: sale.CreatedAt,
	}
	// the sale is already recorded, a lost event only costs a receipt
	if err := s.publisher.Publish(ctx, event); err != nil {
		slog.ErrorContext(ctx, "Failed to publish SaleCompletedEvent", "error", err, "sale_id", sale.ID)
	}
}

func (s *Service) ClearSale(ctx context.Context) error {
	if err := s.store.ClearSale(ctx); err != nil {
		return fmt.Errorf("failed to clear sale: %w", err)
	}
	return nil
}

func (s *Service) SalesHistory(ctx context.Context, limit, offset int) ([]api.SaleDto, error) {
	sales, err := s.store.FindSales(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sales history: %w", err)
	}
	dtos := make([]api.SaleDto, len(sales))
	for i, sale := range sales {
		dtos[i] = toSaleDto(sale)
	}
	return dtos, nil
}

func (s *Service) DailyReport(ctx context.Context) (api.DailySalesReport, error) {
	totals, err := s.store.DailyTotals(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build daily report: %w", err)
	}
	return totals, nil
}

func (s *Service) InventoryReport(ctx context.Context) (*api.InventoryReport, error) {
	products, err := s.store.FindAllProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build inventory report: %w", err)
	}
	report := &api.InventoryReport{Products: toProductDtos(products), TotalValue: decimal.Zero}
	for _, p := range products {
		report.TotalUnits += p.Quantity
		report.TotalValue = report.TotalValue.Add(p.Price.Mul(decimal.NewFromInt(int64(p.Quantity))))
	}
	return report, nil
}

func toProductDtos(products []store.Product) []api.ProductDto {
	dtos := make([]api.ProductDto, len(products))
	for i, p := range products {
		dtos[i] = api.ProductDto{ID: p.ID, Name: p.Name, Price: p.Price, Quantity: p.Quantity}
	}
	return dtos
}

func toSaleDto(sale store.Sale) api.SaleDto {
	items := make([]api.SaleLineDto, len(sale.Lines))
	for i, l := range sale.Lines {
		items[i] = api.SaleLineDto{ID: l.ProductID, Name: l.Name, Price: l.Price, Quantity: l.Quantity}
	}
	return api.SaleDto{
		SaleID:     sale.ID,
		Items:      items,
		Total:      sale.Total,
		AmountPaid: sale.AmountPaid,
		Change:     sale.Change,
		Timestamp:  sale.CreatedAt.Unix(),
	}
}
