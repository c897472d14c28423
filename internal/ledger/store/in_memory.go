package store

import (
	"context"
	"slices"
	"strings"
	"sync"

	lerrors "github.com/abgdnv/pos/internal/ledger/errors"
	"github.com/shopspring/decimal"
)

// inMemory implements LedgerStore using maps guarded by a single mutex.
// State is lost on restart.
type inMemory struct {
	mu       sync.RWMutex
	products map[string]Product
	current  []SaleLine
	sales    []Sale
}

// NewInMemoryStore creates a new instance of LedgerStore
func NewInMemoryStore() LedgerStore {
	return &inMemory{
		products: make(map[string]Product),
	}
}

func (s *inMemory) UpsertProduct(_ context.Context, p Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
	return nil
}

func (s *inMemory) AdjustStock(_ context.Context, id string, delta int) (*Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return nil, lerrors.ErrProductNotFound
	}
	if p.Quantity+delta < 0 {
		return nil, lerrors.ErrInsufficientStock
	}
	p.Quantity += delta
	s.products[id] = p
	return &p, nil
}

func (s *inMemory) FindAllProducts(_ context.Context) ([]Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]Product, 0, len(s.products))
	for _, p := range s.products {
		list = append(list, p)
	}
	slices.SortFunc(list, func(a, b Product) int { return strings.Compare(a.ID, b.ID) })
	return list, nil
}

func (s *inMemory) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return lerrors.ErrProductNotFound
	}
	delete(s.products, id)
	return nil
}

func (s *inMemory) AddToSale(_ context.Context, id string, quantity int) (*SaleLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok || p.Quantity < quantity {
		return nil, lerrors.ErrProductUnavailable
	}
	p.Quantity -= quantity
	s.products[id] = p

	for i := range s.current {
		if s.current[i].ProductID == id {
			s.current[i].Quantity += quantity
			line := s.current[i]
			return &line, nil
		}
	}
	line := SaleLine{ProductID: p.ID, Name: p.Name, Price: p.Price, Quantity: quantity}
	s.current = append(s.current, line)
	return &line, nil
}

func (s *inMemory) CurrentSale(_ context.Context) ([]SaleLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.current), nil
}

func (s *inMemory) ClearSale(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
	return nil
}

func (s *inMemory) CloseSale(_ context.Context, build SaleBuilder) (*Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, err := build(slices.Clone(s.current))
	if err != nil {
		return nil, err
	}
	s.sales = append(s.sales, *sale)
	s.current = nil
	return sale, nil
}

func (s *inMemory) FindSales(_ context.Context, limit, offset int) ([]Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if offset >= len(s.sales) {
		return []Sale{}, nil
	}
	end := len(s.sales)
	if limit > 0 && limit < end-offset {
		end = offset + limit
	}
	return slices.Clone(s.sales[offset:end]), nil
}

func (s *inMemory) DailyTotals(_ context.Context) (map[string]decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	totals := make(map[string]decimal.Decimal)
	for _, sale := range s.sales {
		day := DayKey(sale.CreatedAt)
		totals[day] = totals[day].Add(sale.Total)
	}
	return totals, nil
}
