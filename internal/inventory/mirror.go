// Package inventory keeps a client-side copy of the ledger inventory.
package inventory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/abgdnv/pos/internal/cart"
	"github.com/abgdnv/pos/pkg/api"
)

// Source returns the authoritative inventory.
type Source interface {
	ViewInventory(ctx context.Context) ([]api.ProductDto, error)
}

// Mirror holds the last inventory snapshot fetched from a Source.
// Every refresh replaces the whole list.
type Mirror struct {
	source     Source
	mu         sync.RWMutex
	products   []api.ProductDto
	byID       map[string]int
	lastLoaded time.Time
	now        func() time.Time
}

func NewMirror(source Source) *Mirror {
	return &Mirror{
		source: source,
		byID:   make(map[string]int),
		now:    time.Now,
	}
}

// Refresh replaces the local list with the current server snapshot.
// On error the previous snapshot is kept.
func (m *Mirror) Refresh(ctx context.Context) error {
	products, err := m.source.ViewInventory(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh inventory: %w", err)
	}
	m.Replace(products)
	return nil
}

// Replace installs products as the current snapshot.
func (m *Mirror) Replace(products []api.ProductDto) {
	sorted := slices.Clone(products)
	slices.SortFunc(sorted, func(a, b api.ProductDto) int { return strings.Compare(a.ID, b.ID) })
	byID := make(map[string]int, len(sorted))
	for i, p := range sorted {
		byID[p.ID] = i
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.products = sorted
	m.byID = byID
	m.lastLoaded = m.now()
}

// Products returns the snapshot ordered by id.
func (m *Mirror) Products() []api.ProductDto {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.products)
}

// Lookup reports whether id exists in the snapshot.
func (m *Mirror) Lookup(id string) (api.ProductDto, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.byID[strings.TrimSpace(id)]
	if !ok {
		return api.ProductDto{}, false
	}
	return m.products[i], true
}

// Search returns the products whose name contains term, ignoring case.
// An empty term matches everything.
func (m *Mirror) Search(term string) []api.ProductDto {
	term = strings.ToLower(strings.TrimSpace(term))
	m.mu.RLock()
	defer m.mu.RUnlock()
	var found []api.ProductDto
	for _, p := range m.products {
		if term == "" || strings.Contains(strings.ToLower(p.Name), term) {
			found = append(found, p)
		}
	}
	return found
}

// LastRefreshed returns when the snapshot was installed, zero if never.
func (m *Mirror) LastRefreshed() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastLoaded
}

// CartProduct converts an inventory row to the product held by a cart line.
func CartProduct(p api.ProductDto) cart.Product {
	return cart.Product{ID: p.ID, Name: p.Name, Price: p.Price}
}
