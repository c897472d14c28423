// Package cart holds the client-side cart: one line per product id with a
// quantity, mutated only through its methods.
package cart

import (
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// Product is the part of an inventory row a cart line needs.
type Product struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// Line is a product held in the cart. Version increases on every local
// mutation of the line and is used to detect stale remote responses.
type Line struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
	Version  uint64  `json:"version"`
}

// Subtotal returns price times quantity.
func (l Line) Subtotal() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// ValidationError reports rejected user input. The cart is left unchanged.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Persister stores a snapshot of the cart lines after each change.
type Persister interface {
	SaveLines(lines []Line) error
}

// Option configures a Cart.
type Option func(*Cart)

// WithPersister saves the lines through p after every state change.
func WithPersister(p Persister) Option {
	return func(c *Cart) { c.persister = p }
}

// WithLogger sets the logger used to report persist failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cart) { c.logger = logger }
}

// Cart is safe for concurrent use.
type Cart struct {
	mu        sync.Mutex
	lines     map[string]*Line
	order     []string
	nextVer   uint64
	persister Persister
	logger    *slog.Logger
}

func New(opts ...Option) *Cart {
	c := &Cart{
		lines:  make(map[string]*Line),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Restore replaces the cart content with a persisted snapshot.
// Lines with a non-positive quantity are dropped. Nothing is persisted.
func (c *Cart) Restore(lines []Line) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = make(map[string]*Line, len(lines))
	c.order = c.order[:0]
	for _, l := range lines {
		if l.Quantity <= 0 || l.Product.ID == "" {
			continue
		}
		if existing, ok := c.lines[l.Product.ID]; ok {
			existing.Quantity += l.Quantity
			continue
		}
		line := l
		c.lines[l.Product.ID] = &line
		c.order = append(c.order, l.Product.ID)
		c.nextVer = max(c.nextVer, l.Version)
	}
}

// Add increments the line of product by qty, creating it when absent.
// It returns the version of the line after the change.
func (c *Cart) Add(product Product, qty int) (uint64, error) {
	if qty <= 0 {
		return 0, &ValidationError{Field: "quantity", Message: "must be a positive integer"}
	}
	if strings.TrimSpace(product.ID) == "" {
		return 0, &ValidationError{Field: "id", Message: "is required"}
	}
	if product.Price.IsNegative() {
		return 0, &ValidationError{Field: "price", Message: "must not be negative"}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	line, ok := c.lines[product.ID]
	if !ok {
		line = &Line{Product: product}
		c.lines[product.ID] = line
		c.order = append(c.order, product.ID)
	}
	line.Quantity += qty
	line.Version = c.bump()
	c.persist()
	return line.Version, nil
}

// Remove deletes the line of id and returns it. Removing an absent id is a
// no-op and reports false.
func (c *Cart) Remove(id string) (Line, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	line, ok := c.lines[id]
	if !ok {
		return Line{}, false
	}
	removed := *line
	c.remove(id)
	c.persist()
	return removed, true
}

// SetQuantity sets the quantity of an existing line, clamped at zero.
// Zero removes the line. Absent lines are not created.
func (c *Cart) SetQuantity(id string, qty int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	line, ok := c.lines[id]
	if !ok {
		return
	}
	if qty <= 0 {
		c.remove(id)
	} else {
		line.Quantity = qty
		line.Version = c.bump()
	}
	c.persist()
}

// Rollback undoes a previous Add of delta units. The line is removed when
// its quantity would drop to zero or below.
func (c *Cart) Rollback(id string, delta int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	line, ok := c.lines[id]
	if !ok || delta <= 0 {
		return
	}
	if line.Quantity-delta <= 0 {
		c.remove(id)
	} else {
		line.Quantity -= delta
		line.Version = c.bump()
	}
	c.persist()
}

// Clear removes every line.
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.lines) == 0 {
		return
	}
	c.lines = make(map[string]*Line)
	c.order = c.order[:0]
	c.persist()
}

// Version returns the current version of the line of id, false if absent.
func (c *Cart) Version(id string) (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	line, ok := c.lines[id]
	if !ok {
		return 0, false
	}
	return line.Version, true
}

// Lines returns a copy of the lines in insertion order.
func (c *Cart) Lines() []Line {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

// Quantity returns the quantity held for id, zero if absent.
func (c *Cart) Quantity(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if line, ok := c.lines[id]; ok {
		return line.Quantity
	}
	return 0
}

func (c *Cart) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lines)
}

// Units returns the number of items over all lines.
func (c *Cart) Units() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	units := 0
	for _, line := range c.lines {
		units += line.Quantity
	}
	return units
}

// Total sums price times quantity over the lines. It is recomputed on each call.
func (c *Cart) Total() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := decimal.Zero
	for _, line := range c.lines {
		total = total.Add(line.Subtotal())
	}
	return total
}

// ParseQuantity converts raw user input into a positive quantity.
func ParseQuantity(raw string) (int, error) {
	qty, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, &ValidationError{Field: "quantity", Message: "must be a number"}
	}
	if qty <= 0 {
		return 0, &ValidationError{Field: "quantity", Message: "must be a positive integer"}
	}
	return qty, nil
}

func (c *Cart) remove(id string) bool {
	if _, ok := c.lines[id]; !ok {
		return false
	}
	delete(c.lines, id)
	c.order = slices.DeleteFunc(c.order, func(s string) bool { return s == id })
	return true
}

func (c *Cart) bump() uint64 {
	c.nextVer++
	return c.nextVer
}

func (c *Cart) snapshot() []Line {
	lines := make([]Line, 0, len(c.order))
	for _, id := range c.order {
		lines = append(lines, *c.lines[id])
	}
	return lines
}

// persist must be called with mu held.
func (c *Cart) persist() {
	if c.persister == nil {
		return
	}
	if err := c.persister.SaveLines(c.snapshot()); err != nil {
		c.logger.Error("Failed to persist cart", slog.String("error", err.Error()))
	}
}
