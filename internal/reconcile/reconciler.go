// Package reconcile keeps the local cart in step with the remote sale ledger.
//
// Additions are applied to the cart first and confirmed by the ledger
// afterwards. A rejected addition is rolled back by exactly the delta it
// added. Removals and quantity edits are local only: the ledger keeps the
// stock it reserved for them until the sale is paid or cleared.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/abgdnv/pos/internal/cart"
	"github.com/abgdnv/pos/internal/inventory"
	"github.com/abgdnv/pos/pkg/api"
	"github.com/shopspring/decimal"
)

const (
	MsgNotFound      = "Product not found in inventory."
	MsgInvalidAmount = "Please enter a valid amount paid."
)

var (
	ErrNotFound      = errors.New("product not found in inventory")
	ErrInvalidAmount = errors.New("invalid amount paid")
)

// Ledger is the remote side of a sale.
type Ledger interface {
	AddToSale(ctx context.Context, id string, quantity int) (string, error)
	CalculateTotal(ctx context.Context) (decimal.Decimal, error)
	ProcessPayment(ctx context.Context, amount decimal.Decimal) (*api.PaymentResponse, error)
	ClearSale(ctx context.Context) (string, error)
	ViewSalesHistory(ctx context.Context, limit, offset int) ([]api.SaleDto, error)
}

// Inventory is the local inventory snapshot.
type Inventory interface {
	Refresh(ctx context.Context) error
	Lookup(id string) (api.ProductDto, bool)
}

// AddResult describes the outcome of an addition.
// Stale means the line changed locally before the ledger answered.
type AddResult struct {
	Version    uint64
	Stale      bool
	RolledBack bool
	Display    TotalDisplay
}

type PaymentResult struct {
	Message string
	Change  decimal.Decimal
	Display TotalDisplay
}

// TotalDisplay is what the total field shows. RemoteErr is set when the
// ledger could not be asked, in which case the field reads "Error".
type TotalDisplay struct {
	Seq       uint64
	Local     decimal.Decimal
	Remote    decimal.Decimal
	RemoteErr error
	Diverged  bool
}

func (d TotalDisplay) String() string {
	if d.RemoteErr != nil {
		return "Error"
	}
	return d.Remote.StringFixed(2)
}

type Reconciler struct {
	cart      *cart.Cart
	inventory Inventory
	ledger    Ledger
	notifier  Notifier
	logger    *slog.Logger

	mu      sync.Mutex
	seq     uint64
	display TotalDisplay
	history []api.SaleDto
}

func New(c *cart.Cart, inv Inventory, ledger Ledger, notifier Notifier, logger *slog.Logger) *Reconciler {
	if notifier == nil {
		notifier = DiscardNotifier{}
	}
	return &Reconciler{
		cart:      c,
		inventory: inv,
		ledger:    ledger,
		notifier:  notifier,
		logger:    logger.With("component", "reconciler"),
	}
}

// Add puts qty units of product in the cart and registers them with the ledger.
// If the ledger refuses, the cart gets back exactly the delta that was added.
func (r *Reconciler) Add(ctx context.Context, product cart.Product, qty int) (AddResult, error) {
	version, err := r.cart.Add(product, qty)
	if err != nil {
		r.notifier.Notify(LevelError, err.Error())
		return AddResult{}, err
	}

	msg, err := r.ledger.AddToSale(ctx, product.ID, qty)
	current, present := r.cart.Version(product.ID)
	stale := !present || current != version
	if err != nil {
		r.cart.Rollback(product.ID, qty)
		r.logger.Warn("Add to sale rejected, rolled back",
			slog.String("product_id", product.ID), slog.Int("delta", qty), slog.String("error", err.Error()))
		r.notifier.Notify(LevelError, "Error adding to sale: "+Describe(err))
		return AddResult{Version: version, Stale: stale, RolledBack: true, Display: r.RefreshTotal(ctx)}, err
	}
	if stale {
		r.logger.Debug("Ignoring stale add confirmation", slog.String("product_id", product.ID))
		return AddResult{Version: version, Stale: true}, nil
	}

	if msg == "" {
		msg = fmt.Sprintf("Added %s to sale.", product.Name)
	}
	r.notifier.Notify(LevelSuccess, msg)
	r.refreshInventory(ctx)
	return AddResult{Version: version, Display: r.RefreshTotal(ctx)}, nil
}

// Scan adds one unit of the product with the scanned id.
func (r *Reconciler) Scan(ctx context.Context, id string) (AddResult, error) {
	id = strings.TrimSpace(id)
	if err := r.inventory.Refresh(ctx); err != nil {
		r.notifier.Notify(LevelError, "Error checking inventory: "+Describe(err))
		return AddResult{}, err
	}
	product, ok := r.inventory.Lookup(id)
	if !ok {
		r.notifier.Notify(LevelError, MsgNotFound)
		return AddResult{}, ErrNotFound
	}
	return r.Add(ctx, inventory.CartProduct(product), 1)
}

// Remove drops the line of id from the cart without telling the ledger.
// It reports whether a line was removed.
func (r *Reconciler) Remove(ctx context.Context, id string) (bool, TotalDisplay) {
	line, ok := r.cart.Remove(id)
	if !ok {
		return false, r.Display()
	}
	r.notifier.Notify(LevelInfo, fmt.Sprintf("Removed %s from current sale (frontend only).", line.Product.Name))
	return true, r.RefreshTotal(ctx)
}

// SetQuantity changes a line locally. Zero or less removes it.
func (r *Reconciler) SetQuantity(ctx context.Context, id string, qty int) TotalDisplay {
	r.cart.SetQuantity(id, qty)
	return r.RefreshTotal(ctx)
}

// Pay submits amount for the open sale. On success the cart is emptied and
// history is reloaded. On failure the cart is kept as is.
func (r *Reconciler) Pay(ctx context.Context, amount decimal.Decimal) (PaymentResult, error) {
	if !amount.IsPositive() {
		r.notifier.Notify(LevelError, MsgInvalidAmount)
		return PaymentResult{}, ErrInvalidAmount
	}
	resp, err := r.ledger.ProcessPayment(ctx, amount)
	if err != nil {
		r.logger.Warn("Payment rejected", slog.String("amount", amount.String()), slog.String("error", err.Error()))
		r.notifier.Notify(LevelError, "Error processing payment: "+Describe(err))
		return PaymentResult{}, err
	}

	r.cart.Clear()
	r.notifier.Notify(LevelSuccess, fmt.Sprintf("%s Change: %s", resp.Message, resp.Change.StringFixed(2)))
	if _, err := r.RefreshHistory(ctx); err != nil {
		r.logger.Warn("Failed to reload sales history", slog.String("error", err.Error()))
	}
	return PaymentResult{Message: resp.Message, Change: resp.Change, Display: r.RefreshTotal(ctx)}, nil
}

// ClearSale drops the open sale on the ledger, then locally.
// Reserved stock is not returned to the shelf.
func (r *Reconciler) ClearSale(ctx context.Context) (TotalDisplay, error) {
	msg, err := r.ledger.ClearSale(ctx)
	if err != nil {
		r.notifier.Notify(LevelError, "Error clearing sale: "+Describe(err))
		return r.Display(), err
	}
	r.cart.Clear()
	r.notifier.Notify(LevelSuccess, msg)
	return r.RefreshTotal(ctx), nil
}

// RefreshTotal asks the ledger for the sale total. A response that arrives
// after a newer one does not replace the newer display.
func (r *Reconciler) RefreshTotal(ctx context.Context) TotalDisplay {
	r.mu.Lock()
	r.seq++
	seq := r.seq
	r.mu.Unlock()

	local := r.cart.Total()
	remote, err := r.ledger.CalculateTotal(ctx)
	d := TotalDisplay{Seq: seq, Local: local, Remote: remote, RemoteErr: err}
	if err == nil {
		d.Diverged = !remote.Equal(local)
	}

	r.mu.Lock()
	latest := seq > r.display.Seq
	if latest {
		r.display = d
	}
	shown := r.display
	r.mu.Unlock()

	if !latest {
		return shown
	}
	if err != nil {
		r.notifier.Notify(LevelError, "Error calculating total: "+Describe(err))
	} else if d.Diverged {
		r.logger.Info("Local total differs from ledger",
			slog.String("local", local.StringFixed(2)), slog.String("remote", remote.StringFixed(2)))
		r.notifier.Notify(LevelWarning, fmt.Sprintf("Ledger total %s differs from cart total %s.",
			remote.StringFixed(2), local.StringFixed(2)))
		r.refreshInventory(ctx)
	}
	return shown
}

// Lines returns the cart lines of the sale.
func (r *Reconciler) Lines() []cart.Line {
	return r.cart.Lines()
}

// Display returns the last total shown.
func (r *Reconciler) Display() TotalDisplay {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.display
}

// RefreshHistory reloads the paid sales from the ledger.
func (r *Reconciler) RefreshHistory(ctx context.Context) ([]api.SaleDto, error) {
	sales, err := r.ledger.ViewSalesHistory(ctx, 0, 0)
	if err != nil {
		r.notifier.Notify(LevelError, "Error loading sales history: "+Describe(err))
		return nil, err
	}
	r.mu.Lock()
	r.history = sales
	r.mu.Unlock()
	return sales, nil
}

// History returns the sales loaded by the last RefreshHistory.
func (r *Reconciler) History() []api.SaleDto {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.history
}

// ParseAmount converts raw user input into a payment amount.
func ParseAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil || !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return amount, nil
}

func (r *Reconciler) refreshInventory(ctx context.Context) {
	if err := r.inventory.Refresh(ctx); err != nil {
		r.logger.Warn("Failed to refresh inventory", slog.String("error", err.Error()))
		r.notifier.Notify(LevelError, "Error loading inventory: "+Describe(err))
	}
}
