package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/abgdnv/pos/internal/cart"
	"github.com/abgdnv/pos/internal/inventory"
	"github.com/abgdnv/pos/internal/reconcile"
)

const panelHelp = `Commands:
  <id>             scan one unit of a product
  add <id> <qty>   add qty units of a product
  rm <id>          remove a line from the sale (not returned to stock)
  qty <id> <n>     change the quantity of a line locally
  pay <amount>     pay for the sale
  total            ask the ledger for the total
  cart             show the sale
  inventory        show the inventory
  history          show paid sales
  clear            drop the sale on the ledger
  help             show this help
  quit             leave the panel`

// panel is the interactive scan loop of the sale flow.
type panel struct {
	reconciler *reconcile.Reconciler
	mirror     *inventory.Mirror
	out        io.Writer
}

func (p *panel) run(ctx context.Context, in io.Reader) error {
	p.printf("%s\n", panelHelp)
	if err := p.mirror.Refresh(ctx); err != nil {
		p.printf("! Error loading inventory: %s\n", reconcile.Describe(err))
	}
	if lines := p.reconciler.Lines(); len(lines) > 0 {
		p.printf("Resuming sale with %d line(s).\n", len(lines))
		p.showSale(p.reconciler.RefreshTotal(ctx))
	}

	scanner := bufio.NewScanner(in)
	p.printf("> ")
	for scanner.Scan() {
		if quit := p.handle(ctx, scanner.Text()); quit {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.printf("> ")
	}
	p.printf("\n")
	return scanner.Err()
}

// handle executes one panel line. It reports whether the panel should close.
func (p *panel) handle(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	r := p.reconciler
	switch cmd, args := strings.ToLower(fields[0]), fields[1:]; {
	case cmd == "quit" || cmd == "exit":
		return true
	case cmd == "help":
		p.printf("%s\n", panelHelp)
	case cmd == "add" && len(args) == 2:
		qty, err := cart.ParseQuantity(args[1])
		if err != nil {
			p.printf("! %s\n", msgInvalidUpdate)
			return false
		}
		if err := p.mirror.Refresh(ctx); err != nil {
			p.printf("! Error checking inventory: %s\n", reconcile.Describe(err))
			return false
		}
		product, ok := p.mirror.Lookup(args[0])
		if !ok {
			p.printf("! %s\n", reconcile.MsgNotFound)
			return false
		}
		if res, err := r.Add(ctx, inventory.CartProduct(product), qty); res.RolledBack || (err == nil && !res.Stale) {
			p.showSale(res.Display)
		}
	case cmd == "rm" && len(args) == 1:
		if removed, d := r.Remove(ctx, args[0]); removed {
			p.showSale(d)
		}
	case cmd == "qty" && len(args) == 2:
		qty, err := strconv.Atoi(args[1])
		if err != nil {
			p.printf("! %s\n", msgInvalidUpdate)
			return false
		}
		p.showSale(r.SetQuantity(ctx, args[0], qty))
	case cmd == "pay" && len(args) == 1:
		amount, err := reconcile.ParseAmount(args[0])
		if err != nil {
			p.printf("! %s\n", reconcile.MsgInvalidAmount)
			return false
		}
		if _, err := r.Pay(ctx, amount); err == nil {
			writeSales(p.out, r.History())
		}
	case cmd == "total":
		writeTotal(p.out, r.RefreshTotal(ctx))
	case cmd == "cart":
		p.showSale(r.Display())
	case cmd == "inventory" || cmd == "inv":
		if err := p.mirror.Refresh(ctx); err != nil {
			p.printf("! Error loading inventory: %s\n", reconcile.Describe(err))
			return false
		}
		writeProducts(p.out, p.mirror.Products())
	case cmd == "history":
		if sales, err := r.RefreshHistory(ctx); err == nil {
			writeSales(p.out, sales)
		}
	case cmd == "clear":
		if d, err := r.ClearSale(ctx); err == nil {
			writeTotal(p.out, d)
		}
	case len(fields) == 1:
		if res, err := r.Scan(ctx, fields[0]); res.RolledBack || (err == nil && !res.Stale) {
			p.showSale(res.Display)
		}
	default:
		p.printf("! Unknown command %q. Type help for the list.\n", fields[0])
	}
	return false
}

func (p *panel) showSale(d reconcile.TotalDisplay) {
	writeLines(p.out, p.reconciler.Lines())
	writeTotal(p.out, d)
}

func (p *panel) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(p.out, format, args...)
}
