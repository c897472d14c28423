package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/abgdnv/pos/internal/cart"
	"github.com/abgdnv/pos/internal/checkout"
	"github.com/abgdnv/pos/internal/inventory"
	"github.com/abgdnv/pos/internal/localstore"
	"github.com/abgdnv/pos/internal/reconcile"
	"github.com/spf13/cobra"
)

// shopCart is the JSON view of the shop cart.
type shopCart struct {
	Lines []cart.Line `json:"lines"`
	Units int         `json:"units"`
	Total string      `json:"total"`
}

// NewShopCommand creates the shop command.
func NewShopCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shop",
		Short: "Browse the catalog, fill a cart and check out",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list [search]",
			Short: "List products, optionally filtered by name",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runShopList(cmd, rootOpts, strings.Join(args, ""))
			},
		},
		&cobra.Command{
			Use:   "add <id>",
			Short: "Put one unit of a product in the cart",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runShopAdd(cmd, rootOpts, args[0])
			},
		},
		&cobra.Command{
			Use:   "remove <id>",
			Short: "Remove a product from the cart",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runShopCart(cmd, rootOpts, func(c *cart.Cart) (string, error) {
					c.Remove(args[0])
					return "Item removed from cart.", nil
				})
			},
		},
		&cobra.Command{
			Use:   "set <id> <quantity>",
			Short: "Change the quantity of a cart line, 0 removes it",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runShopCart(cmd, rootOpts, func(c *cart.Cart) (string, error) {
					qty, err := strconv.Atoi(args[1])
					if err != nil || qty < 0 {
						return "", &cart.ValidationError{Field: "quantity", Message: "must be zero or a positive integer"}
					}
					c.SetQuantity(args[0], qty)
					return "", nil
				})
			},
		},
		&cobra.Command{
			Use:   "cart",
			Short: "Show the cart",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runShopCart(cmd, rootOpts, func(*cart.Cart) (string, error) { return "", nil })
			},
		},
		newCheckoutCommand(rootOpts),
		&cobra.Command{
			Use:   "summary",
			Short: "Show the current order",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runShopSummary(cmd, rootOpts)
			},
		},
		&cobra.Command{
			Use:   "continue",
			Short: "Forget the current order and go back to shopping",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runShopContinue(cmd, rootOpts)
			},
		},
	)
	return cmd
}

func newCheckoutCommand(rootOpts *RootOptions) *cobra.Command {
	info := checkout.CustomerInfo{}
	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Place an order for the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShopCheckout(cmd, rootOpts, info)
		},
	}
	cmd.Flags().StringVar(&info.Name, "name", "", "full name")
	cmd.Flags().StringVar(&info.Email, "email", "", "email address")
	cmd.Flags().StringVar(&info.Address, "address", "", "street address")
	cmd.Flags().StringVar(&info.City, "city", "", "city")
	cmd.Flags().StringVar(&info.PostalCode, "postal-code", "", "postal code")
	cmd.Flags().StringVar(&info.Country, "country", "", "country")
	cmd.Flags().StringVar(&info.PaymentMethod, "payment-method", checkout.DefaultPaymentMethod, "Credit Card, PayPal or Bank Transfer")
	return cmd
}

func runShopList(cmd *cobra.Command, opts *RootOptions, term string) error {
	s, err := newSession(cmd, opts)
	if err != nil {
		return err
	}
	mirror := inventory.NewMirror(s.ledger)
	if err := mirror.Refresh(cmd.Context()); err != nil {
		return s.out.Fail(err)
	}
	products := mirror.Search(term)
	return s.out.Success(products, func(w io.Writer) { writeProducts(w, products) })
}

func runShopAdd(cmd *cobra.Command, opts *RootOptions, id string) error {
	s, err := newSession(cmd, opts)
	if err != nil {
		return err
	}
	mirror := inventory.NewMirror(s.ledger)
	if err := mirror.Refresh(cmd.Context()); err != nil {
		return s.out.Fail(err)
	}
	product, ok := mirror.Lookup(id)
	if !ok {
		return s.out.Fail(reconcile.ErrNotFound)
	}
	return runShopCartWith(cmd, s, func(c *cart.Cart) (string, error) {
		if _, err := c.Add(inventory.CartProduct(product), 1); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s added to cart!", product.Name), nil
	})
}

// runShopCart applies change to the persisted shop cart and shows the result.
func runShopCart(cmd *cobra.Command, opts *RootOptions, change func(*cart.Cart) (string, error)) error {
	s, err := newSession(cmd, opts)
	if err != nil {
		return err
	}
	return runShopCartWith(cmd, s, change)
}

func runShopCartWith(cmd *cobra.Command, s *session, change func(*cart.Cart) (string, error)) error {
	c, _, closeFn, err := s.openCart(cmd.Context(), localstore.KeyCartItems)
	if err != nil {
		return err
	}
	defer closeFn()

	msg, err := change(c)
	if err != nil {
		return s.out.Fail(err)
	}
	view := shopCart{Lines: c.Lines(), Units: c.Units(), Total: money(c.Total())}
	return s.out.Success(view, func(w io.Writer) {
		if msg != "" {
			_, _ = fmt.Fprintln(w, msg)
		}
		writeLines(w, view.Lines)
		if len(view.Lines) > 0 {
			_, _ = fmt.Fprintf(w, "Cart (%d)  Total: %s\n", view.Units, view.Total)
		}
	})
}

func runShopCheckout(cmd *cobra.Command, opts *RootOptions, info checkout.CustomerInfo) error {
	s, err := newSession(cmd, opts)
	if err != nil {
		return err
	}
	c, store, closeFn, err := s.openCart(cmd.Context(), localstore.KeyCartItems)
	if err != nil {
		return err
	}
	defer closeFn()

	order, err := checkout.NewService(c, store, s.logger).Submit(cmd.Context(), info)
	if err != nil {
		return s.out.Fail(err)
	}
	return s.out.Success(order, func(w io.Writer) {
		_, _ = fmt.Fprintln(w, checkout.MsgOrderPlaced)
		writeOrder(w, order)
	})
}

func runShopSummary(cmd *cobra.Command, opts *RootOptions) error {
	s, err := newSession(cmd, opts)
	if err != nil {
		return err
	}
	c, store, closeFn, err := s.openCart(cmd.Context(), localstore.KeyCartItems)
	if err != nil {
		return err
	}
	defer closeFn()

	order, err := checkout.NewService(c, store, s.logger).Current(cmd.Context())
	if err != nil {
		return s.out.Fail(WrapExitError(ExitCommandError, "failed to read the current order", err))
	}
	if order == nil {
		return s.out.Message(checkout.MsgNoOrder)
	}
	return s.out.Success(order, func(w io.Writer) { writeOrder(w, order) })
}

func runShopContinue(cmd *cobra.Command, opts *RootOptions) error {
	s, err := newSession(cmd, opts)
	if err != nil {
		return err
	}
	c, store, closeFn, err := s.openCart(cmd.Context(), localstore.KeyCartItems)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := checkout.NewService(c, store, s.logger).ContinueShopping(cmd.Context()); err != nil {
		return s.out.Fail(WrapExitError(ExitCommandError, "failed to clear the current order", err))
	}
	return s.out.Message("Order closed. Happy shopping!")
}
