package cli

import (
	"io"
	"strconv"

	"github.com/abgdnv/pos/pkg/api"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

const (
	msgInvalidProduct = "Please fill all product fields correctly."
	msgInvalidUpdate  = "Please enter product ID and valid quantity."
)

// NewInventoryCommand creates the inventory command.
func NewInventoryCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inventory",
		Short: "Manage the ledger inventory",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List every product",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runInventoryList(cmd, rootOpts)
			},
		},
		&cobra.Command{
			Use:   "add <id> <name> <price> <quantity>",
			Short: "Create a product or replace an existing one",
			Args:  cobra.ExactArgs(4),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runInventoryAdd(cmd, rootOpts, args)
			},
		},
		&cobra.Command{
			Use:   "update <id> <delta>",
			Short: "Add delta, which may be negative, to the stock of a product",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runInventoryUpdate(cmd, rootOpts, args[0], args[1])
			},
		},
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete a product",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runInventoryDelete(cmd, rootOpts, args[0])
			},
		},
		&cobra.Command{
			Use:   "report",
			Short: "Show stock units and value",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runInventoryReport(cmd, rootOpts)
			},
		},
	)
	return cmd
}

func runInventoryList(cmd *cobra.Command, opts *RootOptions) error {
	s, err := newSession(cmd, opts)
	if err != nil {
		return err
	}
	products, err := s.ledger.ViewInventory(cmd.Context())
	if err != nil {
		return s.out.Fail(err)
	}
	return s.out.Success(products, func(w io.Writer) { writeProducts(w, products) })
}

func runInventoryAdd(cmd *cobra.Command, opts *RootOptions, args []string) error {
	s, err := newSession(cmd, opts)
	if err != nil {
		return err
	}
	price, priceErr := decimal.NewFromString(args[2])
	qty, qtyErr := strconv.Atoi(args[3])
	if args[0] == "" || args[1] == "" || priceErr != nil || price.IsNegative() || qtyErr != nil || qty < 0 {
		_ = s.out.Error(ErrCodeInvalidInput, msgInvalidProduct, nil)
		return NewExitError(ExitFailure, msgInvalidProduct)
	}
	msg, err := s.ledger.AddProduct(cmd.Context(), api.ProductDto{ID: args[0], Name: args[1], Price: price, Quantity: qty})
	if err != nil {
		return s.out.Fail(err)
	}
	return s.out.Message(msg)
}

func runInventoryUpdate(cmd *cobra.Command, opts *RootOptions, id, rawDelta string) error {
	s, err := newSession(cmd, opts)
	if err != nil {
		return err
	}
	delta, err := strconv.Atoi(rawDelta)
	if id == "" || err != nil {
		_ = s.out.Error(ErrCodeInvalidInput, msgInvalidUpdate, nil)
		return NewExitError(ExitFailure, msgInvalidUpdate)
	}
	msg, err := s.ledger.UpdateProduct(cmd.Context(), id, delta)
	if err != nil {
		return s.out.Fail(err)
	}
	return s.out.Message(msg)
}

func runInventoryDelete(cmd *cobra.Command, opts *RootOptions, id string) error {
	s, err := newSession(cmd, opts)
	if err != nil {
		return err
	}
	msg, err := s.ledger.DeleteProduct(cmd.Context(), id)
	if err != nil {
		return s.out.Fail(err)
	}
	return s.out.Message(msg)
}

func runInventoryReport(cmd *cobra.Command, opts *RootOptions) error {
	s, err := newSession(cmd, opts)
	if err != nil {
		return err
	}
	report, err := s.ledger.InventoryReport(cmd.Context())
	if err != nil {
		return s.out.Fail(err)
	}
	return s.out.Success(report, func(w io.Writer) { writeInventoryReport(w, report) })
}
