package cli

import (
	"io"

	"github.com/abgdnv/pos/internal/inventory"
	"github.com/abgdnv/pos/internal/localstore"
	"github.com/abgdnv/pos/internal/reconcile"
	"github.com/abgdnv/pos/pkg/api"
	"github.com/spf13/cobra"
)

// NewSaleCommand creates the sale command.
func NewSaleCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sale",
		Short: "Ring up sales against the ledger",
	}
	var limit, offset int
	history := &cobra.Command{
		Use:   "history",
		Short: "List paid sales, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSaleHistory(cmd, rootOpts, limit, offset)
		},
	}
	history.Flags().IntVar(&limit, "limit", 0, "maximum number of sales, 0 for all")
	history.Flags().IntVar(&offset, "offset", 0, "number of sales to skip")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "panel",
			Short: "Open the interactive scan panel",
			Long: `Open the interactive scan panel.

Each line read from standard input is a command. A line holding only a
product id is a scan and adds one unit of that product to the sale.`,
			Args: cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runSalePanel(cmd, rootOpts)
			},
		},
		history,
		&cobra.Command{
			Use:   "report",
			Short: "Show sale totals per day",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runSaleReport(cmd, rootOpts)
			},
		},
		&cobra.Command{
			Use:   "total",
			Short: "Show the ledger total of the open sale",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runSaleTotal(cmd, rootOpts)
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Drop the open sale without returning its stock",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runSaleClear(cmd, rootOpts)
			},
		},
	)
	return cmd
}

func runSaleHistory(cmd *cobra.Command, opts *RootOptions, limit, offset int) error {
	s, err := newSession(cmd, opts)
	if err != nil {
		return err
	}
	sales, err := s.ledger.ViewSalesHistory(cmd.Context(), limit, offset)
	if err != nil {
		return s.out.Fail(err)
	}
	return s.out.Success(sales, func(w io.Writer) { writeSales(w, sales) })
}

func runSaleReport(cmd *cobra.Command, opts *RootOptions) error {
	s, err := newSession(cmd, opts)
	if err != nil {
		return err
	}
	report, err := s.ledger.SalesReportDaily(cmd.Context())
	if err != nil {
		return s.out.Fail(err)
	}
	return s.out.Success(report, func(w io.Writer) { writeDailyReport(w, report) })
}

// newSaleReconciler restores the panel cart and wires it to the ledger.
func (s *session) newSaleReconciler(cmd *cobra.Command, notifier reconcile.Notifier) (*reconcile.Reconciler, *inventory.Mirror, func(), error) {
	c, _, closeFn, err := s.openCart(cmd.Context(), localstore.KeyCurrentSaleItems)
	if err != nil {
		return nil, nil, nil, err
	}
	mirror := inventory.NewMirror(s.ledger)
	return reconcile.New(c, mirror, s.ledger, notifier, s.logger), mirror, closeFn, nil
}

func runSaleTotal(cmd *cobra.Command, opts *RootOptions) error {
	s, err := newSession(cmd, opts)
	if err != nil {
		return err
	}
	r, _, closeFn, err := s.newSaleReconciler(cmd, nil)
	if err != nil {
		return err
	}
	defer closeFn()
	d := r.RefreshTotal(cmd.Context())
	if d.RemoteErr != nil {
		return s.out.Fail(d.RemoteErr)
	}
	data := map[string]any{"total": d.Remote, "cart_total": d.Local, "diverged": d.Diverged}
	return s.out.Success(data, func(w io.Writer) { writeTotal(w, d) })
}

func runSaleClear(cmd *cobra.Command, opts *RootOptions) error {
	s, err := newSession(cmd, opts)
	if err != nil {
		return err
	}
	r, _, closeFn, err := s.newSaleReconciler(cmd, nil)
	if err != nil {
		return err
	}
	defer closeFn()
	if _, err := r.ClearSale(cmd.Context()); err != nil {
		return s.out.Fail(err)
	}
	return s.out.Message(api.MsgSaleCleared)
}

func runSalePanel(cmd *cobra.Command, opts *RootOptions) error {
	s, err := newSession(cmd, opts)
	if err != nil {
		return err
	}
	r, mirror, closeFn, err := s.newSaleReconciler(cmd, reconcile.NewWriterNotifier(cmd.OutOrStdout()))
	if err != nil {
		return err
	}
	defer closeFn()
	p := &panel{reconciler: r, mirror: mirror, out: cmd.OutOrStdout()}
	return p.run(cmd.Context(), cmd.InOrStdin())
}
