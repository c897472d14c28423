package cli

import (
	"fmt"
	"io"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/abgdnv/pos/internal/cart"
	"github.com/abgdnv/pos/internal/checkout"
	"github.com/abgdnv/pos/internal/reconcile"
	"github.com/abgdnv/pos/pkg/api"
	"github.com/shopspring/decimal"
)

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func writeProducts(w io.Writer, products []api.ProductDto) {
	if len(products) == 0 {
		_, _ = fmt.Fprintln(w, "No products found matching your search criteria.")
		return
	}
	tw := newTable(w)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tPRICE\tQUANTITY")
	for _, p := range products {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", p.ID, p.Name, money(p.Price), p.Quantity)
	}
	_ = tw.Flush()
}

func writeInventoryReport(w io.Writer, report *api.InventoryReport) {
	writeProducts(w, report.Products)
	_, _ = fmt.Fprintf(w, "Total units: %d\nTotal value: %s\n", report.TotalUnits, money(report.TotalValue))
}

func writeLines(w io.Writer, lines []cart.Line) {
	if len(lines) == 0 {
		_, _ = fmt.Fprintln(w, "Your cart is empty.")
		return
	}
	tw := newTable(w)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tPRICE\tQTY\tSUBTOTAL")
	for _, l := range lines {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", l.Product.ID, l.Product.Name, money(l.Product.Price), l.Quantity, money(l.Subtotal()))
	}
	_ = tw.Flush()
}

func writeTotal(w io.Writer, d reconcile.TotalDisplay) {
	if d.Diverged {
		_, _ = fmt.Fprintf(w, "Total: %s (cart %s)\n", d, money(d.Local))
		return
	}
	_, _ = fmt.Fprintf(w, "Total: %s\n", d)
}

func writeSales(w io.Writer, sales []api.SaleDto) {
	if len(sales) == 0 {
		_, _ = fmt.Fprintln(w, "No sales yet.")
		return
	}
	tw := newTable(w)
	_, _ = fmt.Fprintln(tw, "SALE ID\tITEMS\tTOTAL\tPAID\tCHANGE\tTIME")
	for _, s := range sales {
		units := 0
		for _, item := range s.Items {
			units += item.Quantity
		}
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\n", s.SaleID, units, money(s.Total), money(s.AmountPaid), money(s.Change),
			time.Unix(s.Timestamp, 0).UTC().Format(time.DateTime))
	}
	_ = tw.Flush()
}

func writeDailyReport(w io.Writer, report api.DailySalesReport) {
	if len(report) == 0 {
		_, _ = fmt.Fprintln(w, "No sales yet.")
		return
	}
	days := make([]string, 0, len(report))
	for day := range report {
		days = append(days, day)
	}
	slices.Sort(days)
	tw := newTable(w)
	_, _ = fmt.Fprintln(tw, "DAY\tTOTAL")
	for _, day := range days {
		_, _ = fmt.Fprintf(tw, "%s\t%s\n", day, money(report[day]))
	}
	_ = tw.Flush()
}

func writeOrder(w io.Writer, order *checkout.Order) {
	info := order.CustomerInfo
	_, _ = fmt.Fprintf(w, "Order %s placed %s\n", order.ID, order.OrderDate.Format(time.RFC1123))
	_, _ = fmt.Fprintf(w, "Ship to: %s <%s>, %s, %s %s, %s\n", info.Name, info.Email, info.Address, info.City, info.PostalCode, info.Country)
	_, _ = fmt.Fprintf(w, "Payment: %s\n", info.PaymentMethod)
	tw := newTable(w)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tPRICE\tQTY")
	for _, item := range order.Items {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", item.ID, item.Name, money(item.Price), item.Quantity)
	}
	_ = tw.Flush()
	_, _ = fmt.Fprintf(w, "Total: %s\n", money(order.Total))
}
