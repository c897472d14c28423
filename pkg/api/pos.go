// Package api holds the JSON contract of the sale ledger, shared by the
// ledger service and its clients.
package api

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func init() {
	// money travels as JSON numbers, e.g. {"price": 10.5}
	decimal.MarshalJSONWithoutQuotes = true
}

const (
	MsgProductAdded     = "Product added successfully"
	MsgProductUpdated   = "Product updated successfully"
	MsgProductDeleted   = "Product deleted successfully"
	MsgAddedToSale      = "Product added to sale"
	MsgPaymentProcessed = "Payment processed successfully"
	MsgSaleCleared      = "Current sale cleared"
)

// ProductDto is an inventory row. Quantity is the stock left on the shelf.
type ProductDto struct {
	ID       string          `json:"id" validate:"required,max=64"`
	Name     string          `json:"name" validate:"required,max=255"`
	Price    decimal.Decimal `json:"price" validate:"gte=0"`
	Quantity int             `json:"quantity" validate:"gte=0"`
}

// UpdateQuantityRequest adjusts stock by Quantity, which may be negative.
type UpdateQuantityRequest struct {
	ID       string `json:"id" validate:"required,max=64"`
	Quantity *int   `json:"quantity" validate:"required"`
}

// AddToSaleRequest reserves Quantity units for the current sale.
// A missing quantity means one unit.
type AddToSaleRequest struct {
	ID       string `json:"id" validate:"required,max=64"`
	Quantity *int   `json:"quantity,omitempty" validate:"omitempty,gt=0"`
}

type PaymentRequest struct {
	Amount decimal.NullDecimal `json:"amount"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type TotalResponse struct {
	Total decimal.Decimal `json:"total"`
}

type PaymentResponse struct {
	Message string          `json:"message"`
	Change  decimal.Decimal `json:"change"`
}

type SaleLineDto struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// SaleDto is a paid sale. Timestamp is in unix seconds.
type SaleDto struct {
	SaleID     uuid.UUID       `json:"sale_id"`
	Items      []SaleLineDto   `json:"items"`
	Total      decimal.Decimal `json:"total"`
	AmountPaid decimal.Decimal `json:"amount_paid"`
	Change     decimal.Decimal `json:"change"`
	Timestamp  int64           `json:"timestamp"`
}

type InventoryReport struct {
	Products   []ProductDto    `json:"products"`
	TotalUnits int             `json:"total_units"`
	TotalValue decimal.Decimal `json:"total_value"`
}

// DailySalesReport maps a YYYY-MM-DD day (UTC) to the sum of its sale totals.
type DailySalesReport map[string]decimal.Decimal

type ErrorResponse struct {
	Error            string            `json:"error,omitempty"`
	ValidationErrors map[string]string `json:"validation_errors,omitempty"`
}
