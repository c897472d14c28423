// Package errors provides the sentinel errors of the sale ledger.
package errors

import "errors"

var ErrProductNotFound = errors.New("Product not found")
var ErrProductUnavailable = errors.New("Product not available or insufficient quantity")
var ErrInsufficientStock = errors.New("Insufficient stock for this update")

var ErrInvalidPaymentAmount = errors.New("Invalid payment amount")
var ErrInsufficientPayment = errors.New("Insufficient payment")
var ErrEmptySale = errors.New("No items in current sale")

var ErrTransactionBegin = errors.New("failed to begin transaction")
var ErrTransactionCommit = errors.New("failed to commit transaction")
var ErrTransactionRollback = errors.New("failed to rollback transaction")
