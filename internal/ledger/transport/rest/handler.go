// Package rest provides the HTTP API of the sale ledger.
package rest

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	lerrors "github.com/abgdnv/pos/internal/ledger/errors"
	"github.com/abgdnv/pos/internal/ledger/service"
	"github.com/abgdnv/pos/pkg/api"
	"github.com/abgdnv/pos/pkg/web"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
)

// Rejection messages for request bodies that fail validation.
const (
	msgMissingProductInfo = "Missing product information"
	msgInvalidUpdate      = "Product not found or invalid quantity"
)

// maxBodyBytes caps request bodies; every request of this API is a small JSON object.
const maxBodyBytes = 1 << 16

type Handler struct {
	service  service.LedgerService
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler creates a new instance of Handler with the provided service.
func NewHandler(service service.LedgerService, logger *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		validate: web.NewValidator(),
		logger:   logger.With("component", "rest"),
	}
}

// RegisterRoutes registers the HTTP routes of the ledger.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/add_product", h.AddProduct)
	r.Put("/update_product", h.UpdateProduct)
	r.Get("/view_inventory", h.ViewInventory)
	r.Delete("/delete_product/{id}", h.DeleteProduct)

	r.Post("/add_to_sale", h.AddToSale)
	r.Get("/calculate_total", h.CalculateTotal)
	r.Post("/process_payment", h.ProcessPayment)
	r.Post("/clear_sale", h.ClearSale)

	r.Get("/view_sales_history", h.ViewSalesHistory)
	r.Get("/sales_report_daily", h.SalesReportDaily)
	r.Get("/inventory_report", h.InventoryReport)

	r.Get("/healthz", h.HealthCheck)
}

// AddProduct creates or overwrites a product.
func (h *Handler) AddProduct(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	var product api.ProductDto
	if !h.decodeValid(w, r, mLogger, &product, msgMissingProductInfo) {
		return
	}
	if err := h.service.AddProduct(r.Context(), product); err != nil {
		h.respondServiceError(w, r, mLogger, err, "Failed to add product")
		return
	}
	mLogger.InfoContext(r.Context(), "Product added", "ID", product.ID, "Name", product.Name)
	web.RespondMessage(w, mLogger, http.StatusCreated, api.MsgProductAdded)
}

// UpdateProduct adds a quantity delta to an existing product.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	var req api.UpdateQuantityRequest
	if !h.decodeValid(w, r, mLogger, &req, msgInvalidUpdate) {
		return
	}
	if err := h.service.UpdateQuantity(r.Context(), req.ID, *req.Quantity); err != nil {
		h.respondServiceError(w, r, mLogger, err, "Failed to update product")
		return
	}
	mLogger.InfoContext(r.Context(), "Product quantity updated", "ID", req.ID, "delta", *req.Quantity)
	web.RespondMessage(w, mLogger, http.StatusOK, api.MsgProductUpdated)
}

// ViewInventory lists every product ordered by id.
func (h *Handler) ViewInventory(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	list, err := h.service.Inventory(r.Context())
	if err != nil {
		h.respondServiceError(w, r, mLogger, err, "Failed to fetch inventory")
		return
	}
	mLogger.DebugContext(r.Context(), "Inventory listed", "count", len(list))
	web.RespondJSON(w, mLogger, http.StatusOK, list)
}

// DeleteProduct removes a product from inventory.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, ok := web.ParseID(w, r, mLogger)
	if !ok {
		return
	}
	if err := h.service.DeleteProduct(r.Context(), id); err != nil {
		h.respondServiceError(w, r, mLogger, err, "Failed to delete product")
		return
	}
	mLogger.InfoContext(r.Context(), "Product deleted", "ID", id)
	web.RespondMessage(w, mLogger, http.StatusOK, api.MsgProductDeleted)
}

// AddToSale reserves stock for the open sale. Quantity defaults to one.
func (h *Handler) AddToSale(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	var req api.AddToSaleRequest
	if !h.decodeValid(w, r, mLogger, &req, lerrors.ErrProductUnavailable.Error()) {
		return
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}
	if err := h.service.AddToSale(r.Context(), req.ID, quantity); err != nil {
		h.respondServiceError(w, r, mLogger, err, "Failed to add product to sale")
		return
	}
	mLogger.InfoContext(r.Context(), "Product added to sale", "ID", req.ID, "quantity", quantity)
	web.RespondMessage(w, mLogger, http.StatusOK, api.MsgAddedToSale)
}

// CalculateTotal returns the running total of the open sale.
func (h *Handler) CalculateTotal(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	total, err := h.service.Total(r.Context())
	if err != nil {
		h.respondServiceError(w, r, mLogger, err, "Failed to calculate total")
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, api.TotalResponse{Total: total})
}

// ProcessPayment pays for the open sale and returns the change.
func (h *Handler) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	var req api.PaymentRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		mLogger.WarnContext(r.Context(), "Error decoding payment request", "error", err)
		web.RespondError(w, mLogger, http.StatusBadRequest, lerrors.ErrInvalidPaymentAmount.Error())
		return
	}
	sale, err := h.service.ProcessPayment(r.Context(), req.Amount)
	if err != nil {
		h.respondServiceError(w, r, mLogger, err, "Failed to process payment")
		return
	}
	mLogger.InfoContext(r.Context(), "Payment processed",
		"sale_id", sale.SaleID, "total", sale.Total.StringFixed(2), "change", sale.Change.StringFixed(2))
	web.RespondJSON(w, mLogger, http.StatusOK, api.PaymentResponse{Message: api.MsgPaymentProcessed, Change: sale.Change})
}

// ClearSale drops the open sale.
func (h *Handler) ClearSale(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	if err := h.service.ClearSale(r.Context()); err != nil {
		h.respondServiceError(w, r, mLogger, err, "Failed to clear sale")
		return
	}
	mLogger.InfoContext(r.Context(), "Current sale cleared")
	web.RespondMessage(w, mLogger, http.StatusOK, api.MsgSaleCleared)
}

// ViewSalesHistory lists paid sales oldest first, with optional limit and offset.
func (h *Handler) ViewSalesHistory(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	limit, offset, ok := web.ParsePage(w, r, mLogger)
	if !ok {
		return
	}
	sales, err := h.service.SalesHistory(r.Context(), limit, offset)
	if err != nil {
		h.respondServiceError(w, r, mLogger, err, "Failed to fetch sales history")
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, sales)
}

// SalesReportDaily returns sale totals per day.
func (h *Handler) SalesReportDaily(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	report, err := h.service.DailyReport(r.Context())
	if err != nil {
		h.respondServiceError(w, r, mLogger, err, "Failed to build daily sales report")
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, report)
}

// InventoryReport returns the inventory with unit and value totals.
func (h *Handler) InventoryReport(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	report, err := h.service.InventoryReport(r.Context())
	if err != nil {
		h.respondServiceError(w, r, mLogger, err, "Failed to build inventory report")
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, report)
}

// HealthCheck is a simple health check endpoint.
func (h *Handler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// decodeValid decodes the JSON body into dst and validates it.
// On failure it writes the response and returns false. A failed rule is
// reported as invalidMsg, with the per-field rules under validation_errors.
func (h *Handler) decodeValid(w http.ResponseWriter, r *http.Request, mLogger *slog.Logger, dst any, invalidMsg string) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		mLogger.WarnContext(r.Context(), "Error decoding request body", "error", err)
		web.RespondError(w, mLogger, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			errorResponse := web.ValidationErrors(validationErrors)
			mLogger.WarnContext(r.Context(), "Validation errors occurred", "errors", errorResponse)
			web.RespondJSON(w, mLogger, http.StatusBadRequest, api.ErrorResponse{Error: invalidMsg, ValidationErrors: errorResponse})
			return false
		}
		mLogger.ErrorContext(r.Context(), "Error validating request body", "error", err)
		web.RespondError(w, mLogger, http.StatusBadRequest, invalidMsg)
		return false
	}
	return true
}

// respondServiceError maps ledger errors to HTTP statuses. Unknown errors
// are logged and reported as fallback with status 500.
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, mLogger *slog.Logger, err error, fallback string) {
	for _, known := range []struct {
		err    error
		status int
	}{
		{lerrors.ErrProductNotFound, http.StatusNotFound},
		{lerrors.ErrProductUnavailable, http.StatusBadRequest},
		{lerrors.ErrInsufficientStock, http.StatusBadRequest},
		{lerrors.ErrInvalidPaymentAmount, http.StatusBadRequest},
		{lerrors.ErrInsufficientPayment, http.StatusBadRequest},
		{lerrors.ErrEmptySale, http.StatusBadRequest},
	} {
		if errors.Is(err, known.err) {
			mLogger.WarnContext(r.Context(), "Request rejected", "error", err)
			web.RespondError(w, mLogger, known.status, known.err.Error())
			return
		}
	}
	mLogger.ErrorContext(r.Context(), fallback, "error", err)
	web.RespondError(w, mLogger, http.StatusInternalServerError, fallback)
}

// loggerWithReqID creates a logger with the request ID from the context.
func (h *Handler) loggerWithReqID(r *http.Request) *slog.Logger {
	reqID := middleware.GetReqID(r.Context())
	return h.logger.With("request_id", reqID)
}
