// Package ledgerclient is the HTTP client of the sale ledger API.
package ledgerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/abgdnv/pos/pkg/api"
	"github.com/abgdnv/pos/pkg/config"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	unknownError    = "Unknown error"
	maxResponseSize = 1 << 20
)

// ErrUnavailable is returned without calling the ledger while the circuit breaker is open.
var ErrUnavailable = errors.New("ledger is unavailable, try again later")

// APIError is a non-2xx answer of the ledger.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// Client calls the ledger API. Requests are never retried.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	breaker    *gobreaker.CircuitBreaker[struct{}]
}

// New creates a Client for cfg. A nil transport means http.DefaultTransport.
func New(cfg config.LedgerClientConfig, transport http.RoundTripper) *Client {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		httpClient: &http.Client{Transport: otelhttp.NewTransport(transport)},
		timeout:    cfg.Timeout,
		breaker:    newCircuitBreaker(cfg.CircuitBreaker),
	}
}

func newCircuitBreaker(cfg config.CircuitBreakerConfig) *gobreaker.CircuitBreaker[struct{}] {
	st := gobreaker.Settings{
		Name:        "ledger-cb",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			total := counts.TotalSuccesses + counts.TotalFailures
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures ||
				(total > cfg.ConsecutiveFailures &&
					float64(counts.TotalFailures)/float64(total)*100 > float64(cfg.ErrorRatePercent))
		},
		IsSuccessful: func(err error) bool {
			if err == nil || errors.Is(err, context.Canceled) {
				return true
			}
			// rejected requests are answers, not outages
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return apiErr.Status < http.StatusInternalServerError
			}
			return false
		},
	}
	return gobreaker.NewCircuitBreaker[struct{}](st)
}

func (c *Client) AddProduct(ctx context.Context, product api.ProductDto) (string, error) {
	var resp api.MessageResponse
	err := c.do(ctx, http.MethodPost, "/add_product", product, &resp)
	return resp.Message, err
}

// UpdateProduct adds delta, which may be negative, to the stock of id.
func (c *Client) UpdateProduct(ctx context.Context, id string, delta int) (string, error) {
	var resp api.MessageResponse
	err := c.do(ctx, http.MethodPut, "/update_product", api.UpdateQuantityRequest{ID: id, Quantity: &delta}, &resp)
	return resp.Message, err
}

func (c *Client) DeleteProduct(ctx context.Context, id string) (string, error) {
	var resp api.MessageResponse
	err := c.do(ctx, http.MethodDelete, "/delete_product/"+url.PathEscape(id), nil, &resp)
	return resp.Message, err
}

func (c *Client) ViewInventory(ctx context.Context) ([]api.ProductDto, error) {
	var products []api.ProductDto
	if err := c.do(ctx, http.MethodGet, "/view_inventory", nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (c *Client) AddToSale(ctx context.Context, id string, quantity int) (string, error) {
	var resp api.MessageResponse
	err := c.do(ctx, http.MethodPost, "/add_to_sale", api.AddToSaleRequest{ID: id, Quantity: &quantity}, &resp)
	return resp.Message, err
}

func (c *Client) CalculateTotal(ctx context.Context) (decimal.Decimal, error) {
	var resp api.TotalResponse
	if err := c.do(ctx, http.MethodGet, "/calculate_total", nil, &resp); err != nil {
		return decimal.Zero, err
	}
	return resp.Total, nil
}

func (c *Client) ProcessPayment(ctx context.Context, amount decimal.Decimal) (*api.PaymentResponse, error) {
	var resp api.PaymentResponse
	req := api.PaymentRequest{Amount: decimal.NewNullDecimal(amount)}
	if err := c.do(ctx, http.MethodPost, "/process_payment", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ClearSale(ctx context.Context) (string, error) {
	var resp api.MessageResponse
	err := c.do(ctx, http.MethodPost, "/clear_sale", nil, &resp)
	return resp.Message, err
}

// ViewSalesHistory returns paid sales oldest first. A zero limit returns all of them.
func (c *Client) ViewSalesHistory(ctx context.Context, limit, offset int) ([]api.SaleDto, error) {
	path := "/view_sales_history"
	if limit > 0 {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(limit))
		q.Set("offset", strconv.Itoa(offset))
		path += "?" + q.Encode()
	}
	var sales []api.SaleDto
	if err := c.do(ctx, http.MethodGet, path, nil, &sales); err != nil {
		return nil, err
	}
	return sales, nil
}

func (c *Client) SalesReportDaily(ctx context.Context) (api.DailySalesReport, error) {
	report := api.DailySalesReport{}
	if err := c.do(ctx, http.MethodGet, "/sales_report_daily", nil, &report); err != nil {
		return nil, err
	}
	return report, nil
}

func (c *Client) InventoryReport(ctx context.Context) (*api.InventoryReport, error) {
	var report api.InventoryReport
	if err := c.do(ctx, http.MethodGet, "/inventory_report", nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// do sends in as JSON and decodes a 2xx body into out, bounded by the client timeout.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	_, err := c.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, c.roundTrip(ctx, method, path, in, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s %s", ErrUnavailable, method, path)
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Message: errorMessage(raw)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response of %s %s: %w", method, path, err)
	}
	return nil
}

// errorMessage extracts {error} from a body. Validation maps are folded into one line.
func errorMessage(raw []byte) string {
	var body api.ErrorResponse
	if err := json.Unmarshal(raw, &body); err != nil {
		return unknownError
	}
	if body.Error != "" {
		return body.Error
	}
	if len(body.ValidationErrors) == 0 {
		return unknownError
	}
	parts := make([]string, 0, len(body.ValidationErrors))
	for _, field := range slices.Sorted(maps.Keys(body.ValidationErrors)) {
		parts = append(parts, field+" "+body.ValidationErrors[field])
	}
	return strings.Join(parts, "; ")
}
