package events

import (
	"encoding/json"
	"time"

	"github.com/abgdnv/pos/pkg/messaging"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/propagation"
)

type SaleLine struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

// SaleCompletedEvent is published after a payment has been recorded.
// Carrier holds the trace context of the request that took the payment.
type SaleCompletedEvent struct {
	Carrier   propagation.MapCarrier `json:"carrier,omitempty"`
	SaleID    uuid.UUID              `json:"sale_id"`
	Items     []SaleLine             `json:"items"`
	Total     decimal.Decimal        `json:"total"`
	Paid      decimal.Decimal        `json:"paid"`
	Change    decimal.Decimal        `json:"change"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e SaleCompletedEvent) Subject() string {
	return messaging.SalesCompletedSubject
}

func (e SaleCompletedEvent) Payload() ([]byte, error) {
	return json.Marshal(e)
}
