// Package receipt consumes sale events and prints customer receipts.
package receipt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/abgdnv/pos/pkg/config"
	"github.com/abgdnv/pos/pkg/messaging/events"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"
)

// ackableMsg is the part of jetstream.Msg the printer needs.
type ackableMsg interface {
	Data() []byte
	Ack() error
	Nak() error
}

// Printer renders receipts for completed sales to an output, one at a time.
type Printer struct {
	mu     sync.Mutex
	out    io.Writer
	logger *slog.Logger
}

func NewPrinter(out io.Writer, logger *slog.Logger) *Printer {
	return &Printer{out: out, logger: logger.With("component", "receipt")}
}

// Start creates the durable consumer and runs cfg.Workers fetch loops until ctx is done.
func (p *Printer) Start(ctx context.Context, js jetstream.JetStream, stream string, cfg config.SubscriberConfig) error {
	consumer, err := js.CreateOrUpdateConsumer(ctx, stream, jetstream.ConsumerConfig{
		FilterSubject: cfg.Subject,
		Durable:       cfg.Consumer,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer %s: %w", cfg.Consumer, err)
	}
	g, gCtx := errgroup.WithContext(ctx)
	for i := 0; i < cfg.Workers; i++ {
		g.Go(func() error {
			return p.runWorker(gCtx, consumer, cfg.Timeout, cfg.Interval)
		})
	}
	return g.Wait()
}

func (p *Printer) runWorker(ctx context.Context, consumer jetstream.Consumer, timeout, interval time.Duration) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			batch, err := consumer.Fetch(1, jetstream.FetchMaxWait(timeout))
			if err != nil {
				if errors.Is(err, nats.ErrTimeout) {
					continue
				}
				p.logger.Error("failed to fetch messages", "error", err)
				time.Sleep(interval)
				continue
			}
			for msg := range batch.Messages() {
				p.handleMessage(ctx, msg)
			}
		}
	}
}

func (p *Printer) handleMessage(ctx context.Context, msg ackableMsg) {
	if msg == nil {
		p.logger.Error("received nil message")
		return
	}
	var event events.SaleCompletedEvent
	if err := json.Unmarshal(msg.Data(), &event); err != nil {
		p.logger.Error("failed to unmarshal sale event", "error", err)
		if err := msg.Nak(); err != nil {
			p.logger.Error("failed to nack message", "error", err)
		}
		return
	}
	ctx = otel.GetTextMapPropagator().Extract(ctx, event.Carrier)

	p.mu.Lock()
	_, err := io.WriteString(p.out, Render(event))
	p.mu.Unlock()
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to print receipt", "sale_id", event.SaleID, "error", err)
		if err := msg.Nak(); err != nil {
			p.logger.Error("failed to nack message", "error", err)
		}
		return
	}
	p.logger.InfoContext(ctx, "receipt printed",
		slog.String("sale_id", event.SaleID.String()),
		slog.String("total", event.Total.StringFixed(2)))

	if err := msg.Ack(); err != nil {
		p.logger.Error("failed to ack message", "error", err)
	}
}

// Render formats a sale as a plain-text receipt.
func Render(event events.SaleCompletedEvent) string {
	var b strings.Builder
	b.WriteString("================ RECEIPT ================\n")
	fmt.Fprintf(&b, "Sale: %s\n", event.SaleID)
	fmt.Fprintf(&b, "Date: %s\n", event.Timestamp.UTC().Format(time.DateTime))
	b.WriteString("-----------------------------------------\n")
	for _, item := range event.Items {
		subtotal := item.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		fmt.Fprintf(&b, "%-22.22s %3d x %6s %8s\n", item.Name, item.Quantity, item.Price.StringFixed(2), subtotal.StringFixed(2))
	}
	b.WriteString("-----------------------------------------\n")
	fmt.Fprintf(&b, "%-31s %9s\n", "Total", event.Total.StringFixed(2))
	fmt.Fprintf(&b, "%-31s %9s\n", "Paid", event.Paid.StringFixed(2))
	fmt.Fprintf(&b, "%-31s %9s\n", "Change", event.Change.StringFixed(2))
	b.WriteString("=========================================\n")
	return b.String()
}
