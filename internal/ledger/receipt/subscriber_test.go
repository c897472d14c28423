package receipt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/abgdnv/pos/pkg/messaging/events"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockAckableMsg struct {
	mock.Mock
}

func (m *mockAckableMsg) Data() []byte {
	args := m.Called()
	return args.Get(0).([]byte)
}

func (m *mockAckableMsg) Ack() error {
	args := m.Called()
	return args.Error(0)
}

func (m *mockAckableMsg) Nak() error {
	args := m.Called()
	return args.Error(0)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("paper jam") }

func sampleEvent() events.SaleCompletedEvent {
	return events.SaleCompletedEvent{
		SaleID: uuid.MustParse("6f1c6b1e-2f7c-4d7e-9b55-0f4b2a4c9e11"),
		Items: []events.SaleLine{
			{ProductID: "A", Name: "Widget", Price: decimal.RequireFromString("10.00"), Quantity: 2},
			{ProductID: "B", Name: "Gadget", Price: decimal.RequireFromString("5.50"), Quantity: 1},
		},
		Total:     decimal.RequireFromString("25.50"),
		Paid:      decimal.RequireFromString("30.00"),
		Change:    decimal.RequireFromString("4.50"),
		Timestamp: time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
	}
}

func Test_handleMessage(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	validPayload, _ := json.Marshal(sampleEvent())
	testCases := []struct {
		name        string
		out         io.Writer
		newMockMsg  func() *mockAckableMsg
		expectPrint bool
	}{
		{
			name: "valid message",
			out:  &bytes.Buffer{},
			newMockMsg: func() *mockAckableMsg {
				msg := new(mockAckableMsg)
				msg.On("Data").Return(validPayload).Times(1)
				msg.On("Ack").Return(nil).Times(1)
				return msg
			},
			expectPrint: true,
		},
		{
			name: "invalid message",
			out:  &bytes.Buffer{},
			newMockMsg: func() *mockAckableMsg {
				msg := new(mockAckableMsg)
				msg.On("Data").Return([]byte("invalid data")).Times(1)
				msg.On("Nak").Return(nil).Times(1)
				return msg
			},
		},
		{
			name: "printer failure",
			out:  failingWriter{},
			newMockMsg: func() *mockAckableMsg {
				msg := new(mockAckableMsg)
				msg.On("Data").Return(validPayload).Times(1)
				msg.On("Nak").Return(nil).Times(1)
				return msg
			},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			mockMsg := tc.newMockMsg()
			printer := NewPrinter(tc.out, logger)

			// when
			printer.handleMessage(context.Background(), mockMsg)

			// then
			mockMsg.AssertExpectations(t)
			if buf, ok := tc.out.(*bytes.Buffer); ok {
				assert.Equal(t, tc.expectPrint, buf.Len() > 0)
			}
		})
	}
}

func TestRender(t *testing.T) {
	// when
	out := Render(sampleEvent())

	// then
	assert.Contains(t, out, "Sale: 6f1c6b1e-2f7c-4d7e-9b55-0f4b2a4c9e11")
	assert.Contains(t, out, "Date: 2026-03-14 09:26:53")
	assert.Regexp(t, `Widget\s+2 x\s+10\.00\s+20\.00`, out)
	assert.Regexp(t, `Gadget\s+1 x\s+5\.50\s+5\.50`, out)
	assert.Regexp(t, `Total\s+25\.50`, out)
	assert.Regexp(t, `Change\s+4\.50`, out)
}
