package receipt

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/abgdnv/pos/pkg/config"
	pnats "github.com/abgdnv/pos/pkg/nats"
	"github.com/google/uuid"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/nats"
	"golang.org/x/sync/errgroup"
)

// skipIntegrationTests is the environment variable that controls whether to skip integration tests.
const skipIntegrationTests = "POS_SVC_SKIP_INTEGRATION_TESTS"
const natsImg = "nats:2.11.6-alpine"

// syncBuffer lets the test read what the printer workers write.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type PrinterSuite struct {
	suite.Suite
	ctx           context.Context
	logger        *slog.Logger
	natsContainer *nats.NATSContainer
	nc            *natsgo.Conn
	js            jetstream.JetStream
}

func (s *PrinterSuite) SetupSuite() {
	s.ctx = context.Background()
	s.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	var err error
	s.natsContainer, err = nats.Run(s.ctx, natsImg)
	require.NoError(s.T(), err, "Failed to run NATS container")

	natsURL, err := s.natsContainer.ConnectionString(s.ctx)
	require.NoError(s.T(), err)
	s.nc, err = pnats.NewClient(natsURL, 5*time.Second)
	require.NoError(s.T(), err, "Failed to connect to NATS")
	s.js, err = pnats.NewJetStreamContext(s.nc)
	require.NoError(s.T(), err, "Failed to create JetStream context")
}

func (s *PrinterSuite) TearDownSuite() {
	s.nc.Close()
	if err := testcontainers.TerminateContainer(s.natsContainer); err != nil {
		s.logger.Error("Failed to terminate NATS container", "error", err)
	}
}

func TestPrinterIntegration(t *testing.T) {
	if os.Getenv(skipIntegrationTests) == "1" {
		t.Skip("Skipping integration tests based on " + skipIntegrationTests + " env var")
	}
	suite.Run(t, new(PrinterSuite))
}

func (s *PrinterSuite) TestPrintsPublishedSales() {
	// given
	streamName := "SALES_" + uuid.NewString()[:8]
	subject := "sales." + uuid.NewString()
	stream, err := pnats.EnsureStream(s.ctx, s.js, streamName, subject)
	require.NoError(s.T(), err)
	again, err := pnats.EnsureStream(s.ctx, s.js, streamName, subject)
	require.NoError(s.T(), err, "existing stream is reused")
	require.Equal(s.T(), stream.CachedInfo().Config.Name, again.CachedInfo().Config.Name)

	out := &syncBuffer{}
	printer := NewPrinter(out, s.logger)
	cfg := config.SubscriberConfig{
		Subject:  subject,
		Consumer: "receipts-" + uuid.NewString()[:8],
		Timeout:  200 * time.Millisecond,
		Interval: 200 * time.Microsecond,
		Workers:  2,
	}
	testCtx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
	g, gCtx := errgroup.WithContext(testCtx)
	g.Go(func() error { return printer.Start(gCtx, s.js, streamName, cfg) })
	s.T().Cleanup(func() {
		cancel()
		require.ErrorIs(s.T(), g.Wait(), context.Canceled)
	})

	// when
	_, err = s.js.Publish(s.ctx, subject, []byte("not a sale"))
	require.NoError(s.T(), err)
	event := sampleEvent()
	payload, err := event.Payload()
	require.NoError(s.T(), err)
	_, err = s.js.Publish(s.ctx, subject, payload)
	require.NoError(s.T(), err)

	// then
	require.Eventually(s.T(), func() bool {
		return strings.Contains(out.String(), event.SaleID.String())
	}, 5*time.Second, 100*time.Millisecond, "receipt was not printed")
	require.Contains(s.T(), out.String(), "Change")
}
