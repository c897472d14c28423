package reconcile

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/abgdnv/pos/internal/ledgerclient"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notifier shows short messages to the operator.
type Notifier interface {
	Notify(level Level, message string)
}

type DiscardNotifier struct{}

func (DiscardNotifier) Notify(Level, string) {}

// WriterNotifier prints one message per line, prefixed for errors and warnings.
type WriterNotifier struct {
	mu  sync.Mutex
	out io.Writer
}

func NewWriterNotifier(out io.Writer) *WriterNotifier {
	return &WriterNotifier{out: out}
}

func (n *WriterNotifier) Notify(level Level, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	switch level {
	case LevelError:
		_, _ = fmt.Fprintf(n.out, "! %s\n", message)
	case LevelWarning:
		_, _ = fmt.Fprintf(n.out, "~ %s\n", message)
	default:
		_, _ = fmt.Fprintf(n.out, "%s\n", message)
	}
}

// Describe renders err the way the panel shows remote failures.
func Describe(err error) string {
	var apiErr *ledgerclient.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	if errors.Is(err, ledgerclient.ErrUnavailable) {
		return ledgerclient.ErrUnavailable.Error()
	}
	return err.Error()
}
