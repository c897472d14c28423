package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/abgdnv/pos/internal/cart"
	"github.com/abgdnv/pos/internal/ledgerclient"
	"github.com/abgdnv/pos/internal/localstore"
	"github.com/abgdnv/pos/pkg/bootstrap"
	"github.com/spf13/cobra"
)

// session bundles what a command needs to talk to the ledger and the local store.
type session struct {
	cfg    *Config
	logger *slog.Logger
	ledger *ledgerclient.Client
	out    *OutputFormatter
}

func newSession(cmd *cobra.Command, opts *RootOptions) (*session, error) {
	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, out.Fail(WrapExitError(ExitCommandError, "failed to load configuration", err))
	}
	logger := bootstrap.NewLoggerTo(cmd.ErrOrStderr(), cfg.Log.Level)
	out.VerboseLog("Configuration loaded: %v", cfg)
	return &session{
		cfg:    cfg,
		logger: logger,
		ledger: ledgerclient.New(cfg.Ledger, nil),
		out:    out,
	}, nil
}

// openCart opens the local store and restores the cart saved under key.
// The returned func closes the store.
func (s *session) openCart(ctx context.Context, key string) (*cart.Cart, *localstore.Store, func(), error) {
	store, err := localstore.Open(ctx, s.cfg.LocalStore.Path)
	if err != nil {
		return nil, nil, nil, s.out.Fail(WrapExitError(ExitCommandError, "failed to open local store", err))
	}
	closeFn := func() {
		if err := store.Close(); err != nil {
			s.logger.Error("Failed to close local store", slog.String("error", err.Error()))
		}
	}
	lines, err := store.LoadLines(ctx, key)
	if err != nil {
		closeFn()
		return nil, nil, nil, s.out.Fail(WrapExitError(ExitCommandError, fmt.Sprintf("failed to load %s", key), err))
	}
	c := cart.New(cart.WithPersister(store.CartPersister(key)), cart.WithLogger(s.logger))
	c.Restore(lines)
	return c, store, closeFn, nil
}
