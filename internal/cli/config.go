package cli

import (
	"strings"
	"time"

	"github.com/abgdnv/pos/pkg/config"
	"github.com/abgdnv/pos/pkg/config/configloader"
)

const configPrefix = "posctl"

var _ configloader.Validator = (*Config)(nil)

// Config is the configuration of posctl.
type Config struct {
	Ledger     config.LedgerClientConfig `koanf:"ledger"`
	LocalStore config.LocalStoreConfig   `koanf:"localstore"`
	Log        config.LogConfig          `koanf:"log"`
}

func (c *Config) String() string {
	var b strings.Builder
	b.WriteString(c.Ledger.String())
	b.WriteString(c.LocalStore.String())
	b.WriteString(c.Log.String())
	return b.String()
}

// Validate fills the defaults of a local setup and checks the values.
func (c *Config) Validate() error {
	if c.Ledger.URL == "" {
		c.Ledger.URL = "http://localhost:5000"
	}
	if c.Ledger.Timeout == 0 {
		c.Ledger.Timeout = 5 * time.Second
	}
	cb := &c.Ledger.CircuitBreaker
	if cb.ConsecutiveFailures == 0 {
		cb.ConsecutiveFailures = 5
	}
	if cb.ErrorRatePercent == 0 {
		cb.ErrorRatePercent = 60
	}
	if cb.OpenTimeout == 0 {
		cb.OpenTimeout = 10 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "warn"
	}

	if err := c.Ledger.Validate(); err != nil {
		return err
	}
	if err := c.LocalStore.Validate(); err != nil {
		return err
	}
	return c.Log.Validate()
}

// loadConfig reads the config file and environment, then applies flag overrides.
func loadConfig(opts *RootOptions) (*Config, error) {
	cfg, err := configloader.LoadFile[*Config](configPrefix, opts.ConfigFile)
	if err != nil {
		return nil, err
	}
	if opts.LedgerURL != "" {
		cfg.Ledger.URL = opts.LedgerURL
	}
	if opts.StorePath != "" {
		cfg.LocalStore.Path = opts.StorePath
	}
	if opts.Verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
