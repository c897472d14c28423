package config

import (
	"errors"
	"strings"

	"github.com/abgdnv/pos/pkg/config"
	"github.com/abgdnv/pos/pkg/config/configloader"
)

var _ configloader.Validator = (*Config)(nil)

var errReceiptsWithoutNats = errors.New("receipts are enabled but nats is disabled")

// Config is the configuration of the pos_service binary.
type Config struct {
	HTTPServer config.HTTPConfig      `koanf:"server"`
	Storage    config.StorageConfig   `koanf:"storage"`
	Log        config.LogConfig       `koanf:"log"`
	PProf      config.PProfConfig     `koanf:"pprof"`
	Nats       config.NATSConfig      `koanf:"nats"`
	Receipts   ReceiptsConfig         `koanf:"receipts"`
	Telemetry  config.TelemetryConfig `koanf:"telemetry"`
	Shutdown   config.ShutdownConfig  `koanf:"shutdown"`
}

// ReceiptsConfig enables the in-process receipt printer that consumes
// sale events. It needs NATS to be enabled.
type ReceiptsConfig struct {
	Enabled    bool                    `koanf:"enabled"`
	Subscriber config.SubscriberConfig `koanf:"subscriber"`
}

func (c *Config) String() string {
	var b strings.Builder
	b.WriteString(c.HTTPServer.String())
	b.WriteString(c.Storage.String())
	b.WriteString(c.Nats.String())
	if c.Receipts.Enabled {
		b.WriteString(c.Receipts.Subscriber.String())
	}
	b.WriteString(c.Telemetry.String())
	b.WriteString(c.Log.String())
	b.WriteString(c.PProf.String())
	b.WriteString(c.Shutdown.String())
	return b.String()
}

// Validate checks if the configuration values are valid
func (c *Config) Validate() error {
	if err := c.HTTPServer.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if err := c.Log.Validate(); err != nil {
		return err
	}
	if err := c.PProf.Validate(); err != nil {
		return err
	}
	if err := c.Nats.Validate(); err != nil {
		return err
	}
	if c.Receipts.Enabled {
		if !c.Nats.Enabled {
			return errReceiptsWithoutNats
		}
		if err := c.Receipts.Subscriber.Validate(); err != nil {
			return err
		}
	}
	if err := c.Telemetry.Validate(); err != nil {
		return err
	}
	if err := c.Shutdown.Validate(); err != nil {
		return err
	}
	return nil
}
