package config

import (
	"fmt"
	"strings"
)

// LocalStoreConfig points at the SQLite file holding client-side state
// (cart lines, the current sale and the current order).
type LocalStoreConfig struct {
	Path string `koanf:"path"`
}

const defaultLocalStorePath = "posctl.db"

// String returns a string representation of the local store configuration.
func (c *LocalStoreConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Local Store ---\n")
	b.WriteString(fmt.Sprintf("  path: %s\n", c.Path))
	return b.String()
}

func (c *LocalStoreConfig) Validate() error {
	if c.Path == "" {
		c.Path = defaultLocalStorePath
	}
	return nil
}
