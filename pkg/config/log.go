package config

import (
	"fmt"
	"log/slog"
	"strings"
)

// LogConfig sets the minimum level of the JSON logger.
type LogConfig struct {
	Level string `koanf:"level"`
}

func (c *LogConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Log ---\n")
	b.WriteString(fmt.Sprintf("  level: %s\n", c.Level))
	return b.String()
}

// Validate accepts an empty level, meaning info, or any level slog can parse.
func (c *LogConfig) Validate() error {
	if c.Level == "" {
		return nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Level)); err != nil {
		return fmt.Errorf("unknown log level %q", c.Level)
	}
	return nil
}
