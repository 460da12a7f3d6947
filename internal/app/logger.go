package app

import (
	"strings"

	"github.com/cravequest/backend/pkg/logger"
)

// ConfigureLogging initialises the global zap logger from the configured
// server log level. Blank levels fall back to info, and "warning" is
// accepted as an alias for warn.
func ConfigureLogging(level string) error {
	level = strings.ToLower(strings.TrimSpace(level))
	switch level {
	case "":
		level = "info"
	case "warning":
		level = "warn"
	}
	return logger.Init(level)
}
