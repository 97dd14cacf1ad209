package testhelpers

import (
	"github.com/jonesrussell/channel-analyzer/internal/logger"
)

// NewTestLogger returns a logger that discards output.
func NewTestLogger() logger.Logger {
	return logger.NewNop()
}
