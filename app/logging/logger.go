// Package logging builds the process logger. The binaries construct one
// logger here and hand it down; library packages never build their own and
// derive component loggers with Named instead.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the production logger: JSON to stderr with ISO8601 timestamps,
// stdout stays free for command output. verbose lowers the level to Debug,
// quiet raises it to Error; verbose wins when both are set.
func New(verbose, quiet bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	switch {
	case verbose:
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case quiet:
		config.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	}

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger, nil
}
