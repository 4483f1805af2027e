// Package logger centralizes zap setup so every package logs through the
// same configuration.
package logger

import (
	"fmt"

	"go.uber.org/zap"
)

// Setup builds the process logger and installs it as the zap global. Debug
// mode uses the verbose development config on stdout; otherwise the
// production JSON config is used.
func Setup(debug bool) (*zap.SugaredLogger, error) {
	var l *zap.Logger
	var err error
	if debug {
		z := zap.NewDevelopmentConfig()
		z.OutputPaths = []string{"stdout"}
		l, err = z.Build()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	zap.ReplaceGlobals(l)
	return l.Sugar(), nil
}
