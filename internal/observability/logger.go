package observability

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/duesflow/duesflow/internal/config"
)

// NewLogger builds the process-wide zap logger. Debug level and console
// encoding in debug server mode, JSON at Info otherwise.
func NewLogger(cfg config.Config) (*zap.Logger, error) {
	if cfg.Server.Mode == "debug" {
		dev := zap.NewDevelopmentConfig()
		dev.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		return dev.Build()
	}

	prod := zap.NewProductionConfig()
	prod.EncoderConfig.TimeKey = "ts"
	prod.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return prod.Build()
}
