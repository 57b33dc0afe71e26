// Package logging builds the process-wide zap logger for netwatch.
package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvLevel is the environment variable that controls log verbosity,
// the RUST_LOG-equivalent knob from the external interface spec.
const EnvLevel = "NETWATCH_LOG_LEVEL"

// New builds a *zap.Logger from NETWATCH_LOG_LEVEL. Unset or unparsable
// values default to info. Console encoding is used unless
// NETWATCH_LOG_FORMAT=json is set.
func New() *zap.Logger {
	level := zapcore.InfoLevel
	if raw := os.Getenv(EnvLevel); raw != "" {
		if err := level.UnmarshalText([]byte(raw)); err == nil {
			// parsed fine
		}
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if strings.EqualFold(os.Getenv("NETWATCH_LOG_FORMAT"), "json") {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level)
	return zap.New(core, zap.AddCaller())
}
