package genairadio

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logLevel   = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	loggerOnce sync.Once
	logger     *zap.SugaredLogger
)

// Logger returns the shared structured logger
func Logger() *zap.SugaredLogger {
	loggerOnce.Do(func() {
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = logLevel
		cfg.DisableStacktrace = true
		base, err := cfg.Build()
		if err != nil {
			base = zap.NewNop()
		}
		logger = base.Sugar()
	})
	return logger
}

// SetVerbose toggles debug-level output for the shared logger
func SetVerbose(verbose bool) {
	if verbose {
		logLevel.SetLevel(zapcore.DebugLevel)
		return
	}
	logLevel.SetLevel(zapcore.InfoLevel)
}

// VerboseLog logs only when verbose mode is enabled
func VerboseLog(format string, v ...interface{}) {
	Logger().Debugf(format, v...)
}
