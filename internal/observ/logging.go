package observ

import (
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	loggerMu sync.RWMutex
	logger   = newProductionLogger(zapcore.InfoLevel)
)

func newProductionLogger(level zapcore.Level) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.MessageKey = "event"
	cfg.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	l, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// Configure rebuilds the process logger at the given level ("debug", "info", "warn", "error").
func Configure(level string) error {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(level)))); err != nil {
		return err
	}
	SetLogger(newProductionLogger(lvl))
	return nil
}

// SetLogger replaces the logger behind Log and returns the previous one.
func SetLogger(l *zap.Logger) *zap.Logger {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	prev := logger
	logger = l
	return prev
}

// Logger returns the current process logger.
func Logger() *zap.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

// Log writes one structured event. An "error" key holding an error is logged at
// error level, everything else at info.
func Log(event string, kv map[string]any) {
	emit(event, kv, zapcore.InfoLevel)
}

// Debug writes an event at debug level.
func Debug(event string, kv map[string]any) {
	emit(event, kv, zapcore.DebugLevel)
}

func emit(event string, kv map[string]any, level zapcore.Level) {
	l := Logger()
	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]zap.Field, 0, len(kv))
	for _, k := range keys {
		v := kv[k]
		if err, ok := v.(error); ok {
			if k == "error" {
				level = zapcore.ErrorLevel
			}
			fields = append(fields, zap.NamedError(k, err))
			continue
		}
		fields = append(fields, zap.Any(k, v))
	}

	if ce := l.Check(level, event); ce != nil {
		ce.Write(fields...)
	}
}

// Sync flushes buffered log entries.
func Sync() {
	_ = Logger().Sync()
}
