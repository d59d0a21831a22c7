package logger

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap's SugaredLogger. Components log with key/value pairs and
// snake_case event keys, e.g. Warnw("ws_dial_failed", "url", u, "err", err).
type Logger struct {
	*zap.SugaredLogger
}

// fallbackLevel applies to an empty or unknown level string.
const fallbackLevel = zapcore.InfoLevel

func toZapLevel(levelStr string) zapcore.Level {
	switch normalizeLevel(levelStr) {
	case DebugLevel:
		return zapcore.DebugLevel
	case InfoLevel:
		return zapcore.InfoLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return fallbackLevel
	}
}

func stdoutSink() zapcore.WriteSyncer {
	return zapcore.Lock(os.Stdout)
}

func newConsoleCore(level zapcore.Level, sink zapcore.WriteSyncer) zapcore.Core {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.RFC3339TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.EncodeName = zapcore.FullNameEncoder

	return zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), sink, zap.NewAtomicLevelAt(level))
}

func newZapLogger(levelStr string, sink zapcore.WriteSyncer) *Logger {
	core := newConsoleCore(toZapLevel(levelStr), sink)
	return &Logger{SugaredLogger: zap.New(core).Sugar()}
}

// NewWriter is New with output sent to w.
func NewWriter(level string, w io.Writer) *Logger {
	return newZapLogger(level, zapcore.AddSync(w))
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}

// Named returns a child logger tagged with the component name, e.g.
// "ws" or "notifications". A nil receiver yields a Nop logger.
func (l *Logger) Named(component string) *Logger {
	if l == nil || l.SugaredLogger == nil {
		return Nop()
	}
	return &Logger{SugaredLogger: l.SugaredLogger.Named(component)}
}
