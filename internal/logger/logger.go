package logger

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	global   *zap.Logger
	globalMu sync.RWMutex
)

// Init initializes the global logger. levelStr is one of
// debug/info/warn/error/fatal; jsonFormat selects the JSON encoder instead of
// the human-readable console encoder.
func Init(levelStr string, jsonFormat bool) error {
	levelMux.Lock()
	if level == nil {
		newLevel := zap.NewAtomicLevel()
		level = &newLevel
	}
	level.SetLevel(toZapLevel(ParseLevel(levelStr)))
	atomicLevel := *level
	levelMux.Unlock()

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if jsonFormat {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	} else {
		encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), atomicLevel)
	logger := zap.New(core, zap.AddCaller())

	globalMu.Lock()
	global = logger
	globalMu.Unlock()

	return nil
}

// L returns the global logger, initializing a no-op logger if Init has not
// been called yet.
func L() *zap.Logger {
	globalMu.RLock()
	l := global
	globalMu.RUnlock()
	if l != nil {
		return l
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if global == nil {
		global = zap.NewNop()
	}
	return global
}

// Set replaces the global logger. Used by tests to install an observed core.
func Set(l *zap.Logger) {
	globalMu.Lock()
	global = l
	globalMu.Unlock()
}

// Sync flushes any buffered log entries.
func Sync() error {
	return L().Sync()
}

// Debug logs at debug level
func Debug(msg string, fields ...zap.Field) {
	L().Debug(msg, fields...)
}

// Info logs at info level
func Info(msg string, fields ...zap.Field) {
	L().Info(msg, fields...)
}

// Warn logs at warn level
func Warn(msg string, fields ...zap.Field) {
	L().Warn(msg, fields...)
}

// Error logs at error level
func Error(msg string, fields ...zap.Field) {
	L().Error(msg, fields...)
}

// Fatal logs at fatal level and exits
func Fatal(msg string, fields ...zap.Field) {
	L().Fatal(msg, fields...)
}

func toZapLevel(l LogLevel) zapcore.Level {
	switch l {
	case DebugLevel:
		return zapcore.DebugLevel
	case InfoLevel:
		return zapcore.InfoLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	case FatalLevel:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}
