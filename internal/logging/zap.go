package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapSink adapts a zap logger. Fatal is logged at error severity; a Sink
// never terminates the process. Trace and All map to debug.
func ZapSink(logger *zap.Logger) Sink {
	if logger == nil {
		return nil
	}
	sugar := logger.Sugar()
	return func(level Level, msg string, args ...any) {
		var kv []any
		if len(args) > 0 {
			kv = []any{"args", args}
		}
		switch level {
		case LevelOff, LevelFatal, LevelError:
			sugar.Errorw(msg, kv...)
		case LevelWarn:
			sugar.Warnw(msg, kv...)
		case LevelInfo:
			sugar.Infow(msg, kv...)
		default:
			sugar.Debugw(msg, kv...)
		}
	}
}

// ConsoleSink writes human-readable lines to stderr. It is the default sink
// for engines constructed without WithSink.
func ConsoleSink() Sink {
	return ZapSink(newZap(zapcore.NewConsoleEncoder(encoderConfig()), os.Stderr))
}

// JSONSink writes one JSON object per message to stderr.
func JSONSink() Sink {
	return ZapSink(newZap(zapcore.NewJSONEncoder(encoderConfig()), os.Stderr))
}

// Threshold filtering happens in Logger, so the core accepts everything.
func newZap(enc zapcore.Encoder, w zapcore.WriteSyncer) *zap.Logger {
	core := zapcore.NewCore(enc, zapcore.Lock(w), zapcore.DebugLevel)
	return zap.New(core)
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return cfg
}
