package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type entry struct {
	level Level
	msg   string
	args  []any
}

func recordingSink(entries *[]entry) Sink {
	return func(level Level, msg string, args ...any) {
		*entries = append(*entries, entry{level: level, msg: msg, args: args})
	}
}

func TestLoggerThreshold(t *testing.T) {
	var got []entry
	l := New(recordingSink(&got), LevelError, "engine")

	l.Info("not emitted")
	l.Debug("not emitted")
	l.Warn("not emitted")
	assert.Empty(t, got)

	l.Error("boom")
	l.Fatal("worse")
	require.Len(t, got, 2)
	assert.Equal(t, LevelError, got[0].level)
	assert.Equal(t, LevelFatal, got[1].level)
}

func TestLoggerThresholdIsOrdinal(t *testing.T) {
	for threshold := LevelOff; threshold <= LevelAll; threshold++ {
		for level := LevelOff; level <= LevelAll; level++ {
			var got []entry
			New(recordingSink(&got), threshold, "c").Log(level, "m")
			assert.Equal(t, level <= threshold, len(got) == 1, "threshold=%s level=%s", threshold, level)
		}
	}
}

func TestLoggerEntryPointPerLevel(t *testing.T) {
	var got []entry
	l := New(recordingSink(&got), LevelAll, "c")

	l.Off("m")
	l.Fatal("m")
	l.Error("m")
	l.Warn("m")
	l.Info("m")
	l.Debug("m")
	l.Trace("m")
	l.All("m")

	require.Len(t, got, 8)
	for i, e := range got {
		assert.Equal(t, Level(i), e.level)
	}

	got = nil
	quiet := New(recordingSink(&got), LevelOff, "c")
	quiet.All("hidden")
	quiet.Off("shown")
	require.Len(t, got, 1)
	assert.Equal(t, "[off] [actionstore/c] shown", got[0].msg)
}

func TestLoggerPrefix(t *testing.T) {
	var got []entry
	l := New(recordingSink(&got), LevelAll, "sqlite")

	l.Warn("slow query", "ms", 250)
	require.Len(t, got, 1)
	assert.Equal(t, "[warn] [actionstore/sqlite] slow query", got[0].msg)
	assert.Equal(t, []any{"ms", 250}, got[0].args)

	l.With("engine").Info("ready")
	require.Len(t, got, 2)
	assert.Equal(t, "[info] [actionstore/engine] ready", got[1].msg)
}

func TestLoggerWithoutSinkIsNoop(t *testing.T) {
	assert.NotPanics(t, func() {
		New(nil, LevelAll, "c").Error("nothing")
		Nop().Fatal("nothing")
		var l *Logger
		l.Error("nothing")
		l.With("x").Info("nothing")
	})
	assert.False(t, New(nil, LevelAll, "c").Enabled(LevelError))
}

func TestParseLevel(t *testing.T) {
	for level := LevelOff; level <= LevelAll; level++ {
		parsed, err := ParseLevel(level.String())
		require.NoError(t, err)
		assert.Equal(t, level, parsed)
	}

	parsed, err := ParseLevel(" WARNING ")
	require.NoError(t, err)
	assert.Equal(t, LevelWarn, parsed)

	_, err = ParseLevel("verbose")
	assert.Error(t, err)

	var l Level
	require.NoError(t, l.UnmarshalText([]byte("debug")))
	assert.Equal(t, LevelDebug, l)
	assert.Equal(t, "level(42)", Level(42).String())
}

func TestZapSinkMapsLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := New(ZapSink(zap.New(core)), LevelAll, "engine")

	l.Fatal("f")
	l.Error("e")
	l.Warn("w", 1, 2)
	l.Info("i")
	l.Trace("t")

	entries := logs.AllUntimed()
	require.Len(t, entries, 5)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
	assert.Equal(t, "[warn] [actionstore/engine] w", entries[2].Message)
	assert.Contains(t, entries[2].ContextMap(), "args")
	assert.Equal(t, zapcore.InfoLevel, entries[3].Level)
	assert.Equal(t, zapcore.DebugLevel, entries[4].Level)
}

func TestZapSinkNilLogger(t *testing.T) {
	assert.Nil(t, ZapSink(nil))
}
