package tamer

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevel_String(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "INFO", LevelInfo.String())
	assert.Equal(t, "WARN", LevelWarn.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "UNKNOWN", Level(99).String())
}

func TestGetLogger_DefaultsToNoop(t *testing.T) {
	SetLogger(nil)
	l := getLogger()
	assert.False(t, l.IsEnabled(LevelError))
	l.Log(LogEntry{Message: "ignored"}) // must not panic
}

func TestSetLogger_InstallsGlobalDefault(t *testing.T) {
	t.Cleanup(func() { SetLogger(nil) })

	var buf bytes.Buffer
	SetLogger(NewZerologLogger(zerolog.New(&buf)))

	l := getLogger()
	require.True(t, l.IsEnabled(LevelError))
	l.Log(LogEntry{Level: LevelError, Category: "backend", Message: "boom", Err: errors.New("fail")})

	assert.Contains(t, buf.String(), "boom")
	assert.Contains(t, buf.String(), "backend")
}

func TestZerologLogger_RespectsConfiguredLevel(t *testing.T) {
	var buf bytes.Buffer
	z := zerolog.New(&buf).Level(zerolog.ErrorLevel)
	l := NewZerologLogger(z)

	assert.False(t, l.IsEnabled(LevelDebug))
	assert.True(t, l.IsEnabled(LevelError))

	l.Log(LogEntry{Level: LevelInfo, Message: "should be filtered", FD: 7, Timestamp: time.Now()})
	assert.False(t, strings.Contains(buf.String(), "should be filtered"))
}

func TestLogifaceZerologLogger_LogsWithoutPanicking(t *testing.T) {
	var buf bytes.Buffer
	z := zerolog.New(&buf)
	l := NewLogifaceZerologLogger(z)

	assert.NotPanics(t, func() {
		l.Log(LogEntry{Level: LevelError, Category: "timer", Signal: 0, Message: "tick", Err: errors.New("x")})
	})
}
