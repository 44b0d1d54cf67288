package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestPrintfHelpersUseGlobal(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	SetGlobal(zap.New(core))
	old := SetServiceName("test")
	t.Cleanup(func() { SetServiceName(old) })

	Info("cycle %d done", 3)
	Warn("slow %s", "api")
	Error("boom: %v", "x")

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, "cycle 3 done", entries[0].Message)
	assert.Equal(t, "test", entries[0].ContextMap()["service"])
	assert.Equal(t, zap.WarnLevel, entries[1].Level)
	assert.Equal(t, zap.ErrorLevel, entries[2].Level)
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New("loud")
	require.Error(t, err)

	l, err := New("debug")
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zap.DebugLevel))
}
