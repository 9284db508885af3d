package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_FallsBackToInfoOnUnknownLevel(t *testing.T) {
	l := New("verbose", "json")
	assert.True(t, l.Core().Enabled(zap.InfoLevel))
	assert.False(t, l.Core().Enabled(zap.DebugLevel))
}

func TestNew_ParsesLevel(t *testing.T) {
	l := New("warn", "console")
	assert.False(t, l.Core().Enabled(zap.InfoLevel))
	assert.True(t, l.Core().Enabled(zap.WarnLevel))
}

func TestZapAdapter_FieldsAndError(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := NewZapAdapter(zap.New(core))

	log.WithFields(map[string]interface{}{"queue": "email"}).
		WithError(errors.New("boom")).
		Error("job failed", map[string]interface{}{"jobId": "42"})

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		ctx := entries[0].ContextMap()
		assert.Equal(t, "job failed", entries[0].Message)
		assert.Equal(t, "email", ctx["queue"])
		assert.Equal(t, "42", ctx["jobId"])
		assert.Equal(t, "boom", ctx["error"])
	}
}

func TestZapAdapter_ErrorFieldsUseMessage(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	log := NewZapAdapter(zap.New(core))

	log.Debug("dropped", map[string]interface{}{"jobId": "1"})
	log.Warn("admin alert failed", map[string]interface{}{"cause": errors.New("smtp 421")})

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "smtp 421", entries[0].ContextMap()["cause"])
	}
}
