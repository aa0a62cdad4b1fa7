package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name  string
		debug bool
	}{
		{"production logger", false},
		{"debug logger", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := NewLogger(tt.debug)
			require.NoError(t, err)
			require.NotNil(t, log)

			// Exercise all levels; must not panic.
			log.Debug("debug message", String("key", "value"))
			log.Info("info message", Int("count", 1))
			log.Warn("warn message", Bool("flag", true))
		})
	}
}

func TestLoggerWith(t *testing.T) {
	log := NewNopLogger()
	child := log.With(String("component", "test"))

	require.NotNil(t, child)
	assert.NotPanics(t, func() {
		child.Info("message with context")
	})
}

func TestNopLogger(t *testing.T) {
	log := NewNopLogger()
	assert.NotPanics(t, func() {
		log.Debug("a")
		log.Info("b")
		log.Warn("c")
		log.Error("d", Error(assert.AnError))
		assert.NoError(t, log.Sync())
	})
}
