package internal

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogLevel(t *testing.T) {
	t.Cleanup(func() {
		SetDebug(false)
		SetQuiet(false)
	})

	tests := []struct {
		name  string
		quiet bool
		debug bool
		want  slog.Level
	}{
		{"default", false, false, slog.LevelInfo},
		{"quiet", true, false, slog.LevelWarn},
		{"debug", false, true, slog.LevelDebug},
		{"debug wins", true, true, slog.LevelDebug},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SetQuiet(tt.quiet)
			SetDebug(tt.debug)
			assert.Equal(t, tt.want, LogLevel())
		})
	}
}

func TestNewLoggerSharesLevel(t *testing.T) {
	t.Cleanup(func() { SetQuiet(false) })

	var buf bytes.Buffer
	SetQuiet(false)
	log := NewLogger(&buf)

	// A later logger raises the level of the earlier one.
	SetQuiet(true)
	NewLogger(&bytes.Buffer{})

	log.Info("hidden")
	log.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestVersionString(t *testing.T) {
	t.Cleanup(func() { version, stage, gitCommit = "", "", "" })

	assert.True(t, IsLocal())
	assert.True(t, strings.HasPrefix(VersionString(), "(local) "))

	version, stage, gitCommit = "v0.4.1", "main", "0123456789abcdef0123"
	assert.False(t, IsLocal())
	assert.Equal(t, "0.4.1 0123456789ab ["+Arch()+"]", VersionString())

	stage = "Next"
	assert.Equal(t, "0.4.1+next 0123456789ab ["+Arch()+"]", VersionString())
}
