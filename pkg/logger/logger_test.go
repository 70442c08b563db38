package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLevel("debug"))
	assert.Equal(t, WarnLevel, ParseLevel("warn"))
	assert.Equal(t, ErrorLevel, ParseLevel("error"))
	assert.Equal(t, InfoLevel, ParseLevel("info"))

	// Unknown or empty strings fall back to info.
	assert.Equal(t, InfoLevel, ParseLevel(""))
	assert.Equal(t, InfoLevel, ParseLevel("verbose"))
}

func TestLoggerLevelFiltersOutput(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&Config{
		Level:  ParseLevel("warn"),
		Output: &buf,
	})

	l.Info("suppressed")
	assert.Empty(t, buf.String())

	l.Warn("emitted")
	assert.Contains(t, buf.String(), "emitted")
}
