package logger

import (
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNew_Level(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	assert.Equal(t, zerolog.WarnLevel, New().GetLevel())

	t.Setenv("LOG_LEVEL", "loud")
	assert.Equal(t, zerolog.InfoLevel, New().GetLevel())
}

func TestOutput(t *testing.T) {
	assert.Equal(t, os.Stdout, output(""))
	assert.IsType(t, zerolog.ConsoleWriter{}, output("console"))
}
