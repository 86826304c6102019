package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevelRecognizesEachName(t *testing.T) {
	assert.Equal(t, log.DebugLevel, parseLevel("debug"))
	assert.Equal(t, log.WarnLevel, parseLevel("warn"))
	assert.Equal(t, log.ErrorLevel, parseLevel("error"))
	assert.Equal(t, log.InfoLevel, parseLevel("info"))
	assert.Equal(t, log.InfoLevel, parseLevel("nonsense"))
}

func TestNewWritesToFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scratchd.log")
	l, err := New(Options{FilePath: path, Level: "debug"})
	require.NoError(t, err)

	l.Info("engine started", "sample_rate", 48000)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "engine started")
	assert.Contains(t, string(b), "sample_rate")
}

func TestWithCategoryTagsSubsequentLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scratchd.log")
	l, err := New(Options{FilePath: path, Level: "debug"})
	require.NoError(t, err)

	rec := WithCategory(l, CategoryRecord)
	rec.Info("loop armed")

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "category=record")
}

func TestNewWithNoSinksDiscardsOutput(t *testing.T) {
	l, err := New(Options{Level: "info"})
	require.NoError(t, err)
	assert.NotPanics(t, func() { l.Info("nobody hears this") })
}
