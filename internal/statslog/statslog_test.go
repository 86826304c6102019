package statslog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodsb/scratchd/internal/engine"
)

func TestWriteCreatesDirAndFileWithHeader(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "statslogs")
	w, err := Open(dir, "")
	require.NoError(t, err)
	defer w.Close()

	day := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	require.NoError(t, w.Write(day, engine.Stats{LoadPercent: 12.5, ProcessTimeUs: 80, Xruns: 1}))

	b, err := os.ReadFile(filepath.Join(dir, "2026-07-31.log"))
	require.NoError(t, err)
	assert.Contains(t, string(b), "utime,isotime,load_percent,process_time_us,xruns")
	assert.Contains(t, string(b), "12.50,80.00,1")
}

func TestWriteRotatesOnDayChange(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir, "")
	require.NoError(t, err)
	defer w.Close()

	day1 := time.Date(2026, 7, 31, 23, 59, 0, 0, time.UTC)
	day2 := time.Date(2026, 8, 1, 0, 1, 0, 0, time.UTC)

	require.NoError(t, w.Write(day1, engine.Stats{}))
	require.NoError(t, w.Write(day2, engine.Stats{}))

	_, err = os.Stat(filepath.Join(dir, "2026-07-31.log"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "2026-08-01.log"))
	assert.NoError(t, err)
}

func TestWriteAppendsWithoutDuplicatingHeaderOnReopen(t *testing.T) {
	dir := t.TempDir()
	day := time.Date(2026, 7, 31, 1, 0, 0, 0, time.UTC)

	w1, err := Open(dir, "")
	require.NoError(t, err)
	require.NoError(t, w1.Write(day, engine.Stats{}))
	require.NoError(t, w1.Close())

	w2, err := Open(dir, "")
	require.NoError(t, err)
	defer w2.Close()
	require.NoError(t, w2.Write(day, engine.Stats{}))

	b, err := os.ReadFile(filepath.Join(dir, "2026-07-31.log"))
	require.NoError(t, err)
	count := 0
	for _, line := range splitLines(string(b)) {
		if line == "utime,isotime,load_percent,process_time_us,xruns" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestOpenRejectsPathThatIsAFile(t *testing.T) {
	dir := t.TempDir()
	filePath := filepath.Join(dir, "not-a-dir")
	require.NoError(t, os.WriteFile(filePath, []byte("x"), 0o644))

	_, err := Open(filePath, "")
	assert.Error(t, err)
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i, c := range s {
		if c == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	return lines
}
