package deck

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCueRoundTripThroughFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "track.wav")

	c := NewCues()
	c.Set(0, 1.0) // non-zero so save isn't skipped
	c.Set(5, 12.25)

	require.NoError(t, c.SaveToFile(path))

	loaded := NewCues()
	require.NoError(t, loaded.LoadFromFile(path))

	p, ok := loaded.Get(0)
	require.True(t, ok)
	assert.Equal(t, 1.0, p)

	p, ok = loaded.Get(5)
	require.True(t, ok)
	assert.Equal(t, 12.25, p)

	_, ok = loaded.Get(3)
	assert.False(t, ok, "gap labels must round-trip as unset")
}

func TestSaveSkippedWhenNoCuesSet(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "track.wav")

	c := NewCues()
	require.NoError(t, c.SaveToFile(path))

	_, err := os.ReadFile(filepath.Join(dir, "track.cue"))
	assert.Error(t, err, "no sidecar file should be written")
}

func TestSaveSkippedWhenCueZeroIsZero(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "track.wav")

	c := NewCues()
	c.Set(0, 0)
	require.NoError(t, c.SaveToFile(path))

	_, err := os.ReadFile(filepath.Join(dir, "track.cue"))
	assert.Error(t, err)
}

func TestUnsetRemovesCue(t *testing.T) {
	c := NewCues()
	c.Set(2, 3.0)
	c.Unset(2)
	_, ok := c.Get(2)
	assert.False(t, ok)
}
