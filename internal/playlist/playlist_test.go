package playlist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("x"), 0o644))
	}
}

func buildTree(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	writeFiles(t, filepath.Join(base, "a_folder"), "b.wav", "a.wav", "readme.txt")
	writeFiles(t, filepath.Join(base, "b_folder"), "c.mp3")
	writeFiles(t, filepath.Join(base, "empty_folder"))
	return base
}

func TestLoadSortsFoldersAndFilesAndSkipsNonAudio(t *testing.T) {
	base := buildTree(t)
	p, err := Load(base)
	require.NoError(t, err)

	require.Equal(t, 2, p.FolderCount(), "empty_folder has no audio files and must be skipped")
	require.Equal(t, 2, p.FileCountInFolder(0))
	require.Equal(t, 1, p.FileCountInFolder(1))

	f0, ok := p.FileAt(0, 0)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(base, "a_folder", "a.wav"), f0.FullPath, "files sort lexically within a folder")

	f1, ok := p.FileAt(0, 1)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(base, "a_folder", "b.wav"), f1.FullPath)
}

func TestFileCountInFolderOutOfRangeReturnsZero(t *testing.T) {
	base := buildTree(t)
	p, err := Load(base)
	require.NoError(t, err)
	assert.Zero(t, p.FileCountInFolder(-1))
	assert.Zero(t, p.FileCountInFolder(99))
}

func TestGetFileImplementsPlaylistSource(t *testing.T) {
	base := buildTree(t)
	p, err := Load(base)
	require.NoError(t, err)

	path, ok := p.GetFile(0, 0)
	assert.True(t, ok)
	assert.Equal(t, filepath.Join(base, "a_folder", "a.wav"), path)

	_, ok = p.GetFile(5, 0)
	assert.False(t, ok)
}

func TestHasNextPrevFile(t *testing.T) {
	base := buildTree(t)
	p, err := Load(base)
	require.NoError(t, err)

	assert.True(t, p.HasNextFile(0, 0))
	assert.False(t, p.HasNextFile(0, 1))
	assert.False(t, p.HasPrevFile(0, 0))
	assert.True(t, p.HasPrevFile(0, 1))
}

func TestHasNextPrevFolder(t *testing.T) {
	base := buildTree(t)
	p, err := Load(base)
	require.NoError(t, err)

	assert.True(t, p.HasNextFolder(0))
	assert.False(t, p.HasNextFolder(1))
	assert.False(t, p.HasPrevFolder(0))
	assert.True(t, p.HasPrevFolder(1))
}

func TestGetRandomFileOnEmptyPlaylistReportsNotOk(t *testing.T) {
	base := t.TempDir()
	p, err := Load(base)
	require.NoError(t, err)
	_, _, _, ok := p.GetRandomFile()
	assert.False(t, ok)
}

func TestGetRandomFileReturnsAKnownFile(t *testing.T) {
	base := buildTree(t)
	p, err := Load(base)
	require.NoError(t, err)

	fo, fi, path, ok := p.GetRandomFile()
	require.True(t, ok)
	wantPath, wantOk := p.GetFile(fo, fi)
	require.True(t, wantOk)
	assert.Equal(t, wantPath, path)
}

func TestGetFileAtIndexGlobalOrdering(t *testing.T) {
	base := buildTree(t)
	p, err := Load(base)
	require.NoError(t, err)
	require.Equal(t, 3, p.TotalFiles())

	f, ok := p.GetFileAtIndex(0)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(base, "a_folder", "a.wav"), f.FullPath)

	_, ok = p.GetFileAtIndex(p.TotalFiles())
	assert.False(t, ok)
}
