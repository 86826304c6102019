package deck

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodsb/scratchd/internal/track"
)

type fakePlaylist struct {
	files map[[2]int]string
	next  map[[2]int]bool
	prev  map[[2]int]bool
}

func (f *fakePlaylist) FolderCount() int                  { return 1 }
func (f *fakePlaylist) FileCountInFolder(int) int         { return len(f.files) }
func (f *fakePlaylist) GetFile(fo, fi int) (string, bool) { p, ok := f.files[[2]int{fo, fi}]; return p, ok }
func (f *fakePlaylist) GetRandomFile() (int, int, string, bool) {
	for k, v := range f.files {
		return k[0], k[1], v, true
	}
	return 0, 0, "", false
}
func (f *fakePlaylist) HasNextFile(fo, fi int) bool   { return f.next[[2]int{fo, fi}] }
func (f *fakePlaylist) HasPrevFile(fo, fi int) bool   { return f.prev[[2]int{fo, fi}] }
func (f *fakePlaylist) HasNextFolder(int) bool        { return false }
func (f *fakePlaylist) HasPrevFolder(int) bool        { return false }

func newFakePlaylist() *fakePlaylist {
	return &fakePlaylist{
		files: map[[2]int]string{
			{0, 0}: "a.wav", {0, 1}: "b.wav", {0, 2}: "c.wav",
		},
		next: map[[2]int]bool{{0, 0}: true, {0, 1}: true},
		prev: map[[2]int]bool{{0, 1}: true, {0, 2}: true},
	}
}

type fakeEngine struct {
	recording map[int]bool
	hasLoop   map[int]bool
	reset     map[int]bool
}

func (e *fakeEngine) IsRecording(i int) bool { return e.recording[i] }
func (e *fakeEngine) HasLoop(i int) bool     { return e.hasLoop[i] }
func (e *fakeEngine) ResetLoop(i int)        { e.reset[i] = true }

func TestLoadTrackResetsInputFields(t *testing.T) {
	d := NewDeck(0, newFakePlaylist())
	d.Input.SeekTo = 5
	d.Input.Touched = true
	d.Input.PitchFader = 2

	next := track.New(48000)
	d.LoadTrack(next, "")

	assert.EqualValues(t, 0, d.Input.SeekTo)
	assert.False(t, d.Input.Touched)
	assert.Equal(t, 1.0, d.Input.PitchFader)
	assert.Equal(t, SourceFile, d.Input.Source)
	assert.Same(t, next, d.Player.Track())
}

func TestLoadTrackSavesCuesForOldPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "song.wav")

	d := NewDeck(0, newFakePlaylist())
	d.Cues.Set(1, 4.5)
	d.LoadTrack(track.New(48000), path)

	_, err := os.Stat(filepath.Join(dir, "song.cue"))
	require.NoError(t, err)
}

func TestCueSetsThenSeeks(t *testing.T) {
	d := NewDeck(0, newFakePlaylist())
	d.Cue(3, 10.0, 10.0)
	p, ok := d.Cues.Get(3)
	require.True(t, ok)
	assert.Equal(t, 10.0, p)

	d.Cue(3, 12.0, 12.0)
	assert.Equal(t, 2.0, d.Input.PositionOffset)
}

func TestCueSeeksFromRawPositionNotElapsed(t *testing.T) {
	// A prior, unrelated seek has already left a non-zero
	// PositionOffset in place; the seek branch must still compute the
	// new offset from the raw engine position, not from a value that
	// already has the old offset baked in.
	d := NewDeck(0, newFakePlaylist())
	d.Cues.Set(3, 10.0)
	d.Input.PositionOffset = 15.0

	d.Cue(3, 99.0 /* elapsed, unused on the seek branch */, 40.0)
	assert.Equal(t, 30.0, d.Input.PositionOffset)
}

func TestNextFileAdvancesThenStopsAtEnd(t *testing.T) {
	d := NewDeck(0, newFakePlaylist())
	d.Nav.FileIdx = 0

	path, ok := d.NextFile()
	require.True(t, ok)
	assert.Equal(t, "b.wav", path)

	path, ok = d.NextFile()
	require.True(t, ok)
	assert.Equal(t, "c.wav", path)

	_, ok = d.NextFile()
	assert.False(t, ok)
}

func TestPrevFileAtZeroWithLoopGoesToLoop(t *testing.T) {
	d := NewDeck(0, newFakePlaylist())
	d.Nav.FileIdx = 0

	_, ok, toLoop := d.PrevFile(true)
	assert.False(t, ok)
	assert.True(t, toLoop)
	assert.Equal(t, LoopSentinel, d.Nav.FileIdx)
	assert.Equal(t, SourceLoop, d.Input.Source)
}

func TestNextFileFromLoopSentinelReturnsToFileZero(t *testing.T) {
	d := NewDeck(0, newFakePlaylist())
	d.GotoLoop()
	require.Equal(t, LoopSentinel, d.Nav.FileIdx)

	path, ok := d.NextFile()
	require.True(t, ok)
	assert.Equal(t, "a.wav", path)
	assert.Equal(t, 0, d.Nav.FileIdx)
	assert.Equal(t, SourceFile, d.Input.Source)
}

func TestToggleRecordRequestsStartThenStop(t *testing.T) {
	d := NewDeck(0, newFakePlaylist())
	eng := &fakeEngine{recording: map[int]bool{}, hasLoop: map[int]bool{}, reset: map[int]bool{}}

	d.ToggleRecord(eng)
	assert.True(t, d.Input.RecordStartRequested)

	d.Input.RecordStartRequested = false
	eng.recording[0] = true
	d.ToggleRecord(eng)
	assert.True(t, d.Input.RecordStopRequested)
}

func TestRecallLoopFeedback(t *testing.T) {
	d := NewDeck(0, newFakePlaylist())
	eng := &fakeEngine{recording: map[int]bool{}, hasLoop: map[int]bool{0: false}, reset: map[int]bool{}}

	ok := d.RecallLoop(eng)
	assert.False(t, ok)
	assert.Equal(t, BeepRecordingError, d.Input.BeepRequest)

	eng.hasLoop[0] = true
	ok = d.RecallLoop(eng)
	assert.True(t, ok)
	assert.Equal(t, BeepRecordingStart, d.Input.BeepRequest)
	assert.Equal(t, SourceLoop, d.Input.Source)
}
