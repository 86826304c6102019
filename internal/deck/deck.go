package deck

import (
	"math"

	"github.com/lodsb/scratchd/internal/track"
)

// RecordingQuery is the slice of the AudioEngine's recording control
// surface (spec.md §4.1) a Deck needs to implement record() as a toggle
// and to discover when a recording it requested has finished.
type RecordingQuery interface {
	IsRecording(deckIndex int) bool
	HasLoop(deckIndex int) bool
	ResetLoop(deckIndex int)
}

// Deck owns everything input-thread/main-thread side of one deck: the
// Player (current track + spinlock), its DeckInput handshake struct, its
// Cues, navigation position and encoder state. The engine owns the
// matching DeckProcessingState and the loop recorded for this deck.
type Deck struct {
	Index int

	Player *Player
	Input  *DeckInput

	Cues  *Cues
	Nav   NavigationState
	Enc   EncoderState

	Playlist PlaylistSource

	// punchPending is the elapsed-time punch-in anchor; NaN when no
	// punch is pending (spec.md §4.2 punch_in/punch_out).
	punchPending float64
	punchCue     float64
}

// NewDeck constructs a Deck with neutral defaults.
func NewDeck(index int, playlist PlaylistSource) *Deck {
	return &Deck{
		Index:        index,
		Player:       &Player{},
		Input:        NewDeckInput(),
		Cues:         NewCues(),
		Playlist:     playlist,
		punchPending: math.NaN(),
	}
}

// LoadTrack implements the track load protocol (spec.md §4.2): persist
// cues for the outgoing track, swap the pointer under the Player's
// spinlock, release the old track, and reset the DeckInput fields that
// only make sense relative to a specific track.
func (d *Deck) LoadTrack(next *track.Track, oldPath string) {
	if oldPath != "" {
		_ = d.Cues.SaveToFile(oldPath)
	}
	old := d.Player.Swap(next)
	if old != nil {
		old.Release()
	}

	d.Input.SeekTo = 0
	d.Input.PositionOffset = 0
	d.Input.Source = SourceFile
	d.Input.Stopped = false
	d.Input.PitchFader = 1
	d.Input.PitchBend = 1
	d.Input.PitchNote = 1
	d.Input.Touched = false // forces encoder re-sync

	d.Enc.Offset = d.Enc.RawAngle
}

// Cue implements cue(label) (spec.md §4.2): if unset, stamp elapsed (the
// deck's current elapsed/offset playback time); otherwise seek to it by
// setting PositionOffset from currentPos, the engine's raw, un-offset
// position for this deck — these are two distinct quantities
// (deck.cpp's deck::cue: get_deck_state(...).elapsed() for the stamp
// branch, get_position(...) for the seek branch), not one value reused
// for both.
func (d *Deck) Cue(label uint, elapsed, currentPos float64) {
	if pos, ok := d.Cues.Get(label); ok {
		d.Input.PositionOffset = currentPos - pos
	} else {
		d.Cues.Set(label, elapsed)
	}
}

// UnsetCue implements the DELETECUE action.
func (d *Deck) UnsetCue(label uint) {
	d.Cues.Unset(label)
}

// PunchIn implements punch_in(label) (spec.md §4.2).
func (d *Deck) PunchIn(label uint, elapsed float64) {
	cue, ok := d.Cues.Get(label)
	if !ok {
		d.Cues.Set(label, elapsed)
		return
	}
	if !math.IsNaN(d.punchPending) {
		// Already punched in once; recompute relative to the previous
		// punch per spec.md's "record punch = cue - (elapsed - previous punch)".
		d.punchPending = cue - (elapsed - d.punchPending)
	} else {
		d.punchPending = cue - elapsed
	}
	d.punchCue = cue
	d.Input.PositionOffset = elapsed - cue
}

// PunchOut implements punch_out() (spec.md §4.2).
func (d *Deck) PunchOut(elapsed float64) {
	if math.IsNaN(d.punchPending) {
		return
	}
	d.Input.PositionOffset = elapsed - (elapsed - d.punchPending)
	d.punchPending = math.NaN()
}

// GotoLoop switches the deck to play its recorded loop.
func (d *Deck) GotoLoop() {
	d.Nav.FileIdx = LoopSentinel
	d.Input.Source = SourceLoop
	d.Input.SeekTo = 0
	d.Input.Touched = false
	d.Input.PositionOffset = 0
}

// NextFile advances to the next file in the current folder. From the
// loop sentinel it returns to file 0 and switches back to File source
// (spec.md §4.2).
func (d *Deck) NextFile() (path string, ok bool) {
	if d.Nav.FileIdx == LoopSentinel {
		d.Nav.FileIdx = 0
		d.Input.Source = SourceFile
		return d.Playlist.GetFile(d.Nav.FolderIdx, d.Nav.FileIdx)
	}
	if !d.Playlist.HasNextFile(d.Nav.FolderIdx, d.Nav.FileIdx) {
		return "", false
	}
	d.Nav.FileIdx++
	return d.Playlist.GetFile(d.Nav.FolderIdx, d.Nav.FileIdx)
}

// PrevFile retreats to the previous file. At index 0 with a recorded
// loop present, it navigates to the loop sentinel instead of clamping
// (spec.md §4.2).
func (d *Deck) PrevFile(hasLoop bool) (path string, ok bool, toLoop bool) {
	if d.Nav.FileIdx == 0 && hasLoop {
		d.GotoLoop()
		return "", false, true
	}
	if !d.Playlist.HasPrevFile(d.Nav.FolderIdx, d.Nav.FileIdx) {
		return "", false, false
	}
	d.Nav.FileIdx--
	path, ok = d.Playlist.GetFile(d.Nav.FolderIdx, d.Nav.FileIdx)
	return path, ok, false
}

// RandomFile picks a uniformly random file across the whole playlist.
func (d *Deck) RandomFile() (path string, ok bool) {
	folderIdx, fileIdx, p, ok := d.Playlist.GetRandomFile()
	if !ok {
		return "", false
	}
	d.Nav.FolderIdx = folderIdx
	d.Nav.FileIdx = fileIdx
	d.Input.Source = SourceFile
	return p, true
}

// NextFolder moves to the first file of the next folder.
func (d *Deck) NextFolder() (path string, ok bool) {
	if !d.Playlist.HasNextFolder(d.Nav.FolderIdx) {
		return "", false
	}
	d.Nav.FolderIdx++
	d.Nav.FileIdx = 0
	d.Input.Source = SourceFile
	return d.Playlist.GetFile(d.Nav.FolderIdx, 0)
}

// PrevFolder moves to the first file of the previous folder.
func (d *Deck) PrevFolder() (path string, ok bool) {
	if !d.Playlist.HasPrevFolder(d.Nav.FolderIdx) {
		return "", false
	}
	d.Nav.FolderIdx--
	d.Nav.FileIdx = 0
	d.Input.Source = SourceFile
	return d.Playlist.GetFile(d.Nav.FolderIdx, 0)
}

// ToggleRecord implements record() (spec.md §4.2): request stop if the
// engine reports this deck recording, else request start.
func (d *Deck) ToggleRecord(engine RecordingQuery) {
	if engine.IsRecording(d.Index) {
		d.Input.RecordStopRequested = true
	} else {
		d.Input.RecordStartRequested = true
	}
}

// LoopErase implements the long-hold-record LOOPERASE action: reset the
// loop, switch to File source, and navigate to file 0.
func (d *Deck) LoopErase(engine RecordingQuery) {
	engine.ResetLoop(d.Index)
	d.Input.Source = SourceFile
	d.Nav.FileIdx = 0
	d.Input.BeepRequest = BeepRecordingError
}

// RecallLoop re-engages the deck's stored loop, if any, and reports
// whether it succeeded (for BeepRecordingStart/Error feedback).
func (d *Deck) RecallLoop(engine RecordingQuery) bool {
	if !engine.HasLoop(d.Index) {
		d.Input.BeepRequest = BeepRecordingError
		return false
	}
	d.GotoLoop()
	d.Input.BeepRequest = BeepRecordingStart
	return true
}

// AfterRecordingStopped implements "after the engine stops recording...
// the deck navigates to the loop position and switches to loop playback"
// (spec.md §4.2).
func (d *Deck) AfterRecordingStopped() {
	d.GotoLoop()
}
