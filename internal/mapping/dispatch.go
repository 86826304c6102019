package mapping

import (
	"math"
	"sync/atomic"

	"github.com/lodsb/scratchd/internal/deck"
)

// Decks is the two-deck set a Dispatcher routes actions to: index 0 is
// the beat deck, index 1 is the scratch deck (spec.md §4.6).
type Decks [2]*deck.Deck

// Settings carries the subset of sc_settings.json the dispatcher needs
// to compute pitch/volume deltas (spec.md §6).
type Settings struct {
	PitchRange       int // percent, legacy mode
	VolumeAmount     float64
	VolumeAmountHeld float64
}

// DispatchQuery is the slice of the AudioEngine's query/control surface
// a Dispatcher needs: deck.RecordingQuery's record/loop control plus
// DeckState, whose Position field is the engine's raw, un-offset
// playback position for a deck (spec.md §4.1) — the quantity
// ActionCue's seek branch needs, as distinct from the deck's own
// elapsed/offset position.
type DispatchQuery interface {
	deck.RecordingQuery
	DeckState(deckIndex int) deck.DeckProcessingState
}

// Dispatcher routes a matched Mapping to the target deck's input fields
// or transport methods (spec.md §4.6). Shifted and PitchMode are global
// dispatcher state (not per-deck): ShiftOn/ShiftOff latch Shifted, which
// InputReducer consults to pick the shifted Edge variant for subsequent
// lookups; JogPit/JogPStop set PitchMode, which InputReducer consults to
// decide whether the encoder drives a direct pitch multiplier instead of
// platter scratching (spec.md §4.5 step 5).
type Dispatcher struct {
	Decks    Decks
	Settings Settings
	Engine   DispatchQuery

	shifted    int32
	pitchMode  int32
	jogReverse int32
}

// Shifted reports whether shift is currently latched.
func (d *Dispatcher) Shifted() bool { return atomic.LoadInt32(&d.shifted) != 0 }

// PitchMode reports the active jog-pitch deck (0 = inactive, else
// deck_no+1), matching the original firmware's encoding.
func (d *Dispatcher) PitchMode() int { return int(atomic.LoadInt32(&d.pitchMode)) }

// SetShifted latches or clears shift directly; used by the PIC
// four-button combo (spec.md §4.5 step 4), which latches shift without
// going through a mapped ShiftOn/ShiftOff action.
func (d *Dispatcher) SetShifted(v bool) { d.setShifted(v) }

func (d *Dispatcher) setShifted(v bool) {
	if v {
		atomic.StoreInt32(&d.shifted, 1)
	} else {
		atomic.StoreInt32(&d.shifted, 0)
	}
}

// JogReverse reports whether the platter encoder direction is currently
// reversed (ActionJogReverse toggles this; spec.md §4.6).
func (d *Dispatcher) JogReverse() bool { return atomic.LoadInt32(&d.jogReverse) != 0 }

// clamp01 clamps v to [0, 1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// cueNumber derives the cue label for a Cue/DeleteCue mapping: MIDI
// mappings use their data1 byte directly; GPIO mappings synthesize one
// from (port, pin), offset above the MIDI range (spec.md §4.6, grounded
// on original_source's actions.cpp).
func cueNumber(m *Mapping) uint {
	if m.Type == SourceMIDI {
		return uint(m.MidiData1)
	}
	return uint(m.Port*32+m.Pin) + 128
}

// Dispatch executes m against the configured decks. midiBuf is the raw
// 3-byte MIDI message for actions that need more than the mapping's own
// fields (Pitch, Volume); it is the zero value for GPIO-sourced
// mappings.
func (d *Dispatcher) Dispatch(m *Mapping, midiBuf [3]byte) {
	if m == nil {
		return
	}

	// Global (not per-deck) actions.
	switch m.Action {
	case ActionShiftOn:
		d.setShifted(true)
		return
	case ActionShiftOff:
		d.setShifted(false)
		return
	case ActionJogPit:
		atomic.StoreInt32(&d.pitchMode, int32(m.Deck+1))
		return
	case ActionJogPStop:
		atomic.StoreInt32(&d.pitchMode, 0)
		return
	case ActionNothing, ActionGnd, ActionSC500:
		return
	}

	target := d.Decks[m.Deck]
	if target == nil {
		return
	}

	switch m.Action {
	case ActionRecord:
		target.ToggleRecord(d.Engine)
	case ActionLoopErase:
		target.LoopErase(d.Engine)
	case ActionLoopRecall:
		target.RecallLoop(d.Engine)
	case ActionCue:
		state := d.Engine.DeckState(m.Deck)
		target.Cue(cueNumber(m), state.Position-state.PositionOffset, state.Position)
	case ActionDeleteCue:
		target.UnsetCue(cueNumber(m))
	case ActionNote:
		target.Input.PitchNote = equalTemperament(m.Param)
	case ActionStartStop:
		target.Input.Stopped = !target.Input.Stopped
	case ActionNextFile:
		target.NextFile()
	case ActionPrevFile:
		target.PrevFile(d.Engine.HasLoop(m.Deck))
	case ActionRandomFile:
		target.RandomFile()
	case ActionNextFolder:
		target.NextFolder()
	case ActionPrevFolder:
		target.PrevFolder()
	case ActionVolume:
		target.Input.VolumeKnob = float64(midiBuf[2]) / 128.0
	case ActionPitch:
		target.Input.PitchFader = pitchFromMidi(midiBuf, m.Param, d.Settings.PitchRange)
	case ActionVolUp:
		target.Input.VolumeKnob = clamp01(target.Input.VolumeKnob + d.Settings.VolumeAmount)
	case ActionVolDown:
		target.Input.VolumeKnob = clamp01(target.Input.VolumeKnob - d.Settings.VolumeAmount)
	case ActionVolUHold:
		target.Input.VolumeKnob = clamp01(target.Input.VolumeKnob + d.Settings.VolumeAmountHeld)
	case ActionVolDHold:
		target.Input.VolumeKnob = clamp01(target.Input.VolumeKnob - d.Settings.VolumeAmountHeld)
	case ActionJogReverse:
		atomic.StoreInt32(&d.jogReverse, 1-atomic.LoadInt32(&d.jogReverse))
	case ActionBend:
		target.Input.PitchBend = equalTemperament(m.Param)
	}
}

// equalTemperament implements spec.md §4.6's `2^((param-60)/12)`.
func equalTemperament(param int) float64 {
	return math.Pow(2, float64(param-0x3C)/12.0)
}

// pitchFromMidi implements the 14-bit pitch-bend / 7-bit CC pitch
// formula from spec.md §4.1/§4.6, with optional semitone-range mode.
func pitchFromMidi(midiBuf [3]byte, semitoneRange int, pitchRangePercent int) float64 {
	var normalized float64
	if midiBuf[0]&0xF0 == 0xE0 {
		pval := (uint(midiBuf[2]) << 7) | uint(midiBuf[1])
		normalized = (float64(pval) - 8192.0) / 8192.0
	} else {
		normalized = (float64(midiBuf[2]) - 64.0) / 64.0
	}

	if semitoneRange > 0 {
		semitones := normalized * float64(semitoneRange)
		return math.Pow(2, semitones/12.0)
	}
	return (normalized * (float64(pitchRangePercent) / 100.0)) + 1.0
}
