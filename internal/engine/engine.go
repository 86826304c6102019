// Package engine implements the realtime audio callback: per-period
// pitch/volume computation, the dual-deck interpolated mix, capture
// recording into each deck's loop buffer, and the recording control
// surface queried by the main loop.
package engine

import (
	"sync/atomic"
	"time"

	"github.com/lodsb/scratchd/internal/deck"
	"github.com/lodsb/scratchd/internal/interp"
	"github.com/lodsb/scratchd/internal/loopbuffer"
	"github.com/lodsb/scratchd/internal/track"
)

// Settings carries the engine-relevant subset of the configured runtime
// parameters (platter/motor constants, fader curve, output format).
type Settings struct {
	SampleRate uint32
	Channels   int

	BrakeSpeed float64 // ms, denominator-scaled per motor model
	Slippiness float64

	FaderDecaySeconds float64
	BaseVolume        float64
	MaxVolume         float64

	LoopMaxSeconds float64
}

// DefaultSettings returns the documented defaults for fields a caller
// doesn't override.
func DefaultSettings() Settings {
	return Settings{
		SampleRate:        48000,
		Channels:          2,
		BrakeSpeed:        3000,
		Slippiness:        200,
		FaderDecaySeconds: 0.05,
		BaseVolume:        7.0 / 8.0,
		MaxVolume:         1.0,
		LoopMaxSeconds:    60,
	}
}

// Stats are the DSP load diagnostics exposed to the main loop and the
// CLI's --show-stats flag, never touched except by the RT callback that
// owns them and read-only queries from other threads.
type Stats struct {
	ProcessTimeUs float64
	LoadPercent   float64
	Xruns         uint64
}

type deckSlot struct {
	d            *deck.Deck
	state        deck.DeckProcessingState
	loop         *loopbuffer.LoopBuffer
	faderCurrent float64

	// pendingFilteredPitch/pendingTargetVolume carry plan()'s step 5/6
	// results through to Process's step 9 publish, once the inner loop
	// has finished walking this period's gradients.
	pendingFilteredPitch float64
	pendingTargetVolume  float64
}

// AudioEngine is the realtime mixing/recording engine for the two decks.
// Every field touched by Process is either RT-owned or pre-sized at
// construction; Process itself never allocates.
type AudioEngine struct {
	settings Settings
	kernel   interp.Kernel
	writer   FormatWriter
	dither   *Dither

	decks [2]*deckSlot

	recordingDeck int32 // -1 = none; index+1 otherwise, atomic
	stats         Stats
}

// New constructs an AudioEngine wired to two already-constructed Decks.
// kernel and format are the compile-time-selected interpolation policy
// and sample format (spec.md §4.1's "dispatch is virtual once per
// buffer").
func New(settings Settings, kernel interp.Kernel, format SampleFormat, decks [2]*deck.Deck) *AudioEngine {
	e := &AudioEngine{
		settings:      settings,
		kernel:        kernel,
		writer:        NewFormatWriter(format),
		dither:        NewDither(0xC0FFEE),
		recordingDeck: -1,
	}
	for i := range decks {
		e.decks[i] = &deckSlot{
			d:    decks[i],
			loop: loopbuffer.New(settings.SampleRate, settings.LoopMaxSeconds),
		}
		e.decks[i].state.Volume = 0
		e.decks[i].state.Pitch = 1
	}
	return e
}

// DeckState returns a point-in-time copy of a deck's processing state,
// safe to call from any thread (POD read of a struct the RT thread
// writes wholesale; worst case a torn read of independent fields, never
// undefined, matching the concurrency model's "slightly stale" contract).
func (e *AudioEngine) DeckState(i int) deck.DeckProcessingState {
	return e.decks[i].state
}

// Stats returns a copy of the current DSP load diagnostics.
func (e *AudioEngine) Stats() Stats { return e.stats }

// recordStats implements step 11: measure elapsed callback time, update
// an exponential moving average of load vs. the period's time budget,
// and count an xrun whenever load exceeds 100%.
func (e *AudioEngine) recordStats(start time.Time, frames int) {
	elapsedUs := float64(time.Since(start).Microseconds())
	budgetUs := float64(frames) * 1e6 / float64(e.settings.SampleRate)
	load := 0.0
	if budgetUs > 0 {
		load = 100 * elapsedUs / budgetUs
	}

	const emaAlpha = 0.1
	e.stats.ProcessTimeUs = elapsedUs
	e.stats.LoadPercent = emaAlpha*load + (1-emaAlpha)*e.stats.LoadPercent
	if load > 100 {
		e.stats.Xruns++
	}
}

// --- Recording control surface (queried by the main loop, never from
// inside Process) ---

// StartRecording begins a fresh recording or a punch-in pass on deck i at
// the given playback position, unless another deck is already
// recording.
func (e *AudioEngine) StartRecording(deckIndex int, playbackPosition float64) bool {
	if !atomic.CompareAndSwapInt32(&e.recordingDeck, -1, int32(deckIndex)) {
		return int(atomic.LoadInt32(&e.recordingDeck)) == deckIndex
	}
	e.decks[deckIndex].loop.Start(playbackPosition)
	return true
}

// StopRecording ends the active recording pass on deck i, if it is the
// one currently recording.
func (e *AudioEngine) StopRecording(deckIndex int) {
	if int(atomic.LoadInt32(&e.recordingDeck)) != deckIndex {
		return
	}
	e.decks[deckIndex].loop.Stop()
	atomic.StoreInt32(&e.recordingDeck, -1)
}

// IsRecording reports whether deck i is the currently recording deck.
func (e *AudioEngine) IsRecording(deckIndex int) bool {
	return int(atomic.LoadInt32(&e.recordingDeck)) == deckIndex
}

// HasLoop reports whether deck i has a locked, playable loop.
func (e *AudioEngine) HasLoop(deckIndex int) bool {
	return e.decks[deckIndex].loop.HasLoop()
}

// ResetLoop clears deck i's loop entirely (LOOPERASE).
func (e *AudioEngine) ResetLoop(deckIndex int) {
	e.decks[deckIndex].loop.Reset()
}

// GetLoopTrack acquires a fresh reference to deck i's loop track.
func (e *AudioEngine) GetLoopTrack(deckIndex int) *track.Track {
	return e.decks[deckIndex].loop.GetTrack()
}

// PeekLoopTrack returns deck i's loop track pointer without touching the
// refcount; RT-safe, used by the engine's own playback-source selection.
func (e *AudioEngine) PeekLoopTrack(deckIndex int) *track.Track {
	return e.decks[deckIndex].loop.PeekTrack()
}
