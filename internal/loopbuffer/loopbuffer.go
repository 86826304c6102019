// Package loopbuffer implements the recordable loop: a pre-allocated
// Track that starts out empty, fills with a single "fresh" recording,
// and thereafter accepts punch-in overdubs without ever changing length.
package loopbuffer

import (
	"github.com/lodsb/scratchd/internal/track"
)

// State is one of the four loop lifecycle states from spec.md §4.4.
type State int

const (
	Empty State = iota
	FreshRecording
	Locked
	PunchIn
)

func (s State) String() string {
	switch s {
	case Empty:
		return "Empty"
	case FreshRecording:
		return "FreshRecording"
	case Locked:
		return "Locked"
	case PunchIn:
		return "PunchIn"
	default:
		return "Unknown"
	}
}

// LoopBuffer wraps one Track of up to maxSeconds*rate samples; the
// Track's blocks are allocated as frames are first written into them.
type LoopBuffer struct {
	tr         *track.Track
	rate       uint32
	maxSamples int64

	state        State
	writePos     int64
	loopLength   int64
	lengthLocked bool
}

// New creates the backing Track without allocating any of its blocks
// (track.New allocates none up front), so this constructor cannot fail.
func New(rate uint32, maxSeconds float64) *LoopBuffer {
	return &LoopBuffer{
		tr:         track.New(rate),
		rate:       rate,
		maxSamples: int64(maxSeconds * float64(rate)),
		state:      Empty,
	}
}

// State reports the current lifecycle state.
func (lb *LoopBuffer) State() State { return lb.state }

// WritePos reports the current write position.
func (lb *LoopBuffer) WritePos() int64 { return lb.writePos }

// LoopLength reports the locked loop length, 0 until the first recording
// finishes.
func (lb *LoopBuffer) LoopLength() int64 { return lb.loopLength }

// HasLoop reports whether there is recorded, playable content.
func (lb *LoopBuffer) HasLoop() bool {
	return lb.lengthLocked && lb.loopLength > 0
}

// MaxSamples returns the pre-allocated capacity in samples.
func (lb *LoopBuffer) MaxSamples() int64 { return lb.maxSamples }

// Start begins (or resumes, as punch-in) recording. When the loop has no
// locked length yet this is a fresh recording starting at sample 0, per
// spec.md §4.4's Empty->FreshRecording transition. When a length is
// already locked, playbackPosition selects the punch-in write position.
func (lb *LoopBuffer) Start(playbackPosition float64) {
	if !lb.lengthLocked {
		lb.writePos = 0
		lb.state = FreshRecording
	} else {
		if lb.loopLength > 0 {
			lb.writePos = int64(playbackPosition*float64(lb.rate)) % lb.loopLength
			if lb.writePos < 0 {
				lb.writePos += lb.loopLength
			}
		}
		lb.state = PunchIn
	}
}

// Write appends (FreshRecording) or overwrites circularly (PunchIn) the
// given frames. Only ever called from the RT thread.
func (lb *LoopBuffer) Write(frames []track.Frame) {
	switch lb.state {
	case FreshRecording:
		remaining := lb.maxSamples - lb.writePos
		if remaining <= 0 {
			return
		}
		if int64(len(frames)) > remaining {
			frames = frames[:remaining]
		}
		lb.tr.AppendFrames(frames)
		lb.writePos += int64(len(frames))
	case PunchIn:
		if lb.loopLength <= 0 {
			return
		}
		for _, f := range frames {
			lb.tr.WriteAt(lb.writePos, []track.Frame{f})
			lb.writePos++
			if lb.writePos >= lb.loopLength {
				lb.writePos = 0
			}
		}
	}
}

// Stop ends the current recording pass, locking the loop length on a
// fresh recording or simply returning to Locked from a punch-in.
func (lb *LoopBuffer) Stop() {
	switch lb.state {
	case FreshRecording:
		lb.loopLength = lb.writePos
		lb.lengthLocked = true
		lb.state = Locked
	case PunchIn:
		lb.state = Locked
	}
}

// Reset clears the loop entirely, returning to Empty. The backing Track
// is replaced so old content cannot be observed by anyone still holding
// a reference from GetTrack.
func (lb *LoopBuffer) Reset() {
	lb.tr = track.New(lb.rate)
	lb.writePos = 0
	lb.loopLength = 0
	lb.lengthLocked = false
	lb.state = Empty
}

// GetTrack acquires a fresh reference to the internal Track, or nil if
// there is no recorded audio yet. Safe to call from the main thread.
func (lb *LoopBuffer) GetTrack() *track.Track {
	if lb.tr == nil || lb.tr.Length() == 0 {
		return nil
	}
	return lb.tr.Acquire()
}

// PeekTrack returns the internal Track pointer without touching the
// refcount — RT-safe, for the audio engine's playback-source selection.
func (lb *LoopBuffer) PeekTrack() *track.Track {
	return lb.tr
}
