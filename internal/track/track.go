// Package track implements the append-only, block-indexed stereo PCM
// store that backs every playable source in the rig: imported files and
// recorded loops alike.
package track

import (
	"sync/atomic"
)

const (
	// BlockFrames is the number of interleaved stereo frames per block.
	BlockFrames = 2048 * 1024
	// MaxBlocks bounds how large a single Track can grow.
	MaxBlocks = 64
	// MaxFrames is the largest number of frames a Track can ever hold.
	MaxFrames = BlockFrames * MaxBlocks
)

// Frame is one interleaved stereo sample pair.
type Frame struct {
	L, R int16
}

// ImporterState tracks an in-flight decode subprocess feeding this Track.
// The Rig owns the process lifetime; Track only records what it's told.
type ImporterState struct {
	Pid      int
	Fd       int
	Finished bool
}

// Track is a reference-counted, block-indexed store of interleaved
// stereo i16 samples. Once a sample index below Length has been written,
// its value is immutable for the lifetime of the Track: the realtime
// reader depends on this to read without synchronization.
type Track struct {
	refcount int32

	rate   uint32
	blocks [][]Frame

	// length is the number of valid frames; advanced monotonically by
	// the single writer (an importer drain or a LoopBuffer write).
	length int64

	importer ImporterState
}

// New allocates a Track with no blocks; blocks are appended lazily as
// frames are written, up to MaxBlocks.
func New(rate uint32) *Track {
	return &Track{refcount: 1, rate: rate}
}

// Acquire bumps the reference count and returns t, for callers that want
// a single expression when handing out a new reference.
func (t *Track) Acquire() *Track {
	atomic.AddInt32(&t.refcount, 1)
	return t
}

// Release drops a reference. Once the count reaches zero the Track's
// storage becomes eligible for collection; callers must not use t again.
func (t *Track) Release() {
	atomic.AddInt32(&t.refcount, -1)
}

// Refcount reports the current reference count (diagnostic use only).
func (t *Track) Refcount() int32 {
	return atomic.LoadInt32(&t.refcount)
}

// Rate returns the Track's fixed sample rate.
func (t *Track) Rate() uint32 { return t.rate }

// Length returns the number of valid frames, safe to call concurrently
// with a writer: it only ever increases, so a stale read is still a
// correct (smaller) bound.
func (t *Track) Length() int64 {
	return atomic.LoadInt64((*int64)(&t.length))
}

// SetImporter records the decode subprocess backing this Track.
func (t *Track) SetImporter(pid, fd int) {
	t.importer = ImporterState{Pid: pid, Fd: fd}
}

// FinishImport marks the importer as finished at the Track's current
// length; used both on normal EOF and on import failure (spec.md §7:
// the player continues with whatever was imported, possibly silence).
func (t *Track) FinishImport() {
	t.importer.Finished = true
}

// ImporterFinished reports whether the decode subprocess has exited.
func (t *Track) ImporterFinished() bool { return t.importer.Finished }

// ImporterFd returns the pollable fd for the importer's stdout pipe, or
// -1 if there is no in-flight importer.
func (t *Track) ImporterFd() int {
	if t.importer.Pid == 0 {
		return -1
	}
	return t.importer.Fd
}

func (t *Track) blockIndex(sample int64) (block int, offset int) {
	return int(sample / BlockFrames), int(sample % BlockFrames)
}

func (t *Track) ensureBlock(b int) []Frame {
	for len(t.blocks) <= b {
		t.blocks = append(t.blocks, make([]Frame, BlockFrames))
	}
	return t.blocks[b]
}

// AppendFrames writes frames starting at the current Length and then
// advances Length. Only ever called by the single writer (the importer
// drain loop or LoopBuffer.Write); never called from the RT read path.
func (t *Track) AppendFrames(frames []Frame) {
	if len(frames) == 0 {
		return
	}
	start := t.length
	n := int64(len(frames))
	if start+n > MaxFrames {
		n = MaxFrames - start
		frames = frames[:n]
	}
	written := int64(0)
	for written < n {
		block, offset := t.blockIndex(start + written)
		buf := t.ensureBlock(block)
		room := int64(BlockFrames - offset)
		chunk := n - written
		if chunk > room {
			chunk = room
		}
		copy(buf[offset:offset+int(chunk)], frames[written:written+chunk])
		written += chunk
	}
	atomic.AddInt64((*int64)(&t.length), n)
}

// WriteAt writes frames starting at an arbitrary frame index, used by
// LoopBuffer's punch-in (circular) writes. It never advances Length past
// loopLength; callers are responsible for passing an index that's
// already within bounds.
func (t *Track) WriteAt(index int64, frames []Frame) {
	for i, f := range frames {
		block, offset := t.blockIndex(index + int64(i))
		buf := t.ensureBlock(block)
		buf[offset] = f
	}
}

// FrameAt returns the frame at the given sample index through the
// block-indexed accessor (the "slow path" of spec.md §4.3). Out-of-range
// indices return silence, matching the wrap policy's treatment of a
// straddling window.
func (t *Track) FrameAt(index int64) Frame {
	if index < 0 || index >= t.Length() {
		return Frame{}
	}
	block, offset := t.blockIndex(index)
	if block >= len(t.blocks) {
		return Frame{}
	}
	return t.blocks[block][offset]
}

// DirectWindow returns a slice covering [start, start+n) when that
// window lies entirely inside one block and inside the current Length —
// the "direct-access fast path" of spec.md §4.3. It reports ok=false
// when the caller must fall back to FrameAt per-sample fetches.
func (t *Track) DirectWindow(start int64, n int) (window []Frame, ok bool) {
	if start < 0 || n <= 0 {
		return nil, false
	}
	end := start + int64(n) - 1
	if end >= t.Length() {
		return nil, false
	}
	block, offset := t.blockIndex(start)
	endBlock, _ := t.blockIndex(end)
	if block != endBlock {
		return nil, false
	}
	if block >= len(t.blocks) {
		return nil, false
	}
	return t.blocks[block][offset : offset+n], true
}
