package track

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendFramesAdvancesLengthMonotonically(t *testing.T) {
	tr := New(48000)
	require.EqualValues(t, 0, tr.Length())

	tr.AppendFrames([]Frame{{L: 1, R: 2}, {L: 3, R: 4}})
	assert.EqualValues(t, 2, tr.Length())

	tr.AppendFrames([]Frame{{L: 5, R: 6}})
	assert.EqualValues(t, 3, tr.Length())

	assert.Equal(t, Frame{L: 1, R: 2}, tr.FrameAt(0))
	assert.Equal(t, Frame{L: 5, R: 6}, tr.FrameAt(2))
}

func TestAppendFramesSpansBlockBoundary(t *testing.T) {
	tr := New(48000)
	// Write right up to, then across, a block boundary.
	tail := make([]Frame, 4)
	for i := range tail {
		tail[i] = Frame{L: int16(i + 1), R: int16(-(i + 1))}
	}
	tr.AppendFrames(make([]Frame, BlockFrames-2))
	tr.AppendFrames(tail)

	require.EqualValues(t, BlockFrames+2, tr.Length())
	assert.Equal(t, tail[0], tr.FrameAt(BlockFrames-2))
	assert.Equal(t, tail[3], tr.FrameAt(BlockFrames+1))
}

func TestFrameAtOutOfRangeIsSilence(t *testing.T) {
	tr := New(48000)
	tr.AppendFrames([]Frame{{L: 9, R: 9}})
	assert.Equal(t, Frame{}, tr.FrameAt(-1))
	assert.Equal(t, Frame{}, tr.FrameAt(1))
	assert.Equal(t, Frame{}, tr.FrameAt(1_000_000))
}

func TestDirectWindowFastPathMatchesSlowPath(t *testing.T) {
	tr := New(48000)
	frames := make([]Frame, 32)
	for i := range frames {
		frames[i] = Frame{L: int16(i), R: int16(i * 2)}
	}
	tr.AppendFrames(frames)

	window, ok := tr.DirectWindow(4, 8)
	require.True(t, ok)
	for i, f := range window {
		assert.Equal(t, tr.FrameAt(int64(4+i)), f)
	}
}

func TestDirectWindowFalseAcrossBlockBoundary(t *testing.T) {
	tr := New(48000)
	tr.AppendFrames(make([]Frame, BlockFrames+8))

	_, ok := tr.DirectWindow(BlockFrames-4, 8)
	assert.False(t, ok, "window straddling a block boundary must use the slow path")
}

func TestDirectWindowFalseBeyondLength(t *testing.T) {
	tr := New(48000)
	tr.AppendFrames(make([]Frame, 10))

	_, ok := tr.DirectWindow(5, 10)
	assert.False(t, ok)
}

func TestRefcountAcquireRelease(t *testing.T) {
	tr := New(48000)
	assert.EqualValues(t, 1, tr.Refcount())
	tr.Acquire()
	assert.EqualValues(t, 2, tr.Refcount())
	tr.Release()
	assert.EqualValues(t, 1, tr.Refcount())
}

func TestImporterLifecycle(t *testing.T) {
	tr := New(48000)
	assert.Equal(t, -1, tr.ImporterFd())

	tr.SetImporter(1234, 7)
	assert.Equal(t, 7, tr.ImporterFd())
	assert.False(t, tr.ImporterFinished())

	tr.FinishImport()
	assert.True(t, tr.ImporterFinished())
}

func TestWriteAtOverwritesWithoutAdvancingLength(t *testing.T) {
	tr := New(48000)
	tr.AppendFrames(make([]Frame, 10))
	before := tr.Length()

	tr.WriteAt(3, []Frame{{L: 42, R: 42}})
	assert.Equal(t, before, tr.Length())
	assert.Equal(t, Frame{L: 42, R: 42}, tr.blocks[0][3])
}
