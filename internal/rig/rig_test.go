package rig

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodsb/scratchd/internal/deck"
	"github.com/lodsb/scratchd/internal/engine"
	"github.com/lodsb/scratchd/internal/interp"
	"github.com/lodsb/scratchd/internal/track"
)

func TestDecodeFramesLittleEndianStereo(t *testing.T) {
	buf := []byte{
		0x01, 0x00, 0xFF, 0xFF, // L=1, R=-1
		0x00, 0x80, 0x00, 0x00, // L=-32768, R=0
	}
	frames := decodeFrames(buf)
	require.Len(t, frames, 2)
	assert.Equal(t, track.Frame{L: 1, R: -1}, frames[0])
	assert.Equal(t, track.Frame{L: -32768, R: 0}, frames[1])
}

func TestDecodeFramesDropsTrailingPartialFrame(t *testing.T) {
	buf := []byte{0x01, 0x00, 0x02, 0x00, 0xAA}
	frames := decodeFrames(buf)
	require.Len(t, frames, 1)
	assert.Equal(t, track.Frame{L: 1, R: 2}, frames[0])
}

func newTestRig(t *testing.T) (*Rig, *deck.Deck, *deck.Deck) {
	t.Helper()
	d0 := deck.NewDeck(0, nil)
	d1 := deck.NewDeck(1, nil)
	eng := engine.New(engine.DefaultSettings(), interp.Cubic{}, engine.FormatS16, [2]*deck.Deck{d0, d1})

	r, w, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() {
		r.Close()
		w.Close()
	})

	rg := &Rig{
		engine: eng,
		decks:  [2]*deck.Deck{d0, d1},
		quitR:  r,
		quitW:  w,
	}
	return rg, d0, d1
}

func TestHandleDeckRecordingStartsRecording(t *testing.T) {
	rg, d0, _ := newTestRig(t)
	d0.Input.RecordStartRequested = true

	rg.handleDeckRecording()

	assert.False(t, d0.Input.RecordStartRequested)
	assert.True(t, rg.engine.IsRecording(0))
	assert.Equal(t, deck.BeepRecordingStart, d0.Input.BeepRequest)
}

func TestHandleDeckRecordingRefusesSecondDeckWhileOneRecords(t *testing.T) {
	rg, d0, d1 := newTestRig(t)
	d0.Input.RecordStartRequested = true
	rg.handleDeckRecording()

	d1.Input.RecordStartRequested = true
	rg.handleDeckRecording()

	assert.False(t, d1.Input.RecordStartRequested)
	assert.False(t, rg.engine.IsRecording(1))
	assert.Equal(t, deck.BeepRecordingError, d1.Input.BeepRequest)
}

func TestHandleDeckRecordingStopsRecording(t *testing.T) {
	rg, d0, _ := newTestRig(t)
	d0.Input.RecordStartRequested = true
	rg.handleDeckRecording()

	d0.Input.RecordStopRequested = true
	rg.handleDeckRecording()

	assert.False(t, d0.Input.RecordStopRequested)
	assert.False(t, rg.engine.IsRecording(0))
	assert.Equal(t, deck.BeepRecordingStop, d0.Input.BeepRequest)
}

func TestHandleDeckRecordingIgnoresStopWhenNotRecording(t *testing.T) {
	rg, d0, _ := newTestRig(t)
	d0.Input.RecordStopRequested = true

	rg.handleDeckRecording()

	assert.False(t, d0.Input.RecordStopRequested)
	assert.False(t, rg.engine.IsRecording(0))
	assert.Equal(t, deck.BeepNone, d0.Input.BeepRequest)
}

func TestBuildPollSetIncludesQuitPipeAndImporters(t *testing.T) {
	rg, _, _ := newTestRig(t)

	r, w, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() {
		r.Close()
		w.Close()
	})
	rg.importing = []*importJob{{stdout: r}}

	fds := rg.buildPollSet()
	require.Len(t, fds, 2)
	assert.Equal(t, int32(rg.quitR.Fd()), fds[0].Fd)
	assert.Equal(t, int32(r.Fd()), fds[1].Fd)
}
