package input

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lodsb/scratchd/internal/deck"
	"github.com/lodsb/scratchd/internal/mapping"
)

func TestStepEncoderAcceptsSmallDelta(t *testing.T) {
	enc := &deck.EncoderState{RawAngle: 1000}
	ok := StepEncoder(enc, 1010, false)
	assert.True(t, ok)
	assert.EqualValues(t, 1010, enc.RawAngle)
	assert.Zero(t, enc.NumBlips)
}

func TestStepEncoderRejectsGlitchThenAcceptsOnThird(t *testing.T) {
	enc := &deck.EncoderState{RawAngle: 1000}

	assert.False(t, StepEncoder(enc, 1500, false))
	assert.Equal(t, 1, enc.NumBlips)
	assert.EqualValues(t, 1000, enc.RawAngle, "rejected reading must not move RawAngle")

	assert.False(t, StepEncoder(enc, 1500, false))
	assert.Equal(t, 2, enc.NumBlips)

	assert.True(t, StepEncoder(enc, 1500, false), "third consecutive glitch reading is accepted unconditionally")
	assert.EqualValues(t, 1500, enc.RawAngle)
	assert.Zero(t, enc.NumBlips)
}

func TestStepEncoderReverse(t *testing.T) {
	enc := &deck.EncoderState{RawAngle: int32(encoderPeriod - 1 - 100)}
	ok := StepEncoder(enc, 100, true)
	assert.True(t, ok)
	assert.EqualValues(t, encoderPeriod-1-100, enc.RawAngle)
}

func TestStepEncoderWrapsForwardAcrossZero(t *testing.T) {
	enc := &deck.EncoderState{RawAngle: encoderPeriod - 10}
	ok := StepEncoder(enc, 10, false)
	assert.True(t, ok)
	assert.EqualValues(t, encoderPeriod, enc.Offset)
}

func TestStepEncoderWrapsBackwardAcrossZero(t *testing.T) {
	enc := &deck.EncoderState{RawAngle: 10}
	ok := StepEncoder(enc, encoderPeriod-10, false)
	assert.True(t, ok)
	assert.EqualValues(t, -encoderPeriod, enc.Offset)
}

func TestRebaseOnTouchThenTargetPosition(t *testing.T) {
	enc := &deck.EncoderState{RawAngle: 2000}
	RebaseOnTouch(enc, 10.0, 2275)
	assert.InDelta(t, 10.0, TargetPosition(enc, 2275), 1e-9)
}

func TestPitchFromAngle(t *testing.T) {
	enc := &deck.EncoderState{FilteredAngle: 16384}
	assert.InDelta(t, 2.0, PitchFromAngle(enc), 1e-9)
}

func TestFaderHysteresisOpensAndCutsBySide(t *testing.T) {
	h := NewFaderHysteresis()

	d0, d1 := h.Crossfaders(900, 900, 100, 50, 1, 1.0, 1.0)
	assert.Equal(t, 1.0, d0)
	assert.Equal(t, 1.0, d1)

	d0, d1 = h.Crossfaders(40, 900, 100, 50, 1, 1.0, 1.0)
	assert.Zero(t, d0, "cut_beats=1 closing side A cuts deck 0")
	assert.Equal(t, 1.0, d1)

	d0, d1 = h.Crossfaders(60, 900, 100, 50, 1, 1.0, 1.0)
	assert.Zero(t, d0, "side A stays closed until it reopens past the open point (hysteresis)")
	assert.Equal(t, 1.0, d1)

	d0, d1 = h.Crossfaders(150, 900, 100, 50, 1, 1.0, 1.0)
	assert.Equal(t, 1.0, d0, "side A reopened past the open point")
	assert.Equal(t, 1.0, d1)
}

func TestFaderHysteresisCutBeatsTwoCutsOppositeSide(t *testing.T) {
	h := NewFaderHysteresis()
	d0, d1 := h.Crossfaders(900, 40, 100, 50, 2, 1.0, 1.0)
	assert.Zero(t, d0)
	assert.Equal(t, 1.0, d1)
}

func newRegistryEntry(edge mapping.Edge) (*mapping.Registry, *mapping.Mapping) {
	m := mapping.Mapping{Type: mapping.SourceGPIO, Edge: edge, Port: 1, Pin: 0}
	reg := mapping.NewRegistry([]mapping.Mapping{m})
	ms := reg.Mappings()
	return reg, &ms[0]
}

func TestStepGPIODebounceFiresPressedOnRisingEdge(t *testing.T) {
	reg, m := newRegistryEntry(mapping.EdgePressed)
	bs := reg.ButtonState(0)
	fired := 0
	StepGPIODebounce(bs, m, true, false, 5, 50, func() { fired++ })
	assert.Equal(t, 1, fired)
	assert.EqualValues(t, 1, bs.Debounce)
}

func TestStepGPIODebounceFiresHeldAtThreshold(t *testing.T) {
	reg, m := newRegistryEntry(mapping.EdgeHeld)
	bs := reg.ButtonState(0)
	fired := 0
	fire := func() { fired++ }

	StepGPIODebounce(bs, m, true, false, 2, 4, fire)
	for bs.Debounce <= 4 {
		StepGPIODebounce(bs, m, true, false, 2, 4, fire)
	}
	assert.Equal(t, 1, fired, "Held fires exactly once at debounce == holdTime")
}

func TestStepGPIODebounceFiresReleasedOnEarlyRelease(t *testing.T) {
	reg, m := newRegistryEntry(mapping.EdgeReleased)
	bs := reg.ButtonState(0)
	fired := 0
	fire := func() { fired++ }

	StepGPIODebounce(bs, m, true, false, 3, 50, fire)
	StepGPIODebounce(bs, m, true, false, 3, 50, fire)
	StepGPIODebounce(bs, m, true, false, 3, 50, fire)
	StepGPIODebounce(bs, m, false, false, 3, 50, fire)
	assert.Equal(t, 1, fired)
	assert.EqualValues(t, -3, bs.Debounce)
}

func TestStepGPIODebounceRespectsShiftedEdge(t *testing.T) {
	reg, m := newRegistryEntry(mapping.EdgePressedShifted)
	bs := reg.ButtonState(0)
	fired := 0
	fire := func() { fired++ }

	StepGPIODebounce(bs, m, true, false, 5, 50, fire)
	assert.Zero(t, fired, "unshifted press must not fire a shifted mapping")

	bs2 := &mapping.ButtonState{}
	StepGPIODebounce(bs2, m, true, true, 5, 50, fire)
	assert.Equal(t, 1, fired)
}

func TestPicButtonFSMInstantSingleButtonNavigates(t *testing.T) {
	var fsm PicButtonFSM
	act := fsm.Step([4]bool{true, false, false, false}, 50)
	assert.Nil(t, act.PrevFile)

	act = fsm.Step([4]bool{false, false, false, false}, 50)
	if assert.NotNil(t, act.PrevFile) {
		assert.Equal(t, 1, *act.PrevFile, "button 0 drives the scratch deck (index 1)")
	}
}

func TestPicButtonFSMAllFourLatchesShift(t *testing.T) {
	var fsm PicButtonFSM
	fsm.Step([4]bool{true, true, true, true}, 50)
	act := fsm.Step([4]bool{false, false, false, false}, 50)
	assert.True(t, act.LatchShift)
}

func TestPicButtonFSMHeldAllFourTogglesRecord(t *testing.T) {
	var fsm PicButtonFSM
	buttons := [4]bool{true, true, true, true}
	var act PicActions
	for i := 0; i < 60; i++ {
		act = fsm.Step(buttons, 50)
		if act.ToggleRecordDeck != nil {
			break
		}
	}
	if assert.NotNil(t, act.ToggleRecordDeck) {
		assert.Equal(t, 0, *act.ToggleRecordDeck, "held four-button combo toggles the beat deck (index 0)")
	}
}

func TestPicButtonFSMRearmsAfterWaiting(t *testing.T) {
	var fsm PicButtonFSM
	fsm.Step([4]bool{true, false, false, false}, 50)
	fsm.Step([4]bool{false, false, false, false}, 50)
	assert.Equal(t, PicWaiting, fsm.state)
	for i := 0; i <= picWaitTicks; i++ {
		fsm.Step([4]bool{}, 50)
	}
	assert.Equal(t, PicNone, fsm.state)
}

func TestMidiQueueTrySendAndDrain(t *testing.T) {
	q := NewMidiQueue()
	assert.True(t, q.TrySend(MidiEvent{Status: 0x90, Data1: 1, Data2: 2}))
	events := q.Drain()
	assert.Len(t, events, 1)
	assert.Zero(t, q.Dropped())
}

func TestMidiQueueDropsWhenFull(t *testing.T) {
	q := NewMidiQueue()
	for i := 0; i < MidiQueueCapacity; i++ {
		assert.True(t, q.TrySend(MidiEvent{}))
	}
	assert.False(t, q.TrySend(MidiEvent{}), "queue is at capacity")
	assert.EqualValues(t, 1, q.Dropped())
}

type fakePlatform struct {
	gpio    GPIOSnapshot
	a13     bool
	encoder uint16
	pic     PicReadings
}

func (f *fakePlatform) ReadGPIOBulk() GPIOSnapshot     { return f.gpio }
func (f *fakePlatform) ReadA13GPIO(port, pin int) bool { return f.a13 }
func (f *fakePlatform) ReadEncoder() uint16            { return f.encoder }
func (f *fakePlatform) ReadPicAll() PicReadings        { return f.pic }

type fakeEngineQuery struct {
	state deck.DeckProcessingState
}

func (e *fakeEngineQuery) DeckState(int) deck.DeckProcessingState { return e.state }

type nilPlaylist struct{}

func (nilPlaylist) FolderCount() int                        { return 0 }
func (nilPlaylist) FileCountInFolder(int) int                { return 0 }
func (nilPlaylist) GetFile(int, int) (string, bool)          { return "", false }
func (nilPlaylist) GetRandomFile() (int, int, string, bool)  { return 0, 0, "", false }
func (nilPlaylist) HasNextFile(int, int) bool                { return false }
func (nilPlaylist) HasPrevFile(int, int) bool                { return false }
func (nilPlaylist) HasNextFolder(int) bool                   { return false }
func (nilPlaylist) HasPrevFolder(int) bool                   { return false }

type fakeRecordingEngine struct{}

func (fakeRecordingEngine) IsRecording(int) bool { return false }
func (fakeRecordingEngine) HasLoop(int) bool     { return false }
func (fakeRecordingEngine) ResetLoop(int)        {}
func (fakeRecordingEngine) DeckState(int) deck.DeckProcessingState {
	return deck.DeckProcessingState{}
}

func newTestReducer() *InputReducer {
	d0 := deck.NewDeck(0, nilPlaylist{})
	d1 := deck.NewDeck(1, nilPlaylist{})
	disp := &mapping.Dispatcher{
		Decks:    mapping.Decks{d0, d1},
		Settings: mapping.Settings{PitchRange: 50, VolumeAmount: 0.03, VolumeAmountHeld: 0.001},
		Engine:   fakeRecordingEngine{},
	}
	reg := mapping.NewRegistry(nil)
	platform := &fakePlatform{}
	engine := &fakeEngineQuery{}
	settings := Settings{DebounceTime: 5, HoldTime: 50, PlatterEnabled: true, PlatterSpeed: 2275}
	return New(reg, disp, [2]*deck.Deck{d0, d1}, platform, NewMidiQueue(), engine, settings, nil)
}

func TestInputReducerDrainMidiWarnsOnceUntilCountChanges(t *testing.T) {
	r := newTestReducer()
	var warned int
	r.Log = logFunc(func() { warned++ })

	for i := 0; i < MidiQueueCapacity+5; i++ {
		r.Midi.TrySend(MidiEvent{})
	}
	r.drainMidi()
	assert.Equal(t, 1, warned)

	r.drainMidi()
	assert.Equal(t, 1, warned, "no new drops since last warn, so no second warning")
}

type logFunc func()

func (f logFunc) Warn(interface{}, ...interface{}) { f() }

func TestInputReducerStepEncoderPublishesTargetPositionWhenTouched(t *testing.T) {
	r := newTestReducer()
	r.lastPic = PicReadings{CapTouched: true}
	r.Platform.(*fakePlatform).encoder = 50
	r.Engine.(*fakeEngineQuery).state.Position = 10

	r.stepEncoder()

	scratch := r.Decks[ScratchDeckIndex]
	assert.True(t, scratch.Input.Touched)
	assert.InDelta(t, 10.0, scratch.Input.TargetPosition, 1e-9)
}

func TestInputReducerStepEncoderRoutesJogPitToSelectedDeck(t *testing.T) {
	r := newTestReducer()
	r.Dispatcher.Dispatch(&mapping.Mapping{Action: mapping.ActionJogPit, Deck: 0}, [3]byte{})
	r.Platform.(*fakePlatform).encoder = 50

	r.stepEncoder()

	assert.InDelta(t, PitchFromAngle(&r.Decks[ScratchDeckIndex].Enc), r.Decks[0].Input.PitchNote, 1e-9)
}
