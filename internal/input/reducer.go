package input

import (
	"time"

	"github.com/lodsb/scratchd/internal/deck"
	"github.com/lodsb/scratchd/internal/mapping"
)

// TickInterval is the input thread's target period (spec.md §4.5: "≈ 1 kHz").
const TickInterval = time.Millisecond

// Logger is the minimal logging surface InputReducer needs; satisfied
// directly by *charmbracelet/log.Logger (spec.md §7: dropped MIDI
// events are warn-logged, never silently discarded without a trace).
type Logger interface {
	Warn(msg interface{}, keyvals ...interface{})
}

type nopLogger struct{}

func (nopLogger) Warn(interface{}, ...interface{}) {}

// Settings carries the subset of sc_settings.json the input thread
// needs (spec.md §6).
type Settings struct {
	DebounceTime int
	HoldTime     int

	FaderOpenPoint  uint16
	FaderClosePoint uint16
	CutBeats        int

	PlatterEnabled bool
	PlatterSpeed   float64
	JogReverse     bool

	DisableVolumeADC  bool
	DisablePicButtons bool
}

// BeatDeckIndex/ScratchDeckIndex fix the two-deck convention used
// throughout the rig (spec.md §4.6 Decks comment): index 0 is the beat
// deck, index 1 is the scratch deck carrying the platter encoder.
const (
	BeatDeckIndex    = 0
	ScratchDeckIndex = 1
)

// InputReducer is the ~1kHz input-thread loop (spec.md §4.5): it is the
// sole writer of every DeckInput, the sole consumer of the MIDI SPSC
// queue, and owns every piece of input-thread-local state (debounce
// counters live in the Registry's parallel ButtonState vector; fader
// hysteresis and the PIC combo FSM live here).
type InputReducer struct {
	Registry   *mapping.Registry
	Dispatcher *mapping.Dispatcher
	Decks      [2]*deck.Deck
	Platform   PlatformInputs
	Midi       *MidiQueue
	Engine     EngineQuery
	Settings   Settings
	Log        Logger

	fader         *FaderHysteresis
	picFSM        PicButtonFSM
	lastPic       PicReadings
	warnedDropped uint64
}

// New constructs an InputReducer with neutral internal state.
func New(registry *mapping.Registry, dispatcher *mapping.Dispatcher, decks [2]*deck.Deck, platform PlatformInputs, midi *MidiQueue, engine EngineQuery, settings Settings, logger Logger) *InputReducer {
	if logger == nil {
		logger = nopLogger{}
	}
	return &InputReducer{
		Registry: registry, Dispatcher: dispatcher, Decks: decks,
		Platform: platform, Midi: midi, Engine: engine, Settings: settings,
		Log: logger, fader: NewFaderHysteresis(),
	}
}

// Run drives Tick at TickInterval until stop is closed.
func (r *InputReducer) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.Tick()
		}
	}
}

// Tick runs one iteration of the input-thread loop (spec.md §4.5 steps
// 1-5).
func (r *InputReducer) Tick() {
	r.stepGPIO()
	r.drainMidi()
	r.stepPicAndFaders()
	r.stepEncoder()
}

// stepGPIO implements step 1: bulk digital read + per-mapping debounce.
func (r *InputReducer) stepGPIO() {
	snap := r.Platform.ReadGPIOBulk()
	shifted := r.Dispatcher.Shifted()
	ms := r.Registry.Mappings()
	for i := range ms {
		m := &ms[i]
		if m.Type != mapping.SourceGPIO {
			continue
		}
		var pinValue bool
		if m.Port == 0 {
			if snap.ExpanderPresent {
				pinValue = (snap.ExpanderBits>>uint(m.Pin))&1 != 0
			}
		} else {
			pinValue = r.Platform.ReadA13GPIO(m.Port, m.Pin)
		}
		bs := r.Registry.ButtonState(i)
		StepGPIODebounce(bs, m, pinValue, shifted, r.Settings.DebounceTime, r.Settings.HoldTime, func() {
			r.Dispatcher.Dispatch(m, [3]byte{})
		})
	}
}

// drainMidi implements step 2: drain the MIDI SPSC queue and dispatch
// each event by normalized-command + (shifted) Pressed edge lookup.
func (r *InputReducer) drainMidi() {
	if dropped := r.Midi.Dropped(); dropped > r.warnedDropped {
		r.Log.Warn("midi queue full, dropping events", "dropped_total", dropped)
		r.warnedDropped = dropped
	}
	for _, ev := range r.Midi.Drain() {
		cmd := mapping.MidiCommand{Status: ev.Status, Data1: ev.Data1, Data2: ev.Data2}
		edge := mapping.EdgePressed
		if ev.Shifted {
			edge = mapping.EdgePressedShifted
		}
		_, m, ok := r.Registry.FindMIDI(cmd, edge)
		if !ok {
			continue
		}
		r.Dispatcher.Dispatch(m, [3]byte{ev.Status, ev.Data1, ev.Data2})
	}
}

// stepPicAndFaders implements step 3 (PIC ADC read, fader hysteresis,
// crossfader/volume-knob publish) and step 4 (PIC button combo FSM).
func (r *InputReducer) stepPicAndFaders() {
	pic := r.Platform.ReadPicAll()
	r.lastPic = pic

	beat, scratch := r.Decks[BeatDeckIndex], r.Decks[ScratchDeckIndex]

	if !r.Settings.DisableVolumeADC {
		beat.Input.VolumeKnob = float64(pic.ADC[2]) / 1024.0
		scratch.Input.VolumeKnob = float64(pic.ADC[3]) / 1024.0
	}

	cf0, cf1 := r.fader.Crossfaders(pic.ADC[0], pic.ADC[1], r.Settings.FaderOpenPoint, r.Settings.FaderClosePoint, r.Settings.CutBeats, beat.Input.VolumeKnob, scratch.Input.VolumeKnob)
	beat.Input.Crossfader = cf0
	scratch.Input.Crossfader = cf1

	if r.Settings.DisablePicButtons {
		return
	}
	act := r.picFSM.Step(pic.Buttons, r.Settings.HoldTime)
	r.applyPicActions(act)
}

func (r *InputReducer) applyPicActions(act PicActions) {
	if act.PrevFile != nil {
		d := r.Decks[*act.PrevFile]
		d.PrevFile(r.engineHasLoop(*act.PrevFile))
	}
	if act.NextFile != nil {
		r.Decks[*act.NextFile].NextFile()
	}
	if act.RandomFile != nil {
		r.Decks[*act.RandomFile].RandomFile()
	}
	if act.PrevFolder != nil {
		r.Decks[*act.PrevFolder].PrevFolder()
	}
	if act.NextFolder != nil {
		r.Decks[*act.NextFolder].NextFolder()
	}
	if act.LatchShift {
		r.Dispatcher.SetShifted(true)
	}
	if act.ToggleRecordDeck != nil {
		r.Decks[*act.ToggleRecordDeck].ToggleRecord(r.Dispatcher.Engine)
	}
}

func (r *InputReducer) engineHasLoop(deckIndex int) bool {
	if r.Dispatcher == nil || r.Dispatcher.Engine == nil {
		return false
	}
	return r.Dispatcher.Engine.HasLoop(deckIndex)
}

// stepEncoder implements step 5: read the 12-bit platter angle, run the
// glitch filter, and either drive JogPit's direct pitch multiplier or
// the normal touch-rebase/scratch target-position publish.
func (r *InputReducer) stepEncoder() {
	d := r.Decks[ScratchDeckIndex]
	raw := r.Platform.ReadEncoder()
	reverse := r.Settings.JogReverse != r.Dispatcher.JogReverse()
	if !StepEncoder(&d.Enc, raw, reverse) {
		return
	}

	if pm := r.Dispatcher.PitchMode(); pm != 0 {
		target := r.Decks[pm-1]
		target.Input.PitchNote = PitchFromAngle(&d.Enc)
		return
	}

	touched := r.lastPic.CapTouched
	stateBefore := d.Input.Touched
	if r.Settings.PlatterEnabled {
		state := r.Engine.DeckState(ScratchDeckIndex)
		if touched || state.MotorSpeed == 0 {
			if !stateBefore {
				RebaseOnTouch(&d.Enc, state.Position, r.Settings.PlatterSpeed)
				d.Input.TargetPosition = state.Position
			}
			d.Input.Touched = true
		} else {
			d.Input.Touched = false
		}
	} else {
		d.Input.Touched = true
	}

	d.Input.TargetPosition = TargetPosition(&d.Enc, r.Settings.PlatterSpeed)
}
