// Package mapping implements the configuration-time MappingRegistry and
// the action Dispatcher that routes a matched mapping to one of the two
// decks (spec.md §3, §4.6).
package mapping

// SourceType distinguishes a GPIO-sourced mapping from a MIDI-sourced
// one.
type SourceType int

const (
	SourceGPIO SourceType = iota
	SourceMIDI
)

// Edge is the event edge a mapping fires on.
type Edge int

const (
	EdgePressed Edge = iota
	EdgeReleased
	EdgeHeld
	EdgePressedShifted
	EdgeReleasedShifted
	EdgeHeldShifted
)

// Action is the dispatchable action kind (spec.md §4.6's action set).
type Action int

const (
	ActionNothing Action = iota
	ActionCue
	ActionDeleteCue
	ActionNote
	ActionStartStop
	ActionShiftOn
	ActionShiftOff
	ActionNextFile
	ActionPrevFile
	ActionRandomFile
	ActionNextFolder
	ActionPrevFolder
	ActionVolume
	ActionPitch
	ActionJogPit
	ActionJogPStop
	ActionVolUp
	ActionVolDown
	ActionVolUHold
	ActionVolDHold
	ActionJogReverse
	ActionBend
	ActionRecord
	ActionLoopErase
	ActionLoopRecall
	ActionSC500
	ActionGnd
)

// MidiCommand is a (status, data1, data2) triple. Hash/equality ignore
// data2 always, and ignore data1 too when the message is pitch-bend
// (status & 0xF0 == 0xE0), per spec.md §3.
type MidiCommand struct {
	Status byte
	Data1  byte
	Data2  byte
}

// IsPitchBend reports whether the command's status nibble is 0xE0.
func (m MidiCommand) IsPitchBend() bool {
	return m.Status&0xF0 == 0xE0
}

// Normalize converts a note-on with velocity 0 into a note-off, per
// spec.md §3/§4.6. Only Status/Data1 matter for the lookup key; Data2 is
// passed through unchanged for downstream action parameters.
func (m MidiCommand) Normalize() MidiCommand {
	if m.Status&0xF0 == 0x90 && m.Data2 == 0 {
		m.Status = 0x80 | (m.Status & 0x0F)
	}
	return m
}

// midiKey is the lookup key: pitch-bend keys on status alone, everything
// else keys on status+data1.
type midiKey struct {
	status byte
	data1  byte
	pb     bool
}

func (m MidiCommand) key() midiKey {
	if m.IsPitchBend() {
		return midiKey{status: m.Status, pb: true}
	}
	return midiKey{status: m.Status, data1: m.Data1}
}

// Mapping is one configuration-time binding (spec.md §3).
type Mapping struct {
	Type SourceType

	// GPIO fields.
	Port    int
	Pin     int
	PullUp  bool

	// MIDI fields.
	MidiStatus byte
	MidiData1  byte
	MidiData2  byte

	Edge   Edge
	Deck   int
	Action Action
	Param  int
}

// gpioKey is the (port, pin, edge) lookup key for IO mappings.
type gpioKey struct {
	port, pin int
	edge      Edge
}

// ButtonState is the per-mapping debounce/shift-latch state parallel to
// the mapping vector (spec.md §3).
type ButtonState struct {
	Debounce         int
	ShiftLatchedAtPress bool
}

// Registry is the two-hash-index lookup table + parallel ButtonState
// vector described in spec.md §4.6. Lookups are O(1) worst case.
type Registry struct {
	mappings []Mapping
	buttons  []ButtonState

	gpioIndex map[gpioKey]int
	midiIndex map[struct {
		key  midiKey
		edge Edge
	}]int
}

// NewRegistry builds a Registry from a flat mapping list, indexing both
// lookup tables at construction time.
func NewRegistry(mappings []Mapping) *Registry {
	r := &Registry{
		mappings: mappings,
		buttons:  make([]ButtonState, len(mappings)),
		gpioIndex: make(map[gpioKey]int),
		midiIndex: make(map[struct {
			key  midiKey
			edge Edge
		}]int),
	}
	for i, m := range mappings {
		switch m.Type {
		case SourceGPIO:
			r.gpioIndex[gpioKey{port: m.Port, pin: m.Pin, edge: m.Edge}] = i
		case SourceMIDI:
			cmd := MidiCommand{Status: m.MidiStatus, Data1: m.MidiData1}
			r.midiIndex[struct {
				key  midiKey
				edge Edge
			}{key: cmd.key(), edge: m.Edge}] = i
		}
	}
	return r
}

// Mappings returns the underlying mapping slice (read-only use expected).
func (r *Registry) Mappings() []Mapping { return r.mappings }

// ButtonState returns a pointer to the parallel ButtonState for mapping
// index i, so InputReducer can mutate the debounce counter in place.
func (r *Registry) ButtonState(i int) *ButtonState {
	return &r.buttons[i]
}

// FindIO looks up an IO (GPIO) mapping by (port, pin, edge).
func (r *Registry) FindIO(port, pin int, edge Edge) (idx int, m *Mapping, ok bool) {
	i, ok := r.gpioIndex[gpioKey{port: port, pin: pin, edge: edge}]
	if !ok {
		return 0, nil, false
	}
	return i, &r.mappings[i], true
}

// FindMIDI looks up a MIDI mapping by normalized command and edge.
func (r *Registry) FindMIDI(cmd MidiCommand, edge Edge) (idx int, m *Mapping, ok bool) {
	cmd = cmd.Normalize()
	i, ok := r.midiIndex[struct {
		key  midiKey
		edge Edge
	}{key: cmd.key(), edge: edge}]
	if !ok {
		return 0, nil, false
	}
	return i, &r.mappings[i], true
}
