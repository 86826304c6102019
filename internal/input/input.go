// Package input implements the ~1kHz, non-realtime input thread
// (spec.md §4.5): GPIO debounce, PIC ADC/button processing with fader
// hysteresis, platter encoder glitch filtering, and MIDI event drain,
// all dispatched through a mapping.Registry/Dispatcher into the two
// decks' DeckInput. This thread is the single writer of every
// DeckInput; it never blocks on the audio path and never locks anything
// the RT thread touches.
package input

import "github.com/lodsb/scratchd/internal/deck"

// MidiEvent is one parsed (status, data1, data2) message drained from
// the bounded SPSC queue fed by the MIDI-adjacent controller poll
// (spec.md §5). Shifted records whether shift was latched when the
// event's producer parsed it, matching the original firmware passing a
// shifted flag alongside the raw bytes into the queue.
type MidiEvent struct {
	Status, Data1, Data2 byte
	Shifted              bool
}

// PicReadings is one snapshot of the PIC input processor: four 10-bit
// ADCs (two crossfader sides, two volume knobs), four buttons, and the
// capacitive touch flag (spec.md §6 PlatformInputs port).
type PicReadings struct {
	ADC        [4]uint16
	Buttons    [4]bool
	CapTouched bool
}

// GPIOSnapshot is one bulk read of the digital inputs: the MCP23017
// expander's 16 pins (logical GPIO port 0) and whether it's present.
// SoC GPIO (ports 1-6) is read pin-by-pin through ReadA13GPIO since the
// debounce loop already walks mappings one at a time.
type GPIOSnapshot struct {
	ExpanderBits    uint16
	ExpanderPresent bool
}

// PlatformInputs is the hardware port InputReducer consumes (spec.md
// §6). Implementations live in internal/platforminputs; declaring the
// interface here keeps this package free of any hardware dependency, so
// it can be tested against a fake.
type PlatformInputs interface {
	ReadGPIOBulk() GPIOSnapshot
	ReadA13GPIO(port, pin int) bool
	ReadEncoder() uint16
	ReadPicAll() PicReadings
}

// EngineQuery is the read-only slice of the AudioEngine's query API the
// input thread needs: a POD snapshot of a deck's processing state
// (spec.md §5: "reads DeckProcessingState only through the audio port's
// query API... worst case a slightly stale value, never undefined").
type EngineQuery interface {
	DeckState(deckIndex int) deck.DeckProcessingState
}
