// Package deck implements the per-deck state split (DeckInput written
// only by the input thread, DeckProcessingState written only by the
// audio engine), transport/cue logic, and the navigation/encoder state
// that sits above them. See spec.md §3, §4.2.
package deck

// Source selects which Track a deck plays from.
type Source int

const (
	SourceFile Source = iota
	SourceLoop
)

// Beep is a user-feedback request the engine/deck can raise; the RT path
// never logs directly, so this is the channel spec.md §7 describes for
// all user-visible error/status signaling.
type Beep int

const (
	BeepNone Beep = iota
	BeepRecordingStart
	BeepRecordingStop
	BeepRecordingError
)

// NoSeek is the "no request pending" sentinel for DeckInput.SeekTo.
const NoSeek = -1.0

// DeckInput is the sole handshake surface written by the input thread
// and read by the audio engine. Of its one-shot request fields, SeekTo
// is cleared by the engine once applied and RecordStartRequested/
// RecordStopRequested are cleared by rig.Rig once handled; LoadTrack and
// BeepRequest are cleared by neither.
type DeckInput struct {
	EncoderAngle  int32
	EncoderOffset int32

	TargetPosition float64
	Touched        bool
	Stopped        bool

	SeekTo         float64
	PositionOffset float64

	PitchFader float64
	PitchNote  float64
	PitchBend  float64

	VolumeKnob float64
	Crossfader float64

	Source Source

	// LoadTrack, when non-nil, is a pending track to swap in. The type
	// is opaque here (any) to avoid an import cycle with track; the
	// engine type-asserts it to *track.Track.
	LoadTrack any

	RecordStartRequested bool
	RecordStopRequested  bool

	BeepRequest Beep

	JustPlay bool
}

// NewDeckInput returns a DeckInput with the neutral defaults the track
// load protocol (spec.md §4.2) resets every field to.
func NewDeckInput() *DeckInput {
	return &DeckInput{
		SeekTo:     NoSeek,
		PitchFader: 1, PitchNote: 1, PitchBend: 1,
		VolumeKnob: 1,
		Source:     SourceFile,
	}
}

// DeckProcessingState is written only by the audio engine; the input
// thread and any status query API may only read it (POD reads, worst
// case a slightly stale value).
type DeckProcessingState struct {
	Position       float64
	PositionOffset float64

	Pitch        float64
	MotorSpeed   float64
	LastExternal float64

	Fader  float64
	Volume float64

	PrevTouched bool

	Recording bool
	HasLoop   bool
	Source    Source
}
