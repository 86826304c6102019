package input

import "github.com/lodsb/scratchd/internal/deck"

// encoderPeriod is the rotary sensor's full-turn period (12-bit angle).
const encoderPeriod = 4096

// encoderWrapLow/encoderWrapHigh bound the dead zone used to detect a
// zero crossing in either direction, mirroring the original firmware's
// 1024/3072 thresholds (a quarter-turn margin on each side of zero).
const (
	encoderWrapLow  = 1024
	encoderWrapHigh = 3072
)

// glitchThreshold is the maximum believable single-tick jump; anything
// larger is treated as a read glitch unless it recurs (spec.md §4.5).
const glitchThreshold = 100

// pitchModeScale converts a raw angle delta into a note-pitch multiplier
// in JogPit mode (spec.md §4.5: "use encoder-derived angle as a direct
// pitch multiplier"), grounded on the original firmware's
// `angle / 16384 + 1.0`.
const pitchModeScale = 1.0 / 16384.0

// StepEncoder advances enc's glitch filter with one new raw angle
// reading and reports whether the reading was accepted. A rejected
// reading leaves enc unchanged except for the blip counter; after two
// consecutive rejections the third reading is accepted unconditionally,
// per spec.md §4.5 step 5 / §8's quantified invariant.
func StepEncoder(enc *deck.EncoderState, newAngle uint16, reverse bool) (accepted bool) {
	if reverse {
		newAngle = encoderPeriod - 1 - newAngle
	}

	raw := int32(newAngle)
	old := enc.RawAngle

	var crossedZero int
	wrapped := old
	switch {
	case raw < encoderWrapLow && old >= encoderWrapHigh:
		crossedZero = 1
		wrapped = old - encoderPeriod
	case raw >= encoderWrapHigh && old < encoderWrapLow:
		crossedZero = -1
		wrapped = old + encoderPeriod
	}

	delta := raw - wrapped
	if delta < 0 {
		delta = -delta
	}
	if delta > glitchThreshold && enc.NumBlips < 2 {
		enc.NumBlips++
		return false
	}

	enc.NumBlips = 0
	enc.RawAngle = raw
	switch {
	case crossedZero > 0:
		enc.Offset += encoderPeriod
	case crossedZero < 0:
		enc.Offset -= encoderPeriod
	}
	enc.FilteredAngle = raw + enc.Offset
	return true
}

// RebaseOnTouch rebases enc.Offset so the encoder's current raw angle
// maps to positionSeconds*platterSpeed (spec.md §4.5 step 5's touching
// edge: "rebase encoder_offset so that current angle maps to position ·
// platter_speed").
func RebaseOnTouch(enc *deck.EncoderState, positionSeconds, platterSpeed float64) {
	enc.Offset = int32(positionSeconds*platterSpeed) - enc.RawAngle
	enc.FilteredAngle = enc.RawAngle + enc.Offset
}

// TargetPosition converts the encoder's filtered angle into a track
// position in seconds (spec.md §4.5 step 5: "publish target_position =
// (angle + offset) / platter_speed").
func TargetPosition(enc *deck.EncoderState, platterSpeed float64) float64 {
	if platterSpeed == 0 {
		return 0
	}
	return float64(enc.FilteredAngle) / platterSpeed
}

// PitchFromAngle implements the JogPit direct-pitch-multiplier mode.
func PitchFromAngle(enc *deck.EncoderState) float64 {
	return float64(enc.FilteredAngle)*pitchModeScale + 1.0
}
