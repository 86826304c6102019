package input

import (
	"testing"

	"pgregory.net/rapid"

	"github.com/lodsb/scratchd/internal/deck"
)

// TestStepEncoderNeverRejectsThreeInARow checks the invariant spec.md §8
// states for the glitch filter: no matter what sequence of raw angle
// readings arrives, StepEncoder never rejects three consecutive
// readings — the third one in any run of "large jump" readings is
// always accepted unconditionally.
func TestStepEncoderNeverRejectsThreeInARow(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		enc := &deck.EncoderState{RawAngle: int32(rapid.IntRange(0, encoderPeriod-1).Draw(rt, "start"))}

		consecutiveRejections := 0
		steps := rapid.IntRange(1, 64).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			angle := uint16(rapid.IntRange(0, encoderPeriod-1).Draw(rt, "angle"))
			reverse := rapid.Bool().Draw(rt, "reverse")

			if StepEncoder(enc, angle, reverse) {
				consecutiveRejections = 0
			} else {
				consecutiveRejections++
				if consecutiveRejections >= 3 {
					rt.Fatalf("StepEncoder rejected 3 consecutive readings, violating the blip-counter invariant")
				}
			}
		}
	})
}

// TestStepEncoderAcceptedReadingMatchesInputAngle confirms that any
// accepted reading sets RawAngle to exactly the (possibly
// direction-flipped) input angle, regardless of the prior state it
// started from.
func TestStepEncoderAcceptedReadingMatchesInputAngle(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		enc := &deck.EncoderState{RawAngle: int32(rapid.IntRange(0, encoderPeriod-1).Draw(rt, "start"))}
		angle := uint16(rapid.IntRange(0, encoderPeriod-1).Draw(rt, "angle"))
		reverse := rapid.Bool().Draw(rt, "reverse")

		want := int32(angle)
		if reverse {
			want = encoderPeriod - 1 - want
		}

		if StepEncoder(enc, angle, reverse) && enc.RawAngle != want {
			rt.Fatalf("accepted reading: RawAngle = %d, want %d", enc.RawAngle, want)
		}
	})
}
