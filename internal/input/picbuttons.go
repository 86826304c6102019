package input

// PicButtonState is the PIC four-button combo state machine (spec.md
// §4.5 step 4), grounded on the original firmware's
// BUTTONSTATE_NONE/PRESSING/ACTING_INSTANT/ACTING_HELD/WAITING scan:
// wait for any button, latch which ones were pressed, act instantly if
// they're all released before hold_time or act on whichever are still
// down at hold_time, then wait out a release debounce before
// re-arming.
type PicButtonState int

const (
	PicNone PicButtonState = iota
	PicPressing
	PicActingInstant
	PicActingHeld
	PicWaiting
)

// picWaitTicks is how many ticks PicWaiting holds before re-arming,
// matching the original's `butCounter > 20`.
const picWaitTicks = 20

// PicButtonFSM runs the four-button navigation combo independent of the
// mapping registry (the PIC buttons are a fixed physical layout, not a
// configurable mapping): buttons 0/1 drive the scratch deck (index 1),
// buttons 2/3 drive the beat deck (index 0), and all four together
// latch shift (instant) or toggle recording on the beat deck (held).
type PicButtonFSM struct {
	state   PicButtonState
	counter int
	total   [4]bool
}

// PicActions is the set of navigation operations the FSM can request in
// one tick; the caller (InputReducer) executes whichever is non-nil
// against the real decks/dispatcher.
type PicActions struct {
	PrevFile, NextFile     *int // deck index, or nil
	RandomFile             *int
	PrevFolder, NextFolder *int
	LatchShift             bool
	ToggleRecordDeck       *int
}

// Step advances the FSM by one tick given the current raw button state
// and the configured hold time (ticks). It returns the action to take,
// if any, this tick.
func (fsm *PicButtonFSM) Step(buttons [4]bool, holdTime int) PicActions {
	var act PicActions

	switch fsm.state {
	case PicNone:
		if buttons[0] || buttons[1] || buttons[2] || buttons[3] {
			fsm.state = PicPressing
			fsm.total = buttons
			fsm.counter = 0
		}

	case PicPressing:
		for i := range fsm.total {
			fsm.total[i] = fsm.total[i] || buttons[i]
		}
		if !(buttons[0] || buttons[1] || buttons[2] || buttons[3]) {
			fsm.state = PicActingInstant
			return fsm.Step(buttons, holdTime)
		}
		fsm.counter++
		if fsm.counter > holdTime {
			fsm.counter = 0
			fsm.state = PicActingHeld
			return fsm.Step(buttons, holdTime)
		}

	case PicActingInstant:
		scratch, beat := 1, 0
		t := fsm.total
		switch {
		case t[0] && !t[1] && !t[2] && !t[3]:
			act.PrevFile = &scratch
		case !t[0] && t[1] && !t[2] && !t[3]:
			act.NextFile = &scratch
		case !t[0] && !t[1] && t[2] && !t[3]:
			act.PrevFile = &beat
		case !t[0] && !t[1] && !t[2] && t[3]:
			act.NextFile = &beat
		case t[0] && t[1] && t[2] && t[3]:
			act.LatchShift = true
		}
		fsm.state = PicWaiting
		fsm.counter = 0

	case PicActingHeld:
		scratch, beat := 1, 0
		b := buttons
		switch {
		case b[0] && !b[1] && !b[2] && !b[3]:
			act.PrevFolder = &scratch
		case !b[0] && b[1] && !b[2] && !b[3]:
			act.NextFolder = &scratch
		case b[0] && b[1] && !b[2] && !b[3]:
			act.RandomFile = &scratch
		case !b[0] && !b[1] && b[2] && !b[3]:
			act.PrevFolder = &beat
		case !b[0] && !b[1] && !b[2] && b[3]:
			act.NextFolder = &beat
		case !b[0] && !b[1] && b[2] && b[3]:
			act.RandomFile = &beat
		case b[0] && b[1] && b[2] && b[3]:
			act.ToggleRecordDeck = &beat
		}
		fsm.state = PicWaiting
		fsm.counter = 0

	case PicWaiting:
		if buttons[0] || buttons[1] || buttons[2] || buttons[3] {
			fsm.counter = 0
			break
		}
		fsm.counter++
		if fsm.counter > picWaitTicks {
			fsm.counter = 0
			fsm.total = [4]bool{}
			fsm.state = PicNone
		}
	}

	return act
}
