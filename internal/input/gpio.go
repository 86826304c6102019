package input

import "github.com/lodsb/scratchd/internal/mapping"

// shiftedEdge returns the shift-modified variant of a base edge kind.
func shiftedEdge(e mapping.Edge) mapping.Edge {
	switch e {
	case mapping.EdgePressed:
		return mapping.EdgePressedShifted
	case mapping.EdgeReleased:
		return mapping.EdgeReleasedShifted
	case mapping.EdgeHeld:
		return mapping.EdgeHeldShifted
	default:
		return e
	}
}

// StepGPIODebounce advances one GPIO mapping's per-entry debounce
// counter by one tick given the pin's current raw level, invoking fire
// whenever the mapping's own configured edge matches the transition
// observed this tick (spec.md §4.5 step 1).
//
// Grounded on the original firmware's iodebounce state machine:
// debounce == 0 idle (fires Pressed on a rising edge and starts the
// counter); (0, debounce_time) debouncing the press; [debounce_time,
// hold_time) holding (fires Released on an early release); == hold_time
// fires Held once; > hold_time waiting for release (VOLUHOLD/VOLDHOLD
// mappings re-fire Held every tick while still pressed; any other
// mapping fires Released once the pin goes low); < 0 debouncing the
// release back to idle.
func StepGPIODebounce(bs *mapping.ButtonState, m *mapping.Mapping, pinValue, shifted bool, debounceTime, holdTime int, fire func()) {
	wantPressed, wantReleased, wantHeld := mapping.EdgePressed, mapping.EdgeReleased, mapping.EdgeHeld
	if shifted {
		wantPressed, wantReleased, wantHeld = shiftedEdge(wantPressed), shiftedEdge(wantReleased), shiftedEdge(wantHeld)
	}

	switch {
	case bs.Debounce == 0:
		if pinValue {
			if m.Edge == wantPressed {
				fire()
			}
			bs.Debounce++
		}

	case bs.Debounce > 0 && bs.Debounce < debounceTime:
		bs.Debounce++

	case bs.Debounce >= debounceTime && bs.Debounce < holdTime:
		if !pinValue {
			if m.Edge == wantReleased {
				fire()
			}
			bs.Debounce = -debounceTime
		} else {
			bs.Debounce++
		}

	case bs.Debounce == holdTime:
		if m.Edge == wantHeld {
			fire()
		}
		bs.Debounce++

	case bs.Debounce > holdTime:
		if pinValue {
			if (m.Action == mapping.ActionVolUHold || m.Action == mapping.ActionVolDHold) && m.Edge == wantHeld {
				fire()
			}
		} else {
			if m.Edge == wantReleased {
				fire()
			}
			bs.Debounce = -debounceTime
		}

	case bs.Debounce < 0:
		bs.Debounce++
	}
}
