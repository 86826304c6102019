package input

// FaderHysteresis tracks whether each crossfader side is currently
// "open" (audible) so the open/close thresholds can differ
// (spec.md §4.5 step 3: "apply hysteresis to each fader side (open at
// fader_open_point, close at fader_close_point)").
type FaderHysteresis struct {
	open [2]bool
}

// NewFaderHysteresis starts both sides open, matching the original
// firmware's `fader_open1 = fader_open2 = 1` reset every tick before
// re-evaluating.
func NewFaderHysteresis() *FaderHysteresis {
	return &FaderHysteresis{open: [2]bool{true, true}}
}

// Crossfaders computes the post-cut-logic crossfader value for each
// deck from the two raw ADC sides, applying fader_open/close hysteresis
// and the cut_beats rule (spec.md §9's preserved-as-is mapping:
// cut_beats==1 closing side A cuts deck 0; cut_beats==2 closing side B
// cuts deck 0).
//
// deck0Volume/deck1Volume are the pre-cut volume knob values (not the
// ADC-derived crossfader itself — those come from the separate volume
// pots per spec.md §4.5 step 3); this returns what each deck's
// DeckInput.Crossfader should become this tick.
func (h *FaderHysteresis) Crossfaders(adcSideA, adcSideB uint16, openPoint, closePoint uint16, cutBeats int, deck0Volume, deck1Volume float64) (deck0, deck1 float64) {
	cutPointA := openPoint
	if h.open[0] {
		cutPointA = closePoint
	}
	cutPointB := openPoint
	if h.open[1] {
		cutPointB = closePoint
	}

	h.open[0] = true
	h.open[1] = true

	deck0, deck1 = deck0Volume, deck1Volume

	if adcSideA < cutPointA {
		if cutBeats == 1 {
			deck0 = 0
		} else {
			deck1 = 0
		}
		h.open[0] = false
	}
	if adcSideB < cutPointB {
		if cutBeats == 2 {
			deck0 = 0
		} else {
			deck1 = 0
		}
		h.open[1] = false
	}

	return deck0, deck1
}
