// Package cv is the optional control-voltage post-processor named in
// SPEC_FULL.md §12: it turns deck/fader state into the same seven
// signal kinds the original firmware's cv_engine.cpp produced, writing
// them into whichever output channels an audio_interfaces config maps
// to a CV kind instead of to the main stereo mix. It never runs unless
// such a mapping exists.
package cv

import "math"

// LogicalOutputKind names one of the seven CV signal shapes the
// original firmware's output_channel_type enum distinguishes, plus the
// non-CV "audio" passthrough channel (spec.md §12,
// original_source/software/src/core/sc_settings.h).
type LogicalOutputKind int

const (
	OutputAudio LogicalOutputKind = iota
	OutputPlatterSpeed
	OutputSamplePosition
	OutputCrossfader
	OutputGateA
	OutputGateB
	OutputPlatterAngle
	OutputPlatterAccel
	OutputDirectionPulse
)

const (
	gateOpenThreshold  = 0.05
	directionThreshold = 0.05
	pulseDurationMs    = 2.0
	accelScale         = 10.0
	defaultCutoffHz    = 500.0
	encoderScale       = 1.0 / 4096.0

	bipolarScale  = 32767.0
	unipolarScale = 32767.0
	gateHigh      = 32767
	gateLow       = 0
)

// ChannelMap assigns a LogicalOutputKind to each hardware output
// channel index of one audio interface; channels absent from the map
// default to OutputAudio.
type ChannelMap map[int]LogicalOutputKind

// ControllerInput is the per-block snapshot of turntable state the
// processor reads; cmd/scratchd builds one from the scratch deck's
// DeckProcessingState and DeckInput on each CV stream callback
// (cv_engine.h's cv_controller_input).
type ControllerInput struct {
	Pitch           float64
	EncoderAngle    uint16 // raw 12-bit platter angle, 0-4095
	SamplePosition  int64
	SampleLength    int64
	FaderVolume     float64 // smoothed, drives the crossfader CV
	CrossfaderTarget float64 // instant, drives the gates
}

// channelIndices caches, per output kind, which hardware channel (if
// any) carries it; -1 means unmapped. Computed once per ChannelMap in
// NewProcessor rather than scanned every block.
type channelIndices struct {
	speed, angle, accel   int
	position, crossfader  int
	gateA, gateB, pulse   int
}

func findChannel(m ChannelMap, kind LogicalOutputKind) int {
	for ch, k := range m {
		if k == kind {
			return ch
		}
	}
	return -1
}

func newChannelIndices(m ChannelMap) channelIndices {
	return channelIndices{
		speed:      findChannel(m, OutputPlatterSpeed),
		angle:      findChannel(m, OutputPlatterAngle),
		accel:      findChannel(m, OutputPlatterAccel),
		position:   findChannel(m, OutputSamplePosition),
		crossfader: findChannel(m, OutputCrossfader),
		gateA:      findChannel(m, OutputGateA),
		gateB:      findChannel(m, OutputGateB),
		pulse:      findChannel(m, OutputDirectionPulse),
	}
}

func (c channelIndices) none() bool {
	return c.speed < 0 && c.angle < 0 && c.accel < 0 && c.position < 0 &&
		c.crossfader < 0 && c.gateA < 0 && c.gateB < 0 && c.pulse < 0
}

// filter is the single-pole lowpass smoothing platter speed before it
// reaches the CV output, matching cv_engine.cpp's calc_lowpass_alpha.
type filter struct {
	alpha    float64
	smoothed float64
}

func newFilter(sampleRate int, cutoffHz float64) filter {
	omega := 2 * math.Pi * cutoffHz / float64(sampleRate)
	return filter{alpha: 1 - math.Exp(-omega)}
}

func (f *filter) step(target float64) float64 {
	f.smoothed = f.alpha*target + (1-f.alpha)*f.smoothed
	return f.smoothed
}

// Processor holds the per-block-derived CV values and filter/pulse
// state across calls to Process; one Processor per audio interface with
// a CV channel map.
type Processor struct {
	channels channelIndices
	f        filter

	speedRaw      float64
	angle         float64
	acceleration  float64
	direction     int
	prevDirection int

	samplePosition float64
	faderPosition  float64
	scratchOpen    bool
	beatOpen       bool

	pulseDuration   int
	pulseCountdown  int
}

// NewProcessor builds a Processor for sampleRate, with channels mapped
// per m. An empty or all-audio m makes Process a no-op.
func NewProcessor(sampleRate int, m ChannelMap) *Processor {
	return &Processor{
		channels:      newChannelIndices(m),
		f:             newFilter(sampleRate, defaultCutoffHz),
		pulseDuration: int(pulseDurationMs * float64(sampleRate) / 1000.0),
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Update recomputes the processor's per-block CV values from one
// ControllerInput snapshot (cv_engine_update's per-block refresh: call
// once per audio period, before Process).
func (p *Processor) Update(in ControllerInput) {
	prevSpeed := p.speedRaw

	speed := clamp(in.Pitch, -1, 1)
	p.speedRaw = speed
	p.angle = float64(in.EncoderAngle) * encoderScale
	p.acceleration = clamp((speed-prevSpeed)*accelScale, -1, 1)

	direction := 0
	switch {
	case speed > directionThreshold:
		direction = 1
	case speed < -directionThreshold:
		direction = -1
	}
	p.direction = direction
	if p.prevDirection != 0 && direction != 0 && p.prevDirection != direction {
		p.pulseCountdown = p.pulseDuration
	}
	p.prevDirection = direction

	if in.SampleLength > 0 {
		p.samplePosition = clamp(float64(in.SamplePosition)/float64(in.SampleLength), 0, 1)
	} else {
		p.samplePosition = 0
	}

	p.faderPosition = clamp(in.FaderVolume, 0, 1)
	p.scratchOpen = in.CrossfaderTarget > gateOpenThreshold
	p.beatOpen = in.CrossfaderTarget < gateOpenThreshold
}

// Process writes one frame's worth of CV samples into the output
// channels this Processor was mapped to, leaving every other channel in
// frame untouched (the engine is responsible for having already written
// the audio-mapped channels). frame is one interleaved S16 frame of
// numChannels samples; Process is called once per output frame, in
// frame order, so the lowpass filter and pulse countdown advance
// sample-by-sample exactly as cv_engine_process does.
func (p *Processor) Process(frame []int16, numChannels int) {
	if p.channels.none() {
		return
	}
	c := p.channels

	filtSpeed := p.f.step(p.speedRaw)

	if c.speed >= 0 && c.speed < numChannels {
		frame[c.speed] = int16(filtSpeed * bipolarScale)
	}
	if c.angle >= 0 && c.angle < numChannels {
		frame[c.angle] = int16(p.angle * unipolarScale)
	}
	if c.accel >= 0 && c.accel < numChannels {
		frame[c.accel] = int16(p.acceleration * bipolarScale)
	}
	if c.position >= 0 && c.position < numChannels {
		frame[c.position] = int16(p.samplePosition * unipolarScale)
	}
	if c.crossfader >= 0 && c.crossfader < numChannels {
		frame[c.crossfader] = int16(p.faderPosition * unipolarScale)
	}
	if c.gateA >= 0 && c.gateA < numChannels {
		frame[c.gateA] = gateValue(p.scratchOpen)
	}
	if c.gateB >= 0 && c.gateB < numChannels {
		frame[c.gateB] = gateValue(p.beatOpen)
	}
	if c.pulse >= 0 && c.pulse < numChannels {
		frame[c.pulse] = gateValue(p.pulseCountdown > 0)
		if p.pulseCountdown > 0 {
			p.pulseCountdown--
		}
	}
}

func gateValue(open bool) int16 {
	if open {
		return gateHigh
	}
	return gateLow
}
