package engine

import (
	"math"
	"time"

	"github.com/lodsb/scratchd/internal/deck"
	"github.com/lodsb/scratchd/internal/track"
)

const scratchCeiling = 5.0
const slipmatCeiling = 20.0

// wrapSigned wraps v into [-span/2, span/2], the "shortest signed path"
// spec for position differences on a looping track.
func wrapSigned(v, span float64) float64 {
	if span <= 0 {
		return v
	}
	v = math.Mod(v, span)
	if v > span/2 {
		v -= span
	} else if v < -span/2 {
		v += span
	}
	return v
}

func clampAbs(v, limit float64) float64 {
	if v > limit {
		return limit
	}
	if v < -limit {
		return -limit
	}
	return v
}

// perDeckPlan is the result of steps 1-7 for one deck: everything the
// shared inner loop needs to advance that deck sample-by-sample.
type perDeckPlan struct {
	tr         *track.Track
	trackRate  float64
	trackLen   int64
	samplePos  float64
	startPitch float64
	pitchStep  float64
	startVol   float64
	volStep    float64
	muted      bool
}

// plan runs steps 1-7 for deck index i and returns the per-sample
// gradients the inner loop will walk.
func (e *AudioEngine) plan(i int, samples int) perDeckPlan {
	slot := e.decks[i]
	in := slot.d.Input
	st := &slot.state

	// Step 1: one-shot inputs + source selection.
	posOffset := in.PositionOffset
	if in.SeekTo >= 0 {
		st.Position = in.SeekTo
		posOffset = in.PositionOffset
		in.SeekTo = deck.NoSeek
	}
	st.PositionOffset = posOffset
	st.Source = in.Source

	var tr *track.Track
	if in.Source == deck.SourceLoop && slot.loop.HasLoop() {
		tr = slot.loop.PeekTrack()
	} else if slot.d.Player.TryLock() {
		tr = slot.d.Player.Track()
		slot.d.Player.Unlock()
	}

	var trackRate float64 = float64(e.settings.SampleRate)
	var trackLen int64
	if tr != nil {
		trackRate = float64(tr.Rate())
		trackLen = tr.Length()
	}

	// Step 2: target pitch / external-change detection.
	externalSpeed := in.PitchFader * in.PitchNote * in.PitchBend
	externalChanged := math.Abs(externalSpeed-st.LastExternal) > 0.01
	st.LastExternal = externalSpeed

	// Step 3: motor model.
	if in.Stopped {
		st.MotorSpeed = math.Max(0, st.MotorSpeed-float64(samples)/(e.settings.BrakeSpeed*10))
	} else {
		st.MotorSpeed = externalSpeed
	}

	// Step 4: pitch source selection.
	released := in.JustPlay || (!in.Touched && !st.PrevTouched)
	var target float64
	if released {
		step := float64(samples) / e.settings.Slippiness
		p := st.Pitch
		if p < st.MotorSpeed {
			p = math.Min(p+step, st.MotorSpeed)
		} else {
			p = math.Max(p-step, st.MotorSpeed)
		}
		target = clampAbs(p, slipmatCeiling)
	} else {
		trackLenSec := 0.0
		if trackRate > 0 {
			trackLenSec = float64(trackLen) / trackRate
		}
		diff := wrapSigned(st.Position-in.TargetPosition, trackLenSec)
		target = clampAbs(-40*diff, scratchCeiling)
	}

	// Step 5: smoothing.
	var filteredPitch float64
	if externalChanged && !in.Touched {
		filteredPitch = externalSpeed
		st.Pitch = externalSpeed
	} else {
		filteredPitch = 0.1*target + 0.9*st.Pitch
	}

	// Step 6: volume ramp.
	faderStep := float64(samples) / (e.settings.FaderDecaySeconds * float64(e.settings.SampleRate))
	if math.Abs(in.Crossfader-slot.faderCurrent) <= faderStep {
		slot.faderCurrent = in.Crossfader
	} else if slot.faderCurrent < in.Crossfader {
		slot.faderCurrent += faderStep
	} else {
		slot.faderCurrent -= faderStep
	}

	// Volume uses st.Pitch, not filteredPitch: in the snap branch above
	// st.Pitch was already overwritten with the new value, but in the
	// normal IIR-smoothing branch st.Pitch is still last period's value
	// until Step 9 publishes filteredPitch — the volume ramp is meant
	// to track the engine's currently-published pitch, not the value
	// about to be published (audio_engine.cpp's target_volume computation
	// runs after the snap assignment but reads state->pitch either way).
	targetVolume := math.Abs(st.Pitch) * e.settings.BaseVolume * slot.faderCurrent * in.VolumeKnob
	if targetVolume > e.settings.MaxVolume {
		targetVolume = e.settings.MaxVolume
	}
	muted := e.IsRecording(i) && !slot.loop.HasLoop()
	if muted {
		targetVolume = 0
	}

	// Step 7: per-sample gradients.
	samplePos := (st.Position - st.PositionOffset) * trackRate
	if trackLen > 0 {
		samplePos = math.Mod(samplePos, float64(trackLen))
		if samplePos < 0 {
			samplePos += float64(trackLen)
		}
	}

	plan := perDeckPlan{
		tr:         tr,
		trackRate:  trackRate,
		trackLen:   trackLen,
		samplePos:  samplePos,
		startPitch: st.Pitch,
		pitchStep:  (filteredPitch - st.Pitch) / float64(samples),
		startVol:   st.Volume,
		volStep:    (targetVolume - st.Volume) / float64(samples),
		muted:      muted,
	}

	// Stash for step 9 (publish).
	st.Fader = slot.faderCurrent
	st.Recording = e.IsRecording(i)
	st.HasLoop = slot.loop.HasLoop()
	st.PrevTouched = in.Touched

	// Carry the values step 9 needs once the inner loop has run.
	slot.pendingFilteredPitch = filteredPitch
	slot.pendingTargetVolume = targetVolume

	return plan
}

// Process runs one realtime period: computes per-deck pitch/volume
// trajectories, mixes both decks sample-by-sample through the selected
// interpolation kernel, captures into the recording deck's loop buffer,
// and writes the result into playback. capture may be nil (no input
// device, or no frames available this period); playback must already be
// sized for frames*channels*writer.BytesPerSample().
func (e *AudioEngine) Process(capture []track.Frame, playback []byte) {
	start := time.Now()

	channels := e.settings.Channels
	if channels < 2 {
		channels = 2
	}
	bps := e.writer.BytesPerSample()
	frameBytes := bps * channels
	if frameBytes == 0 {
		return
	}
	frames := len(playback) / frameBytes
	if frames == 0 {
		return
	}
	defer e.recordStats(start, frames)

	plans := [2]perDeckPlan{e.plan(0, frames), e.plan(1, frames)}

	recordingDeck := int(e.recordingDeck)

	for i := 0; i < frames; i++ {
		var mixL, mixR float64

		for d := 0; d < 2; d++ {
			p := &plans[d]
			pitch := p.startPitch + p.pitchStep*float64(i)
			vol := p.startVol + p.volStep*float64(i)

			if p.tr != nil && p.trackLen > 0 {
				s := int64(math.Floor(p.samplePos))
				f := p.samplePos - float64(s)
				st := e.kernel.At(p.tr, s, f, pitch)
				const i16Scale = 1.0 / 32768.0
				mixL += st.L * i16Scale * vol
				mixR += st.R * i16Scale * vol
			}

			p.samplePos += pitch * p.trackRate / float64(e.settings.SampleRate)
			if p.trackLen > 0 {
				for p.samplePos < 0 {
					p.samplePos += float64(p.trackLen)
				}
				for p.samplePos >= float64(p.trackLen) {
					p.samplePos -= float64(p.trackLen)
				}
			}
		}

		// Step 10: capture / monitoring. Captured frames append into the
		// recording deck's loop and, independently, get mixed live into
		// the playback at that deck's current crossfader gain.
		if recordingDeck >= 0 && capture != nil && i < len(capture) {
			slot := e.decks[recordingDeck]
			slot.loop.Write(capture[i : i+1])

			const i16Scale = 1.0 / 32768.0
			gain := slot.faderCurrent * i16Scale
			mixL += float64(capture[i].L) * gain
			mixR += float64(capture[i].R) * gain
		}

		frameOff := i * frameBytes
		e.writer.WriteSample(playback[frameOff:], mixL, e.dither)
		e.writer.WriteSample(playback[frameOff+bps:], mixR, e.dither)
		for c := 2; c < channels; c++ {
			e.writer.WriteSample(playback[frameOff+c*bps:], 0, e.dither)
		}
	}

	// Step 9: publish final per-deck state.
	for d := 0; d < 2; d++ {
		slot := e.decks[d]
		st := &slot.state
		p := &plans[d]
		if p.trackRate > 0 {
			st.Position = st.PositionOffset + p.samplePos/p.trackRate
		}
		st.Pitch = slot.pendingFilteredPitch
		st.Volume = slot.pendingTargetVolume
	}
}
