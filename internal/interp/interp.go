// Package interp implements the two interpolation kernels the audio
// engine may select between: a 4-tap Catmull-Rom cubic and a 16-tap
// windowed-sinc with phase-interpolated, bandwidth-selected tables. Both
// consume a Track's interleaved i16 samples and return a stereo float
// sample at a fractional position.
package interp

import (
	"math"

	"github.com/lodsb/scratchd/internal/track"
)

// Stereo is one interpolated sample pair in floating point.
type Stereo struct {
	L, R float64
}

// Kernel is the trait every interpolation policy implements. It replaces
// the source's C++ template specialization over InterpolationPolicy
// with an ordinary interface: dispatch happens once per buffer in the
// engine, and the inner per-sample loop calls a single, monomorphic
// implementation.
type Kernel interface {
	// At returns the interpolated stereo sample for position s+f on tr,
	// where f is the fractional part in [0, 1) and pitch is the current
	// playback pitch (used by Sinc to pick a bandwidth-limited table;
	// Cubic ignores it).
	At(tr *track.Track, s int64, f float64, pitch float64) Stereo
}

// window returns the len(buf) consecutive frames starting at the
// track-relative index lo, using the fast direct-access path when
// possible and otherwise filling the caller's buf by per-sample fetch.
func window(tr *track.Track, lo int64, buf []track.Frame) []track.Frame {
	if direct, ok := tr.DirectWindow(lo, len(buf)); ok {
		return direct
	}
	for i := range buf {
		buf[i] = tr.FrameAt(lo + int64(i))
	}
	return buf
}

// Cubic is the 4-tap Catmull-Rom kernel (spec.md §4.3).
type Cubic struct{}

func (Cubic) At(tr *track.Track, s int64, f float64, _ float64) Stereo {
	// Taps at s-1, s, s+1, s+2.
	var buf [4]track.Frame
	w := window(tr, s-1, buf[:])
	t0L, t1L, t2L, t3L := float64(w[0].L), float64(w[1].L), float64(w[2].L), float64(w[3].L)
	t0R, t1R, t2R, t3R := float64(w[0].R), float64(w[1].R), float64(w[2].R), float64(w[3].R)

	interp := func(t0, t1, t2, t3, f float64) float64 {
		a0 := 0.5 * (-t0 + 3*t1 - 3*t2 + t3)
		a1 := 0.5 * (2*t0 - 5*t1 + 4*t2 - t3)
		a2 := 0.5 * (-t0 + t2)
		a3 := t1
		return ((a0*f+a1)*f+a2)*f + a3
	}

	return Stereo{
		L: interp(t0L, t1L, t2L, t3L, f),
		R: interp(t0R, t1R, t2R, t3R, f),
	}
}

const (
	// Taps is the sinc kernel's window width.
	Taps = 16
	// Phases is the number of sub-sample table positions (P in spec.md §4.3).
	Phases = 256
	// Bandwidths is the number of precomputed cutoff-scaled coefficient
	// sets, selected by |pitch|.
	Bandwidths = 8
)

// Sinc is the 16-tap windowed-sinc kernel with phase-interpolated,
// bandwidth-selected coefficient tables (spec.md §4.3).
type Sinc struct {
	// table[bandwidth][phase][tap]
	table [Bandwidths][Phases + 1][Taps]float64
}

// NewSinc builds the offline-generated coefficient tables. Bandwidth b
// scales the kernel's cutoff by 1/(b's pitch ceiling), so that higher
// playback pitches select a progressively lower cutoff and avoid
// aliasing; bandwidth 0 is the full-bandwidth (|pitch| <= 1) kernel.
func NewSinc() *Sinc {
	s := &Sinc{}
	for b := 0; b < Bandwidths; b++ {
		cutoff := 1.0
		if b > 0 {
			// Bandwidth index b corresponds to pitch ceiling (b+1);
			// scale the cutoff down proportionally for anti-aliasing.
			cutoff = 1.0 / float64(b+1)
		}
		for p := 0; p <= Phases; p++ {
			frac := float64(p) / float64(Phases)
			s.table[b][p] = sincCoefficients(frac, cutoff)
		}
	}
	return s
}

// sincCoefficients generates the Taps-length, Blackman-windowed sinc
// kernel centred on fractional offset frac, band-limited to cutoff (1.0
// = Nyquist).
func sincCoefficients(frac float64, cutoff float64) [Taps]float64 {
	var coeffs [Taps]float64
	const half = Taps / 2
	sum := 0.0
	for i := 0; i < Taps; i++ {
		// Tap i sits at integer offset (i - half + 1) from the floor
		// sample; x is its distance from the fractional position.
		x := float64(i-half+1) - frac
		var sinc float64
		if math.Abs(x) < 1e-9 {
			sinc = cutoff
		} else {
			arg := math.Pi * cutoff * x
			sinc = math.Sin(arg) / (math.Pi * x)
		}
		// Blackman window over the tap span.
		wpos := (float64(i) + 0.5) / Taps
		window := 0.42 - 0.5*math.Cos(2*math.Pi*wpos) + 0.08*math.Cos(4*math.Pi*wpos)
		coeffs[i] = sinc * window
		sum += coeffs[i]
	}
	if sum != 0 {
		for i := range coeffs {
			coeffs[i] /= sum
		}
	}
	return coeffs
}

// bandwidthForPitch maps |pitch| to a table index: higher pitch selects
// a lower-cutoff (higher-index) table for anti-aliasing.
func bandwidthForPitch(pitch float64) int {
	ap := math.Abs(pitch)
	if ap <= 1 {
		return 0
	}
	b := int(ap)
	if b >= Bandwidths {
		b = Bandwidths - 1
	}
	return b
}

func (s *Sinc) At(tr *track.Track, sPos int64, f float64, pitch float64) Stereo {
	b := bandwidthForPitch(pitch)
	p := f * float64(Phases)
	phase0 := int(p)
	w1 := p - float64(phase0)
	w0 := 1 - w1
	if phase0 >= Phases {
		phase0 = Phases - 1
		w0, w1 = 1, 0
	}

	var kernel [Taps]float64
	k0 := s.table[b][phase0]
	k1 := s.table[b][phase0+1]
	for i := 0; i < Taps; i++ {
		kernel[i] = k0[i]*w0 + k1[i]*w1
	}

	const half = Taps / 2
	var buf [Taps]track.Frame
	win := window(tr, sPos-half+1, buf[:])

	var l, r float64
	for i, fr := range win {
		l += float64(fr.L) * kernel[i]
		r += float64(fr.R) * kernel[i]
	}
	return Stereo{L: l, R: r}
}
