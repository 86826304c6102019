// Package audiohw adapts the AudioEngine's realtime Process callback to
// a real soundcard via PortAudio (spec.md §4.1's AudioHardware port),
// replacing the teacher's direct ALSA cgo bindings (src/audio.go) with
// the pure-Go gordonklaus/portaudio client used elsewhere in the
// reference corpus for duplex low-latency streaming.
package audiohw

import (
	"encoding/binary"
	"fmt"

	"github.com/gordonklaus/portaudio"

	"github.com/lodsb/scratchd/internal/engine"
	"github.com/lodsb/scratchd/internal/track"
)

// Config selects the duplex stream's devices and period size. A
// negative device ID selects PortAudio's system default for that
// direction, matching the original firmware's "just open the card ALSA
// calls default" behavior when no specific device is configured.
type Config struct {
	SampleRate      float64
	FramesPerBuffer int
	InputDeviceID   int
	OutputDeviceID  int
}

// DefaultConfig mirrors engine.DefaultSettings' sample rate and a period
// size small enough for scratch-latency (~5.3ms at 48kHz).
func DefaultConfig() Config {
	return Config{SampleRate: 48000, FramesPerBuffer: 256, InputDeviceID: -1, OutputDeviceID: -1}
}

// Hardware owns one open duplex PortAudio stream driving an AudioEngine.
// The stream callback is the only realtime-audio-thread code in this
// package; everything else (Open/Start/Stop/Close) runs on the main
// thread per spec.md §7's "RT-safe vs. not" split.
type Hardware struct {
	cfg    Config
	engine *engine.AudioEngine
	stream *portaudio.Stream

	capture  []track.Frame
	playback []byte
}

// Open initializes the PortAudio client, resolves the configured input
// and output devices, and opens (but does not start) a duplex int16
// stereo stream. The engine must already be constructed with
// engine.FormatS16 — PortAudio's Go binding infers its wire format from
// the Go slice type passed to OpenStream, so int16 is the only format
// this port can drive live hardware with; the other SampleFormat
// variants (S24/S32/Float32) exist in internal/engine for file-oriented
// writers, not for this live port (see DESIGN.md).
func Open(cfg Config, eng *engine.AudioEngine) (*Hardware, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("audiohw: portaudio init: %w", err)
	}

	devices, err := portaudio.Devices()
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("audiohw: enumerate devices: %w", err)
	}

	inDev, err := resolveDevice(devices, cfg.InputDeviceID, portaudio.DefaultInputDevice)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("audiohw: input device: %w", err)
	}
	outDev, err := resolveDevice(devices, cfg.OutputDeviceID, portaudio.DefaultOutputDevice)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("audiohw: output device: %w", err)
	}

	h := &Hardware{cfg: cfg, engine: eng}
	h.capture = make([]track.Frame, cfg.FramesPerBuffer)
	h.playback = make([]byte, cfg.FramesPerBuffer*2*2) // stereo * int16

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   inDev,
			Channels: 2,
			Latency:  inDev.DefaultLowInputLatency,
		},
		Output: portaudio.StreamDeviceParameters{
			Device:   outDev,
			Channels: 2,
			Latency:  outDev.DefaultLowOutputLatency,
		},
		SampleRate:      cfg.SampleRate,
		FramesPerBuffer: cfg.FramesPerBuffer,
	}

	stream, err := portaudio.OpenStream(params, h.callback)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("audiohw: open stream: %w", err)
	}
	h.stream = stream
	return h, nil
}

// callback is invoked on PortAudio's realtime thread once per period; it
// deinterleaves the captured int16 frames, calls AudioEngine.Process,
// and copies the produced S16 bytes back out as interleaved int16.
func (h *Hardware) callback(in, out []int16) {
	n := deinterleaveCapture(in, h.capture)

	need := len(out) * 2
	if cap(h.playback) < need {
		h.playback = make([]byte, need)
	}
	h.playback = h.playback[:need]

	h.engine.Process(h.capture[:n], h.playback)

	interleavePlayback(h.playback, out)
}

// deinterleaveCapture copies as many stereo frames from in (interleaved
// L,R int16) into dst as fit, returning the count copied.
func deinterleaveCapture(in []int16, dst []track.Frame) int {
	n := len(in) / 2
	if n > len(dst) {
		n = len(dst)
	}
	for i := 0; i < n; i++ {
		dst[i] = track.Frame{L: in[2*i], R: in[2*i+1]}
	}
	return n
}

// interleavePlayback converts src, the little-endian S16 stereo bytes
// produced by a FormatS16 engine, into out's interleaved int16 samples.
func interleavePlayback(src []byte, out []int16) {
	for i := range out {
		if (2*i)+2 > len(src) {
			out[i] = 0
			continue
		}
		out[i] = int16(binary.LittleEndian.Uint16(src[2*i:]))
	}
}

// Start begins streaming.
func (h *Hardware) Start() error { return h.stream.Start() }

// Stop halts streaming without closing the device.
func (h *Hardware) Stop() error { return h.stream.Stop() }

// Close stops (if needed) and releases the stream and the PortAudio
// client.
func (h *Hardware) Close() error {
	err := h.stream.Close()
	portaudio.Terminate()
	return err
}

func resolveDevice(devices []*portaudio.DeviceInfo, id int, fallback func() (*portaudio.DeviceInfo, error)) (*portaudio.DeviceInfo, error) {
	if id >= 0 && id < len(devices) {
		return devices[id], nil
	}
	return fallback()
}
