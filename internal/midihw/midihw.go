// Package midihw reads raw MIDI bytes off an ALSA rawmidi character
// device (/dev/snd/midiC*D*) and parses them into input.MidiEvent
// values pushed onto an input.MidiQueue (spec.md §5). It is adapted
// from the teacher's src/serial_port.go: pkg/term.Open in raw mode is
// reused verbatim as the character-device I/O primitive, substituted
// for serial_port.go's TTY use case; the byte-stream-to-message parser
// itself is new, since Direwolf never speaks MIDI.
package midihw

import (
	"github.com/jochenvg/go-udev"
	"github.com/pkg/term"

	"github.com/lodsb/scratchd/internal/input"
)

// ShiftQuery reports whether shift is currently latched, so each parsed
// event can be tagged the instant it completes (spec.md §4.6: shift is a
// global dispatcher flag, not per-mapping state).
type ShiftQuery func() bool

// Discover returns the device paths of every rawmidi character device
// currently present, using go-udev's "sound" subsystem enumeration
// (adapted from the expander/PIC discovery idiom in
// internal/platforminputs, applied here to USB MIDI controllers).
func Discover() ([]string, error) {
	ctx := udev.Udev{}
	enum := ctx.NewEnumerate()
	if err := enum.AddMatchSubsystem("sound"); err != nil {
		return nil, err
	}
	devices, err := enum.Devices()
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, d := range devices {
		node := d.Devnode()
		if node == "" {
			continue
		}
		if isRawMIDINode(node) {
			paths = append(paths, node)
		}
	}
	return paths, nil
}

func isRawMIDINode(devnode string) bool {
	base := devnode
	for i := len(base) - 1; i >= 0; i-- {
		if base[i] == '/' {
			base = base[i+1:]
			break
		}
	}
	return len(base) > 5 && base[:5] == "midiC"
}

// Device is one open rawmidi character device feeding a MidiQueue.
type Device struct {
	fd    *term.Term
	queue *input.MidiQueue
	shift ShiftQuery
	stop  chan struct{}

	parser parser
}

// Open opens devicePath in raw mode (no baud rate applies to a
// character device, unlike serial_port_open's TTY case) and starts a
// background goroutine parsing MIDI bytes into queue.
func Open(devicePath string, queue *input.MidiQueue, shift ShiftQuery) (*Device, error) {
	fd, err := term.Open(devicePath, term.RawMode)
	if err != nil {
		return nil, err
	}
	d := &Device{fd: fd, queue: queue, shift: shift, stop: make(chan struct{})}
	go d.run()
	return d, nil
}

func (d *Device) run() {
	buf := make([]byte, 256)
	for {
		select {
		case <-d.stop:
			return
		default:
		}
		n, err := d.fd.Read(buf)
		if err != nil {
			return
		}
		for _, b := range buf[:n] {
			if ev, ok := d.parser.Feed(b); ok {
				shifted := false
				if d.shift != nil {
					shifted = d.shift()
				}
				ev.Shifted = shifted
				d.queue.TrySend(ev)
			}
		}
	}
}

// Close stops the read loop and closes the device.
func (d *Device) Close() error {
	close(d.stop)
	return d.fd.Close()
}

// parser reassembles a raw MIDI byte stream into 3-byte channel-voice
// messages, honoring running status (a status byte is only re-sent when
// the message type changes) and skipping System Realtime bytes
// (0xF8-0xFF), which may appear mid-message and must not disturb it.
type parser struct {
	status    byte
	data      [2]byte
	dataCount int
	wantBytes int
}

// dataBytesFor reports how many data bytes follow a channel-voice status
// byte (Program Change and Channel Pressure take one; everything else
// relevant to this controller's mappings takes two).
func dataBytesFor(status byte) int {
	switch status & 0xF0 {
	case 0xC0, 0xD0:
		return 1
	default:
		return 2
	}
}

// Feed consumes one byte and reports a completed event, if this byte
// finished one.
func (p *parser) Feed(b byte) (input.MidiEvent, bool) {
	switch {
	case b >= 0xF8:
		return input.MidiEvent{}, false // system realtime, transparent to running status
	case b&0x80 != 0:
		p.status = b
		p.dataCount = 0
		p.wantBytes = dataBytesFor(b)
		return input.MidiEvent{}, false
	case p.status == 0:
		return input.MidiEvent{}, false // data byte with no status yet; drop
	default:
		p.data[p.dataCount] = b
		p.dataCount++
		if p.dataCount < p.wantBytes {
			return input.MidiEvent{}, false
		}
		ev := input.MidiEvent{Status: p.status, Data1: p.data[0]}
		if p.wantBytes == 2 {
			ev.Data2 = p.data[1]
		}
		p.dataCount = 0
		return ev, true
	}
}
