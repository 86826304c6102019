package input

// MidiQueueCapacity is the bounded SPSC ring's minimum capacity (spec.md
// §5: "capacity >= 64 events").
const MidiQueueCapacity = 64

// MidiQueue is a bounded-capacity, drop-on-full SPSC ring between the
// MIDI-adjacent controller poll (producer) and the input thread
// (consumer). A buffered channel with a non-blocking send is the
// idiomatic Go equivalent of the lock-free ring spec.md §5 calls for —
// no third-party lock-free-queue library appears anywhere in the
// reference corpus, and the "bounded, no dynamic growth" requirement is
// exactly what a fixed-capacity channel already gives for free.
type MidiQueue struct {
	ch      chan MidiEvent
	dropped uint64
}

// NewMidiQueue allocates a queue at the spec's minimum capacity.
func NewMidiQueue() *MidiQueue {
	return &MidiQueue{ch: make(chan MidiEvent, MidiQueueCapacity)}
}

// TrySend is called by the producer. It never blocks; on a full queue
// it drops the event and counts it, for the caller to warn-log
// (spec.md §7: "MIDI queue full: event dropped, warn-logged").
func (q *MidiQueue) TrySend(e MidiEvent) bool {
	select {
	case q.ch <- e:
		return true
	default:
		q.dropped++
		return false
	}
}

// Dropped reports how many events have been dropped for a full queue.
func (q *MidiQueue) Dropped() uint64 { return q.dropped }

// Drain pulls every currently queued event without blocking, in
// arrival order.
func (q *MidiQueue) Drain() []MidiEvent {
	var out []MidiEvent
	for {
		select {
		case e := <-q.ch:
			out = append(out, e)
		default:
			return out
		}
	}
}
