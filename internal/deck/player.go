package deck

import (
	"sync/atomic"

	"github.com/lodsb/scratchd/internal/track"
)

// Player owns the current Track reference and the spinlock guarding its
// pointer swap (spec.md §5: "guarded by a spinlock held only for the
// length of a pointer swap. The RT thread uses try_lock; if it fails for
// both decks the engine produces silence for that period").
type Player struct {
	locked int32 // CAS-based spinlock flag
	tr     *track.Track
}

// TryLock attempts to acquire the spinlock without blocking. Callers
// must call Unlock on success.
func (p *Player) TryLock() bool {
	return atomic.CompareAndSwapInt32(&p.locked, 0, 1)
}

// Unlock releases the spinlock.
func (p *Player) Unlock() {
	atomic.StoreInt32(&p.locked, 0)
}

// Track returns the current track pointer. Only safe to call while
// holding the lock, or from the non-RT thread that owns swaps.
func (p *Player) Track() *track.Track { return p.tr }

// Swap replaces the current track, returning the previous one (which the
// caller is responsible for releasing once it's no longer needed by any
// reader). Acquires the spinlock itself.
func (p *Player) Swap(next *track.Track) *track.Track {
	for !p.TryLock() {
		// Uncontended in practice: besides the owning deck's non-RT
		// callers, only the RT engine and the CV output callback touch
		// this lock, and both only ever need a read, not a swap.
	}
	old := p.tr
	p.tr = next
	p.Unlock()
	return old
}
