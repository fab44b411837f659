package goevent

import (
	"time"

	"github.com/dgwynne/goevent/internal/dheap"
	"github.com/dgwynne/goevent/internal/dlist"
)

// Callback is invoked once per delivery of an Event. ident is the
// file descriptor, signal number, or -1 for a timer; fires is the
// subset of {READ, WRITE, TIMEOUT, SIGNAL} that triggered this
// delivery; arg is whatever was passed to Set.
type Callback func(ident int, fires Flag, arg interface{})

// Event is a single registration of interest in a Base: I/O
// readiness, a signal, or a timeout. Storage is owned by the caller;
// a zero Event is valid to Set but not to Add until Set has run.
//
// Event participates in up to three intrusive containers at once (the
// registration list, the timeout heap, and the fire queue), so it
// carries one link field per container rather than being wrapped by
// each. listElem is shared between the I/O list and per-signal lists
// since an event is never both kinds at once.
type Event struct {
	base *Base

	ident    int
	callback Callback
	arg      interface{}

	flags Flag
	fires Flag

	deadline time.Time

	cookie interface{}

	listElem dlist.Elem[Event]
	fireElem dlist.Elem[Event]
	heapElem dheap.Elem
}

// Link lets Event participate in a Base's timeout heap.
func (e *Event) Link() *dheap.Elem { return &e.heapElem }

func listLink(e *Event) *dlist.Elem[Event] { return &e.listElem }
func fireLink(e *Event) *dlist.Elem[Event] { return &e.fireElem }

func heapLess(a, b *Event) bool { return a.deadline.Before(b.deadline) }

// Initialized reports whether Set has stamped this event.
func (e *Event) Initialized() bool { return e.flags.has(flagInitialized) }

// Set stamps ev as an IO-kind event on fd, watching the conditions in
// conds (any combination of FlagRead, FlagWrite, FlagPersist). It may
// be called again on an event that is not currently registered to
// retarget it.
func (ev *Event) Set(base *Base, fd int, conds Flag, cb Callback, arg interface{}) {
	ev.base = base
	ev.ident = fd
	ev.callback = cb
	ev.arg = arg
	ev.flags = flagInitialized | (conds & (FlagRead | FlagWrite | FlagPersist))
	ev.fires = 0
}

// Add registers ev with the base's poller (if not already registered)
// and, if timeout is non-nil, (re)inserts it into the timeout heap
// keyed by now+*timeout. Adding an already-registered event with a nil
// timeout is a no-op.
func (ev *Event) Add(timeout *time.Duration) error {
	if !ev.Initialized() {
		return ErrNotInitialized
	}
	base := ev.base

	var deadline time.Time
	if timeout != nil {
		deadline = time.Now().Add(*timeout)
	}

	if ev.flags.has(flagOnList) && timeout == nil {
		return nil
	}

	if !ev.flags.has(flagOnList) {
		cookie, err := base.poller.AddIO(ev.ident,
			ev.flags.has(FlagRead), ev.flags.has(FlagWrite), ev.flags.has(FlagPersist), ev)
		if err != nil {
			return errWrap(err, "add io")
		}
		ev.cookie = cookie
		base.ioList.PushBack(ev)
		base.ioListLen++
		base.eventCount++
		ev.flags |= flagOnList
	} else if timeout != nil && ev.flags.has(flagOnHeap) {
		base.heap.Remove(ev)
	}

	if timeout != nil {
		ev.deadline = deadline
		base.heap.Insert(ev)
		ev.flags |= flagOnHeap
	}

	return nil
}

// Del unregisters ev from whichever of the poller, the I/O list, the
// timeout heap and the fire queue it currently belongs to. It is
// idempotent.
func (ev *Event) Del() error {
	base := ev.base
	if base == nil {
		return nil
	}

	if ev.flags.has(flagOnList) {
		if err := base.poller.DelIO(ev.cookie); err != nil {
			return errWrap(err, "del io")
		}
		base.ioList.Remove(ev)
		base.ioListLen--
		base.eventCount--
	}
	if ev.flags.has(flagOnHeap) {
		base.heap.Remove(ev)
		// a timer-kind event is never ON_LIST, so its one eventCount
		// credit lives entirely on its heap membership; a combined
		// IO/signal-plus-timeout event already paid that decrement
		// above when it came off the list, so it must not pay again
		// here.
		if !ev.flags.has(flagOnList) {
			base.eventCount--
		}
	}
	if ev.flags.has(flagOnFire) {
		base.fireQueue.Remove(ev)
	}
	ev.flags &^= flagOnList | flagOnHeap | flagOnFire
	ev.cookie = nil
	return nil
}

// Pending reports the intersection of mask with ev's currently
// pending conditions. If mask includes FlagTimeout and ev is on the
// heap, the second return value is the absolute wall-clock deadline;
// it is the zero Time otherwise.
func (ev *Event) Pending(mask Flag) (Flag, time.Time) {
	var pending Flag
	if ev.flags.has(flagOnHeap) && mask.has(FlagTimeout) {
		pending |= FlagTimeout
	}
	if ev.flags.has(flagOnList) {
		pending |= ev.flags & mask & pendingMask
	}

	var out time.Time
	if pending.has(FlagTimeout) {
		out = ev.deadline.Round(0)
	}
	return pending, out
}
