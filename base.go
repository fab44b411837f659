package goevent

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dgwynne/goevent/internal/dheap"
	"github.com/dgwynne/goevent/internal/dlist"
	"github.com/dgwynne/goevent/internal/netpoll"
)

// NSIG bounds the signal numbers this library can track; it is one
// more than the highest real-time signal number on Linux (64), which
// is the widest range among the platforms the two pollers target.
const NSIG = 65

// Base owns the timeout heap, the per-signal and I/O registration
// lists, the fire queue, and the poller driving them. Registration,
// dispatch and callback delivery all run on whichever goroutine calls
// Dispatch; Base carries no locks because nothing else is meant to
// touch it concurrently.
type Base struct {
	heap *dheap.Heap[Event, *Event]

	signalLists [NSIG]*dlist.List[Event]
	ioList      *dlist.List[Event]
	// ioListLen mirrors the original's evb_list_len: dlist.List has no
	// O(1) length of its own (same as the TAILQ macros it stands in
	// for), so the count is cached here rather than walked. Neither
	// poller backend in this module needs it as a sizing hint the way
	// the original's did (both self-size their own slot arrays off
	// AddIO/DelIO), but IOCount exposes it for callers and tests that
	// want the registered-fd count without walking ioList.
	ioListLen int

	eventCount int
	fireQueue  *dlist.List[Event]

	running bool

	poller netpoll.Poller
	log    logrus.FieldLogger
}

var currentBase *Base

// Option configures a Base at Init time.
type Option func(*Base)

// WithLogger points a Base at a caller-supplied logger for its
// diagnostic output (a poller that fails to open in Init, fatal
// invariant violations). The default is logrus's standard logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(b *Base) { b.log = log }
}

// Init creates a new Base, opening the best poller available on this
// platform (a kernel event queue where the kernel provides one, a
// portable poll(2) backend otherwise), and installs it as the
// process-wide current base used by the package-level convenience
// functions.
func Init(opts ...Option) (*Base, error) {
	b := &Base{
		heap:      dheap.New[Event](heapLess),
		ioList:    dlist.New(listLink),
		fireQueue: dlist.New(fireLink),
		running:   true,
		log:       logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	for i := range b.signalLists {
		b.signalLists[i] = dlist.New(listLink)
	}

	poller, err := netpoll.OpenDefault()
	if err != nil {
		b.log.WithError(err).Error("open poller")
		return nil, errWrap(err, "open poller")
	}
	b.poller = poller

	currentBase = b
	return b, nil
}

// CurrentBase returns the base most recently created by Init, or nil
// if none has been.
func CurrentBase() *Base { return currentBase }

// Dispatch runs CurrentBase().Dispatch, the package-level convenience
// form of the original's parameterless event_dispatch(). Every other
// entry point in this package takes its Base explicitly (an Event
// already carries the Base it was Set against); this is the one
// spot the implicit-base veneer spec.md §9 allows for.
func Dispatch() error {
	if currentBase == nil {
		return ErrNoCurrentBase
	}
	return currentBase.Dispatch()
}

// Stop clears the running flag; Dispatch returns as soon as the
// callback currently running returns. Events still in the fire queue
// stay queued for the next Dispatch call.
func (b *Base) Stop() { b.running = false }

// IOCount returns the number of IO-kind events currently registered
// with the poller.
func (b *Base) IOCount() int { return b.ioListLen }

// Dispatch runs the event loop until no events remain registered or
// a callback clears running. Each iteration drains expired timers,
// delivers the fire queue, and then blocks in the poller until the
// next timeout or readiness.
func (b *Base) Dispatch() error {
	b.running = true

	iterations := 0
	for {
		iterations++
		checkIterations(iterations)

		now := time.Now()

		if err := b.drainTimeouts(now); err != nil {
			return err
		}

		if !b.deliverFireQueue() {
			return nil
		}

		if b.eventCount == 0 {
			return nil
		}

		timeout := netpoll.Forever
		if head := b.heap.First(); head != nil {
			timeout = head.deadline.Sub(now)
			if timeout < 0 {
				timeout = 0
			}
		}

		if err := b.poller.Dispatch(timeout, b.fireIO, b.fireSignal); err != nil {
			return errWrap(err, "poller dispatch")
		}
	}
}

// drainTimeouts moves every event whose deadline has passed from the
// heap into the fire queue.
func (b *Base) drainTimeouts(now time.Time) error {
	for {
		head := b.heap.ExtractIf(func(ev *Event) bool { return !ev.deadline.After(now) })
		if head == nil {
			return nil
		}

		switch {
		case head.flags.isIO():
			if err := b.poller.DelIO(head.cookie); err != nil {
				return errWrap(err, "unregister expired io event")
			}
			b.ioList.Remove(head)
			b.ioListLen--
			head.flags &^= flagOnList
		case head.flags.isSignal():
			list := b.signalLists[head.ident]
			list.Remove(head)
			head.flags &^= flagOnList
			if list.Empty() {
				if err := b.poller.DelSignal(head.ident); err != nil {
					return errWrap(err, "unregister expired signal event")
				}
			}
		case head.flags.isTimer():
			// nothing beyond the heap removal already performed.
		default:
			b.fatal("drain: event with no kind bit set")
		}

		// event-count tracks distinct registered events, not
		// container memberships; a combined IO/signal+timeout
		// event was counted once when it joined its list, so its
		// expiry here costs exactly one decrement regardless of
		// whether it also held ON_HEAP.
		head.flags &^= flagOnHeap
		b.eventCount--
		head.fires |= FlagTimeout
		if !head.flags.has(flagOnFire) {
			b.fireQueue.PushBack(head)
			head.flags |= flagOnFire
		}
	}
}

// deliverFireQueue drains the fire queue, invoking each event's
// callback. It returns false if a callback cleared running, signaling
// Dispatch to return immediately.
func (b *Base) deliverFireQueue() bool {
	for {
		head := b.fireQueue.First()
		if head == nil {
			return true
		}
		b.fireQueue.Remove(head)
		head.flags &^= flagOnFire

		fires := head.fires
		head.fires = 0

		head.callback(head.ident, fires, head.arg)
		if !b.running {
			return false
		}
	}
}

// fireIO is handed to the poller as its FireIOFunc. udata is always
// the *Event that AddIO was given for this registration. persistent
// reports whether the backend's own registration is still armed; an
// event that did not ask for PERSIST must be torn out of the list (and
// out of the poller too, if the backend left it armed) before its
// callback is allowed to run.
func (b *Base) fireIO(udata interface{}, readable, writable, persistent bool) {
	ev, ok := udata.(*Event)
	if !ok || ev == nil {
		b.fatal("fireIO: udata is not an *Event")
	}

	var cond Flag
	if readable {
		cond |= FlagRead
	}
	if writable {
		cond |= FlagWrite
	}
	ev.fires |= cond

	if ev.flags.has(flagOnFire) {
		return
	}

	if !ev.flags.has(FlagPersist) {
		if persistent {
			if err := b.poller.DelIO(ev.cookie); err != nil {
				b.fatal("fireIO: could not unregister one-shot event")
			}
		}
		ev.flags &^= flagOnList
		b.ioList.Remove(ev)
		b.ioListLen--
		b.eventCount--

		if ev.flags.has(flagOnHeap) {
			b.heap.Remove(ev)
			ev.flags &^= flagOnHeap
		}
	}

	ev.flags |= flagOnFire
	b.fireQueue.PushBack(ev)
}

// fireSignal is handed to the poller as its FireSignalFunc.
func (b *Base) fireSignal(sig int) {
	if sig < 0 || sig >= NSIG {
		return
	}
	list := b.signalLists[sig]
	for ev := list.First(); ev != nil; ev = list.Next(ev) {
		ev.fires |= FlagSignal
		if !ev.flags.has(flagOnFire) {
			b.fireQueue.PushBack(ev)
			ev.flags |= flagOnFire
		}
	}
}

func (b *Base) fatal(msg string) {
	b.log.Error(msg)
	panic(errWrap(ErrInvariant, msg))
}
