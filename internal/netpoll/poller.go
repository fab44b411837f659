// Package netpoll provides the pluggable polling backends that drive
// the event loop: a kqueue backend for BSD-family kernels and a
// portable backend built on poll(2) for everything else. Both satisfy
// the same narrow Poller contract so the dispatch loop in the parent
// package stays oblivious to which is actually in use.
package netpoll

import "time"

// Forever tells Dispatch to block with no timeout.
const Forever time.Duration = -1

// FireIOFunc is invoked once per readiness report during Dispatch (the
// kqueue backend reports read and write readiness of one descriptor
// separately).
// udata is whatever was passed to AddIO when the descriptor was
// registered. readable/writable report which conditions fired;
// persistent reports whether the backend's registration will still be
// armed afterwards (false means this delivery already consumed a
// one-shot registration and the core must treat it as unregistered).
type FireIOFunc func(udata interface{}, readable, writable, persistent bool)

// FireSignalFunc is invoked for each signal delivery observed during
// Dispatch; the portable backend calls it once per byte read from its
// self-pipe, so one signal number can be reported more than once.
type FireSignalFunc func(sig int)

// Poller is the capability set every backend implements. It is
// intentionally small: a tagged-variant-plus-dispatch-table in spirit,
// not a class hierarchy.
type Poller interface {
	// AddIO registers fd for the given conditions. udata is handed
	// back verbatim to FireIOFunc when the descriptor becomes ready;
	// the returned cookie must be passed to DelIO to unregister.
	AddIO(fd int, read, write, persist bool, udata interface{}) (cookie interface{}, err error)
	// DelIO unregisters a descriptor previously added with AddIO.
	DelIO(cookie interface{}) error

	// AddSignal arms delivery of the given signal number.
	AddSignal(sig int) error
	// DelSignal disarms a signal armed with AddSignal, restoring
	// whatever disposition preceded it once the last registration for
	// that signal is gone.
	DelSignal(sig int) error

	// Dispatch blocks for up to timeout (or indefinitely, if Forever)
	// waiting for I/O readiness or signal delivery, invoking fireIO
	// and fireSignal for whatever it finds ready. A timeout with no
	// events ready returns nil having called neither callback.
	Dispatch(timeout time.Duration, fireIO FireIOFunc, fireSignal FireSignalFunc) error

	// Close releases the backend's kernel resources.
	Close() error
}

// initialEvents is the starting capacity of a backend's readiness
// buffer; whenever Dispatch finds more filters registered than the
// buffer holds, it is replaced by one growEvents sizes at twice the
// registered count, on the theory that the working set is trending
// upward.
const initialEvents = 64

func growEvents(n int) int {
	return n * 2
}
