package goevent

import "github.com/pkg/errors"

// Sentinel errors the public API can return. Wrap these with
// errors.Wrap/Wrapf when adding call-site context; callers can still
// match with errors.Is against the sentinel.
var (
	// ErrNotInitialized is returned by Add/AddTimer/AddSignal when
	// called on an Event that Set has never stamped.
	ErrNotInitialized = errors.New("goevent: event not initialized")

	// ErrNoCurrentBase is returned by the package-level convenience
	// functions when Init has not been called (or its result
	// discarded without being installed as the current base).
	ErrNoCurrentBase = errors.New("goevent: no current base")

	// ErrSignalOutOfRange is returned by signal registration when the
	// signal number is not representable by the per-signal list array.
	ErrSignalOutOfRange = errors.New("goevent: signal number out of range")

	// ErrInvariant marks a condition the dispatch loop treats as fatal
	// because continuing would leave its internal bookkeeping
	// inconsistent — an unknown event kind during a timer drain, or a
	// poller that returns an error when asked to unregister a one-shot
	// event as it fires.
	ErrInvariant = errors.New("goevent: invariant violation")
)

func errWrap(err error, msg string) error {
	return errors.Wrap(err, msg)
}

