package goevent

import "time"

// SetTimer stamps ev as a timer, the thin convenience layer over the
// generic Event API that fixes kind to TIMEOUT and ident to -1.
func (ev *Event) SetTimer(base *Base, cb Callback, arg interface{}) {
	ev.base = base
	ev.ident = -1
	ev.callback = cb
	ev.arg = arg
	ev.flags = flagInitialized | FlagTimeout
	ev.fires = 0
}

// AddTimer (re)inserts ev into the heap keyed by now+timeout,
// incrementing the event count only on the initial insertion.
func (ev *Event) AddTimer(timeout time.Duration) error {
	if !ev.Initialized() {
		return ErrNotInitialized
	}
	base := ev.base

	wasOnHeap := ev.flags.has(flagOnHeap)
	ev.deadline = time.Now().Add(timeout)
	if wasOnHeap {
		base.heap.Remove(ev)
	} else {
		base.eventCount++
	}
	base.heap.Insert(ev)
	ev.flags |= flagOnHeap
	return nil
}

// DelTimer removes ev from the heap and the fire queue. It is an
// alias for Del: a timer is never ON_LIST, so the generic path already
// does exactly the right thing.
func (ev *Event) DelTimer() error { return ev.Del() }
