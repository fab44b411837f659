package goevent

import "time"

// SetSignal stamps ev as a signal-kind event watching sig. Signal
// events are always persistent: a single registration is expected to
// observe every delivery of the signal until explicitly removed.
func (ev *Event) SetSignal(base *Base, sig int, cb Callback, arg interface{}) error {
	if sig < 0 || sig >= NSIG {
		return ErrSignalOutOfRange
	}
	ev.base = base
	ev.ident = sig
	ev.callback = cb
	ev.arg = arg
	ev.flags = flagInitialized | FlagSignal | FlagPersist
	ev.fires = 0
	return nil
}

// AddSignal arms ev's signal at the poller if this is the first
// listener for that signal number, then appends ev to the per-signal
// list. An optional timeout behaves exactly as it does for Event.Add.
func (ev *Event) AddSignal(timeout *time.Duration) error {
	if !ev.Initialized() {
		return ErrNotInitialized
	}
	base := ev.base
	sig := ev.ident

	if !ev.flags.has(flagOnList) {
		list := base.signalLists[sig]
		if list.Empty() {
			if err := base.poller.AddSignal(sig); err != nil {
				return errWrap(err, "add signal")
			}
		}
		list.PushBack(ev)
		base.eventCount++
		ev.flags |= flagOnList
	} else if timeout != nil && ev.flags.has(flagOnHeap) {
		base.heap.Remove(ev)
	}

	if timeout != nil {
		ev.deadline = time.Now().Add(*timeout)
		base.heap.Insert(ev)
		ev.flags |= flagOnHeap
	}

	return nil
}

// DelSignal removes ev from its per-signal list, disarming the signal
// at the poller once the last listener for it is gone, and clears any
// heap or fire-queue placement.
func (ev *Event) DelSignal() error {
	base := ev.base
	if base == nil {
		return nil
	}
	sig := ev.ident

	if ev.flags.has(flagOnList) {
		list := base.signalLists[sig]
		list.Remove(ev)
		base.eventCount--
		ev.flags &^= flagOnList
		if list.Empty() {
			if err := base.poller.DelSignal(sig); err != nil {
				return errWrap(err, "del signal")
			}
		}
	}
	if ev.flags.has(flagOnHeap) {
		base.heap.Remove(ev)
		ev.flags &^= flagOnHeap
	}
	if ev.flags.has(flagOnFire) {
		base.fireQueue.Remove(ev)
		ev.flags &^= flagOnFire
	}
	return nil
}
