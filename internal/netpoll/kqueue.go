// Copyright 2019 Andy Pan. All rights reserved.
// Copyright 2017 Joshua J Baker. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build darwin || netbsd || freebsd || openbsd || dragonfly

package netpoll

import (
	"os/signal"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// kqReg is the per-fd bookkeeping a kqueue registration needs beyond
// what the kernel itself tracks. It is what AddIO hands back as a
// cookie and what DelIO consumes to tear the registration down again.
type kqReg struct {
	fd          int
	read, write bool
	// persistent mirrors the original's rule: a combined read+write
	// registration is always treated as persistent at the kqueue
	// layer (EV_ONESHOT is never set for it), while a single-condition
	// registration is persistent only if the caller asked for it.
	persistent bool
	udata      interface{}
}

// KQueue is a poller backed by a single kqueue descriptor. Signals are
// delivered natively via EVFILT_SIGNAL; no self-pipe trampoline is
// needed since the kernel already multiplexes them alongside I/O.
type KQueue struct {
	fd   int
	regs map[int]*kqReg

	events   []unix.Kevent_t
	nfilters int
}

// Open creates a new kqueue-backed poller.
func Open() (*KQueue, error) {
	fd, err := unix.Kqueue()
	if err != nil {
		return nil, errors.Wrap(err, "kqueue")
	}
	return &KQueue{
		fd:     fd,
		regs:   make(map[int]*kqReg),
		events: make([]unix.Kevent_t, initialEvents),
	}, nil
}

// Close implements Poller.
func (kq *KQueue) Close() error {
	return unix.Close(kq.fd)
}

// AddIO implements Poller.
func (kq *KQueue) AddIO(fd int, read, write, persist bool, udata interface{}) (interface{}, error) {
	reg := &kqReg{
		fd:         fd,
		read:       read,
		write:      write,
		persistent: persist || (read && write),
		udata:      udata,
	}

	var oneshot uint16
	if !reg.persistent {
		oneshot = unix.EV_ONESHOT
	}

	var changes [2]unix.Kevent_t
	n := 0
	if read {
		changes[n] = unix.Kevent_t{
			Ident:  uint64(fd),
			Filter: unix.EVFILT_READ,
			Flags:  unix.EV_ADD | oneshot,
		}
		n++
	}
	if write {
		changes[n] = unix.Kevent_t{
			Ident:  uint64(fd),
			Filter: unix.EVFILT_WRITE,
			Flags:  unix.EV_ADD | oneshot,
		}
		n++
	}

	if _, err := unix.Kevent(kq.fd, changes[:n], nil, nil); err != nil {
		return nil, errors.Wrapf(err, "kevent add fd %d", fd)
	}

	kq.regs[fd] = reg
	kq.nfilters += n
	return reg, nil
}

// DelIO implements Poller.
func (kq *KQueue) DelIO(cookie interface{}) error {
	reg, ok := cookie.(*kqReg)
	if !ok || reg == nil {
		return errors.New("netpoll: invalid kqueue cookie")
	}

	var changes [2]unix.Kevent_t
	n := 0
	if reg.read {
		changes[n] = unix.Kevent_t{Ident: uint64(reg.fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE}
		n++
	}
	if reg.write {
		changes[n] = unix.Kevent_t{Ident: uint64(reg.fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE}
		n++
	}

	delete(kq.regs, reg.fd)
	kq.nfilters -= n

	if n == 0 {
		return nil
	}
	if _, err := unix.Kevent(kq.fd, changes[:n], nil, nil); err != nil {
		// the fd may already be closed, which removes kqueue filters
		// implicitly; that isn't a failure the caller needs to see.
		if err != unix.EBADF {
			return errors.Wrapf(err, "kevent del fd %d", reg.fd)
		}
	}
	return nil
}

// AddSignal implements Poller. Go's runtime intercepts every signal
// before user code can see it, so kqueue's EVFILT_SIGNAL can only
// observe a signal once the runtime has been told to stop acting on
// it — signal.Ignore achieves that without disturbing the default
// action of unrelated signals.
func (kq *KQueue) AddSignal(sig int) error {
	signal.Ignore(unixSignal(sig))

	changes := [1]unix.Kevent_t{{
		Ident:  uint64(sig),
		Filter: unix.EVFILT_SIGNAL,
		Flags:  unix.EV_ADD,
	}}
	if _, err := unix.Kevent(kq.fd, changes[:], nil, nil); err != nil {
		signal.Reset(unixSignal(sig))
		return errors.Wrapf(err, "kevent add signal %d", sig)
	}
	kq.nfilters++
	return nil
}

// DelSignal implements Poller.
func (kq *KQueue) DelSignal(sig int) error {
	changes := [1]unix.Kevent_t{{
		Ident:  uint64(sig),
		Filter: unix.EVFILT_SIGNAL,
		Flags:  unix.EV_DELETE,
	}}
	if _, err := unix.Kevent(kq.fd, changes[:], nil, nil); err != nil {
		return errors.Wrapf(err, "kevent del signal %d", sig)
	}
	kq.nfilters--
	signal.Reset(unixSignal(sig))
	return nil
}

// Dispatch implements Poller.
func (kq *KQueue) Dispatch(timeout time.Duration, fireIO FireIOFunc, fireSignal FireSignalFunc) error {
	if want := kq.nfilters; want > len(kq.events) {
		kq.events = make([]unix.Kevent_t, growEvents(want))
	}

	var ts *unix.Timespec
	if timeout != Forever {
		t := unix.NsecToTimespec(timeout.Nanoseconds())
		ts = &t
	}

	n, err := unix.Kevent(kq.fd, nil, kq.events, ts)
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return errors.Wrap(err, "kevent wait")
	}

	for i := 0; i < n; i++ {
		kev := &kq.events[i]

		switch kev.Filter {
		case unix.EVFILT_READ:
			kq.fireFiltered(kev, fireIO, true, false)
		case unix.EVFILT_WRITE:
			kq.fireFiltered(kev, fireIO, false, true)
		case unix.EVFILT_SIGNAL:
			fireSignal(int(kev.Ident))
		}
	}

	return nil
}

func (kq *KQueue) fireFiltered(kev *unix.Kevent_t, fireIO FireIOFunc, readable, writable bool) {
	fd := int(kev.Ident)
	reg, ok := kq.regs[fd]
	if !ok {
		return
	}
	fireIO(reg.udata, readable, writable, reg.persistent)

	// a non-persistent registration was submitted with EV_ONESHOT, so
	// the kernel has already dropped its filter; the core was told as
	// much (persistent == false) and will not call DelIO, so this is
	// the only place left to retire our own bookkeeping for it.
	if !reg.persistent {
		delete(kq.regs, fd)
		if reg.read {
			kq.nfilters--
		}
		if reg.write {
			kq.nfilters--
		}
	}
}
