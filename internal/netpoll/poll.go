// Copyright 2019 Andy Pan. All rights reserved.
// Copyright 2017 Joshua J Baker. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !(darwin || netbsd || freebsd || openbsd || dragonfly)

package netpoll

import (
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/dgwynne/goevent/internal/dheap"
)

// pollReg is the bookkeeping kept for one registered descriptor.
// Unlike the kqueue backend, poll(2) has no one-shot registration of
// its own, so pollReg does not need to remember whether the caller
// asked for PERSIST: every registration stays armed until DelIO.
type pollReg struct {
	idx   int
	gen   uint64
	fd    int
	read  bool
	write bool

	udata interface{}

	handle *liveHandle
}

// liveHandle is the element stored in the live heap. Indirecting
// through it (rather than having pollReg implement Link itself) lets
// a pollReg be tracked by index in the live heap while a distinct,
// much smaller freeSlot value is tracked in the free heap — the two
// heaps need different orderings over the same notion of "index".
type liveHandle struct {
	elem dheap.Elem
	reg  *pollReg
}

func (h *liveHandle) Link() *dheap.Elem { return &h.elem }

// liveLess orders the live heap largest-index-first, so the slot most
// worth relocating into a low vacancy is always at the top.
func liveLess(a, b *liveHandle) bool { return a.reg.idx > b.reg.idx }

// freeSlot is a vacated pfds index waiting either to be reused by a
// new registration or to be folded into the live heap during compaction.
type freeSlot struct {
	elem dheap.Elem
	idx  int
}

func (f *freeSlot) Link() *dheap.Elem { return &f.elem }

// freeLess orders the free heap smallest-index-first, so the lowest
// vacancy is always reused or filled first.
func freeLess(a, b *freeSlot) bool { return a.idx < b.idx }

// Poll is the portable poller, built on poll(2) for platforms without
// a kernel event queue. A dense array of unix.PollFd is handed to the
// kernel each Dispatch call. Registered slots are tracked in a
// largest-index-first live heap and vacated slots in a
// smallest-index-first free heap; whenever the largest live index
// exceeds the smallest free one, the live entry is relocated into the
// vacancy, and the array is trimmed once its tail consists entirely of
// free slots. Signals are delivered through a self-pipe, since
// poll(2) itself has no notion of them.
type Poll struct {
	pfds []unix.PollFd
	regs []*pollReg // regs[i] describes pfds[i]; nil means slot i is free

	live    *dheap.Heap[liveHandle, *liveHandle]
	free    *dheap.Heap[freeSlot, *freeSlot]
	freeIdx map[int]*freeSlot

	gen uint64

	signals *signalPipe
}

// Open creates a new poll(2)-backed poller.
func Open() (*Poll, error) {
	p := &Poll{
		live:    dheap.New[liveHandle](liveLess),
		free:    dheap.New[freeSlot](freeLess),
		freeIdx: make(map[int]*freeSlot),
	}

	sp, err := newSignalPipe(p)
	if err != nil {
		return nil, err
	}
	p.signals = sp
	return p, nil
}

// Close implements Poller.
func (p *Poll) Close() error {
	return p.signals.close()
}

// AddIO implements Poller. persist has no bearing on how this backend
// tracks the registration: poll(2) never retires it on its own, so
// whether the core needs to retire it after firing is decided entirely
// by Dispatch's caller, not recorded here.
func (p *Poll) AddIO(fd int, read, write, persist bool, udata interface{}) (interface{}, error) {
	reg := &pollReg{
		fd:    fd,
		read:  read,
		write: write,
		udata: udata,
		gen:   p.gen,
	}
	p.place(reg)
	return reg, nil
}

// DelIO implements Poller.
func (p *Poll) DelIO(cookie interface{}) error {
	reg, ok := cookie.(*pollReg)
	if !ok || reg == nil {
		return errors.New("netpoll: invalid poll cookie")
	}
	p.vacate(reg)
	return nil
}

// place installs reg into the dense array, reusing the lowest free
// slot if one exists, and appending otherwise.
func (p *Poll) place(reg *pollReg) {
	if fs := p.free.ExtractIf(func(*freeSlot) bool { return true }); fs != nil {
		reg.idx = fs.idx
		delete(p.freeIdx, fs.idx)
	} else {
		reg.idx = len(p.pfds)
		p.pfds = append(p.pfds, unix.PollFd{})
		p.regs = append(p.regs, nil)
	}

	p.regs[reg.idx] = reg
	p.pfds[reg.idx] = unix.PollFd{Fd: int32(reg.fd), Events: pollEvents(reg.read, reg.write)}

	h := &liveHandle{reg: reg}
	reg.handle = h
	p.live.Insert(h)
}

// vacate removes reg from the dense array, parks its index on the
// free heap, compacts the highest live slot down into any newly
// exposed vacancy, and trims the tail once it is entirely free.
func (p *Poll) vacate(reg *pollReg) {
	idx := reg.idx
	if idx < 0 || idx >= len(p.regs) || p.regs[idx] != reg {
		return
	}

	p.live.Remove(reg.handle)
	reg.handle = nil

	p.regs[idx] = nil
	p.pfds[idx] = unix.PollFd{Fd: -1}
	p.insertFree(idx)

	p.compact()
	p.trim()
}

func (p *Poll) insertFree(idx int) {
	fs := &freeSlot{idx: idx}
	p.free.Insert(fs)
	p.freeIdx[idx] = fs
}

// compact relocates the highest-indexed live registration into the
// lowest-indexed vacancy until no live slot sits above a free one.
// Anything moved is stamped with the current dispatch generation so
// an in-progress scan recognizes it as recycled and skips it rather
// than acting on revents that were never actually polled at its new
// position this round.
func (p *Poll) compact() {
	for {
		top := p.live.First()
		bottom := p.free.First()
		if top == nil || bottom == nil || top.reg.idx <= bottom.idx {
			return
		}

		oldIdx := top.reg.idx
		newIdx := bottom.idx

		p.live.Remove(top)
		p.free.Remove(bottom)
		delete(p.freeIdx, newIdx)

		p.pfds[newIdx] = p.pfds[oldIdx]
		p.regs[newIdx] = top.reg
		top.reg.idx = newIdx
		top.reg.gen = p.gen
		p.live.Insert(top)

		p.regs[oldIdx] = nil
		p.pfds[oldIdx] = unix.PollFd{Fd: -1}
		p.insertFree(oldIdx)
	}
}

// trim drops free slots from the tail of the dense array, shrinking
// the syscall's working set as registrations churn.
func (p *Poll) trim() {
	for len(p.regs) > 0 {
		last := len(p.regs) - 1
		fs, ok := p.freeIdx[last]
		if !ok {
			break
		}
		p.free.Remove(fs)
		delete(p.freeIdx, last)
		p.regs = p.regs[:last]
		p.pfds = p.pfds[:last]
	}
}

func pollEvents(read, write bool) int16 {
	var ev int16
	if read {
		ev |= unix.POLLIN
	}
	if write {
		ev |= unix.POLLOUT
	}
	return ev
}

// AddSignal implements Poller.
func (p *Poll) AddSignal(sig int) error {
	return p.signals.add(sig)
}

// DelSignal implements Poller.
func (p *Poll) DelSignal(sig int) error {
	return p.signals.del(sig)
}

// Dispatch implements Poller.
func (p *Poll) Dispatch(timeout time.Duration, fireIO FireIOFunc, fireSignal FireSignalFunc) error {
	p.gen++
	if p.gen == 0 {
		// wrapped: every slot touched before the wrap must no longer
		// be able to collide with a future generation value.
		p.gen = 1
		for _, reg := range p.regs {
			if reg != nil {
				reg.gen = ^uint64(0)
			}
		}
	}

	ms := -1
	if timeout != Forever {
		if timeout < 0 {
			timeout = 0
		}
		ms = int(timeout.Milliseconds())
	}

	n, err := unix.Poll(p.pfds, ms)
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return errors.Wrap(err, "poll")
	}

	seen := 0
	scanLen := len(p.pfds)
	for i := 0; i < scanLen && i < len(p.pfds) && seen < n; i++ {
		revents := p.pfds[i].Revents
		if revents == 0 {
			continue
		}
		seen++

		reg := p.regs[i]
		if reg == nil || reg.gen == p.gen {
			continue
		}

		if reg.fd == p.signals.readFD() {
			p.signals.drain(fireSignal)
			continue
		}

		// a hangup or error is reported on whichever conditions the
		// registration actually asked for, same as a combined
		// read+write readiness would be.
		hup := revents&(unix.POLLHUP|unix.POLLERR) != 0
		readable := reg.read && (hup || revents&unix.POLLIN != 0)
		writable := reg.write && (hup || revents&unix.POLLOUT != 0)
		if !readable && !writable {
			continue
		}

		// poll(2) has no kernel-level one-shot: a registration stays
		// armed regardless of what the caller asked for, so the core
		// is always told the backend is still holding it and must
		// decide for itself whether a non-persistent event needs an
		// explicit DelIO.
		fireIO(reg.udata, readable, writable, true)
	}

	return nil
}
