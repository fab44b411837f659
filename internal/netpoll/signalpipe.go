//go:build !(darwin || netbsd || freebsd || openbsd || dragonfly)

package netpoll

import (
	"os"
	"os/signal"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// signalPipe is the self-pipe trampoline the portable backend uses to
// fold OS signal delivery into the same poll(2) wait as I/O
// readiness. poll(2) has no native concept of a signal filter, so
// every armed signal is instead forwarded, one byte per delivery
// (the byte holds the signal number), through a pipe whose read end
// is itself a persistent, always-armed registration in the owning
// Poll. A small goroutine per armed signal bridges signal.Notify's
// channel into that pipe; writes are non-blocking so a stalled reader
// never backs a handler goroutine up indefinitely.
type signalPipe struct {
	mu   sync.Mutex
	refs map[int]int
	stop map[int]chan struct{}
	rfd  int
	wfd  int
}

func newSignalPipe(p *Poll) (*signalPipe, error) {
	var fds [2]int
	err := unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC)
	if err != nil {
		return nil, errors.Wrap(err, "signal pipe")
	}

	sp := &signalPipe{
		refs: make(map[int]int),
		stop: make(map[int]chan struct{}),
		rfd:  fds[0],
		wfd:  fds[1],
	}

	p.place(&pollReg{fd: sp.rfd, read: true})

	return sp, nil
}

func (sp *signalPipe) readFD() int { return sp.rfd }

func (sp *signalPipe) close() error {
	sp.mu.Lock()
	for sig, stop := range sp.stop {
		close(stop)
		delete(sp.stop, sig)
	}
	sp.mu.Unlock()

	if err := unix.Close(sp.wfd); err != nil {
		return err
	}
	return unix.Close(sp.rfd)
}

// add arms delivery of sig, starting the forwarding goroutine the
// first time this signal number is armed; later calls just bump the
// refcount, matching the original's refcounted handler install.
func (sp *signalPipe) add(sig int) error {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	if sp.refs[sig] > 0 {
		sp.refs[sig]++
		return nil
	}

	ch := make(chan os.Signal, 16)
	stop := make(chan struct{})
	signal.Notify(ch, unixSignal(sig))

	go sp.forward(sig, ch, stop)

	sp.refs[sig] = 1
	sp.stop[sig] = stop
	return nil
}

// del disarms one reference to sig, tearing down the OS-level
// registration and forwarding goroutine once the last reference is
// gone.
func (sp *signalPipe) del(sig int) error {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	if sp.refs[sig] == 0 {
		return nil
	}
	sp.refs[sig]--
	if sp.refs[sig] > 0 {
		return nil
	}

	delete(sp.refs, sig)
	signal.Reset(unixSignal(sig))
	if stop, ok := sp.stop[sig]; ok {
		close(stop)
		delete(sp.stop, sig)
	}
	return nil
}

func (sp *signalPipe) forward(sig int, ch <-chan os.Signal, stop <-chan struct{}) {
	buf := [1]byte{byte(sig)}
	for {
		select {
		case <-ch:
			// a write that fails (the pipe is full of pending
			// signal bytes) drops this delivery; nothing else
			// records it, so it reaches the loop only if a byte for
			// the same signal is already queued in the pipe.
			_, _ = unix.Write(sp.wfd, buf[:])
		case <-stop:
			return
		}
	}
}

// drain reads every pending signal byte off the pipe and reports each
// one through fireSignal.
func (sp *signalPipe) drain(fireSignal FireSignalFunc) {
	var buf [64]byte
	for {
		n, err := unix.Read(sp.rfd, buf[:])
		if n <= 0 || err != nil {
			return
		}
		for i := 0; i < n; i++ {
			fireSignal(int(buf[i]))
		}
		if n < len(buf) {
			return
		}
	}
}
