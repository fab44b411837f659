package goevent_test

import (
	"os"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dgwynne/goevent"
)

func newBase(t *testing.T) *goevent.Base {
	t.Helper()
	b, err := goevent.Init()
	require.NoError(t, err)
	return b
}

func TestPureTimer(t *testing.T) {
	b := newBase(t)

	var fires int32
	var gotArg interface{}
	var gotFires goevent.Flag

	var ev goevent.Event
	ev.SetTimer(b, func(ident int, f goevent.Flag, arg interface{}) {
		atomic.AddInt32(&fires, 1)
		gotArg = arg
		gotFires = f
		require.Equal(t, -1, ident)
		b.Stop()
	}, 42)
	require.NoError(t, ev.AddTimer(10 * time.Millisecond))

	require.NoError(t, b.Dispatch())
	require.EqualValues(t, 1, atomic.LoadInt32(&fires))
	require.Equal(t, 42, gotArg)
	require.Equal(t, goevent.FlagTimeout, gotFires)
}

func TestOneShotRead(t *testing.T) {
	b := newBase(t)

	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	var fires int32

	var ev goevent.Event
	ev.Set(b, int(r.Fd()), goevent.FlagRead, func(ident int, f goevent.Flag, arg interface{}) {
		atomic.AddInt32(&fires, 1)
		require.Equal(t, goevent.FlagRead, f)
		buf := make([]byte, 1)
		_, _ = r.Read(buf)
	}, nil)
	require.NoError(t, ev.Add(nil))

	_, err = w.Write([]byte{1})
	require.NoError(t, err)

	require.NoError(t, b.Dispatch())
	require.EqualValues(t, 1, atomic.LoadInt32(&fires))

	pending, _ := ev.Pending(goevent.FlagRead | goevent.FlagWrite)
	require.Equal(t, goevent.Flag(0), pending, "one-shot event should be unregistered after firing")

	_, err = w.Write([]byte{2})
	require.NoError(t, err)
}

func TestPersistentReadPlusTimeout(t *testing.T) {
	b := newBase(t)

	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	var seq []goevent.Flag

	var ev goevent.Event
	ev.Set(b, int(r.Fd()), goevent.FlagRead|goevent.FlagPersist,
		func(ident int, f goevent.Flag, arg interface{}) {
			seq = append(seq, f)
			if f.Has(goevent.FlagRead) {
				buf := make([]byte, 1)
				_, _ = r.Read(buf)
				timeout := 50 * time.Millisecond
				require.NoError(t, ev.Add(&timeout))
				return
			}
			require.NoError(t, ev.Del())
		}, nil)

	timeout := 50 * time.Millisecond
	require.NoError(t, ev.Add(&timeout))

	_, err = w.Write([]byte{1})
	require.NoError(t, err)

	require.NoError(t, b.Dispatch())

	require.Len(t, seq, 2)
	require.Equal(t, goevent.FlagRead, seq[0])
	require.Equal(t, goevent.FlagTimeout, seq[1])
}

func TestSignalDelivery(t *testing.T) {
	b := newBase(t)

	var fires int32
	var ev goevent.Event
	require.NoError(t, ev.SetSignal(b, int(syscall.SIGUSR1), func(ident int, f goevent.Flag, arg interface{}) {
		atomic.AddInt32(&fires, 1)
		require.Equal(t, goevent.FlagSignal, f)
		require.NoError(t, ev.DelSignal())
		b.Stop()
	}, nil))
	require.NoError(t, ev.AddSignal(nil))

	go func() {
		time.Sleep(5 * time.Millisecond)
		_ = syscall.Kill(os.Getpid(), syscall.SIGUSR1)
		time.Sleep(5 * time.Millisecond)
		_ = syscall.Kill(os.Getpid(), syscall.SIGUSR1)
	}()

	require.NoError(t, b.Dispatch())
	n := atomic.LoadInt32(&fires)
	require.True(t, n >= 1 && n <= 2)
}

func TestPackageLevelDispatch(t *testing.T) {
	b := newBase(t)
	require.Same(t, b, goevent.CurrentBase())

	var fires int32
	var ev goevent.Event
	ev.SetTimer(b, func(ident int, f goevent.Flag, arg interface{}) {
		atomic.AddInt32(&fires, 1)
	}, nil)
	require.NoError(t, ev.AddTimer(5*time.Millisecond))

	require.NoError(t, goevent.Dispatch())
	require.EqualValues(t, 1, atomic.LoadInt32(&fires))
}

func TestTimerOrdering(t *testing.T) {
	b := newBase(t)

	var order []string

	var evA, evB, evC goevent.Event
	evA.SetTimer(b, func(ident int, f goevent.Flag, arg interface{}) {
		order = append(order, "A")
		require.Equal(t, goevent.FlagTimeout, f)
	}, nil)
	evB.SetTimer(b, func(ident int, f goevent.Flag, arg interface{}) {
		order = append(order, "B")
		require.Equal(t, goevent.FlagTimeout, f)
	}, nil)
	evC.SetTimer(b, func(ident int, f goevent.Flag, arg interface{}) {
		order = append(order, "C")
		require.Equal(t, goevent.FlagTimeout, f)
	}, nil)

	require.NoError(t, evA.AddTimer(30*time.Millisecond))
	require.NoError(t, evB.AddTimer(10*time.Millisecond))
	require.NoError(t, evC.AddTimer(20*time.Millisecond))

	require.NoError(t, b.Dispatch())
	require.Equal(t, []string{"B", "C", "A"}, order)
}
