package netpoll

import "syscall"

// unixSignal converts the plain signal number used throughout the
// public API into the os.Signal value the runtime's signal package
// expects.
func unixSignal(sig int) syscall.Signal {
	return syscall.Signal(sig)
}
