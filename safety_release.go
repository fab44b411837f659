//go:build !goevent_debug

package goevent

// checkIterations is a no-op in release builds; the iteration-count
// safety rail only exists to catch runaway fire/enqueue cycles during
// development.
func checkIterations(int) {}
