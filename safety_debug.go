//go:build goevent_debug

package goevent

// maxDispatchIterations bounds how many drain/deliver/poll rounds a
// single Dispatch call may run before checkIterations treats it as a
// runaway fire/enqueue cycle rather than legitimate work. It is not an
// intended production limit, just a development assertion.
const maxDispatchIterations = 30

func checkIterations(n int) {
	if n > maxDispatchIterations {
		panic("goevent: dispatch exceeded the development iteration limit")
	}
}
