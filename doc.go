// Copyright 2019 Andy Pan. All rights reserved.
// Copyright 2017 Joshua J Baker. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package goevent is a small, single-threaded event-notification
// core in the tradition of libevent: it multiplexes file-descriptor
// readiness, OS signal delivery, and relative/absolute timeouts onto
// one dispatch loop, driven underneath by a pluggable poller (kqueue
// where the kernel offers it, poll(2) everywhere else).
//
// goevent does not itself open sockets, frame protocols, or manage
// worker goroutines; it hands ready conditions to caller-supplied
// callbacks and gets out of the way. Everything above that — buffer
// management, connection state machines, protocol codecs — belongs
// to packages built on top of a Base.
package goevent
