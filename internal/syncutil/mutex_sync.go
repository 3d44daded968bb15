//go:build !deadlock

// Package syncutil holds the mutex types used by sessions, the tag event
// handler and the debug logger. Building with -tags=deadlock swaps them for
// go-deadlock so lock-order bugs surface in tests.
package syncutil

import "sync"

// Mutex is a plain sync.Mutex in regular builds.
type Mutex struct {
	sync.Mutex
}

// RWMutex is a plain sync.RWMutex in regular builds.
type RWMutex struct {
	sync.RWMutex
}
