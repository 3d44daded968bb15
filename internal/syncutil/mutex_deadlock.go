//go:build deadlock

// Package syncutil holds the mutex types used by sessions, the tag event
// handler and the debug logger. Building with -tags=deadlock swaps them for
// go-deadlock so lock-order bugs surface in tests.
package syncutil

import deadlock "github.com/sasha-s/go-deadlock"

// Mutex is a deadlock-detecting mutex.
type Mutex struct {
	deadlock.Mutex
}

// RWMutex is a deadlock-detecting read/write mutex.
type RWMutex struct {
	deadlock.RWMutex
}
