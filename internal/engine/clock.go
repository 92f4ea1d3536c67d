// Package engine contains the per-room game engine: the phase state
// machine, the action router, the chat gate, and the serializer that binds
// them to timers and connection events.
//
// ARCHITECTURAL RULE: all room state is owned by a single goroutine per
// room. Transport events and timer fires post closures into the room's
// mailbox; nothing mutates a Room from outside it.
package engine

import "time"

// Clock abstracts time so engine tests can drive deadlines manually.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer is a single-owner cancellable deadline handle. Stop reports
// whether it prevented the fire.
type Timer interface {
	Stop() bool
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// RealClock returns the wall clock.
func RealClock() Clock { return realClock{} }
