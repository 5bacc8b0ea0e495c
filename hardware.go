package main

// Capability interfaces over the physical door hardware.  The controller and
// event sources depend only on these; the periph.io backend in hal_rpi.go and
// the stub in hal.go both satisfy them, and tests supply fakes.

import (
	"context"
	"time"
)

// LED identifies one of the three indicator LEDs.
type LED int

const (
	RedLED LED = iota
	GreenLED
	ButtonLED
)

func (l LED) String() string {
	switch l {
	case RedLED:
		return "red"
	case GreenLED:
		return "green"
	default:
		return "button"
	}
}

// Hardware abstracts the GPIO-driven actuators and the wall button.
// Implementations must be safe for use from the controller goroutine and the
// button watcher goroutine concurrently.
type Hardware interface {
	// SetLED switches an indicator LED on or off.
	SetLED(l LED, on bool)
	// DriveLock moves the servo to the locked or unlocked position.  The
	// call blocks for the duration of the servo sweep.
	DriveLock(locked bool) error
	// Buzz sounds the buzzer count times, each beep lasting beep with gap
	// of silence in between.  The call blocks until the pattern finishes.
	Buzz(count int, beep, gap time.Duration)
	// WaitForButtonEdge blocks until the button input changes level or the
	// context is cancelled.
	WaitForButtonEdge(ctx context.Context) error
	// ButtonPressed reports whether the button is currently held down.
	ButtonPressed() bool
	// Close releases the underlying pins.
	Close() error
}

// CardReader abstracts the NFC frontend as two blocking primitives.  The
// returned identifier is an opaque token; the daemon never interprets it.
type CardReader interface {
	// WaitForCard blocks until a card is in the reader's field and returns
	// its identifier, or until the context is cancelled.
	WaitForCard(ctx context.Context) (string, error)
	// WaitForRemoval blocks until no card is present, so one physical tap
	// cannot produce repeated submissions.
	WaitForRemoval(ctx context.Context) error
	// Close releases the reader.
	Close() error
}
