//go:build !linux || (!arm && !arm64) || disablegpio

package main

// This file provides the desktop build of the hardware layer.  It lets the
// daemon and its tests run on a machine without Raspberry Pi hardware; the
// real GPIO/NFC backend lives in hal_rpi.go behind a build tag.

import (
	"context"
	"log"
	"time"
)

// openHardware returns stub implementations of both capability interfaces.
// The stub button never fires and the stub reader never sees a card, so the
// daemon idles; actuator commands are written to the process log instead of
// GPIO lines.
func openHardware(cfg Config, logger *log.Logger) (Hardware, CardReader, error) {
	logger.Printf("GPIO disabled in this build; running with stub hardware")
	return &stubHardware{logger: logger}, &stubReader{}, nil
}

type stubHardware struct {
	logger *log.Logger
}

func (h *stubHardware) SetLED(l LED, on bool) {
	h.logger.Printf("stub: LED %s -> %v", l, on)
}

func (h *stubHardware) DriveLock(locked bool) error {
	h.logger.Printf("stub: servo -> locked=%v", locked)
	return nil
}

func (h *stubHardware) Buzz(count int, beep, gap time.Duration) {
	h.logger.Printf("stub: buzzer x%d (%v on, %v off)", count, beep, gap)
}

func (h *stubHardware) WaitForButtonEdge(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (h *stubHardware) ButtonPressed() bool { return false }

func (h *stubHardware) Close() error { return nil }

type stubReader struct{}

func (r *stubReader) WaitForCard(ctx context.Context) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (r *stubReader) WaitForRemoval(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (r *stubReader) Close() error { return nil }
