//go:build linux && (arm || arm64) && !disablegpio

// Raspberry Pi backend for the hardware layer, built on periph.io.  When
// cross-compiling on other platforms or when the build tag "disablegpio" is
// specified, hal.go is used instead.

package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/mfrc522"
	"periph.io/x/host/v3"
)

// Servo duty cycles for a standard 50 Hz hobby servo: 7.5% holds the neutral
// position, 2.5% and 12.5% are the +-90 degree end stops.  Matches the PWM
// sequence of the original firmware.
const (
	servoFreq    = 50 * physic.Hertz
	servoNeutral = gpio.DutyMax * 3 / 40  // 7.5%
	servoLock    = gpio.DutyMax * 1 / 40  // 2.5%
	servoUnlock  = gpio.DutyMax * 5 / 40  // 12.5%
)

// openHardware initialises periph host state, claims every configured pin and
// brings up the MFRC522 reader on the first SPI port.  Any failure here is
// fatal to startup: the daemon must not run half-initialised.
func openHardware(cfg Config, logger *log.Logger) (Hardware, CardReader, error) {
	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("periph host init: %w", err)
	}

	hw := &rpiHardware{logger: logger}
	var err error
	if hw.ledRed, err = outPin(cfg.Pins.LEDRed); err != nil {
		return nil, nil, err
	}
	if hw.ledGreen, err = outPin(cfg.Pins.LEDGreen); err != nil {
		return nil, nil, err
	}
	if hw.ledButton, err = outPin(cfg.Pins.LEDButton); err != nil {
		return nil, nil, err
	}
	if hw.buzzer, err = outPin(cfg.Pins.Buzzer); err != nil {
		return nil, nil, err
	}
	if hw.servo, err = outPin(cfg.Pins.Servo); err != nil {
		return nil, nil, err
	}

	hw.button = gpioreg.ByName(fmt.Sprintf("GPIO%d", cfg.Pins.Button))
	if hw.button == nil {
		return nil, nil, fmt.Errorf("button pin GPIO%d not found", cfg.Pins.Button)
	}
	// Active-low button: pull-up, pressed shorts the pin to ground.
	if err := hw.button.In(gpio.PullUp, gpio.BothEdges); err != nil {
		return nil, nil, fmt.Errorf("button pin GPIO%d: %w", cfg.Pins.Button, err)
	}

	rst := gpioreg.ByName(fmt.Sprintf("GPIO%d", cfg.Pins.NFCReset))
	irq := gpioreg.ByName(fmt.Sprintf("GPIO%d", cfg.Pins.NFCIRQ))
	if rst == nil || irq == nil {
		return nil, nil, fmt.Errorf("NFC reset/irq pins GPIO%d/GPIO%d not found",
			cfg.Pins.NFCReset, cfg.Pins.NFCIRQ)
	}
	port, err := spireg.Open("")
	if err != nil {
		return nil, nil, fmt.Errorf("open SPI port for NFC reader: %w", err)
	}
	dev, err := mfrc522.NewSPI(port, rst, irq)
	if err != nil {
		port.Close()
		return nil, nil, fmt.Errorf("init MFRC522 reader: %w", err)
	}

	return hw, &rpiReader{dev: dev, port: port}, nil
}

func outPin(pin int) (gpio.PinIO, error) {
	p := gpioreg.ByName(fmt.Sprintf("GPIO%d", pin))
	if p == nil {
		return nil, fmt.Errorf("output pin GPIO%d not found", pin)
	}
	if err := p.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("output pin GPIO%d: %w", pin, err)
	}
	return p, nil
}

type rpiHardware struct {
	logger    *log.Logger
	ledRed    gpio.PinIO
	ledGreen  gpio.PinIO
	ledButton gpio.PinIO
	buzzer    gpio.PinIO
	servo     gpio.PinIO
	button    gpio.PinIO
}

func (h *rpiHardware) pin(l LED) gpio.PinIO {
	switch l {
	case RedLED:
		return h.ledRed
	case GreenLED:
		return h.ledGreen
	default:
		return h.ledButton
	}
}

func (h *rpiHardware) SetLED(l LED, on bool) {
	level := gpio.Low
	if on {
		level = gpio.High
	}
	if err := h.pin(l).Out(level); err != nil {
		h.logger.Printf("LED %s: %v", l, err)
	}
}

// DriveLock sweeps the servo to the end stop for the requested position and
// then drops the PWM signal so the servo does not hold torque (and hum)
// indefinitely.
func (h *rpiHardware) DriveLock(locked bool) error {
	target := servoUnlock
	if locked {
		target = servoLock
	}
	steps := []struct {
		duty gpio.Duty
		hold time.Duration
	}{
		{servoNeutral, 300 * time.Millisecond},
		{target, 500 * time.Millisecond},
		{servoNeutral, 500 * time.Millisecond},
	}
	for _, s := range steps {
		if err := h.servo.PWM(s.duty, servoFreq); err != nil {
			return fmt.Errorf("servo PWM: %w", err)
		}
		time.Sleep(s.hold)
	}
	if err := h.servo.Halt(); err != nil {
		return fmt.Errorf("servo halt: %w", err)
	}
	return nil
}

func (h *rpiHardware) Buzz(count int, beep, gap time.Duration) {
	for i := 0; i < count; i++ {
		time.Sleep(gap)
		if err := h.buzzer.Out(gpio.High); err != nil {
			h.logger.Printf("buzzer: %v", err)
			return
		}
		time.Sleep(beep)
		if err := h.buzzer.Out(gpio.Low); err != nil {
			h.logger.Printf("buzzer: %v", err)
			return
		}
	}
}

// WaitForButtonEdge polls WaitForEdge with a short timeout so context
// cancellation is honoured within a second.
func (h *rpiHardware) WaitForButtonEdge(ctx context.Context) error {
	for {
		if h.button.WaitForEdge(time.Second) {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

func (h *rpiHardware) ButtonPressed() bool {
	return h.button.Read() == gpio.Low
}

func (h *rpiHardware) Close() error {
	for _, p := range []gpio.PinIO{h.ledRed, h.ledGreen, h.ledButton, h.buzzer, h.servo} {
		_ = p.Halt()
	}
	return h.button.Halt()
}

type rpiReader struct {
	dev  *mfrc522.Dev
	port spi.PortCloser
}

// WaitForCard polls the reader until a card enters the field.  The UID is
// hex-encoded into the opaque identifier forwarded to the host.
func (r *rpiReader) WaitForCard(ctx context.Context) (string, error) {
	for {
		uid, err := r.dev.ReadUID(500 * time.Millisecond)
		if err == nil && len(uid) > 0 {
			return hex.EncodeToString(uid), nil
		}
		if cerr := ctx.Err(); cerr != nil {
			return "", cerr
		}
	}
}

// WaitForRemoval returns once the reader misses the card on two consecutive
// polls.  A single miss can be an RF glitch while the card is still on the
// pad.
func (r *rpiReader) WaitForRemoval(ctx context.Context) error {
	misses := 0
	for misses < 2 {
		if _, err := r.dev.ReadUID(300 * time.Millisecond); err != nil {
			misses++
		} else {
			misses = 0
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
	}
	return nil
}

func (r *rpiReader) Close() error {
	if err := r.dev.Halt(); err != nil {
		r.port.Close()
		return err
	}
	return r.port.Close()
}
