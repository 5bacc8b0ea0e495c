package main

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// Controller is the single authority over the door state and the physical
// actuators.  Event sources feed it through SubmitCard and SubmitButton; both
// drop their event when an attempt is already in flight, so at most one
// authentication round trip is outstanding at any time and the lock is only
// ever commanded from one goroutine.
type Controller struct {
	hw        Hardware
	auth      Authenticator
	notifiers []Notifier
	logger    *log.Logger
	events    *EventLogger

	dwell         time.Duration
	authTimeout   time.Duration
	failThreshold int
	buttonRemote  bool

	// blinkStep paces LED flash patterns; shortened in tests.
	blinkStep time.Duration

	// attemptMu serializes whole attempts, including actuator sequences
	// and the unlock dwell.  Entry points use TryLock so a busy controller
	// drops events instead of queueing them.
	attemptMu sync.Mutex
	state     atomic.Int32
	locked    atomic.Bool
	failures  int // consecutive host failures, guarded by attemptMu
	started   time.Time
	notifyWG  sync.WaitGroup
}

// NewController wires the controller to its collaborators.  Call Start before
// feeding it events.
func NewController(cfg Config, hw Hardware, auth Authenticator, notifiers []Notifier, logger *log.Logger, events *EventLogger) *Controller {
	return &Controller{
		hw:            hw,
		auth:          auth,
		notifiers:     notifiers,
		logger:        logger,
		events:        events,
		dwell:         time.Duration(cfg.Door.DwellSeconds) * time.Second,
		authTimeout:   time.Duration(cfg.Auth.TimeoutSeconds) * time.Second,
		failThreshold: cfg.Door.FailThreshold,
		buttonRemote:  cfg.Door.ButtonMode == "remote",
		blinkStep:     100 * time.Millisecond,
		started:       time.Now(),
	}
}

// Start drives the actuators to the known initial state: door locked, red LED
// on, button LED on.  Fail-closed: the daemon never assumes the door was left
// unlocked.
func (c *Controller) Start() error {
	if err := c.hw.DriveLock(true); err != nil {
		return err
	}
	c.locked.Store(true)
	c.hw.SetLED(RedLED, true)
	c.hw.SetLED(GreenLED, false)
	c.hw.SetLED(ButtonLED, true)
	c.events.Log("smartdoor started, door locked")
	return nil
}

// State returns the current door state without blocking on an in-flight
// attempt.
func (c *Controller) State() DoorState { return DoorState(c.state.Load()) }

// Locked reports the last commanded lock position.
func (c *Controller) Locked() bool { return c.locked.Load() }

// Uptime reports how long the controller has been running.
func (c *Controller) Uptime() time.Duration { return time.Since(c.started) }

// SubmitCard handles one card presentation.  Called by the NFC poller.  If an
// attempt is already in flight, or the controller is in the error state, the
// presentation is dropped: no network call, no actuator change.
func (c *Controller) SubmitCard(idm string) {
	if idm == "" {
		return
	}
	if !c.attemptMu.TryLock() {
		c.logger.Printf("card ignored: attempt in progress")
		return
	}
	defer c.attemptMu.Unlock()

	if st := c.State(); st != StateIdle {
		c.logger.Printf("card ignored: controller %s", st)
		return
	}
	c.state.Store(int32(StateProcessing))
	// Processing indicator: both LEDs lit while the round trip runs.
	c.hw.SetLED(GreenLED, true)

	ctx, cancel := context.WithTimeout(context.Background(), c.authTimeout)
	res := c.auth.Authenticate(ctx, idm)
	cancel()

	c.handleDecision(idm, res)
}

// SubmitButton handles one debounced button press.  A press while the
// controller is faulted clears the fault instead of unlocking; otherwise the
// press follows the granted path, locally or via the host depending on the
// configured button mode.
func (c *Controller) SubmitButton() {
	if !c.attemptMu.TryLock() {
		c.logger.Printf("button ignored: attempt in progress")
		return
	}
	defer c.attemptMu.Unlock()

	switch c.State() {
	case StateError:
		c.clearFault(ActorButton)
		return
	case StateIdle:
	default:
		return
	}
	c.state.Store(int32(StateProcessing))
	c.hw.SetLED(ButtonLED, false)

	var res AuthResult
	if c.buttonRemote {
		ctx, cancel := context.WithTimeout(context.Background(), c.authTimeout)
		res = c.auth.Authenticate(ctx, ActorButton)
		cancel()
	} else {
		// A button press is physically gated by being inside the room, so
		// the default policy authorizes it without a round trip.
		res = AuthResult{Decision: Granted, User: ActorButton}
	}

	c.handleDecision(ActorButton, res)
	c.hw.SetLED(ButtonLED, true)
}

// Reset clears the error state from the status API.  It waits for any
// in-flight attempt to finish.  Returns false when the controller was not
// faulted.
func (c *Controller) Reset(actor string) bool {
	c.attemptMu.Lock()
	defer c.attemptMu.Unlock()
	if c.State() != StateError {
		return false
	}
	c.clearFault(actor)
	return true
}

// handleDecision maps a resolved decision onto actuator commands and the next
// door state.  Runs with attemptMu held and state == PROCESSING; every path
// leaves state at IDLE or ERROR and dispatches exactly one notification.
func (c *Controller) handleDecision(actor string, res AuthResult) {
	switch res.Decision {
	case Granted:
		c.failures = 0
		user := res.User
		if user == "" {
			user = actor
		}
		c.unlockSequence(user)
	case Denied, UnknownCard:
		// A completed round trip, even a refusal, proves the host is
		// healthy.
		c.failures = 0
		c.denySequence(actor, res.Decision)
	default:
		c.failures++
		c.logger.Printf("authentication failed (%s), consecutive failures: %d", res.Decision, c.failures)
		if c.failures >= c.failThreshold {
			c.faultSequence(actor, res.Decision)
		} else {
			c.hostFailSequence(actor, res.Decision)
		}
	}
}

// unlockSequence opens the lock, holds it for the dwell period and relocks.
// The dwell is a fixed timer: a second tap during it is dropped by the busy
// rule, not treated as an extension.
func (c *Controller) unlockSequence(user string) {
	c.state.Store(int32(StateUnlocked))
	c.hw.SetLED(RedLED, false)
	c.hw.SetLED(GreenLED, true)
	c.hw.Buzz(3, 100*time.Millisecond, 50*time.Millisecond)

	if err := c.hw.DriveLock(false); err != nil {
		// The servo did not move; leave the door treated as locked.
		c.logger.Printf("unlock actuation failed: %v", err)
		c.hw.SetLED(GreenLED, false)
		c.hw.SetLED(RedLED, true)
		c.state.Store(int32(StateIdle))
		c.dispatch(ActionError, user)
		return
	}
	c.locked.Store(false)
	c.events.Log("unlocked by %s", user)
	c.dispatch(ActionUnlock, user)

	time.Sleep(c.dwell)

	if err := c.hw.DriveLock(true); err != nil {
		c.logger.Printf("relock actuation failed: %v", err)
	} else {
		c.locked.Store(true)
	}
	c.hw.Buzz(2, 100*time.Millisecond, 100*time.Millisecond)
	c.hw.SetLED(GreenLED, false)
	c.hw.SetLED(RedLED, true)
	c.state.Store(int32(StateIdle))
}

// denySequence signals a refused card: red flash plus two long warning beeps,
// no lock movement.
func (c *Controller) denySequence(actor string, d Decision) {
	c.flash(RedLED, 4)
	c.hw.Buzz(2, 500*time.Millisecond, 100*time.Millisecond)
	c.hw.SetLED(GreenLED, false)
	c.hw.SetLED(RedLED, true)
	c.events.Log("access denied for %s (%s)", actor, d)
	c.state.Store(int32(StateIdle))
	c.dispatch(ActionDenied, actor)
}

// hostFailSequence signals a failed round trip below the escalation
// threshold.  Alternating red/green is deliberately distinct from the deny
// flash so an operator can tell connectivity trouble from a refused card.
func (c *Controller) hostFailSequence(actor string, d Decision) {
	for i := 0; i < 3; i++ {
		c.hw.SetLED(RedLED, true)
		c.hw.SetLED(GreenLED, false)
		time.Sleep(c.blinkStep)
		c.hw.SetLED(RedLED, false)
		c.hw.SetLED(GreenLED, true)
		time.Sleep(c.blinkStep)
	}
	c.hw.SetLED(GreenLED, false)
	c.hw.SetLED(RedLED, true)
	c.events.Log("authentication failed for %s (%s)", actor, d)
	c.state.Store(int32(StateIdle))
	c.dispatch(ActionError, actor)
}

// faultSequence escalates to the error state after too many consecutive host
// failures.  Automatic unlocking stays disabled until the fault is explicitly
// cleared by a button press or the status API; it never heals silently.
func (c *Controller) faultSequence(actor string, d Decision) {
	c.state.Store(int32(StateError))
	c.hw.SetLED(RedLED, true)
	c.hw.SetLED(GreenLED, true)
	c.hw.Buzz(1, 2*time.Second, 0)
	c.events.Log("fault: %d consecutive host failures (last: %s)", c.failures, d)
	c.logger.Printf("entering error state after %d consecutive host failures", c.failures)
	c.dispatch(ActionFault, actor)
}

// clearFault returns a faulted controller to idle.  Runs with attemptMu held.
func (c *Controller) clearFault(actor string) {
	c.failures = 0
	c.hw.SetLED(GreenLED, false)
	c.hw.SetLED(RedLED, true)
	c.state.Store(int32(StateIdle))
	c.events.Log("fault cleared by %s", actor)
	c.dispatch(ActionReset, actor)
}

// flash toggles one LED off and on n times.
func (c *Controller) flash(l LED, n int) {
	for i := 0; i < n; i++ {
		c.hw.SetLED(l, false)
		time.Sleep(c.blinkStep)
		c.hw.SetLED(l, true)
		time.Sleep(c.blinkStep)
	}
}

// dispatch hands the event to every notifier on a detached goroutine so
// delivery can never block or delay the next access attempt.
func (c *Controller) dispatch(action, actor string) {
	ev := NotificationEvent{Time: time.Now(), Actor: actor, Action: action}
	c.notifyWG.Add(1)
	go func() {
		defer c.notifyWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		for _, n := range c.notifiers {
			if err := n.Notify(ctx, ev); err != nil {
				c.logger.Printf("notifier %s: %v", n.Name(), err)
			}
		}
	}()
}

// Wait blocks until all in-flight notification deliveries finish.  Used on
// shutdown and in tests.
func (c *Controller) Wait() { c.notifyWG.Wait() }
