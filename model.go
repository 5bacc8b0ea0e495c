package main

import "time"

// Decision is the outcome of one authentication round trip.  It is produced
// by the AuthClient, consumed immediately by the door controller and never
// persisted.
type Decision int

const (
	// Denied means the host recognised the card but refuses this room.
	// Deliberately the zero value: a Decision that was never filled in
	// must not open the door.
	Denied Decision = iota
	// Granted means the host recognised the card and allows this room.
	Granted
	// UnknownCard means the host does not recognise the card at all.
	UnknownCard
	// HostUnreachable covers connection failures and timeouts.
	HostUnreachable
	// HostError covers non-success responses and unparseable bodies.
	HostError
)

func (d Decision) String() string {
	switch d {
	case Granted:
		return "granted"
	case Denied:
		return "denied"
	case UnknownCard:
		return "unknown card"
	case HostUnreachable:
		return "host unreachable"
	default:
		return "host error"
	}
}

// AuthResult pairs a Decision with the registered user name the host returned
// for a granted card.  User is empty unless Decision is Granted.
type AuthResult struct {
	Decision Decision
	User     string
}

// DoorState is the controller's single piece of mutable shared state.  All
// transitions happen inside the controller; event sources only request them.
type DoorState int32

const (
	StateIdle DoorState = iota
	StateProcessing
	StateUnlocked
	StateError
)

func (s DoorState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProcessing:
		return "processing"
	case StateUnlocked:
		return "unlocked"
	default:
		return "error"
	}
}

// Actions reported in notifications and the event log.
const (
	ActionUnlock = "UNLOCK"
	ActionDenied = "DENIED"
	ActionError  = "ERROR"
	ActionFault  = "FAULT"
	ActionReset  = "RESET"
)

// ActorButton labels events triggered by the wall button rather than a card.
const ActorButton = "button"

// NotificationEvent describes one resolved access attempt.  Ownership passes
// to the notifiers, which discard it after best-effort delivery.
type NotificationEvent struct {
	Time   time.Time
	Actor  string
	Action string
}
