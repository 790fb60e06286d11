package domain

import "time"

// EventType discriminates session events on the bus.
type EventType string

const (
	EventScan    EventType = "scan"
	EventLogin   EventType = "login"
	EventLogout  EventType = "logout"
	EventMessage EventType = "message"
	EventError   EventType = "error"
)

// Event is a single session event. Exactly the fields matching Type are set.
type Event struct {
	Type      EventType
	QRCode    string // scan
	Status    int    // scan
	User      string // login, logout
	Reason    string // logout
	Message   Message
	Err       error
	Timestamp time.Time
}

// EventBus queues session events between the source and the router.
type EventBus interface {
	Publish(ev Event)
	Subscribe() <-chan Event
	Close()
}
