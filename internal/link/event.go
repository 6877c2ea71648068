package link

import (
	"fmt"
	"time"
)

// Kind identifies what an Event reports.
type Kind int

const (
	KindReceived Kind = iota // a line arrived from the peer
	KindSent                 // a payload was written and flushed
	KindFault                // something failed; see Event.Fault
)

func (k Kind) String() string {
	switch k {
	case KindReceived:
		return "received"
	case KindSent:
		return "sent"
	case KindFault:
		return "fault"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Event is one entry on the controller's outbound channel.  Events are
// immutable once emitted; Payload is never shared with the controller.
type Event struct {
	Kind    Kind
	Payload []byte // line without terminator (Received) or payload as given to Send (Sent)
	Length  int    // len(Payload)
	Fault   *Fault // set for KindFault only
	ConnID  string // connection that produced the event; empty for faults raised without one
	Time    time.Time
}

// Text returns the payload as a string.
func (e Event) Text() string { return string(e.Payload) }

func (e Event) String() string {
	switch e.Kind {
	case KindFault:
		return fmt.Sprintf("fault: %v", e.Fault)
	default:
		return fmt.Sprintf("%s %q", e.Kind, e.Payload)
	}
}
