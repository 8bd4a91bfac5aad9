package pluginapi

import (
	"errors"
	"fmt"
)

// ErrOutletFull is returned when a reply cannot be delivered because the
// recipient has not drained its outlet.
var ErrOutletFull = errors.New("outlet full")

// Inlet is the one-directional endpoint a participant submits messages
// through. Every message sent through an Inlet is stamped with the Inlet's
// address as its sender.
type Inlet struct {
	address string
	submit  func(Message) error
}

// NewInlet returns an Inlet that stamps messages with address and hands them
// to submit.
func NewInlet(address string, submit func(Message) error) Inlet {
	return Inlet{address: address, submit: submit}
}

// Address is the sender address stamped on submitted messages.
func (i Inlet) Address() string { return i.address }

// Send submits m for routing on the next tick.
func (i Inlet) Send(m Message) error {
	if i.submit == nil {
		return fmt.Errorf("inlet %q is not connected", i.address)
	}
	return i.submit(m.From(i.address))
}

// Outlet is a bounded mailbox that replies are delivered into.
type Outlet struct {
	ch chan Message
}

// DefaultOutletCapacity is used when NewOutlet is given a non-positive size.
const DefaultOutletCapacity = 64

// NewOutlet creates an Outlet holding at most capacity undelivered messages.
func NewOutlet(capacity int) *Outlet {
	if capacity <= 0 {
		capacity = DefaultOutletCapacity
	}
	return &Outlet{ch: make(chan Message, capacity)}
}

// Deliver enqueues m without blocking.
func (o *Outlet) Deliver(m Message) error {
	select {
	case o.ch <- m:
		return nil
	default:
		return fmt.Errorf("%w: dropping %s", ErrOutletFull, m.ID())
	}
}

// C exposes the receive side of the mailbox.
func (o *Outlet) C() <-chan Message { return o.ch }

// Len is the number of messages waiting.
func (o *Outlet) Len() int { return len(o.ch) }

// Drain removes and returns every waiting message.
func (o *Outlet) Drain() []Message {
	var out []Message
	for {
		select {
		case m := <-o.ch:
			out = append(out, m)
		default:
			return out
		}
	}
}
