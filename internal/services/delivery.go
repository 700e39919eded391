package services

import (
	"context"
)

// Delivery kinds recorded in reports.
const (
	DeliveryFanout = "fanout"
	DeliveryRelay  = "relay"
)

// DeliveryAttempt is the outcome of one outbound send or forward.
type DeliveryAttempt struct {
	Recipient int64
	// MessageID is the forwarded message id for relay forwards, zero otherwise.
	MessageID int64
	Err       error
}

// DeliveryReport collects every attempt made for one fan-out or relay so
// failures are surfaced instead of swallowed.
type DeliveryReport struct {
	Kind     string
	Subject  string // post id or tracking code
	Attempts []DeliveryAttempt
}

func (r *DeliveryReport) add(recipient, messageID int64, err error) {
	r.Attempts = append(r.Attempts, DeliveryAttempt{Recipient: recipient, MessageID: messageID, Err: err})
}

// Delivered counts successful attempts.
func (r DeliveryReport) Delivered() int {
	n := 0
	for _, a := range r.Attempts {
		if a.Err == nil {
			n++
		}
	}
	return n
}

// Failed returns the failed attempts in order.
func (r DeliveryReport) Failed() []DeliveryAttempt {
	var out []DeliveryAttempt
	for _, a := range r.Attempts {
		if a.Err != nil {
			out = append(out, a)
		}
	}
	return out
}

// DeliverySink receives every report produced by the relay and the fan-out engine.
type DeliverySink interface {
	Record(ctx context.Context, r DeliveryReport)
}

type nopSink struct{}

func (nopSink) Record(context.Context, DeliveryReport) {}

func sinkOrNop(s DeliverySink) DeliverySink {
	if s == nil {
		return nopSink{}
	}
	return s
}
