// Package poll waits, within a budget, for the chat input or the relay
// connection to become ready.
package poll

import (
	"time"
)

// Source is anything with level-triggered readiness and an edge signal.
type Source interface {
	// Pending reports whether a read would make progress right now.
	Pending() bool
	// Notify delivers a value when new data may have arrived.
	Notify() <-chan struct{}
}

// Readiness is the result of one Wait.
type Readiness struct {
	Input     bool
	Transport bool
}

// Any reports whether at least one source is ready.
func (r Readiness) Any() bool {
	return r.Input || r.Transport
}

// Poller multiplexes one input source and one transport.
type Poller struct {
	input     Source
	transport Source
}

// New creates a Poller. Either source may be nil.
func New(input, transport Source) *Poller {
	return &Poller{input: input, transport: transport}
}

// Wait returns as soon as a source is ready, or after budget elapses.
func (p *Poller) Wait(budget time.Duration) Readiness {
	if r := p.check(); r.Any() || budget <= 0 {
		return r
	}

	timer := time.NewTimer(budget)
	defer timer.Stop()

	for {
		select {
		case <-notify(p.input):
		case <-notify(p.transport):
		case <-timer.C:
			return p.check()
		}
		if r := p.check(); r.Any() {
			return r
		}
	}
}

func (p *Poller) check() Readiness {
	return Readiness{
		Input:     p.input != nil && p.input.Pending(),
		Transport: p.transport != nil && p.transport.Pending(),
	}
}

// notify returns nil for a nil source; receiving from nil blocks forever.
func notify(s Source) <-chan struct{} {
	if s == nil {
		return nil
	}
	return s.Notify()
}
