// Package session implements the client side of a two-party chat relayed
// through a server: a poll-driven engine that interprets input, drains an
// ordered outbound queue over a non-blocking transport, dispatches inbound
// frames and tracks presence until the shutdown handshake completes.
package session

import (
	"time"

	"github.com/omochice/relay-chat/internal/poll"
	"github.com/omochice/relay-chat/internal/presence"
	"github.com/omochice/relay-chat/internal/transport"
	"github.com/omochice/relay-chat/pkg/protocol"
)

// Transport is the non-blocking connection to the relay.
type Transport interface {
	// Send writes data starting at offset.
	Send(data []byte, offset int) transport.SendResult
	// Receive returns at most one complete frame ending with terminator.
	Receive(terminator []byte) transport.RecvResult
	// Connected reports whether the relay is considered reachable.
	Connected() bool
	// ResetConnected marks the transport unlinked without network I/O.
	ResetConnected()
	Close() error
}

// InputSource yields user lines without blocking.
type InputSource interface {
	ReadLine() (string, bool)
}

// Multiplexer performs the bounded readiness wait of a tick.
type Multiplexer interface {
	Wait(budget time.Duration) poll.Readiness
}

// Display shows session output to the user. Show receives decoded frames
// with their kind, Notice receives diagnostics raised by the engine itself.
type Display interface {
	Show(msg protocol.Message)
	Notice(text string)
	ShowReport(r presence.Report)
}

// State of an Engine.
type State int

const (
	Running State = iota
	Terminated
)

// String returns the string representation of State
func (s State) String() string {
	if s == Terminated {
		return "terminated"
	}
	return "running"
}

// ShutdownFlags govern termination.
type ShutdownFlags struct {
	// LocalExitRequested is set when an exit command leaves the queue.
	LocalExitRequested bool
	// LocalShutdownRequested is set when this client offers a shutdown
	// command to the relay.
	LocalShutdownRequested bool
	// ServerShutdownRequested is set when the relay announces shutdown.
	ServerShutdownRequested bool
	// ShutdownEchoed is set once a shutdown frame has left the queue after
	// being transmitted.
	ShutdownEchoed bool
}

// done reports whether the session should terminate.
func (f ShutdownFlags) done() bool {
	return (f.ServerShutdownRequested && f.ShutdownEchoed) || f.LocalExitRequested
}
