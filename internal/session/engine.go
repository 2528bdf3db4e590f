package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/omochice/relay-chat/internal/presence"
	"github.com/omochice/relay-chat/internal/transport"
	"github.com/omochice/relay-chat/pkg/protocol"
)

// TextTransportClosed is displayed when a send finds the relay gone.
const TextTransportClosed = "server not connected"

// Config wires an Engine to its collaborators.
type Config struct {
	Transport   Transport
	Input       InputSource
	Multiplexer Multiplexer
	Display     Display
	Interpreter Interpreter
	Logger      *zap.Logger
	// Presence defaults to presence.New().
	Presence *presence.Presence
}

// Engine runs one chat session. It owns its queue and presence and is driven
// from a single goroutine through Tick or Run.
type Engine struct {
	id        string
	transport Transport
	input     InputSource
	mux       Multiplexer
	display   Display
	interp    Interpreter
	log       *zap.Logger

	queue    *Queue
	presence *presence.Presence
	flags    ShutdownFlags
	state    State

	closeOnce sync.Once
	closeErr  error
}

// New creates an Engine in the Running state.
func New(cfg Config) (*Engine, error) {
	if cfg.Transport == nil {
		return nil, errors.New("session: transport is required")
	}
	if cfg.Input == nil {
		return nil, errors.New("session: input source is required")
	}
	if cfg.Multiplexer == nil {
		return nil, errors.New("session: multiplexer is required")
	}
	if cfg.Display == nil {
		return nil, errors.New("session: display is required")
	}

	e := &Engine{
		id:        uuid.NewString(),
		transport: cfg.Transport,
		input:     cfg.Input,
		mux:       cfg.Multiplexer,
		display:   cfg.Display,
		interp:    cfg.Interpreter,
		log:       cfg.Logger,
		queue:     &Queue{},
		presence:  cfg.Presence,
	}
	if e.log == nil {
		e.log = zap.NewNop()
	}
	e.log = e.log.With(zap.String("session", e.id))
	if e.presence == nil {
		e.presence = presence.New()
	}
	e.presence.SetServerLinked(e.transport.Connected())

	e.log.Info("session started", zap.Bool("server_linked", e.presence.ServerLinked()))
	return e, nil
}

// ID returns the session identifier used in logs.
func (e *Engine) ID() string { return e.id }

// State returns the current state.
func (e *Engine) State() State { return e.state }

// Flags returns a copy of the shutdown flags.
func (e *Engine) Flags() ShutdownFlags { return e.flags }

// Presence returns the session's presence tracker.
func (e *Engine) Presence() *presence.Presence { return e.presence }

// Pending returns the number of queued outbound messages.
func (e *Engine) Pending() int { return e.queue.Len() }

// Send queues msg as if it had been typed.
func (e *Engine) Send(msg protocol.Message) {
	e.queue.Push(msg)
}

// Tick runs one pass of the session loop, waiting at most budget for input
// or transport readiness.
func (e *Engine) Tick(budget time.Duration) State {
	if e.state == Terminated {
		return e.state
	}

	ready := e.mux.Wait(budget)

	if ready.Input {
		if line, ok := e.input.ReadLine(); ok {
			if msg, ok := e.interp.Parse(line); ok {
				e.queue.Push(msg)
			}
		}
	}
	if e.queue.Len() > 0 {
		e.queue.DrainTick(e.transport, e)
	}

	if ready.Transport {
		e.receive()
	}

	if e.flags.done() {
		e.transport.ResetConnected()
		e.state = Terminated
		e.log.Info("session terminated",
			zap.Bool("local_exit", e.flags.LocalExitRequested),
			zap.Bool("server_shutdown", e.flags.ServerShutdownRequested))
	}

	e.presence.SetServerLinked(e.transport.Connected())
	return e.state
}

// Run calls Tick until the session terminates or ctx is cancelled.
func (e *Engine) Run(ctx context.Context, budget time.Duration) error {
	for e.Tick(budget) != Terminated {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

// Close tears the session down exactly once. If the relay is still linked
// and the user never asked to exit, one best-effort exit notification is
// sent without retry before the transport is closed.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		if e.transport.Connected() && !e.flags.LocalExitRequested {
			e.notifyExit()
		}
		e.state = Terminated
		e.closeErr = e.transport.Close()
		e.log.Info("session closed")
	})
	return e.closeErr
}

// notifyExit must not start a frame in the middle of a partially written
// one, so a pending head is given a single attempt to finish first.
func (e *Engine) notifyExit() {
	if head := e.queue.head(); head != nil && head.offset > 0 {
		res := e.transport.Send(head.data, head.offset)
		if res.Status != transport.SendComplete {
			e.log.Debug("exit notification skipped, partial frame pending",
				zap.Stringer("kind", head.msg.Kind), zap.Stringer("status", res.Status), zap.Error(res.Err))
			return
		}
		e.queue.pop()
	}
	res := e.transport.Send(protocol.Service(protocol.KindPeerExit).Encode(), 0)
	e.log.Debug("exit notification", zap.Stringer("status", res.Status), zap.Error(res.Err))
}

func (e *Engine) receive() {
	res := e.transport.Receive(protocol.Terminator)
	switch res.Status {
	case transport.RecvFrame:
		e.dispatch(res.Frame)
	case transport.RecvClosed:
		e.log.Warn("server closed the connection", zap.Error(res.Err))
	case transport.RecvError:
		e.log.Warn("receive failed", zap.Error(res.Err))
	}
}

func (e *Engine) dispatch(frame []byte) {
	e.presence.AddTraffic(len(frame))

	msg := protocol.Decode(frame)
	e.log.Debug("frame received", zap.Stringer("kind", msg.Kind), zap.Int("bytes", len(frame)))

	switch msg.Kind {
	case protocol.KindPeerLinkUp:
		e.presence.IncrementPeer()
	case protocol.KindPeerExit, protocol.KindPeerLinkDown:
		e.presence.DecrementPeer()
	case protocol.KindInfoRequest:
		e.presence.ResetPeerCount()
	case protocol.KindServerShutdown:
		e.queue.Push(protocol.Service(protocol.KindServerShutdown))
		e.flags.ServerShutdownRequested = true
	}

	e.display.Show(msg)

	if e.flags.LocalShutdownRequested {
		e.transport.ResetConnected()
	}
}

// drainSink

func (e *Engine) reportPresence() {
	e.display.ShowReport(e.presence.Report())
}

func (e *Engine) requestExit() {
	e.flags.LocalExitRequested = true
}

func (e *Engine) requestShutdown() {
	e.flags.LocalShutdownRequested = true
}

func (e *Engine) shutdownEchoed() {
	e.flags.ShutdownEchoed = true
}

func (e *Engine) sent(kind protocol.Kind, n int) {
	e.presence.AddTraffic(n)
	e.log.Debug("frame sent", zap.Stringer("kind", kind), zap.Int("bytes", n))
}

func (e *Engine) sendFailed(kind protocol.Kind, err error) {
	e.log.Warn("send failed, message dropped", zap.Stringer("kind", kind), zap.Error(err))
}

func (e *Engine) transportClosed(err error) {
	e.log.Warn("server closed the connection while sending", zap.Error(err))
	e.display.Notice(TextTransportClosed)
}
