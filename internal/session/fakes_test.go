package session_test

import (
	"testing"
	"time"

	"github.com/omochice/relay-chat/internal/poll"
	"github.com/omochice/relay-chat/internal/presence"
	"github.com/omochice/relay-chat/internal/session"
	"github.com/omochice/relay-chat/internal/transport"
	"github.com/omochice/relay-chat/pkg/protocol"
)

// fakeTransport records every Send and replays scripted results.
type fakeTransport struct {
	connected bool
	closed    bool

	// results are consumed one per Send; once empty, Send completes.
	results []transport.SendResult
	sends   []sendCall
	wire    []byte

	inbound [][]byte
	recvEnd transport.RecvStatus
}

type sendCall struct {
	data   []byte
	offset int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{connected: true, recvEnd: transport.RecvIncomplete}
}

func (f *fakeTransport) Send(data []byte, offset int) transport.SendResult {
	f.sends = append(f.sends, sendCall{data: append([]byte(nil), data...), offset: offset})

	res := transport.Complete()
	if len(f.results) > 0 {
		res = f.results[0]
		f.results = f.results[1:]
	}

	switch res.Status {
	case transport.SendComplete:
		f.wire = append(f.wire, data[offset:]...)
	case transport.SendPartial:
		f.wire = append(f.wire, data[offset:res.Offset]...)
	case transport.SendClosed:
		f.connected = false
	}
	return res
}

func (f *fakeTransport) Receive(terminator []byte) transport.RecvResult {
	if len(f.inbound) > 0 {
		frame := f.inbound[0]
		f.inbound = f.inbound[1:]
		return transport.RecvResult{Status: transport.RecvFrame, Frame: frame}
	}
	if f.recvEnd == transport.RecvClosed {
		f.connected = false
	}
	return transport.RecvResult{Status: f.recvEnd}
}

func (f *fakeTransport) Connected() bool { return f.connected }
func (f *fakeTransport) ResetConnected() { f.connected = false }

func (f *fakeTransport) Close() error {
	f.closed = true
	f.connected = false
	return nil
}

func (f *fakeTransport) deliver(frames ...[]byte) {
	f.inbound = append(f.inbound, frames...)
}

// fakeDisplay records everything shown.
type fakeDisplay struct {
	lines   []string
	kinds   []protocol.Kind
	reports []presence.Report
}

func (d *fakeDisplay) Show(msg protocol.Message) {
	d.lines = append(d.lines, msg.Text())
	d.kinds = append(d.kinds, msg.Kind)
}

func (d *fakeDisplay) Notice(text string)           { d.lines = append(d.lines, text) }
func (d *fakeDisplay) ShowReport(r presence.Report) { d.reports = append(d.reports, r) }

func (d *fakeDisplay) last() string {
	if len(d.lines) == 0 {
		return ""
	}
	return d.lines[len(d.lines)-1]
}

// fakeMux reports input ready while the script has lines and transport ready
// while the fake transport has frames queued.
type fakeMux struct {
	input     *scriptInput
	transport *fakeTransport
}

func (m *fakeMux) Wait(time.Duration) poll.Readiness {
	return poll.Readiness{
		Input:     len(m.input.lines) > 0,
		Transport: len(m.transport.inbound) > 0 || m.transport.recvEnd != transport.RecvIncomplete,
	}
}

type scriptInput struct {
	lines []string
}

func (s *scriptInput) ReadLine() (string, bool) {
	if len(s.lines) == 0 {
		return "", false
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, true
}

func (s *scriptInput) enter(lines ...string) {
	s.lines = append(s.lines, lines...)
}

type harness struct {
	engine    *session.Engine
	transport *fakeTransport
	input     *scriptInput
	display   *fakeDisplay
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		transport: newFakeTransport(),
		input:     &scriptInput{},
		display:   &fakeDisplay{},
	}
	e, err := session.New(session.Config{
		Transport:   h.transport,
		Input:       h.input,
		Multiplexer: &fakeMux{input: h.input, transport: h.transport},
		Display:     h.display,
	})
	if err != nil {
		t.Fatalf("session.New() error = %v", err)
	}
	h.engine = e
	return h
}

func (h *harness) tick() session.State {
	return h.engine.Tick(time.Millisecond)
}

var _ session.Transport = (*fakeTransport)(nil)
var _ session.Display = (*fakeDisplay)(nil)
