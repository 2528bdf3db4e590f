package relay_test

import (
	"testing"

	"github.com/omochice/relay-chat/internal/relay"
)

type mockConn struct {
	closed bool
}

func (m *mockConn) Read([]byte) (int, error) { return 0, nil }
func (m *mockConn) Write([]byte) error       { return nil }
func (m *mockConn) Close() error             { m.closed = true; return nil }
func (m *mockConn) RemoteAddr() string       { return "127.0.0.1:1234" }
func (m *mockConn) Kind() string             { return "mock" }

func newClient() *relay.Client {
	return relay.NewClient(&mockConn{})
}

func TestHub_Register(t *testing.T) {
	hub := relay.NewHub(nil)
	a, b := newClient(), newClient()

	peer, ok := hub.Register(a)
	if !ok || peer != nil {
		t.Fatalf("Register(a) = %v, %v; want nil, true", peer, ok)
	}
	peer, ok = hub.Register(b)
	if !ok || peer != a {
		t.Fatalf("Register(b) = %v, %v; want a, true", peer, ok)
	}
	if got := hub.ClientCount(); got != 2 {
		t.Errorf("ClientCount() = %d, want 2", got)
	}
	if a.ID == b.ID {
		t.Error("clients share an ID")
	}
}

func TestHub_Register_Full(t *testing.T) {
	hub := relay.NewHub(nil)
	hub.Register(newClient())
	hub.Register(newClient())

	if _, ok := hub.Register(newClient()); ok {
		t.Error("third client accepted")
	}
	if got := hub.ClientCount(); got != relay.MaxClients {
		t.Errorf("ClientCount() = %d, want %d", got, relay.MaxClients)
	}
}

func TestHub_Register_ShuttingDown(t *testing.T) {
	hub := relay.NewHub(nil)
	if !hub.BeginShutdown() {
		t.Fatal("first BeginShutdown() = false")
	}
	if hub.BeginShutdown() {
		t.Error("second BeginShutdown() = true")
	}
	if _, ok := hub.Register(newClient()); ok {
		t.Error("client accepted during shutdown")
	}
}

func TestHub_Unregister(t *testing.T) {
	hub := relay.NewHub(nil)
	a, b := newClient(), newClient()
	hub.Register(a)
	hub.Register(b)

	if got := hub.Unregister(a); got != 1 {
		t.Errorf("Unregister() = %d, want 1", got)
	}
	if hub.Peer(b) != nil {
		t.Error("b still has a peer")
	}
	if got := hub.Unregister(a); got != 1 {
		t.Errorf("second Unregister() = %d, want 1", got)
	}
}

func TestHub_SendToPeer(t *testing.T) {
	hub := relay.NewHub(nil)
	a, b := newClient(), newClient()
	hub.Register(a)

	if hub.SendToPeer(a, []byte("x")) {
		t.Error("SendToPeer reported a peer for a lone client")
	}

	hub.Register(b)
	if !hub.SendToPeer(a, []byte("x")) {
		t.Fatal("SendToPeer found no peer")
	}
	select {
	case got := <-b.Outgoing:
		if string(got) != "x" {
			t.Errorf("b received %q", got)
		}
	default:
		t.Error("nothing queued for b")
	}
	if len(a.Outgoing) != 0 {
		t.Error("sender received its own frame")
	}
}

func TestHub_Broadcast(t *testing.T) {
	hub := relay.NewHub(nil)
	a, b := newClient(), newClient()
	hub.Register(a)
	hub.Register(b)

	hub.Broadcast([]byte("[SHUT][EOM]"))

	if len(a.Outgoing) != 1 || len(b.Outgoing) != 1 {
		t.Errorf("queued = %d, %d; want 1, 1", len(a.Outgoing), len(b.Outgoing))
	}
}

func TestHub_SendTo_Unregistered(t *testing.T) {
	hub := relay.NewHub(nil)
	c := newClient()

	hub.SendTo(c, []byte("x"))

	if len(c.Outgoing) != 0 {
		t.Error("frame queued for an unregistered client")
	}
}

func TestHub_SendTo_FullQueueDrops(t *testing.T) {
	hub := relay.NewHub(nil)
	c := newClient()
	hub.Register(c)

	for i := 0; i < cap(c.Outgoing)+5; i++ {
		hub.SendTo(c, []byte("x"))
	}
	if len(c.Outgoing) != cap(c.Outgoing) {
		t.Errorf("queued = %d, want %d", len(c.Outgoing), cap(c.Outgoing))
	}
}

func TestHub_CloseAll(t *testing.T) {
	hub := relay.NewHub(nil)
	conns := []*mockConn{{}, {}}
	for _, m := range conns {
		hub.Register(relay.NewClient(m))
	}

	hub.CloseAll()

	for i, m := range conns {
		if !m.closed {
			t.Errorf("conn %d not closed", i)
		}
	}
}

func TestHub_CloseAll_RefusesLaterClients(t *testing.T) {
	hub := relay.NewHub(nil)
	hub.CloseAll()

	if _, ok := hub.Register(newClient()); ok {
		t.Error("client accepted after CloseAll")
	}
}
