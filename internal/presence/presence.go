// Package presence tracks whether the relay and the interlocutor are
// reachable, how long the interlocutor has been linked and how much traffic
// was exchanged since then.
package presence

import (
	"fmt"
	"time"
)

// Presence is owned by a single session and is not safe for concurrent use.
//
// The interlocutor is linked only while the server is linked and at least one
// peer is counted. Server loss always masks the peer count.
type Presence struct {
	serverLinked bool
	peerCount    int
	linkSince    time.Time
	bytes        uint64

	// linked caches the last derived value so transitions can be detected.
	linked bool
	now    func() time.Time
}

// Option configures a Presence.
type Option func(*Presence)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Presence) { p.now = now }
}

// New creates a Presence with both links down.
func New(opts ...Option) *Presence {
	p := &Presence{now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SetServerLinked records relay reachability. Losing the relay drops the
// interlocutor link as well.
func (p *Presence) SetServerLinked(linked bool) {
	p.serverLinked = linked
	p.update()
}

// IncrementPeer counts one more reachable interlocutor.
func (p *Presence) IncrementPeer() {
	p.peerCount++
	p.update()
}

// DecrementPeer counts one interlocutor gone. The count floors at zero.
func (p *Presence) DecrementPeer() {
	if p.peerCount > 0 {
		p.peerCount--
	}
	p.update()
}

// ResetPeerCount forgets every interlocutor.
func (p *Presence) ResetPeerCount() {
	p.peerCount = 0
	p.update()
}

// AddTraffic accounts n bytes exchanged with the interlocutor. Traffic is
// ignored while the interlocutor is not linked.
func (p *Presence) AddTraffic(n int) {
	if n <= 0 || !p.PeerLinked() {
		return
	}
	p.bytes += uint64(n)
}

// PeerLinked reports whether the interlocutor is reachable.
func (p *Presence) PeerLinked() bool {
	return p.serverLinked && p.peerCount > 0
}

// ServerLinked reports whether the relay is reachable.
func (p *Presence) ServerLinked() bool {
	return p.serverLinked
}

// PeerCount returns the current interlocutor count.
func (p *Presence) PeerCount() int {
	return p.peerCount
}

// Report snapshots the link state.
func (p *Presence) Report() Report {
	r := Report{
		PeerLinked:   p.PeerLinked(),
		ServerLinked: p.serverLinked,
		Bytes:        p.bytes,
	}
	if !p.linkSince.IsZero() {
		if d := p.now().Sub(p.linkSince); d > 0 {
			r.Elapsed = d
		}
	}
	return r
}

func (p *Presence) update() {
	linked := p.PeerLinked()
	switch {
	case p.linked && !linked:
		p.bytes = 0
		p.linkSince = time.Time{}
	case !p.linked && linked:
		p.linkSince = p.now()
	}
	p.linked = linked
}

// Report is a point-in-time view of a Presence.
type Report struct {
	PeerLinked   bool
	ServerLinked bool
	Elapsed      time.Duration
	Bytes        uint64
}

// Seconds returns the whole seconds elapsed since the interlocutor linked.
func (r Report) Seconds() int64 {
	return int64(r.Elapsed / time.Second)
}

func (r Report) String() string {
	return fmt.Sprintf("connected interlocutor: %t, connected server: %t, time: %ds, bytes: %d",
		r.PeerLinked, r.ServerLinked, r.Seconds(), r.Bytes)
}
