// Package console renders session output on a terminal with pterm.
package console

import (
	"io"
	"os"

	"github.com/pterm/pterm"

	"github.com/omochice/relay-chat/internal/presence"
	"github.com/omochice/relay-chat/internal/session"
	"github.com/omochice/relay-chat/pkg/protocol"
)

// Console implements session.Display.
type Console struct {
	out  io.Writer
	info *pterm.PrefixPrinter
	warn *pterm.PrefixPrinter
}

// Option configures a Console.
type Option func(*Console)

// WithWriter sends output to w instead of stdout.
func WithWriter(w io.Writer) Option {
	return func(c *Console) { c.out = w }
}

// New creates a Console.
func New(opts ...Option) *Console {
	c := &Console{out: os.Stdout}
	for _, opt := range opts {
		opt(c)
	}
	c.info = pterm.Info.WithWriter(c.out)
	c.warn = pterm.Warning.WithWriter(c.out)
	return c
}

// Show prints one received message. Chat payloads are printed verbatim,
// service messages are highlighted by kind.
func (c *Console) Show(msg protocol.Message) {
	switch msg.Kind {
	case protocol.KindChat:
		pterm.Fprintln(c.out, msg.Text())
	case protocol.KindPeerLinkUp, protocol.KindInfoRequest:
		c.info.Println(msg.Text())
	default:
		c.warn.Println(msg.Text())
	}
}

// Notice prints a diagnostic raised locally, such as a lost relay.
func (c *Console) Notice(text string) {
	c.warn.Println(text)
}

// ShowReport prints the presence report requested with the info command.
func (c *Console) ShowReport(r presence.Report) {
	c.info.Println(r.String())
}

// Banner prints the startup lines shown before the session begins.
func (c *Console) Banner(title string, lines ...string) {
	c.info.Println(title)
	for _, l := range lines {
		pterm.Fprintln(c.out, l)
	}
	pterm.Fprintln(c.out)
}

var _ session.Display = (*Console)(nil)
