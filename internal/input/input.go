// Package input provides the line sources the chat session reads commands
// and messages from. Both backends are non-blocking.
package input

import (
	"bufio"
	"io"
	"strings"
)

const lineDepth = 16

// Stream reads lines from an io.Reader in a background goroutine.
type Stream struct {
	lines  chan string
	notify chan struct{}
	done   chan struct{}
	err    error
}

// StreamOption configures a Stream.
type StreamOption func(*streamConfig)

type streamConfig struct {
	eofLine string
}

// WithEOFLine makes the stream deliver line once the reader is exhausted,
// e.g. "exit" so that piped input ends the session.
func WithEOFLine(line string) StreamOption {
	return func(c *streamConfig) { c.eofLine = line }
}

// NewStream starts reading r.
func NewStream(r io.Reader, opts ...StreamOption) *Stream {
	var cfg streamConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Stream{
		lines:  make(chan string, lineDepth),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go s.run(r, cfg)
	return s
}

func (s *Stream) run(r io.Reader, cfg streamConfig) {
	defer close(s.done)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		s.push(scanner.Text())
	}
	s.err = scanner.Err()

	if cfg.eofLine != "" {
		s.push(cfg.eofLine)
	}
}

func (s *Stream) push(line string) {
	s.lines <- strings.TrimRight(line, "\r\n")
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// ReadLine returns the next line if one is buffered.
func (s *Stream) ReadLine() (string, bool) {
	select {
	case line := <-s.lines:
		return line, true
	default:
		return "", false
	}
}

// Pending reports whether ReadLine would return a line.
func (s *Stream) Pending() bool {
	return len(s.lines) > 0
}

// Notify signals a new line.
func (s *Stream) Notify() <-chan struct{} {
	return s.notify
}

// Done is closed once the reader is exhausted.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Err returns the read error, if any, after Done is closed.
func (s *Stream) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Script replays a fixed list of lines, one per ReadLine.
type Script struct {
	lines  []string
	notify chan struct{}
}

// NewScript creates a Script.
func NewScript(lines ...string) *Script {
	return &Script{lines: lines, notify: make(chan struct{})}
}

// ReadLine pops the next line.
func (s *Script) ReadLine() (string, bool) {
	if len(s.lines) == 0 {
		return "", false
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, true
}

// Pending reports whether lines remain.
func (s *Script) Pending() bool {
	return len(s.lines) > 0
}

// Notify never fires; a Script is either pending or exhausted.
func (s *Script) Notify() <-chan struct{} {
	return s.notify
}

// Remaining returns the number of lines not yet read.
func (s *Script) Remaining() int {
	return len(s.lines)
}
