package transport

import (
	"bytes"
	"net"
	"sync"
)

const inboxDepth = 64

// Inbox turns a blocking read loop into non-blocking frame delivery.
//
// Pump runs in its own goroutine and hands raw chunks over a channel. Next is
// called from the session goroutine only; it accumulates chunks until a
// terminator is seen and returns one frame per call.
type Inbox struct {
	chunks   chan []byte
	notify   chan struct{}
	done     chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	err      error

	term     []byte
	acc      []byte
	finished bool
}

// NewInbox creates an empty Inbox whose Pending looks for terminator.
func NewInbox(terminator []byte) *Inbox {
	return &Inbox{
		chunks: make(chan []byte, inboxDepth),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
		stop:   make(chan struct{}),
		term:   terminator,
	}
}

// Pump calls read until it fails, forwarding every non-empty chunk. The error
// that ended the loop is reported by Next once all buffered frames are gone.
// Pump must be called exactly once.
func (in *Inbox) Pump(read func() ([]byte, error)) {
	defer func() {
		close(in.done)
		in.signal()
	}()

	for {
		data, err := read()
		if len(data) > 0 {
			chunk := make([]byte, len(data))
			copy(chunk, data)
			select {
			case in.chunks <- chunk:
			case <-in.stop:
				in.err = net.ErrClosed
				return
			}
			in.signal()
		}
		if err != nil {
			in.err = err
			return
		}
	}
}

// Notify returns a channel that receives a value whenever new data or the end
// of the stream arrives.
func (in *Inbox) Notify() <-chan struct{} {
	return in.notify
}

// Pending reports whether Next has something to return other than
// RecvIncomplete.
func (in *Inbox) Pending() bool {
	if bytes.Contains(in.acc, in.term) || len(in.chunks) > 0 {
		return true
	}
	if in.finished {
		return false
	}
	select {
	case <-in.done:
		return true
	default:
		return false
	}
}

// Next returns at most one complete frame ending with terminator.
func (in *Inbox) Next(terminator []byte) RecvResult {
	in.term = terminator
	if frame, ok := in.cut(terminator); ok {
		return RecvResult{Status: RecvFrame, Frame: frame}
	}

	for drained := false; !drained; {
		select {
		case chunk := <-in.chunks:
			in.acc = append(in.acc, chunk...)
			if frame, ok := in.cut(terminator); ok {
				return RecvResult{Status: RecvFrame, Frame: frame}
			}
		default:
			drained = true
		}
	}

	select {
	case <-in.done:
	default:
		return RecvResult{Status: RecvIncomplete}
	}

	// The pump has stopped; drain whatever it sent before stopping.
	for len(in.chunks) > 0 {
		in.acc = append(in.acc, <-in.chunks...)
		if frame, ok := in.cut(terminator); ok {
			return RecvResult{Status: RecvFrame, Frame: frame}
		}
	}

	in.finished = true
	if in.err == nil || IsClosed(in.err) {
		return RecvResult{Status: RecvClosed, Err: in.err}
	}
	return RecvResult{Status: RecvError, Err: in.err}
}

// Stop releases a Pump blocked on a full inbox. Safe to call more than once.
func (in *Inbox) Stop() {
	in.stopOnce.Do(func() { close(in.stop) })
}

// Buffered returns the number of accumulated bytes not yet returned.
func (in *Inbox) Buffered() int {
	return len(in.acc)
}

func (in *Inbox) cut(terminator []byte) ([]byte, bool) {
	i := bytes.Index(in.acc, terminator)
	if i < 0 {
		return nil, false
	}
	end := i + len(terminator)
	frame := make([]byte, end)
	copy(frame, in.acc[:end])
	in.acc = append(in.acc[:0], in.acc[end:]...)
	return frame, true
}

func (in *Inbox) signal() {
	select {
	case in.notify <- struct{}{}:
	default:
	}
}
