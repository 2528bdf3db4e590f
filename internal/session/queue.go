package session

import (
	"github.com/omochice/relay-chat/internal/transport"
	"github.com/omochice/relay-chat/pkg/protocol"
)

// entry is one queued message. offset is the resume cursor into data after a
// partial write; 0 <= offset <= len(data).
type entry struct {
	msg    protocol.Message
	data   []byte
	offset int
}

// Queue holds outbound messages in push order. Messages are encoded once,
// when pushed, so their kind never has to be recovered from the bytes.
type Queue struct {
	entries []*entry
}

// Push appends msg to the tail.
func (q *Queue) Push(msg protocol.Message) {
	q.entries = append(q.entries, &entry{msg: msg, data: msg.Encode()})
}

// Len returns the number of queued messages.
func (q *Queue) Len() int {
	return len(q.entries)
}

// Front returns the head message and its resume offset.
func (q *Queue) Front() (protocol.Message, int, bool) {
	if len(q.entries) == 0 {
		return protocol.Message{}, 0, false
	}
	e := q.entries[0]
	return e.msg, e.offset, true
}

func (q *Queue) head() *entry {
	if len(q.entries) == 0 {
		return nil
	}
	return q.entries[0]
}

func (q *Queue) pop() {
	q.entries[0] = nil
	q.entries = q.entries[1:]
}

// drainSink receives the side effects of draining.
type drainSink interface {
	reportPresence()
	requestExit()
	requestShutdown()
	shutdownEchoed()
	sent(kind protocol.Kind, n int)
	sendFailed(kind protocol.Kind, err error)
	transportClosed(err error)
}

// DrainTick sends queued messages from the head while the transport accepts
// them. It stops at the first partial or would-block write so messages are
// never reordered. Once the transport reports closed, the remaining messages
// are discarded without further sends.
func (q *Queue) DrainTick(t Transport, sink drainSink) {
	closed := false

	for len(q.entries) > 0 {
		e := q.entries[0]
		kind := e.msg.Kind

		switch kind {
		case protocol.KindInfoRequest:
			sink.reportPresence()
			q.pop()
			continue
		case protocol.KindPeerExit:
			sink.requestExit()
			if closed || !t.Connected() {
				q.pop()
				continue
			}
		case protocol.KindServerShutdown:
			sink.requestShutdown()
		}

		if closed {
			q.pop()
			if kind == protocol.KindServerShutdown {
				sink.shutdownEchoed()
			}
			continue
		}

		res := t.Send(e.data, e.offset)
		if res.Status == transport.SendPartial && res.Offset >= len(e.data) {
			res = transport.Complete()
		}
		switch res.Status {
		case transport.SendComplete:
			sink.sent(kind, len(e.data))
			q.pop()
			if kind == protocol.KindServerShutdown {
				sink.shutdownEchoed()
			}
		case transport.SendPartial:
			if res.Offset > e.offset {
				e.offset = res.Offset
			}
			return
		case transport.SendWouldBlock:
			return
		case transport.SendClosed:
			q.pop()
			closed = true
			sink.transportClosed(res.Err)
			if kind == protocol.KindServerShutdown {
				sink.shutdownEchoed()
			}
		default:
			sink.sendFailed(kind, res.Err)
			q.pop()
		}
	}
}
