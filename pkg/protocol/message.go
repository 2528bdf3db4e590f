// Package protocol implements the tag/terminator framing spoken between chat
// clients and the relay.
//
// A frame is a fixed 6-byte kind tag, an optional payload (chat frames only)
// and the fixed 5-byte terminator:
//
//	[NORM]hello[EOM]
//	[LINK][EOM]
//
// Payloads are not escaped. A chat payload that contains the terminator
// verbatim will be split by the receiver.
package protocol

import (
	"bytes"
)

// TagSize is the length of every kind tag.
const TagSize = 6

// Terminator ends every frame.
var Terminator = []byte("[EOM]")

// Kind represents the type of a frame.
type Kind int

const (
	KindUnclassified Kind = iota
	KindChat
	KindPeerExit
	KindServerShutdown
	KindPeerLinkUp
	KindPeerLinkDown
	KindInfoRequest
)

// String returns the string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindChat:
		return "CHAT"
	case KindPeerExit:
		return "PEER_EXIT"
	case KindServerShutdown:
		return "SERVER_SHUTDOWN"
	case KindPeerLinkUp:
		return "PEER_LINK_UP"
	case KindPeerLinkDown:
		return "PEER_LINK_DOWN"
	case KindInfoRequest:
		return "INFO_REQUEST"
	default:
		return "UNCLASSIFIED"
	}
}

// tags maps every classified kind to its wire tag.
var tags = map[Kind][]byte{
	KindChat:           []byte("[NORM]"),
	KindPeerExit:       []byte("[EXIT]"),
	KindServerShutdown: []byte("[SHUT]"),
	KindPeerLinkUp:     []byte("[LINK]"),
	KindPeerLinkDown:   []byte("[DOWN]"),
	KindInfoRequest:    []byte("[INFO]"),
}

// Tag returns the wire tag of k, or nil for KindUnclassified.
func Tag(k Kind) []byte {
	return tags[k]
}

// Message is one protocol message. Payload is only meaningful for KindChat.
type Message struct {
	Kind    Kind
	Payload []byte
}

// Chat builds a chat message carrying text.
func Chat(text string) Message {
	return Message{Kind: KindChat, Payload: []byte(text)}
}

// Service builds a payload-less message of the given kind.
func Service(k Kind) Message {
	return Message{Kind: k}
}

// Encode encodes the message into a frame.
func (m Message) Encode() []byte {
	return Encode(m.Kind, m.Payload)
}

// Text returns the display text of the message.
func (m Message) Text() string {
	return Describe(m.Kind, m.Payload)
}

// Encode concatenates the tag of kind, the payload (chat only) and the
// terminator. An unclassified kind encodes to the bare terminator.
func Encode(kind Kind, payload []byte) []byte {
	tag := tags[kind]
	size := len(tag) + len(Terminator)
	if kind == KindChat {
		size += len(payload)
	}

	buf := make([]byte, 0, size)
	buf = append(buf, tag...)
	if kind == KindChat {
		buf = append(buf, payload...)
	}
	return append(buf, Terminator...)
}

// Classify recovers the kind of a frame from its first TagSize bytes.
// Short buffers and unknown tags are KindUnclassified.
func Classify(frame []byte) Kind {
	if len(frame) < TagSize {
		return KindUnclassified
	}
	head := frame[:TagSize]
	for k, tag := range tags {
		if bytes.Equal(head, tag) {
			return k
		}
	}
	return KindUnclassified
}

// Decode classifies a complete frame and extracts the chat payload with the
// tag and trailing terminator stripped. The payload is a copy.
func Decode(frame []byte) Message {
	kind := Classify(frame)
	if kind != KindChat {
		return Message{Kind: kind}
	}

	body := bytes.TrimSuffix(frame[TagSize:], Terminator)
	payload := make([]byte, len(body))
	copy(payload, body)
	return Message{Kind: KindChat, Payload: payload}
}

// ScanFrames is a bufio.SplitFunc that yields complete frames, terminator
// included. Trailing bytes without a terminator at EOF are dropped.
func ScanFrames(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if i := bytes.Index(data, Terminator); i >= 0 {
		end := i + len(Terminator)
		return end, data[:end], nil
	}
	if atEOF && len(data) > 0 {
		return len(data), nil, nil
	}
	return 0, nil, nil
}
