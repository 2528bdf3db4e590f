package protocol

// Display sentences for service frames.
const (
	TextServerShutdown = "server received shutdown command"
	TextPeerExit       = "interlocutor left the chat"
	TextNoPeer         = "interlocutor not connected"
	TextPeerLinkUp     = "interlocutor connected"
	TextPeerLinkDown   = "interlocutor connection lost"
	TextUnclassified   = "server sent an unrecognized message"
)

// Describe returns the human text of a frame. Service kinds map to a fixed
// sentence; chat returns the payload verbatim.
func Describe(kind Kind, payload []byte) string {
	switch kind {
	case KindChat:
		return string(payload)
	case KindServerShutdown:
		return TextServerShutdown
	case KindPeerExit:
		return TextPeerExit
	case KindInfoRequest:
		return TextNoPeer
	case KindPeerLinkUp:
		return TextPeerLinkUp
	case KindPeerLinkDown:
		return TextPeerLinkDown
	default:
		return TextUnclassified
	}
}
