package session

import (
	"strings"

	"github.com/omochice/relay-chat/pkg/protocol"
)

// Commands recognized by the interpreter. Matching is exact.
const (
	CommandExit     = "exit"
	CommandShutdown = "shutdown"
	CommandInfo     = "info"
)

var commands = map[string]protocol.Kind{
	CommandExit:     protocol.KindPeerExit,
	CommandShutdown: protocol.KindServerShutdown,
	CommandInfo:     protocol.KindInfoRequest,
}

// Interpreter maps input lines to protocol messages.
type Interpreter struct {
	// SenderTag, when set, prefixes every chat payload.
	SenderTag string
}

// Parse interprets one line. Empty lines produce no message.
func (in Interpreter) Parse(line string) (protocol.Message, bool) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return protocol.Message{}, false
	}
	if kind, ok := commands[line]; ok {
		return protocol.Service(kind), true
	}
	return protocol.Chat(in.SenderTag + line), true
}

// Help describes the command vocabulary.
func Help() string {
	return "commands:\n" +
		"  " + CommandInfo + "      print connection info\n" +
		"  " + CommandShutdown + "  shut the server down\n" +
		"  " + CommandExit + "      leave the chat"
}
