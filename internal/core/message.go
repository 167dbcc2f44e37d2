package core

import (
	"strings"
	"time"

	"github.com/vovakirdan/chatt-server/internal/utils"
)

// ActionMarker prefixes action ("emote") messages.
const ActionMarker = "/me "

const timeLayout = "15:04:05"

// Message is the domain model for a chat line. A Message without a sender is a
// system message.
type Message struct {
	ID        string
	Sender    string
	Text      string
	CreatedAt time.Time
	IsAction  bool
	IsSystem  bool
}

// NewSystemMessage builds a server-originated message with no sender.
func NewSystemMessage(text string) Message {
	return Message{
		ID:        utils.NewMessageID(),
		Text:      text,
		CreatedAt: time.Now(),
		IsSystem:  true,
	}
}

// NewChatMessage builds a message from sender. Text starting with ActionMarker
// becomes an action message with the marker stripped.
func NewChatMessage(sender, text string) Message {
	msg := Message{
		ID:        utils.NewMessageID(),
		Sender:    sender,
		Text:      text,
		CreatedAt: time.Now(),
	}
	if rest, ok := strings.CutPrefix(text, ActionMarker); ok {
		msg.Text = rest
		msg.IsAction = true
	}
	return msg
}

// String renders the message the way chat windows display it.
func (m Message) String() string {
	stamp := "[" + m.CreatedAt.Format(timeLayout) + "]"
	switch {
	case m.IsAction:
		return stamp + "   *" + m.Sender + " " + m.Text + "*"
	case m.IsSystem || m.Sender == "":
		return stamp + " " + m.Text
	default:
		return stamp + " " + m.Sender + ": " + m.Text
	}
}
