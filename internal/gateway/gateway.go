// Package gateway defines the messaging collaborator the desk talks through:
// outbound sends, forwards, callback acknowledgements and message edits, plus
// the platform-neutral shapes of inbound updates.
package gateway

import (
	"context"

	"github.com/tbourn/go-service-desk/internal/domain"
)

// Button is one inline-keyboard entry.
type Button struct {
	Label  string
	Action domain.Action
}

// Keyboard is either a reply menu (rows of labels typed back as text) or an
// inline set of action buttons. A nil *Keyboard sends no markup.
type Keyboard struct {
	Reply  [][]string
	Inline [][]Button
}

// InlineRow is shorthand for a single-button row.
func InlineRow(label string, a domain.Action) []Button {
	return []Button{{Label: label, Action: a}}
}

// Gateway is implemented by every outbound transport.
type Gateway interface {
	// SendMessage delivers text to a chat and returns the new message id.
	SendMessage(ctx context.Context, chatID int64, text string, kb *Keyboard) (int64, error)
	// ForwardMessage copies an existing message into another chat.
	ForwardMessage(ctx context.Context, toChatID, fromChatID, messageID int64) error
	// AnswerCallback acknowledges a button press, optionally with a toast.
	AnswerCallback(ctx context.Context, callbackID, text string) error
	// EditMessage replaces the text and markup of a sent message.
	EditMessage(ctx context.Context, chatID, messageID int64, text string, kb *Keyboard) error
}

// MessageKind classifies inbound message content.
type MessageKind string

const (
	KindText     MessageKind = "text"
	KindPhoto    MessageKind = "photo"
	KindDocument MessageKind = "document"
	KindOther    MessageKind = "other"
)

// Sender identifies who sent an update.
type Sender struct {
	ID        int64  `json:"id"         binding:"required"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
}

// Message is an inbound user message.
type Message struct {
	ID       int64       `json:"message_id"`
	ChatID   int64       `json:"chat_id"`
	From     Sender      `json:"from"`
	Kind     MessageKind `json:"kind"`
	Text     string      `json:"text,omitempty"`
	Caption  string      `json:"caption,omitempty"`
	FileName string      `json:"file_name,omitempty"`
}

// Callback is a button press. Data carries the encoded action token; Action
// is filled in once at the ingress boundary.
type Callback struct {
	ID        string        `json:"id"`
	From      Sender        `json:"from"`
	ChatID    int64         `json:"chat_id"`
	MessageID int64         `json:"message_id"`
	Data      string        `json:"data"`
	Action    domain.Action `json:"-"`
}

// Update is one inbound user event: exactly one of Message or Callback is set.
type Update struct {
	ID       int64     `json:"update_id"`
	Message  *Message  `json:"message,omitempty"`
	Callback *Callback `json:"callback_query,omitempty"`
}

// ChannelPost is an inbound content item from the publishing channel.
type ChannelPost struct {
	UpdateID  int64  `json:"update_id"`
	MessageID int64  `json:"message_id" binding:"required"`
	Text      string `json:"text,omitempty"`
	Caption   string `json:"caption,omitempty"`
}

// Sender returns the author of the update, or nil for malformed updates.
func (u Update) Sender() *Sender {
	switch {
	case u.Message != nil:
		return &u.Message.From
	case u.Callback != nil:
		return &u.Callback.From
	}
	return nil
}
