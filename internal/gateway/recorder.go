package gateway

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ErrInjected is the failure Recorder returns for configured targets.
var ErrInjected = errors.New("injected delivery failure")

// Sent is one recorded SendMessage or EditMessage call.
type Sent struct {
	ChatID    int64
	MessageID int64
	Text      string
	Keyboard  *Keyboard
}

// Forward is one recorded ForwardMessage call.
type Forward struct {
	ToChatID   int64
	FromChatID int64
	MessageID  int64
}

// Answer is one recorded AnswerCallback call.
type Answer struct {
	CallbackID string
	Text       string
}

// Recorder is an in-memory Gateway that records every call. Sends to chats
// listed in FailSendTo and forwards of message ids listed in FailForward
// return ErrInjected. It is safe for concurrent use.
type Recorder struct {
	mu          sync.Mutex
	nextID      int64
	Sends       []Sent
	Edits       []Sent
	Forwards    []Forward
	Answers     []Answer
	FailSendTo  map[int64]bool
	FailForward map[int64]bool
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{FailSendTo: map[int64]bool{}, FailForward: map[int64]bool{}}
}

// SendMessage implements Gateway.
func (r *Recorder) SendMessage(_ context.Context, chatID int64, text string, kb *Keyboard) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailSendTo[chatID] {
		return 0, ErrInjected
	}
	r.nextID++
	r.Sends = append(r.Sends, Sent{ChatID: chatID, MessageID: r.nextID, Text: text, Keyboard: kb})
	return r.nextID, nil
}

// ForwardMessage implements Gateway.
func (r *Recorder) ForwardMessage(_ context.Context, toChatID, fromChatID, messageID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailForward[messageID] || r.FailSendTo[toChatID] {
		return ErrInjected
	}
	r.Forwards = append(r.Forwards, Forward{ToChatID: toChatID, FromChatID: fromChatID, MessageID: messageID})
	return nil
}

// AnswerCallback implements Gateway.
func (r *Recorder) AnswerCallback(_ context.Context, callbackID, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Answers = append(r.Answers, Answer{CallbackID: callbackID, Text: text})
	return nil
}

// EditMessage implements Gateway.
func (r *Recorder) EditMessage(_ context.Context, chatID, messageID int64, text string, kb *Keyboard) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailSendTo[chatID] {
		return ErrInjected
	}
	r.Edits = append(r.Edits, Sent{ChatID: chatID, MessageID: messageID, Text: text, Keyboard: kb})
	return nil
}

// SentTo returns the messages delivered to chatID, in order.
func (r *Recorder) SentTo(chatID int64) []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Sent
	for _, s := range r.Sends {
		if s.ChatID == chatID {
			out = append(out, s)
		}
	}
	return out
}

// LastTo returns the most recent message delivered to chatID.
func (r *Recorder) LastTo(chatID int64) (Sent, bool) {
	msgs := r.SentTo(chatID)
	if len(msgs) == 0 {
		return Sent{}, false
	}
	return msgs[len(msgs)-1], true
}

// Contains reports whether any message to chatID contains substr.
func (r *Recorder) Contains(chatID int64, substr string) bool {
	for _, s := range r.SentTo(chatID) {
		if strings.Contains(s.Text, substr) {
			return true
		}
	}
	return false
}

// Reset clears recorded calls but keeps failure injection settings.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Sends, r.Edits, r.Forwards, r.Answers = nil, nil, nil, nil
}
