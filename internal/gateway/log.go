package gateway

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// LogGateway writes every outbound call to a zerolog logger instead of a
// real platform. It is the default transport for local runs.
type LogGateway struct {
	log    zerolog.Logger
	nextID atomic.Int64
}

// NewLogGateway returns a gateway logging through l.
func NewLogGateway(l zerolog.Logger) *LogGateway {
	return &LogGateway{log: l.With().Str("component", "gateway").Logger()}
}

// SendMessage implements Gateway.
func (g *LogGateway) SendMessage(_ context.Context, chatID int64, text string, kb *Keyboard) (int64, error) {
	id := g.nextID.Add(1)
	ev := g.log.Info().Int64("chat_id", chatID).Int64("message_id", id).Str("text", text)
	if kb != nil {
		ev = ev.Int("reply_rows", len(kb.Reply)).Int("inline_rows", len(kb.Inline))
	}
	ev.Msg("send message")
	return id, nil
}

// ForwardMessage implements Gateway.
func (g *LogGateway) ForwardMessage(_ context.Context, toChatID, fromChatID, messageID int64) error {
	g.log.Info().
		Int64("to_chat_id", toChatID).
		Int64("from_chat_id", fromChatID).
		Int64("message_id", messageID).
		Msg("forward message")
	return nil
}

// AnswerCallback implements Gateway.
func (g *LogGateway) AnswerCallback(_ context.Context, callbackID, text string) error {
	g.log.Debug().Str("callback_id", callbackID).Str("text", text).Msg("answer callback")
	return nil
}

// EditMessage implements Gateway.
func (g *LogGateway) EditMessage(_ context.Context, chatID, messageID int64, text string, _ *Keyboard) error {
	g.log.Info().Int64("chat_id", chatID).Int64("message_id", messageID).Str("text", text).Msg("edit message")
	return nil
}
