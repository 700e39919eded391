package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrRejected is returned when the remote gateway answers ok=false.
var ErrRejected = errors.New("gateway rejected request")

// HTTPGateway speaks a small JSON-over-HTTP protocol: every call is a POST to
// <base>/<method> and every response is {"ok":bool,"result":...,"description":string}.
type HTTPGateway struct {
	base   string
	client *http.Client
}

// NewHTTPGateway returns a gateway posting to baseURL with the given per-call timeout.
func NewHTTPGateway(baseURL string, timeout time.Duration) *HTTPGateway {
	return &HTTPGateway{
		base:   strings.TrimRight(baseURL, "/"),
		client: &http.Client{Timeout: timeout},
	}
}

type wireButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data,omitempty"`
}

type wireMarkup struct {
	Keyboard       [][]wireButton `json:"keyboard,omitempty"`
	ResizeKeyboard bool           `json:"resize_keyboard,omitempty"`
	InlineKeyboard [][]wireButton `json:"inline_keyboard,omitempty"`
}

type envelope struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
}

func encodeMarkup(kb *Keyboard) *wireMarkup {
	if kb == nil {
		return nil
	}
	m := &wireMarkup{}
	for _, row := range kb.Reply {
		wr := make([]wireButton, 0, len(row))
		for _, label := range row {
			wr = append(wr, wireButton{Text: label})
		}
		m.Keyboard = append(m.Keyboard, wr)
	}
	if len(m.Keyboard) > 0 {
		m.ResizeKeyboard = true
	}
	for _, row := range kb.Inline {
		wr := make([]wireButton, 0, len(row))
		for _, b := range row {
			wr = append(wr, wireButton{Text: b.Label, CallbackData: b.Action.Encode()})
		}
		m.InlineKeyboard = append(m.InlineKeyboard, wr)
	}
	return m
}

// SendMessage implements Gateway.
func (g *HTTPGateway) SendMessage(ctx context.Context, chatID int64, text string, kb *Keyboard) (int64, error) {
	var res struct {
		MessageID int64 `json:"message_id"`
	}
	err := g.call(ctx, "sendMessage", map[string]any{
		"chat_id":      chatID,
		"text":         text,
		"reply_markup": encodeMarkup(kb),
	}, &res)
	return res.MessageID, err
}

// ForwardMessage implements Gateway.
func (g *HTTPGateway) ForwardMessage(ctx context.Context, toChatID, fromChatID, messageID int64) error {
	return g.call(ctx, "forwardMessage", map[string]any{
		"chat_id":      toChatID,
		"from_chat_id": fromChatID,
		"message_id":   messageID,
	}, nil)
}

// AnswerCallback implements Gateway.
func (g *HTTPGateway) AnswerCallback(ctx context.Context, callbackID, text string) error {
	return g.call(ctx, "answerCallbackQuery", map[string]any{
		"callback_query_id": callbackID,
		"text":              text,
	}, nil)
}

// EditMessage implements Gateway.
func (g *HTTPGateway) EditMessage(ctx context.Context, chatID, messageID int64, text string, kb *Keyboard) error {
	return g.call(ctx, "editMessageText", map[string]any{
		"chat_id":      chatID,
		"message_id":   messageID,
		"text":         text,
		"reply_markup": encodeMarkup(kb),
	}, nil)
}

func (g *HTTPGateway) call(ctx context.Context, method string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.base+"/"+method, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s: read body: %w", method, err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("%s: status %d: %w", method, resp.StatusCode, err)
	}
	if !env.OK || resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%s: %w: %s", method, ErrRejected, env.Description)
	}
	if out != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return fmt.Errorf("%s: decode result: %w", method, err)
		}
	}
	return nil
}
