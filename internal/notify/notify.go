// Package notify delivers best-effort messages to users over email, Telegram or a queue.
package notify

import (
	"context"
	"errors"
	"fmt"
)

const (
	KindLeadAssigned      = "lead_assigned"
	KindSiteVisitAssigned = "site_visit_assigned"
	KindWelcome           = "welcome"
	KindPasswordReset     = "password_reset"
)

// ErrNoAddress means the recipient has no address on the channel; callers treat it as a skip.
var ErrNoAddress = errors.New("recipient has no address for this channel")

type Recipient struct {
	UserID         int    `json:"user_id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	TelegramChatID int64  `json:"telegram_chat_id,omitempty"`
}

// Message is channel-neutral. Text is plain text; HTML is optional and used by email.
// Fields keeps the structured context for consumers that render their own view.
type Message struct {
	Kind      string            `json:"kind"`
	Recipient Recipient         `json:"recipient"`
	Subject   string            `json:"subject"`
	Text      string            `json:"text"`
	HTML      string            `json:"html,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

type Dispatcher interface {
	Dispatch(ctx context.Context, msg Message) error
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, msg Message) error

func (f DispatcherFunc) Dispatch(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// Fanout delivers to every channel and joins the failures. A channel reporting
// ErrNoAddress does not count as a failure.
type Fanout []Dispatcher

func (f Fanout) Dispatch(ctx context.Context, msg Message) error {
	var errs []error
	for _, d := range f {
		if d == nil {
			continue
		}
		if err := d.Dispatch(ctx, msg); err != nil && !errors.Is(err, ErrNoAddress) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop drops every message. Used when no channel is configured.
type Nop struct{}

func (Nop) Dispatch(context.Context, Message) error { return nil }

func (m Message) validate() error {
	if m.Kind == "" {
		return fmt.Errorf("message kind is empty")
	}
	if m.Recipient.UserID == 0 && m.Recipient.Email == "" && m.Recipient.TelegramChatID == 0 {
		return fmt.Errorf("message %s has no recipient", m.Kind)
	}
	return nil
}
