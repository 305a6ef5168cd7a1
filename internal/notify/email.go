package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	"gopkg.in/gomail.v2"

	"estatecrm/internal/metrics"
)

// defaultSendTimeout bounds a send whose context carries no deadline.
const defaultSendTimeout = 30 * time.Second

type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

type EmailDispatcher struct {
	dialer mailSender
	from   string
}

func NewEmailDispatcher(smtpHost string, smtpPort int, smtpUser, smtpPassword, fromEmail string) *EmailDispatcher {
	return &EmailDispatcher{
		dialer: gomail.NewDialer(smtpHost, smtpPort, smtpUser, smtpPassword),
		from:   fromEmail,
	}
}

// Dispatch sends msg and returns once the SMTP exchange finishes or ctx is done.
// An exchange cut short by ctx is abandoned, not interrupted.
func (e *EmailDispatcher) Dispatch(ctx context.Context, msg Message) error {
	if msg.Recipient.Email == "" {
		metrics.RecordNotification("email", "skipped")
		return ErrNoAddress
	}

	m := gomail.NewMessage()
	m.SetHeader("From", e.from)
	m.SetHeader("To", msg.Recipient.Email)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Text)
	if msg.HTML != "" {
		m.AddAlternative("text/html", msg.HTML)
	}

	if err := e.send(ctx, m); err != nil {
		metrics.RecordNotification("email", "failed")
		log.Printf("[notify][email] kind=%s to=%s err=%v", msg.Kind, msg.Recipient.Email, err)
		return fmt.Errorf("send %s email: %w", msg.Kind, err)
	}
	metrics.RecordNotification("email", "sent")
	return nil
}

func (e *EmailDispatcher) send(ctx context.Context, m *gomail.Message) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultSendTimeout)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() { done <- e.dialer.DialAndSend(m) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
