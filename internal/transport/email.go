package transport

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"net/textproto"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"
)

type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

// EmailTransport delivers over SMTP via gomail.
type EmailTransport struct {
	cfg    EmailConfig
	dialer *gomail.Dialer
}

func NewEmailTransport(cfg EmailConfig) *EmailTransport {
	return &EmailTransport{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

func (t *EmailTransport) Send(ctx context.Context, msg *Message) (*Receipt, error) {
	addr, err := mail.ParseAddress(msg.Address)
	if err != nil {
		return nil, Permanent(fmt.Sprintf("invalid email address %q", msg.Address), err)
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", t.cfg.From, t.cfg.FromName)
	m.SetHeader("To", addr.Address)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)

	// gomail has no context support, so the dial runs in a goroutine and the
	// caller's deadline decides who wins.
	done := make(chan error, 1)
	go func() {
		done <- t.dialer.DialAndSend(m)
	}()

	select {
	case <-ctx.Done():
		return nil, Transient("smtp send timed out", ctx.Err())
	case err := <-done:
		if err != nil {
			return nil, classifySMTPError(err)
		}
	}

	// SMTP gives us no provider id; synthesize one for audit trails.
	return &Receipt{ProviderMessageID: "smtp-" + uuid.New().String()}, nil
}

// classifySMTPError maps server replies onto the retry taxonomy. A 5xx reply
// means the server rejected the message for good (unknown mailbox, policy),
// so retrying would only burn the attempt budget. Everything else, including
// connection failures, stays retryable.
func classifySMTPError(err error) error {
	var srvErr *textproto.Error
	if errors.As(err, &srvErr) && srvErr.Code >= 500 {
		return Permanent(fmt.Sprintf("smtp rejected message (%d)", srvErr.Code), err)
	}
	return Transient("smtp send failed", err)
}
