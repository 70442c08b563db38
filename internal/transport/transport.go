package transport

import (
	"context"
	"errors"
	"fmt"
)

// Message is one rendered delivery to one address over one channel.
type Message struct {
	Address string
	Subject string
	Body    string

	// RecipientID identifies the in-app feed when no wire address applies.
	RecipientID string
}

// Receipt is returned by a transport on successful delivery.
type Receipt struct {
	ProviderMessageID string
}

// Transport attempts delivery of one message over one channel. Adapters
// normalize provider-specific failures into *Error so the queue can decide
// whether to retry.
type Transport interface {
	Send(ctx context.Context, msg *Message) (*Receipt, error)
}

// Error is a delivery failure tagged with retryability. Permanent failures
// (structurally invalid address, provider rejects the recipient) exhaust the
// attempt budget immediately; transient ones go through backoff.
type Error struct {
	Retryable bool
	Reason    string
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Permanent(reason string, err error) *Error {
	return &Error{Retryable: false, Reason: reason, Err: err}
}

func Transient(reason string, err error) *Error {
	return &Error{Retryable: true, Reason: reason, Err: err}
}

// Retryable reports whether err should be retried. Errors that are not typed
// transport errors (timeouts, broken pipes) default to retryable.
func Retryable(err error) bool {
	var terr *Error
	if errors.As(err, &terr) {
		return terr.Retryable
	}
	return true
}
