package transport

import (
	"context"
	"errors"
	"fmt"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmailInvalidAddressIsPermanent(t *testing.T) {
	tr := NewEmailTransport(EmailConfig{Host: "localhost", Port: 2525, From: "noreply@example.com"})

	_, err := tr.Send(context.Background(), &Message{
		Address: "not an address",
		Subject: "hello",
		Body:    "world",
	})
	require.Error(t, err)
	assert.False(t, Retryable(err), "a malformed address never becomes deliverable")
}

func TestClassifySMTPError(t *testing.T) {
	// 5xx replies reject the recipient or message for good.
	rejected := classifySMTPError(&textproto.Error{Code: 550, Msg: "no such user"})
	assert.False(t, Retryable(rejected))
	assert.Contains(t, rejected.Error(), "550")

	// Wrapped server replies keep their classification.
	wrapped := classifySMTPError(fmt.Errorf("gomail: could not send email: %w",
		&textproto.Error{Code: 554, Msg: "transaction failed"}))
	assert.False(t, Retryable(wrapped))

	// 4xx replies are temporary by definition.
	greylisted := classifySMTPError(&textproto.Error{Code: 451, Msg: "greylisted, try later"})
	assert.True(t, Retryable(greylisted))

	// Connection-level failures stay retryable.
	assert.True(t, Retryable(classifySMTPError(errors.New("dial tcp: connection refused"))))
}
