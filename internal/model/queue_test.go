package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryBackoffNonDecreasing(t *testing.T) {
	prev := time.Duration(0)
	for attempts := 1; attempts < 20; attempts++ {
		d := RetryBackoff(attempts)
		assert.GreaterOrEqual(t, d, prev, "backoff shrank at attempt %d", attempts)
		prev = d
	}
}

func TestRetryBackoffCapped(t *testing.T) {
	assert.Equal(t, time.Minute, RetryBackoff(1))
	assert.Equal(t, 2*time.Minute, RetryBackoff(2))
	assert.Equal(t, 30*time.Minute, RetryBackoff(100))
}

func TestQueueStatusTerminal(t *testing.T) {
	assert.True(t, QueueStatusSent.Terminal())
	assert.True(t, QueueStatusFailed.Terminal())
	assert.True(t, QueueStatusCancelled.Terminal())
	assert.False(t, QueueStatusPending.Terminal())
	assert.False(t, QueueStatusProcessing.Terminal())
}
