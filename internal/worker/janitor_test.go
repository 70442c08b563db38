package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evlink/warranty-notify/internal/model"
)

func TestJanitorSweepReclaimsStuckRows(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.createNotification(t, "email")
	claimed, err := h.queue.ClaimBatch(ctx, 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	janitor := NewJanitor(h.queue, JanitorConfig{StuckAfter: 10 * time.Minute}, testLogger(), nil)

	// A freshly claimed row is not stuck.
	janitor.sweep(ctx)
	items := h.queue.Items()
	require.Len(t, items, 1)
	assert.Equal(t, model.QueueStatusProcessing, items[0].Status)

	// Once the claim is older than the threshold, it goes back to pending and
	// the next batch delivers it.
	claimedID := claimed[0].ID
	h.queue.ForceLastAttempt(claimedID, time.Now().Add(-time.Hour))

	janitor.sweep(ctx)
	items = h.queue.Items()
	require.Len(t, items, 1)
	assert.Equal(t, model.QueueStatusPending, items[0].Status)

	h.queue.ForceDue(claimedID)
	require.NoError(t, h.dispatcher.ProcessBatch(ctx))
	items = h.queue.Items()
	assert.Equal(t, model.QueueStatusSent, items[0].Status)
}
