package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evlink/warranty-notify/internal/model"
)

func pendingItem(t *testing.T, repo *QueueRepository) *model.QueueItem {
	t.Helper()
	nid := uuid.New()
	item := &model.QueueItem{
		ID:               uuid.New(),
		NotificationID:   &nid,
		RecipientID:      uuid.New(),
		RecipientType:    "customer",
		Channel:          model.ChannelEmail,
		RecipientAddress: "driver@example.com",
		Status:           model.QueueStatusPending,
		MaxAttempts:      model.DefaultMaxAttempts,
		ScheduledAt:      time.Now().Add(-time.Second),
		CreatedAt:        time.Now(),
	}
	require.NoError(t, repo.Enqueue(context.Background(), item))
	return item
}

func TestClaimBatchExclusive(t *testing.T) {
	repo := NewQueueRepository()
	ctx := context.Background()

	const rows = 200
	for i := 0; i < rows; i++ {
		pendingItem(t, repo)
	}

	const claimers = 8
	var wg sync.WaitGroup
	results := make([][]*model.QueueItem, claimers)
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for {
				batch, err := repo.ClaimBatch(ctx, 10)
				assert.NoError(t, err)
				if len(batch) == 0 {
					return
				}
				results[i] = append(results[i], batch...)
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[uuid.UUID]bool)
	total := 0
	for _, batch := range results {
		for _, item := range batch {
			assert.False(t, seen[item.ID], "item %s claimed twice", item.ID)
			seen[item.ID] = true
			total++
		}
	}
	assert.Equal(t, rows, total)
}

func TestClaimSkipsFutureAndExhausted(t *testing.T) {
	repo := NewQueueRepository()
	ctx := context.Background()

	future := pendingItem(t, repo)
	repo.mu.Lock()
	repo.items[future.ID].ScheduledAt = time.Now().Add(time.Hour)
	repo.mu.Unlock()

	exhausted := pendingItem(t, repo)
	repo.mu.Lock()
	repo.items[exhausted.ID].Attempts = repo.items[exhausted.ID].MaxAttempts
	repo.mu.Unlock()

	due := pendingItem(t, repo)

	batch, err := repo.ClaimBatch(ctx, 10)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, due.ID, batch[0].ID)
}

func TestCompleteIsIdempotent(t *testing.T) {
	repo := NewQueueRepository()
	ctx := context.Background()

	item := pendingItem(t, repo)
	_, err := repo.ClaimBatch(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, repo.Complete(ctx, item.ID, "msg-1"))
	require.NoError(t, repo.Complete(ctx, item.ID, "msg-2"))

	got, err := repo.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, model.QueueStatusSent, got.Status)
	assert.Equal(t, "msg-1", *got.ProviderMessageID)
	assert.NotNil(t, got.SentAt)
}

func TestPermanentFailureExhaustsBudget(t *testing.T) {
	repo := NewQueueRepository()
	ctx := context.Background()

	item := pendingItem(t, repo)
	_, err := repo.ClaimBatch(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, repo.Fail(ctx, item.ID, "invalid address", true))

	got, err := repo.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, model.QueueStatusFailed, got.Status)
	assert.Equal(t, got.MaxAttempts, got.Attempts)
}

func TestTransientFailureRetriesWithBackoff(t *testing.T) {
	repo := NewQueueRepository()
	ctx := context.Background()

	item := pendingItem(t, repo)
	before := time.Now()

	_, err := repo.ClaimBatch(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, repo.Fail(ctx, item.ID, "timeout", false))

	got, err := repo.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, model.QueueStatusPending, got.Status)
	assert.Equal(t, 1, got.Attempts)
	assert.True(t, got.ScheduledAt.After(before), "retry should be delayed")

	// Exhaust the remaining budget.
	for got.Status == model.QueueStatusPending {
		repo.ForceDue(item.ID)
		batch, err := repo.ClaimBatch(ctx, 1)
		require.NoError(t, err)
		require.Len(t, batch, 1)
		require.NoError(t, repo.Fail(ctx, item.ID, "timeout", false))
		got, err = repo.Get(ctx, item.ID)
		require.NoError(t, err)
		assert.LessOrEqual(t, got.Attempts, got.MaxAttempts)
	}

	assert.Equal(t, model.QueueStatusFailed, got.Status)
	assert.Equal(t, got.MaxAttempts, got.Attempts)
}

func TestSentRowsAreImmutable(t *testing.T) {
	repo := NewQueueRepository()
	ctx := context.Background()

	item := pendingItem(t, repo)
	_, err := repo.ClaimBatch(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, repo.Complete(ctx, item.ID, "msg-1"))

	assert.Error(t, repo.Fail(ctx, item.ID, "late failure", false))
	assert.Error(t, repo.Cancel(ctx, item.ID))

	got, err := repo.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, model.QueueStatusSent, got.Status)
}

func TestCancelledRowsAreImmutable(t *testing.T) {
	repo := NewQueueRepository()
	ctx := context.Background()

	item := pendingItem(t, repo)
	require.NoError(t, repo.Cancel(ctx, item.ID))

	// Cancelled rows admit no further transitions and are never claimed.
	assert.Error(t, repo.Fail(ctx, item.ID, "late failure", false))
	assert.Error(t, repo.Complete(ctx, item.ID, "msg-1"))
	batch, err := repo.ClaimBatch(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, batch)

	got, err := repo.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, model.QueueStatusCancelled, got.Status)
}

func TestEnqueueCampaignRowsDeduplicated(t *testing.T) {
	repo := NewQueueRepository()
	ctx := context.Background()

	campaignID := uuid.New()
	recipientID := uuid.New()
	row := func() *model.QueueItem {
		return &model.QueueItem{
			ID:               uuid.New(),
			CampaignID:       &campaignID,
			RecipientID:      recipientID,
			RecipientType:    "customer",
			Channel:          model.ChannelEmail,
			RecipientAddress: "driver@example.com",
			Status:           model.QueueStatusPending,
			MaxAttempts:      model.DefaultMaxAttempts,
			ScheduledAt:      time.Now(),
			CreatedAt:        time.Now(),
		}
	}

	// A re-run of the same fan-out inserts nothing new.
	require.NoError(t, repo.Enqueue(ctx, row()))
	require.NoError(t, repo.Enqueue(ctx, row()))
	assert.Len(t, repo.Items(), 1)

	// A different channel for the same recipient is a distinct delivery.
	other := row()
	other.Channel = model.ChannelSMS
	require.NoError(t, repo.Enqueue(ctx, other))
	assert.Len(t, repo.Items(), 2)
}

func TestHasSentForNotification(t *testing.T) {
	repo := NewQueueRepository()
	ctx := context.Background()

	item := pendingItem(t, repo)
	sent, err := repo.HasSentForNotification(ctx, *item.NotificationID)
	require.NoError(t, err)
	assert.False(t, sent)

	_, err = repo.ClaimBatch(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, repo.Complete(ctx, item.ID, "msg-1"))

	sent, err = repo.HasSentForNotification(ctx, *item.NotificationID)
	require.NoError(t, err)
	assert.True(t, sent)
}

func TestReclaimStuck(t *testing.T) {
	repo := NewQueueRepository()
	ctx := context.Background()

	item := pendingItem(t, repo)
	_, err := repo.ClaimBatch(ctx, 1)
	require.NoError(t, err)

	// Simulate a crashed dispatcher: the claim is old and never completed.
	repo.mu.Lock()
	stale := time.Now().Add(-time.Hour)
	repo.items[item.ID].LastAttemptAt = &stale
	repo.mu.Unlock()

	n, err := repo.ReclaimStuck(ctx, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := repo.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, model.QueueStatusPending, got.Status)
}

func TestRetrySweepRespectsBudget(t *testing.T) {
	repo := NewQueueRepository()
	ctx := context.Background()

	retryable := pendingItem(t, repo)
	_, err := repo.ClaimBatch(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, repo.Fail(ctx, retryable.ID, "boom", false))

	// An operator marks the row failed before the budget runs out; the sweep
	// should re-pend it once it has been idle long enough.
	repo.mu.Lock()
	repo.items[retryable.ID].Status = model.QueueStatusFailed
	stale := time.Now().Add(-time.Hour)
	repo.items[retryable.ID].LastAttemptAt = &stale
	repo.mu.Unlock()

	n, err := repo.RetrySweep(ctx, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := repo.Get(ctx, retryable.ID)
	require.NoError(t, err)
	assert.Equal(t, model.QueueStatusPending, got.Status)
}

func TestRetrySweepSkipsExhausted(t *testing.T) {
	repo := NewQueueRepository()
	ctx := context.Background()

	item := pendingItem(t, repo)
	_, err := repo.ClaimBatch(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, repo.Fail(ctx, item.ID, "bad address", true))

	repo.mu.Lock()
	stale := time.Now().Add(-time.Hour)
	repo.items[item.ID].LastAttemptAt = &stale
	repo.mu.Unlock()

	n, err := repo.RetrySweep(ctx, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestPurgeTerminalKeepsLiveRows(t *testing.T) {
	repo := NewQueueRepository()
	ctx := context.Background()

	sent := pendingItem(t, repo)
	_, err := repo.ClaimBatch(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, repo.Complete(ctx, sent.ID, "msg-1"))
	repo.mu.Lock()
	old := time.Now().Add(-48 * time.Hour)
	repo.items[sent.ID].SentAt = &old
	repo.mu.Unlock()

	live := pendingItem(t, repo)

	n, err := repo.PurgeTerminal(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = repo.Get(ctx, sent.ID)
	assert.Error(t, err)
	_, err = repo.Get(ctx, live.ID)
	assert.NoError(t, err)
}
