package campaign

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evlink/warranty-notify/internal/model"
	"github.com/evlink/warranty-notify/internal/repository/memory"
	apperrors "github.com/evlink/warranty-notify/pkg/errors"
	"github.com/evlink/warranty-notify/pkg/logger"
)

func strPtr(s string) *string { return &s }

func testLogger() *logger.Logger {
	return logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
}

type fixture struct {
	svc        Service
	repo       *memory.CampaignRepository
	queue      *memory.QueueRepository
	recipients *memory.RecipientRepository
}

func newFixture(recipients ...*model.Recipient) *fixture {
	repo := memory.NewCampaignRepository()
	queue := memory.NewQueueRepository()
	rcpts := memory.NewRecipientRepository(recipients...)
	return &fixture{
		svc:        NewService(repo, queue, rcpts, testLogger(), nil),
		repo:       repo,
		queue:      queue,
		recipients: rcpts,
	}
}

func euRecipients() []*model.Recipient {
	soon := time.Now().AddDate(0, 0, 20)
	return []*model.Recipient{
		{
			ID: uuid.New(), Name: "Anna", Region: "EU", VehicleModel: "Ionic-5",
			Email: strPtr("anna@example.com"), Phone: strPtr("+4511111111"),
			WarrantyExpiresAt: &soon,
		},
		{
			ID: uuid.New(), Name: "Bo", Region: "EU", VehicleModel: "Ionic-5",
			Email: strPtr("bo@example.com"), Phone: strPtr("+4522222222"),
			WarrantyExpiresAt: &soon,
		},
		{
			ID: uuid.New(), Name: "Carla", Region: "EU", VehicleModel: "Ionic-5",
			Email:             strPtr("carla@example.com"),
			WarrantyExpiresAt: &soon,
		},
	}
}

func draftRequest() *model.CreateCampaignRequest {
	return &model.CreateCampaignRequest{
		Name:           "Warranty expiry Q3",
		Type:           "warranty_expiry",
		Title:          "Your warranty expires soon",
		Message:        "Book an inspection before your coverage ends.",
		TargetCriteria: model.TargetCriteria{Region: "EU"},
		Channels:       []string{"email", "sms"},
		CreatedBy:      uuid.New(),
	}
}

func TestCreateEstimatesRecipients(t *testing.T) {
	f := newFixture(euRecipients()...)

	c, err := f.svc.Create(context.Background(), draftRequest())
	require.NoError(t, err)
	assert.Equal(t, model.CampaignStatusDraft, c.Status)
	assert.Equal(t, 3, c.EstimatedRecipients)
	assert.Equal(t, 0, c.ActualRecipients)
	assert.Empty(t, f.queue.Items(), "draft must not enqueue")
}

func TestCreateValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	req := draftRequest()
	req.Name = ""
	_, err := f.svc.Create(ctx, req)
	assert.True(t, apperrors.IsValidation(err))

	req = draftRequest()
	req.Channels = []string{"pigeon"}
	_, err = f.svc.Create(ctx, req)
	assert.True(t, apperrors.IsValidation(err))

	req = draftRequest()
	req.Priority = "whenever"
	_, err = f.svc.Create(ctx, req)
	assert.True(t, apperrors.IsValidation(err))
}

func TestLaunchFansOutPerChannel(t *testing.T) {
	f := newFixture(euRecipients()...)
	ctx := context.Background()

	c, err := f.svc.Create(ctx, draftRequest())
	require.NoError(t, err)

	launched, err := f.svc.Launch(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignStatusRunning, launched.Status)
	assert.Equal(t, 3, launched.ActualRecipients)
	assert.NotNil(t, launched.LaunchedAt)

	// Two recipients have email+phone, one is email-only: 2*2 + 1 = 5 rows.
	items := f.queue.Items()
	require.Len(t, items, 5)
	emails, sms := 0, 0
	for _, item := range items {
		require.NotNil(t, item.CampaignID)
		assert.Equal(t, c.ID, *item.CampaignID)
		assert.Equal(t, launched.Title, item.Subject)
		switch item.Channel {
		case model.ChannelEmail:
			emails++
		case model.ChannelSMS:
			sms++
		}
	}
	assert.Equal(t, 3, emails)
	assert.Equal(t, 2, sms)
}

func TestRelaunchRejected(t *testing.T) {
	f := newFixture(euRecipients()...)
	ctx := context.Background()

	c, err := f.svc.Create(ctx, draftRequest())
	require.NoError(t, err)

	_, err = f.svc.Launch(ctx, c.ID)
	require.NoError(t, err)

	_, err = f.svc.Launch(ctx, c.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Len(t, f.queue.Items(), 5, "relaunch must not enqueue again")
}

func TestLaunchUnknownCampaign(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Launch(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestLaunchWithNoRecipientsCompletes(t *testing.T) {
	f := newFixture() // empty customer table
	ctx := context.Background()

	c, err := f.svc.Create(ctx, draftRequest())
	require.NoError(t, err)

	launched, err := f.svc.Launch(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignStatusCompleted, launched.Status)
	assert.Equal(t, 0, launched.ActualRecipients)
	assert.Equal(t, 0, launched.SentCount)
	assert.Empty(t, f.queue.Items())
}

func TestStartImmediately(t *testing.T) {
	f := newFixture(euRecipients()...)

	req := draftRequest()
	req.StartImmediately = true
	c, err := f.svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignStatusRunning, c.Status)
	assert.Len(t, f.queue.Items(), 5)
}

func TestPauseResume(t *testing.T) {
	f := newFixture(euRecipients()...)
	ctx := context.Background()

	c, err := f.svc.Create(ctx, draftRequest())
	require.NoError(t, err)

	// Pausing a draft is invalid.
	err = f.svc.Pause(ctx, c.ID)
	assert.True(t, apperrors.IsValidation(err))

	_, err = f.svc.Launch(ctx, c.ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.Pause(ctx, c.ID))
	got, err := f.svc.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignStatusPaused, got.Status)

	// Resuming twice is invalid the second time.
	require.NoError(t, f.svc.Resume(ctx, c.ID))
	err = f.svc.Resume(ctx, c.ID)
	assert.True(t, apperrors.IsValidation(err))
}

func TestRecordOutcomeCountsAndCompletes(t *testing.T) {
	f := newFixture(euRecipients()...)
	ctx := context.Background()

	c, err := f.svc.Create(ctx, draftRequest())
	require.NoError(t, err)
	_, err = f.svc.Launch(ctx, c.ID)
	require.NoError(t, err)

	// Drain the queue the way the dispatcher would: claim, finish, report.
	for {
		batch, err := f.queue.ClaimBatch(ctx, 10)
		require.NoError(t, err)
		if len(batch) == 0 {
			break
		}
		for _, item := range batch {
			outcome := model.OutcomeSent
			if item.Channel == model.ChannelSMS {
				outcome = model.OutcomeFailed
				require.NoError(t, f.queue.Fail(ctx, item.ID, "carrier rejected", true))
			} else {
				require.NoError(t, f.queue.Complete(ctx, item.ID, "msg-"+item.ID.String()))
			}
			require.NoError(t, f.svc.RecordOutcome(ctx, c.ID, item.Channel, outcome))
		}
	}

	got, err := f.svc.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.SentCount)
	assert.Equal(t, 3, got.DeliveredCount)
	assert.Equal(t, 2, got.FailedCount)
	assert.Equal(t, model.CampaignStatusCompleted, got.Status)
	assert.NotNil(t, got.CompletedAt)

	a, err := f.svc.Analytics(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, a.Sent)
	assert.Equal(t, 2, a.Failed)
	assert.InDelta(t, 1.0, a.DeliveryRate, 1e-9)
	require.Contains(t, a.Channels, model.ChannelSMS)
	assert.Equal(t, 2, a.Channels[model.ChannelSMS].Failed)
	assert.Len(t, a.RecentErrors, 2)
}
