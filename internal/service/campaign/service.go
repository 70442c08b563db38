package campaign

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/evlink/warranty-notify/internal/model"
	"github.com/evlink/warranty-notify/internal/repository"
	apperrors "github.com/evlink/warranty-notify/pkg/errors"
	"github.com/evlink/warranty-notify/pkg/logger"
	"github.com/evlink/warranty-notify/pkg/metrics"
)

const recentErrorLimit = 10

type Service interface {
	Create(ctx context.Context, req *model.CreateCampaignRequest) (*model.Campaign, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Campaign, error)
	Launch(ctx context.Context, id uuid.UUID) (*model.Campaign, error)
	Pause(ctx context.Context, id uuid.UUID) error
	Resume(ctx context.Context, id uuid.UUID) error
	RecordOutcome(ctx context.Context, campaignID uuid.UUID, channel model.Channel, outcome model.DeliveryOutcome) error
	Analytics(ctx context.Context, id uuid.UUID) (*model.CampaignAnalytics, error)
}

type service struct {
	repo       repository.CampaignRepository
	queue      repository.QueueRepository
	recipients repository.RecipientRepository
	logger     *logger.Logger
	metrics    *metrics.Metrics
}

func NewService(repo repository.CampaignRepository, queue repository.QueueRepository, recipients repository.RecipientRepository, logger *logger.Logger, m *metrics.Metrics) Service {
	return &service{
		repo:       repo,
		queue:      queue,
		recipients: recipients,
		logger:     logger,
		metrics:    m,
	}
}

func (s *service) Create(ctx context.Context, req *model.CreateCampaignRequest) (*model.Campaign, error) {
	if req.Name == "" || req.Title == "" || req.Message == "" {
		return nil, apperrors.Validation("name, title and message are required")
	}

	channels := req.Channels
	if len(channels) == 0 {
		channels = []string{string(model.ChannelEmail)}
	}
	for _, raw := range channels {
		if !model.Channel(raw).Valid() {
			return nil, apperrors.Validationf("invalid channel %q", raw)
		}
	}

	priority := req.Priority
	if priority == "" {
		priority = string(model.PriorityMedium)
	} else if !model.NotificationPriority(priority).Valid() {
		return nil, apperrors.Validationf("invalid priority %q", priority)
	}

	estimated, err := s.recipients.CountByCriteria(ctx, req.TargetCriteria)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	c := &model.Campaign{
		ID:                  uuid.New(),
		Name:                req.Name,
		Type:                req.Type,
		Title:               req.Title,
		Body:                req.Message,
		Criteria:            req.TargetCriteria,
		Channels:            channels,
		Priority:            priority,
		EstimatedRecipients: estimated,
		Status:              model.CampaignStatusDraft,
		CreatedBy:           req.CreatedBy,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}

	s.logger.Info("campaign created",
		"campaign_id", c.ID.String(),
		"estimated_recipients", estimated)

	if req.StartImmediately {
		return s.Launch(ctx, c.ID)
	}
	return c, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*model.Campaign, error) {
	return s.repo.Get(ctx, id)
}

// Launch resolves the targeting criteria into a recipient snapshot and
// enqueues one delivery per recipient per requested channel with a usable
// address. Only draft/scheduled campaigns launch; the status transition runs
// first, so a second launch of the same campaign is rejected instead of
// fanning out twice.
func (s *service) Launch(ctx context.Context, id uuid.UUID) (*model.Campaign, error) {
	if err := s.repo.UpdateStatus(ctx, id,
		[]model.CampaignStatus{model.CampaignStatusDraft, model.CampaignStatusScheduled},
		model.CampaignStatusRunning); err != nil {
		return nil, err
	}

	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.recipients.FindByCriteria(ctx, c.Criteria)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	enqueued := 0
	for _, rcpt := range snapshot {
		for _, raw := range c.Channels {
			ch := model.Channel(raw)
			address, ok := rcpt.AddressFor(ch)
			if !ok {
				continue
			}

			item := &model.QueueItem{
				ID:               uuid.New(),
				CampaignID:       &c.ID,
				RecipientType:    "customer",
				RecipientID:      rcpt.ID,
				Channel:          ch,
				Subject:          c.Title,
				Body:             c.Body,
				RecipientAddress: address,
				Status:           model.QueueStatusPending,
				MaxAttempts:      model.DefaultMaxAttempts,
				ScheduledAt:      now,
				CreatedAt:        now,
			}
			if err := s.queue.Enqueue(ctx, item); err != nil {
				return nil, err
			}
			enqueued++
		}
	}

	if err := s.repo.SetLaunched(ctx, id, len(snapshot)); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.CampaignsLaunched.Inc()
		s.metrics.FanoutRecipients.Observe(float64(len(snapshot)))
	}

	s.logger.Info("campaign launched",
		"campaign_id", id.String(),
		"recipients", len(snapshot),
		"queue_items", enqueued)

	// Nothing to deliver: the campaign is complete with zero counters.
	if enqueued == 0 {
		if err := s.repo.SetCompleted(ctx, id); err != nil {
			return nil, err
		}
	}

	return s.repo.Get(ctx, id)
}

// Pause stops the campaign from advancing; already-queued rows still drain.
func (s *service) Pause(ctx context.Context, id uuid.UUID) error {
	return s.repo.UpdateStatus(ctx, id,
		[]model.CampaignStatus{model.CampaignStatusRunning},
		model.CampaignStatusPaused)
}

func (s *service) Resume(ctx context.Context, id uuid.UUID) error {
	return s.repo.UpdateStatus(ctx, id,
		[]model.CampaignStatus{model.CampaignStatusPaused},
		model.CampaignStatusRunning)
}

// RecordOutcome bumps the campaign's counters for one terminal queue outcome
// and completes the campaign once no non-terminal rows remain. Increments are
// atomic in SQL, so concurrent dispatcher instances never lose counts.
func (s *service) RecordOutcome(ctx context.Context, campaignID uuid.UUID, channel model.Channel, outcome model.DeliveryOutcome) error {
	counter := "failed_count"
	if outcome == model.OutcomeSent {
		counter = "sent_count"
	}
	if err := s.repo.IncrementCounter(ctx, campaignID, counter, 1); err != nil {
		return err
	}
	if outcome == model.OutcomeSent {
		if err := s.repo.IncrementCounter(ctx, campaignID, "delivered_count", 1); err != nil {
			return err
		}
	}

	remaining, err := s.queue.NonTerminalCountForCampaign(ctx, campaignID)
	if err != nil {
		return err
	}
	if remaining == 0 {
		return s.repo.SetCompleted(ctx, campaignID)
	}
	return nil
}

func (s *service) Analytics(ctx context.Context, id uuid.UUID) (*model.CampaignAnalytics, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	channels, err := s.queue.ChannelMetricsForCampaign(ctx, id)
	if err != nil {
		return nil, err
	}

	recentErrors, err := s.queue.RecentErrorsForCampaign(ctx, id, recentErrorLimit)
	if err != nil {
		return nil, err
	}

	a := &model.CampaignAnalytics{
		CampaignID:   c.ID,
		Status:       c.Status,
		Recipients:   c.ActualRecipients,
		Sent:         c.SentCount,
		Delivered:    c.DeliveredCount,
		Opened:       c.OpenedCount,
		Clicked:      c.ClickedCount,
		Failed:       c.FailedCount,
		Channels:     channels,
		RecentErrors: recentErrors,
	}
	if c.SentCount > 0 {
		a.DeliveryRate = float64(c.DeliveredCount) / float64(c.SentCount)
		a.OpenRate = float64(c.OpenedCount) / float64(c.SentCount)
		a.ClickRate = float64(c.ClickedCount) / float64(c.SentCount)
	}
	return a, nil
}
