package followup

import (
	"context"
	"fmt"
	"time"

	"github.com/jordanlanch/leadpilot/pkg/domain"
	"github.com/jordanlanch/leadpilot/pkg/logger"
	"github.com/jordanlanch/leadpilot/pkg/metrics"
	"github.com/jordanlanch/leadpilot/pkg/models"
)

// Options tunes scheduler behavior
type Options struct {
	// MaxFollowUpsPerLead caps non-cancelled follow-ups per lead (default 3)
	MaxFollowUpsPerLead int
	// RecentReplyWindowDays blocks due sends when the lead replied to any
	// campaign within this many days (default 7)
	RecentReplyWindowDays int
	// Tone is passed through to the content generator
	Tone string
	// FromEmail is the sender address for all outgoing campaigns
	FromEmail string
	// Now is the clock; defaults to time.Now
	Now func() time.Time
}

func (o *Options) fillDefaults() {
	if o.MaxFollowUpsPerLead == 0 {
		o.MaxFollowUpsPerLead = 3
	}
	if o.RecentReplyWindowDays == 0 {
		o.RecentReplyWindowDays = 7
	}
	if o.Tone == "" {
		o.Tone = "professional"
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Scheduler owns follow-up creation and the recurring due-campaign tick.
// It is constructed once at process start; the cron manager drives
// ProcessDueCampaigns on a fixed cadence.
type Scheduler struct {
	campaigns domain.CampaignStore
	leads     domain.LeadStore
	users     domain.UserStore
	sender    domain.EmailSender
	generator domain.EmailContentGenerator
	metrics   *metrics.Metrics
	log       logger.Logger
	opts      Options
}

// NewScheduler creates the follow-up scheduler
func NewScheduler(
	campaigns domain.CampaignStore,
	leads domain.LeadStore,
	users domain.UserStore,
	sender domain.EmailSender,
	generator domain.EmailContentGenerator,
	m *metrics.Metrics,
	log logger.Logger,
	opts Options,
) *Scheduler {
	opts.fillDefaults()
	return &Scheduler{
		campaigns: campaigns,
		leads:     leads,
		users:     users,
		sender:    sender,
		generator: generator,
		metrics:   m,
		log:       log,
		opts:      opts,
	}
}

// ScheduleFollowUp validates constraints and creates a pending follow-up due
// at now+delay. No email is sent here; the recurring tick fires it later.
// Precondition failures are returned as typed domain errors and leave no row.
func (s *Scheduler) ScheduleFollowUp(ctx context.Context, parentCampaignID uint, delay time.Duration, userID uint) (*models.Campaign, error) {
	if delay <= 0 {
		return nil, domain.NewValidationError("delay must be a positive duration")
	}

	parent, err := s.campaigns.GetByID(ctx, parentCampaignID)
	if err != nil {
		return nil, err
	}
	if parent == nil || parent.LeadID == 0 {
		return nil, domain.NewNotFoundError("campaign")
	}

	lead, err := s.leads.GetByID(ctx, parent.LeadID)
	if err != nil {
		return nil, err
	}
	if lead == nil {
		return nil, domain.NewNotFoundError("lead")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.NewNotFoundError("user")
	}

	count, err := s.campaigns.CountActiveFollowUps(ctx, parent.LeadID)
	if err != nil {
		return nil, err
	}
	if count >= int64(s.opts.MaxFollowUpsPerLead) {
		return nil, domain.NewFollowUpLimitError(s.opts.MaxFollowUpsPerLead)
	}

	if parent.Status == models.StatusReplied || parent.RepliedAt != nil {
		return nil, domain.NewAlreadyRepliedError()
	}

	sequence := parent.FollowUpSequence + 1
	generated, err := s.generator.GenerateFollowUp(ctx, lead, parent.ContentHTML, s.opts.Tone, sequence)
	if err != nil {
		return nil, fmt.Errorf("failed to generate follow-up content: %w", err)
	}

	parentID := parent.ID
	scheduledAt := s.opts.Now().Add(delay)
	followUp := &models.Campaign{
		LeadID:           parent.LeadID,
		UserID:           userID,
		Subject:          generated.Subject,
		ContentHTML:      generated.Content,
		Status:           models.StatusDraft,
		IsFollowUp:       true,
		FollowUpSequence: sequence,
		ParentEmailID:    &parentID,
		ScheduledAt:      &scheduledAt,
	}
	if err := s.campaigns.Create(ctx, followUp); err != nil {
		return nil, err
	}

	s.metrics.FollowUpsScheduled.Inc()
	s.log.Info("Follow-up scheduled",
		"campaign_id", followUp.ID,
		"parent_id", parent.ID,
		"lead_id", parent.LeadID,
		"sequence", sequence,
		"scheduled_at", scheduledAt)

	return followUp, nil
}

// ProcessDueCampaigns runs one tick: every due draft is re-checked against
// the latest reply state and then either cancelled or sent. A failure on one
// row never aborts processing of the others.
func (s *Scheduler) ProcessDueCampaigns(ctx context.Context) error {
	now := s.opts.Now()

	due, err := s.campaigns.QueryDue(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to query due campaigns: %w", err)
	}
	if len(due) == 0 {
		return nil
	}

	s.log.Info("Processing due follow-ups", "count", len(due))
	for _, row := range due {
		if err := s.processDueCampaign(ctx, row, now); err != nil {
			s.log.Error("Failed to process due follow-up", "campaign_id", row.ID, "error", err)
		}
	}
	return nil
}

// processDueCampaign applies the due-campaign check to one row. The reply
// checks run here, immediately before the send call, which narrows (but
// cannot close) the window where a reply lands mid-send.
func (s *Scheduler) processDueCampaign(ctx context.Context, row *models.Campaign, now time.Time) error {
	// Parent replied: withdraw instead of sending
	if row.ParentEmailID != nil {
		parent, err := s.campaigns.GetByID(ctx, *row.ParentEmailID)
		if err != nil {
			return err
		}
		if parent != nil && parent.RepliedAt != nil {
			return s.cancelDue(ctx, row, "parent_replied")
		}
	}

	// Any reply from this lead in the recent window also blocks the send
	replied, err := s.campaigns.QueryRepliedSince(ctx, row.LeadID, now.AddDate(0, 0, -s.opts.RecentReplyWindowDays))
	if err != nil {
		return err
	}
	if len(replied) > 0 {
		return s.cancelDue(ctx, row, "lead_replied")
	}

	lead, err := s.leads.GetByID(ctx, row.LeadID)
	if err != nil {
		return err
	}
	if lead == nil {
		// The lead row is gone; this follow-up can never send.
		return s.cancelDue(ctx, row, "lead_missing")
	}

	fromName := s.opts.FromEmail
	user, err := s.users.GetByID(ctx, row.UserID)
	if err != nil {
		return err
	}
	if user != nil {
		fromName = user.Name
	}

	result, err := s.sender.Send(ctx, lead.Email, lead.Name, row.Subject, row.ContentHTML, fromName, s.opts.FromEmail)
	if err != nil {
		// Transient: leave the row draft so the next tick retries it.
		s.metrics.SendFailures.Inc()
		return fmt.Errorf("send failed, will retry next tick: %w", err)
	}

	ok, err := s.campaigns.Transition(ctx, row.ID, models.StatusDraft, models.StatusSent, map[string]any{
		"sent_at":     now,
		"message_id":  result.MessageID,
		"tracking_id": result.TrackingID,
	})
	if err != nil {
		return err
	}
	if !ok {
		s.log.Warn("Due follow-up changed state mid-send, transition skipped", "campaign_id", row.ID)
		return nil
	}

	if err := s.leads.TouchLastContact(ctx, lead.ID, now); err != nil {
		s.log.Error("Failed to update lead last contact date", "lead_id", lead.ID, "error", err)
	}

	s.metrics.EmailsSent.Inc()
	s.log.Info("Follow-up sent",
		"campaign_id", row.ID,
		"lead_id", lead.ID,
		"sequence", row.FollowUpSequence,
		"message_id", result.MessageID)
	return nil
}

func (s *Scheduler) cancelDue(ctx context.Context, row *models.Campaign, reason string) error {
	ok, err := s.campaigns.Transition(ctx, row.ID, models.StatusDraft, models.StatusCancelled, nil)
	if err != nil {
		return err
	}
	if ok {
		s.metrics.FollowUpsCancelled.WithLabelValues(reason).Inc()
		s.log.Info("Follow-up cancelled", "campaign_id", row.ID, "reason", reason)
	}
	return nil
}

// CancelFollowUpsForLead withdraws every pending follow-up for the lead.
// Idempotent: a second call finds nothing to cancel.
func (s *Scheduler) CancelFollowUpsForLead(ctx context.Context, leadID uint) (int64, error) {
	n, err := s.campaigns.CancelPendingFollowUps(ctx, leadID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.metrics.FollowUpsCancelled.WithLabelValues("reply_cascade").Add(float64(n))
		s.log.Info("Cancelled pending follow-ups for lead", "lead_id", leadID, "count", n)
	}
	return n, nil
}

// CancelFollowUp withdraws one specific campaign regardless of lead. Used
// for explicit user-initiated cancellation.
func (s *Scheduler) CancelFollowUp(ctx context.Context, campaignID uint) error {
	row, err := s.campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return err
	}
	if row == nil {
		return domain.NewNotFoundError("campaign")
	}

	ok, err := s.campaigns.Transition(ctx, campaignID, models.StatusDraft, models.StatusCancelled, nil)
	if err != nil {
		return err
	}
	if ok {
		s.metrics.FollowUpsCancelled.WithLabelValues("explicit").Inc()
		s.log.Info("Follow-up cancelled", "campaign_id", campaignID, "reason", "explicit")
	}
	// Already sent or already cancelled: nothing to do, stay idempotent.
	return nil
}
