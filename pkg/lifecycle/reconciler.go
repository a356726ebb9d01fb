package lifecycle

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jordanlanch/leadpilot/pkg/cache"
	"github.com/jordanlanch/leadpilot/pkg/domain"
	"github.com/jordanlanch/leadpilot/pkg/logger"
	"github.com/jordanlanch/leadpilot/pkg/metrics"
	"github.com/jordanlanch/leadpilot/pkg/models"
	"github.com/jordanlanch/leadpilot/pkg/replydetect"
)

const trackingCacheTTL = 24 * time.Hour

// Reconciler folds engagement signals (opens, clicks, replies, bounces) into
// campaign and lead state. Every transition is a conditional store write, so
// duplicate or out-of-order events collapse into no-ops and a campaign's
// state never moves backwards.
type Reconciler struct {
	campaigns domain.CampaignStore
	leads     domain.LeadStore
	cache     *cache.Client
	detector  domain.ReplyDetector
	metrics   *metrics.Metrics
	log       logger.Logger

	// lookback bounds each reply-poll IMAP search
	lookback time.Duration
}

// NewReconciler creates the lifecycle reconciler. cache and detector are
// optional: without cache every tracking hit reads the database, without
// detector PollReplies is a no-op.
func NewReconciler(
	campaigns domain.CampaignStore,
	leads domain.LeadStore,
	c *cache.Client,
	detector domain.ReplyDetector,
	m *metrics.Metrics,
	log logger.Logger,
	lookback time.Duration,
) *Reconciler {
	if lookback == 0 {
		lookback = time.Hour
	}
	return &Reconciler{
		campaigns: campaigns,
		leads:     leads,
		cache:     c,
		detector:  detector,
		metrics:   m,
		log:       log,
		lookback:  lookback,
	}
}

// resolveTracking maps a tracking id to its campaign, consulting Redis first.
// Cache failures fall through to the database.
func (r *Reconciler) resolveTracking(ctx context.Context, trackingID string) (*models.Campaign, error) {
	if trackingID == "" {
		return nil, nil
	}

	if r.cache != nil {
		if raw, err := r.cache.Get(ctx, cache.TrackingKey(trackingID)); err == nil {
			if id, convErr := strconv.ParseUint(raw, 10, 64); convErr == nil {
				return r.campaigns.GetByID(ctx, uint(id))
			}
		}
	}

	c, err := r.campaigns.GetByTrackingID(ctx, trackingID)
	if err != nil || c == nil {
		return c, err
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, cache.TrackingKey(trackingID), strconv.FormatUint(uint64(c.ID), 10), trackingCacheTTL); err != nil {
			r.log.Warn("Failed to cache tracking id", "tracking_id", trackingID, "error", err)
		}
	}
	return c, nil
}

// HandleOpen records a tracking-pixel hit. Unknown ids and repeat opens are
// silently ignored.
func (r *Reconciler) HandleOpen(ctx context.Context, trackingID string, at time.Time) error {
	c, err := r.resolveTracking(ctx, trackingID)
	if err != nil {
		return err
	}
	if c == nil {
		r.log.Debug("Open for unknown tracking id", "tracking_id", trackingID)
		return nil
	}

	if !c.Status.CanTransitionTo(models.StatusOpened) {
		return nil
	}

	ok, err := r.campaigns.Transition(ctx, c.ID, c.Status, models.StatusOpened, map[string]any{"opened_at": at})
	if err != nil {
		return err
	}
	if ok {
		r.metrics.OpensRecorded.Inc()
		r.log.Info("Email opened", "campaign_id", c.ID, "lead_id", c.LeadID)
	}
	return nil
}

// HandleClick records a tracked link click. Clicks are informational only:
// the click row is appended and counted, campaign status is untouched. Open
// tracking is the sole signal that moves sent to opened.
func (r *Reconciler) HandleClick(ctx context.Context, trackingID, url string, at time.Time) error {
	c, err := r.resolveTracking(ctx, trackingID)
	if err != nil {
		return err
	}
	if c == nil {
		r.log.Debug("Click for unknown tracking id", "tracking_id", trackingID)
		return nil
	}

	if err := r.campaigns.RecordClick(ctx, c.ID, url, at); err != nil {
		return err
	}
	r.metrics.ClicksRecorded.Inc()
	r.log.Info("Email link clicked", "campaign_id", c.ID, "url", url)
	return nil
}

// MarkReplied moves the campaign to replied, promotes the lead, and cancels
// the lead's remaining pending follow-ups. method labels how the reply was
// attributed (message_id, heuristic, manual). Idempotent: a campaign already
// past sent/opened is left untouched.
func (r *Reconciler) MarkReplied(ctx context.Context, campaignID uint, replyMessageID string, at time.Time, method string) error {
	c, err := r.campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return err
	}
	if c == nil {
		return domain.NewNotFoundError("campaign")
	}

	if !c.Status.CanTransitionTo(models.StatusReplied) {
		return nil
	}

	set := map[string]any{"replied_at": at}
	if replyMessageID != "" {
		set["reply_message_id"] = replyMessageID
	}
	ok, err := r.campaigns.Transition(ctx, campaignID, c.Status, models.StatusReplied, set)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	r.metrics.RepliesMatched.WithLabelValues(method).Inc()
	r.log.Info("Reply recorded", "campaign_id", c.ID, "lead_id", c.LeadID, "method", method)

	lead, err := r.leads.GetByID(ctx, c.LeadID)
	if err != nil {
		return err
	}
	if lead != nil && lead.Status != models.LeadStatusReplied && lead.Status != models.LeadStatusQualified {
		lead.Status = models.LeadStatusReplied
		if err := r.leads.Update(ctx, lead); err != nil {
			r.log.Error("Failed to promote lead after reply", "lead_id", lead.ID, "error", err)
		}
	}

	n, err := r.campaigns.CancelPendingFollowUps(ctx, c.LeadID)
	if err != nil {
		return fmt.Errorf("failed to cancel follow-ups after reply: %w", err)
	}
	if n > 0 {
		r.metrics.FollowUpsCancelled.WithLabelValues("reply_cascade").Add(float64(n))
		r.log.Info("Cancelled pending follow-ups after reply", "lead_id", c.LeadID, "count", n)
	}
	return nil
}

// HandleBounce marks a delivered campaign as bounced. Drafts and already
// terminal campaigns are left alone.
func (r *Reconciler) HandleBounce(ctx context.Context, campaignID uint, at time.Time) error {
	c, err := r.campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return err
	}
	if c == nil {
		return domain.NewNotFoundError("campaign")
	}
	if !c.Status.CanTransitionTo(models.StatusBounced) {
		return nil
	}

	ok, err := r.campaigns.Transition(ctx, campaignID, c.Status, models.StatusBounced, nil)
	if err != nil {
		return err
	}
	if ok {
		r.log.Warn("Email bounced", "campaign_id", c.ID, "lead_id", c.LeadID)
	}
	return nil
}

// PollReplies runs one reply-detection cycle: fetch recent inbound messages
// and attribute each one to a sent campaign. Attribution prefers the exact
// In-Reply-To / References match; when threading headers are missing it
// falls back to sender plus normalized-subject matching. A message that
// matches nothing is skipped, never guessed.
func (r *Reconciler) PollReplies(ctx context.Context) error {
	if r.detector == nil {
		return nil
	}

	since := time.Now().Add(-r.lookback)
	events, err := r.detector.FetchRecentInboundReplies(ctx, since)
	if err != nil {
		return fmt.Errorf("failed to fetch inbound replies: %w", err)
	}

	for _, ev := range events {
		campaign, method, err := r.matchReply(ctx, ev)
		if err != nil {
			r.log.Error("Failed to match inbound reply", "message_id", ev.MessageID, "error", err)
			continue
		}
		if campaign == nil {
			continue
		}
		if err := r.MarkReplied(ctx, campaign.ID, ev.MessageID, ev.Date, method); err != nil {
			r.log.Error("Failed to record reply", "campaign_id", campaign.ID, "error", err)
		}
	}
	return nil
}

func (r *Reconciler) matchReply(ctx context.Context, ev domain.ReplyEvent) (*models.Campaign, string, error) {
	// Exact: the inbound message threads onto one of our outbound ids
	for _, ref := range append(append([]string{}, ev.InReplyTo...), ev.References...) {
		if ref == "" {
			continue
		}
		c, err := r.campaigns.GetByMessageID(ctx, ref)
		if err != nil {
			return nil, "", err
		}
		if c != nil {
			return c, "message_id", nil
		}
	}

	// Heuristic: known lead replying with a "Re:" of a subject we sent
	if !replydetect.IsReplySubject(ev.Subject) {
		return nil, "", nil
	}
	lead, err := r.leads.GetByEmail(ctx, strings.ToLower(ev.FromEmail))
	if err != nil {
		return nil, "", err
	}
	if lead == nil {
		return nil, "", nil
	}

	wanted := replydetect.NormalizeSubject(ev.Subject)
	if wanted == "" {
		return nil, "", nil
	}
	candidates, err := r.campaigns.QueryRepliableForLead(ctx, lead.ID)
	if err != nil {
		return nil, "", err
	}
	for _, c := range candidates {
		if c.SentAt == nil || !c.SentAt.Before(ev.Date) {
			continue
		}
		// Prefix rather than equality: mail clients truncate long subjects
		if strings.HasPrefix(replydetect.NormalizeSubject(c.Subject), wanted) {
			return c, "heuristic", nil
		}
	}
	return nil, "", nil
}
