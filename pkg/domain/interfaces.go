package domain

import (
	"context"
	"time"

	"github.com/jordanlanch/leadpilot/pkg/models"
)

// CampaignStore defines persistence operations for campaigns. All status
// transitions go through conditional writes keyed on the current stored
// status, which is what makes duplicate or overlapping ticks safe.
type CampaignStore interface {
	Create(ctx context.Context, c *models.Campaign) error
	GetByID(ctx context.Context, id uint) (*models.Campaign, error)
	GetByTrackingID(ctx context.Context, trackingID string) (*models.Campaign, error)
	GetByMessageID(ctx context.Context, messageID string) (*models.Campaign, error)

	// QueryDue returns draft campaigns whose scheduled_at has passed,
	// ordered by scheduled_at ascending.
	QueryDue(ctx context.Context, before time.Time) ([]*models.Campaign, error)
	// QueryRepliedSince returns the lead's campaigns replied at or after since.
	QueryRepliedSince(ctx context.Context, leadID uint, since time.Time) ([]*models.Campaign, error)
	// CountActiveFollowUps counts the lead's follow-ups that are not cancelled.
	CountActiveFollowUps(ctx context.Context, leadID uint) (int64, error)
	// QueryRepliableForLead returns the lead's sent or opened campaigns,
	// most recently sent first. Used for heuristic reply attribution.
	QueryRepliableForLead(ctx context.Context, leadID uint) ([]*models.Campaign, error)

	// Transition moves the campaign to next only if its stored status still
	// equals current. Returns false when the row was already past current.
	Transition(ctx context.Context, id uint, current, next models.CampaignStatus, set map[string]any) (bool, error)
	// CancelPendingFollowUps withdraws every pending follow-up for the lead
	// in one bulk conditional update and returns the number of rows changed.
	CancelPendingFollowUps(ctx context.Context, leadID uint) (int64, error)

	RecordClick(ctx context.Context, campaignID uint, url string, at time.Time) error
}

// LeadStore defines persistence operations for leads
type LeadStore interface {
	Create(ctx context.Context, l *models.Lead) error
	GetByID(ctx context.Context, id uint) (*models.Lead, error)
	GetByEmail(ctx context.Context, email string) (*models.Lead, error)
	List(ctx context.Context, limit, offset int) ([]*models.Lead, int64, error)
	Update(ctx context.Context, l *models.Lead) error
	TouchLastContact(ctx context.Context, id uint, at time.Time) error
}

// UserStore defines persistence operations for users
type UserStore interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
}

// SendResult carries the provider identifiers assigned to a delivered email
type SendResult struct {
	MessageID  string
	TrackingID string
}

// EmailSender delivers one campaign email. Implementations inject open and
// click tracking into the HTML body before delivery.
type EmailSender interface {
	Send(ctx context.Context, to, toName, subject, htmlContent, fromName, fromEmail string) (*SendResult, error)
}

// GeneratedEmail is the output of the content generator
type GeneratedEmail struct {
	Subject string
	Content string
}

// EmailContentGenerator produces follow-up email copy for a lead
type EmailContentGenerator interface {
	GenerateFollowUp(ctx context.Context, lead *models.Lead, previousContent, tone string, sequence int) (*GeneratedEmail, error)
}

// ReplyEvent is one inbound message that may be a reply to a sent campaign
type ReplyEvent struct {
	MessageID  string
	InReplyTo  []string
	References []string
	FromEmail  string
	Subject    string
	Date       time.Time
}

// ReplyDetector fetches recent inbound messages that look like replies.
// Matching them to campaigns is the reconciler's job. Detection is
// best-effort: it polls an inbox, there is no reply webhook.
type ReplyDetector interface {
	FetchRecentInboundReplies(ctx context.Context, since time.Time) ([]ReplyEvent, error)
}
