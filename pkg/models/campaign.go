package models

import "time"

// CampaignStatus represents the lifecycle state of an outreach email.
type CampaignStatus string

const (
	StatusDraft     CampaignStatus = "draft"
	StatusSent      CampaignStatus = "sent"
	StatusOpened    CampaignStatus = "opened"
	StatusReplied   CampaignStatus = "replied"
	StatusBounced   CampaignStatus = "bounced"
	StatusCancelled CampaignStatus = "cancelled"
)

// statusRank orders the forward path draft -> sent -> opened -> replied.
// Terminal side-states (bounced, cancelled) are handled separately.
var statusRank = map[CampaignStatus]int{
	StatusDraft:   0,
	StatusSent:    1,
	StatusOpened:  2,
	StatusReplied: 3,
}

// Terminal reports whether no further transitions are allowed from s.
func (s CampaignStatus) Terminal() bool {
	return s == StatusReplied || s == StatusBounced || s == StatusCancelled
}

// CanTransitionTo reports whether moving from s to next is a forward
// transition. Duplicate or out-of-order events must be dropped by callers.
func (s CampaignStatus) CanTransitionTo(next CampaignStatus) bool {
	if s.Terminal() {
		return false
	}
	switch next {
	case StatusCancelled:
		// Only pending drafts can be withdrawn.
		return s == StatusDraft
	case StatusBounced:
		// A delivery failure is only meaningful after a send was attempted.
		return s == StatusSent || s == StatusOpened
	case StatusReplied:
		// Replies can arrive without an observed open.
		return s == StatusSent || s == StatusOpened
	default:
		return statusRank[next] == statusRank[s]+1
	}
}

// Campaign is one outreach email instance (original or follow-up) tied to a lead.
type Campaign struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	LeadID uint `gorm:"not null;index" json:"lead_id"`
	UserID uint `gorm:"not null;index" json:"user_id"`

	Subject     string `gorm:"not null" json:"subject"`
	ContentHTML string `json:"content_html"`

	Status CampaignStatus `gorm:"type:varchar(16);default:'draft';index" json:"status"`

	// Follow-up threading
	IsFollowUp       bool  `gorm:"default:false;index" json:"is_follow_up"`
	FollowUpSequence int   `gorm:"default:0" json:"follow_up_sequence"`
	ParentEmailID    *uint `gorm:"index" json:"parent_email_id,omitempty"`

	// Lifecycle timestamps, each set exactly once
	ScheduledAt *time.Time `gorm:"index" json:"scheduled_at,omitempty"`
	SentAt      *time.Time `json:"sent_at,omitempty"`
	OpenedAt    *time.Time `json:"opened_at,omitempty"`
	RepliedAt   *time.Time `json:"replied_at,omitempty"`

	// Correlation identifiers, assigned at send time
	TrackingID string `gorm:"index" json:"tracking_id,omitempty"`
	MessageID  string `gorm:"index" json:"message_id,omitempty"`
	// ReplyMessageID records the inbound message that was matched as the
	// reply, so reply detection stays idempotent across poll cycles.
	ReplyMessageID string `gorm:"index" json:"reply_message_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Lead *Lead `gorm:"foreignKey:LeadID" json:"lead,omitempty"`
}

// Pending reports whether the campaign is a scheduled follow-up that has
// not fired yet.
func (c *Campaign) Pending() bool {
	return c.Status == StatusDraft && c.IsFollowUp && c.ScheduledAt != nil
}

// ClickEvent records a link click on a sent campaign. Clicks are
// informational only and never change campaign status.
type ClickEvent struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CampaignID uint      `gorm:"not null;index" json:"campaign_id"`
	URL        string    `gorm:"not null" json:"url"`
	ClickedAt  time.Time `gorm:"not null" json:"clicked_at"`
}
