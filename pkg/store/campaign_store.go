package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jordanlanch/leadpilot/pkg/models"
	"gorm.io/gorm"
)

// CampaignStore implements domain.CampaignStore on GORM.
type CampaignStore struct {
	db *gorm.DB
}

// NewCampaignStore creates a new campaign store
func NewCampaignStore(db *gorm.DB) *CampaignStore {
	return &CampaignStore{db: db}
}

func (s *CampaignStore) Create(ctx context.Context, c *models.Campaign) error {
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}
	return nil
}

func (s *CampaignStore) GetByID(ctx context.Context, id uint) (*models.Campaign, error) {
	var c models.Campaign
	err := s.db.WithContext(ctx).First(&c, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch campaign: %w", err)
	}
	return &c, nil
}

func (s *CampaignStore) GetByTrackingID(ctx context.Context, trackingID string) (*models.Campaign, error) {
	if trackingID == "" {
		return nil, nil
	}
	var c models.Campaign
	err := s.db.WithContext(ctx).Where("tracking_id = ?", trackingID).First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch campaign by tracking id: %w", err)
	}
	return &c, nil
}

func (s *CampaignStore) GetByMessageID(ctx context.Context, messageID string) (*models.Campaign, error) {
	if messageID == "" {
		return nil, nil
	}
	var c models.Campaign
	err := s.db.WithContext(ctx).Where("message_id = ?", messageID).First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch campaign by message id: %w", err)
	}
	return &c, nil
}

// QueryDue returns pending drafts whose scheduled_at has passed, oldest first.
func (s *CampaignStore) QueryDue(ctx context.Context, before time.Time) ([]*models.Campaign, error) {
	var due []*models.Campaign
	err := s.db.WithContext(ctx).
		Where("status = ? AND scheduled_at IS NOT NULL AND scheduled_at <= ?", models.StatusDraft, before).
		Order("scheduled_at ASC").
		Find(&due).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query due campaigns: %w", err)
	}
	return due, nil
}

func (s *CampaignStore) QueryRepliedSince(ctx context.Context, leadID uint, since time.Time) ([]*models.Campaign, error) {
	var replied []*models.Campaign
	err := s.db.WithContext(ctx).
		Where("lead_id = ? AND status = ? AND replied_at IS NOT NULL AND replied_at >= ?",
			leadID, models.StatusReplied, since).
		Find(&replied).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query replied campaigns: %w", err)
	}
	return replied, nil
}

// QueryRepliableForLead returns the lead's campaigns still awaiting a reply
// (sent or opened), most recently sent first.
func (s *CampaignStore) QueryRepliableForLead(ctx context.Context, leadID uint) ([]*models.Campaign, error) {
	var rows []*models.Campaign
	err := s.db.WithContext(ctx).
		Where("lead_id = ? AND status IN ?", leadID, []models.CampaignStatus{models.StatusSent, models.StatusOpened}).
		Order("sent_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query repliable campaigns: %w", err)
	}
	return rows, nil
}

func (s *CampaignStore) CountActiveFollowUps(ctx context.Context, leadID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Campaign{}).
		Where("lead_id = ? AND is_follow_up = ? AND status <> ?", leadID, true, models.StatusCancelled).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count follow-ups: %w", err)
	}
	return count, nil
}

// Transition applies a status change only if the stored status still equals
// current. The conditional WHERE is the store-level synchronization the
// scheduler and reconciler rely on; there is no in-process locking.
func (s *CampaignStore) Transition(ctx context.Context, id uint, current, next models.CampaignStatus, set map[string]any) (bool, error) {
	updates := map[string]any{"status": next}
	for k, v := range set {
		updates[k] = v
	}

	res := s.db.WithContext(ctx).
		Model(&models.Campaign{}).
		Where("id = ? AND status = ?", id, current).
		Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("failed to transition campaign %d to %s: %w", id, next, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// CancelPendingFollowUps withdraws every pending follow-up for the lead as a
// single bulk conditional update. Idempotent: a second call matches no rows.
func (s *CampaignStore) CancelPendingFollowUps(ctx context.Context, leadID uint) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Campaign{}).
		Where("lead_id = ? AND status = ? AND is_follow_up = ? AND scheduled_at IS NOT NULL",
			leadID, models.StatusDraft, true).
		Update("status", models.StatusCancelled)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to cancel pending follow-ups: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *CampaignStore) RecordClick(ctx context.Context, campaignID uint, url string, at time.Time) error {
	click := models.ClickEvent{
		CampaignID: campaignID,
		URL:        url,
		ClickedAt:  at,
	}
	if err := s.db.WithContext(ctx).Create(&click).Error; err != nil {
		return fmt.Errorf("failed to record click: %w", err)
	}
	return nil
}
