package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jordanlanch/leadpilot/pkg/models"
	"gorm.io/gorm"
)

// LeadStore implements domain.LeadStore on GORM.
type LeadStore struct {
	db *gorm.DB
}

// NewLeadStore creates a new lead store
func NewLeadStore(db *gorm.DB) *LeadStore {
	return &LeadStore{db: db}
}

func (s *LeadStore) Create(ctx context.Context, l *models.Lead) error {
	if err := s.db.WithContext(ctx).Create(l).Error; err != nil {
		return fmt.Errorf("failed to create lead: %w", err)
	}
	return nil
}

func (s *LeadStore) GetByID(ctx context.Context, id uint) (*models.Lead, error) {
	var l models.Lead
	err := s.db.WithContext(ctx).First(&l, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch lead: %w", err)
	}
	return &l, nil
}

func (s *LeadStore) GetByEmail(ctx context.Context, email string) (*models.Lead, error) {
	var l models.Lead
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&l).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch lead by email: %w", err)
	}
	return &l, nil
}

func (s *LeadStore) List(ctx context.Context, limit, offset int) ([]*models.Lead, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Lead{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count leads: %w", err)
	}

	var leads []*models.Lead
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&leads).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list leads: %w", err)
	}
	return leads, total, nil
}

func (s *LeadStore) Update(ctx context.Context, l *models.Lead) error {
	if err := s.db.WithContext(ctx).Save(l).Error; err != nil {
		return fmt.Errorf("failed to update lead: %w", err)
	}
	return nil
}

// TouchLastContact stamps the lead's last_contact_date after a send. Leads
// still in "new" move to "contacted"; later pipeline stages are left alone.
func (s *LeadStore) TouchLastContact(ctx context.Context, id uint, at time.Time) error {
	err := s.db.WithContext(ctx).
		Model(&models.Lead{}).
		Where("id = ?", id).
		Update("last_contact_date", at).Error
	if err != nil {
		return fmt.Errorf("failed to update last contact date: %w", err)
	}

	err = s.db.WithContext(ctx).
		Model(&models.Lead{}).
		Where("id = ? AND status = ?", id, models.LeadStatusNew).
		Update("status", models.LeadStatusContacted).Error
	if err != nil {
		return fmt.Errorf("failed to update lead status: %w", err)
	}
	return nil
}

// UserStore implements domain.UserStore on GORM.
type UserStore struct {
	db *gorm.DB
}

// NewUserStore creates a new user store
func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).First(&u, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}
	return &u, nil
}
