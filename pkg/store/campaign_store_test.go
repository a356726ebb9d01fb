package store

import (
	"context"
	"testing"
	"time"

	"github.com/jordanlanch/leadpilot/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Lead{}, &models.Campaign{}, &models.ClickEvent{}))
	return db
}

func createTestLead(t *testing.T, db *gorm.DB, email string) *models.Lead {
	lead := &models.Lead{Name: "Test Lead", Email: email}
	require.NoError(t, db.Create(lead).Error)
	return lead
}

func TestQueryDue(t *testing.T) {
	db := setupTestDB(t)
	s := NewCampaignStore(db)
	ctx := context.Background()

	lead := createTestLead(t, db, "due@test.com")
	now := time.Now()

	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	dueRow := &models.Campaign{LeadID: lead.ID, UserID: 1, Subject: "due", Status: models.StatusDraft, IsFollowUp: true, ScheduledAt: &past}
	notYet := &models.Campaign{LeadID: lead.ID, UserID: 1, Subject: "later", Status: models.StatusDraft, IsFollowUp: true, ScheduledAt: &future}
	sent := &models.Campaign{LeadID: lead.ID, UserID: 1, Subject: "sent", Status: models.StatusSent, ScheduledAt: &past}
	noSchedule := &models.Campaign{LeadID: lead.ID, UserID: 1, Subject: "original", Status: models.StatusDraft}
	for _, c := range []*models.Campaign{dueRow, notYet, sent, noSchedule} {
		require.NoError(t, s.Create(ctx, c))
	}

	due, err := s.QueryDue(ctx, now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, dueRow.ID, due[0].ID)
}

func TestQueryDueOrdering(t *testing.T) {
	db := setupTestDB(t)
	s := NewCampaignStore(db)
	ctx := context.Background()

	lead := createTestLead(t, db, "order@test.com")
	now := time.Now()

	older := now.Add(-2 * time.Hour)
	newer := now.Add(-1 * time.Hour)
	second := &models.Campaign{LeadID: lead.ID, UserID: 1, Subject: "second", Status: models.StatusDraft, IsFollowUp: true, ScheduledAt: &newer}
	first := &models.Campaign{LeadID: lead.ID, UserID: 1, Subject: "first", Status: models.StatusDraft, IsFollowUp: true, ScheduledAt: &older}
	require.NoError(t, s.Create(ctx, second))
	require.NoError(t, s.Create(ctx, first))

	due, err := s.QueryDue(ctx, now)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "first", due[0].Subject)
	assert.Equal(t, "second", due[1].Subject)
}

func TestTransitionConditional(t *testing.T) {
	db := setupTestDB(t)
	s := NewCampaignStore(db)
	ctx := context.Background()

	lead := createTestLead(t, db, "transition@test.com")
	c := &models.Campaign{LeadID: lead.ID, UserID: 1, Subject: "s", Status: models.StatusSent}
	require.NoError(t, s.Create(ctx, c))

	now := time.Now()

	t.Run("Success - matching current status", func(t *testing.T) {
		ok, err := s.Transition(ctx, c.ID, models.StatusSent, models.StatusOpened, map[string]any{"opened_at": now})
		require.NoError(t, err)
		assert.True(t, ok)

		got, err := s.GetByID(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusOpened, got.Status)
		require.NotNil(t, got.OpenedAt)
	})

	t.Run("No-op - stale current status", func(t *testing.T) {
		ok, err := s.Transition(ctx, c.ID, models.StatusSent, models.StatusOpened, nil)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestCancelPendingFollowUps(t *testing.T) {
	db := setupTestDB(t)
	s := NewCampaignStore(db)
	ctx := context.Background()

	lead := createTestLead(t, db, "cancel@test.com")
	other := createTestLead(t, db, "other@test.com")
	at := time.Now().Add(time.Hour)

	pending1 := &models.Campaign{LeadID: lead.ID, UserID: 1, Subject: "f1", Status: models.StatusDraft, IsFollowUp: true, ScheduledAt: &at}
	pending2 := &models.Campaign{LeadID: lead.ID, UserID: 1, Subject: "f2", Status: models.StatusDraft, IsFollowUp: true, ScheduledAt: &at}
	sentRow := &models.Campaign{LeadID: lead.ID, UserID: 1, Subject: "sent", Status: models.StatusSent, IsFollowUp: true}
	otherLead := &models.Campaign{LeadID: other.ID, UserID: 1, Subject: "keep", Status: models.StatusDraft, IsFollowUp: true, ScheduledAt: &at}
	for _, c := range []*models.Campaign{pending1, pending2, sentRow, otherLead} {
		require.NoError(t, s.Create(ctx, c))
	}

	n, err := s.CancelPendingFollowUps(ctx, lead.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	// Sent rows and other leads' rows are untouched
	got, _ := s.GetByID(ctx, sentRow.ID)
	assert.Equal(t, models.StatusSent, got.Status)
	got, _ = s.GetByID(ctx, otherLead.ID)
	assert.Equal(t, models.StatusDraft, got.Status)

	// Idempotent: second call matches nothing
	n, err = s.CancelPendingFollowUps(ctx, lead.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}

func TestCountActiveFollowUps(t *testing.T) {
	db := setupTestDB(t)
	s := NewCampaignStore(db)
	ctx := context.Background()

	lead := createTestLead(t, db, "count@test.com")
	at := time.Now().Add(time.Hour)

	for i, status := range []models.CampaignStatus{models.StatusDraft, models.StatusSent, models.StatusCancelled} {
		c := &models.Campaign{LeadID: lead.ID, UserID: 1, Subject: "f", Status: status, IsFollowUp: true, FollowUpSequence: i + 1, ScheduledAt: &at}
		require.NoError(t, s.Create(ctx, c))
	}
	// Originals never count against the cap
	require.NoError(t, s.Create(ctx, &models.Campaign{LeadID: lead.ID, UserID: 1, Subject: "original", Status: models.StatusSent}))

	count, err := s.CountActiveFollowUps(ctx, lead.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

func TestGetByTrackingID(t *testing.T) {
	db := setupTestDB(t)
	s := NewCampaignStore(db)
	ctx := context.Background()

	lead := createTestLead(t, db, "tracking@test.com")
	c := &models.Campaign{LeadID: lead.ID, UserID: 1, Subject: "s", Status: models.StatusSent, TrackingID: "trk-1", MessageID: "msg-1"}
	require.NoError(t, s.Create(ctx, c))

	got, err := s.GetByTrackingID(ctx, "trk-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, c.ID, got.ID)

	got, err = s.GetByTrackingID(ctx, "unknown")
	require.NoError(t, err)
	assert.Nil(t, got)

	// Empty ids never match rows that have no tracking id yet
	got, err = s.GetByTrackingID(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, got)
}
