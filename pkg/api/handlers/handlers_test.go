package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/jordanlanch/leadpilot/pkg/domain"
	"github.com/jordanlanch/leadpilot/pkg/followup"
	"github.com/jordanlanch/leadpilot/pkg/lifecycle"
	"github.com/jordanlanch/leadpilot/pkg/logger"
	"github.com/jordanlanch/leadpilot/pkg/metrics"
	"github.com/jordanlanch/leadpilot/pkg/models"
	"github.com/jordanlanch/leadpilot/pkg/store"
)

type stubSender struct{ serial int }

func (s *stubSender) Send(ctx context.Context, to, toName, subject, htmlContent, fromName, fromEmail string) (*domain.SendResult, error) {
	s.serial++
	return &domain.SendResult{
		MessageID:  fmt.Sprintf("msg-%d", s.serial),
		TrackingID: fmt.Sprintf("trk-%d", s.serial),
	}, nil
}

type stubGenerator struct{}

func (stubGenerator) GenerateFollowUp(ctx context.Context, lead *models.Lead, previousContent, tone string, sequence int) (*domain.GeneratedEmail, error) {
	return &domain.GeneratedEmail{Subject: fmt.Sprintf("Follow-up %d", sequence), Content: "<p>ping</p>"}, nil
}

type testEnv struct {
	db        *gorm.DB
	e         *echo.Echo
	campaigns *store.CampaignStore
	campaign  *CampaignHandler
	tracking  *TrackingHandler
	leadsAPI  *LeadHandler
	lead      *models.Lead
	user      *models.User
}

func newTestEnv(t *testing.T) *testEnv {
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Lead{}, &models.Campaign{}, &models.ClickEvent{}))

	campaigns := store.NewCampaignStore(db)
	leads := store.NewLeadStore(db)
	users := store.NewUserStore(db)
	m := metrics.New(prometheus.NewRegistry())
	log := logger.NopLogger{}
	sender := &stubSender{}

	scheduler := followup.NewScheduler(campaigns, leads, users, sender, stubGenerator{}, m, log, followup.Options{
		FromEmail: "outreach@leadpilot.test",
	})
	reconciler := lifecycle.NewReconciler(campaigns, leads, nil, nil, m, log, time.Hour)

	env := &testEnv{
		db:        db,
		e:         echo.New(),
		campaigns: campaigns,
		campaign:  NewCampaignHandler(campaigns, leads, scheduler, reconciler, sender, log, "outreach@leadpilot.test", "LeadPilot"),
		tracking:  NewTrackingHandler(reconciler, log),
		leadsAPI:  NewLeadHandler(leads, log),
	}

	env.user = &models.User{Name: "Ana Torres", Email: "ana@leadpilot.test"}
	require.NoError(t, db.Create(env.user).Error)
	env.lead = &models.Lead{Name: "Carlos Ruiz", Email: "carlos@acme.test", Status: models.LeadStatusNew}
	require.NoError(t, db.Create(env.lead).Error)

	return env
}

func (env *testEnv) createSent(t *testing.T, trackingID string) *models.Campaign {
	t.Helper()
	sentAt := time.Now().Add(-time.Hour)
	c := &models.Campaign{
		LeadID: env.lead.ID, UserID: env.user.ID,
		Subject: "Intro", Status: models.StatusSent,
		SentAt: &sentAt, TrackingID: trackingID, MessageID: "msg-" + trackingID,
	}
	require.NoError(t, env.db.Create(c).Error)
	return c
}

func (env *testEnv) request(method, path, body string, params map[string]string) (echo.Context, *httptest.ResponseRecorder) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	c := env.e.NewContext(req, rec)
	for k, v := range params {
		c.SetParamNames(k)
		c.SetParamValues(v)
	}
	return c, rec
}

func TestScheduleFollowUpEndpoint(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		env := newTestEnv(t)
		parent := env.createSent(t, "trk-parent")

		c, rec := env.request(http.MethodPost, "/api/v1/campaigns/1/schedule-followup",
			`{"delay_days": 3}`, map[string]string{"id": fmt.Sprint(parent.ID)})
		require.NoError(t, env.campaign.ScheduleFollowUp(c))
		assert.Equal(t, http.StatusCreated, rec.Code)

		var resp models.ScheduleFollowUpResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.NotNil(t, resp.Campaign)
		assert.Equal(t, models.StatusDraft, resp.Campaign.Status)
		assert.True(t, resp.Campaign.IsFollowUp)
	})

	t.Run("Unknown campaign maps to 404", func(t *testing.T) {
		env := newTestEnv(t)
		c, rec := env.request(http.MethodPost, "/api/v1/campaigns/999/schedule-followup",
			`{"delay_days": 3}`, map[string]string{"id": "999"})
		require.NoError(t, env.campaign.ScheduleFollowUp(c))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "NOT_FOUND")
	})

	t.Run("Limit exceeded maps to 409", func(t *testing.T) {
		env := newTestEnv(t)
		parent := env.createSent(t, "trk-parent")

		for i := 0; i < 3; i++ {
			c, rec := env.request(http.MethodPost, "/x", `{"delay_days": 3}`, map[string]string{"id": fmt.Sprint(parent.ID)})
			require.NoError(t, env.campaign.ScheduleFollowUp(c))
			require.Equal(t, http.StatusCreated, rec.Code)
		}

		c, rec := env.request(http.MethodPost, "/x", `{"delay_days": 3}`, map[string]string{"id": fmt.Sprint(parent.ID)})
		require.NoError(t, env.campaign.ScheduleFollowUp(c))
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, rec.Body.String(), "FOLLOWUP_LIMIT_EXCEEDED")
	})

	t.Run("Replied thread maps to 409", func(t *testing.T) {
		env := newTestEnv(t)
		parent := env.createSent(t, "trk-parent")
		now := time.Now()
		_, err := env.campaigns.Transition(context.Background(), parent.ID, models.StatusSent, models.StatusReplied, map[string]any{"replied_at": now})
		require.NoError(t, err)

		c, rec := env.request(http.MethodPost, "/x", `{"delay_days": 3}`, map[string]string{"id": fmt.Sprint(parent.ID)})
		require.NoError(t, env.campaign.ScheduleFollowUp(c))
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, rec.Body.String(), "ALREADY_REPLIED")
	})

	t.Run("Missing delay maps to 400", func(t *testing.T) {
		env := newTestEnv(t)
		parent := env.createSent(t, "trk-parent")

		c, rec := env.request(http.MethodPost, "/x", `{}`, map[string]string{"id": fmt.Sprint(parent.ID)})
		require.NoError(t, env.campaign.ScheduleFollowUp(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestCancelFollowUpsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	parent := env.createSent(t, "trk-parent")

	for i := 0; i < 2; i++ {
		c, rec := env.request(http.MethodPost, "/x", `{"delay_days": 3}`, map[string]string{"id": fmt.Sprint(parent.ID)})
		require.NoError(t, env.campaign.ScheduleFollowUp(c))
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	c, rec := env.request(http.MethodDelete, "/x", "", map[string]string{"id": fmt.Sprint(parent.ID)})
	require.NoError(t, env.campaign.CancelFollowUps(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.EqualValues(t, 2, resp["cancelled"])

	// Second call cancels nothing but still succeeds
	c, rec = env.request(http.MethodDelete, "/x", "", map[string]string{"id": fmt.Sprint(parent.ID)})
	require.NoError(t, env.campaign.CancelFollowUps(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.EqualValues(t, 0, resp["cancelled"])
}

func TestMarkRepliedEndpoint(t *testing.T) {
	env := newTestEnv(t)
	parent := env.createSent(t, "trk-parent")

	c, rec := env.request(http.MethodPost, "/x", "", map[string]string{"id": fmt.Sprint(parent.ID)})
	require.NoError(t, env.campaign.MarkReplied(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	got, err := env.campaigns.GetByID(context.Background(), parent.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReplied, got.Status)
}

func TestTrackOpenEndpoint(t *testing.T) {
	t.Run("Known tracking id serves pixel and records open", func(t *testing.T) {
		env := newTestEnv(t)
		campaign := env.createSent(t, "trk-1")

		c, rec := env.request(http.MethodGet, "/email/track-open/trk-1", "", map[string]string{"trackingId": "trk-1"})
		require.NoError(t, env.tracking.TrackOpen(c))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/gif", rec.Header().Get(echo.HeaderContentType))
		assert.Equal(t, transparentGIF, rec.Body.Bytes())

		got, err := env.campaigns.GetByID(context.Background(), campaign.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusOpened, got.Status)
	})

	t.Run("Unknown tracking id still serves pixel", func(t *testing.T) {
		env := newTestEnv(t)
		c, rec := env.request(http.MethodGet, "/email/track-open/nope", "", map[string]string{"trackingId": "nope"})
		require.NoError(t, env.tracking.TrackOpen(c))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, transparentGIF, rec.Body.Bytes())
	})
}

func TestTrackClickEndpoint(t *testing.T) {
	t.Run("Known tracking id records click and redirects", func(t *testing.T) {
		env := newTestEnv(t)
		campaign := env.createSent(t, "trk-1")

		c, rec := env.request(http.MethodGet, "/email/track-click/trk-1?url=https%3A%2F%2Fexample.com%2Fpricing", "", map[string]string{"trackingId": "trk-1"})
		require.NoError(t, env.tracking.TrackClick(c))
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "https://example.com/pricing", rec.Header().Get(echo.HeaderLocation))

		var clicks []models.ClickEvent
		require.NoError(t, env.db.Where("campaign_id = ?", campaign.ID).Find(&clicks).Error)
		assert.Len(t, clicks, 1)
	})

	t.Run("Unknown tracking id still redirects", func(t *testing.T) {
		env := newTestEnv(t)
		c, rec := env.request(http.MethodGet, "/email/track-click/nope?url=https%3A%2F%2Fexample.com", "", map[string]string{"trackingId": "nope"})
		require.NoError(t, env.tracking.TrackClick(c))
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "https://example.com", rec.Header().Get(echo.HeaderLocation))
	})

	t.Run("Non-http scheme is rejected", func(t *testing.T) {
		env := newTestEnv(t)
		c, rec := env.request(http.MethodGet, "/email/track-click/trk-1?url=javascript%3Aalert(1)", "", map[string]string{"trackingId": "trk-1"})
		require.NoError(t, env.tracking.TrackClick(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestLeadEndpoints(t *testing.T) {
	t.Run("Create with phone normalization", func(t *testing.T) {
		env := newTestEnv(t)
		c, rec := env.request(http.MethodPost, "/api/v1/leads",
			`{"name":"Beatriz Gil","email":"beatriz@acme.test","phone":"(212) 555-0123","country":"US"}`, nil)
		require.NoError(t, env.leadsAPI.CreateLead(c))
		assert.Equal(t, http.StatusCreated, rec.Code)

		var lead models.Lead
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &lead))
		assert.Equal(t, "+12125550123", lead.Phone)
		assert.True(t, lead.MobilePhone)
		assert.Equal(t, models.LeadStatusNew, lead.Status)
	})

	t.Run("Duplicate email maps to 409", func(t *testing.T) {
		env := newTestEnv(t)
		c, rec := env.request(http.MethodPost, "/api/v1/leads",
			`{"name":"Dup","email":"carlos@acme.test"}`, nil)
		require.NoError(t, env.leadsAPI.CreateLead(c))
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("Invalid email maps to 400", func(t *testing.T) {
		env := newTestEnv(t)
		c, rec := env.request(http.MethodPost, "/api/v1/leads",
			`{"name":"Bad","email":"not-an-email"}`, nil)
		require.NoError(t, env.leadsAPI.CreateLead(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Get by id", func(t *testing.T) {
		env := newTestEnv(t)
		c, rec := env.request(http.MethodGet, "/api/v1/leads/1", "", map[string]string{"id": fmt.Sprint(env.lead.ID)})
		require.NoError(t, env.leadsAPI.GetLead(c))
		assert.Equal(t, http.StatusOK, rec.Code)

		c, rec = env.request(http.MethodGet, "/api/v1/leads/999", "", map[string]string{"id": "999"})
		require.NoError(t, env.leadsAPI.GetLead(c))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestCreateCampaignEndpoint(t *testing.T) {
	env := newTestEnv(t)

	body := fmt.Sprintf(`{"lead_id":%d,"user_id":%d,"subject":"Hello Acme","content":"<p>Hi</p>"}`, env.lead.ID, env.user.ID)
	c, rec := env.request(http.MethodPost, "/api/v1/campaigns", body, nil)
	require.NoError(t, env.campaign.CreateCampaign(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	var created models.Campaign
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, models.StatusSent, created.Status)
	assert.NotEmpty(t, created.TrackingID)
	assert.NotEmpty(t, created.MessageID)
}
