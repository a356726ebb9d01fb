package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	apierrors "github.com/jordanlanch/leadpilot/pkg/api/errors"
	"github.com/jordanlanch/leadpilot/pkg/domain"
	"github.com/jordanlanch/leadpilot/pkg/followup"
	"github.com/jordanlanch/leadpilot/pkg/lifecycle"
	"github.com/jordanlanch/leadpilot/pkg/logger"
	"github.com/jordanlanch/leadpilot/pkg/models"
)

const handlerTimeout = 10 * time.Second

// CampaignHandler handles campaign and follow-up operations.
type CampaignHandler struct {
	campaigns  domain.CampaignStore
	leads      domain.LeadStore
	scheduler  *followup.Scheduler
	reconciler *lifecycle.Reconciler
	sender     domain.EmailSender
	validate   *validator.Validate
	log        logger.Logger
	fromEmail  string
	fromName   string
}

// NewCampaignHandler creates a new campaign handler.
func NewCampaignHandler(
	campaigns domain.CampaignStore,
	leads domain.LeadStore,
	scheduler *followup.Scheduler,
	reconciler *lifecycle.Reconciler,
	sender domain.EmailSender,
	log logger.Logger,
	fromEmail, fromName string,
) *CampaignHandler {
	return &CampaignHandler{
		campaigns:  campaigns,
		leads:      leads,
		scheduler:  scheduler,
		reconciler: reconciler,
		sender:     sender,
		validate:   validator.New(),
		log:        log,
		fromEmail:  fromEmail,
		fromName:   fromName,
	}
}

// CreateCampaign creates an outreach email for a lead and sends it
// immediately. POST /api/v1/campaigns
func (h *CampaignHandler) CreateCampaign(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), handlerTimeout)
	defer cancel()

	var req models.CreateCampaignRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.BadRequest(c, "invalid_request", "Invalid request body")
	}
	if err := h.validate.Struct(&req); err != nil {
		return apierrors.BadRequest(c, "validation_error", err.Error())
	}

	lead, err := h.leads.GetByID(ctx, req.LeadID)
	if err != nil {
		return apierrors.JSON(c, err)
	}
	if lead == nil {
		return apierrors.JSON(c, domain.NewNotFoundError("lead"))
	}

	campaign := &models.Campaign{
		LeadID:      req.LeadID,
		UserID:      req.UserID,
		Subject:     req.Subject,
		ContentHTML: req.Content,
		Status:      models.StatusDraft,
	}
	if err := h.campaigns.Create(ctx, campaign); err != nil {
		return apierrors.JSON(c, err)
	}

	result, err := h.sender.Send(ctx, lead.Email, lead.Name, campaign.Subject, campaign.ContentHTML, h.fromName, h.fromEmail)
	if err != nil {
		// The draft stays; the caller may retry the send
		return apierrors.JSON(c, err)
	}

	now := time.Now()
	if _, err := h.campaigns.Transition(ctx, campaign.ID, models.StatusDraft, models.StatusSent, map[string]any{
		"sent_at":     now,
		"message_id":  result.MessageID,
		"tracking_id": result.TrackingID,
	}); err != nil {
		return apierrors.JSON(c, err)
	}
	if err := h.leads.TouchLastContact(ctx, lead.ID, now); err != nil {
		h.log.Error("Failed to update lead last contact date", "lead_id", lead.ID, "error", err)
	}

	created, err := h.campaigns.GetByID(ctx, campaign.ID)
	if err != nil {
		return apierrors.JSON(c, err)
	}
	return c.JSON(http.StatusCreated, created)
}

// GetCampaign returns one campaign. GET /api/v1/campaigns/:id
func (h *CampaignHandler) GetCampaign(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), handlerTimeout)
	defer cancel()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return apierrors.BadRequest(c, "invalid_campaign_id", "Campaign ID must be a valid number")
	}

	campaign, err := h.campaigns.GetByID(ctx, uint(id))
	if err != nil {
		return apierrors.JSON(c, err)
	}
	if campaign == nil {
		return apierrors.JSON(c, domain.NewNotFoundError("campaign"))
	}
	return c.JSON(http.StatusOK, campaign)
}

// ScheduleFollowUp schedules a follow-up for a sent campaign.
// POST /api/v1/campaigns/:id/schedule-followup
func (h *CampaignHandler) ScheduleFollowUp(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), handlerTimeout)
	defer cancel()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return apierrors.BadRequest(c, "invalid_campaign_id", "Campaign ID must be a valid number")
	}

	var req models.ScheduleFollowUpRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.BadRequest(c, "invalid_request", "Invalid request body")
	}
	if err := h.validate.Struct(&req); err != nil {
		return apierrors.BadRequest(c, "validation_error", err.Error())
	}

	var delay time.Duration
	switch {
	case req.DelayDays > 0:
		delay = time.Duration(req.DelayDays) * 24 * time.Hour
	case req.DelayMinutes > 0:
		delay = time.Duration(req.DelayMinutes) * time.Minute
	default:
		return apierrors.BadRequest(c, "invalid_delay", "Either delay_days or delay_minutes is required")
	}

	userID := currentUserID(c)

	created, err := h.scheduler.ScheduleFollowUp(ctx, uint(id), delay, userID)
	if err != nil {
		return apierrors.JSON(c, err)
	}
	return c.JSON(http.StatusCreated, models.ScheduleFollowUpResponse{Campaign: created})
}

// CancelFollowUps withdraws every pending follow-up for the campaign's lead.
// DELETE /api/v1/campaigns/:id/cancel-followups
func (h *CampaignHandler) CancelFollowUps(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), handlerTimeout)
	defer cancel()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return apierrors.BadRequest(c, "invalid_campaign_id", "Campaign ID must be a valid number")
	}

	campaign, err := h.campaigns.GetByID(ctx, uint(id))
	if err != nil {
		return apierrors.JSON(c, err)
	}
	if campaign == nil {
		return apierrors.JSON(c, domain.NewNotFoundError("campaign"))
	}

	n, err := h.scheduler.CancelFollowUpsForLead(ctx, campaign.LeadID)
	if err != nil {
		return apierrors.JSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"message":   "Follow-ups cancelled",
		"cancelled": n,
	})
}

// CancelLeadFollowUps withdraws every pending follow-up for a lead.
// POST /api/v1/leads/:id/cancel-followups
func (h *CampaignHandler) CancelLeadFollowUps(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), handlerTimeout)
	defer cancel()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return apierrors.BadRequest(c, "invalid_lead_id", "Lead ID must be a valid number")
	}

	lead, err := h.leads.GetByID(ctx, uint(id))
	if err != nil {
		return apierrors.JSON(c, err)
	}
	if lead == nil {
		return apierrors.JSON(c, domain.NewNotFoundError("lead"))
	}

	n, err := h.scheduler.CancelFollowUpsForLead(ctx, lead.ID)
	if err != nil {
		return apierrors.JSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"message":   "Follow-ups cancelled",
		"cancelled": n,
	})
}

// MarkReplied records a reply manually, for replies that arrived outside the
// monitored inbox. POST /api/v1/campaigns/:id/mark-replied
func (h *CampaignHandler) MarkReplied(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), handlerTimeout)
	defer cancel()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return apierrors.BadRequest(c, "invalid_campaign_id", "Campaign ID must be a valid number")
	}

	if err := h.reconciler.MarkReplied(ctx, uint(id), "", time.Now(), "manual"); err != nil {
		return apierrors.JSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{
		"message": "Campaign marked as replied",
	})
}

// currentUserID reads the authenticated user id set by upstream middleware,
// defaulting to the system user when the API runs without auth.
func currentUserID(c echo.Context) uint {
	if v, ok := c.Get("user_id").(uint); ok && v != 0 {
		return v
	}
	return 1
}
