package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	apierrors "github.com/jordanlanch/leadpilot/pkg/api/errors"
	"github.com/jordanlanch/leadpilot/pkg/domain"
	"github.com/jordanlanch/leadpilot/pkg/logger"
	"github.com/jordanlanch/leadpilot/pkg/models"
	"github.com/jordanlanch/leadpilot/pkg/phone"
)

// LeadHandler handles lead CRUD.
type LeadHandler struct {
	leads    domain.LeadStore
	validate *validator.Validate
	log      logger.Logger
}

// NewLeadHandler creates a new lead handler.
func NewLeadHandler(leads domain.LeadStore, log logger.Logger) *LeadHandler {
	return &LeadHandler{
		leads:    leads,
		validate: validator.New(),
		log:      log,
	}
}

// CreateLead creates a lead. POST /api/v1/leads
func (h *LeadHandler) CreateLead(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), handlerTimeout)
	defer cancel()

	var req models.CreateLeadRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.BadRequest(c, "invalid_request", "Invalid request body")
	}
	if err := h.validate.Struct(&req); err != nil {
		return apierrors.BadRequest(c, "validation_error", err.Error())
	}

	var mobile bool
	if req.Phone != "" {
		normalized, err := phone.NormalizePhone(req.Phone, req.Country)
		if err != nil {
			return apierrors.BadRequest(c, "invalid_phone", err.Error())
		}
		req.Phone = normalized
		if mobile, err = phone.IsMobile(normalized, req.Country); err != nil {
			h.log.Warn("Could not classify phone line type", "phone", normalized, "error", err)
		}
	}

	existing, err := h.leads.GetByEmail(ctx, req.Email)
	if err != nil {
		return apierrors.JSON(c, err)
	}
	if existing != nil {
		return c.JSON(http.StatusConflict, models.ErrorResponse{
			Error:   "duplicate_email",
			Message: "A lead with this email already exists",
		})
	}

	lead := &models.Lead{
		Name:        req.Name,
		Email:       req.Email,
		Company:     req.Company,
		Phone:       req.Phone,
		Country:     req.Country,
		MobilePhone: mobile,
		Status:      models.LeadStatusNew,
	}
	if err := h.leads.Create(ctx, lead); err != nil {
		return apierrors.JSON(c, err)
	}

	h.log.Info("Lead created", "lead_id", lead.ID, "email", lead.Email)
	return c.JSON(http.StatusCreated, lead)
}

// GetLead returns one lead. GET /api/v1/leads/:id
func (h *LeadHandler) GetLead(c echo.Context) error {
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
	return c.JSON(http.StatusOK, lead)
}

// ListLeads returns a page of leads. GET /api/v1/leads?limit=&offset=
func (h *LeadHandler) ListLeads(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), handlerTimeout)
	defer cancel()

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	if offset < 0 {
		offset = 0
	}

	leads, total, err := h.leads.List(ctx, limit, offset)
	if err != nil {
		return apierrors.JSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"leads": leads,
		"total": total,
	})
}
