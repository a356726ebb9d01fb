package handlers

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/jordanlanch/leadpilot/pkg/lifecycle"
	"github.com/jordanlanch/leadpilot/pkg/logger"
)

// transparentGIF is a 1x1 transparent pixel, served on every open hit.
var transparentGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00,
	0x00, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00,
	0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

// TrackingHandler serves the pixel and redirect endpoints embedded in sent
// emails. These are hit by mail clients, not API users: they must respond
// usefully no matter what, so reconciliation errors are logged and swallowed.
type TrackingHandler struct {
	reconciler *lifecycle.Reconciler
	log        logger.Logger
}

// NewTrackingHandler creates a new tracking handler.
func NewTrackingHandler(reconciler *lifecycle.Reconciler, log logger.Logger) *TrackingHandler {
	return &TrackingHandler{reconciler: reconciler, log: log}
}

// TrackOpen serves the open-tracking pixel. GET /email/track-open/:trackingId
func (h *TrackingHandler) TrackOpen(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	trackingID := c.Param("trackingId")
	if err := h.reconciler.HandleOpen(ctx, trackingID, time.Now()); err != nil {
		h.log.Error("Failed to record open", "tracking_id", trackingID, "error", err)
	}

	c.Response().Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	return c.Blob(http.StatusOK, "image/gif", transparentGIF)
}

// TrackClick records a link click and redirects to the destination.
// GET /email/track-click/:trackingId?url=
func (h *TrackingHandler) TrackClick(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	trackingID := c.Param("trackingId")
	target := c.QueryParam("url")

	if !validRedirectTarget(target) {
		// Do not become an open redirect for arbitrary schemes
		return c.NoContent(http.StatusBadRequest)
	}

	if err := h.reconciler.HandleClick(ctx, trackingID, target, time.Now()); err != nil {
		h.log.Error("Failed to record click", "tracking_id", trackingID, "error", err)
	}

	// The reader's click always lands on the destination
	return c.Redirect(http.StatusFound, target)
}

func validRedirectTarget(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
