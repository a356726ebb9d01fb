package errors

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/jordanlanch/leadpilot/pkg/domain"
	"github.com/jordanlanch/leadpilot/pkg/models"
)

// statusFor maps domain error codes to HTTP status codes
func statusFor(err error) int {
	switch {
	case domain.IsNotFound(err):
		return http.StatusNotFound
	case domain.IsValidation(err):
		return http.StatusBadRequest
	case domain.IsFollowUpLimit(err), domain.IsAlreadyReplied(err):
		return http.StatusConflict
	case domain.IsSendFailure(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// JSON writes a domain error as the standard error payload. Internal errors
// are not echoed back verbatim.
func JSON(c echo.Context, err error) error {
	status := statusFor(err)
	resp := models.ErrorResponse{
		Error:   domain.GetErrorCode(err),
		Message: err.Error(),
	}
	if status == http.StatusInternalServerError {
		resp.Message = "An internal error occurred"
	}
	return c.JSON(status, resp)
}

// BadRequest writes a 400 with a fixed error code
func BadRequest(c echo.Context, code, message string) error {
	return c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error:   code,
		Message: message,
	})
}
