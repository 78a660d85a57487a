package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clinicdesk/registration-api/internal/model"
	"github.com/clinicdesk/registration-api/internal/service/auth"
	apperrors "github.com/clinicdesk/registration-api/pkg/errors"
)

type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

// NewInfoResponse reports an accepted no-op: the request changed nothing
// but the caller should not treat it as a failure.
func NewInfoResponse(message string, data interface{}) *Response {
	return &Response{
		Status:  "success",
		Message: message,
		Data:    data,
	}
}

// RespondError maps a service error to its HTTP status. Every typed domain
// error has a deterministic status; anything unrecognised is a 500 with a
// generic message so internals never leak.
func RespondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, model.ErrScheduleNotFound),
		errors.Is(err, model.ErrAppointmentNotFound),
		errors.Is(err, model.ErrPatientNotFound),
		errors.Is(err, model.ErrDoctorNotFound),
		errors.Is(err, model.ErrFamilyMemberNotFound):
		c.JSON(http.StatusNotFound, NewErrorResponse(err.Error()))

	case errors.Is(err, model.ErrScheduleNotBookable),
		errors.Is(err, model.ErrSessionPaused),
		errors.Is(err, model.ErrSessionEnded),
		errors.Is(err, model.ErrInvalidTransition),
		errors.Is(err, model.ErrAlreadyCheckedIn),
		errors.Is(err, model.ErrAlreadyCancelled),
		errors.Is(err, model.ErrConsultationActive),
		errors.Is(err, model.ErrScheduleExists),
		errors.Is(err, model.ErrDuplicateBooking):
		c.JSON(http.StatusConflict, NewErrorResponse(err.Error()))

	case errors.Is(err, model.ErrScheduleFull):
		c.JSON(http.StatusUnprocessableEntity, NewErrorResponse(err.Error()))

	case errors.Is(err, model.ErrScheduleBusy):
		c.Header("Retry-After", "1")
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(err.Error()))

	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		c.JSON(http.StatusUnauthorized, NewErrorResponse(err.Error()))

	case errors.Is(err, model.ErrForbidden):
		c.JSON(http.StatusForbidden, NewErrorResponse(err.Error()))

	default:
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			c.JSON(statusForCode(appErr.Code), NewErrorResponse(appErr.Message))
			return
		}
		c.JSON(http.StatusInternalServerError, NewErrorResponse("internal server error"))
	}
}

func statusForCode(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrNotFound:
		return http.StatusNotFound
	case apperrors.ErrBadRequest:
		return http.StatusBadRequest
	case apperrors.ErrUnauthorized:
		return http.StatusUnauthorized
	case apperrors.ErrForbidden:
		return http.StatusForbidden
	case apperrors.ErrConflict:
		return http.StatusConflict
	case apperrors.ErrUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
