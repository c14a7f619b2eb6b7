package app

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"meetsched-service/internal/model"
)

// fail maps domain errors onto HTTP responses. Unknown errors are logged and
// reported as a bare 500 so internals never leak to clients.
func (a *App) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, model.ErrInvalidTimeFormat),
		errors.Is(err, model.ErrUnknownTimezone),
		errors.Is(err, model.ErrRangeInvalid),
		errors.Is(err, model.ErrInvalidInvitee),
		errors.Is(err, model.ErrInvalidRule),
		errors.Is(err, model.ErrInvalidMeetingType):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, model.ErrHostNotFound),
		errors.Is(err, model.ErrMeetingTypeNotFound),
		errors.Is(err, model.ErrBookingNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, model.ErrAdvanceNoticeViolation),
		errors.Is(err, model.ErrDailyLimitReached),
		errors.Is(err, model.ErrSlotUnavailable),
		errors.Is(err, model.ErrAlreadyCancelled):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		a.Logger.Error("request failed", "path", c.FullPath(), "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
