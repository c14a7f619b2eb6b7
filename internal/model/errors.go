package model

import "errors"

// Error taxonomy shared by the slot engine, the booking service and the HTTP
// layer. Handlers map these to status codes with errors.Is; wrapped variants
// carry the caller-facing detail.
var (
	// Validation errors: caller-correctable, never retried.
	ErrInvalidTimeFormat  = errors.New("invalid time format")
	ErrUnknownTimezone    = errors.New("unknown timezone")
	ErrRangeInvalid       = errors.New("range start must be before range end")
	ErrInvalidInvitee     = errors.New("invalid invitee")
	ErrInvalidRule        = errors.New("invalid availability rule")
	ErrInvalidMeetingType = errors.New("invalid meeting type")

	// Not-found errors.
	ErrHostNotFound        = errors.New("host not found")
	ErrMeetingTypeNotFound = errors.New("meeting type not found")
	ErrBookingNotFound     = errors.New("booking not found")

	// Business-rule violations. The caller must re-query slots and resubmit.
	ErrAdvanceNoticeViolation = errors.New("advance notice violation")
	ErrDailyLimitReached      = errors.New("daily booking limit reached")
	ErrSlotUnavailable        = errors.New("slot unavailable")
	ErrAlreadyCancelled       = errors.New("booking already cancelled")
)
