package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Booking status values. A booking is created confirmed and may only
// transition to cancelled, never back.
const (
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

// Meeting location types, carried through to calendar events and emails.
const (
	LocationVideo    = "video"
	LocationPhone    = "phone"
	LocationInPerson = "in_person"
)

type Host struct {
	ID                   int64     `json:"id"`
	Email                string    `json:"email"`
	Username             string    `json:"username"`
	Timezone             string    `json:"timezone"`
	CalendarConnected    bool      `json:"calendar_connected"`
	CalendarAccessToken  string    `json:"-"`
	CalendarRefreshToken string    `json:"-"`
	CreatedAt            time.Time `json:"created_at,omitempty"`
	UpdatedAt            time.Time `json:"updated_at,omitempty"`
}

type MeetingType struct {
	ID                 int64     `json:"id"`
	UserID             int64     `json:"user_id"`
	Name               string    `json:"name"`
	Description        string    `json:"description,omitempty"`
	DurationMinutes    int       `json:"duration_minutes"`
	AdvanceNoticeHours int       `json:"advance_notice_hours"`
	DailyLimit         *int      `json:"daily_limit,omitempty"`
	LocationType       string    `json:"location_type"`
	LocationDetails    string    `json:"location_details,omitempty"`
	Active             bool      `json:"active"`
	CreatedAt          time.Time `json:"created_at,omitempty"`
	UpdatedAt          time.Time `json:"updated_at,omitempty"`
}

func (mt *MeetingType) Duration() time.Duration {
	return time.Duration(mt.DurationMinutes) * time.Minute
}

func (mt *MeetingType) Validate() error {
	if strings.TrimSpace(mt.Name) == "" {
		return fmt.Errorf("%w: name required", ErrInvalidMeetingType)
	}
	if mt.DurationMinutes < 15 || mt.DurationMinutes > 480 {
		return fmt.Errorf("%w: duration must be 15-480 minutes", ErrInvalidMeetingType)
	}
	if mt.AdvanceNoticeHours < 1 || mt.AdvanceNoticeHours > 720 {
		return fmt.Errorf("%w: advance notice must be 1-720 hours", ErrInvalidMeetingType)
	}
	if mt.DailyLimit != nil && *mt.DailyLimit < 1 {
		return fmt.Errorf("%w: daily limit must be positive", ErrInvalidMeetingType)
	}
	switch mt.LocationType {
	case LocationVideo, LocationPhone, LocationInPerson:
	default:
		return fmt.Errorf("%w: unknown location type %q", ErrInvalidMeetingType, mt.LocationType)
	}
	return nil
}

// AvailabilityRule is one recurring weekly window in the host's timezone.
// StartTime and EndTime are zero-padded 24h "HH:MM" strings; multiple rules
// may exist per day and may overlap (generation unions them).
type AvailabilityRule struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	DayOfWeek int       `json:"day_of_week"`
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

func (r *AvailabilityRule) Validate() error {
	if r.DayOfWeek < 0 || r.DayOfWeek > 6 {
		return fmt.Errorf("%w: day_of_week must be 0-6", ErrInvalidRule)
	}
	if !hhmmRe.MatchString(r.StartTime) || !hhmmRe.MatchString(r.EndTime) {
		return fmt.Errorf("%w: times must be HH:MM", ErrInvalidRule)
	}
	// Zero-padded 24h times order lexicographically.
	if r.StartTime >= r.EndTime {
		return fmt.Errorf("%w: start_time must be before end_time", ErrInvalidRule)
	}
	return nil
}

var hhmmRe = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

type Invitee struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

var (
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneRe = regexp.MustCompile(`^\+?[1-9][0-9]{0,15}$`)
)

func (i *Invitee) Validate() error {
	name := strings.TrimSpace(i.Name)
	if name == "" {
		return fmt.Errorf("%w: name required", ErrInvalidInvitee)
	}
	if len(name) > 255 {
		return fmt.Errorf("%w: name exceeds 255 characters", ErrInvalidInvitee)
	}
	if !emailRe.MatchString(i.Email) {
		return fmt.Errorf("%w: malformed email", ErrInvalidInvitee)
	}
	if i.Phone != "" {
		stripped := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(i.Phone)
		if !phoneRe.MatchString(stripped) {
			return fmt.Errorf("%w: malformed phone", ErrInvalidInvitee)
		}
	}
	return nil
}

type Booking struct {
	ID                 string    `json:"id"`
	MeetingTypeID      int64     `json:"meeting_type_id"`
	UserID             int64     `json:"user_id"`
	InviteeName        string    `json:"invitee_name"`
	InviteeEmail       string    `json:"invitee_email"`
	InviteePhone       string    `json:"invitee_phone,omitempty"`
	ScheduledTime      time.Time `json:"scheduled_time"`
	Status             string    `json:"status"`
	CancellationReason string    `json:"cancellation_reason,omitempty"`
	CalendarEventID    string    `json:"calendar_event_id,omitempty"`
	CreatedAt          time.Time `json:"created_at,omitempty"`
	UpdatedAt          time.Time `json:"updated_at,omitempty"`
}

// BusyInterval is a half-open [Start, End) block of committed time, derived
// either from a confirmed booking or from the external calendar feed.
type BusyInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// CandidateSlot is a bookable start instant, never persisted.
type CandidateSlot struct {
	Time         time.Time `json:"datetime"`
	DisplayLabel string    `json:"display"`
	Timezone     string    `json:"timezone"`
}
