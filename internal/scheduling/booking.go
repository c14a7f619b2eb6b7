package scheduling

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"meetsched-service/internal/model"
	"meetsched-service/internal/timezone"
)

// BookingStore is the write side of booking persistence. InsertConfirmed must
// atomically pair the per-host conflict check with the insert (serialized per
// host) and return ErrSlotUnavailable when the slot is taken; the read check
// in AdmitBooking alone is not sufficient under concurrent writers.
type BookingStore interface {
	BusyIntervalReader
	CountConfirmedBetween(ctx context.Context, hostID int64, from, to time.Time) (int, error)
	InsertConfirmed(ctx context.Context, b *model.Booking, duration time.Duration) error
	GetBooking(ctx context.Context, id string) (*model.Booking, error)
	CancelBooking(ctx context.Context, id, reason string) (*model.Booking, error)
	AttachCalendarEvent(ctx context.Context, id, eventRef string) error
}

// EventManager mirrors bookings onto the host's external calendar.
// Both operations are best-effort from the booking service's perspective.
type EventManager interface {
	CreateEvent(ctx context.Context, b *model.Booking, host *model.Host, mt *model.MeetingType) (string, error)
	DeleteEvent(ctx context.Context, host *model.Host, eventRef string) error
}

// NotificationDispatcher sends booking lifecycle notifications to the invitee
// and the host. Best-effort; failures are logged, never surfaced.
type NotificationDispatcher interface {
	SendBookingConfirmed(ctx context.Context, b *model.Booking, host *model.Host, mt *model.MeetingType) error
	SendBookingCancelled(ctx context.Context, b *model.Booking, host *model.Host, mt *model.MeetingType, reason string) error
}

// Booker validates and commits bookings. The conflict gate re-runs at write
// time inside BookingStore so that two requests racing past the slot engine's
// snapshot cannot both land.
type Booker struct {
	hosts    HostRepository
	meetings MeetingTypeRepository
	bookings BookingStore
	calendar EventManager
	notify   NotificationDispatcher
	logger   *slog.Logger

	now               func() time.Time
	sideEffectTimeout time.Duration
}

type BookerOption func(*Booker)

// WithBookerClock injects the time source, for tests.
func WithBookerClock(now func() time.Time) BookerOption {
	return func(b *Booker) { b.now = now }
}

// WithSideEffectTimeout bounds each calendar/notification call.
func WithSideEffectTimeout(d time.Duration) BookerOption {
	return func(b *Booker) {
		if d > 0 {
			b.sideEffectTimeout = d
		}
	}
}

func NewBooker(hosts HostRepository, meetings MeetingTypeRepository, bookings BookingStore,
	calendar EventManager, notify NotificationDispatcher, logger *slog.Logger, opts ...BookerOption) *Booker {
	b := &Booker{
		hosts:             hosts,
		meetings:          meetings,
		bookings:          bookings,
		calendar:          calendar,
		notify:            notify,
		logger:            logger,
		now:               time.Now,
		sideEffectTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// AdmitBooking runs the admission gates in order; the first failing gate
// aborts with no partial writes. On success the booking is committed before
// any side effect runs, and side-effect failures never unwind the commit.
func (s *Booker) AdmitBooking(ctx context.Context, meetingTypeID int64, invitee model.Invitee, scheduledTime time.Time) (*model.Booking, error) {
	mt, err := s.meetings.GetMeetingType(ctx, meetingTypeID)
	if err != nil {
		return nil, err
	}
	if !mt.Active {
		return nil, model.ErrMeetingTypeNotFound
	}
	host, err := s.hosts.GetHost(ctx, mt.UserID)
	if err != nil {
		return nil, err
	}

	if err := invitee.Validate(); err != nil {
		return nil, err
	}

	minBookable := s.now().Add(time.Duration(mt.AdvanceNoticeHours) * time.Hour)
	if scheduledTime.Before(minBookable) {
		return nil, fmt.Errorf("%w: requires %d hours notice", model.ErrAdvanceNoticeViolation, mt.AdvanceNoticeHours)
	}

	if mt.DailyLimit != nil {
		dayStart, dayEnd, err := hostDayBounds(scheduledTime, host.Timezone)
		if err != nil {
			return nil, err
		}
		count, err := s.bookings.CountConfirmedBetween(ctx, host.ID, dayStart, dayEnd)
		if err != nil {
			return nil, err
		}
		if count >= *mt.DailyLimit {
			return nil, fmt.Errorf("%w: limit %d", model.ErrDailyLimitReached, *mt.DailyLimit)
		}
	}

	booking := &model.Booking{
		ID:            uuid.NewString(),
		MeetingTypeID: mt.ID,
		UserID:        host.ID,
		InviteeName:   strings.TrimSpace(invitee.Name),
		InviteeEmail:  invitee.Email,
		InviteePhone:  invitee.Phone,
		ScheduledTime: scheduledTime.UTC(),
		Status:        model.StatusConfirmed,
	}
	if err := s.bookings.InsertConfirmed(ctx, booking, mt.Duration()); err != nil {
		return nil, err
	}

	s.attempt(ctx, "calendar event create", func(ctx context.Context) error {
		ref, err := s.calendar.CreateEvent(ctx, booking, host, mt)
		if err != nil {
			return err
		}
		if ref == "" {
			return nil
		}
		booking.CalendarEventID = ref
		return s.bookings.AttachCalendarEvent(ctx, booking.ID, ref)
	})
	s.attempt(ctx, "confirmation notification", func(ctx context.Context) error {
		return s.notify.SendBookingConfirmed(ctx, booking, host, mt)
	})

	return booking, nil
}

// CancelBooking transitions a confirmed booking to cancelled. One-way: a
// cancelled booking never reactivates, and cancelling twice fails without
// re-sending notifications.
func (s *Booker) CancelBooking(ctx context.Context, hostID int64, bookingID, reason string) (*model.Booking, error) {
	existing, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if existing.UserID != hostID {
		return nil, model.ErrBookingNotFound
	}
	if existing.Status == model.StatusCancelled {
		return nil, model.ErrAlreadyCancelled
	}

	booking, err := s.bookings.CancelBooking(ctx, bookingID, reason)
	if err != nil {
		return nil, err
	}

	mt, mtErr := s.meetings.GetMeetingType(ctx, booking.MeetingTypeID)
	host, hostErr := s.hosts.GetHost(ctx, booking.UserID)
	if mtErr != nil || hostErr != nil {
		// The transition is committed; without the joined rows there is
		// nothing to notify against.
		s.logger.Warn("cancelled booking is missing meeting type or host", "booking_id", booking.ID)
		return booking, nil
	}

	if booking.CalendarEventID != "" {
		s.attempt(ctx, "calendar event delete", func(ctx context.Context) error {
			return s.calendar.DeleteEvent(ctx, host, booking.CalendarEventID)
		})
	}
	s.attempt(ctx, "cancellation notification", func(ctx context.Context) error {
		return s.notify.SendBookingCancelled(ctx, booking, host, mt, reason)
	})

	return booking, nil
}

// attempt runs a best-effort side effect: bounded by the configured timeout,
// detached from the caller's cancellation, errors captured and logged only.
func (s *Booker) attempt(ctx context.Context, op string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.sideEffectTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		s.logger.Warn("best-effort side effect failed", "op", op, "err", err)
	}
}

// hostDayBounds returns [midnight, next midnight) around t in the host's
// timezone. The daily limit counts against the host's calendar day, not the
// server's.
func hostDayBounds(t time.Time, tz string) (time.Time, time.Time, error) {
	loc, err := timezone.LoadLocation(tz)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1), nil
}
