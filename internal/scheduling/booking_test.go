package scheduling

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meetsched-service/internal/model"
)

func validInvitee() model.Invitee {
	return model.Invitee{Name: "Sam Rivera", Email: "sam@example.com"}
}

func newTestBooker(store *fakeStore, cal *fakeEventManager, disp *fakeDispatcher, now time.Time) *Booker {
	return NewBooker(store, store, store, cal, disp, testLogger,
		WithBookerClock(func() time.Time { return now }))
}

func TestAdmitBooking_Success(t *testing.T) {
	loc := newYork(t)
	store := mondayStore()
	cal := &fakeEventManager{}
	disp := &fakeDispatcher{}
	now := time.Date(2026, 1, 11, 12, 0, 0, 0, loc)
	b := newTestBooker(store, cal, disp, now)

	at := time.Date(2026, 1, 12, 10, 0, 0, 0, loc)
	booking, err := b.AdmitBooking(context.Background(), meetingTypeID, validInvitee(), at)
	require.NoError(t, err)

	assert.Equal(t, model.StatusConfirmed, booking.Status)
	assert.Equal(t, hostID, booking.UserID)
	assert.True(t, booking.ScheduledTime.Equal(at))
	assert.NotEmpty(t, booking.ID)
	assert.NotEmpty(t, booking.CalendarEventID)
	assert.Equal(t, 1, disp.confirmed)

	persisted, err := store.GetBooking(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.CalendarEventID, persisted.CalendarEventID)
}

func TestAdmitBooking_MeetingTypeGate(t *testing.T) {
	loc := newYork(t)
	store := mondayStore()
	b := newTestBooker(store, &fakeEventManager{}, &fakeDispatcher{}, time.Date(2026, 1, 11, 12, 0, 0, 0, loc))
	at := time.Date(2026, 1, 12, 10, 0, 0, 0, loc)

	_, err := b.AdmitBooking(context.Background(), 999, validInvitee(), at)
	assert.ErrorIs(t, err, model.ErrMeetingTypeNotFound)

	store.meetings[meetingTypeID].Active = false
	_, err = b.AdmitBooking(context.Background(), meetingTypeID, validInvitee(), at)
	assert.ErrorIs(t, err, model.ErrMeetingTypeNotFound)
}

func TestAdmitBooking_InviteeValidation(t *testing.T) {
	loc := newYork(t)
	store := mondayStore()
	b := newTestBooker(store, &fakeEventManager{}, &fakeDispatcher{}, time.Date(2026, 1, 11, 12, 0, 0, 0, loc))
	at := time.Date(2026, 1, 12, 10, 0, 0, 0, loc)

	cases := []model.Invitee{
		{Name: "", Email: "sam@example.com"},
		{Name: "Sam", Email: "not-an-email"},
		{Name: "Sam", Email: "sam@example.com", Phone: "abc"},
	}
	for _, inv := range cases {
		_, err := b.AdmitBooking(context.Background(), meetingTypeID, inv, at)
		assert.ErrorIs(t, err, model.ErrInvalidInvitee)
	}

	// Formatted phone numbers are accepted.
	_, err := b.AdmitBooking(context.Background(), meetingTypeID,
		model.Invitee{Name: "Sam", Email: "sam@example.com", Phone: "+1 (555) 123-4567"}, at)
	assert.NoError(t, err)
}

// A slot earlier than now + advance notice is rejected even when it lies in
// an open window.
func TestAdmitBooking_AdvanceNoticeViolation(t *testing.T) {
	loc := newYork(t)
	store := mondayStore()
	disp := &fakeDispatcher{}
	now := time.Date(2026, 1, 12, 9, 0, 0, 0, loc)
	b := newTestBooker(store, &fakeEventManager{}, disp, now)

	// 10:00 is open but only 1 hour away; the meeting type requires 2.
	at := time.Date(2026, 1, 12, 10, 0, 0, 0, loc)
	_, err := b.AdmitBooking(context.Background(), meetingTypeID, validInvitee(), at)
	assert.ErrorIs(t, err, model.ErrAdvanceNoticeViolation)
	assert.Zero(t, disp.confirmed, "no notification for a rejected booking")
}

// With dailyLimit=1 and a booking already on the host's calendar day, a
// second admission at a different free time that day fails.
func TestAdmitBooking_DailyLimitReached(t *testing.T) {
	loc := newYork(t)
	store := mondayStore()
	limit := 1
	store.meetings[meetingTypeID].DailyLimit = &limit
	now := time.Date(2026, 1, 11, 12, 0, 0, 0, loc)
	b := newTestBooker(store, &fakeEventManager{}, &fakeDispatcher{}, now)

	first := time.Date(2026, 1, 12, 10, 0, 0, 0, loc)
	_, err := b.AdmitBooking(context.Background(), meetingTypeID, validInvitee(), first)
	require.NoError(t, err)

	_, err = b.AdmitBooking(context.Background(), meetingTypeID, validInvitee(), first.Add(3*time.Hour))
	assert.ErrorIs(t, err, model.ErrDailyLimitReached)
}

// The daily-limit day boundary is the host's midnight. Two bookings either
// side of midnight Eastern belong to different days even when they share a
// UTC date.
func TestAdmitBooking_DailyLimitUsesHostDayBoundary(t *testing.T) {
	loc := newYork(t)
	store := mondayStore()
	limit := 1
	store.meetings[meetingTypeID].DailyLimit = &limit
	store.rules[hostID] = []model.AvailabilityRule{
		{ID: 1, UserID: hostID, DayOfWeek: 1, StartTime: "00:00", EndTime: "23:59", Active: true},
		{ID: 2, UserID: hostID, DayOfWeek: 2, StartTime: "00:00", EndTime: "23:59", Active: true},
	}
	now := time.Date(2026, 1, 11, 12, 0, 0, 0, loc)
	b := newTestBooker(store, &fakeEventManager{}, &fakeDispatcher{}, now)

	// Monday 23:00 ET and Tuesday 00:30 ET are the same UTC day (04:00 and
	// 05:30 UTC Tuesday) but different Eastern days.
	late := time.Date(2026, 1, 12, 23, 0, 0, 0, loc)
	_, err := b.AdmitBooking(context.Background(), meetingTypeID, validInvitee(), late)
	require.NoError(t, err)

	early := time.Date(2026, 1, 13, 0, 30, 0, 0, loc)
	_, err = b.AdmitBooking(context.Background(), meetingTypeID, validInvitee(), early)
	assert.NoError(t, err, "next host-local day should not count against Monday's limit")
}

// Conflict detection is full-interval overlap: a request offset into an
// existing booking's duration is rejected, not just the identical instant.
func TestAdmitBooking_OverlapConflict(t *testing.T) {
	loc := newYork(t)
	store := mondayStore()
	now := time.Date(2026, 1, 11, 12, 0, 0, 0, loc)
	b := newTestBooker(store, &fakeEventManager{}, &fakeDispatcher{}, now)

	at := time.Date(2026, 1, 12, 10, 0, 0, 0, loc)
	_, err := b.AdmitBooking(context.Background(), meetingTypeID, validInvitee(), at)
	require.NoError(t, err)

	_, err = b.AdmitBooking(context.Background(), meetingTypeID, validInvitee(), at)
	assert.ErrorIs(t, err, model.ErrSlotUnavailable, "identical instant")

	_, err = b.AdmitBooking(context.Background(), meetingTypeID, validInvitee(), at.Add(15*time.Minute))
	assert.ErrorIs(t, err, model.ErrSlotUnavailable, "15 minutes into the existing booking")

	_, err = b.AdmitBooking(context.Background(), meetingTypeID, validInvitee(), at.Add(30*time.Minute))
	assert.NoError(t, err, "back-to-back bookings touch but do not overlap")
}

// Two concurrent admissions of the identical slot: exactly one succeeds and
// the loser sees SlotUnavailable.
func TestAdmitBooking_ConcurrentRace(t *testing.T) {
	loc := newYork(t)
	store := mondayStore()
	now := time.Date(2026, 1, 11, 12, 0, 0, 0, loc)
	b := newTestBooker(store, &fakeEventManager{}, &fakeDispatcher{}, now)
	at := time.Date(2026, 1, 12, 10, 0, 0, 0, loc)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = b.AdmitBooking(context.Background(), meetingTypeID, validInvitee(), at)
		}(i)
	}
	wg.Wait()

	var ok, conflict int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case assert.ErrorIs(t, err, model.ErrSlotUnavailable):
			conflict++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflict)
}

// Generation soundness: every slot the engine returns is admittable at that
// moment, absent a racing booking.
func TestGeneratedSlotsAreAdmittable(t *testing.T) {
	loc := newYork(t)
	store := mondayStore()
	now := time.Date(2026, 1, 12, 8, 0, 0, 0, loc)
	e := newTestEngine(store, nil, now)
	b := newTestBooker(store, &fakeEventManager{}, &fakeDispatcher{}, now)

	from := time.Date(2026, 1, 12, 0, 0, 0, 0, loc)
	slots, err := e.GenerateSlots(context.Background(), hostID, meetingTypeID, from, from.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.NotEmpty(t, slots)

	// Admit alternating slots so admitted bookings never block later picks
	// (adjacent 15-minute slots of a 30-minute meeting overlap).
	for i := 0; i < len(slots); i += 2 {
		_, err := b.AdmitBooking(context.Background(), meetingTypeID, validInvitee(), slots[i].Time)
		require.NoError(t, err, "slot %s should admit", slots[i].Time.In(loc))
	}
}

func TestAdmitBooking_SideEffectFailuresSwallowed(t *testing.T) {
	loc := newYork(t)
	store := mondayStore()
	cal := &fakeEventManager{err: errProviderDown}
	disp := &fakeDispatcher{err: errProviderDown}
	now := time.Date(2026, 1, 11, 12, 0, 0, 0, loc)
	b := newTestBooker(store, cal, disp, now)

	at := time.Date(2026, 1, 12, 10, 0, 0, 0, loc)
	booking, err := b.AdmitBooking(context.Background(), meetingTypeID, validInvitee(), at)
	require.NoError(t, err, "side-effect failures must not fail the booking")
	assert.Equal(t, model.StatusConfirmed, booking.Status)
	assert.Empty(t, booking.CalendarEventID, "event ref stays null when creation fails")
}

func TestCancelBooking(t *testing.T) {
	loc := newYork(t)
	store := mondayStore()
	cal := &fakeEventManager{}
	disp := &fakeDispatcher{}
	now := time.Date(2026, 1, 11, 12, 0, 0, 0, loc)
	b := newTestBooker(store, cal, disp, now)

	at := time.Date(2026, 1, 12, 10, 0, 0, 0, loc)
	booking, err := b.AdmitBooking(context.Background(), meetingTypeID, validInvitee(), at)
	require.NoError(t, err)

	cancelled, err := b.CancelBooking(context.Background(), hostID, booking.ID, "host unavailable")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, cancelled.Status)
	assert.Equal(t, "host unavailable", cancelled.CancellationReason)
	assert.Equal(t, []string{booking.CalendarEventID}, cal.deleted)
	assert.Equal(t, 1, disp.cancelled)
}

func TestCancelBooking_NotFound(t *testing.T) {
	loc := newYork(t)
	store := mondayStore()
	b := newTestBooker(store, &fakeEventManager{}, &fakeDispatcher{}, time.Date(2026, 1, 11, 12, 0, 0, 0, loc))

	_, err := b.CancelBooking(context.Background(), hostID, "no-such-id", "")
	assert.ErrorIs(t, err, model.ErrBookingNotFound)
}

func TestCancelBooking_WrongHost(t *testing.T) {
	loc := newYork(t)
	store := mondayStore()
	b := newTestBooker(store, &fakeEventManager{}, &fakeDispatcher{}, time.Date(2026, 1, 11, 12, 0, 0, 0, loc))

	at := time.Date(2026, 1, 12, 10, 0, 0, 0, loc)
	booking, err := b.AdmitBooking(context.Background(), meetingTypeID, validInvitee(), at)
	require.NoError(t, err)

	_, err = b.CancelBooking(context.Background(), hostID+1, booking.ID, "")
	assert.ErrorIs(t, err, model.ErrBookingNotFound, "another host's booking is invisible")
}

// Idempotent cancellation: the second cancel fails AlreadyCancelled and does
// not double-send notifications.
func TestCancelBooking_AlreadyCancelled(t *testing.T) {
	loc := newYork(t)
	store := mondayStore()
	cal := &fakeEventManager{}
	disp := &fakeDispatcher{}
	b := newTestBooker(store, cal, disp, time.Date(2026, 1, 11, 12, 0, 0, 0, loc))

	at := time.Date(2026, 1, 12, 10, 0, 0, 0, loc)
	booking, err := b.AdmitBooking(context.Background(), meetingTypeID, validInvitee(), at)
	require.NoError(t, err)

	_, err = b.CancelBooking(context.Background(), hostID, booking.ID, "first")
	require.NoError(t, err)

	_, err = b.CancelBooking(context.Background(), hostID, booking.ID, "second")
	assert.ErrorIs(t, err, model.ErrAlreadyCancelled)
	assert.Equal(t, 1, disp.cancelled, "cancellation notification sent exactly once")
	assert.Len(t, cal.deleted, 1)
}
