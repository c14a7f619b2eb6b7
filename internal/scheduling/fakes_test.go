package scheduling

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"meetsched-service/internal/model"
	"meetsched-service/internal/timezone"
)

// fakeStore is an in-memory stand-in for the pgx repositories. Its
// InsertConfirmed mirrors the production contract: conflict check and insert
// under one lock, serialized per store.
type fakeStore struct {
	mu       sync.Mutex
	hosts    map[int64]*model.Host
	meetings map[int64]*model.MeetingType
	rules    map[int64][]model.AvailabilityRule
	bookings map[string]*model.Booking
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		hosts:    make(map[int64]*model.Host),
		meetings: make(map[int64]*model.MeetingType),
		rules:    make(map[int64][]model.AvailabilityRule),
		bookings: make(map[string]*model.Booking),
	}
}

func (f *fakeStore) GetHost(_ context.Context, id int64) (*model.Host, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.hosts[id]
	if !ok {
		return nil, model.ErrHostNotFound
	}
	cp := *h
	return &cp, nil
}

func (f *fakeStore) GetMeetingType(_ context.Context, id int64) (*model.MeetingType, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	mt, ok := f.meetings[id]
	if !ok {
		return nil, model.ErrMeetingTypeNotFound
	}
	cp := *mt
	return &cp, nil
}

func (f *fakeStore) ListActiveRules(_ context.Context, hostID int64) ([]model.AvailabilityRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.AvailabilityRule
	for _, r := range f.rules[hostID] {
		if r.Active {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) ListConfirmedIntervals(_ context.Context, hostID int64, from, to time.Time) ([]model.BusyInterval, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.confirmedIntervalsLocked(hostID, from, to), nil
}

func (f *fakeStore) confirmedIntervalsLocked(hostID int64, from, to time.Time) []model.BusyInterval {
	var out []model.BusyInterval
	for _, b := range f.bookings {
		if b.UserID != hostID || b.Status != model.StatusConfirmed {
			continue
		}
		if b.ScheduledTime.Before(from) || !b.ScheduledTime.Before(to) {
			continue
		}
		// Live join: the interval is sized by the meeting type's current
		// duration, not a snapshot from booking time.
		mt, ok := f.meetings[b.MeetingTypeID]
		if !ok {
			continue
		}
		out = append(out, model.BusyInterval{Start: b.ScheduledTime, End: b.ScheduledTime.Add(mt.Duration())})
	}
	return out
}

func (f *fakeStore) CountConfirmedBetween(_ context.Context, hostID int64, from, to time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.bookings {
		if b.UserID == hostID && b.Status == model.StatusConfirmed &&
			!b.ScheduledTime.Before(from) && b.ScheduledTime.Before(to) {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) InsertConfirmed(_ context.Context, booking *model.Booking, duration time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	end := booking.ScheduledTime.Add(duration)
	for _, b := range f.bookings {
		if b.UserID != booking.UserID || b.Status != model.StatusConfirmed {
			continue
		}
		mt, ok := f.meetings[b.MeetingTypeID]
		if !ok {
			continue
		}
		if timezone.Overlap(booking.ScheduledTime, end, b.ScheduledTime, b.ScheduledTime.Add(mt.Duration())) {
			return model.ErrSlotUnavailable
		}
	}
	cp := *booking
	cp.CreatedAt = time.Now()
	f.bookings[cp.ID] = &cp
	return nil
}

func (f *fakeStore) GetBooking(_ context.Context, id string) (*model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return nil, model.ErrBookingNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *fakeStore) CancelBooking(_ context.Context, id, reason string) (*model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return nil, model.ErrBookingNotFound
	}
	if b.Status == model.StatusCancelled {
		return nil, model.ErrAlreadyCancelled
	}
	b.Status = model.StatusCancelled
	b.CancellationReason = reason
	cp := *b
	return &cp, nil
}

func (f *fakeStore) AttachCalendarEvent(_ context.Context, id, eventRef string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return model.ErrBookingNotFound
	}
	b.CalendarEventID = eventRef
	return nil
}

// fakeBusyProvider serves canned external busy intervals, or fails.
type fakeBusyProvider struct {
	intervals []model.BusyInterval
	err       error
	calls     int
}

func (f *fakeBusyProvider) BusyIntervals(context.Context, *model.Host, time.Time, time.Time) ([]model.BusyInterval, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.intervals, nil
}

type fakeEventManager struct {
	mu      sync.Mutex
	ref     string
	err     error
	created int
	deleted []string
}

func (f *fakeEventManager) CreateEvent(context.Context, *model.Booking, *model.Host, *model.MeetingType) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.created++
	if f.ref == "" {
		return fmt.Sprintf("evt-%d", f.created), nil
	}
	return f.ref, nil
}

func (f *fakeEventManager) DeleteEvent(_ context.Context, _ *model.Host, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, ref)
	return nil
}

type fakeDispatcher struct {
	mu        sync.Mutex
	err       error
	confirmed int
	cancelled int
}

func (f *fakeDispatcher) SendBookingConfirmed(context.Context, *model.Booking, *model.Host, *model.MeetingType) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.confirmed++
	return nil
}

func (f *fakeDispatcher) SendBookingCancelled(context.Context, *model.Booking, *model.Host, *model.MeetingType, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.cancelled++
	return nil
}

var errProviderDown = errors.New("calendar provider unavailable")
