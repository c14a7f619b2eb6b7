// Package scheduling holds the availability computation engine and the
// booking admission service. Both depend only on the narrow repository and
// provider interfaces declared here; internal/storage, internal/gcal and
// internal/notify supply the production implementations.
package scheduling

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"meetsched-service/internal/model"
	"meetsched-service/internal/timezone"
)

// DefaultSlotStep is the candidate-slot grid. Fixed policy: configurable via
// WithSlotStep but always defaults to 15 minutes.
const DefaultSlotStep = 15 * time.Minute

type HostRepository interface {
	GetHost(ctx context.Context, id int64) (*model.Host, error)
}

type MeetingTypeRepository interface {
	GetMeetingType(ctx context.Context, id int64) (*model.MeetingType, error)
}

type AvailabilityRepository interface {
	ListActiveRules(ctx context.Context, hostID int64) ([]model.AvailabilityRule, error)
}

// BusyIntervalReader returns intervals occupied by confirmed bookings in
// [from, to), each sized by the booking's meeting type's current duration.
type BusyIntervalReader interface {
	ListConfirmedIntervals(ctx context.Context, hostID int64, from, to time.Time) ([]model.BusyInterval, error)
}

// BusyTimeProvider is the external calendar's busy feed. It is best-effort:
// the engine treats any error as an empty result.
type BusyTimeProvider interface {
	BusyIntervals(ctx context.Context, host *model.Host, from, to time.Time) ([]model.BusyInterval, error)
}

// Engine computes bookable slots. It performs only reads and is safe to call
// concurrently; the only time-varying inputs are the clock and the busy-time
// snapshot.
type Engine struct {
	hosts    HostRepository
	meetings MeetingTypeRepository
	rules    AvailabilityRepository
	bookings BusyIntervalReader
	busy     BusyTimeProvider
	logger   *slog.Logger
	step     time.Duration
	now      func() time.Time
}

type EngineOption func(*Engine)

// WithSlotStep overrides the 15-minute slot grid.
func WithSlotStep(step time.Duration) EngineOption {
	return func(e *Engine) {
		if step > 0 {
			e.step = step
		}
	}
}

// WithClock injects the time source, for tests.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

func NewEngine(hosts HostRepository, meetings MeetingTypeRepository, rules AvailabilityRepository,
	bookings BusyIntervalReader, busy BusyTimeProvider, logger *slog.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		hosts:    hosts,
		meetings: meetings,
		rules:    rules,
		bookings: bookings,
		busy:     busy,
		logger:   logger,
		step:     DefaultSlotStep,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// GenerateSlots returns every bookable start instant for the meeting type in
// [from, to), ascending and de-duplicated. A slot must fit entirely inside a
// weekly window, respect the advance-notice floor, and overlap no confirmed
// booking or external busy block.
func (e *Engine) GenerateSlots(ctx context.Context, hostID, meetingTypeID int64, from, to time.Time) ([]model.CandidateSlot, error) {
	if !from.Before(to) {
		return nil, model.ErrRangeInvalid
	}

	host, err := e.hosts.GetHost(ctx, hostID)
	if err != nil {
		return nil, err
	}
	mt, err := e.meetings.GetMeetingType(ctx, meetingTypeID)
	if err != nil {
		return nil, err
	}
	if mt.UserID != host.ID || !mt.Active {
		return nil, model.ErrMeetingTypeNotFound
	}
	loc, err := timezone.LoadLocation(host.Timezone)
	if err != nil {
		return nil, err
	}

	rules, err := e.rules.ListActiveRules(ctx, host.ID)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return nil, nil
	}

	busy, err := e.bookings.ListConfirmedIntervals(ctx, host.ID, from, to)
	if err != nil {
		return nil, err
	}
	if e.busy != nil {
		external, err := e.busy.BusyIntervals(ctx, host, from, to)
		if err != nil {
			// Best-effort feed: a provider failure must not abort generation.
			e.logger.Warn("busy-time provider failed, continuing without external calendar",
				"host_id", host.ID, "err", err)
		} else {
			busy = append(busy, external...)
		}
	}

	minBookable := e.now().Add(time.Duration(mt.AdvanceNoticeHours) * time.Hour)
	duration := mt.Duration()

	var slots []model.CandidateSlot
	seen := make(map[int64]struct{})

	// Walk calendar dates in the host's timezone; day-of-week and window
	// boundaries are wall-clock concepts there, not in UTC.
	day := from.In(loc)
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	for ; day.Before(to); day = day.AddDate(0, 0, 1) {
		for _, r := range rules {
			if r.DayOfWeek != int(day.Weekday()) {
				continue
			}
			windowStart, err := timezone.TimeOfDayToInstant(r.StartTime, day, host.Timezone)
			if err != nil {
				return nil, err
			}
			windowEnd, err := timezone.TimeOfDayToInstant(r.EndTime, day, host.Timezone)
			if err != nil {
				return nil, err
			}
			for t := windowStart; ; t = t.Add(e.step) {
				end := t.Add(duration)
				if end.After(windowEnd) {
					break
				}
				if t.Before(from) || !t.Before(to) {
					continue
				}
				if t.Before(minBookable) {
					continue
				}
				if overlapsAny(t, end, busy) {
					continue
				}
				if _, dup := seen[t.UnixNano()]; dup {
					continue
				}
				seen[t.UnixNano()] = struct{}{}
				label := t.In(loc).Format(timezone.DisplayLayout)
				slots = append(slots, model.CandidateSlot{
					Time:         t,
					DisplayLabel: label,
					Timezone:     host.Timezone,
				})
			}
		}
	}

	sort.Slice(slots, func(i, j int) bool { return slots[i].Time.Before(slots[j].Time) })
	return slots, nil
}

func overlapsAny(start, end time.Time, busy []model.BusyInterval) bool {
	for _, b := range busy {
		if timezone.Overlap(start, end, b.Start, b.End) {
			return true
		}
	}
	return false
}
