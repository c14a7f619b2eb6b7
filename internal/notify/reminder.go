package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"meetsched-service/internal/storage"
)

// ReminderSource lists confirmed bookings starting inside a window, joined
// with the host and meeting type needed to compose the email.
type ReminderSource interface {
	ListConfirmedStartingBetween(ctx context.Context, from, to time.Time) ([]storage.ReminderItem, error)
}

// reminderLead is one sweep window: bookings starting in [now+offset,
// now+offset+span) get a "starts in about <label>" email.
type reminderLead struct {
	label  string
	offset time.Duration
	span   time.Duration
}

var leads = []reminderLead{
	{label: "24 hours", offset: 24 * time.Hour, span: time.Hour},
	{label: "1 hour", offset: time.Hour, span: time.Hour},
}

// ReminderScheduler periodically sweeps for upcoming confirmed bookings and
// sends reminder email. Delivery is best-effort; a failed send is retried on
// the next sweep because the sent-set only records successes.
type ReminderScheduler struct {
	source ReminderSource
	mailer *Mailer
	logger *slog.Logger
	cron   *cron.Cron

	mu   sync.Mutex
	sent map[string]time.Time
}

func NewReminderScheduler(source ReminderSource, mailer *Mailer, logger *slog.Logger) *ReminderScheduler {
	return &ReminderScheduler{
		source: source,
		mailer: mailer,
		logger: logger,
		cron:   cron.New(),
		sent:   make(map[string]time.Time),
	}
}

// Start begins the sweep loop. No-op when no mailer is configured.
func (r *ReminderScheduler) Start() error {
	if r.mailer == nil {
		r.logger.Info("reminder scheduler disabled, no mail sender configured")
		return nil
	}
	if _, err := r.cron.AddFunc("@every 10m", func() { r.Sweep(context.Background()) }); err != nil {
		return err
	}
	r.cron.Start()
	return nil
}

func (r *ReminderScheduler) Stop() {
	if r.cron != nil {
		<-r.cron.Stop().Done()
	}
}

// Sweep runs one pass over all lead windows.
func (r *ReminderScheduler) Sweep(ctx context.Context) {
	now := time.Now()
	for _, lead := range leads {
		r.sweepLead(ctx, now, lead)
	}
	r.prune(now)
}

func (r *ReminderScheduler) sweepLead(ctx context.Context, now time.Time, lead reminderLead) {
	from := now.Add(lead.offset)
	items, err := r.source.ListConfirmedStartingBetween(ctx, from, from.Add(lead.span))
	if err != nil {
		r.logger.Error("reminder sweep query failed", "lead", lead.label, "err", err)
		return
	}
	for _, it := range items {
		key := it.Booking.ID + "/" + lead.label
		if r.alreadySent(key) {
			continue
		}
		if err := r.mailer.SendReminder(ctx, &it.Booking, &it.Host, &it.MeetingType, lead.label); err != nil {
			r.logger.Warn("reminder email failed",
				"booking_id", it.Booking.ID, "lead", lead.label, "err", err)
			continue
		}
		r.markSent(key, it.Booking.ScheduledTime)
	}
}

func (r *ReminderScheduler) alreadySent(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sent[key]
	return ok
}

func (r *ReminderScheduler) markSent(key string, startsAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent[key] = startsAt
}

// prune drops sent-set entries for bookings that have already started, so
// the map stays bounded by the upcoming horizon.
func (r *ReminderScheduler) prune(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, startsAt := range r.sent {
		if startsAt.Before(now) {
			delete(r.sent, key)
		}
	}
}
