package storage

import (
	"context"
	"time"

	"meetsched-service/internal/model"
)

const bookingColumns = `id, meeting_type_id, user_id, invitee_name, invitee_email,
	COALESCE(invitee_phone, ''), scheduled_time, status, COALESCE(cancellation_reason, ''),
	COALESCE(calendar_event_id, ''), created_at, updated_at`

func scanBooking(row interface{ Scan(...any) error }) (*model.Booking, error) {
	var b model.Booking
	err := row.Scan(&b.ID, &b.MeetingTypeID, &b.UserID, &b.InviteeName, &b.InviteeEmail,
		&b.InviteePhone, &b.ScheduledTime, &b.Status, &b.CancellationReason,
		&b.CalendarEventID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ListConfirmedIntervals returns the busy blocks implied by confirmed
// bookings starting in [from, to). Each interval's length comes from the
// booking's meeting type's current duration (the live join).
func (s *Store) ListConfirmedIntervals(ctx context.Context, hostID int64, from, to time.Time) ([]model.BusyInterval, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT b.scheduled_time,
		       b.scheduled_time + make_interval(mins => mt.duration_minutes)
		FROM bookings b
		JOIN meeting_types mt ON mt.id = b.meeting_type_id
		WHERE b.user_id = $1
		  AND b.status = 'confirmed'
		  AND b.scheduled_time >= $2
		  AND b.scheduled_time < $3`,
		hostID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.BusyInterval
	for rows.Next() {
		var iv model.BusyInterval
		if err := rows.Scan(&iv.Start, &iv.End); err != nil {
			return nil, err
		}
		out = append(out, iv)
	}
	return out, rows.Err()
}

func (s *Store) CountConfirmedBetween(ctx context.Context, hostID int64, from, to time.Time) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM bookings
		WHERE user_id = $1 AND status = 'confirmed'
		  AND scheduled_time >= $2 AND scheduled_time < $3`,
		hostID, from, to).Scan(&n)
	return n, err
}

// InsertConfirmed is the admission critical section. The host row lock
// serializes concurrent check+insert pairs per host; the overlap query then
// sees every committed booking, so two racing requests cannot both pass. The
// partial unique index on (user_id, scheduled_time) backs this up at the
// storage level, and either failure surfaces as ErrSlotUnavailable.
func (s *Store) InsertConfirmed(ctx context.Context, b *model.Booking, duration time.Duration) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var hostExists int64
	if err := tx.QueryRow(ctx, `SELECT id FROM users WHERE id=$1 FOR UPDATE`, b.UserID).Scan(&hostExists); err != nil {
		if isNoRows(err) {
			return model.ErrHostNotFound
		}
		return err
	}

	end := b.ScheduledTime.Add(duration)
	var conflict string
	err = tx.QueryRow(ctx, `
		SELECT b.id FROM bookings b
		JOIN meeting_types mt ON mt.id = b.meeting_type_id
		WHERE b.user_id = $1
		  AND b.status = 'confirmed'
		  AND b.scheduled_time < $3
		  AND b.scheduled_time + make_interval(mins => mt.duration_minutes) > $2
		LIMIT 1`,
		b.UserID, b.ScheduledTime, end).Scan(&conflict)
	if err == nil {
		return model.ErrSlotUnavailable
	}
	if !isNoRows(err) {
		return err
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO bookings
			(id, meeting_type_id, user_id, invitee_name, invitee_email, invitee_phone, scheduled_time, status)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8)
		RETURNING created_at, updated_at`,
		b.ID, b.MeetingTypeID, b.UserID, b.InviteeName, b.InviteeEmail, b.InviteePhone,
		b.ScheduledTime, b.Status).Scan(&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrSlotUnavailable
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return model.ErrSlotUnavailable
		}
		return err
	}
	return nil
}

func (s *Store) GetBooking(ctx context.Context, id string) (*model.Booking, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id=$1`, id)
	b, err := scanBooking(row)
	if isNoRows(err) {
		return nil, model.ErrBookingNotFound
	}
	return b, err
}

// CancelBooking performs the one-way confirmed -> cancelled transition. The
// status guard makes the losing side of a cancel race see AlreadyCancelled.
func (s *Store) CancelBooking(ctx context.Context, id, reason string) (*model.Booking, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE bookings
		SET status='cancelled', cancellation_reason=NULLIF($2, ''), updated_at=now()
		WHERE id=$1 AND status <> 'cancelled'
		RETURNING `+bookingColumns, id, reason)
	b, err := scanBooking(row)
	if isNoRows(err) {
		if _, getErr := s.GetBooking(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, model.ErrAlreadyCancelled
	}
	return b, err
}

func (s *Store) AttachCalendarEvent(ctx context.Context, id, eventRef string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE bookings SET calendar_event_id=$2, updated_at=now() WHERE id=$1`, id, eventRef)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrBookingNotFound
	}
	return nil
}

// ListBookings returns the host's bookings, optionally restricted to
// scheduled times in [from, to).
func (s *Store) ListBookings(ctx context.Context, hostID int64, from, to time.Time, filtered bool) ([]model.Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings WHERE user_id=$1`
	args := []any{hostID}
	if filtered {
		q += ` AND scheduled_time >= $2 AND scheduled_time < $3`
		args = append(args, from, to)
	}
	q += ` ORDER BY scheduled_time`

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// ReminderItem joins a due booking with its host and meeting type for the
// reminder sweep.
type ReminderItem struct {
	Booking     model.Booking
	Host        model.Host
	MeetingType model.MeetingType
}

// ListConfirmedStartingBetween returns confirmed bookings across all hosts
// whose scheduled time falls in [from, to).
func (s *Store) ListConfirmedStartingBetween(ctx context.Context, from, to time.Time) ([]ReminderItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT b.id, b.meeting_type_id, b.user_id, b.invitee_name, b.invitee_email,
		       COALESCE(b.invitee_phone, ''), b.scheduled_time, b.status,
		       mt.id, mt.user_id, mt.name, COALESCE(mt.description, ''), mt.duration_minutes,
		       mt.advance_notice_hours, mt.daily_limit, mt.location_type, COALESCE(mt.location_details, ''), mt.active,
		       u.id, u.email, u.username, u.timezone
		FROM bookings b
		JOIN meeting_types mt ON mt.id = b.meeting_type_id
		JOIN users u ON u.id = b.user_id
		WHERE b.status = 'confirmed'
		  AND b.scheduled_time >= $1
		  AND b.scheduled_time < $2
		ORDER BY b.scheduled_time`,
		from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ReminderItem
	for rows.Next() {
		var it ReminderItem
		if err := rows.Scan(
			&it.Booking.ID, &it.Booking.MeetingTypeID, &it.Booking.UserID, &it.Booking.InviteeName,
			&it.Booking.InviteeEmail, &it.Booking.InviteePhone, &it.Booking.ScheduledTime, &it.Booking.Status,
			&it.MeetingType.ID, &it.MeetingType.UserID, &it.MeetingType.Name, &it.MeetingType.Description,
			&it.MeetingType.DurationMinutes, &it.MeetingType.AdvanceNoticeHours, &it.MeetingType.DailyLimit,
			&it.MeetingType.LocationType, &it.MeetingType.LocationDetails, &it.MeetingType.Active,
			&it.Host.ID, &it.Host.Email, &it.Host.Username, &it.Host.Timezone,
		); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}
