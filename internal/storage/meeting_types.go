package storage

import (
	"context"

	"meetsched-service/internal/model"
)

const meetingTypeColumns = `id, user_id, name, COALESCE(description, ''), duration_minutes,
	advance_notice_hours, daily_limit, location_type, COALESCE(location_details, ''), active, created_at, updated_at`

func scanMeetingType(row interface{ Scan(...any) error }) (*model.MeetingType, error) {
	var mt model.MeetingType
	err := row.Scan(&mt.ID, &mt.UserID, &mt.Name, &mt.Description, &mt.DurationMinutes,
		&mt.AdvanceNoticeHours, &mt.DailyLimit, &mt.LocationType, &mt.LocationDetails,
		&mt.Active, &mt.CreatedAt, &mt.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &mt, nil
}

func (s *Store) GetMeetingType(ctx context.Context, id int64) (*model.MeetingType, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+meetingTypeColumns+` FROM meeting_types WHERE id=$1`, id)
	mt, err := scanMeetingType(row)
	if isNoRows(err) {
		return nil, model.ErrMeetingTypeNotFound
	}
	return mt, err
}

func (s *Store) ListMeetingTypes(ctx context.Context, hostID int64) ([]model.MeetingType, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+meetingTypeColumns+` FROM meeting_types WHERE user_id=$1 ORDER BY id`, hostID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.MeetingType
	for rows.Next() {
		mt, err := scanMeetingType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *mt)
	}
	return out, rows.Err()
}

func (s *Store) CreateMeetingType(ctx context.Context, mt *model.MeetingType) error {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO meeting_types
			(user_id, name, description, duration_minutes, advance_notice_hours,
			 daily_limit, location_type, location_details, active)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, NULLIF($8, ''), $9)
		RETURNING id, created_at, updated_at`,
		mt.UserID, mt.Name, mt.Description, mt.DurationMinutes, mt.AdvanceNoticeHours,
		mt.DailyLimit, mt.LocationType, mt.LocationDetails, mt.Active)
	return row.Scan(&mt.ID, &mt.CreatedAt, &mt.UpdatedAt)
}

// UpdateMeetingType rewrites the mutable constraints; the identity (id,
// owner) is immutable.
func (s *Store) UpdateMeetingType(ctx context.Context, mt *model.MeetingType) error {
	row := s.pool.QueryRow(ctx, `
		UPDATE meeting_types
		SET name=$3, description=NULLIF($4, ''), duration_minutes=$5, advance_notice_hours=$6,
		    daily_limit=$7, location_type=$8, location_details=NULLIF($9, ''), active=$10, updated_at=now()
		WHERE id=$1 AND user_id=$2
		RETURNING updated_at`,
		mt.ID, mt.UserID, mt.Name, mt.Description, mt.DurationMinutes, mt.AdvanceNoticeHours,
		mt.DailyLimit, mt.LocationType, mt.LocationDetails, mt.Active)
	err := row.Scan(&mt.UpdatedAt)
	if isNoRows(err) {
		return model.ErrMeetingTypeNotFound
	}
	return err
}

// DeleteMeetingType hard-deletes the meeting type; its bookings go with it
// via the FK cascade.
func (s *Store) DeleteMeetingType(ctx context.Context, hostID, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM meeting_types WHERE id=$1 AND user_id=$2`, id, hostID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrMeetingTypeNotFound
	}
	return nil
}
