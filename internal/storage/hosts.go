package storage

import (
	"context"

	"meetsched-service/internal/model"
)

const hostColumns = `id, email, username, timezone, calendar_connected,
	COALESCE(calendar_access_token, ''), COALESCE(calendar_refresh_token, ''), created_at, updated_at`

func scanHost(row interface{ Scan(...any) error }) (*model.Host, error) {
	var h model.Host
	err := row.Scan(&h.ID, &h.Email, &h.Username, &h.Timezone, &h.CalendarConnected,
		&h.CalendarAccessToken, &h.CalendarRefreshToken, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (s *Store) GetHost(ctx context.Context, id int64) (*model.Host, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+hostColumns+` FROM users WHERE id=$1`, id)
	h, err := scanHost(row)
	if isNoRows(err) {
		return nil, model.ErrHostNotFound
	}
	return h, err
}

func (s *Store) GetHostByUsername(ctx context.Context, username string) (*model.Host, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+hostColumns+` FROM users WHERE username=$1`, username)
	h, err := scanHost(row)
	if isNoRows(err) {
		return nil, model.ErrHostNotFound
	}
	return h, err
}

// SaveCalendarTokens stores the Google OAuth tokens and marks the calendar
// connected. An empty refresh token keeps any previously stored one.
func (s *Store) SaveCalendarTokens(ctx context.Context, hostID int64, accessToken, refreshToken string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users
		SET calendar_connected = TRUE,
		    calendar_access_token = $2,
		    calendar_refresh_token = COALESCE(NULLIF($3, ''), calendar_refresh_token),
		    updated_at = now()
		WHERE id = $1`,
		hostID, accessToken, refreshToken)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrHostNotFound
	}
	return nil
}
