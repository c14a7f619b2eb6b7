package storage

import (
	"context"

	"meetsched-service/internal/model"
)

func (s *Store) ListActiveRules(ctx context.Context, hostID int64) ([]model.AvailabilityRule, error) {
	return s.listRules(ctx, hostID, true)
}

func (s *Store) ListRules(ctx context.Context, hostID int64) ([]model.AvailabilityRule, error) {
	return s.listRules(ctx, hostID, false)
}

func (s *Store) listRules(ctx context.Context, hostID int64, activeOnly bool) ([]model.AvailabilityRule, error) {
	q := `SELECT id, user_id, day_of_week, start_time, end_time, active, created_at
	      FROM availability_rules WHERE user_id=$1`
	if activeOnly {
		q += ` AND active`
	}
	q += ` ORDER BY day_of_week, start_time`

	rows, err := s.pool.Query(ctx, q, hostID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AvailabilityRule
	for rows.Next() {
		var r model.AvailabilityRule
		if err := rows.Scan(&r.ID, &r.UserID, &r.DayOfWeek, &r.StartTime, &r.EndTime, &r.Active, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ReplaceRules swaps the host's weekly schedule wholesale: delete and
// re-insert in one transaction. Callers validate each rule first.
func (s *Store) ReplaceRules(ctx context.Context, hostID int64, rules []model.AvailabilityRule) ([]model.AvailabilityRule, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM availability_rules WHERE user_id=$1`, hostID); err != nil {
		return nil, err
	}

	out := make([]model.AvailabilityRule, 0, len(rules))
	for _, r := range rules {
		r.UserID = hostID
		row := tx.QueryRow(ctx, `
			INSERT INTO availability_rules (user_id, day_of_week, start_time, end_time, active)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, created_at`,
			hostID, r.DayOfWeek, r.StartTime, r.EndTime, r.Active)
		if err := row.Scan(&r.ID, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}
