package postgres

import (
	"context"

	"tutor-service/internal/models"
)

func (s *Storage) GetStats(ctx context.Context) (*models.Stats, error) {
	const op = "storage.postgres.GetStats"

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var st models.Stats
	err := s.db.GetContext(ctx, &st, `
		SELECT
			(SELECT COUNT(*) FROM users) AS total_users,
			(SELECT COUNT(*) FROM users WHERE role = 'tutor') AS total_tutors,
			(SELECT COUNT(*) FROM users WHERE role = 'student') AS total_students,
			(SELECT COUNT(*) FROM tutor_profiles WHERE verification_state = 'pending') AS pending_verifications,
			(SELECT COUNT(*) FROM bookings WHERE status = 'scheduled') AS scheduled_sessions,
			(SELECT COUNT(*) FROM bookings WHERE status = 'completed') AS completed_sessions,
			(SELECT COALESCE(SUM(price), 0) FROM bookings WHERE status = 'completed') AS total_earnings`)
	if err != nil {
		return nil, wrap(op, err)
	}

	return &st, nil
}
