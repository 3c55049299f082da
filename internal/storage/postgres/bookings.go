package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"tutor-service/internal/models"
	"tutor-service/pkg/response"
)

const bookingColumns = `id, student_user_id, tutor_profile_id, subject, start_time, end_time, price, notes, status, idempotency_key, created_at, updated_at`

// CreateBooking inserts a scheduled booking. The overlap check and the insert share one transaction
// that holds a row lock on the tutor profile; the exclusion constraint backs it up.
func (s *Storage) CreateBooking(ctx context.Context, b *models.Booking) error {
	const op = "storage.postgres.CreateBooking"

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	b.ID = uuid.NewString()

	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var locked string
		if err := tx.GetContext(ctx, &locked, `SELECT id FROM tutor_profiles WHERE id = $1 FOR UPDATE`, b.TutorProfileID); err != nil {
			return err
		}

		if b.IdempotencyKey != nil {
			var seen bool
			err := tx.GetContext(ctx, &seen,
				`SELECT EXISTS (SELECT 1 FROM bookings WHERE student_user_id = $1 AND idempotency_key = $2)`,
				b.StudentUserID, *b.IdempotencyKey,
			)
			if err != nil {
				return err
			}
			if seen {
				return response.ErrAlreadyExists
			}
		}

		var clash bool
		err := tx.GetContext(ctx, &clash, `
			SELECT EXISTS (
				SELECT 1 FROM bookings
				WHERE tutor_profile_id = $1
				  AND status = 'scheduled'
				  AND start_time < $3
				  AND end_time > $2
			)`, b.TutorProfileID, b.StartTime, b.EndTime)
		if err != nil {
			return err
		}
		if clash {
			return response.ErrSlotConflict
		}

		return tx.QueryRowxContext(ctx, `
			INSERT INTO bookings (id, student_user_id, tutor_profile_id, subject, start_time, end_time, price, notes, status, idempotency_key)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING created_at, updated_at`,
			b.ID, b.StudentUserID, b.TutorProfileID, b.Subject, b.StartTime, b.EndTime,
			b.Price, b.Notes, b.Status, b.IdempotencyKey,
		).Scan(&b.CreatedAt, &b.UpdatedAt)
	})
	if err != nil {
		return wrap(op, err)
	}

	return nil
}

func (s *Storage) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	const op = "storage.postgres.GetBooking"

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var b models.Booking
	if err := s.db.GetContext(ctx, &b, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id); err != nil {
		return nil, wrap(op, err)
	}

	return &b, nil
}

func (s *Storage) GetBookingByIdempotencyKey(ctx context.Context, studentUserID, key string) (*models.Booking, error) {
	const op = "storage.postgres.GetBookingByIdempotencyKey"

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var b models.Booking
	err := s.db.GetContext(ctx, &b,
		`SELECT `+bookingColumns+` FROM bookings WHERE student_user_id = $1 AND idempotency_key = $2`,
		studentUserID, key,
	)
	if err != nil {
		return nil, wrap(op, err)
	}

	return &b, nil
}

// ListBookings returns bookings matching every set filter field, ordered by start time.
// From and To select bookings overlapping [From, To).
func (s *Storage) ListBookings(ctx context.Context, f models.BookingFilter) ([]*models.Booking, error) {
	const op = "storage.postgres.ListBookings"

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var conds []string
	var args []any

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.StudentUserID != nil {
		conds = append(conds, `student_user_id = `+arg(*f.StudentUserID))
	}
	if f.TutorProfileID != nil {
		conds = append(conds, `tutor_profile_id = `+arg(*f.TutorProfileID))
	}
	if f.Status != nil {
		conds = append(conds, `status = `+arg(*f.Status))
	}
	if f.From != nil {
		conds = append(conds, `end_time > `+arg(*f.From))
	}
	if f.To != nil {
		conds = append(conds, `start_time < `+arg(*f.To))
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY start_time`

	bookings := []*models.Booking{}
	if err := s.db.SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, wrap(op, err)
	}

	return bookings, nil
}

// UpdateBookingStatus transitions a booking only when its current status is from.
func (s *Storage) UpdateBookingStatus(ctx context.Context, id string, from, to models.BookingStatus, at time.Time) error {
	const op = "storage.postgres.UpdateBookingStatus"

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx,
		`UPDATE bookings SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`,
		id, from, to, at,
	)
	if err != nil {
		return wrap(op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return wrap(op, err)
	}
	if n == 0 {
		if _, err := s.GetBooking(ctx, id); err != nil {
			return wrap(op, err)
		}
		return wrap(op, response.ErrInvalidStateTransition)
	}

	return nil
}

func (s *Storage) HasCompletedBooking(ctx context.Context, studentUserID, tutorProfileID string) (bool, error) {
	const op = "storage.postgres.HasCompletedBooking"

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var ok bool
	err := s.db.GetContext(ctx, &ok, `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE student_user_id = $1 AND tutor_profile_id = $2 AND status = 'completed'
		)`, studentUserID, tutorProfileID)
	if err != nil {
		return false, wrap(op, err)
	}

	return ok, nil
}
