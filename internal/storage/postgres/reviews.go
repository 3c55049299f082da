package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"tutor-service/internal/models"
)

// CreateReview stores the review and refreshes the tutor's average rating in the same transaction.
func (s *Storage) CreateReview(ctx context.Context, r *models.Review) error {
	const op = "storage.postgres.CreateReview"

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	r.ID = uuid.NewString()

	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.QueryRowxContext(ctx, `
			INSERT INTO reviews (id, tutor_profile_id, author_user_id, author_name, rating, comment)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING created_at`,
			r.ID, r.TutorProfileID, r.AuthorUserID, r.AuthorName, r.Rating, r.Comment,
		).Scan(&r.CreatedAt)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE tutor_profiles
			SET rating = (SELECT ROUND(AVG(rating)::numeric, 2) FROM reviews WHERE tutor_profile_id = $1)
			WHERE id = $1`, r.TutorProfileID)
		return err
	})
	if err != nil {
		return wrap(op, err)
	}

	return nil
}
