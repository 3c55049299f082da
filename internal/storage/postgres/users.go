package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"tutor-service/internal/models"
	"tutor-service/pkg/response"
)

const userColumns = `id, firebase_uid, email, first_name, last_name, phone, role, is_active, last_login, created_at`

// CreateUser inserts the user and, for tutors, its empty profile in one transaction.
func (s *Storage) CreateUser(ctx context.Context, user *models.User, profile *models.TutorProfile) error {
	const op = "storage.postgres.CreateUser"

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	user.ID = uuid.NewString()

	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.QueryRowxContext(ctx, `
			INSERT INTO users (id, firebase_uid, email, first_name, last_name, phone, role, is_active, last_login)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING created_at`,
			user.ID, user.FirebaseUID, user.Email, user.FirstName, user.LastName,
			user.Phone, user.Role, user.IsActive, user.LastLogin,
		).Scan(&user.CreatedAt)
		if err != nil {
			return err
		}

		if profile == nil {
			return nil
		}

		profile.ID = uuid.NewString()
		profile.OwnerUserID = user.ID
		profile.OwnerFirstName = user.FirstName
		profile.OwnerLastName = user.LastName
		profile.OwnerActive = user.IsActive

		return tx.QueryRowxContext(ctx, `
			INSERT INTO tutor_profiles (id, user_id, verification_state)
			VALUES ($1, $2, $3)
			RETURNING created_at, updated_at`,
			profile.ID, profile.OwnerUserID, profile.VerificationState,
		).Scan(&profile.CreatedAt, &profile.UpdatedAt)
	})
	if err != nil {
		return wrap(op, err)
	}

	return nil
}

func (s *Storage) GetUser(ctx context.Context, id string) (*models.User, error) {
	const op = "storage.postgres.GetUser"

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var user models.User
	if err := s.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id = $1`, id); err != nil {
		return nil, wrap(op, err)
	}

	return &user, nil
}

func (s *Storage) GetUserByFirebaseUID(ctx context.Context, uid string) (*models.User, error) {
	const op = "storage.postgres.GetUserByFirebaseUID"

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var user models.User
	if err := s.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE firebase_uid = $1`, uid); err != nil {
		return nil, wrap(op, err)
	}

	return &user, nil
}

func (s *Storage) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	const op = "storage.postgres.TouchLastLogin"

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return s.execOne(ctx, op, `UPDATE users SET last_login = $2 WHERE id = $1`, id, at)
}

func (s *Storage) SetUserActive(ctx context.Context, id string, active bool) error {
	const op = "storage.postgres.SetUserActive"

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return s.execOne(ctx, op, `UPDATE users SET is_active = $2 WHERE id = $1`, id, active)
}

// execOne runs an update that must hit exactly one row.
func (s *Storage) execOne(ctx context.Context, op, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return wrap(op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return wrap(op, err)
	}
	if n == 0 {
		return wrap(op, response.ErrNotFound)
	}

	return nil
}
