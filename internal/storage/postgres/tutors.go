package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"tutor-service/internal/models"
	"tutor-service/pkg/response"
)

const profileColumns = `
	tp.id, tp.user_id, u.first_name, u.last_name, u.is_active,
	tp.subjects, tp.education, tp.experience, tp.hourly_rate, tp.availability,
	tp.teaching_methods, tp.location, tp.certification_files,
	tp.profile_completed, tp.verification_state, tp.rejection_reason, tp.rating,
	tp.submitted_at, tp.verified_at, tp.created_at, tp.updated_at`

const profileFrom = ` FROM tutor_profiles tp JOIN users u ON u.id = tp.user_id`

type profileRow struct {
	ID                 string          `db:"id"`
	UserID             string          `db:"user_id"`
	FirstName          string          `db:"first_name"`
	LastName           string          `db:"last_name"`
	IsActive           bool            `db:"is_active"`
	Subjects           types.JSONText  `db:"subjects"`
	Education          types.JSONText  `db:"education"`
	Experience         types.JSONText  `db:"experience"`
	HourlyRate         decimal.Decimal `db:"hourly_rate"`
	Availability       types.JSONText  `db:"availability"`
	TeachingMethods    types.JSONText  `db:"teaching_methods"`
	Location           types.JSONText  `db:"location"`
	CertificationFiles types.JSONText  `db:"certification_files"`
	ProfileCompleted   bool            `db:"profile_completed"`
	VerificationState  string          `db:"verification_state"`
	RejectionReason    string          `db:"rejection_reason"`
	Rating             decimal.Decimal `db:"rating"`
	SubmittedAt        *time.Time      `db:"submitted_at"`
	VerifiedAt         *time.Time      `db:"verified_at"`
	CreatedAt          time.Time       `db:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at"`
}

func (r *profileRow) toModel() (*models.TutorProfile, error) {
	p := &models.TutorProfile{
		ID:                r.ID,
		OwnerUserID:       r.UserID,
		OwnerFirstName:    r.FirstName,
		OwnerLastName:     r.LastName,
		OwnerActive:       r.IsActive,
		HourlyRate:        r.HourlyRate,
		ProfileCompleted:  r.ProfileCompleted,
		VerificationState: models.VerificationState(r.VerificationState),
		RejectionReason:   r.RejectionReason,
		Rating:            r.Rating,
		SubmittedAt:       r.SubmittedAt,
		VerifiedAt:        r.VerifiedAt,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}

	fields := []struct {
		src types.JSONText
		dst any
	}{
		{r.Subjects, &p.Subjects},
		{r.Education, &p.Education},
		{r.Experience, &p.Experience},
		{r.Availability, &p.Availability},
		{r.TeachingMethods, &p.TeachingMethods},
		{r.Location, &p.Location},
		{r.CertificationFiles, &p.CertificationFiles},
	}
	for _, f := range fields {
		if len(f.src) == 0 {
			continue
		}
		if err := f.src.Unmarshal(f.dst); err != nil {
			return nil, fmt.Errorf("decode profile %s: %w", r.ID, err)
		}
	}

	return p, nil
}

func jsonText(v any) (types.JSONText, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(data) == "null" {
		return types.JSONText("[]"), nil
	}
	return types.JSONText(data), nil
}

func (s *Storage) GetTutorProfile(ctx context.Context, id string) (*models.TutorProfile, error) {
	const op = "storage.postgres.GetTutorProfile"

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	p, err := s.getProfile(ctx, `tp.id = $1`, id)
	if err != nil {
		return nil, wrap(op, err)
	}

	reviews := []models.Review{}
	err = s.db.SelectContext(ctx, &reviews, `
		SELECT id, tutor_profile_id, author_user_id, author_name, rating, comment, created_at
		FROM reviews
		WHERE tutor_profile_id = $1
		ORDER BY created_at DESC`, p.ID)
	if err != nil {
		return nil, wrap(op, err)
	}
	p.Reviews = reviews

	return p, nil
}

func (s *Storage) GetTutorProfileByOwner(ctx context.Context, userID string) (*models.TutorProfile, error) {
	const op = "storage.postgres.GetTutorProfileByOwner"

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	p, err := s.getProfile(ctx, `tp.user_id = $1`, userID)
	if err != nil {
		return nil, wrap(op, err)
	}

	return p, nil
}

func (s *Storage) getProfile(ctx context.Context, where string, arg any) (*models.TutorProfile, error) {
	var row profileRow
	if err := s.db.GetContext(ctx, &row, `SELECT `+profileColumns+profileFrom+` WHERE `+where, arg); err != nil {
		return nil, err
	}

	return row.toModel()
}

// SaveTutorProfile writes every editable field, provided the stored state still equals expected.
func (s *Storage) SaveTutorProfile(ctx context.Context, p *models.TutorProfile, expected models.VerificationState) error {
	const op = "storage.postgres.SaveTutorProfile"

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	args := []any{p.ID, expected}
	for _, v := range []any{p.Subjects, p.Education, p.Experience, p.Availability, p.TeachingMethods, p.Location, p.CertificationFiles} {
		j, err := jsonText(v)
		if err != nil {
			return fmt.Errorf("%s: encode: %w", op, err)
		}
		args = append(args, j)
	}
	args = append(args,
		p.HourlyRate, p.ProfileCompleted, p.VerificationState,
		p.RejectionReason, p.SubmittedAt, p.VerifiedAt, p.UpdatedAt,
	)

	res, err := s.db.ExecContext(ctx, `
		UPDATE tutor_profiles SET
			subjects = $3, education = $4, experience = $5, availability = $6,
			teaching_methods = $7, location = $8, certification_files = $9,
			hourly_rate = $10, profile_completed = $11, verification_state = $12,
			rejection_reason = $13, submitted_at = $14, verified_at = $15, updated_at = $16
		WHERE id = $1 AND verification_state = $2`, args...)
	if err != nil {
		return wrap(op, err)
	}

	return s.checkConditional(ctx, op, res, p.ID)
}

func (s *Storage) UpdateAvailability(ctx context.Context, id string, availability []models.DayAvailability) error {
	const op = "storage.postgres.UpdateAvailability"

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	j, err := jsonText(availability)
	if err != nil {
		return fmt.Errorf("%s: encode: %w", op, err)
	}

	return s.execOne(ctx, op, `UPDATE tutor_profiles SET availability = $2, updated_at = NOW() WHERE id = $1`, id, j)
}

// UpdateVerificationState moves a profile from one state to another atomically.
func (s *Storage) UpdateVerificationState(ctx context.Context, id string, from, to models.VerificationState, reason string, at time.Time) error {
	const op = "storage.postgres.UpdateVerificationState"

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		UPDATE tutor_profiles SET
			verification_state = $3,
			rejection_reason = $4,
			verified_at = CASE WHEN $3::text = 'verified' THEN $5::timestamptz ELSE verified_at END,
			updated_at = $5
		WHERE id = $1 AND verification_state = $2`,
		id, from, to, reason, at,
	)
	if err != nil {
		return wrap(op, err)
	}

	return s.checkConditional(ctx, op, res, id)
}

// checkConditional tells a missing profile apart from one whose state moved underneath.
func (s *Storage) checkConditional(ctx context.Context, op string, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return wrap(op, err)
	}
	if n > 0 {
		return nil
	}

	var exists bool
	if err := s.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM tutor_profiles WHERE id = $1)`, id); err != nil {
		return wrap(op, err)
	}
	if !exists {
		return wrap(op, response.ErrNotFound)
	}

	return wrap(op, response.ErrInvalidStateTransition)
}

// SearchTutors returns verified, completed profiles matching every set filter, best rated first.
func (s *Storage) SearchTutors(ctx context.Context, f models.TutorFilter) ([]*models.TutorProfile, error) {
	const op = "storage.postgres.SearchTutors"

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	conds := []string{`tp.verification_state = 'verified'`, `tp.profile_completed`, `u.is_active`}
	var args []any

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if subject := strings.TrimSpace(f.Subject); subject != "" {
		conds = append(conds, `EXISTS (SELECT 1 FROM jsonb_array_elements(tp.subjects) s WHERE s->>'name' ILIKE '%' || `+arg(escapeLike(subject))+` || '%' ESCAPE '\')`)
	}
	if f.MinRate != nil {
		conds = append(conds, `tp.hourly_rate >= `+arg(*f.MinRate))
	}
	if f.MaxRate != nil {
		conds = append(conds, `tp.hourly_rate <= `+arg(*f.MaxRate))
	}
	switch f.TeachingMethod {
	case "online":
		conds = append(conds, `(tp.teaching_methods->>'online')::boolean`)
	case "inPerson":
		conds = append(conds, `(tp.teaching_methods->>'inPerson')::boolean`)
	case "both":
		conds = append(conds, `(tp.teaching_methods->>'online')::boolean AND (tp.teaching_methods->>'inPerson')::boolean`)
	}
	if len(f.Days) > 0 {
		conds = append(conds, `EXISTS (SELECT 1 FROM jsonb_array_elements(tp.availability) a WHERE a->>'day' = ANY(`+arg(pq.Array(f.Days))+`))`)
	}

	query := `SELECT ` + profileColumns + profileFrom +
		` WHERE ` + strings.Join(conds, " AND ") +
		` ORDER BY tp.rating DESC, tp.created_at`

	profiles, err := selectProfiles(ctx, s.db, query, args...)
	if err != nil {
		return nil, wrap(op, err)
	}

	return profiles, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s match literally inside a LIKE pattern escaped with a backslash.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func (s *Storage) ListTutorsByState(ctx context.Context, state models.VerificationState) ([]*models.TutorProfile, error) {
	const op = "storage.postgres.ListTutorsByState"

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + profileColumns + profileFrom + ` WHERE tp.verification_state = $1 ORDER BY tp.submitted_at NULLS LAST, tp.created_at`

	profiles, err := selectProfiles(ctx, s.db, query, state)
	if err != nil {
		return nil, wrap(op, err)
	}

	return profiles, nil
}

func selectProfiles(ctx context.Context, q sqlx.QueryerContext, query string, args ...any) ([]*models.TutorProfile, error) {
	var rows []profileRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, args...); err != nil {
		return nil, err
	}

	out := make([]*models.TutorProfile, 0, len(rows))
	for i := range rows {
		p, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}

	return out, nil
}
