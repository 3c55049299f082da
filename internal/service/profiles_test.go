package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tutor-service/internal/events"
	"tutor-service/internal/models"
	"tutor-service/pkg/response"
)

func TestSubmitProfile_StateTransitions(t *testing.T) {
	f := newFixture(t)
	tutorUser := f.user(t, models.RoleTutor)
	admin := f.user(t, models.RoleAdmin)
	ctx := context.Background()

	p, err := f.svc.SubmitProfile(ctx, tutorUser.ID, validProfile())
	require.NoError(t, err)
	assert.Equal(t, models.StatePending, p.VerificationState)
	assert.True(t, p.ProfileCompleted)
	require.NotNil(t, p.SubmittedAt)

	// Resubmitting while pending keeps it pending.
	p, err = f.svc.SubmitProfile(ctx, tutorUser.ID, validProfile())
	require.NoError(t, err)
	assert.Equal(t, models.StatePending, p.VerificationState)

	_, err = f.svc.VerifyTutor(ctx, p.ID, ActionApprove, admin.ID, "")
	require.NoError(t, err)

	// Rate changes keep the verification.
	data := validProfile()
	data.HourlyRate = decimal.NewFromInt(45)
	p, err = f.svc.SubmitProfile(ctx, tutorUser.ID, data)
	require.NoError(t, err)
	assert.Equal(t, models.StateVerified, p.VerificationState)
	assert.True(t, p.HourlyRate.Equal(decimal.NewFromInt(45)))

	// New subjects need another review.
	data.Subjects = append(data.Subjects, models.Subject{Name: "Chemistry", Level: models.LevelBeginner})
	p, err = f.svc.SubmitProfile(ctx, tutorUser.ID, data)
	require.NoError(t, err)
	assert.Equal(t, models.StatePending, p.VerificationState)
	assert.Nil(t, p.VerifiedAt)

	_, err = f.svc.VerifyTutor(ctx, p.ID, ActionReject, admin.ID, "diploma unreadable")
	require.NoError(t, err)

	p, err = f.svc.SubmitProfile(ctx, tutorUser.ID, data)
	require.NoError(t, err)
	assert.Equal(t, models.StatePending, p.VerificationState)
	assert.Empty(t, p.RejectionReason)

	assert.Equal(t, []events.Type{
		events.TutorSubmitted,
		events.TutorVerified,
		events.TutorSubmitted,
		events.TutorRejected,
		events.TutorSubmitted,
	}, f.pub.types())
}

func TestSubmitProfile_Validation(t *testing.T) {
	f := newFixture(t)
	tutorUser := f.user(t, models.RoleTutor)
	student := f.user(t, models.RoleStudent)
	ctx := context.Background()

	data := validProfile()
	data.Subjects = nil
	data.HourlyRate = decimal.NewFromInt(2)
	data.TeachingMethods = models.TeachingMethods{}
	data.Availability = []models.DayAvailability{{Day: "Monday", Slots: []models.TimeRange{{Start: "10:00", End: "09:00"}}}}

	_, err := f.svc.SubmitProfile(ctx, tutorUser.ID, data)
	require.ErrorIs(t, err, response.ErrValidation)

	var verr *response.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Fields, 4)

	_, err = f.svc.SubmitProfile(ctx, student.ID, validProfile())
	assert.ErrorIs(t, err, response.ErrForbidden)
}

func TestUpdateAvailability_KeepsState(t *testing.T) {
	f := newFixture(t)
	tutorUser, tutor := f.tutor(t)
	ctx := context.Background()

	avail := []models.DayAvailability{
		{Day: "Wednesday", Slots: []models.TimeRange{{Start: "08:00", End: "10:00"}}},
	}
	p, err := f.svc.UpdateAvailability(ctx, tutorUser.ID, avail)
	require.NoError(t, err)
	assert.Equal(t, avail, p.Availability)

	stored, err := f.store.GetTutorProfile(ctx, tutor.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateVerified, stored.VerificationState)
	assert.Equal(t, avail, stored.Availability)

	_, err = f.svc.UpdateAvailability(ctx, tutorUser.ID, []models.DayAvailability{{Day: "Someday"}})
	assert.ErrorIs(t, err, response.ErrValidation)
}

func TestGetTutor_Visibility(t *testing.T) {
	f := newFixture(t)
	_, verified := f.tutor(t)
	hiddenOwner := f.user(t, models.RoleTutor)
	admin := f.user(t, models.RoleAdmin)
	student := f.user(t, models.RoleStudent)
	ctx := context.Background()

	hidden, err := f.store.GetTutorProfileByOwner(ctx, hiddenOwner.ID)
	require.NoError(t, err)

	got, err := f.svc.GetTutor(ctx, verified.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "Test", got.OwnerFirstName)

	_, err = f.svc.GetTutor(ctx, hidden.ID, "")
	assert.ErrorIs(t, err, response.ErrNotFound)

	_, err = f.svc.GetTutor(ctx, hidden.ID, student.ID)
	assert.ErrorIs(t, err, response.ErrNotFound)

	_, err = f.svc.GetTutor(ctx, hidden.ID, hiddenOwner.ID)
	assert.NoError(t, err)

	_, err = f.svc.GetTutor(ctx, hidden.ID, admin.ID)
	assert.NoError(t, err)
}

func TestSearchTutors(t *testing.T) {
	f := newFixture(t)
	_, maths := f.tutor(t)
	f.user(t, models.RoleTutor)
	ctx := context.Background()

	got, err := f.svc.SearchTutors(ctx, models.TutorFilter{Subject: "math"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, maths.ID, got[0].ID)

	minRate := decimal.NewFromInt(50)
	got, err = f.svc.SearchTutors(ctx, models.TutorFilter{MinRate: &minRate})
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = f.svc.SearchTutors(ctx, models.TutorFilter{TeachingMethod: "inPerson"})
	require.NoError(t, err)
	assert.Empty(t, got)

	days := []string{"monday"}
	got, err = f.svc.SearchTutors(ctx, models.TutorFilter{Days: days})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, []string{"monday"}, days, "caller's filter must not change")

	_, err = f.svc.SearchTutors(ctx, models.TutorFilter{TeachingMethod: "carrier-pigeon"})
	assert.ErrorIs(t, err, response.ErrValidation)

	maxRate := decimal.NewFromInt(10)
	_, err = f.svc.SearchTutors(ctx, models.TutorFilter{MinRate: &minRate, MaxRate: &maxRate})
	assert.ErrorIs(t, err, response.ErrValidation)
}

func TestSearchTutors_CacheInvalidatedOnVerification(t *testing.T) {
	f := newFixture(t)
	f.tutor(t)
	tutorUser := f.user(t, models.RoleTutor)
	admin := f.user(t, models.RoleAdmin)
	ctx := context.Background()

	got, err := f.svc.SearchTutors(ctx, models.TutorFilter{})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	p, err := f.svc.SubmitProfile(ctx, tutorUser.ID, validProfile())
	require.NoError(t, err)
	_, err = f.svc.VerifyTutor(ctx, p.ID, ActionApprove, admin.ID, "")
	require.NoError(t, err)

	got, err = f.svc.SearchTutors(ctx, models.TutorFilter{})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestAddReview(t *testing.T) {
	f := newFixture(t)
	tutorUser, tutor := f.tutor(t)
	student := f.user(t, models.RoleStudent)
	stranger := f.user(t, models.RoleStudent)
	ctx := context.Background()

	b, _, err := f.svc.CreateBooking(ctx, bookingReq(tutor.ID, student.ID, monday(10, 0), 60))
	require.NoError(t, err)

	_, err = f.svc.AddReview(ctx, tutor.ID, student.ID, 5, "great")
	assert.ErrorIs(t, err, response.ErrForbidden, "no completed session yet")

	f.advance(23 * time.Hour)
	_, err = f.svc.CompleteBooking(ctx, b.ID, tutorUser.ID)
	require.NoError(t, err)

	_, err = f.svc.AddReview(ctx, tutor.ID, student.ID, 6, "")
	assert.ErrorIs(t, err, response.ErrValidation)

	r, err := f.svc.AddReview(ctx, tutor.ID, student.ID, 4, " clear explanations ")
	require.NoError(t, err)
	assert.Equal(t, "clear explanations", r.Comment)
	assert.Equal(t, "Test student", r.AuthorName)

	_, err = f.svc.AddReview(ctx, tutor.ID, student.ID, 5, "again")
	assert.ErrorIs(t, err, response.ErrAlreadyExists)

	_, err = f.svc.AddReview(ctx, tutor.ID, stranger.ID, 5, "")
	assert.ErrorIs(t, err, response.ErrForbidden)

	stored, err := f.store.GetTutorProfile(ctx, tutor.ID)
	require.NoError(t, err)
	assert.Equal(t, "4", stored.Rating.String())
}

func TestGetOwnProfile(t *testing.T) {
	f := newFixture(t)
	tutorUser, tutor := f.tutor(t)
	student := f.user(t, models.RoleStudent)
	ctx := context.Background()

	p, err := f.svc.GetOwnProfile(ctx, tutorUser.ID)
	require.NoError(t, err)
	assert.Equal(t, tutor.ID, p.ID)

	_, err = f.svc.GetOwnProfile(ctx, student.ID)
	assert.ErrorIs(t, err, response.ErrNotFound)
}
