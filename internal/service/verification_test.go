package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tutor-service/internal/models"
	"tutor-service/pkg/response"
)

func TestVerifyTutor(t *testing.T) {
	f := newFixture(t)
	tutorUser := f.user(t, models.RoleTutor)
	admin := f.user(t, models.RoleAdmin)
	student := f.user(t, models.RoleStudent)
	ctx := context.Background()

	p, err := f.store.GetTutorProfileByOwner(ctx, tutorUser.ID)
	require.NoError(t, err)

	_, err = f.svc.VerifyTutor(ctx, p.ID, ActionApprove, admin.ID, "")
	assert.ErrorIs(t, err, response.ErrInvalidStateTransition, "incomplete profiles cannot be approved")

	p, err = f.svc.SubmitProfile(ctx, tutorUser.ID, validProfile())
	require.NoError(t, err)

	_, err = f.svc.VerifyTutor(ctx, p.ID, ActionApprove, student.ID, "")
	assert.ErrorIs(t, err, response.ErrForbidden)

	_, err = f.svc.VerifyTutor(ctx, p.ID, "escalate", admin.ID, "")
	assert.ErrorIs(t, err, response.ErrInvalidAction)

	_, err = f.svc.VerifyTutor(ctx, "missing", ActionApprove, admin.ID, "")
	assert.ErrorIs(t, err, response.ErrNotFound)

	verified, err := f.svc.VerifyTutor(ctx, p.ID, ActionApprove, admin.ID, "ignored")
	require.NoError(t, err)
	assert.Equal(t, models.StateVerified, verified.VerificationState)
	assert.Empty(t, verified.RejectionReason)
	assert.NotNil(t, verified.VerifiedAt)

	_, err = f.svc.VerifyTutor(ctx, p.ID, ActionReject, admin.ID, "too late")
	assert.ErrorIs(t, err, response.ErrInvalidStateTransition)
}

func TestVerifyTutor_Reject(t *testing.T) {
	f := newFixture(t)
	tutorUser := f.user(t, models.RoleTutor)
	admin := f.user(t, models.RoleAdmin)
	ctx := context.Background()

	p, err := f.svc.SubmitProfile(ctx, tutorUser.ID, validProfile())
	require.NoError(t, err)

	rejected, err := f.svc.VerifyTutor(ctx, p.ID, ActionReject, admin.ID, " missing diploma ")
	require.NoError(t, err)
	assert.Equal(t, models.StateRejected, rejected.VerificationState)
	assert.Equal(t, "missing diploma", rejected.RejectionReason)

	stored, err := f.store.GetTutorProfile(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateRejected, stored.VerificationState)
	assert.False(t, stored.Searchable())
}

func TestListPendingTutorsAndStats(t *testing.T) {
	f := newFixture(t)
	_, verified := f.tutor(t)
	pendingUser := f.user(t, models.RoleTutor)
	admin := f.user(t, models.RoleAdmin)
	student := f.user(t, models.RoleStudent)
	ctx := context.Background()

	pending, err := f.svc.SubmitProfile(ctx, pendingUser.ID, validProfile())
	require.NoError(t, err)

	list, err := f.svc.ListPendingTutors(ctx, admin.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, pending.ID, list[0].ID)

	_, err = f.svc.ListPendingTutors(ctx, student.ID)
	assert.ErrorIs(t, err, response.ErrForbidden)

	_, _, err = f.svc.CreateBooking(ctx, bookingReq(verified.ID, student.ID, monday(10, 0), 90))
	require.NoError(t, err)

	st, err := f.svc.Stats(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, st.TotalUsers)
	assert.Equal(t, 2, st.TotalTutors)
	assert.Equal(t, 1, st.TotalStudents)
	assert.Equal(t, 1, st.PendingVerifications)
	assert.Equal(t, 1, st.ScheduledSessions)
	assert.Equal(t, 0, st.CompletedSessions)
	assert.True(t, st.TotalEarnings.IsZero())
}
