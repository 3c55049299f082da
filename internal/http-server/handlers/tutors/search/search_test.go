package search

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tutor-service/internal/models"
)

type mockSearcher struct{ mock.Mock }

func (m *mockSearcher) SearchTutors(ctx context.Context, f models.TutorFilter) ([]*models.TutorProfile, error) {
	args := m.Called(ctx, f)
	ps, _ := args.Get(0).([]*models.TutorProfile)
	return ps, args.Error(1)
}

func TestSearch_ParsesFilter(t *testing.T) {
	m := &mockSearcher{}
	m.On("SearchTutors", mock.Anything, mock.MatchedBy(func(f models.TutorFilter) bool {
		return f.Subject == "math" &&
			f.MinRate != nil && f.MinRate.Equal(decimal.NewFromInt(10)) &&
			f.MaxRate != nil && f.MaxRate.Equal(decimal.RequireFromString("50.5")) &&
			f.TeachingMethod == "online" &&
			len(f.Days) == 2 && f.Days[0] == "Monday" && f.Days[1] == "Friday"
	})).Return([]*models.TutorProfile{{ID: "t1", OwnerFirstName: "Ada", VerificationState: models.StateVerified}}, nil)

	r := httptest.NewRequest(http.MethodGet, "/tutors?subject=math&minRate=10&maxRate=50.5&teachingMethod=online&availability=Monday,%20Friday", nil)
	w := httptest.NewRecorder()
	New(slog.New(slog.DiscardHandler), m).ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"firstName":"Ada"`)
	m.AssertExpectations(t)
}

func TestSearch_EmptyResultIsArray(t *testing.T) {
	m := &mockSearcher{}
	m.On("SearchTutors", mock.Anything, mock.Anything).Return([]*models.TutorProfile(nil), nil)

	w := httptest.NewRecorder()
	New(slog.New(slog.DiscardHandler), m).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tutors", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"tutors":[]}`, w.Body.String())
}

func TestSearch_BadRate(t *testing.T) {
	m := &mockSearcher{}

	w := httptest.NewRecorder()
	New(slog.New(slog.DiscardHandler), m).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tutors?minRate=cheap", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "minRate must be a number")
	m.AssertNotCalled(t, "SearchTutors")
}
