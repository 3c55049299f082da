package useractive

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"tutor-service/internal/http-server/middleware/auth"
	"tutor-service/internal/models"
	"tutor-service/pkg/response"
)

type mockActivator struct{ mock.Mock }

func (m *mockActivator) SetUserActive(ctx context.Context, adminID, userID string, active bool) (*models.User, error) {
	args := m.Called(ctx, adminID, userID, active)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func do(h http.Handler, body string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPut, "/admin/users/u2/active", strings.NewReader(body))
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "u2")
	r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	r = r.WithContext(auth.WithUser(r.Context(), &models.User{ID: "admin-1", Role: models.RoleAdmin, IsActive: true}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestUserActive(t *testing.T) {
	m := &mockActivator{}
	m.On("SetUserActive", mock.Anything, "admin-1", "u2", false).
		Return(&models.User{ID: "u2", Role: models.RoleStudent, IsActive: false}, nil)

	w := do(New(slog.New(slog.DiscardHandler), m), `{"isActive":false}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"isActive":false`)
	m.AssertExpectations(t)
}

func TestUserActive_FlagRequired(t *testing.T) {
	m := &mockActivator{}

	w := do(New(slog.New(slog.DiscardHandler), m), `{}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "field 'isActive' is required")
	m.AssertNotCalled(t, "SetUserActive")
}

func TestUserActive_UnknownUser(t *testing.T) {
	m := &mockActivator{}
	m.On("SetUserActive", mock.Anything, "admin-1", "u2", true).Return(nil, fmt.Errorf("storage: %w", response.ErrNotFound))

	w := do(New(slog.New(slog.DiscardHandler), m), `{"isActive":true}`)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
