package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tutor-service/internal/identity"
	"tutor-service/internal/models"
	"tutor-service/pkg/response"
)

type mockVerifier struct{ mock.Mock }

func (m *mockVerifier) Verify(ctx context.Context, token string) (*identity.Claims, error) {
	args := m.Called(ctx, token)
	c, _ := args.Get(0).(*identity.Claims)
	return c, args.Error(1)
}

type mockResolver struct{ mock.Mock }

func (m *mockResolver) ResolveIdentity(ctx context.Context, uid string) (*models.User, error) {
	args := m.Called(ctx, uid)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func echoUser(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		require.True(t, ok)
		w.Header().Set("X-User", user.ID)
		w.WriteHeader(http.StatusNoContent)
	})
}

func do(h http.Handler, header string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	if header != "" {
		r.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestRequired(t *testing.T) {
	log := slog.New(slog.DiscardHandler)
	claims := &identity.Claims{UID: "uid-1", Email: "a@example.com"}

	cases := []struct {
		name       string
		header     string
		setup      func(v *mockVerifier, res *mockResolver)
		wantStatus int
		wantCode   string
	}{
		{
			name:       "missing header",
			setup:      func(*mockVerifier, *mockResolver) {},
			wantStatus: http.StatusUnauthorized,
			wantCode:   "UNAUTHORIZED",
		},
		{
			name:       "wrong scheme",
			header:     "Basic abc",
			setup:      func(*mockVerifier, *mockResolver) {},
			wantStatus: http.StatusUnauthorized,
			wantCode:   "UNAUTHORIZED",
		},
		{
			name:   "invalid token",
			header: "Bearer bad",
			setup: func(v *mockVerifier, _ *mockResolver) {
				v.On("Verify", mock.Anything, "bad").Return(nil, fmt.Errorf("identity: %w", response.ErrUnauthorized))
			},
			wantStatus: http.StatusUnauthorized,
			wantCode:   "UNAUTHORIZED",
		},
		{
			name:   "identity provider down",
			header: "Bearer tok",
			setup: func(v *mockVerifier, _ *mockResolver) {
				v.On("Verify", mock.Anything, "tok").Return(nil, fmt.Errorf("identity: %w", response.ErrServer))
			},
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "SERVER_UNAVAILABLE",
		},
		{
			name:   "not registered",
			header: "Bearer tok",
			setup: func(v *mockVerifier, res *mockResolver) {
				v.On("Verify", mock.Anything, "tok").Return(claims, nil)
				res.On("ResolveIdentity", mock.Anything, "uid-1").Return(nil, fmt.Errorf("storage: %w", response.ErrNotFound))
			},
			wantStatus: http.StatusForbidden,
			wantCode:   "FORBIDDEN",
		},
		{
			name:   "inactive",
			header: "Bearer tok",
			setup: func(v *mockVerifier, res *mockResolver) {
				v.On("Verify", mock.Anything, "tok").Return(claims, nil)
				res.On("ResolveIdentity", mock.Anything, "uid-1").Return(&models.User{ID: "u1", Role: models.RoleStudent}, nil)
			},
			wantStatus: http.StatusForbidden,
			wantCode:   "FORBIDDEN",
		},
		{
			name:   "ok",
			header: "bearer tok",
			setup: func(v *mockVerifier, res *mockResolver) {
				v.On("Verify", mock.Anything, "tok").Return(claims, nil)
				res.On("ResolveIdentity", mock.Anything, "uid-1").Return(&models.User{ID: "u1", Role: models.RoleStudent, IsActive: true}, nil)
			},
			wantStatus: http.StatusNoContent,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v, res := &mockVerifier{}, &mockResolver{}
			tc.setup(v, res)

			w := do(Required(log, v, res)(echoUser(t)), tc.header)

			assert.Equal(t, tc.wantStatus, w.Code)
			if tc.wantCode != "" {
				assert.Contains(t, w.Body.String(), tc.wantCode)
			} else {
				assert.Equal(t, "u1", w.Header().Get("X-User"))
			}
			v.AssertExpectations(t)
			res.AssertExpectations(t)
		})
	}
}

func TestOptional_Anonymous(t *testing.T) {
	log := slog.New(slog.DiscardHandler)
	v, res := &mockVerifier{}, &mockResolver{}

	h := Optional(log, v, res)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := UserFromContext(r.Context())
		assert.False(t, ok)
		w.WriteHeader(http.StatusOK)
	}))

	w := do(h, "")
	assert.Equal(t, http.StatusOK, w.Code)
	v.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything)
}

func TestToken_StoresClaims(t *testing.T) {
	log := slog.New(slog.DiscardHandler)
	v := &mockVerifier{}
	v.On("Verify", mock.Anything, "tok").Return(&identity.Claims{UID: "uid-9"}, nil)

	h := Token(log, v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := ClaimsFromContext(r.Context())
		require.True(t, ok)
		assert.Equal(t, "uid-9", c.UID)
		w.WriteHeader(http.StatusOK)
	}))

	assert.Equal(t, http.StatusOK, do(h, "Bearer tok").Code)
}

func TestRequireRole(t *testing.T) {
	h := RequireRole(models.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	r = r.WithContext(WithUser(r.Context(), &models.User{ID: "s", Role: models.RoleStudent, IsActive: true}))
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusForbidden, w.Code)

	r = r.WithContext(WithUser(r.Context(), &models.User{ID: "a", Role: models.RoleAdmin, IsActive: true}))
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
}
