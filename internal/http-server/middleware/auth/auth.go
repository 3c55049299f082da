package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"tutor-service/internal/identity"
	"tutor-service/internal/models"
	"tutor-service/pkg/response"
	"tutor-service/pkg/sl"
)

type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, firebaseUID string) (*models.User, error)
}

type claimsKey struct{}
type userKey struct{}

func ClaimsFromContext(ctx context.Context) (*identity.Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*identity.Claims)
	return c, ok
}

func UserFromContext(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(userKey{}).(*models.User)
	return u, ok
}

// WithUser is used by handler tests to act as a signed-in user.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

func WithClaims(ctx context.Context, claims *identity.Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

// Token verifies the bearer token and stores its claims. The caller need not be registered yet.
func Token(log *slog.Logger, verifier identity.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := verify(log, verifier, w, r)
			if !ok {
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// Required resolves the bearer token to an active registered user.
// Unregistered and deactivated users get 403.
func Required(log *slog.Logger, verifier identity.Verifier, resolver IdentityResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := verify(log, verifier, w, r)
			if !ok {
				return
			}

			user, ok := resolve(log, resolver, claims, w, r)
			if !ok {
				return
			}

			ctx := WithUser(WithClaims(r.Context(), claims), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Optional behaves like Required when an Authorization header is present and passes
// anonymous requests through untouched.
func Optional(log *slog.Logger, verifier identity.Verifier, resolver IdentityResolver) func(http.Handler) http.Handler {
	required := Required(log, verifier, resolver)

	return func(next http.Handler) http.Handler {
		authed := required(next)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				next.ServeHTTP(w, r)
				return
			}
			authed.ServeHTTP(w, r)
		})
	}
}

// RequireRole must run after Required.
func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				response.WriteError(w, r, response.ErrUnauthorized)
				return
			}
			if !slices.Contains(roles, user.Role) {
				response.WriteError(w, r, fmt.Errorf("role %s: %w", user.Role, response.ErrForbidden))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func verify(log *slog.Logger, verifier identity.Verifier, w http.ResponseWriter, r *http.Request) (*identity.Claims, bool) {
	const op = "middleware.auth.verify"

	log = log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	token, ok := bearerToken(r)
	if !ok {
		log.Info("Missing bearer token", slog.String("path", r.URL.Path))
		response.WriteError(w, r, response.ErrUnauthorized)
		return nil, false
	}

	claims, err := verifier.Verify(r.Context(), token)
	if err != nil {
		if errors.Is(err, response.ErrServer) {
			log.Error("Identity provider unavailable", sl.Err(err))
		} else {
			log.Info("Token rejected", sl.Err(err))
		}
		response.WriteError(w, r, err)
		return nil, false
	}

	return claims, true
}

func resolve(log *slog.Logger, resolver IdentityResolver, claims *identity.Claims, w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	const op = "middleware.auth.resolve"

	log = log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	user, err := resolver.ResolveIdentity(r.Context(), claims.UID)
	if errors.Is(err, response.ErrNotFound) {
		log.Info("Identity is not registered", slog.String("uid", claims.UID))
		response.WriteError(w, r, fmt.Errorf("%s: not registered: %w", op, response.ErrForbidden))
		return nil, false
	}
	if err != nil {
		log.Error("Failed to resolve identity", sl.Err(err))
		response.WriteError(w, r, err)
		return nil, false
	}

	if !user.IsActive {
		log.Info("Inactive user rejected", slog.String("user_id", user.ID))
		response.WriteError(w, r, fmt.Errorf("%s: inactive: %w", op, response.ErrForbidden))
		return nil, false
	}

	return user, true
}
