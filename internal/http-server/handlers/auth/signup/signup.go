package signup

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"tutor-service/api"
	"tutor-service/internal/http-server/middleware/auth"
	"tutor-service/internal/models"
	"tutor-service/internal/service"
	"tutor-service/pkg/response"
	"tutor-service/pkg/sl"
)

type UserRegisterer interface {
	RegisterUser(ctx context.Context, req *service.RegisterRequest) (*models.User, error)
}

type Response struct {
	response.Response
	User api.UserResponse `json:"user"`
}

// New registers the caller of a verified identity token. The token email wins over the body email.
func New(log *slog.Logger, registerer UserRegisterer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.auth.signup.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		claims, ok := auth.ClaimsFromContext(r.Context())
		if !ok {
			response.WriteError(w, r, response.ErrUnauthorized)
			return
		}

		var req api.SignupRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("Failed to decode request body", sl.Err(err))
			response.WriteError(w, r, response.ErrBadRequest)
			return
		}

		if err := api.Validate(&req); err != nil {
			log.Info("Invalid signup", sl.Err(err))
			response.WriteError(w, r, err)
			return
		}

		email := claims.Email
		if email == "" {
			email = req.Email
		}

		user, err := registerer.RegisterUser(r.Context(), &service.RegisterRequest{
			FirebaseUID: claims.UID,
			Email:       strings.TrimSpace(email),
			FirstName:   strings.TrimSpace(req.FirstName),
			LastName:    strings.TrimSpace(req.LastName),
			Phone:       strings.TrimSpace(req.Phone),
			Role:        req.Role,
		})
		if err != nil {
			log.Error("Failed to register user", sl.Err(err))
			response.WriteError(w, r, err)
			return
		}

		log.Info("User registered", slog.String("user_id", user.ID), slog.String("role", string(user.Role)))

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, Response{User: api.FromUser(user, "")})
	}
}
