package useractive

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"tutor-service/api"
	"tutor-service/internal/http-server/middleware/auth"
	"tutor-service/internal/models"
	"tutor-service/pkg/response"
	"tutor-service/pkg/sl"
)

type UserActivator interface {
	SetUserActive(ctx context.Context, adminUserID, userID string, active bool) (*models.User, error)
}

type Response struct {
	response.Response
	User api.UserResponse `json:"user"`
}

func New(log *slog.Logger, activator UserActivator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.admin.useractive.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		admin, ok := auth.UserFromContext(r.Context())
		if !ok {
			response.WriteError(w, r, response.ErrUnauthorized)
			return
		}

		id := chi.URLParam(r, "id")
		if id == "" {
			log.Error("id is empty")
			response.WriteError(w, r, response.NewValidationError("id is required"))
			return
		}

		var req api.SetActiveRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("Failed to decode request body", sl.Err(err))
			response.WriteError(w, r, response.ErrBadRequest)
			return
		}

		log.Info("Request body decoded", slog.Any("request", req))

		if err := api.Validate(&req); err != nil {
			log.Info("Invalid request", sl.Err(err))
			response.WriteError(w, r, err)
			return
		}

		user, err := activator.SetUserActive(r.Context(), admin.ID, id, *req.IsActive)
		if err != nil {
			log.Error("Failed to set user status", sl.Err(err))
			response.WriteError(w, r, err)
			return
		}

		log.Info("User status was set", slog.String("user_id", user.ID), slog.Bool("is_active", user.IsActive))

		render.JSON(w, r, Response{User: api.FromUser(user, "")})
	}
}
