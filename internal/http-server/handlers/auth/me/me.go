package me

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"tutor-service/api"
	"tutor-service/internal/http-server/middleware/auth"
	"tutor-service/internal/models"
	"tutor-service/pkg/response"
	"tutor-service/pkg/sl"
)

type SignInRecorder interface {
	SignIn(ctx context.Context, userID string) (*models.User, string, error)
}

type Response struct {
	response.Response
	User api.UserResponse `json:"user"`
}

func New(log *slog.Logger, recorder SignInRecorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.auth.me.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		principal, ok := auth.UserFromContext(r.Context())
		if !ok {
			response.WriteError(w, r, response.ErrUnauthorized)
			return
		}

		user, tutorProfileID, err := recorder.SignIn(r.Context(), principal.ID)
		if err != nil {
			log.Error("Failed to sign in", sl.Err(err))
			response.WriteError(w, r, err)
			return
		}

		render.JSON(w, r, Response{User: api.FromUser(user, tutorProfileID)})
	}
}
