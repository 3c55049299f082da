package profile

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

type OwnProfileGetter interface {
	GetOwnProfile(ctx context.Context, tutorUserID string) (*models.TutorProfile, error)
}

type Response struct {
	response.Response
	Tutor api.TutorResponse `json:"tutor"`
}

func New(log *slog.Logger, getter OwnProfileGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.tutors.profile.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		user, ok := auth.UserFromContext(r.Context())
		if !ok {
			response.WriteError(w, r, response.ErrUnauthorized)
			return
		}

		profile, err := getter.GetOwnProfile(r.Context(), user.ID)
		if err != nil {
			log.Error("Failed to get own profile", sl.Err(err))
			response.WriteError(w, r, err)
			return
		}

		render.JSON(w, r, Response{Tutor: api.FromTutor(profile)})
	}
}
