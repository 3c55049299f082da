package get

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

type TutorGetter interface {
	GetTutor(ctx context.Context, tutorProfileID, requestingUserID string) (*models.TutorProfile, error)
}

type Response struct {
	response.Response
	Tutor api.TutorResponse `json:"tutor"`
}

// New returns a tutor by id. Anonymous callers only see verified profiles.
func New(log *slog.Logger, getter TutorGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.tutors.get.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id := chi.URLParam(r, "id")
		if id == "" {
			log.Error("id is empty")
			response.WriteError(w, r, response.NewValidationError("id is required"))
			return
		}

		var requester string
		if user, ok := auth.UserFromContext(r.Context()); ok {
			requester = user.ID
		}

		tutor, err := getter.GetTutor(r.Context(), id, requester)
		if err != nil {
			log.Error("Failed to get tutor", sl.Err(err))
			response.WriteError(w, r, err)
			return
		}

		render.JSON(w, r, Response{Tutor: api.FromTutor(tutor)})
	}
}
