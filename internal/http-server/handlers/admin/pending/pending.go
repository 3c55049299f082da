package pending

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

type PendingLister interface {
	ListPendingTutors(ctx context.Context, adminUserID string) ([]*models.TutorProfile, error)
}

type Response struct {
	response.Response
	Tutors []api.TutorResponse `json:"tutors"`
}

func New(log *slog.Logger, lister PendingLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.admin.pending.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		admin, ok := auth.UserFromContext(r.Context())
		if !ok {
			response.WriteError(w, r, response.ErrUnauthorized)
			return
		}

		tutors, err := lister.ListPendingTutors(r.Context(), admin.ID)
		if err != nil {
			log.Error("Failed to list pending tutors", sl.Err(err))
			response.WriteError(w, r, err)
			return
		}

		render.JSON(w, r, Response{Tutors: api.FromTutors(tutors)})
	}
}
