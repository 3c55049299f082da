package sessions

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

type TutorBookingLister interface {
	ListTutorBookings(ctx context.Context, tutorProfileID, requestingUserID string, status *models.BookingStatus) ([]*models.Booking, error)
}

type Response struct {
	response.Response
	Sessions []api.BookingResponse `json:"sessions"`
}

func New(log *slog.Logger, lister TutorBookingLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.tutors.sessions.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		user, ok := auth.UserFromContext(r.Context())
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

		status, err := api.ParseStatus(r.URL.Query().Get("status"))
		if err != nil {
			log.Info("Invalid status filter", sl.Err(err))
			response.WriteError(w, r, err)
			return
		}

		bookings, err := lister.ListTutorBookings(r.Context(), id, user.ID, status)
		if err != nil {
			log.Error("Failed to list tutor sessions", sl.Err(err))
			response.WriteError(w, r, err)
			return
		}

		render.JSON(w, r, Response{Sessions: api.FromBookings(bookings)})
	}
}
