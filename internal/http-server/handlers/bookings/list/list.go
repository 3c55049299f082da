package list

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

type StudentBookingLister interface {
	ListStudentBookings(ctx context.Context, studentUserID string, status *models.BookingStatus) ([]*models.Booking, error)
}

type Response struct {
	response.Response
	Sessions []api.BookingResponse `json:"sessions"`
}

// New lists the signed-in student's sessions, optionally filtered by ?status=.
func New(log *slog.Logger, lister StudentBookingLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.bookings.list.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		user, ok := auth.UserFromContext(r.Context())
		if !ok {
			response.WriteError(w, r, response.ErrUnauthorized)
			return
		}

		status, err := api.ParseStatus(r.URL.Query().Get("status"))
		if err != nil {
			log.Info("Invalid status filter", sl.Err(err))
			response.WriteError(w, r, err)
			return
		}

		bookings, err := lister.ListStudentBookings(r.Context(), user.ID, status)
		if err != nil {
			log.Error("Failed to list student sessions", sl.Err(err))
			response.WriteError(w, r, err)
			return
		}

		log.Info("Student sessions retrieved", slog.Int("count", len(bookings)))

		render.JSON(w, r, Response{Sessions: api.FromBookings(bookings)})
	}
}
