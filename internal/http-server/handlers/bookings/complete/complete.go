package complete

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

type BookingCompleter interface {
	CompleteBooking(ctx context.Context, bookingID, tutorUserID string) (*models.Booking, error)
}

type Response struct {
	response.Response
	Booking api.BookingResponse `json:"booking"`
}

func New(log *slog.Logger, completer BookingCompleter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.bookings.complete.New"

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

		booking, err := completer.CompleteBooking(r.Context(), id, user.ID)
		if err != nil {
			log.Error("Failed to complete booking", sl.Err(err))
			response.WriteError(w, r, err)
			return
		}

		log.Info("Booking completed", slog.String("booking_id", booking.ID))

		render.JSON(w, r, Response{Booking: api.FromBooking(booking)})
	}
}
