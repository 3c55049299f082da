package cancel

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"tutor-service/internal/http-server/middleware/auth"
	"tutor-service/internal/models"
	"tutor-service/pkg/response"
	"tutor-service/pkg/sl"
)

type BookingCanceller interface {
	CancelBooking(ctx context.Context, bookingID, requestingUserID string) (*models.Booking, error)
}

// New cancels one of the student's own scheduled sessions and answers 204.
func New(log *slog.Logger, canceller BookingCanceller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.bookings.cancel.New"

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

		booking, err := canceller.CancelBooking(r.Context(), id, user.ID)
		if err != nil {
			log.Error("Failed to cancel booking", sl.Err(err))
			response.WriteError(w, r, err)
			return
		}

		log.Info("Booking cancelled", slog.String("booking_id", booking.ID))

		w.WriteHeader(http.StatusNoContent)
	}
}
