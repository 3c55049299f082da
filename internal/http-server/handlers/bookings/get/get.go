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

type BookingGetter interface {
	GetBooking(ctx context.Context, bookingID, requestingUserID string) (*models.Booking, error)
}

type Response struct {
	response.Response
	Booking api.BookingResponse `json:"booking"`
}

func New(log *slog.Logger, getter BookingGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.bookings.get.New"

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

		booking, err := getter.GetBooking(r.Context(), id, user.ID)
		if err != nil {
			log.Error("Failed to get booking", sl.Err(err))
			response.WriteError(w, r, err)
			return
		}

		render.JSON(w, r, Response{Booking: api.FromBooking(booking)})
	}
}
