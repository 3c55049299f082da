package create

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"tutor-service/api"
	"tutor-service/internal/http-server/middleware/auth"
	"tutor-service/internal/models"
	"tutor-service/internal/service"
	"tutor-service/pkg/response"
	"tutor-service/pkg/sl"
)

type BookingCreator interface {
	CreateBooking(ctx context.Context, req *service.BookingRequest) (*models.Booking, bool, error)
	Location() *time.Location
}

type OutcomeObserver interface {
	ObserveBooking(outcome string)
}

type Response struct {
	response.Response
	Booking api.BookingResponse `json:"booking"`
}

func New(log *slog.Logger, creator BookingCreator, observer OutcomeObserver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.bookings.create.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		user, ok := auth.UserFromContext(r.Context())
		if !ok {
			response.WriteError(w, r, response.ErrUnauthorized)
			return
		}

		var req api.BookingRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("Failed to decode request body", sl.Err(err))
			fail(w, r, observer, response.ErrBadRequest)
			return
		}

		log.Info("Request body decoded", slog.Any("request", req))

		if err := api.Validate(&req); err != nil {
			log.Info("Invalid booking request", sl.Err(err))
			fail(w, r, observer, err)
			return
		}

		start, minutes, err := req.Interval(creator.Location())
		if err != nil {
			log.Info("Invalid booking interval", sl.Err(err))
			fail(w, r, observer, err)
			return
		}

		var idempotencyKey *string
		if key := strings.TrimSpace(r.Header.Get("Idempotency-Key")); key != "" {
			idempotencyKey = &key
		}

		booking, created, err := creator.CreateBooking(r.Context(), &service.BookingRequest{
			TutorProfileID:  req.TutorID,
			StudentUserID:   user.ID,
			Subject:         req.Subject,
			StartTime:       start,
			DurationMinutes: minutes,
			Notes:           req.Notes,
			IdempotencyKey:  idempotencyKey,
		})
		if err != nil {
			log.Error("Failed to create booking", sl.Err(err))
			fail(w, r, observer, err)
			return
		}

		if created {
			log.Info("Booking created", slog.String("booking_id", booking.ID))
			observer.ObserveBooking("created")
			render.Status(r, http.StatusCreated)
		} else {
			log.Info("Booking replayed for idempotency key", slog.String("booking_id", booking.ID))
			observer.ObserveBooking("replayed")
		}

		render.JSON(w, r, Response{Booking: api.FromBooking(booking)})
	}
}

func fail(w http.ResponseWriter, r *http.Request, observer OutcomeObserver, err error) {
	_, resp := response.FromError(err)
	observer.ObserveBooking(resp.Code)
	response.WriteError(w, r, err)
}
