package availability

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

type AvailabilityUpdater interface {
	UpdateAvailability(ctx context.Context, tutorUserID string, availability []models.DayAvailability) (*models.TutorProfile, error)
}

type Response struct {
	response.Response
	Tutor api.TutorResponse `json:"tutor"`
}

// New replaces the signed-in tutor's weekly availability.
func New(log *slog.Logger, updater AvailabilityUpdater) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.tutors.availability.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		user, ok := auth.UserFromContext(r.Context())
		if !ok {
			response.WriteError(w, r, response.ErrUnauthorized)
			return
		}

		var req api.AvailabilityRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("Failed to decode request body", sl.Err(err))
			response.WriteError(w, r, response.ErrBadRequest)
			return
		}

		log.Info("Request body decoded", slog.Any("request", req))

		if err := api.Validate(&req); err != nil {
			log.Info("Invalid availability", sl.Err(err))
			response.WriteError(w, r, err)
			return
		}

		profile, err := updater.UpdateAvailability(r.Context(), user.ID, req.Availability)
		if err != nil {
			log.Error("Failed to update availability", sl.Err(err))
			response.WriteError(w, r, err)
			return
		}

		log.Info("Availability updated", slog.String("tutor_profile_id", profile.ID))

		render.JSON(w, r, Response{Tutor: api.FromTutor(profile)})
	}
}
