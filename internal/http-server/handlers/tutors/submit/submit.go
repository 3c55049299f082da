package submit

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"tutor-service/api"
	"tutor-service/internal/http-server/middleware/auth"
	"tutor-service/internal/models"
	"tutor-service/internal/service"
	"tutor-service/pkg/response"
	"tutor-service/pkg/sl"
)

type ProfileSubmitter interface {
	SubmitProfile(ctx context.Context, tutorUserID string, data *service.ProfileData) (*models.TutorProfile, error)
}

type Response struct {
	response.Response
	Tutor api.TutorResponse `json:"tutor"`
}

func New(log *slog.Logger, submitter ProfileSubmitter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.tutors.submit.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		user, ok := auth.UserFromContext(r.Context())
		if !ok {
			response.WriteError(w, r, response.ErrUnauthorized)
			return
		}

		var req api.ProfileRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("Failed to decode request body", sl.Err(err))
			response.WriteError(w, r, response.ErrBadRequest)
			return
		}

		if err := api.Validate(&req); err != nil {
			log.Info("Invalid profile", sl.Err(err))
			response.WriteError(w, r, err)
			return
		}

		profile, err := submitter.SubmitProfile(r.Context(), user.ID, &service.ProfileData{
			Subjects:           req.Subjects,
			Education:          req.Education,
			Experience:         req.Experience,
			HourlyRate:         req.HourlyRate,
			Availability:       req.Availability,
			TeachingMethods:    req.TeachingMethods,
			Location:           req.Location,
			CertificationFiles: req.CertificationFiles,
		})
		if err != nil {
			log.Error("Failed to submit profile", sl.Err(err))
			response.WriteError(w, r, err)
			return
		}

		log.Info("Profile submitted",
			slog.String("tutor_profile_id", profile.ID),
			slog.String("state", string(profile.VerificationState)),
		)

		render.JSON(w, r, Response{Tutor: api.FromTutor(profile)})
	}
}
