package verify

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
	"tutor-service/internal/service"
	"tutor-service/pkg/response"
	"tutor-service/pkg/sl"
)

type TutorVerifier interface {
	VerifyTutor(ctx context.Context, tutorProfileID string, action service.VerifyAction, adminUserID, reason string) (*models.TutorProfile, error)
}

type Response struct {
	response.Response
	Tutor api.TutorResponse `json:"tutor"`
}

// New serves both POST /admin/tutors/{id}/verify and POST /admin/verify-tutor, where the
// tutor id comes in the body.
func New(log *slog.Logger, verifier TutorVerifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.admin.verify.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		admin, ok := auth.UserFromContext(r.Context())
		if !ok {
			response.WriteError(w, r, response.ErrUnauthorized)
			return
		}

		var req api.VerifyRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("Failed to decode request body", sl.Err(err))
			response.WriteError(w, r, response.ErrBadRequest)
			return
		}

		if id := chi.URLParam(r, "id"); id != "" {
			req.TutorID = id
		}
		if req.TutorID == "" {
			log.Info("tutorId is empty")
			response.WriteError(w, r, response.NewValidationError("tutorId is required"))
			return
		}

		if err := api.Validate(&req); err != nil {
			log.Info("Invalid verification request", sl.Err(err))
			response.WriteError(w, r, err)
			return
		}

		profile, err := verifier.VerifyTutor(r.Context(), req.TutorID, service.VerifyAction(req.Action), admin.ID, req.Reason)
		if err != nil {
			log.Error("Failed to verify tutor", sl.Err(err))
			response.WriteError(w, r, err)
			return
		}

		log.Info("Tutor verification decided",
			slog.String("tutor_profile_id", profile.ID),
			slog.String("state", string(profile.VerificationState)),
		)

		render.JSON(w, r, Response{Tutor: api.FromTutor(profile)})
	}
}
