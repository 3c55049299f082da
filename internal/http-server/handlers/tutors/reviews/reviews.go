package reviews

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

type ReviewAdder interface {
	AddReview(ctx context.Context, tutorProfileID, studentUserID string, rating int, comment string) (*models.Review, error)
}

type Response struct {
	response.Response
	Review api.ReviewResponse `json:"review"`
}

func New(log *slog.Logger, adder ReviewAdder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.tutors.reviews.New"

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

		var req api.ReviewRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("Failed to decode request body", sl.Err(err))
			response.WriteError(w, r, response.ErrBadRequest)
			return
		}

		if err := api.Validate(&req); err != nil {
			log.Info("Invalid review", sl.Err(err))
			response.WriteError(w, r, err)
			return
		}

		review, err := adder.AddReview(r.Context(), id, user.ID, req.Rating, req.Comment)
		if err != nil {
			log.Error("Failed to add review", sl.Err(err))
			response.WriteError(w, r, err)
			return
		}

		log.Info("Review added", slog.String("review_id", review.ID), slog.String("tutor_profile_id", id))

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, Response{Review: api.FromReview(review)})
	}
}
