package stats

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

type StatsGetter interface {
	Stats(ctx context.Context, adminUserID string) (*models.Stats, error)
}

type Response struct {
	response.Response
	Stats api.StatsResponse `json:"stats"`
}

func New(log *slog.Logger, getter StatsGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.admin.stats.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		admin, ok := auth.UserFromContext(r.Context())
		if !ok {
			response.WriteError(w, r, response.ErrUnauthorized)
			return
		}

		st, err := getter.Stats(r.Context(), admin.ID)
		if err != nil {
			log.Error("Failed to get stats", sl.Err(err))
			response.WriteError(w, r, err)
			return
		}

		render.JSON(w, r, Response{Stats: api.FromStats(st)})
	}
}
