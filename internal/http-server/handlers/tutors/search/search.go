package search

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/shopspring/decimal"

	"tutor-service/api"
	"tutor-service/internal/models"
	"tutor-service/pkg/response"
	"tutor-service/pkg/sl"
)

type TutorSearcher interface {
	SearchTutors(ctx context.Context, filter models.TutorFilter) ([]*models.TutorProfile, error)
}

type Response struct {
	response.Response
	Tutors []api.TutorResponse `json:"tutors"`
}

// New serves the public tutor search: ?subject=&minRate=&maxRate=&teachingMethod=&availability=Monday,Friday
func New(log *slog.Logger, searcher TutorSearcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.tutors.search.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		filter, err := parseFilter(r)
		if err != nil {
			log.Info("Invalid search filter", sl.Err(err))
			response.WriteError(w, r, err)
			return
		}

		tutors, err := searcher.SearchTutors(r.Context(), filter)
		if err != nil {
			log.Error("Failed to search tutors", sl.Err(err))
			response.WriteError(w, r, err)
			return
		}

		log.Info("Tutors found", slog.Int("count", len(tutors)))

		render.JSON(w, r, Response{Tutors: api.FromTutors(tutors)})
	}
}

func parseFilter(r *http.Request) (models.TutorFilter, error) {
	q := r.URL.Query()

	filter := models.TutorFilter{
		Subject:        strings.TrimSpace(q.Get("subject")),
		TeachingMethod: q.Get("teachingMethod"),
	}

	var fields []string

	for name, dst := range map[string]**decimal.Decimal{"minRate": &filter.MinRate, "maxRate": &filter.MaxRate} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			fields = append(fields, fmt.Sprintf("%s must be a number", name))
			continue
		}
		*dst = &d
	}

	if days := q.Get("availability"); days != "" {
		for d := range strings.SplitSeq(days, ",") {
			if d = strings.TrimSpace(d); d != "" {
				filter.Days = append(filter.Days, d)
			}
		}
	}

	if len(fields) > 0 {
		return filter, response.NewValidationError(fields...)
	}
	return filter, nil
}
