package slots

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"tutor-service/api"
	"tutor-service/internal/models"
	"tutor-service/pkg/response"
	"tutor-service/pkg/sl"
)

const defaultRangeDays = 7

type SlotLister interface {
	ListAvailableSlots(ctx context.Context, tutorProfileID string, from, to time.Time) (iter.Seq[models.Slot], error)
	Location() *time.Location
}

type Response struct {
	response.Response
	Slots []api.SlotResponse `json:"slots"`
}

// New lists open slots of a tutor for ?from=YYYY-MM-DD&to=YYYY-MM-DD, both inclusive.
// Without from the range starts today; without to it spans a week.
func New(log *slog.Logger, lister SlotLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.tutors.slots.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id := chi.URLParam(r, "id")
		if id == "" {
			log.Error("id is empty")
			response.WriteError(w, r, response.NewValidationError("id is required"))
			return
		}

		loc := lister.Location()

		from, to, err := parseRange(r.URL.Query().Get("from"), r.URL.Query().Get("to"), loc, time.Now())
		if err != nil {
			log.Info("Invalid date range", sl.Err(err))
			response.WriteError(w, r, err)
			return
		}

		seq, err := lister.ListAvailableSlots(r.Context(), id, from, to)
		if err != nil {
			log.Error("Failed to list slots", sl.Err(err))
			response.WriteError(w, r, err)
			return
		}

		out := []api.SlotResponse{}
		for s := range seq {
			out = append(out, api.FromSlot(s))
		}

		log.Info("Slots retrieved", slog.Int("count", len(out)))

		render.JSON(w, r, Response{Slots: out})
	}
}

func parseRange(rawFrom, rawTo string, loc *time.Location, now time.Time) (time.Time, time.Time, error) {
	var fields []string

	from := now.In(loc)
	if rawFrom != "" {
		t, err := time.ParseInLocation(time.DateOnly, rawFrom, loc)
		if err != nil {
			fields = append(fields, fmt.Sprintf("from %q must be YYYY-MM-DD", rawFrom))
		}
		from = t
	}

	to := from.AddDate(0, 0, defaultRangeDays-1)
	if rawTo != "" {
		t, err := time.ParseInLocation(time.DateOnly, rawTo, loc)
		if err != nil {
			fields = append(fields, fmt.Sprintf("to %q must be YYYY-MM-DD", rawTo))
		}
		to = t
	}

	if len(fields) > 0 {
		return time.Time{}, time.Time{}, response.NewValidationError(fields...)
	}
	return from, to, nil
}
