package router

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	adminPending "tutor-service/internal/http-server/handlers/admin/pending"
	adminStats "tutor-service/internal/http-server/handlers/admin/stats"
	adminUserActive "tutor-service/internal/http-server/handlers/admin/useractive"
	adminVerify "tutor-service/internal/http-server/handlers/admin/verify"
	authMe "tutor-service/internal/http-server/handlers/auth/me"
	authSignup "tutor-service/internal/http-server/handlers/auth/signup"
	bookingCancel "tutor-service/internal/http-server/handlers/bookings/cancel"
	bookingComplete "tutor-service/internal/http-server/handlers/bookings/complete"
	bookingCreate "tutor-service/internal/http-server/handlers/bookings/create"
	bookingGet "tutor-service/internal/http-server/handlers/bookings/get"
	bookingList "tutor-service/internal/http-server/handlers/bookings/list"
	tutorAvailability "tutor-service/internal/http-server/handlers/tutors/availability"
	tutorGet "tutor-service/internal/http-server/handlers/tutors/get"
	tutorProfile "tutor-service/internal/http-server/handlers/tutors/profile"
	tutorReviews "tutor-service/internal/http-server/handlers/tutors/reviews"
	tutorSearch "tutor-service/internal/http-server/handlers/tutors/search"
	tutorSessions "tutor-service/internal/http-server/handlers/tutors/sessions"
	tutorSlots "tutor-service/internal/http-server/handlers/tutors/slots"
	tutorSubmit "tutor-service/internal/http-server/handlers/tutors/submit"
	"tutor-service/internal/http-server/middleware/auth"
	"tutor-service/internal/identity"
	"tutor-service/internal/models"
	"tutor-service/internal/service"
	"tutor-service/pkg/middleware/mwLogger"
	"tutor-service/pkg/middleware/mwMetrics"
	"tutor-service/pkg/response"
	"tutor-service/pkg/sl"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Idempotency-Key")
		w.Header().Set("Content-Type", "application/json; charset=utf-8")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func New(log *slog.Logger, svc *service.Service, verifier identity.Verifier, metrics *mwMetrics.Metrics, db Pinger) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(mwLogger.New(log))
	router.Use(metrics.Middleware)
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)
	router.Use(CORS)

	router.Handle("/metrics", metrics.Handler())
	router.Get("/health", health(log, db))

	required := auth.Required(log, verifier, svc)
	optional := auth.Optional(log, verifier, svc)

	// Auth
	router.With(auth.Token(log, verifier)).Post("/auth/signup", authSignup.New(log, svc))
	router.With(required).Get("/auth/me", authMe.New(log, svc))

	// Tutors
	router.Get("/tutors", tutorSearch.New(log, svc))
	router.With(optional).Get("/tutors/{id}", tutorGet.New(log, svc))
	router.Get("/tutors/{id}/slots", tutorSlots.New(log, svc))

	router.Group(func(r chi.Router) {
		r.Use(required)

		r.Get("/tutors/{id}/sessions", tutorSessions.New(log, svc))
		r.With(auth.RequireRole(models.RoleStudent)).Post("/tutors/{id}/reviews", tutorReviews.New(log, svc))

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(models.RoleTutor))

			r.Get("/tutors/profile", tutorProfile.New(log, svc))
			r.Put("/tutors/profile", tutorSubmit.New(log, svc))
			r.Put("/tutors/profile/availability", tutorAvailability.New(log, svc))
			r.Post("/tutors/sessions/{id}/complete", bookingComplete.New(log, svc))
		})

		// Bookings
		r.With(auth.RequireRole(models.RoleStudent)).Post("/bookings", bookingCreate.New(log, svc, metrics))
		r.Get("/bookings/{id}", bookingGet.New(log, svc))

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(models.RoleStudent))

			r.Get("/students/sessions", bookingList.New(log, svc))
			r.Delete("/students/sessions/{id}", bookingCancel.New(log, svc))
		})

		// Admin
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(models.RoleAdmin))

			r.Post("/admin/verify-tutor", adminVerify.New(log, svc))
			r.Post("/admin/tutors/{id}/verify", adminVerify.New(log, svc))
			r.Get("/admin/tutors/pending", adminPending.New(log, svc))
			r.Get("/admin/stats", adminStats.New(log, svc))
			r.Put("/admin/users/{id}/active", adminUserActive.New(log, svc))
		})
	})

	return router
}

func health(log *slog.Logger, db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			log.Error("Health check failed", sl.Err(err))
			response.WriteError(w, r, err)
			return
		}

		render.JSON(w, r, map[string]string{"status": "ok"})
	}
}
