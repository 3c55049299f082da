package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tutor-service/internal/events"
	"tutor-service/internal/lock"
	"tutor-service/internal/models"
	"tutor-service/pkg/response"
	"tutor-service/pkg/sl"
)

type Store interface {
	// Users
	CreateUser(ctx context.Context, user *models.User, profile *models.TutorProfile) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByFirebaseUID(ctx context.Context, uid string) (*models.User, error)
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	SetUserActive(ctx context.Context, id string, active bool) error

	// Tutor profiles
	GetTutorProfile(ctx context.Context, id string) (*models.TutorProfile, error)
	GetTutorProfileByOwner(ctx context.Context, userID string) (*models.TutorProfile, error)
	SaveTutorProfile(ctx context.Context, profile *models.TutorProfile, expected models.VerificationState) error
	UpdateAvailability(ctx context.Context, id string, availability []models.DayAvailability) error
	UpdateVerificationState(ctx context.Context, id string, from, to models.VerificationState, reason string, at time.Time) error
	SearchTutors(ctx context.Context, filter models.TutorFilter) ([]*models.TutorProfile, error)
	ListTutorsByState(ctx context.Context, state models.VerificationState) ([]*models.TutorProfile, error)

	// Reviews
	CreateReview(ctx context.Context, review *models.Review) error

	// Bookings
	CreateBooking(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	GetBookingByIdempotencyKey(ctx context.Context, studentUserID, key string) (*models.Booking, error)
	ListBookings(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error)
	UpdateBookingStatus(ctx context.Context, id string, from, to models.BookingStatus, at time.Time) error
	HasCompletedBooking(ctx context.Context, studentUserID, tutorProfileID string) (bool, error)

	GetStats(ctx context.Context) (*models.Stats, error)
}

// SearchCache holds serialized public search results.
type SearchCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, data []byte)
	Invalidate(ctx context.Context) error
}

type Options struct {
	Location      *time.Location
	MinHourlyRate decimal.Decimal
	LockTTL       time.Duration
	LockWait      time.Duration
	AdminEmails   []string
	Now           func() time.Time
}

type Service struct {
	log       *slog.Logger
	store     Store
	locker    lock.Locker
	cache     SearchCache
	publisher events.Publisher
	opts      Options
}

func NewService(log *slog.Logger, store Store, locker lock.Locker, cache SearchCache, publisher events.Publisher, opts Options) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 10 * time.Second
	}
	if opts.LockWait <= 0 {
		opts.LockWait = 3 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Service{
		log:       log,
		store:     store,
		locker:    locker,
		cache:     cache,
		publisher: publisher,
		opts:      opts,
	}
}

func (s *Service) now() time.Time {
	return s.opts.Now()
}

// Location is the zone used for wall-clock availability and zone-less request times.
func (s *Service) Location() *time.Location {
	return s.opts.Location
}

func (s *Service) isAdminEmail(email string) bool {
	for _, e := range s.opts.AdminEmails {
		if strings.EqualFold(strings.TrimSpace(e), strings.TrimSpace(email)) {
			return true
		}
	}
	return false
}

// requireRole loads the acting user and checks it is active and holds one of roles.
func (s *Service) requireRole(ctx context.Context, userID string, roles ...models.Role) (*models.User, error) {
	const op = "service.requireRole"

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: acting user %s: %w", op, userID, response.ErrForbidden)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !user.IsActive {
		return nil, fmt.Errorf("%s: user %s is inactive: %w", op, userID, response.ErrForbidden)
	}

	for _, r := range roles {
		if user.Role == r {
			return user, nil
		}
	}

	return nil, fmt.Errorf("%s: role %s not allowed: %w", op, user.Role, response.ErrForbidden)
}

// publishTimeout bounds how long a request waits on the broker after its write has committed.
const publishTimeout = 2 * time.Second

func (s *Service) publish(ctx context.Context, ev events.Event) {
	ev.OccurredAt = s.now()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.log.Warn("Failed to publish event", slog.String("event_type", string(ev.Type)), sl.Err(err))
	}
}

func (s *Service) invalidateSearch(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.log.Warn("Failed to invalidate tutor search cache", sl.Err(err))
	}
}
