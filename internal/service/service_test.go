package service

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"tutor-service/internal/cache"
	"tutor-service/internal/events"
	"tutor-service/internal/lock"
	"tutor-service/internal/models"
)

// Sunday; the fixture tutor teaches Mondays.
var testNow = time.Date(2030, time.January, 6, 12, 0, 0, 0, time.UTC)

const adminEmail = "admin@example.com"

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]events.Type, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	svc   *Service
	store *memStore
	pub   *recordingPublisher
	clock *time.Time
	redis *miniredis.Miniredis
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := &fixture{
		store: newMemStore(),
		pub:   &recordingPublisher{},
		redis: mr,
	}
	now := testNow
	f.clock = &now

	f.svc = NewService(
		slog.New(slog.DiscardHandler),
		f.store,
		lock.NewRedisLockWithClient(client),
		cache.NewRedisCache(client, time.Minute),
		f.pub,
		Options{
			Location:      time.UTC,
			MinHourlyRate: decimal.NewFromInt(5),
			LockTTL:       5 * time.Second,
			LockWait:      2 * time.Second,
			AdminEmails:   []string{adminEmail},
			Now:           func() time.Time { return *f.clock },
		},
	)

	return f
}

func (f *fixture) user(t *testing.T, role models.Role) *models.User {
	t.Helper()

	id := uuid.NewString()
	u := &models.User{
		FirebaseUID: "uid-" + id,
		Email:       id + "@example.com",
		FirstName:   "Test",
		LastName:    string(role),
		Role:        role,
		IsActive:    true,
	}

	var profile *models.TutorProfile
	if role == models.RoleTutor {
		profile = &models.TutorProfile{VerificationState: models.StateIncomplete}
	}

	require.NoError(t, f.store.CreateUser(context.Background(), u, profile))
	return u
}

// tutor creates a verified tutor at $40/h teaching Mathematics on Mondays 09:00-12:00.
func (f *fixture) tutor(t *testing.T) (*models.User, *models.TutorProfile) {
	t.Helper()

	u := f.user(t, models.RoleTutor)
	p, err := f.store.GetTutorProfileByOwner(context.Background(), u.ID)
	require.NoError(t, err)

	p.Subjects = []models.Subject{{Name: "Mathematics", Level: models.LevelAdvanced}}
	p.Education = []models.Education{{Degree: "MSc", Institution: "MIT", YearCompleted: 2020}}
	p.HourlyRate = decimal.NewFromInt(40)
	p.Availability = []models.DayAvailability{
		{Day: "Monday", Slots: []models.TimeRange{{Start: "09:00", End: "12:00"}}},
	}
	p.TeachingMethods = models.TeachingMethods{Online: true}
	p.ProfileCompleted = true
	expected := p.VerificationState
	p.VerificationState = models.StateVerified

	require.NoError(t, f.store.SaveTutorProfile(context.Background(), p, expected))
	return u, p
}

func (f *fixture) advance(d time.Duration) {
	*f.clock = f.clock.Add(d)
}

func monday(hour, minute int) time.Time {
	return time.Date(2030, time.January, 7, hour, minute, 0, 0, time.UTC)
}

func validProfile() *ProfileData {
	return &ProfileData{
		Subjects:   []models.Subject{{Name: "Physics", Level: models.LevelIntermediate}},
		Education:  []models.Education{{Degree: "BSc", Institution: "ETH", YearCompleted: 2018}},
		Experience: models.Experience{Years: 3, Description: "High school tutoring"},
		HourlyRate: decimal.NewFromInt(30),
		Availability: []models.DayAvailability{
			{Day: "Tuesday", Slots: []models.TimeRange{{Start: "14:00", End: "18:00"}}},
		},
		TeachingMethods: models.TeachingMethods{Online: true, InPerson: true},
		Location:        models.Location{City: "Zurich", Country: "CH"},
	}
}
