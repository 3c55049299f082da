package service

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tutor-service/internal/models"
	"tutor-service/pkg/response"
)

// memStore is an in-memory Store. CreateBooking checks overlap and inserts under one mutex,
// mirroring the transactional guarantee of the postgres store.
type memStore struct {
	mu       sync.Mutex
	users    map[string]*models.User
	profiles map[string]*models.TutorProfile
	bookings map[string]*models.Booking
	reviews  []*models.Review
	err      error
}

func newMemStore() *memStore {
	return &memStore{
		users:    map[string]*models.User{},
		profiles: map[string]*models.TutorProfile{},
		bookings: map[string]*models.Booking{},
	}
}

func cloneProfile(p *models.TutorProfile) *models.TutorProfile {
	cp := *p
	cp.Subjects = slices.Clone(p.Subjects)
	cp.Education = slices.Clone(p.Education)
	cp.Availability = slices.Clone(p.Availability)
	cp.Reviews = slices.Clone(p.Reviews)
	return &cp
}

// withOwner clones p with the owner's current active flag, as the users join does.
func (m *memStore) withOwner(p *models.TutorProfile) *models.TutorProfile {
	cp := cloneProfile(p)
	if u, ok := m.users[p.OwnerUserID]; ok {
		cp.OwnerActive = u.IsActive
	}
	return cp
}

func cloneBooking(b *models.Booking) *models.Booking {
	cp := *b
	return &cp
}

func (m *memStore) CreateUser(_ context.Context, user *models.User, profile *models.TutorProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}

	for _, u := range m.users {
		if u.FirebaseUID == user.FirebaseUID || u.Email == user.Email {
			return response.ErrAlreadyExists
		}
	}

	user.ID = uuid.NewString()
	user.CreatedAt = time.Now()
	cp := *user
	m.users[user.ID] = &cp

	if profile != nil {
		profile.ID = uuid.NewString()
		profile.OwnerUserID = user.ID
		profile.OwnerFirstName = user.FirstName
		profile.OwnerLastName = user.LastName
		m.profiles[profile.ID] = cloneProfile(profile)
	}

	return nil
}

func (m *memStore) GetUser(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}

	u, ok := m.users[id]
	if !ok {
		return nil, response.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) GetUserByFirebaseUID(_ context.Context, uid string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.FirebaseUID == uid {
			cp := *u
			return &cp, nil
		}
	}
	return nil, response.ErrNotFound
}

func (m *memStore) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return response.ErrNotFound
	}
	u.LastLogin = &at
	return nil
}

func (m *memStore) SetUserActive(_ context.Context, id string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return response.ErrNotFound
	}
	u.IsActive = active
	return nil
}

func (m *memStore) GetTutorProfile(_ context.Context, id string) (*models.TutorProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}

	p, ok := m.profiles[id]
	if !ok {
		return nil, response.ErrNotFound
	}
	return m.withOwner(p), nil
}

func (m *memStore) GetTutorProfileByOwner(_ context.Context, userID string) (*models.TutorProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.profiles {
		if p.OwnerUserID == userID {
			return m.withOwner(p), nil
		}
	}
	return nil, response.ErrNotFound
}

func (m *memStore) SaveTutorProfile(_ context.Context, profile *models.TutorProfile, expected models.VerificationState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.profiles[profile.ID]
	if !ok {
		return response.ErrNotFound
	}
	if cur.VerificationState != expected {
		return response.ErrInvalidStateTransition
	}
	m.profiles[profile.ID] = cloneProfile(profile)
	return nil
}

func (m *memStore) UpdateAvailability(_ context.Context, id string, availability []models.DayAvailability) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.profiles[id]
	if !ok {
		return response.ErrNotFound
	}
	p.Availability = slices.Clone(availability)
	return nil
}

func (m *memStore) UpdateVerificationState(_ context.Context, id string, from, to models.VerificationState, reason string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.profiles[id]
	if !ok {
		return response.ErrNotFound
	}
	if p.VerificationState != from {
		return response.ErrInvalidStateTransition
	}
	p.VerificationState = to
	p.RejectionReason = reason
	if to == models.StateVerified {
		p.VerifiedAt = &at
	}
	return nil
}

func (m *memStore) SearchTutors(_ context.Context, f models.TutorFilter) ([]*models.TutorProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*models.TutorProfile
	for _, p := range m.profiles {
		if owner, ok := m.users[p.OwnerUserID]; !ok || !owner.IsActive || !p.Searchable() {
			continue
		}
		if f.Subject != "" && !slices.ContainsFunc(p.Subjects, func(s models.Subject) bool {
			return strings.Contains(strings.ToLower(s.Name), strings.ToLower(f.Subject))
		}) {
			continue
		}
		if f.MinRate != nil && p.HourlyRate.LessThan(*f.MinRate) {
			continue
		}
		if f.MaxRate != nil && p.HourlyRate.GreaterThan(*f.MaxRate) {
			continue
		}
		switch f.TeachingMethod {
		case "online":
			if !p.TeachingMethods.Online {
				continue
			}
		case "inPerson":
			if !p.TeachingMethods.InPerson {
				continue
			}
		case "both":
			if !p.TeachingMethods.Online || !p.TeachingMethods.InPerson {
				continue
			}
		}
		if len(f.Days) > 0 && !slices.ContainsFunc(p.Availability, func(a models.DayAvailability) bool {
			return slices.Contains(f.Days, a.Day)
		}) {
			continue
		}
		out = append(out, m.withOwner(p))
	}
	return out, nil
}

func (m *memStore) ListTutorsByState(_ context.Context, state models.VerificationState) ([]*models.TutorProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*models.TutorProfile
	for _, p := range m.profiles {
		if p.VerificationState == state {
			out = append(out, m.withOwner(p))
		}
	}
	return out, nil
}

func (m *memStore) CreateReview(_ context.Context, review *models.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.profiles[review.TutorProfileID]
	if !ok {
		return response.ErrNotFound
	}
	for _, r := range m.reviews {
		if r.TutorProfileID == review.TutorProfileID && r.AuthorUserID == review.AuthorUserID {
			return response.ErrAlreadyExists
		}
	}

	review.ID = uuid.NewString()
	review.CreatedAt = time.Now()
	cp := *review
	m.reviews = append(m.reviews, &cp)
	p.Reviews = append(p.Reviews, cp)

	sum := decimal.Zero
	for _, r := range p.Reviews {
		sum = sum.Add(decimal.NewFromInt(int64(r.Rating)))
	}
	p.Rating = sum.Div(decimal.NewFromInt(int64(len(p.Reviews)))).Round(2)
	return nil
}

func (m *memStore) CreateBooking(_ context.Context, booking *models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}

	for _, b := range m.bookings {
		if booking.IdempotencyKey != nil && b.IdempotencyKey != nil &&
			b.StudentUserID == booking.StudentUserID && *b.IdempotencyKey == *booking.IdempotencyKey {
			return response.ErrAlreadyExists
		}
		if b.TutorProfileID == booking.TutorProfileID && b.Status == models.BookingScheduled &&
			overlaps(b.StartTime, b.EndTime, booking.StartTime, booking.EndTime) {
			return response.ErrSlotConflict
		}
	}

	booking.ID = uuid.NewString()
	booking.CreatedAt = time.Now()
	booking.UpdatedAt = booking.CreatedAt
	m.bookings[booking.ID] = cloneBooking(booking)
	return nil
}

func (m *memStore) GetBooking(_ context.Context, id string) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[id]
	if !ok {
		return nil, response.ErrNotFound
	}
	return cloneBooking(b), nil
}

func (m *memStore) GetBookingByIdempotencyKey(_ context.Context, studentUserID, key string) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, b := range m.bookings {
		if b.StudentUserID == studentUserID && b.IdempotencyKey != nil && *b.IdempotencyKey == key {
			return cloneBooking(b), nil
		}
	}
	return nil, response.ErrNotFound
}

func (m *memStore) ListBookings(_ context.Context, f models.BookingFilter) ([]*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*models.Booking
	for _, b := range m.bookings {
		if f.StudentUserID != nil && b.StudentUserID != *f.StudentUserID {
			continue
		}
		if f.TutorProfileID != nil && b.TutorProfileID != *f.TutorProfileID {
			continue
		}
		if f.Status != nil && b.Status != *f.Status {
			continue
		}
		if f.From != nil && !b.EndTime.After(*f.From) {
			continue
		}
		if f.To != nil && !b.StartTime.Before(*f.To) {
			continue
		}
		out = append(out, cloneBooking(b))
	}
	slices.SortFunc(out, func(a, b *models.Booking) int { return a.StartTime.Compare(b.StartTime) })
	return out, nil
}

func (m *memStore) UpdateBookingStatus(_ context.Context, id string, from, to models.BookingStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[id]
	if !ok {
		return response.ErrNotFound
	}
	if b.Status != from {
		return response.ErrInvalidStateTransition
	}
	b.Status = to
	b.UpdatedAt = at
	return nil
}

func (m *memStore) HasCompletedBooking(_ context.Context, studentUserID, tutorProfileID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, b := range m.bookings {
		if b.StudentUserID == studentUserID && b.TutorProfileID == tutorProfileID && b.Status == models.BookingCompleted {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) GetStats(_ context.Context) (*models.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := &models.Stats{TotalUsers: len(m.users), TotalEarnings: decimal.Zero}
	for _, u := range m.users {
		switch u.Role {
		case models.RoleTutor:
			st.TotalTutors++
		case models.RoleStudent:
			st.TotalStudents++
		}
	}
	for _, p := range m.profiles {
		if p.VerificationState == models.StatePending {
			st.PendingVerifications++
		}
	}
	for _, b := range m.bookings {
		switch b.Status {
		case models.BookingScheduled:
			st.ScheduledSessions++
		case models.BookingCompleted:
			st.CompletedSessions++
			st.TotalEarnings = st.TotalEarnings.Add(b.Price)
		}
	}
	return st, nil
}
