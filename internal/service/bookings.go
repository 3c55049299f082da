package service

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"tutor-service/internal/events"
	"tutor-service/internal/lock"
	"tutor-service/internal/models"
	"tutor-service/pkg/response"
	"tutor-service/pkg/sl"
)

const (
	maxNotesLength = 500
	maxSlotDays    = 31
)

type BookingRequest struct {
	TutorProfileID  string
	StudentUserID   string
	Subject         string
	StartTime       time.Time
	DurationMinutes int
	Notes           string
	IdempotencyKey  *string
}

func (s *Service) validateBookingRequest(req *BookingRequest) error {
	var fields []string

	if strings.TrimSpace(req.TutorProfileID) == "" {
		fields = append(fields, "tutorId is required")
	}
	if strings.TrimSpace(req.StudentUserID) == "" {
		fields = append(fields, "studentUserId is required")
	}
	if strings.TrimSpace(req.Subject) == "" {
		fields = append(fields, "subject is required")
	}
	if !validDuration(req.DurationMinutes) {
		fields = append(fields, fmt.Sprintf("durationMinutes must be one of %v", allowedDurations))
	}
	if req.StartTime.IsZero() {
		fields = append(fields, "startTime is required")
	} else if !req.StartTime.After(s.now()) {
		fields = append(fields, "startTime must be in the future")
	}
	if utf8.RuneCountInString(req.Notes) > maxNotesLength {
		fields = append(fields, fmt.Sprintf("notes must be at most %d characters", maxNotesLength))
	}

	if len(fields) > 0 {
		return response.NewValidationError(fields...)
	}
	return nil
}

// CreateBooking validates req against the tutor's availability and persists a scheduled booking.
// created is false when an earlier booking with the same idempotency key is returned instead.
func (s *Service) CreateBooking(ctx context.Context, req *BookingRequest) (booking *models.Booking, created bool, err error) {
	const op = "service.CreateBooking"

	if err := s.validateBookingRequest(req); err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	if _, err := s.requireRole(ctx, req.StudentUserID, models.RoleStudent); err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	if req.IdempotencyKey != nil {
		existing, err := s.store.GetBookingByIdempotencyKey(ctx, req.StudentUserID, *req.IdempotencyKey)
		if err == nil {
			return existing, false, nil
		}
		if !errors.Is(err, response.ErrNotFound) {
			return nil, false, fmt.Errorf("%s: %w", op, err)
		}
	}

	tutor, err := s.store.GetTutorProfile(ctx, req.TutorProfileID)
	if err != nil {
		return nil, false, fmt.Errorf("%s: tutor %s: %w", op, req.TutorProfileID, err)
	}
	if !tutor.Searchable() {
		return nil, false, fmt.Errorf("%s: tutor %s is %s: %w", op, tutor.ID, tutor.VerificationState, response.ErrNotEligible)
	}
	if !tutor.OwnerActive {
		return nil, false, fmt.Errorf("%s: tutor %s owner is deactivated: %w", op, tutor.ID, response.ErrNotEligible)
	}

	if !tutor.Teaches(req.Subject) {
		return nil, false, fmt.Errorf("%s: %q: %w", op, req.Subject, response.ErrInvalidSubject)
	}

	start := req.StartTime
	end := start.Add(time.Duration(req.DurationMinutes) * time.Minute)

	if !withinAvailability(tutor.Availability, start, end, s.opts.Location) {
		return nil, false, fmt.Errorf("%s: %w", op, response.ErrOutsideAvailability)
	}

	release, err := lock.Acquire(ctx, s.locker, "tutor:"+tutor.ID, s.opts.LockTTL, s.opts.LockWait)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return nil, false, fmt.Errorf("%s: %w", op, response.ErrLocked)
		}
		return nil, false, fmt.Errorf("%s: %w: %w", op, response.ErrServer, err)
	}

	booking = &models.Booking{
		StudentUserID:  req.StudentUserID,
		TutorProfileID: tutor.ID,
		Subject:        canonicalSubject(tutor, req.Subject),
		StartTime:      start.UTC(),
		EndTime:        end.UTC(),
		Price:          computePrice(tutor.HourlyRate, req.DurationMinutes),
		Notes:          strings.TrimSpace(req.Notes),
		Status:         models.BookingScheduled,
		IdempotencyKey: req.IdempotencyKey,
	}

	err = s.store.CreateBooking(ctx, booking)
	if relErr := release(context.WithoutCancel(ctx)); relErr != nil {
		s.log.Warn("Failed to release tutor lock", slog.String("tutor_profile_id", tutor.ID), sl.Err(relErr))
	}
	if err != nil {
		if errors.Is(err, response.ErrAlreadyExists) && req.IdempotencyKey != nil {
			existing, getErr := s.store.GetBookingByIdempotencyKey(ctx, req.StudentUserID, *req.IdempotencyKey)
			if getErr == nil {
				return existing, false, nil
			}
		}
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("Booking created",
		slog.String("booking_id", booking.ID),
		slog.String("tutor_profile_id", booking.TutorProfileID),
		slog.String("price", booking.Price.StringFixed(2)),
	)

	s.publish(ctx, events.Event{
		Type:           events.BookingCreated,
		BookingID:      booking.ID,
		TutorProfileID: booking.TutorProfileID,
		StudentUserID:  booking.StudentUserID,
		StartsAt:       &booking.StartTime,
		EndsAt:         &booking.EndTime,
	})

	return booking, true, nil
}

func canonicalSubject(tutor *models.TutorProfile, subject string) string {
	for _, sub := range tutor.Subjects {
		if strings.EqualFold(strings.TrimSpace(sub.Name), strings.TrimSpace(subject)) {
			return sub.Name
		}
	}
	return subject
}

// CancelBooking frees a scheduled future booking. Only the owning student may cancel.
func (s *Service) CancelBooking(ctx context.Context, bookingID, requestingUserID string) (*models.Booking, error) {
	const op = "service.CancelBooking"

	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !booking.StartTime.After(s.now()) {
		return nil, fmt.Errorf("%s: %w", op, response.ErrAlreadyPast)
	}

	if booking.StudentUserID != requestingUserID {
		return nil, fmt.Errorf("%s: %w", op, response.ErrForbidden)
	}

	if booking.Status != models.BookingScheduled {
		return nil, fmt.Errorf("%s: booking is %s: %w", op, booking.Status, response.ErrInvalidStateTransition)
	}

	now := s.now()
	if err := s.store.UpdateBookingStatus(ctx, bookingID, models.BookingScheduled, models.BookingCancelled, now); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	booking.Status = models.BookingCancelled
	booking.UpdatedAt = now

	s.publish(ctx, events.Event{
		Type:           events.BookingCancelled,
		BookingID:      booking.ID,
		TutorProfileID: booking.TutorProfileID,
		StudentUserID:  booking.StudentUserID,
		ActorUserID:    requestingUserID,
		StartsAt:       &booking.StartTime,
		EndsAt:         &booking.EndTime,
	})

	return booking, nil
}

// CompleteBooking lets the booked tutor close a session once it has ended.
func (s *Service) CompleteBooking(ctx context.Context, bookingID, tutorUserID string) (*models.Booking, error) {
	const op = "service.CompleteBooking"

	if _, err := s.requireRole(ctx, tutorUserID, models.RoleTutor); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	profile, err := s.store.GetTutorProfileByOwner(ctx, tutorUserID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if booking.TutorProfileID != profile.ID {
		return nil, fmt.Errorf("%s: %w", op, response.ErrForbidden)
	}

	if booking.Status != models.BookingScheduled {
		return nil, fmt.Errorf("%s: booking is %s: %w", op, booking.Status, response.ErrInvalidStateTransition)
	}
	if booking.EndTime.After(s.now()) {
		return nil, fmt.Errorf("%s: session has not ended: %w", op, response.ErrInvalidStateTransition)
	}

	now := s.now()
	if err := s.store.UpdateBookingStatus(ctx, bookingID, models.BookingScheduled, models.BookingCompleted, now); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	booking.Status = models.BookingCompleted
	booking.UpdatedAt = now

	s.publish(ctx, events.Event{
		Type:           events.BookingCompleted,
		BookingID:      booking.ID,
		TutorProfileID: booking.TutorProfileID,
		StudentUserID:  booking.StudentUserID,
		ActorUserID:    tutorUserID,
	})

	return booking, nil
}

// GetBooking returns a booking visible to its student, its tutor or an admin.
func (s *Service) GetBooking(ctx context.Context, bookingID, requestingUserID string) (*models.Booking, error) {
	const op = "service.GetBooking"

	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if booking.StudentUserID == requestingUserID {
		return booking, nil
	}

	user, err := s.requireRole(ctx, requestingUserID, models.RoleTutor, models.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if user.Role == models.RoleAdmin {
		return booking, nil
	}

	profile, err := s.store.GetTutorProfileByOwner(ctx, user.ID)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrForbidden)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if profile.ID != booking.TutorProfileID {
		return nil, fmt.Errorf("%s: %w", op, response.ErrForbidden)
	}

	return booking, nil
}

func (s *Service) ListStudentBookings(ctx context.Context, studentUserID string, status *models.BookingStatus) ([]*models.Booking, error) {
	const op = "service.ListStudentBookings"

	if status != nil && !status.Valid() {
		return nil, fmt.Errorf("%s: %w", op, response.NewValidationError("status is invalid"))
	}

	bookings, err := s.store.ListBookings(ctx, models.BookingFilter{StudentUserID: &studentUserID, Status: status})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return bookings, nil
}

// ListTutorBookings is open to the tutor owning the profile and to admins.
func (s *Service) ListTutorBookings(ctx context.Context, tutorProfileID, requestingUserID string, status *models.BookingStatus) ([]*models.Booking, error) {
	const op = "service.ListTutorBookings"

	if status != nil && !status.Valid() {
		return nil, fmt.Errorf("%s: %w", op, response.NewValidationError("status is invalid"))
	}

	user, err := s.requireRole(ctx, requestingUserID, models.RoleTutor, models.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	profile, err := s.store.GetTutorProfile(ctx, tutorProfileID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if user.Role != models.RoleAdmin && profile.OwnerUserID != user.ID {
		return nil, fmt.Errorf("%s: %w", op, response.ErrForbidden)
	}

	bookings, err := s.store.ListBookings(ctx, models.BookingFilter{TutorProfileID: &profile.ID, Status: status})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return bookings, nil
}

// ListAvailableSlots returns the open intervals of a bookable tutor between the calendar dates
// from and to, inclusive, in the service location.
func (s *Service) ListAvailableSlots(ctx context.Context, tutorProfileID string, from, to time.Time) (iter.Seq[models.Slot], error) {
	const op = "service.ListAvailableSlots"

	loc := s.opts.Location
	fromDay := truncateToDate(from, loc)
	toDay := truncateToDate(to, loc)

	if toDay.Before(fromDay) {
		return nil, fmt.Errorf("%s: %w", op, response.NewValidationError("to must not be before from"))
	}
	if !toDay.Before(fromDay.AddDate(0, 0, maxSlotDays)) {
		return nil, fmt.Errorf("%s: %w", op, response.NewValidationError("date range must not exceed 31 days"))
	}

	tutor, err := s.store.GetTutorProfile(ctx, tutorProfileID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !tutor.Searchable() || !tutor.OwnerActive {
		return nil, fmt.Errorf("%s: %w", op, response.ErrNotEligible)
	}

	scheduled := models.BookingScheduled
	rangeEnd := toDay.AddDate(0, 0, 1)

	bookings, err := s.store.ListBookings(ctx, models.BookingFilter{
		TutorProfileID: &tutor.ID,
		Status:         &scheduled,
		From:           &fromDay,
		To:             &rangeEnd,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	booked := make([]models.Booking, 0, len(bookings))
	for _, b := range bookings {
		booked = append(booked, *b)
	}

	return openSlots(tutor.ID, tutor.Availability, booked, fromDay, toDay, loc, s.now()), nil
}
