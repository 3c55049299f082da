package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"tutor-service/internal/events"
	"tutor-service/internal/models"
	"tutor-service/pkg/response"
	"tutor-service/pkg/sl"
)

type ProfileData struct {
	Subjects           []models.Subject
	Education          []models.Education
	Experience         models.Experience
	HourlyRate         decimal.Decimal
	Availability       []models.DayAvailability
	TeachingMethods    models.TeachingMethods
	Location           models.Location
	CertificationFiles []string
}

func (s *Service) validateProfile(data *ProfileData) error {
	var fields []string

	if len(data.Subjects) == 0 {
		fields = append(fields, "subjects: at least one subject is required")
	}
	for i, sub := range data.Subjects {
		if strings.TrimSpace(sub.Name) == "" {
			fields = append(fields, fmt.Sprintf("subjects[%d].name is required", i))
		}
		if !sub.Level.Valid() {
			fields = append(fields, fmt.Sprintf("subjects[%d].level must be beginner, intermediate or advanced", i))
		}
	}

	if len(data.Education) == 0 {
		fields = append(fields, "education: at least one entry is required")
	}
	for i, ed := range data.Education {
		if strings.TrimSpace(ed.Degree) == "" {
			fields = append(fields, fmt.Sprintf("education[%d].degree is required", i))
		}
		if strings.TrimSpace(ed.Institution) == "" {
			fields = append(fields, fmt.Sprintf("education[%d].institution is required", i))
		}
		if ed.YearCompleted != 0 && (ed.YearCompleted < 1900 || ed.YearCompleted > s.now().Year()+10) {
			fields = append(fields, fmt.Sprintf("education[%d].yearCompleted is invalid", i))
		}
	}

	if !data.HourlyRate.IsPositive() {
		fields = append(fields, "hourlyRate must be positive")
	} else if data.HourlyRate.LessThan(s.opts.MinHourlyRate) {
		fields = append(fields, fmt.Sprintf("hourlyRate must be at least %s", s.opts.MinHourlyRate.String()))
	}

	if !data.TeachingMethods.Online && !data.TeachingMethods.InPerson {
		fields = append(fields, "teachingMethods: online or inPerson is required")
	}

	if data.Experience.Years < 0 {
		fields = append(fields, "experience.years must not be negative")
	}

	fields = append(fields, validateAvailability(data.Availability)...)

	if len(fields) > 0 {
		return response.NewValidationError(fields...)
	}
	return nil
}

// SubmitProfile stores the tutor's full profile and moves it into review.
//
// incomplete, rejected -> pending. pending stays pending. verified stays verified unless
// subjects or education changed, in which case it returns to pending.
func (s *Service) SubmitProfile(ctx context.Context, tutorUserID string, data *ProfileData) (*models.TutorProfile, error) {
	const op = "service.SubmitProfile"

	if _, err := s.requireRole(ctx, tutorUserID, models.RoleTutor); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.validateProfile(data); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	profile, err := s.store.GetTutorProfileByOwner(ctx, tutorUserID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	prevState := profile.VerificationState
	credentialsChanged := !slices.Equal(profile.Subjects, data.Subjects) || !slices.Equal(profile.Education, data.Education)

	next := prevState
	switch prevState {
	case models.StateIncomplete, models.StateRejected:
		next = models.StatePending
	case models.StateVerified:
		if credentialsChanged {
			next = models.StatePending
		}
	}

	now := s.now()

	profile.Subjects = data.Subjects
	profile.Education = data.Education
	profile.Experience = data.Experience
	profile.HourlyRate = data.HourlyRate
	profile.Availability = data.Availability
	profile.TeachingMethods = data.TeachingMethods
	profile.Location = data.Location
	profile.CertificationFiles = data.CertificationFiles
	profile.ProfileCompleted = true
	profile.VerificationState = next
	profile.UpdatedAt = now

	if next == models.StatePending && prevState != models.StatePending {
		profile.SubmittedAt = &now
		profile.VerifiedAt = nil
		profile.RejectionReason = ""
	}

	if err := s.store.SaveTutorProfile(ctx, profile, prevState); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.invalidateSearch(ctx)

	if next != prevState {
		s.log.Info("Tutor profile submitted for review",
			slog.String("tutor_profile_id", profile.ID),
			slog.String("from", string(prevState)),
		)

		s.publish(ctx, events.Event{
			Type:           events.TutorSubmitted,
			TutorProfileID: profile.ID,
			ActorUserID:    tutorUserID,
		})
	}

	return profile, nil
}

// UpdateAvailability replaces the weekly availability without touching the verification state.
func (s *Service) UpdateAvailability(ctx context.Context, tutorUserID string, availability []models.DayAvailability) (*models.TutorProfile, error) {
	const op = "service.UpdateAvailability"

	if _, err := s.requireRole(ctx, tutorUserID, models.RoleTutor); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if problems := validateAvailability(availability); len(problems) > 0 {
		return nil, fmt.Errorf("%s: %w", op, response.NewValidationError(problems...))
	}

	profile, err := s.store.GetTutorProfileByOwner(ctx, tutorUserID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.store.UpdateAvailability(ctx, profile.ID, availability); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	profile.Availability = availability
	s.invalidateSearch(ctx)

	return profile, nil
}

func (s *Service) GetOwnProfile(ctx context.Context, tutorUserID string) (*models.TutorProfile, error) {
	const op = "service.GetOwnProfile"

	profile, err := s.store.GetTutorProfileByOwner(ctx, tutorUserID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return profile, nil
}

// GetTutor returns a profile with owner names and reviews. Profiles that are not publicly
// searchable are visible only to their owner and to admins; requestingUserID may be empty.
func (s *Service) GetTutor(ctx context.Context, tutorProfileID, requestingUserID string) (*models.TutorProfile, error) {
	const op = "service.GetTutor"

	profile, err := s.store.GetTutorProfile(ctx, tutorProfileID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if profile.Searchable() || (requestingUserID != "" && profile.OwnerUserID == requestingUserID) {
		return profile, nil
	}

	if requestingUserID != "" {
		if _, err := s.requireRole(ctx, requestingUserID, models.RoleAdmin); err == nil {
			return profile, nil
		}
	}

	return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
}

var teachingMethodFilters = []string{"", "all", "online", "inPerson", "both"}

func cacheKey(f models.TutorFilter) string {
	days := slices.Clone(f.Days)
	slices.Sort(days)

	var minRate, maxRate string
	if f.MinRate != nil {
		minRate = f.MinRate.String()
	}
	if f.MaxRate != nil {
		maxRate = f.MaxRate.String()
	}

	return fmt.Sprintf("s=%s|min=%s|max=%s|tm=%s|d=%s",
		strings.ToLower(strings.TrimSpace(f.Subject)), minRate, maxRate, f.TeachingMethod, strings.Join(days, ","))
}

// SearchTutors lists verified, completed profiles matching filter.
func (s *Service) SearchTutors(ctx context.Context, filter models.TutorFilter) ([]*models.TutorProfile, error) {
	const op = "service.SearchTutors"

	filter.Days = slices.Clone(filter.Days)

	var fields []string
	if !slices.Contains(teachingMethodFilters, filter.TeachingMethod) {
		fields = append(fields, "teachingMethod must be all, online, inPerson or both")
	}
	for i, d := range filter.Days {
		wd, ok := parseWeekday(d)
		if !ok {
			fields = append(fields, fmt.Sprintf("availability day '%s' is not a weekday", d))
			continue
		}
		filter.Days[i] = wd.String()
	}
	if filter.MinRate != nil && filter.MaxRate != nil && filter.MinRate.GreaterThan(*filter.MaxRate) {
		fields = append(fields, "minRate must not exceed maxRate")
	}
	if len(fields) > 0 {
		return nil, fmt.Errorf("%s: %w", op, response.NewValidationError(fields...))
	}

	key := cacheKey(filter)
	if data, ok := s.cache.Get(ctx, key); ok {
		var cached []*models.TutorProfile
		if err := json.Unmarshal(data, &cached); err == nil {
			return cached, nil
		}
	}

	tutors, err := s.store.SearchTutors(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if data, err := json.Marshal(tutors); err == nil {
		s.cache.Set(ctx, key, data)
	} else {
		s.log.Warn("Failed to encode search results for cache", sl.Err(err))
	}

	return tutors, nil
}

// AddReview records a student's rating of a tutor they completed a session with.
func (s *Service) AddReview(ctx context.Context, tutorProfileID, studentUserID string, rating int, comment string) (*models.Review, error) {
	const op = "service.AddReview"

	student, err := s.requireRole(ctx, studentUserID, models.RoleStudent)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var fields []string
	if rating < 1 || rating > 5 {
		fields = append(fields, "rating must be between 1 and 5")
	}
	if len([]rune(comment)) > 1000 {
		fields = append(fields, "comment must be at most 1000 characters")
	}
	if len(fields) > 0 {
		return nil, fmt.Errorf("%s: %w", op, response.NewValidationError(fields...))
	}

	tutor, err := s.store.GetTutorProfile(ctx, tutorProfileID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ok, err := s.store.HasCompletedBooking(ctx, studentUserID, tutor.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: no completed session with tutor: %w", op, response.ErrForbidden)
	}

	review := &models.Review{
		TutorProfileID: tutor.ID,
		AuthorUserID:   studentUserID,
		AuthorName:     strings.TrimSpace(student.FirstName + " " + student.LastName),
		Rating:         rating,
		Comment:        strings.TrimSpace(comment),
	}

	if err := s.store.CreateReview(ctx, review); err != nil {
		if errors.Is(err, response.ErrAlreadyExists) {
			return nil, fmt.Errorf("%s: student already reviewed tutor: %w", op, err)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.invalidateSearch(ctx)

	return review, nil
}
