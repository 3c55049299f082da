package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tutor-service/internal/models"
	"tutor-service/pkg/response"
)

type SignupRequest struct {
	Email     string      `json:"email" validate:"omitempty,email"`
	FirstName string      `json:"firstName" validate:"required,max=100"`
	LastName  string      `json:"lastName" validate:"required,max=100"`
	Phone     string      `json:"phone" validate:"max=32"`
	Role      models.Role `json:"role"`
}

type UserResponse struct {
	ID             string      `json:"id"`
	Email          string      `json:"email"`
	FirstName      string      `json:"firstName"`
	LastName       string      `json:"lastName"`
	Phone          string      `json:"phone,omitempty"`
	Role           models.Role `json:"role"`
	IsActive       bool        `json:"isActive"`
	LastLogin      *time.Time  `json:"lastLogin,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
	TutorProfileID string      `json:"tutorProfileId,omitempty"`
}

func FromUser(u *models.User, tutorProfileID string) UserResponse {
	return UserResponse{
		ID:             u.ID,
		Email:          u.Email,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		Phone:          u.Phone,
		Role:           u.Role,
		IsActive:       u.IsActive,
		LastLogin:      u.LastLogin,
		CreatedAt:      u.CreatedAt,
		TutorProfileID: tutorProfileID,
	}
}

type SetActiveRequest struct {
	IsActive *bool `json:"isActive" validate:"required"`
}

// ProfileRequest is the full profile submitted by a tutor. Field rules are enforced by the service.
type ProfileRequest struct {
	Subjects           []models.Subject         `json:"subjects"`
	Education          []models.Education       `json:"education"`
	Experience         models.Experience        `json:"experience"`
	HourlyRate         decimal.Decimal          `json:"hourlyRate"`
	Availability       []models.DayAvailability `json:"availability"`
	TeachingMethods    models.TeachingMethods   `json:"teachingMethods"`
	Location           models.Location          `json:"location"`
	CertificationFiles []string                 `json:"certificationFiles" validate:"max=20,dive,url"`
}

type AvailabilityRequest struct {
	Availability []models.DayAvailability `json:"availability" validate:"required"`
}

type ReviewResponse struct {
	ID         string    `json:"id"`
	AuthorID   string    `json:"authorId"`
	AuthorName string    `json:"authorName"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

func FromReview(r *models.Review) ReviewResponse {
	return ReviewResponse{
		ID:         r.ID,
		AuthorID:   r.AuthorUserID,
		AuthorName: r.AuthorName,
		Rating:     r.Rating,
		Comment:    r.Comment,
		CreatedAt:  r.CreatedAt,
	}
}

type TutorResponse struct {
	ID                 string                   `json:"id"`
	UserID             string                   `json:"userId"`
	FirstName          string                   `json:"firstName"`
	LastName           string                   `json:"lastName"`
	Subjects           []models.Subject         `json:"subjects"`
	Education          []models.Education       `json:"education"`
	Experience         models.Experience        `json:"experience"`
	HourlyRate         decimal.Decimal          `json:"hourlyRate"`
	Availability       []models.DayAvailability `json:"availability"`
	TeachingMethods    models.TeachingMethods   `json:"teachingMethods"`
	Location           models.Location          `json:"location"`
	CertificationFiles []string                 `json:"certificationFiles"`
	ProfileCompleted   bool                     `json:"profileCompleted"`
	VerificationState  models.VerificationState `json:"verificationState"`
	IsVerified         bool                     `json:"isVerified"`
	RejectionReason    string                   `json:"rejectionReason,omitempty"`
	Rating             decimal.Decimal          `json:"rating"`
	Reviews            []ReviewResponse         `json:"reviews,omitempty"`
	SubmittedAt        *time.Time               `json:"submittedAt,omitempty"`
	VerifiedAt         *time.Time               `json:"verifiedAt,omitempty"`
}

func FromTutor(p *models.TutorProfile) TutorResponse {
	reviews := make([]ReviewResponse, 0, len(p.Reviews))
	for i := range p.Reviews {
		reviews = append(reviews, FromReview(&p.Reviews[i]))
	}

	return TutorResponse{
		ID:                 p.ID,
		UserID:             p.OwnerUserID,
		FirstName:          p.OwnerFirstName,
		LastName:           p.OwnerLastName,
		Subjects:           nonNil(p.Subjects),
		Education:          nonNil(p.Education),
		Experience:         p.Experience,
		HourlyRate:         p.HourlyRate,
		Availability:       nonNil(p.Availability),
		TeachingMethods:    p.TeachingMethods,
		Location:           p.Location,
		CertificationFiles: nonNil(p.CertificationFiles),
		ProfileCompleted:   p.ProfileCompleted,
		VerificationState:  p.VerificationState,
		IsVerified:         p.VerificationState == models.StateVerified,
		RejectionReason:    p.RejectionReason,
		Rating:             p.Rating,
		Reviews:            reviews,
		SubmittedAt:        p.SubmittedAt,
		VerifiedAt:         p.VerifiedAt,
	}
}

func FromTutors(ps []*models.TutorProfile) []TutorResponse {
	out := make([]TutorResponse, 0, len(ps))
	for _, p := range ps {
		out = append(out, FromTutor(p))
	}
	return out
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// BookingRequest takes either an absolute interval (startTime and endTime in RFC 3339) or a
// local date, "HH:MM" start time and durationMinutes.
type BookingRequest struct {
	TutorID         string `json:"tutorId" validate:"required"`
	Subject         string `json:"subject" validate:"required"`
	Date            string `json:"date"`
	StartTime       string `json:"startTime" validate:"required"`
	EndTime         string `json:"endTime"`
	DurationMinutes int    `json:"durationMinutes"`
	Notes           string `json:"notes" validate:"max=500"`
}

// Interval resolves the requested start and duration. Local dates and times are read in loc.
func (r *BookingRequest) Interval(loc *time.Location) (time.Time, int, error) {
	if r.EndTime != "" || r.Date == "" {
		start, err := time.Parse(time.RFC3339, r.StartTime)
		if err != nil {
			return time.Time{}, 0, response.NewValidationError("startTime must be RFC 3339 when date is not given")
		}

		if r.EndTime == "" {
			return start, r.DurationMinutes, nil
		}

		end, err := time.Parse(time.RFC3339, r.EndTime)
		if err != nil {
			return time.Time{}, 0, response.NewValidationError("endTime must be RFC 3339")
		}

		d := end.Sub(start)
		if d <= 0 || d%time.Minute != 0 {
			return time.Time{}, 0, response.NewValidationError("endTime must be a whole number of minutes after startTime")
		}
		return start, int(d / time.Minute), nil
	}

	start, err := time.ParseInLocation("2006-01-02 15:04", r.Date+" "+strings.TrimSpace(r.StartTime), loc)
	if err != nil {
		return time.Time{}, 0, response.NewValidationError(fmt.Sprintf("date %q and startTime %q must be YYYY-MM-DD and HH:MM", r.Date, r.StartTime))
	}
	return start, r.DurationMinutes, nil
}

type BookingResponse struct {
	ID              string               `json:"id"`
	StudentID       string               `json:"studentId"`
	TutorID         string               `json:"tutorId"`
	Subject         string               `json:"subject"`
	StartTime       time.Time            `json:"startTime"`
	EndTime         time.Time            `json:"endTime"`
	DurationMinutes int                  `json:"durationMinutes"`
	Price           string               `json:"price"`
	Notes           string               `json:"notes,omitempty"`
	Status          models.BookingStatus `json:"status"`
	CreatedAt       time.Time            `json:"createdAt"`
	UpdatedAt       time.Time            `json:"updatedAt"`
}

func FromBooking(b *models.Booking) BookingResponse {
	return BookingResponse{
		ID:              b.ID,
		StudentID:       b.StudentUserID,
		TutorID:         b.TutorProfileID,
		Subject:         b.Subject,
		StartTime:       b.StartTime,
		EndTime:         b.EndTime,
		DurationMinutes: b.DurationMinutes(),
		Price:           b.Price.StringFixed(2),
		Notes:           b.Notes,
		Status:          b.Status,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}

func FromBookings(bs []*models.Booking) []BookingResponse {
	out := make([]BookingResponse, 0, len(bs))
	for _, b := range bs {
		out = append(out, FromBooking(b))
	}
	return out
}

type SlotResponse struct {
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	DurationMinutes int       `json:"durationMinutes"`
}

func FromSlot(s models.Slot) SlotResponse {
	return SlotResponse{
		Start:           s.Start,
		End:             s.End,
		DurationMinutes: int(s.End.Sub(s.Start) / time.Minute),
	}
}

type ReviewRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=1000"`
}

// VerifyRequest carries TutorID only on the body-addressed route.
type VerifyRequest struct {
	TutorID string `json:"tutorId"`
	Action  string `json:"action" validate:"required"`
	Reason  string `json:"reason" validate:"max=1000"`
}

type StatsResponse struct {
	TotalUsers           int             `json:"totalUsers"`
	TotalTutors          int             `json:"totalTutors"`
	TotalStudents        int             `json:"totalStudents"`
	PendingVerifications int             `json:"pendingVerifications"`
	ScheduledSessions    int             `json:"scheduledSessions"`
	CompletedSessions    int             `json:"completedSessions"`
	TotalEarnings        decimal.Decimal `json:"totalEarnings"`
}

func FromStats(s *models.Stats) StatsResponse {
	return StatsResponse{
		TotalUsers:           s.TotalUsers,
		TotalTutors:          s.TotalTutors,
		TotalStudents:        s.TotalStudents,
		PendingVerifications: s.PendingVerifications,
		ScheduledSessions:    s.ScheduledSessions,
		CompletedSessions:    s.CompletedSessions,
		TotalEarnings:        s.TotalEarnings,
	}
}

// ParseStatus reads an optional booking status filter.
func ParseStatus(raw string) (*models.BookingStatus, error) {
	if raw == "" {
		return nil, nil
	}
	st := models.BookingStatus(raw)
	if !st.Valid() {
		return nil, response.NewValidationError(fmt.Sprintf("status %q must be scheduled, cancelled or completed", raw))
	}
	return &st, nil
}
