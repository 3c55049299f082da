package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleStudent Role = "student"
	RoleTutor   Role = "tutor"
	RoleAdmin   Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleTutor, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID          string     `db:"id"`
	FirebaseUID string     `db:"firebase_uid"`
	Email       string     `db:"email"`
	FirstName   string     `db:"first_name"`
	LastName    string     `db:"last_name"`
	Phone       string     `db:"phone"`
	Role        Role       `db:"role"`
	IsActive    bool       `db:"is_active"`
	LastLogin   *time.Time `db:"last_login"`
	CreatedAt   time.Time  `db:"created_at"`
}

type SubjectLevel string

const (
	LevelBeginner     SubjectLevel = "beginner"
	LevelIntermediate SubjectLevel = "intermediate"
	LevelAdvanced     SubjectLevel = "advanced"
)

func (l SubjectLevel) Valid() bool {
	switch l {
	case LevelBeginner, LevelIntermediate, LevelAdvanced:
		return true
	}
	return false
}

type Subject struct {
	Name  string       `json:"name"`
	Level SubjectLevel `json:"level"`
}

type Education struct {
	Degree        string `json:"degree"`
	Institution   string `json:"institution"`
	YearCompleted int    `json:"yearCompleted,omitempty"`
}

// TimeRange is a wall-clock window, "HH:MM" on both ends.
type TimeRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// DayAvailability is a recurring weekly window set; Day is an English weekday name.
type DayAvailability struct {
	Day   string      `json:"day"`
	Slots []TimeRange `json:"slots"`
}

type TeachingMethods struct {
	Online   bool `json:"online"`
	InPerson bool `json:"inPerson"`
}

type Experience struct {
	Years       int    `json:"years"`
	Description string `json:"description,omitempty"`
}

type Location struct {
	Address string `json:"address,omitempty"`
	City    string `json:"city,omitempty"`
	Country string `json:"country,omitempty"`
}

type VerificationState string

const (
	StateIncomplete VerificationState = "incomplete"
	StatePending    VerificationState = "pending"
	StateVerified   VerificationState = "verified"
	StateRejected   VerificationState = "rejected"
)

type TutorProfile struct {
	ID                 string
	OwnerUserID        string
	OwnerFirstName     string
	OwnerLastName      string
	OwnerActive        bool
	Subjects           []Subject
	Education          []Education
	Experience         Experience
	HourlyRate         decimal.Decimal
	Availability       []DayAvailability
	TeachingMethods    TeachingMethods
	Location           Location
	CertificationFiles []string
	ProfileCompleted   bool
	VerificationState  VerificationState
	RejectionReason    string
	Rating             decimal.Decimal
	Reviews            []Review
	SubmittedAt        *time.Time
	VerifiedAt         *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Teaches reports whether the tutor lists the subject, case-insensitively.
func (p *TutorProfile) Teaches(subject string) bool {
	for _, s := range p.Subjects {
		if strings.EqualFold(strings.TrimSpace(s.Name), strings.TrimSpace(subject)) {
			return true
		}
	}
	return false
}

// Searchable is the public-search visibility rule.
func (p *TutorProfile) Searchable() bool {
	return p.VerificationState == StateVerified && p.ProfileCompleted
}

type Review struct {
	ID             string    `db:"id"`
	TutorProfileID string    `db:"tutor_profile_id"`
	AuthorUserID   string    `db:"author_user_id"`
	AuthorName     string    `db:"author_name"`
	Rating         int       `db:"rating"`
	Comment        string    `db:"comment"`
	CreatedAt      time.Time `db:"created_at"`
}

type BookingStatus string

const (
	BookingScheduled BookingStatus = "scheduled"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
)

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingScheduled, BookingCancelled, BookingCompleted:
		return true
	}
	return false
}

type Booking struct {
	ID             string          `db:"id"`
	StudentUserID  string          `db:"student_user_id"`
	TutorProfileID string          `db:"tutor_profile_id"`
	Subject        string          `db:"subject"`
	StartTime      time.Time       `db:"start_time"`
	EndTime        time.Time       `db:"end_time"`
	Price          decimal.Decimal `db:"price"`
	Notes          string          `db:"notes"`
	Status         BookingStatus   `db:"status"`
	IdempotencyKey *string         `db:"idempotency_key"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

func (b *Booking) DurationMinutes() int {
	return int(b.EndTime.Sub(b.StartTime) / time.Minute)
}

// Slot is an open, bookable interval of a tutor's time.
type Slot struct {
	TutorProfileID string
	Start          time.Time
	End            time.Time
}

type TutorFilter struct {
	Subject        string
	MinRate        *decimal.Decimal
	MaxRate        *decimal.Decimal
	TeachingMethod string
	Days           []string
}

type BookingFilter struct {
	StudentUserID  *string
	TutorProfileID *string
	Status         *BookingStatus
	From           *time.Time
	To             *time.Time
}

type Stats struct {
	TotalUsers           int             `db:"total_users"`
	TotalTutors          int             `db:"total_tutors"`
	TotalStudents        int             `db:"total_students"`
	PendingVerifications int             `db:"pending_verifications"`
	ScheduledSessions    int             `db:"scheduled_sessions"`
	CompletedSessions    int             `db:"completed_sessions"`
	TotalEarnings        decimal.Decimal `db:"total_earnings"`
}
