package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"tutor-service/internal/models"
	"tutor-service/pkg/response"
)

type RegisterRequest struct {
	FirebaseUID string
	Email       string
	FirstName   string
	LastName    string
	Phone       string
	Role        models.Role
}

// RegisterUser creates the directory record for a verified identity. Role is fixed from here on:
// only student and tutor may be requested, admin comes from the configured admin emails.
func (s *Service) RegisterUser(ctx context.Context, req *RegisterRequest) (*models.User, error) {
	const op = "service.RegisterUser"

	var fields []string
	if strings.TrimSpace(req.FirebaseUID) == "" {
		fields = append(fields, "identity uid is required")
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		fields = append(fields, "email is invalid")
	}
	if strings.TrimSpace(req.FirstName) == "" {
		fields = append(fields, "firstName is required")
	}
	if strings.TrimSpace(req.LastName) == "" {
		fields = append(fields, "lastName is required")
	}

	role := req.Role
	if role == "" {
		role = models.RoleStudent
	}
	if role != models.RoleStudent && role != models.RoleTutor {
		fields = append(fields, "role must be student or tutor")
	}
	if len(fields) > 0 {
		return nil, fmt.Errorf("%s: %w", op, response.NewValidationError(fields...))
	}

	if s.isAdminEmail(req.Email) {
		role = models.RoleAdmin
	}

	_, err := s.store.GetUserByFirebaseUID(ctx, req.FirebaseUID)
	if err == nil {
		return nil, fmt.Errorf("%s: %w", op, response.ErrAlreadyExists)
	}
	if !errors.Is(err, response.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()
	user := &models.User{
		FirebaseUID: req.FirebaseUID,
		Email:       strings.ToLower(strings.TrimSpace(req.Email)),
		FirstName:   strings.TrimSpace(req.FirstName),
		LastName:    strings.TrimSpace(req.LastName),
		Phone:       strings.TrimSpace(req.Phone),
		Role:        role,
		IsActive:    true,
		LastLogin:   &now,
	}

	var profile *models.TutorProfile
	if role == models.RoleTutor {
		profile = &models.TutorProfile{
			VerificationState: models.StateIncomplete,
		}
	}

	if err := s.store.CreateUser(ctx, user, profile); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("User registered", slog.String("user_id", user.ID), slog.String("role", string(role)))

	return user, nil
}

// ResolveIdentity maps a verified identity uid to its directory record.
func (s *Service) ResolveIdentity(ctx context.Context, firebaseUID string) (*models.User, error) {
	const op = "service.ResolveIdentity"

	user, err := s.store.GetUserByFirebaseUID(ctx, firebaseUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// SignIn returns the current user, its tutor profile id when it has one, and records the login.
func (s *Service) SignIn(ctx context.Context, userID string) (*models.User, string, error) {
	const op = "service.SignIn"

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()
	if err := s.store.TouchLastLogin(ctx, user.ID, now); err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}
	user.LastLogin = &now

	var tutorProfileID string
	if user.Role == models.RoleTutor {
		profile, err := s.store.GetTutorProfileByOwner(ctx, user.ID)
		if err != nil {
			return nil, "", fmt.Errorf("%s: %w", op, err)
		}
		tutorProfileID = profile.ID
	}

	return user, tutorProfileID, nil
}

// SetUserActive lets an admin deactivate or reactivate an account. Admins cannot deactivate themselves.
func (s *Service) SetUserActive(ctx context.Context, adminUserID, userID string, active bool) (*models.User, error) {
	const op = "service.SetUserActive"

	if _, err := s.requireRole(ctx, adminUserID, models.RoleAdmin); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if adminUserID == userID && !active {
		return nil, fmt.Errorf("%s: %w", op, response.NewValidationError("admins cannot deactivate themselves"))
	}

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if user.IsActive != active {
		if err := s.store.SetUserActive(ctx, userID, active); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		user.IsActive = active

		if user.Role == models.RoleTutor {
			s.invalidateSearch(ctx)
		}
	}

	return user, nil
}
