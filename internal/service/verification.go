package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"tutor-service/internal/events"
	"tutor-service/internal/models"
	"tutor-service/pkg/response"
)

type VerifyAction string

const (
	ActionApprove VerifyAction = "approve"
	ActionReject  VerifyAction = "reject"
)

// VerifyTutor moves a pending profile to verified or rejected.
func (s *Service) VerifyTutor(ctx context.Context, tutorProfileID string, action VerifyAction, adminUserID, reason string) (*models.TutorProfile, error) {
	const op = "service.VerifyTutor"

	if _, err := s.requireRole(ctx, adminUserID, models.RoleAdmin); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var next models.VerificationState
	var evType events.Type

	switch action {
	case ActionApprove:
		next, evType = models.StateVerified, events.TutorVerified
		reason = ""
	case ActionReject:
		next, evType = models.StateRejected, events.TutorRejected
	default:
		return nil, fmt.Errorf("%s: %q: %w", op, action, response.ErrInvalidAction)
	}

	profile, err := s.store.GetTutorProfile(ctx, tutorProfileID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if profile.VerificationState != models.StatePending {
		return nil, fmt.Errorf("%s: tutor is %s: %w", op, profile.VerificationState, response.ErrInvalidStateTransition)
	}

	now := s.now()
	reason = strings.TrimSpace(reason)

	// The store re-checks pending so a concurrent decision or resubmission loses cleanly.
	if err := s.store.UpdateVerificationState(ctx, profile.ID, models.StatePending, next, reason, now); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	profile.VerificationState = next
	profile.RejectionReason = reason
	profile.UpdatedAt = now
	if next == models.StateVerified {
		profile.VerifiedAt = &now
	}

	s.invalidateSearch(ctx)

	s.log.Info("Tutor verification decided",
		slog.String("tutor_profile_id", profile.ID),
		slog.String("state", string(next)),
		slog.String("admin_user_id", adminUserID),
	)

	s.publish(ctx, events.Event{
		Type:           evType,
		TutorProfileID: profile.ID,
		ActorUserID:    adminUserID,
		Reason:         reason,
	})

	return profile, nil
}

func (s *Service) ListPendingTutors(ctx context.Context, adminUserID string) ([]*models.TutorProfile, error) {
	const op = "service.ListPendingTutors"

	if _, err := s.requireRole(ctx, adminUserID, models.RoleAdmin); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	tutors, err := s.store.ListTutorsByState(ctx, models.StatePending)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return tutors, nil
}

func (s *Service) Stats(ctx context.Context, adminUserID string) (*models.Stats, error) {
	const op = "service.Stats"

	if _, err := s.requireRole(ctx, adminUserID, models.RoleAdmin); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	stats, err := s.store.GetStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return stats, nil
}
