package services

import (
	"context"

	"attendance-backend/internal/apperr"
	"attendance-backend/internal/auth"
	"attendance-backend/internal/models"
)

type ProfileService struct {
	Activities ActivityStore
	Users      UserStore
}

func NewProfileService(activities ActivityStore, users UserStore) *ProfileService {
	return &ProfileService{Activities: activities, Users: users}
}

// Summarize counts activities by type and the distinct non-empty dates.
func Summarize(activities []models.Activity) models.ActivitySummary {
	var s models.ActivitySummary
	days := make(map[string]struct{})
	for _, a := range activities {
		switch a.Type {
		case models.ActivityLogin:
			s.TotalLogins++
		case models.ActivityLogout:
			s.TotalLogouts++
		}
		if a.Date != "" {
			days[a.Date] = struct{}{}
		}
	}
	s.DaysActive = len(days)
	return s
}

type Profile struct {
	User    *models.User           `json:"user"`
	Summary models.ActivitySummary `json:"summary"`
}

// Profile returns the requester's account details and activity summary.
func (s *ProfileService) Profile(ctx context.Context, requester auth.Identity) (*Profile, error) {
	if !requester.Authenticated() {
		return nil, apperr.Unauthenticated("Not authenticated")
	}

	user, err := s.Users.GetByID(ctx, requester.ID)
	if err != nil {
		return nil, err
	}
	activities, err := s.Activities.Query(ctx, models.ActivityFilter{UserID: requester.ID}, models.SortAscending)
	if err != nil {
		return nil, err
	}
	return &Profile{User: user, Summary: Summarize(activities)}, nil
}
