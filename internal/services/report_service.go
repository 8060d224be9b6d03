package services

import (
	"context"

	"attendance-backend/internal/apperr"
	"attendance-backend/internal/auth"
	"attendance-backend/internal/models"
	"attendance-backend/internal/timeutil"
)

// ReportService answers the dashboard and activity log queries.
type ReportService struct {
	Activities ActivityStore
	Users      UserStore
}

func NewReportService(activities ActivityStore, users UserStore) *ReportService {
	return &ReportService{Activities: activities, Users: users}
}

// ResolveFilters fills defaults, validates the filter and clamps non-admins
// to their own activities. redirect is true when a non-admin asked for
// another user's log; the caller sends them to the corrected query.
func ResolveFilters(requester auth.Identity, f models.ActivityFilter) (effective models.ActivityFilter, redirect bool, err error) {
	if !requester.Authenticated() {
		return models.ActivityFilter{}, false, apperr.Unauthenticated("Not authenticated")
	}

	effective = f
	if effective.UserID == "" {
		effective.UserID = models.FilterAll
	}
	if effective.Type == "" {
		effective.Type = models.FilterAll
	}
	if effective.Type != models.FilterAll && !models.ValidActivityType(effective.Type) {
		return models.ActivityFilter{}, false, apperr.Validation("Invalid activity type")
	}
	if effective.Date != "" && !timeutil.ValidDate(effective.Date) {
		return models.ActivityFilter{}, false, apperr.Validation("Invalid date, expected YYYY-MM-DD")
	}

	if !requester.IsAdmin() {
		if effective.UserID != models.FilterAll && effective.UserID != requester.ID {
			redirect = true
		}
		effective.UserID = requester.ID
	}
	return effective, redirect, nil
}

// QueryActivities resolves the filter and returns the matching activities
// in the requested order.
func (s *ReportService) QueryActivities(ctx context.Context, requester auth.Identity, f models.ActivityFilter, order models.SortOrder) ([]models.Activity, error) {
	effective, _, err := ResolveFilters(requester, f)
	if err != nil {
		return nil, err
	}
	return s.Activities.Query(ctx, effective, order)
}

type StaffDashboard struct {
	User       auth.Identity     `json:"user"`
	Date       string            `json:"date"`
	HasLogin   bool              `json:"has_login"`
	HasLogout  bool              `json:"has_logout"`
	Activities []models.Activity `json:"activities"`
}

// StaffDashboard returns today's activities of a staff member, oldest first.
func (s *ReportService) StaffDashboard(ctx context.Context, requester auth.Identity) (*StaffDashboard, error) {
	if !requester.Authenticated() {
		return nil, apperr.Unauthenticated("Not authenticated")
	}
	if requester.IsAdmin() {
		return nil, apperr.Forbidden("Admins do not have a staff dashboard")
	}

	today := timeutil.Today()
	activities, err := s.Activities.Query(ctx, models.ActivityFilter{UserID: requester.ID, Date: today}, models.SortAscending)
	if err != nil {
		return nil, err
	}

	d := &StaffDashboard{User: requester, Date: today, Activities: activities}
	for _, a := range activities {
		switch a.Type {
		case models.ActivityLogin:
			d.HasLogin = true
		case models.ActivityLogout:
			d.HasLogout = true
		}
	}
	return d, nil
}

type AdminDashboard struct {
	User       auth.Identity     `json:"user"`
	Users      []models.User     `json:"users"`
	Activities []models.Activity `json:"activities"`
	FilterUser string            `json:"filter_user"`
	FilterDate string            `json:"filter_date"`
}

// AdminDashboard lists activities for one user or everyone on a date,
// oldest first. A nil date means today; an empty date means every date.
func (s *ReportService) AdminDashboard(ctx context.Context, requester auth.Identity, userID string, date *string) (*AdminDashboard, error) {
	if err := requireAdmin(requester); err != nil {
		return nil, err
	}

	f := models.ActivityFilter{UserID: userID}
	if date == nil {
		f.Date = timeutil.Today()
	} else {
		f.Date = *date
	}

	effective, _, err := ResolveFilters(requester, f)
	if err != nil {
		return nil, err
	}

	users, err := s.Users.List(ctx)
	if err != nil {
		return nil, err
	}
	activities, err := s.Activities.Query(ctx, effective, models.SortAscending)
	if err != nil {
		return nil, err
	}

	return &AdminDashboard{
		User:       requester,
		Users:      users,
		Activities: activities,
		FilterUser: effective.UserID,
		FilterDate: effective.Date,
	}, nil
}

type ActivityLog struct {
	User       auth.Identity     `json:"user"`
	Users      []models.User     `json:"users"`
	Activities []models.Activity `json:"activities"`
	FilterUser string            `json:"filter_user"`
	FilterDate string            `json:"filter_date"`
	FilterType string            `json:"filter_type"`

	// Redirect is set when the requested user filter was replaced; the
	// activity list is then left empty and Filter holds the corrected query.
	Redirect bool                  `json:"-"`
	Filter   models.ActivityFilter `json:"-"`
}

// ActivityLog returns the filtered log, newest first.
func (s *ReportService) ActivityLog(ctx context.Context, requester auth.Identity, f models.ActivityFilter) (*ActivityLog, error) {
	effective, redirect, err := ResolveFilters(requester, f)
	if err != nil {
		return nil, err
	}
	if redirect {
		return &ActivityLog{User: requester, Redirect: true, Filter: effective}, nil
	}

	users, err := listUsersFor(ctx, s.Users, requester)
	if err != nil {
		return nil, err
	}
	activities, err := s.Activities.Query(ctx, effective, models.SortDescending)
	if err != nil {
		return nil, err
	}

	return &ActivityLog{
		User:       requester,
		Users:      users,
		Activities: activities,
		FilterUser: effective.UserID,
		FilterDate: effective.Date,
		FilterType: effective.Type,
		Filter:     effective,
	}, nil
}
