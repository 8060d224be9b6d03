package models

import "time"

// Activity is one clock-in or clock-out event. Records are never updated.
// Date is computed from Timestamp when the record is written and is not
// re-validated on read.
type Activity struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Date      string    `json:"date"`
	Location  string    `json:"location"`
	Lat       *float64  `json:"lat"`
	Lng       *float64  `json:"lng"`
	PhotoURL  string    `json:"photo_url"`
}

// Activity types
const (
	ActivityLogin  = "login"
	ActivityLogout = "logout"
)

// FilterAll disables the user or type predicate.
const FilterAll = "all"

// DefaultLocation is stored when the client sends no location label.
const DefaultLocation = "Unknown location"

func ValidActivityType(t string) bool {
	return t == ActivityLogin || t == ActivityLogout
}

// ActivityFilter holds optional equality predicates. Empty UserID or Type,
// or FilterAll, means no constraint; empty Date means no constraint.
type ActivityFilter struct {
	UserID string `json:"user_id"`
	Date   string `json:"date"`
	Type   string `json:"activity_type"`
}

type SortOrder int

const (
	SortAscending SortOrder = iota
	SortDescending
)

type ActivitySummary struct {
	TotalLogins  int `json:"total_logins"`
	TotalLogouts int `json:"total_logouts"`
	DaysActive   int `json:"days_active"`
}

// HasUser reports whether f constrains user_id.
func (f ActivityFilter) HasUser() bool { return f.UserID != "" && f.UserID != FilterAll }

// HasDate reports whether f constrains date.
func (f ActivityFilter) HasDate() bool { return f.Date != "" }

// HasType reports whether f constrains type.
func (f ActivityFilter) HasType() bool { return f.Type != "" && f.Type != FilterAll }

// Matches applies the filter's predicates to a.
func (f ActivityFilter) Matches(a Activity) bool {
	if f.HasUser() && a.UserID != f.UserID {
		return false
	}
	if f.HasDate() && a.Date != f.Date {
		return false
	}
	if f.HasType() && a.Type != f.Type {
		return false
	}
	return true
}
