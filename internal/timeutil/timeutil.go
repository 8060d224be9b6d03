package timeutil

import (
	"sync"
	"time"
)

// DateLayout is the string form of an activity's calendar date.
const DateLayout = "2006-01-02"

var (
	mu  sync.RWMutex
	loc = time.Local
	now = time.Now
)

// SetLocation sets the zone used to derive calendar dates.
func SetLocation(name string) error {
	if name == "" || name == "Local" {
		mu.Lock()
		loc = time.Local
		mu.Unlock()
		return nil
	}
	l, err := time.LoadLocation(name)
	if err != nil {
		return err
	}
	mu.Lock()
	loc = l
	mu.Unlock()
	return nil
}

// Location returns the configured zone.
func Location() *time.Location {
	mu.RLock()
	defer mu.RUnlock()
	return loc
}

// Now returns the current time in the configured zone.
func Now() time.Time {
	mu.RLock()
	defer mu.RUnlock()
	return now().In(loc)
}

// DateOf projects t onto its calendar date in the configured zone.
func DateOf(t time.Time) string {
	return t.In(Location()).Format(DateLayout)
}

// Today is DateOf(Now()).
func Today() string {
	return DateOf(Now())
}

// ValidDate reports whether s is a YYYY-MM-DD date.
func ValidDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// SetClock replaces the clock and returns a func restoring the previous one.
// Tests only.
func SetClock(f func() time.Time) (restore func()) {
	mu.Lock()
	prev := now
	now = f
	mu.Unlock()
	return func() {
		mu.Lock()
		now = prev
		mu.Unlock()
	}
}
