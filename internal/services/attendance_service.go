package services

import (
	"context"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"attendance-backend/internal/apperr"
	"attendance-backend/internal/auth"
	"attendance-backend/internal/metrics"
	"attendance-backend/internal/models"
	"attendance-backend/internal/storage"
	"attendance-backend/internal/timeutil"

	"github.com/google/uuid"
)

// RecordInput carries the clock-in/out form. Lat and Lng are the raw form
// values; either may be empty.
type RecordInput struct {
	Location  string
	Lat       string
	Lng       string
	Photo     io.Reader
	PhotoSize int64
}

type AttendanceService struct {
	Activities ActivityStore
	Photos     storage.Backend
	Publisher  Publisher
	Metrics    *metrics.Metrics
	NewID      func() string
}

func NewAttendanceService(activities ActivityStore, photos storage.Backend, pub Publisher, m *metrics.Metrics) *AttendanceService {
	return &AttendanceService{
		Activities: activities,
		Photos:     photos,
		Publisher:  pub,
		Metrics:    m,
		NewID:      uuid.NewString,
	}
}

func parseCoordinate(name, raw string, limit float64) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < -limit || v > limit {
		return nil, apperr.Validation(fmt.Sprintf("Invalid %s", name))
	}
	return &v, nil
}

// Record appends a login or logout activity for a staff member.
func (s *AttendanceService) Record(ctx context.Context, requester auth.Identity, action string, in RecordInput) (*models.Activity, error) {
	if !requester.Authenticated() {
		return nil, apperr.Unauthenticated("Not authenticated")
	}
	if requester.IsAdmin() {
		return nil, apperr.Forbidden("Admins cannot perform staff actions")
	}
	if !models.ValidActivityType(action) {
		return nil, apperr.Validation("Invalid action")
	}

	lat, err := parseCoordinate("latitude", in.Lat, 90)
	if err != nil {
		return nil, err
	}
	lng, err := parseCoordinate("longitude", in.Lng, 180)
	if err != nil {
		return nil, err
	}

	location := strings.TrimSpace(in.Location)
	if location == "" {
		location = models.DefaultLocation
	}

	now := timeutil.Now()
	a := &models.Activity{
		ID:        s.NewID(),
		UserID:    requester.ID,
		UserName:  requester.Name,
		Type:      action,
		Timestamp: now,
		Date:      timeutil.DateOf(now),
		Location:  location,
		Lat:       lat,
		Lng:       lng,
	}

	var photoKey string
	if in.Photo != nil && s.Photos != nil {
		// the activity id keeps keys unique within the same second
		key := fmt.Sprintf("%s_%s_%s_%s.jpg", action, requester.ID, now.Format("20060102_150405"), a.ID)
		if err := s.Photos.Upload(ctx, key, in.Photo, in.PhotoSize); err != nil {
			// the activity is still recorded, without a photo reference
			log.Printf("[Attendance] Photo upload to %s failed for %s: %v", s.Photos.Name(), requester.ID, err)
			if s.Metrics != nil {
				s.Metrics.PhotoFailures.Inc()
			}
		} else {
			photoKey = key
			a.PhotoURL = s.Photos.URL(key)
		}
	}

	if err := s.Activities.Create(ctx, a); err != nil {
		if photoKey != "" {
			if derr := s.Photos.Delete(ctx, photoKey); derr != nil {
				log.Printf("[Attendance] Could not remove orphaned photo %s: %v", photoKey, derr)
			}
		}
		return nil, err
	}

	if s.Metrics != nil {
		s.Metrics.AttendanceEvents.WithLabelValues(a.Type).Inc()
	}
	if s.Publisher != nil {
		s.Publisher.Publish(*a)
	}
	log.Printf("[Attendance] %s %s at %q (%s)", requester.ID, a.Type, a.Location, a.Date)
	return a, nil
}
