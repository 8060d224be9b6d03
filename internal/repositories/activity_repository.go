package repositories

import (
	"context"
	"fmt"
	"strings"

	"attendance-backend/internal/apperr"
	"attendance-backend/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

type ActivityRepository struct {
	DB *pgxpool.Pool
}

func NewActivityRepository(db *pgxpool.Pool) *ActivityRepository {
	return &ActivityRepository{DB: db}
}

// Create appends one activity record
func (r *ActivityRepository) Create(ctx context.Context, a *models.Activity) error {
	query := `
		INSERT INTO activities (id, user_id, user_name, type, timestamp, date, location, lat, lng, photo_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.DB.Exec(ctx, query,
		a.ID,
		a.UserID,
		a.UserName,
		a.Type,
		a.Timestamp,
		a.Date,
		a.Location,
		a.Lat,
		a.Lng,
		a.PhotoURL,
	)
	if err != nil {
		return apperr.Backend("create activity", err)
	}
	return nil
}

// Query returns activities matching every predicate present in filter,
// ordered by timestamp. No result is an empty slice.
func (r *ActivityRepository) Query(ctx context.Context, filter models.ActivityFilter, order models.SortOrder) ([]models.Activity, error) {
	query, args := buildActivityQuery(filter, order)

	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.Backend("query activities", err)
	}
	defer rows.Close()

	activities := []models.Activity{}
	for rows.Next() {
		var a models.Activity
		err := rows.Scan(
			&a.ID, &a.UserID, &a.UserName, &a.Type, &a.Timestamp,
			&a.Date, &a.Location, &a.Lat, &a.Lng, &a.PhotoURL,
		)
		if err != nil {
			return nil, apperr.Backend("scan activity", err)
		}
		activities = append(activities, a)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Backend("query activities", err)
	}
	return activities, nil
}

func buildActivityQuery(filter models.ActivityFilter, order models.SortOrder) (string, []any) {
	var where []string
	var args []any

	add := func(column, value string) {
		args = append(args, value)
		where = append(where, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if filter.HasUser() {
		add("user_id", filter.UserID)
	}
	if filter.HasDate() {
		add("date", filter.Date)
	}
	if filter.HasType() {
		add("type", filter.Type)
	}

	var b strings.Builder
	b.WriteString(`SELECT id, user_id, user_name, type, timestamp, date, location, lat, lng, COALESCE(photo_url, '') FROM activities`)
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	if order == models.SortDescending {
		b.WriteString(" ORDER BY timestamp DESC, id DESC")
	} else {
		b.WriteString(" ORDER BY timestamp ASC, id ASC")
	}
	return b.String(), args
}
