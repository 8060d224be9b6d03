package services

import (
	"context"

	"attendance-backend/internal/models"
)

// UserStore is implemented by repositories.UserRepository.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	SetActive(ctx context.Context, id string, active bool) error
}

// ActivityStore is implemented by repositories.ActivityRepository.
type ActivityStore interface {
	Create(ctx context.Context, a *models.Activity) error
	Query(ctx context.Context, filter models.ActivityFilter, order models.SortOrder) ([]models.Activity, error)
}

// Publisher receives every activity after it is stored.
type Publisher interface {
	Publish(a models.Activity)
}
