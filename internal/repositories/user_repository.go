package repositories

import (
	"context"
	"errors"

	"attendance-backend/internal/apperr"
	"attendance-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

type UserRepository struct {
	DB *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{DB: db}
}

const userColumns = `id, name, email, password_hash, is_admin, active, created_at, created_by`

func scanUser(row pgx.Row) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.IsAdmin, &u.Active, &u.CreatedAt, &u.CreatedBy)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Create inserts a user. A duplicate email is reported as Forbidden.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, name, email, password_hash, is_admin, active, created_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.DB.Exec(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.IsAdmin,
		user.Active,
		user.CreatedAt,
		user.CreatedBy,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return apperr.Forbidden("Email already registered")
		}
		return apperr.Backend("create user", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	u, err := scanUser(r.DB.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("User not found")
	}
	if err != nil {
		return nil, apperr.Backend("get user", err)
	}
	return u, nil
}

// GetByEmail returns nil, nil when no user has the email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(r.DB.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1 LIMIT 1`, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Backend("get user by email", err)
	}
	return u, nil
}

func (r *UserRepository) List(ctx context.Context) ([]models.User, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY name, id`)
	if err != nil {
		return nil, apperr.Backend("list users", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, apperr.Backend("scan user", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Backend("list users", err)
	}
	return users, nil
}

func (r *UserRepository) SetActive(ctx context.Context, id string, active bool) error {
	tag, err := r.DB.Exec(ctx, `UPDATE users SET active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return apperr.Backend("update user", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("User not found")
	}
	return nil
}
