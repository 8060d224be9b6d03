package services

import (
	"context"
	"log"
	"strings"
	"time"

	"attendance-backend/internal/apperr"
	"attendance-backend/internal/auth"
	"attendance-backend/internal/metrics"
	"attendance-backend/internal/models"

	"github.com/google/uuid"
)

const minPasswordLength = 6

type UserService struct {
	Users   UserStore
	Metrics *metrics.Metrics
	NewID   func() string
}

func NewUserService(users UserStore, m *metrics.Metrics) *UserService {
	return &UserService{Users: users, Metrics: m, NewID: uuid.NewString}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func identityOf(u *models.User) auth.Identity {
	return auth.Identity{ID: u.ID, Email: u.Email, Name: u.Name, Role: auth.RoleFor(u.IsAdmin)}
}

// Register creates a self-registered account and returns the identity to
// sign the new session with.
func (s *UserService) Register(ctx context.Context, req *models.RegisterRequest) (*models.User, auth.Identity, error) {
	name := strings.TrimSpace(req.Name)
	email := normalizeEmail(req.Email)

	if name == "" || email == "" || req.Password == "" {
		return nil, auth.Identity{}, apperr.Validation("All fields are required")
	}
	if req.Password != req.ConfirmPassword {
		return nil, auth.Identity{}, apperr.Validation("Passwords do not match")
	}
	if len(req.Password) < minPasswordLength {
		return nil, auth.Identity{}, apperr.Validation("Password must be at least 6 characters")
	}

	user, err := s.create(ctx, name, email, req.Password, req.UserType, nil)
	if err != nil {
		return nil, auth.Identity{}, err
	}
	log.Printf("[Auth] Registered %s (%s, admin=%v)", user.Email, user.ID, user.IsAdmin)
	return user, identityOf(user), nil
}

// CreateByAdmin creates an account on behalf of an administrator.
func (s *UserService) CreateByAdmin(ctx context.Context, requester auth.Identity, req *models.CreateUserRequest) (*models.User, error) {
	if err := requireAdmin(requester); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	email := normalizeEmail(req.Email)
	if name == "" || email == "" || req.Password == "" {
		return nil, apperr.Validation("All fields are required")
	}

	createdBy := requester.ID
	user, err := s.create(ctx, name, email, req.Password, req.UserType, &createdBy)
	if err != nil {
		return nil, err
	}
	log.Printf("[Auth] Admin %s created %s (%s, admin=%v)", requester.ID, user.Email, user.ID, user.IsAdmin)
	return user, nil
}

func (s *UserService) create(ctx context.Context, name, email, password, userType string, createdBy *string) (*models.User, error) {
	switch userType {
	case "", models.UserTypeStaff, models.UserTypeAdmin:
	default:
		return nil, apperr.Validation("Invalid user type")
	}

	existing, err := s.Users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.Forbidden("Email already registered")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, apperr.Backend("hash password", err)
	}

	user := &models.User{
		ID:           s.NewID(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		IsAdmin:      userType == models.UserTypeAdmin,
		Active:       true,
		CreatedAt:    time.Now(),
		CreatedBy:    createdBy,
	}
	if err := s.Users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login verifies credentials against the stored bcrypt hash.
func (s *UserService) Login(ctx context.Context, req *models.LoginRequest) (*models.User, auth.Identity, error) {
	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, auth.Identity{}, apperr.Validation("Email and password are required")
	}

	user, err := s.Users.GetByEmail(ctx, email)
	if err != nil {
		return nil, auth.Identity{}, err
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		s.countLogin("invalid")
		return nil, auth.Identity{}, apperr.Unauthenticated("Invalid credentials")
	}
	if !user.Active {
		s.countLogin("inactive")
		return nil, auth.Identity{}, apperr.Forbidden("Account is inactive")
	}

	s.countLogin("success")
	return user, identityOf(user), nil
}

func (s *UserService) countLogin(result string) {
	if s.Metrics != nil {
		s.Metrics.LoginAttempts.WithLabelValues(result).Inc()
	}
}

// ListUsers returns every user for admins and only the requester otherwise.
func (s *UserService) ListUsers(ctx context.Context, requester auth.Identity) ([]models.User, error) {
	return listUsersFor(ctx, s.Users, requester)
}

func listUsersFor(ctx context.Context, users UserStore, requester auth.Identity) ([]models.User, error) {
	if !requester.Authenticated() {
		return nil, apperr.Unauthenticated("Not authenticated")
	}
	if requester.IsAdmin() {
		return users.List(ctx)
	}
	u, err := users.GetByID(ctx, requester.ID)
	if err != nil {
		return nil, err
	}
	return []models.User{*u}, nil
}

// SetActive toggles a user's active flag. Admins cannot deactivate themselves.
func (s *UserService) SetActive(ctx context.Context, requester auth.Identity, id string, active bool) (*models.User, error) {
	if err := requireAdmin(requester); err != nil {
		return nil, err
	}
	if id == requester.ID && !active {
		return nil, apperr.Forbidden("Admins cannot deactivate their own account")
	}
	if err := s.Users.SetActive(ctx, id, active); err != nil {
		return nil, err
	}
	log.Printf("[Auth] Admin %s set active=%v on %s", requester.ID, active, id)
	return s.Users.GetByID(ctx, id)
}

func requireAdmin(requester auth.Identity) error {
	if !requester.Authenticated() {
		return apperr.Unauthenticated("Not authenticated")
	}
	if !requester.IsAdmin() {
		return apperr.Forbidden("Admin access required")
	}
	return nil
}
