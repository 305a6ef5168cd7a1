package services

import (
	"context"
	"errors"
	"log"
	"strings"

	"estatecrm/internal/authz"
	"estatecrm/internal/models"
	"estatecrm/internal/repositories"
)

type UserService interface {
	CreateUser(ctx context.Context, actor authz.Actor, in models.UserCreateInput) (*models.User, error)
	GetUser(ctx context.Context, actor authz.Actor, id int) (*models.User, error)
	ListUsers(ctx context.Context, limit, offset int) ([]*models.User, int, error)
	UpdateProfile(ctx context.Context, userID int, in models.ProfileInput) (*models.User, error)
	// GetByID loads a user without access checks; used by the auth layer.
	GetByID(ctx context.Context, id int) (*models.User, error)
}

type userService struct {
	repo         repositories.UserRepository
	emailService EmailService
	authService  AuthService
}

func NewUserService(repo repositories.UserRepository, emailService EmailService, authService AuthService) UserService {
	return &userService{
		repo:         repo,
		emailService: emailService,
		authService:  authService,
	}
}

// CreateUser hashes the password, saves the account and sends a best-effort
// welcome email.
func (s *userService) CreateUser(ctx context.Context, actor authz.Actor, in models.UserCreateInput) (*models.User, error) {
	if !authz.Can(actor, authz.ManageUsers) {
		return nil, ErrForbidden
	}
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	taken, err := s.repo.UsernameExists(ctx, in.Username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fieldError("username", "A user with that username already exists.")
	}

	hashed, err := s.authService.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	role := strings.ToLower(in.Role)
	if role == "" {
		role = models.RoleAgent
	}
	user := &models.User{
		Username:     in.Username,
		Email:        in.Email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		PhoneNumber:  in.PhoneNumber,
		Role:         role,
		IsActive:     true,
		PasswordHash: hashed,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, storeError(err)
	}
	log.Printf("[users][create] userID=%d role=%s by=%d", user.ID, user.Role, actor.UserID)

	if s.emailService != nil && user.Email != "" {
		if err := s.emailService.SendWelcomeEmail(ctx, user); err != nil {
			// warn but do not fail creation
			log.Printf("[users][create] warning: failed to send welcome email to %s: %v", user.Email, err)
		}
	}
	return user, nil
}

// GetUser lets users read themselves; reading others needs manage_users.
func (s *userService) GetUser(ctx context.Context, actor authz.Actor, id int) (*models.User, error) {
	if id != actor.UserID && !authz.Can(actor, authz.ManageUsers) {
		return nil, ErrForbidden
	}
	return s.GetByID(ctx, id)
}

func (s *userService) GetByID(ctx context.Context, id int) (*models.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err)
	}
	return u, nil
}

func (s *userService) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, int, error) {
	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	users, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (s *userService) UpdateProfile(ctx context.Context, userID int, in models.ProfileInput) (*models.User, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, storeError(err)
	}
	in.Apply(user)
	if err := s.repo.Update(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, storeError(err)
	}
	return user, nil
}
