package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"estatecrm/internal/models"
	"estatecrm/internal/repositories"
	"estatecrm/internal/utils"
)

const tokenLeeway = 2 * time.Minute

type AuthService interface {
	HashPassword(password string) (string, error)
	CheckPassword(hash, password string) bool
	// UnusablePassword returns a hash no login can ever match.
	UnusablePassword() (string, error)

	Login(ctx context.Context, identifier, password string) (*models.User, *models.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error)
	Logout(ctx context.Context, userID int) error
	ChangePassword(ctx context.Context, userID int, oldPassword, newPassword string) error
	ParseAccessToken(token string) (*utils.Claims, error)
}

type authService struct {
	users      repositories.UserRepository
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewAuthService(users repositories.UserRepository, jwtSecret string, accessTTL, refreshTTL time.Duration) AuthService {
	return &authService{
		users:      users,
		secret:     []byte(jwtSecret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

func (s *authService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func (s *authService) CheckPassword(hash, password string) bool {
	if !strings.HasPrefix(hash, "$2") {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func (s *authService) UnusablePassword() (string, error) {
	return utils.UnusablePassword(models.UnusablePasswordPrefix)
}

// Login accepts a username, or an email when identifier contains "@".
func (s *authService) Login(ctx context.Context, identifier, password string) (*models.User, *models.TokenPair, error) {
	start := s.now()
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, nil, ErrUnauthorized
	}

	user, err := s.users.GetByUsername(ctx, identifier)
	if errors.Is(err, repositories.ErrNotFound) && strings.Contains(identifier, "@") {
		user, err = s.users.GetByEmailFold(ctx, identifier)
	}
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			log.Printf("[auth][login] unknown identifier=%q", identifier)
			return nil, nil, ErrUnauthorized
		}
		return nil, nil, err
	}
	if !user.IsActive || !user.HasUsablePassword() {
		log.Printf("[auth][login] rejected userID=%d active=%v usable=%v", user.ID, user.IsActive, user.HasUsablePassword())
		return nil, nil, ErrUnauthorized
	}
	if !s.CheckPassword(user.PasswordHash, password) {
		log.Printf("[auth][login] password mismatch userID=%d", user.ID)
		return nil, nil, ErrUnauthorized
	}

	tokens, err := s.issue(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	log.Printf("[auth][login] success userID=%d role=%s took=%s", user.ID, user.Role, s.now().Sub(start).Truncate(time.Millisecond))
	return user, tokens, nil
}

// Refresh rotates the refresh token and mints a new access token.
func (s *authService) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	old := strings.TrimSpace(refreshToken)
	if old == "" {
		return nil, ErrUnauthorized
	}
	user, err := s.users.GetByRefreshToken(ctx, old)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if user.RefreshRevoked || user.RefreshExpiresAt == nil || s.now().After(*user.RefreshExpiresAt) || !user.IsActive {
		return nil, ErrUnauthorized
	}
	return s.issue(ctx, user)
}

func (s *authService) Logout(ctx context.Context, userID int) error {
	return storeError(s.users.ClearRefresh(ctx, userID))
}

func (s *authService) ChangePassword(ctx context.Context, userID int, oldPassword, newPassword string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return storeError(err)
	}
	if !s.CheckPassword(user.PasswordHash, oldPassword) {
		return fieldError("old_password", "Your old password was entered incorrectly.")
	}
	if err := checkPassword("new_password", newPassword); err != nil {
		return err
	}
	hash, err := s.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return storeError(err)
	}
	log.Printf("[auth][password] changed userID=%d", userID)
	return nil
}

func (s *authService) ParseAccessToken(token string) (*utils.Claims, error) {
	return utils.ParseAccessToken(s.secret, token, tokenLeeway)
}

func (s *authService) issue(ctx context.Context, user *models.User) (*models.TokenPair, error) {
	now := s.now()
	access, err := utils.SignAccessToken(s.secret, utils.Claims{
		UserID:      user.ID,
		Role:        user.Role,
		IsSuperuser: user.IsSuperuser,
	}, now, s.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := utils.NewRefreshToken(32)
	if err != nil {
		return nil, fmt.Errorf("new refresh token: %w", err)
	}
	if err := s.users.UpdateRefresh(ctx, user.ID, refresh, now.Add(s.refreshTTL)); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}
	return &models.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
