package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"estatecrm/internal/repositories"
	"estatecrm/internal/utils"
)

const resetTokenTTL = time.Hour

// PasswordResetMessage is returned for every reset request, known email or not.
const PasswordResetMessage = "If an account with that email exists, a password reset link has been sent."

type PasswordResetService interface {
	RequestReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
}

type passwordResetService struct {
	userRepo repositories.UserRepository
	repo     repositories.PasswordResetRepository
	emails   EmailService
	auth     AuthService
	now      func() time.Time
}

func NewPasswordResetService(userRepo repositories.UserRepository, repo repositories.PasswordResetRepository, emails EmailService, auth AuthService) PasswordResetService {
	return &passwordResetService{userRepo: userRepo, repo: repo, emails: emails, auth: auth, now: time.Now}
}

// RequestReset never reports whether the email exists.
func (s *passwordResetService) RequestReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fieldError("email", "This field is required.")
	}
	user, err := s.userRepo.GetByEmailFold(ctx, email)
	if err != nil || user == nil || !user.IsActive {
		// don't leak existence
		log.Printf("[password-reset] request for %q: no active user (err=%v)", email, err)
		return nil
	}

	if err := s.repo.InvalidateForUser(ctx, user.ID); err != nil {
		log.Printf("[password-reset] invalidate old tokens userID=%d: %v", user.ID, err)
	}
	token, err := utils.NewRefreshToken(32)
	if err != nil {
		return err
	}
	if _, err := s.repo.Create(ctx, user.ID, token, s.now().Add(resetTokenTTL)); err != nil {
		return storeError(err)
	}

	if s.emails != nil {
		if err := s.emails.SendPasswordResetEmail(ctx, user, token); err != nil {
			log.Printf("[password-reset] failed to send email to %s: %v", user.Email, err)
		}
	}
	return nil
}

func (s *passwordResetService) ResetPassword(ctx context.Context, token, newPassword string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fieldError("token", "This field is required.")
	}
	if err := checkPassword("new_password", newPassword); err != nil {
		return err
	}

	pr, err := s.repo.GetByToken(ctx, token)
	if err != nil || pr == nil || !pr.Usable(s.now()) {
		return fieldError("token", "Invalid or expired token.")
	}

	hash, err := s.auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.repo.Claim(ctx, pr.ID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return fieldError("token", "Invalid or expired token.")
		}
		return storeError(err)
	}
	return storeError(s.userRepo.UpdatePassword(ctx, pr.UserID, hash))
}
