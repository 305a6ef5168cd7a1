package services

import (
	"context"
	"fmt"
	"html"
	"strings"

	"estatecrm/internal/models"
	"estatecrm/internal/notify"
)

// EmailService sends account mail (welcome, password reset) through a notify channel.
type EmailService interface {
	SendWelcomeEmail(ctx context.Context, user *models.User) error
	SendPasswordResetEmail(ctx context.Context, user *models.User, token string) error
}

type emailService struct {
	channel     notify.Dispatcher
	frontendURL string
}

func NewEmailService(channel notify.Dispatcher, frontendURL string) EmailService {
	if channel == nil {
		channel = notify.Nop{}
	}
	return &emailService{channel: channel, frontendURL: strings.TrimRight(frontendURL, "/")}
}

func (s *emailService) SendWelcomeEmail(ctx context.Context, user *models.User) error {
	name := user.ShortName()
	text := fmt.Sprintf("Welcome to the CRM, %s!\n\nYour account has been created.\nUsername: %s\n\nBest regards,\nThe CRM Team\n",
		name, user.Username)
	body := fmt.Sprintf(`
		<h2>Welcome to the CRM, %s!</h2>
		<p>Your account has been successfully created.</p>
		<p>Username: <strong>%s</strong></p>
		<p>Best regards,<br>The CRM Team</p>
	`, html.EscapeString(name), html.EscapeString(user.Username))

	err := s.channel.Dispatch(ctx, notify.Message{
		Kind:      notify.KindWelcome,
		Recipient: accountRecipient(user),
		Subject:   "Welcome to the CRM!",
		Text:      text,
		HTML:      body,
	})
	if err != nil {
		return fmt.Errorf("failed to send welcome email: %w", err)
	}
	return nil
}

func (s *emailService) SendPasswordResetEmail(ctx context.Context, user *models.User, token string) error {
	link := ""
	if s.frontendURL != "" {
		link = s.frontendURL + "/reset-password?token=" + token
	}
	text := fmt.Sprintf("Password reset requested\n\nUse the following token to reset your password: %s\n", token)
	if link != "" {
		text += "Or open: " + link + "\n"
	}
	text += "If you did not request this change, you can ignore this email.\n"

	body := fmt.Sprintf(`
		<h3>Password reset requested</h3>
		<p>We received a request to reset the password for your account.</p>
		<p>Use the following token to reset your password: <strong>%s</strong></p>
	`, html.EscapeString(token))
	if link != "" {
		body += fmt.Sprintf(`<p><a href="%s">Reset password</a></p>`, html.EscapeString(link))
	}
	body += `<p>If you did not request this change, you can ignore this email.</p>`

	err := s.channel.Dispatch(ctx, notify.Message{
		Kind:      notify.KindPasswordReset,
		Recipient: accountRecipient(user),
		Subject:   "Password reset request",
		Text:      text,
		HTML:      body,
	})
	if err != nil {
		return fmt.Errorf("failed to send password reset email: %w", err)
	}
	return nil
}

// accountRecipient is email-only; account mail never goes to chat.
func accountRecipient(user *models.User) notify.Recipient {
	return notify.Recipient{UserID: user.ID, Name: user.ShortName(), Email: user.Email}
}
