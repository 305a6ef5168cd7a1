package models

import (
	"strings"
	"time"
)

const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleAgent   = "agent"
	RoleClient  = "client"
)

// UnusablePasswordPrefix marks a password hash that can never match a login attempt.
const UnusablePasswordPrefix = "!"

type User struct {
	ID             int       `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	PhoneNumber    string    `json:"phone_number"`
	Role           string    `json:"role"`
	IsSuperuser    bool      `json:"is_superuser"`
	IsActive       bool      `json:"is_active"`
	PasswordHash   string    `json:"-"` // не отдаём наружу
	TelegramChatID int64     `json:"-"`
	ProfileImage   string    `json:"profile_image"`
	DateJoined     time.Time `json:"date_joined"`

	PasswordLastChangedAt *time.Time `json:"password_last_changed_at,omitempty"`

	// refresh-хранение в БД
	RefreshToken     *string    `json:"-"`
	RefreshExpiresAt *time.Time `json:"-"`
	RefreshRevoked   bool       `json:"-"`
}

// FullName is "first last", or the username when both are empty.
func (u *User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

// ShortName is what greetings use: the first name, or the username.
func (u *User) ShortName() string {
	if strings.TrimSpace(u.FirstName) != "" {
		return u.FirstName
	}
	return u.Username
}

func (u *User) HasUsablePassword() bool {
	return u.PasswordHash != "" && !strings.HasPrefix(u.PasswordHash, UnusablePasswordPrefix)
}

func (u *User) Brief() *UserBrief {
	if u == nil {
		return nil
	}
	return &UserBrief{
		ID:          u.ID,
		Username:    u.Username,
		FullName:    u.FullName(),
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Email:       u.Email,
		PhoneNumber: u.PhoneNumber,
		Role:        u.Role,
	}
}

// UserBrief is the nested representation used inside leads and site visits.
type UserBrief struct {
	ID          int    `json:"id"`
	Username    string `json:"username"`
	FullName    string `json:"full_name"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Role        string `json:"role"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password" binding:"required"`
}

// UserCreateInput is the admin payload for POST /api/users.
type UserCreateInput struct {
	Username    string `json:"username" validate:"required,max=150"`
	Email       string `json:"email" validate:"omitempty,email,max=254"`
	Password    string `json:"password" validate:"required,min=8"`
	FirstName   string `json:"first_name" validate:"max=150"`
	LastName    string `json:"last_name" validate:"max=150"`
	PhoneNumber string `json:"phone_number" validate:"max=20"`
	Role        string `json:"role" validate:"omitempty,oneof=admin manager agent client"`
}

// ProfileInput updates the caller's own profile. Role is not writable here.
type ProfileInput struct {
	Email        *string `json:"email" validate:"omitempty,email,max=254"`
	FirstName    *string `json:"first_name" validate:"omitempty,max=150"`
	LastName     *string `json:"last_name" validate:"omitempty,max=150"`
	PhoneNumber  *string `json:"phone_number" validate:"omitempty,max=20"`
	ProfileImage *string `json:"profile_image" validate:"omitempty,max=255"`
}

func (in *ProfileInput) Apply(u *User) {
	setString(&u.Email, in.Email)
	setString(&u.FirstName, in.FirstName)
	setString(&u.LastName, in.LastName)
	setString(&u.PhoneNumber, in.PhoneNumber)
	setString(&u.ProfileImage, in.ProfileImage)
}
