package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"estatecrm/internal/models"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, userID int, hash string) error
	List(ctx context.Context, limit, offset int) ([]*models.User, error)
	Count(ctx context.Context) (int, error)

	// lookups used by site-visit client resolution
	GetByEmailFold(ctx context.Context, email string) (*models.User, error)
	GetByPhone(ctx context.Context, phone string) (*models.User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)

	// ListByRoleFold matches role case-insensitively.
	ListByRoleFold(ctx context.Context, role string) ([]*models.User, error)

	// refresh helpers
	UpdateRefresh(ctx context.Context, userID int, token string, expiresAt time.Time) error
	GetByRefreshToken(ctx context.Context, token string) (*models.User, error)
	ClearRefresh(ctx context.Context, userID int) error
}

type userRepository struct {
	DB *sql.DB
}

func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{DB: db}
}

const userColumns = `
	id, username, email, first_name, last_name, phone_number, role,
	is_superuser, is_active, password_hash, telegram_chat_id, profile_image,
	date_joined, password_last_changed_at,
	refresh_token, refresh_expires_at, refresh_revoked`

func scanUser(row rowScanner) (*models.User, error) {
	u := &models.User{}
	var (
		tgChatID      sql.NullInt64
		pwdChangedAt  sql.NullTime
		refreshToken  sql.NullString
		refreshExpiry sql.NullTime
	)
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName, &u.PhoneNumber, &u.Role,
		&u.IsSuperuser, &u.IsActive, &u.PasswordHash, &tgChatID, &u.ProfileImage,
		&u.DateJoined, &pwdChangedAt,
		&refreshToken, &refreshExpiry, &u.RefreshRevoked,
	)
	if err != nil {
		return nil, translate(err)
	}
	if tgChatID.Valid {
		u.TelegramChatID = tgChatID.Int64
	}
	u.PasswordLastChangedAt = nullTimePtr(pwdChangedAt)
	u.RefreshToken = nullStringPtr(refreshToken)
	u.RefreshExpiresAt = nullTimePtr(refreshExpiry)
	return u, nil
}

func (r *userRepository) queryOne(ctx context.Context, where string, arg any) (*models.User, error) {
	q := `SELECT` + userColumns + ` FROM users WHERE ` + where + ` ORDER BY id LIMIT 1`
	return scanUser(r.DB.QueryRowContext(ctx, q, arg))
}

func (r *userRepository) queryMany(ctx context.Context, q string, args ...any) ([]*models.User, error) {
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	const q = `
		INSERT INTO users (
			username, email, first_name, last_name, phone_number, role,
			is_superuser, is_active, password_hash, telegram_chat_id, profile_image
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING id, date_joined
	`
	var chatID any
	if user.TelegramChatID != 0 {
		chatID = user.TelegramChatID
	}
	err := r.DB.QueryRowContext(ctx, q,
		user.Username,
		user.Email,
		user.FirstName,
		user.LastName,
		user.PhoneNumber,
		user.Role,
		user.IsSuperuser,
		user.IsActive,
		user.PasswordHash,
		chatID,
		user.ProfileImage,
	).Scan(&user.ID, &user.DateJoined)
	return translate(err)
}

func (r *userRepository) GetByID(ctx context.Context, id int) (*models.User, error) {
	return r.queryOne(ctx, "id = $1", id)
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.queryOne(ctx, "username = $1", username)
}

func (r *userRepository) GetByEmailFold(ctx context.Context, email string) (*models.User, error) {
	return r.queryOne(ctx, "LOWER(email) = LOWER($1)", email)
}

func (r *userRepository) GetByPhone(ctx context.Context, phone string) (*models.User, error) {
	return r.queryOne(ctx, "phone_number = $1", phone)
}

func (r *userRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`, username).Scan(&exists)
	return exists, err
}

// Update writes the profile fields. Role, password and refresh state have their own paths.
func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	const q = `
		UPDATE users
		SET
			email=$1,
			first_name=$2,
			last_name=$3,
			phone_number=$4,
			profile_image=$5,
			is_active=$6
		WHERE id=$7
	`
	res, err := r.DB.ExecContext(ctx, q,
		user.Email,
		user.FirstName,
		user.LastName,
		user.PhoneNumber,
		user.ProfileImage,
		user.IsActive,
		user.ID,
	)
	if err != nil {
		return translate(err)
	}
	return requireAffected(res)
}

func (r *userRepository) UpdatePassword(ctx context.Context, userID int, hash string) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE users
		SET password_hash=$1, password_last_changed_at=NOW(),
		    refresh_token=NULL, refresh_expires_at=NULL, refresh_revoked=TRUE
		WHERE id=$2
	`, hash, userID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *userRepository) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	q := `SELECT` + userColumns + ` FROM users ORDER BY id LIMIT $1 OFFSET $2`
	return r.queryMany(ctx, q, limit, offset)
}

func (r *userRepository) Count(ctx context.Context) (int, error) {
	var c int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&c)
	return c, err
}

func (r *userRepository) ListByRoleFold(ctx context.Context, role string) ([]*models.User, error) {
	q := `SELECT` + userColumns + ` FROM users WHERE LOWER(role) = LOWER($1) ORDER BY id`
	return r.queryMany(ctx, q, role)
}

// ===== refresh helpers =====

func (r *userRepository) UpdateRefresh(ctx context.Context, userID int, token string, expiresAt time.Time) error {
	const q = `
		UPDATE users
		SET refresh_token=$1, refresh_expires_at=$2, refresh_revoked=FALSE
		WHERE id=$3
	`
	_, err := r.DB.ExecContext(ctx, q, token, expiresAt, userID)
	return err
}

func (r *userRepository) GetByRefreshToken(ctx context.Context, token string) (*models.User, error) {
	return r.queryOne(ctx, "refresh_token = $1", token)
}

func (r *userRepository) ClearRefresh(ctx context.Context, userID int) error {
	_, err := r.DB.ExecContext(ctx, `
		UPDATE users
		SET refresh_token=NULL, refresh_expires_at=NULL, refresh_revoked=TRUE
		WHERE id=$1
	`, userID)
	return err
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
