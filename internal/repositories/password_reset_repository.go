package repositories

import (
	"context"
	"database/sql"
	"time"

	"estatecrm/internal/models"
)

type PasswordResetRepository interface {
	Create(ctx context.Context, userID int, token string, expiresAt time.Time) (*models.PasswordReset, error)
	GetByToken(ctx context.Context, token string) (*models.PasswordReset, error)
	// Claim marks the token used. It returns ErrNotFound when the token is
	// missing or was already claimed, so only one caller can win.
	Claim(ctx context.Context, id int) error
	// InvalidateForUser burns every outstanding token of the user.
	InvalidateForUser(ctx context.Context, userID int) error
}

type passwordResetRepository struct {
	DB *sql.DB
}

func NewPasswordResetRepository(db *sql.DB) PasswordResetRepository {
	return &passwordResetRepository{DB: db}
}

func (r *passwordResetRepository) Create(ctx context.Context, userID int, token string, expiresAt time.Time) (*models.PasswordReset, error) {
	const q = `
		INSERT INTO password_resets (user_id, token, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	pr := &models.PasswordReset{UserID: userID, Token: token, ExpiresAt: expiresAt}
	if err := r.DB.QueryRowContext(ctx, q, userID, token, expiresAt).Scan(&pr.ID, &pr.CreatedAt); err != nil {
		return nil, translate(err)
	}
	return pr, nil
}

func (r *passwordResetRepository) GetByToken(ctx context.Context, token string) (*models.PasswordReset, error) {
	const q = `
		SELECT id, user_id, token, expires_at, used_at, created_at
		FROM password_resets
		WHERE token = $1
	`
	pr := &models.PasswordReset{}
	var usedAt sql.NullTime
	err := r.DB.QueryRowContext(ctx, q, token).Scan(&pr.ID, &pr.UserID, &pr.Token, &pr.ExpiresAt, &usedAt, &pr.CreatedAt)
	if err != nil {
		return nil, translate(err)
	}
	pr.UsedAt = nullTimePtr(usedAt)
	return pr, nil
}

func (r *passwordResetRepository) Claim(ctx context.Context, id int) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE password_resets SET used_at = NOW()
		WHERE id = $1 AND used_at IS NULL
	`, id)
	if err != nil {
		return translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return ErrNotFound
	}
	return nil
}

func (r *passwordResetRepository) InvalidateForUser(ctx context.Context, userID int) error {
	_, err := r.DB.ExecContext(ctx, `
		UPDATE password_resets SET used_at = NOW()
		WHERE user_id = $1 AND used_at IS NULL
	`, userID)
	return err
}
