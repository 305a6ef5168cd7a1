package repositories

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordResetClaimIsSingleUse(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE password_resets SET used_at = NOW\(\)\s+WHERE id = \$1 AND used_at IS NULL`).
		WithArgs(4).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE password_resets SET used_at = NOW\(\)\s+WHERE id = \$1 AND used_at IS NULL`).
		WithArgs(4).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewPasswordResetRepository(db)
	require.NoError(t, repo.Claim(context.Background(), 4))
	assert.ErrorIs(t, repo.Claim(context.Background(), 4), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
