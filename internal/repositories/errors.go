package repositories

import (
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"estatecrm/internal/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
	ErrBadRef    = errors.New("referenced record does not exist")
)

// translate maps driver errors onto the package sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return ErrDuplicate
		case "23503":
			return ErrBadRef
		}
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func nullIntPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

func nullStringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

func intArg(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func stringArg(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

// briefColumns scans the nullable side of a LEFT JOIN on users.
type briefColumns struct {
	id        sql.NullInt64
	username  sql.NullString
	firstName sql.NullString
	lastName  sql.NullString
	email     sql.NullString
	phone     sql.NullString
	role      sql.NullString
}

func (b *briefColumns) dest() []any {
	return []any{&b.id, &b.username, &b.firstName, &b.lastName, &b.email, &b.phone, &b.role}
}

func (b *briefColumns) brief() *models.UserBrief {
	if !b.id.Valid {
		return nil
	}
	u := &models.User{
		ID:          int(b.id.Int64),
		Username:    b.username.String,
		FirstName:   b.firstName.String,
		LastName:    b.lastName.String,
		Email:       b.email.String,
		PhoneNumber: b.phone.String,
		Role:        b.role.String,
	}
	return u.Brief()
}
