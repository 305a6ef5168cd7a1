package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"estatecrm/internal/exchange"
	"estatecrm/internal/repositories"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("you do not have permission to perform this action")
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("record already exists")
	ErrUnauthorized = errors.New("invalid credentials")

	ErrUnsupportedFormat = exchange.ErrUnsupportedFormat
	ErrEmptyFile         = exchange.ErrEmptyFile
)

// ValidationError carries per-field messages keyed by the JSON field name.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(e.Fields[k], " "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = map[string][]string{}
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

func fieldError(field, msg string) *ValidationError {
	e := &ValidationError{}
	e.add(field, msg)
	return e
}

// storeError maps repository sentinels onto the service taxonomy.
func storeError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repositories.ErrDuplicate):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	case errors.Is(err, repositories.ErrBadRef):
		return fieldError("non_field_errors", "A referenced record does not exist.")
	}
	return err
}
