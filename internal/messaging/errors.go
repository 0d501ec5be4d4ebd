package messaging

import (
	"errors"
	"fmt"

	"github.com/lalith-99/brokerchat/internal/repository"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input")
	ErrDeleted      = errors.New("message deleted")
	ErrArchived     = errors.New("channel archived")
	ErrConflict     = errors.New("conflict")
)

// invalid builds an ErrInvalidInput with a caller-facing reason.
func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// storeErr maps repository sentinels onto the service's own, keeping the
// original text for logs.
func storeErr(op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%s: %w (%v)", op, ErrNotFound, err)
	case errors.Is(err, repository.ErrConflict):
		return fmt.Errorf("%s: %w (%v)", op, ErrConflict, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
