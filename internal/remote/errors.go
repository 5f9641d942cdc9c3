package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/njoerd114/roomsync/internal/model"
)

// Classify wraps a database error with the error class the sync engine
// branches on. A nil error stays nil.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %w", model.ErrNotFound, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "42501", // insufficient_privilege, row-level security
			pgErr.Code == "28000", // invalid_authorization_specification
			pgErr.Code == "28P01": // invalid_password
			return fmt.Errorf("%w: %w", model.ErrPermissionDenied, err)
		case pgErr.Code == "23503": // foreign_key_violation
			return fmt.Errorf("%w: %w", model.ErrNotFound, err)
		case strings.HasPrefix(pgErr.Code, "22"), strings.HasPrefix(pgErr.Code, "23"):
			return fmt.Errorf("%w: %w", model.ErrValidation, err)
		}
		return fmt.Errorf("%w: %w", model.ErrTransient, err)
	}

	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %w", model.ErrTransient, err)
}
