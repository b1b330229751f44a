package repository

import (
	"errors"
	"strings"

	"patronage/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Postgres SQLSTATE codes the repositories translate.
const (
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
	pgCheckViolation      = "23514"
)

// translateError maps driver and GORM errors onto AppErrors. resource and id
// name the row the caller was addressing.
func translateError(err error, resource string, id interface{}) error {
	if err == nil {
		return nil
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(resource, id)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgForeignKeyViolation:
			return models.NewNotFoundError(resource, id)
		case pgUniqueViolation, pgCheckViolation:
			return models.NewValidationError(pgErr.Message)
		}
	}
	if isUniqueConstraintError(err) {
		return models.NewValidationError(resource + " already exists")
	}
	return models.NewPersistenceError(err)
}

// isUniqueConstraintError catches unique violations from drivers that do not
// surface a PgError, such as SQLite.
func isUniqueConstraintError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, pgUniqueViolation)
}
