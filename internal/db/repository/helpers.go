// Package repository implements run-history persistence over SQLite.
package repository

import (
	"database/sql"
	"errors"
	"strings"

	"sheetsync/internal/domain"
)

func mapDBError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound("resource not found")
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return domain.ErrConflict("%v", err)
	}
	return err
}
