package repository

import (
	"database/sql"
)

// requireRowsAffected converts a zero-row write into sql.ErrNoRows so services
// can map it onto a NotFound without leaking which tenant owns the row.
func requireRowsAffected(result sql.Result, _ string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
