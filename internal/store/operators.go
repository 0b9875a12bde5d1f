package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/avtomat/internal/model"
)

const operatorColumns = `id, username, password_hash, role, created_at, deleted_at`

// dbx wraps the shared admin handle so rows scan into tagged structs.
func dbx(db *sql.DB) *sqlx.DB {
	return sqlx.NewDb(db, "sqlite3")
}

// CreateOperator creates a new operator account.
func CreateOperator(ctx context.Context, db *sql.DB, username, passwordHash, role string) (*model.Operator, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO operators (username, password_hash, role) VALUES (?, ?, ?)`,
		username, passwordHash, role,
	)
	if err != nil {
		return nil, fmt.Errorf("creating operator: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting operator id: %w", err)
	}

	return GetOperator(ctx, db, id)
}

// GetOperator returns an operator by ID.
func GetOperator(ctx context.Context, db *sql.DB, id int64) (*model.Operator, error) {
	op := &model.Operator{}
	err := dbx(db).GetContext(ctx, op,
		`SELECT `+operatorColumns+` FROM operators WHERE id = ?`, id,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting operator: %w", err)
	}
	return op, nil
}

// GetOperatorByUsername returns the active operator with the given username.
func GetOperatorByUsername(ctx context.Context, db *sql.DB, username string) (*model.Operator, error) {
	op := &model.Operator{}
	err := dbx(db).GetContext(ctx, op,
		`SELECT `+operatorColumns+` FROM operators WHERE username = ? AND deleted_at IS NULL`, username,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting operator by username: %w", err)
	}
	return op, nil
}

// ListOperators returns all active operators.
func ListOperators(ctx context.Context, db *sql.DB) ([]model.Operator, error) {
	var ops []model.Operator
	err := dbx(db).SelectContext(ctx, &ops,
		`SELECT `+operatorColumns+` FROM operators WHERE deleted_at IS NULL ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing operators: %w", err)
	}
	return ops, nil
}

// CountOperators returns the number of active operators.
func CountOperators(ctx context.Context, db *sql.DB) (int, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM operators WHERE deleted_at IS NULL`,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting operators: %w", err)
	}
	return n, nil
}

// UpdateOperatorPassword updates an operator's password hash.
func UpdateOperatorPassword(ctx context.Context, db *sql.DB, id int64, passwordHash string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE operators SET password_hash = ? WHERE id = ? AND deleted_at IS NULL`,
		passwordHash, id,
	)
	if err != nil {
		return fmt.Errorf("updating operator password: %w", err)
	}
	return nil
}

// DeleteOperator soft-deletes an operator.
func DeleteOperator(ctx context.Context, db *sql.DB, id int64) error {
	_, err := db.ExecContext(ctx,
		`UPDATE operators SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("deleting operator: %w", err)
	}
	return nil
}
