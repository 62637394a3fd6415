// Package repository implements the CRM stores on PostgreSQL with pgx.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"estate_crm_backend/platform/apperr"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is satisfied by both the pool and an open transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// Repo implements Repository with PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
	q    DBTX
	inTx bool
}

// New creates a repository running statements on the pool.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool, q: pool}
}

// Compile-time check that Repo implements Repository.
var _ Repository = (*Repo)(nil)

// WithinTx runs fn in a read committed transaction. Nested calls join the
// outer transaction.
func (r *Repo) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	if r.inTx {
		return fn(r)
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&Repo{pool: r.pool, q: tx, inTx: true}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// mapError converts pgx failures into typed application errors.
// Anything unexpected is wrapped with op and left for the caller to surface as a 500.
func mapError(op, notFoundMsg string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(notFoundMsg).WithOp(op)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23503":
			field := fieldFromConstraint(pgErr.TableName, pgErr.ConstraintName)
			return apperr.Validation("referenced record does not exist").
				WithOp(op).
				WithDetails(map[string]string{field: "does not exist"})
		case "23505", "23514":
			return apperr.Integrity("constraint violation: " + pgErr.ConstraintName).WithOp(op)
		case "22P02", "22003", "22007", "22008":
			return apperr.Value(pgErr.Message).WithOp(op)
		}
	}

	return fmt.Errorf("%s: %w", op, err)
}

// fieldFromConstraint turns crm_leads_customer_id_fkey into customer_id.
func fieldFromConstraint(table, constraint string) string {
	field := strings.TrimSuffix(constraint, "_fkey")
	field = strings.TrimPrefix(field, table+"_")
	if field == "" {
		return "reference"
	}
	return field
}
