package repository

import (
	"errors"
	"fmt"
	"testing"

	"estate_crm_backend/platform/apperr"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapErrorCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind apperr.Kind
		code string
	}{
		{"no rows", pgx.ErrNoRows, apperr.KindNotFound, apperr.CodeNotFound},
		{"foreign key", &pgconn.PgError{Code: "23503", TableName: "crm_leads", ConstraintName: "crm_leads_customer_id_fkey"}, apperr.KindValidation, apperr.CodeValidation},
		{"unique", &pgconn.PgError{Code: "23505", ConstraintName: "payments_backend_reference_unique"}, apperr.KindIntegrity, apperr.CodeIntegrity},
		{"check", &pgconn.PgError{Code: "23514", ConstraintName: "payments_amount_non_negative"}, apperr.KindIntegrity, apperr.CodeIntegrity},
		{"bad text", &pgconn.PgError{Code: "22P02", Message: "invalid input syntax"}, apperr.KindValue, apperr.CodeValue},
		{"overflow", &pgconn.PgError{Code: "22003", Message: "out of range"}, apperr.KindValue, apperr.CodeValue},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := mapError("op", "lead not found", fmt.Errorf("wrapped: %w", tc.err))
			appErr, ok := apperr.As(err)
			require.True(t, ok)
			assert.Equal(t, tc.kind, appErr.Kind)
			assert.Equal(t, tc.code, appErr.ErrorCode())
		})
	}
}

func TestMapErrorForeignKeyDetails(t *testing.T) {
	err := mapError("create lead", "", &pgconn.PgError{Code: "23503", TableName: "crm_leads", ConstraintName: "crm_leads_customer_id_fkey"})
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, map[string]string{"customer_id": "does not exist"}, appErr.Details)
}

func TestMapErrorKeepsUnexpectedErrors(t *testing.T) {
	cause := errors.New("connection refused")
	err := mapError("get lead", "", cause)

	assert.ErrorIs(t, err, cause)
	_, ok := apperr.As(err)
	assert.False(t, ok)
	assert.Nil(t, mapError("noop", "", nil))
}
