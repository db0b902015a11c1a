package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/koustreak/sqlforge/internal/database"
	"github.com/koustreak/sqlforge/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind errs.ErrKind
	}{
		{"no rows", pgx.ErrNoRows, errs.ErrKindNotFound},
		{"wrapped no rows", fmt.Errorf("definition: %w", pgx.ErrNoRows), errs.ErrKindNotFound},
		{"connection class", &pgconn.PgError{Code: "08006", Message: "connection failure"}, errs.ErrKindConnectionFailed},
		{"undefined function", &pgconn.PgError{Code: "42883", Message: "function pg_get_tabledef does not exist"}, errs.ErrKindQueryFailed},
		{"insufficient privilege", &pgconn.PgError{Code: "42501", Message: "permission denied"}, errs.ErrKindPermissionDenied},
		{"bad password", &pgconn.PgError{Code: "28P01", Message: "password authentication failed"}, errs.ErrKindPermissionDenied},
		{"statement timeout", &pgconn.PgError{Code: "57014", Message: "canceling statement"}, errs.ErrKindTimeout},
		{"deadline", context.DeadlineExceeded, errs.ErrKindTimeout},
		{"network", errors.New("dial tcp: connection refused"), errs.ErrKindConnectionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.err, "op")
			require.NotNil(t, got)
			assert.Equal(t, tt.kind, got.Kind)
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestMapError_Nil(t *testing.T) {
	assert.Nil(t, mapError(nil, "op"))
}

func TestMapError_IncludesServerMessage(t *testing.T) {
	got := mapError(&pgconn.PgError{Code: "42P01", Message: `relation "x" does not exist`}, "query failed")
	assert.Contains(t, got.Message, `relation "x" does not exist`)
}

func TestWithDefault(t *testing.T) {
	assert.Equal(t, int32(4), withDefault(0, 4))
	assert.Equal(t, int32(9), withDefault(9, 4))
}

func TestNew_InvalidDSN(t *testing.T) {
	_, err := New(context.Background(), database.DefaultConfig("::not a dsn::"))
	require.Error(t, err)
	assert.True(t, errs.IsInvalidInput(err))
}
