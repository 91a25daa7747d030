package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"nil", nil, ErrorClassPermanent},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, ErrorClassDeadlock},
		{"serialization", &pgconn.PgError{Code: "40001"}, ErrorClassSerialization},
		{"lock not available", &pgconn.PgError{Code: "55P03"}, ErrorClassTransient},
		{"unique", &pgconn.PgError{Code: "23505"}, ErrorClassUniqueViolation},
		{"wrapped unique", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), ErrorClassUniqueViolation},
		{"translated duplicate", gorm.ErrDuplicatedKey, ErrorClassUniqueViolation},
		{"check violation", &pgconn.PgError{Code: "23514"}, ErrorClassPermanent},
		{"sqlite unique", errors.New("constraint failed: UNIQUE constraint failed: sales.number (2067)"), ErrorClassUniqueViolation},
		{"sqlite busy", errors.New("database is locked (5) (SQLITE_BUSY)"), ErrorClassTransient},
		{"other", errors.New("boom"), ErrorClassPermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyError(tt.err))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(&pgconn.PgError{Code: "40P01"}))
	assert.True(t, IsRetryable(&pgconn.PgError{Code: "40001"}))
	assert.False(t, IsRetryable(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsRetryable(errors.New("boom")))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(fmt.Errorf("load: %w", gorm.ErrRecordNotFound)))
	assert.False(t, IsNotFound(errors.New("boom")))
}
