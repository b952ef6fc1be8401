package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsConflictError(t *testing.T) {
	assert.False(t, IsConflictError(nil))
	assert.True(t, IsConflictError(errors.New("database is locked (5) (SQLITE_BUSY)")))
	assert.True(t, IsConflictError(fmt.Errorf("insert: %w", errors.New("database is locked"))))
	assert.True(t, IsConflictError(fmt.Errorf("tx: %w", &pgconn.PgError{Code: "40001"})))
	assert.True(t, IsConflictError(&pgconn.PgError{Code: "40P01"}))
	assert.False(t, IsConflictError(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsConflictError(errors.New("FOREIGN KEY constraint failed")))
}
