package database

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestIsNoRows(t *testing.T) {
	t.Run("bare sentinel", func(t *testing.T) {
		assert.True(t, IsNoRows(sql.ErrNoRows))
	})

	t.Run("wrapped sentinel", func(t *testing.T) {
		assert.True(t, IsNoRows(fmt.Errorf("loading canonical event: %w", sql.ErrNoRows)))
	})

	t.Run("other errors", func(t *testing.T) {
		assert.False(t, IsNoRows(errors.New("connection refused")))
		assert.False(t, IsNoRows(nil))
	})
}

func TestIsUniqueViolation(t *testing.T) {
	t.Run("postgres unique violation", func(t *testing.T) {
		assert.True(t, IsUniqueViolation(&pq.Error{Code: "23505"}))
	})

	t.Run("wrapped violation", func(t *testing.T) {
		err := fmt.Errorf("inserting flag: %w", &pq.Error{Code: "23505"})
		assert.True(t, IsUniqueViolation(err))
	})

	t.Run("other postgres errors", func(t *testing.T) {
		assert.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}))
	})

	t.Run("non postgres errors", func(t *testing.T) {
		assert.False(t, IsUniqueViolation(errors.New("boom")))
		assert.False(t, IsUniqueViolation(nil))
	})
}
