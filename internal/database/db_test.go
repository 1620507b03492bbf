package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDSN(t *testing.T) {
	assert.Equal(t,
		"app:secret@tcp(db:3306)/reservations?charset=utf8mb4&parseTime=true&loc=UTC",
		DSN("app", "secret", "db", "3306", "reservations"))

	// Empty password drops the colon entirely.
	assert.Equal(t,
		"app@tcp(localhost:3306)/reservations?charset=utf8mb4&parseTime=true&loc=UTC",
		DSN("app", "", "localhost", "3306", "reservations"))
}
