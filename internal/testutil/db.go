// Package testutil holds helpers shared by package tests
package testutil

import (
	"testing"

	"bitwise74/beacon-api/db"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// NewDB returns a migrated in-memory SQLite database private to the test.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	conn, err := db.New(db.DriverSQLite, "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)

	// Keep a single connection so the shared memory database lives as long
	// as the test and writes are serialised like on disk
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	return conn
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
