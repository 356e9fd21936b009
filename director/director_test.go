package director

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/focusphone/mdmserver/db"
	"github.com/stretchr/testify/require"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// setupMockDB swaps the package database for a sqlmock-backed one using regex
// query matching.
func setupMockDB(t *testing.T) (sqlmock.Sqlmock, func()) {
	t.Helper()
	oldDB := db.DB

	postgresMock, mockSpy, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)

	DB, err := gorm.Open(postgres.New(postgres.Config{Conn: postgresMock}), &gorm.Config{})
	require.NoError(t, err)

	db.DB = DB

	cleanup := func() {
		db.DB = oldDB
		postgresMock.Close()
	}

	return mockSpy, cleanup
}
