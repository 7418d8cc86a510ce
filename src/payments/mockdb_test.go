package payments

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"netbill/src/db"
)

// newMockDB swaps the shared gorm instance for a sqlmock-backed one. Query
// expectations are matched by regexp so tests survive gorm's exact SQL
// rendering.
func newMockDB(t *testing.T) sqlmock.Sqlmock {
	t.Helper()
	conn, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("opening sqlmock: %s", err)
	}
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: conn}), &gorm.Config{})
	if err != nil {
		t.Fatalf("opening gorm over sqlmock: %s", err)
	}
	db.NewDB(gormDB)
	return mock
}
