// AngelaMos | 2026
// migrate_test.go

package core

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitStatements(t *testing.T) {
	script := `-- header
CREATE TABLE a (id INT);

-- only a comment;
CREATE INDEX a_idx
    ON a (id);
`
	got := SplitStatements(script)
	require.Len(t, got, 2)
	assert.Equal(t, "CREATE TABLE a (id INT)", got[0])
	assert.Equal(t, "CREATE INDEX a_idx\n    ON a (id)", got[1])
}

func TestMigrateRunsEmbeddedScripts(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	body, err := migrations.ReadFile("migrations/001_init.sql")
	require.NoError(t, err)

	mock.ExpectBegin()
	for range SplitStatements(string(body)) {
		mock.ExpectExec(`CREATE`).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectCommit()

	applied, err := Migrate(context.Background(), sqlx.NewDb(mockDB, "pgx"))
	require.NoError(t, err)
	assert.Equal(t, []string{"001_init.sql"}, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateRollsBackOnFailure(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	boom := errors.New("permission denied")
	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS users`).WillReturnError(boom)
	mock.ExpectRollback()

	applied, err := Migrate(context.Background(), sqlx.NewDb(mockDB, "pgx"))
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}
