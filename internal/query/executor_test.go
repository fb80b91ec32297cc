package query

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	gomysql "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/greeny/internal/database/mysql"
)

func newExecutor(t *testing.T, opts Options) (*Executor, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewExecutor(mysql.NewFromDB(db), opts), mock
}

func TestExecutor_Success(t *testing.T) {
	e, mock := newExecutor(t, Options{ReadOnly: true})

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT name, total_emissions FROM carbonemissions").
		WillReturnRows(sqlmock.NewRows([]string{"name", "total_emissions"}).
			AddRow("Acme", 1234.567).
			AddRow("Globex", 900.0))
	mock.ExpectCommit()

	res := e.Execute(context.Background(), "SELECT name, total_emissions FROM carbonemissions")

	assert.False(t, res.Failed())
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, []string{"name", "total_emissions"}, res.Columns)
	assert.Equal(t, "Columns: name | total_emissions\nAcme | 1234.57\nGlobex | 900\n", res.Text)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutor_EmptyResult(t *testing.T) {
	e, mock := newExecutor(t, Options{})

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"name"}))
	mock.ExpectCommit()

	res := e.Execute(context.Background(), "SELECT name FROM companyinfo WHERE 1 = 0")

	assert.False(t, res.Failed())
	assert.Equal(t, 0, res.Count)
	assert.Equal(t, NoResults, res.Text)
}

func TestExecutor_CapsRows(t *testing.T) {
	e, mock := newExecutor(t, Options{MaxRows: 2})

	rows := sqlmock.NewRows([]string{"id"})
	for i := 1; i <= 5; i++ {
		rows.AddRow(int64(i))
	}
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT").WillReturnRows(rows)
	mock.ExpectCommit()

	res := e.Execute(context.Background(), "SELECT id FROM companyinfo")

	assert.Equal(t, 2, res.Count)
	assert.True(t, res.Truncated)
}

func TestExecutor_ServerErrorBecomesMarker(t *testing.T) {
	e, mock := newExecutor(t, Options{})

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT").WillReturnError(&gomysql.MySQLError{Number: 1146, Message: "Table 'greeny.companies' doesn't exist"})
	mock.ExpectRollback()

	res := e.Execute(context.Background(), "SELECT * FROM companies")

	assert.True(t, res.Failed())
	assert.Contains(t, res.Err, "Table 'greeny.companies' doesn't exist")
	assert.NotContains(t, res.Err, "[query_failed]")
	assert.Equal(t, "Error: "+res.Err, res.Text)
	assert.Nil(t, res.Rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutor_GuardRejectsWrites(t *testing.T) {
	e, mock := newExecutor(t, Options{ReadOnly: true})

	res := e.Execute(context.Background(), "DELETE FROM companyinfo")

	assert.True(t, res.Failed())
	assert.Contains(t, res.Err, "read-only")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutor_EmptyQuery(t *testing.T) {
	e, _ := newExecutor(t, Options{})
	res := e.Execute(context.Background(), "  ")
	assert.Equal(t, "empty query", res.Err)
}

func TestExecutor_Timeout(t *testing.T) {
	e, mock := newExecutor(t, Options{Timeout: 10 * time.Millisecond})

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT").WillDelayFor(time.Second).WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))

	res := e.Execute(context.Background(), "SELECT pg_sleep(1)")

	assert.True(t, res.Failed())
	assert.Equal(t, "query timed out after 10ms", res.Err)
}
