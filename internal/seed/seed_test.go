package seed

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	gomysql "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/greeny/internal/database/mysql"
	"github.com/koustreak/greeny/internal/errs"
	"github.com/koustreak/greeny/internal/records"
)

func newSeeder(t *testing.T) (*Seeder, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s := New(records.New(mysql.NewFromDB(db)), 42)
	s.now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }
	return s, mock
}

func expectCompany(mock sqlmock.Sqlmock, id int64) {
	mock.ExpectExec("INSERT INTO `companyinfo`").WillReturnResult(sqlmock.NewResult(id, 1))
	mock.ExpectExec("INSERT INTO `carbonemissions`").WillReturnResult(sqlmock.NewResult(id, 1))
	for _, k := range records.Kinds {
		mock.ExpectExec("INSERT INTO `" + k.Table + "`").WillReturnResult(sqlmock.NewResult(id, 1))
	}
}

func TestIngest(t *testing.T) {
	s, mock := newSeeder(t)

	mock.ExpectBegin()
	expectCompany(mock, 1)
	expectCompany(mock, 2)
	mock.ExpectCommit()

	sum, err := s.Ingest(context.Background(), 2)
	require.NoError(t, err)

	assert.Equal(t, &Summary{
		Message:                 "Sample data ingested successfully",
		CompaniesCreated:        2,
		EmissionsRecordsCreated: 2,
		MetricRecordsCreated:    2 * len(records.Kinds),
	}, sum)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIngest_RollsBackOnFailure(t *testing.T) {
	s, mock := newSeeder(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `companyinfo`").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO `carbonemissions`").
		WillReturnError(&gomysql.MySQLError{Number: 1146, Message: "Table 'greeny.carbonemissions' doesn't exist"})
	mock.ExpectRollback()

	sum, err := s.Ingest(context.Background(), 3)
	assert.Nil(t, sum)
	assert.True(t, errs.IsQueryFailed(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIngest_BoundsCount(t *testing.T) {
	s, _ := newSeeder(t)

	_, err := s.Ingest(context.Background(), -1)
	assert.True(t, errs.IsInvalidInput(err))

	_, err = s.Ingest(context.Background(), MaxCompanies+1)
	assert.True(t, errs.IsInvalidInput(err))
}

func TestGeneratedValuesInRange(t *testing.T) {
	s, _ := newSeeder(t)

	for i := 0; i < 50; i++ {
		c := s.company()
		assert.Contains(t, Industries, c.Industry)
		assert.GreaterOrEqual(t, c.Employees, 100)
		assert.LessOrEqual(t, c.Employees, 10000)
		assert.GreaterOrEqual(t, c.Year, firstYear)
		assert.LessOrEqual(t, c.Year, 2024)
		assert.NotEmpty(t, c.Name)

		e := s.emission(&records.Company{ID: 1, Year: c.Year})
		assert.GreaterOrEqual(t, e.TotalEmissions, 1000.0)
		assert.LessOrEqual(t, e.TotalEmissions, 100000.0)
		assert.GreaterOrEqual(t, e.Scope2, 500.0)
		assert.LessOrEqual(t, e.Scope2, 50000.0)

		kind, err := records.LookupKind("supplier_compliance")
		require.NoError(t, err)
		m := s.metric(kind, &records.Company{ID: 1, Year: c.Year})
		assert.LessOrEqual(t, m["suppliers_audited"].(float64), m["suppliers_total"].(float64))
	}
}
