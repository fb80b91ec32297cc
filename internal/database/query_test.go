package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/greeny/internal/errs"
)

func TestSelectBuilder(t *testing.T) {
	tests := []struct {
		name     string
		builder  *SelectBuilder
		wantSQL  string
		wantArgs []any
	}{
		{
			name:    "select star",
			builder: Select("companyinfo", DialectPostgres),
			wantSQL: `SELECT * FROM "companyinfo"`,
		},
		{
			name: "postgres paging",
			builder: Select("carbonemissions", DialectPostgres).
				Columns("id", "year").
				Where("company_id", "=", 3).
				OrderBy("year", Desc).
				Limit(10).
				Offset(20),
			wantSQL:  `SELECT "id", "year" FROM "carbonemissions" WHERE "company_id" = $1 ORDER BY "year" DESC LIMIT $2 OFFSET $3`,
			wantArgs: []any{3, 10, 20},
		},
		{
			name: "mysql quoting and ilike fallback",
			builder: Select("companyinfo", DialectMySQL).
				Where("name", "ilike", "%acme%").
				Where("employees", ">=", 100).
				OrderBy("id", Asc),
			wantSQL:  "SELECT * FROM `companyinfo` WHERE `name` LIKE ? AND `employees` >= ? ORDER BY `id` ASC",
			wantArgs: []any{"%acme%", 100},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := tt.builder.Build()
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestSelectBuilder_RejectsUnknownOperator(t *testing.T) {
	_, _, err := Select("companyinfo", DialectPostgres).Where("id", "; DROP", 1).Build()
	require.Error(t, err)
	assert.True(t, errs.IsInvalidInput(err))
}

func TestInsertBuilder(t *testing.T) {
	sql, args, err := Insert("companyinfo", DialectPostgres).
		Set("name", "Acme").
		Set("employees", 120).
		Returning("id").
		Build()
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "companyinfo" ("name", "employees") VALUES ($1, $2) RETURNING "id"`, sql)
	assert.Equal(t, []any{"Acme", 120}, args)

	sql, _, err = Insert("companyinfo", DialectMySQL).Set("name", "Acme").Returning("id").Build()
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO `companyinfo` (`name`) VALUES (?)", sql)

	_, _, err = Insert("companyinfo", DialectMySQL).Build()
	assert.True(t, errs.IsInvalidInput(err))
}

func TestDialect_QuoteIdent(t *testing.T) {
	assert.Equal(t, `"we""ird"`, DialectPostgres.QuoteIdent(`we"ird`))
	assert.Equal(t, "`we``ird`", DialectMySQL.QuoteIdent("we`ird"))
}

func TestParseDriver(t *testing.T) {
	for in, want := range map[string]Driver{
		"postgres":   DriverPostgres,
		"PostgreSQL": DriverPostgres,
		"pgx":        DriverPostgres,
		"mysql":      DriverMySQL,
		" mariadb ":  DriverMySQL,
	} {
		got, err := ParseDriver(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseDriver("sqlite")
	assert.True(t, errs.IsInvalidInput(err))
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig("postgres://localhost/greeny")
	assert.NoError(t, cfg.Validate())

	cfg.MinConns = 50
	assert.Error(t, cfg.Validate())

	assert.Error(t, DefaultConfig("").Validate())
}
