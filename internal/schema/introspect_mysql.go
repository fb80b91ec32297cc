package schema

import (
	"context"
	"fmt"

	"github.com/koustreak/greeny/internal/database"
)

// MySQLIntrospector implements Reader for MySQL using information_schema.
// In MySQL the schema is the database; an empty name means DATABASE().
type MySQLIntrospector struct {
	db     database.Querier
	schema string
}

// NewMySQLIntrospector creates a MySQL introspector for one database.
func NewMySQLIntrospector(db database.Querier, schema string) *MySQLIntrospector {
	return &MySQLIntrospector{db: db, schema: schema}
}

// ListTables returns all base tables in the database.
func (m *MySQLIntrospector) ListTables(ctx context.Context) ([]string, error) {
	const q = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = COALESCE(NULLIF(?, ''), DATABASE())
		  AND table_type = 'BASE TABLE'
		  AND table_name <> 'goose_db_version'
		ORDER BY table_name`

	rows, err := m.db.Query(ctx, q, m.schema)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return scanNames(rows)
}

// TableExists checks whether a specific table exists
func (m *MySQLIntrospector) TableExists(ctx context.Context, table string) (bool, error) {
	const q = `
		SELECT COUNT(*) > 0
		FROM information_schema.tables
		WHERE table_schema = COALESCE(NULLIF(?, ''), DATABASE()) AND table_name = ?`

	var exists bool
	if err := m.db.QueryRow(ctx, q, m.schema, table).Scan(&exists); err != nil {
		return false, fmt.Errorf("table exists check: %w", err)
	}
	return exists, nil
}

// InspectTable returns column details for a single table
func (m *MySQLIntrospector) InspectTable(ctx context.Context, table string) (*TableInfo, error) {
	const q = `
		SELECT
			c.column_name,
			c.data_type,
			c.is_nullable = 'YES',
			c.column_default,
			c.character_maximum_length,
			(c.column_key = 'PRI'),
			(c.column_key = 'UNI')
		FROM information_schema.columns c
		WHERE c.table_schema = COALESCE(NULLIF(?, ''), DATABASE())
		  AND c.table_name   = ?
		ORDER BY c.ordinal_position`

	rows, err := m.db.Query(ctx, q, m.schema, table)
	if err != nil {
		return nil, fmt.Errorf("inspect table %s: %w", table, err)
	}
	return scanColumns(rows, m.schema, table)
}

// ListForeignKeys returns all FK relationships in the database
func (m *MySQLIntrospector) ListForeignKeys(ctx context.Context) ([]ForeignKey, error) {
	const q = `
		SELECT
			kcu.constraint_name,
			kcu.table_name,
			kcu.column_name,
			kcu.referenced_table_name,
			kcu.referenced_column_name
		FROM information_schema.key_column_usage kcu
		WHERE kcu.table_schema = COALESCE(NULLIF(?, ''), DATABASE())
		  AND kcu.referenced_table_name IS NOT NULL
		ORDER BY kcu.constraint_name`

	rows, err := m.db.Query(ctx, q, m.schema)
	if err != nil {
		return nil, fmt.Errorf("list foreign keys: %w", err)
	}
	return scanForeignKeys(rows)
}
