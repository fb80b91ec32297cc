// Package schema introspects the sustainability store and renders the table
// and column listing that scopes generated SQL.
package schema

import (
	"context"

	"github.com/koustreak/greeny/internal/database"
)

// Reader is the interface for introspecting a database schema
type Reader interface {
	// ListTables returns all base tables, ordered by name.
	ListTables(ctx context.Context) ([]string, error)

	// TableExists checks whether a table exists
	TableExists(ctx context.Context, table string) (bool, error)

	// InspectTable returns full column info for a table
	InspectTable(ctx context.Context, table string) (*TableInfo, error)

	// ListForeignKeys returns every foreign key between base tables.
	ListForeignKeys(ctx context.Context) ([]ForeignKey, error)
}

// NewReader picks the introspector matching the database's dialect.
// namespace is the Postgres schema (default "public") or the MySQL database
// (default: the connection's current database).
func NewReader(db database.DB, namespace string) Reader {
	if db.Dialect() == database.DialectMySQL {
		return NewMySQLIntrospector(db, namespace)
	}
	return NewPgIntrospector(db, namespace)
}
