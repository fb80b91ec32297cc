package schema

import (
	"strings"
)

// ColumnInfo describes a single column in a table
type ColumnInfo struct {
	Name         string
	DataType     string // information_schema data_type: integer, character varying, …
	IsNullable   bool
	IsPrimaryKey bool
	IsUnique     bool
	DefaultValue *string // nil if no default
	MaxLength    *int    // nil for non-char types
	References   string  // "table.column" for foreign keys, empty otherwise
}

// TableInfo describes a table and its columns in ordinal order.
type TableInfo struct {
	Schema  string
	Name    string
	Columns []ColumnInfo
}

// ForeignKey describes a relationship between two tables
type ForeignKey struct {
	Name       string
	FromTable  string
	FromColumn string
	ToTable    string
	ToColumn   string
}

// Description is the introspected shape of the tables a question may touch,
// ordered by table name.
type Description struct {
	Tables []TableInfo
}

// Empty reports whether the description has no columns at all.
func (d *Description) Empty() bool {
	if d == nil {
		return true
	}
	for _, t := range d.Tables {
		if len(t.Columns) > 0 {
			return false
		}
	}
	return true
}

// TableNames returns the described table names in order.
func (d *Description) TableNames() []string {
	names := make([]string, 0, len(d.Tables))
	for _, t := range d.Tables {
		names = append(names, t.Name)
	}
	return names
}

// String renders the plain-text form embedded in prompts:
//
//	companyinfo:
//	  - id (integer)
//	  - name (character varying)
func (d *Description) String() string {
	if d == nil {
		return ""
	}
	var sb strings.Builder
	for _, t := range d.Tables {
		sb.WriteString(t.Name)
		sb.WriteString(":\n")
		for _, c := range t.Columns {
			sb.WriteString("  - ")
			sb.WriteString(c.Name)
			sb.WriteString(" (")
			sb.WriteString(c.DataType)
			if c.References != "" {
				sb.WriteString(", references ")
				sb.WriteString(c.References)
			}
			sb.WriteString(")\n")
		}
	}
	return sb.String()
}

// applyForeignKeys annotates columns with the table.column they reference.
func applyForeignKeys(tables []TableInfo, fks []ForeignKey) {
	ref := make(map[string]string, len(fks))
	for _, fk := range fks {
		ref[fk.FromTable+"."+fk.FromColumn] = fk.ToTable + "." + fk.ToColumn
	}
	for ti := range tables {
		for ci := range tables[ti].Columns {
			c := &tables[ti].Columns[ci]
			c.References = ref[tables[ti].Name+"."+c.Name]
		}
	}
}
