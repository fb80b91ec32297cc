package records

import (
	"math"
	"slices"
	"strings"

	"github.com/koustreak/greeny/internal/errs"
)

// ValueType is the type of a metric column.
type ValueType int

const (
	Float ValueType = iota
	Integer
)

// MetricColumn is one value column of a metric table.
type MetricColumn struct {
	Name string
	Type ValueType
	// Min and Max bound the values generated when seeding.
	Min, Max float64
}

// MetricKind describes a per-company, per-year metric table.
type MetricKind struct {
	Name    string
	Table   string
	Columns []MetricColumn
}

// Kinds lists the metric tables besides carbon emissions.
var Kinds = []MetricKind{
	{
		Name:  "energy",
		Table: "energyusage",
		Columns: []MetricColumn{
			{Name: "total_mwh", Type: Float, Min: 500, Max: 500000},
			{Name: "renewable_pct", Type: Float, Min: 0, Max: 100},
		},
	},
	{
		Name:  "water",
		Table: "waterusage",
		Columns: []MetricColumn{
			{Name: "withdrawal_m3", Type: Float, Min: 1000, Max: 5000000},
			{Name: "recycled_pct", Type: Float, Min: 0, Max: 100},
		},
	},
	{
		Name:  "waste",
		Table: "wastegeneration",
		Columns: []MetricColumn{
			{Name: "total_tonnes", Type: Float, Min: 10, Max: 50000},
			{Name: "recycled_pct", Type: Float, Min: 0, Max: 100},
		},
	},
	{
		Name:  "diversity",
		Table: "diversitymetrics",
		Columns: []MetricColumn{
			{Name: "women_pct", Type: Float, Min: 10, Max: 60},
			{Name: "minority_pct", Type: Float, Min: 5, Max: 50},
			{Name: "board_women_pct", Type: Float, Min: 0, Max: 50},
		},
	},
	{
		Name:  "supplier_compliance",
		Table: "suppliercompliance",
		Columns: []MetricColumn{
			{Name: "suppliers_total", Type: Integer, Min: 10, Max: 2000},
			{Name: "suppliers_audited", Type: Integer, Min: 0, Max: 2000},
			{Name: "compliance_rate", Type: Float, Min: 50, Max: 100},
		},
	},
}

// LookupKind finds a kind by name or table name.
func LookupKind(name string) (MetricKind, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, k := range Kinds {
		if k.Name == n || k.Table == n {
			return k, nil
		}
	}
	return MetricKind{}, errs.Newf(errs.ErrKindNotFound, "unknown metric kind %q", name)
}

// KindNames returns the registered kind names.
func KindNames() []string {
	names := make([]string, len(Kinds))
	for i, k := range Kinds {
		names[i] = k.Name
	}
	return names
}

func (k MetricKind) columnNames() []string {
	cols := []string{"id", "company_id", "year"}
	for _, c := range k.Columns {
		cols = append(cols, c.Name)
	}
	return cols
}

// coerce checks values against the kind and returns them in column order.
// company_id and year are required; every value column is required.
func (k MetricKind) coerce(values map[string]any) ([]any, error) {
	allowed := k.columnNames()[1:]
	for key := range values {
		if !slices.Contains(allowed, key) {
			return nil, errs.Newf(errs.ErrKindInvalidInput, "unknown %s field %q", k.Name, key)
		}
	}

	out := make([]any, 0, len(allowed))
	for i, name := range allowed {
		typ := Integer
		if i >= 2 {
			typ = k.Columns[i-2].Type
		}

		raw, ok := values[name]
		if !ok || raw == nil {
			return nil, errs.Newf(errs.ErrKindInvalidInput, "%s is required", name)
		}
		v, err := number(name, raw, typ)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func number(name string, raw any, typ ValueType) (any, error) {
	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	default:
		return nil, errs.Newf(errs.ErrKindInvalidInput, "%s must be a number", name)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, errs.Newf(errs.ErrKindInvalidInput, "%s must be a finite number", name)
	}

	if typ == Integer {
		if f != math.Trunc(f) {
			return nil, errs.Newf(errs.ErrKindInvalidInput, "%s must be an integer", name)
		}
		return int64(f), nil
	}
	return f, nil
}
