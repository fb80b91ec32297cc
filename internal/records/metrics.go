package records

import (
	"context"

	"github.com/koustreak/greeny/internal/database"
)

// MetricFilter narrows ListMetrics. Nil fields are ignored.
type MetricFilter struct {
	CompanyID *int64
	Year      *int
}

// Metric is one row of a metric table keyed by column name.
type Metric map[string]any

// ListMetrics returns rows of the named kind ordered by id.
func (s *Store) ListMetrics(ctx context.Context, kind string, f MetricFilter, page Page) ([]Metric, error) {
	k, err := LookupKind(kind)
	if err != nil {
		return nil, err
	}
	page, err = page.normalize()
	if err != nil {
		return nil, err
	}

	b := database.Select(k.Table, s.dialect).Columns(k.columnNames()...)
	if f.CompanyID != nil {
		b.Where("company_id", "=", *f.CompanyID)
	}
	if f.Year != nil {
		b.Where("year", "=", *f.Year)
	}
	sql, args, err := b.OrderBy("id", database.Asc).Limit(page.Limit).Offset(page.Skip).Build()
	if err != nil {
		return nil, err
	}

	rows, err := s.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	maps, err := database.ScanMaps(rows)
	if err != nil {
		return nil, err
	}

	out := make([]Metric, len(maps))
	for i, m := range maps {
		out[i] = Metric(m)
	}
	return out, nil
}

// CreateMetric inserts one row of the named kind and returns it with its id.
func (s *Store) CreateMetric(ctx context.Context, kind string, values map[string]any) (Metric, error) {
	k, err := LookupKind(kind)
	if err != nil {
		return nil, err
	}
	vals, err := k.coerce(values)
	if err != nil {
		return nil, err
	}

	cols := k.columnNames()[1:]
	b := database.Insert(k.Table, s.dialect)
	out := Metric{}
	for i, col := range cols {
		b.Set(col, vals[i])
		out[col] = vals[i]
	}

	id, err := database.InsertID(ctx, s.q, b)
	if err != nil {
		return nil, err
	}
	out["id"] = id
	return out, nil
}
