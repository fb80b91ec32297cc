// Package records reads and writes the sustainability tables: companies,
// carbon emissions and the other per-company metric kinds.
package records

import (
	"context"

	"github.com/koustreak/greeny/internal/database"
	"github.com/koustreak/greeny/internal/errs"
)

const (
	tableCompanies = "companyinfo"
	tableEmissions = "carbonemissions"
)

var (
	companyColumns  = []string{"id", "name", "industry", "employees", "year"}
	emissionColumns = []string{"id", "company_id", "year", "total_emissions", "scope_1", "scope_2", "scope_3"}
)

// Store runs record queries against a database. It is safe for concurrent use.
type Store struct {
	db      database.DB
	q       database.Querier
	dialect database.Dialect
}

// New returns a Store over db.
func New(db database.DB) *Store {
	return &Store{db: db, q: db, dialect: db.Dialect()}
}

// WithTx runs fn with a Store bound to one transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithTx(ctx, database.TxOptions{}, func(q database.Querier) error {
		return fn(&Store{db: s.db, q: q, dialect: s.dialect})
	})
}

// ListCompanies returns companies ordered by id.
func (s *Store) ListCompanies(ctx context.Context, page Page) ([]Company, error) {
	page, err := page.normalize()
	if err != nil {
		return nil, err
	}

	sql, args, err := database.Select(tableCompanies, s.dialect).
		Columns(companyColumns...).
		OrderBy("id", database.Asc).
		Limit(page.Limit).
		Offset(page.Skip).
		Build()
	if err != nil {
		return nil, err
	}

	rows, err := s.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Company, 0)
	for rows.Next() {
		var c Company
		if err := rows.Scan(&c.ID, &c.Name, &c.Industry, &c.Employees, &c.Year); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetCompany returns the company with id, or not_found.
func (s *Store) GetCompany(ctx context.Context, id int64) (*Company, error) {
	sql, args, err := database.Select(tableCompanies, s.dialect).
		Columns(companyColumns...).
		Where("id", "=", id).
		Build()
	if err != nil {
		return nil, err
	}

	var c Company
	err = s.q.QueryRow(ctx, sql, args...).Scan(&c.ID, &c.Name, &c.Industry, &c.Employees, &c.Year)
	if errs.IsNotFound(err) {
		return nil, errs.Newf(errs.ErrKindNotFound, "company %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateCompany inserts a company and returns it with its id.
func (s *Store) CreateCompany(ctx context.Context, in CompanyInput) (*Company, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	id, err := database.InsertID(ctx, s.q, database.Insert(tableCompanies, s.dialect).
		Set("name", in.Name).
		Set("industry", in.Industry).
		Set("employees", in.Employees).
		Set("year", in.Year))
	if err != nil {
		return nil, err
	}

	return &Company{ID: id, Name: in.Name, Industry: in.Industry, Employees: in.Employees, Year: in.Year}, nil
}

// ListEmissions returns emission records ordered by id.
func (s *Store) ListEmissions(ctx context.Context, page Page) ([]Emission, error) {
	page, err := page.normalize()
	if err != nil {
		return nil, err
	}

	b := database.Select(tableEmissions, s.dialect).
		Columns(emissionColumns...).
		OrderBy("id", database.Asc).
		Limit(page.Limit).
		Offset(page.Skip)
	return s.emissions(ctx, b)
}

// ListCompanyEmissions returns every emission record of a company by year.
// A missing company is not_found.
func (s *Store) ListCompanyEmissions(ctx context.Context, companyID int64) ([]Emission, error) {
	if _, err := s.GetCompany(ctx, companyID); err != nil {
		return nil, err
	}

	b := database.Select(tableEmissions, s.dialect).
		Columns(emissionColumns...).
		Where("company_id", "=", companyID).
		OrderBy("year", database.Asc).
		OrderBy("id", database.Asc)
	return s.emissions(ctx, b)
}

func (s *Store) emissions(ctx context.Context, b *database.SelectBuilder) ([]Emission, error) {
	sql, args, err := b.Build()
	if err != nil {
		return nil, err
	}

	rows, err := s.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Emission, 0)
	for rows.Next() {
		var e Emission
		if err := rows.Scan(&e.ID, &e.CompanyID, &e.Year, &e.TotalEmissions, &e.Scope1, &e.Scope2, &e.Scope3); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// CreateEmission inserts an emission record. An unknown company_id is a
// conflict reported by the foreign key.
func (s *Store) CreateEmission(ctx context.Context, in EmissionInput) (*Emission, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	id, err := database.InsertID(ctx, s.q, database.Insert(tableEmissions, s.dialect).
		Set("company_id", in.CompanyID).
		Set("year", in.Year).
		Set("total_emissions", in.TotalEmissions).
		Set("scope_1", in.Scope1).
		Set("scope_2", in.Scope2).
		Set("scope_3", in.Scope3))
	if err != nil {
		return nil, err
	}

	return &Emission{
		ID:             id,
		CompanyID:      in.CompanyID,
		Year:           in.Year,
		TotalEmissions: in.TotalEmissions,
		Scope1:         in.Scope1,
		Scope2:         in.Scope2,
		Scope3:         in.Scope3,
	}, nil
}
