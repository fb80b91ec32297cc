package records

import (
	"strings"

	"github.com/koustreak/greeny/internal/errs"
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// Page is the skip/limit window of a list call.
type Page struct {
	Skip  int
	Limit int
}

// normalize applies the defaults: limit 100, capped at 1000.
func (p Page) normalize() (Page, error) {
	if p.Skip < 0 {
		return p, errs.New(errs.ErrKindInvalidInput, "skip must not be negative")
	}
	if p.Limit < 0 {
		return p, errs.New(errs.ErrKindInvalidInput, "limit must not be negative")
	}
	if p.Limit == 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p, nil
}

// Company is a row of companyinfo.
type Company struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Industry  string `json:"industry"`
	Employees int    `json:"employees"`
	Year      int    `json:"year"`
}

// CompanyInput is the body of a company create.
type CompanyInput struct {
	Name      string `json:"name"`
	Industry  string `json:"industry"`
	Employees int    `json:"employees"`
	Year      int    `json:"year"`
}

func (in *CompanyInput) validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Industry = strings.TrimSpace(in.Industry)
	switch {
	case in.Name == "":
		return errs.New(errs.ErrKindInvalidInput, "name is required")
	case in.Industry == "":
		return errs.New(errs.ErrKindInvalidInput, "industry is required")
	case in.Employees < 0:
		return errs.New(errs.ErrKindInvalidInput, "employees must not be negative")
	case in.Year <= 0:
		return errs.New(errs.ErrKindInvalidInput, "year is required")
	}
	return nil
}

// Emission is a row of carbonemissions.
type Emission struct {
	ID             int64   `json:"id"`
	CompanyID      int64   `json:"company_id"`
	Year           int     `json:"year"`
	TotalEmissions float64 `json:"total_emissions"`
	Scope1         float64 `json:"scope_1"`
	Scope2         float64 `json:"scope_2"`
	Scope3         float64 `json:"scope_3"`
}

// EmissionInput is the body of an emissions create.
type EmissionInput struct {
	CompanyID      int64   `json:"company_id"`
	Year           int     `json:"year"`
	TotalEmissions float64 `json:"total_emissions"`
	Scope1         float64 `json:"scope_1"`
	Scope2         float64 `json:"scope_2"`
	Scope3         float64 `json:"scope_3"`
}

func (in EmissionInput) validate() error {
	switch {
	case in.CompanyID <= 0:
		return errs.New(errs.ErrKindInvalidInput, "company_id is required")
	case in.Year <= 0:
		return errs.New(errs.ErrKindInvalidInput, "year is required")
	case in.TotalEmissions < 0 || in.Scope1 < 0 || in.Scope2 < 0 || in.Scope3 < 0:
		return errs.New(errs.ErrKindInvalidInput, "emissions must not be negative")
	}
	return nil
}
