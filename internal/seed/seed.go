// Package seed fills the store with fake companies and sustainability
// metrics for demos and local development.
package seed

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/koustreak/greeny/internal/errs"
	"github.com/koustreak/greeny/internal/logger"
	"github.com/koustreak/greeny/internal/records"
)

const (
	DefaultCompanies = 10
	MaxCompanies     = 1000
	firstYear        = 2015
)

// Industries are drawn from uniformly for each generated company.
var Industries = []string{
	"Technology", "Healthcare", "Finance", "Manufacturing", "Retail",
	"Energy", "Telecommunications", "Automotive", "Agriculture", "Education",
	"Entertainment", "Construction", "Transportation", "Hospitality", "Real Estate",
}

// Summary reports what Ingest created.
type Summary struct {
	Message                 string `json:"message"`
	CompaniesCreated        int    `json:"companies_created"`
	EmissionsRecordsCreated int    `json:"emissions_records_created"`
	MetricRecordsCreated    int    `json:"metric_records_created"`
}

// Seeder generates records. It is safe for concurrent use.
type Seeder struct {
	store *records.Store

	mu    sync.Mutex
	faker *gofakeit.Faker
	now   func() time.Time
}

// New returns a Seeder writing through store. A zero seed draws a random one;
// any other seed makes the generated data reproducible.
func New(store *records.Store, seed uint64) *Seeder {
	return &Seeder{store: store, faker: gofakeit.New(seed), now: time.Now}
}

// Ingest creates n companies (10 when n is zero), each with one carbon
// emissions record and one record of every other metric kind for the
// company's year. Everything is written in one transaction; any failure
// rolls it all back.
func (s *Seeder) Ingest(ctx context.Context, n int) (*Summary, error) {
	if n == 0 {
		n = DefaultCompanies
	}
	if n < 0 || n > MaxCompanies {
		return nil, errs.Newf(errs.ErrKindInvalidInput, "companies must be between 1 and %d", MaxCompanies)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sum := &Summary{}
	err := s.store.WithTx(ctx, func(tx *records.Store) error {
		for i := 0; i < n; i++ {
			c, err := tx.CreateCompany(ctx, s.company())
			if err != nil {
				return err
			}
			sum.CompaniesCreated++

			if _, err := tx.CreateEmission(ctx, s.emission(c)); err != nil {
				return err
			}
			sum.EmissionsRecordsCreated++

			for _, k := range records.Kinds {
				if _, err := tx.CreateMetric(ctx, k.Name, s.metric(k, c)); err != nil {
					return err
				}
				sum.MetricRecordsCreated++
			}
		}
		return nil
	})
	if err != nil {
		logger.FromContext(ctx).ErrorWith("sample data ingestion failed", err, map[string]any{"companies": n})
		return nil, err
	}

	sum.Message = "Sample data ingested successfully"
	logger.FromContext(ctx).InfoWith("sample data ingested", map[string]any{
		"companies": sum.CompaniesCreated,
		"emissions": sum.EmissionsRecordsCreated,
		"metrics":   sum.MetricRecordsCreated,
	})
	return sum, nil
}

func (s *Seeder) company() records.CompanyInput {
	return records.CompanyInput{
		Name:      s.faker.Company(),
		Industry:  s.faker.RandomString(Industries),
		Employees: s.faker.IntRange(100, 10000),
		Year:      s.faker.IntRange(firstYear, s.now().Year()),
	}
}

func (s *Seeder) emission(c *records.Company) records.EmissionInput {
	return records.EmissionInput{
		CompanyID:      c.ID,
		Year:           c.Year,
		TotalEmissions: s.float(1000, 100000),
		Scope1:         s.float(100, 10000),
		Scope2:         s.float(500, 50000),
		Scope3:         s.float(200, 20000),
	}
}

func (s *Seeder) metric(k records.MetricKind, c *records.Company) map[string]any {
	values := map[string]any{
		"company_id": float64(c.ID),
		"year":       float64(c.Year),
	}
	for _, col := range k.Columns {
		if col.Type == records.Integer {
			values[col.Name] = float64(s.faker.IntRange(int(col.Min), int(col.Max)))
		} else {
			values[col.Name] = s.float(col.Min, col.Max)
		}
	}

	// Audited suppliers cannot outnumber suppliers.
	total, okT := values["suppliers_total"].(float64)
	audited, okA := values["suppliers_audited"].(float64)
	if okT && okA && audited > total {
		values["suppliers_audited"] = total
	}
	return values
}

// float draws a value in [lo, hi] rounded to two decimals.
func (s *Seeder) float(lo, hi float64) float64 {
	return math.Round(s.faker.Float64Range(lo, hi)*100) / 100
}
