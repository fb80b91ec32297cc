package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/koustreak/greeny/internal/errs"
	"github.com/koustreak/greeny/internal/records"
)

func pageFromQuery(r *http.Request) (records.Page, error) {
	skip, err := queryInt(r, "skip", 0)
	if err != nil {
		return records.Page{}, err
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		return records.Page{}, err
	}
	return records.Page{Skip: skip, Limit: limit}, nil
}

func (s *Server) handleListCompanies(w http.ResponseWriter, r *http.Request) {
	page, err := pageFromQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	companies, err := s.deps.Records.ListCompanies(r.Context(), page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, companies)
}

func (s *Server) handleGetCompany(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.deps.Records.GetCompany(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleCreateCompany(w http.ResponseWriter, r *http.Request) {
	var in records.CompanyInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.deps.Records.CreateCompany(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleCompanyEmissions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := s.deps.Records.ListCompanyEmissions(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListEmissions(w http.ResponseWriter, r *http.Request) {
	page, err := pageFromQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := s.deps.Records.ListEmissions(r.Context(), page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateEmission(w http.ResponseWriter, r *http.Request) {
	var in records.EmissionInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	e, err := s.deps.Records.CreateEmission(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleListMetrics(w http.ResponseWriter, r *http.Request) {
	page, err := pageFromQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var f records.MetricFilter
	q := r.URL.Query()
	if raw := q.Get("company_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, r, errs.New(errs.ErrKindInvalidInput, "company_id must be an integer"))
			return
		}
		f.CompanyID = &id
	}
	if raw := q.Get("year"); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, errs.New(errs.ErrKindInvalidInput, "year must be an integer"))
			return
		}
		f.Year = &year
	}

	out, err := s.deps.Records.ListMetrics(r.Context(), chi.URLParam(r, "kind"), f, page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if out == nil {
		out = []records.Metric{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateMetric(w http.ResponseWriter, r *http.Request) {
	var values map[string]any
	if err := decodeJSON(r, &values); err != nil {
		writeError(w, r, err)
		return
	}
	m, err := s.deps.Records.CreateMetric(r.Context(), chi.URLParam(r, "kind"), values)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// handleIngest seeds sample data. ?companies=N overrides the default count.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	n, err := queryInt(r, "companies", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	summary, err := s.deps.Seeder.Ingest(r.Context(), n)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
