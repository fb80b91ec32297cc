package server

import (
	"net/http"

	"github.com/koustreak/greeny/internal/schema"
)

type columnView struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Nullable   bool   `json:"nullable"`
	PrimaryKey bool   `json:"primary_key,omitempty"`
	References string `json:"references,omitempty"`
}

type tableView struct {
	Name    string       `json:"name"`
	Columns []columnView `json:"columns"`
}

type schemaView struct {
	Tables []tableView `json:"tables"`
	Text   string      `json:"text"`
}

func viewSchema(d *schema.Description) schemaView {
	v := schemaView{Tables: make([]tableView, 0, len(d.Tables)), Text: d.String()}
	for _, t := range d.Tables {
		tv := tableView{Name: t.Name, Columns: make([]columnView, 0, len(t.Columns))}
		for _, c := range t.Columns {
			tv.Columns = append(tv.Columns, columnView{
				Name:       c.Name,
				Type:       c.DataType,
				Nullable:   c.IsNullable,
				PrimaryKey: c.IsPrimaryKey,
				References: c.References,
			})
		}
		v.Tables = append(v.Tables, tv)
	}
	return v
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	d, err := s.deps.Schema.Describe(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewSchema(d))
}

func (s *Server) handleInvalidateSchema(w http.ResponseWriter, r *http.Request) {
	s.deps.Schema.Invalidate()
	w.WriteHeader(http.StatusNoContent)
}
