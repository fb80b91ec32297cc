package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/greeny/internal/database"
	"github.com/koustreak/greeny/internal/errs"
	"github.com/koustreak/greeny/internal/llm/llmtest"
	"github.com/koustreak/greeny/internal/logger"
	"github.com/koustreak/greeny/internal/query"
	"github.com/koustreak/greeny/internal/schema"
)

const (
	synthMarker   = "Return exactly one SQL statement"
	composeMarker = "SQL Result:"
)

type fakeSchema struct {
	desc *schema.Description
	err  error
}

func (f *fakeSchema) Describe(context.Context, ...string) (*schema.Description, error) {
	return f.desc, f.err
}

type fakeExecutor struct {
	mu     sync.Mutex
	result query.Result
	got    []string
}

func (f *fakeExecutor) Execute(_ context.Context, sql string) query.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, sql)
	r := f.result
	r.SQL = sql
	r.Text = query.Render(r)
	return r
}

type recorder struct {
	traces []*Trace
	err    error
}

func (r *recorder) Record(_ context.Context, t *Trace) error {
	r.traces = append(r.traces, t)
	return r.err
}

func testSchema() *schema.Description {
	return &schema.Description{Tables: []schema.TableInfo{
		{Name: "carbonemissions", Columns: []schema.ColumnInfo{
			{Name: "id", DataType: "integer"},
			{Name: "company_id", DataType: "integer", References: "companyinfo.id"},
			{Name: "year", DataType: "integer"},
			{Name: "total_emissions", DataType: "double precision"},
		}},
		{Name: "companyinfo", Columns: []schema.ColumnInfo{
			{Name: "id", DataType: "integer"},
			{Name: "name", DataType: "character varying"},
		}},
	}}
}

func newPipeline(t *testing.T, c *llmtest.Router, exec *fakeExecutor, mutate func(*Config)) *Pipeline {
	t.Helper()
	cfg := Config{
		Logger:   logger.Nop(),
		LLM:      c,
		Schema:   &fakeSchema{desc: testSchema()},
		Executor: exec,
		Dialect:  database.DialectPostgres,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	p, err := New(cfg)
	require.NoError(t, err)
	return p
}

func TestPipeline_CountCompanies(t *testing.T) {
	c := llmtest.NewRouter("").
		On(synthMarker, "```sql\nSELECT COUNT(*) AS \"count\" FROM \"companyinfo\";\n```").
		On(composeMarker, `{"answer":"There are 10 companies.","data_type":"text","chart_type":null,"data":null}`)
	exec := &fakeExecutor{result: query.Result{Columns: []string{"count"}, Rows: [][]any{{int64(10)}}, Count: 1}}

	a, err := newPipeline(t, c, exec, nil).Answer(context.Background(), "How many companies are there?")
	require.NoError(t, err)

	assert.Equal(t, &Answer{Answer: "There are 10 companies.", DataType: DataTypeText}, a)
	assert.Equal(t, []string{`SELECT COUNT(*) AS "count" FROM "companyinfo"`}, exec.got)
	assert.Equal(t, 2, c.Calls())
}

func TestPipeline_EmissionsByCompanyIsBarChart(t *testing.T) {
	reply := "```json\n" + `{
  "answer": "Globex emitted the most in 2023.",
  "data_type": "data",
  "chart_type": "Bar",
  "data": [
    {"company": "Globex", "value": 91000.5, "year": 2023},
    {"company": "Acme", "value": 75000, "year": 2023},
    {"company": "Initech", "value": 52000, "year": 2023},
    {"company": "Umbrella", "value": 31000, "year": 2023.0},
    {"company": "Hooli", "value": 12000, "year": 2023}
  ]
}` + "\n```"
	c := llmtest.NewRouter("").
		On(synthMarker, `SELECT c."name", e."total_emissions" FROM "carbonemissions" e JOIN "companyinfo" c ON c."id" = e."company_id" WHERE e."year" = 2023 ORDER BY 2 DESC LIMIT 5`).
		On(composeMarker, reply)
	exec := &fakeExecutor{result: query.Result{Columns: []string{"name", "total_emissions"}, Rows: [][]any{{"Globex", 91000.5}}, Count: 1}}

	a, err := newPipeline(t, c, exec, nil).Answer(context.Background(), "Show carbon emissions by company for 2023")
	require.NoError(t, err)

	assert.Equal(t, DataTypeData, a.DataType)
	assert.Equal(t, ChartBar, a.ChartType)
	assert.LessOrEqual(t, len(a.Data), 5)
	assert.Equal(t, DataPoint{Company: "Umbrella", Value: 31000, Year: 2023}, a.Data[3])
}

func TestPipeline_UnanswerableQuestionFallsBack(t *testing.T) {
	c := llmtest.NewRouter("").
		On(synthMarker, `SELECT "name" FROM "companyinfo" LIMIT 5`).
		On(composeMarker, `{"answer":"Can't able to find data","data_type":"text","data":null}`)
	exec := &fakeExecutor{result: query.Result{Columns: []string{"name"}, Rows: [][]any{{"Acme"}}, Count: 1}}

	a, err := newPipeline(t, c, exec, nil).Answer(context.Background(), "What is the meaning of life?")
	require.NoError(t, err)
	assert.Equal(t, FallbackAnswer(), a)
}

func TestPipeline_ExecutionFailureGivesTextAnswer(t *testing.T) {
	c := llmtest.NewRouter("").
		On(synthMarker, `SELECT "nme" FROM "companyinfo"`).
		On(composeMarker, `{"answer":"Can't able to find data","data_type":"data","chart_type":"Bar","data":[{"company":"Acme","value":1,"year":2023}]}`)
	exec := &fakeExecutor{result: query.Result{Err: `column "nme" does not exist`}}

	tr, err := newPipeline(t, c, exec, nil).Run(context.Background(), "List companies")
	require.NoError(t, err)

	assert.Equal(t, DataTypeText, tr.Answer.DataType)
	assert.Nil(t, tr.Answer.Data)
	assert.Empty(t, tr.Answer.ChartType)
	assert.Equal(t, `column "nme" does not exist`, tr.ExecutionError)
	assert.Equal(t, `Error: column "nme" does not exist`, tr.Result)
	assert.Equal(t, "degraded", tr.Outcome)
}

func TestPipeline_MalformedCompositionFallsBack(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"prose", "There are ten companies."},
		{"broken json", `{"answer": "ten", "data_type": }`},
		{"missing answer", `{"data_type":"text"}`},
		{"unknown data type", `{"answer":"ten","data_type":"table"}`},
		{"value not a number", `{"answer":"x","data_type":"data","data":[{"company":"Acme","value":"high","year":2023}]}`},
		{"year missing", `{"answer":"x","data_type":"data","data":[{"company":"Acme","value":1}]}`},
		{"data not a list", `{"answer":"x","data_type":"data","data":{"company":"Acme"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := llmtest.NewRouter("").
				On(synthMarker, "SELECT 1").
				On(composeMarker, tt.reply)
			exec := &fakeExecutor{result: query.Result{Columns: []string{"n"}, Rows: [][]any{{int64(1)}}, Count: 1}}

			tr, err := newPipeline(t, c, exec, nil).Run(context.Background(), "How many?")
			require.NoError(t, err)
			assert.Equal(t, FallbackAnswer(), tr.Answer)
			assert.Equal(t, "fallback", tr.Outcome)
		})
	}
}

func TestPipeline_CompositionModelErrorFallsBack(t *testing.T) {
	c := llmtest.NewRouter("").
		On(synthMarker, "SELECT 1").
		OnError(composeMarker, errs.New(errs.ErrKindUpstream, "overloaded"))
	exec := &fakeExecutor{}

	a, err := newPipeline(t, c, exec, nil).Answer(context.Background(), "How many?")
	require.NoError(t, err)
	assert.Equal(t, FallbackAnswer(), a)
}

func TestPipeline_Errors(t *testing.T) {
	t.Run("empty question", func(t *testing.T) {
		c := llmtest.NewRouter("")
		_, err := newPipeline(t, c, &fakeExecutor{}, nil).Answer(context.Background(), "   ")
		assert.True(t, errs.IsInvalidInput(err))
		assert.Zero(t, c.Calls())
	})

	t.Run("schema unavailable", func(t *testing.T) {
		c := llmtest.NewRouter("")
		p := newPipeline(t, c, &fakeExecutor{}, func(cfg *Config) {
			cfg.Schema = &fakeSchema{err: errs.New(errs.ErrKindConnectionFailed, "store unreachable")}
		})
		_, err := p.Answer(context.Background(), "How many?")
		assert.True(t, errs.IsConnectionFailed(err))
		assert.Zero(t, c.Calls())
	})

	t.Run("empty synthesis", func(t *testing.T) {
		exec := &fakeExecutor{}
		c := llmtest.NewRouter("").On(synthMarker, "```sql\n;\n```")
		_, err := newPipeline(t, c, exec, nil).Answer(context.Background(), "How many?")
		assert.True(t, errs.IsUpstream(err))
		assert.Empty(t, exec.got)
	})

	t.Run("synthesis model error", func(t *testing.T) {
		exec := &fakeExecutor{}
		c := llmtest.NewRouter("").OnError(synthMarker, errors.New("connection reset"))
		_, err := newPipeline(t, c, exec, nil).Answer(context.Background(), "How many?")
		assert.True(t, errs.IsUpstream(err))
		assert.Empty(t, exec.got)
	})

	t.Run("synthesis timeout", func(t *testing.T) {
		c := llmtest.NewRouter("").OnError(synthMarker, errs.New(errs.ErrKindTimeout, "deadline"))
		_, err := newPipeline(t, c, &fakeExecutor{}, nil).Answer(context.Background(), "How many?")
		assert.True(t, errs.IsTimeout(err))
	})
}

func TestPipeline_SynthesisPromptCarriesLimit(t *testing.T) {
	s := llmtest.NewScript(`SELECT "name" FROM "companyinfo"`, `{"answer":"ok","data_type":"text"}`)
	exec := &fakeExecutor{}
	p, err := New(Config{
		Logger:   logger.Nop(),
		LLM:      s,
		Schema:   &fakeSchema{desc: testSchema()},
		Executor: exec,
		Dialect:  database.DialectPostgres,
		TopK:     3,
	})
	require.NoError(t, err)

	_, err = p.Answer(context.Background(), "Which companies are listed?")
	require.NoError(t, err)

	prompts := s.Prompts()
	require.Len(t, prompts, 2)
	assert.Contains(t, prompts[0], "LIMIT 3")
	assert.Contains(t, prompts[0], "company_id (integer, references companyinfo.id)")
	assert.Contains(t, prompts[0], "Question: Which companies are listed?")
	assert.Contains(t, prompts[1], `SQL Query: SELECT "name" FROM "companyinfo"`)
	assert.Contains(t, prompts[1], "SQL Result: "+query.NoResults)
}

func TestPipeline_EnforceLimit(t *testing.T) {
	c := llmtest.NewRouter("").
		On(synthMarker, `SELECT "name" FROM "companyinfo"`).
		On(composeMarker, `{"answer":"ok","data_type":"text"}`)
	exec := &fakeExecutor{}

	p := newPipeline(t, c, exec, func(cfg *Config) { cfg.EnforceLimit = true })
	tr, err := p.Run(context.Background(), "Which companies are listed?")
	require.NoError(t, err)

	assert.Equal(t, []string{`SELECT "name" FROM "companyinfo" LIMIT 5`}, exec.got)
	assert.Equal(t, exec.got[0], tr.SQL)
}

func TestPipeline_StrictChartPolicy(t *testing.T) {
	c := llmtest.NewRouter("").
		On(synthMarker, "SELECT 1").
		On(composeMarker, `{"answer":"Trend","data_type":"data","chart_type":"Pie","data":[
			{"company":"Acme","value":10,"year":2021},
			{"company":"Acme","value":12,"year":2022}]}`)

	p := newPipeline(t, c, &fakeExecutor{}, func(cfg *Config) { cfg.ChartPolicy = ChartStrict })
	a, err := p.Answer(context.Background(), "How did Acme's emissions change?")
	require.NoError(t, err)
	assert.Equal(t, ChartLine, a.ChartType)

	advisory := newPipeline(t, c, &fakeExecutor{}, nil)
	a, err = advisory.Answer(context.Background(), "How did Acme's emissions change?")
	require.NoError(t, err)
	assert.Equal(t, ChartPie, a.ChartType)
}

func TestPipeline_Idempotent(t *testing.T) {
	newRun := func() []byte {
		c := llmtest.NewRouter("").
			On(synthMarker, "SELECT 1").
			On(composeMarker, `{"answer":"Two companies.","data_type":"data","data":[
				{"company":"Acme","value":1.25,"year":2023},
				{"company":"Globex","value":2.5,"year":2023}]}`)
		exec := &fakeExecutor{result: query.Result{Columns: []string{"n"}, Rows: [][]any{{1.25}}, Count: 1}}
		a, err := newPipeline(t, c, exec, nil).Answer(context.Background(), "Emissions per company")
		require.NoError(t, err)
		b, err := json.Marshal(a)
		require.NoError(t, err)
		return b
	}

	first, second := newRun(), newRun()
	if diff := cmp.Diff(string(first), string(second)); diff != "" {
		t.Fatalf("answers differ (-first +second):\n%s", diff)
	}
}

func TestPipeline_RecordsTrace(t *testing.T) {
	c := llmtest.NewRouter("").
		On(synthMarker, "SELECT 1").
		On(composeMarker, `{"answer":"ok","data_type":"text"}`)
	rec := &recorder{err: errors.New("bucket missing")}

	p := newPipeline(t, c, &fakeExecutor{}, func(cfg *Config) { cfg.Recorder = rec })
	tr, err := p.Run(context.Background(), "  How many?  ")
	require.NoError(t, err, "archive failures never fail the request")

	require.Len(t, rec.traces, 1)
	assert.Same(t, tr, rec.traces[0])
	assert.Equal(t, "How many?", tr.Question)
	assert.NotEmpty(t, tr.ID)
	assert.True(t, strings.HasPrefix(tr.Schema, "carbonemissions:\n"))

	b, err := json.Marshal(tr)
	require.NoError(t, err)
	var back Trace
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, tr.Answer, back.Answer)
	assert.Contains(t, string(b), `"total_ms"`)
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	_, err = New(Config{LLM: llmtest.NewScript()})
	assert.Error(t, err)

	_, err = New(Config{LLM: llmtest.NewScript(), Schema: &fakeSchema{}})
	assert.Error(t, err)
}

func TestParseChartPolicy(t *testing.T) {
	p, err := ParseChartPolicy("")
	require.NoError(t, err)
	assert.Equal(t, ChartAdvisory, p)

	p, err = ParseChartPolicy("STRICT")
	require.NoError(t, err)
	assert.Equal(t, ChartStrict, p)

	_, err = ParseChartPolicy("loose")
	assert.True(t, errs.IsInvalidInput(err))
}
