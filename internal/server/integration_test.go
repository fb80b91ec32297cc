//go:build integration

package server_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcminio "github.com/testcontainers/testcontainers-go/modules/minio"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/koustreak/greeny/internal/archive"
	"github.com/koustreak/greeny/internal/database"
	"github.com/koustreak/greeny/internal/database/migrations"
	"github.com/koustreak/greeny/internal/database/postgres"
	"github.com/koustreak/greeny/internal/filestore"
	"github.com/koustreak/greeny/internal/filestore/minio"
	"github.com/koustreak/greeny/internal/llm/llmtest"
	"github.com/koustreak/greeny/internal/logger"
	"github.com/koustreak/greeny/internal/pipeline"
	"github.com/koustreak/greeny/internal/query"
	"github.com/koustreak/greeny/internal/records"
	"github.com/koustreak/greeny/internal/schema"
	"github.com/koustreak/greeny/internal/seed"
	"github.com/koustreak/greeny/internal/server"
)

const (
	synthMarker   = "Return exactly one SQL statement"
	composeMarker = "SQL Result:"
)

func startPostgres(t *testing.T, ctx context.Context) *postgres.Driver {
	t.Helper()

	pgContainer, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("greeny"),
		tcpostgres.WithUsername("greeny"),
		tcpostgres.WithPassword("greeny"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(context.Background()); err != nil {
			t.Logf("failed to cleanup postgres container: %v", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	cfg := database.DefaultConfig(fmt.Sprintf("postgres://greeny:greeny@%s:%s/greeny?sslmode=disable", host, port.Port()))
	db, err := postgres.New(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, migrations.Up(ctx, db.SQLDB(), db.Dialect()))
	return db
}

func startArchive(t *testing.T, ctx context.Context) *archive.Archive {
	t.Helper()

	minioContainer, err := tcminio.Run(ctx, "minio/minio:latest",
		tcminio.WithUsername("minioadmin"),
		tcminio.WithPassword("minioadmin"),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := minioContainer.Terminate(context.Background()); err != nil {
			t.Logf("failed to cleanup minio container: %v", err)
		}
	})

	endpoint, err := minioContainer.ConnectionString(ctx)
	require.NoError(t, err)

	cfg := filestore.DefaultConfig(endpoint, minioContainer.Username, minioContainer.Password)
	store, err := minio.New(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, store.EnsureBucket(ctx, cfg.Bucket))
	return archive.New(store, cfg.Bucket, "answers")
}

func TestServer_EndToEnd(t *testing.T) {
	ctx := context.Background()
	db := startPostgres(t, ctx)
	arc := startArchive(t, ctx)

	store := records.New(db)
	summary, err := seed.New(store, 7).Ingest(ctx, 5)
	require.NoError(t, err)
	require.Equal(t, 5, summary.CompaniesCreated)

	model := llmtest.NewRouter("").
		On("How many companies", "SQLQuery: SELECT COUNT(*) AS companies FROM companyinfo").
		On("meaning of life", "SELECT 42 AS answer FROM companyinfo WHERE 1 = 0").
		On("emissions by company", "```sql\nSELECT c.name, e.total_emissions, e.year FROM carbonemissions e JOIN companyinfo c ON c.id = e.company_id ORDER BY e.total_emissions DESC LIMIT 5;\n```")

	describer := schema.NewDescriber(schema.NewReader(db, ""), schema.Options{})
	p, err := pipeline.New(pipeline.Config{
		Logger: logger.Nop(),
		LLM:    llmtestCompose{
			synth: model,
			answers: map[string]string{
				"COUNT(*)":        `{"answer": "There are 5 companies.", "data_type": "text"}`,
				"42 AS answer":    `not json at all`,
				"total_emissions": `{"answer": "Top emitters", "data_type": "data", "data": [{"company": "A", "value": 10, "year": 2023}, {"company": "B", "value": 8, "year": 2023}]}`,
			},
		},
		Schema:   describer,
		Executor: query.NewExecutor(db, query.Options{Timeout: 5 * time.Second, ReadOnly: true}),
		Recorder: arc,
		Dialect:  db.Dialect(),
	})
	require.NoError(t, err)

	srv := server.New(server.Deps{
		Answerer:    p,
		Schema:      describer,
		Records:     store,
		Seeder:      seed.New(store, 8),
		Transcripts: arc,
		DB:          db,
		Logger:      logger.Nop(),
	}, server.Options{RequestTimeout: 30 * time.Second})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ask := func(q string) (pipeline.Answer, string) {
		t.Helper()
		resp, err := http.Post(ts.URL+"/v1/answers", "application/json", strings.NewReader(`{"query":"`+q+`"}`))
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			Response pipeline.Answer `json:"response"`
			ID       string          `json:"id"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		return body.Response, body.ID
	}

	t.Run("count", func(t *testing.T) {
		ans, id := ask("How many companies are there?")
		assert.Equal(t, pipeline.DataTypeText, ans.DataType)
		assert.Contains(t, ans.Answer, "5")

		resp, err := http.Get(ts.URL + "/v1/answers/" + id)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var trace pipeline.Trace
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&trace))
		assert.Equal(t, "SELECT COUNT(*) AS companies FROM companyinfo", trace.SQL)
		assert.Contains(t, trace.Result, "5")
	})

	t.Run("emissions by company", func(t *testing.T) {
		ans, _ := ask("Show total emissions by company for 2023")
		assert.Equal(t, pipeline.DataTypeData, ans.DataType)
		assert.Equal(t, pipeline.ChartBar, ans.ChartType)
		assert.LessOrEqual(t, len(ans.Data), 5)
	})

	t.Run("meaning of life", func(t *testing.T) {
		ans, _ := ask("What is the meaning of life?")
		assert.Equal(t, pipeline.FallbackAnswer(), &ans)
	})

	t.Run("records", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/companies/?limit=2")
		require.NoError(t, err)
		defer resp.Body.Close()

		var companies []records.Company
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&companies))
		assert.Len(t, companies, 2)
	})

	t.Run("ingest", func(t *testing.T) {
		resp, err := http.Post(ts.URL+"/ingest_data?companies=2", "application/json", nil)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		all, err := store.ListCompanies(ctx, records.Page{})
		require.NoError(t, err)
		assert.Len(t, all, 7)
	})

	t.Run("ready", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/readyz")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

// llmtestCompose routes synthesis prompts to synth and answers composition
// prompts by the SQL they carry.
type llmtestCompose struct {
	synth   *llmtest.Router
	answers map[string]string
}

func (c llmtestCompose) Complete(ctx context.Context, prompt string) (string, error) {
	if strings.Contains(prompt, synthMarker) {
		return c.synth.Complete(ctx, prompt)
	}
	if strings.Contains(prompt, composeMarker) {
		for sqlPart, reply := range c.answers {
			if strings.Contains(prompt, sqlPart) {
				return reply, nil
			}
		}
	}
	return "", nil
}
