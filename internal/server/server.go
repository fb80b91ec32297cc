// Package server exposes the records API and the question answering
// pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/koustreak/greeny/internal/archive"
	"github.com/koustreak/greeny/internal/logger"
	"github.com/koustreak/greeny/internal/metrics"
	"github.com/koustreak/greeny/internal/pipeline"
	"github.com/koustreak/greeny/internal/records"
	"github.com/koustreak/greeny/internal/schema"
	"github.com/koustreak/greeny/internal/seed"
)

// Answerer runs the question answering pipeline.
type Answerer interface {
	Run(ctx context.Context, question string) (*pipeline.Trace, error)
}

// SchemaService describes the store and drops cached descriptions.
type SchemaService interface {
	Describe(ctx context.Context, tables ...string) (*schema.Description, error)
	Invalidate()
}

// RecordStore reads and writes sustainability records.
type RecordStore interface {
	ListCompanies(ctx context.Context, page records.Page) ([]records.Company, error)
	GetCompany(ctx context.Context, id int64) (*records.Company, error)
	CreateCompany(ctx context.Context, in records.CompanyInput) (*records.Company, error)
	ListEmissions(ctx context.Context, page records.Page) ([]records.Emission, error)
	ListCompanyEmissions(ctx context.Context, companyID int64) ([]records.Emission, error)
	CreateEmission(ctx context.Context, in records.EmissionInput) (*records.Emission, error)
	ListMetrics(ctx context.Context, kind string, f records.MetricFilter, page records.Page) ([]records.Metric, error)
	CreateMetric(ctx context.Context, kind string, values map[string]any) (records.Metric, error)
}

// Ingester generates sample data.
type Ingester interface {
	Ingest(ctx context.Context, n int) (*seed.Summary, error)
}

// Transcripts reads archived pipeline runs.
type Transcripts interface {
	Get(ctx context.Context, id string) (*pipeline.Trace, error)
	List(ctx context.Context, limit int) ([]archive.Entry, error)
	URL(ctx context.Context, id string, ttl time.Duration) (string, error)
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators behind the handlers. Transcripts may be nil
// when archiving is disabled.
type Deps struct {
	Answerer    Answerer
	Schema      SchemaService
	Records     RecordStore
	Seeder      Ingester
	Transcripts Transcripts
	DB          Pinger
	Logger      *logger.Logger
}

// Options tunes the HTTP layer.
type Options struct {
	RequestTimeout time.Duration
	CORSOrigins    []string
}

// Server is the HTTP front of greeny.
type Server struct {
	deps   Deps
	opts   Options
	log    *logger.Logger
	router chi.Router
}

// New builds the router.
func New(deps Deps, opts Options) *Server {
	if deps.Logger == nil {
		deps.Logger = logger.L()
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	s := &Server{deps: deps, opts: opts, log: deps.Logger}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logger.Middleware(s.log))
	r.Use(metrics.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if s.opts.RequestTimeout > 0 {
			r.Use(middleware.Timeout(s.opts.RequestTimeout))
		}

		r.Post("/generate-answer", s.handleGenerateAnswer)
		r.Route("/v1", func(r chi.Router) {
			r.Post("/answers", s.handleCreateAnswer)
			r.Get("/answers", s.handleListAnswers)
			r.Get("/answers/{id}", s.handleGetAnswer)
			r.Get("/answers/{id}/url", s.handleAnswerURL)
			r.Get("/schema", s.handleSchema)
			r.Post("/schema/invalidate", s.handleInvalidateSchema)
		})

		r.Get("/companies", s.handleListCompanies)
		r.Post("/companies", s.handleCreateCompany)
		r.Get("/companies/{id}", s.handleGetCompany)
		r.Get("/companies/{id}/emissions", s.handleCompanyEmissions)
		r.Get("/carbon_emissions", s.handleListEmissions)
		r.Post("/carbon_emissions", s.handleCreateEmission)
		r.Get("/metrics/{kind}", s.handleListMetrics)
		r.Post("/metrics/{kind}", s.handleCreateMetric)
		r.Post("/ingest_data", s.handleIngest)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeErrorKind(w, http.StatusNotFound, "not_found", "no route for "+r.Method+" "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeErrorKind(w, http.StatusMethodNotAllowed, "invalid_input", "method "+r.Method+" not allowed")
	})
	return r
}

// Run serves on addr until ctx is cancelled, then drains in-flight requests
// for up to shutdownTimeout.
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
