// Package pipeline answers free-text questions about the store: it describes
// the schema, synthesizes one SQL query, executes it and composes a
// chart-ready answer from the result.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/koustreak/greeny/internal/database"
	"github.com/koustreak/greeny/internal/errs"
	"github.com/koustreak/greeny/internal/llm"
	"github.com/koustreak/greeny/internal/logger"
	"github.com/koustreak/greeny/internal/metrics"
	"github.com/koustreak/greeny/internal/query"
	"github.com/koustreak/greeny/internal/schema"
)

// DefaultTopK is the row cap the synthesis prompt asks for.
const DefaultTopK = 5

// SchemaSource describes the tables a query may use.
type SchemaSource interface {
	Describe(ctx context.Context, tables ...string) (*schema.Description, error)
}

// Executor runs a synthesized query. Failures are reported in the Result.
type Executor interface {
	Execute(ctx context.Context, sql string) query.Result
}

// Recorder stores a finished run. Errors are logged and otherwise ignored.
type Recorder interface {
	Record(ctx context.Context, t *Trace) error
}

// Config holds the collaborators and tuning of a Pipeline.
type Config struct {
	Logger   *logger.Logger
	LLM      llm.Completer
	Schema   SchemaSource
	Executor Executor
	Recorder Recorder // optional
	Prompts  *Prompts // optional, embedded prompts when nil

	Dialect      database.Dialect
	TopK         int  // default 5
	EnforceLimit bool // append LIMIT TopK to unbounded top-level selects
	ChartPolicy  ChartPolicy
}

// Pipeline orchestrates the four stages. It holds no per-request state and
// is safe for concurrent use.
type Pipeline struct {
	cfg         Config
	log         *logger.Logger
	synthesizer *Synthesizer
	composer    *Composer
}

// New validates cfg and builds a Pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.LLM == nil {
		return nil, fmt.Errorf("LLM client is required")
	}
	if cfg.Schema == nil {
		return nil, fmt.Errorf("schema source is required")
	}
	if cfg.Executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.L()
	}
	if cfg.Prompts == nil {
		p, err := LoadPrompts()
		if err != nil {
			return nil, err
		}
		cfg.Prompts = p
	}

	composer, err := NewComposer(cfg.LLM, cfg.Prompts, cfg.ChartPolicy)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		cfg:         cfg,
		log:         cfg.Logger,
		synthesizer: NewSynthesizer(cfg.LLM, cfg.Prompts, cfg.Dialect),
		composer:    composer,
	}, nil
}

// Answer runs the pipeline and returns only the payload.
func (p *Pipeline) Answer(ctx context.Context, question string) (*Answer, error) {
	t, err := p.Run(ctx, question)
	if err != nil {
		return nil, err
	}
	return t.Answer, nil
}

// Run answers question and returns the full trace. It fails only for an
// empty question, an unreadable schema or a failed synthesis; execution and
// composition failures still produce an answer.
func (p *Pipeline) Run(ctx context.Context, question string) (*Trace, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "question must not be empty")
	}

	t := &Trace{
		ID:        uuid.NewString(),
		Question:  question,
		CreatedAt: time.Now().UTC(),
	}

	log := logger.FromContext(ctx)
	if log == logger.L() {
		log = p.log
	}
	log = log.With().Str("trace_id", t.ID).Logger()
	ctx = log.WithContext(ctx)

	start := time.Now()
	desc, err := p.cfg.Schema.Describe(ctx)
	t.Timings.Describe = observe(metrics.StageDescribe, start)
	if err != nil {
		log.ErrorWith("schema unavailable", err, nil)
		return nil, err
	}
	t.Schema = desc.String()

	start = time.Now()
	sql, err := p.synthesizer.Synthesize(ctx, question, t.Schema, p.cfg.TopK)
	t.Timings.Synthesize = observe(metrics.StageSynthesize, start)
	if err != nil {
		log.ErrorWith("query synthesis failed", err, nil)
		return nil, err
	}
	if p.cfg.EnforceLimit {
		sql = query.EnsureLimit(sql, p.cfg.TopK, p.cfg.Dialect)
	}
	t.SQL = sql
	log.With().Str("sql", sql).Logger().Debug("query synthesized")

	start = time.Now()
	result := p.cfg.Executor.Execute(ctx, sql)
	t.Timings.Execute = observe(metrics.StageExecute, start)
	t.Result = result.Text
	t.ExecutionError = result.Err

	start = time.Now()
	answer, fellBack := p.composer.compose(ctx, question, sql, result)
	t.Timings.Compose = observe(metrics.StageCompose, start)
	t.Answer = answer

	outcome := metrics.OutcomeAnswered
	switch {
	case fellBack:
		outcome = metrics.OutcomeFallback
	case result.Failed():
		outcome = metrics.OutcomeDegraded
	}
	t.Outcome = outcome
	metrics.PipelineAnswersTotal.WithLabelValues(string(answer.DataType), outcome).Inc()

	log.InfoWith("question answered", map[string]any{
		"outcome":       outcome,
		"data_type":     string(answer.DataType),
		"rows":          result.Count,
		"describe_ms":   t.Timings.Describe.Milliseconds(),
		"synthesize_ms": t.Timings.Synthesize.Milliseconds(),
		"execute_ms":    t.Timings.Execute.Milliseconds(),
		"compose_ms":    t.Timings.Compose.Milliseconds(),
	})

	if p.cfg.Recorder != nil {
		if err := p.cfg.Recorder.Record(ctx, t); err != nil {
			log.WarnWith("failed to archive transcript", err, nil)
		}
	}
	return t, nil
}

func observe(stage string, start time.Time) time.Duration {
	d := time.Since(start)
	metrics.ObserveStage(stage, d)
	return d
}
