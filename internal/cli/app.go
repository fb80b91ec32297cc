package cli

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/koustreak/greeny/internal/archive"
	"github.com/koustreak/greeny/internal/config"
	"github.com/koustreak/greeny/internal/database"
	"github.com/koustreak/greeny/internal/database/migrations"
	"github.com/koustreak/greeny/internal/database/mysql"
	"github.com/koustreak/greeny/internal/database/postgres"
	"github.com/koustreak/greeny/internal/filestore/minio"
	"github.com/koustreak/greeny/internal/llm"
	"github.com/koustreak/greeny/internal/logger"
	"github.com/koustreak/greeny/internal/pipeline"
	"github.com/koustreak/greeny/internal/query"
	"github.com/koustreak/greeny/internal/schema"
)

// store is a database.DB that can also hand out a database/sql handle for
// migrations.
type store interface {
	database.DB
	SQLDB() *sql.DB
}

// app holds the resources a command opens from configuration.
type app struct {
	cfg       *config.Config
	log       *logger.Logger
	db        store
	describer *schema.Describer
}

func openApp(ctx context.Context, cfg *config.Config) (*app, error) {
	dc, err := cfg.DatabaseConfig()
	if err != nil {
		return nil, err
	}

	var db store
	switch dc.Driver {
	case database.DriverMySQL:
		db, err = mysql.New(ctx, dc)
	default:
		db, err = postgres.New(ctx, dc)
	}
	if err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx)
	log.With().Str("driver", string(dc.Driver)).Logger().Debug("database connected")

	return &app{
		cfg: cfg,
		log: log,
		db:  db,
		describer: schema.NewDescriber(schema.NewReader(db, ""), schema.Options{
			Tables:   cfg.Pipeline.Tables,
			CacheTTL: cfg.Pipeline.SchemaCacheTTL,
		}),
	}, nil
}

func (a *app) Close() {
	a.db.Close()
}

// migrate applies pending migrations and drops any cached schema description.
func (a *app) migrate(ctx context.Context) error {
	if err := migrations.Up(ctx, a.db.SQLDB(), a.db.Dialect()); err != nil {
		return err
	}
	a.describer.Invalidate()
	v, err := migrations.Version(ctx, a.db.SQLDB(), a.db.Dialect())
	if err != nil {
		return err
	}
	a.log.Infof("database at migration version %d", v)
	return nil
}

func (a *app) executor() *query.Executor {
	return query.NewExecutor(a.db, query.Options{
		Timeout:  a.cfg.Database.QueryTimeout,
		MaxRows:  a.cfg.Pipeline.MaxResultRows,
		ReadOnly: a.cfg.Pipeline.ReadOnlyGuard,
	})
}

// archive opens the transcript archive, or returns nil when it is disabled.
func (a *app) archive(ctx context.Context) (*archive.Archive, error) {
	if !a.cfg.Archive.Enabled {
		return nil, nil
	}
	fc := a.cfg.FilestoreConfig()
	fs, err := minio.New(ctx, fc)
	if err != nil {
		return nil, fmt.Errorf("open answer archive: %w", err)
	}
	if err := fs.EnsureBucket(ctx, fc.Bucket); err != nil {
		return nil, fmt.Errorf("open answer archive: %w", err)
	}
	return archive.New(fs, fc.Bucket, a.cfg.Archive.Prefix), nil
}

func (a *app) pipeline(ctx context.Context, rec pipeline.Recorder) (*pipeline.Pipeline, error) {
	lc, err := a.cfg.LLMConfig()
	if err != nil {
		return nil, err
	}
	completer, err := llm.New(ctx, lc, a.log)
	if err != nil {
		return nil, err
	}
	policy, err := pipeline.ParseChartPolicy(a.cfg.Pipeline.ChartPolicy)
	if err != nil {
		return nil, err
	}

	return pipeline.New(pipeline.Config{
		Logger:       a.log,
		LLM:          completer,
		Schema:       a.describer,
		Executor:     a.executor(),
		Recorder:     rec,
		Dialect:      a.db.Dialect(),
		TopK:         a.cfg.Pipeline.TopK,
		EnforceLimit: a.cfg.Pipeline.EnforceLimit,
		ChartPolicy:  policy,
	})
}
