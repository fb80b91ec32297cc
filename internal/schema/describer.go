package schema

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/koustreak/greeny/internal/errs"
	"github.com/koustreak/greeny/internal/logger"
)

// Options configures a Describer.
type Options struct {
	// Tables restricts descriptions to these tables. Empty means every base table.
	Tables []string

	// CacheTTL keeps descriptions for this long. Zero refetches on every call.
	CacheTTL time.Duration
}

// Describer produces the schema description that scopes query synthesis.
// It is safe for concurrent use.
type Describer struct {
	reader Reader
	tables []string
	cache  *ttlcache.Cache[string, *Description]
}

// NewDescriber returns a Describer reading through r.
func NewDescriber(r Reader, opts Options) *Describer {
	d := &Describer{reader: r, tables: normalizeTables(opts.Tables)}
	if opts.CacheTTL > 0 {
		d.cache = ttlcache.New(
			ttlcache.WithTTL[string, *Description](opts.CacheTTL),
			ttlcache.WithDisableTouchOnHit[string, *Description](),
		)
	}
	return d
}

// Describe lists the columns of the requested tables, or of the configured
// whitelist when none are given, or of every base table when both are empty.
// Requested tables that do not exist are skipped. A store that cannot be read,
// or a description with nothing in it, is reported as connection_failed
// (timeout when the context expired).
func (d *Describer) Describe(ctx context.Context, tables ...string) (*Description, error) {
	want := normalizeTables(tables)
	if len(want) == 0 {
		want = d.tables
	}

	key := strings.Join(want, ",")
	if d.cache != nil {
		if item := d.cache.Get(key); item != nil {
			return item.Value(), nil
		}
	}

	desc, err := d.load(ctx, want)
	if err != nil {
		return nil, unavailable(ctx, err)
	}
	if desc.Empty() {
		return nil, errs.New(errs.ErrKindConnectionFailed, "schema unavailable: no tables to describe")
	}

	if d.cache != nil {
		d.cache.Set(key, desc, ttlcache.DefaultTTL)
	}
	logger.FromContext(ctx).With().
		Int("tables", len(desc.Tables)).
		Logger().
		Debug("schema described")
	return desc, nil
}

// Invalidate drops every cached description.
func (d *Describer) Invalidate() {
	if d.cache != nil {
		d.cache.DeleteAll()
	}
}

func (d *Describer) load(ctx context.Context, want []string) (*Description, error) {
	names, err := d.resolve(ctx, want)
	if err != nil {
		return nil, err
	}
	slices.Sort(names)

	desc := &Description{Tables: make([]TableInfo, 0, len(names))}
	for _, name := range names {
		info, err := d.reader.InspectTable(ctx, name)
		if err != nil {
			return nil, err
		}
		desc.Tables = append(desc.Tables, *info)
	}

	fks, err := d.reader.ListForeignKeys(ctx)
	if err != nil {
		return nil, err
	}
	applyForeignKeys(desc.Tables, fks)
	return desc, nil
}

// resolve lists every base table, or checks only the requested ones.
func (d *Describer) resolve(ctx context.Context, want []string) ([]string, error) {
	if len(want) == 0 {
		return d.reader.ListTables(ctx)
	}
	names := make([]string, 0, len(want))
	for _, t := range want {
		ok, err := d.reader.TableExists(ctx, t)
		if err != nil {
			return nil, err
		}
		if ok {
			names = append(names, t)
		}
	}
	return names, nil
}

func unavailable(ctx context.Context, err error) error {
	if ctx.Err() != nil || errs.IsTimeout(err) {
		return errs.Wrap(errs.ErrKindTimeout, "schema unavailable", err)
	}
	return errs.Wrap(errs.ErrKindConnectionFailed, "schema unavailable", err)
}

func normalizeTables(tables []string) []string {
	out := make([]string, 0, len(tables))
	for _, t := range tables {
		t = strings.TrimSpace(t)
		if t != "" && !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	slices.Sort(out)
	return out
}
