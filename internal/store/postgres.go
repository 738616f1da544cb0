package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/rca-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool used by the reader, so tests can
// substitute pgxmock.
type Pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresReader implements Reader on a pgx connection pool.
type PostgresReader struct {
	pool    Pool
	tables  Tables
	nowFunc func() time.Time
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres connects to the cache database.
func NewPostgres(ctx context.Context, connString string, tables Tables, poolCfg *PoolConfig) (*PostgresReader, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return NewPostgresReader(pool, tables), nil
}

// NewPostgresReader wraps an existing pool.
func NewPostgresReader(pool Pool, tables Tables) *PostgresReader {
	return &PostgresReader{pool: pool, tables: tables.withDefaults(), nowFunc: time.Now}
}

func (r *PostgresReader) Close() error {
	r.pool.Close()
	return nil
}

func (r *PostgresReader) QueryRates(ctx context.Context, ids []int, from, to time.Time) (*RateSet, error) {
	tables := TablesForWindow(r.tables.Rates, r.tables.ArchivePattern, from, to, r.nowFunc().Year())
	if len(ids) == 0 {
		return newRateSet(nil), nil
	}
	rs := collectRates(ctx, "postgres", ids, tables, func(ctx context.Context, table string) ([]model.RateRecord, int, error) {
		query := fmt.Sprintf(`SELECT %s FROM %s
	WHERE store_id = ANY($1) AND date_collected >= $2 AND date_collected <= $3 AND regular_rate IS NOT NULL
	ORDER BY store_id, date_collected`, rateColumns, table)

		rows, err := r.pool.Query(ctx, query, ids, model.Day(from), model.Day(to))
		if err != nil {
			return nil, 0, eris.Wrapf(err, "postgres: query %s", table)
		}
		defer rows.Close()

		recs, malformed := scanRates(rows, "postgres", table)
		if err := rows.Err(); err != nil {
			return nil, 0, eris.Wrapf(err, "postgres: iterate %s", table)
		}
		return recs, malformed, nil
	})
	return rs, nil
}

func (r *PostgresReader) QueryEntityInfo(ctx context.Context, ids []int) (map[int]model.EntityInfo, error) {
	out := make(map[int]model.EntityInfo, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	if err := validIdent(r.tables.Info); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE store_id = ANY($1)`, infoColumns, r.tables.Info)
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query sites")
	}
	defer rows.Close()

	for rows.Next() {
		info, err := scanInfo(rows)
		if err != nil {
			return nil, err
		}
		out[info.ID] = info
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate sites")
}
