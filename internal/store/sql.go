package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/rca-cli/internal/model"
)

// SQLReader implements Reader on database/sql for SQLite and MySQL caches.
// Both drivers accept "?" placeholders.
type SQLReader struct {
	db      *sql.DB
	driver  string
	tables  Tables
	nowFunc func() time.Time
}

// NewSQLReader wraps an open database handle.
func NewSQLReader(db *sql.DB, driver string, tables Tables) *SQLReader {
	return &SQLReader{db: db, driver: driver, tables: tables.withDefaults(), nowFunc: time.Now}
}

// OpenSQLite opens a SQLite cache file read-mostly with WAL enabled.
func OpenSQLite(dsn string, tables Tables) (*SQLReader, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return NewSQLReader(db, "sqlite", tables), nil
}

// OpenMySQL opens a MySQL cache. DATE columns are returned as time.Time.
func OpenMySQL(ctx context.Context, dsn string, tables Tables) (*SQLReader, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, eris.Wrap(err, "mysql: parse dsn")
	}
	cfg.ParseTime = true

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, eris.Wrap(err, "mysql: connector")
	}
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		db.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "mysql: ping")
	}
	return NewSQLReader(db, "mysql", tables), nil
}

func (r *SQLReader) Close() error {
	return r.db.Close()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func intArgs(ids []int) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func (r *SQLReader) QueryRates(ctx context.Context, ids []int, from, to time.Time) (*RateSet, error) {
	tables := TablesForWindow(r.tables.Rates, r.tables.ArchivePattern, from, to, r.nowFunc().Year())
	if len(ids) == 0 {
		return newRateSet(nil), nil
	}
	// Half-open upper bound so DATETIME text still matches the last day.
	args := append(intArgs(ids), model.FormatDate(from), model.FormatDate(model.Day(to).AddDate(0, 0, 1)))

	rs := collectRates(ctx, r.driver, ids, tables, func(ctx context.Context, table string) ([]model.RateRecord, int, error) {
		query := fmt.Sprintf(`SELECT %s FROM %s
	WHERE store_id IN (%s) AND date_collected >= ? AND date_collected < ? AND regular_rate IS NOT NULL
	ORDER BY store_id, date_collected`, rateColumns, table, placeholders(len(ids)))

		rows, err := r.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, 0, eris.Wrapf(err, "%s: query %s", r.driver, table)
		}
		defer rows.Close() //nolint:errcheck

		recs, malformed := scanRates(rows, r.driver, table)
		if err := rows.Err(); err != nil {
			return nil, 0, eris.Wrapf(err, "%s: iterate %s", r.driver, table)
		}
		return recs, malformed, nil
	})
	return rs, nil
}

func (r *SQLReader) QueryEntityInfo(ctx context.Context, ids []int) (map[int]model.EntityInfo, error) {
	out := make(map[int]model.EntityInfo, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	if err := validIdent(r.tables.Info); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE store_id IN (%s)`, infoColumns, r.tables.Info, placeholders(len(ids)))
	rows, err := r.db.QueryContext(ctx, query, intArgs(ids)...)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: query sites", r.driver)
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		info, err := scanInfo(rows)
		if err != nil {
			return nil, err
		}
		out[info.ID] = info
	}
	return out, eris.Wrapf(rows.Err(), "%s: iterate sites", r.driver)
}

// Open builds a Reader for the configured driver.
func Open(ctx context.Context, driver, dsn string, tables Tables) (Reader, error) {
	var (
		r   Reader
		err error
	)
	switch driver {
	case "", "postgres":
		r, err = NewPostgres(ctx, dsn, tables, nil)
	case "sqlite":
		r, err = OpenSQLite(dsn, tables)
	case "mysql":
		r, err = OpenMySQL(ctx, dsn, tables)
	default:
		return nil, eris.Errorf("store: unsupported driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}
