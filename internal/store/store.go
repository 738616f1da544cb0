// Package store reads the local rate cache. Access is read-only; schema
// management belongs to whoever populates the cache.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/rca-cli/internal/model"
)

// Reader is the Local Coverage Reader. Implementations are safe for
// concurrent use.
type Reader interface {
	// QueryRates returns every local rate row for ids dated within
	// [from, to]. Per-table failures are reported in RateSet.TableErrors.
	QueryRates(ctx context.Context, ids []int, from, to time.Time) (*RateSet, error)
	// QueryEntityInfo returns the site directory entries for ids.
	QueryEntityInfo(ctx context.Context, ids []int) (map[int]model.EntityInfo, error)
	Close() error
}

// Tables names the cache tables. ArchivePattern is a fmt pattern taking a
// year (e.g. "rates_%d"); empty disables archive lookups.
type Tables struct {
	Rates          string `yaml:"rates_table" mapstructure:"rates_table"`
	ArchivePattern string `yaml:"archive_table_pattern" mapstructure:"archive_table_pattern"`
	Info           string `yaml:"info_table" mapstructure:"info_table"`
}

// DefaultTables returns the standard cache layout.
func DefaultTables() Tables {
	return Tables{
		Rates:          "rates",
		ArchivePattern: "rates_%d",
		Info:           "sites",
	}
}

func (t Tables) withDefaults() Tables {
	d := DefaultTables()
	if t.Rates == "" {
		t.Rates = d.Rates
	}
	if t.Info == "" {
		t.Info = d.Info
	}
	return t
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// validIdent guards table names interpolated into SQL.
func validIdent(name string) error {
	if !identRe.MatchString(name) {
		return eris.Errorf("store: invalid table name %q", name)
	}
	return nil
}

// TablesForWindow lists the rate tables to query for a window: the current
// table, plus one archive table for every year the window touches that is
// earlier than thisYear.
func TablesForWindow(current, archivePattern string, from, to time.Time, thisYear int) []string {
	tables := []string{current}
	if archivePattern == "" {
		return tables
	}
	last := to.Year()
	if last >= thisYear {
		last = thisYear - 1
	}
	for y := from.Year(); y <= last; y++ {
		tables = append(tables, fmt.Sprintf(archivePattern, y))
	}
	return tables
}

// TableError records a rate table that could not be read.
type TableError struct {
	Table string
	Err   error
}

func (e TableError) Error() string {
	return fmt.Sprintf("store: table %s: %v", e.Table, e.Err)
}

// RateSet is the result of a rate query. Malformed counts rows that could
// not be decoded and were skipped.
type RateSet struct {
	ByEntity    map[int][]model.RateRecord
	Tables      []string
	TableErrors []TableError
	Malformed   int
}

func newRateSet(ids []int) *RateSet {
	rs := &RateSet{ByEntity: make(map[int][]model.RateRecord, len(ids))}
	for _, id := range ids {
		rs.ByEntity[id] = nil
	}
	return rs
}

// AllFailed reports whether every queried table failed.
func (rs *RateSet) AllFailed() bool {
	return len(rs.Tables) > 0 && len(rs.TableErrors) == len(rs.Tables)
}

// Len returns the total number of records.
func (rs *RateSet) Len() int {
	n := 0
	for _, recs := range rs.ByEntity {
		n += len(recs)
	}
	return n
}

// Records flattens the set in entity-id order.
func (rs *RateSet) Records() []model.RateRecord {
	ids := make([]int, 0, len(rs.ByEntity))
	for id := range rs.ByEntity {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]model.RateRecord, 0, rs.Len())
	for _, id := range ids {
		out = append(out, rs.ByEntity[id]...)
	}
	return out
}

// Calendar builds the coverage calendar: every requested entity maps to the
// set of days with at least one local record.
func (rs *RateSet) Calendar() CoverageCalendar {
	cal := make(CoverageCalendar, len(rs.ByEntity))
	for id, recs := range rs.ByEntity {
		days := make(map[time.Time]struct{}, len(recs))
		for _, r := range recs {
			days[model.Day(r.Date)] = struct{}{}
		}
		cal[id] = days
	}
	return cal
}

// CoverageCalendar maps entity id to the set of covered days. It is not
// modified after construction.
type CoverageCalendar map[int]map[time.Time]struct{}

// Covered reports whether id has local data on day.
func (c CoverageCalendar) Covered(id int, day time.Time) bool {
	_, ok := c[id][model.Day(day)]
	return ok
}

// Dates returns the covered days of id in ascending order.
func (c CoverageCalendar) Dates(id int) []time.Time {
	days := make([]time.Time, 0, len(c[id]))
	for d := range c[id] {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}

// tableQuery reads one table, returning the decoded records and the number
// of rows skipped as malformed.
type tableQuery func(ctx context.Context, table string) ([]model.RateRecord, int, error)

// collectRates runs query against every table. A failing table is logged
// and recorded; the rest still contribute.
func collectRates(ctx context.Context, backend string, ids []int, tables []string, query tableQuery) *RateSet {
	rs := newRateSet(ids)
	rs.Tables = tables
	for _, table := range tables {
		var (
			recs      []model.RateRecord
			malformed int
		)
		err := validIdent(table)
		if err == nil {
			recs, malformed, err = query(ctx, table)
		}
		if err != nil {
			zap.L().Warn("store: rate table unavailable, skipping",
				zap.String("backend", backend),
				zap.String("table", table),
				zap.Error(err),
			)
			rs.TableErrors = append(rs.TableErrors, TableError{Table: table, Err: err})
			continue
		}
		rs.Malformed += malformed
		for _, r := range recs {
			if _, ok := rs.ByEntity[r.EntityID]; ok {
				rs.ByEntity[r.EntityID] = append(rs.ByEntity[r.EntityID], r)
			}
		}
	}
	return rs
}

// rateColumns is the projection shared by every backend.
const rateColumns = `store_id, spacetype, size, regular_rate, online_rate, promo, date_collected, source_url,
	cc, humidity_controlled, drive_up, elevator, outdoor_access, car, rv, boat, other_vehicle, power, covered,
	width, length, height`

const infoColumns = `store_id, store_name, street_address, city, state, zip`

type rowScanner interface {
	Scan(dest ...any) error
}

type rowIter interface {
	rowScanner
	Next() bool
}

// scanRates decodes every row of rows. A row that fails to decode is
// skipped and counted; the rest of the table is kept.
func scanRates(rows rowIter, backend, table string) ([]model.RateRecord, int) {
	var (
		recs      []model.RateRecord
		malformed int
	)
	for rows.Next() {
		rec, err := scanRate(rows)
		if err != nil {
			malformed++
			zap.L().Debug("store: skipping malformed rate row",
				zap.String("backend", backend),
				zap.String("table", table),
				zap.Error(err),
			)
			continue
		}
		recs = append(recs, rec)
	}
	if malformed > 0 {
		zap.L().Warn("store: skipped malformed rate rows",
			zap.String("backend", backend),
			zap.String("table", table),
			zap.Int("malformed", malformed),
			zap.Int("kept", len(recs)),
		)
	}
	return recs, malformed
}

// scanRate decodes one rateColumns row. Booleans and dates arrive in
// driver-specific shapes and are normalized here.
func scanRate(row rowScanner) (model.RateRecord, error) {
	var (
		id                                int64
		spaceType, size, promo, sourceURL sql.NullString
		regular, online                   sql.NullFloat64
		width, length, height             sql.NullFloat64
		date                              any
		flags                             [11]any
	)
	dest := []any{&id, &spaceType, &size, &regular, &online, &promo, &date, &sourceURL}
	for i := range flags {
		dest = append(dest, &flags[i])
	}
	dest = append(dest, &width, &length, &height)
	if err := row.Scan(dest...); err != nil {
		return model.RateRecord{}, eris.Wrap(err, "store: scan rate")
	}

	day, err := toDate(date)
	if err != nil {
		return model.RateRecord{}, err
	}

	return model.RateRecord{
		EntityID:     int(id),
		SpaceType:    nullString(spaceType),
		SizeLabel:    nullString(size),
		RegularPrice: nullFloat(regular),
		OnlinePrice:  nullFloat(online),
		PromoText:    nullString(promo),
		SourceURL:    nullString(sourceURL),
		Date:         day,
		Width:        nullFloat(width),
		Length:       nullFloat(length),
		Height:       nullFloat(height),
		Flags: model.FeatureFlags{
			ClimateControlled:  toBool(flags[0]),
			HumidityControlled: toBool(flags[1]),
			DriveUp:            toBool(flags[2]),
			Elevator:           toBool(flags[3]),
			OutdoorAccess:      toBool(flags[4]),
			Car:                toBool(flags[5]),
			RV:                 toBool(flags[6]),
			Boat:               toBool(flags[7]),
			OtherVehicle:       toBool(flags[8]),
			Power:              toBool(flags[9]),
			Covered:            toBool(flags[10]),
		},
		Source: model.SourceLocal,
	}, nil
}

func scanInfo(row rowScanner) (model.EntityInfo, error) {
	var (
		id                             int64
		name, street, city, state, zip sql.NullString
	)
	if err := row.Scan(&id, &name, &street, &city, &state, &zip); err != nil {
		return model.EntityInfo{}, eris.Wrap(err, "store: scan site")
	}
	return model.EntityInfo{
		ID:      int(id),
		Name:    nullString(name),
		Address: nullString(street),
		City:    nullString(city),
		State:   nullString(state),
		Zip:     nullString(zip),
	}, nil
}

func nullString(s sql.NullString) string {
	if !s.Valid {
		return ""
	}
	return strings.TrimSpace(s.String)
}

func nullFloat(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

func toDate(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return model.Day(t), nil
	case string:
		return model.ParseDate(strings.TrimSpace(t))
	case []byte:
		return model.ParseDate(strings.TrimSpace(string(t)))
	case nil:
		return time.Time{}, eris.New("store: null date_collected")
	default:
		return time.Time{}, eris.Errorf("store: unsupported date type %T", v)
	}
}

func toBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case int64:
		return b != 0
	case int32:
		return b != 0
	case int:
		return b != 0
	case float64:
		return b != 0
	case []byte:
		if len(b) == 1 && b[0] <= 1 {
			return b[0] == 1
		}
		return parseBoolString(string(b))
	case string:
		return parseBoolString(b)
	default:
		return false
	}
}

func parseBoolString(s string) bool {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return n != 0
	}
	b, _ := strconv.ParseBool(s)
	return b
}
