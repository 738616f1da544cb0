// Package aggregate rolls merged rate records up into monthly and trailing
// averages per (size, tag) group.
package aggregate

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/rca-cli/internal/model"
)

// AverageLabel names the pooled row closing every group.
const AverageLabel = "AVERAGE"

// DefaultAllowedSizes is the unit size whitelist.
var DefaultAllowedSizes = []string{"5x5", "5x10", "10x5", "10x10", "10x15", "10x20", "10x25", "10x30"}

// TrailingMonths lists the trailing windows, longest first.
var TrailingMonths = []int{12, 6, 3, 1}

// Options tunes aggregation.
type Options struct {
	// AllowedSizes overrides DefaultAllowedSizes when non-empty.
	AllowedSizes []string
	// ExcludeBeforeT12 drops records dated before the T-12 start from every
	// statistic, monthly means included.
	ExcludeBeforeT12 bool
}

// Cell holds the three price series for one month or trailing window.
type Cell struct {
	InStore   *float64 `json:"in_store,omitempty"`
	Asking    *float64 `json:"asking,omitempty"`
	AskingAdj *float64 `json:"asking_adj,omitempty"`
}

// Row is one entity's statistics within a group, or the pooled AVERAGE row.
type Row struct {
	EntityID   int      `json:"entity_id,omitempty"`
	Label      string   `json:"label"`
	Average    bool     `json:"average,omitempty"`
	Adjustment *float64 `json:"adjustment,omitempty"`
	// Monthly is indexed by calendar month, January first.
	Monthly [12]Cell `json:"monthly"`
	// Trailing is aligned with TrailingMonths.
	Trailing []Cell `json:"trailing"`
	Records  int    `json:"records"`
}

// Group is one (size, tag) block of rows, entity rows first then AVERAGE.
type Group struct {
	Size string `json:"size"`
	Tag  string `json:"tag"`
	Rows []Row  `json:"rows"`
}

// Diagnostics counts records left out of the rollup.
type Diagnostics struct {
	MissingFields int `json:"missing_fields"`
	SizeExcluded  int `json:"size_excluded"`
	BeforeT12     int `json:"before_t12"`
}

// Result is the full rollup.
type Result struct {
	Anchor       time.Time   `json:"anchor"`
	WindowStarts []time.Time `json:"window_starts"`
	Groups       []Group     `json:"groups"`
	Diagnostics  Diagnostics `json:"diagnostics"`
}

// NormalizeSize strips spaces and quotes and lower-cases a size label.
func NormalizeSize(label string) string {
	r := strings.NewReplacer(" ", "", "'", "", `"`, "")
	return strings.ToLower(r.Replace(strings.TrimSpace(label)))
}

// Anchor returns the latest record date, or false when there are none.
func Anchor(recs []model.CanonicalRecord) (time.Time, bool) {
	var latest time.Time
	for _, r := range recs {
		if d := model.Day(r.Date); d.After(latest) {
			latest = d
		}
	}
	return latest, !latest.IsZero()
}

// WindowStart returns first-of-month(anchor) minus (months-1) months.
func WindowStart(anchor time.Time, months int) time.Time {
	return model.FirstOfMonth(anchor).AddDate(0, -(months - 1), 0)
}

// Aggregate builds the rollup. Entity rows within a group follow order;
// entities missing from order come after, by id. adjustments maps entity id
// to its decimal adjustment; missing entries count as 0.
func Aggregate(recs []model.CanonicalRecord, order []int, adjustments map[int]float64, opts Options) *Result {
	res := &Result{}
	anchor, ok := Anchor(recs)
	if !ok {
		return res
	}
	res.Anchor = anchor
	for _, n := range TrailingMonths {
		res.WindowStarts = append(res.WindowStarts, WindowStart(anchor, n))
	}
	t12 := res.WindowStarts[0]

	allowed := map[string]string{}
	sizes := opts.AllowedSizes
	if len(sizes) == 0 {
		sizes = DefaultAllowedSizes
	}
	for _, s := range sizes {
		allowed[NormalizeSize(s)] = NormalizeSize(s)
	}

	type groupKey struct{ size, tag string }
	byGroup := map[groupKey]map[int][]model.CanonicalRecord{}
	names := map[int]string{}

	for _, r := range recs {
		if r.Date.IsZero() || strings.TrimSpace(r.SizeLabel) == "" || r.ClassificationTag == "" {
			res.Diagnostics.MissingFields++
			continue
		}
		size, ok := allowed[NormalizeSize(r.SizeLabel)]
		if !ok {
			res.Diagnostics.SizeExcluded++
			continue
		}
		if opts.ExcludeBeforeT12 && model.Day(r.Date).Before(t12) {
			res.Diagnostics.BeforeT12++
			continue
		}
		k := groupKey{size, r.ClassificationTag}
		if byGroup[k] == nil {
			byGroup[k] = map[int][]model.CanonicalRecord{}
		}
		byGroup[k][r.EntityID] = append(byGroup[k][r.EntityID], r)
		if _, seen := names[r.EntityID]; !seen {
			names[r.EntityID] = r.StoreName
		}
	}

	keys := make([]groupKey, 0, len(byGroup))
	for k := range byGroup {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ai, aj := Area(keys[i].size), Area(keys[j].size)
		if ai != aj {
			return ai < aj
		}
		if keys[i].size != keys[j].size {
			return keys[i].size < keys[j].size
		}
		return keys[i].tag < keys[j].tag
	})

	rank := make(map[int]int, len(order))
	for i, id := range order {
		if _, dup := rank[id]; !dup {
			rank[id] = i
		}
	}

	for _, k := range keys {
		entities := byGroup[k]
		ids := make([]int, 0, len(entities))
		for id := range entities {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool {
			ri, iok := rank[ids[i]]
			rj, jok := rank[ids[j]]
			switch {
			case iok && jok:
				return ri < rj
			case iok != jok:
				return iok
			default:
				return ids[i] < ids[j]
			}
		})

		g := Group{Size: k.size, Tag: k.tag}
		var pooled []model.CanonicalRecord
		for _, id := range ids {
			adj := adjustments[id]
			row := buildRow(entities[id], res.WindowStarts, &adj)
			row.EntityID = id
			row.Label = names[id]
			row.Adjustment = &adj
			g.Rows = append(g.Rows, row)
			pooled = append(pooled, entities[id]...)
		}
		avg := buildRow(pooled, res.WindowStarts, nil)
		avg.Label = AverageLabel
		avg.Average = true
		g.Rows = append(g.Rows, avg)
		res.Groups = append(res.Groups, g)
	}

	zap.L().Debug("aggregate: rollup built",
		zap.Time("anchor", anchor),
		zap.Int("groups", len(res.Groups)),
		zap.Int("size_excluded", res.Diagnostics.SizeExcluded),
		zap.Int("missing_fields", res.Diagnostics.MissingFields),
	)
	return res
}

// Area returns width × length for a "WxL" label, or 0 when unreadable.
func Area(size string) float64 {
	parts := strings.Fields(strings.ReplaceAll(NormalizeSize(size), "x", " "))
	if len(parts) < 2 {
		return 0
	}
	w, err1 := strconv.ParseFloat(parts[0], 64)
	l, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil {
		return 0
	}
	return w * l
}

// buildRow computes monthly and trailing cells. A nil adjustment leaves the
// adjusted series empty.
func buildRow(recs []model.CanonicalRecord, starts []time.Time, adjustment *float64) Row {
	var (
		row            Row
		monthlyRegular [12]mean
		monthlyOnline  [12]mean
		trailRegular   = make([]mean, len(starts))
		trailOnline    = make([]mean, len(starts))
	)
	for _, r := range recs {
		day := model.Day(r.Date)
		m := int(day.Month()) - 1
		monthlyRegular[m].add(r.RegularPrice)
		monthlyOnline[m].add(r.OnlinePrice)
		for i, start := range starts {
			if !day.Before(start) {
				trailRegular[i].add(r.RegularPrice)
				trailOnline[i].add(r.OnlinePrice)
			}
		}
	}
	for m := range row.Monthly {
		row.Monthly[m] = cell(monthlyRegular[m], monthlyOnline[m], adjustment)
	}
	row.Trailing = make([]Cell, len(starts))
	for i := range starts {
		row.Trailing[i] = cell(trailRegular[i], trailOnline[i], adjustment)
	}
	row.Records = len(recs)
	return row
}

func cell(regular, online mean, adjustment *float64) Cell {
	c := Cell{InStore: regular.value(), Asking: online.value()}
	if adjustment != nil && c.Asking != nil {
		v := *c.Asking * (1 + *adjustment)
		c.AskingAdj = &v
	}
	return c
}

// mean accumulates positive prices; zero and missing prices are skipped.
type mean struct {
	sum float64
	n   int
}

func (m *mean) add(v *float64) {
	if v == nil || *v <= 0 {
		return
	}
	m.sum += *v
	m.n++
}

func (m mean) value() *float64 {
	if m.n == 0 {
		return nil
	}
	v := m.sum / float64(m.n)
	return &v
}
