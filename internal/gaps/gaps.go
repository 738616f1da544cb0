// Package gaps computes which days of a window lack local coverage and
// compresses them into contiguous ranges.
package gaps

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sells-group/rca-cli/internal/model"
)

// Calendar answers coverage questions per entity. store.CoverageCalendar
// satisfies it.
type Calendar interface {
	Covered(id int, day time.Time) bool
}

// Gap is the uncovered part of a window for one entity.
type Gap struct {
	EntityID int               `json:"entity_id"`
	Missing  []time.Time       `json:"missing"`
	Ranges   []model.DateRange `json:"ranges"`
	Window   model.DateRange   `json:"window"`
}

// Empty reports whether the entity is fully covered.
func (g Gap) Empty() bool {
	return len(g.Missing) == 0
}

// CoveredDays returns the number of window days with local data.
func (g Gap) CoveredDays() int {
	return g.Window.Days() - len(g.Missing)
}

// CoveragePct returns covered days as a percentage of the window.
func (g Gap) CoveragePct() float64 {
	days := g.Window.Days()
	if days == 0 {
		return 0
	}
	return float64(g.CoveredDays()) / float64(days) * 100
}

// Years returns the distinct calendar years touched by the missing days.
func (g Gap) Years() []int {
	seen := map[int]bool{}
	var years []int
	for _, d := range g.Missing {
		if !seen[d.Year()] {
			seen[d.Year()] = true
			years = append(years, d.Year())
		}
	}
	sort.Ints(years)
	return years
}

// Missing lists the window days not covered for id, ascending.
func Missing(cal Calendar, id int, window model.DateRange) []time.Time {
	var out []time.Time
	window.Each(func(day time.Time) {
		if !cal.Covered(id, day) {
			out = append(out, day)
		}
	})
	return out
}

// Compress folds sorted days into maximal runs of consecutive days.
func Compress(days []time.Time) []model.DateRange {
	if len(days) == 0 {
		return nil
	}
	var ranges []model.DateRange
	cur := model.DateRange{Start: model.Day(days[0]), End: model.Day(days[0])}
	for _, d := range days[1:] {
		d = model.Day(d)
		if model.DaysBetween(cur.End, d) == 1 {
			cur.End = d
			continue
		}
		ranges = append(ranges, cur)
		cur = model.DateRange{Start: d, End: d}
	}
	return append(ranges, cur)
}

// Analyze computes the gap of every id over window.
func Analyze(cal Calendar, ids []int, window model.DateRange) map[int]Gap {
	out := make(map[int]Gap, len(ids))
	for _, id := range ids {
		missing := Missing(cal, id, window)
		out[id] = Gap{
			EntityID: id,
			Missing:  missing,
			Ranges:   Compress(missing),
			Window:   window,
		}
	}
	return out
}

// FormatRanges renders a gap for display. Up to five missing days are listed
// individually as MM/DD; beyond that the first limit ranges are shown as
// MM/DD-MM/DD followed by a count of the rest.
func FormatRanges(g Gap, limit int) string {
	if g.Empty() {
		return "fully covered"
	}
	if len(g.Missing) <= 5 {
		parts := make([]string, len(g.Missing))
		for i, d := range g.Missing {
			parts[i] = d.Format("01/02")
		}
		return strings.Join(parts, ", ")
	}
	if limit <= 0 {
		limit = 3
	}
	shown := g.Ranges
	if len(shown) > limit {
		shown = shown[:limit]
	}
	parts := make([]string, len(shown))
	for i, r := range shown {
		if r.Start.Equal(r.End) {
			parts[i] = r.Start.Format("01/02")
		} else {
			parts[i] = r.Start.Format("01/02") + "-" + r.End.Format("01/02")
		}
	}
	out := strings.Join(parts, ", ")
	if rest := len(g.Ranges) - len(shown); rest > 0 {
		out += fmt.Sprintf(" (+%d more ranges)", rest)
	}
	return out
}
