package gaps

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/rca-cli/internal/model"
)

type calendar map[int]map[time.Time]struct{}

func (c calendar) Covered(id int, day time.Time) bool {
	_, ok := c[id][model.Day(day)]
	return ok
}

func days(ds ...string) []time.Time {
	out := make([]time.Time, len(ds))
	for i, s := range ds {
		d, err := model.ParseDate(s)
		if err != nil {
			panic(err)
		}
		out[i] = d
	}
	return out
}

func covered(ds ...string) map[time.Time]struct{} {
	m := map[time.Time]struct{}{}
	for _, d := range days(ds...) {
		m[d] = struct{}{}
	}
	return m
}

func window(from, to string) model.DateRange {
	d := days(from, to)
	return model.NewDateRange(d[0], d[1])
}

func TestCompress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []time.Time
		want []model.DateRange
	}{
		{"empty", nil, nil},
		{"single", days("2025-01-05"), []model.DateRange{window("2025-01-05", "2025-01-05")}},
		{
			"runs",
			days("2025-01-01", "2025-01-02", "2025-01-03", "2025-01-07", "2025-01-09", "2025-01-10"),
			[]model.DateRange{
				window("2025-01-01", "2025-01-03"),
				window("2025-01-07", "2025-01-07"),
				window("2025-01-09", "2025-01-10"),
			},
		},
		{
			"across year boundary",
			days("2024-12-30", "2024-12-31", "2025-01-01"),
			[]model.DateRange{window("2024-12-30", "2025-01-01")},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Compress(tt.in))
		})
	}
}

func TestAnalyze(t *testing.T) {
	t.Parallel()

	cal := calendar{
		1: covered("2025-01-01", "2025-01-02", "2025-01-05"),
		2: covered("2025-01-01", "2025-01-02", "2025-01-03", "2025-01-04", "2025-01-05"),
		3: {},
	}
	w := window("2025-01-01", "2025-01-05")

	got := Analyze(cal, []int{1, 2, 3, 4}, w)
	require.Len(t, got, 4)

	assert.Equal(t, days("2025-01-03", "2025-01-04"), got[1].Missing)
	assert.Equal(t, []model.DateRange{window("2025-01-03", "2025-01-04")}, got[1].Ranges)
	assert.Equal(t, 3, got[1].CoveredDays())
	assert.InDelta(t, 60.0, got[1].CoveragePct(), 1e-9)

	assert.True(t, got[2].Empty())
	assert.Nil(t, got[2].Ranges)

	assert.Len(t, got[3].Missing, 5)
	assert.Equal(t, []model.DateRange{w}, got[3].Ranges)
	// Unknown entity is treated as uncovered.
	assert.Equal(t, []model.DateRange{w}, got[4].Ranges)
}

func TestAnalyze_GapsPlusCoverageEqualWindow(t *testing.T) {
	t.Parallel()

	cal := calendar{7: covered("2025-02-02", "2025-02-10", "2025-02-11", "2025-02-20")}
	w := window("2025-02-01", "2025-02-28")
	g := Analyze(cal, []int{7}, w)[7]

	total := 0
	for i, r := range g.Ranges {
		total += r.Days()
		if i > 0 {
			assert.Greater(t, model.DaysBetween(g.Ranges[i-1].End, r.Start), 1, "ranges must not touch")
		}
		r.Each(func(d time.Time) {
			assert.False(t, cal.Covered(7, d))
		})
	}
	assert.Equal(t, w.Days(), total+4)
}

func TestGap_Years(t *testing.T) {
	t.Parallel()

	g := Analyze(calendar{}, []int{1}, window("2024-12-30", "2025-01-02"))[1]
	assert.Equal(t, []int{2024, 2025}, g.Years())
}

func TestFormatRanges(t *testing.T) {
	t.Parallel()

	few := Analyze(calendar{1: covered("2025-01-02")}, []int{1}, window("2025-01-01", "2025-01-04"))[1]
	assert.Equal(t, "01/01, 01/03, 01/04", FormatRanges(few, 3))

	cov := covered("2025-01-03", "2025-01-06", "2025-01-09", "2025-01-12")
	many := Analyze(calendar{1: cov}, []int{1}, window("2025-01-01", "2025-01-14"))[1]
	assert.Equal(t, "01/01-01/02, 01/04-01/05, 01/07-01/08 (+2 more ranges)", FormatRanges(many, 3))

	full := Analyze(calendar{1: covered("2025-01-01")}, []int{1}, window("2025-01-01", "2025-01-01"))[1]
	assert.Equal(t, "fully covered", FormatRanges(full, 3))
}
