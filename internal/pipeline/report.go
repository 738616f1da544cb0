package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sells-group/rca-cli/internal/aggregate"
	"github.com/sells-group/rca-cli/internal/backfill"
	"github.com/sells-group/rca-cli/internal/merge"
)

// Incomplete reasons.
const (
	ReasonNotApproved   = "not approved"
	ReasonBackfillFail  = "backfill failed"
	ReasonNotBackfilled = "not backfilled"
)

// Incomplete is an entity left with missing days.
type Incomplete struct {
	EntityID    int      `json:"entity_id"`
	Name        string   `json:"name"`
	MissingDays int      `json:"missing_days"`
	Reason      string   `json:"reason"`
	Classes     []string `json:"classes,omitempty"`
}

// Report accounts for everything a run could not assemble.
type Report struct {
	LocalError        string                `json:"local_error,omitempty"`
	TableErrors       []string              `json:"table_errors,omitempty"`
	LocalMalformed    int                   `json:"local_malformed"`
	Warnings          []string              `json:"warnings,omitempty"`
	Failures          []backfill.Failure    `json:"failures,omitempty"`
	Merge             merge.Diagnostics     `json:"merge"`
	SpaceTypeExcluded int                   `json:"space_type_excluded"`
	Aggregate         aggregate.Diagnostics `json:"aggregate"`
	Incomplete        []Incomplete          `json:"incomplete,omitempty"`
}

// Complete reports whether every entity has full coverage and nothing
// failed.
func (r Report) Complete() bool {
	return r.LocalError == "" && len(r.TableErrors) == 0 && len(r.Failures) == 0 && len(r.Incomplete) == 0
}

// finish derives the incomplete entity list. filled is nil when no backfill
// phase ran.
func (r *Report) finish(res *Result, filled *backfill.Result) {
	approved := make(map[int]bool, len(res.Approved))
	for _, id := range res.Approved {
		approved[id] = true
	}

	failedDays := map[int]int{}
	classes := map[int]map[string]bool{}
	if filled != nil {
		for _, f := range filled.Failures {
			failedDays[f.EntityID] += f.Range.Days()
			if classes[f.EntityID] == nil {
				classes[f.EntityID] = map[string]bool{}
			}
			classes[f.EntityID][f.Class] = true
		}
	}

	r.Incomplete = nil
	for _, e := range res.Entities {
		g, ok := res.Gaps[e.ID]
		if !ok || g.Empty() {
			continue
		}
		inc := Incomplete{EntityID: e.ID, Name: e.Name, MissingDays: len(g.Missing)}
		switch {
		case filled == nil:
			inc.Reason = ReasonNotBackfilled
		case !approved[e.ID]:
			inc.Reason = ReasonNotApproved
		case failedDays[e.ID] > 0:
			inc.Reason = ReasonBackfillFail
			inc.MissingDays = failedDays[e.ID]
			for c := range classes[e.ID] {
				inc.Classes = append(inc.Classes, c)
			}
			sort.Strings(inc.Classes)
		default:
			continue
		}
		r.Incomplete = append(r.Incomplete, inc)
	}
}

// Summary renders the report as short human-readable lines.
func (r Report) Summary() string {
	var b strings.Builder
	if r.LocalError != "" {
		fmt.Fprintf(&b, "local source: %s\n", r.LocalError)
	}
	for _, te := range r.TableErrors {
		fmt.Fprintf(&b, "skipped %s\n", te)
	}
	if r.LocalMalformed > 0 {
		fmt.Fprintf(&b, "malformed local rows skipped: %d\n", r.LocalMalformed)
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(&b, "warning: %s\n", w)
	}
	for _, f := range r.Failures {
		fmt.Fprintf(&b, "range failed: entity %d %s (%s)\n", f.EntityID, f.Range, f.Class)
	}
	for _, inc := range r.Incomplete {
		fmt.Fprintf(&b, "incomplete: %s [%d] %d day(s) missing, %s", inc.Name, inc.EntityID, inc.MissingDays, inc.Reason)
		if len(inc.Classes) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(inc.Classes, ", "))
		}
		b.WriteString("\n")
	}
	if d := r.Merge; d.Dropped() > 0 || d.UnparsableSize > 0 {
		fmt.Fprintf(&b, "records dropped: %d, unparsable sizes: %d\n", d.Dropped(), d.UnparsableSize)
	}
	if b.Len() == 0 {
		return "complete\n"
	}
	return b.String()
}
