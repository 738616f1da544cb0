package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/sells-group/rca-cli/internal/backfill"
	"github.com/sells-group/rca-cli/internal/gaps"
	"github.com/sells-group/rca-cli/internal/model"
	"github.com/sells-group/rca-cli/internal/pipeline"
)

func printEstimate(w io.Writer, est backfill.Estimate) {
	if len(est.Entities) == 0 {
		fmt.Fprintln(w, "No backfill needed.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ENTITY\tMISSING DAYS\tRANGES\tYEARS\tCOST")
	for _, c := range est.Entities {
		years := make([]string, len(c.Years))
		for i, y := range c.Years {
			years[i] = fmt.Sprint(y)
		}
		fmt.Fprintf(tw, "%d\t%d\t%d\t%s\t$%.2f\n", c.EntityID, c.MissingDays, len(c.Ranges), strings.Join(years, ","), c.Cost)
	}
	tw.Flush() //nolint:errcheck
	fmt.Fprintf(w, "\nTotal: %d entities, %d calls, $%.2f, at least %s at the hourly limit\n",
		len(est.Entities), est.Calls, est.Cost, est.MinDuration)
}

// printCoverage lists each entity's local coverage of the window.
func printCoverage(w io.Writer, res *pipeline.Result) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCOVERAGE\tMISSING")
	for _, e := range res.Entities {
		g, ok := res.Gaps[e.ID]
		if !ok {
			g = gaps.Gap{EntityID: e.ID, Window: res.Window}
		}
		fmt.Fprintf(tw, "%d\t%s\t%.1f%%\t%s\n", e.ID, displayName(e), g.CoveragePct(), gaps.FormatRanges(g, 3))
	}
	tw.Flush() //nolint:errcheck
}

func displayName(e model.EntityInfo) string {
	if e.Name != "" {
		return e.Name
	}
	return fmt.Sprintf("store %d", e.ID)
}
