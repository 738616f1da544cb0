package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/rca-cli/internal/backfill"
)

// parseApprover builds the backfill decision from --approve. Accepted
// values: none, all, prompt, or a comma-separated list of entity ids.
// maxCost caps all and prompt.
func parseApprover(value string, maxCost float64, in io.Reader, out io.Writer) (backfill.Approver, error) {
	switch v := strings.ToLower(strings.TrimSpace(value)); v {
	case "", "none":
		return backfill.ApproveNone, nil
	case "all":
		if maxCost > 0 {
			return backfill.ApproveWithinBudget(maxCost), nil
		}
		return backfill.ApproveAll, nil
	case "prompt":
		return promptApprover(in, out, maxCost), nil
	default:
		var ids []int
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.Atoi(part)
			if err != nil {
				return nil, eris.Errorf("invalid --approve value %q: want none, all, prompt or entity ids", value)
			}
			ids = append(ids, id)
		}
		if len(ids) == 0 {
			return backfill.ApproveNone, nil
		}
		return backfill.ApproveSubset(ids...), nil
	}
}

// promptApprover shows the estimate and asks once. Anything but y or yes
// declines.
func promptApprover(in io.Reader, out io.Writer, maxCost float64) backfill.Approver {
	return func(p *backfill.Plan) []int {
		ids := backfill.ApproveAll(p)
		if maxCost > 0 {
			ids = backfill.ApproveWithinBudget(maxCost)(p)
		}
		if len(ids) == 0 {
			fmt.Fprintf(out, "Backfill exceeds the $%.2f limit; skipping.\n", maxCost)
			return nil
		}
		est := p.EstimateFor(ids)
		printEstimate(out, est)
		fmt.Fprintf(out, "Backfill %d entities for $%.2f? [y/N] ", len(est.Entities), est.Cost)

		answer, _ := bufio.NewReader(in).ReadString('\n')
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "y", "yes":
			return ids
		}
		return nil
	}
}
