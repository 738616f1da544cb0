package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/rca-cli/internal/export"
	"github.com/sells-group/rca-cli/internal/pipeline"
)

var (
	analyzeInput   string
	analyzeApprove string
	analyzeMaxCost float64
	analyzeOutput  string
	analyzeFormat  string
	analyzeJSON    bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run the full rate comparability analysis",
	Long:  "Reads cached rates, backfills approved gaps, merges, scores and rolls up rates for the run file's entities, then writes the data and summary reports.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("analyze"); err != nil {
			return err
		}
		if analyzeFormat != "csv" && analyzeFormat != "xlsx" {
			return eris.Errorf("invalid --format %q: want csv or xlsx", analyzeFormat)
		}
		maxCost := analyzeMaxCost
		if maxCost <= 0 {
			maxCost = cfg.Backfill.MaxCost
		}

		in, err := loadInput(analyzeInput)
		if err != nil {
			return err
		}
		in.Approver, err = parseApprover(analyzeApprove, maxCost, os.Stdin, os.Stderr)
		if err != nil {
			return err
		}

		reader, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer reader.Close() //nolint:errcheck

		res, err := newPipeline(reader).Run(ctx, in)
		if err != nil {
			if res != nil {
				os.Stderr.WriteString(res.Report.Summary()) //nolint:errcheck
			}
			return eris.Wrap(err, "analyze")
		}

		city := in.Subject.City
		if len(res.Entities) > 0 {
			city = res.Entities[0].City
		}
		paths := export.OutputPaths(analyzeOutput, city, time.Now(), "."+analyzeFormat)
		if err := writeReports(paths, analyzeFormat, res); err != nil {
			return err
		}
		zap.L().Info("analysis complete",
			zap.String("run_id", res.RunID),
			zap.Int("records", len(res.Records)),
			zap.String("data", paths.Data),
			zap.String("summary", paths.Summary),
		)

		fmt.Fprintf(os.Stderr, "Wrote %s and %s\n", paths.Data, paths.Summary)
		os.Stderr.WriteString(res.Report.Summary()) //nolint:errcheck

		if analyzeJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}
		return nil
	},
}

func writeReports(paths export.Paths, format string, res *pipeline.Result) error {
	data, err := os.Create(paths.Data)
	if err != nil {
		return eris.Wrap(err, "create data report")
	}
	defer data.Close() //nolint:errcheck
	if err := export.WriteRecordsCSV(data, res.Records, res.Metadata); err != nil {
		return err
	}

	if format == "xlsx" {
		return export.WriteRollupXLSX(paths.Summary, res.Rollup)
	}
	summary, err := os.Create(paths.Summary)
	if err != nil {
		return eris.Wrap(err, "create summary report")
	}
	defer summary.Close() //nolint:errcheck
	return export.WriteRollupCSV(summary, res.Rollup)
}

func init() {
	f := analyzeCmd.Flags()
	f.StringVarP(&analyzeInput, "input", "i", "", "run file (YAML, required)")
	f.StringVar(&analyzeApprove, "approve", "none", "backfill approval: none, all, prompt or comma-separated entity ids")
	f.Float64Var(&analyzeMaxCost, "max-cost", 0, "cost ceiling for --approve all|prompt (default backfill.max_cost)")
	f.StringVarP(&analyzeOutput, "output", "o", "", "report base path (default RCA_<city>_<timestamp>)")
	f.StringVar(&analyzeFormat, "format", "csv", "summary format: csv or xlsx")
	f.BoolVar(&analyzeJSON, "json", false, "also print the full result as JSON")
	_ = analyzeCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(analyzeCmd)
}
