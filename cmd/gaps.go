package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/rca-cli/internal/pipeline"
)

var (
	gapsInput string
	gapsJSON  bool
)

var gapsCmd = &cobra.Command{
	Use:   "gaps",
	Short: "Show local coverage and the backfill estimate",
	Long:  "Reads cached rates for every entity in the run file, reports the missing days per entity and prices the remote backfill without calling the remote service.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("gaps"); err != nil {
			return err
		}
		in, err := loadInput(gapsInput)
		if err != nil {
			return err
		}

		reader, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer reader.Close() //nolint:errcheck

		res, err := newPipeline(reader).Estimate(ctx, in)
		if err != nil {
			return eris.Wrap(err, "estimate")
		}

		if gapsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}
		printCoverage(os.Stdout, res)
		os.Stdout.WriteString("\n") //nolint:errcheck
		printEstimate(os.Stdout, res.Estimate)
		if res.Report.LocalError != "" || len(res.Report.TableErrors) > 0 {
			os.Stderr.WriteString(res.Report.Summary()) //nolint:errcheck
		}
		return nil
	},
}

func loadInput(path string) (pipeline.Input, error) {
	rf, err := readRunFile(path)
	if err != nil {
		return pipeline.Input{}, err
	}
	return rf.input(time.Now(), cfg.Analysis.SpaceType)
}

func init() {
	gapsCmd.Flags().StringVarP(&gapsInput, "input", "i", "", "run file (YAML, required)")
	gapsCmd.Flags().BoolVar(&gapsJSON, "json", false, "print the full result as JSON")
	_ = gapsCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(gapsCmd)
}
