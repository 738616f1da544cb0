package main

import (
	"context"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/rca-cli/internal/aggregate"
	"github.com/sells-group/rca-cli/internal/backfill"
	"github.com/sells-group/rca-cli/internal/cost"
	"github.com/sells-group/rca-cli/internal/metadata"
	"github.com/sells-group/rca-cli/internal/pipeline"
	"github.com/sells-group/rca-cli/internal/resilience"
	"github.com/sells-group/rca-cli/internal/store"
	"github.com/sells-group/rca-cli/pkg/salesforce"
	"github.com/sells-group/rca-cli/pkg/stortrack"
)

func initStore(ctx context.Context) (store.Reader, error) {
	r, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL, store.Tables{
		Rates:          cfg.Store.RatesTable,
		ArchivePattern: cfg.Store.ArchiveTablePattern,
		Info:           cfg.Store.InfoTable,
	})
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}
	return r, nil
}

func storTrackConfigured() bool {
	return cfg.StorTrack.Username != "" && cfg.StorTrack.Password != ""
}

func initStorTrack() stortrack.Client {
	limiter := stortrack.NewHourlyLimiter(cfg.StorTrack.HourlyLimit, stortrack.RealClock())
	return stortrack.NewClient(cfg.StorTrack.Username, cfg.StorTrack.Password,
		stortrack.WithBaseURL(cfg.StorTrack.BaseURL),
		stortrack.WithTimeout(time.Duration(cfg.StorTrack.TimeoutSecs)*time.Second),
		stortrack.WithLimiter(limiter),
		stortrack.WithRetry(resilience.Settings{MaxAttempts: cfg.StorTrack.MaxRetries}.Config()),
		stortrack.WithRequestsPerSecond(cfg.StorTrack.RequestsPerSecond),
	)
}

func initSalesforce() (salesforce.Client, error) {
	if cfg.Salesforce.ClientID == "" {
		return nil, eris.New("salesforce client ID is required (RCA_SALESFORCE_CLIENT_ID)")
	}

	pemData, err := os.ReadFile(cfg.Salesforce.KeyPath)
	if err != nil {
		return nil, eris.Wrap(err, "read salesforce JWT private key")
	}

	return salesforce.Connect(salesforce.Creds{
		LoginURL: cfg.Salesforce.LoginURL,
		Username: cfg.Salesforce.Username,
		ClientID: cfg.Salesforce.ClientID,
		KeyPEM:   string(pemData),
	}, salesforce.WithRateLimit(cfg.Salesforce.RequestsPerSecond))
}

// newPipeline wires the configured collaborators. Remote backfill and the
// Salesforce metadata lookup are optional; a run without them still
// completes on local data.
func newPipeline(reader store.Reader) *pipeline.Pipeline {
	opts := []pipeline.Option{
		pipeline.WithCalculator(cost.NewCalculator(cost.Rates{
			StorTrack: cost.StorTrackRate{YearPrice: cfg.Pricing.StorTrack.YearPrice},
		})),
		pipeline.WithHourlyLimit(cfg.StorTrack.HourlyLimit),
		pipeline.WithAggregateOptions(aggregate.Options{
			AllowedSizes:     cfg.Analysis.AllowedSizes,
			ExcludeBeforeT12: cfg.Analysis.ExcludeBeforeT12,
		}),
	}

	if storTrackConfigured() {
		orch := backfill.NewOrchestrator(initStorTrack(), backfill.WithConcurrency(cfg.Backfill.Concurrency))
		opts = append(opts, pipeline.WithBackfill(orch))
	} else {
		zap.L().Warn("stortrack credentials not set, backfill disabled")
	}

	if cfg.Salesforce.Enabled() {
		sf, err := initSalesforce()
		if err != nil {
			zap.L().Warn("salesforce init failed, skipping metadata lookup", zap.Error(err))
		} else {
			opts = append(opts, pipeline.WithMetadata(metadata.NewSalesforceProvider(sf, cfg.Salesforce.MinScore,
				metadata.WithRetry(resilience.Settings{
					MaxAttempts:    cfg.Salesforce.MaxAttempts,
					InitialBackoff: time.Duration(cfg.Salesforce.InitialBackoffMs) * time.Millisecond,
					MaxBackoff:     time.Duration(cfg.Salesforce.MaxBackoffMs) * time.Millisecond,
				}.Config()),
			)))
		}
	}

	return pipeline.New(reader, opts...)
}
