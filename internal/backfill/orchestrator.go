package backfill

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/rca-cli/internal/merge"
	"github.com/sells-group/rca-cli/internal/model"
	"github.com/sells-group/rca-cli/internal/resilience"
	"github.com/sells-group/rca-cli/pkg/stortrack"
)

// ClassCancelled marks ranges never attempted because the run was cancelled.
const ClassCancelled = "cancelled"

// RangeFetcher fetches remote history for one entity over one range.
// stortrack.Client satisfies it.
type RangeFetcher interface {
	FetchRange(ctx context.Context, storeID int, from, to time.Time) ([]stortrack.HistoricalStore, error)
}

// Failure is a range that produced no data.
type Failure struct {
	EntityID int             `json:"entity_id"`
	Range    model.DateRange `json:"range"`
	Class    string          `json:"class"`
	Err      error           `json:"-"`
	Message  string          `json:"error"`
}

// Result is the outcome of Execute.
type Result struct {
	Records     []model.CanonicalRecord `json:"-"`
	Failures    []Failure               `json:"failures"`
	Diagnostics merge.Diagnostics       `json:"diagnostics"`
	Attempted   int                     `json:"attempted"`
	Succeeded   int                     `json:"succeeded"`
}

// Orchestrator runs approved backfills.
type Orchestrator struct {
	fetcher     RangeFetcher
	concurrency int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithConcurrency sets how many entities are fetched at once. Values below
// 1 mean sequential.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) {
		o.concurrency = n
	}
}

// NewOrchestrator creates an Orchestrator over fetcher.
func NewOrchestrator(fetcher RangeFetcher, opts ...Option) *Orchestrator {
	o := &Orchestrator{fetcher: fetcher, concurrency: 1}
	for _, opt := range opts {
		opt(o)
	}
	if o.concurrency < 1 {
		o.concurrency = 1
	}
	return o
}

// entityResult collects one entity's output so results can be stitched
// back together in plan order.
type entityResult struct {
	records   []model.CanonicalRecord
	failures  []Failure
	diag      merge.Diagnostics
	attempted int
	succeeded int
}

// Execute fetches every range of every approved candidate, one call per
// range as given. Failed ranges are recorded and skipped. Cancellation is
// checked between entities and between ranges; ranges not reached are
// recorded as cancelled. Output order follows the plan regardless of
// concurrency.
func (o *Orchestrator) Execute(ctx context.Context, p *Plan, approved []int, infos map[int]model.EntityInfo) *Result {
	if len(approved) == 0 {
		return &Result{}
	}
	est := p.EstimateFor(approved)
	results := make([]entityResult, len(est.Entities))

	zap.L().Info("backfill: starting",
		zap.Int("entities", len(est.Entities)),
		zap.Int("calls", est.Calls),
		zap.Float64("estimated_cost", est.Cost),
		zap.Int("concurrency", o.concurrency),
	)

	g := new(errgroup.Group)
	g.SetLimit(o.concurrency)

	for i, c := range est.Entities {
		g.Go(func() error {
			results[i] = o.fetchEntity(ctx, c, infos)
			return nil
		})
	}
	_ = g.Wait()

	res := &Result{}
	for _, r := range results {
		res.Records = append(res.Records, r.records...)
		res.Failures = append(res.Failures, r.failures...)
		res.Diagnostics.Add(r.diag)
		res.Attempted += r.attempted
		res.Succeeded += r.succeeded
	}

	zap.L().Info("backfill: complete",
		zap.Int("records", len(res.Records)),
		zap.Int("attempted", res.Attempted),
		zap.Int("succeeded", res.Succeeded),
		zap.Int("failed", len(res.Failures)),
	)
	return res
}

func (o *Orchestrator) fetchEntity(ctx context.Context, c Candidate, infos map[int]model.EntityInfo) entityResult {
	var out entityResult
	log := zap.L().With(zap.Int("entity_id", c.EntityID))

	for i, r := range c.Ranges {
		if err := ctx.Err(); err != nil {
			for _, rest := range c.Ranges[i:] {
				out.failures = append(out.failures, newFailure(c.EntityID, rest, ClassCancelled, err))
			}
			return out
		}

		out.attempted++
		stores, err := o.fetcher.FetchRange(ctx, c.EntityID, r.Start, r.End)
		if err != nil {
			class := failureClass(ctx, err)
			log.Warn("backfill: range failed",
				zap.Stringer("range", r),
				zap.String("class", class),
				zap.Error(err),
			)
			out.failures = append(out.failures, newFailure(c.EntityID, r, class, err))
			continue
		}

		recs, diag := merge.FromRemote(stores, infos)
		out.records = append(out.records, recs...)
		out.diag.Add(diag)
		out.succeeded++
		log.Debug("backfill: range fetched",
			zap.Stringer("range", r),
			zap.Int("records", len(recs)),
		)
	}
	return out
}

func newFailure(id int, r model.DateRange, class string, err error) Failure {
	f := Failure{EntityID: id, Range: r, Class: class, Err: err}
	if err != nil {
		f.Message = err.Error()
	}
	return f
}

// failureClass names why a range failed: cancelled when the run was
// cancelled, otherwise the remote class when known or the
// transient/permanent split.
func failureClass(ctx context.Context, err error) string {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ClassCancelled
	}
	if c := stortrack.ClassOf(err); c != "" {
		return string(c)
	}
	return resilience.Classify(err)
}
