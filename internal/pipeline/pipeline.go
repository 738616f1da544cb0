// Package pipeline runs one rate comparison: local coverage, gap analysis,
// approved backfill, merge, scoring and rollup.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/rca-cli/internal/aggregate"
	"github.com/sells-group/rca-cli/internal/backfill"
	"github.com/sells-group/rca-cli/internal/cost"
	"github.com/sells-group/rca-cli/internal/gaps"
	"github.com/sells-group/rca-cli/internal/merge"
	"github.com/sells-group/rca-cli/internal/metadata"
	"github.com/sells-group/rca-cli/internal/model"
	"github.com/sells-group/rca-cli/internal/scorer"
	"github.com/sells-group/rca-cli/internal/store"
	"github.com/sells-group/rca-cli/pkg/stortrack"
)

// Input describes one run.
type Input struct {
	Subject     model.EntityInfo
	Comparators []model.EntityInfo
	Window      model.DateRange

	Rankings map[int]model.Ranking
	Factors  model.AdjustmentFactors
	Metadata map[int]model.EntityMetadata
	Names    map[int]string
	TagCodes map[string]string
	// RawTags keeps the long classification tags instead of short codes.
	RawTags   bool
	SpaceType string

	// Approver decides which gaps to backfill. Nil approves nothing.
	Approver backfill.Approver
}

// Entities returns the subject followed by the comparators, without
// duplicates.
func (in Input) Entities() []model.EntityInfo {
	out := []model.EntityInfo{in.Subject}
	seen := map[int]bool{in.Subject.ID: true}
	for _, c := range in.Comparators {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		out = append(out, c)
	}
	return out
}

// Validate checks the input can be run.
func (in Input) Validate() error {
	if in.Subject.ID == 0 {
		return eris.New("pipeline: subject entity is required")
	}
	if !in.Window.Valid() {
		return eris.Errorf("pipeline: invalid window %s", in.Window)
	}
	for id, r := range in.Rankings {
		if err := scorer.ValidateRanking(r); err != nil {
			return eris.Wrapf(err, "pipeline: entity %d", id)
		}
	}
	return nil
}

// Result is everything a run produces.
type Result struct {
	RunID       string                        `json:"run_id"`
	StartedAt   time.Time                     `json:"started_at"`
	Window      model.DateRange               `json:"window"`
	Entities    []model.EntityInfo            `json:"entities"`
	Gaps        map[int]gaps.Gap              `json:"-"`
	Estimate    backfill.Estimate             `json:"estimate"`
	Approved    []int                         `json:"approved"`
	Records     []model.CanonicalRecord       `json:"-"`
	Metadata    map[int]*model.EntityMetadata `json:"metadata"`
	Rankings    map[int]model.Ranking         `json:"rankings"`
	Adjustments map[int]float64               `json:"adjustments"`
	TagCodes    map[string]string             `json:"tag_codes,omitempty"`
	Rollup      *aggregate.Result             `json:"rollup"`
	Report      Report                        `json:"report"`
	Phases      []model.PhaseResult           `json:"phases"`
}

// Pipeline holds the collaborators of a run.
type Pipeline struct {
	reader       store.Reader
	orchestrator *backfill.Orchestrator
	calc         *cost.Calculator
	metadata     metadata.Provider
	hourlyLimit  int
	aggOpts      aggregate.Options
	nowFunc      func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithBackfill enables remote backfill through o.
func WithBackfill(o *backfill.Orchestrator) Option {
	return func(p *Pipeline) { p.orchestrator = o }
}

// WithCalculator sets the cost model.
func WithCalculator(c *cost.Calculator) Option {
	return func(p *Pipeline) { p.calc = c }
}

// WithMetadata sets the provider consulted after the input's own metadata.
func WithMetadata(m metadata.Provider) Option {
	return func(p *Pipeline) { p.metadata = m }
}

// WithHourlyLimit sets the remote hourly allowance used for duration
// estimates.
func WithHourlyLimit(n int) Option {
	return func(p *Pipeline) { p.hourlyLimit = n }
}

// WithAggregateOptions tunes the rollup.
func WithAggregateOptions(o aggregate.Options) Option {
	return func(p *Pipeline) { p.aggOpts = o }
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.nowFunc = now }
}

// New creates a Pipeline reading local coverage from reader.
func New(reader store.Reader, opts ...Option) *Pipeline {
	p := &Pipeline{
		reader:      reader,
		hourlyLimit: stortrack.DefaultHourlyLimit,
		nowFunc:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.calc == nil {
		p.calc = cost.NewCalculator(cost.DefaultRates())
	}
	return p
}

// Estimate runs the local and gap phases only and prices the backfill.
func (p *Pipeline) Estimate(ctx context.Context, in Input) (*Result, error) {
	return p.run(ctx, in, false)
}

// Run executes the full comparison. Partial failures are reported in
// Result.Report; an error is returned only when the run cannot produce
// anything: an invalid input, or a local source that failed entirely with
// no backfill approved.
func (p *Pipeline) Run(ctx context.Context, in Input) (*Result, error) {
	return p.run(ctx, in, true)
}

func (p *Pipeline) run(ctx context.Context, in Input, full bool) (*Result, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	res := &Result{
		RunID:     uuid.New().String(),
		StartedAt: p.nowFunc(),
		Window:    in.Window,
	}
	log := zap.L().With(zap.String("run_id", res.RunID), zap.Int("subject", in.Subject.ID))
	log.Info("pipeline: starting run",
		zap.Stringer("window", in.Window),
		zap.Int("comparators", len(in.Comparators)),
	)

	track := func(name string, fn func() (map[string]any, error)) {
		start := time.Now()
		meta, err := fn()
		phase := model.PhaseResult{
			Name:     name,
			Status:   model.PhaseStatusComplete,
			Duration: time.Since(start).Milliseconds(),
			Metadata: meta,
		}
		if err != nil {
			phase.Status = model.PhaseStatusFailed
			phase.Error = err.Error()
			log.Error("pipeline: phase failed", zap.String("phase", name), zap.Error(err))
		} else {
			log.Info("pipeline: phase complete", zap.String("phase", name), zap.Int64("duration_ms", phase.Duration))
		}
		res.Phases = append(res.Phases, phase)
	}
	skip := func(name, reason string) {
		res.Phases = append(res.Phases, model.PhaseResult{
			Name:     name,
			Status:   model.PhaseStatusSkipped,
			Metadata: map[string]any{"reason": reason},
		})
	}

	entities := in.Entities()
	ids := make([]int, len(entities))
	for i, e := range entities {
		ids[i] = e.ID
	}

	// Local coverage.
	var rates *store.RateSet
	track("local", func() (map[string]any, error) {
		var err error
		rates, err = p.reader.QueryRates(ctx, ids, in.Window.Start, in.Window.End)
		if err != nil {
			res.Report.LocalError = err.Error()
			rates = &store.RateSet{ByEntity: map[int][]model.RateRecord{}}
			return nil, eris.Wrap(err, "pipeline: query local rates")
		}
		for _, te := range rates.TableErrors {
			res.Report.TableErrors = append(res.Report.TableErrors, te.Error())
		}
		res.Report.LocalMalformed = rates.Malformed
		return map[string]any{"records": rates.Len(), "tables": len(rates.Tables), "malformed": rates.Malformed}, nil
	})
	localDown := res.Report.LocalError != "" || rates.AllFailed()

	infos, err := p.reader.QueryEntityInfo(ctx, ids)
	if err != nil {
		log.Warn("pipeline: entity info unavailable", zap.Error(err))
		res.Report.Warnings = append(res.Report.Warnings, "entity info: "+err.Error())
		infos = map[int]model.EntityInfo{}
	}
	res.Entities = resolveEntities(entities, infos, in.Names)
	infoByID := make(map[int]model.EntityInfo, len(res.Entities))
	for _, e := range res.Entities {
		infoByID[e.ID] = e
	}

	// Gaps and estimate.
	var plan *backfill.Plan
	track("gaps", func() (map[string]any, error) {
		res.Gaps = gaps.Analyze(rates.Calendar(), ids, in.Window)
		plan = backfill.NewPlan(in.Window, res.Gaps, ids, p.calc, p.hourlyLimit)
		res.Estimate = plan.Estimate()
		return map[string]any{
			"candidates":   len(plan.Candidates),
			"missing_days": res.Estimate.MissingDays,
			"cost":         res.Estimate.Cost,
		}, nil
	})

	if p.orchestrator != nil && in.Approver != nil && !plan.Empty() {
		res.Approved = in.Approver(plan)
	}

	if !full {
		res.Report.finish(res, nil)
		return res, nil
	}

	if localDown && len(res.Approved) == 0 {
		return res, eris.New("pipeline: local rate source unavailable and no backfill approved")
	}

	// Backfill.
	var filled *backfill.Result
	if len(res.Approved) == 0 {
		reason := "nothing approved"
		if plan.Empty() {
			reason = "fully covered"
		} else if p.orchestrator == nil {
			reason = "remote source not configured"
		}
		skip("backfill", reason)
		filled = &backfill.Result{}
	} else {
		track("backfill", func() (map[string]any, error) {
			filled = p.orchestrator.Execute(ctx, plan, res.Approved, infoByID)
			return map[string]any{
				"attempted": filled.Attempted,
				"succeeded": filled.Succeeded,
				"records":   len(filled.Records),
			}, nil
		})
	}
	res.Report.Failures = filled.Failures
	res.Report.Merge.Add(filled.Diagnostics)

	// Merge and mapping.
	track("merge", func() (map[string]any, error) {
		merged := merge.Merge(rates.Records(), filled.Records, infoByID, in.Window)
		res.Report.Merge.Add(merged.Diagnostics)

		recs, excluded := merge.FilterSpaceType(merged.Records, in.SpaceType)
		res.Report.SpaceTypeExcluded = excluded

		merge.ApplyNames(recs, in.Names)
		if !in.RawTags {
			res.TagCodes = merge.SuggestCodes(recs, in.TagCodes)
			merge.ApplyTagCodes(recs, res.TagCodes)
		}
		merge.Sort(recs)
		res.Records = recs
		return map[string]any{
			"local":  merged.LocalCount,
			"remote": merged.RemoteCount,
			"kept":   len(recs),
		}, nil
	})

	// Scoring.
	track("score", func() (map[string]any, error) {
		var provider metadata.Provider = metadata.Static(in.Metadata)
		if p.metadata != nil {
			provider = metadata.Chain{metadata.Static(in.Metadata), p.metadata}
		}
		res.Metadata = metadata.Resolve(ctx, provider, res.Entities)

		year := p.nowFunc().Year()
		res.Rankings = make(map[int]model.Ranking, len(ids))
		for _, id := range ids {
			res.Rankings[id] = scorer.WithDerived(in.Rankings[id], res.Metadata[id], year)
		}
		res.Adjustments = scorer.Adjustments(in.Subject.ID, res.Rankings, in.Factors)
		return map[string]any{"entities": len(res.Rankings)}, nil
	})

	// Rollup.
	track("aggregate", func() (map[string]any, error) {
		res.Rollup = aggregate.Aggregate(res.Records, ids, res.Adjustments, p.aggOpts)
		res.Report.Aggregate = res.Rollup.Diagnostics
		return map[string]any{"groups": len(res.Rollup.Groups)}, nil
	})

	res.Report.finish(res, filled)
	log.Info("pipeline: run complete",
		zap.Int("records", len(res.Records)),
		zap.Int("incomplete", len(res.Report.Incomplete)),
		zap.Int("range_failures", len(res.Report.Failures)),
	)
	return res, nil
}

// resolveEntities fills input entities from the site directory. Input
// fields win when set; display names override both.
func resolveEntities(entities []model.EntityInfo, infos map[int]model.EntityInfo, names map[int]string) []model.EntityInfo {
	out := make([]model.EntityInfo, len(entities))
	for i, e := range entities {
		if dir, ok := infos[e.ID]; ok {
			e = fillInfo(e, dir)
		}
		if name := names[e.ID]; name != "" {
			e.Name = name
		}
		out[i] = e
	}
	metadata.FillDistances(out[0], out)
	return out
}

func fillInfo(e, dir model.EntityInfo) model.EntityInfo {
	if e.Name == "" {
		e.Name = dir.Name
	}
	if e.Address == "" {
		e.Address = dir.Address
	}
	if e.City == "" {
		e.City = dir.City
	}
	if e.State == "" {
		e.State = dir.State
	}
	if e.Zip == "" {
		e.Zip = dir.Zip
	}
	if e.Latitude == nil {
		e.Latitude = dir.Latitude
	}
	if e.Longitude == nil {
		e.Longitude = dir.Longitude
	}
	if e.Distance == nil {
		e.Distance = dir.Distance
	}
	return e
}
