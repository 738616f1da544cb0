package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/rca-cli/internal/backfill"
	"github.com/sells-group/rca-cli/internal/model"
	"github.com/sells-group/rca-cli/internal/resilience"
	"github.com/sells-group/rca-cli/internal/store"
	"github.com/sells-group/rca-cli/pkg/stortrack"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fakeReader struct {
	rates    *store.RateSet
	ratesErr error
	infos    map[int]model.EntityInfo
	infoErr  error
}

func (f *fakeReader) QueryRates(_ context.Context, ids []int, _, _ time.Time) (*store.RateSet, error) {
	if f.ratesErr != nil {
		return nil, f.ratesErr
	}
	return f.rates, nil
}

func (f *fakeReader) QueryEntityInfo(_ context.Context, _ []int) (map[int]model.EntityInfo, error) {
	return f.infos, f.infoErr
}

func (f *fakeReader) Close() error { return nil }

type fakeFetcher struct {
	mu    sync.Mutex
	calls []model.DateRange
	err   error
}

func (f *fakeFetcher) FetchRange(_ context.Context, id int, from, to time.Time) ([]stortrack.HistoricalStore, error) {
	f.mu.Lock()
	f.calls = append(f.calls, model.NewDateRange(from, to))
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return []stortrack.HistoricalStore{{
		StoreID:   id,
		StoreName: "Remote",
		UnitTypes: []stortrack.UnitType{{
			Type:    "Unit",
			Size:    "10x10",
			Feature: "Climate Controlled",
			Prices: []stortrack.PricePoint{
				{Date: model.FormatDate(from), Regular: model.Float(110), Online: model.Float(99)},
			},
		}},
	}}, nil
}

var testWindow = model.NewDateRange(model.NewDate(2024, time.January, 1), model.NewDate(2024, time.January, 10))

func localRecs(id int, price float64, from, to int) []model.RateRecord {
	var out []model.RateRecord
	for d := from; d <= to; d++ {
		out = append(out, model.RateRecord{
			EntityID:     id,
			SpaceType:    "Unit",
			SizeLabel:    "10x10",
			RegularPrice: model.Float(price),
			Date:         model.NewDate(2024, time.January, d),
			Flags:        model.FeatureFlags{ClimateControlled: true},
		})
	}
	return out
}

// Subject fully covered, comparator covered for days 1-5 only.
func testReader() *fakeReader {
	return &fakeReader{
		rates: &store.RateSet{
			ByEntity: map[int][]model.RateRecord{
				1: localRecs(1, 100, 1, 10),
				2: localRecs(2, 120, 1, 5),
			},
			Tables: []string{"rates"},
		},
		infos: map[int]model.EntityInfo{
			1: {ID: 1, Name: "Subject Storage", City: "Austin"},
			2: {ID: 2, Name: "Comp Storage"},
		},
	}
}

func testInput() Input {
	return Input{
		Subject:     model.EntityInfo{ID: 1},
		Comparators: []model.EntityInfo{{ID: 2}},
		Window:      testWindow,
		Rankings: map[int]model.Ranking{
			1: {"Location": 8},
			2: {"Location": 6},
		},
		Approver: backfill.ApproveAll,
	}
}

func phaseNames(res *Result) []string {
	var names []string
	for _, p := range res.Phases {
		names = append(names, p.Name+":"+string(p.Status))
	}
	return names
}

func TestInput_Entities(t *testing.T) {
	in := Input{
		Subject:     model.EntityInfo{ID: 1},
		Comparators: []model.EntityInfo{{ID: 2}, {ID: 1}, {ID: 3}, {ID: 2}},
	}
	var ids []int
	for _, e := range in.Entities() {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []int{1, 2, 3}, ids)
}

func TestInput_Validate(t *testing.T) {
	in := testInput()
	require.NoError(t, in.Validate())

	in.Subject.ID = 0
	assert.Error(t, in.Validate())

	in = testInput()
	in.Window = model.NewDateRange(testWindow.End, testWindow.Start)
	assert.Error(t, in.Validate())

	in = testInput()
	in.Rankings[2] = model.Ranking{"Location": 11}
	assert.Error(t, in.Validate())
}

func TestRun_Full(t *testing.T) {
	f := &fakeFetcher{}
	p := New(testReader(), WithBackfill(backfill.NewOrchestrator(f)))

	res, err := p.Run(context.Background(), testInput())
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, []string{
		"local:complete", "gaps:complete", "backfill:complete",
		"merge:complete", "score:complete", "aggregate:complete",
	}, phaseNames(res))

	require.Len(t, f.calls, 1)
	assert.Equal(t, "2024-01-06..2024-01-10", f.calls[0].String())
	assert.Equal(t, []int{2}, res.Approved)
	assert.Equal(t, 5, res.Estimate.MissingDays)

	// 10 subject + 5 comparator local, 1 remote.
	require.Len(t, res.Records, 16)
	var remote int
	for _, r := range res.Records {
		if r.Source == model.SourceRemote {
			remote++
			assert.Equal(t, "Comp Storage", r.StoreName)
			require.NotNil(t, r.PctDifference)
		}
	}
	assert.Equal(t, 1, remote)

	assert.Equal(t, "Subject Storage", res.Entities[0].Name)
	assert.InDelta(t, 0.0, res.Adjustments[1], 1e-9)
	assert.Less(t, res.Adjustments[2], 0.0, "lower-ranked comparator is adjusted down")

	require.NotNil(t, res.Rollup)
	require.NotEmpty(t, res.Rollup.Groups)
	assert.Equal(t, "10x10", res.Rollup.Groups[0].Size)

	assert.True(t, res.Report.Complete())
	assert.Equal(t, "complete\n", res.Report.Summary())
}

func TestRun_Estimate(t *testing.T) {
	f := &fakeFetcher{}
	p := New(testReader(), WithBackfill(backfill.NewOrchestrator(f)))

	res, err := p.Estimate(context.Background(), testInput())
	require.NoError(t, err)
	assert.Empty(t, f.calls)
	assert.Equal(t, []string{"local:complete", "gaps:complete"}, phaseNames(res))
	assert.Nil(t, res.Rollup)
	assert.Positive(t, res.Estimate.Cost)
	assert.Equal(t, []int{2}, res.Estimate.IDs())

	require.Len(t, res.Report.Incomplete, 1)
	assert.Equal(t, ReasonNotBackfilled, res.Report.Incomplete[0].Reason)
	assert.Equal(t, 5, res.Report.Incomplete[0].MissingDays)
}

func TestRun_NothingApproved(t *testing.T) {
	f := &fakeFetcher{}
	p := New(testReader(), WithBackfill(backfill.NewOrchestrator(f)))
	in := testInput()
	in.Approver = backfill.ApproveNone

	res, err := p.Run(context.Background(), in)
	require.NoError(t, err)
	assert.Empty(t, f.calls)
	assert.Contains(t, phaseNames(res), "backfill:skipped")
	assert.Len(t, res.Records, 15)

	require.Len(t, res.Report.Incomplete, 1)
	inc := res.Report.Incomplete[0]
	assert.Equal(t, 2, inc.EntityID)
	assert.Equal(t, "Comp Storage", inc.Name)
	assert.Equal(t, ReasonNotApproved, inc.Reason)
	assert.False(t, res.Report.Complete())
	assert.Contains(t, res.Report.Summary(), "not approved")
}

func TestRun_NoRemoteConfigured(t *testing.T) {
	res, err := New(testReader()).Run(context.Background(), testInput())
	require.NoError(t, err)
	require.NotEmpty(t, res.Phases)
	for _, ph := range res.Phases {
		if ph.Name == "backfill" {
			assert.Equal(t, model.PhaseStatusSkipped, ph.Status)
			assert.Equal(t, "remote source not configured", ph.Metadata["reason"])
		}
	}
	assert.Empty(t, res.Approved)
}

func TestRun_FullyCovered(t *testing.T) {
	r := testReader()
	r.rates.ByEntity[2] = localRecs(2, 120, 1, 10)
	f := &fakeFetcher{}

	res, err := New(r, WithBackfill(backfill.NewOrchestrator(f))).Run(context.Background(), testInput())
	require.NoError(t, err)
	assert.Empty(t, f.calls)
	for _, ph := range res.Phases {
		if ph.Name == "backfill" {
			assert.Equal(t, "fully covered", ph.Metadata["reason"])
		}
	}
	assert.Empty(t, res.Report.Incomplete)
}

func TestRun_BackfillFailure(t *testing.T) {
	f := &fakeFetcher{err: resilience.NewPermanentError(errors.New("bad request"), 400)}
	p := New(testReader(), WithBackfill(backfill.NewOrchestrator(f)))

	res, err := p.Run(context.Background(), testInput())
	require.NoError(t, err)
	require.Len(t, res.Report.Failures, 1)
	require.Len(t, res.Report.Incomplete, 1)
	inc := res.Report.Incomplete[0]
	assert.Equal(t, ReasonBackfillFail, inc.Reason)
	assert.Equal(t, 5, inc.MissingDays)
	assert.Equal(t, []string{resilience.ClassPermanent}, inc.Classes)
	assert.Len(t, res.Records, 15)
}

func TestRun_LocalDown(t *testing.T) {
	r := testReader()
	r.ratesErr = errors.New("connection refused")

	_, err := New(r).Run(context.Background(), testInput())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "local rate source unavailable")

	// With a remote source and approval the run proceeds on remote data.
	f := &fakeFetcher{}
	res, err := New(r, WithBackfill(backfill.NewOrchestrator(f))).Run(context.Background(), testInput())
	require.NoError(t, err)
	assert.NotEmpty(t, res.Report.LocalError)
	assert.Equal(t, "local:failed", phaseNames(res)[0])
	assert.Len(t, f.calls, 2)
	assert.Len(t, res.Records, 2)
	assert.False(t, res.Report.Complete())
}

func TestRun_MalformedLocalRows(t *testing.T) {
	r := testReader()
	r.rates.ByEntity[2] = localRecs(2, 120, 1, 10)
	r.rates.Malformed = 3

	res, err := New(r).Run(context.Background(), testInput())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Report.LocalMalformed)
	assert.Len(t, res.Records, 20)
	assert.Contains(t, res.Report.Summary(), "malformed local rows skipped: 3")
	assert.Equal(t, 3, res.Phases[0].Metadata["malformed"])
}

func TestRun_EntityInfoWarning(t *testing.T) {
	r := testReader()
	r.infos = nil
	r.infoErr = errors.New("info table missing")

	in := testInput()
	in.Names = map[int]string{2: "Comp B"}
	res, err := New(r).Run(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, res.Report.Warnings, 1)
	assert.Contains(t, res.Report.Warnings[0], "info table missing")
	assert.Equal(t, "Comp B", res.Entities[1].Name)
}

func TestRun_InvalidInput(t *testing.T) {
	in := testInput()
	in.Subject.ID = 0
	res, err := New(testReader()).Run(context.Background(), in)
	assert.Error(t, err)
	assert.Nil(t, res)
}

func TestRun_RawTagsAndSpaceType(t *testing.T) {
	r := testReader()
	r.rates.ByEntity[1] = append(r.rates.ByEntity[1], model.RateRecord{
		EntityID:     1,
		SpaceType:    "Parking",
		SizeLabel:    "10x20",
		RegularPrice: model.Float(50),
		Date:         model.NewDate(2024, time.January, 2),
	})

	in := testInput()
	in.SpaceType = "unit"
	res, err := New(r).Run(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Report.SpaceTypeExcluded)
	assert.NotEmpty(t, res.TagCodes)

	in.RawTags = true
	res, err = New(r).Run(context.Background(), in)
	require.NoError(t, err)
	assert.Nil(t, res.TagCodes)
}

func TestWithClock(t *testing.T) {
	now := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	res, err := New(testReader(), WithClock(func() time.Time { return now })).Estimate(context.Background(), testInput())
	require.NoError(t, err)
	assert.Equal(t, now, res.StartedAt)
}
