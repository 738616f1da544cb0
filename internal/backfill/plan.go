// Package backfill prices and fills local coverage gaps from the remote
// historical data service.
package backfill

import (
	"sort"
	"time"

	"github.com/sells-group/rca-cli/internal/cost"
	"github.com/sells-group/rca-cli/internal/gaps"
	"github.com/sells-group/rca-cli/internal/model"
)

// Candidate is one entity with missing days.
type Candidate struct {
	EntityID    int               `json:"entity_id"`
	MissingDays int               `json:"missing_days"`
	Ranges      []model.DateRange `json:"ranges"`
	Years       []int             `json:"years"`
	// Cost is this entity's own years × unit price.
	Cost float64 `json:"cost"`
}

// Estimate summarizes the cost of backfilling a set of candidates.
type Estimate struct {
	Entities    []Candidate   `json:"entities"`
	MissingDays int           `json:"missing_days"`
	Years       []int         `json:"years"`
	Calls       int           `json:"calls"`
	Cost        float64       `json:"cost"`
	MinDuration time.Duration `json:"min_duration"`
}

// IDs lists the entity ids in estimate order.
func (e Estimate) IDs() []int {
	ids := make([]int, len(e.Entities))
	for i, c := range e.Entities {
		ids[i] = c.EntityID
	}
	return ids
}

// Plan holds every candidate in a fixed order and prices any subset.
type Plan struct {
	Window     model.DateRange `json:"window"`
	Candidates []Candidate     `json:"candidates"`

	calc        *cost.Calculator
	hourlyLimit int
}

// NewPlan keeps the entities of order that have gaps, in that order.
func NewPlan(window model.DateRange, gapsByID map[int]gaps.Gap, order []int, calc *cost.Calculator, hourlyLimit int) *Plan {
	p := &Plan{Window: window, calc: calc, hourlyLimit: hourlyLimit}
	seen := map[int]bool{}
	for _, id := range order {
		g, ok := gapsByID[id]
		if !ok || g.Empty() || seen[id] {
			continue
		}
		seen[id] = true
		years := g.Years()
		p.Candidates = append(p.Candidates, Candidate{
			EntityID:    id,
			MissingDays: len(g.Missing),
			Ranges:      g.Ranges,
			Years:       years,
			Cost:        calc.PerEntity(len(years)),
		})
	}
	return p
}

// Empty reports whether nothing needs backfilling.
func (p *Plan) Empty() bool {
	return len(p.Candidates) == 0
}

// Estimate prices the whole plan.
func (p *Plan) Estimate() Estimate {
	return p.EstimateFor(nil)
}

// EstimateFor prices the candidates whose ids are in ids, keeping plan
// order. A nil ids selects every candidate. Cost is distinct years touched
// by the subset × subset size × unit price.
func (p *Plan) EstimateFor(ids []int) Estimate {
	var want map[int]bool
	if ids != nil {
		want = make(map[int]bool, len(ids))
		for _, id := range ids {
			want[id] = true
		}
	}

	var est Estimate
	years := map[int]bool{}
	for _, c := range p.Candidates {
		if want != nil && !want[c.EntityID] {
			continue
		}
		est.Entities = append(est.Entities, c)
		est.MissingDays += c.MissingDays
		est.Calls += len(c.Ranges)
		for _, y := range c.Years {
			years[y] = true
		}
	}
	for y := range years {
		est.Years = append(est.Years, y)
	}
	sort.Ints(est.Years)
	est.Cost = p.calc.Backfill(len(est.Years), len(est.Entities))
	est.MinDuration = cost.Duration(est.Calls, p.hourlyLimit)
	return est
}

// Approver decides which candidates of a plan to backfill.
type Approver func(p *Plan) []int

// ApproveAll approves every candidate.
func ApproveAll(p *Plan) []int {
	return p.Estimate().IDs()
}

// ApproveNone approves nothing.
func ApproveNone(*Plan) []int {
	return nil
}

// ApproveSubset approves the candidates among ids.
func ApproveSubset(ids ...int) Approver {
	return func(p *Plan) []int {
		if len(ids) == 0 {
			return nil
		}
		return p.EstimateFor(ids).IDs()
	}
}

// ApproveWithinBudget approves the longest prefix of candidates, in plan
// order, whose estimate does not exceed ceiling.
func ApproveWithinBudget(ceiling float64) Approver {
	return func(p *Plan) []int {
		var approved []int
		for _, c := range p.Candidates {
			next := append(append([]int(nil), approved...), c.EntityID)
			if p.EstimateFor(next).Cost > ceiling {
				break
			}
			approved = next
		}
		return approved
	}
}
