// Package simulation runs Monte Carlo valuations of a business-case workbook.
//
// A workbook is first compiled into an immutable Plan: every expression is
// parsed, checked and bound to a slot table, and the evaluation order is
// fixed. Run then executes independent trials against the plan in parallel
// and reduces the per-trial samples into a models.SimulationResult.
package simulation

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/seenimoa/roicase/internal/formula"
	"github.com/seenimoa/roicase/pkg/models"
)

// Workbook-level diagnostic kinds, alongside the formula.Kind* values.
const (
	KindDuplicateID         = "duplicate_id"
	KindInvalidDistribution = "invalid_distribution"
	KindInvalidCategory     = "invalid_category"
	KindUnknownMetric       = "unknown_metric"
	KindEmptyID             = "empty_id"
)

// DefaultDiscountRateID is the id whose value discounts cash flows.
const DefaultDiscountRateID = "discount_rate"

// DefaultMonetaryUnits are the units that take part in financial rollups.
var DefaultMonetaryUnits = []string{"$", "USD", "EUR", "€", "£", "GBP", "currency"}

// CompileOptions controls how a workbook is compiled.
type CompileOptions struct {
	MaxDepth       int      // expression nesting limit, 0 = formula.DefaultMaxDepth
	MonetaryUnits  []string // case-insensitive; nil = DefaultMonetaryUnits
	DiscountRateID string   // "" = DefaultDiscountRateID
}

// DefaultCompileOptions returns the options used when none are given.
func DefaultCompileOptions() CompileOptions {
	return CompileOptions{
		MaxDepth:       formula.DefaultMaxDepth,
		MonetaryUnits:  DefaultMonetaryUnits,
		DiscountRateID: DefaultDiscountRateID,
	}
}

// Key identifies the options once defaults are applied. Plans compiled from
// the same workbook under options with equal keys are interchangeable.
func (o CompileOptions) Key() string {
	o = o.withDefaults()
	return fmt.Sprintf("depth=%d units=%q rate=%q", o.MaxDepth, o.MonetaryUnits, o.DiscountRateID)
}

func (o CompileOptions) withDefaults() CompileOptions {
	if o.MaxDepth <= 0 {
		o.MaxDepth = formula.DefaultMaxDepth
	}
	if o.MonetaryUnits == nil {
		o.MonetaryUnits = DefaultMonetaryUnits
	}
	if o.DiscountRateID == "" {
		o.DiscountRateID = DefaultDiscountRateID
	}
	return o
}

// ════════════════════════════════════════════════════════════════════
// Diagnostics
// ════════════════════════════════════════════════════════════════════

// Diagnostic is one problem found while compiling a workbook.
type Diagnostic struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Offset  int    `json:"offset"` // -1 when not tied to an expression position
	Err     error  `json:"-"`
}

func newDiagnostic(id string, err error) Diagnostic {
	return Diagnostic{
		ID:      id,
		Kind:    formula.ErrorKind(err),
		Message: err.Error(),
		Offset:  formula.ErrorOffset(err),
		Err:     err,
	}
}

func workbookDiagnostic(id, kind, format string, args ...interface{}) Diagnostic {
	msg := fmt.Sprintf(format, args...)
	return Diagnostic{ID: id, Kind: kind, Message: msg, Offset: -1, Err: errors.New(msg)}
}

// ValidationError carries every diagnostic of a workbook that cannot run.
type ValidationError struct {
	Diagnostics []Diagnostic
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Diagnostics))
	for i, d := range e.Diagnostics {
		parts[i] = d.ID + ": " + d.Message
	}
	return fmt.Sprintf("workbook has %d problem(s): %s", len(e.Diagnostics), strings.Join(parts, "; "))
}

// Unwrap exposes the underlying errors so errors.As finds, for example, a
// *formula.CircularDependencyError among the diagnostics.
func (e *ValidationError) Unwrap() []error {
	errs := make([]error, 0, len(e.Diagnostics))
	for _, d := range e.Diagnostics {
		if d.Err != nil {
			errs = append(errs, d.Err)
		}
	}
	return errs
}

// ════════════════════════════════════════════════════════════════════
// Plan
// ════════════════════════════════════════════════════════════════════

type step struct {
	slot int
	prog *formula.Program
}

type categoryPlan struct {
	id      string
	name    string
	benefit bool
	slots   []int // monetary members only
}

// Plan is a compiled workbook. It is immutable and shared read-only by all
// trial workers.
type Plan struct {
	ids   []string       // slot -> id
	index map[string]int // id -> slot

	fixed      []float64 // per-slot base value for non-computed metrics
	stochastic []int     // slots sampled per trial
	dists      []models.Distribution
	steps      []step // computed ids in evaluation order

	categories   []categoryPlan
	discountSlot int // -1 when the workbook defines no discount rate

	deps        formula.DependencyMap
	order       []string
	fingerprint string
}

// Compile validates wb and builds its execution plan. Per-expression
// problems are collected into a *ValidationError; a reference cycle among
// otherwise valid expressions is returned as *formula.CircularDependencyError.
func Compile(wb *models.Workbook, opts CompileOptions) (*Plan, error) {
	if wb == nil {
		return nil, errors.New("simulation: nil workbook")
	}
	opts = opts.withDefaults()

	var diags []Diagnostic
	p := &Plan{
		index:        make(map[string]int),
		discountSlot: -1,
		fingerprint:  wb.Fingerprint(),
	}

	// Slot table: metrics first, then formulas, in declaration order.
	metricIDs := make(map[string]bool, len(wb.Metrics))
	addSlot := func(id string) {
		if strings.TrimSpace(id) == "" {
			diags = append(diags, workbookDiagnostic(id, KindEmptyID, "id must not be empty"))
			return
		}
		if _, dup := p.index[id]; dup {
			diags = append(diags, workbookDiagnostic(id, KindDuplicateID, "id %q is defined more than once", id))
			return
		}
		p.index[id] = len(p.ids)
		p.ids = append(p.ids, id)
	}
	for _, m := range wb.Metrics {
		addSlot(m.ID)
		metricIDs[m.ID] = true
	}
	for _, f := range wb.Formulas {
		addSlot(f.ID)
	}
	p.fixed = make([]float64, len(p.ids))

	isKnown := func(id string) bool { _, ok := p.index[id]; return ok }

	// Expressions: formula metrics and formulas.
	nodes := make(map[string]formula.Node)
	compile := func(id, expr string) {
		node, err := formula.ParseWithDepth(expr, opts.MaxDepth)
		if err != nil {
			diags = append(diags, newDiagnostic(id, err))
			return
		}
		problems := formula.Check(node, isKnown)
		for _, prob := range problems {
			diags = append(diags, newDiagnostic(id, prob))
		}
		if len(problems) == 0 {
			nodes[id] = node
		}
	}

	for _, m := range wb.Metrics {
		slot, ok := p.index[m.ID]
		if !ok {
			continue
		}
		switch {
		case m.HasFormula():
			compile(m.ID, m.Formula)
		case m.Distribution != nil:
			if !m.Distribution.Valid() {
				diags = append(diags, workbookDiagnostic(m.ID, KindInvalidDistribution,
					"distribution must satisfy min <= mode <= max, got (%g, %g, %g)",
					m.Distribution.Min, m.Distribution.Mode, m.Distribution.Max))
				continue
			}
			p.stochastic = append(p.stochastic, slot)
			p.dists = append(p.dists, *m.Distribution)
		default:
			p.fixed[slot] = m.FixedValue()
		}
	}
	for _, f := range wb.Formulas {
		if _, ok := p.index[f.ID]; ok {
			compile(f.ID, f.Expression)
		}
	}

	// Categories.
	monetary := unitSet(opts.MonetaryUnits)
	for _, c := range wb.Categories {
		if !c.Type.Valid() {
			diags = append(diags, workbookDiagnostic(c.ID, KindInvalidCategory,
				"category type %q must be benefit or cost", c.Type))
			continue
		}
		cp := categoryPlan{id: c.ID, name: c.Name, benefit: c.Type.IsBenefit()}
		for _, mid := range c.MetricIDs {
			if !metricIDs[mid] {
				diags = append(diags, workbookDiagnostic(c.ID, KindUnknownMetric,
					"category member %q is not a metric", mid))
				continue
			}
			if monetary[strings.ToLower(strings.TrimSpace(metricUnit(wb, mid)))] {
				cp.slots = append(cp.slots, p.index[mid])
			}
		}
		p.categories = append(p.categories, cp)
	}

	// Dependency order over the expressions that compiled.
	p.deps = formula.BuildDependencyMap(nodes)
	if cycle := formula.DetectCircularDependencies(p.deps); len(cycle) > 0 {
		cycleErr := &formula.CircularDependencyError{IDs: cycle}
		if len(diags) == 0 {
			return nil, cycleErr
		}
		diags = append(diags, Diagnostic{
			ID:      strings.Join(cycle, ","),
			Kind:    formula.KindCircularDependency,
			Message: cycleErr.Error(),
			Offset:  -1,
			Err:     cycleErr,
		})
	}
	if len(diags) > 0 {
		return nil, &ValidationError{Diagnostics: diags}
	}

	order, err := formula.TopologicalSort(p.deps)
	if err != nil {
		return nil, err
	}
	p.order = order
	slotOf := func(id string) (int, bool) { s, ok := p.index[id]; return s, ok }
	for _, id := range order {
		node, computed := nodes[id]
		if !computed {
			continue
		}
		p.steps = append(p.steps, step{slot: p.index[id], prog: formula.Bind(node, slotOf)})
	}

	if s, ok := p.index[opts.DiscountRateID]; ok {
		p.discountSlot = s
	}
	return p, nil
}

func metricUnit(wb *models.Workbook, id string) string {
	for _, m := range wb.Metrics {
		if m.ID == id {
			return m.Unit
		}
	}
	return ""
}

func unitSet(units []string) map[string]bool {
	set := make(map[string]bool, len(units))
	for _, u := range units {
		set[strings.ToLower(strings.TrimSpace(u))] = true
	}
	return set
}

// ────────────────────────────────────────────────────────────────────
// Accessors
// ────────────────────────────────────────────────────────────────────

// Order returns the evaluation order of every referenced or computed id.
func (p *Plan) Order() []string { return append([]string(nil), p.order...) }

// Dependencies returns the dependency map of computed ids.
func (p *Plan) Dependencies() formula.DependencyMap { return p.deps }

// IDs returns every metric and formula id in declaration order.
func (p *Plan) IDs() []string { return append([]string(nil), p.ids...) }

// Fingerprint identifies the workbook the plan was compiled from.
func (p *Plan) Fingerprint() string { return p.fingerprint }

// StochasticIDs returns the ids sampled per trial.
func (p *Plan) StochasticIDs() []string {
	out := make([]string, len(p.stochastic))
	for i, s := range p.stochastic {
		out[i] = p.ids[s]
	}
	return out
}

// ComputedIDs returns the formula ids in evaluation order.
func (p *Plan) ComputedIDs() []string {
	out := make([]string, len(p.steps))
	for i, st := range p.steps {
		out[i] = p.ids[st.slot]
	}
	return out
}

// PointEstimates evaluates the workbook once with every distribution at its
// most likely value.
func (p *Plan) PointEstimates() map[string]float64 {
	slots := append([]float64(nil), p.fixed...)
	for i, s := range p.stochastic {
		slots[s] = p.dists[i].Mode
	}
	for _, st := range p.steps {
		slots[st.slot] = st.prog.Eval(slots)
	}
	out := make(map[string]float64, len(slots))
	for i, id := range p.ids {
		out[id] = slots[i]
	}
	return out
}

// Env exposes the plan's point estimates to the formula REPL.
func (p *Plan) Env() formula.Env {
	return &planEnv{plan: p, values: p.PointEstimates()}
}

type planEnv struct {
	plan   *Plan
	values map[string]float64
}

func (e *planEnv) Resolve(id string) (float64, bool) {
	v, ok := e.values[id]
	return v, ok
}

func (e *planEnv) IDs() []string {
	ids := e.plan.IDs()
	sort.Strings(ids)
	return ids
}

func (e *planEnv) Dependencies() formula.DependencyMap { return e.plan.deps }
func (e *planEnv) Order() []string                     { return e.plan.Order() }
