package simulation

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/roicase/internal/sampler"
	"github.com/seenimoa/roicase/internal/stats"
	"github.com/seenimoa/roicase/pkg/models"
)

// ErrCancelled is returned when a run stops before all trials completed.
// It wraps the context error that caused the stop.
var ErrCancelled = errors.New("simulation cancelled")

// ErrInvalidOptions reports unusable run options.
var ErrInvalidOptions = errors.New("invalid simulation options")

// Run statuses passed to a Recorder.
const (
	StatusOK        = "ok"
	StatusCancelled = "cancelled"
	StatusError     = "error"
)

// Recorder observes finished runs, e.g. to export metrics.
type Recorder interface {
	RecordRun(status string, iterations, invalidTrials int, elapsed time.Duration)
}

// Options controls a simulation run.
type Options struct {
	Iterations int
	Seed       uint64        // 0 picks a time-based seed, reported in the result
	Workers    int           // 0 = GOMAXPROCS
	BatchSize  int           // trials between cancellation checks, 0 = 1000
	Timeout    time.Duration // 0 = no deadline beyond ctx
	Model      CashFlowModel // zero value = DefaultCashFlowModel()
	TopK       int           // sensitivity entries kept, 0 = DefaultTopK

	// Progress, when set, is called after every batch with the number of
	// completed trials. Calls are serialized across workers.
	Progress func(done, total int)

	Logger   *zerolog.Logger
	Recorder Recorder
}

// DefaultOptions returns a ten thousand trial run on all cores.
func DefaultOptions() Options {
	return Options{
		Iterations: 10000,
		BatchSize:  1000,
		Model:      DefaultCashFlowModel(),
		TopK:       DefaultTopK,
	}
}

func (o Options) withDefaults() Options {
	if o.Seed == 0 {
		o.Seed = uint64(time.Now().UnixNano())
	}
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.Workers > o.Iterations {
		o.Workers = o.Iterations
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 1000
	}
	if o.Model.HorizonYears <= 0 {
		o.Model = DefaultCashFlowModel()
	}
	if o.TopK <= 0 {
		o.TopK = DefaultTopK
	}
	if o.Logger == nil {
		nop := zerolog.Nop()
		o.Logger = &nop
	}
	return o
}

// ════════════════════════════════════════════════════════════════════
// Run
// ════════════════════════════════════════════════════════════════════

// RunWorkbook compiles wb and runs it.
func RunWorkbook(ctx context.Context, wb *models.Workbook, copts CompileOptions, opts Options) (*models.SimulationResult, error) {
	plan, err := Compile(wb, copts)
	if err != nil {
		return nil, err
	}
	return Run(ctx, plan, opts)
}

// Run executes opts.Iterations independent trials of plan. Trials are split
// into contiguous partitions, one per worker; each worker owns its random
// stream and its accumulator, and the accumulators are concatenated in
// worker order. A fixed Seed and Workers pair is therefore reproducible.
//
// A cancelled or timed-out run returns ErrCancelled and no result.
func Run(ctx context.Context, plan *Plan, opts Options) (*models.SimulationResult, error) {
	if plan == nil {
		return nil, fmt.Errorf("%w: nil plan", ErrInvalidOptions)
	}
	if opts.Iterations <= 0 {
		return nil, fmt.Errorf("%w: iterations must be positive, got %d", ErrInvalidOptions, opts.Iterations)
	}
	opts = opts.withDefaults()
	log := opts.Logger

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	log.Info().
		Int("iterations", opts.Iterations).
		Int("workers", opts.Workers).
		Uint64("seed", opts.Seed).
		Str("workbook", shortFingerprint(plan.fingerprint)).
		Msg("Starting simulation")

	parts := make([]*accumulator, opts.Workers)
	var (
		progressMu sync.Mutex
		done       int
	)

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < opts.Workers; w++ {
		lo := w * opts.Iterations / opts.Workers
		hi := (w + 1) * opts.Iterations / opts.Workers
		g.Go(func() error {
			src := sampler.NewSource(opts.Seed, uint64(w))
			acc := newAccumulator(plan, opts.Model.HorizonYears, hi-lo)
			t := newTrial(plan, opts.Model)
			pending := 0
			for i := lo; i < hi; i++ {
				if pending == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				t.run(src)
				acc.record(t)
				pending++
				if pending == opts.BatchSize || i == hi-1 {
					// done only moves under progressMu so reports never go backwards.
					progressMu.Lock()
					done += pending
					if opts.Progress != nil {
						opts.Progress(done, opts.Iterations)
					}
					progressMu.Unlock()
					pending = 0
				}
			}
			parts[w] = acc
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		elapsed := time.Since(start)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			log.Warn().Err(err).Dur("elapsed", elapsed).Msg("Simulation cancelled")
			record(opts.Recorder, StatusCancelled, opts.Iterations, 0, elapsed)
			return nil, fmt.Errorf("%w: %w", ErrCancelled, err)
		}
		log.Error().Err(err).Msg("Simulation failed")
		record(opts.Recorder, StatusError, opts.Iterations, 0, elapsed)
		return nil, err
	}

	acc := mergeAccumulators(parts)
	result := summarize(plan, acc, opts)
	elapsed := time.Since(start)
	result.Metadata = models.RunMetadata{
		RunID:         uuid.NewString(),
		Iterations:    opts.Iterations,
		TimestampMs:   start.UnixMilli(),
		DurationMs:    elapsed.Milliseconds(),
		Seed:          opts.Seed,
		Workers:       opts.Workers,
		HorizonYears:  opts.Model.HorizonYears,
		InvalidTrials: result.Metadata.InvalidTrials,
	}

	log.Info().
		Str("run_id", result.Metadata.RunID).
		Dur("elapsed", elapsed).
		Float64("npv_p50", result.NPV.P50).
		Int("invalid_trials", result.Metadata.InvalidTrials).
		Msg("Simulation complete")
	record(opts.Recorder, StatusOK, opts.Iterations, result.Metadata.InvalidTrials, elapsed)
	return result, nil
}

func record(r Recorder, status string, iterations, invalid int, elapsed time.Duration) {
	if r != nil {
		r.RecordRun(status, iterations, invalid, elapsed)
	}
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}

// ════════════════════════════════════════════════════════════════════
// Trial
// ════════════════════════════════════════════════════════════════════

// trial is one worker's scratch space; nothing in it outlives a trial
// except what record copies into the accumulator.
type trial struct {
	plan  *Plan
	model CashFlowModel

	slots    []float64
	samples  []float64
	catTotal []float64
	benefits []float64
	costs    []float64
	net      []float64
	npv      float64
	payback  float64
}

func newTrial(p *Plan, m CashFlowModel) *trial {
	return &trial{
		plan:     p,
		model:    m,
		slots:    make([]float64, len(p.ids)),
		samples:  make([]float64, len(p.stochastic)),
		catTotal: make([]float64, len(p.categories)),
		benefits: make([]float64, m.HorizonYears),
		costs:    make([]float64, m.HorizonYears),
		net:      make([]float64, m.HorizonYears),
	}
}

func (t *trial) run(src sampler.Source) {
	p := t.plan
	copy(t.slots, p.fixed)

	// 1. Sample uncertain inputs.
	for i, s := range p.stochastic {
		d := p.dists[i]
		v := sampler.PERT(src, d.Min, d.Mode, d.Max)
		t.slots[s] = v
		t.samples[i] = v
	}

	// 2. Evaluate formulas in dependency order.
	for _, st := range p.steps {
		t.slots[st.slot] = st.prog.Eval(t.slots)
	}

	// 3. Category rollups over monetary members.
	var b, c float64
	for i, cat := range p.categories {
		total := 0.0
		for _, s := range cat.slots {
			total += t.slots[s]
		}
		t.catTotal[i] = total
		if cat.benefit {
			b += total
		} else {
			c += total
		}
	}

	// 4-6. Project, discount and find payback.
	t.model.Project(b, c, t.benefits, t.costs, t.net)
	rate, defined := 0.0, p.discountSlot >= 0
	if defined {
		rate = t.slots[p.discountSlot]
	}
	t.npv = t.model.NPV(t.net, t.model.DiscountRate(rate, defined))
	t.payback = t.model.PaybackMonths(t.benefits, t.costs)
}

// ════════════════════════════════════════════════════════════════════
// Accumulation
// ════════════════════════════════════════════════════════════════════

// accumulator holds per-trial scalars column by column.
type accumulator struct {
	npv        []float64
	payback    []float64
	benefits   [][]float64 // [year][trial]
	costs      [][]float64
	net        [][]float64
	samples    [][]float64 // [stochastic input][trial]
	categories [][]float64 // [category][trial]
	outputs    [][]float64 // [computed id][trial]
}

func newAccumulator(p *Plan, years, n int) *accumulator {
	columns := func(k int) [][]float64 {
		out := make([][]float64, k)
		for i := range out {
			out[i] = make([]float64, 0, n)
		}
		return out
	}
	return &accumulator{
		npv:        make([]float64, 0, n),
		payback:    make([]float64, 0, n),
		benefits:   columns(years),
		costs:      columns(years),
		net:        columns(years),
		samples:    columns(len(p.stochastic)),
		categories: columns(len(p.categories)),
		outputs:    columns(len(p.steps)),
	}
}

func (a *accumulator) record(t *trial) {
	a.npv = append(a.npv, t.npv)
	a.payback = append(a.payback, t.payback)
	for y := range a.benefits {
		a.benefits[y] = append(a.benefits[y], t.benefits[y])
		a.costs[y] = append(a.costs[y], t.costs[y])
		a.net[y] = append(a.net[y], t.net[y])
	}
	for i, v := range t.samples {
		a.samples[i] = append(a.samples[i], v)
	}
	for i, v := range t.catTotal {
		a.categories[i] = append(a.categories[i], v)
	}
	for i, st := range t.plan.steps {
		a.outputs[i] = append(a.outputs[i], t.slots[st.slot])
	}
}

func (a *accumulator) appendFrom(b *accumulator) {
	a.npv = append(a.npv, b.npv...)
	a.payback = append(a.payback, b.payback...)
	appendColumns(a.benefits, b.benefits)
	appendColumns(a.costs, b.costs)
	appendColumns(a.net, b.net)
	appendColumns(a.samples, b.samples)
	appendColumns(a.categories, b.categories)
	appendColumns(a.outputs, b.outputs)
}

func appendColumns(dst, src [][]float64) {
	for i := range dst {
		dst[i] = append(dst[i], src[i]...)
	}
}

func mergeAccumulators(parts []*accumulator) *accumulator {
	if len(parts) == 1 {
		return parts[0]
	}
	merged := parts[0]
	for _, p := range parts[1:] {
		merged.appendFrom(p)
	}
	return merged
}

// ════════════════════════════════════════════════════════════════════
// Reduction
// ════════════════════════════════════════════════════════════════════

func summarize(plan *Plan, acc *accumulator, opts Options) *models.SimulationResult {
	npv, invalid := stats.Summarize(acc.npv)
	payback, _ := stats.Summarize(acc.payback)

	years := make([]models.YearResult, opts.Model.HorizonYears)
	for y := range years {
		b, _ := stats.Summarize(acc.benefits[y])
		c, _ := stats.Summarize(acc.costs[y])
		n, _ := stats.Summarize(acc.net[y])
		years[y] = models.YearResult{Year: y + 1, Benefits: b, Costs: c, Net: n}
	}

	outputs := make([]models.FormulaOutput, len(plan.steps))
	for i, st := range plan.steps {
		s, _ := stats.Summarize(acc.outputs[i])
		outputs[i] = models.FormulaOutput{ID: plan.ids[st.slot], Stats: s}
	}

	return &models.SimulationResult{
		NPV:                   npv,
		PaybackPeriod:         models.Payback{P10: payback.P10, P50: payback.P50, P90: payback.P90},
		YearlyResults:         years,
		CategoryContributions: categoryContributions(plan, acc.categories, npv.Mean),
		SensitivityAnalysis:   rankSensitivity(plan.StochasticIDs(), acc.samples, acc.npv, opts.TopK),
		FormulaOutputs:        outputs,
		Metadata:              models.RunMetadata{InvalidTrials: invalid},
	}
}
