package simulation

import "math"

// ════════════════════════════════════════════════════════════════════
// Cash flow model
// ════════════════════════════════════════════════════════════════════

// CashFlowModel turns one trial's aggregated benefits and costs into a
// multi-year cash flow, its net present value and its payback month.
type CashFlowModel struct {
	HorizonYears        int     // number of projected years
	Growth              float64 // yearly benefit growth, e.g. 0.10
	Efficiency          float64 // yearly cost reduction, e.g. 0.05
	DefaultDiscountRate float64 // used when the workbook defines no finite rate
}

// DefaultCashFlowModel returns the three-year model used by default.
func DefaultCashFlowModel() CashFlowModel {
	return CashFlowModel{
		HorizonYears:        3,
		Growth:              0.10,
		Efficiency:          0.05,
		DefaultDiscountRate: 0.25,
	}
}

// Project fills benefits, costs and net (each HorizonYears long) for year
// zero totals b and c: benefits grow by Growth, costs shrink by Efficiency.
func (m CashFlowModel) Project(b, c float64, benefits, costs, net []float64) {
	bMul, cMul := 1.0, 1.0
	for y := 0; y < m.HorizonYears; y++ {
		benefits[y] = b * bMul
		costs[y] = c * cMul
		net[y] = benefits[y] - costs[y]
		bMul *= 1 + m.Growth
		cMul *= 1 - m.Efficiency
	}
}

// DiscountRate picks the workbook rate when usable, otherwise the default.
func (m CashFlowModel) DiscountRate(rate float64, defined bool) float64 {
	if !defined || math.IsNaN(rate) || math.IsInf(rate, 0) || rate <= -1 {
		return m.DefaultDiscountRate
	}
	return rate
}

// NPV discounts yearly net flows, the first year by one full period.
func (m CashFlowModel) NPV(net []float64, rate float64) float64 {
	npv := 0.0
	factor := 1.0
	for _, n := range net {
		factor *= 1 + rate
		npv += n / factor
	}
	return npv
}

// PaybackMonths walks the horizon month by month from a starting position
// of minus the first year's costs, spreading each year's net flow evenly
// over its months. It returns the first month (1-based) at which the
// cumulative position is non-negative, 0 when it already is, and
// SentinelMonths when payback never happens. NaN flows yield NaN.
func (m CashFlowModel) PaybackMonths(benefits, costs []float64) float64 {
	if len(costs) == 0 {
		return float64(m.SentinelMonths())
	}
	for y := range benefits {
		if math.IsNaN(benefits[y]) || math.IsNaN(costs[y]) {
			return math.NaN()
		}
	}
	cumulative := -costs[0]
	if cumulative >= 0 {
		return 0
	}
	month := 0
	for y := range benefits {
		monthly := (benefits[y] - costs[y]) / 12
		for i := 0; i < 12; i++ {
			month++
			cumulative += monthly
			if cumulative >= 0 {
				return float64(month)
			}
		}
	}
	return float64(m.SentinelMonths())
}

// SentinelMonths is the capped payback reported when the horizon is exhausted.
func (m CashFlowModel) SentinelMonths() int { return 12 * m.HorizonYears }
