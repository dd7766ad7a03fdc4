package models

// Stats summarizes a sample distribution.
type Stats struct {
	P10  float64 `json:"p10"`
	P25  float64 `json:"p25"`
	P50  float64 `json:"p50"`
	P75  float64 `json:"p75"`
	P90  float64 `json:"p90"`
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

// Payback summarizes the payback period in months.
type Payback struct {
	P10 float64 `json:"p10"`
	P50 float64 `json:"p50"`
	P90 float64 `json:"p90"`
}

// YearResult holds the per-year cash flow distributions.
type YearResult struct {
	Year     int   `json:"year"` // 1-based
	Benefits Stats `json:"benefits"`
	Costs    Stats `json:"costs"`
	Net      Stats `json:"net"`
}

// CategoryContribution is a category's mean trial contribution and its share
// of mean NPV in percent. Contribution is signed: benefits positive, costs
// negative. Percentage is Contribution / mean NPV * 100, so while NPV is
// positive a cost category's percentage is negative, and it turns positive
// when NPV is negative.
type CategoryContribution struct {
	CategoryID   string  `json:"categoryId"`
	Name         string  `json:"name,omitempty"`
	Contribution float64 `json:"contribution"`
	Percentage   float64 `json:"percentage"`
}

// Sensitivity is the correlation of one sampled input with NPV.
type Sensitivity struct {
	MetricID string  `json:"metricId"`
	Impact   float64 `json:"impact"`
}

// FormulaOutput summarizes a computed quantity across trials.
type FormulaOutput struct {
	ID    string `json:"id"`
	Stats Stats  `json:"stats"`
}

// RunMetadata describes how a result was produced.
type RunMetadata struct {
	RunID         string `json:"runId"`
	Iterations    int    `json:"iterations"`
	TimestampMs   int64  `json:"timestampMs"`
	DurationMs    int64  `json:"durationMs"`
	Seed          uint64 `json:"seed"`
	Workers       int    `json:"workers"`
	HorizonYears  int    `json:"horizonYears"`
	InvalidTrials int    `json:"invalidTrials"` // trials whose NPV was NaN
}

// SimulationResult is the immutable output of one Monte Carlo run.
type SimulationResult struct {
	NPV                   Stats                  `json:"npv"`
	PaybackPeriod         Payback                `json:"paybackPeriod"`
	YearlyResults         []YearResult           `json:"yearlyResults"`
	CategoryContributions []CategoryContribution `json:"categoryContributions"`
	SensitivityAnalysis   []Sensitivity          `json:"sensitivityAnalysis"`
	FormulaOutputs        []FormulaOutput        `json:"formulaOutputs,omitempty"`
	Metadata              RunMetadata            `json:"metadata"`
}
