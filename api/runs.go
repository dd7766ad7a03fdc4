package api

import (
	"sync"

	"github.com/seenimoa/roicase/pkg/models"
)

// RunSummary is the short form of a stored run.
type RunSummary struct {
	RunID         string  `json:"runId"`
	Workbook      string  `json:"workbook,omitempty"`
	Iterations    int     `json:"iterations"`
	TimestampMs   int64   `json:"timestampMs"`
	DurationMs    int64   `json:"durationMs"`
	MeanNPV       float64 `json:"meanNpv"`
	PaybackP50    float64 `json:"paybackP50"`
	InvalidTrials int     `json:"invalidTrials"`
}

type storedRun struct {
	workbook string
	result   *models.SimulationResult
}

// RunStore keeps the most recent simulation results in memory, evicting the
// oldest once capacity is reached.
type RunStore struct {
	mu       sync.RWMutex
	capacity int
	runs     map[string]storedRun
	order    []string // oldest first
}

// NewRunStore creates a store holding up to capacity runs (minimum 1).
func NewRunStore(capacity int) *RunStore {
	if capacity < 1 {
		capacity = 1
	}
	return &RunStore{
		capacity: capacity,
		runs:     make(map[string]storedRun),
	}
}

// Put stores result under its run id.
func (rs *RunStore) Put(workbook string, result *models.SimulationResult) {
	id := result.Metadata.RunID
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if _, ok := rs.runs[id]; !ok {
		rs.order = append(rs.order, id)
	}
	rs.runs[id] = storedRun{workbook: workbook, result: result}
	for len(rs.order) > rs.capacity {
		delete(rs.runs, rs.order[0])
		rs.order = rs.order[1:]
	}
}

// Get returns the result stored under id.
func (rs *RunStore) Get(id string) (*models.SimulationResult, bool) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	run, ok := rs.runs[id]
	return run.result, ok
}

// List returns summaries of the stored runs, newest first.
func (rs *RunStore) List() []RunSummary {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	out := make([]RunSummary, 0, len(rs.order))
	for i := len(rs.order) - 1; i >= 0; i-- {
		run := rs.runs[rs.order[i]]
		out = append(out, rs.summary(run.workbook, run.result))
	}
	return out
}

// Len returns the number of stored runs.
func (rs *RunStore) Len() int {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return len(rs.order)
}

func (rs *RunStore) summary(workbook string, r *models.SimulationResult) RunSummary {
	return RunSummary{
		RunID:         r.Metadata.RunID,
		Workbook:      workbook,
		Iterations:    r.Metadata.Iterations,
		TimestampMs:   r.Metadata.TimestampMs,
		DurationMs:    r.Metadata.DurationMs,
		MeanNPV:       r.NPV.Mean,
		PaybackP50:    r.PaybackPeriod.P50,
		InvalidTrials: r.Metadata.InvalidTrials,
	}
}
