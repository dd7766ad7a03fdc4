package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/seenimoa/roicase/internal/formula"
	"github.com/seenimoa/roicase/internal/simulation"
	"github.com/seenimoa/roicase/pkg/models"
)

// ============================================================
// Request / Response types
// ============================================================

// ValidateRequest is the body for POST /api/v1/validate.
type ValidateRequest struct {
	Expression string   `json:"expression"`
	KnownIDs   []string `json:"knownIds"`
}

// ValidateResponse reports whether an expression compiles against a set of ids.
type ValidateResponse struct {
	Valid      bool     `json:"valid"`
	Canonical  string   `json:"canonical,omitempty"`
	References []string `json:"references,omitempty"`
	Kind       string   `json:"kind,omitempty"`
	Message    string   `json:"message,omitempty"`
	Offset     *int     `json:"offset,omitempty"`
}

// EvaluateRequest is the body for POST /api/v1/evaluate.
type EvaluateRequest struct {
	Expression string             `json:"expression"`
	Values     map[string]float64 `json:"values"`
}

// EvaluateResponse carries a scalar result; Value is null when the result
// is NaN. Overflow to ±Inf is rejected as a non_numeric error.
type EvaluateResponse struct {
	Value     *float64 `json:"value"`
	Canonical string   `json:"canonical"`
}

// WorkbookRequest is the body for POST /api/v1/validate/workbook.
type WorkbookRequest struct {
	Workbook models.Workbook `json:"workbook"`
}

// WorkbookReport describes a compiled workbook or its problems.
type WorkbookReport struct {
	Valid       bool                    `json:"valid"`
	Fingerprint string                  `json:"fingerprint"`
	Diagnostics []simulation.Diagnostic `json:"diagnostics,omitempty"`
	Order       []string                `json:"order,omitempty"`
	Stochastic  []string                `json:"stochastic,omitempty"`
	Computed    []string                `json:"computed,omitempty"`
}

// SimulateRequest is the body for POST /api/v1/simulate and the data of a
// WebSocket "simulate" message. Zero values fall back to configuration.
type SimulateRequest struct {
	Workbook   models.Workbook `json:"workbook"`
	Iterations int             `json:"iterations,omitempty"`
	Seed       uint64          `json:"seed,omitempty"`
	Workers    int             `json:"workers,omitempty"`
}

// FunctionDoc describes a built-in formula function.
type FunctionDoc struct {
	Name    string `json:"name"`
	MinArgs int    `json:"minArgs"`
	MaxArgs int    `json:"maxArgs"` // -1 when variadic
	Help    string `json:"help"`
}

// ============================================================
// Formula handlers
// ============================================================

func (s *Server) handleFunctions(w http.ResponseWriter, r *http.Request) {
	fns := formula.Functions()
	docs := make([]FunctionDoc, len(fns))
	for i, f := range fns {
		docs[i] = FunctionDoc{Name: f.Name, MinArgs: f.MinArgs, MaxArgs: f.MaxArgs, Help: f.Help}
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: docs})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp := ValidateResponse{Valid: true}
	if err := formula.ValidateExpression(req.Expression, req.KnownIDs); err != nil {
		resp = ValidateResponse{
			Kind:    formula.ErrorKind(err),
			Message: err.Error(),
		}
		if off := formula.ErrorOffset(err); off >= 0 {
			resp.Offset = &off
		}
	} else if node, err := formula.Parse(req.Expression); err == nil {
		resp.Canonical = node.String()
		resp.References = formula.References(node)
	}

	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: resp})
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	node, err := formula.ParseWithDepth(req.Expression, s.config().Formula.MaxDepth)
	if err != nil {
		writeErrorData(w, http.StatusUnprocessableEntity, err.Error(), diagnosticOf("", err))
		return
	}
	if problems := formula.Check(node, func(id string) bool { _, ok := req.Values[id]; return ok }); len(problems) > 0 {
		writeErrorData(w, http.StatusUnprocessableEntity, problems[0].Error(), diagnosticOf("", problems[0]))
		return
	}

	v, err := formula.EvaluateNodeScalar(node, formula.MapResolver(req.Values))
	if err != nil {
		writeErrorData(w, http.StatusUnprocessableEntity, err.Error(), diagnosticOf("", err))
		return
	}
	resp := EvaluateResponse{Canonical: node.String()}
	if !math.IsNaN(v) {
		resp.Value = &v
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: resp})
}

// ============================================================
// Workbook handlers
// ============================================================

func (s *Server) handleValidateWorkbook(w http.ResponseWriter, r *http.Request) {
	var req WorkbookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	report := WorkbookReport{Fingerprint: req.Workbook.Fingerprint()}
	plan, err := s.plan(&req.Workbook)
	if err != nil {
		report.Diagnostics = diagnosticsOf(err)
	} else {
		report.Valid = true
		report.Order = plan.Order()
		report.Stochastic = plan.StochasticIDs()
		report.Computed = plan.ComputedIDs()
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: report})
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var req SimulateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !s.limiter.Allow() {
		writeError(w, http.StatusTooManyRequests, "too many simulation requests, retry shortly")
		return
	}

	result, err := s.simulate(r.Context(), &req, nil)
	if err != nil {
		s.writeSimulationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: result})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: s.runs.List()})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	result, ok := s.runs.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("run %q not found", id))
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: result})
}

// ============================================================
// Simulation plumbing shared by HTTP and WebSocket
// ============================================================

var errTooManyIterations = errors.New("too many iterations")

// plan compiles wb, reusing a cached plan for the same workbook compiled
// under the same options.
func (s *Server) plan(wb *models.Workbook) (*simulation.Plan, error) {
	cfg := s.config()
	opts := cfg.CompileOptions()
	p, cached, err := s.plans.GetOrCreate(planKey(wb, opts), func() (*simulation.Plan, error) {
		return simulation.Compile(wb, opts)
	})
	s.metrics.RecordCacheLookup(cached)
	if err != nil {
		return nil, err
	}
	if !cached {
		s.metrics.SetCacheEntries(s.plans.Len())
	}
	return p, nil
}

func planKey(wb *models.Workbook, opts simulation.CompileOptions) string {
	return wb.Fingerprint() + "|" + opts.Key()
}

// simulate runs req and stores the result. progress may be nil.
func (s *Server) simulate(ctx context.Context, req *SimulateRequest, progress func(done, total int)) (*models.SimulationResult, error) {
	cfg := s.config()
	opts := cfg.SimulationOptions()
	if req.Iterations < 0 {
		return nil, fmt.Errorf("%w: iterations must be positive, got %d", simulation.ErrInvalidOptions, req.Iterations)
	}
	if req.Iterations > 0 {
		opts.Iterations = req.Iterations
	}
	if limit := cfg.API.MaxIterations; limit > 0 && opts.Iterations > limit {
		return nil, fmt.Errorf("%w: %d requested, limit is %d", errTooManyIterations, opts.Iterations, limit)
	}
	if req.Seed != 0 {
		opts.Seed = req.Seed
	}
	if req.Workers > 0 {
		opts.Workers = req.Workers
	}
	opts.Progress = progress
	opts.Logger = &s.logger
	opts.Recorder = s.metrics

	plan, err := s.plan(&req.Workbook)
	if err != nil {
		return nil, err
	}
	result, err := simulation.Run(ctx, plan, opts)
	if err != nil {
		return nil, err
	}
	s.runs.Put(req.Workbook.Name, result)
	s.wsHub.Broadcast(WSMessage{
		Type: "run_complete",
		Data: s.runs.summary(req.Workbook.Name, result),
	})
	return result, nil
}

// simulationStatus maps a simulation error onto an HTTP status.
func simulationStatus(err error) int {
	var ve *simulation.ValidationError
	var ce *formula.CircularDependencyError
	switch {
	case errors.As(err, &ve), errors.As(err, &ce):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errTooManyIterations), errors.Is(err, simulation.ErrInvalidOptions):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	case errors.Is(err, simulation.ErrCancelled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) writeSimulationError(w http.ResponseWriter, err error) {
	status := simulationStatus(err)
	if status == http.StatusUnprocessableEntity {
		writeErrorData(w, status, err.Error(), diagnosticsOf(err))
		return
	}
	writeError(w, status, err.Error())
}

// diagnosticsOf flattens a compile error into diagnostics.
func diagnosticsOf(err error) []simulation.Diagnostic {
	var ve *simulation.ValidationError
	if errors.As(err, &ve) {
		return ve.Diagnostics
	}
	var ce *formula.CircularDependencyError
	if errors.As(err, &ce) {
		d := diagnosticOf("", err)
		d.ID = strings.Join(ce.IDs, ",")
		return []simulation.Diagnostic{d}
	}
	return []simulation.Diagnostic{diagnosticOf("", err)}
}

func diagnosticOf(id string, err error) simulation.Diagnostic {
	return simulation.Diagnostic{
		ID:      id,
		Kind:    formula.ErrorKind(err),
		Message: err.Error(),
		Offset:  formula.ErrorOffset(err),
		Err:     err,
	}
}
