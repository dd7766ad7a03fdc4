// Package api — configuration endpoints.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/seenimoa/roicase/internal/config"
)

// ConfigResponse is the JSON body returned by GET /api/v1/config: the
// settings that shape compilation and simulation runs.
type ConfigResponse struct {
	Simulation config.SimulationConfig `json:"simulation"`
	Formula    config.FormulaConfig    `json:"formula"`
}

// ConfigUpdate is the body for PUT /api/v1/config. Only non-zero fields
// are applied.
type ConfigUpdate struct {
	Simulation config.SimulationConfig `json:"simulation"`
	Formula    config.FormulaConfig    `json:"formula"`
}

// handleGetConfig returns the current (running) configuration.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg := s.config()
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    ConfigResponse{Simulation: cfg.Simulation, Formula: cfg.Formula},
	})
}

// handleUpdateConfig merges the provided partial configuration into the
// running config. Compiled plans are dropped because compile settings may
// have changed.
func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var incoming ConfigUpdate
	if err := json.NewDecoder(r.Body).Decode(&incoming); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	s.cfgMu.Lock()
	next := *s.cfg
	mergeConfig(&next, &incoming)
	if err := next.Validate(); err != nil {
		s.cfgMu.Unlock()
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	*s.cfg = next
	s.cfgMu.Unlock()

	s.plans.Flush()
	s.metrics.SetCacheEntries(0)
	s.logger.Info().Msg("Configuration updated")

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    ConfigResponse{Simulation: next.Simulation, Formula: next.Formula},
	})
}

// handleGetSecrets returns the status of all secret settings.
func (s *Server) handleGetSecrets(w http.ResponseWriter, r *http.Request) {
	cfg := s.config()
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    config.CheckSecrets(&cfg),
	})
}

// mergeConfig copies non-zero/non-empty values from src into dst.
func mergeConfig(dst *config.Config, src *ConfigUpdate) {
	in, out := src.Simulation, &dst.Simulation
	if in.Iterations != 0 {
		out.Iterations = in.Iterations
	}
	if in.Seed != 0 {
		out.Seed = in.Seed
	}
	if in.Workers != 0 {
		out.Workers = in.Workers
	}
	if in.BatchSize != 0 {
		out.BatchSize = in.BatchSize
	}
	if in.TimeoutSec != 0 {
		out.TimeoutSec = in.TimeoutSec
	}
	if in.HorizonYears != 0 {
		out.HorizonYears = in.HorizonYears
	}
	if in.Growth != 0 {
		out.Growth = in.Growth
	}
	if in.Efficiency != 0 {
		out.Efficiency = in.Efficiency
	}
	if in.DefaultDiscountRate != 0 {
		out.DefaultDiscountRate = in.DefaultDiscountRate
	}
	if in.TopK != 0 {
		out.TopK = in.TopK
	}
	if len(in.MonetaryUnits) > 0 {
		out.MonetaryUnits = in.MonetaryUnits
	}
	if in.DiscountRateID != "" {
		out.DiscountRateID = in.DiscountRateID
	}

	if src.Formula.MaxDepth != 0 {
		dst.Formula.MaxDepth = src.Formula.MaxDepth
	}
}
