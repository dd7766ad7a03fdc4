// Package config handles configuration loading for roicase.
// It supports YAML config files with environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/seenimoa/roicase/internal/simulation"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "ROICASE"

// Config represents the complete application configuration.
type Config struct {
	Simulation SimulationConfig `mapstructure:"simulation" yaml:"simulation"`
	Formula    FormulaConfig    `mapstructure:"formula"    yaml:"formula"`
	API        APIConfig        `mapstructure:"api"        yaml:"api"`
	Logging    LoggingConfig    `mapstructure:"logging"    yaml:"logging"`
}

// SimulationConfig holds Monte Carlo run settings.
type SimulationConfig struct {
	Iterations          int      `mapstructure:"iterations"            yaml:"iterations"            json:"iterations"`
	Seed                uint64   `mapstructure:"seed"                  yaml:"seed"                  json:"seed"` // 0 = time based
	Workers             int      `mapstructure:"workers"               yaml:"workers"               json:"workers"` // 0 = all cores
	BatchSize           int      `mapstructure:"batch_size"            yaml:"batch_size"            json:"batchSize"`
	TimeoutSec          int      `mapstructure:"timeout_sec"           yaml:"timeout_sec"           json:"timeoutSec"`
	HorizonYears        int      `mapstructure:"horizon_years"         yaml:"horizon_years"         json:"horizonYears"`
	Growth              float64  `mapstructure:"growth"                yaml:"growth"                json:"growth"`
	Efficiency          float64  `mapstructure:"efficiency"            yaml:"efficiency"            json:"efficiency"`
	DefaultDiscountRate float64  `mapstructure:"default_discount_rate" yaml:"default_discount_rate" json:"defaultDiscountRate"`
	TopK                int      `mapstructure:"top_k"                 yaml:"top_k"                 json:"topK"`
	MonetaryUnits       []string `mapstructure:"monetary_units"        yaml:"monetary_units"        json:"monetaryUnits"`
	DiscountRateID      string   `mapstructure:"discount_rate_id"      yaml:"discount_rate_id"      json:"discountRateId"`
}

// FormulaConfig holds expression engine settings.
type FormulaConfig struct {
	MaxDepth int `mapstructure:"max_depth" yaml:"max_depth" json:"maxDepth"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host           string   `mapstructure:"host"             yaml:"host"`
	Port           int      `mapstructure:"port"             yaml:"port"`
	CORSOrigins    []string `mapstructure:"cors_origins"     yaml:"cors_origins"`
	Token          string   `mapstructure:"token"            yaml:"token"`            // optional bearer token
	RateLimit      float64  `mapstructure:"rate_limit"       yaml:"rate_limit"`       // simulate requests per second
	RateBurst      int      `mapstructure:"rate_burst"       yaml:"rate_burst"`
	PlanCacheTTL   int      `mapstructure:"plan_cache_ttl"   yaml:"plan_cache_ttl"`   // seconds
	MaxIterations  int      `mapstructure:"max_iterations"   yaml:"max_iterations"`
	RunHistorySize int      `mapstructure:"run_history_size" yaml:"run_history_size"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.roicase/config.yaml (home directory)
//  3. /etc/roicase/config.yaml (system)
//
// A .env file in the working directory is loaded first; real environment
// variables win over it. Environment variables override config file values.
// Format: ROICASE_<SECTION>_<KEY>, e.g., ROICASE_SIMULATION_ITERATIONS
func Load() (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".roicase"))
	v.AddConfigPath("/etc/roicase")

	// Read config file (not required to exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return decode(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	overrideFromEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadDotEnv loads path into the process environment if it exists.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("error loading %s: %w", path, err)
	}
	return nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// Simulation defaults
	model := simulation.DefaultCashFlowModel()
	v.SetDefault("simulation.iterations", 10000)
	v.SetDefault("simulation.seed", 0)
	v.SetDefault("simulation.workers", 0)
	v.SetDefault("simulation.batch_size", 1000)
	v.SetDefault("simulation.timeout_sec", 60)
	v.SetDefault("simulation.horizon_years", model.HorizonYears)
	v.SetDefault("simulation.growth", model.Growth)
	v.SetDefault("simulation.efficiency", model.Efficiency)
	v.SetDefault("simulation.default_discount_rate", model.DefaultDiscountRate)
	v.SetDefault("simulation.top_k", simulation.DefaultTopK)
	v.SetDefault("simulation.monetary_units", simulation.DefaultMonetaryUnits)
	v.SetDefault("simulation.discount_rate_id", simulation.DefaultDiscountRateID)

	// Formula defaults
	v.SetDefault("formula.max_depth", 64)

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("api.rate_limit", 2.0)
	v.SetDefault("api.rate_burst", 4)
	v.SetDefault("api.plan_cache_ttl", 600) // 10 minutes
	v.SetDefault("api.max_iterations", 200000)
	v.SetDefault("api.run_history_size", 100)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// overrideFromEnv explicitly reads sensitive keys from environment variables.
func overrideFromEnv(cfg *Config) {
	if token := os.Getenv(EnvPrefix + "_API_TOKEN"); token != "" {
		cfg.API.Token = token
	}
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Simulation.Iterations <= 0:
		return fmt.Errorf("simulation.iterations must be positive, got %d", c.Simulation.Iterations)
	case c.Simulation.Workers < 0:
		return fmt.Errorf("simulation.workers must not be negative, got %d", c.Simulation.Workers)
	case c.Simulation.HorizonYears <= 0:
		return fmt.Errorf("simulation.horizon_years must be positive, got %d", c.Simulation.HorizonYears)
	case c.Simulation.DefaultDiscountRate <= -1:
		return fmt.Errorf("simulation.default_discount_rate must be greater than -1, got %g", c.Simulation.DefaultDiscountRate)
	case c.Formula.MaxDepth <= 0:
		return fmt.Errorf("formula.max_depth must be positive, got %d", c.Formula.MaxDepth)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}

// SimulationOptions maps the simulation section onto engine options.
// Logger, Recorder and Progress are left for the caller to wire.
func (c *Config) SimulationOptions() simulation.Options {
	s := c.Simulation
	return simulation.Options{
		Iterations: s.Iterations,
		Seed:       s.Seed,
		Workers:    s.Workers,
		BatchSize:  s.BatchSize,
		Timeout:    time.Duration(s.TimeoutSec) * time.Second,
		Model: simulation.CashFlowModel{
			HorizonYears:        s.HorizonYears,
			Growth:              s.Growth,
			Efficiency:          s.Efficiency,
			DefaultDiscountRate: s.DefaultDiscountRate,
		},
		TopK: s.TopK,
	}
}

// CompileOptions maps the formula and simulation sections onto compile options.
func (c *Config) CompileOptions() simulation.CompileOptions {
	return simulation.CompileOptions{
		MaxDepth:       c.Formula.MaxDepth,
		MonetaryUnits:  c.Simulation.MonetaryUnits,
		DiscountRateID: c.Simulation.DiscountRateID,
	}
}

// Addr returns the API listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.API.Host, c.API.Port)
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
