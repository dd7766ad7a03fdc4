// roicase: Monte Carlo ROI / NPV analysis for business cases.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/seenimoa/roicase/api"
	"github.com/seenimoa/roicase/internal/config"
	"github.com/seenimoa/roicase/internal/formula"
	"github.com/seenimoa/roicase/internal/logging"
	"github.com/seenimoa/roicase/internal/simulation"
	"github.com/seenimoa/roicase/internal/workbook"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config and logger, set up before every command.
var (
	cfg    *config.Config
	logger zerolog.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "roicase",
	Short: "roicase: Monte Carlo ROI analysis for business cases",
	Long: `roicase evaluates business-case workbooks: metrics with fixed values or
three-point estimates, formulas over them, and benefit / cost categories.
It runs Monte Carlo simulations and reports NPV, payback period, yearly
cash flows, category contributions and input sensitivity.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
			cfg.Logging.Level = lvl
		}
		logger, err = logging.Setup(cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to set up logging: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(replCmd)
	rootCmd.AddCommand(serveCmd)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("roicase %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Validate Command ---

var validateCmd = &cobra.Command{
	Use:   "validate [workbook]",
	Short: "Check a workbook for formula and structure errors",
	Long: `Compile a workbook and list every problem found: syntax errors, unknown
references or functions, wrong argument counts, circular dependencies and
malformed metrics or categories.

With --watch the workbook is re-checked on every save.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		watch, _ := cmd.Flags().GetBool("watch")

		if !watch {
			return validateOnce(path)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		_ = validateOnce(path)
		w := workbook.NewWatcher(path, workbook.DefaultDebounce, logger)
		return w.Watch(ctx, func() {
			fmt.Printf("\n── %s changed (%s) ──\n", path, time.Now().Format(time.Kitchen))
			_ = validateOnce(path)
		})
	},
}

func init() {
	validateCmd.Flags().Bool("watch", false, "re-validate whenever the file changes")
}

func validateOnce(path string) error {
	wb, err := workbook.Load(path)
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		return err
	}
	plan, err := simulation.Compile(wb, cfg.CompileOptions())
	if err != nil {
		printCompileError(err)
		return fmt.Errorf("%s is not valid", path)
	}
	fmt.Printf("✅ %s is valid\n", path)
	fmt.Printf("   %d inputs, %d sampled, %d computed\n",
		len(plan.IDs()), len(plan.StochasticIDs()), len(plan.ComputedIDs()))
	fmt.Printf("   evaluation order: %s\n", strings.Join(plan.ComputedIDs(), " → "))
	return nil
}

// --- Simulate Command ---

var simulateCmd = &cobra.Command{
	Use:   "simulate [workbook]",
	Short: "Run a Monte Carlo simulation on a workbook",
	Long: `Run a Monte Carlo simulation and print the NPV distribution, payback
period, yearly cash flows, category contributions and the inputs NPV is
most sensitive to.

Examples:
  roicase simulate case.yaml
  roicase simulate case.yaml --iterations 50000 --seed 42
  roicase simulate case.json --json > result.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wb, err := workbook.Load(args[0])
		if err != nil {
			return err
		}

		opts := cfg.SimulationOptions()
		if n, _ := cmd.Flags().GetInt("iterations"); n > 0 {
			opts.Iterations = n
		}
		if seed, _ := cmd.Flags().GetUint64("seed"); seed != 0 {
			opts.Seed = seed
		}
		if workers, _ := cmd.Flags().GetInt("workers"); workers > 0 {
			opts.Workers = workers
		}
		if timeout, _ := cmd.Flags().GetDuration("timeout"); timeout > 0 {
			opts.Timeout = timeout
		}
		opts.Logger = &logger

		asJSON, _ := cmd.Flags().GetBool("json")
		quiet, _ := cmd.Flags().GetBool("quiet")
		if !asJSON && !quiet {
			opts.Progress = progressPrinter(os.Stderr)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		plan, err := simulation.Compile(wb, cfg.CompileOptions())
		if err != nil {
			printCompileError(err)
			return fmt.Errorf("workbook %s is not valid", args[0])
		}
		result, err := simulation.Run(ctx, plan, opts)
		if opts.Progress != nil {
			fmt.Fprintln(os.Stderr)
		}
		if err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}
		unit, _ := cmd.Flags().GetString("unit")
		printResult(os.Stdout, wb, result, unit)
		return nil
	},
}

func init() {
	simulateCmd.Flags().Int("iterations", 0, "number of trials (default from config)")
	simulateCmd.Flags().Uint64("seed", 0, "random seed (0 = time based)")
	simulateCmd.Flags().Int("workers", 0, "parallel workers (0 = all cores)")
	simulateCmd.Flags().Duration("timeout", 0, "abort the run after this long")
	simulateCmd.Flags().Bool("json", false, "print the raw result as JSON")
	simulateCmd.Flags().Bool("quiet", false, "hide the progress bar")
	simulateCmd.Flags().String("unit", "$", "currency symbol for the report")
}

// --- REPL Command ---

var replCmd = &cobra.Command{
	Use:   "repl [workbook]",
	Short: "Explore a workbook's formulas interactively",
	Long: `Start an interactive shell over a workbook. Expressions are evaluated
against each metric's most likely value; .set overrides a value,
.deps and .order show the dependency graph. Type .help for commands.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wb, err := workbook.Load(args[0])
		if err != nil {
			return err
		}
		plan, err := simulation.Compile(wb, cfg.CompileOptions())
		if err != nil {
			printCompileError(err)
			return fmt.Errorf("workbook %s is not valid", args[0])
		}
		formula.NewREPL(plan.Env(), os.Stdin, os.Stdout).Run()
		return nil
	},
}

// --- Serve Command (API Server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if port, _ := cmd.Flags().GetInt("port"); port > 0 {
			cfg.API.Port = port
		}
		api.Version = version
		addr := cfg.Addr()
		fmt.Printf("🌐 Starting roicase API server on %s\n", addr)
		return api.NewServer(cfg, logger).ListenAndServe(addr)
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "listen port (default from config)")
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and secret status",
	RunE: func(cmd *cobra.Command, args []string) error {
		sim := cfg.Simulation
		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  roicase: System Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:       %s (%s)\n", version, commit)
		fmt.Println()

		fmt.Println("  Simulation:")
		fmt.Printf("    Iterations:    %d\n", sim.Iterations)
		fmt.Printf("    Workers:       %s\n", orDefault(sim.Workers, "all cores"))
		fmt.Printf("    Seed:          %s\n", orDefault(int(sim.Seed), "time based"))
		fmt.Printf("    Horizon:       %d years (growth %.0f%%, efficiency %.0f%%)\n",
			sim.HorizonYears, sim.Growth*100, sim.Efficiency*100)
		fmt.Printf("    Discount rate: %s, default %.0f%%\n", sim.DiscountRateID, sim.DefaultDiscountRate*100)
		fmt.Printf("    Money units:   %s\n", strings.Join(sim.MonetaryUnits, " "))
		fmt.Printf("    Max depth:     %d\n", cfg.Formula.MaxDepth)
		fmt.Println()

		fmt.Println("  API Server:")
		fmt.Printf("    Listen:        %s\n", cfg.Addr())
		fmt.Printf("    Rate limit:    %.1f/s (burst %d)\n", cfg.API.RateLimit, cfg.API.RateBurst)
		fmt.Println()

		fmt.Println("  Secrets:")
		for _, k := range config.CheckSecrets(cfg) {
			status := "❌ not set"
			if k.IsSet {
				status = fmt.Sprintf("✅ set (%s: %s)", k.Source, k.Masked)
			}
			fmt.Printf("    %-25s %s\n", k.Name+":", status)
		}

		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}

func orDefault(n int, zero string) string {
	if n == 0 {
		return zero
	}
	return fmt.Sprintf("%d", n)
}
