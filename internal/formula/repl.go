package formula

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

// ════════════════════════════════════════════════════════════════════
// Interactive Formula REPL
// ════════════════════════════════════════════════════════════════════

const (
	replBanner = `
╔═══════════════════════════════════════════════════╗
║             roicase formula shell                 ║
║  Type expressions, e.g. revenue * (1 - churn)     ║
║  Commands: .help  .functions  .ids  .quit         ║
╚═══════════════════════════════════════════════════╝
`
	replPrompt = "roi> "
)

// Env is the workbook view a REPL evaluates against.
type Env interface {
	// Resolve returns the point estimate of a metric or formula id.
	Resolve(id string) (float64, bool)
	IDs() []string
	Dependencies() DependencyMap
	Order() []string
}

// REPL is the interactive expression shell.
type REPL struct {
	env       Env
	overrides map[string]float64
	in        io.Reader
	out       io.Writer
	history   []string
}

// NewREPL creates a REPL with explicit reader/writer.
func NewREPL(env Env, in io.Reader, out io.Writer) *REPL {
	return &REPL{
		env:       env,
		overrides: make(map[string]float64),
		in:        in,
		out:       out,
	}
}

// Run starts the interactive loop. Blocks until EOF or .quit.
func (r *REPL) Run() {
	fmt.Fprint(r.out, replBanner)
	scanner := bufio.NewScanner(r.in)
	for {
		fmt.Fprint(r.out, replPrompt)
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, ".") {
			if r.handleCommand(line) {
				return
			}
			continue
		}

		r.history = append(r.history, line)
		r.execute(line)
	}
}

// handleCommand processes REPL dot-commands. Returns true if the REPL should exit.
func (r *REPL) handleCommand(cmd string) bool {
	fields := strings.Fields(cmd)
	switch strings.ToLower(fields[0]) {
	case ".quit", ".exit", ".q":
		fmt.Fprintln(r.out, "Goodbye!")
		return true

	case ".help":
		r.printHelp()

	case ".functions", ".funcs":
		fmt.Fprintln(r.out, "\nBuilt-in Functions")
		fmt.Fprintln(r.out, "──────────────────")
		for _, f := range Functions() {
			fmt.Fprintf(r.out, "  %s\n", f.Help)
		}
		fmt.Fprintln(r.out)

	case ".ids":
		for _, id := range r.env.IDs() {
			v, _ := r.resolve(id)
			fmt.Fprintf(r.out, "  %-24s %s\n", id, formatNumber(v))
		}

	case ".deps":
		if len(fields) < 2 {
			fmt.Fprintln(r.out, "usage: .deps <id>")
			break
		}
		deps := r.env.Dependencies()
		id := fields[1]
		fmt.Fprintf(r.out, "  %s uses:    %s\n", id, joinOrNone(deps[id]))
		fmt.Fprintf(r.out, "  %s used by: %s\n", id, joinOrNone(deps.Dependents(id)))

	case ".order":
		for i, id := range r.env.Order() {
			fmt.Fprintf(r.out, "  %3d  %s\n", i+1, id)
		}

	case ".set":
		if len(fields) != 3 {
			fmt.Fprintln(r.out, "usage: .set <id> <value>")
			break
		}
		v, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			fmt.Fprintf(r.out, "invalid value %q\n", fields[2])
			break
		}
		r.overrides[fields[1]] = v
		fmt.Fprintf(r.out, "  %s = %s\n", fields[1], formatNumber(v))

	case ".reset":
		r.overrides = make(map[string]float64)
		fmt.Fprintln(r.out, "Overrides cleared.")

	case ".history":
		for i, h := range r.history {
			fmt.Fprintf(r.out, "  %d  %s\n", i+1, h)
		}

	case ".clear":
		r.history = nil
		fmt.Fprintln(r.out, "History cleared.")

	default:
		fmt.Fprintf(r.out, "Unknown command: %s  (type .help for help)\n", cmd)
	}
	return false
}

func (r *REPL) printHelp() {
	help := `
Formula Quick Reference
───────────────────────
  revenue - cost               → arithmetic on metric ids
  max(savings, 0) * 12         → built-in functions
  ifnull(bonus / seats, 0)     → NaN fallback (x/0 is NaN)

Dot-Commands:
  .help            Show this help
  .functions       List built-in functions
  .ids             List ids with their point estimates
  .deps <id>       Show what an id uses and is used by
  .order           Show the evaluation order
  .set <id> <v>    Override an id for this session
  .reset           Drop all overrides
  .history         Show expression history
  .clear           Clear history
  .quit            Exit REPL
`
	fmt.Fprint(r.out, help)
}

func (r *REPL) resolve(id string) (float64, bool) {
	if v, ok := r.overrides[id]; ok {
		return v, true
	}
	return r.env.Resolve(id)
}

func (r *REPL) execute(expr string) {
	start := time.Now()

	node, err := Parse(expr)
	if err != nil {
		fmt.Fprintf(r.out, "Error: %v\n", err)
		return
	}
	for _, p := range Check(node, func(id string) bool { _, ok := r.resolve(id); return ok }) {
		fmt.Fprintf(r.out, "Warning: %v\n", p)
	}

	v := Evaluate(node, r.resolve)
	fmt.Fprintf(r.out, "→ %s\n", formatNumber(v))
	fmt.Fprintf(r.out, "  %s  (%s)\n", node.String(), time.Since(start).Round(time.Microsecond))
}

// History returns the REPL's expression history.
func (r *REPL) History() []string {
	return r.history
}

func formatNumber(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func joinOrNone(ids []string) string {
	if len(ids) == 0 {
		return "(none)"
	}
	return strings.Join(ids, ", ")
}
