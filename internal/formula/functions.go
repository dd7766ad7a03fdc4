package formula

import (
	"math"
	"sort"
	"strconv"
)

// ════════════════════════════════════════════════════════════════════
// Built-in Function Registry
// ════════════════════════════════════════════════════════════════════

// variadic marks a built-in without an upper argument bound.
const variadic = -1

// builtin describes one callable function.
type builtin struct {
	minArgs int
	maxArgs int
	help    string
	fn      func(args []float64) float64
}

var builtins = map[string]builtin{
	// ── Aggregation ─────────────────────────────────────────────
	"min": {0, variadic, "min(a, b, ...)      smallest non-NaN argument, NaN if none", fnMin},
	"max": {0, variadic, "max(a, b, ...)      largest non-NaN argument, NaN if none", fnMax},
	"sum": {0, variadic, "sum(a, b, ...)      sum of non-NaN arguments, 0 if none", fnSum},
	"avg": {0, variadic, "avg(a, b, ...)      mean of non-NaN arguments, NaN if none", fnAvg},

	// ── Utility ─────────────────────────────────────────────────
	"ifnull": {2, 2, "ifnull(value, fb)   fb when value is NaN, else value", fnIfNull},
}

func init() {
	avg := builtins["avg"]
	avg.help = "average(a, b, ...)  alias of avg"
	builtins["average"] = avg
}

// FunctionInfo is the public description of a built-in.
type FunctionInfo struct {
	Name    string
	MinArgs int
	MaxArgs int // -1 when variadic
	Help    string
}

// Functions lists every built-in, sorted by name.
func Functions() []FunctionInfo {
	out := make([]FunctionInfo, 0, len(builtins))
	for name, b := range builtins {
		out = append(out, FunctionInfo{Name: name, MinArgs: b.minArgs, MaxArgs: b.maxArgs, Help: b.help})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// IsBuiltin reports whether name (case-insensitive) is a known function.
func IsBuiltin(name string) bool {
	_, ok := lookupBuiltin(name)
	return ok
}

func lookupBuiltin(name string) (builtin, bool) {
	b, ok := builtins[lowerASCII(name)]
	return b, ok
}

// arityText renders the accepted argument count for error messages.
func (b builtin) arityText() string {
	switch {
	case b.maxArgs == variadic:
		return "at least " + strconv.Itoa(b.minArgs)
	case b.minArgs == b.maxArgs:
		return "exactly " + strconv.Itoa(b.minArgs)
	default:
		return strconv.Itoa(b.minArgs) + " to " + strconv.Itoa(b.maxArgs)
	}
}

func (b builtin) acceptsArgs(n int) bool {
	return n >= b.minArgs && (b.maxArgs == variadic || n <= b.maxArgs)
}

// ────────────────────────────────────────────────────────────────────
// Implementations
// ────────────────────────────────────────────────────────────────────

func fnMin(args []float64) float64 {
	result, seen := math.Inf(1), false
	for _, v := range args {
		if math.IsNaN(v) {
			continue
		}
		seen = true
		if v < result {
			result = v
		}
	}
	if !seen {
		return math.NaN()
	}
	return result
}

func fnMax(args []float64) float64 {
	result, seen := math.Inf(-1), false
	for _, v := range args {
		if math.IsNaN(v) {
			continue
		}
		seen = true
		if v > result {
			result = v
		}
	}
	if !seen {
		return math.NaN()
	}
	return result
}

func fnSum(args []float64) float64 {
	total := 0.0
	for _, v := range args {
		if !math.IsNaN(v) {
			total += v
		}
	}
	return total
}

func fnAvg(args []float64) float64 {
	total, n := 0.0, 0
	for _, v := range args {
		if !math.IsNaN(v) {
			total += v
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return total / float64(n)
}

func fnIfNull(args []float64) float64 {
	if math.IsNaN(args[0]) {
		return args[1]
	}
	return args[0]
}

func lowerASCII(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] >= 'A' && s[i] <= 'Z' {
			b := []byte(s)
			for j := i; j < len(b); j++ {
				if b[j] >= 'A' && b[j] <= 'Z' {
					b[j] += 'a' - 'A'
				}
			}
			return string(b)
		}
	}
	return s
}
