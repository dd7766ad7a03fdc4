// Package utils provides number formatting helpers for roicase reports.
package utils

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// FormatMoney formats an amount with thousands grouping and two decimals,
// prefixed by unit (e.g. "$1,234,567.89"). Non-finite amounts render as "n/a".
func FormatMoney(amount float64, unit string) string {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return "n/a"
	}
	negative := amount < 0
	amount = math.Abs(amount)

	cents := int64(math.Round(amount * 100))
	formatted := fmt.Sprintf("%s.%02d", groupThousands(cents/100), cents%100)

	if negative && cents != 0 {
		return "-" + unit + formatted
	}
	return unit + formatted
}

// FormatCompact formats an amount in short notation.
// e.g., 1927345 → "$1.93 M", 2500000000 → "$2.5 B"
func FormatCompact(amount float64, unit string) string {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return "n/a"
	}
	prefix := unit
	if amount < 0 {
		prefix = "-" + unit
	}
	amount = math.Abs(amount)

	switch {
	case amount >= 1e12:
		return fmt.Sprintf("%s%s T", prefix, formatWithDecimals(amount/1e12))
	case amount >= 1e9:
		return fmt.Sprintf("%s%s B", prefix, formatWithDecimals(amount/1e9))
	case amount >= 1e6:
		return fmt.Sprintf("%s%s M", prefix, formatWithDecimals(amount/1e6))
	case amount >= 1e3:
		return fmt.Sprintf("%s%s K", prefix, formatWithDecimals(amount/1e3))
	default:
		return fmt.Sprintf("%s%.2f", prefix, amount)
	}
}

// FormatPct formats a percentage value with sign and suffix.
// e.g., 2.45 → "+2.45%", -1.23 → "-1.23%"
func FormatPct(pct float64) string {
	if pct >= 0 {
		return fmt.Sprintf("+%.2f%%", pct)
	}
	return fmt.Sprintf("%.2f%%", pct)
}

// FormatMonths formats a payback period. Values at or beyond horizonMonths
// mean the investment never pays back within the horizon.
func FormatMonths(months float64, horizonMonths int) string {
	switch {
	case math.IsNaN(months):
		return "n/a"
	case horizonMonths > 0 && months >= float64(horizonMonths):
		return fmt.Sprintf("> %d mo", horizonMonths)
	}
	return fmt.Sprintf("%s mo", formatWithDecimals(months))
}

// FormatDuration renders elapsed milliseconds for humans ("850ms", "2.4s", "1m05s").
func FormatDuration(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", ms)
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
}

// groupThousands formats a non-negative integer with comma groups of three.
func groupThousands(n int64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}

	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// formatWithDecimals formats a number with up to 2 decimal places,
// removing trailing zeros.
func formatWithDecimals(n float64) string {
	s := fmt.Sprintf("%.2f", n)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	return s
}
