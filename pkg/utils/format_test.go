package utils

import (
	"math"
	"testing"
)

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		input    float64
		expected string
	}{
		{0, "$0.00"},
		{100, "$100.00"},
		{1000, "$1,000.00"},
		{12345, "$12,345.00"},
		{123456, "$123,456.00"},
		{1234567, "$1,234,567.00"},
		{2847.50, "$2,847.50"},
		{999.999, "$1,000.00"},
		{-1234.56, "-$1,234.56"},
		{-0.001, "$0.00"},
		{math.NaN(), "n/a"},
		{math.Inf(1), "n/a"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := FormatMoney(tt.input, "$")
			if result != tt.expected {
				t.Errorf("FormatMoney(%f) = %s, want %s", tt.input, result, tt.expected)
			}
		})
	}
}

func TestFormatCompact(t *testing.T) {
	tests := []struct {
		input    float64
		expected string
	}{
		{500, "€500.00"},
		{1500, "€1.5 K"},
		{1927345, "€1.93 M"},
		{2500000000, "€2.5 B"},
		{3e12, "€3 T"},
		{-42000, "-€42 K"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := FormatCompact(tt.input, "€")
			if result != tt.expected {
				t.Errorf("FormatCompact(%f) = %s, want %s", tt.input, result, tt.expected)
			}
		})
	}
}

func TestFormatPct(t *testing.T) {
	tests := []struct {
		input    float64
		expected string
	}{
		{2.45, "+2.45%"},
		{-1.23, "-1.23%"},
		{0, "+0.00%"},
	}

	for _, tt := range tests {
		if got := FormatPct(tt.input); got != tt.expected {
			t.Errorf("FormatPct(%f) = %s, want %s", tt.input, got, tt.expected)
		}
	}
}

func TestFormatMonths(t *testing.T) {
	tests := []struct {
		months   float64
		horizon  int
		expected string
	}{
		{1, 36, "1 mo"},
		{14, 36, "14 mo"},
		{14.25, 36, "14.25 mo"},
		{36, 36, "> 36 mo"},
		{40, 0, "40 mo"},
		{math.NaN(), 36, "n/a"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := FormatMonths(tt.months, tt.horizon); got != tt.expected {
				t.Errorf("FormatMonths(%v, %d) = %s, want %s", tt.months, tt.horizon, got, tt.expected)
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		ms       int64
		expected string
	}{
		{0, "0ms"},
		{850, "850ms"},
		{2400, "2.4s"},
		{65000, "1m05s"},
	}

	for _, tt := range tests {
		if got := FormatDuration(tt.ms); got != tt.expected {
			t.Errorf("FormatDuration(%d) = %s, want %s", tt.ms, got, tt.expected)
		}
	}
}

func TestGroupThousands(t *testing.T) {
	tests := map[int64]string{
		0:          "0",
		999:        "999",
		1000:       "1,000",
		100000:     "100,000",
		1234567890: "1,234,567,890",
	}
	for in, want := range tests {
		if got := groupThousands(in); got != want {
			t.Errorf("groupThousands(%d) = %s, want %s", in, got, want)
		}
	}
}
