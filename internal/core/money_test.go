package core

import "testing"

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in    string
		cents int64
		ok    bool
	}{
		{"12.34", 1234, true},
		{"12,34", 1234, true},
		{"12.345", 1234, true}, // rounds down
		{"12.346", 1235, true}, // rounds up
		{"0", 0, true},
		{"20000", 2000000, true},
		{"", 0, false},
		{"-5", 0, false},
		{"+5", 0, false},
		{"1.2.3", 0, false},
		{"abc", 0, false},
	}
	for _, tc := range cases {
		m, err := ParseAmount(tc.in)
		if tc.ok && err != nil {
			t.Fatalf("ParseAmount(%q) error = %v", tc.in, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("ParseAmount(%q) expected error", tc.in)
		}
		if tc.ok && m.Cents != tc.cents {
			t.Fatalf("ParseAmount(%q) = %d cents, want %d", tc.in, m.Cents, tc.cents)
		}
	}
}

func TestMoneyUnits(t *testing.T) {
	cases := []struct {
		cents int64
		units int64
	}{
		{0, 0},
		{49, 0},
		{50, 1},
		{12345, 123},
		{12350, 124},
		{-150, -2},
	}
	for _, tc := range cases {
		if got := (Money{Cents: tc.cents}).Units(); got != tc.units {
			t.Fatalf("Units(%d) = %d, want %d", tc.cents, got, tc.units)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		cents int64
		out   string
	}{
		{0, "0"},
		{123400, "1 234"},
		{2000000, "20 000"},
		{10000000000, "100 000 000"},
		{-123400, "-1 234"},
	}
	for _, tc := range cases {
		if got := FormatAmount(Money{Cents: tc.cents}); got != tc.out {
			t.Fatalf("FormatAmount(%d) = %q, want %q", tc.cents, got, tc.out)
		}
	}
}

func TestRatioPercent(t *testing.T) {
	cases := []struct {
		part, whole int64
		pct         int
	}{
		{0, 0, 0},
		{500, 0, 0},
		{50, 100, 50},
		{1, 3, 33},
		{2, 3, 67},
		{200, 100, 200},
	}
	for _, tc := range cases {
		if got := RatioPercent(tc.part, tc.whole); got != tc.pct {
			t.Fatalf("RatioPercent(%d, %d) = %d, want %d", tc.part, tc.whole, got, tc.pct)
		}
	}
}
