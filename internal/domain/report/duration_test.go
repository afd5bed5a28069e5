package report

import (
	"math"
	"testing"
)

func TestNormalizeDuration(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"0.57", 1.0},  // above .55 rolls into the next hour
		{"1.12", 1.10}, // rounds to the nearest valid code
		{"1.13", 1.15},
		{"2", 2},
		{"2.0", 2},
		{"1.30", 1.30},
		{"0.55", 0.55},
		{"3.02", 3}, // near-zero fraction is whole hours
		{"0.07", 0.10},
	}
	for _, tc := range cases {
		got, err := NormalizeDuration(tc.in)
		if err != nil {
			t.Errorf("NormalizeDuration(%q): %v", tc.in, err)
			continue
		}
		if got == nil {
			t.Errorf("NormalizeDuration(%q) = nil, want %v", tc.in, tc.want)
			continue
		}
		if math.Abs(*got-tc.want) > 1e-9 {
			t.Errorf("NormalizeDuration(%q) = %v, want %v", tc.in, *got, tc.want)
		}
	}
}

func TestNormalizeDuration_EmptyIsUndefined(t *testing.T) {
	got, err := NormalizeDuration("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for empty input, got %v", *got)
	}
}

func TestNormalizeDuration_Rejects(t *testing.T) {
	for _, in := range []string{"abc", "-1.15"} {
		if _, err := NormalizeDuration(in); err == nil {
			t.Errorf("NormalizeDuration(%q): expected error", in)
		}
	}
}

func TestDailyWorkload(t *testing.T) {
	if got := DailyWorkload(7, 1.30, 0.45); math.Abs(got-7*(1.30+0.45)) > 1e-9 {
		t.Errorf("DailyWorkload = %v", got)
	}
}

func TestACWR(t *testing.T) {
	if got := ACWR(120, 100); got == nil || math.Abs(*got-1.2) > 1e-9 {
		t.Errorf("ACWR(120,100) = %v, want 1.2", got)
	}
	if got := ACWR(120, 0); got != nil {
		t.Errorf("ACWR with zero chronic must be undefined, got %v", *got)
	}
}
