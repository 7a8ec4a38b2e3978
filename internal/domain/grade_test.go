package domain

import "testing"

func TestClassifyGradeOrderedLevels(t *testing.T) {
	levels := []float64{80, 50, 20}

	tests := []struct {
		pct  float64
		want GradeLevel
	}{
		{100, Passed},
		{80, Passed}, // boundary is inclusive
		{79.9, Warning},
		{50, Warning},
		{40, Failed},
		{20, Failed},
		{10, Failed},
		{0, Failed},
	}
	for _, tc := range tests {
		got := ClassifyGrade(levels, tc.pct)
		if got.Level != tc.want {
			t.Fatalf("pct %.1f: expected %v, got %v", tc.pct, tc.want, got.Level)
		}
		if got.Percentage != tc.pct {
			t.Fatalf("pct %.1f: percentage not carried through, got %.1f", tc.pct, got.Percentage)
		}
	}
}

func TestClassifyGradeDefaultsToFailed(t *testing.T) {
	if g := ClassifyGrade(nil, 99); g.Level != Failed {
		t.Fatalf("empty levels should always fail, got %v", g.Level)
	}
	if g := ClassifyGrade([]float64{80}, 50); g.Level != Failed {
		t.Fatalf("unmet single cutoff should fail, got %v", g.Level)
	}
	// Extra entries beyond the three grade levels are ignored.
	if g := ClassifyGrade([]float64{80, 50, 20, 5}, 7); g.Level != Failed {
		t.Fatalf("fourth level should be ignored, got %v", g.Level)
	}
}

func TestClassifyGradeClasses(t *testing.T) {
	levels := []float64{80, 50, 20}
	if c := ClassifyGrade(levels, 90).CSSClass; c != "success" {
		t.Fatalf("expected success class, got %q", c)
	}
	if c := ClassifyGrade(levels, 60).CSSClass; c != "warning" {
		t.Fatalf("expected warning class, got %q", c)
	}
	if c := ClassifyGrade(levels, 30).CSSClass; c != "danger" {
		t.Fatalf("expected danger class, got %q", c)
	}
}
