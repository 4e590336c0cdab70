package fairvalue

import "testing"

func TestProbAboveWithinBounds(t *testing.T) {
	c := NewCalculator()
	p := c.ProbAbove(108000, 110000, 0.65, 60.0/365.25)
	if p < clampLo || p > clampHi {
		t.Fatalf("expected probability in [%.2f, %.2f], got %.4f", clampLo, clampHi, p)
	}
	if p <= 0 || p >= 1 {
		t.Fatalf("expected a plausible probability, got %.4f", p)
	}
}

func TestProbAboveZeroTime(t *testing.T) {
	c := NewCalculator()
	if got := c.ProbAbove(120000, 110000, 0.5, 0); got != tZeroAbove {
		t.Fatalf("expected %.2f when spot already above target at T=0, got %.4f", tZeroAbove, got)
	}
	if got := c.ProbAbove(100000, 110000, 0.5, 0); got != tZeroBelow {
		t.Fatalf("expected %.2f when spot below target at T=0, got %.4f", tZeroBelow, got)
	}
}

func TestProbBelowIsComplement(t *testing.T) {
	c := NewCalculator()
	above := c.ProbAbove(108000, 110000, 0.65, 60.0/365.25)
	below := c.ProbBelow(108000, 110000, 0.65, 60.0/365.25)
	if diff := (above + below) - 1; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected ProbAbove+ProbBelow ~= 1, got %.6f + %.6f", above, below)
	}
}

func TestYearsUntil(t *testing.T) {
	if got := YearsUntil(365.25); got != 1.0 {
		t.Fatalf("expected 1 year for 365.25 days, got %.4f", got)
	}
}
