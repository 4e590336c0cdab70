package fairvalue

import (
	"testing"
	"time"
)

func TestParseQuestionAboveWithExplicitYear(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := ParseQuestion("Will Bitcoin be above $110,000 on March 31, 2026?", now)
	if m == nil {
		t.Fatal("expected a match")
	}
	if m.Symbol != "BTC" {
		t.Fatalf("expected BTC, got %s", m.Symbol)
	}
	if m.TargetPrice != 110000 {
		t.Fatalf("expected target 110000, got %.2f", m.TargetPrice)
	}
	if !m.IsAbove {
		t.Fatal("expected isAbove=true")
	}
	if m.ExpiryDate == nil || m.ExpiryDate.Year() != 2026 || m.ExpiryDate.Month() != time.March || m.ExpiryDate.Day() != 31 {
		t.Fatalf("expected expiry 2026-03-31, got %+v", m.ExpiryDate)
	}
}

func TestParseQuestionBelowWithSuffix(t *testing.T) {
	now := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	m := ParseQuestion("Will BTC dip to $80k before Feb 28?", now)
	if m == nil {
		t.Fatal("expected a match")
	}
	if m.IsAbove {
		t.Fatal("expected isAbove=false for 'dip to'")
	}
	if m.TargetPrice != 80000 {
		t.Fatalf("expected target 80000, got %.2f", m.TargetPrice)
	}
	if m.ExpiryDate == nil {
		t.Fatal("expected an expiry date")
	}
	if m.ExpiryDate.Before(now) {
		t.Fatalf("expected expiry to be the next occurrence of Feb 28, got %v", m.ExpiryDate)
	}
}

func TestParseQuestionNoSymbolReturnsNil(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if m := ParseQuestion("Will the S&P close above 6000 this year?", now); m != nil {
		t.Fatalf("expected nil for a non-crypto question, got %+v", m)
	}
}

func TestParseQuestionETHWithThousandSuffix(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m := ParseQuestion("Will ETH hit $4k by June 30, 2025?", now)
	if m == nil {
		t.Fatal("expected a match")
	}
	if m.Symbol != "ETH" {
		t.Fatalf("expected ETH, got %s", m.Symbol)
	}
	if m.TargetPrice != 4000 {
		t.Fatalf("expected target 4000, got %.2f", m.TargetPrice)
	}
	if !m.IsAbove {
		t.Fatal("expected isAbove=true for 'hit'")
	}
}
