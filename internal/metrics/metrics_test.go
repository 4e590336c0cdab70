package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
)

func TestRecordAnomalyIncrementsCounterAndHistogram(t *testing.T) {
	m := New()
	m.RecordAnomaly("CryptoDivergence", 0.7)

	if v := testutil.ToFloat64(m.AnomaliesDetected.WithLabelValues("CryptoDivergence")); v != 1 {
		t.Fatalf("expected 1 anomaly recorded, got %v", v)
	}
}

func TestUpdatePaperStateSetsGauges(t *testing.T) {
	m := New()
	m.UpdatePaperState(decimal.NewFromFloat(950.25), 0.05, 2, 1, false)

	if v := testutil.ToFloat64(m.PaperBalance); v != 950.25 {
		t.Fatalf("expected balance gauge 950.25, got %v", v)
	}
	if v := testutil.ToFloat64(m.PaperPaused); v != 0 {
		t.Fatalf("expected paused gauge 0, got %v", v)
	}
}

func TestRecordQualityScoreTracksBlocksAndActionable(t *testing.T) {
	m := New()
	m.RecordQualityScore("PriceBinary", 40, false, []string{"volume_below_hard_floor"})

	if v := testutil.ToFloat64(m.QualityBlocks.WithLabelValues("volume_below_hard_floor")); v != 1 {
		t.Fatalf("expected 1 block recorded, got %v", v)
	}
	if v := testutil.ToFloat64(m.ActionableRate.WithLabelValues("false")); v != 1 {
		t.Fatalf("expected 1 non-actionable recorded, got %v", v)
	}
}
