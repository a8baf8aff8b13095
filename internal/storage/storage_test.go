package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/quantfold/polyalert/internal/models"
)

func newTestStorage(t *testing.T, maxRecords int) *Storage {
	t.Helper()
	s, err := New(maxRecords, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testSignal(marketID string, typ models.SignalType) *models.Signal {
	return &models.Signal{
		MarketID:       marketID,
		MarketQuestion: "Will it happen?",
		Type:           typ,
		YesPrice:       0.65,
		Action:         models.ActionBuyYes,
		Confidence:     models.ConfidenceHigh,
		BetSize:        models.BetMedium,
	}
}

func TestRecordAndRecentDispatches(t *testing.T) {
	s := newTestStorage(t, 100)
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	if err := s.RecordDispatch(testSignal("m1", models.TypeOddsShift), 42.5, base); err != nil {
		t.Fatalf("RecordDispatch failed: %v", err)
	}
	if err := s.RecordDispatch(testSignal("m2", models.TypeVolumeSpike), 30, base.Add(time.Minute)); err != nil {
		t.Fatalf("RecordDispatch failed: %v", err)
	}

	records, err := s.RecentDispatches(10)
	if err != nil {
		t.Fatalf("RecentDispatches failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}

	// Most recent first.
	if records[0].MarketID != "m2" {
		t.Errorf("Expected m2 first, got %s", records[0].MarketID)
	}
	r := records[1]
	if r.MarketID != "m1" {
		t.Errorf("MarketID = %s, want m1", r.MarketID)
	}
	if r.IdentityKey != "m1:odds_shift" {
		t.Errorf("IdentityKey = %s", r.IdentityKey)
	}
	if r.SignalType != "odds_shift" || r.Action != "BUY_YES" || r.Confidence != "HIGH" {
		t.Errorf("Unexpected record fields: %+v", r)
	}
	if r.Score != 42.5 {
		t.Errorf("Score = %v, want 42.5", r.Score)
	}
	if !r.SentAt.Equal(base) {
		t.Errorf("SentAt = %v, want %v", r.SentAt, base)
	}
}

func TestRecordDispatch_EnforcesRowCap(t *testing.T) {
	s := newTestStorage(t, 3)
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		sig := testSignal(string(rune('a'+i)), models.TypeOddsShift)
		if err := s.RecordDispatch(sig, 10, base.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("RecordDispatch failed: %v", err)
		}
	}

	records, err := s.RecentDispatches(10)
	if err != nil {
		t.Fatalf("RecentDispatches failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Expected row cap of 3, got %d records", len(records))
	}
	// The newest three survive.
	if records[0].MarketID != "e" || records[2].MarketID != "c" {
		t.Errorf("Wrong rows survived rotation: %s .. %s", records[0].MarketID, records[2].MarketID)
	}
}

func TestCountSince(t *testing.T) {
	s := newTestStorage(t, 100)
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		sig := testSignal(string(rune('a'+i)), models.TypeClosingSoon)
		if err := s.RecordDispatch(sig, 10, base.Add(time.Duration(i)*time.Hour)); err != nil {
			t.Fatalf("RecordDispatch failed: %v", err)
		}
	}

	n, err := s.CountSince(base.Add(2 * time.Hour))
	if err != nil {
		t.Fatalf("CountSince failed: %v", err)
	}
	if n != 2 {
		t.Errorf("CountSince = %d, want 2", n)
	}

	n, err = s.CountSince(base.Add(24 * time.Hour))
	if err != nil {
		t.Fatalf("CountSince failed: %v", err)
	}
	if n != 0 {
		t.Errorf("CountSince = %d, want 0", n)
	}
}

func TestDefaultPath(t *testing.T) {
	s, err := New(10, "")
	if err != nil {
		t.Fatalf("New with default path failed: %v", err)
	}
	defer func() { _ = s.Close() }()

	if err := s.RecordDispatch(testSignal("m1", models.TypeNewMarket), 5, time.Now()); err != nil {
		t.Fatalf("RecordDispatch failed: %v", err)
	}
}
