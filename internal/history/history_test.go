package history

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/jc4p/jc4p-auction-frame/internal/models"
)

func sampleState(bid int64) *models.AuctionState {
	return &models.AuctionState{
		ReservePrice:    big.NewInt(100),
		MinIncrementBps: big.NewInt(1000),
		HighestBid:      big.NewInt(bid),
		HighestBidder:   common.HexToAddress("0xaa"),
		HasFirstBid:     true,
		TotalBids:       big.NewInt(1),
		EndTime:         9999999999,
	}
}

func TestRecordAndLatest(t *testing.T) {
	log := New(10, filepath.Join(t.TempDir(), "history.json"), 0o644, 0o755)

	snap, err := log.Record(sampleState(150), "poll")
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if snap.ID == "" {
		t.Error("expected generated snapshot ID")
	}
	if snap.Source != "poll" {
		t.Errorf("unexpected source: %q", snap.Source)
	}

	latest, ok := log.Latest()
	if !ok {
		t.Fatal("Latest returned empty for non-empty log")
	}
	if latest.ID != snap.ID {
		t.Errorf("Latest returned %s, want %s", latest.ID, snap.ID)
	}
}

func TestRecord_CopiesAmounts(t *testing.T) {
	log := New(10, filepath.Join(t.TempDir(), "history.json"), 0o644, 0o755)
	state := sampleState(150)

	snap, err := log.Record(state, "poll")
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	state.HighestBid.SetInt64(999)
	if snap.HighestBid.Cmp(big.NewInt(150)) != 0 {
		t.Error("snapshot shares memory with the recorded state")
	}
}

func TestRotation(t *testing.T) {
	log := New(3, filepath.Join(t.TempDir(), "history.json"), 0o644, 0o755)

	for i := int64(1); i <= 5; i++ {
		if _, err := log.Record(sampleState(100*i), "poll"); err != nil {
			t.Fatalf("Record %d failed: %v", i, err)
		}
	}

	if log.Len() != 3 {
		t.Fatalf("expected 3 snapshots after rotation, got %d", log.Len())
	}
	all := log.All()
	if all[0].HighestBid.Cmp(big.NewInt(300)) != 0 {
		t.Errorf("oldest kept snapshot has bid %s, want 300", all[0].HighestBid)
	}
	if all[2].HighestBid.Cmp(big.NewInt(500)) != 0 {
		t.Errorf("newest snapshot has bid %s, want 500", all[2].HighestBid)
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")

	log := New(10, path, 0o644, 0o755)
	if _, err := log.Record(sampleState(150), "poll"); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if _, err := log.Record(sampleState(200), "refresh"); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := log.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	restored := New(10, path, 0o644, 0o755)
	if err := restored.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if restored.Len() != 2 {
		t.Fatalf("expected 2 restored snapshots, got %d", restored.Len())
	}
	latest, _ := restored.Latest()
	if latest.HighestBid.Cmp(big.NewInt(200)) != 0 {
		t.Errorf("restored latest bid %s, want 200", latest.HighestBid)
	}
	if latest.Source != "refresh" {
		t.Errorf("restored source %q, want refresh", latest.Source)
	}
}

func TestLoad_MissingFileStartsFresh(t *testing.T) {
	log := New(10, filepath.Join(t.TempDir(), "missing.json"), 0o644, 0o755)
	if err := log.Load(); err != nil {
		t.Fatalf("Load of missing file should not error: %v", err)
	}
	if log.Len() != 0 {
		t.Errorf("expected empty log, got %d", log.Len())
	}
}

func TestLoad_RemovesStaleTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.json")
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, []byte("partial"), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	log := New(10, path, 0o644, 0o755)
	if err := log.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, err := os.Stat(tempPath); !os.IsNotExist(err) {
		t.Error("stale temp file was not removed")
	}
}

func TestLoad_CapsRestoredLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")

	big10 := New(10, path, 0o644, 0o755)
	for i := int64(1); i <= 6; i++ {
		if _, err := big10.Record(sampleState(100*i), "poll"); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}
	if err := big10.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	small := New(2, path, 0o644, 0o755)
	if err := small.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if small.Len() != 2 {
		t.Fatalf("expected restored log capped at 2, got %d", small.Len())
	}
	latest, _ := small.Latest()
	if latest.HighestBid.Cmp(big.NewInt(600)) != 0 {
		t.Errorf("latest after capped load is %s, want 600", latest.HighestBid)
	}
}
