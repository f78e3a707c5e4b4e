// Package history keeps a rolling, thread-safe log of auction snapshots
// with file-based persistence. The watcher appends one snapshot per poll
// cycle and compares consecutive entries to detect first bids, outbids, and
// deadline changes across restarts.
//
// Persistence uses atomic file writes so a crash mid-save never corrupts
// the existing log.
package history

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jc4p/jc4p-auction-frame/internal/models"
)

// Log is a bounded, thread-safe snapshot log.
type Log struct {
	snapshots []models.Snapshot
	mu        sync.RWMutex

	maxSnapshots    int
	filePath        string
	filePermissions os.FileMode
	dirPermissions  os.FileMode
}

// persistenceFile is the on-disk structure.
type persistenceFile struct {
	Version   string            `json:"version"`
	SavedAt   time.Time         `json:"saved_at"`
	Snapshots []models.Snapshot `json:"snapshots"`
}

// New creates a snapshot log persisted at filePath. If filePath is empty an
// OS-appropriate tmp location is used.
func New(maxSnapshots int, filePath string, filePermissions, dirPermissions os.FileMode) *Log {
	if filePath == "" {
		filePath = filepath.Join(os.TempDir(), "auction-frame", "history.json")
	}
	return &Log{
		snapshots:       make([]models.Snapshot, 0),
		maxSnapshots:    maxSnapshots,
		filePath:        filePath,
		filePermissions: filePermissions,
		dirPermissions:  dirPermissions,
	}
}

// Record builds a snapshot from the observed auction state, appends it, and
// rotates out the oldest entries past the cap.
func (l *Log) Record(state *models.AuctionState, source string) (models.Snapshot, error) {
	snap := models.Snapshot{
		ID:            uuid.New().String(),
		HighestBid:    new(big.Int).Set(state.HighestBid),
		HighestBidder: state.HighestBidder.Hex(),
		TotalBids:     new(big.Int).Set(state.TotalBids),
		HasFirstBid:   state.HasFirstBid,
		EndTime:       state.EndTime,
		Timestamp:     time.Now(),
		Source:        source,
	}
	if err := snap.Validate(); err != nil {
		return models.Snapshot{}, fmt.Errorf("invalid snapshot: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.snapshots = append(l.snapshots, snap)
	if len(l.snapshots) > l.maxSnapshots {
		start := len(l.snapshots) - l.maxSnapshots
		l.snapshots = l.snapshots[start:]
	}
	return snap, nil
}

// Latest returns the most recent snapshot, or false when the log is empty.
func (l *Log) Latest() (models.Snapshot, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if len(l.snapshots) == 0 {
		return models.Snapshot{}, false
	}
	return l.snapshots[len(l.snapshots)-1], true
}

// All returns a copy of the log, oldest first.
func (l *Log) All() []models.Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]models.Snapshot, len(l.snapshots))
	copy(out, l.snapshots)
	return out
}

// Len reports the number of stored snapshots.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.snapshots)
}

// Save persists the log to its file path via a temp-file rename.
func (l *Log) Save() error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	dir := filepath.Dir(l.filePath)
	if err := os.MkdirAll(dir, l.dirPermissions); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	data := persistenceFile{
		Version:   "1.0",
		SavedAt:   time.Now(),
		Snapshots: l.snapshots,
	}
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	tempPath := l.filePath + ".tmp"
	if err := os.WriteFile(tempPath, jsonData, l.filePermissions); err != nil {
		return fmt.Errorf("failed to write history file: %w", err)
	}
	if err := os.Rename(tempPath, l.filePath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename history file: %w", err)
	}
	return nil
}

// Load restores the log from its file path. A missing file starts fresh.
func (l *Log) Load() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Clean up any stale temp file from a previous crash
	tempPath := l.filePath + ".tmp"
	if _, err := os.Stat(tempPath); err == nil {
		_ = os.Remove(tempPath)
	}

	if _, err := os.Stat(l.filePath); os.IsNotExist(err) {
		return nil
	}

	jsonData, err := os.ReadFile(l.filePath)
	if err != nil {
		return fmt.Errorf("failed to read history file: %w", err)
	}

	var data persistenceFile
	if err := json.Unmarshal(jsonData, &data); err != nil {
		return fmt.Errorf("failed to unmarshal history: %w", err)
	}

	l.snapshots = data.Snapshots
	if l.snapshots == nil {
		l.snapshots = make([]models.Snapshot, 0)
	}
	if len(l.snapshots) > l.maxSnapshots {
		start := len(l.snapshots) - l.maxSnapshots
		l.snapshots = l.snapshots[start:]
	}
	return nil
}
