// Package usage tracks per-agent-type dispatch usage records and persists
// them across monitoring sessions.
package usage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"roboswarm/internal/logging"
)

// autoSaveDelay debounces disk writes after a record update.
const autoSaveDelay = 2 * time.Second

// Record is the usage entry for one agent type. Count grows monotonically on
// successful dispatches and resets only via explicit admin action.
type Record struct {
	Count      int64     `json:"count"`
	LastUsedAt time.Time `json:"last_used_at"`
}

// fileData is the on-disk shape of .roboswarm/usage.json.
type fileData struct {
	Version string            `json:"version"`
	Records map[string]Record `json:"records"`
}

// Tracker manages usage records with debounced JSON persistence.
type Tracker struct {
	mu            sync.Mutex
	data          fileData
	filePath      string
	dirty         bool
	autoSaveTimer *time.Timer
}

// NewTracker creates a tracker persisting under workspacePath/.roboswarm/usage.json
// and loads any existing records.
func NewTracker(workspacePath string) (*Tracker, error) {
	dir := filepath.Join(workspacePath, ".roboswarm")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create .roboswarm dir: %w", err)
	}

	t := &Tracker{
		filePath: filepath.Join(dir, "usage.json"),
		data: fileData{
			Version: "1.0",
			Records: make(map[string]Record),
		},
	}

	if err := t.Load(); err != nil {
		logging.Get(logging.CategoryUsage).Warn("tracker: could not load usage data, starting fresh: %v", err)
	}

	return t, nil
}

// Load reads the usage data from disk. A missing file is not an error.
func (t *Tracker) Load() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	data, err := os.ReadFile(t.filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, &t.data); err != nil {
		return err
	}
	if t.data.Records == nil {
		t.data.Records = make(map[string]Record)
	}
	return nil
}

// RecordDispatch notes a successful dispatch to agentType. Called only after
// a dispatch succeeds; rejected decisions leave the records untouched.
func (t *Tracker) RecordDispatch(agentType string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec := t.data.Records[agentType]
	rec.Count++
	rec.LastUsedAt = time.Now()
	t.data.Records[agentType] = rec
	t.markDirtyLocked()

	logging.Usage("dispatch recorded: type=%s count=%d", agentType, rec.Count)
}

// Get returns the record for agentType and whether one exists.
func (t *Tracker) Get(agentType string) (Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.data.Records[agentType]
	return rec, ok
}

// All returns a copy of every record keyed by agent type.
func (t *Tracker) All() map[string]Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]Record, len(t.data.Records))
	for k, v := range t.data.Records {
		out[k] = v
	}
	return out
}

// Reset clears all records. Explicit admin action only.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.Records = make(map[string]Record)
	t.markDirtyLocked()
	logging.Usage("usage records reset")
}

// markDirtyLocked schedules a debounced save. Caller must hold t.mu.
func (t *Tracker) markDirtyLocked() {
	t.dirty = true
	if t.autoSaveTimer != nil {
		t.autoSaveTimer.Stop()
	}
	t.autoSaveTimer = time.AfterFunc(autoSaveDelay, func() {
		if err := t.Save(); err != nil {
			logging.Get(logging.CategoryUsage).Error("tracker: autosave failed: %v", err)
		}
	})
}

// Save writes the records to disk if dirty.
func (t *Tracker) Save() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.dirty {
		return nil
	}

	data, err := json.MarshalIndent(t.data, "", "  ")
	if err != nil {
		return err
	}
	tmp := t.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, t.filePath); err != nil {
		return err
	}
	t.dirty = false
	return nil
}

// Close flushes pending changes and stops the autosave timer.
func (t *Tracker) Close() error {
	t.mu.Lock()
	if t.autoSaveTimer != nil {
		t.autoSaveTimer.Stop()
		t.autoSaveTimer = nil
	}
	t.mu.Unlock()
	return t.Save()
}
