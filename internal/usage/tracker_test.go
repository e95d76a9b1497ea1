package usage

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestTracker_RecordDispatch(t *testing.T) {
	tr, err := NewTracker(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	if _, ok := tr.Get("robo-developer"); ok {
		t.Fatal("fresh tracker has a record")
	}

	before := time.Now()
	tr.RecordDispatch("robo-developer")
	tr.RecordDispatch("robo-developer")
	tr.RecordDispatch("robo-qa")

	rec, ok := tr.Get("robo-developer")
	if !ok {
		t.Fatal("no record after dispatch")
	}
	if rec.Count != 2 {
		t.Fatalf("count = %d, want 2", rec.Count)
	}
	if rec.LastUsedAt.Before(before) {
		t.Fatalf("LastUsedAt = %v, want >= %v", rec.LastUsedAt, before)
	}

	all := tr.All()
	if len(all) != 2 {
		t.Fatalf("All() has %d entries, want 2", len(all))
	}
}

func TestTracker_PersistsAcrossSessions(t *testing.T) {
	ws := t.TempDir()

	tr, err := NewTracker(ws)
	if err != nil {
		t.Fatal(err)
	}
	tr.RecordDispatch("robo-devops-sre")
	tr.RecordDispatch("robo-devops-sre")
	if err := tr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reloaded, err := NewTracker(ws)
	if err != nil {
		t.Fatal(err)
	}
	defer reloaded.Close()

	rec, ok := reloaded.Get("robo-devops-sre")
	if !ok {
		t.Fatal("record lost across sessions")
	}
	if rec.Count != 2 {
		t.Fatalf("reloaded count = %d, want 2", rec.Count)
	}
}

func TestTracker_Reset(t *testing.T) {
	tr, err := NewTracker(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	tr.RecordDispatch("robo-ux")
	tr.Reset()

	if _, ok := tr.Get("robo-ux"); ok {
		t.Fatal("record survived reset")
	}
	if len(tr.All()) != 0 {
		t.Fatal("records survived reset")
	}
}

func TestTracker_CorruptFileStartsFresh(t *testing.T) {
	ws := t.TempDir()
	dir := filepath.Join(ws, ".roboswarm")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "usage.json"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	tr, err := NewTracker(ws)
	if err != nil {
		t.Fatalf("NewTracker on corrupt file: %v", err)
	}
	defer tr.Close()

	if len(tr.All()) != 0 {
		t.Fatal("corrupt file produced records")
	}
	tr.RecordDispatch("robo-qa")
	if rec, _ := tr.Get("robo-qa"); rec.Count != 1 {
		t.Fatalf("count = %d, want 1", rec.Count)
	}
}

func TestTracker_SaveIsAtomicRename(t *testing.T) {
	ws := t.TempDir()
	tr, err := NewTracker(ws)
	if err != nil {
		t.Fatal(err)
	}
	tr.RecordDispatch("robo-developer")
	if err := tr.Close(); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(ws, ".roboswarm", "usage.json")); err != nil {
		t.Fatalf("usage.json missing after Close: %v", err)
	}
	if _, err := os.Stat(filepath.Join(ws, ".roboswarm", "usage.json.tmp")); !os.IsNotExist(err) {
		t.Fatal("temp file left behind after save")
	}
}
