package stream

import (
	"testing"
	"time"
)

func TestDeduplicator_SuppressesRepeatsInsideWindow(t *testing.T) {
	d := NewDeduplicator(time.Minute)
	defer d.Stop()

	if !d.Admit("bb", "content", "ctx") {
		t.Fatal("first occurrence suppressed")
	}
	if d.Admit("bb", "content", "ctx") {
		t.Fatal("repeat inside window admitted")
	}

	stats := d.Stats()
	if stats.Admitted != 1 || stats.Suppressed != 1 {
		t.Fatalf("stats = %+v, want 1 admitted / 1 suppressed", stats)
	}
}

func TestDeduplicator_KeyIsTypeContentContext(t *testing.T) {
	d := NewDeduplicator(time.Minute)
	defer d.Stop()

	d.Admit("bb", "content", "ctx")
	if !d.Admit("tp", "content", "ctx") {
		t.Fatal("different type suppressed")
	}
	if !d.Admit("bb", "other", "ctx") {
		t.Fatal("different content suppressed")
	}
	if !d.Admit("bb", "content", "other") {
		t.Fatal("different context suppressed")
	}
}

func TestDeduplicator_ReadmitsAfterWindow(t *testing.T) {
	d := NewDeduplicator(30 * time.Millisecond)
	defer d.Stop()

	if !d.Admit("bb", "content", "ctx") {
		t.Fatal("first occurrence suppressed")
	}
	time.Sleep(50 * time.Millisecond)
	if !d.Admit("bb", "content", "ctx") {
		t.Fatal("repeat after window suppressed")
	}
}

func TestDeduplicator_SweepPrunesExpiredEntries(t *testing.T) {
	d := NewDeduplicator(20 * time.Millisecond)
	defer d.Stop()

	d.Admit("bb", "content", "ctx")
	d.Admit("tp", "content", "ctx")

	deadline := time.Now().Add(time.Second)
	for d.Stats().LiveEntries > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if live := d.Stats().LiveEntries; live != 0 {
		t.Fatalf("LiveEntries = %d after sweep, want 0", live)
	}
}

func TestDeduplicator_StopIsIdempotent(t *testing.T) {
	d := NewDeduplicator(time.Minute)
	d.Stop()
	d.Stop()
}
