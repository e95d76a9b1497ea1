package signal

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncer_CoalescesRapidSchedules(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	defer d.Close()

	var fired atomic.Int32
	for i := 0; i < 10; i++ {
		d.Schedule("a.go", func() { fired.Add(1) })
		time.Sleep(2 * time.Millisecond)
	}

	time.Sleep(80 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Fatalf("fired %d times, want 1 (coalesced)", got)
	}
	if d.Pending() != 0 {
		t.Fatalf("Pending = %d after fire, want 0", d.Pending())
	}
}

func TestDebouncer_KeysAreIndependent(t *testing.T) {
	d := NewDebouncer(10 * time.Millisecond)
	defer d.Close()

	var a, b atomic.Int32
	d.Schedule("a.go", func() { a.Add(1) })
	d.Schedule("b.go", func() { b.Add(1) })

	if d.Pending() != 2 {
		t.Fatalf("Pending = %d, want 2", d.Pending())
	}
	time.Sleep(50 * time.Millisecond)
	if a.Load() != 1 || b.Load() != 1 {
		t.Fatalf("fired a=%d b=%d, want 1/1", a.Load(), b.Load())
	}
}

func TestDebouncer_Cancel(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	defer d.Close()

	var fired atomic.Int32
	d.Schedule("a.go", func() { fired.Add(1) })
	if !d.Cancel("a.go") {
		t.Fatal("Cancel = false for pending task")
	}
	if d.Cancel("a.go") {
		t.Fatal("Cancel = true for already-cancelled task")
	}

	time.Sleep(60 * time.Millisecond)
	if fired.Load() != 0 {
		t.Fatal("cancelled task fired")
	}
}

func TestDebouncer_CloseDropsPendingAndRejectsNew(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)

	var fired atomic.Int32
	d.Schedule("a.go", func() { fired.Add(1) })
	d.Close()

	d.Schedule("b.go", func() { fired.Add(1) })
	if d.Pending() != 0 {
		t.Fatalf("Pending = %d after Close, want 0", d.Pending())
	}

	time.Sleep(60 * time.Millisecond)
	if fired.Load() != 0 {
		t.Fatalf("fired %d tasks after Close, want 0", fired.Load())
	}
}
