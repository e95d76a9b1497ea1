package bus

import (
	"testing"
	"time"

	"roboswarm/internal/signal"
)

func TestBus_PublishReachesEverySubscriber(t *testing.T) {
	b := New(4)
	defer b.Close()

	a := b.Subscribe()
	c := b.Subscribe()

	rec := Record{
		ID:   "r1",
		Type: RecordTypeSignalDetected,
		Data: RecordData{
			Signals:     []signal.Signal{{Type: "bb", Priority: 9}},
			SignalCount: 1,
		},
	}
	b.Publish(rec)

	for _, ch := range []<-chan Record{a, c} {
		select {
		case got := <-ch:
			if got.ID != "r1" || got.Data.SignalCount != 1 {
				t.Fatalf("received %+v", got)
			}
		case <-time.After(time.Second):
			t.Fatal("subscriber never received the record")
		}
	}
}

func TestBus_SlowSubscriberDropsOldest(t *testing.T) {
	b := New(2)
	defer b.Close()

	ch := b.Subscribe()
	b.Publish(Record{ID: "r1"})
	b.Publish(Record{ID: "r2"})
	b.Publish(Record{ID: "r3"}) // buffer full: r1 is dropped

	if b.Dropped() != 1 {
		t.Fatalf("Dropped = %d, want 1", b.Dropped())
	}
	if got := <-ch; got.ID != "r2" {
		t.Fatalf("first received = %s, want r2 (r1 dropped)", got.ID)
	}
	if got := <-ch; got.ID != "r3" {
		t.Fatalf("second received = %s, want r3", got.ID)
	}
}

func TestBus_CloseClosesChannels(t *testing.T) {
	b := New(1)
	ch := b.Subscribe()
	b.Close()

	if _, open := <-ch; open {
		t.Fatal("subscriber channel still open after Close")
	}

	// Publish after Close is a no-op, Subscribe yields a closed channel.
	b.Publish(Record{ID: "r1"})
	if _, open := <-b.Subscribe(); open {
		t.Fatal("post-Close Subscribe returned an open channel")
	}
}
