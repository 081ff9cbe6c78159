package state

import (
	"testing"
	"time"

	"github.com/fieldprobe/gaussd/internal/gauss"
)

func snap(mx float64) gauss.Snapshot {
	return gauss.Snapshot{
		Timestamp: time.Now(),
		Name:      "magnet1",
		Mx:        mx,
		My:        2,
		Mz:        3,
		Status:    "ok",
	}
}

func TestHasChanged_FirstSnapshot(t *testing.T) {
	s := NewSnapshotStore()
	if !s.HasChanged(snap(1)) {
		t.Fatal("first snapshot must count as changed")
	}
}

func TestHasChanged_IgnoresTimestamp(t *testing.T) {
	s := NewSnapshotStore()
	s.Update(snap(1))

	later := snap(1)
	later.Timestamp = later.Timestamp.Add(time.Minute)
	if s.HasChanged(later) {
		t.Fatal("timestamp-only difference must not count as changed")
	}
	if !s.HasChanged(snap(1.5)) {
		t.Fatal("value difference must count as changed")
	}
}

func TestHasChanged_OptionalFields(t *testing.T) {
	s := NewSnapshotStore()

	a := snap(1)
	on := true
	a.XEnable = &on
	a.MeasRange = "AUTO"
	s.Update(a)

	b := snap(1)
	onB := true
	b.XEnable = &onB
	b.MeasRange = "AUTO"
	if s.HasChanged(b) {
		t.Fatal("equal pointer values must not count as changed")
	}

	off := false
	b.XEnable = &off
	if !s.HasChanged(b) {
		t.Fatal("flipped enable flag must count as changed")
	}

	c := snap(1)
	c.MeasRange = "AUTO"
	if !s.HasChanged(c) {
		t.Fatal("dropped enable flag must count as changed")
	}
}

func TestGetLast_ClearResets(t *testing.T) {
	s := NewSnapshotStore()
	if _, _, ok := s.GetLast(); ok {
		t.Fatal("empty store must report no value")
	}

	s.Update(snap(1))
	last, sentAt, ok := s.GetLast()
	if !ok || last.Mx != 1 || sentAt.IsZero() {
		t.Fatalf("GetLast() = %v, %v, %v", last, sentAt, ok)
	}

	s.Clear()
	if _, _, ok := s.GetLast(); ok {
		t.Fatal("cleared store must report no value")
	}
}
