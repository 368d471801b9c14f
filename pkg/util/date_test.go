package util

import (
	"testing"
	"time"
)

func TestAgeMinutes(t *testing.T) {
	now := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	if got := AgeMinutes(time.Time{}, now); got != 0 {
		t.Fatalf("zero time: got %v", got)
	}
	if got := AgeMinutes(now.Add(-90*time.Second), now); got != 1.5 {
		t.Fatalf("got %v, want 1.5", got)
	}
	if got := AgeMinutes(now.Add(-61*time.Second), now); got != 1.02 {
		t.Fatalf("got %v, want 1.02", got)
	}
	if got := AgeMinutes(now.Add(time.Minute), now); got != 0 {
		t.Fatalf("future: got %v", got)
	}
}

func TestSessionWindow(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	from, to := SessionWindow(now, 3)
	if !to.Equal(now) || !from.Equal(time.Date(2024, 2, 26, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected window %v..%v", from, to)
	}
}
