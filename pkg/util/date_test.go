package util

import (
	"testing"
	"time"
)

func TestTruncateToDay(t *testing.T) {
	got := TruncateToDay(time.Date(2025, 3, 10, 23, 59, 59, 0, time.UTC))
	want := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("unexpected truncation %v", got)
	}
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2025, 3, 10, 23, 0, 0, 0, time.UTC)
	b := time.Date(2025, 3, 15, 1, 0, 0, 0, time.UTC)
	if got := DaysBetween(a, b); got != 5 {
		t.Fatalf("expected 5 days, got %d", got)
	}
	if got := DaysBetween(b, a); got != -5 {
		t.Fatalf("expected -5 days, got %d", got)
	}
}
