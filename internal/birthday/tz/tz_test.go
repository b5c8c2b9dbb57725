package tz

import (
	"testing"
	"time"
)

func TestValidateZone(t *testing.T) {
	if !ValidateZone("America/New_York") {
		t.Error("expected America/New_York to validate")
	}
	if ValidateZone("Not/AZone") {
		t.Error("expected Not/AZone to be invalid")
	}
}

func TestLocalToUTCNewYork(t *testing.T) {
	got, err := LocalToUTC(2026, time.March, 15, 9, 0, "America/New_York")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2026, time.March, 15, 13, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestLocalToUTCInvalidZone(t *testing.T) {
	_, err := LocalToUTC(2026, time.March, 15, 9, 0, "Not/AZone")
	if err == nil {
		t.Fatal("expected InvalidZoneError")
	}
	var zoneErr *InvalidZoneError
	if !asInvalidZone(err, &zoneErr) {
		t.Fatalf("expected *InvalidZoneError, got %T", err)
	}
}

func asInvalidZone(err error, target **InvalidZoneError) bool {
	if e, ok := err.(*InvalidZoneError); ok {
		*target = e
		return true
	}
	return false
}

func TestNextOccurrenceLeapDay(t *testing.T) {
	// dob=2000-02-29, reference 2025-01-01 (non-leap year) -> 2025-02-28.
	ref := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	got, err := NextOccurrence(time.February, 29, ref, "UTC")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2025, time.February, 28, 9, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}

	// next step after 2025-02-28 reference -> 2026-02-28 (2026 is not leap).
	got2, err := NextOccurrence(time.February, 29, want, "UTC")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want2 := time.Date(2026, time.February, 28, 9, 0, 0, 0, time.UTC)
	if !got2.Equal(want2) {
		t.Errorf("got %v, want %v", got2, want2)
	}
}

func TestNextOccurrenceEventualLeapYearMatch(t *testing.T) {
	ref := time.Date(2027, time.March, 1, 0, 0, 0, 0, time.UTC)
	got, err := NextOccurrence(time.February, 29, ref, "UTC")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2028, time.February, 29, 9, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestNextOccurrenceStrictlyAfterReference(t *testing.T) {
	// reference date is exactly the birthday; next occurrence must be next year.
	ref := time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC)
	got, err := NextOccurrence(time.March, 15, ref, "UTC")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2027, time.March, 15, 9, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestNextOccurrenceSameYear(t *testing.T) {
	ref := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	got, err := NextOccurrence(time.March, 15, ref, "UTC")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2026, time.March, 15, 9, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}
