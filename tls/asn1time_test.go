package tls

import (
	"testing"
	"time"
)

func TestParseASN1TimeUTC(t *testing.T) {
	got, err := ParseASN1Time("20250115123045Z")
	if err != nil {
		t.Fatalf("ParseASN1Time: %v", err)
	}
	want := time.Date(2025, 1, 15, 12, 30, 45, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestParseASN1TimeWithOffset(t *testing.T) {
	got, err := ParseASN1Time("20250115123045+0530")
	if err != nil {
		t.Fatalf("ParseASN1Time: %v", err)
	}
	want := time.Date(2025, 1, 15, 12, 30, 45, 0, time.FixedZone("", 5*3600+30*60)).UTC()
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestParseASN1TimeRejectsOffsetMinutesOver59(t *testing.T) {
	if _, err := ParseASN1Time("20250115123045+0560"); err != ErrInvalidASN1Time {
		t.Fatalf("err = %v, want ErrInvalidASN1Time", err)
	}
}

func TestParseASN1TimeRejectsBadMonth(t *testing.T) {
	if _, err := ParseASN1Time("20251315123045Z"); err != ErrInvalidASN1Time {
		t.Fatalf("err = %v, want ErrInvalidASN1Time", err)
	}
}

func TestParseASN1TimeRejectsShortInput(t *testing.T) {
	if _, err := ParseASN1Time("2025Z"); err != ErrInvalidASN1Time {
		t.Fatalf("err = %v, want ErrInvalidASN1Time", err)
	}
}
