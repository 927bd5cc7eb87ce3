package orders

import (
	"regexp"
	"testing"
	"time"
)

func TestFormatNumberWidensPerAttempt(t *testing.T) {
	now := time.Date(2026, 7, 9, 23, 30, 0, 0, time.UTC)
	id := "01J2Z3NDEKTSV4RRFFQ69G5FAV"

	if got := FormatNumber(now, id, 0); got != "ORD-20260709-9G5FAV" {
		t.Fatalf("unexpected number %s", got)
	}
	if got := FormatNumber(now, id, 1); got != "ORD-20260709-Q69G5FAV" {
		t.Fatalf("unexpected widened number %s", got)
	}
	if got := FormatNumber(now, "AB", 2); got != "ORD-20260709-AB" {
		t.Fatalf("suffix must not exceed id length, got %s", got)
	}
}

func TestDefaultNumbersMatchFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^ORD-\d{8}-[0-9A-Z]{6}$`)
	got := FormatNumber(time.Now(), defaultIDSource(), 0)
	if !pattern.MatchString(got) {
		t.Fatalf("number %s does not match format", got)
	}
	if !IsOrderNumber(got) || IsOrderNumber("DEV-ORD-1") {
		t.Fatalf("unexpected IsOrderNumber result")
	}
}
