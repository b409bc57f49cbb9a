package repository

import (
	"strings"
	"testing"
	"time"
)

func TestFormatEstimateNumber(t *testing.T) {
	day := time.Date(2026, 9, 1, 14, 30, 0, 0, time.UTC)

	cases := []struct {
		seq  int
		want string
	}{
		{1, "EST20260901-0001"},
		{42, "EST20260901-0042"},
		{9999, "EST20260901-9999"},
		{10000, "EST20260901-10000"}, // padding widens past four digits
	}
	for _, c := range cases {
		if got := formatEstimateNumber(day, c.seq); got != c.want {
			t.Errorf("formatEstimateNumber(seq=%d) = %q, want %q", c.seq, got, c.want)
		}
	}
}

func TestFormatEstimateNumber_DateScoped(t *testing.T) {
	a := formatEstimateNumber(time.Date(2026, 9, 1, 23, 59, 59, 0, time.UTC), 7)
	b := formatEstimateNumber(time.Date(2026, 9, 2, 0, 0, 1, 0, time.UTC), 7)
	if a == b {
		t.Fatalf("numbers on different days collided: %q", a)
	}
	if !strings.HasPrefix(a, "EST20260901-") || !strings.HasPrefix(b, "EST20260902-") {
		t.Fatalf("unexpected prefixes: %q, %q", a, b)
	}
}
