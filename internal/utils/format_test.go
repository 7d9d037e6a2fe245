package utils

import (
	"testing"
	"time"
)

func TestTimeOrDash(t *testing.T) {
	if got := TimeOrDash(time.Time{}, DateTime); got != "—" {
		t.Errorf("zero time: got %q, want —", got)
	}
	ts := time.Date(2026, 10, 17, 12, 30, 0, 0, time.Local)
	if got := TimeOrDash(ts, DateTime); got != "2026-10-17 12:30" {
		t.Errorf("got %q, want 2026-10-17 12:30", got)
	}
	if got := TimeOrDash(ts.UTC(), DateTimeSec); got != "2026-10-17 12:30:00" {
		t.Errorf("UTC input should render in local time, got %q", got)
	}
}

func TestOrDash(t *testing.T) {
	tests := map[string]string{
		"":      "—",
		"   ":   "—",
		"br-ab": "br-ab",
	}
	for in, want := range tests {
		if got := OrDash(in); got != want {
			t.Errorf("OrDash(%q) = %q, want %q", in, got, want)
		}
	}
}
