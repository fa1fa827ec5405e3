package record

import "testing"

func TestNewEventDefaults(t *testing.T) {
	ev := NewEvent()
	if ev.ID == "" {
		t.Error("new event must have an ID")
	}
	if ev.Type != "event" {
		t.Errorf("expected type %q, got %q", "event", ev.Type)
	}
	if ev.Impact != nil || ev.Horizon != nil {
		t.Error("impact and horizon must be nil at creation")
	}
	if ev.LastUpdated.IsZero() {
		t.Error("last_updated must be set")
	}
}

func TestPrimarySector(t *testing.T) {
	ev := NewEvent()
	if got := ev.PrimarySector(); got != UnknownKey {
		t.Errorf("expected %q for no sectors, got %q", UnknownKey, got)
	}

	ev.Sectors = []string{"Energy", "Maritime"}
	if got := ev.PrimarySector(); got != "Energy" {
		t.Errorf("expected first sector, got %q", got)
	}

	ev.Sectors = []string{""}
	if got := ev.PrimarySector(); got != UnknownKey {
		t.Errorf("expected %q for empty sector, got %q", UnknownKey, got)
	}
}

func TestClampScore(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{-5, 0},
		{0, 0},
		{55, 55},
		{100, 100},
		{140, 100},
	}
	for _, tt := range tests {
		if got := ClampScore(tt.in); got != tt.want {
			t.Errorf("ClampScore(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestClamp01(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{-0.1, 0},
		{0, 0},
		{0.42, 0.42},
		{1, 1},
		{1.7, 1},
	}
	for _, tt := range tests {
		if got := Clamp01(tt.in); got != tt.want {
			t.Errorf("Clamp01(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 300); got != "short" {
		t.Errorf("short string must pass through, got %q", got)
	}

	long := make([]rune, 400)
	for i := range long {
		long[i] = 'a'
	}
	got := Truncate(string(long), MaxSummaryLen)
	if len([]rune(got)) != MaxSummaryLen {
		t.Errorf("expected %d runes, got %d", MaxSummaryLen, len([]rune(got)))
	}
	if got[len(got)-3:] != "..." {
		t.Error("truncated string must end with ellipsis")
	}
}
