package outputs

import "testing"

func TestFormatTime(t *testing.T) {
	// 2024-01-15T12:34:56.500Z
	ts := float64(1705322096) + 0.5
	got := formatTime(ts)
	if got != "12:34:56.500" {
		t.Fatalf("formatTime(%v) = %q, want 12:34:56.500", ts, got)
	}
}

func TestFormatDate(t *testing.T) {
	ts := float64(1705322096)
	got := formatDate(ts)
	if got != "2024/01/15" {
		t.Fatalf("formatDate(%v) = %q, want 2024/01/15", ts, got)
	}
}

func TestCSVQuote(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", ""},
		{"UAL123", "UAL123"},
		{"has,comma", `"has,comma"`},
		{`has"quote`, `"has""quote"`},
		{"has\nnewline", "\"has\nnewline\""},
	}
	for _, c := range cases {
		if got := csvQuote(c.in); got != c.want {
			t.Errorf("csvQuote(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestRoundTo(t *testing.T) {
	if got := roundTo(51.50004, 4); got != "51.5" {
		t.Fatalf("roundTo(51.50004,4) = %q, want 51.5", got)
	}
	if got := roundTo(3.14159, 0); got != "3" {
		t.Fatalf("roundTo(3.14159,0) = %q, want 3", got)
	}
}
