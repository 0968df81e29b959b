package outputs

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// formatTime renders a Unix timestamp (fractional seconds) as Basestation's
// "HH:MM:SS.mmm" field.
func formatTime(timestamp float64) string {
	sec := int64(timestamp)
	frac := timestamp - math.Floor(timestamp)
	t := time.Unix(sec, 0).UTC()
	return t.Format("15:04:05") + "." + threeDigitMillis(frac)
}

// formatDate renders a Unix timestamp as Basestation's "YYYY/MM/DD" field.
func formatDate(timestamp float64) string {
	t := time.Unix(int64(timestamp), 0).UTC()
	return t.Format("2006/01/02")
}

func threeDigitMillis(frac float64) string {
	ms := int(math.Round(frac * 1000))
	if ms >= 1000 {
		ms = 999
	}
	s := strconv.Itoa(ms)
	for len(s) < 3 {
		s = "0" + s
	}
	return s
}

// csvQuote quotes a CSV field only when it contains a character that would
// otherwise break the column count.
func csvQuote(s string) string {
	if s == "" {
		return ""
	}
	if !strings.ContainsAny(s, "\n\",") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

