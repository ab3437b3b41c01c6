package core

import (
	"fmt"
	"strings"
	"time"
)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// FormatPercentage renders a percentage the way reports and exports show it: "NN.NN%".
func FormatPercentage(pct float64) string {
	return fmt.Sprintf("%.2f%%", pct)
}

// DateOf returns the calendar date of `t` (in t's location) as midnight UTC,
// the form date-only columns like date_of_quiz are stored in.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
