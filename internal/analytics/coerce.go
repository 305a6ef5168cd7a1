// Package analytics computes the lead dashboards. Every function is pure over
// rows already loaded and filtered by the caller.
package analytics

import (
	"log"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var numericBudget = regexp.MustCompile(`^[+-]?\d*\.?\d*$`)

// CoerceBudget reads a free-text budget as a non-negative number. Anything that
// is not a plain decimal reads as 0.
func CoerceBudget(raw string) float64 {
	s := strings.TrimSpace(raw)
	if s == "" || !numericBudget.MatchString(s) {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return round(float64(part)*100/float64(total), 1)
}

// guard runs fn and swallows a panic so one bad row cannot abort a report.
func guard(report string, rowID int, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[analytics][%s] skipped row %d: %v", report, rowID, r)
		}
	}()
	fn()
}
