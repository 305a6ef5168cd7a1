package analytics

import (
	"time"

	"estatecrm/internal/models"
)

const (
	RangeThisMonth   = "this_month"
	RangeThreeMonths = "3_months"
	RangeSixMonths   = "6_months"
	RangeYear        = "year"

	// commissionRate is the share of revenue reported as sales commission.
	commissionRate = 0.6
)

type RevenuePoint struct {
	Name    string  `json:"name"`
	Revenue float64 `json:"revenue"`
	Sales   float64 `json:"sales"`
}

// RevenueWindow returns where a revenue_overview range starts and whether it is
// bucketed per day. Unknown ranges mean a year of monthly buckets.
func RevenueWindow(timeRange string, now time.Time) (start time.Time, daily bool) {
	switch timeRange {
	case RangeThisMonth:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()), true
	case RangeThreeMonths:
		return addMonthsClamped(now, -3), true
	case RangeSixMonths:
		return addMonthsClamped(now, -6), false
	default:
		return addMonthsClamped(now, -12), false
	}
}

// RevenueOverview sums coerced budgets of converted leads per bucket. Every
// bucket from the range start through today is present, in order.
func RevenueOverview(timeRange string, leads []*models.Lead, now time.Time) []RevenuePoint {
	start, daily := RevenueWindow(timeRange, now)
	loc := now.Location()

	bucketOf := func(t time.Time) time.Time {
		t = t.In(loc)
		if daily {
			return startOfDay(t)
		}
		return firstOfMonth(t)
	}

	sums := map[time.Time]float64{}
	for _, l := range leads {
		if l == nil {
			continue
		}
		guard("revenue", l.ID, func() {
			if l.Status != models.LeadStatusConverted || l.UpdatedAt.Before(start) {
				return
			}
			sums[bucketOf(l.UpdatedAt)] += CoerceBudget(l.Budget)
		})
	}

	layout := "Jan 2006"
	if daily {
		layout = "Jan 02"
	}
	end := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 0, loc)

	var out []RevenuePoint
	for current := start; !current.After(end); {
		period := bucketOf(current)
		revenue := sums[period]
		out = append(out, RevenuePoint{
			Name:    period.Format(layout),
			Revenue: round(revenue, 2),
			Sales:   round(revenue*commissionRate, 2),
		})
		if daily {
			current = current.AddDate(0, 0, 1)
		} else {
			current = firstOfMonth(current).AddDate(0, 1, 0)
		}
	}
	return out
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func firstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// addMonthsClamped moves t by months, clamping the day to the target month's
// length (Mar 31 minus one month is Feb 28/29, not Mar 3).
func addMonthsClamped(t time.Time, months int) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	target := first.AddDate(0, months, 0)
	lastDay := target.AddDate(0, 1, -1).Day()
	day := t.Day()
	if day > lastDay {
		day = lastDay
	}
	return target.AddDate(0, 0, day-1)
}
