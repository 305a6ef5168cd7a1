package analytics

import (
	"sort"
	"time"

	"estatecrm/internal/models"
)

const (
	RangeWeek  = "week"
	RangeMonth = "month"

	recentLeadsLimit = 5
)

type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

type SourceCount struct {
	Source string `json:"source"`
	Count  int    `json:"count"`
}

type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type Dashboard struct {
	TotalLeads     int     `json:"total_leads"`
	ConvertedLeads int     `json:"converted_leads"`
	NewLeads       int     `json:"new_leads"`
	QualifiedLeads int     `json:"qualified_leads"`
	ConversionRate float64 `json:"conversion_rate"`

	CurrentMonthTotalLeads     int `json:"current_month_total_leads"`
	CurrentMonthConvertedLeads int `json:"current_month_converted_leads"`
	CurrentMonthNewLeads       int `json:"current_month_new_leads"`
	CurrentMonthQualifiedLeads int `json:"current_month_qualified_leads"`

	PreviousMonthTotalLeads     int `json:"previous_month_total_leads"`
	PreviousMonthConvertedLeads int `json:"previous_month_converted_leads"`
	PreviousMonthNewLeads       int `json:"previous_month_new_leads"`
	PreviousMonthQualifiedLeads int `json:"previous_month_qualified_leads"`

	StatusDistribution []StatusCount  `json:"status_distribution"`
	SourceDistribution []SourceCount  `json:"source_distribution"`
	RecentLeads        []*models.Lead `json:"recent_leads"`
	DailyLeadsAdded    []DailyCount   `json:"daily_leads_added"`
}

// SeriesDays is the length of the daily series for a dashboard time_range.
func SeriesDays(timeRange string) int {
	switch timeRange {
	case RangeYear:
		return 365
	case RangeMonth:
		return 30
	default:
		return 7
	}
}

type statusCounter struct {
	total, converted, new, qualified int
}

func (c *statusCounter) add(status string) {
	c.total++
	switch status {
	case models.LeadStatusConverted:
		c.converted++
	case models.LeadStatusNew:
		c.new++
	case models.LeadStatusQualified:
		c.qualified++
	}
}

// DashboardStats summarises leads, which must already be limited to what the caller may see.
func DashboardStats(leads []*models.Lead, timeRange string, now time.Time) Dashboard {
	loc := now.Location()
	monthStart := firstOfMonth(now)
	prevMonthStart := monthStart.AddDate(0, -1, 0)

	days := SeriesDays(timeRange)
	today := startOfDay(now)
	seriesStart := today.AddDate(0, 0, -(days - 1))

	var overall, current, previous statusCounter
	statuses := map[string]int{}
	sources := map[string]int{}
	perDay := map[string]int{}

	for _, l := range leads {
		if l == nil {
			continue
		}
		guard("dashboard", l.ID, func() {
			overall.add(l.Status)
			statuses[l.Status]++
			sources[l.Source]++

			created := l.CreatedAt.In(loc)
			switch {
			case !created.Before(monthStart):
				current.add(l.Status)
			case !created.Before(prevMonthStart):
				previous.add(l.Status)
			}
			if day := startOfDay(created); !day.Before(seriesStart) {
				perDay[day.Format(models.DateLayout)]++
			}
		})
	}

	d := Dashboard{
		TotalLeads:     overall.total,
		ConvertedLeads: overall.converted,
		NewLeads:       overall.new,
		QualifiedLeads: overall.qualified,
		ConversionRate: percent(overall.converted, overall.total),

		CurrentMonthTotalLeads:     current.total,
		CurrentMonthConvertedLeads: current.converted,
		CurrentMonthNewLeads:       current.new,
		CurrentMonthQualifiedLeads: current.qualified,

		PreviousMonthTotalLeads:     previous.total,
		PreviousMonthConvertedLeads: previous.converted,
		PreviousMonthNewLeads:       previous.new,
		PreviousMonthQualifiedLeads: previous.qualified,

		StatusDistribution: make([]StatusCount, 0, len(statuses)),
		SourceDistribution: make([]SourceCount, 0, len(sources)),
		DailyLeadsAdded:    make([]DailyCount, 0, days),
	}

	for _, k := range sortedKeys(statuses) {
		d.StatusDistribution = append(d.StatusDistribution, StatusCount{Status: k, Count: statuses[k]})
	}
	for _, k := range sortedKeys(sources) {
		d.SourceDistribution = append(d.SourceDistribution, SourceCount{Source: k, Count: sources[k]})
	}
	for i := 0; i < days; i++ {
		key := seriesStart.AddDate(0, 0, i).Format(models.DateLayout)
		d.DailyLeadsAdded = append(d.DailyLeadsAdded, DailyCount{Date: key, Count: perDay[key]})
	}
	d.RecentLeads = recentLeads(leads, recentLeadsLimit)
	return d
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func recentLeads(leads []*models.Lead, n int) []*models.Lead {
	sorted := make([]*models.Lead, 0, len(leads))
	for _, l := range leads {
		if l != nil {
			sorted = append(sorted, l)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CreatedAt.After(sorted[j].CreatedAt) })
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
