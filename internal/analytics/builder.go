package analytics

import (
	"sort"

	"estatecrm/internal/models"
)

type BuilderRow struct {
	PropertyID  int     `json:"property_id"`
	Title       string  `json:"title"`
	Leads       int     `json:"leads"`
	Visits      int     `json:"visits"`
	Conversions int     `json:"conversions"`
	Rate        float64 `json:"rate"`
}

// BuilderPerformance groups leads by property id. Properties without leads are left out.
func BuilderPerformance(properties []*models.Property, leads []*models.Lead) []BuilderRow {
	rows := map[int]*BuilderRow{}
	order := make([]int, 0, len(properties))
	for _, p := range properties {
		if p == nil {
			continue
		}
		if _, dup := rows[p.ID]; dup {
			continue
		}
		rows[p.ID] = &BuilderRow{PropertyID: p.ID, Title: p.Title}
		order = append(order, p.ID)
	}

	for _, l := range leads {
		if l == nil {
			continue
		}
		guard("builder", l.ID, func() {
			if l.PropertyID == nil {
				return
			}
			r, ok := rows[*l.PropertyID]
			if !ok {
				return
			}
			r.Leads++
			switch l.Status {
			case models.LeadStatusSiteVisitDone, models.LeadStatusSiteVisitScheduled:
				r.Visits++
			case models.LeadStatusConverted:
				r.Conversions++
			}
		})
	}

	out := make([]BuilderRow, 0, len(order))
	for _, id := range order {
		r := rows[id]
		if r.Leads == 0 {
			continue
		}
		r.Rate = percent(r.Conversions, r.Leads)
		out = append(out, *r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Conversions > out[j].Conversions })
	return out
}
