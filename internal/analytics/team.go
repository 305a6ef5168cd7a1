package analytics

import (
	"math"
	"sort"
	"strings"

	"estatecrm/internal/models"
)

type AgentRow struct {
	AgentID        int     `json:"agent_id"`
	Agent          string  `json:"agent"`
	Avatar         *string `json:"avatar"`
	Deals          int     `json:"deals"`
	ConversionRate float64 `json:"conversion_rate"`
	Revenue        int64   `json:"revenue"`
	TotalLeads     int     `json:"total_leads"`
}

// TeamPerformance scores every user whose role is "agent" in any letter case.
// Revenue counts only converted leads. Rows are sorted by revenue, highest first.
func TeamPerformance(users []*models.User, leads []*models.Lead) []AgentRow {
	type tally struct {
		total, converted int
		revenue          float64
	}
	byAgent := map[int]*tally{}
	for _, u := range users {
		if u != nil && strings.EqualFold(u.Role, models.RoleAgent) {
			byAgent[u.ID] = &tally{}
		}
	}

	for _, l := range leads {
		if l == nil {
			continue
		}
		guard("team", l.ID, func() {
			if l.AssignedTo == nil {
				return
			}
			t, ok := byAgent[*l.AssignedTo]
			if !ok {
				return
			}
			t.total++
			if l.Status == models.LeadStatusConverted {
				t.converted++
				t.revenue += CoerceBudget(l.Budget)
			}
		})
	}

	out := make([]AgentRow, 0, len(byAgent))
	for _, u := range users {
		if u == nil {
			continue
		}
		t, ok := byAgent[u.ID]
		if !ok {
			continue
		}
		guard("team", u.ID, func() {
			row := AgentRow{
				AgentID:        u.ID,
				Agent:          u.FullName(),
				Deals:          t.converted,
				ConversionRate: percent(t.converted, t.total),
				Revenue:        int64(math.Round(t.revenue)),
				TotalLeads:     t.total,
			}
			if u.ProfileImage != "" {
				img := u.ProfileImage
				row.Avatar = &img
			}
			out = append(out, row)
		})
		delete(byAgent, u.ID)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Revenue > out[j].Revenue })
	return out
}
