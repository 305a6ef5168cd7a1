package authz

import (
	"strings"

	"estatecrm/internal/models"
)

type Capability string

const (
	ViewAllLeads      Capability = "view_all_leads"
	MutateAnyLead     Capability = "mutate_any_lead"
	LeadReports       Capability = "lead_reports"
	ManageUsers       Capability = "manage_users"
	ViewAllSiteVisits Capability = "view_all_site_visits"
)

var allCapabilities = []Capability{ViewAllLeads, MutateAnyLead, LeadReports, ManageUsers, ViewAllSiteVisits}

// roleCapabilities is the whole access table. Superusers hold everything.
var roleCapabilities = map[string][]Capability{
	models.RoleAdmin:   {ViewAllLeads, MutateAnyLead, LeadReports, ManageUsers, ViewAllSiteVisits},
	models.RoleManager: {ViewAllLeads, MutateAnyLead, LeadReports, ViewAllSiteVisits},
	models.RoleAgent:   {ViewAllSiteVisits},
	models.RoleClient:  {ViewAllSiteVisits},
}

// Actor is the authenticated caller as seen by the policy.
type Actor struct {
	UserID      int
	Role        string
	IsSuperuser bool
}

func ActorOf(u *models.User) Actor {
	return Actor{UserID: u.ID, Role: u.Role, IsSuperuser: u.IsSuperuser}
}

func Capabilities(a Actor) []Capability {
	if a.IsSuperuser {
		return allCapabilities
	}
	return roleCapabilities[strings.ToLower(a.Role)]
}

func Can(a Actor, c Capability) bool {
	for _, have := range Capabilities(a) {
		if have == c {
			return true
		}
	}
	return false
}
