package authz

import "estatecrm/internal/models"

// LeadScope returns the assigned_to restriction for the actor's lead collection,
// or nil when every lead is visible.
func LeadScope(a Actor) *int {
	if Can(a, ViewAllLeads) {
		return nil
	}
	id := a.UserID
	return &id
}

func CanViewLead(a Actor, l *models.Lead) bool {
	if Can(a, ViewAllLeads) {
		return true
	}
	return l.AssignedTo != nil && *l.AssignedTo == a.UserID
}

func CanMutateLead(a Actor, l *models.Lead) bool {
	if Can(a, MutateAnyLead) {
		return true
	}
	return l.AssignedTo != nil && *l.AssignedTo == a.UserID
}

// CanReassignLead reports whether the actor may point a lead at someone else.
// Agents may only keep a lead on themselves or release it.
func CanReassignLead(a Actor, agentID *int) bool {
	if Can(a, MutateAnyLead) {
		return true
	}
	return agentID == nil || *agentID == a.UserID
}

// SiteVisitScope mirrors LeadScope for the visit collection, keyed on the agent.
func SiteVisitScope(a Actor) *int {
	if Can(a, ViewAllSiteVisits) {
		return nil
	}
	id := a.UserID
	return &id
}
