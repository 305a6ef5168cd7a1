// Package assignment detects assignee changes on lead and site-visit writes and
// notifies the new assignee once the write has committed.
package assignment

import (
	"estatecrm/internal/models"
	"estatecrm/internal/repositories"
)

// Transition returns the agent to notify when the assignee moves from previous
// to next. Unassigning and no-op writes notify nobody.
func Transition(previous, next *int) (agentID int, changed bool) {
	if next == nil {
		return 0, false
	}
	if previous != nil && *previous == *next {
		return 0, false
	}
	return *next, true
}

// Event is one pending notification with a snapshot of the written entity.
type Event struct {
	AgentID int
	Lead    *models.Lead
	Visit   *models.SiteVisit
}

// Recorder collects events raised by write hooks during one write. It is not
// shared between requests.
type Recorder struct {
	events []Event
}

func (r *Recorder) LeadHook() repositories.LeadWriteHook {
	return func(previous, next *models.Lead) {
		var before *int
		if previous != nil {
			before = previous.AssignedTo
		}
		if agentID, ok := Transition(before, next.AssignedTo); ok {
			snap := *next
			r.events = append(r.events, Event{AgentID: agentID, Lead: &snap})
		}
	}
}

func (r *Recorder) SiteVisitHook() repositories.SiteVisitWriteHook {
	return func(previous, next *models.SiteVisit) {
		var before *int
		if previous != nil {
			before = previous.AgentID
		}
		if agentID, ok := Transition(before, next.AgentID); ok {
			snap := *next
			r.events = append(r.events, Event{AgentID: agentID, Visit: &snap})
		}
	}
}

// Events drains the recorder.
func (r *Recorder) Events() []Event {
	out := r.events
	r.events = nil
	return out
}
