package models

import "time"

type SiteVisitStatus string

const (
	VisitScheduled SiteVisitStatus = "scheduled"
	VisitConfirmed SiteVisitStatus = "confirmed"
	VisitCompleted SiteVisitStatus = "completed"
	VisitCancelled SiteVisitStatus = "cancelled"
	VisitNoShow    SiteVisitStatus = "no_show"
)

func (s SiteVisitStatus) Valid() bool {
	switch s {
	case VisitScheduled, VisitConfirmed, VisitCompleted, VisitCancelled, VisitNoShow:
		return true
	}
	return false
}

// Pending visits still need someone to show up.
func (s SiteVisitStatus) Pending() bool {
	return s == VisitScheduled || s == VisitConfirmed
}

// SiteVisit links a property, an optional agent and exactly one client: either
// ClientUserID or the manual name/phone pair.
type SiteVisit struct {
	ID                int             `json:"id"`
	PropertyID        int             `json:"property"`
	AgentID           *int            `json:"agent"`
	ClientUserID      *int            `json:"client_user"`
	ClientNameManual  *string         `json:"client_name_manual"`
	ClientPhoneManual *string         `json:"client_phone_manual"`
	Date              Date            `json:"date"`
	Time              string          `json:"time"` // stored as text, e.g. "10:30 AM"
	Status            SiteVisitStatus `json:"status"`
	Feedback          *string         `json:"feedback"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`

	PropertyDetails *PropertyBrief `json:"property_details"`
	AgentDetails    *UserBrief     `json:"agent_details"`
	ClientDetails   *UserBrief     `json:"client_details"`
}

// ClientDisplayName prefers the linked account over the manual fields.
func (v *SiteVisit) ClientDisplayName() string {
	if v.ClientDetails != nil {
		return v.ClientDetails.FullName
	}
	if v.ClientNameManual != nil {
		return *v.ClientNameManual
	}
	return ""
}

func (v *SiteVisit) ClientPhone() string {
	if v.ClientDetails != nil && v.ClientDetails.PhoneNumber != "" {
		return v.ClientDetails.PhoneNumber
	}
	if v.ClientPhoneManual != nil {
		return *v.ClientPhoneManual
	}
	return ""
}

type SiteVisitFilter struct {
	// AgentScope is set when the access policy restricts visits to one agent.
	AgentScope *int

	Status   string
	AgentID  *int
	DateFrom *Date
	Statuses []SiteVisitStatus

	// Ascending orders by date, time instead of the default -date, -time.
	Ascending bool
	Limit     int
	Offset    int
}

// SiteVisitInput is the write payload. ClientName/ClientPhone are only read on create.
type SiteVisitInput struct {
	PropertyID  *int             `json:"property"`
	AgentID     OptionalRef      `json:"agent"`
	ClientName  *string          `json:"client_name"`
	ClientPhone *string          `json:"client_phone"`
	Date        *Date            `json:"date"`
	Time        *string          `json:"time"`
	Status      *SiteVisitStatus `json:"status"`
	Feedback    *string          `json:"feedback"`
}

type SiteVisitSummary struct {
	TotalVisits    int `json:"total_visits"`
	PendingVisits  int `json:"pending_visits"`
	UpcomingVisits int `json:"upcoming_visits"`
}
