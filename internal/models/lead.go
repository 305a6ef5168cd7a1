package models

import (
	"time"

	"github.com/lib/pq"
)

const (
	LeadStatusNew                = "New"
	LeadStatusQualified          = "Qualified"
	LeadStatusSiteVisitScheduled = "Site Visit Scheduled"
	LeadStatusSiteVisitDone      = "Site Visit Done"
	LeadStatusConverted          = "Converted"

	DefaultLeadSource   = "Website"
	DefaultLeadPriority = "Medium"
)

// Lead is a sales prospect. Budget is free text and is only ever read as a number
// through analytics.CoerceBudget.
type Lead struct {
	ID           int            `json:"id"`
	Name         string         `json:"name" validate:"required,max=255"`
	Email        string         `json:"email" validate:"required,email,max=254"`
	Phone        string         `json:"phone" validate:"required,max=20"`
	Company      string         `json:"company" validate:"max=255"`
	Position     string         `json:"position" validate:"max=255"`
	Status       string         `json:"status" validate:"required,max=50"`
	Source       string         `json:"source" validate:"required,max=50"`
	Interest     string         `json:"interest" validate:"max=255"`
	Priority     string         `json:"priority" validate:"required,oneof=Low Medium High Urgent"`
	Budget       string         `json:"budget" validate:"max=100"`
	Timeline     string         `json:"timeline" validate:"max=100"`
	Requirements string         `json:"requirements"`
	Notes        string         `json:"notes"`
	Tags         pq.StringArray `json:"tags" validate:"dive,max=50"`
	PropertyID   *int           `json:"property"`
	AssignedTo   *int           `json:"assigned_to"`
	CreatedBy    *int           `json:"created_by"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	LastActivity *time.Time     `json:"last_activity"`

	AssignedToDetail *UserBrief     `json:"assigned_to_detail"`
	CreatedByDetail  *UserBrief     `json:"created_by_detail"`
	PropertyDetail   *PropertyBrief `json:"property_detail,omitempty"`
}

// LeadFilter narrows a lead listing. Zero values mean "no filter".
type LeadFilter struct {
	// Scope is set by the access policy; when non-nil only leads assigned to it are visible.
	Scope *int

	Status     string
	Source     string
	Priority   string
	AssignedTo *int
	CreatedBy  *int
	PropertyID *int
	Search     string
	Ordering   string

	CreatedFrom *time.Time
	UpdatedFrom *time.Time

	Limit  int
	Offset int
}

// LeadInput is the write payload for create, PUT and PATCH. Absent fields are nil.
type LeadInput struct {
	Name         *string     `json:"name"`
	Email        *string     `json:"email"`
	Phone        *string     `json:"phone"`
	Company      *string     `json:"company"`
	Position     *string     `json:"position"`
	Status       *string     `json:"status"`
	Source       *string     `json:"source"`
	Interest     *string     `json:"interest"`
	Priority     *string     `json:"priority"`
	Budget       *string     `json:"budget"`
	Timeline     *string     `json:"timeline"`
	Requirements *string     `json:"requirements"`
	Notes        *string     `json:"notes"`
	Tags         *[]string   `json:"tags"`
	PropertyID   OptionalRef `json:"property"`
	AssignedTo   OptionalRef `json:"assigned_to"`
}

// Apply copies every present field of in onto l.
func (in *LeadInput) Apply(l *Lead) {
	setString(&l.Name, in.Name)
	setString(&l.Email, in.Email)
	setString(&l.Phone, in.Phone)
	setString(&l.Company, in.Company)
	setString(&l.Position, in.Position)
	setString(&l.Status, in.Status)
	setString(&l.Source, in.Source)
	setString(&l.Interest, in.Interest)
	setString(&l.Priority, in.Priority)
	setString(&l.Budget, in.Budget)
	setString(&l.Timeline, in.Timeline)
	setString(&l.Requirements, in.Requirements)
	setString(&l.Notes, in.Notes)
	if in.Tags != nil {
		l.Tags = pq.StringArray(*in.Tags)
	}
	if in.PropertyID.Set {
		l.PropertyID = in.PropertyID.Value
	}
	if in.AssignedTo.Set {
		l.AssignedTo = in.AssignedTo.Value
	}
}

// ApplyDefaults fills the values a new lead gets when the caller leaves them empty.
func (l *Lead) ApplyDefaults() {
	if l.Status == "" {
		l.Status = LeadStatusNew
	}
	if l.Source == "" {
		l.Source = DefaultLeadSource
	}
	if l.Priority == "" {
		l.Priority = DefaultLeadPriority
	}
	if l.Tags == nil {
		l.Tags = pq.StringArray{}
	}
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
