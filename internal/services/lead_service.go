package services

import (
	"context"
	"errors"
	"log"
	"strings"

	"estatecrm/internal/assignment"
	"estatecrm/internal/authz"
	"estatecrm/internal/models"
	"estatecrm/internal/repositories"
)

// AssignmentNotifier delivers the events a committed write produced.
type AssignmentNotifier interface {
	Flush(ctx context.Context, events []assignment.Event)
}

type nopNotifier struct{}

func (nopNotifier) Flush(context.Context, []assignment.Event) {}

type LeadService interface {
	List(ctx context.Context, actor authz.Actor, f models.LeadFilter) ([]*models.Lead, int, error)
	Get(ctx context.Context, actor authz.Actor, id int) (*models.Lead, error)
	Create(ctx context.Context, actor authz.Actor, in models.LeadInput) (*models.Lead, error)
	// Update applies in to the lead. With partial false it behaves like PUT and
	// requires name, email and phone to be present.
	Update(ctx context.Context, actor authz.Actor, id int, in models.LeadInput, partial bool) (*models.Lead, error)
	Assign(ctx context.Context, actor authz.Actor, id int, agentID *int) (*models.Lead, error)
	Delete(ctx context.Context, actor authz.Actor, id int) error
}

type leadService struct {
	repo     repositories.LeadRepository
	users    repositories.UserRepository
	notifier AssignmentNotifier
}

func NewLeadService(repo repositories.LeadRepository, users repositories.UserRepository, notifier AssignmentNotifier) LeadService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &leadService{repo: repo, users: users, notifier: notifier}
}

func (s *leadService) List(ctx context.Context, actor authz.Actor, f models.LeadFilter) ([]*models.Lead, int, error) {
	f.Scope = authz.LeadScope(actor)
	total, err := s.repo.Count(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	leads, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	return leads, total, nil
}

func (s *leadService) Get(ctx context.Context, actor authz.Actor, id int) (*models.Lead, error) {
	return s.load(ctx, actor, id, authz.CanViewLead)
}

// load fetches a lead the actor may see. Actors scoped to their own leads get
// ErrForbidden for both missing and foreign leads.
func (s *leadService) load(ctx context.Context, actor authz.Actor, id int, allowed func(authz.Actor, *models.Lead) bool) (*models.Lead, error) {
	lead, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) && !authz.Can(actor, authz.ViewAllLeads) {
			return nil, ErrForbidden
		}
		return nil, storeError(err)
	}
	if !allowed(actor, lead) {
		return nil, ErrForbidden
	}
	return lead, nil
}

func (s *leadService) Create(ctx context.Context, actor authz.Actor, in models.LeadInput) (*models.Lead, error) {
	lead := &models.Lead{}
	in.Apply(lead)
	lead.ApplyDefaults()
	normalizeLead(lead)
	creator := actor.UserID
	lead.CreatedBy = &creator

	if lead.AssignedTo != nil && !authz.CanReassignLead(actor, lead.AssignedTo) {
		return nil, ErrForbidden
	}
	if err := validateStruct(lead); err != nil {
		return nil, err
	}
	if err := s.checkAssignee(ctx, lead.AssignedTo); err != nil {
		return nil, err
	}

	var rec assignment.Recorder
	if err := s.repo.Create(ctx, lead, rec.LeadHook()); err != nil {
		return nil, storeError(err)
	}
	s.notifier.Flush(ctx, rec.Events())
	log.Printf("[leads][create] leadID=%d by=%d assigned_to=%v", lead.ID, actor.UserID, derefInt(lead.AssignedTo))
	return s.reload(ctx, lead)
}

// Update runs the permission checks and the edit against the row locked for
// the write, so a concurrent assignment is never overwritten.
func (s *leadService) Update(ctx context.Context, actor authz.Actor, id int, in models.LeadInput, partial bool) (*models.Lead, error) {
	if !partial {
		if err := requireLeadFields(in); err != nil {
			return nil, err
		}
	}
	if in.AssignedTo.Set {
		if err := s.checkAssignee(ctx, in.AssignedTo.Value); err != nil {
			return nil, err
		}
	}

	var rec assignment.Recorder
	lead, err := s.repo.Update(ctx, id, func(locked *models.Lead) error {
		if !authz.CanMutateLead(actor, locked) {
			return ErrForbidden
		}
		if in.AssignedTo.Set && !sameRef(locked.AssignedTo, in.AssignedTo.Value) && !authz.CanReassignLead(actor, in.AssignedTo.Value) {
			return ErrForbidden
		}
		in.Apply(locked)
		normalizeLead(locked)
		return validateStruct(locked)
	}, rec.LeadHook())
	if err != nil {
		return nil, s.writeError(actor, err)
	}
	s.notifier.Flush(ctx, rec.Events())
	return s.reload(ctx, lead)
}

func (s *leadService) Assign(ctx context.Context, actor authz.Actor, id int, agentID *int) (*models.Lead, error) {
	if !authz.CanReassignLead(actor, agentID) {
		return nil, ErrForbidden
	}
	if err := s.checkAssignee(ctx, agentID); err != nil {
		return nil, err
	}

	var rec assignment.Recorder
	err := s.repo.Assign(ctx, id, agentID, func(locked *models.Lead) error {
		if !authz.CanMutateLead(actor, locked) {
			return ErrForbidden
		}
		return nil
	}, rec.LeadHook())
	if err != nil {
		return nil, s.writeError(actor, err)
	}
	s.notifier.Flush(ctx, rec.Events())
	log.Printf("[leads][assign] leadID=%d agent=%v by=%d", id, derefInt(agentID), actor.UserID)
	return s.reload(ctx, &models.Lead{ID: id})
}

// writeError hides missing leads from actors scoped to their own leads.
func (s *leadService) writeError(actor authz.Actor, err error) error {
	if errors.Is(err, repositories.ErrNotFound) && !authz.Can(actor, authz.ViewAllLeads) {
		return ErrForbidden
	}
	return storeError(err)
}

func (s *leadService) Delete(ctx context.Context, actor authz.Actor, id int) error {
	if _, err := s.load(ctx, actor, id, authz.CanMutateLead); err != nil {
		return err
	}
	return storeError(s.repo.Delete(ctx, id))
}

// checkAssignee rejects assignment to users that do not exist or are inactive.
func (s *leadService) checkAssignee(ctx context.Context, agentID *int) error {
	if agentID == nil {
		return nil
	}
	u, err := s.users.GetByID(ctx, *agentID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return fieldError("assigned_to", "Invalid pk - object does not exist.")
		}
		return err
	}
	if !u.IsActive {
		return fieldError("assigned_to", "The selected user is not active.")
	}
	return nil
}

func (s *leadService) reload(ctx context.Context, lead *models.Lead) (*models.Lead, error) {
	full, err := s.repo.GetByID(ctx, lead.ID)
	if err != nil {
		log.Printf("[leads][reload] leadID=%d: %v", lead.ID, err)
		return lead, nil
	}
	return full, nil
}

func requireLeadFields(in models.LeadInput) error {
	v := &ValidationError{}
	if in.Name == nil {
		v.add("name", "This field is required.")
	}
	if in.Email == nil {
		v.add("email", "This field is required.")
	}
	if in.Phone == nil {
		v.add("phone", "This field is required.")
	}
	if len(v.Fields) > 0 {
		return v
	}
	return nil
}

func normalizeLead(l *models.Lead) {
	l.Name = strings.TrimSpace(l.Name)
	l.Email = strings.TrimSpace(l.Email)
	l.Phone = strings.TrimSpace(l.Phone)
	l.Budget = strings.TrimSpace(l.Budget)
}

func sameRef(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func derefInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
