package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"estatecrm/internal/assignment"
	"estatecrm/internal/authz"
	"estatecrm/internal/models"
	"estatecrm/internal/repositories"
)

const (
	upcomingVisitsLimit = 5
	maxHandleAttempts   = 1000
	syntheticEmailHost  = "example.com"

	// column widths of site_visits.client_name_manual and client_phone_manual
	maxClientNameLen  = 255
	maxClientPhoneLen = 20
)

type SiteVisitService interface {
	List(ctx context.Context, actor authz.Actor, f models.SiteVisitFilter) ([]*models.SiteVisit, int, error)
	Get(ctx context.Context, actor authz.Actor, id int) (*models.SiteVisit, error)
	Create(ctx context.Context, actor authz.Actor, in models.SiteVisitInput) (*models.SiteVisit, error)
	Update(ctx context.Context, actor authz.Actor, id int, in models.SiteVisitInput, partial bool) (*models.SiteVisit, error)
	Assign(ctx context.Context, actor authz.Actor, id int, agentID *int) (*models.SiteVisit, error)
	Delete(ctx context.Context, actor authz.Actor, id int) error
	// Upcoming returns the next pending visits from today on, soonest first.
	Upcoming(ctx context.Context, actor authz.Actor) ([]*models.SiteVisit, error)
	Summary(ctx context.Context, actor authz.Actor) (models.SiteVisitSummary, error)
}

type siteVisitService struct {
	repo     repositories.SiteVisitRepository
	users    repositories.UserRepository
	auth     AuthService
	notifier AssignmentNotifier
	loc      *time.Location
	now      func() time.Time
}

func NewSiteVisitService(repo repositories.SiteVisitRepository, users repositories.UserRepository, auth AuthService, notifier AssignmentNotifier, loc *time.Location) SiteVisitService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &siteVisitService{repo: repo, users: users, auth: auth, notifier: notifier, loc: loc, now: time.Now}
}

func (s *siteVisitService) today() models.Date {
	return models.DateOf(s.now().In(s.loc))
}

func (s *siteVisitService) List(ctx context.Context, actor authz.Actor, f models.SiteVisitFilter) ([]*models.SiteVisit, int, error) {
	f.AgentScope = authz.SiteVisitScope(actor)
	total, err := s.repo.Count(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	visits, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	return visits, total, nil
}

func (s *siteVisitService) Get(ctx context.Context, actor authz.Actor, id int) (*models.SiteVisit, error) {
	v, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err)
	}
	if !visitVisible(actor, v) {
		return nil, ErrForbidden
	}
	return v, nil
}

func visitVisible(actor authz.Actor, v *models.SiteVisit) bool {
	scope := authz.SiteVisitScope(actor)
	return scope == nil || (v.AgentID != nil && *v.AgentID == *scope)
}

func (s *siteVisitService) Create(ctx context.Context, actor authz.Actor, in models.SiteVisitInput) (*models.SiteVisit, error) {
	v := &models.SiteVisit{Status: models.VisitScheduled}
	if err := applyVisitInput(v, in, true); err != nil {
		return nil, err
	}
	clientName := ""
	if in.ClientName != nil {
		clientName = strings.TrimSpace(*in.ClientName)
	}
	clientPhone := ""
	if in.ClientPhone != nil {
		clientPhone = strings.TrimSpace(*in.ClientPhone)
	}
	verr := &ValidationError{}
	switch {
	case clientName == "":
		verr.add("client_name", "This field is required.")
	case utf8.RuneCountInString(clientName) > maxClientNameLen:
		verr.add("client_name", fmt.Sprintf("Ensure this field has no more than %d characters.", maxClientNameLen))
	}
	if utf8.RuneCountInString(clientPhone) > maxClientPhoneLen {
		verr.add("client_phone", fmt.Sprintf("Ensure this field has no more than %d characters.", maxClientPhoneLen))
	}
	if len(verr.Fields) > 0 {
		return nil, verr
	}
	if in.AgentID.Set {
		if err := s.checkAgent(ctx, v.AgentID); err != nil {
			return nil, err
		}
	}
	s.resolveClient(ctx, v, clientName, clientPhone)

	var rec assignment.Recorder
	if err := s.repo.Create(ctx, v, rec.SiteVisitHook()); err != nil {
		return nil, storeError(err)
	}
	s.notifier.Flush(ctx, rec.Events())
	log.Printf("[site-visits][create] visitID=%d by=%d agent=%v client_user=%v", v.ID, actor.UserID, derefInt(v.AgentID), derefInt(v.ClientUserID))
	return s.reload(ctx, v)
}

// Update applies in to the row locked for the write.
func (s *siteVisitService) Update(ctx context.Context, actor authz.Actor, id int, in models.SiteVisitInput, partial bool) (*models.SiteVisit, error) {
	if in.AgentID.Set {
		if err := s.checkAgent(ctx, in.AgentID.Value); err != nil {
			return nil, err
		}
	}

	var rec assignment.Recorder
	v, err := s.repo.Update(ctx, id, func(locked *models.SiteVisit) error {
		if !visitVisible(actor, locked) {
			return ErrForbidden
		}
		return applyVisitInput(locked, in, !partial)
	}, rec.SiteVisitHook())
	if err != nil {
		return nil, storeError(err)
	}
	s.notifier.Flush(ctx, rec.Events())
	return s.reload(ctx, v)
}

func (s *siteVisitService) Assign(ctx context.Context, actor authz.Actor, id int, agentID *int) (*models.SiteVisit, error) {
	if err := s.checkAgent(ctx, agentID); err != nil {
		return nil, err
	}

	var rec assignment.Recorder
	err := s.repo.Assign(ctx, id, agentID, func(locked *models.SiteVisit) error {
		if !visitVisible(actor, locked) {
			return ErrForbidden
		}
		return nil
	}, rec.SiteVisitHook())
	if err != nil {
		return nil, storeError(err)
	}
	s.notifier.Flush(ctx, rec.Events())
	return s.reload(ctx, &models.SiteVisit{ID: id})
}

func (s *siteVisitService) Delete(ctx context.Context, actor authz.Actor, id int) error {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return err
	}
	return storeError(s.repo.Delete(ctx, id))
}

func (s *siteVisitService) Upcoming(ctx context.Context, actor authz.Actor) ([]*models.SiteVisit, error) {
	today := s.today()
	return s.repo.List(ctx, models.SiteVisitFilter{
		AgentScope: authz.SiteVisitScope(actor),
		DateFrom:   &today,
		Statuses:   []models.SiteVisitStatus{models.VisitScheduled, models.VisitConfirmed},
		Ascending:  true,
		Limit:      upcomingVisitsLimit,
	})
}

func (s *siteVisitService) Summary(ctx context.Context, actor authz.Actor) (models.SiteVisitSummary, error) {
	return s.repo.Summary(ctx, models.SiteVisitFilter{AgentScope: authz.SiteVisitScope(actor)}, s.today())
}

// checkAgent accepts nil (unassigned) or an active user with the agent role.
func (s *siteVisitService) checkAgent(ctx context.Context, agentID *int) error {
	if agentID == nil {
		return nil
	}
	u, err := s.users.GetByID(ctx, *agentID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return fieldError("agent", "Invalid pk - object does not exist.")
		}
		return err
	}
	if !strings.EqualFold(u.Role, models.RoleAgent) || !u.IsActive {
		return fieldError("agent", "Selected user is not an active agent.")
	}
	return nil
}

// resolveClient links an existing or new client account, or falls back to the
// manual fields when no account can be found or made.
func (s *siteVisitService) resolveClient(ctx context.Context, v *models.SiteVisit, name, phone string) {
	if user := s.findClient(ctx, name, phone); user != nil {
		v.ClientUserID = &user.ID
		return
	}
	user, err := s.synthesizeClient(ctx, name)
	if err == nil {
		v.ClientUserID = &user.ID
		return
	}
	log.Printf("[site-visits][client] could not create client account for %q: %v; storing manual details", name, err)
	v.ClientNameManual = &name
	if phone != "" {
		v.ClientPhoneManual = &phone
	}
}

func (s *siteVisitService) findClient(ctx context.Context, name, phone string) *models.User {
	if phone != "" {
		u, err := s.users.GetByPhone(ctx, phone)
		if err == nil {
			return u
		}
		if !errors.Is(err, repositories.ErrNotFound) {
			log.Printf("[site-visits][client] phone lookup %q: %v", phone, err)
		}
	}
	if strings.Contains(name, "@") {
		u, err := s.users.GetByEmailFold(ctx, name)
		if err == nil {
			return u
		}
		if !errors.Is(err, repositories.ErrNotFound) {
			log.Printf("[site-visits][client] email lookup %q: %v", name, err)
		}
	}
	return nil
}

func (s *siteVisitService) synthesizeClient(ctx context.Context, name string) (*models.User, error) {
	base := ClientHandle(name)
	if base == "" {
		return nil, fmt.Errorf("name %q yields an empty handle", name)
	}
	username := base
	for n := 1; ; n++ {
		exists, err := s.users.UsernameExists(ctx, username)
		if err != nil {
			return nil, err
		}
		if !exists {
			break
		}
		if n >= maxHandleAttempts {
			return nil, fmt.Errorf("no free handle for %q", base)
		}
		username = fmt.Sprintf("%s_%d", base, n)
	}

	password, err := s.auth.UnusablePassword()
	if err != nil {
		return nil, err
	}
	email := username + "@" + syntheticEmailHost
	if strings.Contains(name, "@") {
		email = name
	}
	first, last := splitName(name)
	user := &models.User{
		Username:     username,
		Email:        email,
		FirstName:    first,
		LastName:     last,
		Role:         models.RoleClient,
		IsActive:     true,
		PasswordHash: password,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	log.Printf("[site-visits][client] created client userID=%d username=%s", user.ID, user.Username)
	return user, nil
}

// ClientHandle derives an account handle from a free-text client name.
func ClientHandle(name string) string {
	h := strings.ToLower(strings.TrimSpace(name))
	h = strings.ReplaceAll(h, " ", "_")
	h = strings.ReplaceAll(h, "@", "_at_")
	h = strings.ReplaceAll(h, ".", "_dot_")
	return h
}

func splitName(name string) (string, string) {
	if strings.Contains(name, "@") {
		return "", ""
	}
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

// applyVisitInput copies present fields onto v. full requires the fields a PUT
// or create must carry.
func applyVisitInput(v *models.SiteVisit, in models.SiteVisitInput, full bool) error {
	verr := &ValidationError{}
	if full {
		if in.PropertyID == nil {
			verr.add("property", "This field is required.")
		}
		if in.Date == nil {
			verr.add("date", "This field is required.")
		}
		if in.Time == nil || strings.TrimSpace(*in.Time) == "" {
			verr.add("time", "This field is required.")
		}
	}
	if in.PropertyID != nil {
		v.PropertyID = *in.PropertyID
	}
	if in.AgentID.Set {
		v.AgentID = in.AgentID.Value
	}
	if in.Date != nil {
		v.Date = *in.Date
	}
	if in.Time != nil {
		t := strings.TrimSpace(*in.Time)
		if len(t) > 20 {
			verr.add("time", "Ensure this field has no more than 20 characters.")
		}
		v.Time = t
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			verr.add("status", fmt.Sprintf("%q is not a valid choice.", string(*in.Status)))
		}
		v.Status = *in.Status
	}
	if in.Feedback != nil {
		v.Feedback = in.Feedback
	}
	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

func (s *siteVisitService) reload(ctx context.Context, v *models.SiteVisit) (*models.SiteVisit, error) {
	full, err := s.repo.GetByID(ctx, v.ID)
	if err != nil {
		log.Printf("[site-visits][reload] visitID=%d: %v", v.ID, err)
		return v, nil
	}
	return full, nil
}
