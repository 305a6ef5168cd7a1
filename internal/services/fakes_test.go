package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"estatecrm/internal/assignment"
	"estatecrm/internal/models"
	"estatecrm/internal/notify"
	"estatecrm/internal/repositories"
)

func intp(v int) *int       { return &v }
func strp(s string) *string { return &s }

// ---- leads ----

type fakeLeadRepo struct {
	mu     sync.Mutex
	rows   map[int]models.Lead
	nextID int
	// beforeLock runs ahead of a locked write, standing in for a concurrent commit.
	beforeLock func(rows map[int]models.Lead)
}

func (r *fakeLeadRepo) lock() {
	if r.beforeLock != nil {
		r.mu.Lock()
		r.beforeLock(r.rows)
		r.mu.Unlock()
	}
	r.mu.Lock()
}

func newFakeLeadRepo() *fakeLeadRepo {
	return &fakeLeadRepo{rows: map[int]models.Lead{}}
}

func (r *fakeLeadRepo) seed(l models.Lead) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	l.ID = r.nextID
	r.rows[l.ID] = l
	return l.ID
}

func (r *fakeLeadRepo) Create(_ context.Context, lead *models.Lead, hook repositories.LeadWriteHook) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	lead.ID = r.nextID
	lead.CreatedAt = time.Now()
	lead.UpdatedAt = lead.CreatedAt
	r.rows[lead.ID] = *lead
	if hook != nil {
		hook(nil, lead)
	}
	return nil
}

func (r *fakeLeadRepo) Update(_ context.Context, id int, mutate repositories.LeadMutation, hook repositories.LeadWriteHook) (*models.Lead, error) {
	r.lock()
	defer r.mu.Unlock()
	prev, ok := r.rows[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	next := prev
	if mutate != nil {
		if err := mutate(&next); err != nil {
			return nil, err
		}
	}
	next.ID, next.CreatedBy = prev.ID, prev.CreatedBy
	r.rows[id] = next
	if hook != nil {
		hook(&prev, &next)
	}
	return &next, nil
}

func (r *fakeLeadRepo) Assign(_ context.Context, id int, agentID *int, check repositories.LeadCheck, hook repositories.LeadWriteHook) error {
	r.lock()
	defer r.mu.Unlock()
	prev, ok := r.rows[id]
	if !ok {
		return repositories.ErrNotFound
	}
	if check != nil {
		locked := prev
		if err := check(&locked); err != nil {
			return err
		}
	}
	next := prev
	next.AssignedTo = agentID
	r.rows[id] = next
	if hook != nil {
		hook(&prev, &next)
	}
	return nil
}

func (r *fakeLeadRepo) GetByID(_ context.Context, id int) (*models.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.rows[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &l, nil
}

func (r *fakeLeadRepo) Delete(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.rows, id)
	return nil
}

func (r *fakeLeadRepo) match(f models.LeadFilter) []*models.Lead {
	var out []*models.Lead
	for _, l := range r.rows {
		l := l
		if f.Scope != nil && (l.AssignedTo == nil || *l.AssignedTo != *f.Scope) {
			continue
		}
		if f.Status != "" && l.Status != f.Status {
			continue
		}
		if f.Source != "" && l.Source != f.Source {
			continue
		}
		out = append(out, &l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *fakeLeadRepo) List(_ context.Context, f models.LeadFilter) ([]*models.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.match(f)
	if f.Limit > 0 {
		end := f.Offset + f.Limit
		if end > len(out) {
			end = len(out)
		}
		if f.Offset > len(out) {
			return nil, nil
		}
		out = out[f.Offset:end]
	}
	return out, nil
}

func (r *fakeLeadRepo) Count(_ context.Context, f models.LeadFilter) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.match(f)), nil
}

// ---- users ----

type fakeUserRepo struct {
	mu        sync.Mutex
	rows      map[int]*models.User
	nextID    int
	createErr error
}

func newFakeUserRepo(users ...*models.User) *fakeUserRepo {
	r := &fakeUserRepo{rows: map[int]*models.User{}}
	for _, u := range users {
		r.rows[u.ID] = u
		if u.ID > r.nextID {
			r.nextID = u.ID
		}
	}
	return r
}

func (r *fakeUserRepo) find(pred func(*models.User) bool) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]int, 0, len(r.rows))
	for id := range r.rows {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		if pred(r.rows[id]) {
			u := *r.rows[id]
			return &u, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *fakeUserRepo) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	for _, u := range r.rows {
		if u.Username == user.Username {
			return repositories.ErrDuplicate
		}
	}
	r.nextID++
	user.ID = r.nextID
	u := *user
	r.rows[u.ID] = &u
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id int) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.ID == id })
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, username string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.Username == username })
}

func (r *fakeUserRepo) GetByEmailFold(_ context.Context, email string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return strings.EqualFold(u.Email, email) })
}

func (r *fakeUserRepo) GetByPhone(_ context.Context, phone string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.PhoneNumber != "" && u.PhoneNumber == phone })
}

func (r *fakeUserRepo) UsernameExists(ctx context.Context, username string) (bool, error) {
	_, err := r.GetByUsername(ctx, username)
	return err == nil, nil
}

func (r *fakeUserRepo) Update(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[user.ID]; !ok {
		return repositories.ErrNotFound
	}
	u := *user
	r.rows[u.ID] = &u
	return nil
}

func (r *fakeUserRepo) UpdatePassword(_ context.Context, userID int, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.rows[userID]
	if !ok {
		return repositories.ErrNotFound
	}
	u.PasswordHash = hash
	u.RefreshToken = nil
	return nil
}

func (r *fakeUserRepo) List(_ context.Context, limit, offset int) ([]*models.User, error) {
	var out []*models.User
	for id := 1; id <= r.nextID; id++ {
		if u, ok := r.rows[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) Count(context.Context) (int, error) { return len(r.rows), nil }

func (r *fakeUserRepo) ListByRoleFold(_ context.Context, role string) ([]*models.User, error) {
	var out []*models.User
	for id := 1; id <= r.nextID; id++ {
		if u, ok := r.rows[id]; ok && strings.EqualFold(u.Role, role) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) UpdateRefresh(_ context.Context, userID int, token string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.rows[userID]
	if !ok {
		return repositories.ErrNotFound
	}
	u.RefreshToken = &token
	u.RefreshExpiresAt = &expiresAt
	u.RefreshRevoked = false
	return nil
}

func (r *fakeUserRepo) GetByRefreshToken(_ context.Context, token string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.RefreshToken != nil && *u.RefreshToken == token })
}

func (r *fakeUserRepo) ClearRefresh(_ context.Context, userID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.rows[userID]
	if !ok {
		return repositories.ErrNotFound
	}
	u.RefreshToken = nil
	u.RefreshExpiresAt = nil
	u.RefreshRevoked = true
	return nil
}

// ---- site visits ----

type fakeVisitRepo struct {
	mu         sync.Mutex
	rows       map[int]models.SiteVisit
	nextID     int
	lastList   models.SiteVisitFilter
	beforeLock func(rows map[int]models.SiteVisit)
}

func (r *fakeVisitRepo) lock() {
	if r.beforeLock != nil {
		r.mu.Lock()
		r.beforeLock(r.rows)
		r.mu.Unlock()
	}
	r.mu.Lock()
}

func newFakeVisitRepo() *fakeVisitRepo {
	return &fakeVisitRepo{rows: map[int]models.SiteVisit{}}
}

func (r *fakeVisitRepo) Create(_ context.Context, v *models.SiteVisit, hook repositories.SiteVisitWriteHook) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v.ClientUserID == nil && v.ClientNameManual == nil {
		return errors.New("site visit needs a client")
	}
	r.nextID++
	v.ID = r.nextID
	r.rows[v.ID] = *v
	if hook != nil {
		hook(nil, v)
	}
	return nil
}

func (r *fakeVisitRepo) Update(_ context.Context, id int, mutate repositories.SiteVisitMutation, hook repositories.SiteVisitWriteHook) (*models.SiteVisit, error) {
	r.lock()
	defer r.mu.Unlock()
	prev, ok := r.rows[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	next := prev
	if mutate != nil {
		if err := mutate(&next); err != nil {
			return nil, err
		}
	}
	next.ID = prev.ID
	next.ClientUserID, next.ClientNameManual, next.ClientPhoneManual = prev.ClientUserID, prev.ClientNameManual, prev.ClientPhoneManual
	r.rows[id] = next
	if hook != nil {
		hook(&prev, &next)
	}
	return &next, nil
}

func (r *fakeVisitRepo) Assign(_ context.Context, id int, agentID *int, check repositories.SiteVisitCheck, hook repositories.SiteVisitWriteHook) error {
	r.lock()
	defer r.mu.Unlock()
	prev, ok := r.rows[id]
	if !ok {
		return repositories.ErrNotFound
	}
	if check != nil {
		locked := prev
		if err := check(&locked); err != nil {
			return err
		}
	}
	next := prev
	next.AgentID = agentID
	r.rows[id] = next
	if hook != nil {
		hook(&prev, &next)
	}
	return nil
}

func (r *fakeVisitRepo) GetByID(_ context.Context, id int) (*models.SiteVisit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.rows[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &v, nil
}

func (r *fakeVisitRepo) Delete(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, id)
	return nil
}

func (r *fakeVisitRepo) List(_ context.Context, f models.SiteVisitFilter) ([]*models.SiteVisit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastList = f
	var out []*models.SiteVisit
	for id := 1; id <= r.nextID; id++ {
		if v, ok := r.rows[id]; ok {
			out = append(out, &v)
		}
	}
	return out, nil
}

func (r *fakeVisitRepo) Count(_ context.Context, _ models.SiteVisitFilter) (int, error) {
	return len(r.rows), nil
}

func (r *fakeVisitRepo) Summary(_ context.Context, _ models.SiteVisitFilter, today models.Date) (models.SiteVisitSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var s models.SiteVisitSummary
	for _, v := range r.rows {
		s.TotalVisits++
		if v.Status.Pending() {
			s.PendingVisits++
		}
		if !v.Date.Before(today.Time) {
			s.UpcomingVisits++
		}
	}
	return s, nil
}

// ---- properties ----

type fakePropertyRepo struct {
	rows []*models.Property
}

func (r *fakePropertyRepo) Create(_ context.Context, p *models.Property) error {
	p.ID = len(r.rows) + 1
	r.rows = append(r.rows, p)
	return nil
}

func (r *fakePropertyRepo) GetByID(_ context.Context, id int) (*models.Property, error) {
	for _, p := range r.rows {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *fakePropertyRepo) Update(context.Context, *models.Property) error { return nil }
func (r *fakePropertyRepo) Delete(context.Context, int) error              { return nil }

func (r *fakePropertyRepo) List(context.Context, int, int) ([]*models.Property, error) {
	return r.rows, nil
}

func (r *fakePropertyRepo) Count(context.Context) (int, error) { return len(r.rows), nil }

// ---- password resets ----

type fakeResetRepo struct {
	rows        []*models.PasswordReset
	invalidated []int
}

func (r *fakeResetRepo) Create(_ context.Context, userID int, token string, expiresAt time.Time) (*models.PasswordReset, error) {
	pr := &models.PasswordReset{ID: len(r.rows) + 1, UserID: userID, Token: token, ExpiresAt: expiresAt}
	r.rows = append(r.rows, pr)
	return pr, nil
}

func (r *fakeResetRepo) GetByToken(_ context.Context, token string) (*models.PasswordReset, error) {
	for _, pr := range r.rows {
		if pr.Token == token {
			return pr, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *fakeResetRepo) Claim(_ context.Context, id int) error {
	if r.rows[id-1].UsedAt != nil {
		return repositories.ErrNotFound
	}
	now := time.Now()
	r.rows[id-1].UsedAt = &now
	return nil
}

func (r *fakeResetRepo) InvalidateForUser(_ context.Context, userID int) error {
	r.invalidated = append(r.invalidated, userID)
	return nil
}

// ---- collaborators ----

type eventLog struct {
	mu      sync.Mutex
	events  []assignment.Event
	flushes int
}

func (e *eventLog) Flush(_ context.Context, events []assignment.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.flushes++
	e.events = append(e.events, events...)
}

func (e *eventLog) agents() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]int, len(e.events))
	for i, ev := range e.events {
		out[i] = ev.AgentID
	}
	return out
}

type mailbox struct {
	msgs []notify.Message
	err  error
}

func (m *mailbox) Dispatch(_ context.Context, msg notify.Message) error {
	m.msgs = append(m.msgs, msg)
	return m.err
}
