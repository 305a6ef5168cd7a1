package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estatecrm/internal/authz"
	"estatecrm/internal/models"
)

var (
	admin   = authz.Actor{UserID: 1, Role: models.RoleAdmin}
	agentA  = authz.Actor{UserID: 2, Role: models.RoleAgent}
	agentB  = authz.Actor{UserID: 3, Role: "Agent"}
	manager = authz.Actor{UserID: 4, Role: models.RoleManager}
)

func leadUsers() *fakeUserRepo {
	return newFakeUserRepo(
		&models.User{ID: 1, Username: "admin", Role: models.RoleAdmin, IsActive: true},
		&models.User{ID: 2, Username: "ann", Role: models.RoleAgent, IsActive: true},
		&models.User{ID: 3, Username: "bob", Role: "Agent", IsActive: true},
		&models.User{ID: 4, Username: "meg", Role: models.RoleManager, IsActive: true},
		&models.User{ID: 5, Username: "gone", Role: models.RoleAgent, IsActive: false},
	)
}

func newLead() models.LeadInput {
	return models.LeadInput{Name: strp("Jane"), Email: strp("jane@example.com"), Phone: strp("555")}
}

func TestLeadCreateDefaultsAndCreator(t *testing.T) {
	repo := newFakeLeadRepo()
	events := &eventLog{}
	svc := NewLeadService(repo, leadUsers(), events)

	lead, err := svc.Create(context.Background(), agentA, newLead())
	require.NoError(t, err)
	assert.Equal(t, models.LeadStatusNew, lead.Status)
	assert.Equal(t, models.DefaultLeadSource, lead.Source)
	assert.Equal(t, models.DefaultLeadPriority, lead.Priority)
	require.NotNil(t, lead.CreatedBy)
	assert.Equal(t, 2, *lead.CreatedBy)
	assert.Empty(t, events.agents())
}

func TestLeadCreateValidation(t *testing.T) {
	svc := NewLeadService(newFakeLeadRepo(), leadUsers(), nil)

	_, err := svc.Create(context.Background(), admin, models.LeadInput{Email: strp("not-an-email"), Priority: strp("Whenever")})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, verr.Fields, "name")
	assert.Contains(t, verr.Fields, "phone")
	assert.Equal(t, []string{"Enter a valid email address."}, verr.Fields["email"])
	assert.Contains(t, verr.Fields, "priority")
}

func TestLeadAssignmentNotifiesOncePerChange(t *testing.T) {
	ctx := context.Background()
	repo := newFakeLeadRepo()
	events := &eventLog{}
	svc := NewLeadService(repo, leadUsers(), events)

	lead, err := svc.Create(ctx, admin, newLead())
	require.NoError(t, err)
	assert.Empty(t, events.agents(), "unassigned create")

	_, err = svc.Assign(ctx, admin, lead.ID, intp(2))
	require.NoError(t, err)
	assert.Equal(t, []int{2}, events.agents())

	_, err = svc.Assign(ctx, admin, lead.ID, intp(2))
	require.NoError(t, err)
	assert.Equal(t, []int{2}, events.agents(), "same agent again")

	_, err = svc.Update(ctx, admin, lead.ID, models.LeadInput{AssignedTo: models.Ref(3)}, true)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, events.agents())

	_, err = svc.Update(ctx, admin, lead.ID, models.LeadInput{AssignedTo: models.OptionalRef{Set: true}}, true)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, events.agents(), "unassign")

	_, err = svc.Update(ctx, admin, lead.ID, models.LeadInput{Notes: strp("called")}, true)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, events.agents(), "unrelated edit")
}

func TestLeadCreateAssignedNotifies(t *testing.T) {
	events := &eventLog{}
	svc := NewLeadService(newFakeLeadRepo(), leadUsers(), events)

	in := newLead()
	in.AssignedTo = models.Ref(3)
	_, err := svc.Create(context.Background(), manager, in)
	require.NoError(t, err)
	assert.Equal(t, []int{3}, events.agents())
}

func TestLeadAssignRejectsUnknownOrInactiveUser(t *testing.T) {
	ctx := context.Background()
	events := &eventLog{}
	svc := NewLeadService(newFakeLeadRepo(), leadUsers(), events)
	lead, err := svc.Create(ctx, admin, newLead())
	require.NoError(t, err)

	_, err = svc.Assign(ctx, admin, lead.ID, intp(99))
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.Assign(ctx, admin, lead.ID, intp(5))
	assert.ErrorIs(t, err, ErrValidation)
	assert.Empty(t, events.agents())
}

func TestAgentSeesOnlyOwnLeads(t *testing.T) {
	ctx := context.Background()
	repo := newFakeLeadRepo()
	mine := repo.seed(models.Lead{Name: "mine", AssignedTo: intp(2)})
	theirs := repo.seed(models.Lead{Name: "theirs", AssignedTo: intp(3)})
	repo.seed(models.Lead{Name: "nobody"})
	svc := NewLeadService(repo, leadUsers(), nil)

	leads, total, err := svc.List(ctx, agentA, models.LeadFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, leads, 1)
	assert.Equal(t, mine, leads[0].ID)

	all, total, err := svc.List(ctx, manager, models.LeadFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, all, 3)

	_, err = svc.Get(ctx, agentA, theirs)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.Get(ctx, agentA, 404)
	assert.ErrorIs(t, err, ErrForbidden, "missing and foreign look the same")
	_, err = svc.Get(ctx, admin, 404)
	assert.ErrorIs(t, err, ErrNotFound)

	err = svc.Delete(ctx, agentA, theirs)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAgentCannotHandLeadToSomeoneElse(t *testing.T) {
	ctx := context.Background()
	repo := newFakeLeadRepo()
	id := repo.seed(models.Lead{Name: "mine", Email: "m@example.com", Phone: "1", Status: "New",
		Source: "Website", Priority: "Medium", AssignedTo: intp(2)})
	events := &eventLog{}
	svc := NewLeadService(repo, leadUsers(), events)

	_, err := svc.Assign(ctx, agentA, id, intp(3))
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.Update(ctx, agentA, id, models.LeadInput{AssignedTo: models.Ref(3)}, true)
	assert.ErrorIs(t, err, ErrForbidden)

	updated, err := svc.Update(ctx, agentA, id, models.LeadInput{Status: strp("Qualified")}, true)
	require.NoError(t, err)
	assert.Equal(t, "Qualified", updated.Status)
	assert.Empty(t, events.agents())
}

func TestLeadPutRequiresContactFields(t *testing.T) {
	ctx := context.Background()
	repo := newFakeLeadRepo()
	id := repo.seed(models.Lead{Name: "x", Email: "x@example.com", Phone: "1", Status: "New", Source: "Website", Priority: "Medium"})
	svc := NewLeadService(repo, leadUsers(), nil)

	_, err := svc.Update(ctx, admin, id, models.LeadInput{Name: strp("y")}, false)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "email")
	assert.Contains(t, verr.Fields, "phone")
	assert.NotContains(t, verr.Fields, "name")
}

func TestLeadUpdateKeepsCreator(t *testing.T) {
	ctx := context.Background()
	repo := newFakeLeadRepo()
	id := repo.seed(models.Lead{Name: "x", Email: "x@example.com", Phone: "1", Status: "New",
		Source: "Website", Priority: "Medium", CreatedBy: intp(4)})
	svc := NewLeadService(repo, leadUsers(), nil)

	lead, err := svc.Update(ctx, admin, id, newLead(), false)
	require.NoError(t, err)
	require.NotNil(t, lead.CreatedBy)
	assert.Equal(t, 4, *lead.CreatedBy)
}

func TestLeadPatchKeepsConcurrentAssignment(t *testing.T) {
	ctx := context.Background()
	repo := newFakeLeadRepo()
	id := repo.seed(models.Lead{Name: "x", Email: "x@example.com", Phone: "1", Status: "New",
		Source: "Website", Priority: "Medium", AssignedTo: intp(2)})
	events := &eventLog{}
	svc := NewLeadService(repo, leadUsers(), events)

	repo.beforeLock = func(rows map[int]models.Lead) {
		l := rows[id]
		l.AssignedTo = intp(3)
		rows[id] = l
		repo.beforeLock = nil
	}
	lead, err := svc.Update(ctx, admin, id, models.LeadInput{Notes: strp("called back")}, true)
	require.NoError(t, err)

	require.NotNil(t, lead.AssignedTo)
	assert.Equal(t, 3, *lead.AssignedTo)
	assert.Equal(t, "called back", lead.Notes)
	stored, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3, *stored.AssignedTo)
	assert.Empty(t, events.agents())
}

func TestLeadUpdateChecksPermissionOnLockedRow(t *testing.T) {
	ctx := context.Background()
	repo := newFakeLeadRepo()
	id := repo.seed(models.Lead{Name: "x", Email: "x@example.com", Phone: "1", Status: "New",
		Source: "Website", Priority: "Medium", AssignedTo: intp(2)})
	svc := NewLeadService(repo, leadUsers(), nil)

	takeAway := func(rows map[int]models.Lead) {
		l := rows[id]
		l.AssignedTo = intp(3)
		rows[id] = l
	}
	repo.beforeLock = takeAway
	_, err := svc.Update(ctx, agentA, id, models.LeadInput{Status: strp("Qualified")}, true)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.Assign(ctx, agentA, id, nil)
	assert.ErrorIs(t, err, ErrForbidden)

	stored, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "New", stored.Status)
	assert.Equal(t, 3, *stored.AssignedTo)
}
