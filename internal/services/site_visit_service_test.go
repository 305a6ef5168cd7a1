package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estatecrm/internal/models"
)

func visitInput(name, phone string) models.SiteVisitInput {
	d := models.NewDate(2024, 3, 20)
	in := models.SiteVisitInput{
		PropertyID: intp(1),
		ClientName: strp(name),
		Date:       &d,
		Time:       strp("10:30 AM"),
	}
	if phone != "" {
		in.ClientPhone = strp(phone)
	}
	return in
}

func newVisitService(users *fakeUserRepo, visits *fakeVisitRepo, events *eventLog) SiteVisitService {
	auth := NewAuthService(users, "secret", time.Minute, time.Hour)
	return NewSiteVisitService(visits, users, auth, events, time.UTC)
}

func TestClientHandle(t *testing.T) {
	assert.Equal(t, "jane_doe", ClientHandle("Jane Doe"))
	assert.Equal(t, "jane_dot_doe_at_mail_dot_com", ClientHandle(" Jane.Doe@Mail.com "))
}

func TestSiteVisitSynthesizesDistinctClients(t *testing.T) {
	ctx := context.Background()
	users := leadUsers()
	visits := newFakeVisitRepo()
	svc := newVisitService(users, visits, &eventLog{})

	first, err := svc.Create(ctx, agentA, visitInput("Jane Doe", "555-1234"))
	require.NoError(t, err)
	second, err := svc.Create(ctx, agentA, visitInput("Jane Doe", "555-1234"))
	require.NoError(t, err)

	require.NotNil(t, first.ClientUserID)
	require.NotNil(t, second.ClientUserID)
	assert.NotEqual(t, *first.ClientUserID, *second.ClientUserID)
	assert.Nil(t, first.ClientNameManual)

	a, err := users.GetByID(ctx, *first.ClientUserID)
	require.NoError(t, err)
	b, err := users.GetByID(ctx, *second.ClientUserID)
	require.NoError(t, err)

	assert.Equal(t, "jane_doe", a.Username)
	assert.Equal(t, "jane_doe_1", b.Username)
	assert.Equal(t, models.RoleClient, a.Role)
	assert.Equal(t, "jane_doe@example.com", a.Email)
	assert.Equal(t, "Jane", a.FirstName)
	assert.Equal(t, "Doe", a.LastName)
	assert.False(t, a.HasUsablePassword())
	assert.Empty(t, a.PhoneNumber)
}

func TestSiteVisitLinksExistingClient(t *testing.T) {
	ctx := context.Background()
	users := leadUsers()
	users.rows[10] = &models.User{ID: 10, Username: "paul", PhoneNumber: "777", Email: "paul@example.com", Role: models.RoleClient}
	users.rows[11] = &models.User{ID: 11, Username: "sara", Email: "Sara@Example.com", Role: models.RoleClient}
	users.nextID = 11
	svc := newVisitService(users, newFakeVisitRepo(), &eventLog{})

	byPhone, err := svc.Create(ctx, admin, visitInput("Someone Else", "777"))
	require.NoError(t, err)
	require.NotNil(t, byPhone.ClientUserID)
	assert.Equal(t, 10, *byPhone.ClientUserID)

	byEmail, err := svc.Create(ctx, admin, visitInput("sara@example.com", "123"))
	require.NoError(t, err)
	require.NotNil(t, byEmail.ClientUserID)
	assert.Equal(t, 11, *byEmail.ClientUserID)
	assert.Equal(t, 11, users.nextID, "no account synthesized")
}

func TestSiteVisitFallsBackToManualClient(t *testing.T) {
	users := leadUsers()
	users.createErr = errors.New("unique violation")
	svc := newVisitService(users, newFakeVisitRepo(), &eventLog{})

	v, err := svc.Create(context.Background(), admin, visitInput("Jane Doe", "555-1234"))
	require.NoError(t, err)
	assert.Nil(t, v.ClientUserID)
	require.NotNil(t, v.ClientNameManual)
	assert.Equal(t, "Jane Doe", *v.ClientNameManual)
	require.NotNil(t, v.ClientPhoneManual)
	assert.Equal(t, "555-1234", *v.ClientPhoneManual)
}

func TestSiteVisitRequiresClientName(t *testing.T) {
	svc := newVisitService(leadUsers(), newFakeVisitRepo(), &eventLog{})
	_, err := svc.Create(context.Background(), admin, visitInput("  ", ""))
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "client_name")
}

func TestSiteVisitAgentMustBeAgent(t *testing.T) {
	svc := newVisitService(leadUsers(), newFakeVisitRepo(), &eventLog{})

	in := visitInput("Jane", "")
	in.AgentID = models.Ref(4) // manager
	_, err := svc.Create(context.Background(), admin, in)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "agent")
}

func TestSiteVisitAssignmentNotifications(t *testing.T) {
	ctx := context.Background()
	events := &eventLog{}
	svc := newVisitService(leadUsers(), newFakeVisitRepo(), events)

	in := visitInput("Jane", "")
	in.AgentID = models.Ref(2)
	v, err := svc.Create(ctx, admin, in)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, events.agents())

	_, err = svc.Assign(ctx, admin, v.ID, intp(agentB.UserID))
	require.NoError(t, err)
	_, err = svc.Update(ctx, admin, v.ID, models.SiteVisitInput{Feedback: strp("went well")}, true)
	require.NoError(t, err)
	_, err = svc.Assign(ctx, admin, v.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, []int{2, 3}, events.agents())
}

func TestSiteVisitUpdateValidatesStatus(t *testing.T) {
	ctx := context.Background()
	svc := newVisitService(leadUsers(), newFakeVisitRepo(), &eventLog{})
	v, err := svc.Create(ctx, admin, visitInput("Jane", ""))
	require.NoError(t, err)
	assert.Equal(t, models.VisitScheduled, v.Status)

	bad := models.SiteVisitStatus("postponed")
	_, err = svc.Update(ctx, admin, v.ID, models.SiteVisitInput{Status: &bad}, true)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Update(ctx, admin, v.ID, models.SiteVisitInput{Feedback: strp("x")}, false)
	assert.ErrorIs(t, err, ErrValidation, "PUT needs property, date and time")
}

func TestSiteVisitUpcomingQuery(t *testing.T) {
	visits := newFakeVisitRepo()
	svc := newVisitService(leadUsers(), visits, &eventLog{}).(*siteVisitService)
	svc.now = func() time.Time { return time.Date(2024, 3, 14, 23, 30, 0, 0, time.UTC) }

	_, err := svc.Upcoming(context.Background(), agentA)
	require.NoError(t, err)

	f := visits.lastList
	require.NotNil(t, f.DateFrom)
	assert.Equal(t, "2024-03-14", f.DateFrom.String())
	assert.True(t, f.Ascending)
	assert.Equal(t, 5, f.Limit)
	assert.Equal(t, []models.SiteVisitStatus{models.VisitScheduled, models.VisitConfirmed}, f.Statuses)
	assert.Nil(t, f.AgentScope, "visits are visible to every role")
}

func TestSiteVisitSummary(t *testing.T) {
	ctx := context.Background()
	visits := newFakeVisitRepo()
	svc := newVisitService(leadUsers(), visits, &eventLog{}).(*siteVisitService)
	svc.now = func() time.Time { return time.Date(2024, 3, 19, 9, 0, 0, 0, time.UTC) }

	_, err := svc.Create(ctx, admin, visitInput("A", ""))
	require.NoError(t, err)
	done := models.VisitCompleted
	in := visitInput("B", "")
	in.Status = &done
	old := models.NewDate(2024, 1, 2)
	in.Date = &old
	_, err = svc.Create(ctx, admin, in)
	require.NoError(t, err)

	s, err := svc.Summary(ctx, agentA)
	require.NoError(t, err)
	assert.Equal(t, models.SiteVisitSummary{TotalVisits: 2, PendingVisits: 1, UpcomingVisits: 1}, s)
}

func TestSiteVisitPatchKeepsConcurrentAgent(t *testing.T) {
	ctx := context.Background()
	events := &eventLog{}
	visits := newFakeVisitRepo()
	svc := newVisitService(leadUsers(), visits, events)

	in := visitInput("Jane", "")
	in.AgentID = models.Ref(2)
	v, err := svc.Create(ctx, admin, in)
	require.NoError(t, err)

	visits.beforeLock = func(rows map[int]models.SiteVisit) {
		row := rows[v.ID]
		row.AgentID = intp(3)
		rows[v.ID] = row
		visits.beforeLock = nil
	}
	updated, err := svc.Update(ctx, admin, v.ID, models.SiteVisitInput{Feedback: strp("liked the view")}, true)
	require.NoError(t, err)

	require.NotNil(t, updated.AgentID)
	assert.Equal(t, 3, *updated.AgentID)
	require.NotNil(t, updated.Feedback)
	assert.Equal(t, "liked the view", *updated.Feedback)
	assert.Equal(t, []int{2}, events.agents(), "only the create notified")
}

func TestSiteVisitClientFieldLengths(t *testing.T) {
	ctx := context.Background()
	visits := newFakeVisitRepo()
	svc := newVisitService(leadUsers(), visits, &eventLog{})

	_, err := svc.Create(ctx, admin, visitInput(strings.Repeat("n", 256), strings.Repeat("9", 21)))
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "client_name")
	assert.Contains(t, verr.Fields, "client_phone")
	assert.Empty(t, visits.rows)

	_, err = svc.Create(ctx, admin, visitInput(strings.Repeat("é", 255), strings.Repeat("9", 20)))
	assert.NoError(t, err)
}
