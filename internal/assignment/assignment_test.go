package assignment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estatecrm/internal/models"
	"estatecrm/internal/notify"
)

func ptr(v int) *int { return &v }

func TestTransition(t *testing.T) {
	cases := []struct {
		name     string
		prev     *int
		next     *int
		wantID   int
		wantFire bool
	}{
		{"unassigned to agent", nil, ptr(2), 2, true},
		{"reassigned", ptr(1), ptr(2), 2, true},
		{"same agent", ptr(2), ptr(2), 0, false},
		{"unassign", ptr(2), nil, 0, false},
		{"still unassigned", nil, nil, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id, fire := Transition(tc.prev, tc.next)
			assert.Equal(t, tc.wantFire, fire)
			assert.Equal(t, tc.wantID, id)
		})
	}
}

func TestRecorderLeadHook(t *testing.T) {
	var rec Recorder
	hook := rec.LeadHook()

	hook(nil, &models.Lead{ID: 1, AssignedTo: ptr(5)})
	hook(&models.Lead{AssignedTo: ptr(5)}, &models.Lead{ID: 1, AssignedTo: ptr(5)})
	hook(&models.Lead{AssignedTo: ptr(5)}, &models.Lead{ID: 1})
	hook(&models.Lead{}, &models.Lead{ID: 1, AssignedTo: ptr(6)})

	events := rec.Events()
	require.Len(t, events, 2)
	assert.Equal(t, 5, events[0].AgentID)
	assert.Equal(t, 6, events[1].AgentID)
	assert.Empty(t, rec.Events())
}

func TestRecorderSnapshotsNextRow(t *testing.T) {
	var rec Recorder
	next := &models.SiteVisit{ID: 3, AgentID: ptr(4), Status: models.VisitScheduled}
	rec.SiteVisitHook()(nil, next)
	next.Status = models.VisitCancelled

	events := rec.Events()
	require.Len(t, events, 1)
	assert.Equal(t, models.VisitScheduled, events[0].Visit.Status)
}

type users map[int]*models.User

func (u users) GetByID(_ context.Context, id int) (*models.User, error) {
	if x, ok := u[id]; ok {
		return x, nil
	}
	return nil, errors.New("no such user")
}

type properties map[int]*models.Property

func (p properties) GetByID(_ context.Context, id int) (*models.Property, error) {
	if x, ok := p[id]; ok {
		return x, nil
	}
	return nil, errors.New("no such property")
}

type capture struct {
	msgs []notify.Message
	err  error
}

func (c *capture) Dispatch(_ context.Context, m notify.Message) error {
	c.msgs = append(c.msgs, m)
	return c.err
}

func TestNotifierLeadMessage(t *testing.T) {
	out := &capture{}
	n := NewNotifier(users{2: {ID: 2, Username: "bob", Email: "bob@example.com"}}, nil, out)

	n.Flush(context.Background(), []Event{{AgentID: 2, Lead: &models.Lead{
		Name: "Jane", Email: "jane@example.com", Phone: "555", Status: "New", Source: "Website",
	}}})

	require.Len(t, out.msgs, 1)
	m := out.msgs[0]
	assert.Equal(t, "New Lead Assigned: Jane", m.Subject)
	assert.Equal(t, "bob@example.com", m.Recipient.Email)
	assert.Equal(t, "bob", m.Fields["agent_name"])
	assert.Equal(t, "Not specified", m.Fields["interest"])
	assert.Equal(t, "Not specified", m.Fields["company"])
	assert.Contains(t, m.Text, "Hello bob,")
}

func TestNotifierSiteVisitMessageResolvesDetails(t *testing.T) {
	out := &capture{}
	us := users{
		2: {ID: 2, Username: "agent", FirstName: "Ann", Email: "ann@example.com"},
		9: {ID: 9, Username: "jane_doe", FirstName: "Jane", LastName: "Doe"},
	}
	props := properties{4: {ID: 4, Title: "Sea View", Location: "Goa", PropertyType: "Villa"}}
	n := NewNotifier(us, props, out)

	visit := &models.SiteVisit{
		PropertyID:   4,
		AgentID:      ptr(2),
		ClientUserID: ptr(9),
		Date:         models.NewDate(2024, 3, 5),
		Time:         "10:30 AM",
		Status:       models.VisitNoShow,
	}
	n.Flush(context.Background(), []Event{{AgentID: 2, Visit: visit}})

	require.Len(t, out.msgs, 1)
	m := out.msgs[0]
	assert.Equal(t, "New Site Visit Scheduled: Sea View", m.Subject)
	assert.Equal(t, "Jane Doe", m.Fields["client"])
	assert.Equal(t, "Not provided", m.Fields["client_phone"])
	assert.Equal(t, "March 05, 2024", m.Fields["date"])
	assert.Equal(t, "No_Show", m.Fields["status"])
	assert.Equal(t, "Ann", m.Fields["agent_name"])
}

func TestNotifierSwallowsFailures(t *testing.T) {
	out := &capture{err: errors.New("smtp down")}
	n := NewNotifier(users{2: {ID: 2}}, nil, out)

	assert.NotPanics(t, func() {
		n.Flush(context.Background(), []Event{
			{AgentID: 2, Lead: &models.Lead{Name: "A"}},
			{AgentID: 404, Lead: &models.Lead{Name: "B"}},
		})
	})
	assert.Len(t, out.msgs, 1)
}

type stalled struct {
	calls int
}

func (s *stalled) Dispatch(ctx context.Context, _ notify.Message) error {
	s.calls++
	<-ctx.Done()
	return ctx.Err()
}

func TestNotifierFlushIsBounded(t *testing.T) {
	out := &stalled{}
	n := NewNotifier(users{2: {ID: 2}, 3: {ID: 3}}, nil, out)
	n.timeout = 50 * time.Millisecond

	start := time.Now()
	n.Flush(context.Background(), []Event{
		{AgentID: 2, Lead: &models.Lead{Name: "A"}},
		{AgentID: 3, Lead: &models.Lead{Name: "B"}},
	})
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, 1, out.calls, "the second event is dropped once the budget is spent")
}

func TestNotifierFlushOutlivesRequestCancel(t *testing.T) {
	out := &capture{}
	n := NewNotifier(users{2: {ID: 2}}, nil, out)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n.Flush(ctx, []Event{{AgentID: 2, Lead: &models.Lead{Name: "A"}}})
	assert.Len(t, out.msgs, 1)
}
