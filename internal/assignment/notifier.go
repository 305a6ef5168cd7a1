package assignment

import (
	"context"
	"fmt"
	"html"
	"log"
	"strings"
	"time"
	"unicode"

	"estatecrm/internal/models"
	"estatecrm/internal/notify"
)

const dispatchTimeout = 15 * time.Second

type UserLookup interface {
	GetByID(ctx context.Context, id int) (*models.User, error)
}

type PropertyLookup interface {
	GetByID(ctx context.Context, id int) (*models.Property, error)
}

type Notifier struct {
	users      UserLookup
	properties PropertyLookup
	dispatcher notify.Dispatcher
	// timeout bounds one Flush.
	timeout time.Duration
}

func NewNotifier(users UserLookup, properties PropertyLookup, dispatcher notify.Dispatcher) *Notifier {
	if dispatcher == nil {
		dispatcher = notify.Nop{}
	}
	return &Notifier{users: users, properties: properties, dispatcher: dispatcher, timeout: dispatchTimeout}
}

// Flush delivers the events of a committed write. Failures are logged only; the
// write they describe has already succeeded.
func (n *Notifier) Flush(ctx context.Context, events []Event) {
	if len(events) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	defer cancel()

	for i, ev := range events {
		if ctx.Err() != nil {
			log.Printf("[assignment][notify] out of time, dropping %d notifications", len(events)-i)
			return
		}
		if err := n.deliver(ctx, ev); err != nil {
			log.Printf("[assignment][notify] agent=%d err=%v", ev.AgentID, err)
		}
	}
}

func (n *Notifier) deliver(ctx context.Context, ev Event) error {
	agent, err := n.users.GetByID(ctx, ev.AgentID)
	if err != nil {
		return fmt.Errorf("load agent: %w", err)
	}
	var msg notify.Message
	switch {
	case ev.Lead != nil:
		msg = LeadMessage(agent, ev.Lead)
	case ev.Visit != nil:
		msg = n.visitMessage(ctx, agent, ev.Visit)
	default:
		return nil
	}
	return n.dispatcher.Dispatch(ctx, msg)
}

func recipient(agent *models.User) notify.Recipient {
	return notify.Recipient{
		UserID:         agent.ID,
		Name:           agent.ShortName(),
		Email:          agent.Email,
		TelegramChatID: agent.TelegramChatID,
	}
}

// LeadMessage builds the "New Lead Assigned" notification for agent.
func LeadMessage(agent *models.User, lead *models.Lead) notify.Message {
	rows := []field{
		{"Name", lead.Name},
		{"Email", lead.Email},
		{"Phone", lead.Phone},
		{"Status", lead.Status},
		{"Source", lead.Source},
		{"Interest", orDefault(lead.Interest, "Not specified")},
		{"Company", orDefault(lead.Company, "Not specified")},
	}
	text, body := render(agent.ShortName(), "A new lead has been assigned to you.", rows)
	return notify.Message{
		Kind:      notify.KindLeadAssigned,
		Recipient: recipient(agent),
		Subject:   "New Lead Assigned: " + lead.Name,
		Text:      text,
		HTML:      body,
		Fields:    fieldMap(agent, rows),
	}
}

func (n *Notifier) visitMessage(ctx context.Context, agent *models.User, v *models.SiteVisit) notify.Message {
	snap := *v
	if snap.PropertyDetails == nil && n.properties != nil {
		if p, err := n.properties.GetByID(ctx, snap.PropertyID); err == nil {
			snap.PropertyDetails = p.Brief()
		}
	}
	if snap.ClientDetails == nil && snap.ClientUserID != nil {
		if u, err := n.users.GetByID(ctx, *snap.ClientUserID); err == nil {
			snap.ClientDetails = u.Brief()
		}
	}
	return SiteVisitMessage(agent, &snap)
}

// SiteVisitMessage builds the "New Site Visit Scheduled" notification for agent.
// v should carry PropertyDetails and, for linked clients, ClientDetails.
func SiteVisitMessage(agent *models.User, v *models.SiteVisit) notify.Message {
	prop := v.PropertyDetails
	if prop == nil {
		prop = &models.PropertyBrief{ID: v.PropertyID}
	}
	rows := []field{
		{"Property", prop.Title},
		{"Location", prop.Location},
		{"Type", prop.PropertyType},
		{"Client", v.ClientDisplayName()},
		{"Client Phone", orDefault(v.ClientPhone(), "Not provided")},
		{"Date", v.Date.Format("January 02, 2006")},
		{"Time", v.Time},
		{"Status", titleCase(string(v.Status))},
	}
	text, body := render(agent.ShortName(), "A new site visit has been scheduled for you.", rows)
	return notify.Message{
		Kind:      notify.KindSiteVisitAssigned,
		Recipient: recipient(agent),
		Subject:   "New Site Visit Scheduled: " + prop.Title,
		Text:      text,
		HTML:      body,
		Fields:    fieldMap(agent, rows),
	}
}

type field struct {
	label string
	value string
}

func fieldMap(agent *models.User, rows []field) map[string]string {
	m := make(map[string]string, len(rows)+1)
	m["agent_name"] = agent.ShortName()
	for _, r := range rows {
		m[strings.ToLower(strings.ReplaceAll(r.label, " ", "_"))] = r.value
	}
	return m
}

func render(name, intro string, rows []field) (string, string) {
	var text, body strings.Builder
	fmt.Fprintf(&text, "Hello %s,\n\n%s\n\n", name, intro)
	fmt.Fprintf(&body, "<p>Hello %s,</p>\n<p>%s</p>\n<table>\n", html.EscapeString(name), html.EscapeString(intro))
	for _, r := range rows {
		fmt.Fprintf(&text, "%s: %s\n", r.label, r.value)
		fmt.Fprintf(&body, "<tr><th align=\"left\">%s</th><td>%s</td></tr>\n",
			html.EscapeString(r.label), html.EscapeString(r.value))
	}
	body.WriteString("</table>\n")
	return text.String(), body.String()
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

// titleCase upper-cases the first letter of every run of letters: "no_show" -> "No_Show".
func titleCase(s string) string {
	out := []rune(s)
	prevLetter := false
	for i, r := range out {
		if unicode.IsLetter(r) {
			if !prevLetter {
				out[i] = unicode.ToUpper(r)
			} else {
				out[i] = unicode.ToLower(r)
			}
			prevLetter = true
		} else {
			prevLetter = false
		}
	}
	return string(out)
}
