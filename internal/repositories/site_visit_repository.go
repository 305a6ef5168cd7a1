package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"estatecrm/internal/models"
)

// SiteVisitWriteHook observes a visit write inside its transaction. previous is nil on create.
type SiteVisitWriteHook func(previous, next *models.SiteVisit)

// SiteVisitMutation edits a copy of the row locked for the current write.
// Returning an error aborts the write.
type SiteVisitMutation func(locked *models.SiteVisit) error

// SiteVisitCheck inspects the locked row before an assignment.
type SiteVisitCheck func(locked *models.SiteVisit) error

type SiteVisitRepository interface {
	Create(ctx context.Context, v *models.SiteVisit, hook SiteVisitWriteHook) error
	Update(ctx context.Context, id int, mutate SiteVisitMutation, hook SiteVisitWriteHook) (*models.SiteVisit, error)
	Assign(ctx context.Context, id int, agentID *int, check SiteVisitCheck, hook SiteVisitWriteHook) error
	GetByID(ctx context.Context, id int) (*models.SiteVisit, error)
	Delete(ctx context.Context, id int) error
	List(ctx context.Context, f models.SiteVisitFilter) ([]*models.SiteVisit, error)
	Count(ctx context.Context, f models.SiteVisitFilter) (int, error)
	Summary(ctx context.Context, f models.SiteVisitFilter, today models.Date) (models.SiteVisitSummary, error)
}

type siteVisitRepository struct {
	db *sql.DB
}

func NewSiteVisitRepository(db *sql.DB) SiteVisitRepository {
	return &siteVisitRepository{db: db}
}

const visitBaseColumns = `
	v.id, v.property_id, v.agent_id, v.client_user_id, v.client_name_manual,
	v.client_phone_manual, v.date, v.time, v.status, v.feedback, v.created_at, v.updated_at`

const visitSelect = `
	SELECT` + visitBaseColumns + `,
		p.id, p.title, p.location, p.property_type, p.contact_name, p.contact_phone,
		a.id, a.username, a.first_name, a.last_name, a.email, a.phone_number, a.role,
		c.id, c.username, c.first_name, c.last_name, c.email, c.phone_number, c.role
	FROM site_visits v
	LEFT JOIN properties p ON p.id = v.property_id
	LEFT JOIN users a ON a.id = v.agent_id
	LEFT JOIN users c ON c.id = v.client_user_id`

type visitNulls struct {
	agentID     sql.NullInt64
	clientID    sql.NullInt64
	clientName  sql.NullString
	clientPhone sql.NullString
	feedback    sql.NullString
}

func visitBaseDest(v *models.SiteVisit, n *visitNulls) []any {
	return []any{
		&v.ID, &v.PropertyID, &n.agentID, &n.clientID, &n.clientName,
		&n.clientPhone, &v.Date, &v.Time, &v.Status, &n.feedback, &v.CreatedAt, &v.UpdatedAt,
	}
}

func (n *visitNulls) apply(v *models.SiteVisit) {
	v.AgentID = nullIntPtr(n.agentID)
	v.ClientUserID = nullIntPtr(n.clientID)
	v.ClientNameManual = nullStringPtr(n.clientName)
	v.ClientPhoneManual = nullStringPtr(n.clientPhone)
	v.Feedback = nullStringPtr(n.feedback)
}

func scanVisit(row rowScanner) (*models.SiteVisit, error) {
	v := &models.SiteVisit{}
	var (
		n             visitNulls
		prop          propertyBriefColumns
		agent, client briefColumns
	)
	dest := visitBaseDest(v, &n)
	dest = append(dest, prop.dest()...)
	dest = append(dest, agent.dest()...)
	dest = append(dest, client.dest()...)
	if err := row.Scan(dest...); err != nil {
		return nil, translate(err)
	}
	n.apply(v)
	v.PropertyDetails = prop.brief()
	v.AgentDetails = agent.brief()
	v.ClientDetails = client.brief()
	return v, nil
}

func lockVisit(ctx context.Context, tx *sql.Tx, id int) (*models.SiteVisit, error) {
	v := &models.SiteVisit{}
	var n visitNulls
	err := tx.QueryRowContext(ctx, `SELECT`+visitBaseColumns+` FROM site_visits v WHERE v.id=$1 FOR UPDATE`, id).
		Scan(visitBaseDest(v, &n)...)
	if err != nil {
		return nil, translate(err)
	}
	n.apply(v)
	return v, nil
}

func (r *siteVisitRepository) Create(ctx context.Context, v *models.SiteVisit, hook SiteVisitWriteHook) error {
	const q = `
		INSERT INTO site_visits (
			property_id, agent_id, client_user_id, client_name_manual, client_phone_manual,
			date, time, status, feedback
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, q,
		v.PropertyID, intArg(v.AgentID), intArg(v.ClientUserID),
		stringArg(v.ClientNameManual), stringArg(v.ClientPhoneManual),
		v.Date, v.Time, v.Status, stringArg(v.Feedback),
	).Scan(&v.ID, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert site visit: %w", translate(err))
	}
	if hook != nil {
		hook(nil, v)
	}
	return nil
}

// Update locks the row and writes what mutate made of it. The client linkage
// is fixed at creation and never rewritten.
func (r *siteVisitRepository) Update(ctx context.Context, id int, mutate SiteVisitMutation, hook SiteVisitWriteHook) (*models.SiteVisit, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	prev, err := lockVisit(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	v := *prev
	if mutate != nil {
		if err := mutate(&v); err != nil {
			return nil, err
		}
	}
	v.ID = prev.ID
	v.ClientUserID = prev.ClientUserID
	v.ClientNameManual = prev.ClientNameManual
	v.ClientPhoneManual = prev.ClientPhoneManual
	v.CreatedAt = prev.CreatedAt

	const q = `
		UPDATE site_visits
		SET property_id=$1, agent_id=$2, date=$3, time=$4, status=$5, feedback=$6, updated_at=NOW()
		WHERE id=$7
		RETURNING updated_at
	`
	err = tx.QueryRowContext(ctx, q,
		v.PropertyID, intArg(v.AgentID), v.Date, v.Time, v.Status, stringArg(v.Feedback), id,
	).Scan(&v.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("update site visit %d: %w", id, translate(err))
	}

	if hook != nil {
		hook(prev, &v)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *siteVisitRepository) Assign(ctx context.Context, id int, agentID *int, check SiteVisitCheck, hook SiteVisitWriteHook) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	prev, err := lockVisit(ctx, tx, id)
	if err != nil {
		return err
	}
	if check != nil {
		locked := *prev
		if err := check(&locked); err != nil {
			return err
		}
	}
	next := *prev
	next.AgentID = agentID

	err = tx.QueryRowContext(ctx, `
		UPDATE site_visits SET agent_id=$1, updated_at=NOW() WHERE id=$2 RETURNING updated_at
	`, intArg(agentID), id).Scan(&next.UpdatedAt)
	if err != nil {
		return fmt.Errorf("assign site visit %d: %w", id, translate(err))
	}
	if hook != nil {
		hook(prev, &next)
	}
	return tx.Commit()
}

func (r *siteVisitRepository) GetByID(ctx context.Context, id int) (*models.SiteVisit, error) {
	return scanVisit(r.db.QueryRowContext(ctx, visitSelect+` WHERE v.id=$1`, id))
}

func (r *siteVisitRepository) Delete(ctx context.Context, id int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM site_visits WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func visitWhere(f models.SiteVisitFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.AgentScope != nil {
		add("v.agent_id = $%d", *f.AgentScope)
	}
	if f.Status != "" {
		add("v.status = $%d", f.Status)
	}
	if f.AgentID != nil {
		add("v.agent_id = $%d", *f.AgentID)
	}
	if f.DateFrom != nil {
		add("v.date >= $%d", *f.DateFrom)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		add("v.status = ANY($%d)", pq.Array(statuses))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List orders by -date, -time unless f.Ascending. A zero Limit returns every match.
func (r *siteVisitRepository) List(ctx context.Context, f models.SiteVisitFilter) ([]*models.SiteVisit, error) {
	where, args := visitWhere(f)
	order := " ORDER BY v.date DESC, v.time DESC, v.id DESC"
	if f.Ascending {
		order = " ORDER BY v.date ASC, v.time ASC, v.id ASC"
	}
	q := visitSelect + where + order
	if f.Limit > 0 {
		q += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list site visits: %w", err)
	}
	defer rows.Close()

	var out []*models.SiteVisit
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *siteVisitRepository) Count(ctx context.Context, f models.SiteVisitFilter) (int, error) {
	where, args := visitWhere(f)
	var c int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM site_visits v`+where, args...).Scan(&c)
	return c, err
}

func (r *siteVisitRepository) Summary(ctx context.Context, f models.SiteVisitFilter, today models.Date) (models.SiteVisitSummary, error) {
	where, args := visitWhere(f)
	args = append(args, today)
	q := fmt.Sprintf(`
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE v.status IN ('scheduled', 'confirmed')),
			COUNT(*) FILTER (WHERE v.date >= $%d)
		FROM site_visits v`, len(args)) + where

	var s models.SiteVisitSummary
	err := r.db.QueryRowContext(ctx, q, args...).Scan(&s.TotalVisits, &s.PendingVisits, &s.UpcomingVisits)
	return s, err
}
