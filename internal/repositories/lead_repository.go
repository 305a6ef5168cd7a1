package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"estatecrm/internal/models"
)

// LeadWriteHook observes a lead write inside its transaction. previous is nil on create.
type LeadWriteHook func(previous, next *models.Lead)

// LeadMutation edits a copy of the row locked for the current write. Returning
// an error aborts the write and rolls the transaction back.
type LeadMutation func(locked *models.Lead) error

// LeadCheck inspects the locked row before an assignment.
type LeadCheck func(locked *models.Lead) error

type LeadRepository interface {
	Create(ctx context.Context, lead *models.Lead, hook LeadWriteHook) error
	Update(ctx context.Context, id int, mutate LeadMutation, hook LeadWriteHook) (*models.Lead, error)
	Assign(ctx context.Context, id int, agentID *int, check LeadCheck, hook LeadWriteHook) error
	GetByID(ctx context.Context, id int) (*models.Lead, error)
	Delete(ctx context.Context, id int) error
	List(ctx context.Context, f models.LeadFilter) ([]*models.Lead, error)
	Count(ctx context.Context, f models.LeadFilter) (int, error)
}

type leadRepository struct {
	db *sql.DB
}

func NewLeadRepository(db *sql.DB) LeadRepository {
	return &leadRepository{db: db}
}

const leadBaseColumns = `
	l.id, l.name, l.email, l.phone, l.company, l.position, l.status, l.source,
	l.interest, l.priority, l.budget, l.timeline, l.requirements, l.notes, l.tags,
	l.property_id, l.assigned_to, l.created_by, l.created_at, l.updated_at, l.last_activity`

const leadSelect = `
	SELECT` + leadBaseColumns + `,
		a.id, a.username, a.first_name, a.last_name, a.email, a.phone_number, a.role,
		c.id, c.username, c.first_name, c.last_name, c.email, c.phone_number, c.role,
		p.id, p.title, p.location, p.property_type, p.contact_name, p.contact_phone
	FROM leads l
	LEFT JOIN users a ON a.id = l.assigned_to
	LEFT JOIN users c ON c.id = l.created_by
	LEFT JOIN properties p ON p.id = l.property_id`

type leadNulls struct {
	propertyID   sql.NullInt64
	assignedTo   sql.NullInt64
	createdBy    sql.NullInt64
	lastActivity sql.NullTime
}

func leadBaseDest(l *models.Lead, n *leadNulls) []any {
	return []any{
		&l.ID, &l.Name, &l.Email, &l.Phone, &l.Company, &l.Position, &l.Status, &l.Source,
		&l.Interest, &l.Priority, &l.Budget, &l.Timeline, &l.Requirements, &l.Notes, &l.Tags,
		&n.propertyID, &n.assignedTo, &n.createdBy, &l.CreatedAt, &l.UpdatedAt, &n.lastActivity,
	}
}

func (n *leadNulls) apply(l *models.Lead) {
	l.PropertyID = nullIntPtr(n.propertyID)
	l.AssignedTo = nullIntPtr(n.assignedTo)
	l.CreatedBy = nullIntPtr(n.createdBy)
	l.LastActivity = nullTimePtr(n.lastActivity)
}

func scanLead(row rowScanner) (*models.Lead, error) {
	l := &models.Lead{}
	var (
		n                 leadNulls
		assignee, creator briefColumns
		prop              propertyBriefColumns
	)
	dest := leadBaseDest(l, &n)
	dest = append(dest, assignee.dest()...)
	dest = append(dest, creator.dest()...)
	dest = append(dest, prop.dest()...)
	if err := row.Scan(dest...); err != nil {
		return nil, translate(err)
	}
	n.apply(l)
	l.AssignedToDetail = assignee.brief()
	l.CreatedByDetail = creator.brief()
	l.PropertyDetail = prop.brief()
	return l, nil
}

// lockLead reads the persisted row under FOR UPDATE so the hook sees the state
// immediately before this write.
func lockLead(ctx context.Context, tx *sql.Tx, id int) (*models.Lead, error) {
	l := &models.Lead{}
	var n leadNulls
	err := tx.QueryRowContext(ctx, `SELECT`+leadBaseColumns+` FROM leads l WHERE l.id=$1 FOR UPDATE`, id).
		Scan(leadBaseDest(l, &n)...)
	if err != nil {
		return nil, translate(err)
	}
	n.apply(l)
	return l, nil
}

func (r *leadRepository) Create(ctx context.Context, lead *models.Lead, hook LeadWriteHook) error {
	const q = `
		INSERT INTO leads (
			name, email, phone, company, position, status, source, interest, priority,
			budget, timeline, requirements, notes, tags, property_id, assigned_to, created_by
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		RETURNING id, created_at, updated_at
	`
	if lead.Tags == nil {
		lead.Tags = pq.StringArray{}
	}
	err := r.db.QueryRowContext(ctx, q,
		lead.Name, lead.Email, lead.Phone, lead.Company, lead.Position,
		lead.Status, lead.Source, lead.Interest, lead.Priority,
		lead.Budget, lead.Timeline, lead.Requirements, lead.Notes, lead.Tags,
		intArg(lead.PropertyID), intArg(lead.AssignedTo), intArg(lead.CreatedBy),
	).Scan(&lead.ID, &lead.CreatedAt, &lead.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert lead: %w", translate(err))
	}
	if hook != nil {
		hook(nil, lead)
	}
	return nil
}

// Update locks the row, lets mutate edit a copy of it and writes the result.
// created_by is never touched.
func (r *leadRepository) Update(ctx context.Context, id int, mutate LeadMutation, hook LeadWriteHook) (*models.Lead, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	prev, err := lockLead(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	lead := *prev
	lead.Tags = append(pq.StringArray{}, prev.Tags...)
	if mutate != nil {
		if err := mutate(&lead); err != nil {
			return nil, err
		}
	}
	lead.ID = prev.ID
	lead.CreatedBy = prev.CreatedBy
	lead.CreatedAt = prev.CreatedAt

	const q = `
		UPDATE leads
		SET name=$1, email=$2, phone=$3, company=$4, position=$5, status=$6, source=$7,
		    interest=$8, priority=$9, budget=$10, timeline=$11, requirements=$12, notes=$13,
		    tags=$14, property_id=$15, assigned_to=$16, updated_at=NOW(), last_activity=NOW()
		WHERE id=$17
		RETURNING updated_at
	`
	if lead.Tags == nil {
		lead.Tags = pq.StringArray{}
	}
	err = tx.QueryRowContext(ctx, q,
		lead.Name, lead.Email, lead.Phone, lead.Company, lead.Position,
		lead.Status, lead.Source, lead.Interest, lead.Priority,
		lead.Budget, lead.Timeline, lead.Requirements, lead.Notes, lead.Tags,
		intArg(lead.PropertyID), intArg(lead.AssignedTo), id,
	).Scan(&lead.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("update lead %d: %w", id, translate(err))
	}
	touched := lead.UpdatedAt
	lead.LastActivity = &touched

	if hook != nil {
		hook(prev, &lead)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &lead, nil
}

func (r *leadRepository) Assign(ctx context.Context, id int, agentID *int, check LeadCheck, hook LeadWriteHook) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	prev, err := lockLead(ctx, tx, id)
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
	next.AssignedTo = agentID

	err = tx.QueryRowContext(ctx, `
		UPDATE leads SET assigned_to=$1, updated_at=NOW() WHERE id=$2 RETURNING updated_at
	`, intArg(agentID), id).Scan(&next.UpdatedAt)
	if err != nil {
		return fmt.Errorf("assign lead %d: %w", id, translate(err))
	}
	if hook != nil {
		hook(prev, &next)
	}
	return tx.Commit()
}

func (r *leadRepository) GetByID(ctx context.Context, id int) (*models.Lead, error) {
	return scanLead(r.db.QueryRowContext(ctx, leadSelect+` WHERE l.id=$1`, id))
}

func (r *leadRepository) Delete(ctx context.Context, id int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM leads WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

var leadOrderings = map[string]string{
	"created_at": "l.created_at",
	"updated_at": "l.updated_at",
	"name":       "l.name",
	"status":     "l.status",
	"priority":   "l.priority",
}

// leadOrderBy accepts "field" or "-field"; anything unknown falls back to -created_at.
func leadOrderBy(ordering string) string {
	dir := "ASC"
	field := ordering
	if strings.HasPrefix(field, "-") {
		dir = "DESC"
		field = field[1:]
	}
	col, ok := leadOrderings[field]
	if !ok {
		return "l.created_at DESC, l.id DESC"
	}
	return col + " " + dir + ", l.id " + dir
}

func leadWhere(f models.LeadFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Scope != nil {
		add("l.assigned_to = $%d", *f.Scope)
	}
	if f.Status != "" {
		add("l.status = $%d", f.Status)
	}
	if f.Source != "" {
		add("l.source = $%d", f.Source)
	}
	if f.Priority != "" {
		add("l.priority = $%d", f.Priority)
	}
	if f.AssignedTo != nil {
		add("l.assigned_to = $%d", *f.AssignedTo)
	}
	if f.CreatedBy != nil {
		add("l.created_by = $%d", *f.CreatedBy)
	}
	if f.PropertyID != nil {
		add("l.property_id = $%d", *f.PropertyID)
	}
	if f.CreatedFrom != nil {
		add("l.created_at >= $%d", *f.CreatedFrom)
	}
	if f.UpdatedFrom != nil {
		add("l.updated_at >= $%d", *f.UpdatedFrom)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		args = append(args, "%"+s+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf(
			"(l.name ILIKE $%[1]d OR l.email ILIKE $%[1]d OR l.phone ILIKE $%[1]d OR l.company ILIKE $%[1]d OR l.interest ILIKE $%[1]d)", n))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List returns leads matching f. A zero Limit returns every match.
func (r *leadRepository) List(ctx context.Context, f models.LeadFilter) ([]*models.Lead, error) {
	where, args := leadWhere(f)
	q := leadSelect + where + " ORDER BY " + leadOrderBy(f.Ordering)
	if f.Limit > 0 {
		q += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	var out []*models.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *leadRepository) Count(ctx context.Context, f models.LeadFilter) (int, error) {
	where, args := leadWhere(f)
	var c int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM leads l`+where, args...).Scan(&c)
	return c, err
}
