package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"estatecrm/internal/models"
)

type PropertyRepository interface {
	Create(ctx context.Context, p *models.Property) error
	GetByID(ctx context.Context, id int) (*models.Property, error)
	Update(ctx context.Context, p *models.Property) error
	Delete(ctx context.Context, id int) error
	// List returns every property when limit is 0.
	List(ctx context.Context, limit, offset int) ([]*models.Property, error)
	Count(ctx context.Context) (int, error)
}

type propertyRepository struct {
	db *sql.DB
}

func NewPropertyRepository(db *sql.DB) PropertyRepository {
	return &propertyRepository{db: db}
}

const propertyColumns = `id, title, location, property_type, price, contact_name, contact_phone, created_at`

func scanProperty(row rowScanner) (*models.Property, error) {
	p := &models.Property{}
	err := row.Scan(&p.ID, &p.Title, &p.Location, &p.PropertyType, &p.Price,
		&p.ContactName, &p.ContactPhone, &p.CreatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return p, nil
}

func (r *propertyRepository) Create(ctx context.Context, p *models.Property) error {
	const q = `
		INSERT INTO properties (title, location, property_type, price, contact_name, contact_phone)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, q, p.Title, p.Location, p.PropertyType, p.Price,
		p.ContactName, p.ContactPhone).Scan(&p.ID, &p.CreatedAt)
	return translate(err)
}

func (r *propertyRepository) GetByID(ctx context.Context, id int) (*models.Property, error) {
	return scanProperty(r.db.QueryRowContext(ctx, `SELECT `+propertyColumns+` FROM properties WHERE id=$1`, id))
}

func (r *propertyRepository) Update(ctx context.Context, p *models.Property) error {
	const q = `
		UPDATE properties
		SET title=$1, location=$2, property_type=$3, price=$4, contact_name=$5, contact_phone=$6
		WHERE id=$7
	`
	res, err := r.db.ExecContext(ctx, q, p.Title, p.Location, p.PropertyType, p.Price,
		p.ContactName, p.ContactPhone, p.ID)
	if err != nil {
		return translate(err)
	}
	return requireAffected(res)
}

func (r *propertyRepository) Delete(ctx context.Context, id int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM properties WHERE id=$1`, id)
	if err != nil {
		return translate(err)
	}
	return requireAffected(res)
}

func (r *propertyRepository) List(ctx context.Context, limit, offset int) ([]*models.Property, error) {
	q := `SELECT ` + propertyColumns + ` FROM properties ORDER BY id`
	var args []any
	if limit > 0 {
		q += ` LIMIT $1 OFFSET $2`
		args = append(args, limit, offset)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list properties: %w", err)
	}
	defer rows.Close()

	var out []*models.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *propertyRepository) Count(ctx context.Context) (int, error) {
	var c int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM properties`).Scan(&c)
	return c, err
}

// propertyBriefColumns scans the nullable side of a LEFT JOIN on properties.
type propertyBriefColumns struct {
	id           sql.NullInt64
	title        sql.NullString
	location     sql.NullString
	propertyType sql.NullString
	contactName  sql.NullString
	contactPhone sql.NullString
}

func (p *propertyBriefColumns) dest() []any {
	return []any{&p.id, &p.title, &p.location, &p.propertyType, &p.contactName, &p.contactPhone}
}

func (p *propertyBriefColumns) brief() *models.PropertyBrief {
	if !p.id.Valid {
		return nil
	}
	return &models.PropertyBrief{
		ID:           int(p.id.Int64),
		Title:        p.title.String,
		Location:     p.location.String,
		PropertyType: p.propertyType.String,
		ContactName:  p.contactName.String,
		ContactPhone: p.contactPhone.String,
	}
}
