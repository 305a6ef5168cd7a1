package models

import "time"

// Property is a listing or builder project that leads and site visits point at.
type Property struct {
	ID           int       `json:"id"`
	Title        string    `json:"title" binding:"required,max=255"`
	Location     string    `json:"location" binding:"max=255"`
	PropertyType string    `json:"property_type" binding:"max=100"`
	Price        string    `json:"price" binding:"max=100"`
	ContactName  string    `json:"contact_name" binding:"max=255"`
	ContactPhone string    `json:"contact_phone" binding:"max=20"`
	CreatedAt    time.Time `json:"created_at"`
}

type PropertyBrief struct {
	ID           int    `json:"id"`
	Title        string `json:"title"`
	Location     string `json:"location"`
	PropertyType string `json:"property_type"`
	ContactName  string `json:"contact_name"`
	ContactPhone string `json:"contact_phone"`
}

func (p *Property) Brief() *PropertyBrief {
	if p == nil {
		return nil
	}
	return &PropertyBrief{
		ID:           p.ID,
		Title:        p.Title,
		Location:     p.Location,
		PropertyType: p.PropertyType,
		ContactName:  p.ContactName,
		ContactPhone: p.ContactPhone,
	}
}
