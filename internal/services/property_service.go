package services

import (
	"context"
	"strings"

	"estatecrm/internal/authz"
	"estatecrm/internal/models"
	"estatecrm/internal/repositories"
)

type PropertyService interface {
	Create(ctx context.Context, actor authz.Actor, p *models.Property) error
	Update(ctx context.Context, actor authz.Actor, p *models.Property) error
	Delete(ctx context.Context, actor authz.Actor, id int) error
	GetByID(ctx context.Context, id int) (*models.Property, error)
	List(ctx context.Context, limit, offset int) ([]*models.Property, int, error)
}

type propertyService struct {
	repo repositories.PropertyRepository
}

func NewPropertyService(repo repositories.PropertyRepository) PropertyService {
	return &propertyService{repo: repo}
}

func (s *propertyService) Create(ctx context.Context, actor authz.Actor, p *models.Property) error {
	if !authz.Can(actor, authz.LeadReports) {
		return ErrForbidden
	}
	if strings.TrimSpace(p.Title) == "" {
		return fieldError("title", "This field is required.")
	}
	return storeError(s.repo.Create(ctx, p))
}

func (s *propertyService) Update(ctx context.Context, actor authz.Actor, p *models.Property) error {
	if !authz.Can(actor, authz.LeadReports) {
		return ErrForbidden
	}
	if strings.TrimSpace(p.Title) == "" {
		return fieldError("title", "This field is required.")
	}
	return storeError(s.repo.Update(ctx, p))
}

func (s *propertyService) Delete(ctx context.Context, actor authz.Actor, id int) error {
	if !authz.Can(actor, authz.LeadReports) {
		return ErrForbidden
	}
	return storeError(s.repo.Delete(ctx, id))
}

func (s *propertyService) GetByID(ctx context.Context, id int) (*models.Property, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err)
	}
	return p, nil
}

func (s *propertyService) List(ctx context.Context, limit, offset int) ([]*models.Property, int, error) {
	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	items, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
