package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"estatecrm/internal/analytics"
	"estatecrm/internal/authz"
	"estatecrm/internal/cache"
	"estatecrm/internal/metrics"
	"estatecrm/internal/models"
	"estatecrm/internal/repositories"
)

type ReportService interface {
	TeamPerformance(ctx context.Context, actor authz.Actor) ([]analytics.AgentRow, error)
	BuilderPerformance(ctx context.Context, actor authz.Actor) ([]analytics.BuilderRow, error)
	RevenueOverview(ctx context.Context, actor authz.Actor, timeRange string) ([]analytics.RevenuePoint, error)
	// DashboardStats reports over the leads the actor can see that match f.
	DashboardStats(ctx context.Context, actor authz.Actor, timeRange string, f models.LeadFilter) (*analytics.Dashboard, error)
}

type reportService struct {
	leads      repositories.LeadRepository
	users      repositories.UserRepository
	properties repositories.PropertyRepository
	cache      *cache.JSON
	loc        *time.Location
	now        func() time.Time
}

// NewReportService builds the report service. A nil cache disables caching.
func NewReportService(leads repositories.LeadRepository, users repositories.UserRepository, properties repositories.PropertyRepository, c *cache.JSON, loc *time.Location) ReportService {
	if loc == nil {
		loc = time.UTC
	}
	return &reportService{leads: leads, users: users, properties: properties, cache: c, loc: loc, now: time.Now}
}

var errReportFailed = errors.New("report could not be computed")

func (s *reportService) TeamPerformance(ctx context.Context, actor authz.Actor) ([]analytics.AgentRow, error) {
	if !authz.Can(actor, authz.LeadReports) {
		return nil, ErrForbidden
	}
	var rows []analytics.AgentRow
	err := s.cached(ctx, "team_performance", "team_performance", &rows, func() error {
		agents, err := s.users.ListByRoleFold(ctx, models.RoleAgent)
		if err != nil {
			return err
		}
		leads, err := s.leads.List(ctx, models.LeadFilter{})
		if err != nil {
			return err
		}
		rows = analytics.TeamPerformance(agents, leads)
		return nil
	})
	return rows, err
}

func (s *reportService) BuilderPerformance(ctx context.Context, actor authz.Actor) ([]analytics.BuilderRow, error) {
	if !authz.Can(actor, authz.LeadReports) {
		return nil, ErrForbidden
	}
	var rows []analytics.BuilderRow
	err := s.cached(ctx, "builder_performance", "builder_performance", &rows, func() error {
		props, err := s.properties.List(ctx, 0, 0)
		if err != nil {
			return err
		}
		leads, err := s.leads.List(ctx, models.LeadFilter{})
		if err != nil {
			return err
		}
		rows = analytics.BuilderPerformance(props, leads)
		return nil
	})
	return rows, err
}

func (s *reportService) RevenueOverview(ctx context.Context, actor authz.Actor, timeRange string) ([]analytics.RevenuePoint, error) {
	if !authz.Can(actor, authz.LeadReports) {
		return nil, ErrForbidden
	}
	now := s.now().In(s.loc)
	start, _ := analytics.RevenueWindow(timeRange, now)
	key := fmt.Sprintf("revenue_overview:%s:%s", rangeKey(timeRange), now.Format(models.DateLayout))

	var points []analytics.RevenuePoint
	err := s.cached(ctx, "revenue_overview", key, &points, func() error {
		leads, err := s.leads.List(ctx, models.LeadFilter{
			Status:      models.LeadStatusConverted,
			UpdatedFrom: &start,
		})
		if err != nil {
			return err
		}
		points = analytics.RevenueOverview(timeRange, leads, now)
		return nil
	})
	return points, err
}

func (s *reportService) DashboardStats(ctx context.Context, actor authz.Actor, timeRange string, f models.LeadFilter) (*analytics.Dashboard, error) {
	if !authz.Can(actor, authz.LeadReports) {
		return nil, ErrForbidden
	}
	f.Scope = authz.LeadScope(actor)
	f.Limit, f.Offset = 0, 0
	var out analytics.Dashboard
	err := s.safely("dashboard_stats", func() error {
		leads, err := s.leads.List(ctx, f)
		if err != nil {
			return err
		}
		out = analytics.DashboardStats(leads, timeRange, s.now().In(s.loc))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// cached serves dst from the cache or fills it with compute and stores it.
// Cache failures only cost a recomputation.
func (s *reportService) cached(ctx context.Context, report, key string, dst any, compute func() error) error {
	if s.cache != nil {
		err := s.cache.Load(ctx, key, dst)
		switch {
		case err == nil:
			metrics.RecordCache(report, "hit")
			return nil
		case errors.Is(err, cache.ErrMiss):
			metrics.RecordCache(report, "miss")
		default:
			metrics.RecordCache(report, "error")
			log.Printf("[reports][%s] cache read: %v", report, err)
		}
	}
	if err := s.safely(report, compute); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.Save(ctx, key, dst); err != nil {
			log.Printf("[reports][%s] cache write: %v", report, err)
		}
	}
	return nil
}

// safely turns a failure inside a report into errReportFailed, keeping the
// detail in the server log.
func (s *reportService) safely(report string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[reports][%s] panic: %v", report, r)
			err = errReportFailed
		}
	}()
	if err := fn(); err != nil {
		log.Printf("[reports][%s] failed: %v", report, err)
		return errReportFailed
	}
	return nil
}

func rangeKey(timeRange string) string {
	switch timeRange {
	case analytics.RangeThisMonth, analytics.RangeThreeMonths, analytics.RangeSixMonths:
		return timeRange
	}
	return analytics.RangeYear
}
