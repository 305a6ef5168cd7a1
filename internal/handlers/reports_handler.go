package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"estatecrm/internal/analytics"
	"estatecrm/internal/services"
)

type ReportHandler struct {
	Service services.ReportService
}

func NewReportHandler(service services.ReportService) *ReportHandler {
	return &ReportHandler{Service: service}
}

// @Summary      Dashboard statistics
// @Description  Totals, month-over-month counts, distributions and a daily series over the caller's leads
// @Tags         Reports
// @Security     BearerAuth
// @Produce      json
// @Param        time_range  query     string  false  "week (default), month or year"
// @Param        status      query     string  false  "Status"
// @Param        source      query     string  false  "Source"
// @Param        search      query     string  false  "Search in name, email, phone and company"
// @Success      200         {object}  analytics.Dashboard
// @Router       /api/leads/dashboard_stats [get]
func (h *ReportHandler) DashboardStats(c *gin.Context) {
	f, err := leadFilter(c)
	if err != nil {
		respondError(c, "reports.dashboard_stats", err)
		return
	}
	data, err := h.Service.DashboardStats(c.Request.Context(), actorFrom(c), c.DefaultQuery("time_range", "week"), f)
	if err != nil {
		respondError(c, "reports.dashboard_stats", err)
		return
	}
	c.JSON(http.StatusOK, data)
}

// @Summary  Per-agent performance
// @Tags     Reports
// @Security BearerAuth
// @Produce  json
// @Success  200  {array}  analytics.AgentRow
// @Router   /api/leads/team_performance [get]
func (h *ReportHandler) TeamPerformance(c *gin.Context) {
	rows, err := h.Service.TeamPerformance(c.Request.Context(), actorFrom(c))
	if err != nil {
		respondError(c, "reports.team_performance", err)
		return
	}
	if rows == nil {
		rows = []analytics.AgentRow{}
	}
	c.JSON(http.StatusOK, rows)
}

// @Summary  Revenue and commission buckets
// @Tags     Reports
// @Security BearerAuth
// @Produce  json
// @Param    time_range  query    string  false  "this_month, 3_months, 6_months or year (default)"
// @Success  200         {array}  analytics.RevenuePoint
// @Router   /api/leads/revenue_overview [get]
func (h *ReportHandler) RevenueOverview(c *gin.Context) {
	points, err := h.Service.RevenueOverview(c.Request.Context(), actorFrom(c), c.DefaultQuery("time_range", "year"))
	if err != nil {
		respondError(c, "reports.revenue_overview", err)
		return
	}
	if points == nil {
		points = []analytics.RevenuePoint{}
	}
	c.JSON(http.StatusOK, points)
}

// @Summary  Per-property lead, visit and conversion counts
// @Tags     Reports
// @Security BearerAuth
// @Produce  json
// @Success  200  {array}  analytics.BuilderRow
// @Router   /api/leads/builder_performance [get]
func (h *ReportHandler) BuilderPerformance(c *gin.Context) {
	rows, err := h.Service.BuilderPerformance(c.Request.Context(), actorFrom(c))
	if err != nil {
		respondError(c, "reports.builder_performance", err)
		return
	}
	if rows == nil {
		rows = []analytics.BuilderRow{}
	}
	c.JSON(http.StatusOK, rows)
}
