package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"estatecrm/internal/authz"
	"estatecrm/internal/handlers"
	"estatecrm/internal/middleware"
)

// Handlers bundles everything SetupRoutes mounts.
type Handlers struct {
	Auth       *handlers.AuthHandler
	Users      *handlers.UserHandler
	Properties *handlers.PropertyHandler
	Leads      *handlers.LeadHandler
	Exchange   *handlers.ExchangeHandler
	Reports    *handlers.ReportHandler
	SiteVisits *handlers.SiteVisitHandler
}

func SetupRoutes(r *gin.Engine, tokens middleware.TokenParser, h Handlers) *gin.Engine {
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	api := r.Group("/api")

	// ---- public
	api.POST("/auth/login", h.Auth.Login)
	api.POST("/auth/refresh", h.Auth.Refresh)
	api.POST("/auth/password/reset", h.Auth.RequestPasswordReset)
	api.POST("/auth/password/reset/confirm", h.Auth.ConfirmPasswordReset)

	// ---- protected
	api.Use(middleware.AuthMiddleware(tokens))
	reports := middleware.RequireCapability(authz.LeadReports)

	// AUTH
	auth := api.Group("/auth")
	{
		auth.POST("/logout", h.Auth.Logout)
		auth.POST("/password/change", h.Auth.ChangePassword)
		auth.GET("/user", h.Auth.Me)
		auth.PUT("/user", h.Auth.UpdateMe)
	}

	// USERS
	users := api.Group("/users")
	{
		users.GET("", h.Users.ListUsers)
		users.POST("", middleware.RequireCapability(authz.ManageUsers), h.Users.CreateUser)
		users.GET("/:id", h.Users.GetUserByID)
	}

	// PROPERTIES
	props := api.Group("/properties")
	{
		props.GET("", h.Properties.List)
		props.GET("/:id", h.Properties.GetByID)
		props.POST("", reports, h.Properties.Create)
		props.PUT("/:id", reports, h.Properties.Update)
		props.DELETE("/:id", reports, h.Properties.Delete)
	}

	// LEADS
	leads := api.Group("/leads")
	{
		leads.GET("", h.Leads.List)
		leads.POST("", h.Leads.Create)

		leads.POST("/import", reports, h.Exchange.Import)
		leads.GET("/export", reports, h.Exchange.Export)
		leads.GET("/dashboard_stats", reports, h.Reports.DashboardStats)
		leads.GET("/team_performance", reports, h.Reports.TeamPerformance)
		leads.GET("/revenue_overview", reports, h.Reports.RevenueOverview)
		leads.GET("/builder_performance", reports, h.Reports.BuilderPerformance)

		leads.GET("/:id", h.Leads.GetByID)
		leads.PUT("/:id", h.Leads.Update)
		leads.PATCH("/:id", h.Leads.Patch)
		leads.DELETE("/:id", h.Leads.Delete)
		leads.POST("/:id/assign", h.Leads.Assign)
	}

	// SITE VISITS
	visits := api.Group("/site-visits")
	{
		visits.GET("", h.SiteVisits.List)
		visits.POST("", h.SiteVisits.Create)
		visits.GET("/upcoming", h.SiteVisits.Upcoming)
		visits.GET("/summary_counts", h.SiteVisits.SummaryCounts)
		visits.GET("/:id", h.SiteVisits.GetByID)
		visits.PUT("/:id", h.SiteVisits.Update)
		visits.PATCH("/:id", h.SiteVisits.Patch)
		visits.DELETE("/:id", h.SiteVisits.Delete)
		visits.POST("/:id/assign", h.SiteVisits.Assign)
	}

	return r
}
