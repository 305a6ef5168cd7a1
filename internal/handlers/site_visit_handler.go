package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"estatecrm/internal/models"
	"estatecrm/internal/services"
)

type SiteVisitHandler struct {
	service services.SiteVisitService
	pages   Pagination
}

func NewSiteVisitHandler(service services.SiteVisitService, pages Pagination) *SiteVisitHandler {
	return &SiteVisitHandler{service: service, pages: pages}
}

// @Summary  List site visits
// @Tags     SiteVisits
// @Security BearerAuth
// @Produce  json
// @Param    status     query     string  false  "Status"
// @Param    agent      query     int     false  "Agent ID"
// @Param    page       query     int     false  "Page number"
// @Param    page_size  query     int     false  "Page size (max 100)"
// @Success  200        {object}  Page
// @Router   /api/site-visits [get]
func (h *SiteVisitHandler) List(c *gin.Context) {
	page, size, err := h.pages.pageParams(c)
	if err != nil {
		invalidPage(c)
		return
	}
	f := models.SiteVisitFilter{
		Status: strings.TrimSpace(c.Query("status")),
		Limit:  size,
		Offset: (page - 1) * size,
	}
	if f.AgentID, err = optionalInt(c, "agent"); err != nil {
		respondError(c, "site_visits.list", err)
		return
	}
	visits, total, err := h.service.List(c.Request.Context(), actorFrom(c), f)
	if err != nil {
		respondError(c, "site_visits.list", err)
		return
	}
	if visits == nil {
		visits = []*models.SiteVisit{}
	}
	respondPage(c, page, size, total, visits)
}

// @Summary      Schedule a site visit
// @Description  The client is linked by phone or email, or a client account is created from client_name
// @Tags         SiteVisits
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        visit  body      models.SiteVisitInput  true  "Visit"
// @Success      201    {object}  models.SiteVisit
// @Failure      400    {object}  map[string]interface{}
// @Router       /api/site-visits [post]
func (h *SiteVisitHandler) Create(c *gin.Context) {
	var in models.SiteVisitInput
	if err := c.ShouldBindJSON(&in); err != nil {
		bindError(c, err)
		return
	}
	v, err := h.service.Create(c.Request.Context(), actorFrom(c), in)
	if err != nil {
		respondError(c, "site_visits.create", err)
		return
	}
	c.JSON(http.StatusCreated, v)
}

// @Summary  Get a site visit
// @Tags     SiteVisits
// @Security BearerAuth
// @Produce  json
// @Param    id   path      int  true  "Visit ID"
// @Success  200  {object}  models.SiteVisit
// @Router   /api/site-visits/{id} [get]
func (h *SiteVisitHandler) GetByID(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	v, err := h.service.Get(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		respondError(c, "site_visits.get", err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// @Summary  Replace a site visit
// @Tags     SiteVisits
// @Security BearerAuth
// @Accept   json
// @Produce  json
// @Param    id     path      int                    true  "Visit ID"
// @Param    visit  body      models.SiteVisitInput  true  "Visit"
// @Success  200    {object}  models.SiteVisit
// @Router   /api/site-visits/{id} [put]
func (h *SiteVisitHandler) Update(c *gin.Context) {
	h.update(c, false)
}

// @Summary  Partially update a site visit
// @Tags     SiteVisits
// @Security BearerAuth
// @Accept   json
// @Produce  json
// @Param    id     path      int                    true  "Visit ID"
// @Param    visit  body      models.SiteVisitInput  true  "Fields to change"
// @Success  200    {object}  models.SiteVisit
// @Router   /api/site-visits/{id} [patch]
func (h *SiteVisitHandler) Patch(c *gin.Context) {
	h.update(c, true)
}

func (h *SiteVisitHandler) update(c *gin.Context, partial bool) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var in models.SiteVisitInput
	if err := c.ShouldBindJSON(&in); err != nil {
		bindError(c, err)
		return
	}
	v, err := h.service.Update(c.Request.Context(), actorFrom(c), id, in, partial)
	if err != nil {
		respondError(c, "site_visits.update", err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// @Summary  Assign or unassign the visit agent
// @Tags     SiteVisits
// @Security BearerAuth
// @Accept   json
// @Produce  json
// @Param    id    path      int            true  "Visit ID"
// @Param    body  body      assignRequest  true  "Agent (null to unassign)"
// @Success  200   {object}  models.SiteVisit
// @Router   /api/site-visits/{id}/assign [post]
func (h *SiteVisitHandler) Assign(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	v, err := h.service.Assign(c.Request.Context(), actorFrom(c), id, req.AgentID)
	if err != nil {
		respondError(c, "site_visits.assign", err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// @Summary  Delete a site visit
// @Tags     SiteVisits
// @Security BearerAuth
// @Param    id  path  int  true  "Visit ID"
// @Success  204
// @Router   /api/site-visits/{id} [delete]
func (h *SiteVisitHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), actorFrom(c), id); err != nil {
		respondError(c, "site_visits.delete", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary  Next five scheduled or confirmed visits
// @Tags     SiteVisits
// @Security BearerAuth
// @Produce  json
// @Success  200  {array}  models.SiteVisit
// @Router   /api/site-visits/upcoming [get]
func (h *SiteVisitHandler) Upcoming(c *gin.Context) {
	visits, err := h.service.Upcoming(c.Request.Context(), actorFrom(c))
	if err != nil {
		respondError(c, "site_visits.upcoming", err)
		return
	}
	if visits == nil {
		visits = []*models.SiteVisit{}
	}
	c.JSON(http.StatusOK, visits)
}

// @Summary  Total, pending and upcoming visit counts
// @Tags     SiteVisits
// @Security BearerAuth
// @Produce  json
// @Success  200  {object}  models.SiteVisitSummary
// @Router   /api/site-visits/summary_counts [get]
func (h *SiteVisitHandler) SummaryCounts(c *gin.Context) {
	s, err := h.service.Summary(c.Request.Context(), actorFrom(c))
	if err != nil {
		respondError(c, "site_visits.summary_counts", err)
		return
	}
	c.JSON(http.StatusOK, s)
}
