package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"estatecrm/internal/models"
	"estatecrm/internal/services"
)

type LeadHandler struct {
	service services.LeadService
	pages   Pagination
}

func NewLeadHandler(service services.LeadService, pages Pagination) *LeadHandler {
	return &LeadHandler{service: service, pages: pages}
}

// assignRequest is the body of the assign actions; a null agent_id unassigns.
type assignRequest struct {
	AgentID *int `json:"agent_id"`
}

// leadFilter reads the collection filters shared by list and export.
func leadFilter(c *gin.Context) (models.LeadFilter, error) {
	f := models.LeadFilter{
		Status:   strings.TrimSpace(c.Query("status")),
		Source:   strings.TrimSpace(c.Query("source")),
		Priority: strings.TrimSpace(c.Query("priority")),
		Search:   strings.TrimSpace(c.Query("search")),
		Ordering: strings.TrimSpace(c.Query("ordering")),
	}
	var err error
	if f.AssignedTo, err = optionalInt(c, "assigned_to"); err != nil {
		return f, err
	}
	if f.CreatedBy, err = optionalInt(c, "created_by"); err != nil {
		return f, err
	}
	if f.PropertyID, err = optionalInt(c, "property"); err != nil {
		return f, err
	}
	return f, nil
}

// @Summary      List leads
// @Description  Agents only see leads assigned to them
// @Tags         Leads
// @Security     BearerAuth
// @Produce      json
// @Param        status       query     string  false  "Status"
// @Param        source       query     string  false  "Source"
// @Param        priority     query     string  false  "Priority"
// @Param        assigned_to  query     int     false  "Assigned agent ID"
// @Param        created_by   query     int     false  "Creator ID"
// @Param        search       query     string  false  "Search name, email, phone, company, interest"
// @Param        ordering     query     string  false  "created_at, updated_at, name, status, priority; prefix - for desc"
// @Param        page         query     int     false  "Page number"
// @Param        page_size    query     int     false  "Page size (max 100)"
// @Success      200          {object}  Page
// @Router       /api/leads [get]
func (h *LeadHandler) List(c *gin.Context) {
	page, size, err := h.pages.pageParams(c)
	if err != nil {
		invalidPage(c)
		return
	}
	f, err := leadFilter(c)
	if err != nil {
		respondError(c, "leads.list", err)
		return
	}
	f.Limit, f.Offset = size, (page-1)*size

	leads, total, err := h.service.List(c.Request.Context(), actorFrom(c), f)
	if err != nil {
		respondError(c, "leads.list", err)
		return
	}
	if leads == nil {
		leads = []*models.Lead{}
	}
	respondPage(c, page, size, total, leads)
}

// @Summary  Create a lead
// @Tags     Leads
// @Security BearerAuth
// @Accept   json
// @Produce  json
// @Param    lead  body      models.LeadInput  true  "Lead"
// @Success  201   {object}  models.Lead
// @Failure  400   {object}  map[string]interface{}
// @Router   /api/leads [post]
func (h *LeadHandler) Create(c *gin.Context) {
	var in models.LeadInput
	if err := c.ShouldBindJSON(&in); err != nil {
		bindError(c, err)
		return
	}
	lead, err := h.service.Create(c.Request.Context(), actorFrom(c), in)
	if err != nil {
		respondError(c, "leads.create", err)
		return
	}
	c.JSON(http.StatusCreated, lead)
}

// @Summary  Get a lead
// @Tags     Leads
// @Security BearerAuth
// @Produce  json
// @Param    id   path      int  true  "Lead ID"
// @Success  200  {object}  models.Lead
// @Failure  403  {object}  map[string]string
// @Failure  404  {object}  map[string]string
// @Router   /api/leads/{id} [get]
func (h *LeadHandler) GetByID(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	lead, err := h.service.Get(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		respondError(c, "leads.get", err)
		return
	}
	c.JSON(http.StatusOK, lead)
}

// @Summary  Replace a lead
// @Tags     Leads
// @Security BearerAuth
// @Accept   json
// @Produce  json
// @Param    id    path      int               true  "Lead ID"
// @Param    lead  body      models.LeadInput  true  "Lead"
// @Success  200   {object}  models.Lead
// @Router   /api/leads/{id} [put]
func (h *LeadHandler) Update(c *gin.Context) {
	h.update(c, false)
}

// @Summary  Partially update a lead
// @Tags     Leads
// @Security BearerAuth
// @Accept   json
// @Produce  json
// @Param    id    path      int               true  "Lead ID"
// @Param    lead  body      models.LeadInput  true  "Fields to change"
// @Success  200   {object}  models.Lead
// @Router   /api/leads/{id} [patch]
func (h *LeadHandler) Patch(c *gin.Context) {
	h.update(c, true)
}

func (h *LeadHandler) update(c *gin.Context, partial bool) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var in models.LeadInput
	if err := c.ShouldBindJSON(&in); err != nil {
		bindError(c, err)
		return
	}
	lead, err := h.service.Update(c.Request.Context(), actorFrom(c), id, in, partial)
	if err != nil {
		respondError(c, "leads.update", err)
		return
	}
	c.JSON(http.StatusOK, lead)
}

// @Summary  Assign or unassign a lead
// @Tags     Leads
// @Security BearerAuth
// @Accept   json
// @Produce  json
// @Param    id    path      int            true  "Lead ID"
// @Param    body  body      assignRequest  true  "Agent (null to unassign)"
// @Success  200   {object}  models.Lead
// @Router   /api/leads/{id}/assign [post]
func (h *LeadHandler) Assign(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	lead, err := h.service.Assign(c.Request.Context(), actorFrom(c), id, req.AgentID)
	if err != nil {
		respondError(c, "leads.assign", err)
		return
	}
	c.JSON(http.StatusOK, lead)
}

// @Summary  Delete a lead
// @Tags     Leads
// @Security BearerAuth
// @Param    id  path  int  true  "Lead ID"
// @Success  204
// @Router   /api/leads/{id} [delete]
func (h *LeadHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), actorFrom(c), id); err != nil {
		respondError(c, "leads.delete", err)
		return
	}
	c.Status(http.StatusNoContent)
}
