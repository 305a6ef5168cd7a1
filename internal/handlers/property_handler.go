package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"estatecrm/internal/models"
	"estatecrm/internal/services"
)

type PropertyHandler struct {
	service services.PropertyService
	pages   Pagination
}

func NewPropertyHandler(service services.PropertyService, pages Pagination) *PropertyHandler {
	return &PropertyHandler{service: service, pages: pages}
}

// @Summary  List properties
// @Tags     Properties
// @Security BearerAuth
// @Produce  json
// @Param    page       query     int  false  "Page number"
// @Param    page_size  query     int  false  "Page size (max 100)"
// @Success  200        {object}  Page
// @Router   /api/properties [get]
func (h *PropertyHandler) List(c *gin.Context) {
	page, size, err := h.pages.pageParams(c)
	if err != nil {
		invalidPage(c)
		return
	}
	items, total, err := h.service.List(c.Request.Context(), size, (page-1)*size)
	if err != nil {
		respondError(c, "properties.list", err)
		return
	}
	if items == nil {
		items = []*models.Property{}
	}
	respondPage(c, page, size, total, items)
}

// @Summary  Get a property
// @Tags     Properties
// @Security BearerAuth
// @Produce  json
// @Param    id   path      int  true  "Property ID"
// @Success  200  {object}  models.Property
// @Failure  404  {object}  map[string]string
// @Router   /api/properties/{id} [get]
func (h *PropertyHandler) GetByID(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	p, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, "properties.get", err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// @Summary  Create a property
// @Tags     Properties
// @Security BearerAuth
// @Accept   json
// @Produce  json
// @Param    property  body      models.Property  true  "Property"
// @Success  201       {object}  models.Property
// @Router   /api/properties [post]
func (h *PropertyHandler) Create(c *gin.Context) {
	var p models.Property
	if err := c.ShouldBindJSON(&p); err != nil {
		bindError(c, err)
		return
	}
	if err := h.service.Create(c.Request.Context(), actorFrom(c), &p); err != nil {
		respondError(c, "properties.create", err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// @Summary  Update a property
// @Tags     Properties
// @Security BearerAuth
// @Accept   json
// @Produce  json
// @Param    id        path      int              true  "Property ID"
// @Param    property  body      models.Property  true  "Property"
// @Success  200       {object}  models.Property
// @Router   /api/properties/{id} [put]
func (h *PropertyHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var p models.Property
	if err := c.ShouldBindJSON(&p); err != nil {
		bindError(c, err)
		return
	}
	p.ID = id
	if err := h.service.Update(c.Request.Context(), actorFrom(c), &p); err != nil {
		respondError(c, "properties.update", err)
		return
	}
	updated, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, "properties.update", err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// @Summary  Delete a property
// @Tags     Properties
// @Security BearerAuth
// @Param    id  path  int  true  "Property ID"
// @Success  204
// @Router   /api/properties/{id} [delete]
func (h *PropertyHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), actorFrom(c), id); err != nil {
		respondError(c, "properties.delete", err)
		return
	}
	c.Status(http.StatusNoContent)
}
