package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"estatecrm/internal/models"
	"estatecrm/internal/services"
)

type UserHandler struct {
	service services.UserService
	pages   Pagination
}

func NewUserHandler(service services.UserService, pages Pagination) *UserHandler {
	return &UserHandler{service: service, pages: pages}
}

// @Summary  Create a user (admin)
// @Tags     Users
// @Security BearerAuth
// @Accept   json
// @Produce  json
// @Param    user  body      models.UserCreateInput  true  "New user"
// @Success  201   {object}  models.User
// @Failure  400   {object}  map[string]interface{}
// @Failure  403   {object}  map[string]string
// @Router   /api/users [post]
func (h *UserHandler) CreateUser(c *gin.Context) {
	var in models.UserCreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		bindError(c, err)
		return
	}
	user, err := h.service.CreateUser(c.Request.Context(), actorFrom(c), in)
	if err != nil {
		respondError(c, "users.create", err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// @Summary  List users
// @Tags     Users
// @Security BearerAuth
// @Produce  json
// @Param    page       query     int  false  "Page number"
// @Param    page_size  query     int  false  "Page size (max 100)"
// @Success  200        {object}  Page
// @Router   /api/users [get]
func (h *UserHandler) ListUsers(c *gin.Context) {
	page, size, err := h.pages.pageParams(c)
	if err != nil {
		invalidPage(c)
		return
	}
	users, total, err := h.service.ListUsers(c.Request.Context(), size, (page-1)*size)
	if err != nil {
		respondError(c, "users.list", err)
		return
	}
	if users == nil {
		users = []*models.User{}
	}
	respondPage(c, page, size, total, users)
}

// @Summary  Get a user (self or admin)
// @Tags     Users
// @Security BearerAuth
// @Produce  json
// @Param    id   path      int  true  "User ID"
// @Success  200  {object}  models.User
// @Failure  403  {object}  map[string]string
// @Failure  404  {object}  map[string]string
// @Router   /api/users/{id} [get]
func (h *UserHandler) GetUserByID(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	user, err := h.service.GetUser(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		respondError(c, "users.get", err)
		return
	}
	c.JSON(http.StatusOK, user)
}
