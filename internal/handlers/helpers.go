package handlers

import (
	"errors"
	"log"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"estatecrm/internal/authz"
	"estatecrm/internal/middleware"
	"estatecrm/internal/services"
)

// Pagination holds the page-size policy for list endpoints.
type Pagination struct {
	DefaultSize int
	MaxSize     int
}

func (p Pagination) withDefaults() Pagination {
	if p.DefaultSize <= 0 {
		p.DefaultSize = 10
	}
	if p.MaxSize <= 0 {
		p.MaxSize = 100
	}
	return p
}

// Page is the paginated collection envelope.
type Page struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  any     `json:"results"`
}

var errInvalidPage = errors.New("invalid page")

func invalidPage(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "Invalid page."})
}

// pageParams reads page and page_size. page_size is clamped to MaxSize.
func (p Pagination) pageParams(c *gin.Context) (page, size int, err error) {
	p = p.withDefaults()
	page = 1
	if raw := c.Query("page"); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			return 0, 0, errInvalidPage
		}
	}
	size = p.DefaultSize
	if raw := c.Query("page_size"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			size = n
		}
	}
	if size > p.MaxSize {
		size = p.MaxSize
	}
	// page*size must fit in an int
	if page > math.MaxInt/size {
		return 0, 0, errInvalidPage
	}
	return page, size, nil
}

// respondPage writes the envelope; a page past the end is a 404 unless the
// collection is empty and page is 1.
func respondPage(c *gin.Context, page, size, count int, results any) {
	if page > 1 && (page-1)*size >= count {
		invalidPage(c)
		return
	}
	out := Page{Count: count, Results: results}
	if page*size < count {
		out.Next = pageLink(c, page+1)
	}
	if page > 1 {
		out.Previous = pageLink(c, page-1)
	}
	c.JSON(http.StatusOK, out)
}

func pageLink(c *gin.Context, page int) *string {
	u := url.URL{
		Scheme: "http",
		Host:   c.Request.Host,
		Path:   c.Request.URL.Path,
	}
	if c.Request.TLS != nil || strings.EqualFold(c.GetHeader("X-Forwarded-Proto"), "https") {
		u.Scheme = "https"
	}
	q := c.Request.URL.Query()
	if page == 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(page))
	}
	u.RawQuery = q.Encode()
	s := u.String()
	return &s
}

func actorFrom(c *gin.Context) authz.Actor {
	a, _ := middleware.ActorFrom(c)
	return a
}

func pathID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found."})
		return 0, false
	}
	return id, true
}

// optionalInt parses an integer query parameter; empty means nil.
func optionalInt(c *gin.Context, key string) (*int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, &services.ValidationError{Fields: map[string][]string{key: {"Enter a whole number."}}}
	}
	return &n, nil
}

func bindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// respondError maps service errors onto HTTP statuses. Unknown errors are
// logged with the request ID and reported generically.
func respondError(c *gin.Context, op string, err error) {
	var verr *services.ValidationError
	var bad *services.BadFileError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input.", "fields": verr.Fields})
	case errors.As(err, &bad):
		c.JSON(http.StatusBadRequest, gin.H{"error": bad.Error()})
	case errors.Is(err, services.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials."})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "You do not have permission to perform this action."})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found."})
	case errors.Is(err, services.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "Record already exists."})
	default:
		log.Printf("[http][%s] request_id=%s internal error: %v", op, middleware.RequestIDFrom(c), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error."})
	}
}
