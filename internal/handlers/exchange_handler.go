package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"estatecrm/internal/services"
)

const defaultMaxUpload = 10 << 20

type ExchangeHandler struct {
	service   services.ExchangeService
	maxUpload int64
}

func NewExchangeHandler(service services.ExchangeService, maxUpload int64) *ExchangeHandler {
	if maxUpload <= 0 {
		maxUpload = defaultMaxUpload
	}
	return &ExchangeHandler{service: service, maxUpload: maxUpload}
}

// @Summary      Import leads from a file
// @Description  Accepts .csv, .xlsx or .xls with name, email and phone columns. Each row is saved on its own.
// @Tags         Leads
// @Security     BearerAuth
// @Accept       multipart/form-data
// @Produce      json
// @Param        file  formData  file  true  "Lead file"
// @Success      201   {object}  services.ImportResult
// @Failure      400   {object}  map[string]interface{}
// @Router       /api/leads/import [post]
func (h *ExchangeHandler) Import(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	header, err := c.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("File exceeds %d bytes.", h.maxUpload)})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file provided"})
		return
	}
	f, err := header.Open()
	if err != nil {
		respondError(c, "leads.import", err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		respondError(c, "leads.import", err)
		return
	}

	res, err := h.service.Import(c.Request.Context(), actorFrom(c), header.Filename, data)
	if err != nil {
		respondError(c, "leads.import", err)
		return
	}
	status := http.StatusCreated
	if res.Failed() {
		status = http.StatusBadRequest
	}
	c.JSON(status, res)
}

// @Summary      Export leads
// @Description  Same filters as the list endpoint; agents export only their own leads
// @Tags         Leads
// @Security     BearerAuth
// @Produce      octet-stream
// @Param        format  query  string  false  "csv (default), xlsx or pdf"
// @Success      200
// @Router       /api/leads/export [get]
func (h *ExchangeHandler) Export(c *gin.Context) {
	format, err := services.ParseExportFormat(c.Query("format"))
	if err != nil {
		respondError(c, "leads.export", err)
		return
	}
	f, err := leadFilter(c)
	if err != nil {
		respondError(c, "leads.export", err)
		return
	}

	var buf bytes.Buffer
	if err := h.service.Export(c.Request.Context(), actorFrom(c), f, format, &buf); err != nil {
		respondError(c, "leads.export", err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, format.Filename()))
	c.Data(http.StatusOK, format.ContentType(), buf.Bytes())
}
