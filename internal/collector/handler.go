package collector

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"ktrace/internal/logger"
	apperrors "ktrace/pkg/errors"
	"ktrace/pkg/models"
)

// MaxBodyBytes bounds a single POST /collect payload.
const MaxBodyBytes = 10 << 20

type Handler struct {
	service *Service
	log     logger.Logger
}

func NewHandler(service *Service, log logger.Logger) *Handler {
	if log == nil {
		log = logger.NopLogger()
	}
	return &Handler{service: service, log: log}
}

func (h *Handler) RegisterRoutes(router gin.IRouter) {
	router.POST("/collect", h.Collect)
	router.GET("/data", h.List)
	router.DELETE("/data", h.Clear)
}

// Collect accepts a JSON array of events or a single event object.
func (h *Handler) Collect(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes))
	if err != nil {
		h.respondError(c, apperrors.ErrValidation.WithCause(err).WithDetail("message", "request body too large or unreadable"))
		return
	}

	events, err := decodeEvents(body)
	if err != nil {
		h.respondError(c, apperrors.ErrValidation.WithCause(err).WithDetail("message", "invalid JSON payload"))
		return
	}

	records, err := h.service.Ingest(c.Request.Context(), events)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "data received",
		"count":   len(records),
	})
}

func (h *Handler) List(c *gin.Context) {
	records, err := h.service.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

func (h *Handler) Clear(c *gin.Context) {
	if err := h.service.Clear(c.Request.Context()); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "data cleared",
	})
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status := apperrors.ToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.ErrorwCtx(c.Request.Context(), "Request failed", "error", err, "path", c.Request.URL.Path)
	}
	_ = c.Error(err)
	c.JSON(status, apperrors.ToErrorResponse(err))
}

func decodeEvents(body []byte) ([]models.Event, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var e models.Event
		if err := json.Unmarshal(trimmed, &e); err != nil {
			return nil, err
		}
		return []models.Event{e}, nil
	}

	var events []models.Event
	if err := json.Unmarshal(trimmed, &events); err != nil {
		return nil, err
	}
	return events, nil
}
