package audit

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/surveillance-engine/internal/handler"
	"github.com/jwalitptl/surveillance-engine/internal/model"
	"github.com/jwalitptl/surveillance-engine/internal/service/audit"
	apperrors "github.com/jwalitptl/surveillance-engine/pkg/errors"
)

type Handler struct {
	svc *audit.Service
}

func NewHandler(svc *audit.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/audit-logs", h.List)
}

func (h *Handler) List(c *gin.Context) {
	filters := &model.AuditFilters{
		Actor:      c.Query("actor"),
		EntityType: c.Query("entity_type"),
		EntityID:   c.Query("entity_id"),
	}

	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			handler.Fail(c, apperrors.BadRequest("invalid from timestamp", err))
			return
		}
		filters.From = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			handler.Fail(c, apperrors.BadRequest("invalid to timestamp", err))
			return
		}
		filters.To = t
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			handler.Fail(c, apperrors.BadRequest("invalid limit", err))
			return
		}
		filters.Limit = n
	}

	logs, err := h.svc.List(c.Request.Context(), filters)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, logs)
}
