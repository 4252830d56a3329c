package surveillance

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/surveillance-engine/internal/handler"
	"github.com/jwalitptl/surveillance-engine/internal/model"
	"github.com/jwalitptl/surveillance-engine/internal/service/surveillance"
	apperrors "github.com/jwalitptl/surveillance-engine/pkg/errors"
)

type Handler struct {
	svc *surveillance.Service
}

func NewHandler(svc *surveillance.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	g := r.Group("/surveillance")
	{
		g.POST("/expansions", h.Expand)
		g.POST("/completions", h.LinkCompletion)
		g.GET("/schedules", h.ListSchedules)
		g.GET("/schedules/:id", h.GetSchedule)
		g.PATCH("/schedules/:id", h.UpdateSchedule)
		g.GET("/episodes/:id/schedules", h.ListByEpisode)
		g.GET("/summary", h.Summary)
	}
}

// Expand receives a treatment completion trigger and materialises the
// applicable protocol into schedule items.
func (h *Handler) Expand(c *gin.Context) {
	var evt model.TreatmentCompletedEvent
	if err := c.ShouldBindJSON(&evt); err != nil {
		handler.Fail(c, apperrors.BadRequest("invalid expansion request", err))
		return
	}

	result, err := h.svc.Expand(c.Request.Context(), &evt, handler.Meta(c))
	if err != nil {
		handler.Fail(c, err)
		return
	}
	if result.Deferred {
		c.JSON(http.StatusAccepted, handler.NewSuccessResponse(result))
		return
	}
	handler.Created(c, result)
}

// LinkCompletion reconciles a recorded investigation against open
// schedule items.
func (h *Handler) LinkCompletion(c *gin.Context) {
	var evt model.InvestigationRecordedEvent
	if err := c.ShouldBindJSON(&evt); err != nil {
		handler.Fail(c, apperrors.BadRequest("invalid completion request", err))
		return
	}

	result, err := h.svc.LinkCompletion(c.Request.Context(), &evt, handler.Meta(c))
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, result)
}

func (h *Handler) GetSchedule(c *gin.Context) {
	item, err := h.svc.GetSchedule(c.Request.Context(), c.Param("id"))
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, item)
}

func (h *Handler) ListSchedules(c *gin.Context) {
	filters, err := parseFilters(c)
	if err != nil {
		handler.Fail(c, apperrors.BadRequest("invalid schedule filters", err))
		return
	}

	items, err := h.svc.ListSchedules(c.Request.Context(), filters)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, items)
}

func (h *Handler) ListByEpisode(c *gin.Context) {
	episodeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.Fail(c, apperrors.BadRequest("invalid episode id", err))
		return
	}

	items, err := h.svc.ListByEpisode(c.Request.Context(), episodeID)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, items)
}

func (h *Handler) UpdateSchedule(c *gin.Context) {
	var upd model.SurveillanceScheduleUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		handler.Fail(c, apperrors.BadRequest("invalid schedule update", err))
		return
	}

	item, err := h.svc.ApplyUpdate(c.Request.Context(), c.Param("id"), &upd, handler.Meta(c))
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, item)
}

func (h *Handler) Summary(c *gin.Context) {
	summary, err := h.svc.Summary(c.Request.Context(), time.Now())
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, summary)
}

func parseFilters(c *gin.Context) (*model.ScheduleFilters, error) {
	filters := &model.ScheduleFilters{
		SurveillanceType: c.Query("surveillance_type"),
		Status:           model.ScheduleStatus(c.Query("status")),
	}

	if v := c.Query("patient_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, err
		}
		filters.PatientID = id
	}
	if v := c.Query("episode_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, err
		}
		filters.EpisodeID = id
	}
	if v := c.Query("due_before"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, err
		}
		filters.DueBefore = t
	}
	if v := c.Query("due_after"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, err
		}
		filters.DueAfter = t
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, err
		}
		filters.Limit = n
	}
	return filters, nil
}
