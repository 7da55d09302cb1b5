package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gocrm-io/gocrm-ce/internal/massaction"
	"github.com/gocrm-io/gocrm-ce/internal/middleware"
)

type massActionService interface {
	Submit(ctx context.Context, actor massaction.Actor, entityType, actionName string, params massaction.Params, data json.RawMessage, idle bool) (*massaction.SubmitResult, error)
	GetStatusData(ctx context.Context, actor massaction.Actor, id string) (*massaction.StatusData, error)
	Subscribe(ctx context.Context, actor massaction.Actor, id string) error
}

// MassActionHandler exposes bulk record operations.
type MassActionHandler struct {
	service massActionService
}

func NewMassActionHandler(service massActionService) *MassActionHandler {
	return &MassActionHandler{service: service}
}

func actorFromContext(c *gin.Context) massaction.Actor {
	return massaction.Actor{
		UserID: c.GetString(middleware.ContextUserID),
		Role:   c.GetString(middleware.ContextUserRole),
	}
}

// Submit handles POST /api/v1/:entityType/mass-action. With ?idle=true the
// action is queued and only its record id returned.
func (h *MassActionHandler) Submit(c *gin.Context) {
	var req struct {
		Action string          `json:"action" binding:"required"`
		IDs    []string        `json:"ids"`
		Where  json.RawMessage `json:"where"`
		Data   json.RawMessage `json:"data"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	var params massaction.Params
	if len(req.IDs) > 0 {
		params = massaction.IDsParams(req.IDs...)
	} else {
		params = massaction.FilterParams(req.Where)
	}
	idle := c.Query("idle") == "true"

	result, err := h.service.Submit(c.Request.Context(), actorFromContext(c), c.Param("entityType"), req.Action, params, req.Data, idle)
	if err != nil {
		h.writeError(c, err)
		return
	}

	if result.ID != "" {
		c.JSON(http.StatusOK, gin.H{"id": result.ID})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": result.Result.Count, "ids": result.Result.IDs})
}

// Status handles GET /api/v1/mass-actions/:id/status.
func (h *MassActionHandler) Status(c *gin.Context) {
	data, err := h.service.GetStatusData(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

// Subscribe handles POST /api/v1/mass-actions/:id/subscribe.
func (h *MassActionHandler) Subscribe(c *gin.Context) {
	if err := h.service.Subscribe(c.Request.Context(), actorFromContext(c), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscribed": true})
}

func (h *MassActionHandler) writeError(c *gin.Context, err error) {
	if errors.Is(err, massaction.ErrForbidden) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		return
	}
	// validation and unknown-action errors carry no sensitive detail
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
