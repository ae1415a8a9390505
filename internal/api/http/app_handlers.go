package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/appmanager/internal/domain/lifecycle"
)

// TargetStateRequest moves an instance toward a state
type TargetStateRequest struct {
	TargetState lifecycle.State `json:"targetState" binding:"required"`
	Intent      string          `json:"intent"`
}

// IntentRequest carries a navigation intent
type IntentRequest struct {
	Intent string `json:"intent" binding:"required"`
}

// CloseRequest closes an app
type CloseRequest struct {
	Reason lifecycle.CloseReason `json:"reason" binding:"required"`
}

// StateChangeCompleteRequest acknowledges a state change request
type StateChangeCompleteRequest struct {
	StateChangedID uint32 `json:"stateChangedId"`
	Success        bool   `json:"success"`
}

// SpawnApp loads or re-targets an app
func (h *Handlers) SpawnApp(c *gin.Context) {
	var req lifecycle.SpawnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	instanceID, reason, err := h.apps.SpawnApp(c.Request.Context(), req)
	if err != nil {
		h.logger.Debug("Spawn failed", zap.String("appId", req.AppID), zap.Error(err))
		c.JSON(statusFor(err), gin.H{
			"success":       false,
			"appInstanceId": instanceID,
			"errorReason":   reason,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"appInstanceId": instanceID,
	})
}

// SetTargetState moves an instance toward a target state
func (h *Handlers) SetTargetState(c *gin.Context) {
	var req TargetStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.apps.SetTargetAppState(c.Request.Context(), c.Param("id"), req.TargetState, req.Intent); err != nil {
		h.fail(c, "setTargetState", err)
		return
	}
	ok(c)
}

// UnloadApp terminates an instance gracefully
func (h *Handlers) UnloadApp(c *gin.Context) {
	if err := h.apps.UnloadApp(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, "unload", err)
		return
	}
	ok(c)
}

// KillApp terminates an instance immediately
func (h *Handlers) KillApp(c *gin.Context) {
	if err := h.apps.KillApp(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, "kill", err)
		return
	}
	ok(c)
}

// SendIntent forwards an intent to an ACTIVE instance
func (h *Handlers) SendIntent(c *gin.Context) {
	var req IntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.apps.SendIntentToActiveApp(c.Param("id"), req.Intent); err != nil {
		h.fail(c, "intent", err)
		return
	}
	ok(c)
}

// CloseApp kills an app and optionally relaunches it
func (h *Handlers) CloseApp(c *gin.Context) {
	var req CloseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.apps.CloseApp(c.Request.Context(), c.Param("appId"), req.Reason); err != nil {
		h.fail(c, "close", err)
		return
	}
	ok(c)
}

// AppReady records that an app finished initialising
func (h *Handlers) AppReady(c *gin.Context) {
	if err := h.apps.AppReady(c.Param("appId")); err != nil {
		h.fail(c, "appReady", err)
		return
	}
	ok(c)
}

// StateChangeComplete records an app's acknowledgement of a state change
func (h *Handlers) StateChangeComplete(c *gin.Context) {
	var req StateChangeCompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.apps.StateChangeComplete(c.Param("appId"), req.StateChangedID, req.Success); err != nil {
		h.fail(c, "stateChangeComplete", err)
		return
	}
	ok(c)
}

// IsAppLoaded reports whether an app has a context
func (h *Handlers) IsAppLoaded(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"loaded":  h.apps.IsAppLoaded(c.Param("appId")),
	})
}

// GetApp returns one loaded app
func (h *Handlers) GetApp(c *gin.Context) {
	info, found := h.apps.GetApp(c.Param("appId"))
	if !found {
		c.JSON(http.StatusNotFound, gin.H{
			"success":     false,
			"errorReason": "app not loaded",
		})
		return
	}
	c.JSON(http.StatusOK, info)
}

// ListApps returns every loaded app
func (h *Handlers) ListApps(c *gin.Context) {
	apps := h.apps.GetLoadedApps()
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"apps":    apps,
		"count":   len(apps),
	})
}
