package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/AgentOS/appmanager/internal/domain/lifecycle"
)

// RuntimeEvent accepts an event pushed by the runtime manager
func (h *Handlers) RuntimeEvent(c *gin.Context) {
	var ev lifecycle.RuntimeEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.apps.OnRuntimeEvent(ev); err != nil {
		h.fail(c, "runtimeEvent", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"success": true})
}

// WindowEvent accepts an event pushed by the window manager
func (h *Handlers) WindowEvent(c *gin.Context) {
	var ev lifecycle.WindowEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.apps.OnWindowEvent(ev); err != nil {
		h.fail(c, "windowEvent", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"success": true})
}
