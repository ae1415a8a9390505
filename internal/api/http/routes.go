package http

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes attaches every handler to router
func (h *Handlers) RegisterRoutes(router gin.IRouter) {
	router.GET("/health", h.Health)

	// Downloads
	downloads := router.Group("/downloads")
	downloads.POST("", h.StartDownload)
	downloads.GET("/storage", h.StorageDetails)
	downloads.DELETE("/file", h.DeleteDownloadedFile)
	downloads.POST("/:id/pause", h.PauseDownload)
	downloads.POST("/:id/resume", h.ResumeDownload)
	downloads.POST("/:id/cancel", h.CancelDownload)
	downloads.PUT("/:id/ratelimit", h.SetDownloadRateLimit)
	downloads.GET("/:id/progress", h.DownloadProgress)

	// Apps, keyed by appId
	apps := router.Group("/apps")
	apps.GET("", h.ListApps)
	apps.POST("", h.SpawnApp)
	apps.GET("/:appId", h.GetApp)
	apps.GET("/:appId/loaded", h.IsAppLoaded)
	apps.POST("/:appId/close", h.CloseApp)
	apps.POST("/:appId/ready", h.AppReady)
	apps.POST("/:appId/state-change-complete", h.StateChangeComplete)

	// Instances, keyed by appInstanceId
	instances := router.Group("/instances")
	instances.PUT("/:id/state", h.SetTargetState)
	instances.POST("/:id/unload", h.UnloadApp)
	instances.POST("/:id/kill", h.KillApp)
	instances.POST("/:id/intent", h.SendIntent)

	// Collaborator callbacks
	router.POST("/runtime/events", h.RuntimeEvent)
	router.POST("/window/events", h.WindowEvent)
}
