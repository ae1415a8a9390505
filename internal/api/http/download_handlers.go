package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/AgentOS/appmanager/internal/domain/download"
)

// DownloadRequest starts a download
type DownloadRequest struct {
	URL       string `json:"url"`
	Priority  bool   `json:"priority"`
	Retries   uint32 `json:"retries"`
	RateLimit uint64 `json:"rateLimit"`
}

// RateLimitRequest changes the active download's byte rate
type RateLimitRequest struct {
	BytesPerSec uint64 `json:"bytesPerSec"`
}

// StartDownload queues a download
func (h *Handlers) StartDownload(c *gin.Context) {
	var req DownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	downloadID, err := h.downloads.Download(req.URL, download.Options{
		Priority:  req.Priority,
		Retries:   req.Retries,
		RateLimit: req.RateLimit,
	})
	if err != nil {
		h.fail(c, "download", err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success":    true,
		"downloadId": downloadID,
	})
}

// PauseDownload pauses the active download
func (h *Handlers) PauseDownload(c *gin.Context) {
	h.control(c, "pause", h.downloads.Pause)
}

// ResumeDownload resumes the active download
func (h *Handlers) ResumeDownload(c *gin.Context) {
	h.control(c, "resume", h.downloads.Resume)
}

// CancelDownload cancels the active download
func (h *Handlers) CancelDownload(c *gin.Context) {
	h.control(c, "cancel", h.downloads.Cancel)
}

func (h *Handlers) control(c *gin.Context, op string, fn func(string) error) {
	if err := fn(c.Param("id")); err != nil {
		h.fail(c, op, err)
		return
	}
	ok(c)
}

// SetDownloadRateLimit changes the active download's byte rate
func (h *Handlers) SetDownloadRateLimit(c *gin.Context) {
	var req RateLimitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.downloads.RateLimit(c.Param("id"), req.BytesPerSec); err != nil {
		h.fail(c, "ratelimit", err)
		return
	}
	ok(c)
}

// DownloadProgress reports the active download's percent complete
func (h *Handlers) DownloadProgress(c *gin.Context) {
	percent, err := h.downloads.Progress(c.Param("id"))
	if err != nil {
		h.fail(c, "progress", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"percent": percent,
	})
}

// DeleteDownloadedFile removes a downloaded file named by the locator query parameter
func (h *Handlers) DeleteDownloadedFile(c *gin.Context) {
	if err := h.downloads.Delete(c.Query("locator")); err != nil {
		h.fail(c, "delete", err)
		return
	}
	ok(c)
}

// StorageDetails reports download directory usage
func (h *Handlers) StorageDetails(c *gin.Context) {
	details, err := h.downloads.GetStorageDetails()
	if err != nil {
		h.fail(c, "storage", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"quotaKB": details.QuotaKB,
		"usedKB":  details.UsedKB,
	})
}
