package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/appmanager/internal/domain/download"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/domain/lifecycle"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/providers/network"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/shared/types"
)

// Downloads is the download manager surface exposed over HTTP
type Downloads interface {
	Download(url string, opts download.Options) (string, error)
	Pause(downloadID string) error
	Resume(downloadID string) error
	Cancel(downloadID string) error
	RateLimit(downloadID string, bytesPerSec uint64) error
	Progress(downloadID string) (uint8, error)
	Delete(fileLocator string) error
	GetStorageDetails() (download.StorageDetails, error)
}

// Lifecycle is the lifecycle coordinator surface exposed over HTTP
type Lifecycle interface {
	SpawnApp(ctx context.Context, req lifecycle.SpawnRequest) (string, string, error)
	SetTargetAppState(ctx context.Context, appInstanceID string, target lifecycle.State, intent string) error
	UnloadApp(ctx context.Context, appInstanceID string) error
	KillApp(ctx context.Context, appInstanceID string) error
	CloseApp(ctx context.Context, appID string, reason lifecycle.CloseReason) error
	SendIntentToActiveApp(appInstanceID, intent string) error
	AppReady(appID string) error
	StateChangeComplete(appID string, stateChangedID uint32, success bool) error
	IsAppLoaded(appID string) bool
	GetLoadedApps() []lifecycle.AppInfo
	GetApp(appID string) (lifecycle.AppInfo, bool)
	OnRuntimeEvent(ev lifecycle.RuntimeEvent) error
	OnWindowEvent(ev lifecycle.WindowEvent) error
}

// Handlers contains all HTTP handlers
type Handlers struct {
	downloads Downloads
	apps      Lifecycle
	network   network.Checker
	logger    *zap.Logger
}

// NewHandlers creates a new handler set
func NewHandlers(downloads Downloads, apps Lifecycle, net network.Checker, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		downloads: downloads,
		apps:      apps,
		network:   net,
		logger:    logger,
	}
}

// Health reports service health
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"network":     h.network.Available(),
		"loaded_apps": len(h.apps.GetLoadedApps()),
	})
}

// statusFor maps domain errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrUnknownKey), errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, types.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, types.ErrGeneral):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) fail(c *gin.Context, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", zap.String("op", op), zap.Error(err))
	} else {
		h.logger.Debug("Request rejected", zap.String("op", op), zap.Error(err))
	}
	c.JSON(status, types.Failed(err))
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, types.Result{
		Success:     false,
		ErrorReason: "Invalid request: " + err.Error(),
	})
}

func ok(c *gin.Context) {
	c.JSON(http.StatusOK, types.Succeeded())
}
