package lifecycle

import (
	"context"

	"github.com/GriffinCanCode/AgentOS/appmanager/internal/infrastructure/workerpool"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/shared/id"
)

// RunRequest describes a container to start
type RunRequest struct {
	AppID         string `json:"appId"`
	AppInstanceID string `json:"appInstanceId"`
	Intent        string `json:"intent,omitempty"`
	LaunchArgs    string `json:"launchArgs,omitempty"`
	RuntimeConfig string `json:"runtimeConfig,omitempty"`
}

// RuntimeManager starts and controls application containers. State changes
// are reported back asynchronously through OnRuntimeEvent.
type RuntimeManager interface {
	Run(ctx context.Context, req RunRequest) error
	Terminate(ctx context.Context, appInstanceID string) error
	Kill(ctx context.Context, appInstanceID string) error
	Hibernate(ctx context.Context, appInstanceID string) error
	Wake(ctx context.Context, appInstanceID string) error
	Suspend(ctx context.Context, appInstanceID string) error
	Resume(ctx context.Context, appInstanceID string) error
}

// WindowManager owns displays. Rendering progress is reported back through
// OnWindowEvent.
type WindowManager interface {
	CreateDisplay(ctx context.Context, client, displayName string) error
	RenderReady(ctx context.Context, client string) (bool, error)
}

// TelemetrySink accumulates and publishes metrics
type TelemetrySink interface {
	Record(id, metricsJSON, marker string) error
	Publish(id, marker string) error
}

// Submitter queues dispatch jobs. Jobs with the same key run in order.
type Submitter interface {
	SubmitKeyed(key string, job workerpool.Job) error
}

// StateListener receives the legacy state notification
type StateListener interface {
	OnAppStateChanged(appID string, newState State, errorReason string)
}

// LifecycleListener receives the verbose lifecycle notification
type LifecycleListener interface {
	OnAppLifecycleStateChanged(appID, appInstanceID string, oldState, newState State, navigationIntent string)
}

// Runtime event names
const (
	RuntimeStarted      = "onStarted"
	RuntimeTerminated   = "onTerminated"
	RuntimeStateChanged = "onStateChanged"
	RuntimeFailure      = "onFailure"
)

// Window event names
const (
	WindowReady          = "onReady"
	WindowDisconnect     = "onDisconnect"
	WindowUserInactivity = "onUserInactivity"
)

// RuntimeEvent is reported by the runtime manager
type RuntimeEvent struct {
	Name string `json:"name" binding:"required"`
	// ContainerID is the runtime's id for the container, possibly carrying
	// the app portal prefix.
	ContainerID string `json:"containerId" binding:"required"`
	State       string `json:"state,omitempty"`
	ErrorCode   string `json:"errorCode,omitempty"`
}

// WindowEvent is reported by the window manager
type WindowEvent struct {
	Name    string  `json:"name" binding:"required"`
	Client  string  `json:"client" binding:"required"`
	Minutes float64 `json:"minutes,omitempty"`
}

// EventKind classifies dispatched events
type EventKind int

const (
	EventAppStateChanged EventKind = iota
	EventRuntime
	EventWindow
)

// String returns the string representation of the kind
func (k EventKind) String() string {
	switch k {
	case EventAppStateChanged:
		return "APPSTATECHANGED"
	case EventRuntime:
		return "RUNTIME"
	case EventWindow:
		return "WINDOW"
	default:
		return "UNKNOWN"
	}
}

// stateChange is emitted whenever a context changes state
type stateChange struct {
	app         *ApplicationContext
	oldState    State
	newState    State
	intent      string
	errorReason string
}

// Event is one unit of work for Dispatch
type Event struct {
	ID      id.EventID
	Kind    EventKind
	Runtime RuntimeEvent
	Window  WindowEvent
	change  stateChange
}

// CloseReason tells CloseApp what to do after the kill
type CloseReason string

const (
	CloseUserExit        CloseReason = "USER_EXIT"
	CloseError           CloseReason = "ERROR"
	CloseKillAndRun      CloseReason = "KILL_AND_RUN"
	CloseKillAndActivate CloseReason = "KILL_AND_ACTIVATE"
)

// RecoveryResult reports both steps of crash recovery
type RecoveryResult struct {
	TerminateErr error
	UpdateErr    error
}

// OK reports whether both steps succeeded
func (r RecoveryResult) OK() bool {
	return r.TerminateErr == nil && r.UpdateErr == nil
}
