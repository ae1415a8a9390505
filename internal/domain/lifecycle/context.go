package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/GriffinCanCode/AgentOS/appmanager/internal/shared/types"
)

// Rendezvous is a binary semaphore. Posting an already posted rendezvous
// has no effect.
type Rendezvous struct {
	ch chan struct{}
}

func newRendezvous() *Rendezvous {
	return &Rendezvous{ch: make(chan struct{}, 1)}
}

// Post releases one waiter
func (r *Rendezvous) Post() {
	select {
	case r.ch <- struct{}{}:
	default:
	}
}

// TryWait consumes a pending post without blocking
func (r *Rendezvous) TryWait() bool {
	select {
	case <-r.ch:
		return true
	default:
		return false
	}
}

// Wait blocks until posted, ctx is done or timeout elapses. A zero timeout
// waits without bound.
func (r *Rendezvous) Wait(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	select {
	case <-r.ch:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("rendezvous wait aborted: %v: %w", ctx.Err(), types.ErrTimeout)
	}
}

// RequestType tags the operation in flight for telemetry correlation
type RequestType string

const (
	RequestNone      RequestType = ""
	RequestLaunch    RequestType = "LAUNCH"
	RequestPause     RequestType = "PAUSE"
	RequestSuspend   RequestType = "SUSPEND"
	RequestResume    RequestType = "RESUME"
	RequestHibernate RequestType = "HIBERNATE"
	RequestWake      RequestType = "WAKE"
	RequestTerminate RequestType = "TERMINATE"
	RequestKill      RequestType = "KILL"
)

// LaunchParams are captured at first spawn and reused to relaunch
type LaunchParams struct {
	AppID         string
	Intent        string
	LaunchArgs    string
	TargetState   State
	RuntimeConfig string
}

// KillParams controls how the container is stopped
type KillParams struct {
	Force bool
}

// StateChangeAck is the last acknowledgement sent by the application
type StateChangeAck struct {
	StateChangedID uint32
	Success        bool
	At             time.Time
}

type pendingTransition struct {
	to    State
	event string
}

// ApplicationContext is the record of one loaded application. It is only
// accessed under the manager's lock.
type ApplicationContext struct {
	AppID            string
	AppInstanceID    string
	ActiveSessionID  string
	MostRecentIntent string
	LaunchParams     LaunchParams
	KillParams       KillParams
	RequestType      RequestType
	LastAck          *StateChangeAck

	currentState    State
	targetState     State
	lastStateChange time.Time
	requestStarted  time.Time
	pending         *pendingTransition

	reachedLoadingState   *Rendezvous
	appReady              *Rendezvous
	firstFrameAfterResume *Rendezvous

	unloaded     chan struct{}
	unloadedOnce sync.Once
}

func newApplicationContext(appID string) *ApplicationContext {
	return &ApplicationContext{
		AppID:                 appID,
		currentState:          StateUnloaded,
		targetState:           StateUnloaded,
		lastStateChange:       time.Now(),
		reachedLoadingState:   newRendezvous(),
		appReady:              newRendezvous(),
		firstFrameAfterResume: newRendezvous(),
		unloaded:              make(chan struct{}),
	}
}

// CurrentState returns the state in effect
func (c *ApplicationContext) CurrentState() State {
	return c.currentState
}

// TargetState returns the requested state
func (c *ApplicationContext) TargetState() State {
	return c.targetState
}

// LastStateChange returns when the current state took effect
func (c *ApplicationContext) LastStateChange() time.Time {
	return c.lastStateChange
}

// PendingEvent returns the event a pending transition waits for, if any
func (c *ApplicationContext) PendingEvent() (string, bool) {
	if c.pending == nil {
		return "", false
	}
	return c.pending.event, true
}

func (c *ApplicationContext) setState(s State) State {
	old := c.currentState
	c.currentState = s
	c.lastStateChange = time.Now()
	return old
}

// terminating reports whether the context is in or moving to TERMINATING
func (c *ApplicationContext) terminating() bool {
	if c.currentState == StateTerminating {
		return true
	}
	return c.pending != nil && c.pending.to == StateTerminating
}

// closing reports whether the context is terminating or already unloaded
// and only waiting to be removed
func (c *ApplicationContext) closing() bool {
	return c.currentState == StateUnloaded || c.terminating()
}

func (c *ApplicationContext) markUnloaded() {
	c.unloadedOnce.Do(func() { close(c.unloaded) })
}

// AppInfo is a snapshot of a loaded application
type AppInfo struct {
	AppID            string    `json:"appId"`
	AppInstanceID    string    `json:"appInstanceId"`
	ActiveSessionID  string    `json:"activeSessionId"`
	CurrentState     State     `json:"currentState"`
	TargetState      State     `json:"targetState"`
	LastStateChange  time.Time `json:"lastStateChangeTime"`
	MostRecentIntent string    `json:"mostRecentIntent,omitempty"`
}

func (c *ApplicationContext) info() AppInfo {
	return AppInfo{
		AppID:            c.AppID,
		AppInstanceID:    c.AppInstanceID,
		ActiveSessionID:  c.ActiveSessionID,
		CurrentState:     c.currentState,
		TargetState:      c.targetState,
		LastStateChange:  c.lastStateChange,
		MostRecentIntent: c.MostRecentIntent,
	}
}
