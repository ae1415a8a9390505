package lifecycle

import (
	"strings"

	"github.com/GriffinCanCode/AgentOS/appmanager/internal/domain/telemetry"
	"go.uber.org/zap"
)

// runtimeRunning is the runtime state that confirms a container started
const runtimeRunning = "RUNNING"

// Dispatch processes one queued event. It runs on the worker pool and
// serializes with every other operation through the admin lock.
func (m *Manager) Dispatch(ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.Debug("dispatching event", zap.String("event_id", ev.ID.String()), zap.String("kind", ev.Kind.String()))

	switch ev.Kind {
	case EventAppStateChanged:
		m.metrics.RecordDispatchedEvent(ev.Kind.String(), ev.change.newState.String())
		m.handleStateChanged(ev.change)
	case EventRuntime:
		m.metrics.RecordDispatchedEvent(ev.Kind.String(), ev.Runtime.Name)
		m.handleRuntimeEvent(ev.Runtime)
	case EventWindow:
		m.metrics.RecordDispatchedEvent(ev.Kind.String(), ev.Window.Name)
		m.handleWindowEvent(ev.Window)
	default:
		m.logger.Warn("unknown event kind", zap.Int("kind", int(ev.Kind)))
	}
}

func (m *Manager) handleStateChanged(c stateChange) {
	app := c.app

	if app.RequestType != RequestNone && (c.newState == app.targetState || c.newState == StateUnloaded) {
		m.finishRequestTelemetry(app, c.errorReason)
	}

	switch c.newState {
	case StateLoading:
		app.reachedLoadingState.Post()
	case StateUnloaded:
		m.removeContext(app)
	}

	for _, l := range m.stateListeners {
		l.OnAppStateChanged(app.AppID, c.newState, c.errorReason)
	}
	for _, l := range m.lifecycleListeners {
		l.OnAppLifecycleStateChanged(app.AppID, app.AppInstanceID, c.oldState, c.newState, c.intent)
	}
}

// instanceID recovers the appInstanceId from a container id
func (m *Manager) instanceID(containerID string) string {
	portal := m.cfg.RuntimeAppPortal
	if portal != "" && strings.HasPrefix(containerID, portal) {
		return strings.TrimLeft(containerID[len(portal):], "._-:")
	}
	return containerID
}

func (m *Manager) handleRuntimeEvent(ev RuntimeEvent) {
	instanceID := m.instanceID(ev.ContainerID)
	app := m.findByInstanceID(instanceID)
	if app == nil {
		m.logger.Debug("runtime event for unknown instance",
			zap.String("event", ev.Name),
			zap.String("container_id", ev.ContainerID))
		return
	}

	switch ev.Name {
	case RuntimeStarted:
		m.addStateTransitionRequest(app, EventAppRunning)
	case RuntimeStateChanged:
		if strings.EqualFold(ev.State, runtimeRunning) {
			m.addStateTransitionRequest(app, EventAppRunning)
			return
		}
		m.logger.Debug("runtime state changed",
			zap.String("app_id", app.AppID),
			zap.String("runtime_state", ev.State))
	case RuntimeTerminated:
		if app.terminating() {
			m.addStateTransitionRequest(app, EventAppTerminated)
			return
		}
		m.recoverFromCrash(app)
	case RuntimeFailure:
		reason := ev.ErrorCode
		if reason == "" {
			reason = "runtime failure"
		}
		m.logger.Error("runtime reported failure",
			zap.String("app_id", app.AppID),
			zap.String("app_instance_id", app.AppInstanceID),
			zap.String("error_code", ev.ErrorCode))
		for _, l := range m.stateListeners {
			l.OnAppStateChanged(app.AppID, app.currentState, reason)
		}
	default:
		m.logger.Debug("ignoring runtime event", zap.String("event", ev.Name))
	}
}

func (m *Manager) handleWindowEvent(ev WindowEvent) {
	app := m.findByInstanceID(m.instanceID(ev.Client))
	if app == nil {
		m.logger.Debug("window event for unknown client",
			zap.String("event", ev.Name),
			zap.String("client", ev.Client))
		return
	}

	switch ev.Name {
	case WindowReady:
		app.firstFrameAfterResume.Post()
		if m.addStateTransitionRequest(app, EventFirstFrame) {
			app.firstFrameAfterResume.TryWait()
		}
	case WindowDisconnect:
		m.logger.Info("display disconnected", zap.String("app_id", app.AppID))
	case WindowUserInactivity:
		m.logger.Info("user inactive",
			zap.String("app_id", app.AppID),
			zap.Float64("minutes", ev.Minutes))
	default:
		m.logger.Debug("ignoring window event", zap.String("event", ev.Name))
	}
}

// addStateTransitionRequest completes the pending transition if it waits for
// event. Any other event is ignored. Must be called with mu held.
func (m *Manager) addStateTransitionRequest(app *ApplicationContext, event string) bool {
	if app.pending == nil || app.pending.event != event {
		expected, _ := app.PendingEvent()
		m.logger.Debug("ignoring state transition request",
			zap.String("app_id", app.AppID),
			zap.String("event", event),
			zap.String("expected", expected))
		m.metrics.RecordIgnoredTransition(event)
		return false
	}

	to := app.pending.to
	app.pending = nil
	if err := m.commit(app, to, ""); err != nil {
		m.reportFailure(app, err)
		return true
	}
	if err := m.advance(m.baseCtx, app); err != nil {
		m.reportFailure(app, err)
	}
	return true
}

// recoverFromCrash unloads a context whose container exited on its own.
// Must be called with mu held.
func (m *Manager) recoverFromCrash(app *ApplicationContext) RecoveryResult {
	crashedIn := app.currentState
	m.logger.Warn("container terminated unexpectedly",
		zap.String("app_id", app.AppID),
		zap.String("app_instance_id", app.AppInstanceID),
		zap.String("state", crashedIn.String()))

	app.RequestType = RequestKill
	app.KillParams.Force = true
	app.pending = nil
	app.targetState = StateTerminating
	m.startRequestTelemetry(app)

	var result RecoveryResult
	result.TerminateErr = m.runtime.Kill(m.baseCtx, app.AppInstanceID)
	result.UpdateErr = m.forceUnload(app, "APP_CRASHED")

	m.logger.Info("crash recovery finished",
		zap.String("app_id", app.AppID),
		zap.Bool("terminate_ok", result.TerminateErr == nil),
		zap.NamedError("terminate_error", result.TerminateErr),
		zap.Bool("update_ok", result.UpdateErr == nil),
		zap.NamedError("update_error", result.UpdateErr))
	m.metrics.RecordRecovery(result.TerminateErr == nil, result.UpdateErr == nil)

	m.recordTelemetry(app.AppID, telemetry.MarkerCrash, map[string]interface{}{
		"appId":         app.AppID,
		"appInstanceId": app.AppInstanceID,
		"state":         crashedIn.String(),
		"terminateOk":   result.TerminateErr == nil,
		"updateOk":      result.UpdateErr == nil,
	}, true)
	return result
}
