package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/GriffinCanCode/AgentOS/appmanager/internal/domain/telemetry"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/shared/types"
	"github.com/bytedance/sonic"
	"go.uber.org/zap"
)

// The request handler drives a context along the transition table. All
// functions here must be called with mu held.

func (m *Manager) launch(ctx context.Context, app *ApplicationContext) error {
	app.AppInstanceID = id.NewAppInstanceID().String()
	app.ActiveSessionID = m.ids.NewSessionID().String()
	app.RequestType = RequestLaunch
	app.KillParams = KillParams{}
	m.startRequestTelemetry(app)

	m.logger.Info("launching app",
		zap.String("app_id", app.AppID),
		zap.String("app_instance_id", app.AppInstanceID),
		zap.String("target_state", app.targetState.String()))

	if err := m.updateState(ctx, app); err != nil {
		m.abortLaunch(app, err)
		return fmt.Errorf("launch %s: %w", app.AppID, err)
	}
	return nil
}

// updateState advances towards the target unless a transition is pending,
// in which case the new target is picked up once it completes.
func (m *Manager) updateState(ctx context.Context, app *ApplicationContext) error {
	if event, ok := app.PendingEvent(); ok {
		m.logger.Debug("transition pending, target recorded",
			zap.String("app_id", app.AppID),
			zap.String("awaiting", event),
			zap.String("target_state", app.targetState.String()))
		return nil
	}
	return m.advance(ctx, app)
}

func (m *Manager) terminate(ctx context.Context, app *ApplicationContext) error {
	if app.currentState == StateUnloaded {
		return fmt.Errorf("app %s is not loaded: %w", app.AppID, types.ErrGeneral)
	}
	app.pending = nil
	app.targetState = StateTerminating
	m.startRequestTelemetry(app)
	return m.advance(ctx, app)
}

// advance performs steps until the target is reached or a step must wait
func (m *Manager) advance(ctx context.Context, app *ApplicationContext) error {
	for {
		if app.pending != nil {
			return nil
		}

		current := app.currentState
		if current == StateTerminating {
			return m.commit(app, StateUnloaded, "")
		}
		if current == app.targetState {
			return nil
		}

		path, ok := Path(current, app.targetState)
		if !ok || len(path) == 0 {
			return fmt.Errorf("no transition from %s to %s: %w", current, app.targetState, types.ErrGeneral)
		}
		next := path[0]
		step, _ := StepFor(current, next)

		await, err := m.perform(ctx, app, step)
		if err != nil {
			return fmt.Errorf("%s -> %s: %w", current, next, err)
		}
		if await != "" {
			app.pending = &pendingTransition{to: next, event: await}
			m.logger.Debug("awaiting event",
				zap.String("app_id", app.AppID),
				zap.String("to", next.String()),
				zap.String("event", await))
			return nil
		}
		if err := m.commit(app, next, ""); err != nil {
			return err
		}
	}
}

// perform runs the step's collaborator call and returns the event to wait for
func (m *Manager) perform(ctx context.Context, app *ApplicationContext, step Step) (string, error) {
	instanceID := app.AppInstanceID

	var err error
	switch step.Action {
	case ActionNone:
	case ActionRun:
		if err := m.window.CreateDisplay(ctx, instanceID, app.AppID); err != nil {
			return "", fmt.Errorf("create display: %v: %w", err, types.ErrGeneral)
		}
		err = m.runtime.Run(ctx, RunRequest{
			AppID:         app.AppID,
			AppInstanceID: instanceID,
			Intent:        app.MostRecentIntent,
			LaunchArgs:    app.LaunchParams.LaunchArgs,
			RuntimeConfig: app.LaunchParams.RuntimeConfig,
		})
	case ActionRenderCheck:
		if app.firstFrameAfterResume.TryWait() {
			return "", nil
		}
		ready, renderErr := m.window.RenderReady(ctx, instanceID)
		if renderErr != nil {
			m.logger.Warn("render ready check failed, waiting for first frame",
				zap.String("app_id", app.AppID),
				zap.Error(renderErr))
		} else if ready {
			return "", nil
		}
		return step.Await, nil
	case ActionSuspend:
		err = m.runtime.Suspend(ctx, instanceID)
	case ActionResume:
		err = m.runtime.Resume(ctx, instanceID)
	case ActionHibernate:
		err = m.runtime.Hibernate(ctx, instanceID)
	case ActionWake:
		err = m.runtime.Wake(ctx, instanceID)
	case ActionTerminate:
		if app.KillParams.Force {
			err = m.runtime.Kill(ctx, instanceID)
		} else {
			err = m.runtime.Terminate(ctx, instanceID)
		}
	}
	if err != nil {
		return "", fmt.Errorf("%v: %w", err, types.ErrGeneral)
	}

	if step.Await == EventAppReady && app.appReady.TryWait() {
		return "", nil
	}
	return step.Await, nil
}

// commit makes next the current state and queues its notification
func (m *Manager) commit(app *ApplicationContext, next State, errorReason string) error {
	old := app.setState(next)
	m.metrics.RecordStateTransition(old.String(), next.String())
	m.logger.Info("app state changed",
		zap.String("app_id", app.AppID),
		zap.String("app_instance_id", app.AppInstanceID),
		zap.String("from", old.String()),
		zap.String("to", next.String()))

	return m.submit(Event{
		Kind: EventAppStateChanged,
		change: stateChange{
			app:         app,
			oldState:    old,
			newState:    next,
			intent:      app.MostRecentIntent,
			errorReason: errorReason,
		},
	})
}

// abortLaunch unwinds a context whose launch failed
func (m *Manager) abortLaunch(app *ApplicationContext, cause error) {
	m.logger.Error("launch failed",
		zap.String("app_id", app.AppID),
		zap.String("app_instance_id", app.AppInstanceID),
		zap.Error(cause))

	app.pending = nil
	app.targetState = StateTerminating
	if app.currentState == StateUnloaded {
		m.removeContext(app)
		return
	}
	if err := m.forceUnload(app, cause.Error()); err != nil {
		m.removeContext(app)
	}
}

// forceUnload walks the context through TERMINATING to UNLOADED without
// calling the runtime
func (m *Manager) forceUnload(app *ApplicationContext, reason string) error {
	if app.currentState != StateTerminating {
		if err := m.commit(app, StateTerminating, reason); err != nil {
			return err
		}
	}
	return m.commit(app, StateUnloaded, reason)
}

func (m *Manager) reportFailure(app *ApplicationContext, err error) {
	m.logger.Error("state transition failed",
		zap.String("app_id", app.AppID),
		zap.String("app_instance_id", app.AppInstanceID),
		zap.String("state", app.currentState.String()),
		zap.String("target_state", app.targetState.String()),
		zap.Error(err))

	for _, l := range m.stateListeners {
		l.OnAppStateChanged(app.AppID, app.currentState, err.Error())
	}
}

func markerFor(requestType RequestType) string {
	switch requestType {
	case RequestLaunch:
		return telemetry.MarkerLaunchTime
	case RequestPause:
		return telemetry.MarkerPauseTime
	case RequestSuspend:
		return telemetry.MarkerSuspendTime
	case RequestResume:
		return telemetry.MarkerResumeTime
	case RequestHibernate:
		return telemetry.MarkerHibernateTime
	case RequestWake:
		return telemetry.MarkerWakeTime
	case RequestTerminate, RequestKill:
		return telemetry.MarkerCloseTime
	default:
		return ""
	}
}

func (m *Manager) startRequestTelemetry(app *ApplicationContext) {
	app.requestStarted = time.Now()
	marker := markerFor(app.RequestType)
	if marker == "" {
		return
	}
	m.recordTelemetry(app.AppID, marker, map[string]interface{}{
		"appId":         app.AppID,
		"appInstanceId": app.AppInstanceID,
		"requestType":   string(app.RequestType),
		"targetState":   app.targetState.String(),
		"startTime":     app.requestStarted.UnixMilli(),
	}, false)
}

func (m *Manager) finishRequestTelemetry(app *ApplicationContext, errorCode string) {
	marker := markerFor(app.RequestType)
	app.RequestType = RequestNone
	if marker == "" {
		return
	}

	end := time.Now()
	fields := map[string]interface{}{
		"endTime":  end.UnixMilli(),
		"duration": end.Sub(app.requestStarted).Milliseconds(),
	}
	if errorCode != "" {
		fields["errorCode"] = errorCode
	}
	m.recordTelemetry(app.AppID, marker, fields, true)
}

func (m *Manager) recordTelemetry(key, marker string, fields map[string]interface{}, publish bool) {
	if m.telemetry == nil {
		return
	}

	blob, err := sonic.MarshalString(fields)
	if err != nil {
		m.logger.Warn("failed to encode telemetry", zap.String("marker", marker), zap.Error(err))
		return
	}
	if err := m.telemetry.Record(key, blob, marker); err != nil {
		m.logger.Debug("telemetry record failed", zap.String("marker", marker), zap.Error(err))
		return
	}
	if publish {
		if err := m.telemetry.Publish(key, marker); err != nil {
			m.logger.Debug("telemetry publish failed", zap.String("marker", marker), zap.Error(err))
		}
	}
}
