package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/GriffinCanCode/AgentOS/appmanager/internal/domain/telemetry"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/shared/types"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/shared/utils"
	"go.uber.org/zap"
)

// Config holds coordinator settings
type Config struct {
	// RuntimeAppPortal is stripped from container ids to recover the
	// appInstanceId.
	RuntimeAppPortal string
	// LoadingTimeout bounds SpawnApp's wait for LOADING. Zero waits without bound.
	LoadingTimeout time.Duration
	// CloseTimeout bounds CloseApp's wait for the kill. Zero waits without bound.
	CloseTimeout time.Duration
}

// SpawnRequest holds SpawnApp arguments
type SpawnRequest struct {
	AppID         string `json:"appId" binding:"required"`
	Intent        string `json:"intent"`
	TargetState   State  `json:"targetState"`
	RuntimeConfig string `json:"runtimeConfig"`
	LaunchArgs    string `json:"launchArgs"`
}

// Manager coordinates application lifecycles
type Manager struct {
	cfg       Config
	runtime   RuntimeManager
	window    WindowManager
	telemetry TelemetrySink
	pool      Submitter
	ids       *id.Generator
	logger    *zap.Logger
	metrics   *monitoring.Metrics

	// baseCtx is used for collaborator calls made from Dispatch
	baseCtx context.Context

	mu                 sync.Mutex
	apps               []*ApplicationContext // Protected by mu
	stateListeners     []StateListener       // Protected by mu
	lifecycleListeners []LifecycleListener   // Protected by mu
}

// NewManager creates a lifecycle coordinator
func NewManager(cfg Config, runtime RuntimeManager, window WindowManager, telemetry TelemetrySink, pool Submitter, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		cfg:       cfg,
		runtime:   runtime,
		window:    window,
		telemetry: telemetry,
		pool:      pool,
		ids:       id.NewGenerator(),
		logger:    logger,
		baseCtx:   context.Background(),
	}
}

// WithMetrics adds metrics tracking to the manager
func (m *Manager) WithMetrics(metrics *monitoring.Metrics) *Manager {
	m.metrics = metrics
	return m
}

func validateSpawn(req SpawnRequest) error {
	if err := utils.ValidateAppID(req.AppID); err != nil {
		return fmt.Errorf("%v: %w", err, types.ErrInvalidInput)
	}
	if err := utils.ValidateString(req.Intent, "intent", 0, utils.MaxIntentSize, false); err != nil {
		return fmt.Errorf("%v: %w", err, types.ErrInvalidInput)
	}
	if err := utils.ValidateString(req.LaunchArgs, "launchArgs", 0, utils.MaxLaunchArgsSize, false); err != nil {
		return fmt.Errorf("%v: %w", err, types.ErrInvalidInput)
	}
	if err := utils.ValidateJSONBlob(req.RuntimeConfig, "runtimeConfig", utils.MaxRuntimeConfigSize); err != nil {
		return fmt.Errorf("%v: %w", err, types.ErrInvalidInput)
	}
	return validateTarget(req.TargetState)
}

func validateTarget(target State) error {
	switch target {
	case StateUnloaded, StateTerminating:
		return fmt.Errorf("%s is not a valid target state: %w", target, types.ErrInvalidInput)
	}
	if target.String() == "UNKNOWN" {
		return fmt.Errorf("unknown target state %d: %w", target, types.ErrInvalidInput)
	}
	return nil
}

// SpawnApp loads appId, or re-targets it if already loaded. The first spawn
// of an appId blocks until the application has reached LOADING. A spawn that
// finds the app on its way out waits for the unload and launches a fresh
// instance.
func (m *Manager) SpawnApp(ctx context.Context, req SpawnRequest) (string, string, error) {
	if err := validateSpawn(req); err != nil {
		return "", err.Error(), err
	}

	m.mu.Lock()
	for {
		app := m.findByAppID(req.AppID)
		if app == nil || !app.closing() {
			break
		}
		unloaded, previous := app.unloaded, app.AppInstanceID
		m.mu.Unlock()

		m.logger.Info("spawn waiting for previous instance to unload",
			zap.String("app_id", req.AppID),
			zap.String("app_instance_id", previous))
		if err := waitClosed(ctx, unloaded, m.cfg.CloseTimeout); err != nil {
			err = fmt.Errorf("spawn %s: %w", req.AppID, err)
			return "", err.Error(), err
		}
		m.mu.Lock()
	}

	if app := m.findByAppID(req.AppID); app != nil {
		app.RequestType = classifyRequest(app.currentState, req.TargetState)
		app.targetState = req.TargetState
		if req.Intent != "" {
			app.MostRecentIntent = req.Intent
		}
		m.startRequestTelemetry(app)
		err := m.updateState(ctx, app)
		instanceID := app.AppInstanceID
		m.mu.Unlock()

		if err != nil {
			return instanceID, err.Error(), err
		}
		return instanceID, "", nil
	}

	app := newApplicationContext(req.AppID)
	app.LaunchParams = LaunchParams{
		AppID:         req.AppID,
		Intent:        req.Intent,
		LaunchArgs:    req.LaunchArgs,
		TargetState:   req.TargetState,
		RuntimeConfig: req.RuntimeConfig,
	}
	app.targetState = req.TargetState
	app.MostRecentIntent = req.Intent
	m.apps = append(m.apps, app)
	m.metrics.SetAppsLoaded(len(m.apps))

	err := m.launch(ctx, app)
	instanceID := app.AppInstanceID
	loading := app.reachedLoadingState
	m.mu.Unlock()

	if err != nil {
		return instanceID, err.Error(), err
	}

	if err := loading.Wait(ctx, m.cfg.LoadingTimeout); err != nil {
		m.logger.Error("app did not reach loading state",
			zap.String("app_id", req.AppID),
			zap.String("app_instance_id", instanceID),
			zap.Error(err))
		return instanceID, err.Error(), err
	}
	return instanceID, "", nil
}

func classifyRequest(current, target State) RequestType {
	switch target {
	case StateActive:
		return RequestResume
	case StatePaused:
		if current == StateSuspended || current == StateHibernated {
			return RequestResume
		}
		return RequestPause
	case StateSuspended:
		if current == StateHibernated {
			return RequestWake
		}
		return RequestSuspend
	case StateHibernated:
		return RequestHibernate
	default:
		return RequestLaunch
	}
}

// SetTargetAppState moves a loaded application towards target
func (m *Manager) SetTargetAppState(ctx context.Context, appInstanceID string, target State, intent string) error {
	if err := validateTarget(target); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	app := m.findByInstanceID(appInstanceID)
	if app == nil {
		return fmt.Errorf("app instance %q not loaded: %w", appInstanceID, types.ErrGeneral)
	}

	app.RequestType = classifyRequest(app.currentState, target)
	app.targetState = target
	if intent != "" {
		app.MostRecentIntent = intent
	}
	m.startRequestTelemetry(app)
	return m.updateState(ctx, app)
}

// UnloadApp terminates an application gracefully
func (m *Manager) UnloadApp(ctx context.Context, appInstanceID string) error {
	return m.terminateApp(ctx, appInstanceID, RequestTerminate, false)
}

// KillApp terminates an application forcibly
func (m *Manager) KillApp(ctx context.Context, appInstanceID string) error {
	return m.terminateApp(ctx, appInstanceID, RequestKill, true)
}

func (m *Manager) terminateApp(ctx context.Context, appInstanceID string, requestType RequestType, force bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	app := m.findByInstanceID(appInstanceID)
	if app == nil {
		return fmt.Errorf("app instance %q not loaded: %w", appInstanceID, types.ErrGeneral)
	}

	if app.terminating() {
		if force && !app.KillParams.Force {
			app.KillParams.Force = true
			app.RequestType = requestType
			if err := m.runtime.Kill(ctx, app.AppInstanceID); err != nil {
				return fmt.Errorf("kill %s: %v: %w", app.AppInstanceID, err, types.ErrGeneral)
			}
		}
		return nil
	}

	app.RequestType = requestType
	app.KillParams.Force = force
	return m.terminate(ctx, app)
}

// CloseApp kills appId and, for KILL_AND_RUN or KILL_AND_ACTIVATE, spawns
// it again with its original launch parameters once the kill completed.
func (m *Manager) CloseApp(ctx context.Context, appID string, reason CloseReason) error {
	switch reason {
	case CloseUserExit, CloseError, CloseKillAndRun, CloseKillAndActivate:
	default:
		return fmt.Errorf("unknown close reason %q: %w", reason, types.ErrInvalidInput)
	}

	m.mu.Lock()
	app := m.findByAppID(appID)
	if app == nil {
		m.mu.Unlock()
		return fmt.Errorf("app %q not loaded: %w", appID, types.ErrGeneral)
	}
	params := app.LaunchParams
	instanceID := app.AppInstanceID
	unloaded := app.unloaded
	m.mu.Unlock()

	m.logger.Info("closing app",
		zap.String("app_id", appID),
		zap.String("app_instance_id", instanceID),
		zap.String("reason", string(reason)))

	if err := m.KillApp(ctx, instanceID); err != nil {
		return err
	}

	if err := waitClosed(ctx, unloaded, m.cfg.CloseTimeout); err != nil {
		return fmt.Errorf("close %s: %w", appID, err)
	}

	switch reason {
	case CloseKillAndRun:
		params.TargetState = StatePaused
	case CloseKillAndActivate:
		params.TargetState = StateActive
	default:
		return nil
	}

	_, _, err := m.SpawnApp(ctx, SpawnRequest{
		AppID:         params.AppID,
		Intent:        params.Intent,
		TargetState:   params.TargetState,
		RuntimeConfig: params.RuntimeConfig,
		LaunchArgs:    params.LaunchArgs,
	})
	return err
}

func waitClosed(ctx context.Context, unloaded <-chan struct{}, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	select {
	case <-unloaded:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for unload: %v: %w", ctx.Err(), types.ErrTimeout)
	}
}

// SendIntentToActiveApp delivers an intent to an ACTIVE application
func (m *Manager) SendIntentToActiveApp(appInstanceID, intent string) error {
	if err := utils.ValidateString(intent, "intent", 1, utils.MaxIntentSize, true); err != nil {
		return fmt.Errorf("%v: %w", err, types.ErrInvalidInput)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	app := m.findByInstanceID(appInstanceID)
	if app == nil {
		return fmt.Errorf("app instance %q not loaded: %w", appInstanceID, types.ErrGeneral)
	}
	if app.currentState != StateActive {
		return fmt.Errorf("app %s is %s, not ACTIVE: %w", app.AppID, app.currentState, types.ErrGeneral)
	}

	app.MostRecentIntent = intent
	m.logger.Info("intent delivered",
		zap.String("app_id", app.AppID),
		zap.String("app_instance_id", app.AppInstanceID))
	return nil
}

// AppReady is called by the application once it finished initializing
func (m *Manager) AppReady(appID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	app := m.findByAppID(appID)
	if app == nil {
		return fmt.Errorf("app %q not loaded: %w", appID, types.ErrGeneral)
	}

	app.appReady.Post()
	if m.addStateTransitionRequest(app, EventAppReady) {
		app.appReady.TryWait()
	}
	return nil
}

// StateChangeComplete records the application's acknowledgement of a state
// change notification
func (m *Manager) StateChangeComplete(appID string, stateChangedID uint32, success bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	app := m.findByAppID(appID)
	if app == nil {
		return fmt.Errorf("app %q not loaded: %w", appID, types.ErrGeneral)
	}

	app.LastAck = &StateChangeAck{StateChangedID: stateChangedID, Success: success, At: time.Now()}
	m.logger.Debug("state change acknowledged",
		zap.String("app_id", appID),
		zap.Uint32("state_changed_id", stateChangedID),
		zap.Bool("success", success))

	m.recordTelemetry(app.AppID, telemetry.MarkerStateAck, map[string]interface{}{
		"appId":          appID,
		"stateChangedId": stateChangedID,
		"success":        success,
	}, true)
	return nil
}

// IsAppLoaded reports whether appId has a context
func (m *Manager) IsAppLoaded(appID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findByAppID(appID) != nil
}

// GetLoadedApps returns snapshots of all loaded applications
func (m *Manager) GetLoadedApps() []AppInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	apps := make([]AppInfo, 0, len(m.apps))
	for _, app := range m.apps {
		apps = append(apps, app.info())
	}
	return apps
}

// GetApp returns a snapshot of one loaded application
func (m *Manager) GetApp(appID string) (AppInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	app := m.findByAppID(appID)
	if app == nil {
		return AppInfo{}, false
	}
	return app.info(), true
}

// RegisterStateListener adds a legacy state listener
func (m *Manager) RegisterStateListener(l StateListener) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.stateListeners {
		if existing == l {
			return
		}
	}
	m.stateListeners = append(m.stateListeners, l)
}

// UnregisterStateListener removes a legacy state listener
func (m *Manager) UnregisterStateListener(l StateListener) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, existing := range m.stateListeners {
		if existing == l {
			m.stateListeners = append(m.stateListeners[:i], m.stateListeners[i+1:]...)
			return
		}
	}
}

// RegisterLifecycleListener adds a verbose lifecycle listener
func (m *Manager) RegisterLifecycleListener(l LifecycleListener) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.lifecycleListeners {
		if existing == l {
			return
		}
	}
	m.lifecycleListeners = append(m.lifecycleListeners, l)
}

// UnregisterLifecycleListener removes a verbose lifecycle listener
func (m *Manager) UnregisterLifecycleListener(l LifecycleListener) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, existing := range m.lifecycleListeners {
		if existing == l {
			m.lifecycleListeners = append(m.lifecycleListeners[:i], m.lifecycleListeners[i+1:]...)
			return
		}
	}
}

// OnRuntimeEvent queues a runtime manager event for Dispatch
func (m *Manager) OnRuntimeEvent(ev RuntimeEvent) error {
	return m.submit(Event{Kind: EventRuntime, Runtime: ev})
}

// OnWindowEvent queues a window manager event for Dispatch
func (m *Manager) OnWindowEvent(ev WindowEvent) error {
	return m.submit(Event{Kind: EventWindow, Window: ev})
}

func (m *Manager) submit(ev Event) error {
	ev.ID = m.ids.NewEventID()
	if err := m.pool.SubmitKeyed(m.orderingKey(ev), func() { m.Dispatch(ev) }); err != nil {
		return fmt.Errorf("dispatch %s: %v: %w", ev.Kind, err, types.ErrUnavailable)
	}
	return nil
}

// orderingKey groups events that must be dispatched in submission order.
// State changes of one app share its appId; collaborator events share the
// instance they concern.
func (m *Manager) orderingKey(ev Event) string {
	switch ev.Kind {
	case EventAppStateChanged:
		return ev.change.app.AppID
	case EventRuntime:
		return m.instanceID(ev.Runtime.ContainerID)
	case EventWindow:
		return ev.Window.Client
	default:
		return ""
	}
}

// findByAppID must be called with mu held
func (m *Manager) findByAppID(appID string) *ApplicationContext {
	for _, app := range m.apps {
		if app.AppID == appID {
			return app
		}
	}
	return nil
}

// findByInstanceID must be called with mu held
func (m *Manager) findByInstanceID(appInstanceID string) *ApplicationContext {
	if appInstanceID == "" {
		return nil
	}
	for _, app := range m.apps {
		if app.AppInstanceID == appInstanceID {
			return app
		}
	}
	return nil
}

// removeContext must be called with mu held
func (m *Manager) removeContext(app *ApplicationContext) {
	for i, existing := range m.apps {
		if existing == app {
			m.apps = append(m.apps[:i], m.apps[i+1:]...)
			break
		}
	}
	m.metrics.SetAppsLoaded(len(m.apps))
	app.markUnloaded()
}
