package telemetry

import (
	"fmt"
	"sync"

	"github.com/GriffinCanCode/AgentOS/appmanager/internal/shared/types"
	"github.com/bytedance/sonic"
	"go.uber.org/zap"
)

// Markers emitted by the lifecycle coordinator
const (
	MarkerLaunchTime    = "AppLaunchTime"
	MarkerCloseTime     = "AppCloseTime"
	MarkerPauseTime     = "AppPauseTime"
	MarkerSuspendTime   = "AppSuspendTime"
	MarkerResumeTime    = "AppResumeTime"
	MarkerHibernateTime = "AppHibernateTime"
	MarkerWakeTime      = "AppWakeTime"
	MarkerCrash         = "AppCrashed"
	MarkerStateAck      = "AppStateChangeAck"
)

var timingFields = []string{"appId", "appInstanceId", "requestType", "startTime", "endTime", "duration", "targetState", "errorCode"}

// DefaultAllowList returns the field allow-list for every known marker
func DefaultAllowList() map[string][]string {
	return map[string][]string{
		MarkerLaunchTime:    timingFields,
		MarkerCloseTime:     timingFields,
		MarkerPauseTime:     timingFields,
		MarkerSuspendTime:   timingFields,
		MarkerResumeTime:    timingFields,
		MarkerHibernateTime: timingFields,
		MarkerWakeTime:      timingFields,
		MarkerCrash:         {"appId", "appInstanceId", "state", "terminateOk", "updateOk"},
		MarkerStateAck:      {"appId", "stateChangedId", "success"},
	}
}

// Key identifies one accumulation
type Key struct {
	ID     string
	Marker string
}

// Publisher sends a flushed metrics object
type Publisher interface {
	Publish(marker, payload string) error
}

// Store accumulates and publishes telemetry
type Store struct {
	mu        sync.Mutex
	metrics   map[Key]map[string]interface{}
	allow     map[string]map[string]struct{}
	publisher Publisher
	logger    *zap.Logger
}

// NewStore creates a store. A nil allow-list uses DefaultAllowList.
func NewStore(allowList map[string][]string, publisher Publisher, logger *zap.Logger) *Store {
	if allowList == nil {
		allowList = DefaultAllowList()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = NewLogPublisher(logger)
	}

	allow := make(map[string]map[string]struct{}, len(allowList))
	for marker, fields := range allowList {
		set := make(map[string]struct{}, len(fields))
		for _, f := range fields {
			set[f] = struct{}{}
		}
		allow[marker] = set
	}

	return &Store{
		metrics:   make(map[Key]map[string]interface{}),
		allow:     allow,
		publisher: publisher,
		logger:    logger,
	}
}

// Record merges the allowed fields of metricsJSON into the (id, marker) entry
func (s *Store) Record(id, metricsJSON, marker string) error {
	if id == "" || marker == "" {
		return fmt.Errorf("id and marker are required: %w", types.ErrInvalidInput)
	}
	allowed, ok := s.allow[marker]
	if !ok {
		return fmt.Errorf("unknown marker %q: %w", marker, types.ErrInvalidInput)
	}

	var fields map[string]interface{}
	if err := sonic.UnmarshalString(metricsJSON, &fields); err != nil {
		return fmt.Errorf("metrics for %q are not a JSON object: %w", marker, types.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := Key{ID: id, Marker: marker}
	entry, ok := s.metrics[key]
	if !ok {
		entry = make(map[string]interface{})
		s.metrics[key] = entry
	}
	for name, value := range fields {
		if _, ok := allowed[name]; !ok {
			s.logger.Debug("dropping field outside allow-list", zap.String("marker", marker), zap.String("field", name))
			continue
		}
		entry[name] = value
	}
	return nil
}

// Publish flushes the (id, marker) entry to the publisher and clears it
func (s *Store) Publish(id, marker string) error {
	key := Key{ID: id, Marker: marker}

	s.mu.Lock()
	entry, ok := s.metrics[key]
	delete(s.metrics, key)
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("no metrics recorded for %s/%s: %w", id, marker, types.ErrNotFound)
	}

	payload, err := sonic.ConfigStd.MarshalToString(entry)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", id, marker, err)
	}
	return s.publisher.Publish(marker, payload)
}

// Pending returns the number of unpublished entries
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.metrics)
}

// LogPublisher writes published metrics to the log
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher creates a publisher backed by logger
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish logs the payload
func (p *LogPublisher) Publish(marker, payload string) error {
	p.logger.Info("telemetry", zap.String("marker", marker), zap.String("metrics", payload))
	return nil
}
