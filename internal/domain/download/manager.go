package download

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/GriffinCanCode/AgentOS/appmanager/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/providers/network"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/shared/paths"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/shared/types"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/shared/utils"
	"go.uber.org/zap"
)

// Config holds download manager settings
type Config struct {
	Dir         string
	IDSeed      uint64
	QuotaKB     uint64
	BackoffUnit time.Duration
}

// Manager owns the download queues and the worker
type Manager struct {
	cfg     Config
	client  Transferer
	network network.Checker
	logger  *zap.Logger
	metrics *monitoring.Metrics

	mu        sync.Mutex
	jobs      *sync.Cond
	priority  []*Info
	regular   []*Info
	current   *Info
	nextID    uint64
	running   bool
	listeners []Notification

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a download manager and starts its worker
func NewManager(cfg Config, transferer Transferer, checker network.Checker, logger *zap.Logger) *Manager {
	if cfg.Dir == "" {
		cfg.Dir = paths.DownloadDir
	}
	if cfg.BackoffUnit <= 0 {
		cfg.BackoffUnit = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		logger.Error("failed to create download directory", zap.String("dir", cfg.Dir), zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		cfg:     cfg,
		client:  transferer,
		network: checker,
		logger:  logger,
		nextID:  cfg.IDSeed,
		running: true,
		ctx:     ctx,
		cancel:  cancel,
	}
	m.jobs = sync.NewCond(&m.mu)

	m.wg.Add(1)
	go m.work()
	return m
}

// WithMetrics adds metrics tracking to the manager
func (m *Manager) WithMetrics(metrics *monitoring.Metrics) *Manager {
	m.metrics = metrics
	return m
}

// Download queues a transfer and returns its id
func (m *Manager) Download(url string, opts Options) (string, error) {
	if m.network != nil && !m.network.Available() {
		return "", fmt.Errorf("no network connectivity: %w", types.ErrUnavailable)
	}
	if url == "" {
		return "", fmt.Errorf("url is empty: %w", types.ErrInvalidInput)
	}
	if err := utils.ValidateURL(url); err != nil {
		return "", fmt.Errorf("%v: %w", err, types.ErrInvalidInput)
	}

	retries := opts.Retries
	if retries < MinRetries {
		retries = MinRetries
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return "", fmt.Errorf("download manager stopped: %w", types.ErrUnavailable)
	}

	m.nextID++
	id := strconv.FormatUint(m.nextID, 10)
	info := &Info{
		ID:          id,
		URL:         url,
		Priority:    opts.Priority,
		Retries:     retries,
		RateLimit:   opts.RateLimit,
		FileLocator: paths.DownloadLocator(m.cfg.Dir, id),
	}

	if info.Priority {
		m.priority = append(m.priority, info)
	} else {
		m.regular = append(m.regular, info)
	}
	m.metrics.RecordDownloadQueued(info.Priority)
	m.recordDepthLocked()
	m.jobs.Signal()

	m.logger.Info("download queued",
		zap.String("download_id", id),
		zap.String("url", url),
		zap.Bool("priority", info.Priority),
		zap.Uint32("retries", retries))
	return id, nil
}

// Pause pauses the active download
func (m *Manager) Pause(downloadID string) error {
	return m.withCurrent(downloadID, func(*Info) {
		m.client.Pause()
	})
}

// Resume resumes the active download
func (m *Manager) Resume(downloadID string) error {
	return m.withCurrent(downloadID, func(*Info) {
		m.client.Resume()
	})
}

// Cancel stops the active download and its remaining retries
func (m *Manager) Cancel(downloadID string) error {
	return m.withCurrent(downloadID, func(info *Info) {
		info.Cancelled = true
		m.client.Cancel()
	})
}

// RateLimit changes the byte rate of the active download
func (m *Manager) RateLimit(downloadID string, bytesPerSec uint64) error {
	return m.withCurrent(downloadID, func(info *Info) {
		info.RateLimit = bytesPerSec
		m.client.SetRateLimit(bytesPerSec)
	})
}

// Progress returns the percent complete of the active download
func (m *Manager) Progress(downloadID string) (uint8, error) {
	var percent uint8
	err := m.withCurrent(downloadID, func(*Info) {
		percent = m.client.Progress()
	})
	return percent, err
}

// withCurrent runs fn on the active download if it has the given id
func (m *Manager) withCurrent(downloadID string, fn func(*Info)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return fmt.Errorf("no download in progress: %w", types.ErrGeneral)
	}
	if m.current.ID != downloadID {
		return fmt.Errorf("download %q is not in progress: %w", downloadID, types.ErrUnknownKey)
	}
	fn(m.current)
	return nil
}

// Delete removes a downloaded file. The active download's file is refused.
func (m *Manager) Delete(fileLocator string) error {
	if fileLocator == "" {
		return fmt.Errorf("file locator is empty: %w", types.ErrInvalidInput)
	}
	if err := paths.ValidateLocator(fileLocator); err != nil {
		return fmt.Errorf("%v: %w", err, types.ErrInvalidInput)
	}
	if !paths.IsWithin(m.cfg.Dir, fileLocator) {
		return fmt.Errorf("file locator is outside %s: %w", m.cfg.Dir, types.ErrInvalidInput)
	}

	m.mu.Lock()
	inProgress := m.current != nil && m.current.FileLocator == fileLocator
	m.mu.Unlock()

	if inProgress {
		m.logger.Warn("refusing to delete file of download in progress", zap.String("file_locator", fileLocator))
		return fmt.Errorf("download in progress for %s: %w", fileLocator, types.ErrGeneral)
	}

	if err := os.Remove(fileLocator); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", fileLocator, types.ErrNotFound)
		}
		return fmt.Errorf("failed to delete %s: %v: %w", fileLocator, err, types.ErrGeneral)
	}

	m.logger.Info("download deleted", zap.String("file_locator", fileLocator))
	return nil
}

// GetStorageDetails reports the space used by downloaded files
func (m *Manager) GetStorageDetails() (StorageDetails, error) {
	entries, err := os.ReadDir(m.cfg.Dir)
	if err != nil {
		return StorageDetails{}, fmt.Errorf("failed to read %s: %v: %w", m.cfg.Dir, err, types.ErrGeneral)
	}

	var used int64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			m.logger.Debug("skipping unreadable entry",
				zap.String("path", filepath.Join(m.cfg.Dir, entry.Name())),
				zap.Error(err))
			continue
		}
		used += info.Size()
	}

	return StorageDetails{
		QuotaKB: m.cfg.QuotaKB,
		UsedKB:  uint64((used + 1023) / 1024),
	}, nil
}

// Register adds a status listener
func (m *Manager) Register(n Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, l := range m.listeners {
		if l == n {
			return
		}
	}
	m.listeners = append(m.listeners, n)
}

// Unregister removes a status listener
func (m *Manager) Unregister(n Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, l := range m.listeners {
		if l == n {
			m.listeners = append(m.listeners[:i], m.listeners[i+1:]...)
			return
		}
	}
}

// Close discards queued downloads, aborts the active one and stops the worker
func (m *Manager) Close() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	dropped := len(m.priority) + len(m.regular)
	m.priority = nil
	m.regular = nil
	active := m.current != nil
	if active {
		m.current.Cancelled = true
	}
	m.recordDepthLocked()
	m.jobs.Signal()
	m.mu.Unlock()

	m.cancel()
	if active {
		m.client.Cancel()
	}
	m.wg.Wait()

	m.logger.Info("download manager stopped", zap.Int("dropped", dropped))
}

func (m *Manager) recordDepthLocked() {
	m.metrics.SetQueueDepth(true, len(m.priority))
	m.metrics.SetQueueDepth(false, len(m.regular))
}
