package download

import (
	"net/http"
	"time"

	"github.com/GriffinCanCode/AgentOS/appmanager/internal/providers/http/client"
	"github.com/bytedance/sonic"
	"go.uber.org/zap"
)

func (m *Manager) work() {
	defer m.wg.Done()

	for {
		m.mu.Lock()
		for m.running && len(m.priority) == 0 && len(m.regular) == 0 {
			m.jobs.Wait()
		}
		if !m.running {
			m.mu.Unlock()
			return
		}

		var info *Info
		if len(m.priority) > 0 {
			info = m.priority[0]
			m.priority = m.priority[1:]
		} else {
			info = m.regular[0]
			m.regular = m.regular[1:]
		}
		m.current = info
		m.client.Reset()
		m.recordDepthLocked()
		m.mu.Unlock()

		m.metrics.SetDownloadActive(true)
		result := m.process(info)
		m.metrics.SetDownloadActive(false)

		m.mu.Lock()
		m.current = nil
		m.mu.Unlock()

		reason := failReasonOf(result)
		m.metrics.RecordDownloadCompleted(string(reason))
		m.notify(Status{
			DownloadID:  info.ID,
			FileLocator: info.FileLocator,
			FailReason:  reason,
		})
	}
}

// process runs the retry loop of one download
func (m *Manager) process(info *Info) client.Result {
	result := client.HTTPError
	wait := 1

	for attempt := uint32(1); attempt <= info.Retries; attempt++ {
		if attempt > 1 {
			wait = nextWait(wait)
			m.logger.Debug("retrying download",
				zap.String("download_id", info.ID),
				zap.Uint32("attempt", attempt),
				zap.Int("wait_units", wait))
			if !m.sleep(time.Duration(wait) * m.cfg.BackoffUnit) {
				break
			}
		}

		m.mu.Lock()
		cancelled := info.Cancelled
		rateLimit := info.RateLimit
		m.mu.Unlock()
		if cancelled {
			m.logger.Info("download cancelled", zap.String("download_id", info.ID))
			break
		}

		m.metrics.RecordDownloadAttempt()
		result = m.client.Transfer(m.ctx, info.URL, info.FileLocator, rateLimit)
		if result == client.Success {
			break
		}
		if m.client.StatusCode() == http.StatusNotFound {
			m.logger.Warn("download not found, giving up", zap.String("download_id", info.ID), zap.String("url", info.URL))
			break
		}
		m.logger.Warn("download attempt failed",
			zap.String("download_id", info.ID),
			zap.Uint32("attempt", attempt),
			zap.String("result", result.String()))
	}
	return result
}

// sleep waits for d and returns false if the manager is shutting down
func (m *Manager) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-m.ctx.Done():
		return false
	}
}

func (m *Manager) notify(status Status) {
	payload, err := sonic.MarshalString([]Status{status})
	if err != nil {
		m.logger.Error("failed to encode download status", zap.String("download_id", status.DownloadID), zap.Error(err))
		return
	}

	m.mu.Lock()
	listeners := make([]Notification, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	m.logger.Info("download finished",
		zap.String("download_id", status.DownloadID),
		zap.String("fail_reason", string(status.FailReason)))

	for _, l := range listeners {
		l.OnAppDownloadStatus(payload)
	}
}
