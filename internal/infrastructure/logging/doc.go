// Package logging provides structured logging using uber/zap.
//
// Two modes are supported:
//   - Production: sampled JSON for log collectors on the device
//   - Development: colored console output
//
// Components receive a named child logger so every line carries the
// subsystem that produced it (downloads, lifecycle, telemetry, api). The
// level is atomic and the server mounts it at /log/level.
//
// Example Usage:
//
//	logger, err := logging.New(logging.Config{Level: "info"})
//	log := logger.Component("downloads")
//	log.Info("Download queued", zap.String("download_id", id))
package logging
