// Package main is the entry point for the app manager service.
//
// The service owns two concerns of the device: application downloads and
// application lifecycles. It talks to the runtime manager (containers) and
// the window manager (displays) over HTTP/JSON and accepts their events on
// /runtime/events and /window/events.
//
// Configuration:
//   - Defaults (config.Default)
//   - An optional YAML or TOML file (-config or APPMANAGER_CONFIG)
//   - Environment variables, applied last
//   - CLI flags for the port and development logging
//
// Usage:
//
//	./server -config /etc/appmanager.yaml
//
//	# Development mode (console logs, debug level)
//	./server -dev -port 9000
package main
